// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/url"
	"time"
)

// =============================================================================
// ORGANIZATIONS
// =============================================================================

// Organization is a general contractor, subcontractor or owner company.
type Organization struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Type      string    `json:"type"` // gc, subcontractor, owner, architect
	Trade     string    `json:"trade,omitempty"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// OrganizationService implements the /organizations endpoints.
type OrganizationService struct {
	client *Client
}

// NewOrganizationService creates the organizations endpoint client.
func NewOrganizationService(client *Client) *OrganizationService {
	return &OrganizationService{client: client}
}

type organizationListResponse struct {
	Organizations []Organization `json:"organizations"`
}

// List returns the organizations visible to the authenticated user.
func (s *OrganizationService) List(ctx context.Context) ([]Organization, error) {
	var resp organizationListResponse
	if err := s.client.get(ctx, "/organizations", &resp); err != nil {
		return nil, err
	}
	return resp.Organizations, nil
}

// Get returns one organization by ID.
func (s *OrganizationService) Get(ctx context.Context, orgID string) (*Organization, error) {
	if orgID == "" {
		return nil, fmt.Errorf("%w: empty organization id", ErrNotFound)
	}
	var o Organization
	if err := s.client.get(ctx, "/organizations/"+url.PathEscape(orgID), &o); err != nil {
		return nil, err
	}
	return &o, nil
}

// Members returns the users belonging to an organization.
func (s *OrganizationService) Members(ctx context.Context, orgID string) ([]OrganizationMember, error) {
	var resp struct {
		Members []OrganizationMember `json:"members"`
	}
	path := "/organizations/" + url.PathEscape(orgID) + "/members"
	if err := s.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}
	return resp.Members, nil
}

// OrganizationMember is a user's membership record within an organization.
type OrganizationMember struct {
	UserID    string `json:"user_id"`
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Role      string `json:"role"`
}
