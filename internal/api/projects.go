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
// PROJECTS
// =============================================================================

// Project is a construction project.
type Project struct {
	ID             string     `json:"id"`
	OrganizationID string     `json:"organization_id"`
	Name           string     `json:"name"`
	Number         string     `json:"number,omitempty"`
	Address        string     `json:"address,omitempty"`
	Status         string     `json:"status"` // planning, active, on_hold, closed
	StartDate      *time.Time `json:"start_date,omitempty"`
	EndDate        *time.Time `json:"end_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
	UpdatedAt      time.Time  `json:"updated_at"`
}

// ProjectService implements the /projects endpoints.
type ProjectService struct {
	client *Client
}

// NewProjectService creates the projects endpoint client.
func NewProjectService(client *Client) *ProjectService {
	return &ProjectService{client: client}
}

type projectListResponse struct {
	Projects []Project `json:"projects"`
}

// List returns the projects visible to the authenticated user.
func (s *ProjectService) List(ctx context.Context) ([]Project, error) {
	var resp projectListResponse
	if err := s.client.get(ctx, "/projects", &resp); err != nil {
		return nil, err
	}
	return resp.Projects, nil
}

// Get returns one project by ID.
func (s *ProjectService) Get(ctx context.Context, projectID string) (*Project, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: empty project id", ErrNotFound)
	}
	var p Project
	if err := s.client.get(ctx, "/projects/"+url.PathEscape(projectID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// CreateProjectInput is the writable subset of Project.
type CreateProjectInput struct {
	OrganizationID string `json:"organization_id"`
	Name           string `json:"name"`
	Number         string `json:"number,omitempty"`
	Address        string `json:"address,omitempty"`
}

// Create creates a project.
func (s *ProjectService) Create(ctx context.Context, in CreateProjectInput) (*Project, error) {
	var p Project
	if err := s.client.post(ctx, "/projects", in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateProjectInput carries the fields to change; nil fields are left as-is.
type UpdateProjectInput struct {
	Name    *string `json:"name,omitempty"`
	Number  *string `json:"number,omitempty"`
	Address *string `json:"address,omitempty"`
	Status  *string `json:"status,omitempty"`
}

// Update applies a partial update to a project.
func (s *ProjectService) Update(ctx context.Context, projectID string, in UpdateProjectInput) (*Project, error) {
	var p Project
	if err := s.client.put(ctx, "/projects/"+url.PathEscape(projectID), in, &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// Delete removes a project.
func (s *ProjectService) Delete(ctx context.Context, projectID string) error {
	return s.client.delete(ctx, "/projects/"+url.PathEscape(projectID))
}
