// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/google/uuid"
)

// =============================================================================
// RFIS
// =============================================================================

// RFI is a request for information raised against a project.
type RFI struct {
	ID         string     `json:"id"`
	ProjectID  string     `json:"project_id"`
	Number     int        `json:"number"`
	Subject    string     `json:"subject"`
	Question   string     `json:"question"`
	Answer     string     `json:"answer,omitempty"`
	Status     string     `json:"status"` // open, answered, closed
	Trade      string     `json:"trade,omitempty"`
	Area       string     `json:"area,omitempty"`
	AssigneeID string     `json:"assignee_id,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`
	CreatedAt  time.Time  `json:"created_at"`
	UpdatedAt  time.Time  `json:"updated_at"`
}

// RFIService implements the per-project /rfis endpoints.
type RFIService struct {
	client *Client
}

// NewRFIService creates the RFI endpoint client.
func NewRFIService(client *Client) *RFIService {
	return &RFIService{client: client}
}

func rfiBasePath(projectID string) string {
	return "/projects/" + url.PathEscape(projectID) + "/rfis"
}

type rfiListResponse struct {
	RFIs []RFI `json:"rfis"`
}

// List returns a project's RFIs.
func (s *RFIService) List(ctx context.Context, projectID string) ([]RFI, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: empty project id", ErrNotFound)
	}
	var resp rfiListResponse
	if err := s.client.get(ctx, rfiBasePath(projectID), &resp); err != nil {
		return nil, err
	}
	return resp.RFIs, nil
}

// Get returns one RFI.
func (s *RFIService) Get(ctx context.Context, projectID, rfiID string) (*RFI, error) {
	var r RFI
	path := rfiBasePath(projectID) + "/" + url.PathEscape(rfiID)
	if err := s.client.get(ctx, path, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// CreateRFIInput is the writable subset of RFI.
type CreateRFIInput struct {
	Subject    string     `json:"subject"`
	Question   string     `json:"question"`
	Trade      string     `json:"trade,omitempty"`
	Area       string     `json:"area,omitempty"`
	AssigneeID string     `json:"assignee_id,omitempty"`
	DueDate    *time.Time `json:"due_date,omitempty"`

	// ClientID deduplicates retried creates server-side. Filled in by
	// Create when empty.
	ClientID string `json:"client_id,omitempty"`
}

// Create raises a new RFI against a project. A client-generated ID makes
// the create idempotent across transport retries.
func (s *RFIService) Create(ctx context.Context, projectID string, in CreateRFIInput) (*RFI, error) {
	if in.ClientID == "" {
		in.ClientID = uuid.NewString()
	}
	var r RFI
	if err := s.client.post(ctx, rfiBasePath(projectID), in, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Answer records an answer and moves the RFI to answered.
func (s *RFIService) Answer(ctx context.Context, projectID, rfiID, answer string) (*RFI, error) {
	var r RFI
	path := rfiBasePath(projectID) + "/" + url.PathEscape(rfiID) + "/answer"
	if err := s.client.post(ctx, path, struct {
		Answer string `json:"answer"`
	}{Answer: answer}, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Close closes an RFI.
func (s *RFIService) Close(ctx context.Context, projectID, rfiID string) (*RFI, error) {
	var r RFI
	path := rfiBasePath(projectID) + "/" + url.PathEscape(rfiID) + "/close"
	if err := s.client.post(ctx, path, nil, &r); err != nil {
		return nil, err
	}
	return &r, nil
}

// Delete removes an RFI.
func (s *RFIService) Delete(ctx context.Context, projectID, rfiID string) error {
	return s.client.delete(ctx, rfiBasePath(projectID)+"/"+url.PathEscape(rfiID))
}
