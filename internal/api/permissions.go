// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/pedrocodesforcoffee/builder-go/internal/permission"
)

// =============================================================================
// PERMISSIONS SERVICE
// =============================================================================

// PermissionService fetches per-project permission snapshots. It satisfies
// permission.Fetcher, so the permission cache's read-through service can be
// wired directly on top of it.
type PermissionService struct {
	client *Client
}

// NewPermissionService creates the permissions endpoint client.
func NewPermissionService(client *Client) *PermissionService {
	return &PermissionService{client: client}
}

// permissionsResponse is the wire shape of the my-permissions endpoint.
type permissionsResponse struct {
	ProjectID   string            `json:"project_id"`
	Permissions map[string]bool   `json:"permissions"`
	Role        string            `json:"role"`
	Scope       *permission.Scope `json:"scope,omitempty"`
	ExpiresAt   *time.Time        `json:"expires_at,omitempty"`
}

// FetchPermissions retrieves the authenticated user's permissions for a
// project. The returned snapshot's FetchedAt is stamped by the caller.
func (p *PermissionService) FetchPermissions(ctx context.Context, projectID string) (*permission.Snapshot, error) {
	if projectID == "" {
		return nil, fmt.Errorf("%w: empty project id", ErrNotFound)
	}

	var resp permissionsResponse
	path := fmt.Sprintf("/projects/%s/my-permissions", url.PathEscape(projectID))
	if err := p.client.get(ctx, path, &resp); err != nil {
		return nil, err
	}

	perms := resp.Permissions
	if perms == nil {
		perms = map[string]bool{}
	}

	return &permission.Snapshot{
		ProjectID:   projectID,
		Permissions: perms,
		Role:        resp.Role,
		Scope:       resp.Scope,
		ExpiresAt:   resp.ExpiresAt,
	}, nil
}
