// Copyright (c) 2025 pedrocodesforcoffee
// SPDX-License-Identifier: AGPL-3.0-or-later

package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/pedrocodesforcoffee/builder-go/internal/session"
)

// =============================================================================
// AUTH CLIENT
// =============================================================================

// AuthClient implements the /auth endpoints. It satisfies session.AuthAPI
// so the session manager can drive login and refresh through it.
//
// Auth requests never carry a bearer token: credentials travel in the body,
// and a 401 here is an answer, not a trigger for refresh.
type AuthClient struct {
	client *Client
}

// NewAuthClient creates the auth endpoint client.
func NewAuthClient(client *Client) *AuthClient {
	return &AuthClient{client: client}
}

// Wire shapes for the auth endpoints.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type registerRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
}

type tokenResponse struct {
	AccessToken  string       `json:"access_token"`
	RefreshToken string       `json:"refresh_token"`
	TokenType    string       `json:"token_type"`
	ExpiresIn    int64        `json:"expires_in"` // seconds
	ExpiresAt    string       `json:"expires_at,omitempty"`
	User         session.User `json:"user"`
}

// toSession converts a token response to a session, resolving expiry from
// either the absolute timestamp or the relative lifetime.
func (r *tokenResponse) toSession(now time.Time) (*session.Session, error) {
	if r.AccessToken == "" {
		return nil, errors.New("auth response missing access token")
	}

	expiresAt := now.Add(time.Duration(r.ExpiresIn) * time.Second)
	if r.ExpiresAt != "" {
		t, err := time.Parse(time.RFC3339, r.ExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("auth response has malformed expires_at: %w", err)
		}
		expiresAt = t
	}

	tokenType := r.TokenType
	if tokenType == "" {
		tokenType = "Bearer"
	}

	return &session.Session{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    tokenType,
		ExpiresAt:    expiresAt,
		User:         r.User,
	}, nil
}

// Login exchanges credentials for a session. A 401 maps to
// ErrInvalidCredentials.
func (a *AuthClient) Login(ctx context.Context, email, password string) (*session.Session, error) {
	email = strings.TrimSpace(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}

	var resp tokenResponse
	err := a.client.post(ctx, "/auth/login", loginRequest{Email: email, Password: password}, &resp)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) {
			return nil, ErrInvalidCredentials
		}
		return nil, err
	}
	return resp.toSession(time.Now())
}

// Refresh exchanges a refresh token for a new token pair. A 4xx response
// means the refresh token itself was rejected and maps to
// ErrRefreshRejected; transport failures pass through so the caller can
// distinguish "server said no" from "could not reach the server".
func (a *AuthClient) Refresh(ctx context.Context, refreshToken string) (*session.Session, error) {
	if refreshToken == "" {
		return nil, ErrRefreshRejected
	}

	var resp tokenResponse
	err := a.client.post(ctx, "/auth/refresh", refreshRequest{RefreshToken: refreshToken}, &resp)
	if err != nil {
		if errors.Is(err, ErrUnauthorized) || errors.Is(err, ErrForbidden) {
			return nil, fmt.Errorf("%w: %v", ErrRefreshRejected, err)
		}
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Status >= 400 && apiErr.Status < 500 && apiErr.Status != http.StatusTooManyRequests {
			return nil, fmt.Errorf("%w: %v", ErrRefreshRejected, err)
		}
		return nil, err
	}
	return resp.toSession(time.Now())
}

// Register creates an account and returns its first session.
func (a *AuthClient) Register(ctx context.Context, email, password, firstName, lastName string) (*session.Session, error) {
	var resp tokenResponse
	err := a.client.post(ctx, "/auth/register", registerRequest{
		Email:     strings.TrimSpace(email),
		Password:  password,
		FirstName: firstName,
		LastName:  lastName,
	}, &resp)
	if err != nil {
		return nil, err
	}
	return resp.toSession(time.Now())
}

// Logout revokes the access token server-side.
func (a *AuthClient) Logout(ctx context.Context, accessToken string) error {
	if accessToken == "" {
		return nil
	}
	return a.client.do(ctx, http.MethodPost, "/auth/logout", struct {
		AccessToken string `json:"access_token"`
	}{AccessToken: accessToken}, nil)
}
