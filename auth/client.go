// Package auth talks to the hosted auth service and keeps the session of
// each device in the local store.
package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"restaurant-ordering/models"
	"restaurant-ordering/storage"
)

var (
	ErrNotAuthenticated = errors.New("not authenticated")
	ErrSignIn           = errors.New("sign in failed")
)

// Session is the auth service session as persisted on the device.
type Session struct {
	AccessToken          string       `json:"accessToken"`
	AccessTokenExpiresIn int          `json:"accessTokenExpiresIn,omitempty"`
	RefreshToken         string       `json:"refreshToken,omitempty"`
	User                 *models.User `json:"user,omitempty"`
}

// Client is a small client for the email/password auth endpoints.
type Client struct {
	httpClient *http.Client
	baseURL    string
	kv         storage.Store
	tokens     *TokenParser
	logger     *slog.Logger
}

// NewClient creates a client for the auth service at baseURL. When
// jwtSecret is empty access tokens are decoded without verification.
func NewClient(baseURL string, kv storage.Store, jwtSecret string, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		baseURL: strings.TrimRight(baseURL, "/"),
		kv:      kv,
		tokens:  NewTokenParser(jwtSecret),
		logger:  logger,
	}
}

type signInResponse struct {
	Session *Session `json:"session"`
	Error   *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// SignIn exchanges credentials for a session and stores it for sessionID.
func (c *Client) SignIn(ctx context.Context, sessionID, email, password string) (*models.User, error) {
	payload, err := json.Marshal(map[string]string{"email": email, "password": password})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal sign in request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/signin/email-password", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create sign in request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call auth service: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("failed to read sign in response: %w", err)
	}

	var out signInResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return nil, fmt.Errorf("failed to decode sign in response (status %d): %w", resp.StatusCode, err)
	}
	if out.Session == nil || out.Session.AccessToken == "" {
		msg := "Login failed"
		if out.Error != nil && out.Error.Message != "" {
			msg = out.Error.Message
		}
		return nil, fmt.Errorf("%w: %s", ErrSignIn, msg)
	}

	if err := storage.SaveJSON(ctx, c.kv, c.key(sessionID), out.Session); err != nil {
		return nil, fmt.Errorf("save session: %w", err)
	}

	user, err := c.userFromSession(out.Session)
	if err != nil {
		return nil, err
	}
	c.logger.Info("Signed in", "session_id", sessionID, "user_id", user.ID)
	return user, nil
}

// SignOut revokes the session remotely when possible and always forgets it locally.
func (c *Client) SignOut(ctx context.Context, sessionID string) error {
	session, err := c.session(ctx, sessionID)
	if err == nil && session != nil && session.AccessToken != "" {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/signout", nil)
		if reqErr == nil {
			req.Header.Set("Authorization", "Bearer "+session.AccessToken)
			if resp, doErr := c.httpClient.Do(req); doErr != nil {
				c.logger.Warn("Remote sign out failed", "session_id", sessionID, "error", doErr)
			} else {
				resp.Body.Close()
			}
		}
	}

	if err := c.kv.Delete(ctx, c.key(sessionID)); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

// CurrentUser returns the signed-in user of sessionID, or nil when there is
// no session or its access token has expired.
func (c *Client) CurrentUser(ctx context.Context, sessionID string) (*models.User, error) {
	session, err := c.session(ctx, sessionID)
	if err != nil || session == nil {
		return nil, err
	}
	user, err := c.userFromSession(session)
	if err != nil {
		if IsExpired(err) {
			c.logger.Info("Session expired", "session_id", sessionID)
		} else {
			c.logger.Warn("Session token rejected", "session_id", sessionID, "error", err)
		}
		return nil, nil
	}
	return user, nil
}

// AccessToken returns a valid access token for sessionID.
func (c *Client) AccessToken(ctx context.Context, sessionID string) (string, error) {
	session, err := c.session(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if session == nil || session.AccessToken == "" {
		return "", ErrNotAuthenticated
	}
	if _, err := c.tokens.Parse(session.AccessToken); err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotAuthenticated, err)
	}
	return session.AccessToken, nil
}

func (c *Client) key(sessionID string) string {
	return storage.ScopedKey(storage.KeySession, sessionID)
}

// session loads the stored session; a corrupt entry counts as signed out.
func (c *Client) session(ctx context.Context, sessionID string) (*Session, error) {
	var s Session
	found, err := storage.LoadJSON(ctx, c.kv, c.key(sessionID), &s)
	if errors.Is(err, storage.ErrCorrupt) {
		c.logger.Warn("Discarding unreadable session", "session_id", sessionID, "error", err)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if !found {
		return nil, nil
	}
	return &s, nil
}

func (c *Client) userFromSession(s *Session) (*models.User, error) {
	claims, err := c.tokens.Parse(s.AccessToken)
	if err != nil {
		return nil, err
	}
	if s.User != nil && s.User.ID != "" {
		u := *s.User
		return &u, nil
	}
	return claims.User(), nil
}
