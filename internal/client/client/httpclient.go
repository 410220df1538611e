package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/dmitrijs2005/drinkshelf/internal/client/models"
	"github.com/dmitrijs2005/drinkshelf/internal/common"
	"github.com/dmitrijs2005/drinkshelf/internal/timex"
)

const (
	loginPath    = "/auth/login"
	registerPath = "/auth/register"
	mePath       = "/users/me"
	usersPath    = "/users/"
	healthPath   = "/health"

	defaultTimeout = 10 * time.Second

	// maxErrorBody caps how much of an error answer is read.
	maxErrorBody = 64 << 10
)

type userDTO struct {
	ID          string          `json:"id"`
	Username    string          `json:"username"`
	Email       string          `json:"email"`
	DisplayName *string         `json:"display_name"`
	Bio         *string         `json:"bio"`
	CreatedAt   timex.Timestamp `json:"created_at"`
	UpdatedAt   timex.Timestamp `json:"updated_at"`
}

func (d *userDTO) toModel() *models.User {
	u := &models.User{
		ID:        d.ID,
		Username:  d.Username,
		Email:     d.Email,
		CreatedAt: d.CreatedAt.Time,
		UpdatedAt: d.UpdatedAt.Time,
	}
	if d.DisplayName != nil {
		u.DisplayName = *d.DisplayName
	}
	if d.Bio != nil {
		u.Bio = *d.Bio
	}
	return u
}

type tokenResponse struct {
	AccessToken string   `json:"access_token"`
	TokenType   string   `json:"token_type"`
	User        *userDTO `json:"user"`
}

// registerResponse accepts both the bare user the API answers with and a
// login-shaped body carrying a token.
type registerResponse struct {
	userDTO
	AccessToken string   `json:"access_token"`
	User        *userDTO `json:"user"`
}

type registerRequest struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

type profileRequest struct {
	DisplayName *string `json:"display_name,omitempty"`
	Bio         *string `json:"bio,omitempty"`
}

// HTTPClient talks to the DrinkShelf API over HTTP(S) with JSON bodies.
type HTTPClient struct {
	baseURL *url.URL
	http    *http.Client
	tokens  TokenSource
}

// HTTPOption configures an HTTPClient.
type HTTPOption func(*HTTPClient)

// WithTimeout bounds every request, including reading the answer.
func WithTimeout(d time.Duration) HTTPOption {
	return func(c *HTTPClient) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithHTTPClient replaces the underlying *http.Client.
func WithHTTPClient(hc *http.Client) HTTPOption {
	return func(c *HTTPClient) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithTokenSource sets where UpdateProfile takes its bearer token from.
func WithTokenSource(ts TokenSource) HTTPOption {
	return func(c *HTTPClient) {
		c.tokens = ts
	}
}

// NewHTTPClient builds a client for the API rooted at baseURL.
func NewHTTPClient(baseURL string, opts ...HTTPOption) (*HTTPClient, error) {
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid server url %q: %w", baseURL, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("invalid server url %q: scheme must be http or https", baseURL)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("invalid server url %q: missing host", baseURL)
	}

	c := &HTTPClient{
		baseURL: u,
		http:    &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ExchangeCredentials logs in with a username or email and a password.
func (c *HTTPClient) ExchangeCredentials(ctx context.Context, identifier, password string) (*models.AuthResult, error) {
	form := url.Values{}
	form.Set("username", identifier)
	form.Set("password", password)

	req, err := c.newRequest(ctx, http.MethodPost, loginPath, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	var resp tokenResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.AccessToken == "" || resp.User == nil {
		return nil, fmt.Errorf("%w: login answer without token or user", ErrMalformedResponse)
	}

	return &models.AuthResult{User: resp.User.toModel(), Token: resp.AccessToken}, nil
}

// CreateAccount registers a user. The API answers registration with the user
// record only, so the token is then obtained with a regular login.
func (c *HTTPClient) CreateAccount(ctx context.Context, username, email, password string) (*models.AuthResult, error) {
	body, err := json.Marshal(registerRequest{Username: username, Email: email, Password: password})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPost, registerPath, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var resp registerResponse
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}

	if resp.AccessToken != "" {
		user := &resp.userDTO
		if resp.User != nil {
			user = resp.User
		}
		if user.ID == "" {
			return nil, fmt.Errorf("%w: registration answer without user", ErrMalformedResponse)
		}
		return &models.AuthResult{User: user.toModel(), Token: resp.AccessToken}, nil
	}

	if resp.ID == "" {
		return nil, fmt.Errorf("%w: registration answer without user", ErrMalformedResponse)
	}

	result, err := c.ExchangeCredentials(ctx, username, password)
	if err != nil {
		return nil, fmt.Errorf("login after registration: %w", err)
	}
	return result, nil
}

// FetchCurrentUser returns the owner of token.
func (c *HTTPClient) FetchCurrentUser(ctx context.Context, token string) (*models.User, error) {
	req, err := c.newRequest(ctx, http.MethodGet, mePath, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set(common.AuthorizationHeader, common.BearerValue(token))

	var resp userDTO
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("%w: user without id", ErrMalformedResponse)
	}
	return resp.toModel(), nil
}

// UpdateProfile changes the mutable fields of userID's profile.
func (c *HTTPClient) UpdateProfile(ctx context.Context, userID string, update models.ProfileUpdate) (*models.User, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: empty user id", ErrInvalidInput)
	}

	body, err := json.Marshal(profileRequest{DisplayName: update.DisplayName, Bio: update.Bio})
	if err != nil {
		return nil, err
	}

	req, err := c.newRequest(ctx, http.MethodPut, usersPath+url.PathEscape(userID), bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	if c.tokens != nil {
		token, err := c.tokens(ctx)
		if err != nil {
			return nil, fmt.Errorf("read token: %w", err)
		}
		if token != "" {
			req.Header.Set(common.AuthorizationHeader, common.BearerValue(token))
		}
	}

	var resp userDTO
	if err := c.do(req, &resp); err != nil {
		return nil, err
	}
	if resp.ID == "" {
		return nil, fmt.Errorf("%w: updated user without id", ErrMalformedResponse)
	}
	return resp.toModel(), nil
}

// Ping checks that the API answers its health endpoint.
func (c *HTTPClient) Ping(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, healthPath, nil)
	if err != nil {
		return err
	}
	return c.do(req, nil)
}

// Close releases idle keep-alive connections.
func (c *HTTPClient) Close() error {
	c.http.CloseIdleConnections()
	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, path string, body io.Reader) (*http.Request, error) {
	u := c.baseURL.JoinPath(path)
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	return req, nil
}

// do sends req and decodes a 2xx JSON answer into out (when out is not nil).
func (c *HTTPClient) do(req *http.Request, out any) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return mapTransportError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeFailure(resp)
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return mapTransportError(err)
		}
		return fmt.Errorf("%w: %v", ErrMalformedResponse, err)
	}
	return nil
}

func mapTransportError(err error) error {
	// Cancellation by the caller is not a server problem.
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: %v", ErrUnavailable, err)
}

// decodeFailure turns an error answer into a *Failure. The API reports
// errors as {"detail": "..."}; validation errors carry a list of
// {"msg": "..."} objects instead of a string.
func decodeFailure(resp *http.Response) error {
	f := &Failure{Status: resp.StatusCode}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if err != nil || len(raw) == 0 {
		return f
	}

	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || len(body.Detail) == 0 {
		return f
	}

	var detail string
	if err := json.Unmarshal(body.Detail, &detail); err == nil {
		f.Detail = detail
		return f
	}

	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(body.Detail, &items); err == nil && len(items) > 0 {
		f.Detail = items[0].Msg
	}
	return f
}
