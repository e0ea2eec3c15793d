// Package identity talks to the external identity provider (Supabase Auth).
// The provider is treated as opaque: the gateway only exchanges bearer tokens
// for identities and uses the admin API to manage accounts.
package identity

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

	"github.com/mygain/portal-gateway/config"
	"github.com/mygain/portal-gateway/models"
	"go.uber.org/zap"
)

var (
	// ErrInvalidToken is returned when the provider rejects an access token
	ErrInvalidToken = errors.New("identity: invalid or expired access token")

	// ErrUserNotFound is returned when an admin call targets an unknown user
	ErrUserNotFound = errors.New("identity: user not found")

	// ErrEmailExists is returned when creating or renaming to a taken email
	ErrEmailExists = errors.New("identity: email already registered")
)

// APIError is a non-2xx answer from the provider
type APIError struct {
	StatusCode int
	Code       string
	Message    string
}

func (e *APIError) Error() string {
	if e.Code != "" {
		return fmt.Sprintf("identity provider returned %d (%s): %s", e.StatusCode, e.Code, e.Message)
	}
	return fmt.Sprintf("identity provider returned %d: %s", e.StatusCode, e.Message)
}

// CreateUserParams describes a new account
type CreateUserParams struct {
	Email    string
	Password string
	FullName string
}

// UpdateUserParams holds optional account changes. Nil fields are left untouched.
type UpdateUserParams struct {
	Email    *string
	Password *string
	FullName *string
}

// IsEmpty reports whether no field is set
func (p UpdateUserParams) IsEmpty() bool {
	return p.Email == nil && p.Password == nil && p.FullName == nil
}

// Client is a Supabase Auth REST client authenticated with the service role key
type Client struct {
	baseURL    string
	serviceKey string
	httpClient *http.Client
	logger     *zap.Logger
}

// NewClient creates a Client. When httpClient is nil one is built with cfg.Timeout.
func NewClient(cfg config.IdentityConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		serviceKey: cfg.ServiceKey,
		httpClient: httpClient,
		logger:     logger.With(zap.String("component", "identity_client")),
	}
}

type userResource struct {
	ID           string                 `json:"id"`
	Email        string                 `json:"email"`
	UserMetadata map[string]interface{} `json:"user_metadata"`
	LastSignInAt *time.Time             `json:"last_sign_in_at"`
	CreatedAt    time.Time              `json:"created_at"`
}

func (u *userResource) toIdentity() *models.Identity {
	identity := &models.Identity{
		ID:           u.ID,
		Email:        u.Email,
		LastSignInAt: u.LastSignInAt,
		CreatedAt:    u.CreatedAt,
	}
	if name, ok := u.UserMetadata["full_name"].(string); ok {
		identity.FullName = name
	}
	return identity
}

type listUsersResponse struct {
	Users []userResource `json:"users"`
}

// GetUser exchanges a caller's access token for the identity it belongs to
func (c *Client) GetUser(ctx context.Context, accessToken string) (*models.Identity, error) {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/user", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.do(req)
	if err != nil {
		return nil, err
	}

	switch resp.StatusCode {
	case http.StatusUnauthorized, http.StatusForbidden, http.StatusNotFound:
		resp.Body.Close()
		return nil, ErrInvalidToken
	}

	var user userResource
	if err := decodeResponse(resp, &user); err != nil {
		return nil, fmt.Errorf("GetUser: %w", err)
	}
	if user.ID == "" {
		return nil, ErrInvalidToken
	}
	return user.toIdentity(), nil
}

// ListUsers returns one page of accounts. Pages start at 1.
// The provider reports no total; a page shorter than perPage is the last one.
func (c *Client) ListUsers(ctx context.Context, page, perPage int) ([]*models.Identity, error) {
	query := url.Values{
		"page":     {fmt.Sprint(page)},
		"per_page": {fmt.Sprint(perPage)},
	}

	resp, err := c.doAdmin(ctx, http.MethodGet, "/users?"+query.Encode(), nil)
	if err != nil {
		return nil, err
	}

	var body listUsersResponse
	if err := decodeResponse(resp, &body); err != nil {
		return nil, fmt.Errorf("ListUsers: %w", err)
	}

	identities := make([]*models.Identity, 0, len(body.Users))
	for i := range body.Users {
		identities = append(identities, body.Users[i].toIdentity())
	}
	return identities, nil
}

// GetUserByID fetches one account through the admin API
func (c *Client) GetUserByID(ctx context.Context, id string) (*models.Identity, error) {
	resp, err := c.doAdmin(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil)
	if err != nil {
		return nil, err
	}

	var user userResource
	if err := decodeResponse(resp, &user); err != nil {
		return nil, fmt.Errorf("GetUserByID: %w", err)
	}
	return user.toIdentity(), nil
}

// CreateUser creates a confirmed account with a password
func (c *Client) CreateUser(ctx context.Context, params CreateUserParams) (*models.Identity, error) {
	body := map[string]interface{}{
		"email":         params.Email,
		"password":      params.Password,
		"email_confirm": true,
		"user_metadata": map[string]interface{}{"full_name": params.FullName},
	}

	resp, err := c.doAdmin(ctx, http.MethodPost, "/users", body)
	if err != nil {
		return nil, err
	}

	var user userResource
	if err := decodeResponse(resp, &user); err != nil {
		return nil, fmt.Errorf("CreateUser: %w", err)
	}

	c.logger.Info("identity created", zap.String("identity_id", user.ID))
	return user.toIdentity(), nil
}

// UpdateUser applies the set fields of params
func (c *Client) UpdateUser(ctx context.Context, id string, params UpdateUserParams) (*models.Identity, error) {
	body := map[string]interface{}{}
	if params.Email != nil {
		body["email"] = *params.Email
	}
	if params.Password != nil {
		body["password"] = *params.Password
	}
	if params.FullName != nil {
		body["user_metadata"] = map[string]interface{}{"full_name": *params.FullName}
	}

	resp, err := c.doAdmin(ctx, http.MethodPut, "/users/"+url.PathEscape(id), body)
	if err != nil {
		return nil, err
	}

	var user userResource
	if err := decodeResponse(resp, &user); err != nil {
		return nil, fmt.Errorf("UpdateUser: %w", err)
	}
	return user.toIdentity(), nil
}

// DeleteUser removes an account
func (c *Client) DeleteUser(ctx context.Context, id string) error {
	resp, err := c.doAdmin(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil)
	if err != nil {
		return err
	}
	if err := decodeResponse(resp, nil); err != nil {
		return fmt.Errorf("DeleteUser: %w", err)
	}

	c.logger.Info("identity deleted", zap.String("identity_id", id))
	return nil
}

// CheckReady calls the provider health endpoint
func (c *Client) CheckReady(ctx context.Context) error {
	req, err := c.newRequest(ctx, http.MethodGet, "/auth/v1/health", nil)
	if err != nil {
		return err
	}
	resp, err := c.do(req)
	if err != nil {
		return err
	}
	return decodeResponse(resp, nil)
}

func (c *Client) doAdmin(ctx context.Context, method, path string, body interface{}) (*http.Response, error) {
	req, err := c.newRequest(ctx, method, "/auth/v1/admin"+path, body)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+c.serviceKey)
	return c.do(req)
}

func (c *Client) newRequest(ctx context.Context, method, path string, body interface{}) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("encode request body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("apikey", c.serviceKey)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return req, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity provider request failed: %w", err)
	}

	c.logger.Debug("identity provider call",
		zap.String("method", req.Method),
		zap.String("path", req.URL.Path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("duration", time.Since(start)))
	return resp, nil
}

type errorBody struct {
	Msg              string `json:"msg"`
	Message          string `json:"message"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
	ErrorCode        string `json:"error_code"`
}

func (b errorBody) text() string {
	for _, s := range []string{b.Msg, b.Message, b.ErrorDescription, b.Error} {
		if s != "" {
			return s
		}
	}
	return ""
}

func decodeResponse(resp *http.Response, target interface{}) error {
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return responseError(resp)
	}

	if target != nil {
		if err := json.NewDecoder(resp.Body).Decode(target); err != nil {
			return fmt.Errorf("decode identity provider response: %w", err)
		}
	}
	return nil
}

func responseError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64<<10))

	var body errorBody
	_ = json.Unmarshal(raw, &body)

	if resp.StatusCode == http.StatusNotFound {
		return ErrUserNotFound
	}
	if body.ErrorCode == "email_exists" || strings.Contains(body.text(), "already been registered") {
		return ErrEmailExists
	}

	message := body.text()
	if message == "" {
		message = strings.TrimSpace(string(raw))
	}
	if message == "" {
		message = http.StatusText(resp.StatusCode)
	}
	return &APIError{StatusCode: resp.StatusCode, Code: body.ErrorCode, Message: message}
}
