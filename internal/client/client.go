package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/branchd-dev/roleportal/internal/session"
)

const (
	defaultTimeout  = 30 * time.Second
	maxResponseSize = 1 << 20
)

// Client represents an HTTP client for the remote authentication API.
// It never touches a session store; callers decide what to persist.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// New creates a new API client
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = defaultTimeout
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
	}
}

// SetHTTPClient sets a custom HTTP client
func (c *Client) SetHTTPClient(httpClient *http.Client) {
	c.httpClient = httpClient
}

// LoginRequest represents the login request body
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// RegisterRequest represents the registration request body
type RegisterRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

type loginResponse struct {
	Token *string `json:"token"`
	User  *struct {
		Role  string `json:"role"`
		Name  string `json:"name"`
		Email string `json:"email"`
	} `json:"user"`
}

// RecordID accepts both string and numeric ids from the server
type RecordID string

func (id *RecordID) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*id = RecordID(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("invalid id %s", string(data))
	}
	*id = RecordID(n.String())
	return nil
}

// UserRecord is one row of the admin user listing
type UserRecord struct {
	ID        RecordID  `json:"id"`
	Name      string    `json:"name"`
	Email     string    `json:"email"`
	Role      string    `json:"role"`
	CreatedAt time.Time `json:"created_at"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Login authenticates the user and returns the session issued by the server
func (c *Client) Login(ctx context.Context, email, password string) (session.Session, error) {
	resp, err := c.do(ctx, http.MethodPost, "/login", "", LoginRequest{
		Email:    email,
		Password: password,
	})
	if err != nil {
		return session.Session{}, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return session.Session{}, failure(resp, false)
	}

	var body loginResponse
	if err := decode(resp, &body); err != nil {
		return session.Session{}, err
	}

	if body.Token == nil || *body.Token == "" {
		return session.Session{}, malformed(resp.StatusCode, errors.New("response has no token"))
	}
	if body.User == nil {
		return session.Session{}, malformed(resp.StatusCode, errors.New("response has no user"))
	}

	role, err := session.ParseRole(body.User.Role)
	if err != nil {
		return session.Session{}, malformed(resp.StatusCode, err)
	}

	return session.Session{
		Token: *body.Token,
		Role:  role,
		Profile: session.Profile{
			Name:  body.User.Name,
			Email: body.User.Email,
		},
	}, nil
}

// Register creates an account. Success carries no session.
func (c *Client) Register(ctx context.Context, name, email, password string, role session.Role) error {
	resp, err := c.do(ctx, http.MethodPost, "/register", "", RegisterRequest{
		Name:     name,
		Email:    email,
		Password: password,
		Role:     string(role),
	})
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return failure(resp, false)
	}

	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxResponseSize))
	return nil
}

// FetchUsers lists all users with the given bearer token
func (c *Client) FetchUsers(ctx context.Context, token string) ([]UserRecord, error) {
	resp, err := c.do(ctx, http.MethodGet, "/admin/users", token, nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if !isSuccess(resp.StatusCode) {
		return nil, failure(resp, true)
	}

	var users []UserRecord
	if err := decode(resp, &users); err != nil {
		return nil, err
	}
	if users == nil {
		users = []UserRecord{}
	}

	return users, nil
}

func (c *Client) do(ctx context.Context, method, path, token string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request: %w", err)
		}
		reader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", token))
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, unreachable(err)
	}

	return resp, nil
}

func isSuccess(status int) bool {
	return status >= 200 && status < 300
}

func decode(resp *http.Response, v any) error {
	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return unreachable(fmt.Errorf("failed to read response: %w", err))
	}

	if err := json.Unmarshal(data, v); err != nil {
		return malformed(resp.StatusCode, fmt.Errorf("failed to decode response: %w", err))
	}

	return nil
}

// failure maps a non-2xx response onto the error taxonomy.
// 401/403 mean Unauthorized only for calls carrying a session token;
// on login they are ordinary credential rejections.
func failure(resp *http.Response, bearer bool) error {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))

	var body errorResponse
	message := ""
	if err := json.Unmarshal(data, &body); err == nil {
		message = strings.TrimSpace(body.Error)
	}

	status := resp.StatusCode
	switch {
	case bearer && (status == http.StatusUnauthorized || status == http.StatusForbidden):
		return unauthorized(status, message)
	case status >= 400 && status < 500 && message != "":
		return rejected(status, message)
	default:
		return malformed(status, fmt.Errorf("unexpected response: %s", summarize(data)))
	}
}

func summarize(data []byte) string {
	const limit = 200
	s := strings.TrimSpace(string(data))
	if s == "" {
		return "empty body"
	}
	if len(s) > limit {
		return s[:limit] + "... (" + strconv.Itoa(len(s)) + " bytes)"
	}
	return s
}
