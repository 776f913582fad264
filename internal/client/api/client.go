// Package api is a thin HTTP client for the gophauth user endpoints.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/dmitrijs2005/gophauth/internal/common"
	"github.com/dmitrijs2005/gophauth/internal/server/models"
)

var (
	ErrUnavailable  = errors.New("server unavailable")
	ErrUnauthorized = errors.New("unauthorized")
	ErrNotLoggedIn  = errors.New("not logged in")
)

// Error is a non-2xx response decoded from the server's error body.
type Error struct {
	Status  int
	Type    string              `json:"type"`
	Message string              `json:"error"`
	Fields  []common.FieldError `json:"data"`
}

func (e *Error) Error() string {
	if len(e.Fields) == 0 {
		return e.Message
	}
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+" "+f.Message)
	}
	return fmt.Sprintf("%s (%s)", e.Message, strings.Join(parts, "; "))
}

// Is lets errors.Is(err, ErrUnauthorized) match 401 responses.
func (e *Error) Is(target error) bool {
	return target == ErrUnauthorized && e.Status == http.StatusUnauthorized
}

// Client talks to one gophauth server and remembers the token of the last
// successful register or login.
type Client struct {
	baseURL string
	http    *http.Client
	token   string
}

// New returns a Client for baseURL, e.g. "http://127.0.0.1:4444".
func New(baseURL string, timeout time.Duration) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http: &http.Client{
			Timeout:   timeout,
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
	}
}

// Token returns the current session token, or "".
func (c *Client) Token() string { return c.token }

// Logout forgets the session token.
func (c *Client) Logout() { c.token = "" }

type userBody struct {
	User struct {
		Username string `json:"username"`
		Password string `json:"password"`
	} `json:"user"`
}

func credentials(username string, password []byte) userBody {
	var b userBody
	b.User.Username = username
	b.User.Password = string(password)
	return b
}

// Register creates an account and keeps the returned token.
func (c *Client) Register(ctx context.Context, username string, password []byte) (models.PublicUser, error) {
	return c.authenticate(ctx, "/api/users", username, password)
}

// Login exchanges credentials for a token and keeps it.
func (c *Client) Login(ctx context.Context, username string, password []byte) (models.PublicUser, error) {
	return c.authenticate(ctx, "/api/users/login", username, password)
}

func (c *Client) authenticate(ctx context.Context, path, username string, password []byte) (models.PublicUser, error) {
	var env models.Envelope
	if err := c.do(ctx, http.MethodPost, path, credentials(username, password), &env); err != nil {
		return models.PublicUser{}, err
	}
	c.token = env.User.Token
	return env.User, nil
}

// Me fetches the user bound to the current token.
func (c *Client) Me(ctx context.Context) (models.PublicUser, error) {
	if c.token == "" {
		return models.PublicUser{}, ErrNotLoggedIn
	}
	var env models.Envelope
	if err := c.do(ctx, http.MethodGet, "/api/user", nil, &env); err != nil {
		return models.PublicUser{}, err
	}
	return env.User, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		apiErr := &Error{Status: resp.StatusCode}
		if err := json.NewDecoder(resp.Body).Decode(apiErr); err != nil || apiErr.Message == "" {
			apiErr.Message = resp.Status
		}
		return apiErr
	}

	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
