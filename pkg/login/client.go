package login

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/benmeehan/signal-agent/internal/models"
	"github.com/benmeehan/signal-agent/pkg/jwt"
)

// ErrUnauthorized is returned when the server rejects the credentials.
var ErrUnauthorized = errors.New("credentials rejected")

// Authenticator obtains an access token.
type Authenticator interface {
	Login(ctx context.Context) (models.Credentials, error)
}

// Client logs in against the dashboard's HTTP login endpoint.
type Client struct {
	url      string
	username string
	password string
	http     *http.Client
}

// NewClient creates a login client. A zero timeout leaves requests bounded
// only by the caller's context.
func NewClient(url, username, password string, timeout time.Duration) *Client {
	return &Client{
		url:      url,
		username: username,
		password: password,
		http:     &http.Client{Timeout: timeout},
	}
}

type loginResponse struct {
	Code    int    `json:"code"`
	Expire  string `json:"expire"`
	Token   string `json:"token"`
	Message string `json:"message"`
}

// Login posts the credentials and returns the issued token. The expiry is
// taken from the response, or from the token's exp claim when absent.
func (c *Client) Login(ctx context.Context) (models.Credentials, error) {
	body, err := json.Marshal(models.LoginRequest{Username: c.username, Password: c.password})
	if err != nil {
		return models.Credentials{}, fmt.Errorf("failed to serialize login request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return models.Credentials{}, fmt.Errorf("failed to build login request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return models.Credentials{}, fmt.Errorf("login request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return models.Credentials{}, fmt.Errorf("failed to read login response: %w", err)
	}

	var parsed loginResponse
	decodeErr := json.Unmarshal(raw, &parsed)

	switch {
	case resp.StatusCode == http.StatusUnauthorized:
		if parsed.Message != "" {
			return models.Credentials{}, fmt.Errorf("%w: %s", ErrUnauthorized, parsed.Message)
		}
		return models.Credentials{}, ErrUnauthorized
	case resp.StatusCode != http.StatusOK:
		return models.Credentials{}, fmt.Errorf("login failed with status code %d", resp.StatusCode)
	case decodeErr != nil:
		return models.Credentials{}, fmt.Errorf("failed to decode login response: %w", decodeErr)
	case parsed.Token == "":
		return models.Credentials{}, errors.New("login response carries no token")
	}

	creds := models.Credentials{Token: parsed.Token}
	if parsed.Expire != "" {
		expire, err := time.Parse(time.RFC3339, parsed.Expire)
		if err != nil {
			return models.Credentials{}, fmt.Errorf("invalid expire %q: %w", parsed.Expire, err)
		}
		creds.Expire = expire
	} else {
		creds.Expire = jwt.ExpiryFromClaims(parsed.Token)
	}
	return creds, nil
}
