package frank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/frankenergie/frankenergie/pkg/common"
	"github.com/frankenergie/frankenergie/pkg/log"
	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/levenlabs/go-lflag"
)

// DefaultURL is the production GraphQL endpoint.
const DefaultURL = "https://frank-graphql-prod.graphcdn.app/"

// Config holds the flag-driven settings used to construct Clients.
type Config struct {
	URL     string
	Timeout time.Duration
}

// Configured registers the client flags and returns the Config they populate.
func Configured() *Config {
	apiURL := lflag.String("frank-api-url", DefaultURL, "Frank Energie GraphQL endpoint")
	timeout := lflag.Duration("frank-http-timeout", 30*time.Second, "Timeout for a single Frank Energie API request")

	c := &Config{URL: DefaultURL, Timeout: 30 * time.Second}
	lflag.Do(func() {
		c.URL = *apiURL
		c.Timeout = *timeout
	})
	return c
}

// New returns a client for auth. An empty Authentication yields a client that
// can only query public prices.
func (c *Config) New(auth types.Authentication) *Client {
	return NewClient(c.URL, common.HTTPClient(c.Timeout), auth)
}

// Client talks to the Frank Energie GraphQL API. It is safe for concurrent
// use; the token pair is replaced on Login and RenewToken.
type Client struct {
	client *http.Client
	url    string

	mu   sync.Mutex
	auth types.Authentication
}

// NewClient returns a Client for the given endpoint.
func NewClient(url string, httpClient *http.Client, auth types.Authentication) *Client {
	return &Client{
		client: httpClient,
		url:    url,
		auth:   auth,
	}
}

// IsAuthenticated returns true when the client holds an auth token.
func (c *Client) IsAuthenticated() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.auth.Empty()
}

// Authentication returns the current token pair.
func (c *Client) Authentication() types.Authentication {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.auth
}

func (c *Client) setAuthentication(auth types.Authentication) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.auth = auth
}

type graphQLRequest struct {
	OperationName string         `json:"operationName"`
	Query         string         `json:"query"`
	Variables     map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
	Path    []any  `json:"path"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors"`
}

// do runs a single GraphQL operation and decodes its data into dest. Every
// returned error wraps one of ErrTransient, ErrAuthExpired or
// ErrReauthRequired.
func (c *Client) do(ctx context.Context, op, query string, vars map[string]any, dest any) error {
	body, err := json.Marshal(graphQLRequest{
		OperationName: op,
		Query:         query,
		Variables:     vars,
	})
	if err != nil {
		return fmt.Errorf("%w: failed to marshal %s request: %w", ErrTransient, op, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: failed to create %s request: %w", ErrTransient, op, err)
	}
	req.Header.Set("Content-Type", "application/json")

	auth := c.Authentication()
	hasToken := !auth.Empty()
	if hasToken {
		req.Header.Set("Authorization", "Bearer "+auth.AuthToken)
	}

	log.Ctx(ctx).DebugContext(ctx, "frank request", slog.String("operation", op), slog.Bool("authenticated", hasToken))

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s request failed: %w", ErrTransient, op, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: failed to read %s response: %w", ErrTransient, op, err)
	}

	switch {
	case resp.StatusCode == http.StatusUnauthorized && hasToken:
		return fmt.Errorf("%w: %s returned status %d", ErrAuthExpired, op, resp.StatusCode)
	case resp.StatusCode != http.StatusOK:
		log.Ctx(ctx).WarnContext(
			ctx,
			"frank request returned non-OK status",
			slog.String("operation", op),
			slog.Int("status", resp.StatusCode),
		)
		return fmt.Errorf("%w: %s returned status %d", ErrTransient, op, resp.StatusCode)
	}

	var gqlResp graphQLResponse
	if err := json.Unmarshal(respBody, &gqlResp); err != nil {
		return fmt.Errorf("%w: failed to decode %s response: %w", ErrTransient, op, err)
	}

	if len(gqlResp.Errors) > 0 {
		first := gqlResp.Errors[0]
		reqErr := &RequestError{Operation: op, Message: first.Message}
		for _, p := range first.Path {
			reqErr.Path = append(reqErr.Path, fmt.Sprint(p))
		}
		log.Ctx(ctx).DebugContext(
			ctx,
			"frank request returned errors",
			slog.String("operation", op),
			slog.String("message", first.Message),
			slog.Int("count", len(gqlResp.Errors)),
		)
		return classify(reqErr, hasToken)
	}

	if dest == nil {
		return nil
	}
	if len(gqlResp.Data) == 0 || string(gqlResp.Data) == "null" {
		return fmt.Errorf("%w: %s response has no data", ErrTransient, op)
	}
	if err := json.Unmarshal(gqlResp.Data, dest); err != nil {
		return fmt.Errorf("%w: failed to decode %s data: %w", ErrTransient, op, err)
	}
	return nil
}

// requireAuth returns an ErrReauthRequired error if the client has no token.
func (c *Client) requireAuth(op string) error {
	if !c.IsAuthenticated() {
		return fmt.Errorf("%w: %s requires authentication", ErrReauthRequired, op)
	}
	return nil
}
