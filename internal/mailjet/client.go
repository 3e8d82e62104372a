package mailjet

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
)

const (
	// DefaultAPIHost is the Mailjet API domain.
	DefaultAPIHost = "api.mailjet.com"

	// defaultTimeout bounds one Send API call.
	defaultTimeout = 30 * time.Second

	// maxResponseSize caps how much of a response body is kept.
	maxResponseSize = 1 << 20
)

// ErrMissingCredentials is returned when the API key or secret is not configured.
var ErrMissingCredentials = errors.New("mailjet API key and secret are required")

// Poster issues a Send API request.
type Poster interface {
	Post(ctx context.Context, payload any) (*Response, error)
}

// Response is the provider's answer to a send call.
type Response struct {
	StatusCode int
	Body       []byte
	// DryRun is set when the call was skipped because API calls are disabled.
	DryRun bool
}

// Success reports whether the provider accepted the request.
func (r *Response) Success() bool {
	return r != nil && r.StatusCode >= 200 && r.StatusCode < 300
}

// Err describes a rejected response, or returns nil on success.
func (r *Response) Err() error {
	if r == nil {
		return errors.New("no response from Mailjet API")
	}
	if r.Success() {
		return nil
	}

	var body struct {
		ErrorMessage string `json:"ErrorMessage"`
		ErrorInfo    string `json:"ErrorInfo"`
		Messages     []struct {
			Errors []struct {
				ErrorMessage string `json:"ErrorMessage"`
			} `json:"Errors"`
		} `json:"Messages"`
	}
	msg := strings.TrimSpace(string(r.Body))
	if err := json.Unmarshal(r.Body, &body); err == nil {
		switch {
		case body.ErrorMessage != "":
			msg = body.ErrorMessage
			if body.ErrorInfo != "" {
				msg += ": " + body.ErrorInfo
			}
		default:
			for _, m := range body.Messages {
				if len(m.Errors) > 0 {
					msg = m.Errors[0].ErrorMessage
					break
				}
			}
		}
	}
	return &APIError{StatusCode: r.StatusCode, Message: msg}
}

// APIError is a Send API call answered with a non-success status.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("Mailjet API error (HTTP %d): %s", e.StatusCode, e.Message)
}

// ClientOptions are passed through from configuration to the HTTP client.
type ClientOptions struct {
	// URL is the API host, or a full base URL including the scheme.
	URL string
	// Version selects the /v3/send or /v3.1/send endpoint.
	Version SchemaVersion
	// Insecure switches the scheme to plain http.
	Insecure bool
	// DryRun skips the network call and reports success.
	DryRun bool
	// Timeout bounds one request when HTTPClient is not set.
	Timeout time.Duration
	// HTTPClient overrides the default client.
	HTTPClient *http.Client
}

// Client calls the Mailjet Send API with basic authentication.
type Client struct {
	apiKey     string
	apiSecret  string
	endpoint   string
	dryRun     bool
	httpClient *http.Client
}

// NewClient creates a Client. It fails with ErrMissingCredentials when either
// credential is empty.
func NewClient(apiKey, apiSecret string, opts ClientOptions) (*Client, error) {
	if apiKey == "" || apiSecret == "" {
		return nil, ErrMissingCredentials
	}

	version := opts.Version
	if version == "" {
		version = Legacy
	}

	base := opts.URL
	if base == "" {
		base = DefaultAPIHost
	}
	if !strings.Contains(base, "://") {
		scheme := "https"
		if opts.Insecure {
			scheme = "http"
		}
		base = scheme + "://" + base
	}

	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = defaultTimeout
		}
		client = &http.Client{Timeout: timeout}
	}

	return &Client{
		apiKey:     apiKey,
		apiSecret:  apiSecret,
		endpoint:   strings.TrimRight(base, "/") + "/" + string(version) + "/send",
		dryRun:     opts.DryRun,
		httpClient: client,
	}, nil
}

// Endpoint returns the send URL used by the client.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Post sends payload as JSON. Transport failures are returned as errors; a
// non-success HTTP status is returned as a Response.
func (c *Client) Post(ctx context.Context, payload any) (*Response, error) {
	bodyJSON, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request body: %w", err)
	}

	if c.dryRun {
		slog.Debug("mailjet API call disabled, skipping request",
			"endpoint", c.endpoint,
			"bytes", len(bodyJSON),
		)
		return &Response{StatusCode: http.StatusOK, DryRun: true}, nil
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(bodyJSON))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.apiKey, c.apiSecret)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	return &Response{StatusCode: resp.StatusCode, Body: body}, nil
}
