package mailjet

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient_MissingCredentials(t *testing.T) {
	t.Parallel()

	_, err := NewClient("", "secret", ClientOptions{})
	assert.ErrorIs(t, err, ErrMissingCredentials)

	_, err = NewClient("key", "", ClientOptions{})
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestNewClient_Endpoint(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		opts ClientOptions
		want string
	}{
		{name: "defaults", opts: ClientOptions{}, want: "https://api.mailjet.com/v3/send"},
		{name: "structured", opts: ClientOptions{Version: Structured}, want: "https://api.mailjet.com/v3.1/send"},
		{name: "insecure custom host", opts: ClientOptions{URL: "mj.internal:8080", Insecure: true}, want: "http://mj.internal:8080/v3/send"},
		{name: "full base url", opts: ClientOptions{URL: "http://127.0.0.1:9999/", Version: Structured}, want: "http://127.0.0.1:9999/v3.1/send"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c, err := NewClient("key", "secret", tt.opts)
			require.NoError(t, err)
			assert.Equal(t, tt.want, c.Endpoint())
		})
	}
}

func TestClient_PostSuccess(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, pass, ok := r.BasicAuth()
		if !ok || user != "key" || pass != "secret" {
			t.Errorf("basic auth: got %q/%q/%v", user, pass, ok)
		}
		if r.URL.Path != "/v3/send" {
			t.Errorf("path: got %q, want /v3/send", r.URL.Path)
		}
		if got := r.Header.Get("Content-Type"); got != "application/json" {
			t.Errorf("Content-Type: got %q", got)
		}

		var body map[string]any
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode body: %v", err)
		}
		if body["Subject"] != "Hi" {
			t.Errorf("Subject: got %v", body["Subject"])
		}

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"Sent":[{"Email":"a@example.com"}]}`))
	}))
	defer server.Close()

	c, err := NewClient("key", "secret", ClientOptions{URL: server.URL, HTTPClient: server.Client()})
	require.NoError(t, err)

	resp, err := c.Post(context.Background(), map[string]any{"Subject": "Hi"})
	require.NoError(t, err)
	assert.True(t, resp.Success())
	assert.NoError(t, resp.Err())
	assert.JSONEq(t, `{"Sent":[{"Email":"a@example.com"}]}`, string(resp.Body))
}

func TestClient_PostRejectedIsNotAnError(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"ErrorInfo":"Recipients","ErrorMessage":"Invalid recipient","StatusCode":400}`))
	}))
	defer server.Close()

	c, err := NewClient("key", "secret", ClientOptions{URL: server.URL})
	require.NoError(t, err)

	resp, err := c.Post(context.Background(), map[string]any{})
	require.NoError(t, err)
	assert.False(t, resp.Success())

	var apiErr *APIError
	require.True(t, errors.As(resp.Err(), &apiErr))
	assert.Equal(t, http.StatusBadRequest, apiErr.StatusCode)
	assert.Equal(t, "Invalid recipient: Recipients", apiErr.Message)
	assert.Equal(t, "Mailjet API error (HTTP 400): Invalid recipient: Recipients", apiErr.Error())
}

func TestClient_DryRunSkipsNetwork(t *testing.T) {
	t.Parallel()

	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
	}))
	defer server.Close()

	c, err := NewClient("key", "secret", ClientOptions{URL: server.URL, DryRun: true})
	require.NoError(t, err)

	resp, err := c.Post(context.Background(), map[string]any{"Subject": "x"})
	require.NoError(t, err)
	assert.True(t, resp.DryRun)
	assert.True(t, resp.Success())
	assert.Zero(t, calls.Load())
}

func TestClient_TransportFailure(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	c, err := NewClient("key", "secret", ClientOptions{URL: url})
	require.NoError(t, err)

	_, err = c.Post(context.Background(), map[string]any{})
	assert.Error(t, err)
}

func TestResponse_ErrStructuredErrors(t *testing.T) {
	t.Parallel()

	resp := &Response{
		StatusCode: http.StatusBadRequest,
		Body:       []byte(`{"Messages":[{"Status":"error","Errors":[{"ErrorMessage":"Type mismatch"}]}]}`),
	}

	var apiErr *APIError
	require.True(t, errors.As(resp.Err(), &apiErr))
	assert.Equal(t, "Type mismatch", apiErr.Message)
}
