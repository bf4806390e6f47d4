package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/aupadhyay/thoughts/internal/config"
	"github.com/aupadhyay/thoughts/internal/surface"
)

// apiClient calls the action routes of a running server.
type apiClient struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

var newAPIClient = func() (*apiClient, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return &apiClient{
		baseURL:    cfg.BaseURL(),
		token:      cfg.Server.Token,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}, nil
}

// actionError is a failure reported by the server in the ErrorBody shape.
type actionError struct {
	Status int
	Body   surface.ErrorBody
}

func (e *actionError) Error() string {
	if e.Body.Kind == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Body.Error)
	}
	return fmt.Sprintf("%s (%s)", e.Body.Error, e.Body.Kind)
}

func (c *apiClient) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshalling request: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("server not reachable, is `thoughts serve` running? (%w)", err)
	}
	return resp, nil
}

func (c *apiClient) get(ctx context.Context, path string) (*http.Response, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// call invokes the named action with in as the JSON body and decodes the
// result into out. A nil in sends an empty object.
func (c *apiClient) call(ctx context.Context, op string, in, out any) error {
	if in == nil {
		in = struct{}{}
	}
	resp, err := c.do(ctx, http.MethodPost, "/"+op, in)
	if err != nil {
		return err
	}
	return decodeJSON(resp, out)
}

func decodeJSON(resp *http.Response, v any) error {
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return fmt.Errorf("server returned %d (failed to read body: %w)", resp.StatusCode, err)
		}
		ae := &actionError{Status: resp.StatusCode}
		if json.Unmarshal(data, &ae.Body) != nil || ae.Body.Error == "" {
			ae.Body = surface.ErrorBody{Error: string(bytes.TrimSpace(data))}
		}
		return ae
	}
	if v == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

// isActionError reports whether err came back from the server rather than
// from the transport.
func isActionError(err error) bool {
	var ae *actionError
	return errors.As(err, &ae)
}
