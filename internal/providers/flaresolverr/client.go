// Package flaresolverr is a minimal client for the FlareSolverr v1 API.
// Providers fall back to it when an upstream answers with a browser
// challenge instead of JSON.
package flaresolverr

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

	"moviestream/catalogservice/internal/metrics"
)

const maxSolutionBytes = 8 << 20

var ErrDisabled = errors.New("flaresolverr is not configured")

type Client struct {
	baseURL string
	client  *http.Client
}

// New returns a client for the FlareSolverr instance at baseURL. An empty
// baseURL yields a disabled client; Solve then returns ErrDisabled.
func New(baseURL string, client *http.Client) *Client {
	if client == nil {
		client = &http.Client{Timeout: 70 * time.Second}
	}
	return &Client{
		baseURL: strings.TrimSpace(baseURL),
		client:  client,
	}
}

func (c *Client) Enabled() bool {
	return c != nil && c.baseURL != ""
}

type solveRequest struct {
	Cmd        string `json:"cmd"`
	URL        string `json:"url"`
	MaxTimeout int    `json:"maxTimeout"`
}

type solveResponse struct {
	Status   string `json:"status"`
	Message  string `json:"message"`
	Solution struct {
		URL      string `json:"url"`
		Status   int    `json:"status"`
		Response string `json:"response"`
	} `json:"solution"`
}

// Solve fetches targetURL through FlareSolverr and returns the rendered
// response body. A single attempt is made; the caller decides whether the
// result is usable.
func (c *Client) Solve(ctx context.Context, targetURL string) (string, error) {
	if !c.Enabled() {
		return "", ErrDisabled
	}

	payload, err := json.Marshal(solveRequest{
		Cmd:        "request.get",
		URL:        targetURL,
		MaxTimeout: 60000,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"v1", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	started := time.Now()
	resp, err := c.client.Do(req)
	metrics.FlareSolverrDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return "", fmt.Errorf("flaresolverr request failed (status %d): %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var solved solveResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxSolutionBytes)).Decode(&solved); err != nil {
		return "", fmt.Errorf("decode flaresolverr response: %w", err)
	}
	if solved.Status != "ok" {
		return "", fmt.Errorf("flaresolverr solve failed: %s", strings.TrimSpace(solved.Message))
	}
	if solved.Solution.Status >= 400 {
		return "", fmt.Errorf("flaresolverr upstream status %d", solved.Solution.Status)
	}
	return solved.Solution.Response, nil
}
