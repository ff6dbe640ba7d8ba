// Package daybook is a small HTTP client for the daybook server API.
// It covers the operations the CLI needs: health, search, bulk import
// with streamed progress, and weekly reports.
package daybook

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hyperengineering/daybook/internal/types"
)

// Client talks to a daybook server.
type Client struct {
	baseURL string
	http    *http.Client
}

// New creates a client for the server at baseURL, e.g. "http://localhost:8080".
func New(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		http: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// Health checks connectivity and returns the server's health payload.
func (c *Client) Health(ctx context.Context) (*types.HealthResponse, error) {
	var resp types.HealthResponse
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/health", nil, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Search runs the query pipeline over the journal.
func (c *Client) Search(ctx context.Context, query string) (*types.SearchResponse, error) {
	var resp types.SearchResponse
	req := types.SearchRequest{Query: query}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// WeeklyReport fetches or generates the report for the week containing date.
func (c *Client) WeeklyReport(ctx context.Context, date string) (*types.Report, error) {
	var resp types.Report
	req := types.WeeklyReportRequest{Date: date}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/reports/weekly", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Import streams a bulk import. onLine is called once per progress line as
// the server produces them. Import does not time out; large imports can run
// for many minutes, so cancel via ctx instead.
func (c *Client) Import(ctx context.Context, text string, onLine func(string)) error {
	body, err := json.Marshal(types.ImportRequest{Text: text})
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/api/v1/import", bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	// A fresh client without the default timeout; the stream stays open for
	// the whole import run.
	streamClient := &http.Client{}
	resp, err := streamClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return decodeProblem(resp)
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		if onLine != nil {
			onLine(scanner.Text())
		}
	}
	if err := scanner.Err(); err != nil {
		return fmt.Errorf("reading progress stream: %w", err)
	}
	return nil
}

// doJSON sends a JSON request and decodes a JSON response into out.
func (c *Client) doJSON(ctx context.Context, method, path string, body, out any) error {
	var reqBody io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
		reqBody = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reqBody)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return decodeProblem(resp)
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// APIError is a server-side failure decoded from an RFC 7807 response.
type APIError struct {
	Status int
	Title  string
	Detail string
}

func (e *APIError) Error() string {
	if e.Detail != "" {
		return fmt.Sprintf("%s (%d): %s", e.Title, e.Status, e.Detail)
	}
	return fmt.Sprintf("%s (%d)", e.Title, e.Status)
}

func decodeProblem(resp *http.Response) error {
	var p struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&p); err != nil || p.Title == "" {
		return &APIError{Status: resp.StatusCode, Title: http.StatusText(resp.StatusCode)}
	}
	return &APIError{Status: resp.StatusCode, Title: p.Title, Detail: p.Detail}
}
