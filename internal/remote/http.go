package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"github.com/sethvargo/go-retry"

	"github.com/yanivzohar1971-cmd/Rent-a-Car-sub007/internal/config"
)

// maxErrorBody caps how much of an error response is kept in HTTPError.
const maxErrorBody = 4096

// HTTPClient talks to the document API:
//
//	GET /v1/tenants/{t}/collections/{c}/documents?pageSize=&pageToken=
//	GET /v1/tenants/{t}/collections/{c}/count
//	PUT /v1/tenants/{t}/collections/{c}/documents/{id}
//
// Network errors, 429 and 5xx responses are retried with exponential backoff.
type HTTPClient struct {
	baseURL    string
	token      string
	client     *http.Client
	maxRetries uint64
	retryBase  time.Duration
	pageSize   int
}

// NewHTTPClient creates a client for the document API at cfg.BaseURL.
func NewHTTPClient(cfg config.RemoteHTTPConfig, timeout time.Duration) (*HTTPClient, error) {
	base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/")
	if base == "" {
		return nil, errors.New("remote base URL is required")
	}
	if _, err := url.Parse(base); err != nil {
		return nil, fmt.Errorf("parse remote base URL: %w", err)
	}
	retryBase := time.Duration(cfg.RetryBase)
	if retryBase <= 0 {
		retryBase = 200 * time.Millisecond
	}
	pageSize := cfg.PageSize
	if pageSize <= 0 {
		pageSize = 500
	}
	return &HTTPClient{
		baseURL:    base,
		token:      cfg.Token,
		client:     &http.Client{Timeout: timeout},
		maxRetries: cfg.MaxRetries,
		retryBase:  retryBase,
		pageSize:   pageSize,
	}, nil
}

type documentPage struct {
	Documents     []Document `json:"documents"`
	NextPageToken string     `json:"nextPageToken"`
}

type countResponse struct {
	Count int64 `json:"count"`
}

type upsertRequest struct {
	Fields map[string]any `json:"fields"`
}

func (c *HTTPClient) collectionPath(tenantID, collection string) string {
	return fmt.Sprintf("/v1/tenants/%s/collections/%s", url.PathEscape(tenantID), url.PathEscape(collection))
}

// FetchAll reads every page of a collection.
func (c *HTTPClient) FetchAll(ctx context.Context, tenantID, collection string) ([]Document, error) {
	docs := make([]Document, 0)
	token := ""
	seen := map[string]bool{}
	for {
		q := url.Values{}
		q.Set("pageSize", strconv.Itoa(c.pageSize))
		if token != "" {
			q.Set("pageToken", token)
		}
		var page documentPage
		path := c.collectionPath(tenantID, collection) + "/documents?" + q.Encode()
		if err := c.do(ctx, http.MethodGet, path, nil, &page); err != nil {
			return nil, fmt.Errorf("fetch %s: %w", collection, err)
		}
		for _, d := range page.Documents {
			if d.Fields == nil {
				d.Fields = map[string]any{}
			}
			docs = append(docs, d)
		}
		if page.NextPageToken == "" {
			return docs, nil
		}
		// A token handed out twice means the server is cycling.
		if seen[page.NextPageToken] {
			return nil, fmt.Errorf("fetch %s: page token %q repeated", collection, page.NextPageToken)
		}
		seen[page.NextPageToken] = true
		token = page.NextPageToken
	}
}

// Count returns the number of documents in a collection.
func (c *HTTPClient) Count(ctx context.Context, tenantID, collection string) (int64, error) {
	var resp countResponse
	if err := c.do(ctx, http.MethodGet, c.collectionPath(tenantID, collection)+"/count", nil, &resp); err != nil {
		return 0, fmt.Errorf("count %s: %w", collection, err)
	}
	return resp.Count, nil
}

// Upsert writes one document.
func (c *HTTPClient) Upsert(ctx context.Context, tenantID, collection, id string, fields map[string]any) error {
	body, err := json.Marshal(upsertRequest{Fields: fields})
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", collection, id, err)
	}
	path := c.collectionPath(tenantID, collection) + "/documents/" + url.PathEscape(id)
	if err := c.do(ctx, http.MethodPut, path, body, nil); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, id, err)
	}
	return nil
}

// do sends one logical request, retrying transient failures. Every attempt
// carries the same X-Request-ID so the server can correlate retries.
func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte, out any) error {
	requestID := ulid.Make().String()
	backoff := retry.WithMaxRetries(c.maxRetries, retry.NewExponential(c.retryBase))

	attempt := 0
	return retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempt++
		var reader io.Reader
		if body != nil {
			reader = bytes.NewReader(body)
		}
		req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
		if err != nil {
			return fmt.Errorf("build request: %w", err)
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("X-Request-ID", requestID)
		if body != nil {
			req.Header.Set("Content-Type", "application/json")
		}
		if c.token != "" {
			req.Header.Set("Authorization", "Bearer "+c.token)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			slog.Debug("remote request failed",
				"component", "remote",
				"method", method,
				"path", path,
				"attempt", attempt,
				"request_id", requestID,
				"error", err,
			)
			return retry.RetryableError(err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			httpErr := readHTTPError(resp)
			if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
				slog.Debug("remote request will be retried",
					"component", "remote",
					"method", method,
					"path", path,
					"attempt", attempt,
					"status", resp.StatusCode,
					"request_id", requestID,
				)
				return retry.RetryableError(httpErr)
			}
			return httpErr
		}

		if out == nil {
			_, _ = io.Copy(io.Discard, resp.Body)
			return nil
		}
		dec := json.NewDecoder(resp.Body)
		dec.UseNumber()
		if err := dec.Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
		return nil
	})
}

// readHTTPError builds an HTTPError, preferring the detail of an RFC 7807
// problem body when the server sends one.
func readHTTPError(resp *http.Response) *HTTPError {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	msg := strings.TrimSpace(string(data))
	var problem struct {
		Title  string `json:"title"`
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if json.Unmarshal(data, &problem) == nil {
		switch {
		case problem.Detail != "":
			msg = problem.Detail
		case problem.Error != "":
			msg = problem.Error
		case problem.Title != "":
			msg = problem.Title
		}
	}
	return &HTTPError{StatusCode: resp.StatusCode, Message: msg}
}
