package notion

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

const (
	DefaultBaseURL = "https://api.notion.com/v1"
	DefaultVersion = "2022-06-28"
	DefaultTimeout = 15 * time.Second

	// PageSize is the fixed query page size. Further pages are not fetched.
	PageSize = 100
)

// APIError is returned for any non-2xx response.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("notion: API error (%d)", e.Status)
	}
	return fmt.Sprintf("notion: API error (%d): %s", e.Status, e.Body)
}

// Config controls how a Client talks to Notion.
type Config struct {
	// BaseURL lets requests go through a proxy. Defaults to DefaultBaseURL.
	BaseURL string
	// Version is sent as the Notion-Version header.
	Version string
	Timeout time.Duration
	// Transport is the underlying round tripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
}

// Client is a Notion REST client bound to one integration token.
type Client struct {
	http    *http.Client
	baseURL string
	version string
}

// NewClient builds a client that authenticates every request with the given
// bearer credential.
func NewClient(credential string, cfg Config) *Client {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultBaseURL
	}
	if cfg.Version == "" {
		cfg.Version = DefaultVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	base := cfg.Transport
	if base == nil {
		base = http.DefaultTransport
	}

	ts := oauth2.StaticTokenSource(&oauth2.Token{
		AccessToken: credential,
		TokenType:   "Bearer",
	})

	return &Client{
		http: &http.Client{
			Timeout:   cfg.Timeout,
			Transport: &oauth2.Transport{Source: ts, Base: base},
		},
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		version: cfg.Version,
	}
}

// ListDatabases returns the databases shared with the integration.
func (c *Client) ListDatabases(ctx context.Context) ([]Database, error) {
	var out listResponse[Database]
	if err := c.do(ctx, http.MethodGet, "/databases", nil, &out); err != nil {
		return nil, fmt.Errorf("list databases: %w", err)
	}
	return out.Results, nil
}

// GetDatabase fetches a single database with its property schema.
func (c *Client) GetDatabase(ctx context.Context, id string) (Database, error) {
	var out Database
	if err := c.do(ctx, http.MethodGet, "/databases/"+url.PathEscape(id), nil, &out); err != nil {
		return Database{}, fmt.Errorf("get database %s: %w", id, err)
	}
	return out, nil
}

// QueryDatabase returns the first page of rows of a database.
func (c *Client) QueryDatabase(ctx context.Context, id string) (QueryResult, error) {
	body := map[string]any{"page_size": PageSize}
	var out QueryResult
	if err := c.do(ctx, http.MethodPost, "/databases/"+url.PathEscape(id)+"/query", body, &out); err != nil {
		return QueryResult{}, fmt.Errorf("query database %s: %w", id, err)
	}
	return out, nil
}

// NewPage describes a row to create.
type NewPage struct {
	DatabaseID string
	TitleField string
	Title      string
	DateField  string
	// Date is YYYY-MM-DD.
	Date string
}

// CreatePage inserts a row. Repeating the call creates another row.
func (c *Client) CreatePage(ctx context.Context, p NewPage) (Page, error) {
	body := map[string]any{
		"parent": map[string]any{"database_id": p.DatabaseID},
		"properties": map[string]any{
			p.TitleField: TitleValue(p.Title),
			p.DateField:  DateValue(p.Date),
		},
	}
	var out Page
	if err := c.do(ctx, http.MethodPost, "/pages", body, &out); err != nil {
		return Page{}, fmt.Errorf("create page in %s: %w", p.DatabaseID, err)
	}
	return out, nil
}

// PagePatch is a partial update; nil fields are not sent.
type PagePatch struct {
	TitleField string
	Title      *string
	DateField  string
	Date       *string
}

// Empty reports whether the patch carries no field.
func (p PagePatch) Empty() bool {
	return p.Title == nil && p.Date == nil
}

// UpdatePage sends only the supplied properties.
func (c *Client) UpdatePage(ctx context.Context, id string, patch PagePatch) (Page, error) {
	props := map[string]any{}
	if patch.Title != nil {
		props[patch.TitleField] = TitleValue(*patch.Title)
	}
	if patch.Date != nil {
		props[patch.DateField] = DateValue(*patch.Date)
	}
	var out Page
	if err := c.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(id), map[string]any{"properties": props}, &out); err != nil {
		return Page{}, fmt.Errorf("update page %s: %w", id, err)
	}
	return out, nil
}

// ArchivePage is Notion's delete: the page is archived, not removed.
func (c *Client) ArchivePage(ctx context.Context, id string) error {
	if err := c.do(ctx, http.MethodPatch, "/pages/"+url.PathEscape(id), map[string]any{"archived": true}, nil); err != nil {
		return fmt.Errorf("archive page %s: %w", id, err)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Notion-Version", c.version)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		text, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{Status: resp.StatusCode, Body: strings.TrimSpace(string(text))}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

// IsAPIError reports whether err carries a Notion API status, and returns it.
func IsAPIError(err error) (*APIError, bool) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}
