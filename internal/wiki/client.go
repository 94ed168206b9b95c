// Package wiki is a client for the MediaWiki action API, including the
// Semantic MediaWiki ask endpoint.
package wiki

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loreworks/mwassist/internal/domain"
)

// maxTitlesPerQuery matches the action API's batch limit for non-bot callers.
const maxTitlesPerQuery = 50

// Authorizer attaches outbound credentials for requests made on behalf of a
// wiki user. Access checks must run as that user, not as a service account.
type Authorizer interface {
	Authorize(req *http.Request, identity *domain.Identity) error
}

// BearerAuthorizer forwards a static bearer token per tenant.
type BearerAuthorizer struct {
	Tokens map[string]string // tenant id -> token
}

func (a *BearerAuthorizer) Authorize(req *http.Request, identity *domain.Identity) error {
	token, ok := a.Tokens[identity.TenantID]
	if !ok {
		return domain.NewDomainError(domain.ErrCodeConfiguration, "no wiki credentials for tenant")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	return nil
}

// Page is the fetched content of one wiki page.
type Page struct {
	Title        string     `json:"title"`
	Namespace    int        `json:"namespace"`
	Text         string     `json:"text"`
	LastModified *time.Time `json:"last_modified,omitempty"`
}

// SearchHit is one full-text search match.
type SearchHit struct {
	Title   string `json:"title"`
	Snippet string `json:"snippet,omitempty"`
}

// Client talks to one MediaWiki installation's api.php.
type Client struct {
	baseURL    string
	httpClient *http.Client
	authorizer Authorizer
}

type Option func(*Client)

func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

func WithAuthorizer(a Authorizer) Option {
	return func(c *Client) { c.authorizer = a }
}

func NewClient(baseURL string, opts ...Option) (*Client, error) {
	if baseURL == "" {
		return nil, domain.NewDomainError(domain.ErrCodeConfiguration, "wiki API base URL is not set")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) do(ctx context.Context, identity *domain.Identity, params url.Values, out interface{}) error {
	params.Set("format", "json")
	params.Set("formatversion", "2")

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/api.php?"+params.Encode(), nil)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeInternalError, "failed to build wiki request", err)
	}
	if c.authorizer != nil {
		if err := c.authorizer.Authorize(req, identity); err != nil {
			return err
		}
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeTransport, "wiki request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return domain.NewDomainError(domain.ErrCodeTransport,
			fmt.Sprintf("wiki API returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return domain.NewDomainErrorWithCause(domain.ErrCodeResponseValidation, "failed to decode wiki response", err)
	}
	return nil
}

type apiError struct {
	Error *struct {
		Code string `json:"code"`
		Info string `json:"info"`
	} `json:"error"`
}

func (e *apiError) check() error {
	if e.Error != nil {
		return domain.NewDomainError(domain.ErrCodeTransport,
			fmt.Sprintf("wiki API error %s: %s", e.Error.Code, e.Error.Info))
	}
	return nil
}

// GetPageText fetches a page's current wikitext and revision timestamp.
func (c *Client) GetPageText(ctx context.Context, identity *domain.Identity, title string) (*Page, error) {
	if title == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "page title is required")
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("prop", "revisions")
	params.Set("rvprop", "content|timestamp")
	params.Set("rvslots", "main")
	params.Set("titles", title)

	var payload struct {
		apiError
		Query struct {
			Pages []struct {
				Title     string `json:"title"`
				Namespace int    `json:"ns"`
				Missing   bool   `json:"missing"`
				Revisions []struct {
					Timestamp time.Time `json:"timestamp"`
					Slots     struct {
						Main struct {
							Content string `json:"content"`
						} `json:"main"`
					} `json:"slots"`
				} `json:"revisions"`
			} `json:"pages"`
		} `json:"query"`
	}
	if err := c.do(ctx, identity, params, &payload); err != nil {
		return nil, err
	}
	if err := payload.check(); err != nil {
		return nil, err
	}
	if len(payload.Query.Pages) == 0 || payload.Query.Pages[0].Missing {
		return nil, domain.ErrPageNotFound
	}

	p := payload.Query.Pages[0]
	page := &Page{Title: p.Title, Namespace: p.Namespace}
	if len(p.Revisions) > 0 {
		page.Text = p.Revisions[0].Slots.Main.Content
		ts := p.Revisions[0].Timestamp
		page.LastModified = &ts
	}
	return page, nil
}

// CheckReadAccess asks the wiki whether the calling user may read each title.
// Missing pages and pages absent from the response come back false. Returns
// an error on any transport or API failure; callers must treat that as denial.
func (c *Client) CheckReadAccess(ctx context.Context, identity *domain.Identity, titles []string) (map[string]bool, error) {
	access := make(map[string]bool, len(titles))
	if len(titles) == 0 {
		return access, nil
	}
	for _, t := range titles {
		access[t] = false
	}

	for start := 0; start < len(titles); start += maxTitlesPerQuery {
		end := start + maxTitlesPerQuery
		if end > len(titles) {
			end = len(titles)
		}

		params := url.Values{}
		params.Set("action", "query")
		params.Set("prop", "info")
		params.Set("intestactions", "read")
		params.Set("titles", strings.Join(titles[start:end], "|"))

		var payload struct {
			apiError
			Query struct {
				Pages []struct {
					Title   string `json:"title"`
					Missing bool   `json:"missing"`
					Actions struct {
						Read bool `json:"read"`
					} `json:"actions"`
				} `json:"pages"`
			} `json:"query"`
		}
		if err := c.do(ctx, identity, params, &payload); err != nil {
			return nil, err
		}
		if err := payload.check(); err != nil {
			return nil, err
		}

		for _, p := range payload.Query.Pages {
			if p.Missing {
				continue
			}
			if _, known := access[p.Title]; known {
				access[p.Title] = p.Actions.Read
			}
		}
	}
	return access, nil
}

// RunAsk executes a Semantic MediaWiki ask query and returns the raw results
// object. The query language is passed through untouched; the wiki enforces
// its own limits.
func (c *Client) RunAsk(ctx context.Context, identity *domain.Identity, query string) (json.RawMessage, error) {
	if query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "ask query is required")
	}

	params := url.Values{}
	params.Set("action", "ask")
	params.Set("query", query)

	var payload struct {
		apiError
		Query json.RawMessage `json:"query"`
	}
	if err := c.do(ctx, identity, params, &payload); err != nil {
		return nil, err
	}
	if err := payload.check(); err != nil {
		return nil, err
	}
	return payload.Query, nil
}

// SearchPages runs a full-text search via list=search.
func (c *Client) SearchPages(ctx context.Context, identity *domain.Identity, query string, limit int) ([]SearchHit, error) {
	if query == "" {
		return nil, domain.NewDomainError(domain.ErrCodeValidation, "search query is required")
	}
	if limit <= 0 || limit > 50 {
		limit = 10
	}

	params := url.Values{}
	params.Set("action", "query")
	params.Set("list", "search")
	params.Set("srsearch", query)
	params.Set("srlimit", fmt.Sprintf("%d", limit))

	var payload struct {
		apiError
		Query struct {
			Search []struct {
				Title   string `json:"title"`
				Snippet string `json:"snippet"`
			} `json:"search"`
		} `json:"query"`
	}
	if err := c.do(ctx, identity, params, &payload); err != nil {
		return nil, err
	}
	if err := payload.check(); err != nil {
		return nil, err
	}

	hits := make([]SearchHit, 0, len(payload.Query.Search))
	for _, s := range payload.Query.Search {
		hits = append(hits, SearchHit{Title: s.Title, Snippet: s.Snippet})
	}
	return hits, nil
}
