// Package sourceforge is a thin bearer-token REST client for the
// source-forge provider spec.md §6 describes: issues list, issue
// detail, and repos. It is an out-of-core collaborator — nothing in
// internal/orchestrator's state machine calls it directly; it exists
// for the Request Surface's source-forge sync features to use when a
// project's environment file enables them.
package sourceforge

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"time"
)

// DefaultBaseURL is the provider's REST API root.
const DefaultBaseURL = "https://api.sourceforge.example/v3"

// Client calls the source-forge REST API with bearer-token auth from a
// project's environment file.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
	repo       string
}

// Config configures a new Client.
type Config struct {
	// Token authenticates every request (Authorization: Bearer <token>).
	Token string
	// Repo is the owner/name slug requests are scoped to.
	Repo string
	// BaseURL overrides DefaultBaseURL, for tests.
	BaseURL string
	// HTTPClient overrides the default client, for tests.
	HTTPClient *http.Client
}

// New creates a Client. Token must be non-empty.
func New(cfg Config) (*Client, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("source-forge token is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{httpClient: httpClient, baseURL: baseURL, token: cfg.Token, repo: cfg.Repo}, nil
}

// Repo describes one repository the token can access.
type Repo struct {
	Slug        string    `json:"slug"`
	Name        string    `json:"name"`
	Description string    `json:"description"`
	DefaultRef  string    `json:"defaultRef"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// Issue is a source-forge issue summary.
type Issue struct {
	Number    int       `json:"number"`
	Title     string    `json:"title"`
	State     string    `json:"state"`
	Labels    []string  `json:"labels"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// IssueDetail is one issue's full body plus its summary fields.
type IssueDetail struct {
	Issue
	Body     string   `json:"body"`
	Assignee string   `json:"assignee,omitempty"`
	Comments []string `json:"comments,omitempty"`
}

// wire shapes mirror the provider's snake_case/unix-time response
// format; get translates them into the camelCase/parsed-date shapes
// above on every call.
type wireRepo struct {
	Slug        string `json:"slug"`
	Name        string `json:"name"`
	Description string `json:"description"`
	DefaultRef  string `json:"default_branch"`
	UpdatedAt   int64  `json:"updated_at"`
}

type wireIssue struct {
	Number    int      `json:"number"`
	Title     string   `json:"title"`
	State     string   `json:"state"`
	Labels    []string `json:"labels"`
	CreatedAt int64    `json:"created_at"`
	UpdatedAt int64    `json:"updated_at"`
}

type wireIssueDetail struct {
	wireIssue
	Body     string   `json:"body"`
	Assignee string   `json:"assignee"`
	Comments []string `json:"comments"`
}

// Repos lists repositories visible to the configured token.
func (c *Client) Repos(ctx context.Context) ([]Repo, error) {
	var wire []wireRepo
	if err := c.get(ctx, "/repos", &wire); err != nil {
		return nil, err
	}
	repos := make([]Repo, len(wire))
	for i, w := range wire {
		repos[i] = Repo{
			Slug:        w.Slug,
			Name:        w.Name,
			Description: w.Description,
			DefaultRef:  w.DefaultRef,
			UpdatedAt:   time.Unix(w.UpdatedAt, 0).UTC(),
		}
	}
	return repos, nil
}

// Issues lists issues on the configured repo.
func (c *Client) Issues(ctx context.Context) ([]Issue, error) {
	var wire []wireIssue
	path := fmt.Sprintf("/repos/%s/issues", url.PathEscape(c.repo))
	if err := c.get(ctx, path, &wire); err != nil {
		return nil, err
	}
	issues := make([]Issue, len(wire))
	for i, w := range wire {
		issues[i] = translateIssue(w)
	}
	return issues, nil
}

// Issue fetches one issue's full detail by number.
func (c *Client) Issue(ctx context.Context, number int) (*IssueDetail, error) {
	var wire wireIssueDetail
	path := fmt.Sprintf("/repos/%s/issues/%d", url.PathEscape(c.repo), number)
	if err := c.get(ctx, path, &wire); err != nil {
		return nil, err
	}
	return &IssueDetail{
		Issue:    translateIssue(wire.wireIssue),
		Body:     wire.Body,
		Assignee: wire.Assignee,
		Comments: wire.Comments,
	}, nil
}

func translateIssue(w wireIssue) Issue {
	return Issue{
		Number:    w.Number,
		Title:     w.Title,
		State:     w.State,
		Labels:    w.Labels,
		CreatedAt: time.Unix(w.CreatedAt, 0).UTC(),
		UpdatedAt: time.Unix(w.UpdatedAt, 0).UTC(),
	}
}

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("source-forge request %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("source-forge request %s: unexpected status %s", path, resp.Status)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode source-forge response: %w", err)
	}
	return nil
}
