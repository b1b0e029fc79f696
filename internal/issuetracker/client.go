// Package issuetracker is a thin bearer-token GraphQL client for the
// issue-tracker provider spec.md §6 describes: teams, projects, and
// issues. Like internal/sourceforge, it is an out-of-core collaborator
// the Request Surface's issue-tracker sync feature calls when a
// project's environment file enables ProjectSettings.IssueTrackerSyncEnabled.
package issuetracker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// DefaultEndpoint is the provider's GraphQL API endpoint.
const DefaultEndpoint = "https://api.issuetracker.example/graphql"

// Client issues GraphQL queries against the issue-tracker API with
// bearer-token auth from a project's environment file.
type Client struct {
	httpClient *http.Client
	endpoint   string
	apiKey     string
	team       string
	project    string
}

// Config configures a new Client.
type Config struct {
	APIKey     string
	Team       string
	Project    string
	Endpoint   string
	HTTPClient *http.Client
}

// New creates a Client. APIKey must be non-empty.
func New(cfg Config) (*Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("issue-tracker API key is required")
	}
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 15 * time.Second}
	}
	return &Client{
		httpClient: httpClient,
		endpoint:   endpoint,
		apiKey:     cfg.APIKey,
		team:       cfg.Team,
		project:    cfg.Project,
	}, nil
}

// Team is one team the configured API key can see.
type Team struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Key  string `json:"key"`
}

// Project is one project within a team.
type Project struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Issue is an issue-tracker issue.
type Issue struct {
	ID         string    `json:"id"`
	Identifier string    `json:"identifier"`
	Title      string    `json:"title"`
	State      string    `json:"state"`
	Priority   int       `json:"priority"`
	CreatedAt  time.Time `json:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

const teamsQuery = `query { teams { nodes { id name key } } }`

const projectsQuery = `query($teamId: String!) { team(id: $teamId) { projects { nodes { id name } } } }`

const issuesQuery = `query($projectId: String!) {
  project(id: $projectId) {
    issues {
      nodes { id identifier title state { name } priority createdAt updatedAt }
    }
  }
}`

// Teams fetches every team the configured key can see.
func (c *Client) Teams(ctx context.Context) ([]Team, error) {
	var resp struct {
		Teams struct {
			Nodes []Team `json:"nodes"`
		} `json:"teams"`
	}
	if err := c.query(ctx, teamsQuery, nil, &resp); err != nil {
		return nil, err
	}
	return resp.Teams.Nodes, nil
}

// Projects fetches the configured team's projects. Uses c.team if
// teamID is empty.
func (c *Client) Projects(ctx context.Context, teamID string) ([]Project, error) {
	if teamID == "" {
		teamID = c.team
	}
	var resp struct {
		Team struct {
			Projects struct {
				Nodes []Project `json:"nodes"`
			} `json:"projects"`
		} `json:"team"`
	}
	if err := c.query(ctx, projectsQuery, map[string]any{"teamId": teamID}, &resp); err != nil {
		return nil, err
	}
	return resp.Team.Projects.Nodes, nil
}

// wireIssue mirrors the provider's response shape, where state is a
// nested object rather than a bare string.
type wireIssue struct {
	ID         string `json:"id"`
	Identifier string `json:"identifier"`
	Title      string `json:"title"`
	State      struct {
		Name string `json:"name"`
	} `json:"state"`
	Priority  int       `json:"priority"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Issues fetches the configured project's issues. Uses c.project if
// projectID is empty.
func (c *Client) Issues(ctx context.Context, projectID string) ([]Issue, error) {
	if projectID == "" {
		projectID = c.project
	}
	var resp struct {
		Project struct {
			Issues struct {
				Nodes []wireIssue `json:"nodes"`
			} `json:"issues"`
		} `json:"project"`
	}
	if err := c.query(ctx, issuesQuery, map[string]any{"projectId": projectID}, &resp); err != nil {
		return nil, err
	}

	issues := make([]Issue, len(resp.Project.Issues.Nodes))
	for i, w := range resp.Project.Issues.Nodes {
		issues[i] = Issue{
			ID:         w.ID,
			Identifier: w.Identifier,
			Title:      w.Title,
			State:      w.State.Name,
			Priority:   w.Priority,
			CreatedAt:  w.CreatedAt,
			UpdatedAt:  w.UpdatedAt,
		}
	}
	return issues, nil
}

type graphQLRequest struct {
	Query     string         `json:"query"`
	Variables map[string]any `json:"variables,omitempty"`
}

type graphQLError struct {
	Message string `json:"message"`
}

type graphQLResponse struct {
	Data   json.RawMessage `json:"data"`
	Errors []graphQLError  `json:"errors,omitempty"`
}

func (c *Client) query(ctx context.Context, query string, variables map[string]any, out any) error {
	body, err := json.Marshal(graphQLRequest{Query: query, Variables: variables})
	if err != nil {
		return fmt.Errorf("encode graphql request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("issue-tracker request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("issue-tracker request: unexpected status %s", resp.Status)
	}

	var gqlResp graphQLResponse
	if err := json.NewDecoder(resp.Body).Decode(&gqlResp); err != nil {
		return fmt.Errorf("decode issue-tracker response: %w", err)
	}
	if len(gqlResp.Errors) > 0 {
		return fmt.Errorf("issue-tracker query failed: %s", gqlResp.Errors[0].Message)
	}

	if err := json.Unmarshal(gqlResp.Data, out); err != nil {
		return fmt.Errorf("decode issue-tracker data: %w", err)
	}
	return nil
}
