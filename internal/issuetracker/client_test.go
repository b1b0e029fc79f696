package issuetracker

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestNew_RequiresAPIKey(t *testing.T) {
	if _, err := New(Config{}); err == nil {
		t.Error("New() error = nil, want error for empty API key")
	}
}

func TestTeams_SendsBearerAuth(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		fmt.Fprint(w, `{"data":{"teams":{"nodes":[{"id":"t1","name":"Core","key":"COR"}]}}}`)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "key", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	teams, err := c.Teams(context.Background())
	if err != nil {
		t.Fatalf("Teams() error = %v", err)
	}
	if gotAuth != "Bearer key" {
		t.Errorf("Authorization header = %q, want Bearer key", gotAuth)
	}
	if len(teams) != 1 || teams[0].Name != "Core" {
		t.Fatalf("teams = %+v", teams)
	}
}

func TestIssues_TranslatesNestedState(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req graphQLRequest
		json.NewDecoder(r.Body).Decode(&req)
		if req.Variables["projectId"] != "proj-1" {
			t.Errorf("projectId variable = %v, want proj-1", req.Variables["projectId"])
		}
		fmt.Fprint(w, `{"data":{"project":{"issues":{"nodes":[
			{"id":"i1","identifier":"COR-1","title":"Bug","state":{"name":"In Progress"},"priority":2,"createdAt":"2026-01-01T00:00:00Z","updatedAt":"2026-01-02T00:00:00Z"}
		]}}}}`)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "key", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	issues, err := c.Issues(context.Background(), "proj-1")
	if err != nil {
		t.Fatalf("Issues() error = %v", err)
	}
	if len(issues) != 1 || issues[0].State != "In Progress" {
		t.Fatalf("issues = %+v", issues)
	}
}

func TestQuery_GraphQLErrorSurfaces(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"errors":[{"message":"not authorized"}]}`)
	}))
	defer srv.Close()

	c, err := New(Config{APIKey: "key", Endpoint: srv.URL})
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}

	if _, err := c.Teams(context.Background()); err == nil {
		t.Error("Teams() error = nil, want error surfaced from graphql errors array")
	}
}
