package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
)

// ProjectEnv holds the typed view of a project's .env file: the
// credentials and integration toggles spec.md's recognized environment
// keys describe. Unrecognized keys are preserved verbatim in Extra so a
// round trip never drops a line the control plane doesn't understand.
type ProjectEnv struct {
	// ClaudeToken is seeded into agent-kind subprocess environments.
	ClaudeToken string
	// ModelOverride overrides the project's preferred model tag.
	ModelOverride string

	// IssueTrackerAPIKey, IssueTrackerTeam, and IssueTrackerProject
	// authenticate and scope issue-tracker GraphQL calls.
	IssueTrackerAPIKey  string
	IssueTrackerTeam    string
	IssueTrackerProject string
	// IssueTrackerRealtime enables live sync rather than poll-on-demand.
	IssueTrackerRealtime bool

	// SourceForgeToken and SourceForgeRepo authenticate and scope
	// source-forge REST calls.
	SourceForgeToken string
	SourceForgeRepo  string
	// SourceForgeAutoSync enables automatic repo sync.
	SourceForgeAutoSync bool

	// MemoryGraphEnabled turns on the graph memory backend.
	MemoryGraphEnabled bool
	MemoryLLMProvider  string
	EmbedderProvider   string
	// ProviderAPIKeys maps a provider name (llm/embedder) to its key.
	ProviderAPIKeys map[string]string
	GraphDBHost     string
	GraphDBPort     int
	GraphDBPassword string
	GraphDBName     string

	// UIFancy is forwarded to agents as a rendering hint.
	UIFancy bool

	// Extra preserves lines this type doesn't model, keyed by their
	// original assignment name, so WriteEnv round-trips them unchanged.
	Extra map[string]string
}

// Recognized environment key names, in the order WriteEnv emits them.
const (
	keyClaudeToken          = "ANTHROPIC_API_KEY"
	keyModelOverride        = "MODEL_OVERRIDE"
	keyIssueTrackerAPIKey   = "ISSUE_TRACKER_API_KEY"
	keyIssueTrackerTeam     = "ISSUE_TRACKER_TEAM"
	keyIssueTrackerProject  = "ISSUE_TRACKER_PROJECT"
	keyIssueTrackerRealtime = "ISSUE_TRACKER_REALTIME"
	keySourceForgeToken     = "SOURCEFORGE_TOKEN"
	keySourceForgeRepo      = "SOURCEFORGE_REPO"
	keySourceForgeAutoSync  = "SOURCEFORGE_AUTO_SYNC"
	keyMemoryGraphEnabled   = "MEMORY_GRAPH_ENABLED"
	keyMemoryLLMProvider    = "MEMORY_LLM_PROVIDER"
	keyEmbedderProvider     = "MEMORY_EMBEDDER_PROVIDER"
	keyGraphDBHost          = "GRAPH_DB_HOST"
	keyGraphDBPort          = "GRAPH_DB_PORT"
	keyGraphDBPassword      = "GRAPH_DB_PASSWORD"
	keyGraphDBName          = "GRAPH_DB_NAME"
	keyUIFancy              = "UI_FANCY"
)

// providerAPIKeyPrefix identifies provider-scoped API key lines, e.g.
// MEMORY_PROVIDER_API_KEY_OPENAI, so an arbitrary number of providers
// can be configured without a fixed key list.
const providerAPIKeyPrefix = "MEMORY_PROVIDER_API_KEY_"

// ParseEnv reads an environment file in spec.md's documented format:
// one KEY=value assignment per line, blank and #-prefixed lines
// ignored, values optionally wrapped in matching single or double
// quotes (quotes stripped).
func ParseEnv(path string) (*ProjectEnv, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open env file: %w", err)
	}
	defer f.Close()

	env := &ProjectEnv{
		ProviderAPIKeys: make(map[string]string),
		Extra:           make(map[string]string),
	}

	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, ok := splitAssignment(line)
		if !ok {
			continue
		}
		value = unquote(value)

		switch {
		case key == keyClaudeToken:
			env.ClaudeToken = value
		case key == keyModelOverride:
			env.ModelOverride = value
		case key == keyIssueTrackerAPIKey:
			env.IssueTrackerAPIKey = value
		case key == keyIssueTrackerTeam:
			env.IssueTrackerTeam = value
		case key == keyIssueTrackerProject:
			env.IssueTrackerProject = value
		case key == keyIssueTrackerRealtime:
			env.IssueTrackerRealtime = parseBool(value)
		case key == keySourceForgeToken:
			env.SourceForgeToken = value
		case key == keySourceForgeRepo:
			env.SourceForgeRepo = value
		case key == keySourceForgeAutoSync:
			env.SourceForgeAutoSync = parseBool(value)
		case key == keyMemoryGraphEnabled:
			env.MemoryGraphEnabled = parseBool(value)
		case key == keyMemoryLLMProvider:
			env.MemoryLLMProvider = value
		case key == keyEmbedderProvider:
			env.EmbedderProvider = value
		case key == keyGraphDBHost:
			env.GraphDBHost = value
		case key == keyGraphDBPort:
			env.GraphDBPort, _ = strconv.Atoi(value)
		case key == keyGraphDBPassword:
			env.GraphDBPassword = value
		case key == keyGraphDBName:
			env.GraphDBName = value
		case key == keyUIFancy:
			env.UIFancy = parseBool(value)
		case strings.HasPrefix(key, providerAPIKeyPrefix):
			provider := strings.ToLower(strings.TrimPrefix(key, providerAPIKeyPrefix))
			env.ProviderAPIKeys[provider] = value
		default:
			env.Extra[key] = value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan env file: %w", err)
	}

	return env, nil
}

// WriteEnv writes env to path in the recognized-key order, followed by
// any preserved Extra assignments. Keys whose value is empty (and
// whose bool is false) are written as commented-out placeholders so
// the file continues to document every optional key, matching
// spec.md's "preserve commented-out placeholders for optional keys"
// requirement.
func WriteEnv(path string, env *ProjectEnv) error {
	var b strings.Builder

	writeLine(&b, keyClaudeToken, env.ClaudeToken, false)
	writeLine(&b, keyModelOverride, env.ModelOverride, false)
	b.WriteString("\n")
	writeLine(&b, keyIssueTrackerAPIKey, env.IssueTrackerAPIKey, false)
	writeLine(&b, keyIssueTrackerTeam, env.IssueTrackerTeam, false)
	writeLine(&b, keyIssueTrackerProject, env.IssueTrackerProject, false)
	writeBoolLine(&b, keyIssueTrackerRealtime, env.IssueTrackerRealtime)
	b.WriteString("\n")
	writeLine(&b, keySourceForgeToken, env.SourceForgeToken, false)
	writeLine(&b, keySourceForgeRepo, env.SourceForgeRepo, false)
	writeBoolLine(&b, keySourceForgeAutoSync, env.SourceForgeAutoSync)
	b.WriteString("\n")
	writeBoolLine(&b, keyMemoryGraphEnabled, env.MemoryGraphEnabled)
	writeLine(&b, keyMemoryLLMProvider, env.MemoryLLMProvider, false)
	writeLine(&b, keyEmbedderProvider, env.EmbedderProvider, false)
	for provider, key := range env.ProviderAPIKeys {
		writeLine(&b, providerAPIKeyPrefix+strings.ToUpper(provider), key, false)
	}
	writeLine(&b, keyGraphDBHost, env.GraphDBHost, false)
	if env.GraphDBPort != 0 {
		writeLine(&b, keyGraphDBPort, strconv.Itoa(env.GraphDBPort), false)
	} else {
		writeLine(&b, keyGraphDBPort, "", false)
	}
	writeLine(&b, keyGraphDBPassword, env.GraphDBPassword, false)
	writeLine(&b, keyGraphDBName, env.GraphDBName, false)
	b.WriteString("\n")
	writeBoolLine(&b, keyUIFancy, env.UIFancy)

	if len(env.Extra) > 0 {
		b.WriteString("\n")
		for key, value := range env.Extra {
			fmt.Fprintf(&b, "%s=%s\n", key, value)
		}
	}

	return os.WriteFile(path, []byte(b.String()), 0o600)
}

func writeLine(b *strings.Builder, key, value string, _ bool) {
	if value == "" {
		fmt.Fprintf(b, "# %s=\n", key)
		return
	}
	fmt.Fprintf(b, "%s=%s\n", key, value)
}

func writeBoolLine(b *strings.Builder, key string, value bool) {
	if !value {
		fmt.Fprintf(b, "# %s=false\n", key)
		return
	}
	fmt.Fprintf(b, "%s=true\n", key)
}

func splitAssignment(line string) (key, value string, ok bool) {
	idx := strings.IndexByte(line, '=')
	if idx < 0 {
		return "", "", false
	}
	return strings.TrimSpace(line[:idx]), strings.TrimSpace(line[idx+1:]), true
}

func unquote(value string) string {
	if len(value) < 2 {
		return value
	}
	first, last := value[0], value[len(value)-1]
	if (first == '"' && last == '"') || (first == '\'' && last == '\'') {
		return value[1 : len(value)-1]
	}
	return value
}

func parseBool(value string) bool {
	b, _ := strconv.ParseBool(value)
	return b
}
