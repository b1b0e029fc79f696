package agentkind

import (
	"encoding/json"
	"strings"

	"github.com/forgeman/controlplane/pkg/models"
)

const maxMessageLen = 200

// progressMarker maps a literal substring an agent-kind executable may
// print on a line of stdout to a derived progress snapshot.
type progressMarker struct {
	substr  string
	phase   string
	percent int
}

// progressTable lists the recognized progress markers in priority order;
// the first match wins. Agent-kind executables are not required to print
// any of these, in which case progress falls back to the raw line text.
var progressTable = []progressMarker{
	{"PROJECT INDEX", "indexing", 10},
	{"PROJECT ANALYSIS", "analyzing", 20},
	{"PROJECT DISCOVERY", "discovering", 30},
	{"CONTEXT GATHERING", "gathering_context", 40},
	{"LOW_HANGING_FRUIT", "scoring_ideas", 50},
	{"UI_UX_IMPROVEMENTS", "scoring_ideas", 60},
	{"HIGH_VALUE_FEATURES", "scoring_ideas", 70},
	{"MERGING IDEAS", "merging_ideas", 80},
	{"FEATURE GENERATION", "generating", 90},
	{"ROADMAP GENERATED", "done", 100},
	{"IDEATION COMPLETE", "done", 100},
}

func truncateMessage(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxMessageLen {
		return s[:maxMessageLen]
	}
	return s
}

// matchProgress scans a line of raw stdout for a known marker. ANSI escape
// codes are stripped first since agent executables commonly colorize
// their own terminal output.
func matchProgress(line string) *models.Progress {
	clean := stripANSI(line)
	for _, m := range progressTable {
		if strings.Contains(clean, m.substr) {
			return &models.Progress{Phase: m.phase, Percent: m.percent, Message: truncateMessage(clean)}
		}
	}
	return nil
}

// stripANSI removes CSI escape sequences (ESC '[' ... final-byte) from s.
func stripANSI(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == 0x1b && i+1 < len(s) && s[i+1] == '[' {
			j := i + 2
			for j < len(s) && (s[j] < '@' || s[j] > '~') {
				j++
			}
			if j < len(s) {
				j++
			}
			i = j - 1
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

// parseStreamEvent parses one line of subprocess stdout. Lines that parse
// as JSON are interpreted per their "type" field; all other lines are
// checked against the progress marker table and otherwise treated as a
// plain assistant message.
func parseStreamEvent(line []byte) StreamEvent {
	var raw map[string]interface{}
	if err := json.Unmarshal(line, &raw); err == nil {
		event := StreamEvent{Raw: line}
		if t, ok := raw["type"].(string); ok {
			event.Type = StreamEventType(t)
		}
		if msg, ok := raw["message"].(string); ok {
			event.Message = truncateMessage(msg)
		}
		if errMsg, ok := raw["error"].(string); ok {
			event.Error = errMsg
		}
		if event.Progress == nil {
			event.Progress = matchProgress(event.Message)
		}
		return event
	}

	text := string(line)
	if p := matchProgress(text); p != nil {
		return StreamEvent{Type: StreamEventProgress, Message: p.Message, Progress: p}
	}
	return StreamEvent{Type: StreamEventAssistant, Message: truncateMessage(text)}
}
