package models

import "testing"

func TestSeverity_AutoResolvable(t *testing.T) {
	tests := []struct {
		sev  Severity
		want bool
	}{
		{SeverityNone, false},
		{SeverityLow, true},
		{SeverityMedium, true},
		{SeverityHigh, false},
		{SeverityCritical, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.sev), func(t *testing.T) {
			if got := tt.sev.AutoResolvable(); got != tt.want {
				t.Errorf("Severity(%q).AutoResolvable() = %v, want %v", tt.sev, got, tt.want)
			}
		})
	}
}

func TestMergePreview_WorstSeverity(t *testing.T) {
	tests := []struct {
		name      string
		conflicts []Conflict
		want      Severity
	}{
		{"no conflicts", nil, SeverityNone},
		{
			name: "mixed severities picks highest",
			conflicts: []Conflict{
				{Path: "a.go", Severity: SeverityLow},
				{Path: "b.go", Severity: SeverityCritical},
				{Path: "c.go", Severity: SeverityMedium},
			},
			want: SeverityCritical,
		},
		{
			name:      "single high",
			conflicts: []Conflict{{Path: "a.go", Severity: SeverityHigh}},
			want:      SeverityHigh,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &MergePreview{Conflicts: tt.conflicts}
			if got := m.WorstSeverity(); got != tt.want {
				t.Errorf("WorstSeverity() = %q, want %q", got, tt.want)
			}
		})
	}
}
