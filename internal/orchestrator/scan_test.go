package orchestrator

import (
	"os"
	"path/filepath"
	"testing"
)

func TestReadPlan_MissingIsNotError(t *testing.T) {
	dir := t.TempDir()
	plan, err := readPlan(dir)
	if err != nil {
		t.Fatalf("readPlan() error = %v", err)
	}
	if plan != nil {
		t.Errorf("readPlan() = %+v, want nil", plan)
	}
}

func TestReadPlan_Parses(t *testing.T) {
	dir := t.TempDir()
	content := `{"phases":[{"id":"p1","title":"Phase 1","chunks":[{"id":"c1","title":"Do it","status":"completed"}]}]}`
	if err := os.WriteFile(filepath.Join(dir, planFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	plan, err := readPlan(dir)
	if err != nil {
		t.Fatalf("readPlan() error = %v", err)
	}
	if plan.TotalChunks() != 1 || plan.DoneChunks() != 1 {
		t.Errorf("readPlan() plan = %+v", plan)
	}
}

func TestReadQAVerdict(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    qaVerdict
	}{
		{"approved", "APPROVED\n\nLooks good.\n", qaVerdictApproved},
		{"passed synonym", "PASSED\n", qaVerdictApproved},
		{"rejected", "REJECTED\n\nMissing tests.\n", qaVerdictRejected},
		{"failed synonym", "FAILED\n", qaVerdictRejected},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(filepath.Join(dir, qaReportFileName), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			got, _, err := readQAVerdict(dir)
			if err != nil {
				t.Fatalf("readQAVerdict() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("readQAVerdict() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestReadQAVerdict_Missing(t *testing.T) {
	dir := t.TempDir()
	got, _, err := readQAVerdict(dir)
	if err != nil {
		t.Fatalf("readQAVerdict() error = %v", err)
	}
	if got != qaVerdictNone {
		t.Errorf("readQAVerdict() = %v, want none", got)
	}
}

func TestWriteQAReport_RoundTrips(t *testing.T) {
	dir := t.TempDir()
	if err := writeQAReport(dir, true, "nice work"); err != nil {
		t.Fatalf("writeQAReport() error = %v", err)
	}
	verdict, feedback, err := readQAVerdict(dir)
	if err != nil {
		t.Fatalf("readQAVerdict() error = %v", err)
	}
	if verdict != qaVerdictApproved {
		t.Errorf("verdict = %v, want approved", verdict)
	}
	if feedback != "nice work" {
		t.Errorf("feedback = %q, want %q", feedback, "nice work")
	}
}

func TestReadOverview(t *testing.T) {
	dir := t.TempDir()
	content := "# Title\n\n## Overview\n\nThis task adds X to module Y.\nIt also does Z.\n\n## Details\n\nignored\n"
	if err := os.WriteFile(filepath.Join(dir, specFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	got := readOverview(dir)
	want := "This task adds X to module Y. It also does Z."
	if got != want {
		t.Errorf("readOverview() = %q, want %q", got, want)
	}
}

func TestReadOverview_NoFile(t *testing.T) {
	dir := t.TempDir()
	if got := readOverview(dir); got != "" {
		t.Errorf("readOverview() = %q, want empty", got)
	}
}
