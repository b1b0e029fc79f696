package models

import (
	"testing"
	"time"
)

func TestTerminalRecord_Open(t *testing.T) {
	open := TerminalRecord{CreatedAt: time.Now()}
	if !open.Open() {
		t.Error("terminal with zero ClosedAt should be open")
	}

	closed := TerminalRecord{CreatedAt: time.Now(), ClosedAt: time.Now()}
	if closed.Open() {
		t.Error("terminal with non-zero ClosedAt should not be open")
	}
}
