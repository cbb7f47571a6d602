package app

import (
	"strings"
	"testing"
	"time"

	"cdmkn-go/internal/testutil"
)

func TestNewRun(t *testing.T) {
	tests := []struct {
		name    string
		idgen   *testutil.StubIDGenerator
		command string
		wantID  string
	}{
		{
			name:    "short id kept whole",
			idgen:   testutil.NewStubIDGenerator("x"),
			command: "history",
			wantID:  "20240301T090000Z-x-1",
		},
		{
			name:    "long id truncated",
			idgen:   testutil.NewStubIDGenerator("abcdefghijkl"),
			command: "start",
			wantID:  "20240301T090000Z-abcdefgh",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			run := NewRun(tt.command, testutil.FixedClock(), tt.idgen)

			if run.ID != tt.wantID {
				t.Errorf("ID = %q, want %q", run.ID, tt.wantID)
			}
			if run.Command != tt.command {
				t.Errorf("Command = %q, want %q", run.Command, tt.command)
			}
			if run.Status != "success" || run.Failed() {
				t.Errorf("Status = %q, want success", run.Status)
			}
			if !run.StartedAt.Equal(time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)) {
				t.Errorf("StartedAt = %v", run.StartedAt)
			}
		})
	}
}

func TestRun_Fail(t *testing.T) {
	run := NewRun("push", testutil.FixedClock(), testutil.NewStubIDGenerator("r"))
	run.Fail()
	if !run.Failed() || run.Status != "error" {
		t.Errorf("Status = %q, want error", run.Status)
	}
	if !strings.HasPrefix(run.ID, "20240301T") {
		t.Errorf("ID = %q", run.ID)
	}
}
