package tripo

import "testing"

func TestTaskStatusClassification(t *testing.T) {
	tests := []struct {
		status   TaskStatus
		terminal bool
		success  bool
		failure  bool
	}{
		{StatusQueued, false, false, false},
		{StatusRunning, false, false, false},
		{StatusGenerating, false, false, false},
		{StatusSuccess, true, true, false},
		{StatusFailed, true, false, true},
		{StatusBanned, true, false, true},
		{StatusExpired, true, false, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			if got := tt.status.IsTerminal(); got != tt.terminal {
				t.Errorf("IsTerminal() = %v, want %v", got, tt.terminal)
			}
			if got := tt.status.IsSuccess(); got != tt.success {
				t.Errorf("IsSuccess() = %v, want %v", got, tt.success)
			}
			if got := tt.status.IsFailure(); got != tt.failure {
				t.Errorf("IsFailure() = %v, want %v", got, tt.failure)
			}
		})
	}
}

func TestUnknownStatusIsNonTerminal(t *testing.T) {
	s := TaskStatus("pre-processing")
	if s.IsKnown() {
		t.Error("unexpected status should not be classified as known")
	}
	if s.IsTerminal() {
		t.Error("unknown statuses must be treated as non-terminal")
	}
}
