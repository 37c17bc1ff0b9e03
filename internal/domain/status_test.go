package domain

import "testing"

func TestIsValidTransition(t *testing.T) {
	tests := []struct {
		name    string
		current OrderStatus
		next    OrderStatus
		want    bool
	}{
		{name: "pending to preparing", current: StatusPending, next: StatusPreparing, want: true},
		{name: "preparing to ready", current: StatusPreparing, next: StatusReady, want: true},
		{name: "ready to completed", current: StatusReady, next: StatusCompleted, want: true},
		{name: "forward skip", current: StatusPending, next: StatusReady, want: true},
		{name: "cancel from ready", current: StatusReady, next: StatusCancelled, want: true},
		{name: "backwards", current: StatusReady, next: StatusPreparing, want: false},
		{name: "out of completed", current: StatusCompleted, next: StatusCancelled, want: false},
		{name: "out of cancelled", current: StatusCancelled, next: StatusPending, want: false},
		{name: "same status", current: StatusPreparing, next: StatusPreparing, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsValidTransition(tt.current, tt.next); got != tt.want {
				t.Fatalf("IsValidTransition(%s, %s) = %v, want %v", tt.current, tt.next, got, tt.want)
			}
		})
	}
}

func TestIsSkippedStep(t *testing.T) {
	if !IsSkippedStep(StatusPending, StatusReady) {
		t.Fatalf("pending -> ready should be a skipped step")
	}
	if IsSkippedStep(StatusPending, StatusPreparing) {
		t.Fatalf("pending -> preparing is the canonical step")
	}
	if IsSkippedStep(StatusPreparing, StatusCancelled) {
		t.Fatalf("cancel is never a skipped step")
	}
}

func TestParseOrderStatus(t *testing.T) {
	if _, ok := ParseOrderStatus("served"); ok {
		t.Fatalf("unknown status should not parse")
	}
	s, ok := ParseOrderStatus("ready")
	if !ok || s != StatusReady {
		t.Fatalf("expected ready, got %q (%v)", s, ok)
	}
	for _, s := range ActiveStatuses {
		if s.IsTerminal() {
			t.Fatalf("%s listed as active but terminal", s)
		}
	}
}
