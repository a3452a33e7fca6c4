package core

import (
	"errors"
	"testing"
	"time"
)

func TestValidateTurn(t *testing.T) {
	validTime := time.Now().Add(-1 * time.Hour)
	futureTime := time.Now().Add(1 * time.Hour)

	tests := []struct {
		name    string
		turn    *Turn
		wantErr error
	}{
		{
			name:    "valid user turn",
			turn:    &Turn{Seq: 1, Role: RoleUser, Content: "Hello world", Timestamp: validTime},
			wantErr: nil,
		},
		{
			name:    "valid assistant turn without timestamp",
			turn:    &Turn{Seq: 2, Role: RoleAssistant, Content: "Hi"},
			wantErr: nil,
		},
		{
			name:    "nil turn",
			turn:    nil,
			wantErr: ErrInvalidTurn,
		},
		{
			name:    "empty content",
			turn:    &Turn{Seq: 1, Role: RoleUser, Timestamp: validTime},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "unknown role",
			turn:    &Turn{Seq: 1, Role: Role("narrator"), Content: "x", Timestamp: validTime},
			wantErr: ErrInvalidRole,
		},
		{
			name:    "future timestamp",
			turn:    &Turn{Seq: 1, Role: RoleUser, Content: "x", Timestamp: futureTime},
			wantErr: ErrInvalidTimestamp,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateTurn(tt.turn)
			if tt.wantErr == nil {
				if err != nil {
					t.Fatalf("expected no error, got %v", err)
				}
				return
			}
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}
}

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to JobStatus
		want     bool
	}{
		{JobQueued, JobStarted, true},
		{JobStarted, JobCompleted, true},
		{JobStarted, JobFailed, true},
		{JobStarted, JobStarted, true}, // redelivery re-claims
		{JobQueued, JobCompleted, false},
		{JobQueued, JobFailed, false},
		{JobCompleted, JobStarted, false},
		{JobCompleted, JobFailed, false},
		{JobFailed, JobStarted, false},
		{JobStarted, JobQueued, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%s, %s) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestJobStatusTerminal(t *testing.T) {
	if JobQueued.Terminal() || JobStarted.Terminal() {
		t.Fatal("queued/started must not be terminal")
	}
	if !JobCompleted.Terminal() || !JobFailed.Terminal() {
		t.Fatal("completed/failed must be terminal")
	}
}

func TestNormalizeWorkspace(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"default", "default"},
		{"  my project  ", "my-project"},
		{"team/alpha", "team-alpha"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		if got := NormalizeWorkspace(tt.in); got != tt.want {
			t.Errorf("NormalizeWorkspace(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	long := NormalizeWorkspace(string(make([]byte, 100, 100)))
	if len(long) > 64 {
		t.Errorf("expected truncation to 64 chars, got %d", len(long))
	}
}
