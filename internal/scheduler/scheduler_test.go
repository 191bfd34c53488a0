package scheduler

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestNextRun(t *testing.T) {
	s := New(9, 0, func(ctx context.Context) {}, discardLogger())

	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{
			name: "before todays slot",
			now:  time.Date(2026, 8, 31, 7, 15, 0, 0, time.Local),
			want: time.Date(2026, 8, 31, 9, 0, 0, 0, time.Local),
		},
		{
			name: "exactly at the slot rolls to tomorrow",
			now:  time.Date(2026, 8, 31, 9, 0, 0, 0, time.Local),
			want: time.Date(2026, 9, 1, 9, 0, 0, 0, time.Local),
		},
		{
			name: "after todays slot",
			now:  time.Date(2026, 8, 31, 22, 40, 0, 0, time.Local),
			want: time.Date(2026, 9, 1, 9, 0, 0, 0, time.Local),
		},
		{
			name: "month boundary",
			now:  time.Date(2026, 8, 31, 10, 0, 0, 0, time.Local),
			want: time.Date(2026, 9, 1, 9, 0, 0, 0, time.Local),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := s.nextRun(tt.now); !got.Equal(tt.want) {
				t.Errorf("nextRun(%v) = %v, want %v", tt.now, got, tt.want)
			}
		})
	}
}

func TestNextRunMidnightSlot(t *testing.T) {
	s := New(0, 0, func(ctx context.Context) {}, discardLogger())

	now := time.Date(2026, 8, 31, 0, 0, 1, 0, time.Local)
	want := time.Date(2026, 9, 1, 0, 0, 0, 0, time.Local)
	if got := s.nextRun(now); !got.Equal(want) {
		t.Errorf("nextRun(%v) = %v, want %v", now, got, want)
	}
}

func TestStartStop(t *testing.T) {
	fired := make(chan struct{}, 1)
	s := New(9, 0, func(ctx context.Context) {
		select {
		case fired <- struct{}{}:
		default:
		}
	}, discardLogger())

	s.Start(context.Background())

	// Stop must return promptly with the timer still pending
	done := make(chan struct{})
	go func() {
		s.Stop()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop() did not return")
	}

	select {
	case <-fired:
		t.Error("runner fired without reaching the scheduled time")
	default:
	}
}
