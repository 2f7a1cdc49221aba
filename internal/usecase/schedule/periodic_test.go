package schedule

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

type interval time.Duration

func (i interval) Next(t time.Time) time.Time { return t.Add(time.Duration(i)) }

func TestParseSchedule(t *testing.T) {
	base := time.Date(2024, 6, 5, 7, 59, 30, 0, time.UTC)

	daily, err := ParseSchedule("0 8 * * *")
	if err != nil {
		t.Fatalf("ParseSchedule: %v", err)
	}
	if got := daily.Next(base); !got.Equal(time.Date(2024, 6, 5, 8, 0, 0, 0, time.UTC)) {
		t.Fatalf("unexpected next run %v", got)
	}

	every, err := ParseSchedule("30m")
	if err != nil {
		t.Fatalf("ParseSchedule duration: %v", err)
	}
	if got := every.Next(base); got.Sub(base) < 29*time.Minute {
		t.Fatalf("unexpected interval next run %v", got)
	}

	if _, err := ParseSchedule("every day"); err == nil {
		t.Fatal("expected error for invalid expression")
	}
	if _, err := ParseSchedule(""); err == nil {
		t.Fatal("expected error for empty expression")
	}
}

func TestPeriodicRunsUntilCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var runs atomic.Int32
	p := &Periodic{
		Name:     "test",
		Schedule: interval(5 * time.Millisecond),
		Log:      zerolog.Nop(),
		Run: func(context.Context) error {
			if runs.Add(1) == 2 {
				panic("boom")
			}
			return nil
		},
	}
	done := make(chan struct{})
	go func() {
		p.Start(ctx)
		close(done)
	}()

	deadline := time.After(2 * time.Second)
	for runs.Load() < 4 {
		select {
		case <-deadline:
			t.Fatalf("expected periodic runs to continue after panic, got %d", runs.Load())
		case <-time.After(5 * time.Millisecond):
		}
	}
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start must return after cancellation")
	}
}

func TestPeriodicDropsOverlappingRun(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	var (
		runs    atomic.Int32
		release = make(chan struct{})
	)
	p := &Periodic{
		Name:     "slow",
		Schedule: interval(2 * time.Millisecond),
		Log:      zerolog.Nop(),
		Run: func(ctx context.Context) error {
			runs.Add(1)
			select {
			case <-release:
			case <-ctx.Done():
			}
			return nil
		},
	}
	go p.Start(ctx)
	time.Sleep(50 * time.Millisecond)
	if got := runs.Load(); got != 1 {
		t.Fatalf("overlapping runs must be dropped, got %d", got)
	}
	close(release)
}
