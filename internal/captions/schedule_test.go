package captions

import (
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/benbjohnson/clock"
)

func TestSplitRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		text string
		want int
	}{
		{
			name: "single word",
			text: "hello",
			want: 1,
		},
		{
			name: "words and spaces",
			text: "Aye, bring a coat.",
			want: 7,
		},
		{
			name: "leading whitespace",
			text: "  ahead",
			want: 2,
		},
		{
			name: "trailing whitespace",
			text: "ahead  ",
			want: 2,
		},
		{
			name: "consecutive whitespace runs",
			text: "a \t b\n\nc",
			want: 5,
		},
		{
			name: "whitespace only",
			text: "   ",
			want: 1,
		},
		{
			name: "empty",
			text: "",
			want: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tokens := Split(tt.text)

			if len(tokens) != tt.want {
				t.Errorf("Expected %d tokens, got %d: %q", tt.want, len(tokens), tokens)
			}

			if got := strings.Join(tokens, ""); got != tt.text {
				t.Errorf("Concatenated tokens %q do not reproduce input %q", got, tt.text)
			}
		})
	}
}

func TestScheduleUniformDelay(t *testing.T) {
	// Per-token delay is duration/count regardless of token length.
	// This is the pacing contract of the speech service, not a bug:
	// short and long words get the same display time.
	mock := clock.NewMock()
	sched := NewSchedule("Aye, bring a coat.", 700*time.Millisecond, mock, func(string) {})

	if sched.TokenCount() != 7 {
		t.Fatalf("Expected 7 tokens, got %d", sched.TokenCount())
	}

	if sched.Delay() != 100*time.Millisecond {
		t.Errorf("Expected per-token delay 100ms, got %v", sched.Delay())
	}
}

func TestScheduleFiresEveryTokenThenStops(t *testing.T) {
	mock := clock.NewMock()

	var revealed []string
	sched := NewSchedule("bring a coat", 300*time.Millisecond, mock, func(token string) {
		revealed = append(revealed, token)
	})
	sched.Start()

	// 5 tokens at 60ms apiece: nothing before the first delay elapses.
	mock.Add(59 * time.Millisecond)
	if len(revealed) != 0 {
		t.Fatalf("Expected no tokens before first delay, got %d", len(revealed))
	}

	mock.Add(1 * time.Millisecond)
	if len(revealed) != 1 {
		t.Fatalf("Expected 1 token after first delay, got %d", len(revealed))
	}

	mock.Add(4 * 60 * time.Millisecond)
	if len(revealed) != 5 {
		t.Fatalf("Expected all 5 tokens, got %d", len(revealed))
	}

	if got := strings.Join(revealed, ""); got != "bring a coat" {
		t.Errorf("Revealed text %q does not match input", got)
	}

	// The schedule terminates after the last token; no extra ticks fire.
	mock.Add(10 * time.Second)
	if len(revealed) != 5 {
		t.Errorf("Expected no further ticks after completion, got %d tokens", len(revealed))
	}
}

func TestScheduleCancelStopsPendingTick(t *testing.T) {
	mock := clock.NewMock()

	var revealed int
	sched := NewSchedule("one two three", time.Second, mock, func(string) {
		revealed++
	})
	sched.Start()

	mock.Add(200 * time.Millisecond) // first tick at 200ms (5 tokens)
	if revealed != 1 {
		t.Fatalf("Expected 1 token before cancel, got %d", revealed)
	}

	sched.Cancel()

	mock.Add(10 * time.Second)
	if revealed != 1 {
		t.Errorf("Expected no ticks after cancel, got %d", revealed)
	}

	// Cancel is idempotent, including with no pending tick.
	sched.Cancel()
}

func TestScheduleKeepsOrderWithSlowConsumer(t *testing.T) {
	// Real clock, a per-token delay far shorter than the consumer:
	// the first emit sleeps well past many delays. Ticks must still
	// arrive one at a time and in order, never overlapping.
	text := strings.Repeat("w ", 100) + "w" // 201 tokens
	want := Split(text)

	var mu sync.Mutex
	var revealed []string
	first := true
	done := make(chan struct{})

	sched := NewSchedule(text, time.Millisecond, clock.New(), func(token string) {
		mu.Lock()
		isFirst := first
		first = false
		mu.Unlock()
		if isFirst {
			time.Sleep(20 * time.Millisecond)
		}

		mu.Lock()
		revealed = append(revealed, token)
		count := len(revealed)
		mu.Unlock()

		if count == len(want) {
			close(done)
		}
	})
	sched.Start()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for all tokens")
	}

	mu.Lock()
	defer mu.Unlock()
	for i, token := range revealed {
		if token != want[i] {
			t.Fatalf("Token %d revealed out of order: got %q, want %q", i, token, want[i])
		}
	}
	if got := strings.Join(revealed, ""); got != text {
		t.Errorf("Revealed text %q does not reproduce input", got)
	}
}

func TestScheduleEmptyText(t *testing.T) {
	mock := clock.NewMock()

	sched := NewSchedule("", time.Second, mock, func(string) {
		t.Error("Schedule for empty text must not emit")
	})
	sched.Start()

	mock.Add(10 * time.Second)
}
