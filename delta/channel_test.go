package delta

import (
	"context"
	"testing"
	"time"

	"github.com/marendel/skein/model"
)

func TestChannelAppendAndSince(t *testing.T) {
	ch := NewChannel()
	ch.Append(StatusDelta{Status: model.StatusStarting})
	ch.Append(QueryDelta{Query: "go concurrency"})
	ch.Append(StatusDelta{Status: model.StatusCompleted})

	if ch.Len() != 3 {
		t.Fatalf("expected 3 deltas, got %d", ch.Len())
	}

	tail := ch.Since(1)
	if len(tail) != 2 {
		t.Fatalf("expected 2 deltas past cursor 1, got %d", len(tail))
	}
	if _, ok := tail[0].(QueryDelta); !ok {
		t.Errorf("expected QueryDelta at cursor 1, got %T", tail[0])
	}

	if got := ch.Since(3); got != nil {
		t.Errorf("expected nil past end, got %d deltas", len(got))
	}
}

func TestChannelAppendAfterCloseDropped(t *testing.T) {
	ch := NewChannel()
	ch.Append(QueryDelta{Query: "first"})
	ch.Close()
	ch.Append(QueryDelta{Query: "late"})

	if ch.Len() != 1 {
		t.Errorf("append after close should be dropped, got %d deltas", ch.Len())
	}
}

func TestChannelWatchReplaysThenStreams(t *testing.T) {
	ch := NewChannel()
	ch.Append(StatusDelta{Status: model.StatusStarting})
	ch.Append(QueryDelta{Query: "replayed"})

	feed := ch.Watch(context.Background())

	// Live appends from the producer side.
	go func() {
		ch.Append(StatusDelta{Status: model.StatusCompleted})
		ch.Close()
	}()

	var got []Delta
	for d := range feed {
		got = append(got, d)
	}

	if len(got) != 3 {
		t.Fatalf("expected 3 deltas from watch, got %d", len(got))
	}
	if _, ok := got[0].(StatusDelta); !ok {
		t.Errorf("expected replayed StatusDelta first, got %T", got[0])
	}
	if q, ok := got[1].(QueryDelta); !ok || q.Query != "replayed" {
		t.Errorf("expected replayed QueryDelta second, got %#v", got[1])
	}
	if s, ok := got[2].(StatusDelta); !ok || s.Status != model.StatusCompleted {
		t.Errorf("expected live completed status last, got %#v", got[2])
	}
}

func TestChannelWatchCancellation(t *testing.T) {
	ch := NewChannel()
	ctx, cancel := context.WithCancel(context.Background())
	feed := ch.Watch(ctx)

	cancel()

	select {
	case _, open := <-feed:
		if open {
			t.Error("expected feed to close after cancellation")
		}
	case <-time.After(time.Second):
		t.Fatal("watch feed did not close after cancellation")
	}
}

func TestChannelOrderPreserved(t *testing.T) {
	ch := NewChannel()
	for i := 0; i < 50; i++ {
		ch.Append(TextDelta{Text: string(rune('a' + i%26))})
	}
	ch.Close()

	var drained []Delta
	for d := range ch.Watch(context.Background()) {
		drained = append(drained, d)
	}

	if len(drained) != 50 {
		t.Fatalf("expected 50 deltas, got %d", len(drained))
	}
	for i, d := range drained {
		want := string(rune('a' + i%26))
		if td := d.(TextDelta); td.Text != want {
			t.Fatalf("delta %d out of order: want %q, got %q", i, want, td.Text)
		}
	}
}
