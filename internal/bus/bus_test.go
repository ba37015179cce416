package bus

import (
	"context"
	"sync"
	"testing"

	"github.com/madhavipuliraju/teams-outbound-handler/internal/domain"
)

func TestQueue_SameUserKeepsOrder(t *testing.T) {
	q := New(4, 10, testEBLogger())

	var mu sync.Mutex
	seen := map[string][]string{}

	done := make(chan struct{})
	go func() {
		q.Run(context.Background(), func(ctx context.Context, ev domain.Event) {
			mu.Lock()
			seen[ev.AuthID] = append(seen[ev.AuthID], ev.Text())
			mu.Unlock()
		})
		close(done)
	}()

	for _, text := range []string{"1", "2", "3", "4", "5"} {
		q.Publish(domain.Event{AuthID: "alice"}.WithText(text))
		q.Publish(domain.Event{AuthID: "bob"}.WithText(text))
	}
	q.Close()
	<-done

	for _, user := range []string{"alice", "bob"} {
		got := seen[user]
		if len(got) != 5 {
			t.Fatalf("expected 5 events for %s, got %d", user, len(got))
		}
		for i, text := range []string{"1", "2", "3", "4", "5"} {
			if got[i] != text {
				t.Errorf("%s: expected %s at %d, got %s", user, text, i, got[i])
			}
		}
	}
}

func TestQueue_PublishAfterClose(t *testing.T) {
	q := New(1, 1, testEBLogger())
	q.Close()
	if q.Publish(domain.Event{AuthID: "x"}) {
		t.Error("publish after close should be rejected")
	}
}

func TestQueue_ShardIsStable(t *testing.T) {
	q := New(8, 1, testEBLogger())
	first := q.shardFor("user-42")
	for i := 0; i < 10; i++ {
		if q.shardFor("user-42") != first {
			t.Fatal("shard assignment should be stable")
		}
	}
}
