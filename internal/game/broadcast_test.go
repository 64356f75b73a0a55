package game_test

import (
	"testing"
	"time"

	"github.com/gametable/gametable-server-go/internal/game"
)

func TestBroadcasterDeliversToAllSubscribers(t *testing.T) {
	b := game.NewBroadcaster(4)

	sub1, unsub1 := b.Subscribe()
	sub2, unsub2 := b.Subscribe()
	defer unsub1()
	defer unsub2()

	b.Publish(game.Message{Kind: game.KindEvent, Payload: []byte("hello")})

	for _, sub := range []<-chan game.Message{sub1, sub2} {
		select {
		case msg := <-sub:
			if string(msg.Payload) != "hello" {
				t.Fatalf("payload = %q, want %q", msg.Payload, "hello")
			}
		case <-time.After(time.Second):
			t.Fatal("subscriber did not receive the message")
		}
	}
}

func TestBroadcasterDropsOldestWhenFull(t *testing.T) {
	b := game.NewBroadcaster(2)
	sub, unsubscribe := b.Subscribe()
	defer unsubscribe()

	for _, payload := range []string{"1", "2", "3", "4"} {
		b.Publish(game.Message{Kind: game.KindEvent, Payload: []byte(payload)})
	}

	// The two oldest messages were evicted; the newest two survive in
	// order.
	if got := string((<-sub).Payload); got != "3" {
		t.Fatalf("first delivered = %q, want %q", got, "3")
	}
	if got := string((<-sub).Payload); got != "4" {
		t.Fatalf("second delivered = %q, want %q", got, "4")
	}
}

func TestBroadcasterSlowSubscriberDoesNotBlockPublish(t *testing.T) {
	b := game.NewBroadcaster(1)
	_, unsubscribe := b.Subscribe()
	defer unsubscribe()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 1000; i++ {
			b.Publish(game.Message{Kind: game.KindEvent, Payload: []byte("x")})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("publisher stalled on a subscriber that never reads")
	}
}

func TestBroadcasterUnsubscribeClosesChannel(t *testing.T) {
	b := game.NewBroadcaster(2)
	sub, unsubscribe := b.Subscribe()

	unsubscribe()
	if _, open := <-sub; open {
		t.Fatal("expected channel closed after unsubscribe")
	}
	if b.SubscriberCount() != 0 {
		t.Fatalf("SubscriberCount = %d, want 0", b.SubscriberCount())
	}

	// Unsubscribing twice and publishing afterwards are both harmless.
	unsubscribe()
	b.Publish(game.Message{Kind: game.KindEvent, Payload: []byte("x")})
}
