package swarm

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"
)

func TestBusDirectSend(t *testing.T) {
	bus := NewMessageBus(BusConfig{})
	bus.Register("a")
	bus.Register("b")

	msg, err := bus.Send(context.Background(), "a", "b", "greeting", "hello")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Outcome != "queued" {
		t.Errorf("outcome = %s, want queued", msg.Outcome)
	}

	got, err := bus.Receive(context.Background(), "b")
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if got.Payload != "hello" || got.From != "a" {
		t.Errorf("unexpected message: %+v", got)
	}
	if got.Outcome != "delivered" {
		t.Errorf("outcome after receive = %s, want delivered", got.Outcome)
	}
}

func TestBusUnknownRecipientDeadLetters(t *testing.T) {
	bus := NewMessageBus(BusConfig{})
	bus.Register("a")

	msg, err := bus.Send(context.Background(), "a", "ghost", "greeting", "anyone?")
	if err != nil {
		t.Fatalf("send: %v", err)
	}
	if msg.Outcome != "dead_lettered" {
		t.Errorf("outcome = %s, want dead_lettered", msg.Outcome)
	}

	dead := bus.DeadLetters()
	if len(dead) != 1 {
		t.Fatalf("expected 1 dead letter, got %d", len(dead))
	}
	if !strings.Contains(dead[0].DeadLetterReason, "unknown recipient") {
		t.Errorf("unexpected reason: %q", dead[0].DeadLetterReason)
	}
}

func TestBusTerminatingRecipientDeadLetters(t *testing.T) {
	bus := NewMessageBus(BusConfig{})
	bus.Register("a")
	bus.Register("b")
	bus.SetTerminating("b")

	msg, _ := bus.Send(context.Background(), "a", "b", "late", "too late")
	if msg.Outcome != "dead_lettered" {
		t.Errorf("outcome = %s, want dead_lettered", msg.Outcome)
	}
}

func TestBusDropPolicyDeadLettersOnlyOverflow(t *testing.T) {
	bus := NewMessageBus(BusConfig{MailboxCapacity: 2, Policy: PolicyDrop})
	bus.Register("a")
	bus.Register("b")

	ctx := context.Background()
	for i := 0; i < 2; i++ {
		msg, _ := bus.Send(ctx, "a", "b", "fill", i)
		if msg.Outcome != "queued" {
			t.Fatalf("message %d should be queued, got %s", i, msg.Outcome)
		}
	}

	// The third message overflows and is the one dead-lettered.
	overflow, _ := bus.Send(ctx, "a", "b", "fill", 2)
	if overflow.Outcome != "dead_lettered" {
		t.Fatalf("overflow outcome = %s, want dead_lettered", overflow.Outcome)
	}

	dead := bus.DeadLetters()
	if len(dead) != 1 {
		t.Fatalf("expected exactly 1 dead letter, got %d", len(dead))
	}
	if dead[0].ID != overflow.ID {
		t.Error("a message already accepted into the mailbox was dead-lettered")
	}

	// The accepted messages are still readable in order.
	for i := 0; i < 2; i++ {
		got, err := bus.Receive(ctx, "b")
		if err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		if got.Payload != i {
			t.Errorf("payload = %v, want %d", got.Payload, i)
		}
	}
}

func TestBusBlockPolicyRespectsContext(t *testing.T) {
	bus := NewMessageBus(BusConfig{MailboxCapacity: 1, Policy: PolicyBlock})
	bus.Register("a")
	bus.Register("b")

	ctx := context.Background()
	if _, err := bus.Send(ctx, "a", "b", "fill", 0); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Mailbox is full; a blocked sender must give up when cancelled.
	cancelCtx, cancel := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancel()
	if _, err := bus.Send(cancelCtx, "a", "b", "fill", 1); err == nil {
		t.Fatal("expected context error for blocked sender")
	}
}

func TestBusFIFOPerSenderUnderConcurrency(t *testing.T) {
	const perSender = 50
	bus := NewMessageBus(BusConfig{MailboxCapacity: 4 * perSender})
	bus.Register("alpha")
	bus.Register("beta")
	bus.Register("sink")

	ctx := context.Background()
	var wg sync.WaitGroup
	for _, sender := range []string{"alpha", "beta"} {
		wg.Add(1)
		go func(from string) {
			defer wg.Done()
			for i := 0; i < perSender; i++ {
				if _, err := bus.Send(ctx, from, "sink", "seq", fmt.Sprintf("%s-%d", from, i)); err != nil {
					t.Errorf("send %s-%d: %v", from, i, err)
					return
				}
			}
		}(sender)
	}
	wg.Wait()

	// Each sender's messages arrive in send order regardless of interleaving.
	next := map[string]int{"alpha": 0, "beta": 0}
	for i := 0; i < 2*perSender; i++ {
		msg, err := bus.Receive(ctx, "sink")
		if err != nil {
			t.Fatalf("receive %d: %v", i, err)
		}
		want := fmt.Sprintf("%s-%d", msg.From, next[msg.From])
		if msg.Payload != want {
			t.Fatalf("out of order from %s: got %v, want %s", msg.From, msg.Payload, want)
		}
		next[msg.From]++
	}
}

func TestBusBroadcastExcludesSender(t *testing.T) {
	bus := NewMessageBus(BusConfig{})
	for _, id := range []string{"a", "b", "c"} {
		bus.Register(id)
	}

	n, err := bus.Broadcast(context.Background(), "a", "announce", "hi all")
	if err != nil {
		t.Fatalf("broadcast: %v", err)
	}
	if n != 2 {
		t.Errorf("delivered = %d, want 2", n)
	}
	if got := bus.TryReceive("a"); got != nil {
		t.Error("sender received its own broadcast")
	}
}

func TestBusTopicPublish(t *testing.T) {
	bus := NewMessageBus(BusConfig{})
	for _, id := range []string{"a", "b", "c"} {
		bus.Register(id)
	}
	bus.Subscribe("b", "research")
	bus.Subscribe("c", "research")

	n, err := bus.Publish(context.Background(), "a", "research", "finding", "data")
	if err != nil {
		t.Fatalf("publish: %v", err)
	}
	if n != 2 {
		t.Errorf("delivered = %d, want 2", n)
	}

	msg, err := bus.Receive(context.Background(), "b")
	if err != nil {
		t.Fatalf("receive: %v", err)
	}
	if msg.Topic != "research" {
		t.Errorf("topic = %q, want research", msg.Topic)
	}

	bus.Unsubscribe("c", "research")
	n, _ = bus.Publish(context.Background(), "a", "research", "finding", "more")
	if n != 1 {
		t.Errorf("after unsubscribe delivered = %d, want 1", n)
	}
}

func TestBusUnregisterDeadLettersUnread(t *testing.T) {
	bus := NewMessageBus(BusConfig{})
	bus.Register("a")
	bus.Register("b")

	bus.Send(context.Background(), "a", "b", "pending", "unread")
	bus.Unregister("b")

	if bus.DeadLetterCount() != 1 {
		t.Errorf("dead letters = %d, want 1", bus.DeadLetterCount())
	}
}

func TestBusUnregisterReleasesBlockedSender(t *testing.T) {
	bus := NewMessageBus(BusConfig{MailboxCapacity: 1, Policy: PolicyBlock})
	bus.Register("a")
	bus.Register("b")

	ctx := context.Background()
	if _, err := bus.Send(ctx, "a", "b", "fill", 0); err != nil {
		t.Fatalf("send: %v", err)
	}

	// Park a second sender on the full mailbox.
	done := make(chan struct{})
	go func() {
		defer close(done)
		msg, err := bus.Send(ctx, "a", "b", "fill", 1)
		if err != nil {
			t.Errorf("blocked send: %v", err)
			return
		}
		if msg.Outcome != "dead_lettered" {
			t.Errorf("blocked send outcome = %s, want dead_lettered", msg.Outcome)
		}
	}()
	time.Sleep(20 * time.Millisecond)

	bus.Unregister("b")
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("blocked sender never released after unregister")
	}

	// Both the queued and the blocked message surface in the dead-letter
	// queue; neither is silently lost.
	if got := bus.DeadLetterCount(); got != 2 {
		t.Fatalf("dead letters = %d, want 2", got)
	}
}

func TestBusClose(t *testing.T) {
	bus := NewMessageBus(BusConfig{})
	bus.Register("a")
	bus.Register("b")
	bus.Close()

	if _, err := bus.Send(context.Background(), "a", "b", "x", nil); err != ErrBusClosed {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
	if _, err := bus.Receive(context.Background(), "b"); err != ErrBusClosed {
		t.Errorf("expected ErrBusClosed, got %v", err)
	}
}
