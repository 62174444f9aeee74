package swarm

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/nexusswarm/nexus/pkg/models"
)

// BackpressurePolicy selects what a full mailbox does to a sender.
// It is a per-bus configuration option, not a per-message choice.
type BackpressurePolicy string

const (
	// PolicyBlock makes the sender wait until mailbox space frees or its
	// context is cancelled.
	PolicyBlock BackpressurePolicy = "block"
	// PolicyDrop dead-letters the incoming message when the mailbox is
	// full. Messages already accepted into a mailbox are never disturbed.
	PolicyDrop BackpressurePolicy = "drop"
)

// DefaultMailboxCapacity bounds each recipient's mailbox unless configured.
const DefaultMailboxCapacity = 64

// BusConfig configures a MessageBus.
type BusConfig struct {
	// MailboxCapacity is the bounded size of each recipient's mailbox.
	MailboxCapacity int
	// Policy is the backpressure behavior when a mailbox is full.
	Policy BackpressurePolicy
}

// mailbox is the bounded per-recipient queue. The channel gives FIFO
// ordering per sender/recipient pair: a sender's sends complete in order,
// and the recipient drains in arrival order. done is closed on unregister
// to wake senders parked on a full mailbox; sending tracks in-flight
// deliveries so the unregister drain cannot run while a sender is still
// committing a message.
type mailbox struct {
	ch          chan *models.Message
	done        chan struct{}
	terminating atomic.Bool
	sending     sync.WaitGroup
}

// MessageBus routes messages between agents with direct, broadcast, and
// topic delivery. Undeliverable messages are dead-lettered, never silently
// dropped.
type MessageBus struct {
	cfg BusConfig

	mu        sync.Mutex
	mailboxes map[string]*mailbox
	topics    map[string]map[string]bool
	dead      []*models.Message
	closed    bool

	sent         atomic.Uint64
	deadLettered atomic.Uint64
}

// NewMessageBus creates a bus with the given configuration.
// Zero-value config fields fall back to DefaultMailboxCapacity and
// PolicyBlock.
func NewMessageBus(cfg BusConfig) *MessageBus {
	if cfg.MailboxCapacity <= 0 {
		cfg.MailboxCapacity = DefaultMailboxCapacity
	}
	if cfg.Policy == "" {
		cfg.Policy = PolicyBlock
	}
	return &MessageBus{
		cfg:       cfg,
		mailboxes: make(map[string]*mailbox),
		topics:    make(map[string]map[string]bool),
	}
}

// Register creates a mailbox for the recipient so it can receive messages.
// Registering an existing recipient is a no-op.
func (b *MessageBus) Register(agentID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	if _, ok := b.mailboxes[agentID]; !ok {
		b.mailboxes[agentID] = &mailbox{
			ch:   make(chan *models.Message, b.cfg.MailboxCapacity),
			done: make(chan struct{}),
		}
	}
}

// Unregister removes a recipient. Unread messages left in its mailbox are
// routed to the dead-letter queue.
func (b *MessageBus) Unregister(agentID string) {
	b.mu.Lock()
	mb, ok := b.mailboxes[agentID]
	delete(b.mailboxes, agentID)
	for _, subscribers := range b.topics {
		delete(subscribers, agentID)
	}
	b.mu.Unlock()

	if !ok {
		return
	}
	// Wake senders parked on the full mailbox, then wait until none is
	// mid-delivery before draining. A sender that already committed its
	// message has it dead-lettered here; one woken by done dead-letters
	// it itself. Either way nothing is lost.
	mb.terminating.Store(true)
	close(mb.done)
	mb.sending.Wait()
	for {
		select {
		case msg := <-mb.ch:
			b.deadLetter(msg, fmt.Sprintf("recipient %s unregistered", agentID))
		default:
			return
		}
	}
}

// SetTerminating marks a recipient as terminating. Subsequent sends to it
// are dead-lettered.
func (b *MessageBus) SetTerminating(agentID string) {
	b.mu.Lock()
	mb, ok := b.mailboxes[agentID]
	b.mu.Unlock()
	if ok {
		mb.terminating.Store(true)
	}
}

// Subscribe adds a recipient to a topic.
func (b *MessageBus) Subscribe(agentID, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.topics[topic]; !ok {
		b.topics[topic] = make(map[string]bool)
	}
	b.topics[topic][agentID] = true
}

// Unsubscribe removes a recipient from a topic.
func (b *MessageBus) Unsubscribe(agentID, topic string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.topics[topic], agentID)
}

// Send delivers a message directly to a specific recipient's mailbox.
// The returned message records the delivery outcome. A dead-lettered
// message is not an error for the sender; the error return covers only a
// closed bus or a cancelled context under the block policy.
func (b *MessageBus) Send(ctx context.Context, from, to, msgType string, payload any) (*models.Message, error) {
	msg := b.newMessage(from, msgType, payload)
	msg.To = to
	return msg, b.deliver(ctx, msg)
}

// Broadcast sends a copy of the payload to every registered recipient
// except the sender. Returns the number of copies accepted into mailboxes.
func (b *MessageBus) Broadcast(ctx context.Context, from, msgType string, payload any) (int, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, ErrBusClosed
	}
	recipients := make([]string, 0, len(b.mailboxes))
	for id := range b.mailboxes {
		if id != from {
			recipients = append(recipients, id)
		}
	}
	b.mu.Unlock()

	delivered := 0
	for _, id := range recipients {
		msg := b.newMessage(from, msgType, payload)
		msg.To = id
		if err := b.deliver(ctx, msg); err != nil {
			return delivered, err
		}
		if msg.Outcome == models.DeliveryQueued {
			delivered++
		}
	}
	return delivered, nil
}

// Publish sends a copy of the payload to every subscriber of a topic
// except the sender. Returns the number of copies accepted into mailboxes.
func (b *MessageBus) Publish(ctx context.Context, from, topic, msgType string, payload any) (int, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0, ErrBusClosed
	}
	var recipients []string
	for id := range b.topics[topic] {
		if id != from {
			recipients = append(recipients, id)
		}
	}
	b.mu.Unlock()

	delivered := 0
	for _, id := range recipients {
		msg := b.newMessage(from, msgType, payload)
		msg.To = id
		msg.Topic = topic
		if err := b.deliver(ctx, msg); err != nil {
			return delivered, err
		}
		if msg.Outcome == models.DeliveryQueued {
			delivered++
		}
	}
	return delivered, nil
}

// Receive blocks until the next message for the recipient arrives or the
// context is cancelled. The message is consumed exactly once.
func (b *MessageBus) Receive(ctx context.Context, agentID string) (*models.Message, error) {
	b.mu.Lock()
	mb, ok := b.mailboxes[agentID]
	closed := b.closed
	b.mu.Unlock()
	if closed {
		return nil, ErrBusClosed
	}
	if !ok {
		return nil, fmt.Errorf("agent %s is not registered on the bus", agentID)
	}

	select {
	case msg := <-mb.ch:
		msg.Outcome = models.DeliveryDelivered
		return msg, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// TryReceive returns the next message for the recipient without blocking,
// or nil if the mailbox is empty.
func (b *MessageBus) TryReceive(agentID string) *models.Message {
	b.mu.Lock()
	mb, ok := b.mailboxes[agentID]
	b.mu.Unlock()
	if !ok {
		return nil
	}
	select {
	case msg := <-mb.ch:
		msg.Outcome = models.DeliveryDelivered
		return msg
	default:
		return nil
	}
}

// DeadLetters returns a copy of the dead-letter queue for inspection.
func (b *MessageBus) DeadLetters() []models.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]models.Message, 0, len(b.dead))
	for _, msg := range b.dead {
		out = append(out, *msg)
	}
	return out
}

// DeadLetterCount returns the number of dead-lettered messages.
func (b *MessageBus) DeadLetterCount() int {
	return int(b.deadLettered.Load())
}

// MessageCount returns the number of messages handed to the bus.
func (b *MessageBus) MessageCount() int {
	return int(b.sent.Load())
}

// Close shuts down the bus. Further sends and receives fail with
// ErrBusClosed.
func (b *MessageBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.closed = true
}

func (b *MessageBus) newMessage(from, msgType string, payload any) *models.Message {
	b.sent.Add(1)
	return &models.Message{
		ID:        uuid.New().String()[:8],
		From:      from,
		Type:      msgType,
		Payload:   payload,
		CreatedAt: time.Now(),
	}
}

// deliver routes a message into its recipient's mailbox, applying the
// configured backpressure policy. Undeliverable messages are dead-lettered.
func (b *MessageBus) deliver(ctx context.Context, msg *models.Message) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return ErrBusClosed
	}
	mb, ok := b.mailboxes[msg.To]
	if ok {
		// Joined under the lock: Unregister removes the mailbox under the
		// same lock before waiting, so it cannot miss this delivery.
		mb.sending.Add(1)
	}
	b.mu.Unlock()

	if !ok {
		b.deadLetter(msg, fmt.Sprintf("unknown recipient %s", msg.To))
		return nil
	}
	defer mb.sending.Done()
	if mb.terminating.Load() {
		b.deadLetter(msg, fmt.Sprintf("recipient %s is terminating", msg.To))
		return nil
	}

	switch b.cfg.Policy {
	case PolicyDrop:
		select {
		case mb.ch <- msg:
			msg.Outcome = models.DeliveryQueued
		default:
			b.deadLetter(msg, fmt.Sprintf("mailbox full for %s", msg.To))
		}
	default: // PolicyBlock
		select {
		case mb.ch <- msg:
			msg.Outcome = models.DeliveryQueued
		case <-mb.done:
			b.deadLetter(msg, fmt.Sprintf("recipient %s unregistered", msg.To))
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// deadLetter records an undeliverable message. The queue is inspectable and
// every entry is logged.
func (b *MessageBus) deadLetter(msg *models.Message, reason string) {
	msg.Outcome = models.DeliveryDeadLettered
	msg.DeadLetterReason = reason

	b.mu.Lock()
	b.dead = append(b.dead, msg)
	b.mu.Unlock()

	b.deadLettered.Add(1)
	debugLog("[bus] dead-lettered message %s from %s to %s: %s", msg.ID, msg.From, msg.To, reason)
}
