package models

import "time"

// DeliveryOutcome records how the bus disposed of a message.
type DeliveryOutcome string

const (
	// DeliveryQueued indicates the message is sitting in a mailbox.
	DeliveryQueued DeliveryOutcome = "queued"
	// DeliveryDelivered indicates the recipient consumed the message.
	DeliveryDelivered DeliveryOutcome = "delivered"
	// DeliveryDeadLettered indicates the message could not be delivered
	// and was routed to the dead-letter queue.
	DeliveryDeadLettered DeliveryOutcome = "dead_lettered"
)

// Valid returns true if the outcome is a known value.
func (o DeliveryOutcome) Valid() bool {
	switch o {
	case DeliveryQueued, DeliveryDelivered, DeliveryDeadLettered:
		return true
	default:
		return false
	}
}

// Message is a unit of communication between agents.
// Ownership transfers from the sender to the bus on send; the recipient
// consumes it exactly once, or it lands in the dead-letter queue.
type Message struct {
	// ID is the unique identifier for this message.
	ID string `json:"id"`
	// From is the sender's agent ID.
	From string `json:"from"`
	// To is the recipient's agent ID. Empty for topic publishes.
	To string `json:"to,omitempty"`
	// Topic is the publish topic. Empty for direct sends.
	Topic string `json:"topic,omitempty"`
	// Type classifies the message (e.g. "task", "result", "broadcast").
	Type string `json:"type"`
	// Payload is the message body. Opaque to the bus.
	Payload any `json:"payload,omitempty"`
	// CreatedAt is when the sender handed the message to the bus.
	CreatedAt time.Time `json:"created_at"`
	// Outcome records the delivery disposition.
	Outcome DeliveryOutcome `json:"outcome"`
	// DeadLetterReason explains why the message was dead-lettered, if it was.
	DeadLetterReason string `json:"dead_letter_reason,omitempty"`
}
