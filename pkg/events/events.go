// Package events defines event types and structures for approval outcome notifications.
package events

import "time"

type EventType string

// Topic carries every approval outcome event.
const Topic = "coopcore.approvals.events"

const EventMetadataKey = "key"
const EventTypeMetadataKey = "event_type"

const (
	RequestApprovedEvent EventType = "approval.request.approved"
	RequestRejectedEvent EventType = "approval.request.rejected"
)

type BaseEvent struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	Timestamp time.Time `json:"timestamp"`
}

// RequestApproved is emitted exactly once when an approval request reaches
// its approved terminal state.
type RequestApproved struct {
	BaseEvent

	RequestID    string    `json:"request_id"`
	WorkflowCode string    `json:"workflow_code"`
	EntityType   string    `json:"entity_type"`
	EntityID     string    `json:"entity_id"`
	ActorUserID  string    `json:"actor_user_id"`
	ActedAt      time.Time `json:"acted_at"`
}

func (e RequestApproved) GetType() EventType {
	return RequestApprovedEvent
}

// RequestRejected is emitted exactly once when an approval request reaches
// its rejected terminal state. Reason carries the rejecting reviewer's
// comments, when present.
type RequestRejected struct {
	BaseEvent

	RequestID    string    `json:"request_id"`
	WorkflowCode string    `json:"workflow_code"`
	EntityType   string    `json:"entity_type"`
	EntityID     string    `json:"entity_id"`
	ActorUserID  string    `json:"actor_user_id"`
	ActedAt      time.Time `json:"acted_at"`
	Reason       string    `json:"reason,omitempty"`
}

func (e RequestRejected) GetType() EventType {
	return RequestRejectedEvent
}
