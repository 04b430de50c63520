package shared

import (
	"time"
)

// EventType represents the type of domain event.
type EventType string

// Domain event types - these drive the event-driven architecture.
// Each event represents something significant that happened in the client
// state layer or in the session lifecycle.
const (
	// Session events
	EventSessionValidated   EventType = "session.validated"
	EventSessionExtended    EventType = "session.extended"
	EventSessionInvalidated EventType = "session.invalidated"

	// Auth events
	EventUserLoggedIn  EventType = "auth.logged_in"
	EventUserLoggedOut EventType = "auth.logged_out"

	// Cache events
	EventStoreRefreshed EventType = "cache.store_refreshed"
	EventStoreCleared   EventType = "cache.store_cleared"
)

// InvalidationReason explains why a session was invalidated.
type InvalidationReason string

const (
	// ReasonLogout means the user explicitly signed out.
	ReasonLogout InvalidationReason = "logout"

	// ReasonExpired means the session passed its expiry instant.
	ReasonExpired InvalidationReason = "expired"

	// ReasonRejected means the server reported the session as not
	// authenticated during validation.
	ReasonRejected InvalidationReason = "rejected"

	// ReasonUnreachable means validation failed repeatedly with transient
	// network errors and the client failed closed.
	ReasonUnreachable InvalidationReason = "unreachable"
)

// Event is the base interface for all domain events.
type Event interface {
	// EventType returns the type of the event.
	EventType() EventType

	// OccurredAt returns when the event occurred.
	OccurredAt() time.Time

	// AggregateID returns the ID of the aggregate that produced this event.
	AggregateID() string
}

// EventHandler processes a published event.
type EventHandler func(event Event) error

// EventBus delivers events to subscribed handlers.
type EventBus interface {
	Subscribe(eventType EventType, handler EventHandler) error
	SubscribeAll(handler EventHandler) error
	Publish(event Event) error
	Close() error
}

// BaseEvent provides common event functionality.
type BaseEvent struct {
	Type        EventType `json:"type"`
	Timestamp   time.Time `json:"timestamp"`
	AggregateId string    `json:"aggregate_id"`
}

// EventType implements Event interface.
func (e BaseEvent) EventType() EventType {
	return e.Type
}

// OccurredAt implements Event interface.
func (e BaseEvent) OccurredAt() time.Time {
	return e.Timestamp
}

// AggregateID implements Event interface.
func (e BaseEvent) AggregateID() string {
	return e.AggregateId
}

// NewBaseEvent creates a new base event.
func NewBaseEvent(eventType EventType, aggregateID string) BaseEvent {
	return BaseEvent{
		Type:        eventType,
		Timestamp:   time.Now(),
		AggregateId: aggregateID,
	}
}

// SessionInvalidatedEvent is emitted exactly once per sign-out or detected
// invalidation. Every cache store, the persistence adapter, and the identity
// store subscribe to it; subscription order encodes the cleanup order.
type SessionInvalidatedEvent struct {
	BaseEvent
	SessionID string             `json:"session_id"`
	Reason    InvalidationReason `json:"reason"`
}

// NewSessionInvalidatedEvent creates a new SessionInvalidatedEvent.
func NewSessionInvalidatedEvent(sessionID string, reason InvalidationReason) SessionInvalidatedEvent {
	return SessionInvalidatedEvent{
		BaseEvent: NewBaseEvent(EventSessionInvalidated, sessionID),
		SessionID: sessionID,
		Reason:    reason,
	}
}

// SessionValidatedEvent is emitted after a successful validation round-trip.
type SessionValidatedEvent struct {
	BaseEvent
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSessionValidatedEvent creates a new SessionValidatedEvent.
func NewSessionValidatedEvent(sessionID, userID string, expiresAt time.Time) SessionValidatedEvent {
	return SessionValidatedEvent{
		BaseEvent: NewBaseEvent(EventSessionValidated, sessionID),
		SessionID: sessionID,
		UserID:    userID,
		ExpiresAt: expiresAt,
	}
}

// SessionExtendedEvent is emitted after the server confirms an extension.
type SessionExtendedEvent struct {
	BaseEvent
	SessionID string    `json:"session_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// NewSessionExtendedEvent creates a new SessionExtendedEvent.
func NewSessionExtendedEvent(sessionID string, expiresAt time.Time) SessionExtendedEvent {
	return SessionExtendedEvent{
		BaseEvent: NewBaseEvent(EventSessionExtended, sessionID),
		SessionID: sessionID,
		ExpiresAt: expiresAt,
	}
}

// UserLoggedInEvent is emitted after a successful login, once the identity
// store holds the authenticated user.
type UserLoggedInEvent struct {
	BaseEvent
	UserID string `json:"user_id"`
	Email  string `json:"email"`
}

// NewUserLoggedInEvent creates a new UserLoggedInEvent.
func NewUserLoggedInEvent(userID, email string) UserLoggedInEvent {
	return UserLoggedInEvent{
		BaseEvent: NewBaseEvent(EventUserLoggedIn, userID),
		UserID:    userID,
		Email:     email,
	}
}

// StoreClearedEvent is emitted by a cache store after it resets, mainly for
// observability.
type StoreClearedEvent struct {
	BaseEvent
	StoreName string `json:"store_name"`
}

// NewStoreClearedEvent creates a new StoreClearedEvent.
func NewStoreClearedEvent(storeName string) StoreClearedEvent {
	return StoreClearedEvent{
		BaseEvent: NewBaseEvent(EventStoreCleared, storeName),
		StoreName: storeName,
	}
}
