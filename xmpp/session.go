// Package xmpp owns the outbound chat session: a narrow session
// abstraction over the protocol client and the single-consumer actor
// that serializes all session operations.
package xmpp

import (
	"context"
	"errors"
)

// DestinationKind selects the semantic message type for a destination.
type DestinationKind int

const (
	// KindUser targets a single account; messages go out as one-to-one
	// chat messages.
	KindUser DestinationKind = iota
	// KindRoom targets a multi-user room; messages go out as groupchat.
	KindRoom
)

// Destination is a chat target address. Identity is the address string.
type Destination struct {
	Kind    DestinationKind
	Address string
}

func UserDestination(address string) Destination {
	return Destination{Kind: KindUser, Address: address}
}

func RoomDestination(address string) Destination {
	return Destination{Kind: KindRoom, Address: address}
}

// ErrAuthFailed marks credential rejection by the server. It is
// unrecoverable: retrying with the same credentials cannot succeed.
var ErrAuthFailed = errors.New("xmpp: authentication failed")

// EventKind classifies asynchronous session events.
type EventKind int

const (
	// EventConnected reports an established session.
	EventConnected EventKind = iota
	// EventDisconnected reports a lost session; Err carries the cause
	// when one is known.
	EventDisconnected
	// EventMessage reports an inbound chat message.
	EventMessage
)

// Event is one asynchronous occurrence on the session.
type Event struct {
	Kind EventKind
	Err  error
	From string
	Body string
}

// Session is the capability the actor drives. Implementations are not
// required to be safe for concurrent use; the actor is the only caller.
type Session interface {
	// Connect authenticates and establishes the stream.
	Connect(ctx context.Context) error

	// Announce broadcasts online presence.
	Announce() error

	// JoinRoom enters a multi-user room so groupchat sends reach it.
	JoinRoom(room string) error

	// SendChat delivers a one-to-one chat message.
	SendChat(to, body string) error

	// SendGroupchat delivers a groupchat message to a joined room.
	SendGroupchat(to, body string) error

	// Events exposes connection and inbound-message events.
	Events() <-chan Event

	// Close tears the session down. Idempotent.
	Close() error
}
