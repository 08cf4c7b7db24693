package xmpp

import (
	"context"
	"errors"
	"fmt"
	"log"

	"xmppwebhook/internal"
)

// OutboundMessage is one queued notification.
type OutboundMessage struct {
	To   Destination
	Body string
}

// ActorConfig configures the session actor.
type ActorConfig struct {
	// Rooms are joined after every successful connect, in order.
	Rooms []string
	// Operator receives a heartbeat chat message once per connect.
	Operator string
	// MailboxSize bounds the outbound queue.
	MailboxSize int
	Logger      *log.Logger
}

// Actor owns the session. It is the only goroutine touching the
// Session, so connect, join and send never race. Messages are accepted
// through Enqueue and delivered best-effort: the session is
// (re)established lazily when a message needs it, and delivery failures
// are logged, never reported back to the producer.
type Actor struct {
	session  Session
	rooms    []string
	operator string
	mailbox  chan OutboundMessage
	logger   *log.Logger

	connected bool
}

func NewActor(session Session, cfg ActorConfig) *Actor {
	size := cfg.MailboxSize
	if size <= 0 {
		size = 32
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Actor{
		session:  session,
		rooms:    cfg.Rooms,
		operator: cfg.Operator,
		mailbox:  make(chan OutboundMessage, size),
		logger:   logger,
	}
}

// Enqueue hands a message to the actor without blocking. When the
// mailbox is full the message is dropped; producers trade guaranteed
// delivery for predictable latency.
func (a *Actor) Enqueue(to Destination, body string) {
	select {
	case a.mailbox <- OutboundMessage{To: to, Body: body}:
		internal.IncEnqueued()
	default:
		internal.IncDropped()
		a.logger.Printf("mailbox full, dropping message for %s", to.Address)
	}
}

// Run consumes the mailbox and session events until the context is
// canceled. It returns a non-nil error only for unrecoverable session
// failures (rejected credentials).
func (a *Actor) Run(ctx context.Context) error {
	defer a.session.Close()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event := <-a.session.Events():
			if err := a.handleEvent(event); err != nil {
				return err
			}
		case msg := <-a.mailbox:
			if err := a.deliver(msg); err != nil {
				return err
			}
		}
	}
}

func (a *Actor) handleEvent(event Event) error {
	switch event.Kind {
	case EventConnected:
		a.connected = true
	case EventDisconnected:
		a.connected = false
		if errors.Is(event.Err, ErrAuthFailed) {
			return fmt.Errorf("session lost: %w", event.Err)
		}
		if event.Err != nil {
			a.logger.Printf("disconnected: %v", event.Err)
		} else {
			a.logger.Printf("disconnected: <no reason given>")
		}
	case EventMessage:
		a.logger.Printf("received message from %s: %s", event.From, event.Body)
	}
	return nil
}

// deliver sends one message, connecting first if needed. Only a
// credentials rejection propagates; all other failures leave the actor
// disconnected for the next attempt.
func (a *Actor) deliver(msg OutboundMessage) error {
	if err := a.ensureConnected(); err != nil {
		if errors.Is(err, ErrAuthFailed) {
			return err
		}
		internal.IncSendError()
		a.logger.Printf("connect failed, dropping message for %s: %v", msg.To.Address, err)
		return nil
	}

	var err error
	switch msg.To.Kind {
	case KindRoom:
		err = a.session.SendGroupchat(msg.To.Address, msg.Body)
	default:
		err = a.session.SendChat(msg.To.Address, msg.Body)
	}
	if err != nil {
		a.connected = false
		internal.IncSendError()
		a.logger.Printf("send to %s failed: %v", msg.To.Address, err)
		return nil
	}
	internal.IncSent()
	return nil
}

// ensureConnected is a no-op on a live session. Otherwise it runs the
// full startup sequence; any step failing aborts the attempt and the
// actor stays disconnected.
func (a *Actor) ensureConnected() error {
	if a.connected {
		return nil
	}

	if err := a.session.Connect(context.Background()); err != nil {
		return err
	}
	if err := a.session.Announce(); err != nil {
		return err
	}
	for _, room := range a.rooms {
		if err := a.session.JoinRoom(room); err != nil {
			return fmt.Errorf("join %s: %w", room, err)
		}
	}
	if a.operator != "" {
		if err := a.session.SendChat(a.operator, "webhook bridge online"); err != nil {
			return err
		}
	}

	a.connected = true
	return nil
}
