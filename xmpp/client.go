package xmpp

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	fluux "gosrc.io/xmpp"
	"gosrc.io/xmpp/stanza"
)

// ClientConfig identifies the bot account on the server.
type ClientConfig struct {
	// JID is the bare account identifier ("bot@example.org").
	JID string
	// Password is the account secret.
	Password string
	// Address is the server host:port; empty means SRV/domain lookup
	// from the JID.
	Address string
	// Resource distinguishes this connection from other sessions of the
	// same account.
	Resource string
	// Nickname is used when joining rooms.
	Nickname string
}

// Client implements Session on top of the gosrc.io/xmpp client. Each
// Connect builds a fresh underlying client; the previous one, if any,
// is discarded.
type Client struct {
	cfg    ClientConfig
	logger *log.Logger
	events chan Event

	mu   sync.Mutex
	conn *fluux.Client
}

var _ Session = (*Client)(nil)

func NewClient(cfg ClientConfig, logger *log.Logger) *Client {
	if logger == nil {
		logger = log.Default()
	}
	return &Client{
		cfg:    cfg,
		logger: logger,
		events: make(chan Event, 8),
	}
}

func (c *Client) Connect(ctx context.Context) error {
	jid := c.cfg.JID
	if c.cfg.Resource != "" {
		jid = jid + "/" + c.cfg.Resource
	}

	config := &fluux.Config{
		TransportConfiguration: fluux.TransportConfiguration{
			Address: c.cfg.Address,
		},
		Jid:        jid,
		Credential: fluux.Password(c.cfg.Password),
	}

	router := fluux.NewRouter()
	router.HandleFunc("message", c.handleInbound)

	conn, err := fluux.NewClient(config, router, c.handleStreamError)
	if err != nil {
		return err
	}
	if err := conn.Connect(); err != nil {
		if isAuthError(err) {
			return fmt.Errorf("%w: %v", ErrAuthFailed, err)
		}
		return err
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()

	c.logger.Printf("connected as %s", jid)
	c.emit(Event{Kind: EventConnected})
	return nil
}

func (c *Client) Announce() error {
	presence := stanza.Presence{Attrs: stanza.Attrs{}}
	presence.Show = stanza.PresenceShowChat
	return c.send(presence)
}

func (c *Client) JoinRoom(room string) error {
	presence := stanza.Presence{Attrs: stanza.Attrs{To: room + "/" + c.cfg.Nickname}}
	presence.Extensions = append(presence.Extensions, stanza.MucPresence{})
	return c.send(presence)
}

func (c *Client) SendChat(to, body string) error {
	return c.send(stanza.Message{
		Attrs: stanza.Attrs{To: to, Type: stanza.MessageTypeChat},
		Body:  body,
	})
}

func (c *Client) SendGroupchat(to, body string) error {
	return c.send(stanza.Message{
		Attrs: stanza.Attrs{To: to, Type: stanza.MessageTypeGroupchat},
		Body:  body,
	})
}

func (c *Client) Events() <-chan Event {
	return c.events
}

func (c *Client) Close() error {
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	c.mu.Unlock()
	if conn != nil {
		conn.Disconnect()
	}
	return nil
}

func (c *Client) send(packet stanza.Packet) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return errors.New("xmpp: not connected")
	}

	if err := conn.Send(packet); err != nil {
		c.mu.Lock()
		c.conn = nil
		c.mu.Unlock()
		c.emit(Event{Kind: EventDisconnected, Err: err})
		return err
	}
	return nil
}

func (c *Client) handleInbound(s fluux.Sender, p stanza.Packet) {
	msg, ok := p.(stanza.Message)
	if !ok {
		return
	}
	c.emit(Event{Kind: EventMessage, From: msg.From, Body: msg.Body})
}

func (c *Client) handleStreamError(err error) {
	if isAuthError(err) {
		c.emit(Event{Kind: EventDisconnected, Err: fmt.Errorf("%w: %v", ErrAuthFailed, err)})
		return
	}
	c.mu.Lock()
	c.conn = nil
	c.mu.Unlock()
	c.emit(Event{Kind: EventDisconnected, Err: err})
}

// emit never blocks; a full event buffer drops the oldest information
// the consumer has not read rather than stalling the stream reader.
func (c *Client) emit(event Event) {
	select {
	case c.events <- event:
	default:
	}
}

func isAuthError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "sasl") ||
		strings.Contains(msg, "not-authorized") ||
		strings.Contains(msg, "auth")
}
