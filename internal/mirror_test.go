package internal

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/message"
)

// stubBackend records published messages for assertions.
type stubBackend struct {
	published   int
	lastTopic   string
	lastPayload []byte
	lastMeta    message.Metadata
}

func (s *stubBackend) Publish(topic string, msgs ...*message.Message) error {
	s.published += len(msgs)
	s.lastTopic = topic
	if len(msgs) > 0 {
		s.lastPayload = append([]byte(nil), msgs[0].Payload...)
		s.lastMeta = msgs[0].Metadata
	}
	return nil
}

func (s *stubBackend) Close() error {
	return nil
}

func withStubDriver(t *testing.T, name string, stub *stubBackend, closeFn func() error) {
	t.Helper()
	orig, had := backendFactories[name]
	t.Cleanup(func() {
		if had {
			backendFactories[name] = orig
		} else {
			delete(backendFactories, name)
		}
	})
	RegisterMirrorDriver(name, func(cfg MirrorConfig, logger watermill.LoggerAdapter) (message.Publisher, func() error, error) {
		return stub, closeFn, nil
	})
}

// TestRegisterMirrorDriver tests that a custom backend can be registered and used.
func TestRegisterMirrorDriver(t *testing.T) {
	stub := &stubBackend{}
	closed := false
	withStubDriver(t, "custom", stub, func() error { closed = true; return nil })

	mirror, err := NewMirror(MirrorConfig{Driver: "custom"})
	if err != nil {
		t.Fatalf("new mirror: %v", err)
	}

	event := Event{Name: "push", Repository: "org/repo"}
	if err := mirror.Publish(context.Background(), "custom.topic", event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if stub.published != 1 || stub.lastTopic != "custom.topic" {
		t.Fatalf("expected one publish to custom.topic, got %d to %q", stub.published, stub.lastTopic)
	}

	if err := mirror.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if !closed {
		t.Fatalf("expected backend close to be called")
	}
}

// TestMirrorMultipleDrivers tests fan-out across configured backends.
func TestMirrorMultipleDrivers(t *testing.T) {
	a := &stubBackend{}
	b := &stubBackend{}
	withStubDriver(t, "multi-a", a, nil)
	withStubDriver(t, "multi-b", b, nil)

	mirror, err := NewMirror(MirrorConfig{Drivers: []string{"multi-a", "multi-b"}})
	if err != nil {
		t.Fatalf("new mirror: %v", err)
	}

	if err := mirror.Publish(context.Background(), "multi.topic", Event{Name: "push"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if a.published != 1 || b.published != 1 {
		t.Fatalf("expected publish to both backends, got a=%d b=%d", a.published, b.published)
	}
}

// TestMirrorDriverSelection tests that explicit drivers restrict the fan-out.
func TestMirrorDriverSelection(t *testing.T) {
	a := &stubBackend{}
	b := &stubBackend{}
	withStubDriver(t, "sel-a", a, nil)
	withStubDriver(t, "sel-b", b, nil)

	mirror, err := NewMirror(MirrorConfig{Drivers: []string{"sel-a", "sel-b"}})
	if err != nil {
		t.Fatalf("new mirror: %v", err)
	}

	if err := mirror.PublishForDrivers(context.Background(), "sel.topic", Event{Name: "push"}, []string{"sel-b"}); err != nil {
		t.Fatalf("publish: %v", err)
	}
	if a.published != 0 || b.published != 1 {
		t.Fatalf("expected publish to sel-b only, got a=%d b=%d", a.published, b.published)
	}
}

// TestMirrorForwardsRawPayloadAndMetadata tests payload passthrough and metadata.
func TestMirrorForwardsRawPayloadAndMetadata(t *testing.T) {
	stub := &stubBackend{}
	withStubDriver(t, "payload", stub, nil)

	mirror, err := NewMirror(MirrorConfig{Driver: "payload"})
	if err != nil {
		t.Fatalf("new mirror: %v", err)
	}

	raw := []byte(`{"hello":"world"}`)
	event := Event{
		Name:       "push",
		Action:     "",
		Repository: "org/repo",
		RawPayload: json.RawMessage(raw),
	}
	if err := mirror.Publish(context.Background(), "payload.topic", event); err != nil {
		t.Fatalf("publish: %v", err)
	}

	if string(stub.lastPayload) != string(raw) {
		t.Fatalf("expected raw payload forwarded, got %s", stub.lastPayload)
	}
	if stub.lastMeta.Get("event") != "push" {
		t.Fatalf("expected event metadata")
	}
	if stub.lastMeta.Get("repository") != "org/repo" {
		t.Fatalf("expected repository metadata")
	}
}

// TestHTTPTargetURL tests target construction for the http backend.
func TestHTTPTargetURL(t *testing.T) {
	url, err := httpTargetURL(HTTPConfig{Mode: "base_url", BaseURL: "http://localhost:8080/hooks"}, "topic")
	if err != nil {
		t.Fatalf("httpTargetURL: %v", err)
	}
	if url != "http://localhost:8080/hooks/topic" {
		t.Fatalf("unexpected url: %q", url)
	}

	url, err = httpTargetURL(HTTPConfig{Mode: "topic_url"}, "http://example.org/sink")
	if err != nil {
		t.Fatalf("httpTargetURL: %v", err)
	}
	if url != "http://example.org/sink" {
		t.Fatalf("unexpected url: %q", url)
	}
}
