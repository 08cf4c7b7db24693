package internal

import (
	"os"
	"path/filepath"
	"testing"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

// TestLoadConfigDefaults tests that default values are applied when loading a config.
func TestLoadConfigDefaults(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "{}\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}

	if cfg.Server.Port != 8000 {
		t.Fatalf("expected default port 8000, got %d", cfg.Server.Port)
	}
	if cfg.Webhook.Path != "/webhook" {
		t.Fatalf("expected default webhook path, got %q", cfg.Webhook.Path)
	}
	if cfg.Webhook.TemplatesDir != "templates" {
		t.Fatalf("expected default templates dir, got %q", cfg.Webhook.TemplatesDir)
	}
	if cfg.XMPP.Resource != "bot" {
		t.Fatalf("expected default resource bot, got %q", cfg.XMPP.Resource)
	}
	if cfg.XMPP.MailboxSize != 32 {
		t.Fatalf("expected default mailbox size 32, got %d", cfg.XMPP.MailboxSize)
	}
	if cfg.Mirror.Driver != "gochannel" {
		t.Fatalf("expected default mirror driver, got %q", cfg.Mirror.Driver)
	}
	if cfg.Mirror.GoChannel.OutputChannelBuffer != 64 {
		t.Fatalf("expected default gochannel output buffer, got %d", cfg.Mirror.GoChannel.OutputChannelBuffer)
	}
	if cfg.Mirror.HTTP.Mode != "topic_url" {
		t.Fatalf("expected default http mode topic_url, got %q", cfg.Mirror.HTTP.Mode)
	}
}

// TestLoadConfigExpandsEnv tests that environment variables in the file are expanded.
func TestLoadConfigExpandsEnv(t *testing.T) {
	t.Setenv("TEST_XMPP_PASSWORD", "hunter2")

	cfg, err := LoadConfig(writeConfig(t, "xmpp:\n  jid: bot@example.org\n  password: ${TEST_XMPP_PASSWORD}\n"))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if cfg.XMPP.Password != "hunter2" {
		t.Fatalf("expected expanded password, got %q", cfg.XMPP.Password)
	}
}

// TestLoadConfigRoutes tests route validation.
func TestLoadConfigRoutes(t *testing.T) {
	content := "webhook:\n  repos:\n    - repo: org/repo\n      room: room@muc.example.org\n"
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Webhook.Repos) != 1 || cfg.Webhook.Repos[0].Room != "room@muc.example.org" {
		t.Fatalf("unexpected routes: %+v", cfg.Webhook.Repos)
	}

	bad := "webhook:\n  repos:\n    - repo: org/repo\n"
	if _, err := LoadConfig(writeConfig(t, bad)); err == nil {
		t.Fatalf("expected error for route without destination")
	}

	both := "webhook:\n  repos:\n    - repo: org/repo\n      room: a@muc.example.org\n      user: b@example.org\n"
	if _, err := LoadConfig(writeConfig(t, both)); err == nil {
		t.Fatalf("expected error for route with both destinations")
	}
}

// TestLoadConfigInvalidRule tests that a rule without when or effect is rejected.
func TestLoadConfigInvalidRule(t *testing.T) {
	if _, err := LoadConfig(writeConfig(t, "rules:\n  - emit: topic\n")); err == nil {
		t.Fatalf("expected error for rule without when")
	}
	if _, err := LoadConfig(writeConfig(t, "rules:\n  - when: action == \"opened\"\n")); err == nil {
		t.Fatalf("expected error for rule without emit or mute")
	}
}

// TestLoadConfigEmitScalarOrList tests both YAML shapes of emit.
func TestLoadConfigEmitScalarOrList(t *testing.T) {
	content := "rules:\n" +
		"  - when: action == \"opened\"\n    emit: pr.opened\n" +
		"  - when: action == \"closed\"\n    emit:\n      - pr.closed\n      - pr.done\n"
	cfg, err := LoadConfig(writeConfig(t, content))
	if err != nil {
		t.Fatalf("load config: %v", err)
	}
	if len(cfg.Rules[0].Emit) != 1 || cfg.Rules[0].Emit[0] != "pr.opened" {
		t.Fatalf("unexpected scalar emit: %v", cfg.Rules[0].Emit)
	}
	if len(cfg.Rules[1].Emit) != 2 {
		t.Fatalf("unexpected list emit: %v", cfg.Rules[1].Emit)
	}
}
