package internal

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the full application configuration.
type Config struct {
	// Server holds HTTP server settings.
	Server struct {
		Port           int    `yaml:"port"`
		ReadTimeoutMS  int64  `yaml:"read_timeout_ms"`
		WriteTimeoutMS int64  `yaml:"write_timeout_ms"`
		IdleTimeoutMS  int64  `yaml:"idle_timeout_ms"`
		ReadHeaderMS   int64  `yaml:"read_header_timeout_ms"`
		MaxBodyBytes   int64  `yaml:"max_body_bytes"`
		RateLimitRPS   int64  `yaml:"rate_limit_rps"`
		RateLimitBurst int64  `yaml:"rate_limit_burst"`
		MetricsEnabled bool   `yaml:"metrics_enabled"`
		MetricsPath    string `yaml:"metrics_path"`
	} `yaml:"server"`
	// XMPP holds the outbound chat session settings.
	XMPP XMPPConfig `yaml:"xmpp"`
	// Webhook holds the inbound webhook settings and repository routes.
	Webhook WebhookConfig `yaml:"webhook"`
	// Mirror configures the optional event mirror backends.
	Mirror MirrorConfig `yaml:"mirror"`
	// Rules select mirror topics and mute notifications per event.
	Rules       []Rule `yaml:"rules"`
	RulesStrict bool   `yaml:"rules_strict"`
}

// XMPPConfig identifies the bot account and the operator contact.
type XMPPConfig struct {
	JID         string `yaml:"jid"`
	Password    string `yaml:"password"`
	Address     string `yaml:"address"`
	Resource    string `yaml:"resource"`
	Nickname    string `yaml:"nickname"`
	OperatorJID string `yaml:"operator_jid"`
	MailboxSize int    `yaml:"mailbox_size"`
}

// WebhookConfig holds the webhook endpoint settings.
type WebhookConfig struct {
	Path         string      `yaml:"path"`
	Secret       string      `yaml:"secret"`
	TemplatesDir string      `yaml:"templates_dir"`
	Repos        []RepoRoute `yaml:"repos"`
}

// RepoRoute maps one repository to a chat destination. Exactly one of
// Room or User should be set.
type RepoRoute struct {
	Repo string `yaml:"repo"`
	Room string `yaml:"room"`
	User string `yaml:"user"`
}

// MirrorConfig holds the configuration for the watermill event mirror.
type MirrorConfig struct {
	Driver     string           `yaml:"driver"`
	Drivers    []string         `yaml:"drivers"`
	GoChannel  GoChannelConfig  `yaml:"gochannel"`
	Kafka      KafkaConfig      `yaml:"kafka"`
	NATS       NATSConfig       `yaml:"nats"`
	AMQP       AMQPConfig       `yaml:"amqp"`
	SQL        SQLConfig        `yaml:"sql"`
	HTTP       HTTPConfig       `yaml:"http"`
	RiverQueue RiverQueueConfig `yaml:"riverqueue"`
}

// GoChannelConfig holds configuration for the in-process pub/sub.
type GoChannelConfig struct {
	OutputChannelBuffer            int64 `yaml:"output_buffer"`
	Persistent                     bool  `yaml:"persistent"`
	BlockPublishUntilSubscriberAck bool  `yaml:"block_publish_until_subscriber_ack"`
}

// KafkaConfig holds configuration for the Kafka mirror backend.
type KafkaConfig struct {
	Brokers []string `yaml:"brokers"`
}

// NATSConfig holds configuration for the NATS streaming mirror backend.
type NATSConfig struct {
	ClusterID string `yaml:"cluster_id"`
	ClientID  string `yaml:"client_id"`
	URL       string `yaml:"url"`
}

// AMQPConfig holds configuration for the AMQP mirror backend.
type AMQPConfig struct {
	URL  string `yaml:"url"`
	Mode string `yaml:"mode"`
}

// SQLConfig holds configuration for the SQL mirror backend.
type SQLConfig struct {
	Driver               string `yaml:"driver"`
	DSN                  string `yaml:"dsn"`
	Dialect              string `yaml:"dialect"`
	AutoInitializeSchema bool   `yaml:"auto_initialize_schema"`
}

// HTTPConfig holds configuration for the HTTP mirror backend.
type HTTPConfig struct {
	BaseURL string `yaml:"base_url"`
	Mode    string `yaml:"mode"`
}

// RiverQueueConfig holds configuration for the River jobs-table backend.
type RiverQueueConfig struct {
	Driver      string   `yaml:"driver"`
	DSN         string   `yaml:"dsn"`
	Table       string   `yaml:"table"`
	Queue       string   `yaml:"queue"`
	Kind        string   `yaml:"kind"`
	MaxAttempts int      `yaml:"max_attempts"`
	Priority    int      `yaml:"priority"`
	Tags        []string `yaml:"tags"`
}

// LoadConfig loads the application configuration from a YAML file.
// It expands environment variables, applies default values, and
// normalizes rules and repository routes.
func LoadConfig(path string) (Config, error) {
	var cfg Config
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	expanded := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expanded), &cfg); err != nil {
		return cfg, err
	}

	applyDefaults(&cfg)
	if err := validateRoutes(cfg.Webhook.Repos); err != nil {
		return cfg, err
	}
	normalized, err := normalizeRules(cfg.Rules)
	if err != nil {
		return cfg, err
	}
	cfg.Rules = normalized

	return cfg, nil
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8000
	}
	if cfg.Server.ReadTimeoutMS == 0 {
		cfg.Server.ReadTimeoutMS = 5000
	}
	if cfg.Server.WriteTimeoutMS == 0 {
		cfg.Server.WriteTimeoutMS = 10000
	}
	if cfg.Server.IdleTimeoutMS == 0 {
		cfg.Server.IdleTimeoutMS = 60000
	}
	if cfg.Server.ReadHeaderMS == 0 {
		cfg.Server.ReadHeaderMS = 5000
	}
	if cfg.Server.MaxBodyBytes == 0 {
		cfg.Server.MaxBodyBytes = 1 << 20
	}
	if cfg.Server.MetricsPath == "" {
		cfg.Server.MetricsPath = "/metrics"
	}
	if cfg.XMPP.Resource == "" {
		cfg.XMPP.Resource = "bot"
	}
	if cfg.XMPP.Nickname == "" {
		cfg.XMPP.Nickname = "bot"
	}
	if cfg.XMPP.MailboxSize == 0 {
		cfg.XMPP.MailboxSize = 32
	}
	if cfg.Webhook.Path == "" {
		cfg.Webhook.Path = "/webhook"
	}
	if cfg.Webhook.TemplatesDir == "" {
		cfg.Webhook.TemplatesDir = "templates"
	}
	if cfg.Mirror.Driver == "" {
		cfg.Mirror.Driver = "gochannel"
	}
	if cfg.Mirror.GoChannel.OutputChannelBuffer == 0 {
		cfg.Mirror.GoChannel.OutputChannelBuffer = 64
	}
	if cfg.Mirror.HTTP.Mode == "" {
		cfg.Mirror.HTTP.Mode = "topic_url"
	}
	if cfg.Mirror.RiverQueue.Table == "" {
		cfg.Mirror.RiverQueue.Table = "river_job"
	}
	if cfg.Mirror.RiverQueue.Queue == "" {
		cfg.Mirror.RiverQueue.Queue = "default"
	}
	if cfg.Mirror.RiverQueue.Kind == "" {
		cfg.Mirror.RiverQueue.Kind = "xmppwebhook.event"
	}
	if cfg.Mirror.RiverQueue.MaxAttempts == 0 {
		cfg.Mirror.RiverQueue.MaxAttempts = 25
	}
}

func validateRoutes(routes []RepoRoute) error {
	for i, route := range routes {
		if strings.TrimSpace(route.Repo) == "" {
			return fmt.Errorf("repo route %d is missing repo", i)
		}
		if route.Room == "" && route.User == "" {
			return fmt.Errorf("repo route %d (%s) needs a room or user", i, route.Repo)
		}
		if route.Room != "" && route.User != "" {
			return fmt.Errorf("repo route %d (%s) has both room and user", i, route.Repo)
		}
	}
	return nil
}

func normalizeRules(rules []Rule) ([]Rule, error) {
	out := make([]Rule, 0, len(rules))
	for i := range rules {
		rule := rules[i]
		rule.When = strings.TrimSpace(rule.When)
		if rule.When == "" {
			return nil, fmt.Errorf("rule %d is missing when", i)
		}
		emit := make(EmitList, 0, len(rule.Emit))
		for _, topic := range rule.Emit {
			if trimmed := strings.TrimSpace(topic); trimmed != "" {
				emit = append(emit, trimmed)
			}
		}
		rule.Emit = emit
		if len(rule.Emit) == 0 && !rule.Mute {
			return nil, fmt.Errorf("rule %d has neither emit nor mute", i)
		}
		if len(rule.Drivers) > 0 {
			drivers := make([]string, 0, len(rule.Drivers))
			for _, driver := range rule.Drivers {
				if trimmed := strings.TrimSpace(driver); trimmed != "" {
					drivers = append(drivers, trimmed)
				}
			}
			rule.Drivers = drivers
		}
		out = append(out, rule)
	}
	return out, nil
}
