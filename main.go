package main

import (
	"context"
	"errors"
	"expvar"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"xmppwebhook/internal"
	"xmppwebhook/webhook"
	"xmppwebhook/xmpp"
)

func main() {
	logger := internal.NewLogger("server")
	configPath := flag.String("config", "config.yaml", "Path to config file")
	flag.Parse()

	config, err := internal.LoadConfig(*configPath)
	if err != nil {
		logger.Fatalf("load config: %v", err)
	}

	templates, err := webhook.LoadTemplates(config.Webhook.TemplatesDir)
	if err != nil {
		logger.Fatalf("load templates: %v", err)
	}

	ruleEngine, err := internal.NewRuleEngine(internal.RulesConfig{
		Rules:  config.Rules,
		Strict: config.RulesStrict,
		Logger: internal.NewLogger("rules"),
	})
	if err != nil {
		logger.Fatalf("compile rules: %v", err)
	}

	var mirror internal.Mirror
	if len(config.Rules) > 0 {
		mirror, err = internal.NewMirror(config.Mirror)
		if err != nil {
			logger.Fatalf("mirror: %v", err)
		}
		defer mirror.Close()
	}

	directory := webhook.NewDirectory(config.Webhook.Repos)

	session := xmpp.NewClient(xmpp.ClientConfig{
		JID:      config.XMPP.JID,
		Password: config.XMPP.Password,
		Address:  config.XMPP.Address,
		Resource: config.XMPP.Resource,
		Nickname: config.XMPP.Nickname,
	}, internal.NewLogger("xmpp"))

	actor := xmpp.NewActor(session, xmpp.ActorConfig{
		Rooms:       directory.Rooms(),
		Operator:    config.XMPP.OperatorJID,
		MailboxSize: config.XMPP.MailboxSize,
		Logger:      internal.NewLogger("xmpp"),
	})

	actorCtx, stopActor := context.WithCancel(context.Background())
	defer stopActor()
	go func() {
		if err := actor.Run(actorCtx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatalf("xmpp session: %v", err)
		}
	}()

	handler := webhook.NewHandler(webhook.HandlerConfig{
		Secret:    config.Webhook.Secret,
		Directory: directory,
		Runs:      webhook.NewWorkflowRunStore(),
		Templates: templates,
		Rules:     ruleEngine,
		Mirror:    mirror,
		Notifier:  actor,
		Logger:    internal.NewLogger("webhook"),
	})

	var endpoint http.Handler = http.MaxBytesHandler(handler, config.Server.MaxBodyBytes)
	if config.Server.RateLimitRPS > 0 {
		endpoint = internal.NewRateLimitHandler(endpoint, config.Server.RateLimitRPS, config.Server.RateLimitBurst, 10*time.Minute)
	}

	mux := http.NewServeMux()
	mux.Handle(config.Webhook.Path, endpoint)
	mux.HandleFunc("/health_check", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write([]byte("github to xmpp webhook bridge"))
	})
	if config.Server.MetricsEnabled {
		mux.Handle(config.Server.MetricsPath, expvar.Handler())
	}

	addr := ":" + strconv.Itoa(config.Server.Port)
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadTimeout:       time.Duration(config.Server.ReadTimeoutMS) * time.Millisecond,
		WriteTimeout:      time.Duration(config.Server.WriteTimeoutMS) * time.Millisecond,
		IdleTimeout:       time.Duration(config.Server.IdleTimeoutMS) * time.Millisecond,
		ReadHeaderTimeout: time.Duration(config.Server.ReadHeaderMS) * time.Millisecond,
	}

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		logger.Printf("listening on %s", addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatalf("listen: %v", err)
		}
	}()

	<-shutdown
	stopActor()
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(ctx); err != nil {
		logger.Printf("shutdown: %v", err)
	}
}
