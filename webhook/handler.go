package webhook

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"io"
	"log"
	"net/http"

	"github.com/go-playground/webhooks/v6/github"

	"xmppwebhook/internal"
	"xmppwebhook/xmpp"
)

// Notifier accepts rendered notifications for asynchronous delivery.
type Notifier interface {
	Enqueue(to xmpp.Destination, body string)
}

// Handler routes one GitHub webhook delivery: classify, resolve the
// destination, apply suppression, render, enqueue. Rules and mirror are
// optional; without them events only feed the chat pipeline.
type Handler struct {
	secret    []byte
	directory *Directory
	runs      *WorkflowRunStore
	templates *TemplateRegistry
	rules     *internal.RuleEngine
	mirror    internal.Mirror
	notifier  Notifier
	logger    *log.Logger
}

// HandlerConfig carries the handler's collaborators.
type HandlerConfig struct {
	Secret    string
	Directory *Directory
	Runs      *WorkflowRunStore
	Templates *TemplateRegistry
	Rules     *internal.RuleEngine
	Mirror    internal.Mirror
	Notifier  Notifier
	Logger    *log.Logger
}

func NewHandler(cfg HandlerConfig) *Handler {
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	runs := cfg.Runs
	if runs == nil {
		runs = NewWorkflowRunStore()
	}
	return &Handler{
		secret:    []byte(cfg.Secret),
		directory: cfg.Directory,
		runs:      runs,
		templates: cfg.Templates,
		rules:     cfg.Rules,
		mirror:    cfg.Mirror,
		notifier:  cfg.Notifier,
		logger:    logger,
	}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		respond(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	rawBody, err := io.ReadAll(r.Body)
	if err != nil {
		respond(w, http.StatusBadRequest, "unreadable body")
		return
	}

	if len(h.secret) > 0 && !h.validSignature(r, rawBody) {
		respond(w, http.StatusBadRequest, "invalid signature")
		return
	}

	eventType := r.Header.Get("X-GitHub-Event")
	if eventType == "" {
		respond(w, http.StatusBadRequest, "missing event type")
		return
	}

	var payload map[string]interface{}
	if err := json.Unmarshal(rawBody, &payload); err != nil {
		internal.IncParseError(eventType)
		respond(w, http.StatusBadRequest, "malformed payload")
		return
	}

	repo := nestedString(payload, "repository", "full_name")
	if repo == "" {
		respond(w, http.StatusBadRequest, "missing repository")
		return
	}

	internal.IncRequest(eventType)
	action, _ := payload["action"].(string)

	muted := h.mirrorEvent(r, internal.Event{
		Name:       eventType,
		Action:     action,
		Repository: repo,
		Data:       internal.Flatten(payload),
		RawPayload: rawBody,
		RawObject:  decodedObject(rawBody),
	})

	destination, mapped := h.directory.Get(repo)
	if !mapped {
		respond(w, http.StatusOK, "unknown repo")
		return
	}

	if eventType == "workflow_run" && h.suppressWorkflowRun(repo, payload) {
		internal.IncSuppressed("workflow_run_success")
		respond(w, http.StatusOK, "ok")
		return
	}

	if muted {
		internal.IncSuppressed("muted")
		respond(w, http.StatusOK, "ok")
		return
	}

	body, outcome := h.render(eventType, action, rawBody, payload)
	switch outcome {
	case renderNoMatch:
		respond(w, http.StatusOK, "ok")
		return
	case renderBadPayload:
		internal.IncParseError(eventType)
		respond(w, http.StatusBadRequest, "malformed payload")
		return
	case renderFailed:
		respond(w, http.StatusInternalServerError, "template error")
		return
	}

	h.notifier.Enqueue(destination, body)
	respond(w, http.StatusOK, "message sent")
}

func (h *Handler) validSignature(r *http.Request, body []byte) bool {
	signature := r.Header.Get("X-Hub-Signature-256")
	if len(signature) <= len("sha256=") {
		return false
	}
	mac := hmac.New(sha256.New, h.secret)
	mac.Write(body)
	expected := "sha256=" + hex.EncodeToString(mac.Sum(nil))
	return hmac.Equal([]byte(signature), []byte(expected))
}

// mirrorEvent evaluates the rules and fans the event out to the mirror
// topics they select. Mirror failures are logged, never surfaced to the
// sender. The return value reports whether a matching rule muted the
// chat notification.
func (h *Handler) mirrorEvent(r *http.Request, event internal.Event) bool {
	if h.rules == nil {
		return false
	}

	muted := false
	for _, match := range h.rules.Evaluate(event) {
		if match.Mute {
			muted = true
		}
		if match.Topic == "" || h.mirror == nil {
			continue
		}
		if err := h.mirror.PublishForDrivers(r.Context(), match.Topic, event, match.Drivers); err != nil {
			h.logger.Printf("mirror %s failed: %v", match.Topic, err)
		}
	}
	return muted
}

// suppressWorkflowRun applies the failure/success pairing: failures are
// recorded (and always announced), successes are announced only when
// they resolve a recorded failure. Other conclusions pass through.
func (h *Handler) suppressWorkflowRun(repo string, payload map[string]interface{}) bool {
	run, _ := payload["workflow_run"].(map[string]interface{})
	conclusion, _ := run["conclusion"].(string)
	headBranch, _ := run["head_branch"].(string)
	workflowID := int64(0)
	if id, ok := run["workflow_id"].(float64); ok {
		workflowID = int64(id)
	}

	switch conclusion {
	case "failure":
		h.runs.RecordFailure(repo, workflowID, headBranch)
		return false
	case "success":
		return !h.runs.RecordSuccess(repo, workflowID, headBranch)
	default:
		return false
	}
}

type renderOutcome int

const (
	renderOK renderOutcome = iota
	renderNoMatch
	renderBadPayload
	renderFailed
)

// render produces the notification body: a loaded template wins, the
// built-in formatters cover the template-less defaults, anything else
// is a recognized no-op.
func (h *Handler) render(eventType, action string, rawBody []byte, payload map[string]interface{}) (string, renderOutcome) {
	name := TemplateName(eventType, action)
	if h.templates.Has(name) {
		body, err := h.templates.Render(name, payload)
		if err != nil {
			h.logger.Printf("render %s failed: %v", name, err)
			return "", renderFailed
		}
		return body, renderOK
	}

	switch eventType {
	case "push":
		var event github.PushPayload
		if err := json.Unmarshal(rawBody, &event); err != nil {
			return "", renderBadPayload
		}
		return FormatPush(event), renderOK
	case "issues":
		if action != "opened" && action != "closed" && action != "reopened" {
			return "", renderNoMatch
		}
		var event github.IssuesPayload
		if err := json.Unmarshal(rawBody, &event); err != nil {
			return "", renderBadPayload
		}
		return FormatIssueAction(event), renderOK
	case "issue_comment":
		if action != "created" {
			return "", renderNoMatch
		}
		var event github.IssueCommentPayload
		if err := json.Unmarshal(rawBody, &event); err != nil {
			return "", renderBadPayload
		}
		return FormatIssueCommentCreated(event), renderOK
	default:
		return "", renderNoMatch
	}
}

func respond(w http.ResponseWriter, status int, body string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func nestedString(payload map[string]interface{}, keys ...string) string {
	current := payload
	for i, key := range keys {
		if i == len(keys)-1 {
			value, _ := current[key].(string)
			return value
		}
		next, ok := current[key].(map[string]interface{})
		if !ok {
			return ""
		}
		current = next
	}
	return ""
}

func decodedObject(raw []byte) interface{} {
	var obj interface{}
	if err := json.Unmarshal(raw, &obj); err != nil {
		return nil
	}
	return obj
}
