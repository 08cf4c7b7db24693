package internal

import "expvar"

var (
	requestsTotal    = expvar.NewMap("xmppwebhook_requests_total")
	parseErrors      = expvar.NewMap("xmppwebhook_parse_errors_total")
	suppressedTotal  = expvar.NewMap("xmppwebhook_suppressed_total")
	mirrorErrors     = expvar.NewMap("xmppwebhook_mirror_errors_total")
	messagesEnqueued = expvar.NewInt("xmppwebhook_messages_enqueued_total")
	messagesDropped  = expvar.NewInt("xmppwebhook_messages_dropped_total")
	messagesSent     = expvar.NewInt("xmppwebhook_messages_sent_total")
	sendErrors       = expvar.NewInt("xmppwebhook_send_errors_total")
)

func IncRequest(event string) {
	requestsTotal.Add(event, 1)
}

func IncParseError(event string) {
	parseErrors.Add(event, 1)
}

// IncSuppressed counts notifications that were intentionally not sent,
// keyed by reason ("workflow_run_success", "muted", ...).
func IncSuppressed(reason string) {
	suppressedTotal.Add(reason, 1)
}

func IncMirrorError(driver string) {
	mirrorErrors.Add(driver, 1)
}

func IncEnqueued() { messagesEnqueued.Add(1) }

func IncDropped() { messagesDropped.Add(1) }

func IncSent() { messagesSent.Add(1) }

func IncSendError() { sendErrors.Add(1) }
