package internal

import "encoding/json"

// Event is one accepted webhook event as seen by the rule engine and the
// event mirror. Data holds the flattened payload, RawObject the decoded
// payload for jsonpath lookups.
type Event struct {
	Name       string                 `json:"name"`
	Action     string                 `json:"action,omitempty"`
	Repository string                 `json:"repository"`
	Data       map[string]interface{} `json:"-"`
	RawPayload json.RawMessage        `json:"payload,omitempty"`
	RawObject  interface{}            `json:"-"`
}
