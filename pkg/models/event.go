package models

import "encoding/json"

// InboundEvent is the unit of work published by the ingestion endpoint:
// the raw request body together with the normalized headers and the source
// IP captured at the edge. It is immutable once published.
type InboundEvent struct {
	Body      json.RawMessage   `json:"body"`
	Headers   map[string]string `json:"headers"`
	IPAddress string            `json:"ipAddress"`
}

// ParsedEvent is an InboundEvent after its body has been decoded. Data holds
// the arbitrary client payload; processors pull their session id out of it.
type ParsedEvent struct {
	Data      map[string]interface{} `json:"data"`
	Headers   map[string]string      `json:"headers"`
	IPAddress string                 `json:"ipAddress"`
}

// SessionField returns the string value of a top-level payload field, used
// by processors to extract their session id.
func (e *ParsedEvent) SessionField(name string) (string, bool) {
	if e == nil || e.Data == nil {
		return "", false
	}
	v, ok := e.Data[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
