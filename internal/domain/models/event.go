package models

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Well-known event names sent by the simulator front-end.
const (
	EventPageView         = "pageview"
	EventCalculateClick   = "calculate_click"
	EventCalculateSuccess = "calculate_success"
	EventDefault          = "event"
)

// Event is a single usage telemetry record. The JSON form is the Kafka wire format.
type Event struct {
	ID      string          `json:"id"`
	TsUTC   time.Time       `json:"ts_utc"`
	IP      string          `json:"ip"`
	UA      string          `json:"ua"`
	Ref     string          `json:"ref"`
	Name    string          `json:"event"`
	Payload json.RawMessage `json:"payload"`
}

// NewEvent stamps a time-ordered id and the UTC time. An empty name becomes EventDefault.
func NewEvent(now time.Time, name, ip, ua, ref string, payload json.RawMessage) (*Event, error) {
	id, err := uuid.NewV7()
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = EventDefault
	}
	if len(payload) == 0 {
		payload = json.RawMessage("{}")
	}
	return &Event{
		ID:      id.String(),
		TsUTC:   now.UTC(),
		IP:      ip,
		UA:      ua,
		Ref:     ref,
		Name:    name,
		Payload: payload,
	}, nil
}

// EventCount is the number of events of one name inside a window.
type EventCount struct {
	Event string `json:"event"`
	N     int64  `json:"n"`
}
