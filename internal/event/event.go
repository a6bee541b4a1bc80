package event

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// EncodingVersion is stored next to every persisted event so the stored
// encoding can evolve without breaking older rows.
const EncodingVersion = 1

// LabelKey names the optional Data field that identifies which payload
// entry is the primary label for the event.
const LabelKey = "label_key"

// Event is an immutable record of one observed occurrence. All context is
// captured at construction time, so the event reflects the state of the
// system when it happened, not when it is delivered.
type Event struct {
	ID          uuid.UUID          `json:"id"`
	Category    string             `json:"category"`
	Key         string             `json:"key"`
	Data        map[string]any     `json:"data,omitempty"`
	Request     RequestContext     `json:"request"`
	User        UserContext        `json:"user"`
	Environment EnvironmentContext `json:"environment"`
	CreatedAt   time.Time          `json:"created_at"`
}

// RequestContext captures the inbound request that produced the event.
type RequestContext struct {
	URL       string `json:"url"`
	PageTitle string `json:"page_title"`
	UserAgent string `json:"user_agent"`
	IP        string `json:"ip"`
}

// UserContext captures the acting user at the moment of the event.
type UserContext struct {
	ID     string `json:"id"`
	Login  string `json:"login"`
	Role   string `json:"role"`
	Locale string `json:"locale"`
}

// EnvironmentContext captures the host installation.
type EnvironmentContext struct {
	URL          string `json:"url"`
	GoVersion    string `json:"go_version"`
	DBVersion    string `json:"db_version"`
	HostVersion  string `json:"host_version"`
	RelayVersion string `json:"relay_version"`
}

// New builds an Event, eagerly snapshotting request, user and environment
// context from the source. Category is normalized to lower case.
func New(src ContextSource, category, key string, data map[string]any) Event {
	return Event{
		ID:          uuid.New(),
		Category:    strings.ToLower(category),
		Key:         key,
		Data:        data,
		Request:     src.Request(),
		User:        src.User(),
		Environment: src.Environment(),
		CreatedAt:   time.Now().UTC(),
	}
}

// Label returns the primary label value, resolved through the label_key
// convention in Data. Empty when no label is set.
func (e Event) Label() string {
	if e.Data == nil {
		return ""
	}
	name, ok := e.Data[LabelKey].(string)
	if !ok {
		return ""
	}
	v, ok := e.Data[name].(string)
	if !ok {
		return ""
	}
	return v
}

// Encode serializes the event for durable storage.
func (e Event) Encode() ([]byte, error) {
	return json.Marshal(e)
}

// Decode deserializes a stored event written with the given encoding version.
func Decode(version int, raw []byte) (Event, error) {
	switch version {
	case EncodingVersion:
		var e Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return Event{}, err
		}
		return e, nil
	default:
		return Event{}, fmt.Errorf("unsupported event encoding version %d", version)
	}
}
