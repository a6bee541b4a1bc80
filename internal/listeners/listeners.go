package listeners

import (
	"hiive-relay/internal/event"
)

// Producer builds an Event from a host callback payload.
type Producer func(src event.ContextSource, data map[string]any) event.Event

// Binding ties one host capability to its event producer. The set of
// bindings is composed statically at startup; there is no runtime hook
// registration.
type Binding struct {
	Capability string
	Producer   Producer
}

// Registry resolves capabilities to producers.
type Registry struct {
	bindings map[string]Producer
}

func NewRegistry(bindings []Binding) *Registry {
	m := make(map[string]Producer, len(bindings))
	for _, b := range bindings {
		m[b.Capability] = b.Producer
	}
	return &Registry{bindings: m}
}

// Produce builds the event for capability, or reports false when no binding
// exists.
func (r *Registry) Produce(capability string, src event.ContextSource, data map[string]any) (event.Event, bool) {
	p, ok := r.bindings[capability]
	if !ok {
		return event.Event{}, false
	}
	return p(src, data), true
}

// simple returns a producer for events whose payload passes through as-is,
// with an optional label_key convention applied.
func simple(category, key, labelKey string) Producer {
	return func(src event.ContextSource, data map[string]any) event.Event {
		if labelKey != "" {
			if data == nil {
				data = map[string]any{}
			}
			if _, ok := data[labelKey]; ok {
				data[event.LabelKey] = labelKey
			}
		}
		return event.New(src, category, key, data)
	}
}

// Defaults is the statically-composed listener set: one binding per observed
// host capability.
func Defaults() []Binding {
	return []Binding{
		{"login", simple("admin", "login", "")},
		{"logout", simple("admin", "logout", "")},
		{"plugin_activated", simple("admin", "plugin_activated", "plugin")},
		{"plugin_deactivated", simple("admin", "plugin_deactivated", "plugin")},
		{"plugin_installed", simple("admin", "plugin_installed", "plugin")},
		{"theme_changed", simple("admin", "theme_changed", "theme")},
		{"site_updated", simple("settings", "site_updated", "option")},
		{"order_placed", simple("commerce", "order_placed", "order_id")},
		{"product_created", simple("commerce", "product_created", "product")},
		{"pageview", simple("content", "pageview", "")},
	}
}
