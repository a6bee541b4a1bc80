package event_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hiive-relay/internal/event"
)

func testSource() event.StaticSource {
	return event.StaticSource{
		Req: event.RequestContext{URL: "/wp-admin/plugins", UserAgent: "agent", IP: "10.0.0.1"},
		Usr: event.UserContext{ID: "7", Login: "admin", Role: "administrator", Locale: "en_US"},
		Env: event.NewEnvironment("https://example.test", "15.2", "prod", "1.0.0"),
	}
}

func TestNewCapturesContextEagerly(t *testing.T) {
	src := testSource()
	e := event.New(src, "Admin", "plugin_activated", map[string]any{"plugin": "seo-pack"})

	assert.NotEqual(t, e.ID.String(), "00000000-0000-0000-0000-000000000000")
	assert.Equal(t, "admin", e.Category, "category is lowercased")
	assert.Equal(t, "plugin_activated", e.Key)
	assert.Equal(t, "/wp-admin/plugins", e.Request.URL)
	assert.Equal(t, "admin", e.User.Login)
	assert.Equal(t, "https://example.test", e.Environment.URL)
	assert.NotZero(t, e.CreatedAt)

	// Mutating the source afterwards must not change the event.
	src.Usr.Login = "intruder"
	assert.Equal(t, "admin", e.User.Login)
}

func TestLabelResolution(t *testing.T) {
	e := event.New(testSource(), "admin", "plugin_activated", map[string]any{
		"plugin":       "seo-pack",
		event.LabelKey: "plugin",
	})
	assert.Equal(t, "seo-pack", e.Label())

	noLabel := event.New(testSource(), "admin", "login", nil)
	assert.Empty(t, noLabel.Label())
}

func TestEncodeDecodeRoundTrip(t *testing.T) {
	e := event.New(testSource(), "commerce", "order_placed", map[string]any{"order_id": "42"})

	raw, err := e.Encode()
	require.NoError(t, err)

	decoded, err := event.Decode(event.EncodingVersion, raw)
	require.NoError(t, err)
	assert.Equal(t, e.ID, decoded.ID)
	assert.Equal(t, e.Key, decoded.Key)
	assert.Equal(t, e.User, decoded.User)
}

func TestDecodeRejectsUnknownVersion(t *testing.T) {
	_, err := event.Decode(99, []byte(`{}`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "encoding version")
}
