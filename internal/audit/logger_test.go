package audit

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	original := log.Logger
	log.Logger = zerolog.New(&buf)
	t.Cleanup(func() { log.Logger = original })
	return &buf
}

func TestLog(t *testing.T) {
	buf := captureLog(t)

	Log(context.Background(), Event{
		Type:      EventInboxSwitch,
		UserID:    "user-1",
		SessionID: "sess-1",
		Details:   map[string]interface{}{"inboxId": "in-2", "attempt": 1},
	})

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "security", entry["audit"])
	assert.Equal(t, "inbox_switch", entry["event_type"])
	assert.Equal(t, "user-1", entry["user_id"])
	assert.Equal(t, "sess-1", entry["session_id"])
	assert.Equal(t, "in-2", entry["inboxId"])
	assert.NotContains(t, entry, "account_id")
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		name    string
		headers map[string]string
		want    string
	}{
		{"forwarded first hop", map[string]string{"X-Forwarded-For": "10.0.0.1, 10.0.0.2"}, "10.0.0.1"},
		{"real ip", map[string]string{"X-Real-IP": "10.0.0.9"}, "10.0.0.9"},
		{"remote addr", nil, "192.0.2.1:1234"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest("GET", "/", nil)
			for k, v := range tt.headers {
				req.Header.Set(k, v)
			}
			assert.Equal(t, tt.want, ClientIP(req))
		})
	}
}
