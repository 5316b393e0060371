package api

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadEvents(t *testing.T) {
	stream := strings.Join([]string{
		": keep-alive",
		`data: {"type":"new_order","order_id":"o1"}`,
		"",
		"event: heartbeat",
		"data: ping",
		"",
		"event: new_order",
		"data: {\"order_id\":",
		"data: \"o2\"}",
		"",
		"data: trailing",
	}, "\n")

	var got []Event
	require.NoError(t, readEvents(strings.NewReader(stream), func(ev Event) {
		got = append(got, ev)
	}))

	require.Len(t, got, 4)
	assert.Equal(t, EventNewOrder, got[0].Type)
	assert.JSONEq(t, `{"type":"new_order","order_id":"o1"}`, string(got[0].Data))
	assert.Equal(t, "heartbeat", got[1].Type)
	assert.JSONEq(t, `"ping"`, string(got[1].Data))
	assert.Equal(t, EventNewOrder, got[2].Type)
	assert.JSONEq(t, `{"order_id":"o2"}`, string(got[2].Data))
	assert.Equal(t, "message", got[3].Type)
}

func TestClient_StreamEvents(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/events", r.URL.Path)
		assert.Equal(t, "Bearer tok-123", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "text/event-stream")
		for i := 0; i < 3; i++ {
			_, _ = fmt.Fprintf(w, "data: {\"type\":\"new_order\",\"n\":%d}\n\n", i)
		}
	}))

	var types []string
	err := client.StreamEvents(context.Background(), testSession(), func(ev Event) {
		types = append(types, ev.Type)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{EventNewOrder, EventNewOrder, EventNewOrder}, types)
}

func TestClient_StreamEventsRejected(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = fmt.Fprint(w, "token expired")
	}))

	err := client.StreamEvents(context.Background(), testSession(), func(Event) {})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Contains(t, err.Error(), "token expired")
}
