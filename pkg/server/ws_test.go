package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/frankenergie/frankenergie/pkg/types"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dial connects to the websocket endpoint of server.
func dial(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws" + query
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	require.NoError(t, err)
	resp.Body.Close()
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readSensors(t *testing.T, conn *websocket.Conn) sensorsResponse {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, msg, err := conn.ReadMessage()
	require.NoError(t, err)
	var resp sensorsResponse
	require.NoError(t, json.Unmarshal(msg, &resp))
	return resp
}

func TestWebsocket(t *testing.T) {
	env := newTestEnv(t)
	home, err := env.entries.Setup(t.Context(), types.Entry{ID: "home"})
	require.NoError(t, err)
	_, err = env.entries.Setup(t.Context(), types.Entry{ID: "other"})
	require.NoError(t, err)

	server := httptest.NewServer(env.srv.setupHandler())
	defer server.Close()

	conn := dial(t, server, "?entryID=home")

	// the current states arrive right away
	initial := readSensors(t, conn)
	assert.Equal(t, "home", initial.EntryID)
	for _, s := range initial.Sensors {
		assert.False(t, s.Value.Valid, s.Key)
	}
	assert.Eventually(t, func() bool { return env.srv.hub.count() == 1 }, time.Second, 10*time.Millisecond)

	// refreshes of other entries are not sent to this client
	other, _ := env.entries.Get("other")
	_, err = other.Refresh(t.Context())
	require.NoError(t, err)

	_, err = home.Refresh(t.Context())
	require.NoError(t, err)
	update := readSensors(t, conn)
	assert.Equal(t, "home", update.EntryID)
	assert.False(t, update.Status.LastSuccess.IsZero())
	var markup string
	for _, s := range update.Sensors {
		if s.Key == "elec_markup" {
			markup = s.Value.ValueOrZero()
		}
	}
	assert.Equal(t, "0.250", markup)

	conn.Close()
	assert.Eventually(t, func() bool { return env.srv.hub.count() == 0 }, time.Second, 10*time.Millisecond)

	t.Run("all entries", func(t *testing.T) {
		conn := dial(t, server, "")
		ids := []string{readSensors(t, conn).EntryID, readSensors(t, conn).EntryID}
		assert.ElementsMatch(t, []string{"home", "other"}, ids)
	})

	t.Run("unknown entry", func(t *testing.T) {
		wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "/api/ws?entryID=nope"
		_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		defer resp.Body.Close()
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	})
}

func TestHubBroadcast(t *testing.T) {
	h := newHub()
	home := &wsClient{entryID: "home", send: make(chan []byte, 1)}
	all := &wsClient{send: make(chan []byte, 1)}
	h.register(home)
	h.register(all)

	h.broadcast(t.Context(), "other", []byte("a"))
	assert.Empty(t, home.send)
	assert.Equal(t, []byte("a"), <-all.send)

	h.broadcast(t.Context(), "home", []byte("b"))
	assert.Equal(t, []byte("b"), <-home.send)
	assert.Equal(t, []byte("b"), <-all.send)

	h.unregister(home)
	h.unregister(home)
	_, ok := <-home.send
	assert.False(t, ok)

	h.closeAll()
	assert.Zero(t, h.count())
	_, ok = <-all.send
	assert.False(t, ok)
}
