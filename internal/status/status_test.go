package status

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tonimelisma/notesync/internal/queue"
)

type testLogWriter struct{ t *testing.T }

func (w testLogWriter) Write(p []byte) (int, error) {
	w.t.Helper()
	w.t.Log(string(p))

	return len(p), nil
}

func testLogger(t *testing.T) *slog.Logger {
	t.Helper()

	return slog.New(slog.NewTextHandler(testLogWriter{t}, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestLine_NonTerminal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewLine(&buf)

	l.SetStatus("notesync: Downloading notes: 1/2")
	l.SetStatus("notesync: Downloading notes: 1/2")
	l.SetStatus("")
	l.SetStatus("notesync: Done")

	assert.Equal(t, "notesync: Downloading notes: 1/2\nnotesync: Done\n", buf.String())
}

func TestLine_Terminal(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := &Line{w: &buf, tty: true}

	l.SetStatus("a")
	l.SetStatus("")

	assert.Equal(t, "\r\033[Ka\r\033[K", buf.String())
}

func TestLog(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	l := NewLog(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	l.SetStatus("notesync: Done")
	l.SetStatus("")

	assert.Equal(t, 1, strings.Count(buf.String(), "msg=status"))
	assert.Contains(t, buf.String(), `text="notesync: Done"`)
}

func TestMulti(t *testing.T) {
	t.Parallel()

	var a, b []string

	sink := Multi(
		queue.StatusFunc(func(s string) { a = append(a, s) }),
		nil,
		queue.StatusFunc(func(s string) { b = append(b, s) }),
	)

	sink.SetStatus("x")
	sink.SetStatus("")

	assert.Equal(t, []string{"x", ""}, a)
	assert.Equal(t, []string{"x", ""}, b)
}

func startHub(t *testing.T) (*Hub, string) {
	t.Helper()

	h := NewHub(testLogger(t))
	srv := httptest.NewServer(h.Handler())
	t.Cleanup(srv.Close)
	t.Cleanup(func() { assert.NoError(t, h.Close()) })

	return h, srv.URL
}

func dial(t *testing.T, url string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(url, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close(websocket.StatusNormalClosure, "") })

	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	require.NoError(t, err)

	var msg Message
	require.NoError(t, json.Unmarshal(data, &msg))

	return msg
}

func TestHub_SendsCurrentStatusOnConnect(t *testing.T) {
	t.Parallel()

	h, url := startHub(t)
	h.SetStatus("notesync: Downloading notes")

	conn := dial(t, url)
	assert.Equal(t, "notesync: Downloading notes", readMessage(t, conn).Status)
}

func TestHub_Broadcasts(t *testing.T) {
	t.Parallel()

	h, url := startHub(t)

	c1 := dial(t, url)
	c2 := dial(t, url)

	assert.Empty(t, readMessage(t, c1).Status)
	assert.Empty(t, readMessage(t, c2).Status)

	require.Eventually(t, func() bool { return h.ClientCount() == 2 }, 5*time.Second, 10*time.Millisecond)

	h.SetStatus("notesync: Done")

	assert.Equal(t, "notesync: Done", readMessage(t, c1).Status)
	assert.Equal(t, "notesync: Done", readMessage(t, c2).Status)
}

func TestHub_RemovesDisconnectedClients(t *testing.T) {
	t.Parallel()

	h, url := startHub(t)

	conn := dial(t, url)
	readMessage(t, conn)
	require.Eventually(t, func() bool { return h.ClientCount() == 1 }, 5*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close(websocket.StatusNormalClosure, ""))
	require.Eventually(t, func() bool { return h.ClientCount() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHub_Health(t *testing.T) {
	t.Parallel()

	_, url := startHub(t)

	resp, err := http.Get(url + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.JSONEq(t, `{"clients":0}`, string(body))
}

func TestHub_ListenAndServe(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger(t))
	require.NoError(t, h.ListenAndServe("127.0.0.1:0"))

	addr := h.Addr()
	require.NotEmpty(t, addr)

	conn := dial(t, "http://"+addr)
	readMessage(t, conn)

	require.NoError(t, h.Close())
}

func TestHub_SetStatusNeverBlocks(t *testing.T) {
	t.Parallel()

	h := NewHub(testLogger(t))
	require.NoError(t, h.Close())

	done := make(chan struct{})

	go func() {
		for range broadcastBuffer * 2 {
			h.SetStatus("x")
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("SetStatus blocked")
	}
}
