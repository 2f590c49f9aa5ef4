package client

import (
	"context"
	"errors"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap/zaptest"

	"github.com/dreysen/voicelink/internal/protocol"
)

var testUpgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// sessionHandler implements the server side of the handshake: first frame
// must be an auth message carrying "good-token". dropFirst closes the first
// n connections right after the ack to exercise reconnection.
type sessionHandler struct {
	connections atomic.Int32
	dropFirst   int32
}

func (h *sessionHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := testUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	n := h.connections.Add(1)

	_, raw, err := conn.ReadMessage()
	if err != nil {
		return
	}
	decoded, err := protocol.Decode(raw)
	if err != nil {
		return
	}
	authMsg, ok := decoded.(*protocol.AuthMessage)
	if !ok || authMsg.Token != "good-token" {
		conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "invalid token"),
			time.Now().Add(time.Second))
		return
	}

	payload, _ := protocol.Encode(protocol.NewConnectionAck("session-1"))
	conn.WriteMessage(websocket.TextMessage, payload)

	if n <= h.dropFirst {
		return
	}

	// Echo pings as pongs until the client goes away.
	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			return
		}
		if decoded, err := protocol.Decode(raw); err == nil {
			if _, ok := decoded.(*protocol.PingMessage); ok {
				reply, _ := protocol.Encode(protocol.NewPong(""))
				conn.WriteMessage(websocket.TextMessage, reply)
			}
		}
	}
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func newTestClient(t *testing.T, url, token string, backoff BackoffPolicy) *Client {
	t.Helper()
	c, err := New(Config{
		URL:     url,
		Token:   token,
		Backoff: backoff,
		Logger:  zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	t.Cleanup(func() { c.Disconnect() })
	return c
}

func waitForState(t *testing.T, changes <-chan Status, want State) Status {
	t.Helper()
	deadline := time.After(5 * time.Second)
	for {
		select {
		case s := <-changes:
			if s.State == want {
				return s
			}
		case <-deadline:
			t.Fatalf("Timed out waiting for state %v", want)
		}
	}
}

// nextStatus returns the next transition without skipping any, so tests can
// assert the exact order of lifecycle states.
func nextStatus(t *testing.T, changes <-chan Status) Status {
	t.Helper()
	select {
	case s := <-changes:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for a status change")
		return Status{}
	}
}

func TestConnectHandshake(t *testing.T) {
	handler := &sessionHandler{}
	server := httptest.NewServer(handler)
	defer server.Close()

	c := newTestClient(t, wsURL(server), "good-token", BackoffPolicy{})

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	if c.Status().State != StateConnected {
		t.Errorf("Expected connected state, got %v", c.Status().State)
	}
	if c.SessionID() != "session-1" {
		t.Errorf("Expected session id from ack, got %q", c.SessionID())
	}
}

func TestConnectRejectedToken(t *testing.T) {
	handler := &sessionHandler{}
	server := httptest.NewServer(handler)
	defer server.Close()

	c := newTestClient(t, wsURL(server), "bad-token", BackoffPolicy{})

	err := c.Connect(context.Background())
	if err == nil {
		t.Fatal("Expected handshake rejection")
	}
	if !errors.Is(err, ErrHandshakeRejected) {
		t.Errorf("Expected ErrHandshakeRejected, got %v", err)
	}
	if c.Status().State != StateFailed {
		t.Errorf("Expected terminal failed state after rejection, got %v", c.Status().State)
	}
	if got := handler.connections.Load(); got != 1 {
		t.Errorf("Expected no retry after rejected credentials, got %d connections", got)
	}
}

func TestReconnectAfterDrop(t *testing.T) {
	handler := &sessionHandler{dropFirst: 1}
	server := httptest.NewServer(handler)
	defer server.Close()

	c := newTestClient(t, wsURL(server), "good-token", BackoffPolicy{
		Base: 10 * time.Millisecond, Max: 50 * time.Millisecond, MaxAttempts: 5,
	})
	changes := c.StatusChanges()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitForState(t, changes, StateConnected)

	// The drop must walk the full lifecycle in order: reconnecting with the
	// attempt counter, then connecting for the dial, then connected.
	reconnecting := nextStatus(t, changes)
	if reconnecting.State != StateReconnecting || reconnecting.Attempt != 1 {
		t.Errorf("Expected reconnecting attempt 1, got %v", reconnecting)
	}
	if s := nextStatus(t, changes); s.State != StateConnecting {
		t.Errorf("Expected connecting between retry wait and connected, got %v", s)
	}
	if s := nextStatus(t, changes); s.State != StateConnected {
		t.Errorf("Expected connected after successful redial, got %v", s)
	}

	if got := handler.connections.Load(); got < 2 {
		t.Errorf("Expected at least 2 connections, got %d", got)
	}
}

func TestReconnectExhaustionFails(t *testing.T) {
	handler := &sessionHandler{dropFirst: 1}
	server := httptest.NewServer(handler)

	c := newTestClient(t, wsURL(server), "good-token", BackoffPolicy{
		Base: 5 * time.Millisecond, Max: 20 * time.Millisecond, MaxAttempts: 3,
	})
	changes := c.StatusChanges()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitForState(t, changes, StateConnected)

	// Take the server down so every retry dial fails.
	server.Close()
	waitForState(t, changes, StateReconnecting)
	waitForState(t, changes, StateFailed)

	if c.Status().State != StateFailed {
		t.Errorf("Expected terminal failed state, got %v", c.Status().State)
	}
}

// reserveAddr grabs a free loopback address and releases it so a test can
// point a client at a port with nothing listening yet.
func reserveAddr(t *testing.T) string {
	t.Helper()
	l, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("Listen failed: %v", err)
	}
	addr := l.Addr().String()
	l.Close()
	return addr
}

func TestConnectFailureEntersRetryCycle(t *testing.T) {
	addr := reserveAddr(t)

	c := newTestClient(t, "ws://"+addr, "good-token", BackoffPolicy{
		Base: 5 * time.Millisecond, Max: 20 * time.Millisecond, MaxAttempts: 2,
	})
	changes := c.StatusChanges()

	err := c.Connect(context.Background())
	if err == nil {
		t.Fatal("Expected Connect to fail with nothing listening")
	}
	if errors.Is(err, ErrHandshakeRejected) {
		t.Errorf("A refused dial is not a credential rejection: %v", err)
	}

	// The failed dial must route into the retry cycle instead of surfacing
	// straight away, ending Failed only after the attempts run out.
	waitForState(t, changes, StateReconnecting)
	waitForState(t, changes, StateFailed)
	if c.Status().State != StateFailed {
		t.Errorf("Expected terminal failed state, got %v", c.Status().State)
	}
}

func TestReconnectAfterTerminalFailure(t *testing.T) {
	addr := reserveAddr(t)

	c := newTestClient(t, "ws://"+addr, "good-token", BackoffPolicy{
		Base: 2 * time.Millisecond, Max: 10 * time.Millisecond, MaxAttempts: 2,
	})
	changes := c.StatusChanges()

	if err := c.Connect(context.Background()); err == nil {
		t.Fatal("Expected the first cycle to fail with nothing listening")
	}
	waitForState(t, changes, StateFailed)

	// Bring a server up on the reserved port and try again. The first
	// accepted session is dropped right after the ack, so this also proves
	// the drop monitor survives a repeated Connect.
	handler := &sessionHandler{dropFirst: 1}
	var listener net.Listener
	for i := 0; i < 50; i++ {
		l, err := net.Listen("tcp", addr)
		if err == nil {
			listener = l
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if listener == nil {
		t.Fatalf("Could not rebind %s", addr)
	}
	server := &http.Server{Handler: handler}
	go server.Serve(listener)
	t.Cleanup(func() { server.Close() })

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect after terminal failure should succeed: %v", err)
	}
	waitForState(t, changes, StateConnected)

	waitForState(t, changes, StateReconnecting)
	waitForState(t, changes, StateConnected)

	if got := handler.connections.Load(); got < 2 {
		t.Errorf("Expected the monitor to restore the dropped session, got %d connections", got)
	}
}

func TestDisconnectSuppressesReconnect(t *testing.T) {
	handler := &sessionHandler{}
	server := httptest.NewServer(handler)
	defer server.Close()

	c := newTestClient(t, wsURL(server), "good-token", BackoffPolicy{
		Base: 5 * time.Millisecond, MaxAttempts: 3,
	})
	changes := c.StatusChanges()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	waitForState(t, changes, StateConnected)

	if err := c.Disconnect(); err != nil {
		t.Fatalf("Disconnect failed: %v", err)
	}

	time.Sleep(100 * time.Millisecond)
	if got := c.Status().State; got != StateDisconnected {
		t.Errorf("Expected disconnected after user disconnect, got %v", got)
	}
	if got := handler.connections.Load(); got != 1 {
		t.Errorf("Expected no reconnection after user disconnect, got %d connections", got)
	}
}

func TestSendRequiresConnection(t *testing.T) {
	c, err := New(Config{URL: "ws://127.0.0.1:1/ws", Token: "t"})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}

	if err := c.SendText("hello"); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
	if err := c.SendAudio([]byte{1, 2}); !errors.Is(err, ErrNotConnected) {
		t.Errorf("Expected ErrNotConnected, got %v", err)
	}
}

func TestPingPongRoundTrip(t *testing.T) {
	handler := &sessionHandler{}
	server := httptest.NewServer(handler)
	defer server.Close()

	c, err := New(Config{
		URL:          wsURL(server),
		Token:        "good-token",
		PingInterval: 20 * time.Millisecond,
		Logger:       zaptest.NewLogger(t),
	})
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	defer c.Disconnect()

	if err := c.Connect(context.Background()); err != nil {
		t.Fatalf("Connect failed: %v", err)
	}

	select {
	case msg := <-c.Messages():
		if _, ok := msg.(*protocol.PongMessage); !ok {
			t.Errorf("Expected a pong, got %T", msg)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Timed out waiting for a pong")
	}
}
