package feed

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/quillpad/quill/internal/session"
)

func startTestServer(t *testing.T, cfg Config) *Server {
	t.Helper()

	cfg.LogOutput = io.Discard
	server := NewServer(cfg)
	if err := server.Start(); err != nil {
		t.Fatalf("failed to start feed server: %v", err)
	}
	t.Cleanup(func() {
		if err := server.Stop(); err != nil {
			t.Errorf("failed to stop feed server: %v", err)
		}
	})
	time.Sleep(50 * time.Millisecond)
	return server
}

func dial(t *testing.T, server *Server, query string) *websocket.Conn {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws"+query, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) Message {
	t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatalf("failed to decode message: %v", err)
	}
	return msg
}

func TestClientReceivesHelloAndBroadcast(t *testing.T) {
	server := startTestServer(t, Config{})
	conn := dial(t, server, "")

	hello := readMessage(t, conn)
	if hello.Type != MessageTypeHello {
		t.Errorf("first message type = %q, want hello", hello.Type)
	}
	var greeting HelloData
	if err := json.Unmarshal(hello.Data, &greeting); err != nil {
		t.Fatalf("failed to decode hello payload: %v", err)
	}
	if greeting.ClientID == "" {
		t.Error("hello carries no client id")
	}
	if count := server.ClientCount(); count != 1 {
		t.Errorf("client count = %d, want 1", count)
	}

	server.DataChanged("notes")

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeDataChanged {
		t.Fatalf("message type = %q, want data_changed", msg.Type)
	}
	var data DataChangedData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if data.Kind != "notes" {
		t.Errorf("changed kind = %q, want notes", data.Kind)
	}
	if msg.Timestamp.IsZero() {
		t.Error("broadcast has no timestamp")
	}
}

func TestSyncStateBroadcast(t *testing.T) {
	server := startTestServer(t, Config{})
	conn := dial(t, server, "")
	readMessage(t, conn) // hello

	server.SyncState(3)

	msg := readMessage(t, conn)
	if msg.Type != MessageTypeSyncState {
		t.Fatalf("message type = %q, want sync_state", msg.Type)
	}
	var data SyncStateData
	if err := json.Unmarshal(msg.Data, &data); err != nil {
		t.Fatalf("failed to decode payload: %v", err)
	}
	if data.PendingUploads != 3 {
		t.Errorf("pending uploads = %d, want 3", data.PendingUploads)
	}
}

type fakeVerifier struct{}

func (fakeVerifier) VerifySession(_ context.Context, idToken string) (*session.Session, error) {
	if idToken != "good-token" {
		return nil, errors.New("token rejected")
	}
	return &session.Session{UID: "uid-1"}, nil
}

func TestVerifierGatesConnections(t *testing.T) {
	server := startTestServer(t, Config{Verifier: fakeVerifier{}})

	// No token: refused before the upgrade.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, resp, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws", nil)
	if err == nil {
		t.Fatal("connection without token accepted")
	}
	if resp != nil && resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}

	// Bad token: refused.
	if _, _, err := websocket.Dial(ctx, "ws://"+server.Addr()+"/ws?token=bad", nil); err == nil {
		t.Fatal("connection with bad token accepted")
	}

	// Good token: admitted.
	conn := dial(t, server, "?token=good-token")
	if msg := readMessage(t, conn); msg.Type != MessageTypeHello {
		t.Errorf("verified client got %q, want hello", msg.Type)
	}
}

func TestHealthEndpoint(t *testing.T) {
	server := startTestServer(t, Config{})

	resp, err := http.Get("http://" + server.Addr() + "/health")
	if err != nil {
		t.Fatalf("health request failed: %v", err)
	}
	defer resp.Body.Close()

	var body struct {
		Status  string `json:"status"`
		Clients int    `json:"clients"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("failed to decode health body: %v", err)
	}
	if body.Status != "ok" {
		t.Errorf("health status = %q", body.Status)
	}
}
