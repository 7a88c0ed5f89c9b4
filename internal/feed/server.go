// Package feed pushes change notifications to connected clients over
// WebSocket.
//
// The daemon reports cache changes and sync progress to the feed; each
// connected client receives every message. Clients are expected to
// re-read through the usual APIs when notified, the feed itself never
// carries record payloads.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"

	"github.com/quillpad/quill/internal/session"
)

// MessageType tags a feed message.
type MessageType string

const (
	// MessageTypeDataChanged means cached records of one kind changed
	// and readers should refresh.
	MessageTypeDataChanged MessageType = "data_changed"

	// MessageTypeSyncState reports outbox progress.
	MessageTypeSyncState MessageType = "sync_state"

	// MessageTypeHello greets a freshly connected client.
	MessageTypeHello MessageType = "hello"
)

// Message is one feed broadcast.
type Message struct {
	Type      MessageType     `json:"type"`
	Timestamp time.Time       `json:"timestamp"`
	Data      json.RawMessage `json:"data,omitempty"`
}

// DataChangedData names the record kind that changed.
type DataChangedData struct {
	Kind string `json:"kind"`
}

// SyncStateData reports how many uploads are still queued.
type SyncStateData struct {
	PendingUploads int `json:"pending_uploads"`
}

// HelloData carries the id assigned to a fresh connection.
type HelloData struct {
	ClientID string `json:"client_id"`
}

// Verifier checks a client-supplied ID token. *remote.Client satisfies
// it. A nil verifier admits everyone, which only makes sense on
// loopback.
type Verifier interface {
	VerifySession(ctx context.Context, idToken string) (*session.Session, error)
}

// Config holds feed server settings.
type Config struct {
	// Port to listen on. Zero picks a random free port.
	Port int

	// Verifier gates connections when set. Clients pass their token
	// in the "token" query parameter.
	Verifier Verifier

	// LogOutput receives server logs. Nil means standard error.
	LogOutput io.Writer
}

// Server accepts WebSocket clients and fans broadcasts out to them.
type Server struct {
	addr     string
	verifier Verifier
	listener net.Listener
	server   *http.Server

	clients   map[*websocket.Conn]string
	clientsMu sync.RWMutex

	broadcast chan Message

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	logger *log.Logger
}

// NewServer creates a feed server; call Start to begin listening.
func NewServer(cfg Config) *Server {
	logOut := cfg.LogOutput
	if logOut == nil {
		logOut = log.Default().Writer()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		addr:      fmt.Sprintf(":%d", cfg.Port),
		verifier:  cfg.Verifier,
		clients:   make(map[*websocket.Conn]string),
		broadcast: make(chan Message, 100),
		ctx:       ctx,
		cancel:    cancel,
		logger:    log.New(logOut, "[feed] ", log.LstdFlags),
	}
}

// Start begins accepting connections. It does not block.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = ln

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.server = &http.Server{
		Handler:      mux,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	s.wg.Add(1)
	go s.broadcastLoop()

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.logger.Printf("listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			s.logger.Printf("serve error: %v", err)
		}
	}()

	return nil
}

// Stop closes all client connections and shuts the server down.
func (s *Server) Stop() error {
	s.cancel()

	s.clientsMu.Lock()
	for conn := range s.clients {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(s.clients, conn)
	}
	s.clientsMu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("feed shutdown error: %w", err)
	}

	s.wg.Wait()
	return nil
}

// DataChanged broadcasts a change notification for one record kind.
// It satisfies the daemon's Notifier.
func (s *Server) DataChanged(kind string) {
	data, _ := json.Marshal(DataChangedData{Kind: kind})
	s.Broadcast(Message{Type: MessageTypeDataChanged, Data: data})
}

// SyncState broadcasts outbox progress.
func (s *Server) SyncState(pending int) {
	data, _ := json.Marshal(SyncStateData{PendingUploads: pending})
	s.Broadcast(Message{Type: MessageTypeSyncState, Data: data})
}

// Broadcast queues msg for every connected client. Messages are
// dropped rather than blocking the caller when the queue is full.
func (s *Server) Broadcast(msg Message) {
	select {
	case s.broadcast <- msg:
	case <-s.ctx.Done():
	default:
		s.logger.Printf("broadcast queue full, dropping %s", msg.Type)
	}
}

func (s *Server) broadcastLoop() {
	defer s.wg.Done()

	for {
		select {
		case <-s.ctx.Done():
			return

		case msg := <-s.broadcast:
			if msg.Timestamp.IsZero() {
				msg.Timestamp = time.Now()
			}
			data, err := json.Marshal(msg)
			if err != nil {
				s.logger.Printf("failed to marshal message: %v", err)
				continue
			}

			s.clientsMu.RLock()
			clients := make([]*websocket.Conn, 0, len(s.clients))
			for conn := range s.clients {
				clients = append(clients, conn)
			}
			s.clientsMu.RUnlock()

			for _, conn := range clients {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				err := conn.Write(ctx, websocket.MessageText, data)
				cancel()
				if err != nil {
					s.removeClient(conn)
				}
			}
		}
	}
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	if s.verifier != nil {
		token := r.URL.Query().Get("token")
		if token == "" {
			http.Error(w, "missing token", http.StatusUnauthorized)
			return
		}
		if _, err := s.verifier.VerifySession(r.Context(), token); err != nil {
			s.logger.Printf("rejected client: %v", err)
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}
	}

	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		s.logger.Printf("websocket upgrade failed: %v", err)
		return
	}

	clientID := uuid.NewString()
	s.clientsMu.Lock()
	s.clients[conn] = clientID
	count := len(s.clients)
	s.clientsMu.Unlock()
	s.logger.Printf("client %s connected (total: %d)", clientID, count)

	data, _ := json.Marshal(HelloData{ClientID: clientID})
	hello, _ := json.Marshal(Message{Type: MessageTypeHello, Timestamp: time.Now(), Data: data})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	_ = conn.Write(ctx, websocket.MessageText, hello)
	cancel()

	go s.readLoop(conn)
}

// readLoop drains client frames so pings keep the connection alive and
// disconnects are noticed.
func (s *Server) readLoop(conn *websocket.Conn) {
	defer s.removeClient(conn)
	for {
		if _, _, err := conn.Read(s.ctx); err != nil {
			return
		}
	}
}

func (s *Server) removeClient(conn *websocket.Conn) {
	s.clientsMu.Lock()
	clientID, ok := s.clients[conn]
	if !ok {
		s.clientsMu.Unlock()
		return
	}
	delete(s.clients, conn)
	count := len(s.clients)
	s.clientsMu.Unlock()

	_ = conn.Close(websocket.StatusNormalClosure, "")
	s.logger.Printf("client %s disconnected (total: %d)", clientID, count)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.clientsMu.RLock()
	count := len(s.clients)
	s.clientsMu.RUnlock()

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status":  "ok",
		"clients": count,
	})
}

// Addr returns the bound listen address.
func (s *Server) Addr() string {
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return s.addr
}

// ClientCount reports connected clients.
func (s *Server) ClientCount() int {
	s.clientsMu.RLock()
	defer s.clientsMu.RUnlock()
	return len(s.clients)
}
