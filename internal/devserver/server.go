// Package devserver is a development chat backend: the token-checked history
// endpoint and the per-room live channel, both held in memory.
package devserver

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/tOgg1/roomchat/internal/logging"
)

const (
	defaultHistoryPath = "/api/chat/rooms/{room}/messages/"
	defaultLivePath    = "/ws/chat/{room}/"
	defaultMaxBacklog  = 1000
	writeWait          = 5 * time.Second
)

// Config configures the development backend.
type Config struct {
	// HistoryPath and LivePath are route templates containing {room}.
	HistoryPath string
	LivePath    string

	// Tokens maps accepted credentials to identities. Empty accepts any
	// non-empty token.
	Tokens map[string]string

	// MaxBacklog caps each room's in-memory log.
	MaxBacklog int
	Now        func() time.Time
}

// Record is one stored message as returned by the history endpoint.
type Record struct {
	Sender    string `json:"sender"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

type inbound struct {
	Message string `json:"message"`
	Sender  string `json:"sender"`
}

type outbound struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type peer struct {
	conn    *websocket.Conn
	writeMu sync.Mutex
}

func (p *peer) writeJSON(v any) error {
	data, err := encodeJSON(v)
	if err != nil {
		return err
	}
	p.writeMu.Lock()
	defer p.writeMu.Unlock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return p.conn.WriteMessage(websocket.TextMessage, data)
}

func (p *peer) close(code int, reason string) {
	p.writeMu.Lock()
	_ = p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	_ = p.conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, reason))
	p.writeMu.Unlock()
	_ = p.conn.Close()
}

type room struct {
	mu    sync.Mutex
	log   []Record
	peers map[*peer]struct{}
}

// Server holds every room. Use Handler to mount it.
type Server struct {
	cfg      Config
	logger   zerolog.Logger
	upgrader websocket.Upgrader

	mu     sync.Mutex
	rooms  map[string]*room
	closed bool
	wg     sync.WaitGroup
}

// New returns a server with cfg defaults applied.
func New(cfg Config) *Server {
	if cfg.HistoryPath == "" {
		cfg.HistoryPath = defaultHistoryPath
	}
	if cfg.LivePath == "" {
		cfg.LivePath = defaultLivePath
	}
	if cfg.MaxBacklog <= 0 {
		cfg.MaxBacklog = defaultMaxBacklog
	}
	if cfg.Now == nil {
		cfg.Now = time.Now
	}
	return &Server{
		cfg:    cfg,
		logger: logging.Component("devserver"),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		rooms: make(map[string]*room),
	}
}

// Handler builds the chi router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	r.Get(s.cfg.HistoryPath, s.handleHistory)
	r.Get(s.cfg.LivePath, s.handleLive)
	return r
}

// Post stores a message in roomID and broadcasts it to connected peers.
func (s *Server) Post(roomID, sender, content string) Record {
	rec := Record{
		Sender:    sanitizeSender(sender),
		Content:   content,
		Timestamp: s.cfg.Now().UTC().Format(time.RFC3339Nano),
	}
	rm := s.room(roomID)

	rm.mu.Lock()
	rm.log = append(rm.log, rec)
	if over := len(rm.log) - s.cfg.MaxBacklog; over > 0 {
		rm.log = append([]Record(nil), rm.log[over:]...)
	}
	peers := make([]*peer, 0, len(rm.peers))
	for p := range rm.peers {
		peers = append(peers, p)
	}
	rm.mu.Unlock()

	frame := outbound{Sender: rec.Sender, Message: rec.Content, Timestamp: rec.Timestamp}
	for _, p := range peers {
		if err := p.writeJSON(frame); err != nil {
			s.logger.Debug().Err(err).Str("room", roomID).Msg("broadcast write failed")
		}
	}
	return rec
}

// History returns a copy of roomID's log.
func (s *Server) History(roomID string) []Record {
	rm := s.room(roomID)
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return append([]Record{}, rm.log...)
}

// Peers returns the number of live connections in roomID.
func (s *Server) Peers(roomID string) int {
	rm := s.room(roomID)
	rm.mu.Lock()
	defer rm.mu.Unlock()
	return len(rm.peers)
}

// DropPeers closes every live connection in roomID without a close handshake.
func (s *Server) DropPeers(roomID string) {
	rm := s.room(roomID)
	rm.mu.Lock()
	peers := make([]*peer, 0, len(rm.peers))
	for p := range rm.peers {
		peers = append(peers, p)
	}
	rm.mu.Unlock()
	for _, p := range peers {
		_ = p.conn.Close()
	}
}

// Close sends a going-away close to every peer and waits for their handlers.
func (s *Server) Close() {
	s.mu.Lock()
	s.closed = true
	rooms := make([]*room, 0, len(s.rooms))
	for _, rm := range s.rooms {
		rooms = append(rooms, rm)
	}
	s.mu.Unlock()

	for _, rm := range rooms {
		rm.mu.Lock()
		peers := make([]*peer, 0, len(rm.peers))
		for p := range rm.peers {
			peers = append(peers, p)
		}
		rm.mu.Unlock()
		for _, p := range peers {
			p.close(websocket.CloseGoingAway, "server shutdown")
		}
	}
	s.wg.Wait()
}

// ListenAndServe serves on addr until ctx is cancelled.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.logger.Info().Str("addr", addr).Msg("development backend listening")

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	s.Close()
	return srv.Shutdown(shutdownCtx)
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimSpace(chi.URLParam(r, "room"))
	if roomID == "" {
		http.Error(w, "room id required", http.StatusBadRequest)
		return
	}
	identity, ok := s.authenticate(r.Header.Get("Authorization"))
	if !ok {
		s.logger.Debug().Str("room", roomID).Interface("headers", logging.RedactHeader(r.Header)).Msg("history request rejected")
		w.Header().Set("WWW-Authenticate", "Token")
		http.Error(w, "authentication credentials were not provided", http.StatusUnauthorized)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	data, err := encodeJSON(s.History(roomID))
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	_, _ = w.Write(data)
	s.logger.Debug().Str("room", roomID).Str("identity", identity).Msg("served history")
}

func (s *Server) handleLive(w http.ResponseWriter, r *http.Request) {
	roomID := strings.TrimSpace(chi.URLParam(r, "room"))
	if roomID == "" {
		http.Error(w, "room id required", http.StatusBadRequest)
		return
	}
	if auth := r.Header.Get("Authorization"); auth != "" {
		if _, ok := s.authenticate(auth); !ok {
			http.Error(w, "invalid token", http.StatusForbidden)
			return
		}
	}

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		http.Error(w, "shutting down", http.StatusServiceUnavailable)
		return
	}
	s.wg.Add(1)
	s.mu.Unlock()

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.wg.Done()
		s.logger.Debug().Err(err).Msg("upgrade failed")
		return
	}
	p := &peer{conn: conn}
	rm := s.room(roomID)
	rm.mu.Lock()
	rm.peers[p] = struct{}{}
	rm.mu.Unlock()

	go s.readLoop(roomID, rm, p)
}

func (s *Server) readLoop(roomID string, rm *room, p *peer) {
	defer s.wg.Done()
	defer func() {
		rm.mu.Lock()
		delete(rm.peers, p)
		rm.mu.Unlock()
		_ = p.conn.Close()
	}()

	for {
		_, data, err := p.conn.ReadMessage()
		if err != nil {
			return
		}
		var req inbound
		if err := json.Unmarshal(data, &req); err != nil {
			s.logger.Debug().Err(err).Str("room", roomID).Msg("ignoring malformed frame")
			continue
		}
		if strings.TrimSpace(req.Message) == "" {
			continue
		}
		s.Post(roomID, req.Sender, req.Message)
	}
}

func (s *Server) room(roomID string) *room {
	s.mu.Lock()
	defer s.mu.Unlock()
	rm, ok := s.rooms[roomID]
	if !ok {
		rm = &room{peers: make(map[*peer]struct{})}
		s.rooms[roomID] = rm
	}
	return rm
}

// authenticate accepts "Token <credential>".
func (s *Server) authenticate(header string) (string, bool) {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Token") {
		return "", false
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return "", false
	}
	if len(s.cfg.Tokens) == 0 {
		return "", true
	}
	identity, ok := s.cfg.Tokens[token]
	return identity, ok
}
