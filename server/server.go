package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/mberat/sonoreport/internal/models"
	"github.com/mberat/sonoreport/pkg/orchestrator"
	"github.com/mberat/sonoreport/pkg/store"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // single-user research tool, no origin policy
	},
}

// Pipeline is the report orchestration surface the transport depends on.
type Pipeline interface {
	Generate(ctx context.Context, finding models.Finding) (*models.Report, error)
	GenerateStream(ctx context.Context, finding models.Finding, onChunk func(string)) (*models.Report, error)
	Translate(ctx context.Context, report string) (string, error)
}

type Config struct {
	Addr           string
	Streaming      bool
	RequestTimeout time.Duration
}

type Server struct {
	config   Config
	pipeline Pipeline
}

func New(config Config, pipeline Pipeline) *Server {
	if config.Addr == "" {
		config.Addr = ":8080"
	}
	if config.RequestTimeout == 0 {
		config.RequestTimeout = 2 * time.Minute
	}

	return &Server{
		config:   config,
		pipeline: pipeline,
	}
}

// Handler returns the route table; split out from ListenAndServe so tests
// can drive it with httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api/report", s.handleReport)
	mux.HandleFunc("/api/report/translate", s.handleTranslate)
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

func (s *Server) ListenAndServe() error {
	log.Printf("Starting report server on %s", s.config.Addr)
	return http.ListenAndServe(s.config.Addr, s.Handler())
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var finding models.Finding
	if err := json.NewDecoder(r.Body).Decode(&finding); err != nil {
		writeError(w, http.StatusBadRequest, "invalid finding payload: "+err.Error())
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	report, err := s.pipeline.Generate(ctx, finding)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, report)
}

type translateRequest struct {
	Report string `json:"report"`
}

type translateResponse struct {
	Translated string `json:"translated"`
}

func (s *Server) handleTranslate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req translateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid translate payload: "+err.Error())
		return
	}
	if req.Report == "" {
		writeError(w, http.StatusBadRequest, "report text is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), s.config.RequestTimeout)
	defer cancel()

	translated, err := s.pipeline.Translate(ctx, req.Report)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}

	writeJSON(w, http.StatusOK, translateResponse{Translated: translated})
}

// Message is one WebSocket frame. Inbound: {"type":"generate","data":<finding>}.
// Outbound types: "stream" (raw chunk), "report" (final report), "error".
type Message struct {
	Type    string          `json:"type"`
	Content string          `json:"content,omitempty"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type outMessage struct {
	Type    string      `json:"type"`
	Content string      `json:"content,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var msg Message
		if err := conn.ReadJSON(&msg); err != nil {
			if !websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Error reading message: %v", err)
			}
			break
		}

		if msg.Type != "generate" {
			s.send(conn, outMessage{Type: "error", Content: "unknown message type: " + msg.Type})
			continue
		}

		var finding models.Finding
		if err := json.Unmarshal(msg.Data, &finding); err != nil {
			s.send(conn, outMessage{Type: "error", Content: "invalid finding payload: " + err.Error()})
			continue
		}

		s.generateOverSocket(conn, finding)
	}
}

func (s *Server) generateOverSocket(conn *websocket.Conn, finding models.Finding) {
	ctx, cancel := context.WithTimeout(context.Background(), s.config.RequestTimeout)
	defer cancel()

	var report *models.Report
	var err error

	if s.config.Streaming {
		report, err = s.pipeline.GenerateStream(ctx, finding, func(chunk string) {
			s.send(conn, outMessage{Type: "stream", Content: chunk})
		})
	} else {
		report, err = s.pipeline.Generate(ctx, finding)
	}

	if err != nil {
		s.send(conn, outMessage{Type: "error", Content: err.Error()})
		return
	}

	s.send(conn, outMessage{Type: "report", Data: report})
}

func (s *Server) send(conn *websocket.Conn, msg outMessage) {
	if err := conn.WriteJSON(msg); err != nil {
		log.Printf("Error sending message: %v", err)
	}
}

// statusFor maps pipeline errors onto the error taxonomy: bad input is the
// caller's fault, an empty store means retrieval is unavailable, everything
// else is an upstream generation failure.
func statusFor(err error) int {
	switch {
	case errors.Is(err, orchestrator.ErrInvalidFinding):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrStoreEmpty), errors.Is(err, store.ErrModelMismatch):
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}
