// Package api exposes the command table over HTTP and streams events over
// a websocket.
package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"github.com/joescharf/marie/internal/apperr"
	"github.com/joescharf/marie/internal/commands"
)

// MaxBodyBytes caps the JSON arguments of a command request.
const MaxBodyBytes = 32 << 20

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = pongWait * 9 / 10
)

// Options configures a Server.
type Options struct {
	Version string
	Logger  *zap.Logger
	// UI, when set, serves everything outside /api/.
	UI http.Handler
	// AllowedOrigins lists browser origins allowed besides the server's own.
	AllowedOrigins []string
	// AllowedHosts lists Host header names accepted besides loopback.
	AllowedHosts []string
}

// Server provides the REST API handlers.
type Server struct {
	dispatcher *commands.Dispatcher
	version    string
	logger     *zap.Logger
	ui         http.Handler
	policy     accessPolicy
	upgrader   websocket.Upgrader
}

// NewServer creates a new API server over the dispatcher.
func NewServer(d *commands.Dispatcher, o Options) *Server {
	if o.Logger == nil {
		o.Logger = zap.NewNop()
	}
	if o.Version == "" {
		o.Version = "dev"
	}
	s := &Server{
		dispatcher: d,
		version:    o.Version,
		logger:     o.Logger,
		ui:         o.UI,
		policy:     newAccessPolicy(o.AllowedOrigins, o.AllowedHosts),
	}
	s.upgrader = websocket.Upgrader{CheckOrigin: s.policy.originAllowed}
	return s
}

// Protect wraps next with the server's Host and Origin checks. It is used
// for handlers mounted next to the API, such as the MCP HTTP transport.
func (s *Server) Protect(next http.Handler) http.Handler {
	return s.policy.middleware(next)
}

// Envelope is the response body of a command invocation.
type Envelope struct {
	Success bool              `json:"success"`
	Data    any               `json:"data"`
	Error   string            `json:"error,omitempty"`
	Kind    string            `json:"kind,omitempty"`
	Details map[string]string `json:"details,omitempty"`
}

// CommandInfo describes a command for GET /api/v1/commands.
type CommandInfo struct {
	Name        string           `json:"name"`
	Description string           `json:"description"`
	Params      []commands.Param `json:"params"`
}

// Router returns an http.Handler for the API routes.
func (s *Server) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/health", s.health)
	mux.HandleFunc("GET /api/v1/commands", s.listCommands)
	mux.HandleFunc("POST /api/v1/commands/{name}", s.invoke)
	mux.HandleFunc("GET /api/v1/events", s.events)

	if s.ui != nil {
		mux.Handle("/", s.ui)
	}

	return s.policy.middleware(mux)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	kind := apperr.KindOf(err)
	writeJSON(w, statusFor(kind), Envelope{
		Success: false,
		Error:   err.Error(),
		Kind:    string(kind),
		Details: apperr.Details(err),
	})
}

// statusFor maps an error kind to an HTTP status.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindValidation:
		return http.StatusBadRequest
	case apperr.KindNotFound:
		return http.StatusNotFound
	case apperr.KindExternalTool:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok", "version": s.version})
}

func (s *Server) listCommands(w http.ResponseWriter, r *http.Request) {
	cmds := s.dispatcher.Commands()
	out := make([]CommandInfo, len(cmds))
	for i, c := range cmds {
		params := c.Params
		if params == nil {
			params = []commands.Param{}
		}
		out[i] = CommandInfo{Name: c.Name, Description: c.Description, Params: params}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) invoke(w http.ResponseWriter, r *http.Request) {
	name := r.PathValue("name")
	if !isJSON(r) {
		writeJSON(w, http.StatusUnsupportedMediaType, Envelope{
			Error:   "Content-Type must be application/json",
			Kind:    string(apperr.KindValidation),
			Details: map[string]string{"field": "content_type"},
		})
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, apperr.Invalid("args", "request body too large"))
			return
		}
		writeError(w, apperr.Invalid("args", err.Error()))
		return
	}

	var args json.RawMessage
	if len(body) > 0 {
		if !json.Valid(body) {
			writeError(w, apperr.Invalid("args", "request body is not valid JSON"))
			return
		}
		args = body
	}

	data, err := s.dispatcher.Invoke(r.Context(), name, args)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, Envelope{Success: true, Data: data})
}

// events upgrades to a websocket and forwards bus events until the client
// goes away.
func (s *Server) events(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Debug("websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	ch, unsubscribe := s.dispatcher.Bus().Subscribe()
	defer unsubscribe()

	// The read side only exists to notice close frames and answer pings.
	done := make(chan struct{})
	conn.SetReadLimit(4096)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-r.Context().Done():
			return
		case ev, ok := <-ch:
			if !ok {
				return
			}
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteJSON(ev); err != nil {
				s.logger.Debug("websocket write failed", zap.Error(err))
				return
			}
		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
