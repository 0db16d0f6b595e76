// Package server exposes the tool registry over HTTP: a JSON-RPC style
// /rpc endpoint, a /status endpoint, and a persistent /events stream that
// pushes one event per repository state change.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"

	"gitsmart/internal/config"
	"gitsmart/internal/events"
	"gitsmart/internal/faults"
	"gitsmart/internal/logging"
	"gitsmart/internal/session"
	"gitsmart/internal/tools"
)

// Server serves tool invocations and the event stream for one repository.
type Server struct {
	cfg         config.ServerConfig
	registry    *tools.Registry
	broadcaster *events.Broadcaster
	session     *session.RepositorySession
	started     time.Time
}

// New creates a server.
func New(cfg config.ServerConfig, registry *tools.Registry, broadcaster *events.Broadcaster, sess *session.RepositorySession) *Server {
	return &Server{
		cfg:         cfg,
		registry:    registry,
		broadcaster: broadcaster,
		session:     sess,
	}
}

// Handler returns the HTTP handler, exported for tests.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/rpc", s.handleRPC)
	mux.HandleFunc("/status", s.handleStatus)
	mux.HandleFunc("/events", s.handleEvents)
	return mux
}

// Run listens and serves until ctx is cancelled. A port already in use means
// another instance is serving this repository; Run refuses to start rather
// than racing it.
func (s *Server) Run(ctx context.Context) error {
	addr := fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port)
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("cannot listen on %s (another instance running?): %w", addr, err)
	}
	s.started = time.Now()

	if pidPath, err := writePIDFile(); err != nil {
		logging.ServerWarn("failed to write pid file: %v", err)
	} else {
		defer os.Remove(pidPath)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	logging.ServerInfo("tool server listening on %s", addr)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	})
	err = g.Wait()
	logging.ServerInfo("tool server stopped")
	return err
}

// writePIDFile records the serving process id under ~/.gitsmart/. The bind on
// the configured port is the actual mutual exclusion; the pid file only aids
// diagnostics.
func writePIDFile() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(home, ".gitsmart")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "gitsmart.pid")
	if err := os.WriteFile(path, []byte(strconv.Itoa(os.Getpid())+"\n"), 0644); err != nil {
		return "", err
	}
	return path, nil
}

type rpcParams struct {
	Name      string         `json:"name"`
	Arguments map[string]any `json:"arguments"`
}

type rpcRequest struct {
	ID     any       `json:"id"`
	Method string    `json:"method"`
	Params rpcParams `json:"params"`
}

type rpcError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

type rpcResponse struct {
	ID     any       `json:"id,omitempty"`
	Result any       `json:"result,omitempty"`
	Error  *rpcError `json:"error,omitempty"`
}

func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	var req rpcRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeRPC(w, rpcResponse{Error: &rpcError{Code: faults.CodeParse, Message: "parse error: " + err.Error()}})
		return
	}
	if req.Method != "tools/call" {
		writeRPC(w, rpcResponse{ID: req.ID, Error: &rpcError{Code: faults.CodeUnknownTool, Message: "unknown method: " + req.Method}})
		return
	}

	resp := s.registry.Dispatch(r.Context(), tools.Request{
		ID:        fmt.Sprint(req.ID),
		Name:      req.Params.Name,
		Arguments: req.Params.Arguments,
	})
	if resp.Err != nil {
		code := faults.RPCCode(resp.Err)
		if errors.Is(resp.Err, tools.ErrToolNotFound) {
			code = faults.CodeUnknownTool
		}
		logging.ServerWarn("tool %s failed: %v", req.Params.Name, resp.Err)
		writeRPC(w, rpcResponse{ID: req.ID, Error: &rpcError{Code: code, Message: resp.Err.Error()}})
		return
	}
	writeRPC(w, rpcResponse{ID: req.ID, Result: resp.Result})
}

func writeRPC(w http.ResponseWriter, resp rpcResponse) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		logging.ServerWarn("failed to write response: %v", err)
	}
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := map[string]any{
		"enabled":         true,
		"host":            s.cfg.Host,
		"port":            s.cfg.Port,
		"repository_path": s.session.Repo().Root(),
		"uptime":          time.Since(s.started).Round(time.Second).String(),
		"tools":           s.registry.Names(),
	}
	if err := json.NewEncoder(w).Encode(status); err != nil {
		logging.ServerWarn("failed to write status: %v", err)
	}
}

// heartbeatInterval paces SSE keepalive comments so idle proxies do not drop
// the connection.
const heartbeatInterval = 15 * time.Second

// handleEvents serves the persistent event stream over SSE. Disconnecting
// only stops delivery to that subscriber; in-flight mutations are unaffected.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	id, ch := s.broadcaster.Subscribe()
	defer s.broadcaster.Unsubscribe(id)

	heartbeat := time.NewTicker(heartbeatInterval)
	defer heartbeat.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case <-heartbeat.C:
			if _, err := fmt.Fprint(w, ": heartbeat\n\n"); err != nil {
				return
			}
			flusher.Flush()

		case ev, ok := <-ch:
			if !ok {
				// Dropped by the broadcaster (stalled queue) or shutdown.
				return
			}
			payload, err := json.Marshal(ev)
			if err != nil {
				logging.EventsWarn("failed to encode event %s: %v", ev.ID, err)
				continue
			}
			if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", ev.Type, payload); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
