package service

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/rs/cors"
)

type HealthzServer struct {
	log    log.Logger
	status *StatusTracker
	server *http.Server
	ln     net.Listener
}

func NewHealthzServer(logger log.Logger, status *StatusTracker) *HealthzServer {
	if status == nil {
		status = NewStatusTracker()
	}
	return &HealthzServer{log: logger, status: status}
}

// Handler serves /healthz (liveness) and /status (last run).
func (h *HealthzServer) Handler() http.Handler {
	hdlr := http.NewServeMux()
	hdlr.HandleFunc("/healthz", h.Handle)
	hdlr.HandleFunc("/status", h.HandleStatus)
	c := cors.New(cors.Options{
		AllowedOrigins: []string{"*"},
	})
	return c.Handler(hdlr)
}

// Listen binds addr so that Addr is known before Serve is called.
func (h *HealthzServer) Listen(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return err
	}
	h.ln = ln
	h.server = &http.Server{
		Handler:           h.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return nil
}

// Serve blocks until the server is shut down.
func (h *HealthzServer) Serve() error {
	return h.server.Serve(h.ln)
}

// Addr is the bound address, nil before Listen.
func (h *HealthzServer) Addr() net.Addr {
	if h.ln == nil {
		return nil
	}
	return h.ln.Addr()
}

func (h *HealthzServer) Shutdown(ctx context.Context) error {
	if h.server == nil {
		return nil
	}
	return h.server.Shutdown(ctx)
}

func (h *HealthzServer) Handle(w http.ResponseWriter, r *http.Request) {
	h.log.Debug("Received health check request", "path", r.URL.Path)
	w.Write([]byte("OK")) //nolint:errcheck
}

// HandleStatus reports the last sweep. It answers 503 while the last
// finished sweep failed so that probes can alert on it.
func (h *HealthzServer) HandleStatus(w http.ResponseWriter, r *http.Request) {
	st := h.status.Snapshot()
	w.Header().Set("Content-Type", "application/json")
	if st.State == RunStateFailed {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	if err := json.NewEncoder(w).Encode(st); err != nil {
		h.log.Warn("Failed to write status response", "err", err)
	}
}
