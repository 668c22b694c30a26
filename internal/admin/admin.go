package admin

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/muurk/arrayacq/internal/config"
	"github.com/muurk/arrayacq/internal/device"
	"github.com/muurk/arrayacq/internal/logging"
	"github.com/muurk/arrayacq/internal/server"
	"github.com/muurk/arrayacq/internal/version"
)

const (
	// Time allowed to write an event to the peer
	writeWait = 10 * time.Second

	// Interval between pings on an idle event stream
	pingPeriod = 30 * time.Second

	maxBodyBytes = 4 << 10
)

// Controller is the part of server.Controller the API drives.
type Controller interface {
	Enable(port int) error
	Disable()
	Status() server.Status
	Subscribe() (<-chan server.Event, func())
}

// SettingsSource reports the device settings shown by /status.
type SettingsSource interface {
	Settings() device.Settings
}

// Config configures the API handler.
type Config struct {
	Controller Controller
	// Device is optional.
	Device SettingsSource
	// Gatherer backs /metrics. Nil disables the route.
	Gatherer prometheus.Gatherer
	Version  version.Info
	// CheckOrigin filters websocket upgrades. Nil accepts same-origin
	// requests only.
	CheckOrigin func(*http.Request) bool
}

// StatusResponse is the body of GET /status.
type StatusResponse struct {
	Controller server.Status    `json:"controller"`
	Device     *device.Settings `json:"device,omitempty"`
}

// EnableRequest is the body of POST /enable.
type EnableRequest struct {
	Port int `json:"port"`
}

type api struct {
	cfg      Config
	upgrader websocket.Upgrader
}

// NewHandler builds the router.
func NewHandler(cfg Config) http.Handler {
	a := &api{
		cfg: cfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     cfg.CheckOrigin,
		},
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger)

	r.Get("/health", a.health)
	r.Get("/version", a.version)
	r.Get("/status", a.status)
	r.Post("/enable", a.enable)
	r.Post("/disable", a.disable)
	r.Get("/events", a.events)
	if cfg.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(cfg.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

func (a *api) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (a *api) version(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.cfg.Version)
}

func (a *api) status(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, a.snapshot())
}

func (a *api) snapshot() StatusResponse {
	resp := StatusResponse{Controller: a.cfg.Controller.Status()}
	if a.cfg.Device != nil {
		s := a.cfg.Device.Settings()
		resp.Device = &s
	}
	return resp
}

func (a *api) enable(w http.ResponseWriter, r *http.Request) {
	var req EnableRequest
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid request body: %w", err))
		return
	}
	if err := config.ValidatePort(req.Port); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	err := a.cfg.Controller.Enable(req.Port)
	switch {
	case err == nil:
	case errors.Is(err, server.ErrAlreadyEnabled):
		writeError(w, http.StatusConflict, err)
		return
	case errors.Is(err, server.ErrExiting):
		writeError(w, http.StatusServiceUnavailable, err)
		return
	default:
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusAccepted, a.snapshot())
}

func (a *api) disable(w http.ResponseWriter, _ *http.Request) {
	a.cfg.Controller.Disable()
	writeJSON(w, http.StatusOK, a.snapshot())
}

// events streams the current status followed by every state change until
// the peer goes away, the subscription closes or the server shuts down.
func (a *api) events(w http.ResponseWriter, r *http.Request) {
	conn, err := a.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already replied
		logging.Debug("Event stream upgrade failed", zap.Error(err))
		return
	}
	remote := r.RemoteAddr
	logging.LogConnection(remote, "events_opened")
	defer func() {
		_ = conn.Close()
		logging.LogConnection(remote, "events_closed")
	}()

	ch, unsubscribe := a.cfg.Controller.Subscribe()
	defer unsubscribe()

	// The read side only handles control frames and notices the close.
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	send := func(ev server.Event) error {
		_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
		return conn.WriteJSON(ev)
	}

	if err := send(server.Event{Status: a.cfg.Controller.Status(), Time: time.Now()}); err != nil {
		return
	}

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()
	for {
		select {
		case ev, ok := <-ch:
			if !ok {
				return
			}
			if err := send(ev); err != nil {
				return
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return
			}
		case <-closed:
			return
		case <-r.Context().Done():
			return
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Debug("Failed to write response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		logging.Debug("Admin request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

// Server runs the admin API on its own listener.
type Server struct {
	srv *http.Server
	ln  net.Listener
}

// Listen binds addr. The server does not accept requests until Serve.
func Listen(addr string, h http.Handler) (*Server, error) {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("admin: bind error: %w", err)
	}
	return &Server{
		srv: &http.Server{Handler: h, ReadHeaderTimeout: 5 * time.Second},
		ln:  ln,
	}, nil
}

// Addr returns the bound address.
func (s *Server) Addr() net.Addr {
	return s.ln.Addr()
}

// Serve handles requests until ctx is cancelled, then shuts down. Request
// contexts derive from ctx so event streams end with it.
func (s *Server) Serve(ctx context.Context) error {
	s.srv.BaseContext = func(net.Listener) context.Context { return ctx }
	errc := make(chan error, 1)
	go func() { errc <- s.srv.Serve(s.ln) }()
	logging.Info("Admin API listening", zap.String("addr", s.ln.Addr().String()))

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := s.srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errc; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
