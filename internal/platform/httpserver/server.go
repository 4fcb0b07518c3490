package httpserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"time"

	claimsettlement "claimguard/contexts/rewards-settlement/claim-settlement"
	txguard "claimguard/contexts/rewards-settlement/tx-guard"
	_ "claimguard/internal/platform/httpserver/docs"

	httpSwagger "github.com/swaggo/http-swagger"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const maxBodyBytes = 64 << 10

type Server struct {
	mux     *http.ServeMux
	logger  *slog.Logger
	addr    string
	claims  claimsettlement.Module
	guard   txguard.Module
	metrics http.Handler
	// trustedProxies are the peers whose forwarding headers are believed.
	trustedProxies []netip.Prefix
}

// New builds the API surface. metrics may be nil, in which case /metrics is
// not registered.
func New(
	claims claimsettlement.Module,
	guard txguard.Module,
	metrics http.Handler,
	logger *slog.Logger,
	addr string,
) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if addr == "" {
		addr = ":8080"
	}

	s := &Server{
		mux:     http.NewServeMux(),
		logger:  logger,
		addr:    addr,
		claims:  claims,
		guard:   guard,
		metrics: metrics,
	}
	s.registerRoutes()
	return s
}

// TrustProxies makes forwarding headers count only when the direct peer is in
// one of prefixes. With no trusted proxies the peer address is the client.
func (s *Server) TrustProxies(prefixes []netip.Prefix) {
	s.trustedProxies = append([]netip.Prefix(nil), prefixes...)
}

// Handler returns the instrumented root handler.
func (s *Server) Handler() http.Handler {
	return otelhttp.NewHandler(s.mux, "claimguard-api")
}

// Start serves until ctx is cancelled, then drains in-flight requests.
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	s.logger.Info("http server starting",
		"event", "http_server_starting",
		"module", "internal/platform/httpserver",
		"layer", "platform",
		"addr", s.addr,
	)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
	defer cancel()
	s.logger.Info("http server stopping",
		"event", "http_server_stopping",
		"module", "internal/platform/httpserver",
		"layer", "platform",
	)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) registerRoutes() {
	s.mux.Handle("/swagger/", httpSwagger.Handler(
		httpSwagger.URL("/swagger/doc.json"),
	))
	if s.metrics != nil {
		s.mux.Handle("GET /metrics", s.metrics)
	}

	s.mux.HandleFunc("POST /claim", s.handleSubmitClaim)
	s.mux.HandleFunc("GET /claim/{idempo_key}", s.handleGetClaim)
	s.mux.HandleFunc("GET /health/claims", s.handleClaimsHealth)

	s.mux.HandleFunc("POST /tx-guard", s.handleAcquireGuard)
	s.mux.HandleFunc("PATCH /tx-guard", s.handleMarkGuardSent)
	s.mux.HandleFunc("DELETE /tx-guard", s.handleReleaseGuard)
	s.mux.HandleFunc("POST /tx-guard/onboarding", s.handleAdmitOnboarding)
}

func decodeJSON(w http.ResponseWriter, r *http.Request, target any) error {
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	return decoder.Decode(target)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// retryAfterSeconds rounds up so a client never retries inside the window.
func retryAfterSeconds(d time.Duration) int {
	if d <= 0 {
		return 1
	}
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds < 1 {
		return 1
	}
	return seconds
}

// resolveClientIP returns the peer address unless the peer is a trusted
// proxy. Behind trusted proxies, X-Forwarded-For is walked right to left and
// the first untrusted hop is the client.
func (s *Server) resolveClientIP(r *http.Request) string {
	peer := r.RemoteAddr
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		peer = host
	}
	if !s.trusted(peer) {
		return peer
	}

	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		hops := strings.Split(forwarded, ",")
		for i := len(hops) - 1; i >= 0; i-- {
			hop := strings.TrimSpace(hops[i])
			if hop == "" {
				continue
			}
			if !s.trusted(hop) || i == 0 {
				return hop
			}
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-Ip")); realIP != "" {
		return realIP
	}
	return peer
}

func (s *Server) trusted(raw string) bool {
	addr, err := netip.ParseAddr(raw)
	if err != nil {
		return false
	}
	addr = addr.Unmap()
	for _, prefix := range s.trustedProxies {
		if prefix.Contains(addr) {
			return true
		}
	}
	return false
}
