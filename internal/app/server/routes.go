package server

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/charmbracelet/log"
	"github.com/redis/go-redis/v9"

	"globalblock/internal/auth"
	"globalblock/internal/autoblock"
	"globalblock/internal/config"
	"globalblock/internal/database"
	"globalblock/internal/geolite"
	"globalblock/internal/identity"
	"globalblock/internal/localstatus"
	"globalblock/internal/lookup"
	"globalblock/internal/manager"
	"globalblock/internal/reason"
	"globalblock/internal/status"
	"globalblock/internal/support"
)

// Server carries the wired engine components behind the HTTP routes.
type Server struct {
	store       *database.Store
	blocks      *manager.Manager
	engine      *lookup.Engine
	localStatus *localstatus.Manager
	propagator  *autoblock.Propagator
	formatter   *reason.Formatter
	auth        *auth.Service
	ids         identity.Service
	geo         *geolite.Annotator
	redis       *redis.Client
	recentIPs   *identity.RedisRecentIPs
	policy      config.Policy
	clock       support.Clock
}

func New(store *database.Store, blocks *manager.Manager, engine *lookup.Engine, localStatus *localstatus.Manager, propagator *autoblock.Propagator, formatter *reason.Formatter, authSvc *auth.Service, ids identity.Service, geo *geolite.Annotator, redisClient *redis.Client, recentIPs *identity.RedisRecentIPs, policy config.Policy, clock support.Clock) *Server {
	if clock == nil {
		clock = support.SystemClock()
	}
	return &Server{
		store:       store,
		blocks:      blocks,
		engine:      engine,
		localStatus: localStatus,
		propagator:  propagator,
		formatter:   formatter,
		auth:        authSvc,
		ids:         ids,
		geo:         geo,
		redis:       redisClient,
		recentIPs:   recentIPs,
		policy:      policy,
		clock:       clock,
	}
}

func writeJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, msg string, statusCode int) {
	writeJSON(w, statusCode, map[string]string{"error": msg})
}

// writeStatus renders a command outcome with an HTTP code matching it.
func writeStatus(w http.ResponseWriter, s status.Status) {
	writeJSON(w, httpCodeFor(s.Code), s)
}

func httpCodeFor(code status.Code) int {
	switch code {
	case status.CodeOK, status.CodeAutoblockSuppressed:
		return http.StatusOK
	case status.CodeInvalidTarget, status.CodeRangeTooWide:
		return http.StatusBadRequest
	case status.CodeNotBlocked:
		return http.StatusNotFound
	case status.CodeAlreadyBlocked, status.CodeRaceLost:
		return http.StatusConflict
	case status.CodeExternalListUnavailable:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func enableCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT, DELETE")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// Routes builds the API mux. Lookup and the autoblock trigger only need a
// session; the command routes demand the matching capability grant.
func (s *Server) Routes() http.Handler {
	router := http.NewServeMux()

	router.HandleFunc("POST /api/login", s.loginUser)
	router.HandleFunc("GET /api/version", s.getVersion)
	router.Handle("GET /api/checkLogin", s.auth.RequireAuth(http.HandlerFunc(checkLogin)))

	router.Handle("GET /api/blocks", s.auth.RequireAuth(http.HandlerFunc(s.listBlocks)))
	router.Handle("GET /api/blocks/{id}", s.auth.RequireAuth(http.HandlerFunc(s.getBlock)))
	router.Handle("GET /api/lookup", s.auth.RequireAuth(http.HandlerFunc(s.lookupRequester)))

	manage := s.auth.RequireCapability(identity.CapManageBlocks)
	router.Handle("POST /api/block", manage(http.HandlerFunc(s.blockTarget)))
	router.Handle("POST /api/unblock", manage(http.HandlerFunc(s.unblockTarget)))

	override := s.auth.RequireCapability(identity.CapLocalOverride)
	router.Handle("POST /api/local-disable", override(http.HandlerFunc(s.locallyDisable)))
	router.Handle("POST /api/local-enable", override(http.HandlerFunc(s.locallyEnable)))

	router.Handle("POST /api/autoblock/trigger", s.auth.RequireAuth(http.HandlerFunc(s.triggerAutoblock)))

	return enableCORS(router)
}

// Open serves the API until ctx is cancelled, then drains in-flight
// requests before returning.
func (s *Server) Open(ctx context.Context, port int) error {
	srv := http.Server{
		Addr:    fmt.Sprintf(":%d", port),
		Handler: s.Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	log.Infof("Starting block service API on port :%d", port)

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			return fmt.Errorf("api server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("api server shutdown: %w", err)
	}
	log.Debug("API server drained")
	return nil
}

func checkLogin(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
}
