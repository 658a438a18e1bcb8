package hubcli

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"sort"
	"time"

	"github.com/gorilla/mux"
	"github.com/launchdarkly/go-jsonstream/v3/jwriter"

	"github.com/launchdarkly/go-sdk-common/v3/ldlog"

	syncstore "github.com/snapshelf/syncstore"
	"github.com/snapshelf/syncstore/ldhttpbackend"
	"github.com/snapshelf/syncstore/ldsqlite"
	"github.com/snapshelf/syncstore/ldssebus"
	"github.com/snapshelf/syncstore/subsystems"
)

const shutdownTimeout = 5 * time.Second

// Server is a sync hub: it stores namespaces in SQLite and relays broadcast updates between
// replicas.
type Server struct {
	db      *ldsqlite.SQLiteBackend
	hub     *ldssebus.Hub
	handler http.Handler
	loggers ldlog.Loggers
}

// NewServer opens the database and prepares the hub's HTTP handler.
func NewServer(cfg Config, loggers ldlog.Loggers) (*Server, error) {
	db, err := ldsqlite.Open(cfg.DBPath, "", ldsqlite.DefaultBusyTimeoutMillis)
	if err != nil {
		return nil, err
	}
	s := &Server{
		db: db,
		hub: ldssebus.NewHub(ldssebus.HubConfig{
			ReplayLength:      cfg.ReplayLength,
			HeartbeatInterval: cfg.HeartbeatInterval,
		}, loggers),
		loggers: loggers,
	}

	namespaces := ldhttpbackend.NewNamespaceHandler(s.resolveNamespace, loggers)
	router := mux.NewRouter()
	router.HandleFunc("/status", s.getStatus).Methods(http.MethodGet)
	router.PathPrefix("/namespaces/").Handler(namespaces)
	router.PathPrefix("/bus/").Handler(s.hub.Handler())
	if cfg.AuthKey != "" {
		router.Use(requireAuthKey(cfg.AuthKey))
	}
	s.handler = router
	return s, nil
}

// Handler returns the hub's HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Serve listens on addr until ctx is cancelled, then shuts down gracefully.
func (s *Server) Serve(ctx context.Context, addr string) error {
	server := &http.Server{Addr: addr, Handler: s.handler, ReadHeaderTimeout: 10 * time.Second}
	errCh := make(chan error, 1)
	go func() {
		s.loggers.Infof("Listening on %s", addr)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	s.loggers.Info("Shutting down")
	// Streams never end on their own, so they are closed before waiting for requests to finish.
	_ = s.hub.Close()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Close closes the hub and the database.
func (s *Server) Close() error {
	_ = s.hub.Close()
	return s.db.Close()
}

func (s *Server) resolveNamespace(namespace string) (subsystems.Backend, bool) {
	if namespace == "" {
		return nil, false
	}
	return s.db.WithNamespace(namespace), true
}

func (s *Server) getStatus(w http.ResponseWriter, r *http.Request) {
	channels := s.hub.Channels()
	sort.Strings(channels)

	jw := jwriter.NewWriter()
	obj := jw.Object()
	obj.Name("version").String(syncstore.Version)
	arr := obj.Name("channels").Array()
	for _, c := range channels {
		arr.String(c)
	}
	arr.End()
	obj.End()

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(jw.Bytes())
}

func requireAuthKey(key string) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if subtle.ConstantTimeCompare([]byte(r.Header.Get("Authorization")), []byte(key)) != 1 {
				w.WriteHeader(http.StatusUnauthorized)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
