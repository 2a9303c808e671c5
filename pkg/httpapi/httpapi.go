package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/nergy-se/gtimonitor/pkg/api/v1/types"
	"github.com/nergy-se/gtimonitor/pkg/version"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

type Status struct {
	Version  version.Info                    `json:"version"`
	Profile  string                          `json:"profile"`
	Pending  map[string]map[types.Source]int `json:"pending"`
	Alarms   []string                        `json:"alarms"`
	NextRuns map[string]time.Time            `json:"nextRuns"`
}

// Server exposes health, status and prometheus metrics.
type Server struct {
	status    func() Status
	server    *http.Server
	accessLog *io.PipeWriter
}

func New(listen string, status func() Status) *Server {
	s := &Server{
		status:    status,
		accessLog: logrus.StandardLogger().WriterLevel(logrus.DebugLevel),
	}
	s.server = &http.Server{
		Addr:              listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	return s
}

func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods("GET")
	r.HandleFunc("/status", s.handleStatus).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	return handlers.RecoveryHandler()(handlers.CombinedLoggingHandler(s.accessLog, r))
}

func (s *Server) health(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	_, _ = w.Write([]byte("ok\n"))
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	err := json.NewEncoder(w).Encode(s.status())
	if err != nil {
		logrus.Errorf("httpapi: error encoding status: %s", err)
	}
}

// Start serves until ctx is cancelled.
func (s *Server) Start(ctx context.Context, wg *sync.WaitGroup) {
	wg.Add(2)
	go func() {
		defer wg.Done()
		logrus.Infof("httpapi: listening on %s", s.server.Addr)
		err := s.server.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logrus.Errorf("httpapi: %s", err)
		}
	}()
	go func() {
		defer wg.Done()
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		err := s.server.Shutdown(shutdownCtx)
		if err != nil {
			logrus.Errorf("httpapi: shutdown: %s", err)
		}
		s.accessLog.Close()
	}()
}
