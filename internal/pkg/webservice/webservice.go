/*
webservice.go Read-only HTTP view over saved checkpoints: component counts,
balance, stage history. Intended for a browser or dashboard next to a long
interactive session; nothing here mutates state.
*/

package webservice

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"github.com/owalsh/gridstage/internal/pkg/balance"
	"github.com/owalsh/gridstage/internal/pkg/catalog"
	"github.com/owalsh/gridstage/internal/pkg/checkpoint"
	"github.com/owalsh/gridstage/internal/pkg/config"
	"github.com/owalsh/gridstage/internal/pkg/stage"
)

// Server exposes checkpoints over HTTP.
type Server struct {
	store  checkpoint.Store
	cfg    config.Config
	logger *zap.Logger
}

// New returns a server reading from the configured checkpoint store.
func New(cfg config.Config, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Server{
		store:  checkpoint.NewStore(cfg.CheckpointDir),
		cfg:    cfg,
		logger: logger.Named("webservice"),
	}
}

// Router builds the read-only route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/checkpoints", s.listHandler).Methods("GET")
	r.HandleFunc("/checkpoints/{name}/summary", s.summaryHandler).Methods("GET")
	r.HandleFunc("/checkpoints/{name}/balance", s.balanceHandler).Methods("GET")
	r.HandleFunc("/checkpoints/{name}/stages", s.stagesHandler).Methods("GET")
	r.HandleFunc("/checkpoints/{name}/components", s.componentsHandler).Methods("GET")
	return r
}

// ListenAndServe blocks serving the inspection API on addr.
func (s *Server) ListenAndServe(addr string) error {
	s.logger.Info("serving checkpoint inspection", zap.String("addr", addr))
	return http.ListenAndServe(addr, s.Router())
}

func (s *Server) listHandler(w http.ResponseWriter, r *http.Request) {
	names, err := s.store.List()
	if err != nil {
		s.fail(w, err)
		return
	}
	if names == nil {
		names = []string{}
	}
	s.respond(w, map[string]interface{}{"checkpoints": names})
}

type summaryResponse struct {
	Name   string               `json:"name"`
	Rows   int                  `json:"rows"`
	Stages int                  `json:"stages"`
	ByKind map[catalog.Kind]int `json:"by_kind"`
}

func (s *Server) summaryHandler(w http.ResponseWriter, r *http.Request) {
	rows, log, ok := s.load(w, r)
	if !ok {
		return
	}
	byKind := make(map[catalog.Kind]int)
	for _, row := range rows {
		byKind[row.Kind]++
	}
	s.respond(w, summaryResponse{
		Name:   mux.Vars(r)["name"],
		Rows:   len(rows),
		Stages: log.Len(),
		ByKind: byKind,
	})
}

type balanceResponse struct {
	Snapshot       balance.Snapshot       `json:"snapshot"`
	Classification balance.Classification `json:"classification"`
	Warnings       []string               `json:"warnings"`
}

func (s *Server) balanceHandler(w http.ResponseWriter, r *http.Request) {
	rows, _, ok := s.load(w, r)
	if !ok {
		return
	}
	snap := balance.Evaluate(rows, s.cfg.TrackedCarrier, s.cfg.ReverseLinks)
	t := s.cfg.Thresholds()
	warnings := snap.Warnings(t)
	if warnings == nil {
		warnings = []string{}
	}
	s.respond(w, balanceResponse{
		Snapshot:       snap,
		Classification: snap.Classify(t),
		Warnings:       warnings,
	})
}

func (s *Server) stagesHandler(w http.ResponseWriter, r *http.Request) {
	_, log, ok := s.load(w, r)
	if !ok {
		return
	}
	s.respond(w, map[string]interface{}{"stages": log.History()})
}

func (s *Server) componentsHandler(w http.ResponseWriter, r *http.Request) {
	rows, _, ok := s.load(w, r)
	if !ok {
		return
	}
	s.respond(w, map[string]interface{}{"components": rows})
}

func (s *Server) load(w http.ResponseWriter, r *http.Request) ([]catalog.Row, *stage.Log, bool) {
	name := mux.Vars(r)["name"]
	rows, log, err := s.store.Load(name)
	if err != nil {
		if errors.Is(err, checkpoint.ErrNotFound) {
			http.Error(w, "checkpoint not found", http.StatusNotFound)
		} else {
			s.fail(w, err)
		}
		return nil, nil, false
	}
	return rows, log, true
}

func (s *Server) respond(w http.ResponseWriter, payload interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=UTF-8")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("encode response", zap.Error(err))
	}
}

func (s *Server) fail(w http.ResponseWriter, err error) {
	s.logger.Error("request failed", zap.Error(err))
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
