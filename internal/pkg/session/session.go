/*
session.go One incremental build session. The session owns the catalog, the
instantiated row set and the stage log; every user-facing operation goes
through it. Single user, single goroutine, strictly additive until an explicit
checkpoint load replaces the history.
*/

package session

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/owalsh/gridstage/internal/pkg/balance"
	"github.com/owalsh/gridstage/internal/pkg/catalog"
	"github.com/owalsh/gridstage/internal/pkg/checkpoint"
	"github.com/owalsh/gridstage/internal/pkg/config"
	"github.com/owalsh/gridstage/internal/pkg/filter"
	"github.com/owalsh/gridstage/internal/pkg/msg"
	"github.com/owalsh/gridstage/internal/pkg/solver"
	"github.com/owalsh/gridstage/internal/pkg/stage"
)

// ErrNotBuilt reports an operation attempted before BuildBase.
var ErrNotBuilt = errors.New("session: build the base model first")

// Backend is the capability the session needs from the external modeling
// library's input side.
type Backend interface {
	LoadCatalog() (catalog.Catalog, error)
}

// Session is one builder session.
type Session struct {
	pid       uuid.UUID
	cfg       config.Config
	backend   Backend
	optimizer solver.Optimizer
	publisher *msg.PubSub
	store     checkpoint.Store
	logger    *zap.Logger

	catalog    catalog.Catalog
	rows       []catalog.Row
	stages     *stage.Log
	lastResult *solver.Result
	built      bool
}

// AddSummary reports the outcome of one component addition.
type AddSummary struct {
	Added   int
	Total   int
	ByKind  map[catalog.Kind]int
	NoMatch bool
}

// New returns a fresh session. Nothing is loaded until BuildBase.
func New(cfg config.Config, backend Backend, optimizer solver.Optimizer, logger *zap.Logger) (*Session, error) {
	if backend == nil {
		return nil, errors.New("session: backend required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	pid, err := uuid.NewRandom()
	if err != nil {
		return nil, err
	}
	return &Session{
		pid:       pid,
		cfg:       cfg,
		backend:   backend,
		optimizer: optimizer,
		publisher: msg.NewPublisher(pid),
		store:     checkpoint.NewStore(cfg.CheckpointDir),
		logger:    logger.Named("session"),
		stages:    stage.NewLog(),
	}, nil
}

// PID is an accessor for the session's process id.
func (s *Session) PID() uuid.UUID {
	return s.pid
}

// Config returns the immutable session configuration.
func (s *Session) Config() config.Config {
	return s.cfg
}

// Subscribe exposes the session's event stream.
func (s *Session) Subscribe(pid uuid.UUID, topic msg.Topic) (<-chan msg.Msg, error) {
	return s.publisher.Subscribe(pid, topic)
}

// Unsubscribe drops a subscriber from the session's event stream.
func (s *Session) Unsubscribe(pid uuid.UUID) {
	s.publisher.Unsubscribe(pid)
}

// Close shuts the event stream down.
func (s *Session) Close() {
	s.publisher.Close()
}

// BuildBase loads the capacity catalog through the backend and resets the
// instantiated row set. Recorded as the first stage of the build history.
func (s *Session) BuildBase() error {
	cat, err := s.backend.LoadCatalog()
	if err != nil {
		return fmt.Errorf("session: load catalog: %w", err)
	}
	s.catalog = cat
	s.rows = nil
	s.lastResult = nil
	s.built = true

	st := s.stages.Record("base_model", "", filter.Filter{}, 0)
	s.publisher.Publish(msg.Stage, st)
	s.logger.Info("base model built",
		zap.Int("catalog_rows", cat.Len()),
		zap.Int("year", s.cfg.Year),
		zap.String("timeseries", s.cfg.Timeseries))
	return nil
}

// AddComponents filters the catalog and appends the matching rows to the
// instantiated set. A kind argument further restricts the subset after
// predicate filtering; re-added component names keep the latest row. A filter
// that matches nothing is advisory, not an error, and is still recorded.
func (s *Session) AddComponents(name string, kind catalog.Kind, f filter.Filter) (AddSummary, error) {
	if !s.built {
		return AddSummary{}, ErrNotBuilt
	}
	if kind != "" && !kind.Valid() {
		return AddSummary{}, fmt.Errorf("session: unknown component kind %q", kind)
	}

	subset := filter.Select(s.catalog, f)
	if kind != "" {
		kept := subset[:0]
		for _, r := range subset {
			if r.Kind == kind {
				kept = append(kept, r)
			}
		}
		subset = kept
	}

	s.rows = dedupeKeepLast(append(s.rows, subset...))

	st := s.stages.Record(name, kind, f, len(subset))
	s.publisher.Publish(msg.Stage, st)

	summary := AddSummary{
		Added:   len(subset),
		Total:   len(s.rows),
		ByKind:  countByKind(s.rows),
		NoMatch: len(subset) == 0,
	}
	if summary.NoMatch {
		s.logger.Warn("no components match the filter", zap.String("stage", name))
	} else {
		s.logger.Info("components added",
			zap.String("stage", name),
			zap.Int("added", summary.Added),
			zap.Int("total", summary.Total))
	}
	return summary, nil
}

// Balance recomputes the supply/demand snapshot for the tracked carrier.
func (s *Session) Balance() balance.Snapshot {
	snap := balance.Evaluate(s.rows, s.cfg.TrackedCarrier, s.cfg.ReverseLinks)
	s.publisher.Publish(msg.Balance, snap)
	return snap
}

// Optimize hands the instantiated row set to the backend solver. An empty
// model is rejected before the solver is invoked. Infeasibility is surfaced
// unmodified with the last balance snapshot attached; there is no retry.
func (s *Session) Optimize(ctx context.Context) (solver.Result, error) {
	if !s.built {
		return solver.Result{}, ErrNotBuilt
	}
	if s.optimizer == nil {
		return solver.Result{}, errors.New("session: no optimizer configured")
	}
	if len(s.rows) == 0 {
		return solver.Result{}, errors.New("session: cannot optimize an empty model")
	}

	result, err := s.optimizer.Optimize(ctx, s.rows)
	if err != nil {
		var inf *solver.InfeasibleError
		if errors.As(err, &inf) {
			s.logger.Error("optimization infeasible",
				zap.Float64("supply_mw", inf.Snapshot.Supply),
				zap.Float64("demand_mw", inf.Snapshot.Demand))
		}
		return solver.Result{}, err
	}

	s.lastResult = &result
	st := s.stages.Record("optimized", "", filter.Filter{}, len(s.rows))
	s.publisher.Publish(msg.Stage, st)
	s.publisher.Publish(msg.Result, result)
	s.logger.Info("optimization succeeded",
		zap.String("status", result.Status),
		zap.Float64("objective", result.Objective))
	return result, nil
}

// SaveCheckpoint persists the instantiated rows and stage log under name.
func (s *Session) SaveCheckpoint(name string, overwrite bool) error {
	if !s.built {
		return ErrNotBuilt
	}
	if err := s.store.Save(name, s.rows, s.stages, overwrite); err != nil {
		return err
	}
	s.logger.Info("checkpoint saved", zap.String("name", name))
	return nil
}

// LoadCheckpoint replaces the session's rows and stage log with a saved
// snapshot. The catalog is reloaded so subsequent additions keep working.
func (s *Session) LoadCheckpoint(name string) error {
	rows, log, err := s.store.Load(name)
	if err != nil {
		return err
	}
	if !s.built {
		if err := s.BuildBase(); err != nil {
			return err
		}
	}
	s.rows = rows
	s.stages = log
	s.lastResult = nil
	s.logger.Info("checkpoint loaded",
		zap.String("name", name),
		zap.Int("rows", len(rows)),
		zap.Int("stages", log.Len()))
	return nil
}

// Checkpoints lists the names present in the session's checkpoint store.
func (s *Session) Checkpoints() ([]string, error) {
	return s.store.List()
}

// History returns the recorded build stages in order.
func (s *Session) History() []stage.Stage {
	return s.stages.History()
}

// Rows returns a copy of the instantiated row set.
func (s *Session) Rows() []catalog.Row {
	return append([]catalog.Row(nil), s.rows...)
}

// Catalog returns the loaded capacity catalog.
func (s *Session) Catalog() catalog.Catalog {
	return s.catalog
}

// LastResult returns the most recent optimization result, if any.
func (s *Session) LastResult() (solver.Result, bool) {
	if s.lastResult == nil {
		return solver.Result{}, false
	}
	return *s.lastResult, true
}

// Counts tallies the instantiated rows by component kind.
func (s *Session) Counts() map[catalog.Kind]int {
	return countByKind(s.rows)
}

func countByKind(rows []catalog.Row) map[catalog.Kind]int {
	out := make(map[catalog.Kind]int)
	for _, r := range rows {
		out[r.Kind]++
	}
	return out
}

// dedupeKeepLast keeps the latest row for each component name, preserving
// first-seen order.
func dedupeKeepLast(rows []catalog.Row) []catalog.Row {
	latest := make(map[string]catalog.Row, len(rows))
	order := make([]string, 0, len(rows))
	for _, r := range rows {
		if _, seen := latest[r.Name]; !seen {
			order = append(order, r.Name)
		}
		latest[r.Name] = r
	}
	out := make([]catalog.Row, 0, len(order))
	for _, name := range order {
		out = append(out, latest[name])
	}
	return out
}
