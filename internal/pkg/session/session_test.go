package session

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gotest.tools/v3/assert"

	"github.com/owalsh/gridstage/internal/pkg/balance"
	"github.com/owalsh/gridstage/internal/pkg/catalog"
	"github.com/owalsh/gridstage/internal/pkg/checkpoint"
	"github.com/owalsh/gridstage/internal/pkg/config"
	"github.com/owalsh/gridstage/internal/pkg/filter"
	"github.com/owalsh/gridstage/internal/pkg/msg"
	"github.com/owalsh/gridstage/internal/pkg/solver"
	"github.com/owalsh/gridstage/internal/pkg/solver/virtualsolver"
)

type memBackend struct {
	rows []catalog.Row
}

func (b memBackend) LoadCatalog() (catalog.Catalog, error) {
	return catalog.New(b.rows)
}

func testBackend() memBackend {
	return memBackend{rows: []catalog.Row{
		{Name: "PL wind onshore", Technology: "wind onshore", Carrier: "electricity", Area: "PL", Kind: catalog.Generator, Sign: 1, Bus0: "PL electricity", Capacity: 9500, MarginalCost: 2, BuildYear: 2018},
		{Name: "PL wind offshore", Technology: "wind offshore", Carrier: "electricity", Area: "PL", Kind: catalog.Generator, Sign: 1, Bus0: "PL electricity", Capacity: 1200, MarginalCost: 3, BuildYear: 2027},
		{Name: "PL solar PV ground", Technology: "solar PV ground", Carrier: "electricity", Area: "PL", Kind: catalog.Generator, Sign: 1, Bus0: "PL electricity", Capacity: 5600, MarginalCost: 1, BuildYear: 2021},
		{Name: "PL natural gas power CCGT", Technology: "natural gas power CCGT", Carrier: "natural gas", Area: "PL", Kind: catalog.Link, Bus0: "PL electricity", Bus1: "PL natural gas", Capacity: 4100, MarginalCost: 160, BuildYear: 2015},
		{Name: "PL electricity final use", Technology: "electricity final use", Carrier: "electricity", Area: "PL", Kind: catalog.Generator, Sign: -1, Bus0: "PL electricity", Capacity: 15000, BuildYear: 2020},
		{Name: "PL battery large storage", Technology: "battery large storage", Carrier: "electricity", Area: "PL", Kind: catalog.Store, Bus0: "PL battery", Capacity: 2400, BuildYear: 2029},
	}}
}

func newTestSession(t *testing.T) *Session {
	t.Helper()
	cfg := config.Default()
	cfg.CheckpointDir = t.TempDir()
	s, err := New(cfg, testBackend(), virtualsolver.New(cfg.TrackedCarrier, cfg.ReverseLinks, nil), nil)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(s.Close)
	return s
}

func TestAddBeforeBuild(t *testing.T) {
	s := newTestSession(t)
	_, err := s.AddComponents("wind", "", filter.Filter{Technology: []string{"wind"}})
	assert.Assert(t, errors.Is(err, ErrNotBuilt))
}

func TestBuildBaseRecordsStage(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())

	hist := s.History()
	assert.Equal(t, len(hist), 1)
	assert.Equal(t, hist[0].Name, "base_model")
	assert.Equal(t, len(s.Rows()), 0)
	assert.Equal(t, s.Catalog().Len(), 6)
}

func TestAddComponents(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())

	sum, err := s.AddComponents("wind", "", filter.Filter{Technology: []string{"wind"}})
	assert.NilError(t, err)
	assert.Equal(t, sum.Added, 2)
	assert.Equal(t, sum.Total, 2)
	assert.Assert(t, !sum.NoMatch)
	assert.Equal(t, len(s.History()), 2)
}

func TestAddKindRestriction(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())

	sum, err := s.AddComponents("gas", catalog.Link, filter.Filter{Technology: []string{"natural gas"}})
	assert.NilError(t, err)
	assert.Equal(t, sum.Added, 1)
	assert.Equal(t, sum.ByKind[catalog.Link], 1)
}

func TestAddUnknownKind(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())

	_, err := s.AddComponents("bad", catalog.Kind("Reactor"), filter.Filter{Technology: []string{"wind"}})
	assert.Assert(t, err != nil)
}

func TestAddNoMatchIsRecorded(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())

	sum, err := s.AddComponents("nothing", "", filter.Filter{Technology: []string{"fusion"}})
	assert.NilError(t, err)
	assert.Assert(t, sum.NoMatch)
	assert.Equal(t, len(s.History()), 2)
	assert.Equal(t, s.History()[1].Count, 0)
}

func TestReAddKeepsLatestRow(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())

	f := filter.Filter{Technology: []string{"wind onshore"}}
	_, err := s.AddComponents("wind", "", f)
	assert.NilError(t, err)
	sum, err := s.AddComponents("wind again", "", f)
	assert.NilError(t, err)

	// The second pass re-selects the same component; the set does not grow.
	assert.Equal(t, sum.Total, 1)
	assert.Equal(t, len(s.History()), 3)
}

func TestBalanceSnapshot(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())

	_, err := s.AddComponents("wind", "", filter.Filter{Technology: []string{"wind onshore"}})
	assert.NilError(t, err)
	_, err = s.AddComponents("demand", "", filter.Filter{Technology: []string{"final use"}})
	assert.NilError(t, err)

	snap := s.Balance()
	assert.Assert(t, snap.Defined)
	assert.Equal(t, snap.Supply, 9500.0)
	assert.Equal(t, snap.Demand, 15000.0)
	assert.Equal(t, snap.Classify(s.Config().Thresholds()), balance.Insufficient)
}

func TestOptimizeEmptyModel(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())

	_, err := s.Optimize(context.Background())
	assert.Assert(t, err != nil)
}

func TestOptimizeInfeasible(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())

	_, err := s.AddComponents("wind", "", filter.Filter{Technology: []string{"wind onshore"}})
	assert.NilError(t, err)
	_, err = s.AddComponents("demand", "", filter.Filter{Technology: []string{"final use"}})
	assert.NilError(t, err)

	_, err = s.Optimize(context.Background())
	var inf *solver.InfeasibleError
	assert.Assert(t, errors.As(err, &inf))
	assert.Equal(t, inf.Snapshot.Demand, 15000.0)

	_, ok := s.LastResult()
	assert.Assert(t, !ok)
}

func TestOptimizeRecordsResult(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())

	_, err := s.AddComponents("supply", "", filter.Filter{Technology: []string{"wind", "solar", "natural gas"}})
	assert.NilError(t, err)
	_, err = s.AddComponents("demand", "", filter.Filter{Technology: []string{"final use"}})
	assert.NilError(t, err)

	result, err := s.Optimize(context.Background())
	assert.NilError(t, err)
	assert.Equal(t, result.Status, "ok")

	got, ok := s.LastResult()
	assert.Assert(t, ok)
	assert.Equal(t, got.Objective, result.Objective)

	last, ok := s.stages.Last()
	assert.Assert(t, ok)
	assert.Equal(t, last.Name, "optimized")
}

func TestCheckpointRoundTrip(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())

	_, err := s.AddComponents("wind", "", filter.Filter{Technology: []string{"wind"}})
	assert.NilError(t, err)
	assert.NilError(t, s.SaveCheckpoint("run_a", false))

	_, err = s.AddComponents("solar", "", filter.Filter{Technology: []string{"solar"}})
	assert.NilError(t, err)
	assert.Equal(t, len(s.Rows()), 3)

	assert.NilError(t, s.LoadCheckpoint("run_a"))
	assert.Equal(t, len(s.Rows()), 2)
	assert.Equal(t, len(s.History()), 2)

	names, err := s.Checkpoints()
	assert.NilError(t, err)
	assert.DeepEqual(t, names, []string{"run_a"})
}

func TestSeqNotReusedAfterLoad(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())

	_, err := s.AddComponents("wind", "", filter.Filter{Technology: []string{"wind"}})
	assert.NilError(t, err)
	assert.NilError(t, s.SaveCheckpoint("run_a", false))
	assert.NilError(t, s.LoadCheckpoint("run_a"))

	_, err = s.AddComponents("solar", "", filter.Filter{Technology: []string{"solar"}})
	assert.NilError(t, err)

	hist := s.History()
	assert.Equal(t, hist[len(hist)-1].Seq, 2)
}

func TestSaveConflictSurfaces(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())
	assert.NilError(t, s.SaveCheckpoint("run_a", false))

	err := s.SaveCheckpoint("run_a", false)
	assert.Assert(t, errors.Is(err, checkpoint.ErrConflict))

	assert.NilError(t, s.SaveCheckpoint("run_a", true))
}

func TestLoadCheckpointNotFound(t *testing.T) {
	s := newTestSession(t)
	err := s.LoadCheckpoint("missing")
	assert.Assert(t, errors.Is(err, checkpoint.ErrNotFound))
}

func TestLoadCheckpointBuildsBaseFirst(t *testing.T) {
	s := newTestSession(t)
	assert.NilError(t, s.BuildBase())
	_, err := s.AddComponents("wind", "", filter.Filter{Technology: []string{"wind"}})
	assert.NilError(t, err)
	assert.NilError(t, s.SaveCheckpoint("run_a", false))

	// A brand-new session can load straight into the checkpoint.
	fresh := newTestSession(t)
	fresh.cfg.CheckpointDir = s.Config().CheckpointDir
	fresh.store = checkpoint.NewStore(s.Config().CheckpointDir)
	assert.NilError(t, fresh.LoadCheckpoint("run_a"))
	assert.Equal(t, len(fresh.Rows()), 2)
	assert.Equal(t, fresh.Catalog().Len(), 6)
}

func TestStageEventsPublished(t *testing.T) {
	s := newTestSession(t)
	sub, _ := uuid.NewRandom()
	ch, err := s.Subscribe(sub, msg.Stage)
	assert.NilError(t, err)
	defer s.Unsubscribe(sub)

	assert.NilError(t, s.BuildBase())
	m := <-ch
	assert.Equal(t, m.Topic(), msg.Stage)
}
