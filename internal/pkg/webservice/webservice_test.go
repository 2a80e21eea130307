package webservice

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/owalsh/gridstage/internal/pkg/catalog"
	"github.com/owalsh/gridstage/internal/pkg/checkpoint"
	"github.com/owalsh/gridstage/internal/pkg/config"
	"github.com/owalsh/gridstage/internal/pkg/filter"
	"github.com/owalsh/gridstage/internal/pkg/stage"
)

func testServer(t *testing.T) *Server {
	t.Helper()
	cfg := config.Default()
	cfg.CheckpointDir = t.TempDir()

	rows := []catalog.Row{
		{Name: "PL wind onshore", Technology: "wind onshore", Carrier: "electricity", Area: "PL", Kind: catalog.Generator, Sign: 1, Bus0: "PL electricity", Capacity: 9500, BuildYear: 2018},
		{Name: "PL electricity final use", Technology: "electricity final use", Carrier: "electricity", Area: "PL", Kind: catalog.Generator, Sign: -1, Bus0: "PL electricity", Capacity: 25000, BuildYear: 2020},
	}
	log := stage.NewLog()
	log.Record("base_model", "", filter.Filter{}, 0)
	log.Record("wind", catalog.Generator, filter.Filter{Technology: []string{"wind"}}, 1)

	store := checkpoint.NewStore(cfg.CheckpointDir)
	if err := store.Save("run_a", rows, log, false); err != nil {
		t.Fatal(err)
	}
	return New(cfg, nil)
}

func get(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	r := httptest.NewRequest("GET", "http://example.com"+path, nil)
	s.Router().ServeHTTP(w, r)
	return w
}

func TestListCheckpoints(t *testing.T) {
	s := testServer(t)
	w := get(t, s, "/checkpoints")
	assert.Equal(t, w.Code, http.StatusOK)
	assert.Equal(t, w.Header().Get("Content-Type"), "application/json; charset=UTF-8")

	var body struct {
		Checkpoints []string `json:"checkpoints"`
	}
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.DeepEqual(t, body.Checkpoints, []string{"run_a"})
}

func TestSummary(t *testing.T) {
	s := testServer(t)
	w := get(t, s, "/checkpoints/run_a/summary")
	assert.Equal(t, w.Code, http.StatusOK)

	var body summaryResponse
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, body.Name, "run_a")
	assert.Equal(t, body.Rows, 2)
	assert.Equal(t, body.Stages, 2)
	assert.Equal(t, body.ByKind[catalog.Generator], 2)
}

func TestBalance(t *testing.T) {
	s := testServer(t)
	w := get(t, s, "/checkpoints/run_a/balance")
	assert.Equal(t, w.Code, http.StatusOK)

	var body balanceResponse
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, body.Snapshot.Supply, 9500.0)
	assert.Equal(t, body.Snapshot.Demand, 25000.0)
	assert.Equal(t, string(body.Classification), "insufficient")
	assert.Assert(t, len(body.Warnings) > 0)
}

func TestStages(t *testing.T) {
	s := testServer(t)
	w := get(t, s, "/checkpoints/run_a/stages")
	assert.Equal(t, w.Code, http.StatusOK)

	var body struct {
		Stages []stage.Stage `json:"stages"`
	}
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, len(body.Stages), 2)
	assert.Equal(t, body.Stages[1].Name, "wind")
}

func TestComponents(t *testing.T) {
	s := testServer(t)
	w := get(t, s, "/checkpoints/run_a/components")
	assert.Equal(t, w.Code, http.StatusOK)

	var body struct {
		Components []catalog.Row `json:"components"`
	}
	assert.NilError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, len(body.Components), 2)
}

func TestCheckpointNotFound(t *testing.T) {
	s := testServer(t)
	w := get(t, s, "/checkpoints/missing/summary")
	assert.Equal(t, w.Code, http.StatusNotFound)
}
