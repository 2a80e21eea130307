package virtualsolver

import (
	"context"
	"errors"
	"testing"

	"gotest.tools/v3/assert"

	"github.com/owalsh/gridstage/internal/pkg/catalog"
	"github.com/owalsh/gridstage/internal/pkg/solver"
)

func testRows() []catalog.Row {
	return []catalog.Row{
		{Name: "solar", Technology: "solar PV ground", Carrier: "electricity", Kind: catalog.Generator, Sign: 1, Bus0: "PL electricity", Capacity: 600, MarginalCost: 1},
		{Name: "wind", Technology: "wind onshore", Carrier: "electricity", Kind: catalog.Generator, Sign: 1, Bus0: "PL electricity", Capacity: 500, MarginalCost: 2},
		{Name: "ccgt", Technology: "natural gas power CCGT", Carrier: "natural gas", Kind: catalog.Link, Bus0: "PL electricity", Bus1: "PL natural gas", Capacity: 400, MarginalCost: 160},
		{Name: "load", Technology: "electricity final use", Carrier: "electricity", Kind: catalog.Generator, Sign: -1, Bus0: "PL electricity", Capacity: 1000},
	}
}

func TestMeritOrderDispatch(t *testing.T) {
	v := New("electricity", true, nil)
	result, err := v.Optimize(context.Background(), testRows())
	assert.NilError(t, err)
	assert.Equal(t, result.Status, "ok")

	// Cheapest units run first; the gas link covers nothing since wind and
	// solar already meet demand.
	assert.Equal(t, result.Dispatch["solar PV ground"], 600.0)
	assert.Equal(t, result.Dispatch["wind onshore"], 400.0)
	assert.Equal(t, result.Dispatch["natural gas power CCGT"], 0.0)
	assert.Equal(t, result.Objective, 600*1+400*2.0)
}

func TestPartialDispatchOfMarginalUnit(t *testing.T) {
	rows := testRows()
	rows[3].Capacity = 1200 // demand now needs part of the gas link
	v := New("electricity", true, nil)
	result, err := v.Optimize(context.Background(), rows)
	assert.NilError(t, err)
	assert.Equal(t, result.Dispatch["natural gas power CCGT"], 100.0)
}

func TestInfeasibleCarriesSnapshot(t *testing.T) {
	rows := testRows()
	rows[3].Capacity = 25000
	v := New("electricity", true, nil)
	_, err := v.Optimize(context.Background(), rows)

	var inf *solver.InfeasibleError
	assert.Assert(t, errors.As(err, &inf))
	assert.Equal(t, inf.Snapshot.Demand, 25000.0)
	assert.Equal(t, inf.Snapshot.Supply, 1500.0)
}

func TestCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New("electricity", true, nil).Optimize(ctx, testRows())
	assert.Assert(t, err != nil)
}
