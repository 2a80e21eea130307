/*
virtualsolver.go Simulated optimization backend. Dispatches supply against peak
demand in merit order over marginal cost, single snapshot. Stands in for the
external solver so build sessions can be exercised end to end without one.
*/

package virtualsolver

import (
	"context"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/owalsh/gridstage/internal/pkg/balance"
	"github.com/owalsh/gridstage/internal/pkg/catalog"
	"github.com/owalsh/gridstage/internal/pkg/solver"
)

// VirtualSolver is a merit-order dispatch stand-in for the real backend.
type VirtualSolver struct {
	trackedCarrier string
	reverseLinks   bool
	logger         *zap.Logger
}

// New returns an initialized VirtualSolver.
func New(trackedCarrier string, reverseLinks bool, logger *zap.Logger) *VirtualSolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &VirtualSolver{
		trackedCarrier: trackedCarrier,
		reverseLinks:   reverseLinks,
		logger:         logger.Named("virtualsolver"),
	}
}

// Optimize dispatches the cheapest supply first until demand is covered.
// Supply short of demand is infeasible; the balance snapshot rides along on
// the error for diagnosis.
func (v *VirtualSolver) Optimize(ctx context.Context, rows []catalog.Row) (solver.Result, error) {
	if err := ctx.Err(); err != nil {
		return solver.Result{}, err
	}

	snap := balance.Evaluate(rows, v.trackedCarrier, v.reverseLinks)
	if snap.Supply < snap.Demand {
		return solver.Result{}, &solver.InfeasibleError{
			Reason:   "supply capacity cannot cover demand",
			Snapshot: snap,
		}
	}

	supply := supplyRows(rows, v.trackedCarrier, v.reverseLinks)
	sort.SliceStable(supply, func(i, j int) bool {
		return supply[i].MarginalCost < supply[j].MarginalCost
	})

	remaining := snap.Demand
	dispatch := make(map[string]float64)
	objective := 0.0
	for _, r := range supply {
		if remaining <= 0 {
			break
		}
		mw := r.Capacity
		if mw > remaining {
			mw = remaining
		}
		dispatch[r.Technology] += mw
		objective += mw * r.MarginalCost
		remaining -= mw
	}

	v.logger.Info("dispatch complete",
		zap.Float64("demand_mw", snap.Demand),
		zap.Float64("objective", objective),
		zap.Int("units", len(dispatch)))

	return solver.Result{
		Status:    "ok",
		Objective: objective,
		Dispatch:  dispatch,
		Snapshot:  snap,
	}, nil
}

// supplyRows mirrors the balance evaluator's definition of supply.
func supplyRows(rows []catalog.Row, trackedCarrier string, reverseLinks bool) []catalog.Row {
	var out []catalog.Row
	for _, r := range rows {
		switch r.Kind {
		case catalog.Generator:
			if r.Sign > 0 {
				out = append(out, r)
			}
		case catalog.Link:
			outBus := r.Bus1
			if reverseLinks {
				outBus = r.Bus0
			}
			if strings.Contains(outBus, trackedCarrier) {
				out = append(out, r)
			}
		}
	}
	return out
}
