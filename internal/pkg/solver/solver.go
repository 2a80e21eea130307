// Package solver defines the capability interface the builder expects from an
// optimization backend. The builder never depends on a backend's internal
// structure; it hands over the instantiated row set and reads back a result.
package solver

import (
	"context"
	"fmt"

	"github.com/owalsh/gridstage/internal/pkg/balance"
	"github.com/owalsh/gridstage/internal/pkg/catalog"
)

// Result is the outcome of one optimization run.
type Result struct {
	Status    string             `json:"status"`
	Objective float64            `json:"objective"`
	Dispatch  map[string]float64 `json:"dispatch_mw"` // technology -> dispatched MW
	Snapshot  balance.Snapshot   `json:"snapshot"`
}

// Optimizer runs the external solver against an instantiated row set.
// Cancellation and timeout policy belong to the backend integration.
type Optimizer interface {
	Optimize(ctx context.Context, rows []catalog.Row) (Result, error)
}

// InfeasibleError reports that the solver found no feasible solution. The last
// known balance snapshot is attached for diagnosis; the run is not retried.
type InfeasibleError struct {
	Reason   string
	Snapshot balance.Snapshot
}

func (e *InfeasibleError) Error() string {
	return fmt.Sprintf("optimization infeasible: %s (supply %.1f MW, demand %.1f MW)",
		e.Reason, e.Snapshot.Supply, e.Snapshot.Demand)
}
