/*
balance.go Supply/demand capacity balance over an instantiated row set.
The evaluator never raises for data-content reasons; absence of demand or an
out-of-band ratio is reported, not enforced.
*/

package balance

import (
	"fmt"
	"strings"

	"github.com/owalsh/gridstage/internal/pkg/catalog"
)

// Classification is the advisory band a balance ratio falls in.
type Classification string

const (
	Undefined    Classification = "undefined"
	Insufficient Classification = "insufficient"
	Balanced     Classification = "balanced"
	Excessive    Classification = "excessive"
)

// Thresholds are the advisory ratio bands. They inform; they never block.
type Thresholds struct {
	DeficitSevere float64
	Deficit       float64
	Excess        float64
	ExcessSevere  float64
}

// DefaultThresholds returns the stock advisory bands. These are heuristics
// carried over from operational experience, not physical law; override them
// through configuration when a study calls for different bands.
func DefaultThresholds() Thresholds {
	return Thresholds{
		DeficitSevere: 0.5,
		Deficit:       0.8,
		Excess:        1.5,
		ExcessSevere:  2.5,
	}
}

// Snapshot is the derived balance state of an instantiated row set. It is
// recomputed on demand and never persisted independently.
type Snapshot struct {
	Supply           float64 `json:"supply_mw"`
	SupplyGenerators float64 `json:"supply_generators_mw"`
	SupplyLinks      float64 `json:"supply_links_mw"`
	Demand           float64 `json:"demand_mw"`
	Ratio            float64 `json:"ratio"`
	Defined          bool    `json:"defined"`
}

// Evaluate sums signed capacity over the row set for one tracked carrier.
// Supply counts generators with positive sign plus conversion links whose
// output bus corresponds to the tracked carrier. Demand counts generators with
// negative sign on the tracked carrier, as magnitude. Links discharge into
// bus1 unless the model runs with reversed links.
func Evaluate(rows []catalog.Row, trackedCarrier string, reverseLinks bool) Snapshot {
	var s Snapshot
	for _, r := range rows {
		switch r.Kind {
		case catalog.Generator:
			if r.Sign > 0 {
				s.SupplyGenerators += r.Capacity
			} else if r.Carrier == trackedCarrier {
				s.Demand += r.Capacity
			}
		case catalog.Link:
			out := r.Bus1
			if reverseLinks {
				out = r.Bus0
			}
			if strings.Contains(out, trackedCarrier) {
				s.SupplyLinks += r.Capacity
			}
		}
	}
	s.Supply = s.SupplyGenerators + s.SupplyLinks
	if s.Demand > 0 {
		s.Ratio = s.Supply / s.Demand
		s.Defined = true
	}
	return s
}

// Classify places the snapshot in an advisory band.
func (s Snapshot) Classify(t Thresholds) Classification {
	if !s.Defined {
		return Undefined
	}
	switch {
	case s.Ratio < t.Deficit:
		return Insufficient
	case s.Ratio > t.Excess:
		return Excessive
	default:
		return Balanced
	}
}

// Warnings reports the advisory findings for the snapshot. An empty slice
// means the row set is inside the advisory band.
func (s Snapshot) Warnings(t Thresholds) []string {
	var w []string
	if !s.Defined {
		w = append(w, "no demand present, balance ratio undefined")
		return w
	}
	switch {
	case s.Ratio < t.DeficitSevere:
		w = append(w, fmt.Sprintf("severe supply deficit: only %.1f%% of demand can be met", s.Ratio*100))
	case s.Ratio < t.Deficit:
		w = append(w, fmt.Sprintf("supply deficit: %.1f%% of demand capacity available", s.Ratio*100))
	case s.Ratio > t.ExcessSevere:
		w = append(w, fmt.Sprintf("excess supply: %.1f%% of demand capacity, likely inefficient", s.Ratio*100))
	case s.Ratio > t.Excess:
		w = append(w, fmt.Sprintf("excess supply: %.1f%% of demand capacity", s.Ratio*100))
	}
	return w
}
