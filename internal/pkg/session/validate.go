package session

import (
	"fmt"
	"math"

	"github.com/owalsh/gridstage/internal/pkg/catalog"
)

// Validation types.
const (
	ValidateStructure    = "structure"
	ValidateBalance      = "balance"
	ValidateConnectivity = "connectivity"
	ValidateFeasibility  = "feasibility"
)

// ValidationResult is the advisory outcome of one validation type.
type ValidationResult struct {
	Status   string   `json:"status"` // ok, warning, error
	Warnings []string `json:"warnings,omitempty"`
}

// Validate runs the requested validation types against the current state.
// A nil list runs structure and balance. Findings inform; they never block
// further action.
func (s *Session) Validate(types []string) map[string]ValidationResult {
	if types == nil {
		types = []string{ValidateStructure, ValidateBalance}
	}
	results := make(map[string]ValidationResult, len(types))
	for _, t := range types {
		switch t {
		case ValidateStructure:
			results[t] = s.validateStructure()
		case ValidateBalance:
			results[t] = s.validateBalance()
		case ValidateConnectivity:
			results[t] = s.validateConnectivity()
		case ValidateFeasibility:
			results[t] = s.validateFeasibility()
		default:
			results[t] = ValidationResult{
				Status:   "error",
				Warnings: []string{fmt.Sprintf("unknown validation type %q", t)},
			}
		}
	}
	return results
}

func (s *Session) validateStructure() ValidationResult {
	r := ValidationResult{Status: "ok"}
	if !s.built {
		return ValidationResult{Status: "error", Warnings: []string{"base model not built"}}
	}
	if s.catalog.Len() == 0 {
		r.Status = "error"
		r.Warnings = append(r.Warnings, "catalog is empty")
	}
	if len(s.rows) == 0 {
		r.Status = "warning"
		r.Warnings = append(r.Warnings, "no components instantiated")
	}
	return r
}

func (s *Session) validateBalance() ValidationResult {
	r := ValidationResult{Status: "ok"}
	if len(s.rows) == 0 {
		r.Warnings = append(r.Warnings, "no components to balance")
		return r
	}
	snap := s.Balance()
	warnings := snap.Warnings(s.cfg.Thresholds())
	if len(warnings) > 0 {
		r.Status = "warning"
		r.Warnings = warnings
	}
	return r
}

// validateConnectivity counts buses referenced by the row set that no line or
// link connects to anything.
func (s *Session) validateConnectivity() ValidationResult {
	r := ValidationResult{Status: "ok"}
	if len(s.rows) == 0 {
		r.Warnings = append(r.Warnings, "no components to check")
		return r
	}

	referenced := make(map[string]bool)
	connected := make(map[string]bool)
	transport := 0
	for _, row := range s.rows {
		for _, bus := range []string{row.Bus0, row.Bus1, row.Bus2} {
			if bus != "" {
				referenced[bus] = true
			}
		}
		if row.Kind == catalog.Line || row.Kind == catalog.Link {
			transport++
			connected[row.Bus0] = true
			connected[row.Bus1] = true
			if row.Bus2 != "" {
				connected[row.Bus2] = true
			}
		}
	}

	if transport == 0 {
		r.Status = "warning"
		r.Warnings = append(r.Warnings, "no transmission lines or links instantiated")
	}
	isolated := 0
	for bus := range referenced {
		if !connected[bus] {
			isolated++
		}
	}
	if isolated > 0 && transport > 0 {
		r.Status = "warning"
		r.Warnings = append(r.Warnings, fmt.Sprintf("%d buses have no connections", isolated))
	}
	return r
}

func (s *Session) validateFeasibility() ValidationResult {
	r := ValidationResult{Status: "ok"}
	if len(s.rows) == 0 {
		return ValidationResult{Status: "error", Warnings: []string{"cannot check feasibility: no components"}}
	}
	dispatchable := 0.0
	for _, row := range s.rows {
		if math.IsNaN(row.Capacity) {
			r.Status = "error"
			r.Warnings = append(r.Warnings, fmt.Sprintf("component %q has NaN capacity", row.Name))
			continue
		}
		if row.Capacity < 0 {
			r.Status = "error"
			r.Warnings = append(r.Warnings, fmt.Sprintf("component %q has negative capacity", row.Name))
			continue
		}
		if row.Kind == catalog.Generator && row.Sign > 0 {
			dispatchable += row.Capacity
		}
	}
	if dispatchable == 0 && r.Status == "ok" {
		r.Status = "warning"
		r.Warnings = append(r.Warnings, "no generator can produce power")
	}
	return r
}
