/*
catalog.go Static reference table of candidate network components. Rows are loaded
once per session from external storage and never mutated afterwards.
*/

package catalog

import (
	"fmt"
	"math"
	"sort"
)

// Copperplate is the sentinel area for single-area topologies.
const Copperplate = "copperplate"

// Kind enumerates the component archetypes the backend knows how to instantiate.
type Kind string

const (
	Generator Kind = "Generator"
	Link      Kind = "Link"
	Line      Kind = "Line"
	Store     Kind = "Store"
)

// Valid reports whether k names a known component kind.
func (k Kind) Valid() bool {
	switch k {
	case Generator, Link, Line, Store:
		return true
	}
	return false
}

// Row is one candidate component instance.
// Generators carry a meaningful sign (+1 supply, -1 demand) and a single bus.
// Links are conversions between two distinct buses; Bus2 holds an optional
// combined output. Capacity is nominal power in MW, or energy in MWh for stores.
type Row struct {
	Name         string  `json:"name"`
	Technology   string  `json:"technology"`
	Carrier      string  `json:"carrier"`
	Area         string  `json:"area"`
	Kind         Kind    `json:"kind"`
	Sign         int     `json:"sign"`
	Bus0         string  `json:"bus0"`
	Bus1         string  `json:"bus1,omitempty"`
	Bus2         string  `json:"bus2,omitempty"`
	Capacity     float64 `json:"capacity"`
	MarginalCost float64 `json:"marginal_cost"`
	Qualifier    string  `json:"qualifier,omitempty"`
	BuildYear    int     `json:"build_year,omitempty"`
}

// Validate checks the structural invariants of a single row.
func (r Row) Validate() error {
	if r.Name == "" {
		return fmt.Errorf("row %q: empty name", r.Technology)
	}
	if !r.Kind.Valid() {
		return fmt.Errorf("row %q: unknown kind %q", r.Name, r.Kind)
	}
	if r.Capacity < 0 || math.IsNaN(r.Capacity) {
		return fmt.Errorf("row %q: capacity %v out of range", r.Name, r.Capacity)
	}
	switch r.Kind {
	case Generator:
		if r.Sign != 1 && r.Sign != -1 {
			return fmt.Errorf("row %q: generator sign must be +1 or -1, got %d", r.Name, r.Sign)
		}
		if r.Bus1 != "" || r.Bus2 != "" {
			return fmt.Errorf("row %q: generator connects a single bus", r.Name)
		}
	case Link:
		if r.Bus0 == "" || r.Bus1 == "" || r.Bus0 == r.Bus1 {
			return fmt.Errorf("row %q: link requires two distinct buses", r.Name)
		}
	case Line:
		if r.Bus0 == "" || r.Bus1 == "" {
			return fmt.Errorf("row %q: line requires two buses", r.Name)
		}
	}
	return nil
}

// Catalog is the full static table of candidate components.
type Catalog struct {
	rows []Row
}

// New validates the rows and returns a catalog over a private copy of them.
func New(rows []Row) (Catalog, error) {
	cp := make([]Row, len(rows))
	for i, r := range rows {
		if err := r.Validate(); err != nil {
			return Catalog{}, err
		}
		cp[i] = r
	}
	return Catalog{rows: cp}, nil
}

// Rows returns a copy of the catalog rows.
func (c Catalog) Rows() []Row {
	cp := make([]Row, len(c.rows))
	copy(cp, c.rows)
	return cp
}

// Len returns the number of candidate rows.
func (c Catalog) Len() int {
	return len(c.rows)
}

// Technologies returns the sorted set of technology names present in the catalog.
func (c Catalog) Technologies() []string {
	return c.distinct(func(r Row) string { return r.Technology })
}

// Carriers returns the sorted set of carriers present in the catalog.
func (c Catalog) Carriers() []string {
	return c.distinct(func(r Row) string { return r.Carrier })
}

// Areas returns the sorted set of areas present in the catalog.
func (c Catalog) Areas() []string {
	return c.distinct(func(r Row) string { return r.Area })
}

func (c Catalog) distinct(field func(Row) string) []string {
	seen := make(map[string]bool)
	for _, r := range c.rows {
		if v := field(r); v != "" {
			seen[v] = true
		}
	}
	out := make([]string, 0, len(seen))
	for v := range seen {
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
