/*
inspect.go Human-readable reports over the current session state. Reports are
strings; printing and transport are the caller's concern.
*/

package session

import (
	"fmt"
	"sort"
	"strings"

	"github.com/owalsh/gridstage/internal/pkg/catalog"
)

// Inspection aspects.
const (
	AspectSummary      = "summary"
	AspectDetailed     = "detailed"
	AspectBalance      = "balance"
	AspectOptimization = "optimization"
	AspectStages       = "stages"
	AspectAll          = "all"
)

// Inspect renders a report over the current session state.
func (s *Session) Inspect(aspect string) (string, error) {
	if !s.built {
		return "", ErrNotBuilt
	}
	var b reportBuilder
	switch aspect {
	case AspectSummary:
		s.reportSummary(&b)
	case AspectDetailed:
		s.reportDetailed(&b)
	case AspectBalance:
		s.reportBalance(&b)
	case AspectOptimization:
		s.reportOptimization(&b)
	case AspectStages:
		s.reportStages(&b)
	case AspectAll:
		s.reportSummary(&b)
		s.reportDetailed(&b)
		s.reportBalance(&b)
		s.reportOptimization(&b)
		s.reportStages(&b)
	default:
		return "", fmt.Errorf("session: unknown inspection aspect %q", aspect)
	}
	return b.String(), nil
}

func (s *Session) reportSummary(b *reportBuilder) {
	b.section("MODEL SUMMARY")
	counts := s.Counts()
	b.linef("Catalog rows:  %d", s.catalog.Len())
	b.linef("Instantiated:  %d", len(s.rows))
	for _, k := range []catalog.Kind{catalog.Generator, catalog.Link, catalog.Line, catalog.Store} {
		b.linef("  %-11s %d", string(k)+"s:", counts[k])
	}
	b.linef("Stages:        %d", s.stages.Len())
}

func (s *Session) reportDetailed(b *reportBuilder) {
	b.section("DETAILED BREAKDOWN")
	for _, k := range []catalog.Kind{catalog.Generator, catalog.Link, catalog.Line, catalog.Store} {
		rows := rowsOfKind(s.rows, k)
		if len(rows) == 0 {
			continue
		}
		unit := "MW"
		if k == catalog.Store {
			unit = "MWh"
		}
		b.subsection(fmt.Sprintf("%ss by Technology", k))
		for _, line := range groupCapacity(rows, func(r catalog.Row) string { return r.Technology }) {
			b.linef("  %-40s %3d units %12.2f %s", line.key, line.count, line.capacity, unit)
		}
	}
}

func (s *Session) reportBalance(b *reportBuilder) {
	b.section("SUPPLY/DEMAND BALANCE")
	snap := s.Balance()
	b.linef("Total supply capacity:  %12.2f MW", snap.Supply)
	b.linef("  From Generators:      %12.2f MW", snap.SupplyGenerators)
	b.linef("  From Links:           %12.2f MW", snap.SupplyLinks)
	b.linef("Total demand capacity:  %12.2f MW", snap.Demand)

	t := s.cfg.Thresholds()
	if snap.Defined {
		b.linef("Balance ratio:          %12.2f (%s)", snap.Ratio, snap.Classify(t))
	} else {
		b.linef("Balance ratio:          no demand present")
	}
	for _, w := range snap.Warnings(t) {
		b.linef("WARNING: %s", w)
	}

	supply := supplyGenerators(s.rows)
	if len(supply) > 0 {
		b.subsection("Generator Supply by Carrier")
		for _, line := range groupCapacity(supply, func(r catalog.Row) string { return r.Carrier }) {
			b.linef("  %-40s %12.2f MW", line.key, line.capacity)
		}
	}
	demand := demandGenerators(s.rows, s.cfg.TrackedCarrier)
	if len(demand) > 0 {
		b.subsection("Demand by Carrier")
		for _, line := range groupCapacity(demand, func(r catalog.Row) string { return r.Carrier }) {
			b.linef("  %-40s %12.2f MW", line.key, line.capacity)
		}
	}
}

func (s *Session) reportOptimization(b *reportBuilder) {
	b.section("OPTIMIZATION RESULTS")
	result, ok := s.LastResult()
	if !ok {
		b.linef("Optimization has not been run yet")
		return
	}
	b.linef("Solver status:   %s", result.Status)
	b.linef("Objective value: %.2f", result.Objective)
	if len(result.Dispatch) > 0 {
		b.subsection("Dispatch by Technology")
		techs := make([]string, 0, len(result.Dispatch))
		for tech := range result.Dispatch {
			techs = append(techs, tech)
		}
		sort.Strings(techs)
		for _, tech := range techs {
			b.linef("  %-40s %12.2f MW", tech, result.Dispatch[tech])
		}
	}
}

func (s *Session) reportStages(b *reportBuilder) {
	b.section("STAGE HISTORY")
	for _, st := range s.stages.History() {
		kind := string(st.Kind)
		if kind == "" {
			kind = "-"
		}
		b.linef("%3d  %-24s %-10s %4d rows  %s",
			st.Seq, st.Name, kind, st.Count, st.At.Format("2006-01-02 15:04:05"))
	}
}

// ComponentSummary reports the subset a filter produced: counts by kind and
// the leading technologies. Used after interactive additions.
func ComponentSummary(rows []catalog.Row) string {
	var b reportBuilder
	b.linef("Components found: %d", len(rows))
	if len(rows) == 0 {
		return b.String()
	}
	b.subsection("By component kind")
	for _, k := range []catalog.Kind{catalog.Generator, catalog.Link, catalog.Line, catalog.Store} {
		if n := len(rowsOfKind(rows, k)); n > 0 {
			b.linef("  %-12s %4d", k, n)
		}
	}
	b.subsection("By technology (top 10)")
	groups := groupCapacity(rows, func(r catalog.Row) string { return r.Technology })
	sort.SliceStable(groups, func(i, j int) bool { return groups[i].count > groups[j].count })
	if len(groups) > 10 {
		groups = groups[:10]
	}
	for _, g := range groups {
		b.linef("  %-40s %4d", g.key, g.count)
	}
	return b.String()
}

// Comparison is a before/after component-count diff between two states.
func Comparison(before, after map[catalog.Kind]int) string {
	var b reportBuilder
	b.section("MODEL COMPARISON")
	b.linef("%-12s %8s %8s %8s", "Kind", "Before", "After", "Change")
	for _, k := range []catalog.Kind{catalog.Generator, catalog.Link, catalog.Line, catalog.Store} {
		b.linef("%-12s %8d %8d %+8d", k, before[k], after[k], after[k]-before[k])
	}
	return b.String()
}

type capacityGroup struct {
	key      string
	count    int
	capacity float64
}

func groupCapacity(rows []catalog.Row, key func(catalog.Row) string) []capacityGroup {
	idx := make(map[string]int)
	var groups []capacityGroup
	for _, r := range rows {
		k := key(r)
		i, ok := idx[k]
		if !ok {
			i = len(groups)
			idx[k] = i
			groups = append(groups, capacityGroup{key: k})
		}
		groups[i].count++
		groups[i].capacity += r.Capacity
	}
	sort.Slice(groups, func(i, j int) bool { return groups[i].key < groups[j].key })
	return groups
}

func rowsOfKind(rows []catalog.Row, k catalog.Kind) []catalog.Row {
	var out []catalog.Row
	for _, r := range rows {
		if r.Kind == k {
			out = append(out, r)
		}
	}
	return out
}

func supplyGenerators(rows []catalog.Row) []catalog.Row {
	var out []catalog.Row
	for _, r := range rows {
		if r.Kind == catalog.Generator && r.Sign > 0 {
			out = append(out, r)
		}
	}
	return out
}

func demandGenerators(rows []catalog.Row, trackedCarrier string) []catalog.Row {
	var out []catalog.Row
	for _, r := range rows {
		if r.Kind == catalog.Generator && r.Sign < 0 && r.Carrier == trackedCarrier {
			out = append(out, r)
		}
	}
	return out
}

// reportBuilder accumulates report text with the section framing the
// inspection reports share.
type reportBuilder struct {
	sb strings.Builder
}

func (b *reportBuilder) String() string {
	return b.sb.String()
}

func (b *reportBuilder) section(title string) {
	b.sb.WriteString("\n" + strings.Repeat("=", 60) + "\n")
	b.sb.WriteString(title + "\n")
	b.sb.WriteString(strings.Repeat("=", 60) + "\n")
}

func (b *reportBuilder) subsection(title string) {
	b.sb.WriteString("\n" + title + "\n")
	b.sb.WriteString(strings.Repeat("-", len(title)) + "\n")
}

func (b *reportBuilder) linef(format string, args ...interface{}) {
	fmt.Fprintf(&b.sb, format+"\n", args...)
}
