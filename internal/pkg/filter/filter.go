/*
filter.go Attribute predicates over the capacity catalog. Each filter key carries
its own match rule: technology matches by substring, everything else exactly.
Keys absent from a filter impose no constraint; a filter with no keys at all
matches nothing, so instantiating components is always an explicit opt-in.
*/

package filter

import (
	"fmt"
	"strings"

	"github.com/owalsh/gridstage/internal/pkg/catalog"
)

// YearRange bounds the build year inclusively. A single year is Min == Max.
type YearRange struct {
	Min int `json:"min" yaml:"min"`
	Max int `json:"max" yaml:"max"`
}

func (y YearRange) contains(year int) bool {
	return year >= y.Min && year <= y.Max
}

// Filter is a closed set of attribute predicates. Values within one key are
// OR-ed; keys are AND-ed.
type Filter struct {
	Technology []string       `json:"technology,omitempty" yaml:"technology,omitempty"`
	Carrier    []string       `json:"carrier,omitempty" yaml:"carrier,omitempty"`
	Area       []string       `json:"area,omitempty" yaml:"area,omitempty"`
	Kind       []catalog.Kind `json:"kind,omitempty" yaml:"kind,omitempty"`
	Qualifier  []string       `json:"qualifier,omitempty" yaml:"qualifier,omitempty"`
	BuildYear  *YearRange     `json:"build_year,omitempty" yaml:"build_year,omitempty"`
}

// Empty reports whether the filter constrains no attribute.
func (f Filter) Empty() bool {
	return len(f.Technology) == 0 &&
		len(f.Carrier) == 0 &&
		len(f.Area) == 0 &&
		len(f.Kind) == 0 &&
		len(f.Qualifier) == 0 &&
		f.BuildYear == nil
}

// Match reports whether the row satisfies every predicate present in the
// filter. An empty filter matches no rows.
func (f Filter) Match(r catalog.Row) bool {
	if f.Empty() {
		return false
	}
	if len(f.Technology) > 0 && !anySubstring(r.Technology, f.Technology) {
		return false
	}
	if len(f.Carrier) > 0 && !anyEqual(r.Carrier, f.Carrier) {
		return false
	}
	if len(f.Area) > 0 && !anyEqual(r.Area, f.Area) {
		return false
	}
	if len(f.Kind) > 0 && !anyKind(r.Kind, f.Kind) {
		return false
	}
	if len(f.Qualifier) > 0 && !anyEqual(r.Qualifier, f.Qualifier) {
		return false
	}
	if f.BuildYear != nil && !f.BuildYear.contains(r.BuildYear) {
		return false
	}
	return true
}

// Select applies the filter to the catalog and returns the matching subset.
// The subset preserves catalog order. No match is not an error; the caller
// decides whether an empty result is a problem.
func Select(c catalog.Catalog, f Filter) []catalog.Row {
	var out []catalog.Row
	for _, r := range c.Rows() {
		if f.Match(r) {
			out = append(out, r)
		}
	}
	return out
}

func anySubstring(value string, patterns []string) bool {
	for _, p := range patterns {
		if strings.Contains(value, p) {
			return true
		}
	}
	return false
}

func anyEqual(value string, accepted []string) bool {
	for _, a := range accepted {
		if value == a {
			return true
		}
	}
	return false
}

func anyKind(value catalog.Kind, accepted []catalog.Kind) bool {
	for _, a := range accepted {
		if value == a {
			return true
		}
	}
	return false
}

// Parse builds a filter from interactive arguments of the form
// "key=value[,value]". Unknown keys are rejected so a typo never silently
// widens a selection.
func Parse(args []string) (Filter, error) {
	var f Filter
	for _, arg := range args {
		key, raw, ok := strings.Cut(arg, "=")
		if !ok {
			return Filter{}, fmt.Errorf("filter argument %q: expected key=value", arg)
		}
		values := strings.Split(raw, ",")
		switch key {
		case "technology":
			f.Technology = append(f.Technology, values...)
		case "carrier":
			f.Carrier = append(f.Carrier, values...)
		case "area":
			f.Area = append(f.Area, values...)
		case "qualifier":
			f.Qualifier = append(f.Qualifier, values...)
		case "kind":
			for _, v := range values {
				k := catalog.Kind(v)
				if !k.Valid() {
					return Filter{}, fmt.Errorf("filter kind %q: unknown component kind", v)
				}
				f.Kind = append(f.Kind, k)
			}
		case "build_year":
			yr, err := parseYearRange(raw)
			if err != nil {
				return Filter{}, err
			}
			f.BuildYear = &yr
		default:
			return Filter{}, fmt.Errorf("filter key %q: unknown attribute", key)
		}
	}
	return f, nil
}

func parseYearRange(raw string) (YearRange, error) {
	lo, hi, ok := strings.Cut(raw, "-")
	if !ok {
		hi = lo
	}
	var yr YearRange
	if _, err := fmt.Sscanf(lo, "%d", &yr.Min); err != nil {
		return YearRange{}, fmt.Errorf("filter build_year %q: %w", raw, err)
	}
	if _, err := fmt.Sscanf(hi, "%d", &yr.Max); err != nil {
		return YearRange{}, fmt.Errorf("filter build_year %q: %w", raw, err)
	}
	return yr, nil
}
