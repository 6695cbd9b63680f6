// Package scoring implements the calculator framework: pluggable
// scoring functions with bound arguments, district-level and plan-level
// evaluation, result rendering, and the composition engine that lets
// score functions reference each other.
package scoring

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/stwalsh4118/redraw/internal/geo"
)

// DistrictReader is the read-only view of one district at a fixed
// version that calculators consume.
type DistrictReader interface {
	DistrictID() int
	Name() string
	NumMembers() int
	Geometry() geo.Geometry
	// SubjectValue returns the district's cached aggregate for the
	// named subject. ok is false when no such aggregate exists.
	SubjectValue(name string) (float64, bool)
}

// PlanReader is the read-only view of a plan's live district set at a
// fixed version.
type PlanReader interface {
	Name() string
	// Districts returns every live district, the Unassigned placeholder
	// included; calculators decide what to skip.
	Districts() []DistrictReader
	// UnassignedUnits returns the number of base geounits not assigned
	// to any real district.
	UnassignedUnits() (int, error)
	// Assignments maps base geounit portable ids to district ids.
	Assignments() (map[string]int, error)
	// LevelAssignments maps base geounit portable ids to the enclosing
	// region of the given geolevel.
	LevelAssignments(geolevelID int) (map[string]string, error)
}

// Target is the subject of one calculator evaluation: exactly one of
// District and Plan is set.
type Target struct {
	District DistrictReader
	Plan     PlanReader
	Version  int
}

// Result is a calculator outcome. Value is a float64, bool, string, or
// nil; nil means "not applicable" and renders as n/a / JSON null.
// Index and Raw carry calculator-specific auxiliary data.
type Result struct {
	Value any
	Index float64
	Raw   any
}

// Calculator is one scoring function kind. Compute never fails for
// data-shape reasons (missing subjects, empty geometry); those yield a
// nil Result. Errors are reserved for configuration problems.
type Calculator interface {
	Compute(ctx context.Context, t Target) (*Result, error)
	HTML(r *Result) string
	JSON(r *Result) ([]byte, error)
	SortKey(r *Result) float64
	SetArg(name string, arg Arg)
}

// ConfigurationError reports broken score-function setup data: an
// unknown calculator, an unresolvable reference, or a reference cycle.
// It is always surfaced to the caller, never folded into a nil score.
type ConfigurationError struct {
	Function string
	Reason   string
}

func (e *ConfigurationError) Error() string {
	if e.Function == "" {
		return fmt.Sprintf("score configuration error: %s", e.Reason)
	}
	return fmt.Sprintf("score configuration error in %q: %s", e.Function, e.Reason)
}

// ArgKind enumerates how a bound argument resolves.
type ArgKind int

const (
	// ArgKindLiteral carries the value string itself, parsed as a
	// number when it looks numeric.
	ArgKindLiteral ArgKind = iota
	// ArgKindSubject names a subject resolved against the evaluated
	// district's cached aggregates. A leading '-' negates the value.
	ArgKindSubject
	// ArgKindScores carries pre-evaluated nested score values: one per
	// district for a plan-context reference to a district-level
	// function, a single value otherwise.
	ArgKindScores
)

// Arg is one bound calculator argument.
type Arg struct {
	Kind   ArgKind
	Value  string
	Scores []float64
}

// Literal builds a literal argument.
func Literal(value string) Arg { return Arg{Kind: ArgKindLiteral, Value: value} }

// SubjectRef builds a subject-reference argument.
func SubjectRef(name string) Arg { return Arg{Kind: ArgKindSubject, Value: name} }

// base carries the bound arguments and the default rendering shared by
// every calculator.
type base struct {
	args map[string]Arg
}

func (b *base) SetArg(name string, arg Arg) {
	if b.args == nil {
		b.args = make(map[string]Arg)
	}
	b.args[name] = arg
}

func (b *base) arg(name string) (Arg, bool) {
	arg, ok := b.args[name]
	return arg, ok
}

// number resolves an argument to a single numeric value against an
// optional district context. ok is false when the argument is missing,
// non-numeric, or refers to data the district does not have.
func (b *base) number(name string, d DistrictReader) (float64, bool) {
	arg, ok := b.args[name]
	if !ok {
		return 0, false
	}
	return resolveNumber(arg, d)
}

func resolveNumber(arg Arg, d DistrictReader) (float64, bool) {
	switch arg.Kind {
	case ArgKindLiteral:
		v, err := strconv.ParseFloat(arg.Value, 64)
		if err != nil {
			return 0, false
		}
		return v, true
	case ArgKindSubject:
		if d == nil {
			return 0, false
		}
		name := arg.Value
		negate := false
		if strings.HasPrefix(name, "-") {
			negate = true
			name = name[1:]
		}
		v, ok := d.SubjectValue(name)
		if !ok {
			return 0, false
		}
		if negate {
			v = -v
		}
		return v, true
	case ArgKindScores:
		if len(arg.Scores) == 1 {
			return arg.Scores[0], true
		}
		return 0, false
	}
	return 0, false
}

// numbers resolves an argument to the full per-district value list for
// a plan target: subject arguments are read from every real district,
// nested-score lists are returned as-is, and literals collapse to a
// single value.
func (b *base) numbers(name string, t Target) ([]float64, bool) {
	arg, ok := b.args[name]
	if !ok {
		return nil, false
	}
	switch {
	case arg.Kind == ArgKindScores:
		return arg.Scores, len(arg.Scores) > 0
	case t.Plan != nil && arg.Kind == ArgKindSubject:
		var values []float64
		for _, d := range realDistricts(t.Plan) {
			if v, ok := resolveNumber(arg, d); ok {
				values = append(values, v)
			}
		}
		return values, len(values) > 0
	default:
		if v, ok := resolveNumber(arg, t.District); ok {
			return []float64{v}, true
		}
		return nil, false
	}
}

// boolArg resolves an argument as a flag. Absent arguments are false.
func (b *base) boolArg(name string, d DistrictReader) bool {
	arg, ok := b.args[name]
	if !ok {
		return false
	}
	if arg.Kind == ArgKindLiteral {
		switch strings.ToLower(arg.Value) {
		case "true", "t", "yes", "1":
			return true
		case "false", "f", "no", "0", "":
			return false
		}
	}
	v, ok := resolveNumber(arg, d)
	return ok && v != 0
}

// memberScaled divides v by the district's member count when the
// apply_num_members flag is set, so thresholds compare per seat rather
// than per district.
func (b *base) memberScaled(v float64, d DistrictReader) float64 {
	if d == nil || !b.boolArg("apply_num_members", d) {
		return v
	}
	if n := d.NumMembers(); n > 1 {
		return v / float64(n)
	}
	return v
}

// HTML renders the short human-readable form of a result.
func (b *base) HTML(r *Result) string {
	if r == nil || r.Value == nil {
		return "n/a"
	}
	switch v := r.Value.(type) {
	case bool:
		if v {
			return "Yes"
		}
		return "No"
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}

// JSON renders the machine-readable {"result": ...} form. Values are
// coerced to JSON-native types: numbers to float, booleans to bool,
// missing results to null.
func (b *base) JSON(r *Result) ([]byte, error) {
	var value any
	if r != nil {
		value = r.Value
	}
	data, err := json.Marshal(map[string]any{"result": value})
	if err != nil {
		return nil, fmt.Errorf("failed to encode score result: %w", err)
	}
	return data, nil
}

// SortKey orders results for leaderboards. Numeric values sort by
// value, booleans as 1/0, missing results last.
func (b *base) SortKey(r *Result) float64 {
	if r == nil || r.Value == nil {
		return math.Inf(-1)
	}
	switch v := r.Value.(type) {
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	default:
		return math.Inf(-1)
	}
}

// realDistricts filters out the Unassigned placeholder.
func realDistricts(p PlanReader) []DistrictReader {
	var out []DistrictReader
	for _, d := range p.Districts() {
		if d.DistrictID() != 0 {
			out = append(out, d)
		}
	}
	return out
}

// Factory constructs a fresh calculator of one kind.
type Factory func() Calculator

var registry = map[string]Factory{
	"Schwartzberg":             func() Calculator { return &Schwartzberg{} },
	"Roeck":                    func() Calculator { return &Roeck{} },
	"PolsbyPopper":             func() Calculator { return &PolsbyPopper{} },
	"LengthWidthCompactness":   func() Calculator { return &LengthWidthCompactness{} },
	"ConvexHullRatio":          func() Calculator { return &ConvexHullRatio{} },
	"SumValues":                func() Calculator { return &SumValues{} },
	"Average":                  func() Calculator { return &Average{} },
	"Percent":                  func() Calculator { return &Percent{} },
	"Threshold":                func() Calculator { return &Threshold{} },
	"Range":                    func() Calculator { return &Range{} },
	"Equivalence":              func() Calculator { return &Equivalence{} },
	"Interval":                 func() Calculator { return &Interval{} },
	"Contiguity":               func() Calculator { return &Contiguity{} },
	"AllContiguous":            func() Calculator { return &AllContiguous{} },
	"NonContiguous":            func() Calculator { return &NonContiguous{} },
	"MajorityMinority":         func() Calculator { return &MajorityMinority{} },
	"Equipopulation":           func() Calculator { return &Equipopulation{} },
	"CountDistricts":           func() Calculator { return &CountDistricts{} },
	"AllBlocksAssigned":        func() Calculator { return &AllBlocksAssigned{} },
	"MultiMember":              func() Calculator { return &MultiMember{} },
	"RepresentationalFairness": func() Calculator { return &RepresentationalFairness{} },
	"Competitiveness":          func() Calculator { return &Competitiveness{} },
	"SplitCounter":             func() Calculator { return &SplitCounter{} },
	"DistrictSplitCounter":     func() Calculator { return &DistrictSplitCounter{} },
}

// New constructs the named calculator. Unknown names are a
// configuration error.
func New(name string) (Calculator, error) {
	factory, ok := registry[name]
	if !ok {
		return nil, &ConfigurationError{Reason: fmt.Sprintf("unknown calculator %q", name)}
	}
	return factory(), nil
}

// Names lists every registered calculator in sorted order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
