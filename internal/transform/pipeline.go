// ABOUTME: a declared sequence of typed dataflow operators
// ABOUTME: run over a taskRef's input/output dataset, with stable-order semantics

package transform

import (
	"bytes"
	"fmt"
	"math/rand"
	"sort"
	"strconv"
	"strings"
	texttemplate "text/template"

	"github.com/Masterminds/sprig/v3"

	"github.com/ritualflow/engine/internal/template"
)

// Kind names one of the fixed set of pipeline operator types.
type Kind string

const (
	KindFilter    Kind = "filter"
	KindMap       Kind = "map"
	KindSelect    Kind = "select"
	KindGroupBy   Kind = "groupBy"
	KindAggregate Kind = "aggregate"
	KindJoin      Kind = "join"
	KindSortBy    Kind = "sortBy"
	KindLimit     Kind = "limit"
	KindSkip      Kind = "skip"
	KindFlatMap   Kind = "flatMap"
	KindEnrich    Kind = "enrich"
	KindReverse   Kind = "reverse"
	KindUnique    Kind = "unique"
	KindFirst     Kind = "first"
	KindScale     Kind = "scale"
	KindRound     Kind = "round"
	KindTrim      Kind = "trim"
	KindUppercase Kind = "uppercase"
	KindRandomOne Kind = "randomOne"
)

// Step is one declared operator in a pipeline. Only the fields relevant to
// Kind are read; the rest are ignored, mirroring how a YAML-declared step
// only populates the keys its kind uses.
type Step struct {
	Kind      Kind              `yaml:"kind" json:"kind"`
	Field     string            `yaml:"field,omitempty" json:"field,omitempty"`
	Fields    []string          `yaml:"fields,omitempty" json:"fields,omitempty"`
	When      string            `yaml:"when,omitempty" json:"when,omitempty"`
	Set       map[string]string `yaml:"set,omitempty" json:"set,omitempty"`
	Func      string            `yaml:"func,omitempty" json:"func,omitempty"`
	Desc      bool              `yaml:"desc,omitempty" json:"desc,omitempty"`
	N         int               `yaml:"n,omitempty" json:"n,omitempty"`
	Factor    float64           `yaml:"factor,omitempty" json:"factor,omitempty"`
	Precision int               `yaml:"precision,omitempty" json:"precision,omitempty"`
	Seed      int64             `yaml:"seed,omitempty" json:"seed,omitempty"`
	With      []any             `yaml:"with,omitempty" json:"with,omitempty"`
	On        string            `yaml:"on,omitempty" json:"on,omitempty"`
	OtherOn   string            `yaml:"otherOn,omitempty" json:"otherOn,omitempty"`
}

// Pipeline is an ordered sequence of Steps, run left to right.
type Pipeline struct {
	resolver *template.Resolver
	steps    []Step
}

// New compiles steps into a runnable Pipeline, rendering `when`/`set`
// expressions through resolver against each row (bound as `{{item...}}`).
func New(resolver *template.Resolver, steps []Step) *Pipeline {
	return &Pipeline{resolver: resolver, steps: steps}
}

// Run applies every step in order to rows, threading the prior step's
// output dataset into the next.
func (p *Pipeline) Run(scope template.Scope, rows []any) ([]any, error) {
	cur := rows
	for i, step := range p.steps {
		next, err := p.apply(step, scope, cur)
		if err != nil {
			return nil, fmt.Errorf("transform step %d (%s): %w", i, step.Kind, err)
		}
		cur = next
	}
	return cur, nil
}

func (p *Pipeline) apply(step Step, scope template.Scope, rows []any) ([]any, error) {
	switch step.Kind {
	case KindFilter:
		return p.filter(step, scope, rows)
	case KindMap:
		return p.mapOp(step, scope, rows, true)
	case KindEnrich:
		return p.mapOp(step, scope, rows, false)
	case KindSelect:
		return selectFields(step, rows)
	case KindGroupBy:
		return groupBy(step, rows)
	case KindAggregate:
		return aggregate(step, rows)
	case KindJoin:
		return join(step, rows)
	case KindSortBy:
		return sortBy(step, rows)
	case KindLimit:
		return limit(rows, step.N)
	case KindFirst:
		n := step.N
		if n == 0 {
			n = 1
		}
		return limit(rows, n)
	case KindSkip:
		return skip(rows, step.N)
	case KindFlatMap:
		return flatMap(step, rows)
	case KindReverse:
		return reverse(rows), nil
	case KindUnique:
		return unique(step, rows)
	case KindScale:
		return scale(step, rows)
	case KindRound:
		return round(step, rows)
	case KindTrim:
		return trimField(step, rows)
	case KindUppercase:
		return uppercaseField(step, rows)
	case KindRandomOne:
		return randomOne(step, rows)
	default:
		return nil, fmt.Errorf("unknown operator kind %q", step.Kind)
	}
}

func (p *Pipeline) filter(step Step, scope template.Scope, rows []any) ([]any, error) {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		v, err := p.resolver.Resolve(step.When, scope.WithItem(row, 0))
		if err != nil {
			return nil, err
		}
		if truthy(v) {
			out = append(out, row)
		}
	}
	return out, nil
}

// mapOp renders step.Set's templates against each row and merges the
// results onto a shallow copy; overwrite controls whether an existing key
// is replaced (map) or left untouched (enrich: only adds new fields).
func (p *Pipeline) mapOp(step Step, scope template.Scope, rows []any, overwrite bool) ([]any, error) {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		m, ok := asMap(row)
		if !ok {
			return nil, fmt.Errorf("map/enrich requires object rows, got %T", row)
		}
		next := cloneMap(m)
		for field, expr := range step.Set {
			if !overwrite {
				if _, exists := next[field]; exists {
					continue
				}
			}
			v, err := p.resolver.Resolve(expr, scope.WithItem(row, 0))
			if err != nil {
				return nil, err
			}
			next[field] = v
		}
		out = append(out, next)
	}
	return out, nil
}

func selectFields(step Step, rows []any) ([]any, error) {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		m, ok := asMap(row)
		if !ok {
			return nil, fmt.Errorf("select requires object rows, got %T", row)
		}
		next := make(map[string]any, len(step.Fields))
		for _, f := range step.Fields {
			if v, ok := m[f]; ok {
				next[f] = v
			}
		}
		out = append(out, next)
	}
	return out, nil
}

// groupBy buckets rows by step.Field's stringified value, preserving the
// order groups were first seen. Output rows are `{"key": ..., "items": [...]}`.
func groupBy(step Step, rows []any) ([]any, error) {
	order := make([]string, 0)
	groups := make(map[string][]any)
	keys := make(map[string]any)
	for _, row := range rows {
		m, ok := asMap(row)
		if !ok {
			return nil, fmt.Errorf("groupBy requires object rows, got %T", row)
		}
		key := fmt.Sprintf("%v", m[step.Field])
		if _, seen := groups[key]; !seen {
			order = append(order, key)
			keys[key] = m[step.Field]
		}
		groups[key] = append(groups[key], row)
	}

	out := make([]any, 0, len(order))
	for _, key := range order {
		out = append(out, map[string]any{"key": keys[key], "items": groups[key]})
	}
	return out, nil
}

// aggregate collapses rows to a single-element result set. Empty
// input yields 0 for count/sum, null for min/max/avg.
func aggregate(step Step, rows []any) ([]any, error) {
	switch step.Func {
	case "count":
		return []any{float64(len(rows))}, nil
	case "sum", "min", "max", "avg":
		vals := make([]float64, 0, len(rows))
		for _, row := range rows {
			v, err := numericField(row, step.Field)
			if err != nil {
				return nil, err
			}
			vals = append(vals, v)
		}
		return []any{reduce(step.Func, vals)}, nil
	default:
		return nil, fmt.Errorf("unknown aggregate func %q", step.Func)
	}
}

func reduce(fn string, vals []float64) any {
	if len(vals) == 0 {
		switch fn {
		case "sum":
			return float64(0)
		default:
			return nil
		}
	}
	switch fn {
	case "sum":
		var total float64
		for _, v := range vals {
			total += v
		}
		return total
	case "avg":
		var total float64
		for _, v := range vals {
			total += v
		}
		return total / float64(len(vals))
	case "min":
		m := vals[0]
		for _, v := range vals[1:] {
			if v < m {
				m = v
			}
		}
		return m
	case "max":
		m := vals[0]
		for _, v := range vals[1:] {
			if v > m {
				m = v
			}
		}
		return m
	}
	return nil
}

// join is an inner equi-join: for each row, emit one merged row per match
// in step.With whose OtherOn field equals the row's On field. On conflict
// the left (rows) side's fields take precedence.
func join(step Step, rows []any) ([]any, error) {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		m, ok := asMap(row)
		if !ok {
			return nil, fmt.Errorf("join requires object rows, got %T", row)
		}
		key := fmt.Sprintf("%v", m[step.On])
		for _, other := range step.With {
			om, ok := asMap(other)
			if !ok {
				continue
			}
			if fmt.Sprintf("%v", om[step.OtherOn]) != key {
				continue
			}
			merged := cloneMap(om)
			for k, v := range m {
				merged[k] = v
			}
			out = append(out, merged)
		}
	}
	return out, nil
}

// sortBy is a stable sort, ascending by default, descending if Desc.
func sortBy(step Step, rows []any) ([]any, error) {
	out := append([]any(nil), rows...)
	var sortErr error
	sort.SliceStable(out, func(i, j int) bool {
		if sortErr != nil {
			return false
		}
		cmp, err := compareByField(out[i], out[j], step.Field)
		if err != nil {
			sortErr = err
			return false
		}
		if step.Desc {
			return cmp > 0
		}
		return cmp < 0
	})
	if sortErr != nil {
		return nil, sortErr
	}
	return out, nil
}

// compareByField returns -1/0/1 comparing a and b's field values, numerically
// when both coerce to float64, lexically otherwise.
func compareByField(a, b any, field string) (int, error) {
	am, aok := asMap(a)
	bm, bok := asMap(b)
	if !aok || !bok {
		return 0, fmt.Errorf("sortBy requires object rows")
	}
	av, bv := am[field], bm[field]
	if af, aok := toFloat(av); aok {
		if bf, bok := toFloat(bv); bok {
			switch {
			case af < bf:
				return -1, nil
			case af > bf:
				return 1, nil
			default:
				return 0, nil
			}
		}
	}
	as, bs := fmt.Sprintf("%v", av), fmt.Sprintf("%v", bv)
	return strings.Compare(as, bs), nil
}

func limit(rows []any, n int) ([]any, error) {
	if n < 0 {
		return nil, fmt.Errorf("limit requires n >= 0, got %d", n)
	}
	if n > len(rows) {
		n = len(rows)
	}
	return append([]any(nil), rows[:n]...), nil
}

func skip(rows []any, n int) ([]any, error) {
	if n < 0 {
		return nil, fmt.Errorf("skip requires n >= 0, got %d", n)
	}
	if n > len(rows) {
		n = len(rows)
	}
	return append([]any(nil), rows[n:]...), nil
}

func flatMap(step Step, rows []any) ([]any, error) {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		m, ok := asMap(row)
		if !ok {
			return nil, fmt.Errorf("flatMap requires object rows, got %T", row)
		}
		inner, ok := m[step.Field].([]any)
		if !ok {
			continue
		}
		out = append(out, inner...)
	}
	return out, nil
}

func reverse(rows []any) []any {
	out := make([]any, len(rows))
	for i, row := range rows {
		out[len(rows)-1-i] = row
	}
	return out
}

// unique dedupes by step.Field's stringified value, keeping the first
// occurrence (stable order, mirroring sortBy/limit/skip's order guarantee).
func unique(step Step, rows []any) ([]any, error) {
	seen := make(map[string]bool)
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		m, ok := asMap(row)
		if !ok {
			return nil, fmt.Errorf("unique requires object rows, got %T", row)
		}
		key := fmt.Sprintf("%v", m[step.Field])
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, row)
	}
	return out, nil
}

func scale(step Step, rows []any) ([]any, error) {
	return mutateNumericField(rows, step.Field, func(v float64) float64 { return v * step.Factor })
}

// round delegates to sprig's `round` template function rather than
// hand-rolling decimal rounding.
func round(step Step, rows []any) ([]any, error) {
	return mutateNumericFieldErr(rows, step.Field, func(v float64) (float64, error) {
		out, err := sprigRender(fmt.Sprintf("{{ round . %d }}", step.Precision), v)
		if err != nil {
			return 0, err
		}
		return strconv.ParseFloat(out, 64)
	})
}

func trimField(step Step, rows []any) ([]any, error) {
	return mutateStringFieldErr(rows, step.Field, func(v string) (string, error) {
		return sprigRender(`{{ trim . }}`, v)
	})
}

func uppercaseField(step Step, rows []any) ([]any, error) {
	return mutateStringFieldErr(rows, step.Field, func(v string) (string, error) {
		return sprigRender(`{{ upper . }}`, v)
	})
}

// randomOne deterministically selects one row using Seed, so replays of the
// same pipeline over the same input are reproducible.
func randomOne(step Step, rows []any) ([]any, error) {
	if len(rows) == 0 {
		return nil, nil
	}
	r := rand.New(rand.NewSource(step.Seed))
	return []any{rows[r.Intn(len(rows))]}, nil
}

var sprigFuncs = sprig.TxtFuncMap()

// sprigRender executes a one-line text/template against data using sprig's
// function map: sprig functions are always called through text/template,
// never Go-level type assertions on the FuncMap's interface{} values.
func sprigRender(tmpl string, data any) (string, error) {
	t, err := texttemplate.New("transform").Funcs(sprigFuncs).Parse(tmpl)
	if err != nil {
		return "", err
	}
	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

func mutateNumericField(rows []any, field string, fn func(float64) float64) ([]any, error) {
	return mutateNumericFieldErr(rows, field, func(v float64) (float64, error) { return fn(v), nil })
}

func mutateNumericFieldErr(rows []any, field string, fn func(float64) (float64, error)) ([]any, error) {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		m, ok := asMap(row)
		if !ok {
			return nil, fmt.Errorf("numeric field operator requires object rows, got %T", row)
		}
		v, err := numericField(row, field)
		if err != nil {
			return nil, err
		}
		result, err := fn(v)
		if err != nil {
			return nil, err
		}
		next := cloneMap(m)
		next[field] = result
		out = append(out, next)
	}
	return out, nil
}

func mutateStringFieldErr(rows []any, field string, fn func(string) (string, error)) ([]any, error) {
	out := make([]any, 0, len(rows))
	for _, row := range rows {
		m, ok := asMap(row)
		if !ok {
			return nil, fmt.Errorf("string field operator requires object rows, got %T", row)
		}
		s, _ := m[field].(string)
		result, err := fn(s)
		if err != nil {
			return nil, err
		}
		next := cloneMap(m)
		next[field] = result
		out = append(out, next)
	}
	return out, nil
}

func numericField(row any, field string) (float64, error) {
	m, ok := asMap(row)
	if !ok {
		return 0, fmt.Errorf("expected object row, got %T", row)
	}
	v, ok := toFloat(m[field])
	if !ok {
		return 0, fmt.Errorf("field %q is not numeric (%T)", field, m[field])
	}
	return v, nil
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	}
	return 0, false
}

func asMap(v any) (map[string]any, bool) {
	m, ok := v.(map[string]any)
	return m, ok
}

func cloneMap(m map[string]any) map[string]any {
	next := make(map[string]any, len(m))
	for k, v := range m {
		next[k] = v
	}
	return next
}

// truthy mirrors the JSON-falsy rule shared across the engine's condition
// truthiness checks: false, null, 0, "", [], {} are falsey.
func truthy(v any) bool {
	switch t := v.(type) {
	case nil:
		return false
	case bool:
		return t
	case string:
		return t != ""
	case float64:
		return t != 0
	case []any:
		return len(t) > 0
	case map[string]any:
		return len(t) > 0
	default:
		return true
	}
}
