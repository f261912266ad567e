// ABOUTME: Scope binds a Path's root to concrete values drawn from an ExecutionContext
// ABOUTME: plus the forEach-local item/index and the sub-workflow parent output, if any

package template

import "github.com/ritualflow/engine/pkg/types"

// Scope is the per-evaluation binding environment layered on top of an
// ExecutionContext. Item/Index/ParentOutput are only populated inside a
// forEach body or a child sub-workflow's own output-mapping expressions.
type Scope struct {
	Ctx          *types.ExecutionContext
	Item         any
	HasItem      bool
	Index        int
	HasIndex     bool
	ParentOutput map[string]any
	HasParent    bool
}

// NewScope builds the root scope for a plain task step (no item/index/parent).
func NewScope(ctx *types.ExecutionContext) Scope {
	return Scope{Ctx: ctx}
}

// WithItem derives a forEach-iteration scope binding item and index.
func (s Scope) WithItem(item any, index int) Scope {
	s.Item = item
	s.HasItem = true
	s.Index = index
	s.HasIndex = true
	return s
}

// WithParent derives a scope exposing the parent workflow's output, used by
// a sub-workflow's own output-mapping expressions.
func (s Scope) WithParent(parentOutput map[string]any) Scope {
	s.ParentOutput = parentOutput
	s.HasParent = true
	return s
}

// resolveMiss is returned by navigate for a non-error "leaf absent" miss;
// distinct from a parse/grammar error, which is always fatal even in
// non-preview mode.
type resolveMiss struct{}

func (resolveMiss) Error() string { return "leaf missing" }

// lookup resolves a parsed Path against the scope. Returns (value, nil) on a
// full hit, (nil, resolveMiss{}) on a missing leaf (renders as null), or a
// *types.TemplateError for a genuine grammar/root failure.
func lookup(p *Path, scope Scope) (any, error) {
	switch p.Root {
	case RootInput:
		return navigate(scope.Ctx.Input, p.Segments)
	case RootEnv:
		if len(p.Segments) != 1 || p.Segments[0].IsIndex {
			return nil, types.NewTemplateError(p.Raw, string(p.Root), "env root requires exactly one key segment", nil)
		}
		v, ok := scope.Ctx.Env[p.Segments[0].Key]
		if !ok {
			return nil, resolveMiss{}
		}
		return v, nil
	case RootTasks:
		state, ok := scope.Ctx.Tasks[p.TaskID]
		if !ok || state.Status == types.TaskSkipped || state.Output == nil {
			return nil, resolveMiss{}
		}
		return navigate(state.Output, p.Segments)
	case RootItem:
		if !scope.HasItem {
			return nil, types.NewTemplateError(p.Raw, string(p.Root), "item referenced outside a forEach body", nil)
		}
		if len(p.Segments) == 0 {
			return scope.Item, nil
		}
		return navigate(scope.Item, p.Segments)
	case RootIndex:
		if !scope.HasIndex {
			return nil, types.NewTemplateError(p.Raw, string(p.Root), "index referenced outside a forEach body", nil)
		}
		return scope.Index, nil
	case RootParent:
		if !scope.HasParent {
			return nil, types.NewTemplateError(p.Raw, string(p.Root), "parent referenced outside a sub-workflow output mapping", nil)
		}
		return navigate(scope.ParentOutput, p.Segments)
	}
	return nil, types.NewTemplateError(p.Raw, string(p.Root), "unknown path root", nil)
}

// navigate walks a decoded JSON-ish value (map[string]any / []any / scalar)
// following segments. A missing map key or out-of-range index is a miss, not
// an error; the caller renders it as null.
func navigate(v any, segments []Segment) (any, error) {
	cur := v
	for _, seg := range segments {
		if seg.IsIndex {
			arr, ok := cur.([]any)
			if !ok || seg.Index < 0 || seg.Index >= len(arr) {
				return nil, resolveMiss{}
			}
			cur = arr[seg.Index]
			continue
		}
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, resolveMiss{}
		}
		next, ok := m[seg.Key]
		if !ok {
			return nil, resolveMiss{}
		}
		cur = next
	}
	return cur, nil
}
