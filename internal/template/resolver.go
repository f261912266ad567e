// ABOUTME: Resolver evaluates `{{ }}` placeholder strings against a Scope
// ABOUTME: A whole-string single placeholder yields a typed value; otherwise a rendered string

package template

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"sync"

	"github.com/ritualflow/engine/pkg/types"
)

// placeholderPattern matches `{{ ... }}` non-greedily; path bodies never
// contain `}}` themselves so this is unambiguous.
var placeholderPattern = regexp.MustCompile(`\{\{\s*(.*?)\s*\}\}`)

// Resolver resolves template strings against a Scope. Parsed paths are
// cached by raw string identity so hot repeated evaluation (e.g. inside a
// large forEach) only lexes once per distinct placeholder body.
type Resolver struct {
	mu    sync.RWMutex
	cache map[string]*Path
}

// New creates a Resolver with an empty path cache.
func New() *Resolver {
	return &Resolver{cache: make(map[string]*Path)}
}

func (r *Resolver) parse(body string) (*Path, error) {
	r.mu.RLock()
	p, ok := r.cache[body]
	r.mu.RUnlock()
	if ok {
		return p, nil
	}

	p, err := ParsePath(body)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[body] = p
	r.mu.Unlock()
	return p, nil
}

// Resolve evaluates s against scope. If s (trimmed) is exactly one
// placeholder, the typed value it resolves to (possibly nil, a map, a
// slice, a number, a bool, or a string) is returned as-is. Otherwise every
// placeholder in s is rendered to its string form and substituted in
// place, returning a string.
func (r *Resolver) Resolve(s string, scope Scope) (any, error) {
	if !strings.Contains(s, "{{") {
		return s, nil
	}

	if whole, ok := wholePlaceholder(s); ok {
		p, err := r.parse(whole)
		if err != nil {
			return nil, types.NewTemplateError(s, "", err.Error(), nil)
		}
		v, err := lookup(p, scope)
		if err != nil {
			if _, isMiss := err.(resolveMiss); isMiss {
				return nil, nil
			}
			return nil, err
		}
		return v, nil
	}

	var outerErr error
	result := placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		if outerErr != nil {
			return match
		}
		body := placeholderPattern.FindStringSubmatch(match)[1]
		p, err := r.parse(body)
		if err != nil {
			outerErr = types.NewTemplateError(s, "", err.Error(), nil)
			return match
		}
		v, err := lookup(p, scope)
		if err != nil {
			if _, isMiss := err.(resolveMiss); isMiss {
				return "null"
			}
			outerErr = err
			return match
		}
		return stringify(v)
	})
	if outerErr != nil {
		return nil, outerErr
	}
	return result, nil
}

// ResolveString is a convenience wrapper for callers that only ever want a
// string (e.g. rendering an HTTP URL or header value).
func (r *Resolver) ResolveString(s string, scope Scope) (string, error) {
	v, err := r.Resolve(s, scope)
	if err != nil {
		return "", err
	}
	if str, ok := v.(string); ok {
		return str, nil
	}
	return stringify(v), nil
}

// ResolvePreview renders s for dry-run/validation purposes. It never fails:
// grammar errors, unresolved task outputs, and missing input leaves are all
// substituted with deterministic placeholder text instead of propagating an
// error.
func (r *Resolver) ResolvePreview(s string, scope Scope) string {
	if !strings.Contains(s, "{{") {
		return s
	}
	return placeholderPattern.ReplaceAllStringFunc(s, func(match string) string {
		body := placeholderPattern.FindStringSubmatch(match)[1]
		p, err := ParsePath(body)
		if err != nil {
			return match
		}
		if p.Root == RootTasks {
			return fmt.Sprintf("<will-resolve-from-%s.%s>", p.TaskID, joinSegments(p.Segments))
		}
		v, err := lookup(p, scope)
		if err != nil {
			return "<null>"
		}
		return stringify(v)
	})
}

// EvaluateAll resolves every string value in a flat input map, leaving
// non-string values untouched.
func (r *Resolver) EvaluateAll(input map[string]string, scope Scope) (map[string]any, error) {
	out := make(map[string]any, len(input))
	for k, v := range input {
		resolved, err := r.Resolve(v, scope)
		if err != nil {
			return nil, fmt.Errorf("resolving input %q: %w", k, err)
		}
		out[k] = resolved
	}
	return out, nil
}

// wholePlaceholder reports whether s, once trimmed, is exactly one `{{ }}`
// placeholder, returning its inner body.
func wholePlaceholder(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	if !strings.HasPrefix(trimmed, "{{") || !strings.HasSuffix(trimmed, "}}") {
		return "", false
	}
	inner := trimmed[2 : len(trimmed)-2]
	if strings.Contains(inner, "{{") || strings.Contains(inner, "}}") {
		return "", false
	}
	return strings.TrimSpace(inner), true
}

func stringify(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case string:
		return t
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprintf("%v", t)
		}
		return string(b)
	}
}

func joinSegments(segments []Segment) string {
	var sb strings.Builder
	for i, seg := range segments {
		if seg.IsIndex {
			fmt.Fprintf(&sb, "[%d]", seg.Index)
			continue
		}
		if i > 0 {
			sb.WriteByte('.')
		}
		sb.WriteString(seg.Key)
	}
	return sb.String()
}
