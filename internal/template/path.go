// ABOUTME: Path grammar: lexes `root.segment[idx].segment` placeholder bodies into a Path
// ABOUTME: Recognized roots are input, tasks, env, item, index, parent

package template

import (
	"fmt"
	"strconv"
	"strings"
)

// Root names the recognized placeholder path roots.
type Root string

const (
	RootInput  Root = "input"
	RootTasks  Root = "tasks"
	RootEnv    Root = "env"
	RootItem   Root = "item"
	RootIndex  Root = "index"
	RootParent Root = "parent"
)

// Segment is one step of a path after the root: either a map key or an
// array index (`items[0]` yields segments {Key:"items"}, {Index:0,IsIndex:true}).
type Segment struct {
	Key     string
	Index   int
	IsIndex bool
}

// Path is a parsed placeholder body, e.g. `tasks.t1.output.items[0].name`.
type Path struct {
	Root     Root
	TaskID   string // populated only when Root == RootTasks
	Segments []Segment
	Raw      string
}

// ParsePath tokenizes and parses one placeholder body (the text between
// `{{` and `}}`, already trimmed of surrounding whitespace).
func ParsePath(raw string) (*Path, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("empty placeholder")
	}

	tokens, err := tokenize(trimmed)
	if err != nil {
		return nil, err
	}
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty placeholder")
	}

	root := Root(tokens[0].text)
	p := &Path{Root: root, Raw: raw}
	rest := tokens[1:]

	switch root {
	case RootTasks:
		if len(rest) == 0 || rest[0].isIndex {
			return nil, fmt.Errorf("%q: tasks root requires a task id", raw)
		}
		p.TaskID = rest[0].text
		rest = rest[1:]
		if len(rest) == 0 || rest[0].isIndex || rest[0].text != "output" {
			return nil, fmt.Errorf("%q: tasks.%s requires .output", raw, p.TaskID)
		}
		rest = rest[1:]
	case RootParent:
		if len(rest) == 0 || rest[0].isIndex || rest[0].text != "output" {
			return nil, fmt.Errorf("%q: parent root requires .output", raw)
		}
		rest = rest[1:]
	case RootInput, RootEnv, RootItem:
		// remaining tokens, if any, navigate directly
	case RootIndex:
		if len(rest) != 0 {
			return nil, fmt.Errorf("%q: index root takes no further path", raw)
		}
	default:
		return nil, fmt.Errorf("%q: unknown path root %q", raw, root)
	}

	for _, t := range rest {
		if t.isIndex {
			n, err := strconv.Atoi(t.text)
			if err != nil {
				return nil, fmt.Errorf("%q: invalid array index %q", raw, t.text)
			}
			p.Segments = append(p.Segments, Segment{Index: n, IsIndex: true})
			continue
		}
		p.Segments = append(p.Segments, Segment{Key: t.text})
	}

	return p, nil
}

type token struct {
	text    string
	isIndex bool
}

// tokenize splits "a.b[3].c" into [{a} {b} {3 idx} {c}].
func tokenize(s string) ([]token, error) {
	var tokens []token
	var cur strings.Builder

	flush := func() {
		if cur.Len() > 0 {
			tokens = append(tokens, token{text: cur.String()})
			cur.Reset()
		}
	}

	i := 0
	for i < len(s) {
		c := s[i]
		switch {
		case c == '.':
			flush()
			i++
		case c == '[':
			flush()
			end := strings.IndexByte(s[i:], ']')
			if end < 0 {
				return nil, fmt.Errorf("%q: unterminated '['", s)
			}
			idx := s[i+1 : i+end]
			tokens = append(tokens, token{text: strings.TrimSpace(idx), isIndex: true})
			i += end + 1
		case c == ' ' || c == '\t':
			i++
		default:
			cur.WriteByte(c)
			i++
		}
	}
	flush()
	return tokens, nil
}
