package modify

import (
	"fmt"
	"strings"

	"github.com/PaesslerAG/gval"

	"github.com/neoul/confd/internal/xmlnode"
)

// Where is a user-ordered positioning directive.
type Where int

const (
	WhereNone Where = iota
	WhereFirst
	WhereLast
	WhereBefore
	WhereAfter
)

func parseWhere(s string) (Where, bool) {
	switch s {
	case "first":
		return WhereFirst, true
	case "last":
		return WhereLast, true
	case "before":
		return WhereBefore, true
	case "after":
		return WhereAfter, true
	default:
		return WhereNone, false
	}
}

// Spec is a fully-parsed positioning directive for a single node: where to
// place it among its ordered-by-user siblings, and (for before/after) the
// anchor identifying the sibling to place it relative to.
type Spec struct {
	Where     Where
	KeyExpr   string // the raw "[k=v][k2=v2]" predicate, list anchors
	Value     string // the raw leaf-list value anchor
}

// kv is one key=value pair parsed out of a list key predicate.
type kv struct {
	Name  string
	Value string
}

// ParseKeyPredicate parses an XPath-like "[k1=v1][k2=v2]" string into its
// component key/value pairs, the anchor form used by before/after on a
// user-ordered list (spec section 4.5).
func ParseKeyPredicate(s string) ([]kv, error) {
	var out []kv
	for len(s) > 0 {
		if s[0] != '[' {
			return nil, fmt.Errorf("malformed key predicate %q", s)
		}
		end := strings.IndexByte(s, ']')
		if end < 0 {
			return nil, fmt.Errorf("unterminated key predicate %q", s)
		}
		inner := s[1:end]
		eq := strings.IndexByte(inner, '=')
		if eq < 0 {
			return nil, fmt.Errorf("malformed key predicate clause %q", inner)
		}
		name := strings.TrimSpace(inner[:eq])
		val := strings.Trim(strings.TrimSpace(inner[eq+1:]), `'"`)
		out = append(out, kv{Name: name, Value: val})
		s = s[end+1:]
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("empty key predicate")
	}
	return out, nil
}

// buildExpr turns the parsed key/value pairs into a gval boolean expression
// over named variables, e.g. [k="a"][k2="b"] -> `k == "a" && k2 == "b"`.
func buildExpr(kvs []kv) string {
	parts := make([]string, len(kvs))
	for i, p := range kvs {
		parts[i] = fmt.Sprintf("%s == %q", p.Name, p.Value)
	}
	return strings.Join(parts, " && ")
}

// MatchesKeyPredicate evaluates whether candidate, a list-entry element
// whose key leaves are keyLeaves, satisfies the key predicate expr
// ("[k=v]..."). Evaluation is delegated to gval so the predicate language
// can grow (numeric/string comparisons, boolean combinators) without the
// matcher growing a hand-rolled parser for it.
func MatchesKeyPredicate(candidate *xmlnode.Node, keyLeaves []string, expr string) (bool, error) {
	kvs, err := ParseKeyPredicate(expr)
	if err != nil {
		return false, err
	}
	vars := make(map[string]interface{}, len(keyLeaves))
	for _, c := range candidate.ElementChildren() {
		for _, kl := range keyLeaves {
			if c.Name == kl {
				if body, ok := c.Body(); ok {
					vars[kl] = body
				}
			}
		}
	}
	result, err := gval.Evaluate(buildExpr(kvs), vars)
	if err != nil {
		return false, err
	}
	b, _ := result.(bool)
	return b, nil
}

// FindAnchor locates, among an ordered-by-user parent's already-present
// element children sharing childName, the one satisfying spec's anchor
// (a key predicate for lists, a literal value for leaf-lists). Returns its
// index in parent.Children, or -1 with ok=false if no sibling matches
// (spec: "If no match, this is an invalid argument").
func FindAnchor(parent *xmlnode.Node, childName string, keyLeaves []string, spec Spec) (int, bool) {
	for i, c := range parent.Children {
		if c.Kind != xmlnode.Element || c.Name != childName {
			continue
		}
		if len(keyLeaves) > 0 {
			ok, err := MatchesKeyPredicate(c, keyLeaves, spec.KeyExpr)
			if err == nil && ok {
				return i, true
			}
			continue
		}
		if body, ok := c.Body(); ok && body == spec.Value {
			return i, true
		}
	}
	return -1, false
}

// Place inserts child into parent's children at the position spec
// describes, for ordered-by-user lists/leaf-lists. WhereNone and WhereLast
// append child as parent's last child; before/after fail when no sibling
// matches the anchor.
func Place(parent, child *xmlnode.Node, keyLeaves []string, spec Spec) error {
	switch spec.Where {
	case WhereNone, WhereLast:
		parent.AppendChild(child)
		return nil
	case WhereFirst:
		parent.InsertChildAt(0, child)
		return nil
	case WhereBefore, WhereAfter:
		idx, ok := FindAnchor(parent, child.Name, keyLeaves, spec)
		if !ok {
			return fmt.Errorf("insert anchor not found for %q", child.Name)
		}
		if spec.Where == WhereAfter {
			idx++
		}
		parent.InsertChildAt(idx, child)
		return nil
	default:
		parent.AppendChild(child)
		return nil
	}
}

// ParseSpec builds a Spec from the raw insert/key/value attribute strings
// read off a modification element by the attribute reader.
func ParseSpec(insert string, key string, value string) (Spec, bool) {
	w, ok := parseWhere(insert)
	if !ok {
		return Spec{}, false
	}
	return Spec{Where: w, KeyExpr: key, Value: value}, true
}
