package modify

import (
	"github.com/neoul/confd/internal/schema"
	"github.com/neoul/confd/internal/xmlnode"
)

// MatchChild is the exported form of matchChild, used by the top-level put
// driver to locate each x1 child's corresponding x0 child before the first
// recursive Modify call (spec section 4.6).
func MatchChild(x0Parent *xmlnode.Node, x1Child *xmlnode.Node, yChild *schema.Node) *xmlnode.Node {
	return matchChild(x0Parent, x1Child, yChild)
}

// matchChild locates, among x0Parent's existing element children, the one
// that corresponds to x1Child under yChild's keying rule: key-leaf equality
// for a list entry, value equality for a leaf-list entry, name equality
// otherwise (spec section 4.5, "two-pass child processing", pass one).
//
// A same-named child bound to a different schema node than yChild (a choice
// alternative being replaced by its sibling case) is purged and nil is
// returned so the caller materializes a fresh node.
func matchChild(x0Parent *xmlnode.Node, x1Child *xmlnode.Node, yChild *schema.Node) *xmlnode.Node {
	if x0Parent == nil {
		return nil
	}
	switch {
	case yChild.IsList():
		keys := yChild.KeyLeaves()
		for _, c := range x0Parent.Children {
			if c.Kind != xmlnode.Element || c.Name != x1Child.Name {
				continue
			}
			if c.Schema != nil && c.Schema != yChild {
				c.Purge()
				return nil
			}
			if keysEqual(c, x1Child, keys) {
				return c
			}
		}
		return nil
	case yChild.IsLeafList():
		want, _ := x1Child.Body()
		for _, c := range x0Parent.Children {
			if c.Kind != xmlnode.Element || c.Name != x1Child.Name {
				continue
			}
			if c.Schema != nil && c.Schema != yChild {
				c.Purge()
				return nil
			}
			if got, ok := c.Body(); ok && got == want {
				return c
			}
		}
		return nil
	default:
		for _, c := range x0Parent.Children {
			if c.Kind != xmlnode.Element || c.Name != x1Child.Name {
				continue
			}
			if c.Schema != nil && c.Schema != yChild {
				c.Purge()
				return nil
			}
			return c
		}
		return nil
	}
}

// keysEqual reports whether candidate and target, both list-entry elements,
// agree on every key leaf's body text.
func keysEqual(candidate, target *xmlnode.Node, keys []string) bool {
	cv := keyValues(candidate, keys)
	tv := keyValues(target, keys)
	for _, k := range keys {
		if cv[k] != tv[k] {
			return false
		}
	}
	return true
}

func keyValues(n *xmlnode.Node, keys []string) map[string]string {
	out := make(map[string]string, len(keys))
	for _, c := range n.ElementChildren() {
		for _, k := range keys {
			if c.Name == k {
				if body, ok := c.Body(); ok {
					out[k] = body
				}
			}
		}
	}
	return out
}

// schemaIndex returns y's position among its schema siblings, used to keep
// non-user-ordered children in canonical schema order on insertion.
func schemaIndex(y *schema.Node) int {
	if y == nil || y.Parent == nil {
		return 0
	}
	for i, c := range y.Parent.Children {
		if c == y {
			return i
		}
	}
	return 0
}

// insertCanonical inserts child among parent's children at the position
// matching y's schema order, for nodes that are not ordered-by-user.
func insertCanonical(parent, child *xmlnode.Node, y *schema.Node) {
	ci := schemaIndex(y)
	for i, c := range parent.Children {
		if c.Kind != xmlnode.Element || c.Schema == nil {
			continue
		}
		if schemaIndex(c.Schema) > ci {
			parent.InsertChildAt(i, child)
			return
		}
	}
	parent.AppendChild(child)
}

// placeChild inserts a freshly created child into parent, honoring
// ordered-by-user positioning when an insert attribute is present, falling
// back to "last" for ordered-by-user with none given, and to canonical
// schema order otherwise.
func placeChild(parent, child *xmlnode.Node, y *schema.Node, spec Spec, hasInsert bool) error {
	if y.IsOrderedByUser() {
		if hasInsert {
			return Place(parent, child, y.KeyLeaves(), spec)
		}
		parent.AppendChild(child)
		return nil
	}
	insertCanonical(parent, child, y)
	return nil
}
