package xmlnode

import "github.com/google/go-cmp/cmp"

// Equal reports whether a and b carry the same element/body data, ignoring
// attributes (namespace bindings and NETCONF base-namespace overrides carry
// no data of their own) and schema/flag bookkeeping. Used by the anyxml/
// anydata whole-subtree replacement to treat a merge of identical content as
// a no-op, the way a literal diff of the opaque payload would.
func Equal(a, b *Node) bool {
	return cmp.Equal(normalizeForEqual(a), normalizeForEqual(b))
}

func normalizeForEqual(n *Node) *Node {
	if n == nil {
		return nil
	}
	cp := &Node{Kind: n.Kind, Name: n.Name, Value: n.Value}
	for _, c := range n.Children {
		if c.Kind == Attribute {
			continue
		}
		cp.Children = append(cp.Children, normalizeForEqual(c))
	}
	return cp
}
