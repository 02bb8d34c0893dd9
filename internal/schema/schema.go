// Package schema implements the YANG lookup component: resolving child
// schema nodes by (module, local-name), and answering keyword, ordering,
// default-value and key-leaf questions about a loaded YANG spec.
//
// Parsing .yang text is an external collaborator per the core's scope; this
// package wraps goyang's already-parsed *yang.Entry tree the way the
// teacher's schema.go wraps it, but keeps only what the write engine needs.
package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openconfig/goyang/pkg/yang"
)

// Node is a schema node: a container, list, leaf, leaf-list, anyxml or
// anydata data node, or the synthetic root.
type Node struct {
	*yang.Entry
	Parent        *Node
	Module        *yang.Module
	Children      []*Node
	byName        map[string]*Node
	Keyname       []string
	OrderedByUser bool
	IsRoot        bool
	IsKey         bool
	Synthetic     bool // true for anydata nodes manufactured for unknown-as-anydata
}

func (n *Node) String() string {
	if n == nil {
		return "<nil>"
	}
	return n.Name
}

// Namespace returns the XML namespace URI of the node's owning module.
func (n *Node) Namespace() string {
	if n == nil || n.Module == nil || n.Module.Namespace == nil {
		return ""
	}
	return n.Module.Namespace.Name
}

// ModuleName returns the name of the node's owning YANG module.
func (n *Node) ModuleName() string {
	if n == nil || n.Module == nil {
		return ""
	}
	return n.Module.Name
}

// ChildByName resolves a child schema node by its local (unprefixed) name,
// the way YANG data-node scoping does: siblings in the same or submodule
// namespace share a flat name space under their parent.
func (n *Node) ChildByName(local string) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	c, ok := n.byName[local]
	return c, ok
}

// ChildByQName resolves a child by (module-name, local-name), used when the
// modification tree names its child with an explicit module prefix.
func (n *Node) ChildByQName(module, local string) (*Node, bool) {
	if n == nil {
		return nil, false
	}
	if c, ok := n.byName[module+":"+local]; ok {
		return c, true
	}
	return n.ChildByName(local)
}

// KeyLeaves returns the ordered key leaf names of a list node, or nil.
func (n *Node) KeyLeaves() []string { return n.Keyname }

// IsOrderedByUser reports whether a list or leaf-list preserves insertion order.
func (n *Node) IsOrderedByUser() bool { return n.OrderedByUser }

// IsLeaf reports whether the node is a YANG leaf.
func (n *Node) IsLeaf() bool { return n.Entry != nil && n.Entry.IsLeaf() }

// IsLeafList reports whether the node is a YANG leaf-list.
func (n *Node) IsLeafList() bool { return n.Entry != nil && n.Entry.IsLeafList() }

// IsList reports whether the node is a YANG list.
func (n *Node) IsList() bool { return n.Entry != nil && n.Entry.IsList() }

// IsContainer reports whether the node is a YANG container.
func (n *Node) IsContainer() bool {
	return n.Entry != nil && n.Entry.IsContainer()
}

// IsAnyXML reports whether the node is anyxml.
func (n *Node) IsAnyXML() bool {
	return n.Entry != nil && n.Entry.Kind == yang.AnyXMLEntry
}

// IsAnyData reports whether the node is anydata.
func (n *Node) IsAnyData() bool {
	return n.Entry != nil && n.Entry.Kind == yang.AnyDataEntry
}

// IsLeafOrLeafList reports whether the dispatch in the modification engine
// should take the leaf/leaf-list branch.
func (n *Node) IsLeafOrLeafList() bool { return n.IsLeaf() || n.IsLeafList() }

// DefaultValue returns the schema default and whether one is defined.
func (n *Node) DefaultValue() (string, bool) {
	if n == nil || n.Entry == nil || n.Entry.Default == "" {
		return "", false
	}
	return n.Entry.Default, true
}

// IsNoPresenceContainer reports whether the container conveys no data by
// its mere presence (no "presence" statement), eligible for default
// stripping when it ends up empty.
func (n *Node) IsNoPresenceContainer() bool {
	if n == nil || n.Entry == nil || !n.Entry.IsContainer() {
		return false
	}
	return n.Entry.Presence == ""
}

// Type returns the resolved YANG type of a leaf/leaf-list node.
func (n *Node) Type() *yang.YangType {
	if n == nil || n.Entry == nil {
		return nil
	}
	return n.Entry.Type
}

// build recursively wraps a *yang.Entry tree into schema.Node, the way
// buildSchemaNode in the teacher's schema.go does, trimmed to the fields
// the write engine consults.
func build(e *yang.Entry, baseModule *yang.Module, parent *Node, ms *yang.Modules) (*Node, error) {
	n := &Node{
		Entry:  e,
		Parent: parent,
		byName: map[string]*Node{},
	}
	n.Module = moduleOf(e, baseModule, ms)
	if e.ListAttr != nil && e.ListAttr.OrderedBy != nil && e.ListAttr.OrderedBy.Name == "user" {
		n.OrderedByUser = true
	}
	if e.Key != "" {
		n.Keyname = strings.Split(e.Key, " ")
	}
	if parent != nil {
		parent.Children = append(parent.Children, n)
		parent.byName[e.Name] = n
		if n.Module != nil {
			parent.byName[n.Module.Name+":"+e.Name] = n
		}
		for _, k := range parent.Keyname {
			if k == e.Name {
				n.IsKey = true
			}
		}
	}
	names := make([]string, 0, len(e.Dir))
	for name := range e.Dir {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, err := build(e.Dir[name], n.Module, n, ms); err != nil {
			return nil, err
		}
	}
	return n, nil
}

func moduleOf(e *yang.Entry, base *yang.Module, ms *yang.Modules) *yang.Module {
	if e.Node != nil {
		if parts := strings.SplitN(e.Node.NName(), ":", 2); len(parts) > 1 {
			return yang.FindModuleByPrefix(base, parts[0])
		}
	}
	if base != nil {
		return base
	}
	if ms != nil {
		if ns := e.Namespace(); ns != nil && ns.Name != "" {
			if m, _ := ms.FindModuleByNamespace(ns.Name); m != nil {
				return m
			}
		}
	}
	return nil
}

// Build wraps a top-level *yang.Entry (conventionally the "config" data
// node produced by goyang) into a schema.Node tree. The caller is expected
// to have already parsed the YANG modules; this is a thin adapter, not a
// parser.
func Build(root *yang.Entry, ms *yang.Modules) (*Node, error) {
	n, err := build(root, nil, nil, ms)
	if err != nil {
		return nil, err
	}
	n.IsRoot = true
	return n, nil
}

// NewSyntheticAnyData attaches a synthetic anydata schema child for an
// element the schema does not know about, used when unknown-as-anydata is
// enabled (spec section 4.3).
func NewSyntheticAnyData(parent *Node, name string) *Node {
	n := &Node{
		Entry:     &yang.Entry{Name: name, Kind: yang.AnyDataEntry},
		Parent:    parent,
		Module:    parent.Module,
		byName:    map[string]*Node{},
		Synthetic: true,
	}
	parent.Children = append(parent.Children, n)
	parent.byName[name] = n
	return n
}

// ValueFromString returns the body string for the leaf's resolved type. It
// performs no conversion or validation: every type, including each member
// of a union, yields s unchanged.
func ValueFromString(n *Node, s string) (interface{}, error) {
	typ := n.Type()
	if typ == nil {
		return s, nil
	}
	return valueStringToValue(n, typ, s)
}

func valueStringToValue(n *Node, typ *yang.YangType, s string) (interface{}, error) {
	switch typ.Kind {
	case yang.Yunion:
		var lastErr error
		for _, t := range typ.Type {
			v, err := valueStringToValue(n, t, s)
			if err == nil {
				return v, nil
			}
			lastErr = err
		}
		return nil, lastErr
	case yang.Yidentityref:
		return s, nil
	default:
		return s, nil
	}
}

// EnumOrBitValid reports whether s is a defined enum/bits value of typ.
func EnumOrBitValid(typ *yang.YangType, s string) bool {
	switch typ.Kind {
	case yang.Yenum:
		return typ.Enum != nil && typ.Enum.Value(s) != nil
	case yang.Ybits:
		return typ.Bit != nil && typ.Bit.Value(s) != nil
	}
	return false
}

// IsIdentityref reports whether typ resolves to identityref (following unions).
func IsIdentityref(typ *yang.YangType) bool {
	if typ == nil {
		return false
	}
	if typ.Kind == yang.Yidentityref {
		return true
	}
	if typ.Kind == yang.Yunion {
		for _, t := range typ.Type {
			if IsIdentityref(t) {
				return true
			}
		}
	}
	return false
}

// ErrUnknownElement is a sentinel for callers of ChildByName that want an
// error rather than a bool; no function in this package returns it.
var ErrUnknownElement = fmt.Errorf("unknown schema element")
