package datastore

import "github.com/neoul/confd/internal/xmlnode"

// ModuleState describes one loaded YANG module for the module-state
// annotation prepended to a persisted datastore file (spec section 4.6
// step 6, section 6 "xmldb-modstate").
type ModuleState struct {
	Name             string
	Revision         string
	Namespace        string
	ConformanceType  string
}

const modStateElementName = "modules-state"

// prependModState builds a "modules-state" element listing modules and
// inserts it as root's first child.
func prependModState(root *xmlnode.Node, modules []ModuleState) {
	ms := xmlnode.New(modStateElementName)
	for _, m := range modules {
		mod := xmlnode.New("module")
		addLeaf(mod, "name", m.Name)
		addLeaf(mod, "revision", m.Revision)
		addLeaf(mod, "namespace", m.Namespace)
		addLeaf(mod, "conformance-type", m.ConformanceType)
		ms.AppendChild(mod)
	}
	root.InsertChildAt(0, ms)
}

func addLeaf(parent *xmlnode.Node, name, value string) {
	leaf := xmlnode.New(name)
	leaf.SetBody(value)
	parent.AppendChild(leaf)
}

// removeModState detaches the modules-state subtree, if present, so the
// in-memory tree holds only configuration data (spec section 4.6 step 8).
func removeModState(root *xmlnode.Node) {
	for _, c := range root.Children {
		if c.Kind == xmlnode.Element && c.Name == modStateElementName {
			c.Purge()
			return
		}
	}
}
