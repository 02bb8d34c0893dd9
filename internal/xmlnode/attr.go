package xmlnode

import (
	"github.com/neoul/confd/internal/yerr"
)

// Well-known namespaces consulted by the attribute reader (spec section 4.1).
const (
	NetconfBaseNS = "urn:ietf:params:xml:ns:netconf:base:1.0"
	YangXMLNS     = "urn:ietf:params:xml:ns:yang:1"
)

// ReadAttr returns the string value of the attribute named name on elem, if
// present and its prefix resolves to expectedNS (or to any namespace, when
// expectedNS is ""). It fails with a bad-attribute error if the attribute
// exists but its prefix does not resolve to any namespace in the ancestor
// chain. An unprefixed attribute is in no namespace (it does not take the
// default xmlns) and matches only when expectedNS is "".
func ReadAttr(elem *Node, name, expectedNS string) (string, bool, *yerr.Error) {
	a, ok := elem.Attr(name)
	if !ok {
		return "", false, nil
	}
	ns := ""
	if a.Prefix != "" {
		uri, resolved := Resolve(elem, a.Prefix)
		if !resolved {
			return "", false, yerr.Protocol(yerr.TagBadAttribute,
				"unresolved attribute prefix for %q (no namespace?)", name)
		}
		ns = uri
	}
	if expectedNS != "" && ns != expectedNS {
		return "", false, nil
	}
	return a.Value, true, nil
}

// Operation reads the NETCONF "operation" attribute, if present.
func Operation(elem *Node) (string, bool, *yerr.Error) {
	return ReadAttr(elem, "operation", NetconfBaseNS)
}

// Insert reads the YANG "insert" positioning attribute.
func Insert(elem *Node) (string, bool, *yerr.Error) {
	return ReadAttr(elem, "insert", YangXMLNS)
}

// Key reads the YANG "key" attribute (list positioning anchor).
func Key(elem *Node) (string, bool, *yerr.Error) {
	return ReadAttr(elem, "key", YangXMLNS)
}

// Value reads the YANG "value" attribute (leaf-list positioning anchor).
func Value(elem *Node) (string, bool, *yerr.Error) {
	return ReadAttr(elem, "value", YangXMLNS)
}

// ObjectCreate reads the patch-semantics "objectcreate" attribute. Its
// namespace is unspecified, so any prefix (or none) is accepted.
func ObjectCreate(elem *Node) (string, bool, *yerr.Error) {
	return ReadAttr(elem, "objectcreate", "")
}
