package xmlnode

import (
	"fmt"
	"strings"
)

// xmlnsAttrName is the attribute name used for the default namespace
// binding; named bindings use "xmlns" as the Prefix with Name = the bound
// prefix, i.e. xmlns:foo="..." is stored as an attribute named "foo" whose
// Prefix is "xmlns".
const xmlnsAttrName = "xmlns"

// Resolve walks from node toward the root looking for an xmlns (default, if
// prefix is "") or xmlns:prefix binding, returning the nearest one. This is
// the namespace resolver of spec section 4.2.
func Resolve(node *Node, prefix string) (string, bool) {
	for n := node; n != nil; n = n.Parent {
		for _, a := range n.Children {
			if a.Kind != Attribute {
				continue
			}
			if prefix == "" && a.Prefix == "" && a.Name == xmlnsAttrName {
				return a.Value, true
			}
			if prefix != "" && a.Prefix == xmlnsAttrName && a.Name == prefix {
				return a.Value, true
			}
		}
	}
	return "", false
}

// bind adds an xmlns (or xmlns:prefix) attribute to node.
func bind(node *Node, prefix, uri string) {
	if prefix == "" {
		node.SetAttr(xmlnsAttrName, uri)
		return
	}
	node.AppendChild(&Node{Kind: Attribute, Prefix: xmlnsAttrName, Name: prefix, Value: uri})
}

// AssignElement ensures every prefix used on dst (its own element prefix,
// and any attribute prefixes it carries) resolves under dstParent, adding an
// xmlns/xmlns:prefix attribute sourced from src's namespace context when it
// doesn't. A prefix bound to two different URIs between src and the
// existing dstParent context is a fatal namespace collision, never silently
// rewritten (spec section 4.5, "namespace-assignment collisions").
func AssignElement(src, dst, dstParent *Node) error {
	prefixes := map[string]bool{dst.Prefix: true}
	for _, a := range dst.Children {
		if a.Kind == Attribute && a.Prefix != xmlnsAttrName && a.Name != xmlnsAttrName {
			prefixes[a.Prefix] = true
		}
	}
	for prefix := range prefixes {
		if _, ok := Resolve(dstParent, prefix); ok {
			continue
		}
		uri, ok := Resolve(src, prefix)
		if !ok {
			continue // the prefix isn't namespace-qualified in the source context either
		}
		if existing, ok := Resolve(dst, prefix); ok && existing != uri {
			return fmt.Errorf("namespace collision for prefix %q: %q vs %q", prefix, existing, uri)
		}
		bind(dst, prefix, uri)
	}
	return nil
}

// AssignBody handles identityref-like body text of the form "prefix:local":
// it ensures prefix resolves in dst's context, grafting an xmlns attribute
// from src's context if dst doesn't already bind it.
func AssignBody(src *Node, bodyText string, dst *Node) error {
	prefix, _ := splitQName(bodyText)
	if prefix == "" {
		return nil
	}
	if _, ok := Resolve(dst, prefix); ok {
		return nil
	}
	uri, ok := Resolve(src, prefix)
	if !ok {
		return nil // nothing to copy; a later validation stage will reject an unresolvable identity
	}
	bind(dst, prefix, uri)
	return nil
}

// ReferencedPrefixes extracts every "prefix:" occurrence in s, the set of
// prefixes a body or attribute value may reference (e.g. NACM paths that
// embed namespace-prefixed node names), so their bindings can be copied
// alongside a grafted body.
func ReferencedPrefixes(s string) []string {
	var out []string
	seen := map[string]bool{}
	for _, tok := range strings.FieldsFunc(s, func(r rune) bool {
		return r == '/' || r == '[' || r == ']' || r == ' ' || r == '='
	}) {
		if p, _ := splitQName(tok); p != "" && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	return out
}

// CopyReferencedNamespaces copies xmlns bindings for every prefix referenced
// in bodyText from src's context into dst's, used for non-identityref
// bodies (e.g. NACM paths) that still rely on prefixes resolving correctly
// after a graft.
func CopyReferencedNamespaces(src *Node, bodyText string, dst *Node) error {
	for _, prefix := range ReferencedPrefixes(bodyText) {
		if _, ok := Resolve(dst, prefix); ok {
			continue
		}
		uri, ok := Resolve(src, prefix)
		if !ok {
			continue
		}
		bind(dst, prefix, uri)
	}
	return nil
}
