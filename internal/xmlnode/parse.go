package xmlnode

import (
	"encoding/xml"
	"io"
	"strings"
)

// Parse reads a structural XML document into a detached Node tree. Go's
// xml.Decoder resolves prefixed names to their bound URI itself (Name.Space
// holds the resolved namespace, not the literal prefix text); this parser
// re-expresses that resolution in our own model: an element's namespace
// becomes a default xmlns binding on that element, and a namespaced
// attribute gets a synthetic per-URI prefix bound on its owning element, so
// the namespace resolver in
// namespace.go (Resolve/AssignElement) works uniformly over nodes built by
// the parser and nodes built by the modification engine.
func Parse(data []byte) (*Node, error) {
	dec := xml.NewDecoder(strings.NewReader(string(data)))
	var root *Node
	var stack []*Node
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		switch t := tok.(type) {
		case xml.StartElement:
			n := New(t.Name.Local)
			if t.Name.Space != "" {
				n.SetAttr(xmlnsAttrName, t.Name.Space)
			}
			for _, a := range t.Attr {
				bindAttr(n, a)
			}
			if len(stack) == 0 {
				root = n
			} else {
				stack[len(stack)-1].AppendChild(n)
			}
			stack = append(stack, n)
		case xml.CharData:
			text := strings.TrimSpace(string(t))
			if text == "" || len(stack) == 0 {
				continue
			}
			cur := stack[len(stack)-1]
			if body, ok := cur.Body(); ok {
				cur.SetBody(body + text)
			} else {
				cur.SetBody(text)
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}
	return root, nil
}

// syntheticPrefix derives a stable, internal-only prefix name for a
// resolved namespace URI that had no literal prefix text surviving
// encoding/xml's own resolution.
func syntheticPrefix(uri string) string { return "_ns:" + uri }

func bindAttr(n *Node, a xml.Attr) {
	if a.Name.Space == "xmlns" {
		n.AppendChild(&Node{Kind: Attribute, Prefix: xmlnsAttrName, Name: a.Name.Local, Value: a.Value})
		return
	}
	if a.Name.Local == "xmlns" {
		n.SetAttr(xmlnsAttrName, a.Value)
		return
	}
	if a.Name.Space != "" {
		prefix := syntheticPrefix(a.Name.Space)
		if _, ok := Resolve(n, prefix); !ok {
			bind(n, prefix, a.Name.Space)
		}
		n.AppendChild(&Node{Kind: Attribute, Prefix: prefix, Name: a.Name.Local, Value: a.Value})
		return
	}
	n.AppendChild(&Node{Kind: Attribute, Name: a.Name.Local, Value: a.Value})
}
