package datastore

import (
	"encoding/json"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/neoul/confd/internal/config"
	"github.com/neoul/confd/internal/xmlnode"
)

// xmlElem is the generic encoding/xml shape an xmlnode.Node tree is
// converted to before marshalling: the surface XML syntax itself is an
// external collaborator per scope, so this is a minimal, structural
// round-trip, not a schema-typed encoder.
type xmlElem struct {
	XMLName  xml.Name
	Attrs    []xml.Attr `xml:",attr"`
	Body     string     `xml:",chardata"`
	Children []*xmlElem `xml:",any"`
}

func toXMLElem(n *xmlnode.Node) *xmlElem {
	e := &xmlElem{XMLName: xml.Name{Local: n.QName()}}
	for _, c := range n.Children {
		switch c.Kind {
		case xmlnode.Attribute:
			name := c.Name
			if c.Prefix != "" {
				name = c.Prefix + ":" + c.Name
			}
			e.Attrs = append(e.Attrs, xml.Attr{Name: xml.Name{Local: name}, Value: c.Value})
		case xmlnode.Body:
			e.Body = c.Value
		case xmlnode.Element:
			e.Children = append(e.Children, toXMLElem(c))
		}
	}
	return e
}

// toJSONTree mirrors the node into a map[string]interface{} for the JSON
// persistence format (spec section 6, "xmldb-format: json").
func toJSONTree(n *xmlnode.Node) interface{} {
	if body, ok := n.Body(); ok && len(n.ElementChildren()) == 0 {
		return body
	}
	out := map[string]interface{}{}
	groups := map[string][]*xmlnode.Node{}
	var order []string
	for _, c := range n.ElementChildren() {
		if _, ok := groups[c.Name]; !ok {
			order = append(order, c.Name)
		}
		groups[c.Name] = append(groups[c.Name], c)
	}
	sort.Strings(order)
	for _, name := range order {
		kids := groups[name]
		if len(kids) == 1 && !(kids[0].Schema != nil && kids[0].Schema.IsList()) && !(kids[0].Schema != nil && kids[0].Schema.IsLeafList()) {
			out[name] = toJSONTree(kids[0])
			continue
		}
		arr := make([]interface{}, len(kids))
		for i, k := range kids {
			arr[i] = toJSONTree(k)
		}
		out[name] = arr
	}
	return out
}

// Marshal renders root in the configured format, pretty-printed if
// requested (spec section 6).
func Marshal(root *xmlnode.Node, format config.Format, pretty bool) ([]byte, error) {
	switch format {
	case config.FormatJSON:
		tree := toJSONTree(root)
		if pretty {
			return json.MarshalIndent(tree, "", "  ")
		}
		return json.Marshal(tree)
	default:
		elem := toXMLElem(root)
		if pretty {
			return xml.MarshalIndent(elem, "", "  ")
		}
		return xml.Marshal(elem)
	}
}

// AtomicWrite writes data to path via write-to-temp-then-rename, the
// durability guarantee spec section 6 requires ("Write is atomic").
func AtomicWrite(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
