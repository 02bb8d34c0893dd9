package datastore

import (
	"encoding/json"
	"fmt"

	"github.com/neoul/confd/internal/config"
	"github.com/neoul/confd/internal/schema"
	"github.com/neoul/confd/internal/xmlnode"
)

// unmarshalInto reads the on-disk bytes of a datastore file into root's
// children, binding each element to its schema node as it goes. The
// serializer surface syntax is an external collaborator per scope; this is
// the minimal structural reader the cache layer needs for read-through.
func (s *Store) unmarshalInto(root *xmlnode.Node, data []byte) error {
	switch s.Opts.XMLDBFormat {
	case config.FormatJSON:
		return parseJSONInto(root, data, s.Schema)
	default:
		return parseXMLInto(root, data, s.Schema)
	}
}

func parseXMLInto(root *xmlnode.Node, data []byte, sch *schema.Node) error {
	parsed, err := xmlnode.Parse(data)
	if err != nil {
		return err
	}
	if parsed == nil {
		return nil
	}
	for _, c := range parsed.ElementChildren() {
		root.AppendChild(c)
	}
	bindSchema(root, sch)
	return nil
}

// bindSchema walks a freshly parsed tree attaching each element's schema
// node by name under its parent's schema.
func bindSchema(n *xmlnode.Node, parentSchema *schema.Node) {
	for _, c := range n.ElementChildren() {
		if parentSchema != nil {
			if yc, ok := parentSchema.ChildByName(c.Name); ok {
				c.Schema = yc
			}
		}
		bindSchema(c, c.Schema)
	}
}

func parseJSONInto(root *xmlnode.Node, data []byte, sch *schema.Node) error {
	var tree map[string]interface{}
	if err := json.Unmarshal(data, &tree); err != nil {
		return err
	}
	return buildFromJSON(root, tree, sch)
}

func buildFromJSON(parent *xmlnode.Node, tree map[string]interface{}, parentSchema *schema.Node) error {
	for name, v := range tree {
		var yc *schema.Node
		if parentSchema != nil {
			yc, _ = parentSchema.ChildByName(name)
		}
		switch val := v.(type) {
		case []interface{}:
			for _, item := range val {
				n := xmlnode.New(name)
				n.Schema = yc
				if err := fillJSONNode(n, item, yc); err != nil {
					return err
				}
				parent.AppendChild(n)
			}
		default:
			n := xmlnode.New(name)
			n.Schema = yc
			if err := fillJSONNode(n, val, yc); err != nil {
				return err
			}
			parent.AppendChild(n)
		}
	}
	return nil
}

func fillJSONNode(n *xmlnode.Node, v interface{}, yc *schema.Node) error {
	switch val := v.(type) {
	case map[string]interface{}:
		return buildFromJSON(n, val, yc)
	case string:
		n.SetBody(val)
		return nil
	case nil:
		return nil
	default:
		n.SetBody(fmt.Sprintf("%v", val))
		return nil
	}
}
