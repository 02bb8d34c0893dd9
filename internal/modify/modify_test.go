package modify

import (
	"testing"

	"github.com/openconfig/goyang/pkg/yang"

	"github.com/neoul/confd/internal/nacm"
	"github.com/neoul/confd/internal/schema"
	"github.com/neoul/confd/internal/xmlnode"
)

// exSchema builds the schema from spec section 8's worked example:
//
//	container c {
//	  leaf a { type string; default "d"; }
//	  leaf-list ll { ordered-by user; type string; }
//	  list L { key "k"; leaf k { type string; } leaf v { type string; } }
//	  leaf id { type identityref; }
//	}
func exSchema(t *testing.T) (root, c, a, ll, l, id *schema.Node) {
	t.Helper()
	configEntry := &yang.Entry{Name: "config", Kind: yang.DirectoryEntry, Dir: map[string]*yang.Entry{}}
	cEntry := &yang.Entry{Name: "c", Kind: yang.DirectoryEntry, Dir: map[string]*yang.Entry{}}
	aEntry := &yang.Entry{Name: "a", Kind: yang.LeafEntry, Default: "d", Type: &yang.YangType{Kind: yang.Ystring}}
	llEntry := &yang.Entry{
		Name: "ll", Kind: yang.LeafEntry, Type: &yang.YangType{Kind: yang.Ystring},
		ListAttr: &yang.ListAttr{OrderedBy: &yang.Value{Name: "user"}},
	}
	lEntry := &yang.Entry{
		Name: "L", Kind: yang.DirectoryEntry, Key: "k", Dir: map[string]*yang.Entry{},
		ListAttr: &yang.ListAttr{},
	}
	kEntry := &yang.Entry{Name: "k", Kind: yang.LeafEntry, Type: &yang.YangType{Kind: yang.Ystring}}
	vEntry := &yang.Entry{Name: "v", Kind: yang.LeafEntry, Type: &yang.YangType{Kind: yang.Ystring}}
	idEntry := &yang.Entry{Name: "id", Kind: yang.LeafEntry, Type: &yang.YangType{Kind: yang.Yidentityref}}

	lEntry.Dir["k"] = kEntry
	lEntry.Dir["v"] = vEntry
	cEntry.Dir["a"] = aEntry
	cEntry.Dir["ll"] = llEntry
	cEntry.Dir["L"] = lEntry
	cEntry.Dir["id"] = idEntry
	configEntry.Dir["c"] = cEntry

	rootNode, err := schema.Build(configEntry, nil)
	if err != nil {
		t.Fatalf("schema.Build() error: %v", err)
	}
	cNode, _ := rootNode.ChildByName("c")
	aNode, _ := cNode.ChildByName("a")
	llNode, _ := cNode.ChildByName("ll")
	lNode, _ := cNode.ChildByName("L")
	idNode, _ := cNode.ChildByName("id")
	return rootNode, cNode, aNode, llNode, lNode, idNode
}

func mergeLeaf(name, body string) *xmlnode.Node {
	n := xmlnode.New(name)
	n.SetBody(body)
	return n
}

func TestModifyCreateDefaultValueIsStillWritten(t *testing.T) {
	// Default stripping is a datastore-level post-processing concern (spec
	// section 4.6 steps 3-4); Modify itself always materializes the value.
	_, _, a, _, _, _ := exSchema(t)
	cNode := xmlnode.New("c")
	x1 := mergeLeaf("a", "d")
	ctx := &Context{User: "alice"}

	res, yerrv := Modify(ctx, nil, cNode, x1, a, OpMerge, false)
	if yerrv != nil {
		t.Fatalf("Modify() error: %v", yerrv)
	}
	body, _ := res.Node.Body()
	if body != "d" {
		t.Fatalf("res.Node.Body() = %q, want d", body)
	}
}

func TestModifyUserOrderedInsertBefore(t *testing.T) {
	_, _, _, ll, _, _ := exSchema(t)
	cNode := xmlnode.New("c")
	x := xmlnode.New("ll")
	x.SetBody("x")
	x.Schema = ll
	z := xmlnode.New("ll")
	z.SetBody("z")
	z.Schema = ll
	cNode.AppendChild(x)
	cNode.AppendChild(z)

	x1 := xmlnode.New("ll")
	x1.SetBody("y")
	x1.AppendChild(&xmlnode.Node{Kind: xmlnode.Attribute, Prefix: "xmlns", Name: "y", Value: xmlnode.YangXMLNS})
	x1.AppendChild(&xmlnode.Node{Kind: xmlnode.Attribute, Prefix: "y", Name: "insert", Value: "before"})
	x1.AppendChild(&xmlnode.Node{Kind: xmlnode.Attribute, Prefix: "y", Name: "value", Value: "z"})

	ctx := &Context{User: "alice"}
	_, yerrv := Modify(ctx, nil, cNode, x1, ll, OpMerge, false)
	if yerrv != nil {
		t.Fatalf("Modify() error: %v", yerrv)
	}
	var order []string
	for _, c := range cNode.ElementChildren() {
		body, _ := c.Body()
		order = append(order, body)
	}
	want := []string{"x", "y", "z"}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestModifyDeleteAbsentIsDataMissing(t *testing.T) {
	_, _, a, _, _, _ := exSchema(t)
	cNode := xmlnode.New("c")
	x1 := xmlnode.New("a")
	ctx := &Context{User: "alice"}

	_, yerrv := Modify(ctx, nil, cNode, x1, a, OpDelete, false)
	if yerrv == nil {
		t.Fatalf("Modify() error = nil, want data-missing")
	}
	if got := yerrv.Tag.String(); got != "data-missing" {
		t.Fatalf("Tag = %q, want data-missing", got)
	}
}

func TestModifyCreateOverExistingIsDataExists(t *testing.T) {
	_, _, _, _, l, _ := exSchema(t)
	cNode := xmlnode.New("c")
	x0 := listEntry("1", "1")
	x0.Schema = l
	cNode.AppendChild(x0)

	x1 := listEntry("1", "2")
	ctx := &Context{User: "alice"}

	_, yerrv := Modify(ctx, x0, cNode, x1, l, OpCreate, false)
	if yerrv == nil {
		t.Fatalf("Modify() error = nil, want data-exists")
	}
	if got := yerrv.Tag.String(); got != "data-exists" {
		t.Fatalf("Tag = %q, want data-exists", got)
	}
}

func TestModifyIdentityrefGraftsNamespace(t *testing.T) {
	_, _, _, _, _, id := exSchema(t)
	cNode := xmlnode.New("c")

	x1 := xmlnode.New("id")
	x1.AppendChild(&xmlnode.Node{Kind: xmlnode.Attribute, Prefix: "xmlns", Name: "other", Value: "urn:other"})
	x1.SetBody("other:id2")

	ctx := &Context{User: "alice"}
	res, yerrv := Modify(ctx, nil, cNode, x1, id, OpMerge, false)
	if yerrv != nil {
		t.Fatalf("Modify() error: %v", yerrv)
	}
	if uri, ok := xmlnode.Resolve(res.Node, "other"); !ok || uri != "urn:other" {
		t.Fatalf("Resolve(res.Node, other) = (%q, %v), want (urn:other, true)", uri, ok)
	}
}

func TestModifyNACMDenyOnUpdate(t *testing.T) {
	_, _, a, _, _, _ := exSchema(t)
	configNode := xmlnode.New("config")
	cNode := xmlnode.New("c")
	configNode.AppendChild(cNode)
	x0 := mergeLeaf("a", "x")
	x0.Schema = a
	cNode.AppendChild(x0)

	policy := &nacm.Policy{
		Enabled: true,
		Groups:  []*nacm.Group{{Name: "g", Users: map[string]bool{"alice": true}}},
		Rules: []*nacm.Rule{
			{Path: []string{"c", "a"}, Actions: map[nacm.Action]bool{nacm.ActionUpdate: true}, Effect: nacm.EffectDeny},
		},
		DefaultEffect: nacm.EffectPermit,
	}
	ctx := &Context{User: "alice", Policy: policy}

	x1 := mergeLeaf("a", "y")
	_, yerrv := Modify(ctx, x0, cNode, x1, a, OpMerge, false)
	if yerrv == nil {
		t.Fatalf("Modify() error = nil, want access-denied")
	}
	if got := yerrv.Tag.String(); got != "access-denied" {
		t.Fatalf("Tag = %q, want access-denied", got)
	}
	body, _ := x0.Body()
	if body != "x" {
		t.Fatalf("x0.Body() = %q, want unchanged x", body)
	}
}

func TestModifyOpNoneSkipsNACMOnLeaf(t *testing.T) {
	// spec section 4.5: ambient op=none only tags freshly materialized
	// skeletons for later pruning; it must never be checked against NACM,
	// since it isn't a real mutation a policy was written to govern.
	_, _, a, _, _, _ := exSchema(t)
	configNode := xmlnode.New("config")
	cNode := xmlnode.New("c")
	configNode.AppendChild(cNode)
	policy := &nacm.Policy{
		Enabled: true,
		Groups:  []*nacm.Group{{Name: "g", Users: map[string]bool{"alice": true}}},
		Rules: []*nacm.Rule{
			{Path: []string{"c", "a"}, Actions: map[nacm.Action]bool{nacm.ActionCreate: true}, Effect: nacm.EffectDeny},
		},
		DefaultEffect: nacm.EffectPermit,
	}
	ctx := &Context{User: "alice", Policy: policy}

	x1 := mergeLeaf("a", "x")
	res, yerrv := Modify(ctx, nil, cNode, x1, a, OpNone, false)
	if yerrv != nil {
		t.Fatalf("Modify() error: %v, want none (op=none must bypass NACM)", yerrv)
	}
	if !res.Node.HasFlag(xmlnode.FlagNone) {
		t.Fatalf("res.Node should carry the none flag")
	}
}

func TestModifyOpNoneDoesNotGrantDescendantPermit(t *testing.T) {
	// A real edit nested under op=none ancestors must still be checked: the
	// permit a none-tagged container would otherwise grant must not leak to
	// its children (spec section 4.5).
	root, c, a, _, _, _ := exSchema(t)
	_ = root
	rootNode := xmlnode.New("config")

	policy := &nacm.Policy{
		Enabled: true,
		Groups:  []*nacm.Group{{Name: "g", Users: map[string]bool{"alice": true}}},
		Rules: []*nacm.Rule{
			{Path: []string{"c", "a"}, Actions: map[nacm.Action]bool{nacm.ActionCreate: true}, Effect: nacm.EffectDeny},
		},
		DefaultEffect: nacm.EffectPermit,
	}
	ctx := &Context{User: "alice", Policy: policy}

	x1c := xmlnode.New("c")
	x1a := mergeLeaf("a", "y")
	x1a.AppendChild(&xmlnode.Node{Kind: xmlnode.Attribute, Prefix: "xmlns", Name: "op", Value: xmlnode.NetconfBaseNS})
	x1a.AppendChild(&xmlnode.Node{Kind: xmlnode.Attribute, Prefix: "op", Name: "operation", Value: "merge"})
	x1c.AppendChild(x1a)

	_, yerrv := Modify(ctx, nil, rootNode, x1c, c, OpNone, false)
	if yerrv == nil {
		t.Fatalf("Modify() error = nil, want access-denied on the real descendant edit")
	}
	if got := yerrv.Tag.String(); got != "access-denied" {
		t.Fatalf("Tag = %q, want access-denied", got)
	}
}

func TestModifyRemoveIsIdempotent(t *testing.T) {
	_, _, a, _, _, _ := exSchema(t)
	cNode := xmlnode.New("c")
	x0 := mergeLeaf("a", "x")
	x0.Schema = a
	cNode.AppendChild(x0)
	ctx := &Context{User: "alice"}

	x1 := mergeLeaf("a", "x")
	if _, yerrv := Modify(ctx, x0, cNode, x1, a, OpRemove, false); yerrv != nil {
		t.Fatalf("Modify() first remove error: %v", yerrv)
	}
	if len(cNode.ElementChildren()) != 0 {
		t.Fatalf("first remove did not purge a")
	}
	// second remove, now against an absent target, must also succeed
	x1b := mergeLeaf("a", "x")
	if _, yerrv := Modify(ctx, nil, cNode, x1b, a, OpRemove, false); yerrv != nil {
		t.Fatalf("Modify() second remove error: %v", yerrv)
	}
}
