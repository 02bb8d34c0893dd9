package modify

import (
	"testing"

	"github.com/openconfig/goyang/pkg/yang"

	"github.com/neoul/confd/internal/schema"
	"github.com/neoul/confd/internal/xmlnode"
)

func anyDataSchema(t *testing.T) (cNode, blobNode *schema.Node) {
	t.Helper()
	configEntry := &yang.Entry{Name: "config", Kind: yang.DirectoryEntry, Dir: map[string]*yang.Entry{}}
	cEntry := &yang.Entry{Name: "c", Kind: yang.DirectoryEntry, Dir: map[string]*yang.Entry{}}
	blobEntry := &yang.Entry{Name: "blob", Kind: yang.AnyDataEntry}
	cEntry.Dir["blob"] = blobEntry
	configEntry.Dir["c"] = cEntry
	root, err := schema.Build(configEntry, nil)
	if err != nil {
		t.Fatalf("schema.Build() error: %v", err)
	}
	c, _ := root.ChildByName("c")
	blob, _ := c.ChildByName("blob")
	return c, blob
}

func TestModifyOpaqueReplacesWholeSubtree(t *testing.T) {
	_, blob := anyDataSchema(t)
	cNode := xmlnode.New("c")

	x1a := xmlnode.New("blob")
	inner := xmlnode.New("stat")
	inner.SetBody("1")
	x1a.AppendChild(inner)
	ctx := &Context{User: "alice"}

	res, yerrv := Modify(ctx, nil, cNode, x1a, blob, OpMerge, false)
	if yerrv != nil {
		t.Fatalf("Modify() first write error: %v", yerrv)
	}
	x0 := res.Node

	x1b := xmlnode.New("blob")
	inner2 := xmlnode.New("stat")
	inner2.SetBody("2")
	x1b.AppendChild(inner2)

	res2, yerrv := Modify(ctx, x0, cNode, x1b, blob, OpMerge, false)
	if yerrv != nil {
		t.Fatalf("Modify() replacement error: %v", yerrv)
	}
	if len(cNode.ElementChildren()) != 1 {
		t.Fatalf("replacing an anydata blob must not leave the old subtree behind, got %+v", cNode.ElementChildren())
	}
	body, _ := res2.Node.ElementChildren()[0].Body()
	if body != "2" {
		t.Fatalf("blob/stat body = %q, want 2", body)
	}
}

func TestModifyOpaqueIdempotentOnIdenticalContent(t *testing.T) {
	_, blob := anyDataSchema(t)
	cNode := xmlnode.New("c")

	x1 := xmlnode.New("blob")
	inner := xmlnode.New("stat")
	inner.SetBody("1")
	x1.AppendChild(inner)
	ctx := &Context{User: "alice"}

	res, yerrv := Modify(ctx, nil, cNode, x1, blob, OpMerge, false)
	if yerrv != nil {
		t.Fatalf("Modify() first write error: %v", yerrv)
	}
	x0 := res.Node

	same := xmlnode.New("blob")
	sameInner := xmlnode.New("stat")
	sameInner.SetBody("1")
	same.AppendChild(sameInner)

	res2, yerrv := Modify(ctx, x0, cNode, same, blob, OpMerge, false)
	if yerrv != nil {
		t.Fatalf("Modify() identical merge error: %v", yerrv)
	}
	if res2.Node != x0 {
		t.Fatalf("merging identical anydata content replaced the node instead of leaving it alone")
	}
	if len(cNode.ElementChildren()) != 1 {
		t.Fatalf("identical merge must not duplicate the subtree, got %+v", cNode.ElementChildren())
	}
}
