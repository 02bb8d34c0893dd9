package modify

import (
	"strings"

	log "github.com/golang/glog"

	"github.com/neoul/confd/internal/nacm"
	"github.com/neoul/confd/internal/schema"
	"github.com/neoul/confd/internal/xmlnode"
	"github.com/neoul/confd/internal/yerr"
)

// Context carries the per-put state threaded through every recursive
// Modify call: who is making the change, the NACM policy to consult, and
// the options affecting unknown-element handling.
type Context struct {
	User             string
	Policy           *nacm.Policy
	UnknownAsAnyData bool
}

// Result is what one Modify call reports back to its caller about the
// target node it produced (or left alone).
type Result struct {
	Node          *xmlnode.Node
	ObjectExisted bool // spec section 4.5 step 1: whether x0 existed before this call
}

// overrides is the per-node attribute-override state read off x1 in step 1.
type overrides struct {
	op              Op
	spec            Spec
	hasInsert       bool
	objectCreate    string
	hasObjectCreate bool
}

// readOverrides extracts the operation/insert/key/value/objectcreate
// attributes from x1 (spec section 4.1/4.5 step 1).
func readOverrides(x1 *xmlnode.Node, ambient Op) (overrides, *yerr.Error) {
	ov := overrides{op: ambient}
	if opStr, ok, err := xmlnode.Operation(x1); err != nil {
		return ov, err
	} else if ok {
		if parsed, ok := ParseOp(opStr); ok {
			ov.op = parsed
		}
	}
	insertStr, hasInsertAttr, err := xmlnode.Insert(x1)
	if err != nil {
		return ov, err
	}
	if hasInsertAttr {
		keyStr, _, err := xmlnode.Key(x1)
		if err != nil {
			return ov, err
		}
		valueStr, _, err := xmlnode.Value(x1)
		if err != nil {
			return ov, err
		}
		spec, ok := ParseSpec(insertStr, keyStr, valueStr)
		if !ok {
			return ov, yerr.Protocol(yerr.TagBadAttribute, "invalid insert value %q", insertStr)
		}
		if (spec.Where == WhereBefore || spec.Where == WhereAfter) && keyStr == "" && valueStr == "" {
			return ov, yerr.New(yerr.TagMissingAttribute, "insert=%s requires key or value", insertStr)
		}
		ov.spec = spec
		ov.hasInsert = true
	}
	if v, ok, err := xmlnode.ObjectCreate(x1); err != nil {
		return ov, err
	} else if ok {
		ov.objectCreate = v
		ov.hasObjectCreate = true
	}
	return ov, nil
}

// action infers the NACM action from whether a target previously existed
// and, for leaves, whether its body is actually changing.
func action(existed bool, bodyChanged bool) nacm.Action {
	if !existed {
		return nacm.ActionCreate
	}
	if bodyChanged {
		return nacm.ActionUpdate
	}
	return nacm.ActionUpdate
}

// Modify is the recursive diff/merge kernel (spec section 4.5). x0 may be
// nil (additive case). y is the schema node matching both x0 and x1.
// permit, when true, means an ancestor already satisfied NACM for this
// subtree and descendants inherit that permit.
func Modify(ctx *Context, x0 *xmlnode.Node, x0Parent *xmlnode.Node, x1 *xmlnode.Node, y *schema.Node, ambientOp Op, permit bool) (*Result, *yerr.Error) {
	ov, yerrv := readOverrides(x1, ambientOp)
	if yerrv != nil {
		return nil, yerrv
	}
	existed := x0 != nil
	if ov.hasObjectCreate && ov.objectCreate == "false" {
		if !existed || (y.IsNoPresenceContainer() && x0.HasFlag(xmlnode.FlagDefault)) {
			return nil, yerr.New(yerr.TagDataMissing, "object does not exist and objectcreate=false").WithPath(x1.Name)
		}
	}

	if y.IsLeafOrLeafList() {
		return modifyLeaf(ctx, x0, x0Parent, x1, y, ov, permit, existed)
	}
	return modifyBranch(ctx, x0, x0Parent, x1, y, ov, permit, existed)
}

func checkNACM(ctx *Context, permit bool, act nacm.Action, target *xmlnode.Node) *yerr.Error {
	if permit {
		return nil
	}
	d := nacm.Check(ctx.Policy, ctx.User, act, target)
	if !d.Permit {
		return d.Err
	}
	return nil
}

func modifyLeaf(ctx *Context, x0, x0Parent, x1 *xmlnode.Node, y *schema.Node, ov overrides, permit, existed bool) (*Result, *yerr.Error) {
	if y.IsLeaf() {
		for _, c := range x1.Children {
			if c.Kind == xmlnode.Element {
				return nil, yerr.Protocol(yerr.TagUnknownElement, "leaf %q has element children", x1.Name).WithPath(x1.Name)
			}
		}
	}
	if y.IsLeafList() && y.IsOrderedByUser() && ov.hasInsert && (ov.spec.Where == WhereBefore || ov.spec.Where == WhereAfter) && ov.spec.Value == "" {
		return nil, yerr.New(yerr.TagMissingAttribute, "leaf-list insert=%s requires value", ov.spec.Where).WithPath(x1.Name)
	}

	switch ov.op {
	case OpCreate:
		if existed {
			return nil, yerr.New(yerr.TagDataExists, "leaf %q already exists", x1.Name).WithPath(x1.Name)
		}
	case OpDelete:
		if !existed {
			return nil, yerr.New(yerr.TagDataMissing, "leaf %q does not exist", x1.Name).WithPath(x1.Name)
		}
		if err := checkNACM(ctx, permit, nacm.ActionDelete, x0); err != nil {
			return nil, err
		}
		x0.Purge()
		return &Result{Node: nil, ObjectExisted: true}, nil
	case OpRemove:
		if !existed {
			return &Result{ObjectExisted: false}, nil
		}
		newBody, hasNewBody := x1.Body()
		oldBody, _ := x0.Body()
		if !hasNewBody || newBody == oldBody {
			if err := checkNACM(ctx, permit, nacm.ActionDelete, x0); err != nil {
				return nil, err
			}
			x0.Purge()
		}
		return &Result{ObjectExisted: true}, nil
	}

	if replacesExisting(ov.op, ov.hasInsert) && x0 != nil {
		x0.Purge()
		x0 = nil
		existed = false
	}
	if ov.op == OpNone && x0 != nil {
		return &Result{Node: x0, ObjectExisted: existed}, nil
	}

	newBody, hasBody := x1.Body()
	created := false
	if x0 == nil {
		x0 = xmlnode.New(x1.Name)
		x0.Prefix = x1.Prefix
		x0.Schema = y
		created = true
		if ov.op == OpNone {
			x0.SetFlag(xmlnode.FlagNone)
		}
	}
	oldBody, hadBody := x0.Body()
	bodyChanged := !hadBody || oldBody != newBody

	if hasBody && (created || bodyChanged) {
		trimmed := newBody
		if schema.IsIdentityref(y.Type()) {
			trimmed = strings.TrimSpace(newBody)
			if err := xmlnode.AssignBody(x1, trimmed, x0); err != nil {
				return nil, yerr.New(yerr.TagOperationFailed, "%v", err).WithPath(x1.Name)
			}
		} else if y.Type() != nil {
			trimmed = strings.TrimSpace(newBody)
		}
		if err := schema.ValidateString(y, trimmed); err != nil {
			if created {
				x0.Purge()
			}
			return nil, yerr.New(yerr.TagInvalidValue, "%v", err).WithPath(x1.Name)
		}
		if err := xmlnode.CopyReferencedNamespaces(x1, trimmed, x0); err != nil {
			return nil, yerr.New(yerr.TagOperationFailed, "%v", err).WithPath(x1.Name)
		}
		if created {
			// Link upward (not yet a child) so NACM sees the node's full path.
			x0.Parent = x0Parent
		}
		if ov.op != OpNone {
			act := action(existed, bodyChanged)
			if err := checkNACM(ctx, permit, act, x0); err != nil {
				if created {
					x0.Purge()
				}
				return nil, err
			}
		}
		x0.SetBody(trimmed)
		x0.ClearFlag(xmlnode.FlagDefault)
	}

	if created {
		if err := xmlnode.AssignElement(x1, x0, x0Parent); err != nil {
			return nil, yerr.New(yerr.TagOperationFailed, "%v", err).WithPath(x1.Name)
		}
		if err := placeChild(x0Parent, x0, y, ov.spec, ov.hasInsert); err != nil {
			x0.Purge()
			return nil, yerr.New(yerr.TagBadAttribute, "%v", err).WithPath(x1.Name)
		}
	}
	return &Result{Node: x0, ObjectExisted: existed}, nil
}

func modifyBranch(ctx *Context, x0, x0Parent, x1 *xmlnode.Node, y *schema.Node, ov overrides, permit, existed bool) (*Result, *yerr.Error) {
	if y.IsList() && y.IsOrderedByUser() && ov.hasInsert &&
		(ov.spec.Where == WhereBefore || ov.spec.Where == WhereAfter) && ov.spec.KeyExpr == "" {
		return nil, yerr.New(yerr.TagMissingAttribute, "list insert=%s requires key", ov.spec.Where).WithPath(x1.Name)
	}

	switch ov.op {
	case OpCreate:
		if existed && !(y.IsNoPresenceContainer() && x0.HasFlag(xmlnode.FlagDefault)) {
			return nil, yerr.New(yerr.TagDataExists, "%q already exists", x1.Name).WithPath(x1.Name)
		}
	case OpDelete, OpRemove:
		if !existed {
			if ov.op == OpRemove {
				return &Result{ObjectExisted: false}, nil
			}
			return nil, yerr.New(yerr.TagDataMissing, "%q does not exist", x1.Name).WithPath(x1.Name)
		}
		if err := checkNACM(ctx, permit, nacm.ActionDelete, x0); err != nil {
			return nil, err
		}
		x0.Purge()
		return &Result{ObjectExisted: true}, nil
	}

	if replacesExisting(ov.op, ov.hasInsert) && x0 != nil {
		x0.Purge()
		x0 = nil
		existed = false
	}

	if y.IsAnyXML() || y.IsAnyData() {
		return modifyOpaque(ctx, x0, x0Parent, x1, y, ov, permit, existed)
	}

	created := false
	if x0 == nil {
		x0 = xmlnode.New(x1.Name)
		x0.Prefix = x1.Prefix
		x0.Schema = y
		created = true
		if err := xmlnode.AssignElement(x1, x0, x0Parent); err != nil {
			return nil, yerr.New(yerr.TagOperationFailed, "%v", err).WithPath(x1.Name)
		}
		// Link upward (not yet a child) so NACM sees the full path of this
		// node and of its descendants before placeChild attaches it.
		x0.Parent = x0Parent
		if ov.op == OpNone {
			x0.SetFlag(xmlnode.FlagNone)
		}
	}

	subtreePermit := permit
	if created && !permit && ov.op != OpNone {
		if err := checkNACM(ctx, permit, action(false, true), x0); err != nil {
			x0.Purge()
			return nil, err
		}
		subtreePermit = true
	}

	x1Children := x1.ElementChildren()
	x0vec := make([]*xmlnode.Node, len(x1Children))
	for i, x1c := range x1Children {
		yc, ok := resolveChildSchema(ctx, y, x1c)
		if !ok {
			return nil, yerr.Protocol(yerr.TagUnknownElement, "unknown element %q", x1c.Name).WithPath(x1c.Name)
		}
		x0vec[i] = matchChild(x0, x1c, yc)
	}
	for i, x1c := range x1Children {
		yc, _ := resolveChildSchema(ctx, y, x1c)
		childOp := ov.op
		if childOp == OpDelete || childOp == OpRemove {
			childOp = OpMerge
		}
		res, err := Modify(ctx, x0vec[i], x0, x1c, yc, childOp, subtreePermit)
		if err != nil {
			if created {
				x0.Purge()
			}
			return nil, err
		}
		_ = res
	}

	if created {
		if err := placeChild(x0Parent, x0, y, ov.spec, ov.hasInsert); err != nil {
			x0.Purge()
			return nil, yerr.New(yerr.TagBadAttribute, "%v", err).WithPath(x1.Name)
		}
	}
	return &Result{Node: x0, ObjectExisted: existed}, nil
}

// modifyOpaque implements whole-subtree replacement for anyxml/anydata: any
// sub-operation attributes inside x1 are ignored, the entire subtree is
// cloned in.
func modifyOpaque(ctx *Context, x0, x0Parent, x1 *xmlnode.Node, y *schema.Node, ov overrides, permit, existed bool) (*Result, *yerr.Error) {
	if existed && xmlnode.Equal(x0, x1) {
		return &Result{Node: x0, ObjectExisted: true}, nil
	}
	if err := checkNACM(ctx, permit, action(existed, true), x1); err != nil {
		return nil, err
	}
	clone := xmlnode.Clone(x1)
	clone.Schema = y
	if existed {
		x0.Purge()
	}
	if err := xmlnode.AssignElement(x1, clone, x0Parent); err != nil {
		return nil, yerr.New(yerr.TagOperationFailed, "%v", err).WithPath(x1.Name)
	}
	if err := placeChild(x0Parent, clone, y, ov.spec, ov.hasInsert); err != nil {
		return nil, yerr.New(yerr.TagBadAttribute, "%v", err).WithPath(x1.Name)
	}
	return &Result{Node: clone, ObjectExisted: existed}, nil
}

// resolveChildSchema resolves x1c's schema node under parent y, attaching a
// synthetic anydata node when unknown-as-anydata is enabled (spec section 4.3).
func resolveChildSchema(ctx *Context, y *schema.Node, x1c *xmlnode.Node) (*schema.Node, bool) {
	if yc, ok := y.ChildByName(x1c.Name); ok {
		return yc, true
	}
	if ctx.UnknownAsAnyData {
		log.Warningf("unknown element %q under %q attached as synthetic anydata", x1c.Name, y.Name)
		return schema.NewSyntheticAnyData(y, x1c.Name), true
	}
	return nil, false
}
