// Package datastore implements the cache + persister and the top-level
// `put` driver (spec sections 4.6, 6): mapping a datastore name to an
// in-memory tree and a file path, reading through on first touch, and
// writing back atomically on every successful put.
package datastore

import (
	"fmt"
	"os"
	"path/filepath"

	log "github.com/golang/glog"

	"github.com/neoul/confd/internal/config"
	"github.com/neoul/confd/internal/modify"
	"github.com/neoul/confd/internal/nacm"
	"github.com/neoul/confd/internal/schema"
	"github.com/neoul/confd/internal/xmlnode"
	"github.com/neoul/confd/internal/yerr"
)

const configElementName = "config"

// Entry is one named datastore: its in-memory root, file path, and
// emptiness, matching the DatastoreEntry entity of spec section 3.
type Entry struct {
	Name  string
	Root  *xmlnode.Node
	Path  string
	Empty bool
}

// Store owns every DatastoreEntry, the loaded schema, the module-state
// metadata, and the configured options — the "datastore handle" the core
// is handed per spec section 1.
type Store struct {
	Opts    *config.Options
	Schema  *schema.Node
	Modules []ModuleState
	Policy  *nacm.Policy

	cache map[string]*Entry
}

// NewStore builds a Store. opts may be nil, in which case config.Default()
// is used.
func NewStore(opts *config.Options, sch *schema.Node, modules []ModuleState) *Store {
	if opts == nil {
		opts = config.Default()
	}
	return &Store{Opts: opts, Schema: sch, Modules: modules, cache: map[string]*Entry{}}
}

func (s *Store) path(name string) string {
	ext := "xml"
	if s.Opts.XMLDBFormat == config.FormatJSON {
		ext = "json"
	}
	return filepath.Join(s.Opts.DatastoreDir, name+"."+ext)
}

// entry returns the Entry for name, reading through from disk (or
// materializing an empty one) when it is not already cached, or when
// caching is disabled.
func (s *Store) entry(name string) (*Entry, error) {
	if s.Opts.DatastoreCache {
		if e, ok := s.cache[name]; ok {
			return e, nil
		}
	}
	path := s.path(name)
	root := xmlnode.New(configElementName)
	empty := true
	if data, err := os.ReadFile(path); err == nil {
		if err := s.unmarshalInto(root, data); err != nil {
			return nil, fmt.Errorf("parse datastore %q: %w", name, err)
		}
		removeModState(root)
		empty = len(root.ElementChildren()) == 0
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("read datastore %q: %w", name, err)
	}
	e := &Entry{Name: name, Root: root, Path: path, Empty: empty}
	if s.Opts.DatastoreCache {
		s.cache[name] = e
	}
	return e, nil
}

// Reset replaces name's cache entry with an empty config tree, used by the
// startup coordinator's extra-XML merge path to prepare a scratch "tmp"
// datastore. The file on disk is not touched until the next Put.
func (s *Store) Reset(name string) {
	delete(s.cache, name)
	e := &Entry{Name: name, Root: xmlnode.New(configElementName), Path: s.path(name), Empty: true}
	s.cache[name] = e
}

// Get exposes the current Entry for name without triggering a put,
// reading it through if not yet cached.
func (s *Store) Get(name string) (*Entry, error) { return s.entry(name) }

// Put is the top-level driver of spec section 4.6: it merges x1 (rooted at
// "config") into datastore name under op, authorizing each touched node via
// NACM for user, then persists the result. The returned slice reports, for
// each top-level child of x1 in order, whether the matching object already
// existed before the edit (spec section 4.5's objectcreate bookkeeping,
// SPEC_FULL.md's "objectcreate=false bookkeeping" feature) — nil when x1 had
// no top-level children.
func (s *Store) Put(name string, op modify.Op, x1 *xmlnode.Node, user string) ([]bool, *yerr.Error) {
	if x1.Name != configElementName {
		return nil, yerr.New(yerr.TagBadElement, "modification tree must be rooted at %q", configElementName).WithPath(x1.Name)
	}
	e, err := s.entry(name)
	if err != nil {
		return nil, yerr.New(yerr.TagOperationFailed, "%v", err)
	}
	root := e.Root

	x1Children := x1.ElementChildren()
	if len(x1Children) == 0 {
		switch op {
		case modify.OpDelete, modify.OpRemove, modify.OpReplace:
			for _, c := range append([]*xmlnode.Node{}, root.ElementChildren()...) {
				c.Purge()
			}
			return nil, s.finish(e)
		default:
			return nil, nil
		}
	}

	ctx := &modify.Context{User: user, Policy: s.Policy, UnknownAsAnyData: s.Opts.UnknownAsAnyData}

	if op == modify.OpReplace || op == modify.OpDelete {
		if d := nacm.Check(s.Policy, user, nacm.ActionUpdate, root); !d.Permit {
			return nil, d.Err
		}
		for _, c := range append([]*xmlnode.Node{}, root.ElementChildren()...) {
			c.Purge()
		}
	}

	existed := make([]bool, len(x1Children))
	for i, x1c := range x1Children {
		yc, ok := s.Schema.ChildByName(x1c.Name)
		if !ok {
			if s.Opts.UnknownAsAnyData {
				yc = schema.NewSyntheticAnyData(s.Schema, x1c.Name)
				log.Warningf("unknown element %q under %q attached as synthetic anydata", x1c.Name, s.Schema.Name)
			} else {
				return nil, yerr.Protocol(yerr.TagUnknownElement, "unknown element %q", x1c.Name).WithPath(x1c.Name)
			}
		}
		x0c := modify.MatchChild(root, x1c, yc)
		res, yerrv := modify.Modify(ctx, x0c, root, x1c, yc, op, false)
		if yerrv != nil {
			return nil, yerrv
		}
		existed[i] = res.ObjectExisted
	}

	if yerrv := s.finish(e); yerrv != nil {
		return nil, yerrv
	}
	return existed, nil
}

// finish runs the post-processing pipeline of spec section 4.6 steps 1-8
// and persists the result.
func (s *Store) finish(e *Entry) *yerr.Error {
	pruneNoneSubtrees(e.Root)
	clearFlags(e.Root)
	stripDefaults(e.Root)

	e.Empty = len(e.Root.ElementChildren()) == 0
	if s.Opts.DatastoreCache {
		s.cache[e.Name] = e
	}

	if s.Opts.XMLDBModstate {
		prependModState(e.Root, s.Modules)
	}
	data, err := Marshal(e.Root, s.Opts.XMLDBFormat, s.Opts.XMLDBPretty)
	if err != nil {
		removeModState(e.Root)
		return yerr.New(yerr.TagOperationFailed, "serialize datastore %q: %v", e.Name, err)
	}
	if err := AtomicWrite(e.Path, data); err != nil {
		removeModState(e.Root)
		return yerr.New(yerr.TagOperationFailed, "persist datastore %q: %v", e.Name, err)
	}
	removeModState(e.Root)
	return nil
}

func pruneNoneSubtrees(n *xmlnode.Node) {
	for _, c := range append([]*xmlnode.Node{}, n.ElementChildren()...) {
		if allLeavesNone(c) {
			c.Purge()
			continue
		}
		pruneNoneSubtrees(c)
	}
}

func allLeavesNone(n *xmlnode.Node) bool {
	children := n.ElementChildren()
	if len(children) == 0 {
		return n.HasFlag(xmlnode.FlagNone)
	}
	for _, c := range children {
		if !allLeavesNone(c) {
			return false
		}
	}
	return true
}

func clearFlags(n *xmlnode.Node) {
	n.ClearFlag(xmlnode.FlagNone)
	n.ClearFlag(xmlnode.FlagMark)
	for _, c := range n.ElementChildren() {
		clearFlags(c)
	}
}

// stripDefaults implements spec section 4.6 steps 3-4 combined: it purges
// leaves whose body equals their schema default and empty no-presence
// containers directly (no default flag is set), bottom-up so a container
// that becomes empty only after its own default leaves are pruned is itself
// caught.
func stripDefaults(n *xmlnode.Node) {
	for _, c := range append([]*xmlnode.Node{}, n.ElementChildren()...) {
		stripDefaults(c)
		if c.Schema == nil {
			continue
		}
		if c.Schema.IsLeaf() {
			if def, ok := c.Schema.DefaultValue(); ok {
				if body, _ := c.Body(); body == def {
					c.Purge()
				}
			}
			continue
		}
		if c.Schema.IsNoPresenceContainer() && len(c.ElementChildren()) == 0 {
			c.Purge()
		}
	}
}
