// Package startup implements the startup coordinator (spec section 4.7):
// on boot it decides whether to commit "startup", "rollback", or fall back
// to "failsafe" into "running", and supports an "extra XML" merge path for
// supplemental bootstrap configuration.
package startup

import (
	"fmt"
	"os"
	"time"

	"github.com/neoul/confd/internal/datastore"
	"github.com/neoul/confd/internal/modify"
	"github.com/neoul/confd/internal/xmlnode"
	"github.com/neoul/confd/internal/yerr"
)

const (
	DatastoreRunning  = "running"
	DatastoreStartup  = "startup"
	DatastoreRollback = "rollback"
	DatastoreFailsafe = "failsafe"
	DatastoreTmp      = "tmp"
)

// Validator checks a committed tree for semantic validity (unique/when/must
// constraints), the upstream validation pipeline spec section 1 names as
// out of scope for the core; the coordinator only calls it.
type Validator func(root *xmlnode.Node) error

// Coordinator runs the boot-time commit decision and the extra-XML merge
// path against a datastore.Store.
type Coordinator struct {
	Store           *datastore.Store
	ConfirmedCommit bool
	Validate        Validator
	ResetCallbacks  []func() error
}

// commitInto merges src's entire config subtree into dst as a replace,
// the "commit X into running" operation spec section 4.7 describes.
func (c *Coordinator) commitInto(src, dst string) *yerr.Error {
	srcEntry, err := c.Store.Get(src)
	if err != nil {
		return yerr.New(yerr.TagOperationFailed, "read %q: %v", src, err)
	}
	x1 := xmlnode.New("config")
	for _, ch := range srcEntry.Root.ElementChildren() {
		x1.AppendChild(xmlnode.Clone(ch))
	}
	_, yerrv := c.Store.Put(dst, modify.OpReplace, x1, "startup-coordinator")
	return yerrv
}

func (c *Coordinator) validate(name string) error {
	if c.Validate == nil {
		return nil
	}
	e, err := c.Store.Get(name)
	if err != nil {
		return err
	}
	return c.Validate(e.Root)
}

func rollbackFilePath(store *datastore.Store) string {
	e, err := store.Get(DatastoreRollback)
	if err != nil {
		return ""
	}
	return e.Path
}

// renameErrored renames the rollback file to a timestamped ".error" suffix
// so a later failed rollback never collides with an earlier one (spec
// section 9 open question (c), resolved in favor of timestamping).
func renameErrored(path string) error {
	if path == "" {
		return nil
	}
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}
	dest := fmt.Sprintf("%s.%d.error", path, time.Now().UnixNano())
	return os.Rename(path, dest)
}

// Boot runs the spec section 4.7 decision: rollback-then-failsafe when
// confirmed-commit is enabled and a rollback file exists, plain startup
// otherwise.
func (c *Coordinator) Boot() *yerr.Error {
	if c.ConfirmedCommit {
		if e, err := c.Store.Get(DatastoreRollback); err == nil && !e.Empty {
			path := rollbackFilePath(c.Store)
			if yerrv := c.commitInto(DatastoreRollback, DatastoreRunning); yerrv == nil {
				if verr := c.validate(DatastoreRunning); verr == nil {
					os.Remove(path)
					return nil
				}
			}
			if yerrv := c.commitInto(DatastoreFailsafe, DatastoreRunning); yerrv != nil {
				return yerrv
			}
			if err := renameErrored(path); err != nil {
				return yerr.New(yerr.TagOperationFailed, "rename errored rollback: %v", err)
			}
			return nil
		}
	}
	return c.commitInto(DatastoreStartup, DatastoreRunning)
}

// MergeExtraXML resets "tmp", runs plugin reset callbacks, optionally
// parses an extra-XML file into "tmp", validates it, then merges "tmp" into
// "running" without going through the ordinary commit callback path (spec
// section 4.7, "extra XML" merge path).
func (c *Coordinator) MergeExtraXML(extraXMLPath string) *yerr.Error {
	c.Store.Reset(DatastoreTmp)
	for _, cb := range c.ResetCallbacks {
		if err := cb(); err != nil {
			return yerr.New(yerr.TagOperationFailed, "plugin reset callback: %v", err)
		}
	}
	if extraXMLPath != "" {
		data, err := os.ReadFile(extraXMLPath)
		if err != nil {
			return yerr.New(yerr.TagOperationFailed, "read extra xml %q: %v", extraXMLPath, err)
		}
		x1, err := ParseConfigXML(data)
		if err != nil {
			return yerr.New(yerr.TagMalformedMessage, "parse extra xml %q: %v", extraXMLPath, err)
		}
		if _, yerrv := c.Store.Put(DatastoreTmp, modify.OpMerge, x1, "startup-coordinator"); yerrv != nil {
			return yerrv
		}
		if err := c.validate(DatastoreTmp); err != nil {
			return yerr.New(yerr.TagOperationFailed, "validate extra xml: %v", err)
		}
	}
	tmpEntry, err := c.Store.Get(DatastoreTmp)
	if err != nil {
		return yerr.New(yerr.TagOperationFailed, "read %q: %v", DatastoreTmp, err)
	}
	x1 := xmlnode.New("config")
	for _, ch := range tmpEntry.Root.ElementChildren() {
		x1.AppendChild(xmlnode.Clone(ch))
	}
	_, yerrv := c.Store.Put(DatastoreRunning, modify.OpMerge, x1, "startup-coordinator")
	return yerrv
}
