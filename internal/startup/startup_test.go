package startup

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/openconfig/goyang/pkg/yang"

	"github.com/neoul/confd/internal/config"
	"github.com/neoul/confd/internal/datastore"
	"github.com/neoul/confd/internal/modify"
	"github.com/neoul/confd/internal/schema"
	"github.com/neoul/confd/internal/xmlnode"
)

func testSchema(t *testing.T) *schema.Node {
	t.Helper()
	configEntry := &yang.Entry{Name: "config", Kind: yang.DirectoryEntry, Dir: map[string]*yang.Entry{}}
	cEntry := &yang.Entry{Name: "c", Kind: yang.DirectoryEntry, Dir: map[string]*yang.Entry{}}
	aEntry := &yang.Entry{Name: "a", Kind: yang.LeafEntry, Type: &yang.YangType{Kind: yang.Ystring}}
	cEntry.Dir["a"] = aEntry
	configEntry.Dir["c"] = cEntry
	root, err := schema.Build(configEntry, nil)
	if err != nil {
		t.Fatalf("schema.Build() error: %v", err)
	}
	return root
}

func testStore(t *testing.T) *datastore.Store {
	t.Helper()
	dir := t.TempDir()
	opts := &config.Options{
		DatastoreCache: true,
		XMLDBFormat:    config.FormatXML,
		XMLDBPretty:    true,
		DatastoreDir:   dir,
	}
	return datastore.NewStore(opts, testSchema(t), nil)
}

func seed(t *testing.T, store *datastore.Store, name, body string) {
	t.Helper()
	x1, err := xmlnode.Parse([]byte(`<config><c><a>` + body + `</a></c></config>`))
	if err != nil {
		t.Fatalf("xmlnode.Parse() error: %v", err)
	}
	if _, yerrv := store.Put(name, modify.OpReplace, x1, "test"); yerrv != nil {
		t.Fatalf("Put(%s) error: %v", name, yerrv)
	}
}

func bodyOf(t *testing.T, store *datastore.Store, name string) string {
	t.Helper()
	e, err := store.Get(name)
	if err != nil {
		t.Fatalf("Get(%s) error: %v", name, err)
	}
	children := e.Root.ElementChildren()
	if len(children) == 0 {
		return ""
	}
	a := children[0].ElementChildren()[0]
	body, _ := a.Body()
	return body
}

func TestBootPlainStartup(t *testing.T) {
	store := testStore(t)
	seed(t, store, DatastoreStartup, "from-startup")

	c := &Coordinator{Store: store}
	if yerrv := c.Boot(); yerrv != nil {
		t.Fatalf("Boot() error: %v", yerrv)
	}
	if got := bodyOf(t, store, DatastoreRunning); got != "from-startup" {
		t.Fatalf("running = %q, want from-startup", got)
	}
}

func TestBootConfirmedCommitCommitsRollback(t *testing.T) {
	store := testStore(t)
	seed(t, store, DatastoreRollback, "from-rollback")
	seed(t, store, DatastoreStartup, "from-startup")

	c := &Coordinator{Store: store, ConfirmedCommit: true}
	if yerrv := c.Boot(); yerrv != nil {
		t.Fatalf("Boot() error: %v", yerrv)
	}
	if got := bodyOf(t, store, DatastoreRunning); got != "from-rollback" {
		t.Fatalf("running = %q, want from-rollback", got)
	}
	if _, err := os.Stat(filepath.Join(store.Opts.DatastoreDir, "rollback.xml")); !os.IsNotExist(err) {
		t.Fatalf("rollback file still exists after a successful confirmed commit")
	}
}

func TestBootConfirmedCommitFallsBackToFailsafeOnValidationFailure(t *testing.T) {
	store := testStore(t)
	seed(t, store, DatastoreRollback, "bad")
	seed(t, store, DatastoreFailsafe, "safe")
	seed(t, store, DatastoreStartup, "from-startup")

	c := &Coordinator{
		Store:           store,
		ConfirmedCommit: true,
		Validate: func(root *xmlnode.Node) error {
			for _, c := range root.ElementChildren() {
				for _, a := range c.ElementChildren() {
					if body, _ := a.Body(); body == "bad" {
						return os.ErrInvalid
					}
				}
			}
			return nil
		},
	}
	if yerrv := c.Boot(); yerrv != nil {
		t.Fatalf("Boot() error: %v", yerrv)
	}
	if got := bodyOf(t, store, DatastoreRunning); got != "safe" {
		t.Fatalf("running = %q, want safe (failsafe fallback)", got)
	}
	matches, err := filepath.Glob(filepath.Join(store.Opts.DatastoreDir, "rollback.xml.*.error"))
	if err != nil {
		t.Fatalf("Glob() error: %v", err)
	}
	if len(matches) != 1 {
		t.Fatalf("rollback.xml.*.error matches = %v, want exactly one", matches)
	}
}

func TestMergeExtraXML(t *testing.T) {
	store := testStore(t)
	seed(t, store, DatastoreRunning, "original")

	dir := t.TempDir()
	extraPath := filepath.Join(dir, "extra.xml")
	if err := os.WriteFile(extraPath, []byte(`<config><c><a>extra</a></c></config>`), 0o644); err != nil {
		t.Fatalf("WriteFile() error: %v", err)
	}

	resetCalled := false
	c := &Coordinator{
		Store:          store,
		ResetCallbacks: []func() error{func() error { resetCalled = true; return nil }},
	}
	if yerrv := c.MergeExtraXML(extraPath); yerrv != nil {
		t.Fatalf("MergeExtraXML() error: %v", yerrv)
	}
	if !resetCalled {
		t.Fatalf("reset callback was not invoked")
	}
	if got := bodyOf(t, store, DatastoreRunning); got != "extra" {
		t.Fatalf("running = %q, want extra", got)
	}
}
