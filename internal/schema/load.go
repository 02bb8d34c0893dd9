package schema

import (
	"fmt"
	"sort"
	"strings"

	"github.com/openconfig/goyang/pkg/yang"
)

// Load parses the named YANG files (searching dirs for imports/includes),
// skipping modules whose name has an excluded prefix, and wraps the
// resulting top-level data nodes into a single synthetic "config" root —
// the tree shape every modification and datastore file is rooted at (spec
// section 3, "the top element is named config").
func Load(files, dirs, excluded []string) (*Node, *yang.Modules, error) {
	ms := yang.NewModules()
	for _, d := range dirs {
		ms.AddPath(d)
	}
	for _, f := range files {
		if err := ms.Read(f); err != nil {
			return nil, nil, fmt.Errorf("read %q: %w", f, err)
		}
	}
	if errs := ms.Process(); len(errs) > 0 {
		var b strings.Builder
		for _, e := range errs {
			b.WriteString(e.Error())
			b.WriteString("; ")
		}
		return nil, nil, fmt.Errorf("yang processing failed: %s", b.String())
	}

	configEntry := &yang.Entry{
		Name: "config",
		Dir:  map[string]*yang.Entry{},
		Kind: yang.DirectoryEntry,
	}

	var modNames []string
	seen := map[string]bool{}
	for _, m := range ms.Modules {
		if seen[m.Name] {
			continue
		}
		seen[m.Name] = true
		excludedMod := false
		for _, e := range excluded {
			if strings.HasPrefix(m.Name, e) {
				excludedMod = true
			}
		}
		if !excludedMod {
			modNames = append(modNames, m.Name)
		}
	}
	sort.Strings(modNames)

	for _, name := range modNames {
		me := yang.ToEntry(ms.Modules[name])
		for _, e := range me.Dir {
			if _, dup := configEntry.Dir[e.Name]; dup {
				return nil, nil, fmt.Errorf("duplicate top-level data node %q across modules", e.Name)
			}
			e.Parent = configEntry
			configEntry.Dir[e.Name] = e
		}
	}

	root, err := Build(configEntry, ms)
	if err != nil {
		return nil, nil, err
	}
	return root, ms, nil
}
