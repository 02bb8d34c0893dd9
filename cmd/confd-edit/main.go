// Command confd-edit drives one datastore.Store.Put call from the command
// line: load a YANG schema, read a modification file, and merge it into a
// named datastore, the way the teacher's own app/yangtree.go exercises
// yangtree.Load from a small main package.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/neoul/confd/internal/config"
	"github.com/neoul/confd/internal/datastore"
	"github.com/neoul/confd/internal/modify"
	"github.com/neoul/confd/internal/schema"
	"github.com/neoul/confd/internal/xmlnode"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var (
		yangFiles []string
		yangDirs  []string
		excluded  []string
		cfgFile   string
		op        string
		user      string
		dbName    string
	)

	root := &cobra.Command{
		Use:   "confd-edit <modification.xml>",
		Short: "Merge a NETCONF-style edit-config file into a confd datastore",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			opts := config.Default()
			if cfgFile != "" {
				loaded, err := config.Load(cfgFile)
				if err != nil {
					return fmt.Errorf("load config: %w", err)
				}
				opts = loaded
			}

			sch, _, err := schema.Load(yangFiles, yangDirs, excluded)
			if err != nil {
				return fmt.Errorf("load yang: %w", err)
			}

			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("read modification file: %w", err)
			}
			x1, err := xmlnode.Parse(data)
			if err != nil {
				return fmt.Errorf("parse modification file: %w", err)
			}

			parsedOp, ok := modify.ParseOp(op)
			if !ok {
				return fmt.Errorf("unrecognized operation %q", op)
			}

			store := datastore.NewStore(opts, sch, nil)
			existed, yerrv := store.Put(dbName, parsedOp, x1, user)
			if yerrv != nil {
				body, _ := yerrv.MarshalXML()
				fmt.Fprintln(os.Stderr, string(body))
				return fmt.Errorf("put failed: %s", yerrv.Tag)
			}
			fmt.Printf("ok: %s updated (object existed: %v)\n", dbName, existed)
			return nil
		},
	}

	flags := root.Flags()
	flags.StringSliceVar(&yangFiles, "yang-file", nil, "YANG module file (repeatable)")
	flags.StringSliceVar(&yangDirs, "yang-dir", nil, "YANG include/import search directory (repeatable)")
	flags.StringSliceVar(&excluded, "yang-exclude", nil, "YANG module name prefix to exclude (repeatable)")
	flags.StringVar(&cfgFile, "config", "", "path to a confd-edit YAML config file")
	flags.StringVar(&op, "operation", "merge", "edit-config operation: merge|replace|create|delete|remove|none")
	flags.StringVar(&user, "user", "admin", "requesting user name, for NACM")
	flags.StringVar(&dbName, "datastore", "running", "target datastore name")

	return root
}
