// Package config loads the recognized configuration options the core
// consumes (spec section 6), the way the teacher loads its own YAML-based
// options, via gopkg.in/yaml.v2.
package config

import (
	"os"

	yaml "gopkg.in/yaml.v2"
)

// Format selects the on-disk serialization of a datastore file.
type Format string

const (
	FormatXML  Format = "xml"
	FormatJSON Format = "json"
)

// Options is the recognized configuration surface (spec section 6).
type Options struct {
	DatastoreCache   bool   `yaml:"datastore-cache"`
	XMLDBFormat      Format `yaml:"xmldb-format"`
	XMLDBPretty      bool   `yaml:"xmldb-pretty"`
	XMLDBModstate    bool   `yaml:"xmldb-modstate"`
	UnknownAsAnyData bool   `yaml:"unknown-as-anydata"`
	NetconfDefaultNS string `yaml:"netconf-default-namespace"`
	ConfirmedCommit  bool   `yaml:"confirmed-commit"`
	DatastoreDir     string `yaml:"datastore-dir"`
}

// Default returns the option set the core assumes when no config file is present.
func Default() *Options {
	return &Options{
		DatastoreCache: true,
		XMLDBFormat:    FormatXML,
		XMLDBPretty:    true,
		XMLDBModstate:  true,
		DatastoreDir:   ".",
	}
}

// Load reads and parses a YAML configuration file, overlaying it onto the
// defaults so a partial file only overrides what it mentions.
func Load(path string) (*Options, error) {
	opts := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, opts); err != nil {
		return nil, err
	}
	return opts, nil
}
