package yerr

import (
	"strings"
	"testing"
)

func TestTagString(t *testing.T) {
	cases := []struct {
		tag  Tag
		want string
	}{
		{TagDataExists, "data-exists"},
		{TagDataMissing, "data-missing"},
		{TagAccessDenied, "access-denied"},
		{TagBadAttribute, "bad-attribute"},
		{TagUnknownElement, "unknown-element"},
	}
	for _, c := range cases {
		if got := c.tag.String(); got != c.want {
			t.Errorf("Tag(%d).String() = %q, want %q", c.tag, got, c.want)
		}
	}
}

func TestNewAndWithPath(t *testing.T) {
	e := New(TagDataMissing, "no %s here", "leaf").WithPath("/c/a")
	if e.Tag != TagDataMissing {
		t.Fatalf("Tag = %v, want %v", e.Tag, TagDataMissing)
	}
	if e.Type != TypeApplication {
		t.Fatalf("Type = %v, want application", e.Type)
	}
	if e.Path != "/c/a" {
		t.Fatalf("Path = %q, want /c/a", e.Path)
	}
	if !strings.Contains(e.Error(), "no leaf here") {
		t.Fatalf("Error() = %q, want to contain message", e.Error())
	}
}

func TestProtocol(t *testing.T) {
	e := Protocol(TagBadAttribute, "bad")
	if e.Type != TypeProtocol {
		t.Fatalf("Type = %v, want protocol", e.Type)
	}
}

func TestMarshalXML(t *testing.T) {
	e := New(TagAccessDenied, "denied").WithPath("/c/a")
	body, err := e.MarshalXML()
	if err != nil {
		t.Fatalf("MarshalXML() error: %v", err)
	}
	s := string(body)
	for _, want := range []string{"<rpc-error>", "access-denied", "/c/a", "denied"} {
		if !strings.Contains(s, want) {
			t.Errorf("MarshalXML() = %q, missing %q", s, want)
		}
	}
}
