package schema

import (
	"fmt"
	"regexp"
	"unicode/utf8"

	"github.com/openconfig/goyang/pkg/yang"
	"github.com/openconfig/ygot/util"
)

// ValidateString checks a leaf/leaf-list body against its YANG string type's
// length and pattern restrictions, the way the teacher's validateString does,
// reusing ygot's pattern sanitizer so a YANG-native POSIX or XSD-derived
// regex is matched the same way regardless of which the module declared.
func ValidateString(n *Node, value string) error {
	typ := n.Type()
	if typ == nil || typ.Kind != yang.Ystring {
		return nil
	}
	strLen := uint64(utf8.RuneCountInString(value))
	if !lengthOk(typ.Length, strLen) {
		return fmt.Errorf("length %d is outside range %v for %s", strLen, typ.Length, n.Name)
	}
	patterns, isPOSIX := util.SanitizedPattern(typ)
	for _, p := range patterns {
		var r *regexp.Regexp
		var err error
		if isPOSIX {
			r, err = regexp.CompilePOSIX(p)
		} else {
			r, err = regexp.Compile(p)
		}
		if err != nil {
			return fmt.Errorf("bad pattern %q for %s: %w", p, n.Name, err)
		}
		if !r.MatchString(value) {
			return fmt.Errorf("%q does not match pattern %q for %s", value, p, n.Name)
		}
	}
	return nil
}

func lengthOk(yrs yang.YangRange, val uint64) bool {
	return isInRanges(yrs, yang.FromUint(val))
}

func isInRanges(yrs yang.YangRange, val yang.Number) bool {
	if len(yrs) == 0 {
		return true
	}
	for _, yr := range yrs {
		if isInRange(yr, val) {
			return true
		}
	}
	return false
}

func isInRange(yr yang.YRange, val yang.Number) bool {
	return (val.Less(yr.Max) || val.Equal(yr.Max)) &&
		(yr.Min.Less(val) || yr.Min.Equal(val))
}
