package startup

import (
	"fmt"

	"github.com/neoul/confd/internal/xmlnode"
)

// ParseConfigXML parses an extra-XML bootstrap file, verifying it is rooted
// at "config" the way every modification tree must be (spec section 4.6).
func ParseConfigXML(data []byte) (*xmlnode.Node, error) {
	root, err := xmlnode.Parse(data)
	if err != nil {
		return nil, err
	}
	if root == nil || root.Name != "config" {
		return nil, fmt.Errorf("extra xml must be rooted at \"config\"")
	}
	return root, nil
}
