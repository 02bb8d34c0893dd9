// Package nacm implements the NACM (Network Access Control Model)
// evaluator: given a user, an action, a target node, and the request root,
// it returns permit or deny plus an error body (spec section 4.4).
//
// Rule matching follows RFC 8341's "first matching rule wins, else the
// module's default, else the global default" shape, trimmed to what the
// write engine needs: path-based data rules over create/update/delete.
package nacm

import (
	"strings"

	"github.com/neoul/confd/internal/xmlnode"
	"github.com/neoul/confd/internal/yerr"
)

// Action classifies a single mutation attempt, inferred by the modification
// engine from the shape of the edit: absent target -> Create, changing body
// -> Update, purge -> Delete.
type Action int

const (
	ActionCreate Action = iota
	ActionUpdate
	ActionDelete
)

func (a Action) String() string {
	switch a {
	case ActionCreate:
		return "create"
	case ActionUpdate:
		return "update"
	case ActionDelete:
		return "delete"
	default:
		return "unknown"
	}
}

// Effect is a rule's permit/deny verdict.
type Effect int

const (
	EffectPermit Effect = iota
	EffectDeny
)

// Rule is one access control rule: a path glob (YANG instance-identifier
// style, "*" matches one path element) and the actions it governs.
type Rule struct {
	Name       string
	Path       []string // split on "/"; "*" is a wildcard element
	Actions    map[Action]bool
	Effect     Effect
	Comment    string
}

// Group is a named set of users sharing a rule list.
type Group struct {
	Name  string
	Users map[string]bool
}

// Policy is a parsed NACM policy tree. A nil *Policy means NACM is not
// loaded, in which case Check always permits (spec section 4.4).
type Policy struct {
	Enabled     bool
	DefaultEffect Effect
	Groups      []*Group
	Rules       []*Rule // evaluated in order; first match wins
}

// Decision is the verdict of a single Check call.
type Decision struct {
	Permit bool
	Err    *yerr.Error
}

func permit() Decision { return Decision{Permit: true} }

func deny(path string) Decision {
	return Decision{Permit: false, Err: yerr.Protocol(yerr.TagAccessDenied,
		"access denied by NACM rule for %q", path).WithPath(path)}
}

// Check evaluates whether user may perform action on target under the
// loaded policy, matching rules against target's path from the config root.
//
// When a caller has already been permitted to mutate a subtree root,
// descendants inherit that permit for the duration of the same Put call;
// callers express that by not calling Check for the remainder of the
// recursion (internal/modify does this via its permit flag).
func Check(policy *Policy, user string, action Action, target *xmlnode.Node) Decision {
	if policy == nil || !policy.Enabled {
		return permit()
	}
	path := nodePath(target)
	group := policy.groupOf(user)
	for _, r := range policy.Rules {
		if !r.Actions[action] {
			continue
		}
		if !pathMatches(r.Path, path) {
			continue
		}
		if group == "" {
			continue
		}
		if r.Effect == EffectPermit {
			return permit()
		}
		return deny(strings.Join(path, "/"))
	}
	if policy.DefaultEffect == EffectPermit {
		return permit()
	}
	return deny(strings.Join(path, "/"))
}

func (p *Policy) groupOf(user string) string {
	for _, g := range p.Groups {
		if g.Users[user] {
			return g.Name
		}
	}
	return ""
}

// nodePath returns the schema-element path from the config root to n,
// e.g. ["c", "a"] for /config/c/a.
func nodePath(n *xmlnode.Node) []string {
	var rev []string
	for cur := n; cur != nil && cur.Parent != nil; cur = cur.Parent {
		rev = append(rev, cur.Name)
	}
	out := make([]string, len(rev))
	for i, v := range rev {
		out[len(rev)-1-i] = v
	}
	return out
}

func pathMatches(pattern, path []string) bool {
	if len(pattern) != len(path) {
		return false
	}
	for i := range pattern {
		if pattern[i] != "*" && pattern[i] != path[i] {
			return false
		}
	}
	return true
}
