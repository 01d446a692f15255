// Package netrule evaluates the NetRule records the data model
// describes: ALLOW/DENY/RULES entries consulted for every socket
// operation a traced process attempts, keyed by function name, binary
// name, destination address, and port. A `pkg/netrule/nftexport`
// sibling package optionally mirrors DENY verdicts into a real nft
// table as defense in depth; evaluation here never depends on that
// export succeeding.
package netrule

import (
	"net"
	"strings"

	"github.com/sb2root/sbcore/pkg/ruletree"
)

// CallCtx identifies the socket operation a NetRule list is consulted
// for.
type CallCtx struct {
	FuncName   string // e.g. "connect", "bind", "sendto"
	BinaryName string
	Address    string
	Port       uint16
}

// Verdict is the outcome of evaluating a NetRule list against a
// CallCtx.
type Verdict struct {
	Allowed    bool
	NewAddress string
	NewPort    uint16
	Errno      int32
	LogLevel   int32
	LogMsg     string
	// NoMatch is true when no rule in the list matched; the caller's
	// default policy applies (this package defaults to allow, the same
	// "pass through unless told otherwise" convention pkg/rules uses).
	NoMatch bool
}

// Reader is the subset of ruletree.Reader the engine needs, small
// enough that a test can supply an in-memory fake without building a
// real arena.
type Reader interface {
	GetObjectList(off ruletree.Offset) ([]ruletree.Offset, error)
	GetNetRule(off ruletree.Offset) (ruletree.NetRule, error)
}

// Engine walks one NetRule ObjectList out of a RuleTree arena,
// addressed via the catalog key vector {"net_rules", mode}.
type Engine struct {
	r    Reader
	list ruletree.Offset
}

// NewEngine builds an Engine over the named NetRule list.
func NewEngine(r Reader, list ruletree.Offset) *Engine {
	return &Engine{r: r, list: list}
}

// Evaluate walks the rule list in order and returns the first matching
// rule's verdict, recursing into nested RULES sub-lists. No match at
// any level yields an allowed, NoMatch verdict.
func (e *Engine) Evaluate(ctx CallCtx) (Verdict, error) {
	return e.evaluate(e.list, ctx)
}

func (e *Engine) evaluate(list ruletree.Offset, ctx CallCtx) (Verdict, error) {
	offs, err := e.r.GetObjectList(list)
	if err != nil {
		return Verdict{}, err
	}

	for _, off := range offs {
		rule, err := e.r.GetNetRule(off)
		if err != nil {
			return Verdict{}, err
		}
		if !matches(rule, ctx) {
			continue
		}

		switch rule.Type {
		case ruletree.NetRuleAllow:
			return Verdict{
				Allowed:    true,
				NewAddress: rule.NewAddress,
				NewPort:    rule.NewPort,
				LogLevel:   rule.LogLevel,
				LogMsg:     rule.LogMsg,
			}, nil

		case ruletree.NetRuleDeny:
			return Verdict{
				Allowed:  false,
				Errno:    rule.Errno,
				LogLevel: rule.LogLevel,
				LogMsg:   rule.LogMsg,
			}, nil

		case ruletree.NetRuleRules:
			v, err := e.evaluate(rule.Rules, ctx)
			if err != nil {
				return Verdict{}, err
			}
			if v.NoMatch {
				continue
			}
			return v, nil
		}
	}

	return Verdict{Allowed: true, NoMatch: true}, nil
}

func matches(rule ruletree.NetRule, ctx CallCtx) bool {
	if rule.FuncName != "" && rule.FuncName != ctx.FuncName {
		return false
	}
	if rule.BinaryName != "" && rule.BinaryName != ctx.BinaryName {
		return false
	}
	if rule.Port != 0 && rule.Port != ctx.Port {
		return false
	}
	return matchAddress(rule.Address, ctx.Address)
}

// matchAddress matches an empty pattern (any address), a CIDR pattern
// ("10.0.0.0/8"), a trailing-'*' prefix pattern, or an exact address.
func matchAddress(pattern, addr string) bool {
	if pattern == "" || pattern == "*" {
		return true
	}
	if strings.Contains(pattern, "/") {
		_, network, err := net.ParseCIDR(pattern)
		if err != nil {
			return false
		}
		ip := net.ParseIP(addr)
		return ip != nil && network.Contains(ip)
	}
	if strings.HasSuffix(pattern, "*") {
		return strings.HasPrefix(addr, strings.TrimSuffix(pattern, "*"))
	}
	return pattern == addr
}
