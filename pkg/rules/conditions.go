package rules

import (
	"strings"

	"github.com/sb2root/sbcore/pkg/ruletree"
)

// evaluateCondition implements §4.3.1: the guard a CONDITIONAL_ACTIONS
// candidate carries, evaluated against the caller's environment and
// session state before its action is considered. A candidate with no
// condition always holds.
func (e *Engine) evaluateCondition(cand ruletree.FsRule, path string) (bool, error) {
	switch cand.ConditionType {
	case ruletree.ConditionNone:
		return true, nil

	case ruletree.ConditionActiveExecPolicyIs:
		return e.env.ActiveExecPolicy() == cand.Condition, nil

	case ruletree.ConditionRedirectIgnoreIsActive:
		return colonListContains(e.env.Getenv("SBOX_REDIRECT_IGNORE"), path), nil

	case ruletree.ConditionRedirectForceIsActive:
		return colonListContains(e.env.Getenv("SBOX_REDIRECT_FORCE"), path), nil

	case ruletree.ConditionEnvVarIsEmpty:
		return e.env.Getenv(cand.Condition) == "", nil

	case ruletree.ConditionEnvVarIsNotEmpty:
		return e.env.Getenv(cand.Condition) != "", nil

	case ruletree.ConditionExistsIn:
		return e.env.Exists(joinPrefix(cand.Condition, path)), nil

	default:
		return false, ErrConfigBadSelector
	}
}

func colonListContains(list, needle string) bool {
	for _, elem := range strings.Split(list, ":") {
		if elem != "" && elem == needle {
			return true
		}
	}
	return false
}
