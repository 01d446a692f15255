package execpreprocess

import "github.com/sb2root/sbcore/pkg/ruletree"

// CatalogLookup resolves basenames against a RuleTree catalog keyed
// {"exec_preprocess", mode, listName, basename}.
type CatalogLookup struct {
	R        *ruletree.Reader
	ListOff  ruletree.Offset // the {mode, listName} catalog of basename -> rule offset
}

func (c CatalogLookup) Lookup(basename string) (ruletree.ExecPreprocessingRule, bool) {
	off, err := c.R.CatalogLookup(c.ListOff, basename)
	if err != nil {
		return ruletree.ExecPreprocessingRule{}, false
	}
	rule, err := c.R.GetExecPreprocessingRule(off)
	if err != nil {
		return ruletree.ExecPreprocessingRule{}, false
	}
	return rule, true
}
