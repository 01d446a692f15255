package ruletree

// SelectorType is the FsRule selector discriminant (§4.3 "Selector match").
type SelectorType byte

const (
	SelectorNone SelectorType = iota
	SelectorPath
	SelectorPrefix
	SelectorDir
)

// ActionType is the FsRule action discriminant (§4.3 "Action execution").
type ActionType byte

const (
	ActionUseOrigPath ActionType = iota
	ActionForceOrigPath
	ActionForceOrigPathUnlessChroot
	ActionMapTo
	ActionMapToEnvVar
	ActionReplaceBy
	ActionReplaceByEnvVar
	ActionSetPath
	ActionProcfs
	ActionUnionDir
	ActionIfExistsThenMapTo
	ActionIfExistsThenReplaceBy
	ActionConditionalActions
	ActionSubtree
	ActionFallbackToOldMappingEngine
)

// ConditionType is the discriminant for a CONDITIONAL_ACTIONS candidate's
// guard (§4.3.1).
type ConditionType byte

const (
	ConditionNone ConditionType = iota
	ConditionActiveExecPolicyIs
	ConditionRedirectIgnoreIsActive
	ConditionRedirectForceIsActive
	ConditionEnvVarIsEmpty
	ConditionEnvVarIsNotEmpty
	ConditionExistsIn
)

// Flag bits threaded through to the mapping result (§4.3.2).
type Flag uint32

const (
	FlagReadonly Flag = 1 << iota
	FlagReadonlyFSAlways
	FlagReadonlyFSIfNotRoot
	FlagForceOrigPath
	FlagForceOrigPathUnlessChroot
	FlagCallTranslateForAll
)

// FsRule is the decoded, in-memory form of an FsRule record. Reader.GetFsRule
// resolves every string offset eagerly so the rule engine never touches the
// arena directly.
type FsRule struct {
	Name           string
	SelectorType   SelectorType
	Selector       string
	ActionType     ActionType
	Action         string
	RuleListLink   Offset // SUBTREE's nested rules, or CONDITIONAL_ACTIONS' candidate list
	ConditionType  ConditionType
	Condition      string
	ConditionList  Offset // nested "then" candidates for IF_EXISTS_IN
	Flags          Flag
	BinaryName     string
	FuncClassMask  uint32
	ExecPolicyName string
}

// PutFsRule appends an FsRule record and returns its offset.
func (b *Builder) PutFsRule(r FsRule) Offset {
	nameOff := b.PutString(r.Name)
	selectorOff := b.PutString(r.Selector)
	actionOff := b.PutString(r.Action)
	conditionOff := b.PutString(r.Condition)
	binNameOff := b.PutString(r.BinaryName)
	execPolicyOff := b.PutString(r.ExecPolicyName)

	off := b.offset()
	b.putByte(byte(KindFsRule))
	b.putU32(uint32(nameOff))
	b.putByte(byte(r.SelectorType))
	b.putU32(uint32(selectorOff))
	b.putByte(byte(r.ActionType))
	b.putU32(uint32(actionOff))
	b.putU32(uint32(r.RuleListLink))
	b.putByte(byte(r.ConditionType))
	b.putU32(uint32(conditionOff))
	b.putU32(uint32(r.ConditionList))
	b.putU32(uint32(r.Flags))
	b.putU32(uint32(binNameOff))
	b.putU32(r.FuncClassMask)
	b.putU32(uint32(execPolicyOff))
	return off
}
