package ruletree

// NetRuleType is the NetRule discriminant.
type NetRuleType byte

const (
	NetRuleAllow NetRuleType = iota
	NetRuleDeny
	NetRuleRules
)

// NetRule is the decoded form of a NetRule record.
type NetRule struct {
	Type       NetRuleType
	FuncName   string
	BinaryName string
	Address    string
	Port       uint16
	NewAddress string
	NewPort    uint16
	Errno      int32
	Rules      Offset // nested ObjectList, valid only when Type == NetRuleRules
	LogLevel   int32
	LogMsg     string
}

func (b *Builder) PutNetRule(r NetRule) Offset {
	funcOff := b.PutString(r.FuncName)
	binOff := b.PutString(r.BinaryName)
	addrOff := b.PutString(r.Address)
	newAddrOff := b.PutString(r.NewAddress)
	msgOff := b.PutString(r.LogMsg)

	off := b.offset()
	b.putByte(byte(KindNetRule))
	b.putByte(byte(r.Type))
	b.putU32(uint32(funcOff))
	b.putU32(uint32(binOff))
	b.putU32(uint32(addrOff))
	b.putU32(uint32(r.Port))
	b.putU32(uint32(newAddrOff))
	b.putU32(uint32(r.NewPort))
	b.putU32(uint32(r.Errno))
	b.putU32(uint32(r.Rules))
	b.putU32(uint32(r.LogLevel))
	b.putU32(uint32(msgOff))
	return off
}

// ExecPolicySelectionRule is the decoded form of the rule used to choose
// which exec policy applies to a given binary.
type ExecPolicySelectionRule struct {
	Type       SelectorType
	Flags      uint32
	Selector   string
	PolicyName string
}

func (b *Builder) PutExecPolicySelectionRule(r ExecPolicySelectionRule) Offset {
	selOff := b.PutString(r.Selector)
	nameOff := b.PutString(r.PolicyName)

	off := b.offset()
	b.putByte(byte(KindExecPolicySelectionRule))
	b.putByte(byte(r.Type))
	b.putU32(r.Flags)
	b.putU32(uint32(selOff))
	b.putU32(uint32(nameOff))
	return off
}

// ExecPreprocessingRule rewrites argv/file for a named basename before
// path mapping happens (§4.6).
type ExecPreprocessingRule struct {
	BinaryName      string
	PathPrefixes    []string
	AddHead         []string
	AddOptions      []string
	AddTail         []string
	Remove          []string
	NewFilename     string
	DisableMapping  bool
}

func (b *Builder) PutExecPreprocessingRule(r ExecPreprocessingRule) Offset {
	binOff := b.PutString(r.BinaryName)
	prefixesOff := b.putStringList(r.PathPrefixes)
	addHeadOff := b.putStringList(r.AddHead)
	addOptsOff := b.putStringList(r.AddOptions)
	addTailOff := b.putStringList(r.AddTail)
	removeOff := b.putStringList(r.Remove)
	newNameOff := b.PutString(r.NewFilename)

	off := b.offset()
	b.putByte(byte(KindExecPreprocessingRule))
	b.putU32(uint32(binOff))
	b.putU32(uint32(prefixesOff))
	b.putU32(uint32(addHeadOff))
	b.putU32(uint32(addOptsOff))
	b.putU32(uint32(addTailOff))
	b.putU32(uint32(removeOff))
	b.putU32(uint32(newNameOff))
	if r.DisableMapping {
		b.putByte(1)
	} else {
		b.putByte(0)
	}
	return off
}

// putStringList writes each string then an ObjectList of their offsets.
func (b *Builder) putStringList(items []string) Offset {
	offs := make([]Offset, len(items))
	for i, s := range items {
		offs[i] = b.PutString(s)
	}
	return b.PutObjectList(offs)
}
