package corpus

// CommandKind is the manifest's "type" discriminator.
type CommandKind string

const (
	KindModule               CommandKind = "module"
	KindAction               CommandKind = "action"
	KindRegister             CommandKind = "register"
	KindAssertReturn         CommandKind = "assert_return"
	KindAssertTrap           CommandKind = "assert_trap"
	KindAssertExhaustion     CommandKind = "assert_exhaustion"
	KindAssertInvalid        CommandKind = "assert_invalid"
	KindAssertMalformed      CommandKind = "assert_malformed"
	KindAssertUnlinkable     CommandKind = "assert_unlinkable"
	KindAssertUninstantiable CommandKind = "assert_uninstantiable"
)

// KnownKinds lists the command kinds in the order they are reported.
var KnownKinds = []CommandKind{
	KindModule,
	KindRegister,
	KindAction,
	KindAssertReturn,
	KindAssertTrap,
	KindAssertExhaustion,
	KindAssertInvalid,
	KindAssertMalformed,
	KindAssertUnlinkable,
	KindAssertUninstantiable,
}

// ModuleType tells whether a module artifact is a binary or left as text by
// the converter.
type ModuleType string

const (
	ModuleTypeBinary ModuleType = "binary"
	ModuleTypeText   ModuleType = "text"
)

// Command is one directive of a group manifest. The concrete types below are
// the only implementations.
type Command interface {
	Kind() CommandKind
	Line() int
}

type position struct {
	line int
}

func (p position) Line() int { return p.line }

// ActionType selects between invoking a function and reading a global.
type ActionType string

const (
	ActionInvoke ActionType = "invoke"
	ActionGet    ActionType = "get"
)

// Action calls an exported function or reads an exported global. An empty
// Module targets the most recently instantiated module.
type Action struct {
	Type   ActionType `json:"type"`
	Module string     `json:"module,omitempty"`
	Field  string     `json:"field"`
	Args   []Value    `json:"args,omitempty"`
}

// ModuleCommand instantiates a module and makes it current.
type ModuleCommand struct {
	position
	Name       string
	Filename   string
	ModuleType ModuleType
}

func (ModuleCommand) Kind() CommandKind { return KindModule }

// ActionCommand runs an action outside of an assertion.
type ActionCommand struct {
	position
	Action   Action
	Expected []Value
}

func (ActionCommand) Kind() CommandKind { return KindAction }

// RegisterCommand exposes a module's exports under As for later imports.
type RegisterCommand struct {
	position
	Name string
	As   string
}

func (RegisterCommand) Kind() CommandKind { return KindRegister }

// AssertReturnCommand expects the action to succeed with Expected.
type AssertReturnCommand struct {
	position
	Action   Action
	Expected []Value
}

func (AssertReturnCommand) Kind() CommandKind { return KindAssertReturn }

// AssertTrapCommand expects the action, or the instantiation of Filename, to
// trap with Text.
type AssertTrapCommand struct {
	position
	Action   *Action
	Filename string
	Text     string
}

func (AssertTrapCommand) Kind() CommandKind { return KindAssertTrap }

// AssertExhaustionCommand expects the action to exhaust a resource.
type AssertExhaustionCommand struct {
	position
	Action Action
	Text   string
}

func (AssertExhaustionCommand) Kind() CommandKind { return KindAssertExhaustion }

// ModuleAssertion is shared by the assertions about a module that must not
// validate, decode, link or instantiate.
type ModuleAssertion struct {
	position
	Filename   string
	ModuleType ModuleType
	Text       string
}

// IsBinary reports whether the module under test was emitted as a binary.
func (a ModuleAssertion) IsBinary() bool {
	return a.ModuleType == "" || a.ModuleType == ModuleTypeBinary
}

type AssertInvalidCommand struct{ ModuleAssertion }

func (AssertInvalidCommand) Kind() CommandKind { return KindAssertInvalid }

type AssertMalformedCommand struct{ ModuleAssertion }

func (AssertMalformedCommand) Kind() CommandKind { return KindAssertMalformed }

type AssertUnlinkableCommand struct{ ModuleAssertion }

func (AssertUnlinkableCommand) Kind() CommandKind { return KindAssertUnlinkable }

type AssertUninstantiableCommand struct{ ModuleAssertion }

func (AssertUninstantiableCommand) Kind() CommandKind { return KindAssertUninstantiable }

// UnknownCommand keeps commands this version does not understand so newer
// converters do not break manifest loading.
type UnknownCommand struct {
	position
	Type string
}

func (u UnknownCommand) Kind() CommandKind { return CommandKind(u.Type) }

// ModuleFile returns the module artifact a command references, if any.
func ModuleFile(c Command) string {
	switch cmd := c.(type) {
	case ModuleCommand:
		return cmd.Filename
	case AssertTrapCommand:
		return cmd.Filename
	case AssertInvalidCommand:
		return cmd.Filename
	case AssertMalformedCommand:
		return cmd.Filename
	case AssertUnlinkableCommand:
		return cmd.Filename
	case AssertUninstantiableCommand:
		return cmd.Filename
	default:
		return ""
	}
}

// IsAssertion reports whether the command is one of the assert_* kinds.
func IsAssertion(c Command) bool {
	switch c.(type) {
	case AssertReturnCommand, AssertTrapCommand, AssertExhaustionCommand,
		AssertInvalidCommand, AssertMalformedCommand, AssertUnlinkableCommand,
		AssertUninstantiableCommand:
		return true
	default:
		return false
	}
}
