package corpus

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
)

// ErrNoManifest is returned when a group directory holds no manifest.
var ErrNoManifest = errors.New("group has no manifest")

// Manifest is the structured command list of one test group.
type Manifest struct {
	SourceFilename string
	Commands       []Command
}

type rawManifest struct {
	SourceFilename string       `json:"source_filename"`
	Commands       []rawCommand `json:"commands"`
}

type rawCommand struct {
	Type       string     `json:"type"`
	Line       int        `json:"line"`
	Name       string     `json:"name"`
	As         string     `json:"as"`
	Filename   string     `json:"filename"`
	ModuleType ModuleType `json:"module_type"`
	Text       string     `json:"text"`
	Action     *Action    `json:"action"`
	Expected   []Value    `json:"expected"`
}

// LoadManifest reads and decodes a manifest file.
func LoadManifest(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", ErrNoManifest, path)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}
	m, err := ParseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest %s: %w", path, err)
	}
	return m, nil
}

// ParseManifest decodes manifest JSON into typed commands, preserving file
// order.
func ParseManifest(data []byte) (*Manifest, error) {
	var raw rawManifest
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	m := &Manifest{
		SourceFilename: raw.SourceFilename,
		Commands:       make([]Command, 0, len(raw.Commands)),
	}
	for i, rc := range raw.Commands {
		cmd, err := rc.decode()
		if err != nil {
			return nil, fmt.Errorf("command %d (line %d): %w", i, rc.Line, err)
		}
		m.Commands = append(m.Commands, cmd)
	}
	return m, nil
}

func (rc rawCommand) decode() (Command, error) {
	pos := position{line: rc.Line}
	assertion := ModuleAssertion{position: pos, Filename: rc.Filename, ModuleType: rc.ModuleType, Text: rc.Text}

	switch CommandKind(rc.Type) {
	case KindModule:
		if rc.Filename == "" {
			return nil, errors.New("module without filename")
		}
		return ModuleCommand{position: pos, Name: rc.Name, Filename: rc.Filename, ModuleType: rc.ModuleType}, nil
	case KindRegister:
		if rc.As == "" {
			return nil, errors.New("register without 'as'")
		}
		return RegisterCommand{position: pos, Name: rc.Name, As: rc.As}, nil
	case KindAction:
		action, err := rc.requireAction()
		if err != nil {
			return nil, err
		}
		return ActionCommand{position: pos, Action: action, Expected: rc.Expected}, nil
	case KindAssertReturn:
		action, err := rc.requireAction()
		if err != nil {
			return nil, err
		}
		return AssertReturnCommand{position: pos, Action: action, Expected: rc.Expected}, nil
	case KindAssertTrap:
		if rc.Action == nil && rc.Filename == "" {
			return nil, errors.New("assert_trap without action or module")
		}
		return AssertTrapCommand{position: pos, Action: rc.Action, Filename: rc.Filename, Text: rc.Text}, nil
	case KindAssertExhaustion:
		action, err := rc.requireAction()
		if err != nil {
			return nil, err
		}
		return AssertExhaustionCommand{position: pos, Action: action, Text: rc.Text}, nil
	case KindAssertInvalid:
		return AssertInvalidCommand{assertion}, nil
	case KindAssertMalformed:
		return AssertMalformedCommand{assertion}, nil
	case KindAssertUnlinkable:
		return AssertUnlinkableCommand{assertion}, nil
	case KindAssertUninstantiable:
		return AssertUninstantiableCommand{assertion}, nil
	default:
		return UnknownCommand{position: pos, Type: rc.Type}, nil
	}
}

func (rc rawCommand) requireAction() (Action, error) {
	if rc.Action == nil {
		return Action{}, fmt.Errorf("%s without action", rc.Type)
	}
	return *rc.Action, nil
}
