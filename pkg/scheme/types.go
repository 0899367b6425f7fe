package scheme

import (
	"fmt"
	"strings"
)

// BlockID identifies a block within one scheme session.
type BlockID uint32

// PortID identifies a port within one scheme session.
type PortID uint32

// Kind represents the operation a block performs. The integer values are
// the block type codes used by the persisted file format.
type Kind int

const (
	KindLiteral Kind = iota // zero-input constant source
	KindAdd                 // first + second
	KindSub                 // first - second
	KindMul                 // first * second
	KindDiv                 // first / second
	KindPow                 // first ^ second
)

func (k Kind) String() string {
	switch k {
	case KindLiteral:
		return "literal"
	case KindAdd:
		return "add"
	case KindSub:
		return "sub"
	case KindMul:
		return "mul"
	case KindDiv:
		return "div"
	case KindPow:
		return "pow"
	default:
		return fmt.Sprintf("Kind(%d)", int(k))
	}
}

// Valid reports whether k is one of the known block kinds.
func (k Kind) Valid() bool {
	return k >= KindLiteral && k <= KindPow
}

// ParseKind converts a kind name ("add", "SUB", "literal") to a Kind.
func ParseKind(s string) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "literal", "input":
		return KindLiteral, nil
	case "add", "+":
		return KindAdd, nil
	case "sub", "-":
		return KindSub, nil
	case "mul", "*":
		return KindMul, nil
	case "div", "/":
		return KindDiv, nil
	case "pow", "^":
		return KindPow, nil
	}
	return 0, fmt.Errorf("unknown block kind %q", s)
}

// TypeName tags the data domain of a block and of the port it produces.
type TypeName string

const (
	TypeFloat   TypeName = "FLT"
	TypeInt     TypeName = "INT"
	TypeHex     TypeName = "HEX"
	TypeLiteral TypeName = "TN_INPUT" // literal blocks only; matches any consumer
)

// IsInteger reports whether results of a block with this tag are truncated
// toward zero.
func (t TypeName) IsInteger() bool {
	return t == TypeInt || t == TypeHex
}

// Adaptable reports whether a port of this type may feed a block of any type.
func (t TypeName) Adaptable() bool {
	return t == TypeLiteral
}

// ParseTypeName converts a user-facing tag ("flt", "int", "hex") to a
// TypeName. The literal tag is not accepted here.
func ParseTypeName(s string) (TypeName, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "FLT", "FLOAT":
		return TypeFloat, nil
	case "INT", "INTEGER":
		return TypeInt, nil
	case "HEX":
		return TypeHex, nil
	}
	return "", fmt.Errorf("unknown type name %q", s)
}

// Slot names one of the three terminals of a block.
type Slot int

const (
	SlotInput1 Slot = iota
	SlotInput2
	SlotOutput
)

func (s Slot) String() string {
	switch s {
	case SlotInput1:
		return "input1"
	case SlotInput2:
		return "input2"
	case SlotOutput:
		return "output"
	default:
		return fmt.Sprintf("Slot(%d)", int(s))
	}
}

// IsInput reports whether s is one of the two input slots.
func (s Slot) IsInput() bool {
	return s == SlotInput1 || s == SlotInput2
}

// InputSlot converts a 1-based input number to a Slot.
func InputSlot(n int) (Slot, error) {
	switch n {
	case 1:
		return SlotInput1, nil
	case 2:
		return SlotInput2, nil
	}
	return 0, fmt.Errorf("input slot must be 1 or 2, got %d", n)
}

// Position is the editor-supplied screen position of a block. The engine
// only stores and persists it.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}
