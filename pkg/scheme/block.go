package scheme

import "math"

// portRef is an optional reference to a port in the scheme's arena.
type portRef struct {
	id PortID
	ok bool
}

// Block is a node of the scheme. Its slots hold port ids, never port
// objects; the scheme's arena owns every port.
type Block struct {
	ID       BlockID
	Kind     Kind
	TypeName TypeName
	Position Position
	Literal  float64 // meaningful only for KindLiteral

	inputs [2]portRef
	output portRef
}

func newBlock(id BlockID, kind Kind, tn TypeName) *Block {
	return &Block{ID: id, Kind: kind, TypeName: tn}
}

// IsLiteral reports whether the block is a literal source.
func (b *Block) IsLiteral() bool {
	return b.Kind == KindLiteral
}

// Input returns the port id referenced by an input slot.
func (b *Block) Input(s Slot) (PortID, bool) {
	if !s.IsInput() {
		return 0, false
	}
	r := b.inputs[s]
	return r.id, r.ok
}

// Output returns the id of the port this block owns, if any.
func (b *Block) Output() (PortID, bool) {
	return b.output.id, b.output.ok
}

// Ref returns the port id held in any slot.
func (b *Block) Ref(s Slot) (PortID, bool) {
	if s == SlotOutput {
		return b.Output()
	}
	return b.Input(s)
}

// Complete reports whether both input slots are populated.
func (b *Block) Complete() bool {
	return b.inputs[SlotInput1].ok && b.inputs[SlotInput2].ok
}

func (b *Block) setInput(s Slot, id PortID) {
	b.inputs[s] = portRef{id: id, ok: true}
}

func (b *Block) clearInput(s Slot) {
	b.inputs[s] = portRef{}
}

func (b *Block) setOutput(id PortID) {
	b.output = portRef{id: id, ok: true}
}

func (b *Block) clearOutput() {
	b.output = portRef{}
}

// Apply performs the block's operation on two operands. Division by zero
// follows IEEE 754. Integer-tagged blocks truncate the result toward zero.
func (b *Block) Apply(a, c float64) (float64, error) {
	var v float64
	switch b.Kind {
	case KindAdd:
		v = a + c
	case KindSub:
		v = a - c
	case KindMul:
		v = a * c
	case KindDiv:
		v = a / c
	case KindPow:
		v = math.Pow(a, c)
	default:
		return 0, newError(CodeInternal, "apply", "block %d of kind %s has no operation", b.ID, b.Kind)
	}
	if b.TypeName.IsInteger() {
		v = math.Trunc(v)
	}
	return v, nil
}
