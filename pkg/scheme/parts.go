package scheme

import (
	"cmp"
	"fmt"
	"slices"
)

// SlotState classifies a slot in a Part.
type SlotState int

const (
	StateEmpty      SlotState = iota // nothing attached
	StateValue                       // fed by a literal
	StateConnection                  // wired to another operator block
)

func (s SlotState) String() string {
	switch s {
	case StateEmpty:
		return "empty"
	case StateValue:
		return "value"
	case StateConnection:
		return "connection"
	default:
		return fmt.Sprintf("SlotState(%d)", int(s))
	}
}

// InputPart describes what feeds one input slot.
type InputPart struct {
	State SlotState `json:"state"`
	Value float64   `json:"value,omitempty"` // literal value when State is StateValue
	Block BlockID   `json:"block,omitempty"` // producer when State is StateConnection
}

// OutputPart describes where a block's output goes.
type OutputPart struct {
	State SlotState `json:"state"`
	Block BlockID   `json:"block,omitempty"` // consumer when State is StateConnection
	Slot  Slot      `json:"slot,omitempty"`  // consumer slot when State is StateConnection
}

// Part is the flat description of one operator block, enough for an editor
// to rebuild its own widgets without knowing how ports are shared.
type Part struct {
	Kind     Kind         `json:"kind"`
	ID       BlockID      `json:"id"`
	Position Position     `json:"position"`
	TypeName TypeName     `json:"type_name"`
	Inputs   [2]InputPart `json:"inputs"`
	Output   OutputPart   `json:"output"`
}

// Input returns the part of an input slot.
func (p Part) Input(s Slot) InputPart {
	if !s.IsInput() {
		return InputPart{}
	}
	return p.Inputs[s]
}

// Parts describes every operator block in scheme order. Literal blocks do
// not appear on their own; their values show up inline on the slot they
// feed.
func (s *Scheme) Parts() ([]Part, error) {
	const op = "parts"

	parts := make([]Part, 0, len(s.order))
	for _, id := range s.order {
		b := s.blocks[id]
		if b.IsLiteral() {
			continue
		}
		part := Part{
			Kind:     b.Kind,
			ID:       b.ID,
			Position: b.Position,
			TypeName: b.TypeName,
		}

		for _, slot := range []Slot{SlotInput1, SlotInput2} {
			pid, ok := b.Input(slot)
			if !ok {
				continue
			}
			src, ok := s.producer[pid]
			if !ok {
				return nil, newError(CodeInternal, op, "port %d on %s of block %d has no producer", pid, slot, id)
			}
			from, ok := s.blocks[src]
			if !ok {
				return nil, newError(CodeInternal, op, "port %d is owned by missing block %d", pid, src)
			}
			if from.IsLiteral() {
				part.Inputs[slot] = InputPart{State: StateValue, Value: from.Literal}
			} else {
				part.Inputs[slot] = InputPart{State: StateConnection, Block: src}
			}
		}

		if pid, ok := b.Output(); ok {
			ep, ok := s.consumer[pid]
			if !ok {
				return nil, newError(CodeInternal, op, "output port %d of block %d has no consumer", pid, id)
			}
			if !ep.Slot.IsInput() {
				return nil, newError(CodeInternal, op, "output port %d of block %d is wired into an output", pid, id)
			}
			part.Output = OutputPart{State: StateConnection, Block: ep.Block, Slot: ep.Slot}
		}

		parts = append(parts, part)
	}
	return parts, nil
}

// Restore replaces the scheme's contents with the graph described by parts.
// Operator blocks keep their ids and positions; literal blocks and ports
// are recreated with fresh ids. On failure the scheme is left empty.
func (s *Scheme) Restore(parts []Part) error {
	s.Clear()
	if err := s.restore(parts); err != nil {
		s.Clear()
		return err
	}
	return nil
}

func (s *Scheme) restore(parts []Part) error {
	const op = "restore"

	for _, p := range parts {
		if !p.Kind.Valid() || p.Kind == KindLiteral {
			return newError(CodeBadFile, op, "part %d has invalid kind %s", p.ID, p.Kind)
		}
		if p.ID == maxID {
			return newError(CodeBadFile, op, "part id %d is reserved", p.ID)
		}
		if _, dup := s.blocks[p.ID]; dup {
			return newError(CodeBadFile, op, "block %d appears twice", p.ID)
		}
		b := newBlock(p.ID, p.Kind, p.TypeName)
		b.Position = p.Position
		s.insert(b)
		if p.ID >= s.nextBlock {
			s.nextBlock = p.ID + 1
		}
	}

	for _, p := range parts {
		for _, slot := range []Slot{SlotInput1, SlotInput2} {
			in := p.Inputs[slot]
			var err error
			switch in.State {
			case StateEmpty:
			case StateValue:
				err = s.SetLiteral(p.ID, in.Value, slot)
			case StateConnection:
				err = s.Connect(in.Block, p.ID, slot)
			default:
				err = newError(CodeBadFile, op, "%s of part %d has unknown state %d", slot, p.ID, int(in.State))
			}
			if err != nil {
				return err
			}
		}
	}

	// Outputs are implied by the inputs above; check they agree.
	for _, p := range parts {
		b := s.blocks[p.ID]
		pid, wired := b.Output()
		switch p.Output.State {
		case StateEmpty:
			if wired {
				return newError(CodeBadFile, op, "block %d feeds a block but its part lists no output", p.ID)
			}
		case StateConnection:
			if !wired {
				return newError(CodeBadFile, op, "block %d lists an output to block %d that no input claims", p.ID, p.Output.Block)
			}
			if ep := s.consumer[pid]; ep.Block != p.Output.Block || ep.Slot != p.Output.Slot {
				return newError(CodeBadFile, op, "block %d output disagrees with the input of block %d", p.ID, ep.Block)
			}
		default:
			return newError(CodeBadFile, op, "output of part %d has state %s", p.ID, p.Output.State)
		}
	}
	return nil
}

// SortParts orders parts by block id.
func SortParts(parts []Part) {
	slices.SortFunc(parts, func(a, b Part) int {
		return cmp.Compare(a.ID, b.ID)
	})
}
