package scheme

import "fmt"

// ValidationSeverity indicates whether a finding blocks evaluation or is
// merely informational.
type ValidationSeverity int

const (
	SeverityError   ValidationSeverity = iota // Run will fail
	SeverityWarning                           // informational
)

func (s ValidationSeverity) String() string {
	switch s {
	case SeverityError:
		return "error"
	case SeverityWarning:
		return "warning"
	default:
		return fmt.Sprintf("ValidationSeverity(%d)", int(s))
	}
}

// ValidationError describes a single validation finding.
type ValidationError struct {
	Block    BlockID            `json:"block"`
	Code     Code               `json:"code"` // the error Run or Connect would report for it
	Message  string             `json:"message"`
	Severity ValidationSeverity `json:"severity"`
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("[%s] block %d: %s", e.Severity, e.Block, e.Message)
}

// Validate reports every structural problem in the scheme without
// evaluating or mutating it. Run fails exactly when Validate reports a
// NotConnected or CycleDetected finding.
func (s *Scheme) Validate() []ValidationError {
	var errs []ValidationError
	errs = append(errs, s.validateReferences()...)
	errs = append(errs, s.validateInputs()...)
	errs = append(errs, s.validateTypes()...)
	errs = append(errs, s.validateAcyclic()...)
	errs = append(errs, s.validateDivisors()...)
	return errs
}

// HasErrors reports whether any finding has error severity.
func HasErrors(errs []ValidationError) bool {
	for _, e := range errs {
		if e.Severity == SeverityError {
			return true
		}
	}
	return false
}

// validateReferences checks that every port id held by a block is in the
// arena and indexed back to that block.
func (s *Scheme) validateReferences() []ValidationError {
	var errs []ValidationError
	for _, id := range s.order {
		b := s.blocks[id]
		for _, slot := range []Slot{SlotInput1, SlotInput2, SlotOutput} {
			pid, ok := b.Ref(slot)
			if !ok {
				continue
			}
			if _, ok := s.ports[pid]; !ok {
				errs = append(errs, ValidationError{
					Block:    id,
					Code:     CodeInternal,
					Message:  fmt.Sprintf("%s references missing port %d", slot, pid),
					Severity: SeverityError,
				})
				continue
			}
			var indexed bool
			if slot == SlotOutput {
				src, ok := s.producer[pid]
				indexed = ok && src == id
			} else {
				ep, ok := s.consumer[pid]
				indexed = ok && ep.Block == id && ep.Slot == slot
			}
			if !indexed {
				errs = append(errs, ValidationError{
					Block:    id,
					Code:     CodeInternal,
					Message:  fmt.Sprintf("port %d on %s is not indexed to this block", pid, slot),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateInputs checks that operator blocks have both inputs and that
// literals feed something.
func (s *Scheme) validateInputs() []ValidationError {
	var errs []ValidationError
	for _, id := range s.order {
		b := s.blocks[id]
		if b.IsLiteral() {
			if _, ok := b.Output(); !ok {
				errs = append(errs, ValidationError{
					Block:    id,
					Code:     CodeNotConnected,
					Message:  "literal feeds no block",
					Severity: SeverityError,
				})
			}
			continue
		}
		for _, slot := range []Slot{SlotInput1, SlotInput2} {
			if _, ok := b.Input(slot); !ok {
				errs = append(errs, ValidationError{
					Block:    id,
					Code:     CodeNotConnected,
					Message:  fmt.Sprintf("%s is empty", slot),
					Severity: SeverityError,
				})
			}
		}
	}
	return errs
}

// validateTypes checks every connection for matching type tags. Connect
// already enforces this; loaded files may not.
func (s *Scheme) validateTypes() []ValidationError {
	var errs []ValidationError
	for _, id := range s.order {
		b := s.blocks[id]
		for _, slot := range []Slot{SlotInput1, SlotInput2} {
			pid, ok := b.Input(slot)
			if !ok {
				continue
			}
			src, ok := s.producer[pid]
			if !ok {
				continue
			}
			from, ok := s.blocks[src]
			if !ok || from.TypeName.Adaptable() || from.TypeName == b.TypeName {
				continue
			}
			errs = append(errs, ValidationError{
				Block:    id,
				Code:     CodeTypeMismatch,
				Message:  fmt.Sprintf("%s is fed by %s block %d but this block is %s", slot, from.TypeName, from.ID, b.TypeName),
				Severity: SeverityError,
			})
		}
	}
	return errs
}

// validateAcyclic checks for cycles using DFS with 3-color marking along
// producer -> consumer edges. Reaching a gray block means the current path
// loops back on itself.
func (s *Scheme) validateAcyclic() []ValidationError {
	const (
		white = iota
		gray
		black
	)

	color := make(map[BlockID]int, len(s.order))
	var errs []ValidationError

	var visit func(id BlockID) bool
	visit = func(id BlockID) bool {
		switch color[id] {
		case black:
			return false
		case gray:
			errs = append(errs, ValidationError{
				Block:    id,
				Code:     CodeCycleDetected,
				Message:  "block is part of a cycle",
				Severity: SeverityError,
			})
			return true
		}

		color[id] = gray
		if b, ok := s.blocks[id]; ok {
			if pid, ok := b.Output(); ok {
				if ep, ok := s.consumer[pid]; ok && visit(ep.Block) {
					return true
				}
			}
		}
		color[id] = black
		return false
	}

	for _, id := range s.order {
		if color[id] == white && visit(id) {
			// One report per cycle is enough; keep looking for others.
			for k, c := range color {
				if c == gray {
					color[k] = black
				}
			}
		}
	}
	return errs
}

// validateDivisors warns about division blocks whose divisor is a literal
// zero.
func (s *Scheme) validateDivisors() []ValidationError {
	var errs []ValidationError
	for _, id := range s.order {
		b := s.blocks[id]
		if b.Kind != KindDiv {
			continue
		}
		pid, ok := b.Input(SlotInput2)
		if !ok {
			continue
		}
		src, ok := s.producer[pid]
		if !ok {
			continue
		}
		if lit, ok := s.blocks[src]; ok && lit.IsLiteral() && lit.Literal == 0 {
			errs = append(errs, ValidationError{
				Block:    id,
				Code:     CodeInternal,
				Message:  "divides by a literal zero; the result is infinite or NaN",
				Severity: SeverityWarning,
			})
		}
	}
	return errs
}
