package scheme

// Run evaluates the scheme and returns one Action per operator block, in
// the order the blocks became computable.
//
// The whole graph is checked before evaluation: every operator block must
// have both inputs populated and every literal must feed a consumer, else
// Run fails with NotConnected. Evaluation then seeds literal outputs and
// repeats passes over the remaining blocks until a pass computes nothing.
// Blocks still unvisited at that point form or hang off a cycle and Run
// fails with CycleDetected.
//
// Port values are reset at the start of every run, so a failed run leaves
// no state that a later run depends on.
func (s *Scheme) Run() ([]Action, error) {
	const op = "run"

	if err := s.checkConnected(); err != nil {
		return nil, err
	}

	for _, p := range s.ports {
		p.Unset()
	}

	visited := make(map[BlockID]bool, len(s.order))
	for _, id := range s.order {
		b := s.blocks[id]
		if !b.IsLiteral() {
			continue
		}
		pid, _ := b.Output()
		s.ports[pid].Set(b.Literal)
		visited[id] = true
	}

	actions := make([]Action, 0, len(s.order)-len(visited))
	for changed := true; changed; {
		changed = false
		for _, id := range s.order {
			if visited[id] {
				continue
			}
			b := s.blocks[id]
			in1, in2, err := s.inputPorts(b)
			if err != nil {
				return nil, err
			}
			if !in1.HasValue() || !in2.HasValue() {
				continue
			}

			v, err := b.Apply(in1.Take(), in2.Take())
			if err != nil {
				return nil, err
			}
			visited[id] = true
			changed = true
			actions = append(actions, Action{Block: id, Value: v})

			if out, ok := b.Output(); ok {
				s.ports[out].Set(v)
			}
		}
	}

	if len(visited) < len(s.order) {
		var left []BlockID
		for _, id := range s.order {
			if !visited[id] {
				left = append(left, id)
			}
		}
		return nil, &Error{
			Code: CodeCycleDetected,
			Op:   op,
			Msg:  "scheme contains a cycle",
			Err:  &CycleError{Blocks: left},
		}
	}
	return actions, nil
}

// checkConnected fails with NotConnected on the first block, in scheme
// order, that cannot take part in evaluation.
func (s *Scheme) checkConnected() error {
	for _, id := range s.order {
		b := s.blocks[id]
		if b.IsLiteral() {
			if _, ok := b.Output(); !ok {
				return newError(CodeNotConnected, "run", "literal block %d feeds no block", id)
			}
			continue
		}
		for _, slot := range []Slot{SlotInput1, SlotInput2} {
			if _, ok := b.Input(slot); !ok {
				return newError(CodeNotConnected, "run",
					"%s of block %d is empty; connect it or assign a value", slot, id)
			}
		}
	}
	return nil
}

func (s *Scheme) inputPorts(b *Block) (*Port, *Port, error) {
	id1, _ := b.Input(SlotInput1)
	id2, _ := b.Input(SlotInput2)
	p1, ok1 := s.ports[id1]
	p2, ok2 := s.ports[id2]
	if !ok1 || !ok2 {
		return nil, nil, newError(CodeInternal, "run", "block %d references a port missing from the scheme", b.ID)
	}
	return p1, p2, nil
}
