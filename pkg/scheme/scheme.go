package scheme

import (
	"math"
	"slices"
)

// maxID is never assigned to a block or port. A counter that reaches it is
// exhausted.
const maxID = math.MaxUint32

// endpoint names the consuming side of a connection.
type endpoint struct {
	Block BlockID
	Slot  Slot
}

// Scheme owns every block and port of one graph together with the id
// counters. Ports live in an arena keyed by id; blocks refer to them by id
// and the producer/consumer indexes resolve a port to the blocks on either
// side of it. A Scheme is not safe for concurrent use.
type Scheme struct {
	blocks map[BlockID]*Block
	order  []BlockID // insertion order, used for evaluation and saving

	ports    map[PortID]*Port
	producer map[PortID]BlockID
	consumer map[PortID]endpoint

	nextBlock BlockID
	nextPort  PortID
}

// New creates an empty Scheme with both counters at zero.
func New() *Scheme {
	s := &Scheme{}
	s.Clear()
	return s
}

// Clear resets the scheme to an empty graph and zeroes both counters.
func (s *Scheme) Clear() {
	s.blocks = make(map[BlockID]*Block)
	s.order = nil
	s.ports = make(map[PortID]*Port)
	s.producer = make(map[PortID]BlockID)
	s.consumer = make(map[PortID]endpoint)
	s.nextBlock = 0
	s.nextPort = 0
}

// Len returns the number of live blocks, literal blocks included.
func (s *Scheme) Len() int {
	return len(s.order)
}

// NextBlockID returns the id the next added block will receive.
func (s *Scheme) NextBlockID() BlockID {
	return s.nextBlock
}

// NextPortID returns the id the next created port will receive.
func (s *Scheme) NextPortID() PortID {
	return s.nextPort
}

// Block returns the block with the given id.
func (s *Scheme) Block(id BlockID) (*Block, bool) {
	b, ok := s.blocks[id]
	return b, ok
}

// Blocks returns all live blocks in insertion order.
func (s *Scheme) Blocks() []*Block {
	out := make([]*Block, 0, len(s.order))
	for _, id := range s.order {
		out = append(out, s.blocks[id])
	}
	return out
}

// Port returns the port with the given id.
func (s *Scheme) Port(id PortID) (*Port, bool) {
	p, ok := s.ports[id]
	return p, ok
}

// Producer returns the block owning port id.
func (s *Scheme) Producer(id PortID) (BlockID, bool) {
	b, ok := s.producer[id]
	return b, ok
}

// Consumer returns the block and slot referencing port id.
func (s *Scheme) Consumer(id PortID) (BlockID, Slot, bool) {
	ep, ok := s.consumer[id]
	return ep.Block, ep.Slot, ok
}

// SetPosition stores the editor position of a block.
func (s *Scheme) SetPosition(id BlockID, pos Position) error {
	b, ok := s.blocks[id]
	if !ok {
		return newError(CodeNotFound, "set position", "block %d does not exist", id)
	}
	b.Position = pos
	return nil
}

// SetPositions stores every position in the map whose block is live.
// Entries for unknown blocks are ignored.
func (s *Scheme) SetPositions(positions map[BlockID]Position) {
	for id, pos := range positions {
		if b, ok := s.blocks[id]; ok {
			b.Position = pos
		}
	}
}

// Positions returns the stored position of every live block.
func (s *Scheme) Positions() map[BlockID]Position {
	out := make(map[BlockID]Position, len(s.blocks))
	for id, b := range s.blocks {
		out[id] = b.Position
	}
	return out
}

// AddBlock creates an operator block and returns its id. Literal blocks are
// created through SetLiteral, never here.
func (s *Scheme) AddBlock(kind Kind, tn TypeName) (BlockID, error) {
	if !kind.Valid() {
		return 0, newError(CodeInvalidTarget, "add block", "unknown block kind %d", int(kind))
	}
	if kind == KindLiteral {
		return 0, newError(CodeInvalidTarget, "add block", "literal blocks are created by attaching a value")
	}
	if tn == "" || tn.Adaptable() {
		return 0, newError(CodeTypeMismatch, "add block", "type name %q is not valid for an operator block", tn)
	}
	id, err := s.allocBlock("add block")
	if err != nil {
		return 0, err
	}
	b := newBlock(id, kind, tn)
	s.insert(b)
	return b.ID, nil
}

// RemoveBlock deletes a block. The port it owns is freed and its consumer's
// slot cleared. Ports feeding its inputs are freed too, so their producers
// can be connected elsewhere, and literal blocks that fed it are deleted.
func (s *Scheme) RemoveBlock(id BlockID) error {
	b, ok := s.blocks[id]
	if !ok {
		return newError(CodeNotFound, "remove block", "block %d does not exist", id)
	}

	for _, slot := range []Slot{SlotInput1, SlotInput2} {
		pid, ok := b.Input(slot)
		if !ok {
			continue
		}
		src, hasSrc := s.producer[pid]
		s.detach(pid)
		if feeder := s.blocks[src]; hasSrc && src != id && feeder != nil && feeder.IsLiteral() {
			s.remove(src)
		}
	}
	if pid, ok := b.Output(); ok {
		s.detach(pid)
	}

	s.remove(id)
	return nil
}

// Connect wires the output of src into an input slot of dst. A block's
// output feeds at most one slot, literal blocks take no inputs, and the
// type tags must match unless src is a literal.
func (s *Scheme) Connect(src, dst BlockID, slot Slot) error {
	const op = "connect"

	from, ok := s.blocks[src]
	if !ok {
		return newError(CodeNotFound, op, "block %d does not exist", src)
	}
	to, ok := s.blocks[dst]
	if !ok {
		return newError(CodeNotFound, op, "block %d does not exist", dst)
	}
	if !slot.IsInput() {
		return newError(CodeInvalidTarget, op, "cannot connect into %s of block %d", slot, dst)
	}
	if _, ok := from.Output(); ok {
		return newError(CodeAlreadyConnected, op, "block %d already feeds another block", src)
	}
	if to.IsLiteral() {
		return newError(CodeInvalidTarget, op, "literal block %d has no inputs", dst)
	}
	if from.TypeName != to.TypeName && !from.TypeName.Adaptable() {
		return newError(CodeTypeMismatch, op, "block %d is %s, block %d is %s", src, from.TypeName, dst, to.TypeName)
	}
	if _, ok := to.Input(slot); ok {
		return newError(CodeAlreadyConnected, op, "%s of block %d is already occupied", slot, dst)
	}

	pid, err := s.allocPort(op)
	if err != nil {
		return err
	}
	p := newPort(pid, from.TypeName)
	s.attach(p, src, endpoint{Block: dst, Slot: slot})
	return nil
}

// Disconnect removes the connection from src into the given slot of dst.
// A literal src is deleted with its connection, as in ClearLiteral.
func (s *Scheme) Disconnect(src, dst BlockID, slot Slot) error {
	const op = "disconnect"

	from, ok := s.blocks[src]
	if !ok {
		return newError(CodeNotFound, op, "block %d does not exist", src)
	}
	to, ok := s.blocks[dst]
	if !ok {
		return newError(CodeNotFound, op, "block %d does not exist", dst)
	}
	if !slot.IsInput() {
		return newError(CodeInvalidTarget, op, "cannot disconnect %s of block %d", slot, dst)
	}
	out, ok := from.Output()
	if !ok {
		return newError(CodeNotConnected, op, "block %d has no output connection", src)
	}
	in, ok := to.Input(slot)
	if !ok {
		return newError(CodeNotConnected, op, "%s of block %d is empty", slot, dst)
	}
	if in != out {
		return newError(CodeNotConnected, op, "%s of block %d is not fed by block %d", slot, dst, src)
	}

	s.detach(out)
	if from.IsLiteral() {
		s.remove(src)
	}
	return nil
}

// SetLiteral attaches a constant to an input slot of a block by creating a
// literal block wired into that slot.
func (s *Scheme) SetLiteral(id BlockID, value float64, slot Slot) error {
	const op = "set literal"

	b, ok := s.blocks[id]
	if !ok {
		return newError(CodeNotFound, op, "block %d does not exist", id)
	}
	if !slot.IsInput() {
		return newError(CodeInvalidTarget, op, "cannot attach a value to %s of block %d", slot, id)
	}
	if b.IsLiteral() {
		return newError(CodeInvalidTarget, op, "literal block %d has no inputs", id)
	}
	if _, ok := b.Input(slot); ok {
		return newError(CodeAlreadyConnected, op, "%s of block %d is already occupied", slot, id)
	}

	litID, err := s.allocBlock(op)
	if err != nil {
		return err
	}
	lit := newBlock(litID, KindLiteral, TypeLiteral)
	lit.Literal = value
	s.insert(lit)

	if err := s.Connect(lit.ID, id, slot); err != nil {
		s.remove(lit.ID)
		return err
	}
	return nil
}

// ClearLiteral removes the literal attached to an input slot of a block and
// deletes the literal block.
func (s *Scheme) ClearLiteral(id BlockID, slot Slot) error {
	const op = "clear literal"

	b, ok := s.blocks[id]
	if !ok {
		return newError(CodeNotFound, op, "block %d does not exist", id)
	}
	if !slot.IsInput() {
		return newError(CodeInvalidTarget, op, "%s of block %d holds no value", slot, id)
	}
	pid, ok := b.Input(slot)
	if !ok {
		return newError(CodeNotConnected, op, "%s of block %d is empty", slot, id)
	}
	src, ok := s.producer[pid]
	if !ok {
		return newError(CodeInternal, op, "port %d has no producer", pid)
	}
	if lit := s.blocks[src]; lit == nil || !lit.IsLiteral() {
		return newError(CodeNotConnected, op, "%s of block %d is fed by block %d, not a value", slot, id, src)
	}

	s.detach(pid)
	s.remove(src)
	return nil
}

func (s *Scheme) allocBlock(op string) (BlockID, error) {
	if s.nextBlock == maxID {
		return 0, newError(CodeInternal, op, "block ids exhausted")
	}
	id := s.nextBlock
	s.nextBlock++
	return id, nil
}

func (s *Scheme) allocPort(op string) (PortID, error) {
	if s.nextPort == maxID {
		return 0, newError(CodeInternal, op, "port ids exhausted")
	}
	id := s.nextPort
	s.nextPort++
	return id, nil
}

// insert adds b to the block set.
func (s *Scheme) insert(b *Block) {
	s.blocks[b.ID] = b
	s.order = append(s.order, b.ID)
}

// remove deletes a block without touching any port.
func (s *Scheme) remove(id BlockID) {
	delete(s.blocks, id)
	if i := slices.Index(s.order, id); i >= 0 {
		s.order = slices.Delete(s.order, i, i+1)
	}
}

// attach registers p as the output of src and the input of dst.
func (s *Scheme) attach(p *Port, src BlockID, dst endpoint) {
	s.ports[p.ID] = p
	s.producer[p.ID] = src
	s.consumer[p.ID] = dst
	s.blocks[src].setOutput(p.ID)
	s.blocks[dst.Block].setInput(dst.Slot, p.ID)
}

// detach frees a port and clears both slots referencing it. It is the only
// place a port leaves the arena.
func (s *Scheme) detach(id PortID) {
	if src, ok := s.producer[id]; ok {
		if b := s.blocks[src]; b != nil {
			b.clearOutput()
		}
	}
	if ep, ok := s.consumer[id]; ok {
		if b := s.blocks[ep.Block]; b != nil {
			b.clearInput(ep.Slot)
		}
	}
	delete(s.ports, id)
	delete(s.producer, id)
	delete(s.consumer, id)
}
