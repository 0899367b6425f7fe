package scheme

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
)

// Record keys of the text format, in the order they are written. The
// output key terminates a record.
const (
	keyKind     = "Type"
	keyID       = "ID"
	keyX        = "Position X"
	keyY        = "Position Y"
	keyTypeName = "Type name"
	keyLiteral  = "Input value"
	keyInput1   = "Input 1 ID"
	keyInput2   = "Input 2 ID"
	keyOutput   = "Output ID"

	none = "None"
)

// Save stores positions on the live blocks, then writes one record per
// block in scheme order. Each record is followed by a blank line; readers
// that predate the separator stop at the output field and skip it.
func (s *Scheme) Save(w io.Writer, positions map[BlockID]Position) error {
	s.SetPositions(positions)

	bw := bufio.NewWriter(w)
	for _, id := range s.order {
		writeRecord(bw, s.blocks[id])
	}
	if err := bw.Flush(); err != nil {
		return wrapError(CodeIO, "save", err, "write scheme")
	}
	return nil
}

// SaveFile writes the scheme to path. The document is written to a
// temporary file first and renamed into place, so path either keeps its
// old contents or holds the whole new document.
func (s *Scheme) SaveFile(path string, positions map[BlockID]Position) error {
	const op = "save"

	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return wrapError(CodeIO, op, err, "create %s", path)
	}
	defer os.Remove(tmp.Name())

	if err := s.Save(tmp, positions); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return wrapError(CodeIO, op, err, "close %s", tmp.Name())
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return wrapError(CodeIO, op, err, "rename into %s", path)
	}
	return nil
}

func writeRecord(w io.Writer, b *Block) {
	literal := none
	if b.IsLiteral() {
		literal = strconv.FormatFloat(b.Literal, 'g', -1, 64)
	}
	fmt.Fprintf(w, "%s:%d\n", keyKind, int(b.Kind))
	fmt.Fprintf(w, "%s:%d\n", keyID, b.ID)
	fmt.Fprintf(w, "%s:%d\n", keyX, b.Position.X)
	fmt.Fprintf(w, "%s:%d\n", keyY, b.Position.Y)
	fmt.Fprintf(w, "%s:%s\n", keyTypeName, b.TypeName)
	fmt.Fprintf(w, "%s:%s\n", keyLiteral, literal)
	fmt.Fprintf(w, "%s:%s\n", keyInput1, formatRef(b.Input(SlotInput1)))
	fmt.Fprintf(w, "%s:%s\n", keyInput2, formatRef(b.Input(SlotInput2)))
	fmt.Fprintf(w, "%s:%s\n", keyOutput, formatRef(b.Output()))
	fmt.Fprintln(w)
}

func formatRef(id PortID, ok bool) string {
	if !ok {
		return none
	}
	return strconv.FormatUint(uint64(id), 10)
}

// Load reads a saved scheme and returns its parts for the editor to
// rebuild. The scheme is cleared before reading and is empty when Load
// returns, whether or not it succeeded.
func (s *Scheme) Load(r io.Reader) ([]Part, error) {
	s.Clear()
	loaded, err := Decode(r)
	if err != nil {
		return nil, err
	}
	parts, err := loaded.Parts()
	if err != nil {
		return nil, err
	}
	return parts, nil
}

// LoadFile is Load on the file at path.
func (s *Scheme) LoadFile(path string) ([]Part, error) {
	s.Clear()
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapError(CodeIO, "load", err, "open %s", path)
	}
	defer f.Close()
	return s.Load(f)
}

// DecodeFile is Decode on the file at path.
func DecodeFile(path string) (*Scheme, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, wrapError(CodeIO, "load", err, "open %s", path)
	}
	defer f.Close()
	return Decode(f)
}

// Decode reads a saved scheme into a new live Scheme. Port ids shared
// between one block's output field and another block's input field
// resolve to the same port. Both counters end one past the largest id in
// the document.
func Decode(r io.Reader) (*Scheme, error) {
	d := &decoder{s: New()}
	if err := d.decode(r); err != nil {
		return nil, err
	}
	return d.s, nil
}

// record accumulates the fields of one block.
type record struct {
	seen     map[string]bool
	kind     Kind
	id       BlockID
	pos      Position
	typeName TypeName
	literal  float64
	hasValue bool
	inputs   [2]portRef
}

type decoder struct {
	s    *Scheme
	line int
	rec  *record

	maxBlock, maxPort int64
	sawBlock, sawPort bool
	portTypes         map[PortID]TypeName
}

func (d *decoder) fail(err error, format string, args ...any) error {
	msg := fmt.Sprintf("line %d: ", d.line) + fmt.Sprintf(format, args...)
	if err == nil {
		return &Error{Code: CodeBadFile, Op: "load", Msg: msg}
	}
	return wrapError(CodeBadFile, "load", err, "%s", msg)
}

func (d *decoder) decode(r io.Reader) error {
	d.portTypes = make(map[PortID]TypeName)

	sc := bufio.NewScanner(r)
	for sc.Scan() {
		d.line++
		text := strings.TrimRight(sc.Text(), "\r")
		if strings.TrimSpace(text) == "" {
			if d.rec != nil {
				return d.fail(nil, "blank line inside a record")
			}
			continue
		}
		key, value, ok := strings.Cut(text, ":")
		if !ok {
			return d.fail(nil, "expected key:value, got %q", text)
		}
		if err := d.field(key, strings.TrimSpace(value)); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return d.fail(err, "read")
	}
	if d.rec != nil {
		return d.fail(nil, "record for block %d ends without %q", d.rec.id, keyOutput)
	}
	if err := d.link(); err != nil {
		return err
	}

	if d.sawBlock {
		d.s.nextBlock = BlockID(d.maxBlock + 1)
	}
	if d.sawPort {
		d.s.nextPort = PortID(d.maxPort + 1)
	}
	return nil
}

func (d *decoder) field(key, value string) error {
	if d.rec == nil {
		d.rec = &record{seen: make(map[string]bool)}
	}
	rec := d.rec
	if rec.seen[key] {
		return d.fail(nil, "field %q repeated in one record", key)
	}
	rec.seen[key] = true

	switch key {
	case keyKind:
		n, err := strconv.Atoi(value)
		if err != nil {
			return d.fail(err, "%s", key)
		}
		rec.kind = Kind(n)
		if !rec.kind.Valid() {
			return d.fail(nil, "unknown block kind %d", n)
		}
	case keyID:
		n, err := strconv.ParseUint(value, 10, 32)
		if err != nil {
			return d.fail(err, "%s", key)
		}
		if n == maxID {
			return d.fail(nil, "block id %d is reserved", n)
		}
		rec.id = BlockID(n)
	case keyX, keyY:
		n, err := strconv.Atoi(value)
		if err != nil {
			return d.fail(err, "%s", key)
		}
		if key == keyX {
			rec.pos.X = n
		} else {
			rec.pos.Y = n
		}
	case keyTypeName:
		if value == "" {
			return d.fail(nil, "empty %s", key)
		}
		rec.typeName = TypeName(value)
	case keyLiteral:
		if value == none {
			return nil
		}
		v, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return d.fail(err, "%s", key)
		}
		rec.literal = v
		rec.hasValue = true
	case keyInput1, keyInput2:
		slot := SlotInput1
		if key == keyInput2 {
			slot = SlotInput2
		}
		ref, err := d.portRef(key, value)
		if err != nil {
			return err
		}
		rec.inputs[slot] = ref
	case keyOutput:
		ref, err := d.portRef(key, value)
		if err != nil {
			return err
		}
		return d.finish(ref)
	default:
		return d.fail(nil, "unknown field %q", key)
	}
	return nil
}

func (d *decoder) portRef(key, value string) (portRef, error) {
	if value == none {
		return portRef{}, nil
	}
	n, err := strconv.ParseUint(value, 10, 32)
	if err != nil {
		return portRef{}, d.fail(err, "%s", key)
	}
	if n == maxID {
		return portRef{}, d.fail(nil, "port id %d is reserved", n)
	}
	if !d.sawPort || int64(n) > d.maxPort {
		d.maxPort = int64(n)
	}
	d.sawPort = true
	return portRef{id: PortID(n), ok: true}, nil
}

// finish appends the current record as a block and registers its ports.
func (d *decoder) finish(out portRef) error {
	rec := d.rec
	d.rec = nil

	for _, key := range []string{keyKind, keyID, keyX, keyY, keyTypeName} {
		if !rec.seen[key] {
			return d.fail(nil, "record is missing %q", key)
		}
	}
	if _, dup := d.s.blocks[rec.id]; dup {
		return d.fail(nil, "block %d appears twice", rec.id)
	}

	b := newBlock(rec.id, rec.kind, rec.typeName)
	b.Position = rec.pos
	if b.IsLiteral() {
		if !rec.hasValue {
			return d.fail(nil, "literal block %d has no value", rec.id)
		}
		if rec.inputs[SlotInput1].ok || rec.inputs[SlotInput2].ok {
			return d.fail(nil, "literal block %d has inputs", rec.id)
		}
		b.Literal = rec.literal
	}

	for slot, ref := range rec.inputs {
		if !ref.ok {
			continue
		}
		if ep, taken := d.s.consumer[ref.id]; taken {
			return d.fail(nil, "port %d feeds both block %d and block %d", ref.id, ep.Block, rec.id)
		}
		d.s.consumer[ref.id] = endpoint{Block: rec.id, Slot: Slot(slot)}
		b.setInput(Slot(slot), ref.id)
	}
	if out.ok {
		if other, taken := d.s.producer[out.id]; taken {
			return d.fail(nil, "port %d is the output of both block %d and block %d", out.id, other, rec.id)
		}
		d.s.producer[out.id] = rec.id
		d.portTypes[out.id] = rec.typeName
		b.setOutput(out.id)
	}

	d.s.insert(b)
	if !d.sawBlock || int64(rec.id) > d.maxBlock {
		d.maxBlock = int64(rec.id)
	}
	d.sawBlock = true
	return nil
}

// link checks that every port has exactly one producer and one consumer
// and places it in the arena.
func (d *decoder) link() error {
	for pid, ep := range d.s.consumer {
		if _, ok := d.s.producer[pid]; !ok {
			return &Error{Code: CodeBadFile, Op: "load",
				Msg: fmt.Sprintf("port %d feeds block %d but no block produces it", pid, ep.Block)}
		}
	}
	for pid, src := range d.s.producer {
		if _, ok := d.s.consumer[pid]; !ok {
			return &Error{Code: CodeBadFile, Op: "load",
				Msg: fmt.Sprintf("port %d of block %d feeds no block", pid, src)}
		}
		d.s.ports[pid] = newPort(pid, d.portTypes[pid])
	}
	return nil
}
