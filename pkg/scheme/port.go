package scheme

// Port is a typed terminal carrying at most one buffered value. A port is
// owned by the block whose output it is and referenced by id from the
// consuming block's input slot.
type Port struct {
	ID       PortID
	TypeName TypeName

	value    float64
	hasValue bool
}

func newPort(id PortID, tn TypeName) *Port {
	return &Port{ID: id, TypeName: tn}
}

// Set buffers v on the port.
func (p *Port) Set(v float64) {
	p.value = v
	p.hasValue = true
}

// Value returns the buffered value and whether one is present.
func (p *Port) Value() (float64, bool) {
	return p.value, p.hasValue
}

// HasValue reports whether a value is buffered.
func (p *Port) HasValue() bool {
	return p.hasValue
}

// Take returns the buffered value and empties the port.
func (p *Port) Take() float64 {
	v := p.value
	p.Unset()
	return v
}

// Unset empties the port.
func (p *Port) Unset() {
	p.value = 0
	p.hasValue = false
}
