package dbc

import (
	"fmt"

	"github.com/pbassut/canbus"
)

// DecodedFrame is the result of ingesting one received frame.
type DecodedFrame struct {
	Bus           uint8
	Address       uint32
	Message       *Message
	Values        Values
	Counter       int
	HasCounter    bool
	ChecksumValid bool
}

// Name returns the message name.
func (d DecodedFrame) Name() string {
	if d.Message == nil {
		return ""
	}
	return d.Message.Name
}

// Ingestor decodes received frames against a catalog. It holds no state
// and may be shared.
type Ingestor struct {
	cat *Catalog
}

func NewIngestor(cat *Catalog) *Ingestor { return &Ingestor{cat: cat} }

// Catalog returns the catalog frames are decoded against.
func (in *Ingestor) Catalog() *Catalog { return in.cat }

// Ingest decodes f. An id the catalog does not carry on f.Bus or a wrong
// payload length is an error; a bad checksum is only reported through
// ChecksumValid.
func (in *Ingestor) Ingest(f canbus.Frame) (DecodedFrame, error) {
	m, ok := in.cat.Lookup(f.Bus, f.ID)
	if !ok {
		return DecodedFrame{}, fmt.Errorf("%w: 0x%X on bus %d", ErrUnknownAddress, f.ID, f.Bus)
	}
	payload := f.Payload()
	values, err := Decode(m, payload)
	if err != nil {
		return DecodedFrame{}, err
	}
	out := DecodedFrame{
		Bus:           f.Bus,
		Address:       f.ID,
		Message:       m,
		Values:        values,
		ChecksumValid: ValidateChecksum(m, payload),
	}
	if m.Counter != nil {
		s, _ := m.Signal(m.Counter.Signal)
		out.Counter = int(s.get(payload))
		out.HasCounter = true
	}
	return out, nil
}
