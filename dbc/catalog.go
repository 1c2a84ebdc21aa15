package dbc

import (
	"fmt"

	"github.com/pbassut/canbus"
)

// Catalog is an immutable, validated set of messages addressable by
// (bus, CAN id) and by name.
type Catalog struct {
	name     string
	messages []*Message
	byAddr   map[busAddr]*Message
	byName   map[string]*Message
}

type busAddr struct {
	bus  uint8
	addr uint32
}

// NewCatalog validates msgs and builds a catalog. Messages are copied; later
// changes to the arguments do not affect the catalog.
func NewCatalog(name string, msgs ...Message) (*Catalog, error) {
	c := &Catalog{
		name:   name,
		byAddr: make(map[busAddr]*Message, len(msgs)),
		byName: make(map[string]*Message, len(msgs)),
	}
	for i := range msgs {
		m := cloneMessage(msgs[i])
		if err := m.Validate(); err != nil {
			return nil, err
		}
		k := busAddr{m.Bus, m.Address}
		if prev, dup := c.byAddr[k]; dup {
			return nil, fmt.Errorf("dbc: %s and %s share address 0x%X on bus %d", prev.Name, m.Name, m.Address, m.Bus)
		}
		if _, dup := c.byName[m.Name]; dup {
			return nil, fmt.Errorf("dbc: duplicate message name %s", m.Name)
		}
		c.byAddr[k] = m
		c.byName[m.Name] = m
		c.messages = append(c.messages, m)
	}
	return c, nil
}

// MustCatalog is NewCatalog for static tables; it panics on invalid input.
func MustCatalog(name string, msgs ...Message) *Catalog {
	c, err := NewCatalog(name, msgs...)
	if err != nil {
		panic(err)
	}
	return c
}

func cloneMessage(m Message) *Message {
	out := m
	out.Signals = append([]Signal(nil), m.Signals...)
	if m.Checksum != nil {
		cs := *m.Checksum
		out.Checksum = &cs
	}
	if m.Counter != nil {
		cs := *m.Counter
		out.Counter = &cs
	}
	return &out
}

// Name returns the catalog name (usually the vehicle profile).
func (c *Catalog) Name() string { return c.name }

// Lookup returns the message registered for a CAN id on a bus. The same id
// on another bus is a different address.
func (c *Catalog) Lookup(bus uint8, addr uint32) (*Message, bool) {
	m, ok := c.byAddr[busAddr{bus, addr}]
	return m, ok
}

// Message returns the message with the given name.
func (c *Catalog) Message(name string) (*Message, bool) {
	m, ok := c.byName[name]
	return m, ok
}

// Messages returns the messages in definition order.
func (c *Catalog) Messages() []*Message {
	return append([]*Message(nil), c.messages...)
}

// Filter matches data frames whose bus and id are in the catalog and whose
// length equals the message length.
func (c *Catalog) Filter() canbus.FrameFilter {
	return canbus.And(canbus.DataOnly(), func(f canbus.Frame) bool {
		m, ok := c.byAddr[busAddr{f.Bus, f.ID}]
		return ok && int(f.Len) == m.Length
	})
}
