package dbc

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v2"
)

type catalogFile struct {
	Name     string        `yaml:"name"`
	Messages []messageFile `yaml:"messages"`
}

type messageFile struct {
	Name     string        `yaml:"name"`
	Address  hexAddr       `yaml:"address"`
	Bus      uint8         `yaml:"bus"`
	Length   int           `yaml:"length"`
	Signals  []signalFile  `yaml:"signals"`
	Checksum *checksumFile `yaml:"checksum,omitempty"`
	Counter  *counterFile  `yaml:"counter,omitempty"`
}

type signalFile struct {
	Name   string  `yaml:"name"`
	Start  int     `yaml:"start"`
	Length int     `yaml:"length"`
	Signed bool    `yaml:"signed,omitempty"`
	Scale  float64 `yaml:"scale,omitempty"`
	Offset float64 `yaml:"offset,omitempty"`
	Order  string  `yaml:"order,omitempty"`
}

type checksumFile struct {
	Kind     string `yaml:"kind"`
	Byte     int    `yaml:"byte"`
	Start    int    `yaml:"start,omitempty"`
	Exclude  int    `yaml:"exclude,omitempty"`
	Init     *uint8 `yaml:"init,omitempty"`
	FinalXOR *uint8 `yaml:"final_xor,omitempty"`
}

type counterFile struct {
	Signal string `yaml:"signal"`
	Width  int    `yaml:"width"`
}

// hexAddr accepts decimal or 0x-prefixed addresses and writes hex.
type hexAddr uint32

func (a *hexAddr) UnmarshalYAML(unmarshal func(any) error) error {
	var n uint32
	if err := unmarshal(&n); err == nil {
		*a = hexAddr(n)
		return nil
	}
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := strconv.ParseUint(strings.TrimSpace(s), 0, 32)
	if err != nil {
		return fmt.Errorf("address %q: %w", s, err)
	}
	*a = hexAddr(v)
	return nil
}

func (a hexAddr) MarshalYAML() (any, error) {
	return fmt.Sprintf("0x%X", uint32(a)), nil
}

// ParseCatalog builds a catalog from its YAML form.
func ParseCatalog(data []byte) (*Catalog, error) {
	var f catalogFile
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("dbc: parse catalog: %w", err)
	}
	msgs := make([]Message, 0, len(f.Messages))
	for _, mf := range f.Messages {
		m, err := mf.message()
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, m)
	}
	return NewCatalog(f.Name, msgs...)
}

// LoadCatalog reads a YAML catalog file.
func LoadCatalog(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("dbc: read catalog: %w", err)
	}
	return ParseCatalog(data)
}

// MarshalCatalog renders c in the YAML form accepted by ParseCatalog.
func MarshalCatalog(c *Catalog) ([]byte, error) {
	f := catalogFile{Name: c.Name()}
	for _, m := range c.Messages() {
		f.Messages = append(f.Messages, messageToFile(m))
	}
	return yaml.Marshal(&f)
}

func (mf messageFile) message() (Message, error) {
	m := Message{
		Name:    mf.Name,
		Address: uint32(mf.Address),
		Bus:     mf.Bus,
		Length:  mf.Length,
	}
	for _, sf := range mf.Signals {
		s := Signal{
			Name:   sf.Name,
			Start:  sf.Start,
			Length: sf.Length,
			Signed: sf.Signed,
			Scale:  sf.Scale,
			Offset: sf.Offset,
		}
		switch strings.ToLower(sf.Order) {
		case "", "big", "motorola":
			s.Order = BigEndian
		case "little", "intel":
			s.Order = LittleEndian
		default:
			return Message{}, &CatalogError{Message: mf.Name, Signal: sf.Name, Reason: fmt.Sprintf("unknown byte order %q", sf.Order)}
		}
		if s.Scale == 0 {
			s.Scale = 1
		}
		m.Signals = append(m.Signals, s)
	}
	if cf := mf.Checksum; cf != nil {
		kind, err := ParseChecksumKind(cf.Kind)
		if err != nil {
			return Message{}, &CatalogError{Message: mf.Name, Reason: err.Error()}
		}
		cs := &ChecksumSpec{Kind: kind, Byte: cf.Byte, Start: cf.Start, Exclude: cf.Exclude, Init: 0xFF, FinalXOR: 0xFF}
		if cs.Exclude == 0 && kind == ChecksumCRC8J1850 {
			cs.Exclude = 1
		}
		if cf.Init != nil {
			cs.Init = *cf.Init
		}
		if cf.FinalXOR != nil {
			cs.FinalXOR = *cf.FinalXOR
		}
		m.Checksum = cs
	}
	if cf := mf.Counter; cf != nil {
		m.Counter = Counter(cf.Signal, cf.Width)
	}
	return m, nil
}

func messageToFile(m *Message) messageFile {
	mf := messageFile{
		Name:    m.Name,
		Address: hexAddr(m.Address),
		Bus:     m.Bus,
		Length:  m.Length,
	}
	for _, s := range m.Signals {
		sf := signalFile{
			Name:   s.Name,
			Start:  s.Start,
			Length: s.Length,
			Signed: s.Signed,
			Offset: s.Offset,
		}
		if s.scale() != 1 {
			sf.Scale = s.scale()
		}
		if s.Order == LittleEndian {
			sf.Order = "little"
		}
		mf.Signals = append(mf.Signals, sf)
	}
	if c := m.Checksum; c != nil {
		cf := &checksumFile{Kind: c.Kind.String(), Byte: c.Byte, Start: c.Start, Exclude: c.Exclude}
		if c.Init != 0xFF {
			v := c.Init
			cf.Init = &v
		}
		if c.FinalXOR != 0xFF {
			v := c.FinalXOR
			cf.FinalXOR = &v
		}
		mf.Checksum = cf
	}
	if c := m.Counter; c != nil {
		mf.Counter = &counterFile{Signal: c.Signal, Width: c.Width}
	}
	return mf
}
