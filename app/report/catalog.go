package report

import "fmt"

type Section string

const (
	SectionLocation    Section = "location"
	SectionLocalTime   Section = "localtime"
	SectionLatLong     Section = "lat_long"
	SectionCondition   Section = "condition"
	SectionTemperature Section = "temperature"
	SectionWind        Section = "wind"
)

// Mask is a set of section bits.
type Mask uint64

// Formatter renders one section of a snapshot. Every interpolated value
// must go through escape.
type Formatter func(s *Snapshot, escape Escaper) (string, error)

type entry struct {
	name      Section
	bit       Mask
	label     string
	formatter Formatter
}

// Catalog maps section names to bits in registration order. It is filled
// once at startup and only read afterwards, so it can be shared by every
// State without locking.
type Catalog struct {
	entries []entry
	index   map[Section]int
}

func NewCatalog() *Catalog {
	return &Catalog{
		index: make(map[Section]int),
	}
}

// DefaultCatalog registers the sections of the weather report. The order
// fixes the bit positions stored in tokens and must not change.
func DefaultCatalog() *Catalog {
	c := NewCatalog()
	c.Register(SectionLocation, "the location", formatLocation)
	c.Register(SectionLocalTime, "local time", formatLocalTime)
	c.Register(SectionLatLong, "latitude and longitude", formatLatLong)
	c.Register(SectionCondition, "the condition", formatCondition)
	c.Register(SectionTemperature, "temperature data", formatTemperature)
	c.Register(SectionWind, "wind data", formatWind)
	return c
}

// Register assigns the next power of two to name. Registering a name
// again returns its existing bit and leaves label and formatter untouched.
func (c *Catalog) Register(name Section, label string, formatter Formatter) Mask {
	if i, ok := c.index[name]; ok {
		return c.entries[i].bit
	}

	if len(c.entries) >= 64 {
		panic(fmt.Sprintf("report: catalog is full, cannot register %q", name))
	}

	bit := Mask(1) << len(c.entries)
	c.index[name] = len(c.entries)
	c.entries = append(c.entries, entry{
		name:      name,
		bit:       bit,
		label:     label,
		formatter: formatter,
	})

	return bit
}

func (c *Catalog) Bit(name Section) (Mask, bool) {
	i, ok := c.index[name]
	if !ok {
		return 0, false
	}
	return c.entries[i].bit, true
}

// Has reports whether bit is exactly one registered section bit.
func (c *Catalog) Has(bit Mask) bool {
	for _, e := range c.entries {
		if e.bit == bit {
			return true
		}
	}
	return false
}

func (c *Catalog) Sections() []Section {
	result := make([]Section, len(c.entries))
	for i, e := range c.entries {
		result[i] = e.name
	}
	return result
}

// All returns the mask with every registered section set.
func (c *Catalog) All() Mask {
	var m Mask
	for _, e := range c.entries {
		m |= e.bit
	}
	return m
}

// FriendlyLabel never fails: the result goes straight into button text,
// so unknown names produce a visible marker instead.
func (c *Catalog) FriendlyLabel(name Section) string {
	i, ok := c.index[name]
	if !ok || c.entries[i].label == "" {
		return fmt.Sprintf("<Error (section=%s)>", name)
	}
	return c.entries[i].label
}

func (c *Catalog) formatter(name Section) (Formatter, bool) {
	i, ok := c.index[name]
	if !ok || c.entries[i].formatter == nil {
		return nil, false
	}
	return c.entries[i].formatter, true
}
