package report

// DefaultSections returns the sections visible on a fresh State. The set
// is pinned by name rather than derived from bit positions.
func DefaultSections() []Section {
	return []Section{SectionLocation, SectionCondition, SectionTemperature}
}

type SectionVisibility struct {
	Name    Section
	Visible bool
}

// State is the set of currently visible sections of one report.
// It is owned by a single conversation turn and is not safe for
// concurrent mutation.
type State struct {
	catalog *Catalog
	mask    Mask
}

func NewState(catalog *Catalog) *State {
	s := &State{catalog: catalog}
	for _, name := range DefaultSections() {
		if bit, ok := catalog.Bit(name); ok {
			s.mask |= bit
		}
	}
	return s
}

// NewStateWithMask restores a state from a stored mask. Bits outside the
// catalog are kept so that a stored mask survives unchanged.
func NewStateWithMask(catalog *Catalog, mask Mask) *State {
	return &State{catalog: catalog, mask: mask}
}

func (s *State) Catalog() *Catalog {
	return s.catalog
}

func (s *State) Mask() Mask {
	return s.mask
}

// IsVisible returns false for names missing from the catalog.
func (s *State) IsVisible(name Section) bool {
	bit, ok := s.catalog.Bit(name)
	return ok && s.mask&bit != 0
}

// Toggle flips the bit of name and returns s. Unknown names leave the mask
// unchanged.
func (s *State) Toggle(name Section) *State {
	if bit, ok := s.catalog.Bit(name); ok {
		s.mask ^= bit
	}
	return s
}

// ToggleBit flips a single catalog bit. Bits unknown to the catalog, e.g.
// from tokens issued by an older build, are ignored.
func (s *State) ToggleBit(bit Mask) *State {
	if s.catalog.Has(bit) {
		s.mask ^= bit
	}
	return s
}

func (s *State) VisibleSections() []Section {
	var result []Section
	for _, e := range s.catalog.entries {
		if s.mask&e.bit != 0 {
			result = append(result, e.name)
		}
	}
	return result
}

func (s *State) AllSections() []SectionVisibility {
	result := make([]SectionVisibility, 0, len(s.catalog.entries))
	for _, e := range s.catalog.entries {
		result = append(result, SectionVisibility{
			Name:    e.name,
			Visible: s.mask&e.bit != 0,
		})
	}
	return result
}

func (s *State) FriendlyLabel(name Section) string {
	return s.catalog.FriendlyLabel(name)
}
