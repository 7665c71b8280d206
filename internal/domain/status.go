package domain

import "strings"

// StatusKind is the typed form of a catalog status name. Only Distribution and
// Delivered carry behaviour; the rest exist so callers can switch exhaustively.
type StatusKind int

const (
	StatusKindOther StatusKind = iota
	StatusKindPacking
	StatusKindPreparing
	StatusKindInTransit
	StatusKindDistribution
	StatusKindDelivered
)

func (k StatusKind) String() string {
	switch k {
	case StatusKindPacking:
		return "packing"
	case StatusKindPreparing:
		return "preparing"
	case StatusKindInTransit:
		return "in_transit"
	case StatusKindDistribution:
		return "distribution"
	case StatusKindDelivered:
		return "delivered"
	default:
		return "other"
	}
}

// ParseStatusKindString is the inverse of StatusKind.String.
func ParseStatusKindString(value string) (StatusKind, bool) {
	for _, kind := range []StatusKind{
		StatusKindOther,
		StatusKindPacking,
		StatusKindPreparing,
		StatusKindInTransit,
		StatusKindDistribution,
		StatusKindDelivered,
	} {
		if kind.String() == value {
			return kind, true
		}
	}
	return StatusKindOther, false
}

var statusAliases = map[string]StatusKind{
	"embalaje":     StatusKindPacking,
	"empaque":      StatusKindPacking,
	"packing":      StatusKindPacking,
	"preparando":   StatusKindPreparing,
	"preparación":  StatusKindPreparing,
	"preparacion":  StatusKindPreparing,
	"preparing":    StatusKindPreparing,
	"en tránsito":  StatusKindInTransit,
	"en transito":  StatusKindInTransit,
	"en-tránsito":  StatusKindInTransit,
	"en-transito":  StatusKindInTransit,
	"in transit":   StatusKindInTransit,
	"in-transit":   StatusKindInTransit,
	"distribución": StatusKindDistribution,
	"distribucion": StatusKindDistribution,
	"distribution": StatusKindDistribution,
	"entregado":    StatusKindDelivered,
	"delivered":    StatusKindDelivered,
}

// NormalizeStatusName lower-cases, trims and collapses inner whitespace.
func NormalizeStatusName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// ParseStatusKind maps a free-form status name to its kind. Names outside the
// known aliases are StatusKindOther.
func ParseStatusKind(name string) StatusKind {
	if kind, ok := statusAliases[NormalizeStatusName(name)]; ok {
		return kind
	}
	return StatusKindOther
}

// StatusEntry is one row of the externally seeded status catalog.
type StatusEntry struct {
	ID          int64
	Name        string
	Label       *string
	Description *string
}

// Kind derives the typed kind from the canonical name, falling back to the
// secondary label.
func (e StatusEntry) Kind() StatusKind {
	if kind := ParseStatusKind(e.Name); kind != StatusKindOther {
		return kind
	}
	if e.Label != nil {
		return ParseStatusKind(*e.Label)
	}
	return StatusKindOther
}

// Matches reports whether a caller supplied name selects this entry.
func (e StatusEntry) Matches(name string) bool {
	normalized := NormalizeStatusName(name)
	if normalized == "" {
		return false
	}
	if NormalizeStatusName(e.Name) == normalized {
		return true
	}
	return e.Label != nil && NormalizeStatusName(*e.Label) == normalized
}

// StatusCatalog is the ordered list of catalog entries.
type StatusCatalog []StatusEntry

// Resolve finds the entry for a caller supplied name.
func (c StatusCatalog) Resolve(name string) (StatusEntry, error) {
	for _, entry := range c {
		if entry.Matches(name) {
			return entry, nil
		}
	}
	return StatusEntry{}, &UnknownStatusError{Name: strings.TrimSpace(name), Valid: c.Names()}
}

// FirstOfKind returns the first entry of the given kind.
func (c StatusCatalog) FirstOfKind(kind StatusKind) (StatusEntry, bool) {
	for _, entry := range c {
		if entry.Kind() == kind {
			return entry, true
		}
	}
	return StatusEntry{}, false
}

// ByID looks an entry up by primary key.
func (c StatusCatalog) ByID(id int64) (StatusEntry, bool) {
	for _, entry := range c {
		if entry.ID == id {
			return entry, true
		}
	}
	return StatusEntry{}, false
}

func (c StatusCatalog) Names() []string {
	names := make([]string, 0, len(c))
	for _, entry := range c {
		names = append(names, entry.Name)
	}
	return names
}
