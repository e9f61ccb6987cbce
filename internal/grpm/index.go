package grpm

import (
	"encoding/json"
	"fmt"
	"io"
	"math"
	"strings"

	"github.com/franckalain/grpmnutrition/internal/models"
)

// Entry is one scoring rule keyed by a genetic marker or food keyword.
type Entry struct {
	Marker      string        `json:"marker"`
	Association string        `json:"association"`
	Effect      models.Effect `json:"effect"`
	Weight      float64       `json:"weight"`

	key      string
	assocKey string
}

// Key returns the normalized lookup key.
func (e Entry) Key() string { return e.key }

// AssociationKey returns the normalized association.
func (e Entry) AssociationKey() string { return e.assocKey }

// Index is an immutable marker -> rule mapping. A nil *Index behaves as the
// degraded empty index.
type Index struct {
	version  string
	entries  map[string]Entry
	degraded bool
}

type document struct {
	Version string  `json:"version"`
	Entries []Entry `json:"entries"`
}

// Empty returns the degraded index used when loading failed. Every lookup misses.
func Empty() *Index {
	return &Index{entries: map[string]Entry{}, degraded: true}
}

// New builds an index from entries, validating every rule. Either all entries
// are accepted or an error is returned.
func New(version string, entries []Entry) (*Index, error) {
	idx := &Index{
		version: version,
		entries: make(map[string]Entry, len(entries)),
	}

	for i, e := range entries {
		key := NormalizeMarker(e.Marker)
		if !isSingleToken(key) {
			return nil, fmt.Errorf("entry %d: marker %q is not a single token", i, e.Marker)
		}
		assoc := NormalizeItem(e.Association)
		if assoc == "" {
			return nil, fmt.Errorf("entry %d (%s): association is empty", i, e.Marker)
		}
		switch e.Effect {
		case models.EffectBeneficial, models.EffectAdverse, models.EffectNeutral:
		default:
			return nil, fmt.Errorf("entry %d (%s): unknown effect %q", i, e.Marker, e.Effect)
		}
		if math.IsNaN(e.Weight) || math.IsInf(e.Weight, 0) || e.Weight < 0 {
			return nil, fmt.Errorf("entry %d (%s): weight must be a non-negative number", i, e.Marker)
		}
		if _, dup := idx.entries[key]; dup {
			return nil, fmt.Errorf("entry %d: duplicate marker %q", i, key)
		}

		e.Marker = strings.TrimSpace(e.Marker)
		e.Association = strings.TrimSpace(e.Association)
		e.key = key
		e.assocKey = assoc
		idx.entries[key] = e
	}

	return idx, nil
}

// Parse decodes a JSON index document.
func Parse(r io.Reader) (*Index, error) {
	dec := json.NewDecoder(r)
	dec.DisallowUnknownFields()

	var doc document
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("decode index: %w", err)
	}
	if doc.Entries == nil {
		return nil, fmt.Errorf("decode index: missing entries")
	}
	return New(doc.Version, doc.Entries)
}

// Lookup returns the rule for a normalized marker key.
func (idx *Index) Lookup(key string) (Entry, bool) {
	if idx == nil {
		return Entry{}, false
	}
	e, ok := idx.entries[key]
	return e, ok
}

// Len returns the number of rules.
func (idx *Index) Len() int {
	if idx == nil {
		return 0
	}
	return len(idx.entries)
}

// Degraded reports whether this index stands in for one that failed to load.
func (idx *Index) Degraded() bool {
	return idx == nil || idx.degraded
}

// Version returns the document version string.
func (idx *Index) Version() string {
	if idx == nil {
		return ""
	}
	return idx.version
}
