// Package tags holds the static tag data the bot is started with (the two
// exclusion sets and the implication map) and the implication-based
// deduplication applied to catalog results.
//
// A Catalog is built once at startup and never mutated afterwards; it is
// passed by pointer to every component that needs it.
package tags

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrMalformedImplication is returned when an implication line is not a
// "specific%general" pair.
var ErrMalformedImplication = errors.New("malformed implication line")

// Set is an immutable set of lowercase tags. Insertion order is kept so the
// tags can be rendered into queries deterministically.
type Set struct {
	index   map[string]struct{}
	ordered []string
}

// NewSet builds a Set from raw tags. Tags are trimmed and lowercased; blank
// entries and duplicates are dropped.
func NewSet(raw ...string) Set {
	s := Set{index: make(map[string]struct{}, len(raw))}
	for _, t := range raw {
		t = normalize(t)
		if t == "" {
			continue
		}
		if _, dup := s.index[t]; dup {
			continue
		}
		s.index[t] = struct{}{}
		s.ordered = append(s.ordered, t)
	}
	return s
}

// Contains reports whether tag is in the set. The lookup is case-insensitive.
func (s Set) Contains(tag string) bool {
	_, ok := s.index[normalize(tag)]
	return ok
}

// Len returns the number of tags in the set.
func (s Set) Len() int {
	return len(s.ordered)
}

// Tags returns a copy of the tags in insertion order.
func (s Set) Tags() []string {
	out := make([]string, len(s.ordered))
	copy(out, s.ordered)
	return out
}

// Intersect returns the tags of candidates that are in the set, in
// candidate order and without duplicates.
func (s Set) Intersect(candidates []string) []string {
	var out []string
	seen := make(map[string]struct{})
	for _, c := range candidates {
		n := normalize(c)
		if _, ok := s.index[n]; !ok {
			continue
		}
		if _, dup := seen[n]; dup {
			continue
		}
		seen[n] = struct{}{}
		out = append(out, n)
	}
	return out
}

// ImplicationMap maps a specific tag to the broader tags it implies.
type ImplicationMap map[string][]string

// Implied returns the tags implied by tag, or nil.
func (m ImplicationMap) Implied(tag string) []string {
	return m[normalize(tag)]
}

// Pair is one "antecedent implies consequent" relation.
type Pair struct {
	Antecedent string
	Consequent string
}

// Catalog is the read-only tag configuration shared by the safety gate, the
// search orchestrator and the deduplicator.
type Catalog struct {
	// Base is injected as negated terms into queries that are not
	// safe-rated. It is kept small because the catalog caps query terms.
	Base Set
	// Aliased is Base plus alias forms. It is only used to reject requests
	// before any query is sent.
	Aliased Set
	// Implications drives result deduplication.
	Implications ImplicationMap
}

// NewCatalog assembles a Catalog from already parsed parts.
func NewCatalog(base, aliased Set, implications ImplicationMap) *Catalog {
	if implications == nil {
		implications = ImplicationMap{}
	}
	return &Catalog{Base: base, Aliased: aliased, Implications: implications}
}

// Paths locates the three static tag files.
type Paths struct {
	Blacklist      string
	AliasBlacklist string
	Implications   string
}

// Load reads all three tag files and returns the Catalog.
func Load(paths Paths) (*Catalog, error) {
	base, err := ReadSet(paths.Blacklist)
	if err != nil {
		return nil, fmt.Errorf("reading blacklist: %w", err)
	}
	aliased, err := ReadSet(paths.AliasBlacklist)
	if err != nil {
		return nil, fmt.Errorf("reading alias blacklist: %w", err)
	}
	implications, err := ReadImplications(paths.Implications)
	if err != nil {
		return nil, fmt.Errorf("reading implications: %w", err)
	}

	for _, t := range base.ordered {
		if !aliased.Contains(t) {
			log.Warn().Str("tag", t).Msg("blacklist tag missing from alias blacklist")
		}
	}

	log.Info().
		Int("blacklist", base.Len()).
		Int("alias_blacklist", aliased.Len()).
		Int("implications", len(implications)).
		Msg("tag_catalog_loaded")

	return NewCatalog(base, aliased, implications), nil
}

// ReadSet reads a newline separated tag list from path.
func ReadSet(path string) (Set, error) {
	f, err := os.Open(path)
	if err != nil {
		return Set{}, err
	}
	defer f.Close()
	return ParseSet(f)
}

// ParseSet parses a newline separated tag list.
func ParseSet(r io.Reader) (Set, error) {
	var raw []string
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		raw = append(raw, sc.Text())
	}
	if err := sc.Err(); err != nil {
		return Set{}, err
	}
	return NewSet(raw...), nil
}

// ReadImplications reads an implication file from path.
func ReadImplications(path string) (ImplicationMap, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseImplications(f)
}

// ParseImplications parses "specific%general" lines. Repeated antecedents
// accumulate their consequents in file order. Blank lines are skipped.
func ParseImplications(r io.Reader) (ImplicationMap, error) {
	m := ImplicationMap{}
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		from, to, ok := strings.Cut(text, "%")
		from, to = normalize(from), normalize(to)
		if !ok || from == "" || to == "" || strings.Contains(to, "%") {
			return nil, fmt.Errorf("line %d %q: %w", line, text, ErrMalformedImplication)
		}
		m[from] = append(m[from], to)
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return m, nil
}

// WriteImplications writes pairs in the format ParseImplications reads.
func WriteImplications(w io.Writer, pairs []Pair) error {
	bw := bufio.NewWriter(w)
	for _, p := range pairs {
		if _, err := fmt.Fprintf(bw, "%s%%%s\n", p.Antecedent, p.Consequent); err != nil {
			return err
		}
	}
	return bw.Flush()
}

func normalize(tag string) string {
	return strings.ToLower(strings.TrimSpace(tag))
}
