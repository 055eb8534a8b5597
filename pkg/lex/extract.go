package lex

import (
	"encoding/binary"
	"fmt"
	"math/rand/v2"
	"regexp"
	"sort"
	"strings"
	"sync"

	"github.com/cespare/xxhash/v2"
)

// Extraction categories used by the pipeline
const (
	CategoryNoparse        = "noparse"
	CategoryLoopedTags     = "looped_tags"
	CategoryCallbackBlocks = "callback_blocks"
	CategoryRendered       = "rendered"
)

// Store hides regions of text behind opaque placeholders so later passes
// cannot match them, and restores them on demand.
//
// Placeholders are hashed with a per-store seed, so data values rendered into
// the text cannot spell out a token this store will restore.
type Store struct {
	mu      sync.Mutex
	seed    [8]byte
	entries map[string]map[string]string
	order   []string
	pattern *regexp.Regexp
}

type entryKey struct {
	category string
	hash     string
}

// NewStore creates an empty extraction store
func NewStore() *Store {
	s := &Store{entries: make(map[string]map[string]string)}
	binary.LittleEndian.PutUint64(s.seed[:], rand.Uint64())
	return s
}

func (s *Store) hash(content string) string {
	d := xxhash.New()
	_, _ = d.Write(s.seed[:])
	_, _ = d.WriteString(content)
	return fmt.Sprintf("%016x", d.Sum64())
}

// Placeholder returns the token this store uses for replacement under category
func (s *Store) Placeholder(category, replacement string) string {
	return category + "_" + s.hash(replacement)
}

// Extract records replacement under category and swaps the first occurrence
// of raw in text for the placeholder. Identical replacements share one entry.
func (s *Store) Extract(category, raw, replacement, text string) string {
	return strings.Replace(text, raw, s.Hide(category, replacement), 1)
}

// Hide records replacement under category and returns its placeholder, for
// callers that splice the placeholder in themselves.
func (s *Store) Hide(category, replacement string) string {
	hash := s.hash(replacement)

	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.entries[category]
	if !ok {
		bucket = make(map[string]string)
		s.entries[category] = bucket
		s.order = append(s.order, category)
		s.pattern = nil
	}
	bucket[hash] = replacement
	return category + "_" + hash
}

// tokenPattern matches a placeholder of any known category. Longer category
// names come first so one that ends another is never matched short.
func (s *Store) tokenPattern() *regexp.Regexp {
	if s.pattern != nil || len(s.order) == 0 {
		return s.pattern
	}
	names := make([]string, len(s.order))
	for i, category := range s.order {
		names[i] = regexp.QuoteMeta(category)
	}
	sort.Slice(names, func(i, j int) bool { return len(names[i]) > len(names[j]) })
	s.pattern = regexp.MustCompile(`(` + strings.Join(names, "|") + `)_([0-9a-f]{16})`)
	return s.pattern
}

// Inject restores every placeholder of category found in text. Restored
// entries are dropped.
func (s *Store) Inject(text, category string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked(text, func(c string) bool { return c == category })
}

// InjectAll restores placeholders of every category, including placeholders
// carried inside restored content.
func (s *Store) InjectAll(text string) string {
	return s.InjectExcept(text)
}

// InjectExcept behaves like InjectAll but leaves the listed categories alone
func (s *Store) InjectExcept(text string, skip ...string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.restoreLocked(text, func(c string) bool { return !contains(skip, c) })
}

func (s *Store) restoreLocked(text string, allow func(string) bool) string {
	pattern := s.tokenPattern()
	if pattern == nil {
		return text
	}
	used := make(map[entryKey]bool)
	text = s.expandLocked(text, pattern, allow, used, make(map[entryKey]bool))
	for key := range used {
		delete(s.entries[key.category], key.hash)
	}
	return text
}

// expandLocked substitutes tokens in one left-to-right scan. Restored content
// is expanded on its own before it is spliced in, and the spliced result is
// never scanned again.
func (s *Store) expandLocked(text string, pattern *regexp.Regexp, allow func(string) bool, used, active map[entryKey]bool) string {
	matches := pattern.FindAllStringSubmatchIndex(text, -1)
	if len(matches) == 0 {
		return text
	}

	var sb strings.Builder
	last := 0
	for _, m := range matches {
		key := entryKey{category: text[m[2]:m[3]], hash: text[m[4]:m[5]]}
		replacement, ok := s.entries[key.category][key.hash]
		if !ok || !allow(key.category) || active[key] {
			continue
		}
		sb.WriteString(text[last:m[0]])
		active[key] = true
		sb.WriteString(s.expandLocked(replacement, pattern, allow, used, active))
		delete(active, key)
		used[key] = true
		last = m[1]
	}
	sb.WriteString(text[last:])
	return sb.String()
}

// Len returns the number of pending entries in category
func (s *Store) Len(category string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries[category])
}

// Reset drops every pending entry
func (s *Store) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = make(map[string]map[string]string)
	s.order = nil
	s.pattern = nil
}

func contains(list []string, s string) bool {
	for _, item := range list {
		if item == s {
			return true
		}
	}
	return false
}
