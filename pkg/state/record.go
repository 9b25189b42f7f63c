package state

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// NotFoundSentinel is the persisted form of a lookup that produced no date
const NotFoundSentinel = "ERR_NO_DATE"

// DateLayout is the normalized textual form of an expiry date
const DateLayout = "2006-01-02"

// Record is the last known expiry result for one domain: either a date or
// NotFound. The zero value is NotFound.
type Record struct {
	date string
}

// Known returns a record holding a normalized YYYY-MM-DD date
func Known(date string) Record {
	return Record{date: date}
}

// NotFound returns the record for a domain whose expiry could not be determined
func NotFound() Record {
	return Record{}
}

// Date returns the expiry date and whether one is known
func (r Record) Date() (string, bool) {
	return r.date, r.date != ""
}

// IsNotFound reports whether no date is known
func (r Record) IsNotFound() bool {
	return r.date == ""
}

// Time returns midnight of the expiry date in loc
func (r Record) Time(loc *time.Location) (time.Time, error) {
	if r.IsNotFound() {
		return time.Time{}, fmt.Errorf("no expiry date recorded")
	}
	return time.ParseInLocation(DateLayout, r.date, loc)
}

// String returns the persisted form of the record
func (r Record) String() string {
	if r.IsNotFound() {
		return NotFoundSentinel
	}
	return r.date
}

func parseRecord(s string) (Record, error) {
	if s == NotFoundSentinel {
		return NotFound(), nil
	}
	if _, err := time.Parse(DateLayout, s); err != nil {
		return Record{}, fmt.Errorf("invalid expiry value %q", s)
	}
	return Known(s), nil
}

// Store maps domain names to their last known Record, preserving the order
// in which domains were first recorded.
type Store struct {
	order   []string
	records map[string]Record
}

// NewStore returns an empty store
func NewStore() *Store {
	return &Store{records: make(map[string]Record)}
}

// Set records rec for domain. An existing domain keeps its position.
func (s *Store) Set(domain string, rec Record) {
	if _, ok := s.records[domain]; !ok {
		s.order = append(s.order, domain)
	}
	s.records[domain] = rec
}

// Get returns the record for domain
func (s *Store) Get(domain string) (Record, bool) {
	rec, ok := s.records[domain]
	return rec, ok
}

// Len returns the number of recorded domains
func (s *Store) Len() int {
	return len(s.order)
}

// Domains returns the recorded domain names in store order
func (s *Store) Domains() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Prune removes every domain for which keep returns false and returns the
// removed names.
func (s *Store) Prune(keep func(domain string) bool) []string {
	var removed []string
	kept := s.order[:0]
	for _, d := range s.order {
		if keep(d) {
			kept = append(kept, d)
			continue
		}
		delete(s.records, d)
		removed = append(removed, d)
	}
	s.order = kept
	return removed
}

// MarshalJSON encodes the store as a JSON object in store order
func (s *Store) MarshalJSON() ([]byte, error) {
	var b bytes.Buffer
	b.WriteByte('{')
	for i, d := range s.order {
		if i > 0 {
			b.WriteByte(',')
		}
		key, err := json.Marshal(d)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(s.records[d].String())
		if err != nil {
			return nil, err
		}
		b.Write(key)
		b.WriteByte(':')
		b.Write(val)
	}
	b.WriteByte('}')
	return b.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object of domain to date or sentinel,
// keeping the key order of the document.
func (s *Store) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("expiry store must be a JSON object")
	}

	fresh := NewStore()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		domain, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected key %v", tok)
		}
		var value string
		if err := dec.Decode(&value); err != nil {
			return fmt.Errorf("value for %s: %w", domain, err)
		}
		rec, err := parseRecord(value)
		if err != nil {
			return fmt.Errorf("value for %s: %w", domain, err)
		}
		fresh.Set(domain, rec)
	}
	if _, err := dec.Token(); err != nil {
		return err
	}

	*s = *fresh
	return nil
}
