package domain

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/miekg/dns"
)

// List is the ordered, validated set of domain names being monitored
type List []string

// Duplicate is a domain name appearing on more than one line of the source
type Duplicate struct {
	Name  string
	Lines []int
}

// ValidationError reports a domain list that cannot be used. Exactly one of
// Invalid, Empty or Duplicates describes the problem.
type ValidationError struct {
	Source     string
	Invalid    string
	Line       int
	Empty      bool
	Duplicates []Duplicate
}

func (e *ValidationError) Error() string {
	switch {
	case e.Invalid != "":
		return fmt.Sprintf("validation of %s failed: '%s' (line %d) is invalid", e.Source, e.Invalid, e.Line)
	case e.Empty:
		return fmt.Sprintf("there are no valid domains in %s", e.Source)
	default:
		var b strings.Builder
		fmt.Fprintf(&b, "duplicate value(s) found in %s:", e.Source)
		for _, d := range e.Duplicates {
			for _, line := range d.Lines {
				fmt.Fprintf(&b, "\n * %s (Line %d)", d.Name, line)
			}
		}
		return b.String()
	}
}

// LoadFile reads a newline-delimited domain list and validates it
func LoadFile(path string) (List, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("unable to read domain list: %w", err)
	}
	defer func() { _ = file.Close() }()

	var lines []string
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	return Parse(path, lines)
}

// Parse normalizes raw lines into a List. Trailing dots are stripped and
// lines left empty are dropped; every remaining entry must be a hostname and
// appear only once. Line numbers in errors refer to the raw input.
func Parse(source string, lines []string) (List, error) {
	type entry struct {
		name string
		line int
	}

	entries := make([]entry, 0, len(lines))
	for i, raw := range lines {
		name := strings.TrimRight(strings.TrimSuffix(raw, "\r"), ".")
		if name == "" {
			continue
		}
		if !IsHostname(name) {
			return nil, &ValidationError{Source: source, Invalid: strings.TrimSpace(name), Line: i + 1}
		}
		entries = append(entries, entry{name: name, line: i + 1})
	}

	if len(entries) == 0 {
		return nil, &ValidationError{Source: source, Empty: true}
	}

	counts := make(map[string]int, len(entries))
	for _, e := range entries {
		counts[e.name]++
	}
	var dups []Duplicate
	pos := make(map[string]int)
	for _, e := range entries {
		if counts[e.name] < 2 {
			continue
		}
		i, ok := pos[e.name]
		if !ok {
			i = len(dups)
			pos[e.name] = i
			dups = append(dups, Duplicate{Name: e.name})
		}
		dups[i].Lines = append(dups[i].Lines, e.line)
	}
	if len(dups) > 0 {
		return nil, &ValidationError{Source: source, Duplicates: dups}
	}

	list := make(List, len(entries))
	for i, e := range entries {
		list[i] = e.name
	}
	return list, nil
}

// IsHostname reports whether name is a syntactically valid host name:
// dot-separated labels of letters, digits and hyphens, none starting or
// ending with a hyphen, within the DNS length limits.
func IsHostname(name string) bool {
	if _, ok := dns.IsDomainName(name); !ok || len(name) > 253 {
		return false
	}
	for _, label := range dns.SplitDomainName(name) {
		if label == "" || len(label) > 63 {
			return false
		}
		if label[0] == '-' || label[len(label)-1] == '-' {
			return false
		}
		for _, r := range label {
			switch {
			case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-':
			default:
				return false
			}
		}
	}
	return true
}

// Index returns the position of name in the list
func (l List) Index(name string) (int, bool) {
	for i, d := range l {
		if d == name {
			return i, true
		}
	}
	return 0, false
}

// Contains reports whether name is monitored
func (l List) Contains(name string) bool {
	_, ok := l.Index(name)
	return ok
}
