package whois

import (
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode"

	whoisparser "github.com/likexian/whois-parser"

	"github.com/mallocator/domain-mon/pkg/state"
)

var (
	// Most registries (com, org, net, uk, ...) put the date after the label
	expiryLine = regexp.MustCompile(`(?i)expiry date.*`)
	// gov.uk puts the date on the line below "Renewal date:"
	renewalLine = regexp.MustCompile(`(?i)renewal date:\r?\n.*`)

	// JANET writes dates as "Tuesday 29th Aug 2023"
	leadingWeekday = regexp.MustCompile(`(?i)^(?:mon|tue|wed|thu|fri|sat|sun)[a-z]*,?\s+`)
	ordinalDay     = regexp.MustCompile(`(?i)\b(\d{1,2})(?:st|nd|rd|th)\b`)
)

// dateLayouts are tried in order against the extracted value. Slashes read
// month first, dots and dashes read day first.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05-0700",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04:05 MST",
	"2006-01-02 15:04:05Z07:00",
	"02-Jan-2006",
	"2-Jan-2006",
	"02-January-2006",
	"02-Jan-2006 15:04:05",
	"02-01-2006",
	"02.01.2006",
	"2006/01/02",
	"2006.01.02",
	"01/02/2006",
	"Jan 2 2006",
	"Jan 2, 2006",
	"January 2 2006",
	"January 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
	"2 January 2006 at 15:04:05.000",
	time.UnixDate,
	time.RFC1123,
	time.RFC1123Z,
}

// Result is the outcome of extracting an expiry date from a WHOIS reply
type Result struct {
	// Date is the normalized YYYY-MM-DD expiry, empty when not found
	Date string
	// Matched is the raw text that held the date, if a pattern matched
	Matched string
	// Reason explains a missing date
	Reason string
}

// Found reports whether a date was extracted
func (r Result) Found() bool {
	return r.Date != ""
}

// Record converts the result into a store record
func (r Result) Record() state.Record {
	if !r.Found() {
		return state.NotFound()
	}
	return state.Known(r.Date)
}

// ParseExpiry extracts the expiry date from a raw WHOIS reply. The general
// "expiry date" label is tried first; the value is the text after its last
// blank. Only when that label is missing is the "renewal date:" layout used,
// where the value is the whole next line.
func ParseExpiry(raw string) Result {
	var res Result
	var value string

	if m := expiryLine.FindString(raw); m != "" {
		res.Matched = trim(m)
		value = res.Matched[strings.LastIndexAny(res.Matched, " \t")+1:]
	} else if m := renewalLine.FindString(raw); m != "" {
		res.Matched = trim(m)
		value = m[strings.Index(m, "\n")+1:]
	} else {
		res.Reason = "no expiry date field in reply"
		return res
	}

	t, ok := parseDate(trim(value))
	if !ok {
		res.Reason = "unable to parse date \"" + res.Matched + "\""
		return res
	}
	res.Date = t.Format(state.DateLayout)
	return res
}

// Classify names the kind of reply that carried no expiry date, such as an
// unregistered or rate limited domain. It returns "" when nothing is known.
func Classify(raw string) string {
	_, err := whoisparser.Parse(raw)
	switch {
	case err == nil:
		return ""
	case errors.Is(err, whoisparser.ErrNotFoundDomain):
		return "domain is not registered"
	case errors.Is(err, whoisparser.ErrReservedDomain):
		return "domain is reserved"
	case errors.Is(err, whoisparser.ErrPremiumDomain):
		return "domain is offered at a premium price"
	case errors.Is(err, whoisparser.ErrBlockedDomain):
		return "domain is blocked"
	case errors.Is(err, whoisparser.ErrDomainLimitExceed):
		return "query limit exceeded"
	default:
		return ""
	}
}

// parseDate tries every layout against value, then against value with a
// leading weekday and ordinal day suffixes removed.
func parseDate(value string) (time.Time, bool) {
	if value == "" {
		return time.Time{}, false
	}
	for _, v := range []string{value, normalizeDate(value)} {
		for _, layout := range dateLayouts {
			if t, err := time.Parse(layout, v); err == nil {
				return t, true
			}
		}
	}
	return time.Time{}, false
}

func normalizeDate(value string) string {
	value = leadingWeekday.ReplaceAllString(value, "")
	return ordinalDay.ReplaceAllString(value, "$1")
}

func trim(s string) string {
	return strings.TrimFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || unicode.IsControl(r)
	})
}
