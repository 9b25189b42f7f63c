package report

import (
	"fmt"
	"html"
	"strings"
	"time"
)

const style = `<style>th { text-align: left; padding-right: 120px; }
th,td { padding-left: 0; }
.no-mar-top { margin-top: 0 }</style>`

const (
	listHead  = "<tr><th><b>[Domain Name]</b></th><th><b>[Expiry Date]</b></th></tr>\n"
	errorHead = "<tr><th><b>[Domain Name]</b></th><th><b>[Error Description]</b></th></tr>\n"
)

// bucketDays names the window of each dated bucket in summary sentences
var bucketDays = map[Bucket]string{Within7: "7", Within28: "28", Within90: "90", Beyond90: "90+"}

// Render formats the report as an HTML email body, optionally preceded by
// email headers.
func (g *Generator) Render(r *Report, opts Options) string {
	name := html.EscapeString(g.cfg.CustomName)
	var b strings.Builder

	if opts.Headers && g.cfg.HeadersConfigured() {
		fmt.Fprintf(&b, "From: %s <%s>\n", g.cfg.CustomName, g.cfg.FromAddress)
		fmt.Fprintf(&b, "To: %s\n", g.cfg.ToAddress)
		fmt.Fprintf(&b, "Subject: %s\n", g.subject(r.Now))
		b.WriteString("Content-Type: text/html\n")
		b.WriteString("Content-Disposition: inline\n\n")
	}

	b.WriteString("<html>\n<head>\n" + style + "\n</head>\n<body>\n\n<p>Hi,</p>\n\n")

	hasDue := r.HasDue()
	if !hasDue {
		b.WriteString("<p>No domain names are due for renewal within the next 90 days.</p>\n\n")
	}

	listed := false
	for bucket := Expired; bucket < numBuckets; bucket++ {
		entries := r.Buckets[bucket]
		if len(entries) == 0 || (bucket == Beyond90 && !opts.Full) {
			continue
		}
		b.WriteString(summary(bucket, len(entries), listed, name))

		b.WriteString("<table>\n")
		if bucket == Errors {
			b.WriteString(errorHead)
			for _, e := range entries {
				fmt.Fprintf(&b, "<tr><td>%s</td><td>%s</td></tr>\n", e.Domain, e.Expiry)
			}
		} else {
			b.WriteString(listHead)
			for _, e := range entries {
				fmt.Fprintf(&b, "<tr><td>%s</td><td>%s (%d %s)</td></tr>\n", e.Domain, e.Expiry, e.Days, plural(e.Days, "day", "days"))
			}
		}
		b.WriteString("</table>\n\n")
		listed = true
	}

	notDue := len(r.Buckets[Beyond90])
	if hasDue && notDue > 0 {
		fmt.Fprintf(&b, "<p>There %s %d domain %s not yet due for renewal, and a",
			plural(notDue, "is", "are"), notDue, plural(notDue, "name", "names"))
	} else {
		b.WriteString("<p>There is a")
	}
	fmt.Fprintf(&b, " total of %d domain %s in the monitoring list.</p>\n\n", r.Total, plural(r.Total, "name", "names"))
	fmt.Fprintf(&b, "<p>Thank you,<br/>\n%s</p>\n\n</body>\n</html>", name)

	return b.String()
}

// Subject returns the email subject for a report generated at now
func (g *Generator) Subject(now time.Time) string {
	return g.subject(now.In(g.cfg.Location()))
}

func (g *Generator) subject(now time.Time) string {
	return fmt.Sprintf("%s Report for %s", g.cfg.CustomName, now.Format("2006-01-02 3:04:05 PM"))
}

// summary returns the sentence introducing a bucket's table
func summary(bucket Bucket, count int, another bool, name string) string {
	countPrefix := ""
	if count > 1 {
		countPrefix = fmt.Sprintf("%d ", count)
	}
	again := ""
	if another {
		again = "another "
	}

	switch bucket {
	case Expired:
		return fmt.Sprintf("<p>The following %sdomain %s EXPIRED!</p>\n", countPrefix, plural(count, "name has", "names have"))
	case Errors:
		return fmt.Sprintf("<p>%s encountered problems checking the following %sdomain %s:</p>\n", name, countPrefix, plural(count, "name", "names"))
	default:
		urgent := ""
		if bucket == Within7 {
			urgent = "<u>urgent</u> "
		}
		return fmt.Sprintf("<p>There %s %s%d domain name %s requiring %saction within the next %s days:</p>\n",
			plural(count, "is", "are"), again, count, plural(count, "renewal", "renewals"), urgent, bucketDays[bucket])
	}
}

func plural(n int, one, many string) string {
	if n == 1 || n == -1 {
		return one
	}
	return many
}
