package service

import (
	"regexp"
	"strings"
	"time"
)

const (
	icsLineLimit    = 73
	icsTimeLayout   = "20060102T150405Z"
	defaultDuration = 2 * time.Hour
)

// CalendarEvent is a single VEVENT. A zero End means Start plus two hours.
type CalendarEvent struct {
	UID          string
	CalendarName string
	Summary      string
	Description  string
	Start        time.Time
	End          time.Time
	Stamp        time.Time
}

type CalendarFile struct {
	Name    string
	Content string
}

var icsEscaper = strings.NewReplacer(`\`, `\\`, "\r\n", `\n`, "\n", `\n`, ";", `\;`, ",", `\,`)

// EscapeICSText escapes an iCalendar TEXT value.
func EscapeICSText(s string) string {
	return icsEscaper.Replace(s)
}

// ICSTimestamp formats t as an RFC 5545 UTC date-time.
func ICSTimestamp(t time.Time) string {
	return t.UTC().Format(icsTimeLayout)
}

func foldICSLine(line string) string {
	if len(line) <= icsLineLimit {
		return line
	}
	var b strings.Builder
	for i := 0; i < len(line); i += icsLineLimit {
		end := min(i+icsLineLimit, len(line))
		if i > 0 {
			b.WriteString("\r\n ")
		}
		b.WriteString(line[i:end])
	}
	return b.String()
}

func orDefault(s, fallback string) string {
	if strings.TrimSpace(s) == "" {
		return fallback
	}
	return s
}

// BuildCalendar renders e as a VCALENDAR document with CRLF line endings.
func BuildCalendar(e CalendarEvent) string {
	end := e.End
	if end.IsZero() {
		end = e.Start.Add(defaultDuration)
	}
	stamp := e.Stamp
	if stamp.IsZero() {
		stamp = time.Now()
	}

	lines := []string{
		"BEGIN:VCALENDAR",
		"VERSION:2.0",
		"PRODID:-//MovieNightPlanner//Stream Teams//EN",
		"CALSCALE:GREGORIAN",
		"METHOD:PUBLISH",
		"X-WR-CALNAME:" + EscapeICSText(orDefault(e.CalendarName, "Movie Nights")),
		"BEGIN:VEVENT",
		"UID:" + EscapeICSText(e.UID),
		"DTSTAMP:" + ICSTimestamp(stamp),
		"DTSTART:" + ICSTimestamp(e.Start),
		"DTEND:" + ICSTimestamp(end),
		"SUMMARY:" + EscapeICSText(orDefault(e.Summary, "Movie Night")),
		"DESCRIPTION:" + EscapeICSText(orDefault(e.Description, "Movie night with your group.")),
		"STATUS:CONFIRMED",
		"TRANSP:OPAQUE",
		"END:VEVENT",
		"END:VCALENDAR",
	}

	var b strings.Builder
	for _, line := range lines {
		b.WriteString(foldICSLine(line))
		b.WriteString("\r\n")
	}
	return b.String()
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

func slugify(s string, limit int) string {
	slug := strings.Trim(slugPattern.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if len(slug) > limit {
		slug = strings.TrimRight(slug[:limit], "-")
	}
	return slug
}

// CalendarFilename builds "<group-slug>-<yyyymmdd>-<id>.ics".
func CalendarFilename(groupName string, start time.Time, nightID string) string {
	name := orDefault(slugify(groupName, 40), "movie-night")
	id := orDefault(slugify(nightID, 8), "event")
	return name + "-" + start.UTC().Format("20060102") + "-" + id + ".ics"
}
