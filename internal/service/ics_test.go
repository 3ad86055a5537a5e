package service

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestEscapeICSText(t *testing.T) {
	assert.Equal(t, `Movie\, Night\; Plan\\Now\nLine 2`, EscapeICSText("Movie, Night; Plan\\Now\nLine 2"))
	assert.Equal(t, `a\nb`, EscapeICSText("a\r\nb"))
}

func TestICSTimestamp(t *testing.T) {
	ts := time.Date(2026, 2, 12, 21, 15, 30, 0, time.FixedZone("CET", 3600))
	assert.Equal(t, "20260212T201530Z", ICSTimestamp(ts))
}

func TestBuildCalendar(t *testing.T) {
	payload := BuildCalendar(CalendarEvent{
		UID:          "movie-night-44@movienight",
		CalendarName: "My Group Nights",
		Summary:      "Friday Movie Night",
		Description:  "Watchlist winner",
		Start:        time.Date(2026, 2, 20, 20, 0, 0, 0, time.UTC),
		Stamp:        time.Date(2026, 2, 1, 10, 0, 0, 0, time.UTC),
	})

	assert.True(t, strings.HasPrefix(payload, "BEGIN:VCALENDAR\r\n"))
	assert.True(t, strings.HasSuffix(payload, "END:VCALENDAR\r\n"))
	assert.Contains(t, payload, "BEGIN:VEVENT\r\n")
	assert.Contains(t, payload, "UID:movie-night-44@movienight\r\n")
	assert.Contains(t, payload, "DTSTAMP:20260201T100000Z\r\n")
	assert.Contains(t, payload, "DTEND:20260220T220000Z\r\n")
	assert.Contains(t, payload, "SUMMARY:Friday Movie Night\r\n")
	assert.NotContains(t, strings.ReplaceAll(payload, "\r\n", ""), "\n")

	t.Run("defaults", func(t *testing.T) {
		payload := BuildCalendar(CalendarEvent{UID: "x", Start: time.Date(2026, 2, 20, 20, 0, 0, 0, time.UTC)})
		assert.Contains(t, payload, "X-WR-CALNAME:Movie Nights\r\n")
		assert.Contains(t, payload, "SUMMARY:Movie Night\r\n")
	})
}

func TestFoldICSLine(t *testing.T) {
	line := "DESCRIPTION:" + strings.Repeat("x", 150)
	folded := foldICSLine(line)
	parts := strings.Split(folded, "\r\n")
	assert.Len(t, parts, 3)
	assert.Len(t, parts[0], icsLineLimit)
	for _, p := range parts[1:] {
		assert.True(t, strings.HasPrefix(p, " "))
		assert.LessOrEqual(t, len(p), icsLineLimit+1)
	}
	// unfolding restores the original line
	assert.Equal(t, line, strings.ReplaceAll(folded, "\r\n ", ""))

	assert.Equal(t, "SHORT:line", foldICSLine("SHORT:line"))
}

func TestCalendarFilename(t *testing.T) {
	start := time.Date(2026, 2, 20, 20, 0, 0, 0, time.UTC)
	assert.Equal(t, "friday-crew-20260220-4f1c2a9b.ics", CalendarFilename("Friday Crew!!", start, "4f1c2a9b-0000-4000-8000-000000000000"))
	assert.Equal(t, "movie-night-20260220-event.ics", CalendarFilename("!!!", start, ""))

	long := CalendarFilename(strings.Repeat("abc ", 20), start, "id")
	assert.LessOrEqual(t, len(strings.SplitN(long, "-2026", 2)[0]), 40)
}
