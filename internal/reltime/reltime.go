// Package reltime resolves the relative and absolute timestamps shown on
// source pages ("5 min ago", "2 hr ago", "2021.03.04") to UTC instants.
package reltime

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
)

// ErrUnresolved is returned by Parse when no layout or rule matched.
var ErrUnresolved = errors.New("reltime: unresolved time expression")

var (
	spaceRe = regexp.MustCompile(`\s+`)
	// abbreviations the NL rules do not understand, following a number or article
	unitRes = []struct {
		re   *regexp.Regexp
		full string
	}{
		{regexp.MustCompile(`\b(secs?)\b`), "seconds"},
		{regexp.MustCompile(`\b(mins?)\b`), "minutes"},
		{regexp.MustCompile(`\b(hrs?)\b`), "hours"},
		{regexp.MustCompile(`\b(wks?)\b`), "weeks"},
		{regexp.MustCompile(`\b(mos?)\b`), "months"},
		{regexp.MustCompile(`\b(yrs?)\b`), "years"},
	}
)

// absolute layouts tried before the natural-language rules
var layouts = []string{
	"2006.01.02 15:04",
	"2006.01.02",
	"2006-01-02 15:04",
	"2006-01-02",
	"01/02/2006 15:04",
	"01/02/2006",
	"Jan 2, 2006",
}

// Resolver anchors time expressions to a zone and converts results to UTC.
type Resolver struct {
	loc    *time.Location
	parser *when.Parser
}

// New returns a Resolver anchored to loc. A nil loc means time.Local.
func New(loc *time.Location) *Resolver {
	if loc == nil {
		loc = time.Local
	}
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(common.All...)
	return &Resolver{loc: loc, parser: w}
}

// Location is the zone relative expressions are anchored in.
func (r *Resolver) Location() *time.Location {
	return r.loc
}

// Normalize lowercases raw, collapses whitespace and expands unit
// abbreviations to full words.
func Normalize(raw string) string {
	s := strings.ToLower(strings.TrimSpace(spaceRe.ReplaceAllString(raw, " ")))
	for _, u := range unitRes {
		s = u.re.ReplaceAllString(s, u.full)
	}
	return s
}

// Parse resolves raw relative to now. The result is in UTC.
func (r *Resolver) Parse(now time.Time, raw string) (time.Time, error) {
	s := Normalize(raw)
	if s == "" {
		return time.Time{}, ErrUnresolved
	}
	base := now.In(r.loc)
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, s, r.loc); err == nil {
			return t.UTC(), nil
		}
		// layouts with month names are matched case-sensitively
		if t, err := time.ParseInLocation(layout, strings.TrimSpace(raw), r.loc); err == nil {
			return t.UTC(), nil
		}
	}
	res, err := r.parser.Parse(s, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("reltime: parse %q: %w", raw, err)
	}
	if res == nil {
		return time.Time{}, ErrUnresolved
	}
	return res.Time.UTC(), nil
}

// Resolve is Parse with the lossy fallback used for page timestamps: an
// expression that cannot be understood resolves to now.
func (r *Resolver) Resolve(now time.Time, raw string) time.Time {
	t, err := r.Parse(now, raw)
	if err != nil {
		return now.UTC()
	}
	return t
}
