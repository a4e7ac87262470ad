package plug

import (
	"fmt"
	"html"
	"io"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"plug-herald/internal/model"
)

// Markers of the "frame" markup version.
const (
	itemSelector        = ".frame_plug"
	articleIDAttr       = "data-articleid"
	titleSelector       = ".tit_feed"
	descriptionSelector = ".txt_feed"
	timeSelector        = ".time"
	authorSelector      = ".name"
	iconSelector        = ".thumb"
	imageSelector       = ".img"

	// publishTimeIndex is the position of the publish-relative time among
	// the item's time fields.
	publishTimeIndex = 1
	// styleURLOffset is where the image URL starts inside the thumbnail's
	// inline style, i.e. after `background-image:url(`.
	styleURLOffset = len("background-image:url(")
)

var whitespaceRe = regexp.MustCompile(`\s+`)

// Parser extracts posts from one page of raw markup. There is one
// implementation per markup version of the source.
type Parser interface {
	Parse(r io.Reader) (Page, error)
}

// TimeResolver turns a page timestamp into an instant relative to now.
type TimeResolver interface {
	Resolve(now time.Time, raw string) time.Time
}

// Page is the parse result of one page. Items that could not be extracted
// are listed in Failures; the rest of the page is still returned.
type Page struct {
	Posts    []model.Post
	Failures []ItemError
}

// ItemError records an item skipped because a required field was missing.
type ItemError struct {
	Index     int
	ArticleID string
	Field     string
}

func (e ItemError) Error() string {
	if e.ArticleID == "" {
		return fmt.Sprintf("plug: item %d: missing %s", e.Index, e.Field)
	}
	return fmt.Sprintf("plug: item %d (article %s): missing %s", e.Index, e.ArticleID, e.Field)
}

// FrameParser parses the "frame_plug" card layout of plug.game post lists.
type FrameParser struct {
	// Origin prefixes author profile paths, e.g. "https://plug.game".
	Origin string
	// PostURLBase prefixes the article id to build the permalink.
	PostURLBase string
	Resolver    TimeResolver
	Now         func() time.Time
}

// Parse implements Parser.
func (p *FrameParser) Parse(r io.Reader) (Page, error) {
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return Page{}, fmt.Errorf("plug: parse page: %w", err)
	}
	now := time.Now()
	if p.Now != nil {
		now = p.Now()
	}
	var page Page
	doc.Find(itemSelector).Each(func(i int, s *goquery.Selection) {
		post, ierr := p.parseItem(now, s)
		if ierr != nil {
			ierr.Index = i
			page.Failures = append(page.Failures, *ierr)
			return
		}
		page.Posts = append(page.Posts, post)
	})
	return page, nil
}

func (p *FrameParser) parseItem(now time.Time, s *goquery.Selection) (model.Post, *ItemError) {
	rawID, _ := s.Attr(articleIDAttr)
	rawID = strings.TrimSpace(rawID)
	missing := func(field string) (model.Post, *ItemError) {
		return model.Post{}, &ItemError{ArticleID: rawID, Field: field}
	}
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil || id <= 0 {
		return missing(articleIDAttr)
	}

	title := s.Find(titleSelector).First()
	if title.Length() == 0 {
		return missing(titleSelector)
	}
	desc := s.Find(descriptionSelector).First()
	if desc.Length() == 0 {
		return missing(descriptionSelector)
	}
	times := s.Find(timeSelector)
	if times.Length() <= publishTimeIndex {
		return missing(timeSelector)
	}
	author := s.Find(authorSelector).First()
	if author.Length() == 0 {
		return missing(authorSelector)
	}
	href, ok := author.Attr("href")
	if !ok || strings.TrimSpace(href) == "" {
		return missing(authorSelector + "[href]")
	}
	icon, ok := s.Find(iconSelector).First().Attr("src")
	if !ok || strings.TrimSpace(icon) == "" {
		return missing(iconSelector + "[src]")
	}

	post := model.Post{
		ID:          id,
		Title:       cleanText(title.Text()),
		Description: cleanText(desc.Text()),
		URL:         p.PostURLBase + rawID,
		Timestamp:   p.resolve(now, times.Eq(publishTimeIndex).Text()),
		Author: model.Author{
			Name:    cleanText(author.Text()),
			URL:     absURL(p.Origin, strings.TrimSpace(href)),
			IconURL: strings.TrimSpace(icon),
		},
	}
	if style, ok := s.Find(imageSelector).First().Attr("style"); ok {
		if u := styleURL(style); u != "" {
			post.Thumbnail = &model.Thumbnail{URL: u}
		}
	}
	return post, nil
}

func (p *FrameParser) resolve(now time.Time, raw string) time.Time {
	if p.Resolver == nil {
		return now.UTC()
	}
	return p.Resolver.Resolve(now, cleanText(raw))
}

// cleanText decodes entities left after markup decoding and collapses
// whitespace runs to single spaces.
func cleanText(s string) string {
	s = html.UnescapeString(s)
	return strings.TrimSpace(whitespaceRe.ReplaceAllString(s, " "))
}

// styleURL extracts the image URL from an inline style such as
// `background-image:url(https://cdn/x.jpg)`.
func styleURL(style string) string {
	style = strings.TrimRight(strings.TrimSpace(style), "; ")
	if len(style) <= styleURLOffset+1 {
		return ""
	}
	u := strings.TrimSuffix(style[styleURLOffset:], ")")
	return strings.TrimSpace(strings.Trim(u, `'"`))
}

func absURL(origin, href string) string {
	if strings.HasPrefix(href, "http://") || strings.HasPrefix(href, "https://") {
		return href
	}
	return strings.TrimRight(origin, "/") + "/" + strings.TrimLeft(href, "/")
}
