package announce

import (
	"time"

	"plug-herald/internal/model"
)

// placeholderTitle is rendered when there is no post to show.
const placeholderTitle = "No Articles"

// Notification is the payload handed to the messaging platform, which
// renders it in its own rich-message format.
type Notification struct {
	Title        string       `json:"title" yaml:"title"`
	Description  string       `json:"description" yaml:"description"`
	URL          string       `json:"url" yaml:"url"`
	Timestamp    time.Time    `json:"timestamp" yaml:"timestamp"`
	Author       model.Author `json:"author" yaml:"author"`
	ThumbnailURL string       `json:"thumbnail_url,omitempty" yaml:"thumbnail_url,omitempty"`
}

// NewNotification renders a post.
func NewNotification(p model.Post) Notification {
	n := Notification{
		Title:       p.Title,
		Description: p.Description,
		URL:         p.URL,
		Timestamp:   p.Timestamp.UTC(),
		Author:      p.Author,
	}
	if p.Thumbnail != nil {
		n.ThumbnailURL = p.Thumbnail.URL
	}
	return n
}

// Placeholder is shown when nothing can be rendered.
func Placeholder() Notification {
	return Notification{Title: placeholderTitle}
}

// IsPlaceholder reports whether n carries no post.
func (n Notification) IsPlaceholder() bool {
	return n.Title == placeholderTitle && n.URL == ""
}
