package model

import "time"

// Author identifies who published a post on the source.
type Author struct {
	Name    string `json:"name" yaml:"name"`
	URL     string `json:"url" yaml:"url"`
	IconURL string `json:"icon_url" yaml:"icon_url"`
}

// Thumbnail is an optional preview image attached to a post.
type Thumbnail struct {
	URL string `json:"url" yaml:"url"`
}

// Post represents a single announcement/article extracted from a source page.
// ID is assigned by the source and is the only dedup key.
type Post struct {
	ID          int64      `json:"id" yaml:"id"`
	Title       string     `json:"title" yaml:"title"`
	Description string     `json:"description" yaml:"description"`
	URL         string     `json:"url" yaml:"url"`
	Timestamp   time.Time  `json:"timestamp" yaml:"timestamp"`
	Author      Author     `json:"author" yaml:"author"`
	Thumbnail   *Thumbnail `json:"thumbnail,omitempty" yaml:"thumbnail,omitempty"`
}

// Destination is a destination-group (e.g. a Discord guild) with at most one
// target channel. A zero ChannelID means the group has no target.
type Destination struct {
	Group     string `json:"group" yaml:"group"`
	ChannelID int64  `json:"channel_id,omitempty" yaml:"channel_id,omitempty"`
}

// HasTarget reports whether announcements should be delivered for the group.
func (d Destination) HasTarget() bool {
	return d.ChannelID != 0
}
