// Package announce fans new posts out to every destination-group with a
// configured target channel.
package announce

import (
	"context"
	"fmt"
	"log/slog"
	"unicode/utf8"

	"golang.org/x/time/rate"

	"plug-herald/internal/model"
)

// DefaultMaxDescription is the longest description delivered as is.
const DefaultMaxDescription = 4096

// Messenger delivers one notification to one channel.
type Messenger interface {
	Send(ctx context.Context, channelID int64, n Notification) error
}

// Registry lists destination-groups and their optional targets.
type Registry interface {
	Destinations(ctx context.Context) ([]model.Destination, error)
}

// Condenser shortens descriptions that exceed the delivery limit.
type Condenser interface {
	Condense(ctx context.Context, title, text string, maxRunes int) (string, error)
}

// Failure is one undelivered (post, destination) pair.
type Failure struct {
	Group     string
	ChannelID int64
	PostID    int64
	Err       error
}

// Report summarizes one dispatch.
type Report struct {
	Posts     int
	Attempted int
	Delivered int
	// Untargeted lists groups skipped because they have no target.
	Untargeted []string
	Failures   []Failure
}

// Dispatcher delivers notifications best-effort: no retries, and a failure
// only affects its own (post, destination) pair.
type Dispatcher struct {
	Messenger Messenger
	Registry  Registry
	// Limiter paces outbound calls when set.
	Limiter *rate.Limiter
	// Condenser is optional; without it long descriptions are truncated.
	Condenser      Condenser
	MaxDescription int
}

// Dispatch announces posts, oldest first, to every targeted group. Only a
// failure to read the registry is returned as an error.
func (d *Dispatcher) Dispatch(ctx context.Context, posts []model.Post) (Report, error) {
	rep := Report{Posts: len(posts)}
	if len(posts) == 0 {
		return rep, nil
	}
	dests, err := d.Registry.Destinations(ctx)
	if err != nil {
		return rep, fmt.Errorf("announce: read destinations: %w", err)
	}
	notes := make([]Notification, len(posts))
	for i, p := range posts {
		notes[i] = d.render(ctx, p)
	}

	for _, dest := range dests {
		if !dest.HasTarget() {
			rep.Untargeted = append(rep.Untargeted, dest.Group)
			continue
		}
		for i, p := range posts {
			rep.Attempted++
			if err := d.deliver(ctx, dest.ChannelID, notes[i]); err != nil {
				rep.Failures = append(rep.Failures, Failure{Group: dest.Group, ChannelID: dest.ChannelID, PostID: p.ID, Err: err})
				slog.Warn("dispatcher: delivery failed", "group", dest.Group, "channel", dest.ChannelID, "id", p.ID, "error", err)
				continue
			}
			rep.Delivered++
		}
	}
	return rep, nil
}

// DispatchOne announces a single post.
func (d *Dispatcher) DispatchOne(ctx context.Context, p model.Post) (Report, error) {
	return d.Dispatch(ctx, []model.Post{p})
}

func (d *Dispatcher) deliver(ctx context.Context, channelID int64, n Notification) error {
	if ctx.Err() != nil {
		return context.Cause(ctx)
	}
	if d.Limiter != nil {
		if err := d.Limiter.Wait(ctx); err != nil {
			return err
		}
	}
	return d.Messenger.Send(ctx, channelID, n)
}

// Render builds the notification for p as it would be delivered.
func (d *Dispatcher) Render(ctx context.Context, p model.Post) Notification {
	return d.render(ctx, p)
}

func (d *Dispatcher) render(ctx context.Context, p model.Post) Notification {
	n := NewNotification(p)
	max := d.MaxDescription
	if max <= 0 {
		max = DefaultMaxDescription
	}
	if utf8.RuneCountInString(n.Description) <= max {
		return n
	}
	if d.Condenser != nil {
		s, err := d.Condenser.Condense(ctx, n.Title, n.Description, max)
		if err == nil && s != "" && utf8.RuneCountInString(s) <= max {
			n.Description = s
			return n
		}
		if err != nil {
			slog.Warn("dispatcher: condense failed, truncating", "id", p.ID, "error", err)
		}
	}
	n.Description = Truncate(n.Description, max)
	return n
}

// Truncate cuts s to at most max runes, ending with an ellipsis.
func Truncate(s string, max int) string {
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	if max <= 1 {
		return string(r[:max])
	}
	return string(r[:max-1]) + "…"
}
