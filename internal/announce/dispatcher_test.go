package announce

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"plug-herald/internal/model"
)

type delivery struct {
	channel int64
	title   string
}

type fakeMessenger struct {
	mu        sync.Mutex
	sent      []delivery
	failFor   map[int64]error
	callCount int
}

func (m *fakeMessenger) Send(ctx context.Context, channelID int64, n Notification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callCount++
	if err, ok := m.failFor[channelID]; ok {
		return err
	}
	m.sent = append(m.sent, delivery{channel: channelID, title: n.Title})
	return nil
}

type staticRegistry struct {
	dests []model.Destination
	err   error
}

func (r staticRegistry) Destinations(ctx context.Context) ([]model.Destination, error) {
	return r.dests, r.err
}

type fakeCondenser struct {
	out string
	err error
}

func (c fakeCondenser) Condense(ctx context.Context, title, text string, maxRunes int) (string, error) {
	return c.out, c.err
}

func posts(ids ...int64) []model.Post {
	out := make([]model.Post, 0, len(ids))
	for _, id := range ids {
		out = append(out, model.Post{ID: id, Title: "post", URL: "https://example.com", Timestamp: time.Unix(id, 0)})
	}
	return out
}

func TestDispatchIsolatesFailures(t *testing.T) {
	forbidden := errors.New("forbidden")
	m := &fakeMessenger{failFor: map[int64]error{20: forbidden}}
	d := &Dispatcher{
		Messenger: m,
		Registry: staticRegistry{dests: []model.Destination{
			{Group: "a", ChannelID: 10},
			{Group: "b", ChannelID: 20},
			{Group: "c"},
			{Group: "d", ChannelID: 40},
		}},
	}
	rep, err := d.Dispatch(context.Background(), posts(102, 103))
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if rep.Attempted != 6 || rep.Delivered != 4 {
		t.Errorf("attempted=%d delivered=%d, want 6/4", rep.Attempted, rep.Delivered)
	}
	if len(rep.Failures) != 2 {
		t.Fatalf("failures = %+v", rep.Failures)
	}
	for _, f := range rep.Failures {
		if f.Group != "b" || !errors.Is(f.Err, forbidden) {
			t.Errorf("unexpected failure %+v", f)
		}
	}
	if len(rep.Untargeted) != 1 || rep.Untargeted[0] != "c" {
		t.Errorf("untargeted = %v", rep.Untargeted)
	}
	// channel 40 after the failing group still got both posts
	var got40 int
	for _, s := range m.sent {
		if s.channel == 40 {
			got40++
		}
	}
	if got40 != 2 {
		t.Errorf("channel 40 deliveries = %d, want 2", got40)
	}
	if m.callCount != 6 {
		t.Errorf("messenger calls = %d, want 6 (no attempts for untargeted group)", m.callCount)
	}
}

func TestDispatchRegistryError(t *testing.T) {
	boom := errors.New("boom")
	d := &Dispatcher{Messenger: &fakeMessenger{}, Registry: staticRegistry{err: boom}}
	if _, err := d.Dispatch(context.Background(), posts(1)); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want wrapped boom", err)
	}
}

func TestDispatchNothingToSend(t *testing.T) {
	d := &Dispatcher{Messenger: &fakeMessenger{}, Registry: staticRegistry{err: errors.New("not read")}}
	rep, err := d.Dispatch(context.Background(), nil)
	if err != nil || rep.Attempted != 0 {
		t.Fatalf("rep=%+v err=%v", rep, err)
	}
}

func TestDispatchCancelledContext(t *testing.T) {
	m := &fakeMessenger{}
	d := &Dispatcher{Messenger: m, Registry: staticRegistry{dests: []model.Destination{{Group: "a", ChannelID: 1}}}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rep, err := d.Dispatch(ctx, posts(1, 2))
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if rep.Delivered != 0 || len(rep.Failures) != 2 || m.callCount != 0 {
		t.Fatalf("rep=%+v calls=%d", rep, m.callCount)
	}
}

func TestDispatchRecordsCancelCause(t *testing.T) {
	m := &fakeMessenger{}
	d := &Dispatcher{Messenger: m, Registry: staticRegistry{dests: []model.Destination{{Group: "a", ChannelID: 1}}}}
	cause := errors.New("lock lost")
	ctx, cancel := context.WithCancelCause(context.Background())
	cancel(cause)
	rep, err := d.Dispatch(ctx, posts(1))
	if err != nil {
		t.Fatalf("Dispatch error: %v", err)
	}
	if len(rep.Failures) != 1 || !errors.Is(rep.Failures[0].Err, cause) {
		t.Fatalf("failures = %+v", rep.Failures)
	}
}

func TestRenderTruncatesLongDescription(t *testing.T) {
	d := &Dispatcher{MaxDescription: 10}
	n := d.Render(context.Background(), model.Post{ID: 1, Description: strings.Repeat("가", 20)})
	if utf8.RuneCountInString(n.Description) != 10 || !strings.HasSuffix(n.Description, "…") {
		t.Fatalf("description = %q", n.Description)
	}
}

func TestRenderUsesCondenser(t *testing.T) {
	d := &Dispatcher{MaxDescription: 10, Condenser: fakeCondenser{out: "short"}}
	n := d.Render(context.Background(), model.Post{ID: 1, Description: strings.Repeat("x", 20)})
	if n.Description != "short" {
		t.Fatalf("description = %q", n.Description)
	}

	d.Condenser = fakeCondenser{err: errors.New("down")}
	n = d.Render(context.Background(), model.Post{ID: 1, Description: strings.Repeat("x", 20)})
	if utf8.RuneCountInString(n.Description) != 10 {
		t.Fatalf("fallback description = %q", n.Description)
	}
}

func TestNewNotification(t *testing.T) {
	ts := time.Date(2024, 1, 2, 3, 4, 5, 0, time.FixedZone("KST", 9*3600))
	n := NewNotification(model.Post{
		ID:        1,
		Title:     "t",
		URL:       "u",
		Timestamp: ts,
		Author:    model.Author{Name: "n"},
		Thumbnail: &model.Thumbnail{URL: "thumb"},
	})
	if n.ThumbnailURL != "thumb" || n.Timestamp.Location() != time.UTC || !n.Timestamp.Equal(ts) {
		t.Fatalf("notification = %+v", n)
	}
	if n.IsPlaceholder() || !Placeholder().IsPlaceholder() {
		t.Fatal("placeholder detection broken")
	}
}
