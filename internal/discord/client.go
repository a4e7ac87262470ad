// Package discord delivers announcements as Discord channel messages.
package discord

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"

	"plug-herald/internal/announce"
)

var (
	// ErrForbidden means the bot lacks permission to post in the channel.
	ErrForbidden = errors.New("discord: forbidden")
	// ErrUnknownChannel means the target channel does not exist (anymore).
	ErrUnknownChannel = errors.New("discord: unknown channel")
)

const (
	// embedColor is the accent used on announcement embeds.
	embedColor = 0xF5A623

	maxTitle       = 256
	maxAuthorName  = 256
	maxDescription = 4096
)

// Client sends messages through a discordgo REST session. The gateway is
// never opened.
type Client struct {
	session *discordgo.Session
}

// New creates a new Discord client. An empty baseURL uses the SDK's API
// endpoint; otherwise requests are sent to baseURL, e.g.
// "https://discord.example/api/v10".
func New(baseURL, token string, timeout time.Duration) (*Client, error) {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, fmt.Errorf("discord: new session: %w", err)
	}
	var transport http.RoundTripper = http.DefaultTransport
	if base := strings.TrimSpace(baseURL); base != "" {
		to, err := url.Parse(strings.TrimRight(base, "/") + "/")
		if err != nil {
			return nil, fmt.Errorf("discord: base url: %w", err)
		}
		transport = &rebaseTransport{from: discordgo.EndpointAPI, to: to, next: transport}
	}
	s.Client = &http.Client{Timeout: timeout, Transport: transport}
	s.UserAgent = "plug-herald (https://github.com/bwmarrin/discordgo)"
	return &Client{session: s}, nil
}

// EmbedFor renders a notification as an embed within Discord's field limits.
func EmbedFor(n announce.Notification) *discordgo.MessageEmbed {
	e := &discordgo.MessageEmbed{
		Type:        discordgo.EmbedTypeRich,
		Title:       announce.Truncate(n.Title, maxTitle),
		Description: announce.Truncate(n.Description, maxDescription),
		URL:         n.URL,
		Color:       embedColor,
	}
	if !n.Timestamp.IsZero() {
		e.Timestamp = n.Timestamp.UTC().Format(time.RFC3339)
	}
	if n.Author.Name != "" {
		e.Author = &discordgo.MessageEmbedAuthor{
			Name:    announce.Truncate(n.Author.Name, maxAuthorName),
			URL:     n.Author.URL,
			IconURL: n.Author.IconURL,
		}
	}
	if n.ThumbnailURL != "" {
		e.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: n.ThumbnailURL}
	}
	return e
}

// Send implements announce.Messenger.
func (c *Client) Send(ctx context.Context, channelID int64, n announce.Notification) error {
	return c.SendEmbed(ctx, channelID, EmbedFor(n))
}

// SendEmbed posts one embed to a channel.
func (c *Client) SendEmbed(ctx context.Context, channelID int64, e *discordgo.MessageEmbed) error {
	if c == nil || c.session == nil {
		return errors.New("nil discord client")
	}
	_, err := c.session.ChannelMessageSendEmbed(strconv.FormatInt(channelID, 10), e, discordgo.WithContext(ctx))
	if err != nil {
		return classify(channelID, err)
	}
	return nil
}

// classify maps REST failures onto the package sentinels.
func classify(channelID int64, err error) error {
	var rest *discordgo.RESTError
	if !errors.As(err, &rest) {
		return fmt.Errorf("discord: channel %d: %w", channelID, err)
	}
	code := 0
	if rest.Message != nil {
		code = rest.Message.Code
	}
	status := 0
	if rest.Response != nil {
		status = rest.Response.StatusCode
	}
	switch {
	case status == http.StatusForbidden || code == discordgo.ErrCodeMissingAccess || code == discordgo.ErrCodeMissingPermissions:
		return fmt.Errorf("%w: channel %d: %w", ErrForbidden, channelID, err)
	case status == http.StatusNotFound || code == discordgo.ErrCodeUnknownChannel:
		return fmt.Errorf("%w: channel %d: %w", ErrUnknownChannel, channelID, err)
	default:
		return fmt.Errorf("discord: channel %d: %w", channelID, err)
	}
}

// rebaseTransport sends requests aimed at the SDK's API endpoint to another
// base URL.
type rebaseTransport struct {
	from string
	to   *url.URL
	next http.RoundTripper
}

func (t *rebaseTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	raw := req.URL.String()
	if !strings.HasPrefix(raw, t.from) {
		return t.next.RoundTrip(req)
	}
	u, err := t.to.Parse(strings.TrimPrefix(raw, t.from))
	if err != nil {
		return nil, err
	}
	out := req.Clone(req.Context())
	out.URL = u
	out.Host = ""
	return t.next.RoundTrip(out)
}
