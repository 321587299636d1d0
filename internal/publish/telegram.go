// Package publish delivers finished posts to the Telegram channel.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Telegram message size limits.
const (
	maxMessageRunes = 4096
	maxCaptionRunes = 1024
)

type telegramAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram publishes posts to a single channel.
type Telegram struct {
	api      telegramAPI
	chatID   int64
	userName string
	log      *slog.Logger
}

// New creates a Telegram publisher for the given bot token and channel.
// The channel may be a numeric chat id or an @name.
func New(token, channel string, log *slog.Logger) (*Telegram, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}
	return newWithAPI(api, channel, log)
}

func newWithAPI(api telegramAPI, channel string, log *slog.Logger) (*Telegram, error) {
	t := &Telegram{api: api, log: log}
	if strings.HasPrefix(channel, "@") {
		t.userName = channel
		return t, nil
	}
	id, err := strconv.ParseInt(channel, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid channel id %q: %w", channel, err)
	}
	t.chatID = id
	return t, nil
}

// Publish delivers one post. With an image present it goes out as a
// photo with the text as caption, otherwise as a plain message. Delivery
// is at-least-once: the caller retries on error in a later cycle.
func (t *Telegram) Publish(ctx context.Context, text string, image []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	var msg tgbotapi.Chattable
	if len(image) > 0 {
		photo := tgbotapi.NewPhoto(t.chatID, tgbotapi.FileBytes{Name: "post.png", Bytes: image})
		photo.ChannelUsername = t.userName
		photo.Caption = truncate(text, maxCaptionRunes)
		msg = photo
	} else {
		m := tgbotapi.NewMessage(t.chatID, truncate(text, maxMessageRunes))
		m.ChannelUsername = t.userName
		m.DisableWebPagePreview = false
		msg = m
	}

	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("send to channel: %w", err)
	}
	return nil
}

// truncate cuts text to the given rune budget, reserving one rune for
// the ellipsis.
func truncate(text string, limit int) string {
	runes := []rune(text)
	if len(runes) <= limit {
		return text
	}
	return string(runes[:limit-1]) + "…"
}
