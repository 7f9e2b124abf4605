package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"telegram-yt-relay/internal/domain/ports/adapter"
)

// uploads of 40+ MB parts can take minutes on a slow uplink
const uploadTimeout = 5 * time.Minute

var _ adapter.Transport = (*Bot)(nil)

// Bot is the outbound Telegram transport.
type Bot struct {
	api *tgbotapi.BotAPI
	log *zerolog.Logger
}

func NewBot(token string, debug bool, logger *zerolog.Logger) (*Bot, error) {
	if strings.TrimSpace(token) == "" {
		return nil, errors.New("bot token is empty")
	}
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: uploadTimeout})
	if err != nil {
		return nil, fmt.Errorf("telegram login: %w", err)
	}
	api.Debug = debug
	l := logger.With().Str("component", "telegram").Str("bot", api.Self.UserName).Logger()
	return &Bot{api: api, log: &l}, nil
}

func (b *Bot) SendText(ctx context.Context, chatID int64, replyTo int, text string) (adapter.StatusMessage, error) {
	if err := ctx.Err(); err != nil {
		return adapter.StatusMessage{}, err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	if replyTo > 0 {
		msg.ReplyToMessageID = replyTo
		msg.AllowSendingWithoutReply = true
	}
	sent, err := b.api.Send(msg)
	if err != nil {
		return adapter.StatusMessage{}, mapError(err)
	}
	return adapter.StatusMessage{ChatID: sent.Chat.ID, MessageID: sent.MessageID}, nil
}

// SendButtons sends a message with inline buttons.
// A button with URL opens a link, otherwise it sends Data as callback data.
func (b *Bot) SendButtons(ctx context.Context, chatID int64, text string, rows [][]adapter.InlineButton) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard(rows)
	_, err := b.api.Send(msg)
	return mapError(err)
}

func keyboard(rows [][]adapter.InlineButton) tgbotapi.InlineKeyboardMarkup {
	kbRows := make([][]tgbotapi.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		if len(row) == 0 {
			continue
		}
		r := make([]tgbotapi.InlineKeyboardButton, 0, len(row))
		for _, btn := range row {
			label := strings.TrimSpace(btn.Text)
			if label == "" {
				label = "•"
			}
			switch {
			case btn.URL != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonURL(label, btn.URL))
			case btn.Data != "":
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, btn.Data))
			default:
				r = append(r, tgbotapi.NewInlineKeyboardButtonData(label, label))
			}
		}
		kbRows = append(kbRows, r)
	}
	return tgbotapi.NewInlineKeyboardMarkup(kbRows...)
}

// EditText replaces the text of a status message. An unchanged text is not an error.
func (b *Bot) EditText(ctx context.Context, msg adapter.StatusMessage, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := b.api.Request(tgbotapi.NewEditMessageText(msg.ChatID, msg.MessageID, text))
	if isNotModified(err) {
		return nil
	}
	return mapError(err)
}

func (b *Bot) SendMedia(ctx context.Context, chatID int64, kind adapter.MediaKind, file adapter.Upload, caption string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	// tgbotapi has no context support; failing the body read aborts the
	// multipart stream and with it the request.
	body := tgbotapi.FileReader{Name: file.Name, Reader: &ctxReader{ctx: ctx, r: file.Reader}}

	var c tgbotapi.Chattable
	switch kind {
	case adapter.MediaVideo:
		v := tgbotapi.NewVideo(chatID, body)
		v.Caption = caption
		v.SupportsStreaming = true
		c = v
	case adapter.MediaDocument:
		d := tgbotapi.NewDocument(chatID, body)
		d.Caption = caption
		c = d
	default:
		return 0, fmt.Errorf("unsupported media kind %q", kind)
	}

	start := time.Now()
	sent, err := b.api.Send(c)
	if err != nil {
		return 0, mapError(err)
	}
	b.log.Debug().Str("kind", string(kind)).Str("file", file.Name).Int64("bytes", file.Size).
		Dur("elapsed", time.Since(start)).Msg("media uploaded")
	return sent.MessageID, nil
}

// ctxReader fails reads once ctx is done.
type ctxReader struct {
	ctx context.Context
	r   io.Reader
}

func (c *ctxReader) Read(p []byte) (int, error) {
	if err := c.ctx.Err(); err != nil {
		return 0, err
	}
	return c.r.Read(p)
}

// AnswerCallback stops the client side spinner of an inline button.
func (b *Bot) AnswerCallback(id string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(id, "")); err != nil {
		b.log.Debug().Err(err).Msg("answer callback failed")
	}
}

// mapError turns flood control and timeouts into the transport's typed errors.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) && apiErr.RetryAfter > 0 {
		return &adapter.RetryAfterError{After: time.Duration(apiErr.RetryAfter) * time.Second, Err: err}
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: %v", adapter.ErrTransportTimeout, err)
	}
	return err
}

func isNotModified(err error) bool {
	var apiErr *tgbotapi.Error
	return errors.As(err, &apiErr) && strings.Contains(apiErr.Message, "message is not modified")
}
