package gateway

import (
	"context"
	"errors"
	"strconv"
	"sync/atomic"

	tele "gopkg.in/telebot.v4"

	"github.com/gateprep/coursebot/core/telegram/keyboard"
)

// TelebotGateway adapts a running tele.Bot to the Gateway contract. The bot
// instance is only available once the transport layer has started, so the
// adapter is constructed empty and bound from the OnStart hook.
type TelebotGateway struct {
	bot atomic.Pointer[tele.Bot]
}

// NewTelebot returns an unbound adapter.
func NewTelebot() *TelebotGateway {
	return &TelebotGateway{}
}

// Bind attaches the live bot instance.
func (g *TelebotGateway) Bind(b *tele.Bot) {
	g.bot.Store(b)
}

func (g *TelebotGateway) ready(op string, chatID int64) (*tele.Bot, error) {
	b := g.bot.Load()
	if b == nil {
		return nil, &Error{Op: op, ChatID: chatID, Err: errNotBound}
	}
	return b, nil
}

var errNotBound = errors.New("bot not started")

// SendText delivers a plain or Markdown text message.
func (g *TelebotGateway) SendText(ctx context.Context, chatID int64, text string, opts ...SendOptions) error {
	b, err := g.ready("sendMessage", chatID)
	if err != nil {
		return err
	}
	if _, err := b.Send(tele.ChatID(chatID), text, buildSendOptions(opts)); err != nil {
		return &Error{Op: "sendMessage", ChatID: chatID, Err: err}
	}
	return nil
}

// SendPhoto delivers a photo by file reference with a caption.
func (g *TelebotGateway) SendPhoto(ctx context.Context, chatID int64, photoRef, caption string) error {
	b, err := g.ready("sendPhoto", chatID)
	if err != nil {
		return err
	}
	photo := &tele.Photo{File: tele.File{FileID: photoRef}, Caption: caption}
	if _, err := b.Send(tele.ChatID(chatID), photo); err != nil {
		return &Error{Op: "sendPhoto", ChatID: chatID, Err: err}
	}
	return nil
}

// CopyMessage copies an existing message from a source chat into the target
// chat. The source must remain reachable by the bot or the call fails.
func (g *TelebotGateway) CopyMessage(ctx context.Context, toChat, fromChat int64, messageID int) error {
	b, err := g.ready("copyMessage", toChat)
	if err != nil {
		return err
	}
	src := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: fromChat}
	if _, err := b.Copy(tele.ChatID(toChat), src); err != nil {
		return &Error{Op: "copyMessage", ChatID: toChat, Err: err}
	}
	return nil
}

// EditMessage rewrites a previously sent message in place.
func (g *TelebotGateway) EditMessage(ctx context.Context, chatID int64, messageID int, text string, opts ...SendOptions) error {
	b, err := g.ready("editMessageText", chatID)
	if err != nil {
		return err
	}
	msg := tele.StoredMessage{MessageID: strconv.Itoa(messageID), ChatID: chatID}
	if _, err := b.Edit(msg, text, buildSendOptions(opts)); err != nil {
		return &Error{Op: "editMessageText", ChatID: chatID, Err: err}
	}
	return nil
}

func buildSendOptions(opts []SendOptions) *tele.SendOptions {
	out := &tele.SendOptions{}
	if len(opts) == 0 {
		return out
	}
	o := opts[0]
	if o.Markdown {
		out.ParseMode = tele.ModeMarkdown
	}
	if len(o.Keyboard) > 0 {
		out.ReplyMarkup = buildMarkup(o.Keyboard)
	}
	return out
}

func buildMarkup(rows [][]Button) *tele.ReplyMarkup {
	markup := &tele.ReplyMarkup{}
	btnRows := make([][]tele.Btn, 0, len(rows))
	for _, row := range rows {
		r := make([]tele.Btn, 0, len(row))
		for _, b := range row {
			if b.URL != "" {
				r = append(r, markup.URL(b.Text, b.URL))
				continue
			}
			r = append(r, markup.Data(b.Text, b.Action, b.Data))
		}
		btnRows = append(btnRows, r)
	}
	markup.InlineKeyboard = keyboard.ToInlineKeyboard(btnRows)
	return markup
}
