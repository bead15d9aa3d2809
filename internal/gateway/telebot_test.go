package gateway

import (
	"context"
	"errors"
	"testing"

	tele "gopkg.in/telebot.v4"
)

func TestUnboundGatewayFails(t *testing.T) {
	g := NewTelebot()
	err := g.SendText(context.Background(), 1, "hi")
	if err == nil {
		t.Fatal("unbound gateway accepted a send")
	}
	var gerr *Error
	if !errors.As(err, &gerr) {
		t.Fatalf("err type = %T, want *Error", err)
	}
	if gerr.Op != "sendMessage" || gerr.ChatID != 1 {
		t.Fatalf("err = %+v", gerr)
	}
}

func TestErrorUnwrap(t *testing.T) {
	inner := errors.New("boom")
	err := &Error{Op: "sendPhoto", ChatID: 5, Err: inner}
	if !errors.Is(err, inner) {
		t.Fatal("Unwrap lost inner error")
	}
	if err.Error() == "" {
		t.Fatal("empty error string")
	}
}

func TestBuildSendOptions(t *testing.T) {
	out := buildSendOptions(nil)
	if out.ParseMode != "" || out.ReplyMarkup != nil {
		t.Fatalf("defaults = %+v", out)
	}

	out = buildSendOptions([]SendOptions{{Markdown: true}})
	if out.ParseMode != tele.ModeMarkdown {
		t.Fatalf("parse mode = %q", out.ParseMode)
	}
}

func TestBuildMarkup(t *testing.T) {
	rows := [][]Button{
		{{Text: "Pay", URL: "https://pay.example"}},
		{{Text: "RRB JE", Action: "item", Data: "rrb_je"}},
		{{Text: "Thermo", Action: "demo", Data: "rrb_je|thermo"}, {Text: "Fluids", Action: "demo", Data: "rrb_je|fluids"}},
	}

	markup := buildMarkup(rows)
	kb := markup.InlineKeyboard
	if len(kb) != 3 {
		t.Fatalf("rows = %d, want 3", len(kb))
	}
	if kb[0][0].URL != "https://pay.example" {
		t.Fatalf("url button = %+v", kb[0][0])
	}
	if kb[0][0].Data != "" {
		t.Fatalf("url button carries callback data: %+v", kb[0][0])
	}
	if kb[1][0].Data == "" {
		t.Fatalf("data button lost payload: %+v", kb[1][0])
	}
	if len(kb[2]) != 2 {
		t.Fatalf("multi-button row = %d, want 2", len(kb[2]))
	}
}
