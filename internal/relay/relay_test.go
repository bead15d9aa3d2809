package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/gateprep/coursebot/internal/gateway"
	"github.com/gateprep/coursebot/internal/users"
)

const operatorID = int64(999)

type sentMessage struct {
	chatID int64
	text   string
}

type fakeGateway struct {
	sent    []sentMessage
	photos  []sentMessage
	failFor map[int64]error
}

func newFakeGateway() *fakeGateway {
	return &fakeGateway{failFor: make(map[int64]error)}
}

func (f *fakeGateway) SendText(_ context.Context, chatID int64, text string, _ ...gateway.SendOptions) error {
	if err := f.failFor[chatID]; err != nil {
		return err
	}
	f.sent = append(f.sent, sentMessage{chatID, text})
	return nil
}

func (f *fakeGateway) SendPhoto(_ context.Context, chatID int64, photoRef, caption string) error {
	if err := f.failFor[chatID]; err != nil {
		return err
	}
	f.photos = append(f.photos, sentMessage{chatID, caption})
	return nil
}

func (f *fakeGateway) CopyMessage(context.Context, int64, int64, int) error { return nil }

func (f *fakeGateway) EditMessage(context.Context, int64, int, string, ...gateway.SendOptions) error {
	return nil
}

func (f *fakeGateway) lastTo(chatID int64) string {
	for i := len(f.sent) - 1; i >= 0; i-- {
		if f.sent[i].chatID == chatID {
			return f.sent[i].text
		}
	}
	return ""
}

func user(id int64, name string) users.User {
	return users.User{ID: id, FirstName: name}
}

func TestExtractUserID(t *testing.T) {
	cases := []struct {
		text string
		want int64
		ok   bool
	}{
		{"📩 New message from user: Asha (ID: `42`)\nRegarding course: **X**", 42, true},
		{"(ID: 7)", 7, true},
		{"(ID:   123)", 123, true},
		{"no token here", 0, false},
		{"(ID: abc)", 0, false},
		{"(ID: `0`)", 0, false},
	}
	for _, tc := range cases {
		got, ok := ExtractUserID(tc.text)
		if got != tc.want || ok != tc.ok {
			t.Fatalf("ExtractUserID(%q) = %d, %v; want %d, %v", tc.text, got, ok, tc.want, tc.ok)
		}
	}
}

func TestForwardTextEmbedsIDAndCourse(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, operatorID)

	if err := r.ForwardText(context.Background(), user(42, "Asha"), "RRB JE (Mechanical)", "когда start?"); err != nil {
		t.Fatalf("ForwardText: %v", err)
	}

	got := gw.lastTo(operatorID)
	if id, ok := ExtractUserID(got); !ok || id != 42 {
		t.Fatalf("forwarded message has no recoverable user ID: %q", got)
	}
	if !strings.Contains(got, "RRB JE (Mechanical)") {
		t.Fatalf("forwarded message missing course name: %q", got)
	}
	if r.LastContact() != 42 {
		t.Fatalf("LastContact = %d, want 42", r.LastContact())
	}
}

func TestForwardTextDefaultsCourseName(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, operatorID)

	if err := r.ForwardText(context.Background(), user(7, "Ravi"), "", "hello"); err != nil {
		t.Fatalf("ForwardText: %v", err)
	}
	if !strings.Contains(gw.lastTo(operatorID), "Not specified") {
		t.Fatalf("missing course placeholder: %q", gw.lastTo(operatorID))
	}
}

func TestForwardPhotoCaptionRoutable(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, operatorID)

	if err := r.ForwardPhoto(context.Background(), user(55, "Meena"), "SSC JE", "photo-ref"); err != nil {
		t.Fatalf("ForwardPhoto: %v", err)
	}
	if len(gw.photos) != 1 {
		t.Fatalf("photos sent = %d, want 1", len(gw.photos))
	}
	if id, ok := ExtractUserID(gw.photos[0].text); !ok || id != 55 {
		t.Fatalf("caption has no recoverable user ID: %q", gw.photos[0].text)
	}
	if r.LastContact() != 55 {
		t.Fatalf("LastContact = %d, want 55", r.LastContact())
	}
}

func TestRouteOperatorReplyByToken(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, operatorID)

	// Two users write; the operator replies to the first forward. The token
	// in the quoted text wins over the more recent contact.
	_ = r.ForwardText(context.Background(), user(1, "A"), "X", "first")
	firstForward := gw.lastTo(operatorID)
	_ = r.ForwardText(context.Background(), user(2, "B"), "X", "second")

	dest, err := r.RouteOperatorReply(context.Background(), firstForward, true, "course link for you")
	if err != nil {
		t.Fatalf("RouteOperatorReply: %v", err)
	}
	if dest != 1 {
		t.Fatalf("dest = %d, want 1", dest)
	}
	if got := gw.lastTo(1); !IsOperatorReply(got) {
		t.Fatalf("delivered message not marked as operator reply: %q", got)
	}
}

func TestRouteOperatorReplyFallback(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, operatorID)

	_ = r.ForwardText(context.Background(), user(9, "C"), "X", "hi")

	// Quoted bot message without a token (e.g. an old broadcast): falls back
	// to the most recent contact.
	dest, err := r.RouteOperatorReply(context.Background(), "broadcast text", true, "reply")
	if err != nil {
		t.Fatalf("RouteOperatorReply: %v", err)
	}
	if dest != 9 {
		t.Fatalf("dest = %d, want 9", dest)
	}
}

func TestRouteOperatorReplyNoDestination(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, operatorID)

	// Nothing relayed yet and the quoted message is not ours.
	if _, err := r.RouteOperatorReply(context.Background(), "random text", false, "reply"); !errors.Is(err, ErrNoDestination) {
		t.Fatalf("err = %v, want ErrNoDestination", err)
	}

	// From the bot but no token and no prior contact.
	if _, err := r.RouteOperatorReply(context.Background(), "old menu", true, "reply"); !errors.Is(err, ErrNoDestination) {
		t.Fatalf("err = %v, want ErrNoDestination", err)
	}
}

func TestRouteOperatorReplyTokenFromForeignMessage(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, operatorID)

	// A token is honored even when the quoted message was not authored by
	// the bot, e.g. the operator re-quoted a forwarded copy.
	dest, err := r.RouteOperatorReply(context.Background(), "see (ID: `77`)", false, "reply")
	if err != nil {
		t.Fatalf("RouteOperatorReply: %v", err)
	}
	if dest != 77 {
		t.Fatalf("dest = %d, want 77", dest)
	}
}

func TestDeliverFailureDoesNotTouchCorrelation(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, operatorID)

	_ = r.ForwardText(context.Background(), user(3, "D"), "X", "hi")
	gw.failFor[5] = fmt.Errorf("blocked")

	if _, err := r.RouteOperatorReply(context.Background(), "(ID: 5)", true, "reply"); err == nil {
		t.Fatal("expected delivery error")
	}
	if r.LastContact() != 3 {
		t.Fatalf("LastContact = %d after failed delivery, want 3", r.LastContact())
	}
}

func TestDirectReply(t *testing.T) {
	gw := newFakeGateway()
	r := New(gw, operatorID)

	if err := r.DirectReply(context.Background(), 12, "manual reply"); err != nil {
		t.Fatalf("DirectReply: %v", err)
	}
	got := gw.lastTo(12)
	if !IsOperatorReply(got) || !strings.Contains(got, "manual reply") {
		t.Fatalf("unexpected delivery: %q", got)
	}
	if r.LastContact() != 12 {
		t.Fatalf("LastContact = %d, want 12", r.LastContact())
	}
}

func TestIsOperatorReply(t *testing.T) {
	if IsOperatorReply("hello") {
		t.Fatal("plain text classified as operator reply")
	}
	if !IsOperatorReply("Admin replied:\n\nhere you go") {
		t.Fatal("relayed message not classified as operator reply")
	}
}
