// Package relay threads free-form messages between many users and the single
// operator inbox. Forwards embed the sender's numeric ID in the message text;
// operator replies are routed back by recovering that token from the quoted
// message, falling back to the most recently contacted user.
package relay

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"regexp"
	"strconv"
	"sync"

	"github.com/gateprep/coursebot/core/logger"
	"github.com/gateprep/coursebot/core/telegram/format"
	"github.com/gateprep/coursebot/internal/gateway"
	"github.com/gateprep/coursebot/internal/users"
)

// ErrNoDestination is reported when an operator reply cannot be correlated
// with any user. The operator should fall back to the /reply override.
var ErrNoDestination = errors.New("relay: destination user could not be determined")

// operatorReplyMarker prefixes every message relayed to a user. A user reply
// quoting a message with this marker re-enters the relay.
const operatorReplyMarker = "Admin replied:"

var idTokenRe = regexp.MustCompile("\\(ID:\\s*`?([0-9]+)`?\\)")

// ExtractUserID scans text for an embedded numeric user-identifier token.
func ExtractUserID(text string) (int64, bool) {
	m := idTokenRe.FindStringSubmatch(text)
	if m == nil {
		return 0, false
	}
	id, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil || id == 0 {
		return 0, false
	}
	return id, true
}

// IsOperatorReply reports whether text is a message this router relayed to a
// user on the operator's behalf.
func IsOperatorReply(text string) bool {
	if len(text) < len(operatorReplyMarker) {
		return false
	}
	return text[:len(operatorReplyMarker)] == operatorReplyMarker
}

// Router owns the correlation context. There is exactly one operator, so a
// single last-contact slot is sufficient; multi-operator support would turn
// this into a map keyed by operator ID.
type Router struct {
	gw         gateway.Gateway
	operatorID int64

	mu          sync.Mutex
	lastContact int64
}

// New builds a router delivering through gw to the given operator chat.
func New(gw gateway.Gateway, operatorID int64) *Router {
	return &Router{gw: gw, operatorID: operatorID}
}

// LastContact returns the most recently relayed user, zero if none yet.
func (r *Router) LastContact() int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lastContact
}

func (r *Router) touch(ctx context.Context, userID int64) {
	r.mu.Lock()
	r.lastContact = userID
	r.mu.Unlock()
	logger.Debug(ctx, "relay", "correlation.touch",
		slog.String("status", "ok"),
		slog.Int64("dest_user_id", userID),
	)
}

// displayName escapes the user-controlled name so it cannot break the
// Markdown of operator-facing messages.
func displayName(u users.User) string {
	name, err := format.EscapeMarkdown(u.DisplayName(), format.MarkdownV1, "")
	if err != nil {
		return u.DisplayName()
	}
	return name
}

func header(u users.User, itemName string) string {
	if itemName == "" {
		itemName = "Not specified"
	}
	return fmt.Sprintf("📩 New message from user: %s (ID: `%d`)\nRegarding course: **%s**",
		displayName(u), u.ID, itemName)
}

// ForwardText relays a user's text message to the operator.
func (r *Router) ForwardText(ctx context.Context, u users.User, itemName, body string) error {
	text := header(u, itemName) + "\n\n**Message:**\n" + body
	if err := r.gw.SendText(ctx, r.operatorID, text, gateway.SendOptions{Markdown: true}); err != nil {
		return err
	}
	r.touch(ctx, u.ID)
	return nil
}

// ForwardPhoto relays a user's photo to the operator with an identifying
// caption.
func (r *Router) ForwardPhoto(ctx context.Context, u users.User, itemName, photoRef string) error {
	if itemName == "" {
		itemName = "Not specified"
	}
	caption := fmt.Sprintf(
		"📸 New payment screenshot from: %s (ID: `%d`)\nFor course: **%s**\n\nReply to this message to send the course link to the user.",
		displayName(u), u.ID, itemName)
	if err := r.gw.SendPhoto(ctx, r.operatorID, photoRef, caption); err != nil {
		return err
	}
	r.touch(ctx, u.ID)
	return nil
}

// ForwardFollowUp relays a user's reply to an earlier operator message.
func (r *Router) ForwardFollowUp(ctx context.Context, u users.User, body string) error {
	text := fmt.Sprintf("↪️ Follow-up message from %s (ID: `%d`):\n\n%s", displayName(u), u.ID, body)
	if err := r.gw.SendText(ctx, r.operatorID, text, gateway.SendOptions{Markdown: true}); err != nil {
		return err
	}
	r.touch(ctx, u.ID)
	return nil
}

// RouteOperatorReply resolves the destination of an operator reply and
// delivers it. quoted is the text or caption of the replied-to message and
// quotedFromBot reports whether that message was authored by the bot itself.
// The resolved user ID is returned for acknowledgement.
func (r *Router) RouteOperatorReply(ctx context.Context, quoted string, quotedFromBot bool, body string) (int64, error) {
	dest, ok := ExtractUserID(quoted)
	if !ok {
		if !quotedFromBot {
			return 0, ErrNoDestination
		}
		dest = r.LastContact()
		if dest == 0 {
			return 0, ErrNoDestination
		}
		logger.Debug(ctx, "relay", "correlation.fallback",
			slog.String("status", "ok"),
			slog.Int64("dest_user_id", dest),
		)
	}
	if err := r.deliver(ctx, dest, body); err != nil {
		return 0, err
	}
	return dest, nil
}

// DirectReply bypasses correlation entirely: the operator names the user.
func (r *Router) DirectReply(ctx context.Context, userID int64, body string) error {
	return r.deliver(ctx, userID, body)
}

func (r *Router) deliver(ctx context.Context, userID int64, body string) error {
	text := operatorReplyMarker + "\n\n" + body +
		"\n\n---\n_You can reply to this message to continue the conversation._"
	if err := r.gw.SendText(ctx, userID, text, gateway.SendOptions{Markdown: true}); err != nil {
		return err
	}
	r.touch(ctx, userID)
	logger.Info(ctx, "relay", "reply.delivered",
		slog.String("status", "ok"),
		slog.Int64("dest_user_id", userID),
	)
	return nil
}
