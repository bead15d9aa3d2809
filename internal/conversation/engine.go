// Package conversation implements the per-chat state machine that drives
// catalog navigation and hands free-form input over to the relay.
package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/gateprep/coursebot/core/logger"
	"github.com/gateprep/coursebot/core/telegram/state"
	"github.com/gateprep/coursebot/internal/catalog"
	"github.com/gateprep/coursebot/internal/gateway"
	"github.com/gateprep/coursebot/internal/relay"
	"github.com/gateprep/coursebot/internal/users"
)

// Conversation states. Every chat starts in StateSelectingAction; the two
// awaiting states consume exactly one input and fall back to it.
const (
	StateSelectingAction      state.State = "selecting_action"
	StateSelectingDemoSubject state.State = "selecting_demo_subject"
	StateAwaitingAdminMessage state.State = "awaiting_admin_message"
	StateAwaitingScreenshot   state.State = "awaiting_screenshot"
)

const tempSelectedItem = "selected_item"

// Action identifies the kind of an inbound event. Callback dispatch is keyed
// by these values; anything that doesn't match a known action is treated as a
// catalog identifier by the default arm.
type Action string

const (
	ActionStart       Action = "start"
	ActionMenu        Action = "menu"
	ActionSelectItem  Action = "item"
	ActionDemoList    Action = "demos"
	ActionDemoSubject Action = "demo"
	ActionBuy         Action = "buy"
	ActionTalk        Action = "talk"
	ActionScreenshot  Action = "paid"
	ActionText        Action = "text"
	ActionPhoto       Action = "photo"
)

// Event is one inbound user interaction, already detached from the transport.
// MessageID is set when the event came from tapping an inline button, in
// which case renderings edit that message in place.
type Event struct {
	Chat       int64
	User       users.User
	MessageID  int
	Action     Action
	ItemKey    string
	SubjectKey string
	Text       string
	PhotoRef   string
}

// Engine interprets events against the chat's current state and issues
// outbound actions through the gateway. One engine serves all chats; state is
// partitioned per chat by the session manager.
type Engine struct {
	catalog     catalog.Store
	registry    users.Registry
	gw          gateway.Gateway
	relay       *relay.Router
	sessions    state.Manager
	paymentLink string
}

// New builds an engine.
func New(store catalog.Store, registry users.Registry, gw gateway.Gateway, rl *relay.Router, sessions state.Manager, paymentLink string) *Engine {
	return &Engine{
		catalog:     store,
		registry:    registry,
		gw:          gw,
		relay:       rl,
		sessions:    sessions,
		paymentLink: paymentLink,
	}
}

// Sessions exposes the session manager for transport wiring.
func (e *Engine) Sessions() state.Manager { return e.sessions }

// Handle runs one event through the dispatch table. Unknown actions fall back
// to the entry transition; the engine never surfaces an error to the user for
// an unmapped event.
func (e *Engine) Handle(ctx context.Context, ev Event) error {
	if ev.User.ID != 0 {
		if err := e.registry.Upsert(ctx, ev.User); err != nil {
			logger.Warn(ctx, "service.users", "upsert.fail",
				slog.String("status", "fail"),
				slog.Int64("user_id", ev.User.ID),
				slog.String("err", err.Error()),
			)
		}
	}

	switch ev.Action {
	case ActionStart:
		return e.showCatalog(ctx, ev, fmt.Sprintf(welcomeText, ev.User.FirstName))
	case ActionMenu:
		return e.showCatalog(ctx, ev, selectCourseText)
	case ActionSelectItem:
		return e.SelectItem(ctx, ev)
	case ActionDemoList:
		return e.ShowDemoList(ctx, ev)
	case ActionDemoSubject:
		return e.DeliverDemo(ctx, ev)
	case ActionBuy:
		return e.ShowPurchase(ctx, ev)
	case ActionTalk:
		e.sessions.SetState(ev.Chat, StateAwaitingAdminMessage)
		return e.respond(ctx, ev, talkPromptText, nil)
	case ActionScreenshot:
		e.sessions.SetState(ev.Chat, StateAwaitingScreenshot)
		return e.respond(ctx, ev, screenshotPromptText, nil)
	case ActionText:
		return e.HandleText(ctx, ev)
	case ActionPhoto:
		return e.HandlePhoto(ctx, ev)
	default:
		return e.showCatalog(ctx, ev, selectCourseText)
	}
}

// ShowCatalog renders the ordered course listing and resets the chat to the
// selecting state. The session's selected item is left untouched.
func (e *Engine) ShowCatalog(ctx context.Context, ev Event) error {
	return e.showCatalog(ctx, ev, selectCourseText)
}

func (e *Engine) showCatalog(ctx context.Context, ev Event, text string) error {
	items, err := e.catalog.List(ctx)
	if err != nil {
		return fmt.Errorf("conversation: list catalog: %w", err)
	}

	rows := make([][]gateway.Button, 0, len(items))
	for _, it := range items {
		label := fmt.Sprintf("%s - ₹%d", it.Name, it.Price)
		if it.Status == catalog.StatusComingSoon {
			label += " (Coming Soon)"
		}
		rows = append(rows, []gateway.Button{{
			Text:   label,
			Action: string(ActionSelectItem),
			Data:   it.Key,
		}})
	}
	if len(items) == 0 {
		text = emptyCatalog
	}

	e.sessions.SetState(ev.Chat, StateSelectingAction)
	return e.respond(ctx, ev, text, rows)
}

// SelectItem renders the detail view of one item and remembers the selection.
// A key that no longer resolves re-renders the catalog instead of failing.
func (e *Engine) SelectItem(ctx context.Context, ev Event) error {
	it, err := e.catalog.Get(ctx, ev.ItemKey)
	if errors.Is(err, catalog.ErrNotFound) {
		return e.showCatalog(ctx, ev, selectCourseText)
	}
	if err != nil {
		return fmt.Errorf("conversation: select item %q: %w", ev.ItemKey, err)
	}

	e.sessions.SetTemp(ev.Chat, tempSelectedItem, it.Key)
	e.sessions.SetState(ev.Chat, StateSelectingAction)

	backRow := []gateway.Button{{Text: "⬅️ Back to Courses", Action: string(ActionMenu)}}

	if it.Status == catalog.StatusComingSoon {
		text := fmt.Sprintf(comingSoonText, it.Name)
		return e.respond(ctx, ev, text, [][]gateway.Button{backRow})
	}

	rows := [][]gateway.Button{
		{{Text: "💬 Talk to Admin", Action: string(ActionTalk)}},
		{{Text: "🛒 Buy Full Course", Action: string(ActionBuy)}},
	}
	if it.HasDemo() {
		rows = append(rows, []gateway.Button{{
			Text:   "▶️ Get Free Demo",
			Action: string(ActionDemoList),
			Data:   it.Key,
		}})
	}
	rows = append(rows, backRow)

	return e.respond(ctx, ev, fmt.Sprintf(courseDetailsText, it.Name), rows)
}

// ShowDemoList renders one row per demo subject. The bundle precondition is
// re-checked here rather than trusted from button visibility.
func (e *Engine) ShowDemoList(ctx context.Context, ev Event) error {
	key := ev.ItemKey
	if key == "" {
		key, _ = e.selectedKey(ev.Chat)
	}
	it, err := e.catalog.Get(ctx, key)
	if errors.Is(err, catalog.ErrNotFound) {
		return e.showCatalog(ctx, ev, selectCourseText)
	}
	if err != nil {
		return fmt.Errorf("conversation: demo list for %q: %w", key, err)
	}

	if !it.HasDemo() {
		e.sessions.SetState(ev.Chat, StateSelectingAction)
		return e.respond(ctx, ev, demoEmptyText, [][]gateway.Button{
			{{Text: "⬅️ Back to Course Details", Action: string(ActionSelectItem), Data: it.Key}},
		})
	}

	rows := make([][]gateway.Button, 0, len(it.Demo.Subjects)+1)
	for _, s := range it.Demo.Subjects {
		rows = append(rows, []gateway.Button{{
			Text:   s.Label,
			Action: string(ActionDemoSubject),
			Data:   it.Key + "|" + s.Key,
		}})
	}
	rows = append(rows, []gateway.Button{{
		Text:   "⬅️ Back to Course Details",
		Action: string(ActionSelectItem),
		Data:   it.Key,
	}})

	e.sessions.SetState(ev.Chat, StateSelectingDemoSubject)
	return e.respond(ctx, ev, fmt.Sprintf(demoListText, it.Name), rows)
}

// DeliverDemo copies the requested demo message into the user's chat. A copy
// failure is reported as a notice and leaves the state unchanged, so repeated
// subject taps and the back row stay valid.
func (e *Engine) DeliverDemo(ctx context.Context, ev Event) error {
	it, err := e.catalog.Get(ctx, ev.ItemKey)
	if errors.Is(err, catalog.ErrNotFound) {
		return e.showCatalog(ctx, ev, selectCourseText)
	}
	if err != nil {
		return fmt.Errorf("conversation: demo delivery for %q: %w", ev.ItemKey, err)
	}
	subject, ok := it.Demo.Subject(ev.SubjectKey)
	if !ok {
		ev.ItemKey = it.Key
		return e.ShowDemoList(ctx, ev)
	}

	if err := e.gw.CopyMessage(ctx, ev.Chat, it.Demo.SourceChatID, subject.MessageID); err != nil {
		logger.Warn(ctx, "service.catalog", "demo.copy.fail",
			slog.String("status", "fail"),
			slog.String("item_key", it.Key),
			slog.String("subject_key", subject.Key),
			slog.String("err", err.Error()),
		)
		return e.gw.SendText(ctx, ev.Chat, demoFailedText)
	}
	return nil
}

// ShowPurchase renders the static payment link with the already-paid and
// back actions.
func (e *Engine) ShowPurchase(ctx context.Context, ev Event) error {
	key, ok := e.selectedKey(ev.Chat)
	if !ok {
		return e.showCatalog(ctx, ev, selectCourseText)
	}
	it, err := e.catalog.Get(ctx, key)
	if errors.Is(err, catalog.ErrNotFound) {
		return e.showCatalog(ctx, ev, selectCourseText)
	}
	if err != nil {
		return fmt.Errorf("conversation: purchase view for %q: %w", key, err)
	}

	rows := [][]gateway.Button{
		{{Text: fmt.Sprintf("💳 Pay ₹%d Now", it.Price), URL: e.paymentLink}},
		{{Text: "✅ Already Paid? Share Screenshot", Action: string(ActionScreenshot)}},
		{{Text: "⬅️ Back", Action: string(ActionSelectItem), Data: it.Key}},
	}
	e.sessions.SetState(ev.Chat, StateSelectingAction)
	return e.respond(ctx, ev, fmt.Sprintf(buyCourseText, it.Name, it.Price), rows)
}

// HandleText routes typed text by the chat's current state.
func (e *Engine) HandleText(ctx context.Context, ev Event) error {
	switch e.sessions.GetState(ev.Chat) {
	case StateAwaitingAdminMessage:
		itemName := e.selectedItemName(ctx, ev.Chat)
		if err := e.relay.ForwardText(ctx, ev.User, itemName, ev.Text); err != nil {
			logger.Warn(ctx, "relay", "forward.fail",
				slog.String("status", "fail"),
				slog.Int64("user_id", ev.User.ID),
				slog.String("err", err.Error()),
			)
			return e.gw.SendText(ctx, ev.Chat, forwardFailed)
		}
		if err := e.gw.SendText(ctx, ev.Chat, messageSentText); err != nil {
			return err
		}
		return e.showCatalog(ctx, ev, anotherCourse)
	case StateAwaitingScreenshot:
		// Text where a photo is expected: re-prompt, state does not advance.
		return e.gw.SendText(ctx, ev.Chat, screenshotRetryText)
	default:
		return e.showCatalog(ctx, ev, selectCourseText)
	}
}

// HandlePhoto routes photo uploads by the chat's current state.
func (e *Engine) HandlePhoto(ctx context.Context, ev Event) error {
	switch e.sessions.GetState(ev.Chat) {
	case StateAwaitingScreenshot:
		itemName := e.selectedItemName(ctx, ev.Chat)
		if err := e.relay.ForwardPhoto(ctx, ev.User, itemName, ev.PhotoRef); err != nil {
			logger.Warn(ctx, "relay", "forward.fail",
				slog.String("status", "fail"),
				slog.Int64("user_id", ev.User.ID),
				slog.String("err", err.Error()),
			)
			return e.gw.SendText(ctx, ev.Chat, forwardFailed)
		}
		if err := e.gw.SendText(ctx, ev.Chat, screenshotSentText); err != nil {
			return err
		}
		return e.showCatalog(ctx, ev, anotherCourse)
	case StateAwaitingAdminMessage:
		return e.gw.SendText(ctx, ev.Chat, textRetryText)
	default:
		return e.showCatalog(ctx, ev, selectCourseText)
	}
}

func (e *Engine) selectedKey(chat int64) (string, bool) {
	v, ok := e.sessions.GetTemp(chat, tempSelectedItem)
	if !ok {
		return "", false
	}
	key, ok := v.(string)
	return key, ok && key != ""
}

func (e *Engine) selectedItemName(ctx context.Context, chat int64) string {
	key, ok := e.selectedKey(chat)
	if !ok {
		return ""
	}
	it, err := e.catalog.Get(ctx, key)
	if err != nil {
		return ""
	}
	return it.Name
}

// respond edits the tapped message in place when possible, otherwise sends a
// new one. An edit failure degrades to a fresh send rather than dropping the
// rendering.
func (e *Engine) respond(ctx context.Context, ev Event, text string, rows [][]gateway.Button) error {
	opts := gateway.SendOptions{Keyboard: rows, Markdown: true}
	if ev.MessageID != 0 {
		if err := e.gw.EditMessage(ctx, ev.Chat, ev.MessageID, text, opts); err == nil {
			return nil
		}
	}
	return e.gw.SendText(ctx, ev.Chat, text, opts)
}
