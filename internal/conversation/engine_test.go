package conversation

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/gateprep/coursebot/core/telegram/state"
	"github.com/gateprep/coursebot/internal/catalog"
	"github.com/gateprep/coursebot/internal/gateway"
	"github.com/gateprep/coursebot/internal/relay"
	"github.com/gateprep/coursebot/internal/users"
)

const (
	operatorID = int64(900)
	chatID     = int64(100)
)

type memCatalog struct {
	items map[string]catalog.Item
}

func (m *memCatalog) Get(_ context.Context, key string) (catalog.Item, error) {
	it, ok := m.items[key]
	if !ok {
		return catalog.Item{}, catalog.ErrNotFound
	}
	return it, nil
}

func (m *memCatalog) List(context.Context) ([]catalog.Item, error) {
	out := make([]catalog.Item, 0, len(m.items))
	for _, it := range m.items {
		out = append(out, it)
	}
	catalog.SortItems(out)
	return out, nil
}

func (m *memCatalog) Put(_ context.Context, it catalog.Item) error {
	m.items[it.Key] = it
	return nil
}

func (m *memCatalog) Delete(_ context.Context, key string) error {
	delete(m.items, key)
	return nil
}

type memRegistry struct {
	upserts []users.User
	err     error
}

func (m *memRegistry) Upsert(_ context.Context, u users.User) error {
	if m.err != nil {
		return m.err
	}
	m.upserts = append(m.upserts, u)
	return nil
}

func (m *memRegistry) List(context.Context) ([]users.User, error) { return m.upserts, nil }

type rendering struct {
	chatID    int64
	messageID int
	text      string
	rows      [][]gateway.Button
	edited    bool
}

type copied struct {
	toChat    int64
	fromChat  int64
	messageID int
}

type fakeGateway struct {
	renderings []rendering
	copies     []copied
	copyErr    error
	editErr    error
}

func (f *fakeGateway) SendText(_ context.Context, chat int64, text string, opts ...gateway.SendOptions) error {
	r := rendering{chatID: chat, text: text}
	if len(opts) > 0 {
		r.rows = opts[0].Keyboard
	}
	f.renderings = append(f.renderings, r)
	return nil
}

func (f *fakeGateway) SendPhoto(_ context.Context, chat int64, _, caption string) error {
	f.renderings = append(f.renderings, rendering{chatID: chat, text: caption})
	return nil
}

func (f *fakeGateway) CopyMessage(_ context.Context, toChat, fromChat int64, messageID int) error {
	if f.copyErr != nil {
		return f.copyErr
	}
	f.copies = append(f.copies, copied{toChat, fromChat, messageID})
	return nil
}

func (f *fakeGateway) EditMessage(_ context.Context, chat int64, messageID int, text string, opts ...gateway.SendOptions) error {
	if f.editErr != nil {
		return f.editErr
	}
	r := rendering{chatID: chat, messageID: messageID, text: text, edited: true}
	if len(opts) > 0 {
		r.rows = opts[0].Keyboard
	}
	f.renderings = append(f.renderings, r)
	return nil
}

func (f *fakeGateway) last() rendering {
	if len(f.renderings) == 0 {
		return rendering{}
	}
	return f.renderings[len(f.renderings)-1]
}

func (f *fakeGateway) lastTo(chat int64) (rendering, bool) {
	for i := len(f.renderings) - 1; i >= 0; i-- {
		if f.renderings[i].chatID == chat {
			return f.renderings[i], true
		}
	}
	return rendering{}, false
}

func testItems() map[string]catalog.Item {
	return map[string]catalog.Item{
		"me_je": {Key: "me_je", Name: "SSC JE (Mechanical)", Price: 1499, Status: catalog.StatusAvailable, Order: 1},
		"rrb_je": {
			Key: "rrb_je", Name: "RRB JE (Mechanical)", Price: 1499, Status: catalog.StatusAvailable, Order: 2,
			Demo: catalog.DemoBundle{
				SourceChatID: -200,
				Subjects: []catalog.DemoSubject{
					{Key: "thermo", Label: "Thermodynamics", MessageID: 31},
					{Key: "fluids", Label: "Fluid Mechanics", MessageID: 32},
				},
			},
		},
		"gate_me": {Key: "gate_me", Name: "GATE (Mechanical)", Price: 2999, Status: catalog.StatusComingSoon, Order: 3},
	}
}

func newTestEngine(t *testing.T, items map[string]catalog.Item) (*Engine, *fakeGateway, *memRegistry) {
	t.Helper()
	gw := &fakeGateway{}
	reg := &memRegistry{}
	store := &memCatalog{items: items}
	rl := relay.New(gw, operatorID)
	e := New(store, reg, gw, rl, state.NewMemoryManager(), "https://pay.example/now")
	return e, gw, reg
}

func event(action Action) Event {
	return Event{Chat: chatID, User: users.User{ID: chatID, FirstName: "Asha"}, Action: action}
}

func TestStartRendersCatalogAndEntersSelecting(t *testing.T) {
	e, gw, reg := newTestEngine(t, testItems())

	if err := e.Handle(context.Background(), event(ActionStart)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	r := gw.last()
	if len(r.rows) != 3 {
		t.Fatalf("catalog rows = %d, want 3", len(r.rows))
	}
	// Listing order follows display order, ties by key.
	wantOrder := []string{"me_je", "rrb_je", "gate_me"}
	for i, key := range wantOrder {
		if r.rows[i][0].Data != key {
			t.Fatalf("row %d = %q, want %q", i, r.rows[i][0].Data, key)
		}
	}
	if !strings.Contains(r.rows[2][0].Text, "(Coming Soon)") {
		t.Fatalf("coming-soon item not labeled: %q", r.rows[2][0].Text)
	}
	if got := e.Sessions().GetState(chatID); got != StateSelectingAction {
		t.Fatalf("state = %q, want %q", got, StateSelectingAction)
	}
	if len(reg.upserts) != 1 || reg.upserts[0].ID != chatID {
		t.Fatalf("registry upserts = %+v", reg.upserts)
	}
	if !strings.Contains(r.text, "Asha") {
		t.Fatalf("welcome text missing name: %q", r.text)
	}
}

func TestEmptyCatalog(t *testing.T) {
	e, gw, _ := newTestEngine(t, map[string]catalog.Item{})

	if err := e.Handle(context.Background(), event(ActionStart)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gw.last().text != emptyCatalog {
		t.Fatalf("text = %q, want empty-catalog notice", gw.last().text)
	}
}

func TestRegistryFailureDoesNotBlockConversation(t *testing.T) {
	e, gw, reg := newTestEngine(t, testItems())
	reg.err = fmt.Errorf("db down")

	if err := e.Handle(context.Background(), event(ActionStart)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(gw.renderings) == 0 {
		t.Fatal("no rendering despite registry failure")
	}
}

func TestSelectItemWithoutDemoHidesDemoRow(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	ev := event(ActionSelectItem)
	ev.ItemKey = "me_je"
	if err := e.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	r := gw.last()
	// Talk, buy, back. No demo row.
	if len(r.rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(r.rows))
	}
	for _, row := range r.rows {
		if row[0].Action == string(ActionDemoList) {
			t.Fatal("demo row rendered for item without demo bundle")
		}
	}
}

func TestSelectItemWithDemoShowsDemoRow(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	ev := event(ActionSelectItem)
	ev.ItemKey = "rrb_je"
	if err := e.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	r := gw.last()
	if len(r.rows) != 4 {
		t.Fatalf("rows = %d, want 4", len(r.rows))
	}
	if r.rows[2][0].Action != string(ActionDemoList) || r.rows[2][0].Data != "rrb_je" {
		t.Fatalf("demo row = %+v", r.rows[2][0])
	}
}

func TestSelectUnknownItemRerendersCatalog(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	ev := event(ActionSelectItem)
	ev.ItemKey = "deleted_course"
	if err := e.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	r := gw.last()
	if r.text != selectCourseText {
		t.Fatalf("text = %q, want catalog prompt", r.text)
	}
	if got := e.Sessions().GetState(chatID); got != StateSelectingAction {
		t.Fatalf("state = %q, want %q", got, StateSelectingAction)
	}
}

func TestComingSoonSuppressesActions(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	ev := event(ActionSelectItem)
	ev.ItemKey = "gate_me"
	if err := e.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	r := gw.last()
	if len(r.rows) != 1 || r.rows[0][0].Action != string(ActionMenu) {
		t.Fatalf("rows = %+v, want only a back row", r.rows)
	}
	if !strings.Contains(r.text, "launching soon") {
		t.Fatalf("text = %q", r.text)
	}
}

func TestDemoListRowsAndState(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	ev := event(ActionDemoList)
	ev.ItemKey = "rrb_je"
	if err := e.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	r := gw.last()
	// One row per subject plus the back row.
	if len(r.rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(r.rows))
	}
	if r.rows[0][0].Data != "rrb_je|thermo" || r.rows[1][0].Data != "rrb_je|fluids" {
		t.Fatalf("subject rows = %+v", r.rows)
	}
	if r.rows[2][0].Action != string(ActionSelectItem) {
		t.Fatalf("back row = %+v", r.rows[2][0])
	}
	if got := e.Sessions().GetState(chatID); got != StateSelectingDemoSubject {
		t.Fatalf("state = %q, want %q", got, StateSelectingDemoSubject)
	}
}

func TestDemoListWithoutBundle(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	ev := event(ActionDemoList)
	ev.ItemKey = "me_je"
	if err := e.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if gw.last().text != demoEmptyText {
		t.Fatalf("text = %q, want demo-empty notice", gw.last().text)
	}
	if got := e.Sessions().GetState(chatID); got != StateSelectingAction {
		t.Fatalf("state = %q, want %q", got, StateSelectingAction)
	}
}

func TestDeliverDemoCopiesSourceMessage(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	ev := event(ActionDemoSubject)
	ev.ItemKey, ev.SubjectKey = "rrb_je", "fluids"
	if err := e.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if len(gw.copies) != 1 {
		t.Fatalf("copies = %d, want 1", len(gw.copies))
	}
	c := gw.copies[0]
	if c.toChat != chatID || c.fromChat != -200 || c.messageID != 32 {
		t.Fatalf("copy = %+v", c)
	}
}

func TestDeliverDemoFailureKeepsState(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	// Enter the demo list first so the state to preserve is meaningful.
	list := event(ActionDemoList)
	list.ItemKey = "rrb_je"
	if err := e.Handle(context.Background(), list); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	gw.copyErr = fmt.Errorf("message deleted upstream")
	ev := event(ActionDemoSubject)
	ev.ItemKey, ev.SubjectKey = "rrb_je", "thermo"
	if err := e.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	if gw.last().text != demoFailedText {
		t.Fatalf("text = %q, want demo-failed notice", gw.last().text)
	}
	if got := e.Sessions().GetState(chatID); got != StateSelectingDemoSubject {
		t.Fatalf("state = %q, want unchanged %q", got, StateSelectingDemoSubject)
	}
}

func TestDeliverDemoUnknownSubjectFallsBackToList(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	ev := event(ActionDemoSubject)
	ev.ItemKey, ev.SubjectKey = "rrb_je", "som"
	if err := e.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(gw.copies) != 0 {
		t.Fatal("unknown subject still copied a message")
	}
	if len(gw.last().rows) != 3 {
		t.Fatalf("expected demo list re-render, got rows = %+v", gw.last().rows)
	}
}

func TestPurchaseViewShowsPaymentLink(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	sel := event(ActionSelectItem)
	sel.ItemKey = "me_je"
	if err := e.Handle(context.Background(), sel); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := e.Handle(context.Background(), event(ActionBuy)); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	r := gw.last()
	if len(r.rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(r.rows))
	}
	if r.rows[0][0].URL != "https://pay.example/now" {
		t.Fatalf("pay row = %+v", r.rows[0][0])
	}
	if r.rows[1][0].Action != string(ActionScreenshot) {
		t.Fatalf("screenshot row = %+v", r.rows[1][0])
	}
	if !strings.Contains(r.text, "1499") {
		t.Fatalf("price missing from text: %q", r.text)
	}
}

func TestPurchaseWithoutSelectionRerendersCatalog(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	if err := e.Handle(context.Background(), event(ActionBuy)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gw.last().text != selectCourseText {
		t.Fatalf("text = %q, want catalog prompt", gw.last().text)
	}
}

func TestTalkFlowForwardsWithUserID(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	sel := event(ActionSelectItem)
	sel.ItemKey = "rrb_je"
	if err := e.Handle(context.Background(), sel); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := e.Handle(context.Background(), event(ActionTalk)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := e.Sessions().GetState(chatID); got != StateAwaitingAdminMessage {
		t.Fatalf("state = %q, want %q", got, StateAwaitingAdminMessage)
	}

	msg := event(ActionText)
	msg.Text = "Is the test series included?"
	if err := e.Handle(context.Background(), msg); err != nil {
		t.Fatalf("Handle: %v", err)
	}

	fwd, ok := gw.lastTo(operatorID)
	if !ok {
		t.Fatal("nothing forwarded to operator")
	}
	if id, found := relay.ExtractUserID(fwd.text); !found || id != chatID {
		t.Fatalf("forwarded message has no recoverable user ID: %q", fwd.text)
	}
	if !strings.Contains(fwd.text, "RRB JE (Mechanical)") {
		t.Fatalf("forwarded message missing selected course: %q", fwd.text)
	}
	if got := e.Sessions().GetState(chatID); got != StateSelectingAction {
		t.Fatalf("state after forward = %q, want %q", got, StateSelectingAction)
	}
}

func TestScreenshotFlowRoundTrip(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	sel := event(ActionSelectItem)
	sel.ItemKey = "me_je"
	if err := e.Handle(context.Background(), sel); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if err := e.Handle(context.Background(), event(ActionScreenshot)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if got := e.Sessions().GetState(chatID); got != StateAwaitingScreenshot {
		t.Fatalf("state = %q, want %q", got, StateAwaitingScreenshot)
	}

	// Text where a photo is expected: re-prompt, no state change.
	txt := event(ActionText)
	txt.Text = "paid!"
	if err := e.Handle(context.Background(), txt); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gw.last().text != screenshotRetryText {
		t.Fatalf("text = %q, want screenshot retry prompt", gw.last().text)
	}
	if got := e.Sessions().GetState(chatID); got != StateAwaitingScreenshot {
		t.Fatalf("state = %q, want unchanged %q", got, StateAwaitingScreenshot)
	}

	photo := event(ActionPhoto)
	photo.PhotoRef = "file-abc"
	if err := e.Handle(context.Background(), photo); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	fwd, ok := gw.lastTo(operatorID)
	if !ok {
		t.Fatal("screenshot not forwarded to operator")
	}
	if id, found := relay.ExtractUserID(fwd.text); !found || id != chatID {
		t.Fatalf("caption has no recoverable user ID: %q", fwd.text)
	}
	if got := e.Sessions().GetState(chatID); got != StateSelectingAction {
		t.Fatalf("state after screenshot = %q, want %q", got, StateSelectingAction)
	}
}

func TestPhotoWhileAwaitingTextReprompts(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	if err := e.Handle(context.Background(), event(ActionTalk)); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	photo := event(ActionPhoto)
	photo.PhotoRef = "file-abc"
	if err := e.Handle(context.Background(), photo); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gw.last().text != textRetryText {
		t.Fatalf("text = %q, want text retry prompt", gw.last().text)
	}
	if got := e.Sessions().GetState(chatID); got != StateAwaitingAdminMessage {
		t.Fatalf("state = %q, want unchanged %q", got, StateAwaitingAdminMessage)
	}
}

func TestUnknownActionFallsBackToCatalog(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	if err := e.Handle(context.Background(), event(Action("totally_new"))); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if gw.last().text != selectCourseText {
		t.Fatalf("text = %q, want catalog prompt", gw.last().text)
	}
}

func TestCallbackEventEditsInPlace(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())

	ev := event(ActionMenu)
	ev.MessageID = 77
	if err := e.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	r := gw.last()
	if !r.edited || r.messageID != 77 {
		t.Fatalf("rendering = %+v, want edit of message 77", r)
	}
}

func TestEditFailureFallsBackToSend(t *testing.T) {
	e, gw, _ := newTestEngine(t, testItems())
	gw.editErr = fmt.Errorf("message too old")

	ev := event(ActionMenu)
	ev.MessageID = 77
	if err := e.Handle(context.Background(), ev); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	r := gw.last()
	if r.edited {
		t.Fatal("edit reported despite injected failure")
	}
	if r.text != selectCourseText {
		t.Fatalf("fallback text = %q", r.text)
	}
}
