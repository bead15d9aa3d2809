package bot

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	tele "gopkg.in/telebot.v4"

	coretelegram "github.com/gateprep/coursebot/core/telegram"
	"github.com/gateprep/coursebot/core/telegram/commands"
	"github.com/gateprep/coursebot/core/telegram/format"
	tghelpers "github.com/gateprep/coursebot/core/telegram/helpers"

	"github.com/gateprep/coursebot/internal/catalog"
)

const adminPanelText = `🛠 **Admin Panel**

**Catalog**
/listcourses — list all courses
/addcourse <key> <price> <name> — add a course
/delcourse <key> — remove a course
/editcourseprice <key> <price> — change the price
/editcoursestatus <key> <available|coming_soon> — change availability
/setorder <key> <order> — change menu position
/attachdemo <key> <subject_key> <source_chat_id> <message_id> <label> — register a demo lecture

**Users**
/stats — user and course counts
/broadcast <message> — message every user
/reply <user_id> <message> — message one user directly
`

func (a *App) registerAdminCommands(reg *coretelegram.Registry) {
	admin := func(h tele.HandlerFunc, desc string) commands.Command {
		return commands.Command{Handler: h, Description: desc, AdminOnly: true, Hidden: true}
	}

	reg.RegisterCommand("/admin", admin(a.handleAdminPanel, "Show the admin panel"))
	reg.RegisterCommand("/listcourses", admin(a.handleListCourses, "List all courses"))
	reg.RegisterCommand("/addcourse", admin(a.handleAddCourse, "Add a course"))
	reg.RegisterCommand("/delcourse", admin(a.handleDelCourse, "Remove a course"))
	reg.RegisterCommand("/editcourseprice", admin(a.handleEditPrice, "Change a course price"))
	reg.RegisterCommand("/editcoursestatus", admin(a.handleEditStatus, "Change a course status"))
	reg.RegisterCommand("/setorder", admin(a.handleSetOrder, "Change a course menu position"))
	reg.RegisterCommand("/attachdemo", admin(a.handleAttachDemo, "Register a demo lecture"))
	reg.RegisterCommand("/stats", admin(a.handleStats, "Show user and course counts"))
	reg.RegisterCommand("/broadcast", admin(a.handleBroadcast, "Message every user"))
	reg.RegisterCommand("/reply", admin(a.handleReply, "Message one user directly"))
}

func (a *App) handleAdminPanel(c tele.Context) error {
	return tghelpers.SendMD(c, adminPanelText)
}

func (a *App) handleListCourses(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	items, err := a.catalog.List(ctx)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return tghelpers.SendText(c, "The catalog is empty.")
	}

	var b strings.Builder
	b.WriteString("📚 **Courses**\n\n")
	for _, it := range items {
		fmt.Fprintf(&b, "• `%s` — %s — ₹%d — %s — order %d",
			it.Key, it.Name, it.Price, it.Status, it.Order)
		if n := len(it.Demo.Subjects); n > 0 {
			fmt.Fprintf(&b, " — %d demo(s)", n)
		}
		b.WriteString("\n")
	}
	return tghelpers.SendMD(c, b.String())
}

func (a *App) handleAddCourse(c tele.Context) error {
	parts := strings.SplitN(payload(c), " ", 3)
	if len(parts) < 3 {
		return tghelpers.SendText(c, "Usage: /addcourse <key> <price> <name>")
	}
	price, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil || price < 0 {
		return tghelpers.SendText(c, "Price must be a non-negative number.")
	}

	ctx := tghelpers.BuildContext(c)
	item := catalog.Item{
		Key:    parts[0],
		Name:   strings.TrimSpace(parts[2]),
		Price:  price,
		Status: catalog.StatusAvailable,
	}
	if err := a.catalog.Put(ctx, item); err != nil {
		return err
	}
	return tghelpers.SendMD(c, fmt.Sprintf("✅ Course `%s` saved.", item.Key))
}

func (a *App) handleDelCourse(c tele.Context) error {
	fields := strings.Fields(payload(c))
	if len(fields) != 1 {
		return tghelpers.SendText(c, "Usage: /delcourse <key>")
	}

	ctx := tghelpers.BuildContext(c)
	if err := a.catalog.Delete(ctx, fields[0]); err != nil {
		if errors.Is(err, catalog.ErrNotFound) {
			return tghelpers.SendMD(c, fmt.Sprintf("❌ No course with key `%s`.", fields[0]))
		}
		return err
	}
	return tghelpers.SendMD(c, fmt.Sprintf("✅ Course `%s` removed.", fields[0]))
}

func (a *App) handleEditPrice(c tele.Context) error {
	fields := strings.Fields(payload(c))
	if len(fields) != 2 {
		return tghelpers.SendText(c, "Usage: /editcourseprice <key> <price>")
	}
	price, err := strconv.ParseInt(fields[1], 10, 64)
	if err != nil || price < 0 {
		return tghelpers.SendText(c, "Price must be a non-negative number.")
	}

	return a.updateItem(c, fields[0], func(it *catalog.Item) error {
		it.Price = price
		return nil
	}, fmt.Sprintf("✅ Price of `%s` set to ₹%d.", fields[0], price))
}

func (a *App) handleEditStatus(c tele.Context) error {
	fields := strings.Fields(payload(c))
	if len(fields) != 2 {
		return tghelpers.SendText(c, "Usage: /editcoursestatus <key> <available|coming_soon>")
	}
	status, err := catalog.ParseStatus(fields[1])
	if err != nil {
		return tghelpers.SendText(c, "Status must be 'available' or 'coming_soon'.")
	}

	return a.updateItem(c, fields[0], func(it *catalog.Item) error {
		it.Status = status
		return nil
	}, fmt.Sprintf("✅ Status of `%s` set to %s.", fields[0], status))
}

func (a *App) handleSetOrder(c tele.Context) error {
	fields := strings.Fields(payload(c))
	if len(fields) != 2 {
		return tghelpers.SendText(c, "Usage: /setorder <key> <order>")
	}
	order, err := strconv.Atoi(fields[1])
	if err != nil {
		return tghelpers.SendText(c, "Order must be a number.")
	}

	return a.updateItem(c, fields[0], func(it *catalog.Item) error {
		it.Order = order
		return nil
	}, fmt.Sprintf("✅ Order of `%s` set to %d.", fields[0], order))
}

func (a *App) handleAttachDemo(c tele.Context) error {
	parts := strings.SplitN(payload(c), " ", 5)
	if len(parts) < 5 {
		return tghelpers.SendText(c, "Usage: /attachdemo <key> <subject_key> <source_chat_id> <message_id> <label>")
	}
	sourceChat, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return tghelpers.SendText(c, "source_chat_id must be a number.")
	}
	messageID, err := strconv.Atoi(parts[3])
	if err != nil {
		return tghelpers.SendText(c, "message_id must be a number.")
	}

	subject := catalog.DemoSubject{
		Key:       parts[1],
		Label:     strings.TrimSpace(parts[4]),
		MessageID: messageID,
	}
	return a.updateItem(c, parts[0], func(it *catalog.Item) error {
		if it.Demo.SourceChatID != 0 && it.Demo.SourceChatID != sourceChat {
			return fmt.Errorf("demo source chat already set to %d", it.Demo.SourceChatID)
		}
		it.Demo.SourceChatID = sourceChat
		for i, s := range it.Demo.Subjects {
			if s.Key == subject.Key {
				it.Demo.Subjects[i] = subject
				return nil
			}
		}
		it.Demo.Subjects = append(it.Demo.Subjects, subject)
		return nil
	}, fmt.Sprintf("✅ Demo `%s` attached to `%s`.", subject.Key, parts[0]))
}

// updateItem loads, mutates, and writes back one item, acknowledging with ack.
func (a *App) updateItem(c tele.Context, key string, mutate func(*catalog.Item) error, ack string) error {
	ctx := tghelpers.BuildContext(c)
	it, err := a.catalog.Get(ctx, key)
	if errors.Is(err, catalog.ErrNotFound) {
		return tghelpers.SendMD(c, fmt.Sprintf("❌ No course with key `%s`.", key))
	}
	if err != nil {
		return err
	}
	if err := mutate(&it); err != nil {
		return tghelpers.SendText(c, "❌ "+err.Error())
	}
	if err := a.catalog.Put(ctx, it); err != nil {
		return err
	}
	return tghelpers.SendMD(c, ack)
}

func (a *App) handleStats(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	list, err := a.registry.List(ctx)
	if err != nil {
		return err
	}
	items, err := a.catalog.List(ctx)
	if err != nil {
		return err
	}

	var b strings.Builder
	fmt.Fprintf(&b, "📊 **Stats**\n\nUsers: %d\nCourses: %d\n", len(list), len(items))
	if n := len(list); n > 0 {
		b.WriteString("\nLatest users:\n")
		start := n - 10
		if start < 0 {
			start = 0
		}
		for _, u := range list[start:] {
			fmt.Fprintf(&b, "• %s (@%s, `%d`)\n", u.DisplayName(), format.DerefString(u.Username, "-"), u.ID)
		}
	}
	return tghelpers.SendMD(c, b.String())
}

func (a *App) handleBroadcast(c tele.Context) error {
	text := payload(c)
	if text == "" {
		return tghelpers.SendText(c, "Usage: /broadcast <message>")
	}

	ctx := tghelpers.BuildContext(c)
	res, err := a.broadcast.Send(ctx, text)
	if err != nil {
		return err
	}
	return tghelpers.SendText(c, fmt.Sprintf(
		"📢 Broadcast finished. Sent: %d, failed: %d (attempted %d).",
		res.Sent, res.Failed, res.Attempted))
}

func (a *App) handleReply(c tele.Context) error {
	parts := strings.SplitN(payload(c), " ", 2)
	if len(parts) < 2 {
		return tghelpers.SendText(c, "Usage: /reply <user_id> <message>")
	}
	userID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil || userID == 0 {
		return tghelpers.SendText(c, "user_id must be a number.")
	}

	ctx := tghelpers.BuildContext(c)
	if err := a.relay.DirectReply(ctx, userID, strings.TrimSpace(parts[1])); err != nil {
		return err
	}
	return tghelpers.SendMD(c, fmt.Sprintf("✅ Reply sent to user `%d`.", userID))
}

func payload(c tele.Context) string {
	msg := c.Message()
	if msg == nil {
		return ""
	}
	return strings.TrimSpace(msg.Payload)
}
