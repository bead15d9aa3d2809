// Package bot assembles the course-selling assistant from its parts: the
// storage backend, the conversation engine, the operator relay, and the
// Telegram transport wiring.
package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/hashicorp/go-multierror"
	tele "gopkg.in/telebot.v4"

	corebootstrap "github.com/gateprep/coursebot/core/bootstrap"
	"github.com/gateprep/coursebot/core/logger"
	coretelegram "github.com/gateprep/coursebot/core/telegram"
	"github.com/gateprep/coursebot/core/telegram/callbacks"
	"github.com/gateprep/coursebot/core/telegram/commands"
	tghelpers "github.com/gateprep/coursebot/core/telegram/helpers"
	"github.com/gateprep/coursebot/core/telegram/middleware"
	"github.com/gateprep/coursebot/core/telegram/router"
	"github.com/gateprep/coursebot/core/telegram/state"

	"github.com/gateprep/coursebot/internal/broadcast"
	"github.com/gateprep/coursebot/internal/catalog"
	"github.com/gateprep/coursebot/internal/conversation"
	"github.com/gateprep/coursebot/internal/gateway"
	"github.com/gateprep/coursebot/internal/health"
	"github.com/gateprep/coursebot/internal/relay"
	"github.com/gateprep/coursebot/internal/storage"
	filestore "github.com/gateprep/coursebot/internal/storage/file"
	pgstore "github.com/gateprep/coursebot/internal/storage/postgres"
	redisstore "github.com/gateprep/coursebot/internal/storage/redis"
	"github.com/gateprep/coursebot/internal/users"
)

const (
	followUpAckText = "✅ Your reply has been sent to the admin."
	userErrorText   = "😕 Sorry, something went wrong. Please try again or use /start."

	replyNoDestText = "❌ Couldn't determine the destination user. Reply directly to one of my forwarded messages, or use /reply <user_id> <message>."
)

// App owns the fully wired bot. Construct with NewApp, then hand
// TelegramRunOptions to the shared runner.
type App struct {
	cfg *Config

	catalog   catalog.Store
	registry  users.Registry
	gw        *gateway.TelebotGateway
	relay     *relay.Router
	engine    *conversation.Engine
	broadcast *broadcast.Service
	health    *health.Server

	closers []func() error
}

// NewApp bootstraps infrastructure and wires all services for the configured
// storage backend. The Telegram transport itself is attached later, from the
// runtime's start hook.
func NewApp(cfg *Config) (*App, error) {
	opts := corebootstrap.Options{Config: cfg.CoreConfig()}
	if cfg.Store.Backend == BackendPostgres {
		opts.Database = &cfg.Database
	}
	res, err := corebootstrap.Run(opts)
	if err != nil {
		return nil, err
	}

	a := &App{cfg: cfg, gw: gateway.NewTelebot()}

	switch cfg.Store.Backend {
	case BackendFile:
		cs, err := filestore.OpenCatalog(cfg.Store.CatalogFile)
		if err != nil {
			return nil, err
		}
		ur, err := filestore.OpenUsers(cfg.Store.UsersFile)
		if err != nil {
			return nil, err
		}
		a.catalog, a.registry = cs, ur
	case BackendPostgres:
		a.catalog = pgstore.NewCatalog(res.DB)
		a.registry = pgstore.NewUsers(res.DB)
		a.closers = append(a.closers, res.DB.Close)
	case BackendRedis:
		client, err := redisstore.Connect(cfg.Store.RedisURL)
		if err != nil {
			return nil, err
		}
		a.catalog = redisstore.NewCatalog(client)
		a.registry = redisstore.NewUsers(client)
		a.closers = append(a.closers, client.Close)
	default:
		return nil, fmt.Errorf("bot: unsupported store backend %q", cfg.Store.Backend)
	}

	seed := corebootstrap.SeederFunc(func(ctx context.Context) error {
		return storage.SeedCatalog(ctx, a.catalog, cfg.Store.SeedFile)
	})
	if err := corebootstrap.RunSeeders(context.Background(), seed); err != nil {
		return nil, err
	}

	a.relay = relay.New(a.gw, cfg.Telegram.AdminID)
	a.engine = conversation.New(a.catalog, a.registry, a.gw, a.relay, state.NewMemoryManager(), cfg.Payment.Link)
	a.broadcast = broadcast.New(a.registry, a.gw)
	a.health = health.NewServer(cfg.Health.Listen)

	return a, nil
}

// TelegramRunOptions wires commands, callbacks, conversation states, and
// lifecycle hooks for the shared Telegram runner.
func (a *App) TelegramRunOptions() (coretelegram.RunOptions, error) {
	reg := coretelegram.NewRegistry()
	a.registerUserCommands(reg)
	a.registerAdminCommands(reg)
	a.registerCallbacks(reg)
	reg.SetTextFallback(a.handleTextFallback)

	// Both awaiting states consume the next free-form text message.
	state.RegisterHandler(conversation.StateAwaitingAdminMessage, a.handleStateText)
	state.RegisterHandler(conversation.StateAwaitingScreenshot, a.handleStateText)

	routes := router.CommandRoutes(reg, router.CommandRouteOptions{AdminID: a.cfg.Telegram.AdminID})
	routes = append(routes, router.CallbackRoute(reg, router.CallbackOptions{}))
	routes = append(routes, router.TextRoutes(a.engine.Sessions(), reg, router.TextOptions{})...)
	routes = append(routes, coretelegram.Route{
		Endpoint: tele.OnPhoto,
		Handler:  middleware.RecoverMiddleware(middleware.LoggerMiddleware(a.handlePhoto)),
	})

	mws := coretelegram.DefaultMiddlewares(a.cfg.CoreConfig(), nil)
	mws = append(mws,
		coretelegram.Middleware{Name: "session", Use: state.WithSession(a.engine.Sessions())},
		coretelegram.Middleware{Name: "alert", Use: a.alertMiddleware},
	)

	return coretelegram.RunOptions{
		Config:      a.cfg.CoreConfig(),
		Registry:    reg,
		Middlewares: mws,
		Routes:      routes,
		OnStart: func(ctx context.Context, rt coretelegram.Runtime) error {
			a.gw.Bind(rt.Bot)
			a.health.Start()
			return nil
		},
		OnStop: func(ctx context.Context, _ coretelegram.Runtime) error {
			var result *multierror.Error
			result = multierror.Append(result, a.health.Shutdown(ctx))
			for _, close := range a.closers {
				result = multierror.Append(result, close())
			}
			return result.ErrorOrNil()
		},
	}, nil
}

func (a *App) registerUserCommands(reg *coretelegram.Registry) {
	reg.RegisterCommand("/start", commands.Command{
		Handler:     a.handleStart,
		Description: "Show the course menu",
	})
	reg.RegisterCommand("/help", commands.Command{
		Handler:     a.handleHelp,
		Description: "How to use the bot",
		Aliases:     []string{"faq"},
	})
}

func (a *App) registerCallbacks(reg *coretelegram.Registry) {
	type cb struct {
		action  conversation.Action
		handler tele.HandlerFunc
	}
	for _, c := range []cb{
		{conversation.ActionMenu, a.plainCallback(conversation.ActionMenu)},
		{conversation.ActionBuy, a.plainCallback(conversation.ActionBuy)},
		{conversation.ActionTalk, a.plainCallback(conversation.ActionTalk)},
		{conversation.ActionScreenshot, a.plainCallback(conversation.ActionScreenshot)},
		{conversation.ActionSelectItem, a.itemCallback(conversation.ActionSelectItem)},
		{conversation.ActionDemoList, a.itemCallback(conversation.ActionDemoList)},
		{conversation.ActionDemoSubject, a.demoCallback()},
	} {
		_ = reg.RegisterCallback(string(c.action), c.handler)
	}

	// Default arm: callback data that matches no action is treated as a bare
	// catalog identifier. An unknown identifier re-renders the catalog.
	reg.SetCallbackNotFound(func(c tele.Context) error {
		key := callbacks.CallbackKey(c)
		if key == "" {
			return nil
		}
		ev := a.callbackEvent(c, conversation.ActionSelectItem)
		ev.ItemKey = key
		return a.engine.Handle(tghelpers.BuildContext(c), ev)
	})
}

// plainCallback dispatches an action that carries no payload.
func (a *App) plainCallback(action conversation.Action) tele.HandlerFunc {
	return func(c tele.Context) error {
		return a.engine.Handle(tghelpers.BuildContext(c), a.callbackEvent(c, action))
	}
}

// itemCallback dispatches an action whose payload is a catalog key.
func (a *App) itemCallback(action conversation.Action) tele.HandlerFunc {
	return func(c tele.Context) error {
		ev := a.callbackEvent(c, action)
		ev.ItemKey = callbacks.CallbackPayload(c)
		return a.engine.Handle(tghelpers.BuildContext(c), ev)
	}
}

// demoCallback dispatches demo delivery; payload is "<item>|<subject>".
func (a *App) demoCallback() tele.HandlerFunc {
	return func(c tele.Context) error {
		ev := a.callbackEvent(c, conversation.ActionDemoSubject)
		if parts, err := callbacks.PayloadParts(c, "|"); err == nil && len(parts) == 2 {
			ev.ItemKey, ev.SubjectKey = parts[0], parts[1]
		}
		return a.engine.Handle(tghelpers.BuildContext(c), ev)
	}
}

func (a *App) handleStart(c tele.Context) error {
	return a.engine.Handle(tghelpers.BuildContext(c), a.event(c, conversation.ActionStart))
}

func (a *App) handleHelp(c tele.Context) error {
	return tghelpers.SendMD(c, conversation.HelpText)
}

// handleStateText feeds free-form text captured by an awaiting state into the
// engine, which routes it by the chat's current state.
func (a *App) handleStateText(c tele.Context) error {
	ev := a.event(c, conversation.ActionText)
	ev.Text = c.Text()
	return a.engine.Handle(tghelpers.BuildContext(c), ev)
}

// handleTextFallback receives text that matched no command and no awaiting
// state. Operator messages go through reply correlation; user replies to
// relayed messages re-enter the relay; everything else restarts the menu.
func (a *App) handleTextFallback(c tele.Context) error {
	ctx := tghelpers.BuildContext(c)
	if a.isOperator(c) {
		return a.handleOperatorText(ctx, c)
	}

	if msg := c.Message(); msg != nil && msg.ReplyTo != nil && relay.IsOperatorReply(quotedText(msg.ReplyTo)) {
		if err := a.relay.ForwardFollowUp(ctx, senderUser(c), c.Text()); err != nil {
			return err
		}
		return tghelpers.SendText(c, followUpAckText)
	}

	ev := a.event(c, conversation.ActionText)
	ev.Text = c.Text()
	return a.engine.Handle(ctx, ev)
}

func (a *App) handleOperatorText(ctx context.Context, c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.ReplyTo == nil {
		// The operator can browse the menu like any user.
		ev := a.event(c, conversation.ActionText)
		ev.Text = c.Text()
		return a.engine.Handle(ctx, ev)
	}

	dest, err := a.relay.RouteOperatorReply(ctx, quotedText(msg.ReplyTo), quotedFromBot(c, msg.ReplyTo), c.Text())
	if errors.Is(err, relay.ErrNoDestination) {
		return tghelpers.SendText(c, replyNoDestText)
	}
	if err != nil {
		return err
	}
	return tghelpers.SendMD(c, fmt.Sprintf("✅ Reply sent to user `%d`.", dest))
}

// handlePhoto feeds photo uploads into the engine. Operator photos are not
// part of any flow and are ignored.
func (a *App) handlePhoto(c tele.Context) error {
	msg := c.Message()
	if msg == nil || msg.Photo == nil || a.isOperator(c) {
		return nil
	}
	ev := a.event(c, conversation.ActionPhoto)
	ev.PhotoRef = msg.Photo.FileID
	ev.Text = msg.Caption
	return a.engine.Handle(tghelpers.BuildContext(c), ev)
}

// alertMiddleware reports handler errors to the operator chat instead of
// letting them die in the log. Users get a generic apology.
func (a *App) alertMiddleware(next tele.HandlerFunc) tele.HandlerFunc {
	return func(c tele.Context) error {
		err := next(c)
		if err == nil {
			return nil
		}
		ctx := tghelpers.BuildContext(c)
		logger.Error(ctx, "tg", "handler.alert",
			slog.String("status", "fail"),
			slog.String("err", err.Error()),
		)
		if !a.isOperator(c) {
			_ = tghelpers.SendText(c, userErrorText)
		}
		_ = a.gw.SendText(ctx, a.cfg.Telegram.AdminID,
			fmt.Sprintf("🚨 Bot Error Alert 🚨\n\nAn error occurred: %v", err))
		return nil
	}
}

func (a *App) isOperator(c tele.Context) bool {
	s := c.Sender()
	return s != nil && s.ID == a.cfg.Telegram.AdminID
}

func (a *App) event(c tele.Context, action conversation.Action) conversation.Event {
	ev := conversation.Event{User: senderUser(c), Action: action}
	if chat := c.Chat(); chat != nil {
		ev.Chat = chat.ID
	}
	return ev
}

// callbackEvent additionally records the tapped message so renderings can
// edit it in place.
func (a *App) callbackEvent(c tele.Context, action conversation.Action) conversation.Event {
	ev := a.event(c, action)
	if msg := c.Message(); msg != nil {
		ev.MessageID = msg.ID
	}
	return ev
}

func senderUser(c tele.Context) users.User {
	s := c.Sender()
	if s == nil {
		return users.User{}
	}
	u := users.User{ID: s.ID, FirstName: s.FirstName, LastName: s.LastName}
	if s.Username != "" {
		name := s.Username
		u.Username = &name
	}
	return u
}

func quotedText(m *tele.Message) string {
	if m == nil {
		return ""
	}
	if m.Text != "" {
		return m.Text
	}
	return m.Caption
}

func quotedFromBot(c tele.Context, m *tele.Message) bool {
	if m == nil || m.Sender == nil {
		return false
	}
	b, ok := c.Bot().(*tele.Bot)
	return ok && b != nil && b.Me != nil && m.Sender.ID == b.Me.ID
}
