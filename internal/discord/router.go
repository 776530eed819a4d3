package discord

import (
	"cmp"
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/time/rate"

	"github.com/MrWong99/tailbot/internal/observe"
)

// HandlerFunc is the signature for slash command handlers. The returned
// text is the reply; a non-nil error replaces it with [ReplyText] of the
// error.
type HandlerFunc func(ctx context.Context, inv *Invocation) (string, error)

// Defaults for [NewCommandRouter].
const (
	DefaultDeferredTimeout = 30 * time.Second
	DefaultRateLimit       = rate.Limit(1)
	DefaultRateBurst       = 5
)

// CommandOption configures a single registered command.
type CommandOption func(*commandEntry)

// Deferred makes the router acknowledge the interaction immediately and
// deliver the handler's reply later by editing the acknowledgement. Use it
// for handlers that wait on the network.
func Deferred() CommandOption {
	return func(e *commandEntry) { e.deferred = true }
}

// Restricted limits the command to operators as decided by the router's
// [PermissionChecker].
func Restricted() CommandOption {
	return func(e *commandEntry) { e.restricted = true }
}

// commandEntry stores a command definition along with its handler.
type commandEntry struct {
	command    *discordgo.ApplicationCommand
	handler    HandlerFunc
	deferred   bool
	restricted bool
}

// RouterOption configures a [CommandRouter].
type RouterOption func(*CommandRouter)

// WithPermissions sets the checker consulted for restricted commands.
func WithPermissions(p *PermissionChecker) RouterOption {
	return func(r *CommandRouter) { r.perms = p }
}

// WithRateLimit sets the per-user command rate. A limit of [rate.Inf]
// disables limiting.
func WithRateLimit(limit rate.Limit, burst int) RouterOption {
	return func(r *CommandRouter) {
		r.limit = limit
		r.burst = burst
	}
}

// WithDeferredTimeout bounds the handler run of deferred commands.
func WithDeferredTimeout(d time.Duration) RouterOption {
	return func(r *CommandRouter) {
		if d > 0 {
			r.deferredTimeout = d
		}
	}
}

// WithMetrics sets the metrics the router records into.
func WithMetrics(m *observe.Metrics) RouterOption {
	return func(r *CommandRouter) { r.metrics = m }
}

// CommandRouter dispatches Discord interactions to registered handlers and
// sends exactly one reply per interaction.
type CommandRouter struct {
	mu       sync.RWMutex
	commands map[string]commandEntry // command name → entry

	perms           *PermissionChecker
	metrics         *observe.Metrics
	deferredTimeout time.Duration

	limit    rate.Limit
	burst    int
	limMu    sync.Mutex
	limiters map[string]*rate.Limiter // user id → limiter

	inflight sync.WaitGroup
}

// NewCommandRouter creates an empty router.
func NewCommandRouter(opts ...RouterOption) *CommandRouter {
	r := &CommandRouter{
		commands:        make(map[string]commandEntry),
		deferredTimeout: DefaultDeferredTimeout,
		limit:           DefaultRateLimit,
		burst:           DefaultRateBurst,
		limiters:        make(map[string]*rate.Limiter),
	}
	for _, o := range opts {
		o(r)
	}
	if r.metrics == nil {
		r.metrics = observe.DefaultMetrics()
	}
	return r
}

// RegisterCommand registers a handler for a slash command. cmd is the
// definition sent to Discord; its Name is the routing key. Registering a
// name twice replaces the earlier entry.
func (r *CommandRouter) RegisterCommand(cmd *discordgo.ApplicationCommand, handler HandlerFunc, opts ...CommandOption) {
	e := commandEntry{command: cmd, handler: handler}
	for _, o := range opts {
		o(&e)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands[cmd.Name] = e
}

// ApplicationCommands returns the registered command definitions sorted by
// name, for registration with the Discord API.
func (r *CommandRouter) ApplicationCommands() []*discordgo.ApplicationCommand {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cmds := make([]*discordgo.ApplicationCommand, 0, len(r.commands))
	for _, e := range r.commands {
		cmds = append(cmds, e.command)
	}
	slices.SortFunc(cmds, func(a, b *discordgo.ApplicationCommand) int {
		return cmp.Compare(a.Name, b.Name)
	})
	return cmds
}

// Handle dispatches an interaction to the appropriate handler. It is meant
// to be installed with [discordgo.Session.AddHandler].
func (r *CommandRouter) Handle(s *discordgo.Session, i *discordgo.InteractionCreate) {
	r.handle(s, i)
}

// Wait blocks until every deferred command still running has delivered its
// reply.
func (r *CommandRouter) Wait() {
	r.inflight.Wait()
}

func (r *CommandRouter) handle(rs Responder, i *discordgo.InteractionCreate) {
	if i.Type != discordgo.InteractionApplicationCommand {
		slog.Warn("discord: unhandled interaction type", "type", i.Type)
		return
	}

	inv := NewInvocation(i)
	slog.Debug("discord: command received",
		"command", inv.Name,
		"user_id", inv.UserID(),
		"guild_id", inv.GuildID,
		"channel_id", inv.ChannelID,
	)

	if !r.deferred(inv.Name) {
		text := r.Dispatch(context.Background(), inv)
		if err := Reply(rs, i, text); err != nil {
			logDelivery(inv.Name, err)
		}
		return
	}

	if err := DeferReply(rs, i); err != nil {
		logDelivery(inv.Name, err)
		return
	}
	r.inflight.Add(1)
	go func() {
		defer r.inflight.Done()
		ctx, cancel := context.WithTimeout(context.Background(), r.deferredTimeout)
		defer cancel()

		text := r.Dispatch(ctx, inv)
		if err := EditReply(rs, i, text); err != nil {
			logDelivery(inv.Name, err)
		}
	}()
}

// Dispatch runs the handler registered for inv and returns the reply text.
// It never fails: unknown commands, refused calls, handler errors and
// handler panics all turn into a reply.
func (r *CommandRouter) Dispatch(ctx context.Context, inv *Invocation) string {
	r.mu.RLock()
	entry, ok := r.commands[inv.Name]
	r.mu.RUnlock()

	if !ok {
		slog.Warn("discord: unknown command", "command", inv.Name)
		r.metrics.RecordCommand(ctx, "unknown", "unknown", 0)
		return NotImplementedReply
	}
	if entry.restricted && !r.perms.IsOperator(inv) {
		slog.Info("discord: command refused", "command", inv.Name, "user_id", inv.UserID())
		r.metrics.RecordCommand(ctx, inv.Name, "forbidden", 0)
		return ForbiddenReply
	}
	if !r.allow(inv.UserID()) {
		slog.Info("discord: command rate limited", "command", inv.Name, "user_id", inv.UserID())
		r.metrics.RecordCommand(ctx, inv.Name, "rate_limited", 0)
		return RateLimitedReply
	}

	ctx, span := observe.StartSpan(ctx, "command "+inv.Name,
		trace.WithAttributes(
			attribute.String("discord.command", inv.Name),
			attribute.String("discord.user_id", inv.UserID()),
			attribute.String("discord.guild_id", inv.GuildID),
		),
	)
	defer span.End()

	start := time.Now()
	text, err := invoke(ctx, entry.handler, inv)
	status := "ok"
	if err != nil {
		status = "error"
		observe.SpanError(span, err)
		observe.Logger(ctx).Warn("discord: command failed", "command", inv.Name, "err", err)
		text = ReplyText(err)
	}
	r.metrics.RecordCommand(ctx, inv.Name, status, time.Since(start))
	return text
}

func (r *CommandRouter) deferred(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.commands[name].deferred
}

// allow reports whether userID may run another command now.
func (r *CommandRouter) allow(userID string) bool {
	if r.limit == rate.Inf {
		return true
	}
	r.limMu.Lock()
	lim, ok := r.limiters[userID]
	if !ok {
		lim = rate.NewLimiter(r.limit, r.burst)
		r.limiters[userID] = lim
	}
	r.limMu.Unlock()
	return lim.Allow()
}

// invoke calls h, converting a panic into an error wrapping errHandlerPanic.
func invoke(ctx context.Context, h HandlerFunc, inv *Invocation) (text string, err error) {
	defer func() {
		if p := recover(); p != nil {
			slog.Error("discord: handler panic", "command", inv.Name, "panic", p, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", errHandlerPanic, p)
		}
	}()
	return h(ctx, inv)
}

func logDelivery(command string, err error) {
	slog.Warn("discord: reply not delivered", "err", &ReplyDeliveryError{Command: command, Err: err})
}
