package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"coachhub/internal/caching"
	"coachhub/internal/chat"
	"coachhub/internal/metrics"
	"coachhub/internal/models"
	"coachhub/internal/realtime"
	"coachhub/internal/repositories"
	"coachhub/internal/services"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Outbox delivers encoded events to the client. *realtime.Connection satisfies it.
type Outbox interface {
	Send(payload []byte) error
}

type Dependencies struct {
	Resolver   services.TenantResolver
	Chat       services.ChatService
	Moderation services.ModerationService
	History    chat.HistoryLoader
	Changes    realtime.ChangeFeed
	Cache      caching.CacheService
	Metrics    *metrics.Metrics
	Log        *zap.Logger
}

type Options struct {
	Hostname    string
	DevOverride string
	// CommandsPerSecond and CommandBurst bound client commands. Zero disables the limit.
	CommandsPerSecond float64
	CommandBurst      int
}

// ClientSession is the server-side state of one connected client: its branding,
// resolved tenant, block list and open chat feed.
type ClientSession struct {
	deps     Dependencies
	out      Outbox
	opts     Options
	log      *zap.Logger
	branding *services.BrandingInjector
	tracker  *services.TenantTracker
	blocks   *chat.BlockSet
	limiter  *rate.Limiter

	mu         sync.Mutex
	epoch      uint64
	loggingOut bool
	identity   *models.Profile
	token      string
	feed       *chat.Feed
	blockSub   realtime.Subscription
}

func NewClientSession(deps Dependencies, out Outbox, opts Options) *ClientSession {
	if deps.Metrics == nil {
		deps.Metrics = metrics.NewNop()
	}
	if deps.Log == nil {
		deps.Log = zap.NewNop()
	}
	s := &ClientSession{
		deps:     deps,
		out:      out,
		opts:     opts,
		log:      deps.Log.With(zap.String("host", opts.Hostname)),
		branding: services.NewBrandingInjector(deps.Log),
		blocks:   chat.NewBlockSet(),
		limiter:  rate.NewLimiter(rate.Inf, 0),
	}
	if opts.CommandsPerSecond > 0 {
		burst := opts.CommandBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(opts.CommandsPerSecond), burst)
	}
	s.tracker = services.NewTenantTracker(deps.Resolver, s.publishTenant, deps.Metrics, deps.Log)
	return s
}

// publishTenant runs under the tracker lock for every accepted resolution.
func (s *ClientSession) publishTenant(tenant *models.Tenant) {
	s.emit(Event{Type: EventBranding, Data: s.branding.Apply(tenant)})
}

// SignIn binds identity to the session, re-resolves the tenant and reopens the chat feed.
// Calling it again with another identity replaces the previous one.
func (s *ClientSession) SignIn(ctx context.Context, identity *models.Profile, token string) error {
	if identity == nil {
		return errors.New("identity is required")
	}

	s.mu.Lock()
	s.epoch++
	epoch := s.epoch
	s.loggingOut = false
	s.identity = identity
	s.token = token
	old := s.feed
	s.feed = nil
	oldBlocks := s.blockSub
	s.blockSub = nil
	s.mu.Unlock()

	// The previous feed's subscription must be gone before another one opens.
	if old != nil {
		old.Close()
	}
	closeSubscription(oldBlocks)

	s.tracker.Resume()
	s.tracker.Refresh(ctx, services.ResolveRequest{
		Hostname:    s.opts.Hostname,
		Identity:    identity,
		DevOverride: s.opts.DevOverride,
	})

	tenantID, ok := s.tracker.CurrentID()
	if !ok {
		s.log.Info("no tenant resolved, chat unavailable", zap.String("user_id", identity.ID.String()))
		return nil
	}
	if bound, isBound := identity.BoundTenant(); !isBound || bound != tenantID {
		s.log.Info("identity not a member of resolved tenant, chat unavailable",
			zap.String("user_id", identity.ID.String()), zap.String("tenant_id", tenantID.String()))
		return nil
	}

	// Watch before loading so a block landing in between is not missed.
	s.watchBlocks(ctx, identity.ID, epoch)
	s.loadBlockList(ctx, identity.ID)

	feed := chat.NewFeed(chat.FeedConfig{
		Loader:   s.deps.History,
		Changes:  s.deps.Changes,
		Blocks:   s.blocks,
		OnChange: s.pushFeed,
		Metrics:  s.deps.Metrics,
		Log:      s.deps.Log,
	})

	s.mu.Lock()
	if s.epoch != epoch || s.loggingOut {
		s.mu.Unlock()
		return nil
	}
	s.feed = feed
	s.mu.Unlock()

	if err := feed.Open(ctx, identity.ID, tenantID); err != nil {
		s.log.Warn("opening chat feed failed", zap.Error(err))
		s.mu.Lock()
		if s.feed == feed {
			s.feed = nil
		}
		s.mu.Unlock()
		return fmt.Errorf("open chat feed: %w", err)
	}

	// A sign-out may have torn things down while the feed was loading.
	s.mu.Lock()
	stale := s.feed != feed
	s.mu.Unlock()
	if stale {
		feed.Close()
	}
	return nil
}

func (s *ClientSession) loadBlockList(ctx context.Context, userID uuid.UUID) {
	ids, err := s.deps.Moderation.BlockedIDs(ctx, userID)
	if err != nil {
		s.log.Warn("loading block list failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}
	s.blocks.Replace(ids)
}

// watchBlocks follows blocks made by userID elsewhere, e.g. over the REST API, and applies them
// to the visible feed.
func (s *ClientSession) watchBlocks(ctx context.Context, userID uuid.UUID, epoch uint64) {
	if s.deps.Changes == nil {
		return
	}
	sub, err := s.deps.Changes.Subscribe(ctx, models.TableBlocks, userID)
	if err != nil {
		s.log.Warn("subscribing to block events failed", zap.String("user_id", userID.String()), zap.Error(err))
		return
	}

	s.mu.Lock()
	if s.epoch != epoch || s.loggingOut {
		s.mu.Unlock()
		closeSubscription(sub)
		return
	}
	s.blockSub = sub
	s.mu.Unlock()

	go func() {
		for ev := range sub.Events() {
			if ev.Block == nil || ev.Block.BlockerID != userID {
				continue
			}
			s.mu.Lock()
			current := s.epoch == epoch && !s.loggingOut
			s.mu.Unlock()
			if !current {
				continue
			}
			s.blocks.Add(ev.Block.BlockedID)
			s.pushFeed()
		}
	}()
}

func closeSubscription(sub realtime.Subscription) {
	if sub != nil {
		_ = sub.Close()
	}
}

// SignOut tears the session down in a fixed order: stop in-flight writers, reset branding,
// drop cached state, forget the session token, then send the client to the signed-out page.
func (s *ClientSession) SignOut(ctx context.Context) error {
	s.tracker.Suspend()
	s.mu.Lock()
	s.loggingOut = true
	s.epoch++
	feed := s.feed
	s.feed = nil
	blockSub := s.blockSub
	s.blockSub = nil
	identity := s.identity
	s.identity = nil
	token := s.token
	s.token = ""
	s.mu.Unlock()

	s.emit(Event{Type: EventBranding, Data: s.branding.Reset()})

	var errs []error
	if feed != nil {
		feed.Close()
	}
	closeSubscription(blockSub)
	s.blocks.Clear()
	s.tracker.Clear()
	if identity != nil && s.deps.Cache != nil {
		if err := s.deps.Cache.InvalidateBlockList(ctx, identity.ID); err != nil {
			errs = append(errs, fmt.Errorf("clear block list cache: %w", err))
		}
	}

	if token != "" && s.deps.Cache != nil {
		if err := s.deps.Cache.DeleteSession(ctx, token); err != nil {
			errs = append(errs, fmt.Errorf("clear session token: %w", err))
		}
	}

	s.emit(Event{Type: EventSignedOut, Data: SignedOutPayload{Navigate: SignedOutPath}})

	err := errors.Join(errs...)
	if err != nil {
		s.log.Warn("sign-out cleanup incomplete", zap.Error(err))
	}
	return err
}

// Foreground reconciles the block list and the feed after the app was in the background.
func (s *ClientSession) Foreground(ctx context.Context) {
	feed := s.currentFeed()
	if feed == nil {
		return
	}
	if identity := s.currentIdentity(); identity != nil {
		s.loadBlockList(ctx, identity.ID)
	}
	if err := feed.Resume(ctx); err != nil {
		s.log.Debug("foreground refetch failed", zap.Error(err))
	}
}

// Close releases the session without the sign-out navigation, e.g. when the socket drops.
func (s *ClientSession) Close() {
	s.tracker.Suspend()
	s.mu.Lock()
	s.loggingOut = true
	s.epoch++
	feed := s.feed
	s.feed = nil
	blockSub := s.blockSub
	s.blockSub = nil
	s.mu.Unlock()
	if feed != nil {
		feed.Close()
	}
	closeSubscription(blockSub)
}

func (s *ClientSession) Branding() models.Branding {
	return s.branding.Current()
}

func (s *ClientSession) Tenant() *models.Tenant {
	return s.tracker.Current()
}

// Visible returns the feed's current visible messages, or nil without an open feed.
func (s *ClientSession) Visible() []*models.Message {
	if feed := s.currentFeed(); feed != nil {
		return feed.Visible()
	}
	return nil
}

func (s *ClientSession) currentFeed() *chat.Feed {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.feed
}

func (s *ClientSession) currentIdentity() *models.Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.identity
}

func (s *ClientSession) pushFeed() {
	s.mu.Lock()
	feed := s.feed
	suspended := s.loggingOut
	s.mu.Unlock()
	if feed == nil || suspended {
		return
	}
	_, tenantID := feed.Scope()
	s.emit(Event{Type: EventFeed, Data: FeedPayload{
		State:    string(feed.State()),
		TenantID: tenantID.String(),
		Messages: feed.Visible(),
	}})
}

func (s *ClientSession) emit(ev Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Error("encoding event failed", zap.String("type", ev.Type), zap.Error(err))
		return
	}
	if err := s.out.Send(payload); err != nil && !errors.Is(err, realtime.ErrConnectionClosed) {
		s.log.Warn("sending event failed", zap.String("type", ev.Type), zap.Error(err))
	}
}

func (s *ClientSession) emitError(commandID, code, message string, retryable bool, restore string) {
	s.emit(Event{Type: EventError, CommandID: commandID, Data: ErrorPayload{
		Code:           code,
		Message:        message,
		Retryable:      retryable,
		RestoreContent: restore,
	}})
}

// HandleCommand decodes and executes one client frame. Failures are reported to the client as
// error events; nothing here closes the connection.
func (s *ClientSession) HandleCommand(ctx context.Context, raw []byte) {
	var cmd Command
	if err := json.Unmarshal(raw, &cmd); err != nil {
		s.emitError("", "BAD_COMMAND", "command is not valid JSON", false, "")
		return
	}
	if !s.limiter.Allow() {
		s.emitError(cmd.ID, "RATE_LIMITED", "too many commands, slow down", true, "")
		return
	}

	switch cmd.Type {
	case CommandSend:
		s.handleSend(ctx, cmd)
	case CommandBlock:
		s.handleBlock(ctx, cmd)
	case CommandReport:
		s.handleReport(ctx, cmd)
	case CommandMarkRead:
		s.handleMarkRead(ctx, cmd)
	case CommandForeground:
		s.Foreground(ctx)
		s.ack(cmd.ID, nil)
	case CommandSignOut:
		_ = s.SignOut(ctx)
	default:
		s.emitError(cmd.ID, "UNKNOWN_COMMAND", fmt.Sprintf("unknown command %q", cmd.Type), false, "")
	}
}

func (s *ClientSession) ack(commandID string, data any) {
	s.emit(Event{Type: EventAck, CommandID: commandID, Data: data})
}

// chatScope returns the signed-in identity and its resolved tenant.
func (s *ClientSession) chatScope(commandID string) (*models.Profile, uuid.UUID, bool) {
	identity := s.currentIdentity()
	if identity == nil {
		s.emitError(commandID, "UNAUTHORIZED", "sign in first", false, "")
		return nil, uuid.Nil, false
	}
	tenantID, ok := s.tracker.CurrentID()
	if !ok {
		s.emitError(commandID, "NO_TENANT", "no tenant resolved for this session", false, "")
		return nil, uuid.Nil, false
	}
	return identity, tenantID, true
}

func (s *ClientSession) handleSend(ctx context.Context, cmd Command) {
	var req sendCommand
	if err := json.Unmarshal(cmd.Data, &req); err != nil {
		s.emitError(cmd.ID, "BAD_COMMAND", "invalid send payload", false, "")
		return
	}
	identity, tenantID, ok := s.chatScope(cmd.ID)
	if !ok {
		return
	}

	msg, err := s.deps.Chat.Send(ctx, identity, tenantID, &services.SendMessageRequest{Content: req.Content, ReceiverID: req.ReceiverID})
	switch {
	case err == nil:
		s.ack(cmd.ID, msg)
	case errors.Is(err, services.ErrNoCoachAvailable):
		s.emitError(cmd.ID, "NO_COACH_AVAILABLE", err.Error(), true, req.Content)
	case errors.Is(err, services.ErrEmptyMessage), errors.Is(err, services.ErrMessageTooLong),
		errors.Is(err, services.ErrInvalidReceiver), errors.Is(err, services.ErrTenantMismatch):
		s.emitError(cmd.ID, "VALIDATION_ERROR", err.Error(), false, req.Content)
	default:
		s.log.Error("send failed", zap.Error(err))
		s.emitError(cmd.ID, "SEND_FAILED", "message could not be sent", true, req.Content)
	}
}

// handleBlock hides the blocked user's messages at once, then refreshes the block list and the feed.
func (s *ClientSession) handleBlock(ctx context.Context, cmd Command) {
	var req blockCommand
	if err := json.Unmarshal(cmd.Data, &req); err != nil || req.UserID == uuid.Nil {
		s.emitError(cmd.ID, "BAD_COMMAND", "invalid block payload", false, "")
		return
	}
	identity := s.currentIdentity()
	if identity == nil {
		s.emitError(cmd.ID, "UNAUTHORIZED", "sign in first", false, "")
		return
	}

	if err := s.deps.Moderation.Block(ctx, identity.ID, req.UserID); err != nil {
		if errors.Is(err, services.ErrSelfModeration) || errors.Is(err, repositories.ErrInvalidReference) {
			s.emitError(cmd.ID, "VALIDATION_ERROR", err.Error(), false, "")
			return
		}
		s.log.Error("block failed", zap.Error(err))
		s.emitError(cmd.ID, "BLOCK_FAILED", "could not block this user", true, "")
		return
	}

	s.blocks.Add(req.UserID)
	s.pushFeed()
	s.loadBlockList(ctx, identity.ID)
	s.blocks.Add(req.UserID)
	if feed := s.currentFeed(); feed != nil {
		if err := feed.Refetch(ctx); err != nil {
			s.log.Debug("refetch after block failed", zap.Error(err))
		}
	}
	s.ack(cmd.ID, nil)
}

func (s *ClientSession) handleReport(ctx context.Context, cmd Command) {
	var req reportCommand
	if err := json.Unmarshal(cmd.Data, &req); err != nil || req.UserID == uuid.Nil {
		s.emitError(cmd.ID, "BAD_COMMAND", "invalid report payload", false, "")
		return
	}
	identity := s.currentIdentity()
	if identity == nil {
		s.emitError(cmd.ID, "UNAUTHORIZED", "sign in first", false, "")
		return
	}

	var tenantID *uuid.UUID
	if id, ok := s.tracker.CurrentID(); ok {
		tenantID = &id
	}
	report, err := s.deps.Moderation.Report(ctx, &services.ReportRequest{
		TenantID:   tenantID,
		ReporterID: identity.ID,
		ReportedID: req.UserID,
		MessageID:  req.MessageID,
		Reason:     req.Reason,
	})
	switch {
	case err == nil:
		s.ack(cmd.ID, report)
	case errors.Is(err, services.ErrSelfModeration), errors.Is(err, services.ErrReasonRequired),
		errors.Is(err, repositories.ErrInvalidReference):
		s.emitError(cmd.ID, "VALIDATION_ERROR", err.Error(), false, "")
	default:
		s.log.Error("report failed", zap.Error(err))
		s.emitError(cmd.ID, "REPORT_FAILED", "report could not be submitted, please retry", true, "")
	}
}

func (s *ClientSession) handleMarkRead(ctx context.Context, cmd Command) {
	var req markReadCommand
	if err := json.Unmarshal(cmd.Data, &req); err != nil || req.MessageID == uuid.Nil {
		s.emitError(cmd.ID, "BAD_COMMAND", "invalid mark_read payload", false, "")
		return
	}
	identity, tenantID, ok := s.chatScope(cmd.ID)
	if !ok {
		return
	}
	err := s.deps.Chat.MarkRead(ctx, identity, tenantID, req.MessageID)
	if errors.Is(err, repositories.ErrNotFound) {
		s.emitError(cmd.ID, "NOT_FOUND", "message not found", false, "")
		return
	}
	if err != nil {
		s.log.Error("mark read failed", zap.Error(err))
		s.emitError(cmd.ID, "MARK_READ_FAILED", "could not mark message as read", true, "")
		return
	}
	if feed := s.currentFeed(); feed != nil {
		_ = feed.Refetch(ctx)
	}
	s.ack(cmd.ID, nil)
}
