package chat

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"

	"coachhub/internal/metrics"
	"coachhub/internal/models"
	"coachhub/internal/realtime"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

type State string

const (
	StateIdle       State = "idle"
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateRefreshing State = "refreshing"
	StateClosed     State = "closed"
)

var ErrFeedClosed = errors.New("chat feed closed")

// HistoryLoader loads a viewer's full conversation history, oldest first.
type HistoryLoader interface {
	ListConversation(ctx context.Context, tenantID, userID uuid.UUID) ([]*models.Message, error)
}

type FeedConfig struct {
	Loader  HistoryLoader
	Changes realtime.ChangeFeed
	Blocks  *BlockSet
	// OnChange is called, without any feed lock held, after every state or content change.
	OnChange func()
	Metrics  *metrics.Metrics
	Log      *zap.Logger
}

// Feed is the live view of one identity's conversation within one tenant.
// A Feed is opened once; a different identity or tenant needs a new Feed.
type Feed struct {
	loader   HistoryLoader
	changes  realtime.ChangeFeed
	blocks   *BlockSet
	onChange func()
	metrics  *metrics.Metrics
	log      *zap.Logger

	mu       sync.Mutex
	state    State
	me       uuid.UUID
	tenantID uuid.UUID
	messages []*models.Message
	index    map[uuid.UUID]int
	sub      realtime.Subscription

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewFeed(cfg FeedConfig) *Feed {
	if cfg.Blocks == nil {
		cfg.Blocks = NewBlockSet()
	}
	if cfg.OnChange == nil {
		cfg.OnChange = func() {}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.NewNop()
	}
	if cfg.Log == nil {
		cfg.Log = zap.NewNop()
	}
	return &Feed{
		loader:   cfg.Loader,
		changes:  cfg.Changes,
		blocks:   cfg.Blocks,
		onChange: cfg.OnChange,
		metrics:  cfg.Metrics,
		log:      cfg.Log,
		state:    StateIdle,
		index:    make(map[uuid.UUID]int),
	}
}

// Open subscribes to new messages of tenantID and loads me's history. The subscription is
// established first so nothing inserted during the initial load is missed.
func (f *Feed) Open(ctx context.Context, me, tenantID uuid.UUID) error {
	f.mu.Lock()
	if f.state != StateIdle {
		f.mu.Unlock()
		return fmt.Errorf("open feed in state %s", f.state)
	}
	f.state = StateLoading
	f.me = me
	f.tenantID = tenantID
	f.ctx, f.cancel = context.WithCancel(context.Background())
	f.log = f.log.With(zap.String("user_id", me.String()), zap.String("tenant_id", tenantID.String()))
	f.mu.Unlock()
	f.onChange()

	sub, err := f.changes.Subscribe(ctx, models.TableMessages, tenantID)
	if err != nil {
		f.Close()
		return fmt.Errorf("subscribe to messages: %w", err)
	}

	f.mu.Lock()
	if f.state == StateClosed {
		f.mu.Unlock()
		_ = sub.Close()
		return ErrFeedClosed
	}
	f.sub = sub
	f.wg.Add(1)
	f.mu.Unlock()

	go f.consume(sub)

	history, err := f.loader.ListConversation(ctx, tenantID, me)
	if err != nil {
		f.metrics.FeedRefetchFailures.Inc()
		f.log.Warn("initial chat history load failed", zap.Error(err))
		f.setState(StateReady)
		return nil
	}
	f.merge(history, StateReady)
	return nil
}

func (f *Feed) consume(sub realtime.Subscription) {
	defer f.wg.Done()
	for event := range sub.Events() {
		f.HandleInsert(event)
	}
}

// HandleInsert applies a live insert event: events not involving me are ignored, known ids
// are dropped, anything else is appended and followed by a reconciling background refetch.
func (f *Feed) HandleInsert(event *models.InsertEvent) {
	if event == nil || event.Message == nil || event.Table != models.TableMessages {
		return
	}
	msg := event.Message

	f.mu.Lock()
	if f.state == StateClosed || f.state == StateIdle {
		f.mu.Unlock()
		return
	}
	if msg.TenantID != f.tenantID || !msg.Involves(f.me) {
		f.mu.Unlock()
		f.metrics.FeedLiveEvents.WithLabelValues("ignored").Inc()
		return
	}
	if _, seen := f.index[msg.ID]; seen {
		f.mu.Unlock()
		f.metrics.FeedLiveEvents.WithLabelValues("duplicate").Inc()
		return
	}
	copied := *msg
	f.messages = append(f.messages, &copied)
	f.reindexLocked()
	f.mu.Unlock()

	f.metrics.FeedLiveEvents.WithLabelValues("applied").Inc()
	f.onChange()
	f.refetchAsync()
}

// Resume reconciles after the app returns to the foreground. Events missed while suspended
// are only recovered here.
func (f *Feed) Resume(ctx context.Context) error {
	return f.Refetch(ctx)
}

// Refetch reloads the whole history. On failure the previous messages are kept.
func (f *Feed) Refetch(ctx context.Context) error {
	f.mu.Lock()
	if f.state == StateClosed || f.state == StateIdle {
		f.mu.Unlock()
		return ErrFeedClosed
	}
	f.state = StateRefreshing
	me, tenantID := f.me, f.tenantID
	f.mu.Unlock()
	f.onChange()

	history, err := f.loader.ListConversation(ctx, tenantID, me)
	if err != nil {
		f.metrics.FeedRefetchFailures.Inc()
		f.log.Warn("chat refetch failed, keeping previous messages", zap.Error(err))
		f.setState(StateReady)
		return err
	}
	f.merge(history, StateReady)
	return nil
}

func (f *Feed) refetchAsync() {
	f.mu.Lock()
	if f.state == StateClosed {
		f.mu.Unlock()
		return
	}
	ctx := f.ctx
	f.wg.Add(1)
	f.mu.Unlock()

	go func() {
		defer f.wg.Done()
		_ = f.Refetch(ctx)
	}()
}

// merge folds fetched rows into the local state. Fetched rows replace local copies with the same id;
// local rows missing from the fetch are kept, since messages are never deleted.
func (f *Feed) merge(fetched []*models.Message, next State) {
	f.mu.Lock()
	if f.state == StateClosed {
		f.mu.Unlock()
		return
	}
	byID := make(map[uuid.UUID]*models.Message, len(fetched)+len(f.messages))
	merged := make([]*models.Message, 0, len(fetched)+len(f.messages))
	for _, m := range fetched {
		if _, dup := byID[m.ID]; dup {
			continue
		}
		copied := *m
		byID[m.ID] = &copied
		merged = append(merged, &copied)
	}
	for _, m := range f.messages {
		if _, ok := byID[m.ID]; !ok {
			merged = append(merged, m)
		}
	}
	f.messages = merged
	f.reindexLocked()
	f.state = next
	f.mu.Unlock()
	f.onChange()
}

// reindexLocked keeps messages ordered by (created_at, id) and rebuilds the id index.
func (f *Feed) reindexLocked() {
	sort.SliceStable(f.messages, func(i, j int) bool {
		a, b := f.messages[i], f.messages[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.Before(b.CreatedAt)
		}
		return a.ID.String() < b.ID.String()
	})
	f.index = make(map[uuid.UUID]int, len(f.messages))
	for i, m := range f.messages {
		f.index[m.ID] = i
	}
}

func (f *Feed) setState(s State) {
	f.mu.Lock()
	if f.state == StateClosed {
		f.mu.Unlock()
		return
	}
	f.state = s
	f.mu.Unlock()
	f.onChange()
}

// Visible is every loaded message minus those from currently blocked senders.
// The block list is read on each call, so a new block hides history without a refetch.
func (f *Feed) Visible() []*models.Message {
	f.mu.Lock()
	snapshot := make([]*models.Message, len(f.messages))
	copy(snapshot, f.messages)
	me := f.me
	f.mu.Unlock()
	return FilterVisible(snapshot, me, f.blocks.Contains)
}

func (f *Feed) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// Scope returns the identity and tenant the feed was opened for.
func (f *Feed) Scope() (me, tenantID uuid.UUID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.me, f.tenantID
}

// Close unsubscribes and waits for background work to stop. Safe to call more than once.
func (f *Feed) Close() {
	f.mu.Lock()
	if f.state == StateClosed {
		f.mu.Unlock()
		return
	}
	f.state = StateClosed
	sub := f.sub
	f.sub = nil
	cancel := f.cancel
	f.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if sub != nil {
		if err := sub.Close(); err != nil {
			f.log.Warn("closing message subscription failed", zap.Error(err))
		}
	}
	f.wg.Wait()
}
