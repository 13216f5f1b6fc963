package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"coachhub/internal/models"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// ChangeFeed delivers row-insert events for a table, filtered by the table's scope column:
// tenant for messages, blocker for blocks. There is no replay: events published while nobody is subscribed are lost.
type ChangeFeed interface {
	PublishInsert(ctx context.Context, event *models.InsertEvent) error
	Subscribe(ctx context.Context, table string, scopeID uuid.UUID) (Subscription, error)
}

// Subscription is owned by exactly one consumer and must be closed by it.
type Subscription interface {
	Events() <-chan *models.InsertEvent
	Close() error
}

type redisChangeFeed struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedisChangeFeed(client *redis.Client, log *zap.Logger) ChangeFeed {
	return &redisChangeFeed{client: client, log: log}
}

// ChannelName is the pub/sub channel for inserts on table whose scope column equals scopeID.
func ChannelName(table string, scopeID uuid.UUID) string {
	return fmt.Sprintf("coachhub:realtime:%s:%s=eq.%s", table, models.FilterColumn(table), scopeID)
}

func (f *redisChangeFeed) PublishInsert(ctx context.Context, event *models.InsertEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode insert event: %w", err)
	}
	return f.client.Publish(ctx, ChannelName(event.Table, event.ScopeID()), payload).Err()
}

func (f *redisChangeFeed) Subscribe(ctx context.Context, table string, scopeID uuid.UUID) (Subscription, error) {
	channel := ChannelName(table, scopeID)
	ps := f.client.Subscribe(ctx, channel)
	// Wait for the subscription to be confirmed so nothing published afterwards is missed.
	if _, err := ps.Receive(ctx); err != nil {
		_ = ps.Close()
		return nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	sub := &redisSubscription{
		ps:     ps,
		events: make(chan *models.InsertEvent, 64),
		done:   make(chan struct{}),
		log:    f.log.With(zap.String("channel", channel)),
	}
	sub.wg.Add(1)
	go sub.run()
	return sub, nil
}

type redisSubscription struct {
	ps     *redis.PubSub
	events chan *models.InsertEvent
	done   chan struct{}
	once   sync.Once
	wg     sync.WaitGroup
	log    *zap.Logger
}

func (s *redisSubscription) Events() <-chan *models.InsertEvent {
	return s.events
}

func (s *redisSubscription) run() {
	defer s.wg.Done()
	defer close(s.events)

	for msg := range s.ps.Channel() {
		var event models.InsertEvent
		if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
			s.log.Warn("dropping malformed change event", zap.Error(err))
			continue
		}
		select {
		case s.events <- &event:
		case <-s.done:
			return
		}
	}
}

func (s *redisSubscription) Close() error {
	var err error
	s.once.Do(func() {
		close(s.done)
		err = s.ps.Close()
		s.wg.Wait()
	})
	return err
}
