package chat

import (
	"sync"

	"coachhub/internal/models"

	"github.com/google/uuid"
)

// BlockSet is a viewer's current block list. The moderation path is its only writer.
type BlockSet struct {
	mu  sync.RWMutex
	ids map[uuid.UUID]struct{}
}

func NewBlockSet() *BlockSet {
	return &BlockSet{ids: make(map[uuid.UUID]struct{})}
}

func (b *BlockSet) Replace(ids []uuid.UUID) {
	next := make(map[uuid.UUID]struct{}, len(ids))
	for _, id := range ids {
		next[id] = struct{}{}
	}
	b.mu.Lock()
	b.ids = next
	b.mu.Unlock()
}

func (b *BlockSet) Add(id uuid.UUID) {
	b.mu.Lock()
	b.ids[id] = struct{}{}
	b.mu.Unlock()
}

func (b *BlockSet) Contains(id uuid.UUID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.ids[id]
	return ok
}

func (b *BlockSet) Clear() {
	b.Replace(nil)
}

func (b *BlockSet) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.ids)
}

// FilterVisible returns the messages viewer may see: those it sent or received whose
// sender is not blocked. The input slice is not modified.
func FilterVisible(messages []*models.Message, viewer uuid.UUID, blocked func(uuid.UUID) bool) []*models.Message {
	visible := make([]*models.Message, 0, len(messages))
	for _, m := range messages {
		if !m.Involves(viewer) {
			continue
		}
		if blocked != nil && blocked(m.SenderID) {
			continue
		}
		visible = append(visible, m)
	}
	return visible
}
