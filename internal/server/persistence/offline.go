package persistence

import (
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"trust-platform/backend/internal/models"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Offline operation kinds.
const (
	OpGameHistory = "game_history"
	OpStatsDelta  = "stats_delta"
	OpTournament  = "tournament"
	OpChatMessage = "chat_message"
)

// replayInterval is how often the queue attempts to drain.
const replayInterval = time.Minute

// OfflineQueue is a durable fallback for writes that exhausted their
// retries. It lives in a local SQLite file so queued operations survive a
// process restart, and replays them once the primary database is reachable
// again.
type OfflineQueue struct {
	db     *gorm.DB
	replay func(kind string, payload []byte) error

	mu      sync.Mutex
	stop    chan struct{}
	stopped bool
}

// OpenOfflineQueue opens (or creates) the local queue file.
func OpenOfflineQueue(path string) (*OfflineQueue, error) {
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open offline queue: %w", err)
	}
	if err := db.AutoMigrate(&models.OfflineOperation{}); err != nil {
		return nil, fmt.Errorf("failed to migrate offline queue: %w", err)
	}
	return &OfflineQueue{db: db, stop: make(chan struct{})}, nil
}

// SetReplayHandler registers the function that re-applies a queued
// operation against the primary store.
func (q *OfflineQueue) SetReplayHandler(fn func(kind string, payload []byte) error) {
	q.replay = fn
}

// Enqueue durably records a failed operation for later replay.
func (q *OfflineQueue) Enqueue(kind string, payload interface{}) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode offline operation: %w", err)
	}
	op := models.OfflineOperation{Kind: kind, Payload: string(data)}
	if err := q.db.Create(&op).Error; err != nil {
		return fmt.Errorf("failed to enqueue offline operation: %w", err)
	}
	log.Printf("[PERSIST] Queued offline %s operation #%d", kind, op.ID)
	return nil
}

// Start launches the periodic replay loop.
func (q *OfflineQueue) Start() {
	go func() {
		ticker := time.NewTicker(replayInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				q.Drain()
			case <-q.stop:
				return
			}
		}
	}()
}

// Stop terminates the replay loop.
func (q *OfflineQueue) Stop() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if !q.stopped {
		q.stopped = true
		close(q.stop)
	}
}

// Drain replays queued operations in insertion order, stopping at the first
// failure so ordering is preserved. Returns the number replayed.
func (q *OfflineQueue) Drain() int {
	if q.replay == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()

	var ops []models.OfflineOperation
	if err := q.db.Order("id ASC").Find(&ops).Error; err != nil {
		log.Printf("[PERSIST] Failed to read offline queue: %v", err)
		return 0
	}

	drained := 0
	for _, op := range ops {
		if err := q.replay(op.Kind, []byte(op.Payload)); err != nil {
			q.db.Model(&models.OfflineOperation{}).
				Where("id = ?", op.ID).
				Update("attempts", op.Attempts+1)
			log.Printf("[PERSIST] Replay of %s #%d failed (attempt %d): %v", op.Kind, op.ID, op.Attempts+1, err)
			break
		}
		q.db.Delete(&models.OfflineOperation{}, op.ID)
		drained++
	}
	if drained > 0 {
		log.Printf("[PERSIST] Replayed %d offline operations", drained)
	}
	return drained
}

// Pending returns the queue depth.
func (q *OfflineQueue) Pending() int64 {
	var n int64
	q.db.Model(&models.OfflineOperation{}).Count(&n)
	return n
}
