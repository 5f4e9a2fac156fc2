package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	taskKeyPrefix = "task:"
	taskIDCounter = "task:next_id"
)

// Store はタスク行を Redis に保存します。
// IDはカウンターで採番される単調増加の整数です。行に有効期限は設けません
// （保持期間の管理は外部の関心事です）。
type Store struct {
	rdb *redis.Client
}

// NewStore は Store を作成します。
func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Create は pending 状態の新しいタスク行を作成し、採番されたIDを返します。
func (s *Store) Create(ctx context.Context) (int64, error) {
	id, err := s.rdb.Incr(ctx, taskIDCounter).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to allocate task id: %w", err)
	}

	record := &Record{
		ID:        id,
		Timestamp: time.Now().UTC(),
		State:     StatePending,
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return 0, err
	}
	if err := s.rdb.Set(ctx, taskKey(id), payload, 0).Err(); err != nil {
		return 0, fmt.Errorf("failed to persist task %d: %w", id, err)
	}
	return id, nil
}

// Get はタスク行を取得します。存在しない場合は (nil, nil) を返します。
func (s *Store) Get(ctx context.Context, id int64) (*Record, error) {
	data, err := s.rdb.Get(ctx, taskKey(id)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, nil
		}
		return nil, err
	}
	var record Record
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, err
	}
	return &record, nil
}

// MarkFinished はタスクを finished にし、コンテンツストアのキーと推奨ファイル名を記録します。
func (s *Store) MarkFinished(ctx context.Context, id int64, contentKey, disposition string) error {
	return s.updatePartial(ctx, id, func(record *Record) {
		record.State = StateFinished
		record.ContentKey = contentKey
		record.Disposition = disposition
	})
}

// MarkFailed はタスクを failed にします。キーとファイル名はクリアされます。
func (s *Store) MarkFailed(ctx context.Context, id int64) error {
	return s.updatePartial(ctx, id, func(record *Record) {
		record.State = StateFailed
		record.ContentKey = ""
		record.Disposition = ""
	})
}

func (s *Store) updatePartial(ctx context.Context, id int64, mutate func(*Record)) error {
	key := taskKey(id)
	for {
		tx := s.rdb.TxPipeline()
		data, err := s.rdb.Get(ctx, key).Bytes()
		if err != nil {
			if err == redis.Nil {
				return fmt.Errorf("task not found: %d", id)
			}
			return err
		}
		var record Record
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		mutate(&record)
		payload, err := json.Marshal(&record)
		if err != nil {
			return err
		}
		tx.Set(ctx, key, payload, 0)
		_, err = tx.Exec(ctx)
		if err == redis.TxFailedErr {
			continue
		}
		return err
	}
}

func taskKey(id int64) string {
	return fmt.Sprintf("%s%d", taskKeyPrefix, id)
}
