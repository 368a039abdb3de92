package boltdb

import (
	"context"
	"encoding/binary"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/storage"
)

// Enqueue добавляет элемент в хвост очереди владельца.
// Порядковый ключ берется из NextSequence bucket'а — это дает
// строгий FIFO per owner.
func (s *Storage) Enqueue(ctx context.Context, entry *models.QueueEntry) (*models.QueueEntry, error) {
	err := s.db.Update(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketQueue)
		if root == nil {
			return fmt.Errorf("queue bucket not found")
		}

		owner, err := root.CreateBucketIfNotExists([]byte(entry.OwnerID))
		if err != nil {
			return fmt.Errorf("failed to create owner bucket: %w", err)
		}

		seq, err := owner.NextSequence()
		if err != nil {
			return fmt.Errorf("failed to get next sequence: %w", err)
		}
		entry.Seq = seq

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal queue entry: %w", err)
		}

		if err := owner.Put(seqKey(seq), data); err != nil {
			return fmt.Errorf("failed to put queue entry: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entry, nil
}

// Pending возвращает элементы владельца в порядке постановки,
// исключая запаркованные (poison).
func (s *Storage) Pending(ctx context.Context, ownerID string) ([]*models.QueueEntry, error) {
	return s.entries(ownerID, false)
}

// Poisoned возвращает запаркованные элементы владельца.
func (s *Storage) Poisoned(ctx context.Context, ownerID string) ([]*models.QueueEntry, error) {
	return s.entries(ownerID, true)
}

// Delete удаляет успешно примененный элемент очереди.
func (s *Storage) Delete(ctx context.Context, ownerID string, seq uint64) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		owner := ownerBucket(tx, ownerID)
		if owner == nil {
			return storage.ErrQueueEntryNotFound
		}

		key := seqKey(seq)
		if owner.Get(key) == nil {
			return storage.ErrQueueEntryNotFound
		}

		if err := owner.Delete(key); err != nil {
			return fmt.Errorf("failed to delete queue entry: %w", err)
		}

		return nil
	})
}

// Update перезаписывает элемент на месте (retry_count, poison, last_error).
// Ключ Seq не меняется, позиция в очереди сохраняется.
func (s *Storage) Update(ctx context.Context, entry *models.QueueEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		owner := ownerBucket(tx, entry.OwnerID)
		if owner == nil {
			return storage.ErrQueueEntryNotFound
		}

		key := seqKey(entry.Seq)
		if owner.Get(key) == nil {
			return storage.ErrQueueEntryNotFound
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal queue entry: %w", err)
		}

		if err := owner.Put(key, data); err != nil {
			return fmt.Errorf("failed to update queue entry: %w", err)
		}

		return nil
	})
}

// Owners возвращает владельцев, у которых есть ожидающие элементы.
// Используется планировщиком периодической выгрузки очередей.
func (s *Storage) Owners(ctx context.Context) ([]string, error) {
	var owners []string

	err := s.db.View(func(tx *bbolt.Tx) error {
		root := tx.Bucket(bucketQueue)
		if root == nil {
			return fmt.Errorf("queue bucket not found")
		}

		return root.ForEachBucket(func(name []byte) error {
			owner := root.Bucket(name)

			hasPending := false
			err := owner.ForEach(func(_, data []byte) error {
				var entry models.QueueEntry
				if err := json.Unmarshal(data, &entry); err != nil {
					return fmt.Errorf("failed to unmarshal queue entry: %w", err)
				}
				if !entry.Poisoned {
					hasPending = true
				}
				return nil
			})
			if err != nil {
				return err
			}

			if hasPending {
				owners = append(owners, string(name))
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}

	return owners, nil
}

func (s *Storage) entries(ownerID string, poisoned bool) ([]*models.QueueEntry, error) {
	var entries []*models.QueueEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		owner := ownerBucket(tx, ownerID)
		if owner == nil {
			// Владелец еще ничего не ставил в очередь
			return nil
		}

		// Cursor обходит ключи в байтовом порядке; big-endian seq
		// ключи сохраняют порядок постановки
		c := owner.Cursor()
		for k, data := c.First(); k != nil; k, data = c.Next() {
			var entry models.QueueEntry
			if err := json.Unmarshal(data, &entry); err != nil {
				return fmt.Errorf("failed to unmarshal queue entry: %w", err)
			}

			if entry.Poisoned != poisoned {
				continue
			}

			entry.Seq = binary.BigEndian.Uint64(k)
			entries = append(entries, &entry)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return entries, nil
}

func ownerBucket(tx *bbolt.Tx, ownerID string) *bbolt.Bucket {
	root := tx.Bucket(bucketQueue)
	if root == nil {
		return nil
	}
	return root.Bucket([]byte(ownerID))
}

func seqKey(seq uint64) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, seq)
	return key
}
