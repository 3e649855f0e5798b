package boltdb

import (
	"encoding/json"
	"errors"
	"fmt"

	"go.etcd.io/bbolt"
)

// errNoRecord ключ отсутствует, для записей без своей sentinel ошибки
var errNoRecord = errors.New("record not found")

// bucket возвращает bucket или ошибку, если база создана не через New
func bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("%s bucket not found", name)
	}
	return b, nil
}

// putRecord сохраняет значение как JSON под ключом key
func (s *Storage) putRecord(name, key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to marshal %s record: %w", name, err)
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		if err := b.Put(key, data); err != nil {
			return fmt.Errorf("failed to save %s record: %w", name, err)
		}
		return nil
	})
}

// getRecord читает JSON запись. Если ключа нет, возвращает notFound.
func getRecord[T any](s *Storage, name, key []byte, notFound error) (*T, error) {
	var out T
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		// срез валиден только внутри транзакции, Unmarshal копирует данные
		data := b.Get(key)
		if data == nil {
			return notFound
		}
		if err := json.Unmarshal(data, &out); err != nil {
			return fmt.Errorf("failed to unmarshal %s record: %w", name, err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// deleteRecord удаляет запись. Если ключа нет, возвращает notFound.
func (s *Storage) deleteRecord(name, key []byte, notFound error) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := bucket(tx, name)
		if err != nil {
			return err
		}
		if b.Get(key) == nil {
			return notFound
		}
		if err := b.Delete(key); err != nil {
			return fmt.Errorf("failed to delete %s record: %w", name, err)
		}
		return nil
	})
}
