package boltdb

import (
	"context"
	"errors"
	"fmt"
)

var deviceIDKey = []byte("device_id")

// SaveDeviceID сохраняет идентификатор установки клиента
func (s *Storage) SaveDeviceID(_ context.Context, deviceID string) error {
	if deviceID == "" {
		return errors.New("device id is empty")
	}
	return s.putRecord(bucketMetadata, deviceIDKey, deviceID)
}

// GetDeviceID возвращает идентификатор установки или "", если его еще нет
func (s *Storage) GetDeviceID(_ context.Context) (string, error) {
	id, err := getRecord[string](s, bucketMetadata, deviceIDKey, errNoRecord)
	if errors.Is(err, errNoRecord) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get device id: %w", err)
	}
	return *id, nil
}
