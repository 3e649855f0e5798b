package storage

import "context"

// MetadataStorage служебные данные клиента
type MetadataStorage interface {
	// SaveDeviceID сохраняет идентификатор установки клиента
	SaveDeviceID(ctx context.Context, deviceID string) error

	// GetDeviceID возвращает идентификатор установки или пустую строку,
	// если он еще не создан
	GetDeviceID(ctx context.Context) (string, error)
}
