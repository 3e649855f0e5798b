package config

import (
	"fmt"
	"os"

	"github.com/ilyakaznacheev/cleanenv"
)

// EnvConfigPath переменная окружения с путем к YAML файлу
const EnvConfigPath = "TRIPSYNC_CONFIG"

// validator конфигурация с собственной проверкой
type validator interface {
	Validate() error
}

// LoadServer читает настройки сервера.
// Приоритет: ENV > YAML > значения по умолчанию (env-default).
func LoadServer(path string) (*Server, error) {
	var cfg Server
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadClient читает настройки клиента
func LoadClient(path string) (*Client, error) {
	var cfg Client
	if err := load(path, &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// load читает YAML файл, если он задан аргументом или TRIPSYNC_CONFIG.
// Без файла настройки берутся из окружения и значений по умолчанию.
func load[T validator](path string, cfg T) error {
	if path == "" {
		path = os.Getenv(EnvConfigPath)
	}

	if path != "" {
		if err := cleanenv.ReadConfig(path, cfg); err != nil {
			return fmt.Errorf("config: read %s: %w", path, err)
		}
	} else if err := cleanenv.ReadEnv(cfg); err != nil {
		return fmt.Errorf("config: read env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: validate: %w", err)
	}
	return nil
}
