// Package repository provides the initialization for repository implementations
package repository

import (
	"github.com/openconf/brooms/internal/config"
	"github.com/openconf/brooms/internal/repository/memory"
	"github.com/openconf/brooms/internal/repository/redis"
)

// Constructor hooks, registered by init so the interface package carries no
// hard dependency in its public surface.
var (
	newRedisRepository  func(cfg config.RedisConfig) (Repository, error)
	newMemoryRepository func() Repository
)

// init registers the actual repository implementations
func init() {
	// Register the Redis repository constructor
	newRedisRepository = func(cfg config.RedisConfig) (Repository, error) {
		return redis.NewRepository(cfg)
	}

	// Register the memory repository constructor
	newMemoryRepository = func() Repository {
		return memory.NewRepository()
	}
}

// NewRepository returns the Redis-backed repository when Redis is enabled in
// the configuration, falling back to the in-memory implementation otherwise.
func NewRepository(cfg config.RedisConfig) (Repository, error) {
	if cfg.Enabled {
		return newRedisRepository(cfg)
	}
	return newMemoryRepository(), nil
}
