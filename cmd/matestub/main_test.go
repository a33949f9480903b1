package main

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/hammamikhairi/armate/internal/config"
	"github.com/hammamikhairi/armate/internal/logger"
)

func TestRunReturnsRedisError(t *testing.T) {
	cfg := &config.Config{Redis: config.RedisConfig{Addr: "127.0.0.1:1"}}
	assert.Error(t, run(cfg, "127.0.0.1:0", logger.New(logger.LevelOff, nil)))
}

func TestRunReturnsListenError(t *testing.T) {
	assert.Error(t, run(&config.Config{}, "127.0.0.1:99999", logger.New(logger.LevelOff, nil)))
}
