package main

import "time"

type Config struct {
	Host                 string        `env:"HOST,default=localhost"`
	Port                 int           `env:"PORT,default=8080"`
	LogLevel             string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath       string        `env:"BADGER_FILEPATH,required=true"`
	LimitMessages        *int          `env:"LIMIT_MESSAGES"`
	ConnectionBufferSize int           `env:"CONNECTION_BUFFER_SIZE,default=256"`
	AuthTokenDuration    time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`
	HandshakeTokenTTL    time.Duration `env:"HANDSHAKE_TOKEN_TTL,default=60s"`
	TokenSweepInterval   time.Duration `env:"TOKEN_SWEEP_INTERVAL,default=60s"`
	FlushDelay           time.Duration `env:"FLUSH_DELAY,default=50ms"`
	DedupWindowSize      int           `env:"DEDUP_WINDOW_SIZE,default=500"`
	HeartbeatInterval    time.Duration `env:"HEARTBEAT_INTERVAL,default=5s"`
	SeedDemo             bool          `env:"SEED_DEMO,default=false"`
}
