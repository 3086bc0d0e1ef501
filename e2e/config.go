package e2e

import (
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// SERVER_ADDR points at a running instance, e.g. http://localhost:8080.
	// Leaving it empty skips the whole suite.
	ServerAddr string `envconfig:"SERVER_ADDR"`
	// E2E_ROOM_ID names a room the seeded account is a member of
	// (room 1 when the instance runs with SEED_DEMO=true); 0 skips the
	// realtime delivery step.
	SeededRoomID int `envconfig:"E2E_ROOM_ID" default:"0"`
	// Credentials of the seeded account used for the realtime step.
	SeededUsername string `envconfig:"E2E_USERNAME" default:"demo"`
	SeededPassword string `envconfig:"E2E_PASSWORD" default:"Demo&Secret!pw1"`
	// E2E_DEBUG_JSON allows dumping full HTTP request/response bodies as JSON
	DebugJSON bool `envconfig:"E2E_DEBUG_JSON" default:"false"`
	// E2E_COLOURS enables colorized output for better log readability
	Colours bool `envconfig:"E2E_COLOURS" default:"true"`
}

func LoadConfig() (Config, error) {
	var cfg Config
	err := envconfig.Process("", &cfg)
	return cfg, err
}
