package auctionhouse

import (
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/me-zabiullakhan/smsports/auctionhouse/database"
)

func LoadConfig(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err = toml.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

type Config struct {
	Log     LogConfig         `toml:"log"`
	DB      database.DBConfig `toml:"db"`
	Server  ServerConfig      `toml:"server"`
	Auction AuctionConfig     `toml:"auction"`
}

type LogConfig struct {
	Level     slog.Level `toml:"level"`
	Format    string     `toml:"format"`
	AddSource bool       `toml:"add_source"`
}

type ServerConfig struct {
	Host           string        `toml:"host"`
	Port           int           `toml:"port"`
	ReadTimeout    time.Duration `toml:"read_timeout"`
	WriteTimeout   time.Duration `toml:"write_timeout"`
	AllowedOrigins string        `toml:"allowed_origins"`
}

func (c ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

type AuctionConfig struct {
	TimerSeconds   int           `toml:"timer_seconds"`
	SessionTTL     time.Duration `toml:"session_ttl"`
	MaxSessions    int           `toml:"max_sessions"`
	AdminToken     string        `toml:"admin_token"`
	ShutdownWindow time.Duration `toml:"shutdown_window"`
}
