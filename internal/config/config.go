package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/gravitas-games/hexglobe/pkg/hexcore/grid"
)

// ErrInvalidSetting is returned for settings outside their usable range
var ErrInvalidSetting = errors.New("invalid setting")

// Config holds all server configuration
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	JWT     JWTConfig     `yaml:"jwt"`
	Redis   RedisConfig   `yaml:"redis"`
	Session SessionConfig `yaml:"session"`
	Chat    ChatConfig    `yaml:"chat"`
	Globe   GlobeConfig   `yaml:"globe"`
}

// ServerConfig holds server-specific settings
type ServerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TickRate int    `yaml:"tick_rate"` // Hz
}

// JWTConfig holds JWT authentication settings
type JWTConfig struct {
	Issuer              string `yaml:"issuer"`
	PublicKeyURL        string `yaml:"public_key_url"`
	PublicKeyRefreshHrs int    `yaml:"public_key_refresh_hours"`
}

// RedisConfig holds Redis connection settings
type RedisConfig struct {
	Address         string `yaml:"address"`
	Password        string `yaml:"password"`
	DB              int    `yaml:"db"`
	BlacklistPrefix string `yaml:"blacklist_prefix"`
}

// SessionConfig holds game session settings
type SessionConfig struct {
	MaxPlayers       int `yaml:"max_players"`
	CommandQueueSize int `yaml:"command_queue_size"` // pending movement commands per player
	StatusEveryTicks int `yaml:"status_every_ticks"`
}

// ChatConfig holds chat system settings
type ChatConfig struct {
	MaxMessageLength int `yaml:"max_message_length"`
	RateLimit        int `yaml:"rate_limit"` // messages per minute
}

// GlobeConfig describes the world every cell dweller walks on
type GlobeConfig struct {
	// Cells along one side of each of the ten rhombi making up the globe
	ResolutionX int `yaml:"resolution_x"`
	// Radius used when reporting world-space positions to clients
	Radius float64 `yaml:"radius"`
	// How far around a random seed cell to look for a free spawn cell
	SpawnSearchRadius int   `yaml:"spawn_search_radius"`
	Seed              int64 `yaml:"seed"`
}

// Resolution returns the validated grid resolution for the globe.
func (g GlobeConfig) Resolution() (grid.Resolution, error) {
	res := grid.NewResolution(g.ResolutionX)
	if err := res.Validate(); err != nil {
		return res, fmt.Errorf("globe config: %w", err)
	}
	return res, nil
}

// Load reads configuration from a YAML file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and fills in defaults
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if _, err := cfg.Globe.Resolution(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// validate runs after applyDefaults, so zero values are already replaced
func (cfg *Config) validate() error {
	switch {
	case cfg.Server.TickRate <= 0:
		return fmt.Errorf("server.tick_rate %d: %w", cfg.Server.TickRate, ErrInvalidSetting)
	case cfg.JWT.PublicKeyRefreshHrs <= 0:
		return fmt.Errorf("jwt.public_key_refresh_hours %d: %w", cfg.JWT.PublicKeyRefreshHrs, ErrInvalidSetting)
	case cfg.Session.MaxPlayers <= 0:
		return fmt.Errorf("session.max_players %d: %w", cfg.Session.MaxPlayers, ErrInvalidSetting)
	case cfg.Session.CommandQueueSize <= 0:
		return fmt.Errorf("session.command_queue_size %d: %w", cfg.Session.CommandQueueSize, ErrInvalidSetting)
	case cfg.Globe.Radius <= 0:
		return fmt.Errorf("globe.radius %v: %w", cfg.Globe.Radius, ErrInvalidSetting)
	case cfg.Globe.SpawnSearchRadius < 0:
		return fmt.Errorf("globe.spawn_search_radius %d: %w", cfg.Globe.SpawnSearchRadius, ErrInvalidSetting)
	}
	return nil
}

func (cfg *Config) applyDefaults() {
	if cfg.Server.TickRate == 0 {
		cfg.Server.TickRate = 20
	}
	if cfg.JWT.PublicKeyRefreshHrs == 0 {
		cfg.JWT.PublicKeyRefreshHrs = 24
	}
	if cfg.Chat.MaxMessageLength == 0 {
		cfg.Chat.MaxMessageLength = 500
	}
	if cfg.Chat.RateLimit == 0 {
		cfg.Chat.RateLimit = 10
	}
	if cfg.Session.MaxPlayers == 0 {
		cfg.Session.MaxPlayers = 100
	}
	if cfg.Session.CommandQueueSize == 0 {
		cfg.Session.CommandQueueSize = 8
	}
	if cfg.Session.StatusEveryTicks == 0 {
		cfg.Session.StatusEveryTicks = 20 * 60
	}
	if cfg.Globe.ResolutionX == 0 {
		cfg.Globe.ResolutionX = 32
	}
	if cfg.Globe.Radius == 0 {
		cfg.Globe.Radius = 1000
	}
	if cfg.Globe.SpawnSearchRadius == 0 {
		cfg.Globe.SpawnSearchRadius = 4
	}
}
