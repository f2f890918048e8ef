package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/puzzle/codec"
	"github.com/mitchelldurbincs/VisualPuzzlesRL/internal/render"
)

// Config holds all configuration for the application
type Config struct {
	Puzzles     PuzzlesConfig     `mapstructure:"puzzles"`
	Server      ServerConfig      `mapstructure:"server"`
	UI          UIConfig          `mapstructure:"ui"`
	Experience  ExperienceConfig  `mapstructure:"experience"`
	Development DevelopmentConfig `mapstructure:"development"`
}

// PuzzlesConfig holds per-puzzle defaults
type PuzzlesConfig struct {
	Sliding  SlidingConfig  `mapstructure:"sliding"`
	RushHour RushHourConfig `mapstructure:"rush_hour"`
}

// SlidingConfig holds sliding tile puzzle settings
type SlidingConfig struct {
	NPuzzle      int    `mapstructure:"n_puzzle"`
	StepLimit    int    `mapstructure:"step_limit"`
	SolvableOnly bool   `mapstructure:"solvable_only"`
	ImageSize    int    `mapstructure:"image_size"`
	ImagePath    string `mapstructure:"image_path"`
	FilterEffect string `mapstructure:"filter_effect"`
}

// RushHourConfig holds vehicle puzzle settings
type RushHourConfig struct {
	BoardDescription string `mapstructure:"board_description"`
	CatalogPath      string `mapstructure:"catalog_path"`
	CellSize         int    `mapstructure:"cell_size"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	GRPCServer GRPCServerConfig `mapstructure:"grpc_server"`
	WebSocket  WebSocketConfig  `mapstructure:"websocket"`
}

// GRPCServerConfig holds gRPC server configuration
type GRPCServerConfig struct {
	Host                  string `mapstructure:"host"`
	Port                  int    `mapstructure:"port"`
	LogLevel              string `mapstructure:"log_level"`
	MaxEnvs               int    `mapstructure:"max_envs"`
	EnableReflection      bool   `mapstructure:"enable_reflection"`
	GracefulShutdownDelay int    `mapstructure:"graceful_shutdown_delay"`
	IdleTimeout           int    `mapstructure:"idle_timeout"`
}

// WebSocketConfig holds the episode event stream endpoint settings
type WebSocketConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

// UIConfig holds UI/client configuration
type UIConfig struct {
	Window   WindowConfig `mapstructure:"window"`
	TileSize int          `mapstructure:"tile_size"`
	Puzzle   string       `mapstructure:"puzzle"`
}

// WindowConfig holds window settings
type WindowConfig struct {
	Width  int    `mapstructure:"width"`
	Height int    `mapstructure:"height"`
	Title  string `mapstructure:"title"`
}

// ExperienceConfig holds transition recording settings
type ExperienceConfig struct {
	BufferCapacity int               `mapstructure:"buffer_capacity"`
	Persistence    PersistenceConfig `mapstructure:"persistence"`
}

// PersistenceConfig holds experience persistence settings
type PersistenceConfig struct {
	Type        string `mapstructure:"type"`
	BaseDir     string `mapstructure:"base_dir"`
	BatchSize   int    `mapstructure:"batch_size"`
	MaxFileSize int64  `mapstructure:"max_file_size"`
}

// DevelopmentConfig holds development/debug settings
type DevelopmentConfig struct {
	VerboseLogging    bool `mapstructure:"verbose_logging"`
	MonitorGoroutines bool `mapstructure:"monitor_goroutines"`
}

var (
	// Global config instance
	cfg *Config
	v   *viper.Viper
)

func setViperDefaults(v *viper.Viper) {
	v.SetDefault("puzzles.sliding.n_puzzle", 15)
	v.SetDefault("puzzles.sliding.step_limit", 0)
	v.SetDefault("puzzles.sliding.solvable_only", false)
	v.SetDefault("puzzles.sliding.image_size", 0)
	v.SetDefault("puzzles.sliding.image_path", "")
	v.SetDefault("puzzles.sliding.filter_effect", "")

	v.SetDefault("puzzles.rush_hour.board_description", "")
	v.SetDefault("puzzles.rush_hour.catalog_path", "data/rush.txt")
	v.SetDefault("puzzles.rush_hour.cell_size", 50)

	v.SetDefault("server.grpc_server.host", "0.0.0.0")
	v.SetDefault("server.grpc_server.port", 50051)
	v.SetDefault("server.grpc_server.log_level", "info")
	v.SetDefault("server.grpc_server.max_envs", 100)
	v.SetDefault("server.grpc_server.enable_reflection", true)
	v.SetDefault("server.grpc_server.graceful_shutdown_delay", 5)
	v.SetDefault("server.grpc_server.idle_timeout", 1800)

	v.SetDefault("server.websocket.enabled", false)
	v.SetDefault("server.websocket.host", "0.0.0.0")
	v.SetDefault("server.websocket.port", 8080)

	v.SetDefault("ui.window.width", 400)
	v.SetDefault("ui.window.height", 440)
	v.SetDefault("ui.window.title", "Visual Puzzles")
	v.SetDefault("ui.tile_size", 100)
	v.SetDefault("ui.puzzle", "n_Puzzle-v0")

	v.SetDefault("experience.buffer_capacity", 10000)
	v.SetDefault("experience.persistence.type", "none")
	v.SetDefault("experience.persistence.base_dir", "experiences")
	v.SetDefault("experience.persistence.batch_size", 1000)
	v.SetDefault("experience.persistence.max_file_size", 100*1024*1024)

	v.SetDefault("development.verbose_logging", false)
	v.SetDefault("development.monitor_goroutines", false)
}

// Init loads defaults, the optional config file and VPZ_ environment
// variables, then validates the result.
func Init(configPath string) error {
	v = viper.New()
	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
		v.AddConfigPath("/etc/visual-puzzles")
	}

	v.SetEnvPrefix("VPZ")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		// an explicit path that does not exist falls back to defaults
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok && configPath == "" {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg = &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to decode config into struct: %w", err)
	}

	if err := Validate(cfg); err != nil {
		return fmt.Errorf("config validation failed: %w", err)
	}
	return nil
}

// Get returns the global config instance, initialising defaults on first use
func Get() *Config {
	if cfg == nil {
		if err := Init(""); err != nil {
			panic("failed to initialize config with defaults: " + err.Error())
		}
	}
	return cfg
}

// GetViper returns the viper instance for advanced usage
func GetViper() *viper.Viper {
	if v == nil {
		panic("config not initialized - call Init() first")
	}
	return v
}

// LoadEnvironmentConfig merges config.<env>.yaml from the directory of the
// loaded config file, or the working directory. A missing overlay is not
// an error.
func LoadEnvironmentConfig(env string) error {
	if env == "" {
		return nil
	}

	dir := "."
	if used := v.ConfigFileUsed(); used != "" {
		dir = filepath.Dir(used)
	}
	envFile := filepath.Join(dir, fmt.Sprintf("config.%s.yaml", env))
	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	v.SetConfigFile(envFile)
	if err := v.MergeInConfig(); err != nil {
		return fmt.Errorf("error merging environment config %s: %w", envFile, err)
	}

	if err := v.Unmarshal(cfg); err != nil {
		return fmt.Errorf("unable to decode merged config into struct: %w", err)
	}
	return Validate(cfg)
}

// Set allows runtime config updates
func Set(key string, value interface{}) {
	v.Set(key, value)
	_ = v.Unmarshal(cfg)
}

// GetString gets a string value from config
func GetString(key string) string {
	return v.GetString(key)
}

// GetInt gets an int value from config
func GetInt(key string) int {
	return v.GetInt(key)
}

// GetBool gets a bool value from config
func GetBool(key string) bool {
	return v.GetBool(key)
}

// ConfigFilePath returns the path of the loaded config file
func ConfigFilePath() string {
	return v.ConfigFileUsed()
}

// WatchConfig enables hot-reloading of the config file. Reloads that fail
// validation are ignored.
func WatchConfig(onChange func()) {
	v.OnConfigChange(func(e fsnotify.Event) {
		next := &Config{}
		if err := v.Unmarshal(next); err != nil || Validate(next) != nil {
			return
		}
		*cfg = *next
		if onChange != nil {
			onChange()
		}
	})
	v.WatchConfig()
}

// Validate validates the configuration values
func Validate(c *Config) error {
	s := c.Puzzles.Sliding
	side, ok := codec.GridSide(s.NPuzzle + 1)
	if !ok {
		return fmt.Errorf("puzzles.sliding.n_puzzle must be one less than a perfect square of at least 4, got %d", s.NPuzzle)
	}
	if s.StepLimit < 0 {
		return fmt.Errorf("puzzles.sliding.step_limit must be non-negative")
	}
	if s.ImageSize < 0 {
		return fmt.Errorf("puzzles.sliding.image_size must be non-negative")
	}
	if s.ImageSize > 0 && s.ImageSize%side != 0 {
		return fmt.Errorf("puzzles.sliding.image_size %d must be divisible by the grid side %d", s.ImageSize, side)
	}
	if _, err := render.ParseFilter(s.FilterEffect); err != nil {
		return fmt.Errorf("puzzles.sliding.filter_effect: %w", err)
	}

	r := c.Puzzles.RushHour
	if r.BoardDescription != "" {
		if _, err := codec.DecodeVehicleBoard(r.BoardDescription); err != nil {
			return fmt.Errorf("puzzles.rush_hour.board_description: %w", err)
		}
	}
	if r.CellSize <= 0 {
		return fmt.Errorf("puzzles.rush_hour.cell_size must be positive")
	}

	g := c.Server.GRPCServer
	if g.Port <= 0 || g.Port > 65535 {
		return fmt.Errorf("server.grpc_server.port must be between 1 and 65535")
	}
	if g.MaxEnvs <= 0 {
		return fmt.Errorf("server.grpc_server.max_envs must be positive")
	}
	if g.GracefulShutdownDelay < 0 {
		return fmt.Errorf("server.grpc_server.graceful_shutdown_delay must be non-negative")
	}
	if g.IdleTimeout < 0 {
		return fmt.Errorf("server.grpc_server.idle_timeout must be non-negative")
	}
	if ws := c.Server.WebSocket; ws.Enabled && (ws.Port <= 0 || ws.Port > 65535) {
		return fmt.Errorf("server.websocket.port must be between 1 and 65535")
	}

	if c.UI.Window.Width <= 0 || c.UI.Window.Height <= 0 {
		return fmt.Errorf("ui.window dimensions must be positive")
	}
	if c.UI.TileSize <= 0 {
		return fmt.Errorf("ui.tile_size must be positive")
	}

	if c.Experience.BufferCapacity <= 0 {
		return fmt.Errorf("experience.buffer_capacity must be positive")
	}
	switch c.Experience.Persistence.Type {
	case "none", "file":
	default:
		return fmt.Errorf("experience.persistence.type must be none or file, got %q", c.Experience.Persistence.Type)
	}
	if c.Experience.Persistence.BatchSize < 0 {
		return fmt.Errorf("experience.persistence.batch_size must be non-negative")
	}
	return nil
}
