package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/viper"
)

const DefaultBackendURL = "http://localhost:8000"

type Config struct {
	Backend  BackendConfig  `mapstructure:"backend"`
	Database DatabaseConfig `mapstructure:"database"`
	Topics   TopicsConfig   `mapstructure:"topics"`
	Speech   SpeechConfig   `mapstructure:"speech"`
	UI       UIConfig       `mapstructure:"ui"`
	Keys     KeyConfig      `mapstructure:"keys"`
	Log      LogConfig      `mapstructure:"log"`
}

type BackendConfig struct {
	URL       string        `mapstructure:"url"`
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
	PageSize  int           `mapstructure:"page_size"`
}

type DatabaseConfig struct {
	Path        string        `mapstructure:"path"`
	Timeout     time.Duration `mapstructure:"timeout"`
	SearchIndex string        `mapstructure:"search_index"`
}

type TopicsConfig struct {
	Sources      []string      `mapstructure:"sources"`
	HTTPTimeout  time.Duration `mapstructure:"http_timeout"`
	MaxHeadlines int           `mapstructure:"max_headlines"`
}

type SpeechConfig struct {
	// Engine names an entry of the built-in engine registry ("auto" probes all of them).
	Engine   string   `mapstructure:"engine"`
	Language string   `mapstructure:"language"`
	Seconds  int      `mapstructure:"seconds"`
	Command  []string `mapstructure:"command"`
}

type UIConfig struct {
	Colors  UIColors      `mapstructure:"colors"`
	Preview PreviewConfig `mapstructure:"preview"`
}

type UIColors struct {
	Primary    string `mapstructure:"primary"`
	Secondary  string `mapstructure:"secondary"`
	Accent     string `mapstructure:"accent"`
	Background string `mapstructure:"background"`
	Surface    string `mapstructure:"surface"`
	Text       string `mapstructure:"text"`
	Muted      string `mapstructure:"muted"`
	Error      string `mapstructure:"error"`
	Success    string `mapstructure:"success"`
}

type PreviewConfig struct {
	WordWrapMaxWidth int `mapstructure:"word_wrap_max_width"`
	WordWrapMinWidth int `mapstructure:"word_wrap_min_width"`
}

type KeyConfig struct {
	Modifier string      `mapstructure:"modifier"`
	Bindings KeyBindings `mapstructure:"bindings"`
}

type KeyBindings struct {
	Quit     string `mapstructure:"quit"`
	Compose  string `mapstructure:"compose"`
	Search   string `mapstructure:"search"`
	Filter   string `mapstructure:"filter"`
	Edit     string `mapstructure:"edit"`
	PostNow  string `mapstructure:"post_now"`
	Listen   string `mapstructure:"listen"`
	Refresh  string `mapstructure:"refresh"`
	NextPage string `mapstructure:"next_page"`
	PrevPage string `mapstructure:"prev_page"`
	Back     string `mapstructure:"back"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
	Path  string `mapstructure:"path"`
}

func defaultConfig() *Config {
	homeDir, _ := os.UserHomeDir()
	dataDir := filepath.Join(homeDir, ".quill")

	return &Config{
		Backend: BackendConfig{
			URL:       DefaultBackendURL,
			Timeout:   30 * time.Second,
			UserAgent: "quill/1.0 (https://github.com/pders01/quill)",
			PageSize:  10,
		},
		Database: DatabaseConfig{
			Path:        filepath.Join(dataDir, "quill.db"),
			Timeout:     1 * time.Second,
			SearchIndex: "",
		},
		Topics: TopicsConfig{
			Sources:      []string{},
			HTTPTimeout:  15 * time.Second,
			MaxHeadlines: 50,
		},
		Speech: SpeechConfig{
			Engine:   "auto",
			Language: "en",
			Seconds:  5,
			Command:  []string{},
		},
		UI: UIConfig{
			Colors: UIColors{
				Primary:    "#FF6B6B",
				Secondary:  "#4ECDC4",
				Accent:     "#95E1D3",
				Background: "#1A1A2E",
				Surface:    "#16213E",
				Text:       "#EAEAEA",
				Muted:      "#94A3B8",
				Error:      "#F87171",
				Success:    "#4ADE80",
			},
			Preview: PreviewConfig{
				WordWrapMaxWidth: 100,
				WordWrapMinWidth: 40,
			},
		},
		Keys: KeyConfig{
			Modifier: "ctrl",
			Bindings: KeyBindings{
				Quit:     "q",
				Compose:  "g",
				Search:   "s",
				Filter:   "f",
				Edit:     "e",
				PostNow:  "p",
				Listen:   "l",
				Refresh:  "r",
				NextPage: "right",
				PrevPage: "left",
				Back:     "esc",
			},
		},
		Log: LogConfig{
			Level: "off",
			Path:  filepath.Join(dataDir, "quill.log"),
		},
	}
}

func Load(configPath string) (*Config, error) {
	v := viper.New()

	cfg := defaultConfig()
	v.SetDefault("backend", cfg.Backend)
	v.SetDefault("database", cfg.Database)
	v.SetDefault("topics", cfg.Topics)
	v.SetDefault("speech", cfg.Speech)
	v.SetDefault("ui", cfg.UI)
	v.SetDefault("keys", cfg.Keys)
	v.SetDefault("log", cfg.Log)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		homeDir, _ := os.UserHomeDir()
		configDir := filepath.Join(homeDir, ".config", "quill")

		v.SetConfigName("config")
		v.SetConfigType("toml")
		v.AddConfigPath(configDir)
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("QUILL")
	v.AutomaticEnv()
	// Sections are registered as struct defaults, so AutomaticEnv cannot reach
	// their leaves. The two settings people set per shell get flat aliases.
	_ = v.BindEnv("backend_url", "QUILL_BACKEND_URL")
	_ = v.BindEnv("log_level", "QUILL_LOG_LEVEL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	// Decoding over the defaults keeps fields a partial section leaves out.
	config := defaultConfig()
	if err := v.Unmarshal(config); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}

	if url := v.GetString("backend_url"); url != "" {
		config.Backend.URL = url
	}
	if level := v.GetString("log_level"); level != "" {
		config.Log.Level = level
	}
	if config.Backend.PageSize <= 0 {
		config.Backend.PageSize = cfg.Backend.PageSize
	}

	expandPaths(config)

	return config, nil
}

// expandPath expands ~ to home directory and converts to absolute path
func expandPath(path string) string {
	if path == "" {
		return path
	}

	if len(path) >= 2 && path[:2] == "~/" {
		home, _ := os.UserHomeDir()
		path = filepath.Join(home, path[2:])
	}

	if !filepath.IsAbs(path) {
		if abs, err := filepath.Abs(path); err == nil {
			path = abs
		}
	}

	return path
}

func expandPaths(cfg *Config) {
	cfg.Database.Path = expandPath(cfg.Database.Path)
	cfg.Database.SearchIndex = expandPath(cfg.Database.SearchIndex)
	cfg.Log.Path = expandPath(cfg.Log.Path)
}

func Save(config *Config, path string) error {
	v := viper.New()

	// Durations as strings keep the TOML readable
	backendCfg := map[string]interface{}{
		"url":        config.Backend.URL,
		"timeout":    config.Backend.Timeout.String(),
		"user_agent": config.Backend.UserAgent,
		"page_size":  config.Backend.PageSize,
	}

	dbCfg := map[string]interface{}{
		"path":         config.Database.Path,
		"timeout":      config.Database.Timeout.String(),
		"search_index": config.Database.SearchIndex,
	}

	topicsCfg := map[string]interface{}{
		"sources":       config.Topics.Sources,
		"http_timeout":  config.Topics.HTTPTimeout.String(),
		"max_headlines": config.Topics.MaxHeadlines,
	}

	speechCfg := map[string]interface{}{
		"engine":   config.Speech.Engine,
		"language": config.Speech.Language,
		"seconds":  config.Speech.Seconds,
		"command":  config.Speech.Command,
	}

	c := config.UI.Colors
	uiCfg := map[string]interface{}{
		"colors": map[string]interface{}{
			"primary":    c.Primary,
			"secondary":  c.Secondary,
			"accent":     c.Accent,
			"background": c.Background,
			"surface":    c.Surface,
			"text":       c.Text,
			"muted":      c.Muted,
			"error":      c.Error,
			"success":    c.Success,
		},
		"preview": map[string]interface{}{
			"word_wrap_max_width": config.UI.Preview.WordWrapMaxWidth,
			"word_wrap_min_width": config.UI.Preview.WordWrapMinWidth,
		},
	}

	b := config.Keys.Bindings
	keysCfg := map[string]interface{}{
		"modifier": config.Keys.Modifier,
		"bindings": map[string]interface{}{
			"quit":      b.Quit,
			"compose":   b.Compose,
			"search":    b.Search,
			"filter":    b.Filter,
			"edit":      b.Edit,
			"post_now":  b.PostNow,
			"listen":    b.Listen,
			"refresh":   b.Refresh,
			"next_page": b.NextPage,
			"prev_page": b.PrevPage,
			"back":      b.Back,
		},
	}

	v.Set("backend", backendCfg)
	v.Set("database", dbCfg)
	v.Set("topics", topicsCfg)
	v.Set("speech", speechCfg)
	v.Set("ui", uiCfg)
	v.Set("keys", keysCfg)
	v.Set("log", map[string]interface{}{
		"level": config.Log.Level,
		"path":  config.Log.Path,
	})

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	return v.WriteConfigAs(path)
}

func GenerateDefaultConfig(path string) error {
	return Save(defaultConfig(), path)
}
