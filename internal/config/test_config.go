package config

import "time"

// TestConfig returns a config suitable for testing
func TestConfig() *Config {
	return &Config{
		Backend: BackendConfig{
			URL:       DefaultBackendURL,
			Timeout:   5 * time.Second,
			UserAgent: "quill-test/1.0",
			PageSize:  10,
		},
		Database: DatabaseConfig{
			Path:    ":memory:",
			Timeout: 1 * time.Second,
		},
		Topics: TopicsConfig{
			HTTPTimeout:  5 * time.Second,
			MaxHeadlines: 20,
		},
		Speech: SpeechConfig{
			Engine:   "none",
			Language: "en",
			Seconds:  1,
		},
		UI:   defaultConfig().UI,
		Keys: defaultConfig().Keys,
		Log:  LogConfig{Level: "off"},
	}
}
