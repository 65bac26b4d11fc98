package config

import (
	"encoding/json"
	"errors"
	"os"
	"strings"
)

// WeChatConfig holds the Official Account credentials.
type WeChatConfig struct {
	AppID       string `json:"app_id"`
	AppSecret   string `json:"app_secret"`
	AccountName string `json:"account_name"` // 公众号名称，用作文章作者名
}

// Configured reports whether both halves of the app identity are present.
func (c WeChatConfig) Configured() bool {
	return c.AppID != "" && c.AppSecret != ""
}

// LLMConfig configures the OpenAI-compatible chat endpoint.
type LLMConfig struct {
	Provider    string  `json:"provider"` // openai | deepseek | mock
	APIBase     string  `json:"api_base,omitempty"`
	APIKey      string  `json:"api_key,omitempty"`
	Model       string  `json:"model,omitempty"`
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
}

// ImageConfig configures the image-generation endpoint.
type ImageConfig struct {
	APIURL             string `json:"api_url"`
	DefaultCoverPrefix string `json:"default_prompt_prefix"`
}

// Config is the whole application configuration. It is loaded once at startup
// and replaced as a unit when updated through the API so dependent caches can
// be invalidated explicitly.
type Config struct {
	WeChat     WeChatConfig `json:"wechat"`
	LLM        LLMConfig    `json:"llm"`
	Image      ImageConfig  `json:"image"`
	ServerAddr string       `json:"server_addr,omitempty"`
	DataDir    string       `json:"data_dir,omitempty"`
}

// Default returns the built-in configuration for a fresh install.
func Default() Config {
	return Config{
		Image:   ImageConfig{DefaultCoverPrefix: "公众号封面图，"},
		DataDir: "data",
	}
}

// Load reads JSON config from disk. A missing file yields defaults so a fresh
// install can boot and be configured through the API.
func Load(path string) (Config, error) {
	cfg := Default()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, err
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Config{}, err
	}
	if cfg.DataDir == "" {
		cfg.DataDir = "data"
	}
	if cfg.Image.DefaultCoverPrefix == "" {
		cfg.Image.DefaultCoverPrefix = "公众号封面图，"
	}
	return cfg, nil
}

// Save writes the config back to disk.
func Save(path string, cfg Config) error {
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// MaskSecret hides the middle of a credential for display.
func MaskSecret(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 8 {
		return "***"
	}
	return s[:4] + strings.Repeat("*", 4) + s[len(s)-4:]
}
