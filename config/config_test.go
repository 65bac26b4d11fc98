package config

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.json"))
	require.NoError(t, err)
	require.Equal(t, "data", cfg.DataDir)
	require.NotEmpty(t, cfg.Image.DefaultCoverPrefix)
	require.False(t, cfg.WeChat.Configured())
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Config{
		WeChat:     WeChatConfig{AppID: "wx123", AppSecret: "secret", AccountName: "测试号"},
		LLM:        LLMConfig{Provider: "openai", Model: "gpt-4o", APIKey: "sk-xyz", Temperature: 0.7, MaxTokens: 4096},
		Image:      ImageConfig{APIURL: "http://img.local/generate", DefaultCoverPrefix: "封面，"},
		ServerAddr: ":9090",
		DataDir:    "d",
	}
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, loaded)
	require.True(t, loaded.WeChat.Configured())
}

func TestMaskSecret(t *testing.T) {
	require.Equal(t, "", MaskSecret(""))
	require.Equal(t, "***", MaskSecret("short"))
	masked := MaskSecret("wx1234567890abcd")
	require.Equal(t, "wx12****abcd", masked)
}
