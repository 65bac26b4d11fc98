// Package imagegen resolves image prompts to generated PNG files and binds
// them into article bodies.
package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// Client turns a text prompt into image bytes.
type Client interface {
	Generate(ctx context.Context, prompt string) ([]byte, error)
}

// 生成服务要求字符串形式的宽高，封面比例按微信要求 1080x686。
const (
	imageWidth  = "1080"
	imageHeight = "686"
)

type generateRequest struct {
	Prompt string `json:"prompt"`
	Width  string `json:"width"`
	Height string `json:"height"`
}

// HTTPClient calls a simple prompt-to-image HTTP endpoint that replies with
// raw image bytes.
type HTTPClient struct {
	apiURL string
	client *http.Client
}

func NewHTTPClient(apiURL string, client *http.Client) (*HTTPClient, error) {
	if apiURL == "" {
		return nil, errors.New("image api_url is not configured")
	}
	if client == nil {
		client = &http.Client{Timeout: 120 * time.Second}
	}
	return &HTTPClient{apiURL: apiURL, client: client}, nil
}

func (c *HTTPClient) Generate(ctx context.Context, prompt string) ([]byte, error) {
	payload, err := json.Marshal(generateRequest{Prompt: prompt, Width: imageWidth, Height: imageHeight})
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", c.apiURL, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("image api returned status %d", resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}
