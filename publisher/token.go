// Package publisher talks to the WeChat Official Account platform: access
// token lifecycle, image material uploads, and draft management.
package publisher

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"wechat_article_autopilot/model"
)

const defaultAPIBase = "https://api.weixin.qq.com"

// 提前5分钟过期，避免边界问题。
const tokenSafetyMargin = 5 * time.Minute

type accessTokenResp struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int64  `json:"expires_in"`
	ErrCode     int    `json:"errcode"`
	ErrMsg      string `json:"errmsg"`
}

type callbackIPResp struct {
	IPList  []string `json:"ip_list"`
	ErrCode int      `json:"errcode"`
	ErrMsg  string   `json:"errmsg"`
}

// TokenManager caches the short-lived access token and refreshes it when the
// cached value is within the safety margin of expiry. It owns the credential
// exclusively; tokens are never written to disk.
type TokenManager struct {
	// BaseURL may be overridden in tests.
	BaseURL string

	client *http.Client
	logger *log.Logger

	mu        sync.Mutex
	appID     string
	appSecret string
	token     string
	expiresAt time.Time
}

func NewTokenManager(appID, appSecret string, client *http.Client, logger *log.Logger) *TokenManager {
	if client == nil {
		client = &http.Client{Timeout: 30 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &TokenManager{
		BaseURL:   defaultAPIBase,
		client:    client,
		logger:    logger,
		appID:     appID,
		appSecret: appSecret,
	}
}

// Configured reports whether an app identity is present.
func (m *TokenManager) Configured() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.appID != "" && m.appSecret != ""
}

// SetCredentials swaps the app identity and drops the cached token so the
// next call fetches under the new identity.
func (m *TokenManager) SetCredentials(appID, appSecret string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.appID = appID
	m.appSecret = appSecret
	m.token = ""
	m.expiresAt = time.Time{}
}

// Invalidate forces the next AccessToken call to refetch.
func (m *TokenManager) Invalidate() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.token = ""
	m.expiresAt = time.Time{}
}

// AccessToken returns a valid token, from cache when possible. The lock is
// held across the refresh, so concurrent callers wait for one fetch instead
// of issuing duplicates.
func (m *TokenManager) AccessToken(ctx context.Context, forceRefresh bool) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.appID == "" || m.appSecret == "" {
		return "", model.ErrNotConfigured
	}
	if !forceRefresh && m.token != "" && time.Now().Before(m.expiresAt) {
		return m.token, nil
	}

	req, err := http.NewRequestWithContext(ctx, "GET", m.BaseURL+"/cgi-bin/token", nil)
	if err != nil {
		return "", err
	}
	q := req.URL.Query()
	q.Set("grant_type", "client_credential")
	q.Set("appid", m.appID)
	q.Set("secret", m.appSecret)
	req.URL.RawQuery = q.Encode()

	resp, err := m.client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var data accessTokenResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return "", err
	}
	if data.ErrCode != 0 || data.AccessToken == "" {
		return "", &model.PlatformError{Code: data.ErrCode, Msg: data.ErrMsg}
	}

	ttl := data.ExpiresIn
	if ttl == 0 {
		ttl = 7200
	}
	m.token = data.AccessToken
	m.expiresAt = time.Now().Add(time.Duration(ttl)*time.Second - tokenSafetyMargin)
	m.logger.Printf("[publisher] access_token refreshed, ttl=%ds", ttl)
	return m.token, nil
}

// Verify fetches a token and probes the callback-IP endpoint to confirm the
// bound account works. Returns the platform IP list.
func (m *TokenManager) Verify(ctx context.Context) ([]string, error) {
	token, err := m.AccessToken(ctx, false)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "GET", m.BaseURL+"/cgi-bin/getcallbackip", nil)
	if err != nil {
		return nil, err
	}
	q := req.URL.Query()
	q.Set("access_token", token)
	req.URL.RawQuery = q.Encode()

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var data callbackIPResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	if data.ErrCode != 0 {
		return nil, &model.PlatformError{Code: data.ErrCode, Msg: data.ErrMsg}
	}
	return data.IPList, nil
}
