// Package pipeline wires the generation, image, and publishing stages
// together and owns the long-lived managers. Everything is constructed and
// passed explicitly; there is no hidden global state, so reconfiguring the
// WeChat identity invalidates the token cache right here.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"golang.org/x/sync/errgroup"

	"wechat_article_autopilot/config"
	"wechat_article_autopilot/generator"
	"wechat_article_autopilot/imagegen"
	"wechat_article_autopilot/model"
	"wechat_article_autopilot/publisher"
	"wechat_article_autopilot/store"
)

// SourceProvider is the scraping collaborator. Implementations live outside
// this module; items arrive fully populated.
type SourceProvider interface {
	Name() string
	Fetch(ctx context.Context, limit int) ([]model.NewsItem, error)
}

// App holds the process-lifetime managers and configuration snapshot.
type App struct {
	Logger    *log.Logger
	Store     *store.Store
	Tokens    *publisher.TokenManager
	Publisher *publisher.Publisher
	Sources   []SourceProvider

	mu      sync.Mutex
	cfg     config.Config
	cfgPath string
}

// NewApp builds the dependency container from a loaded config.
func NewApp(cfgPath string, cfg config.Config, logger *log.Logger) (*App, error) {
	if logger == nil {
		logger = log.Default()
	}
	st, err := store.New(cfg.DataDir)
	if err != nil {
		return nil, err
	}
	tokens := publisher.NewTokenManager(cfg.WeChat.AppID, cfg.WeChat.AppSecret, nil, logger)
	return &App{
		Logger:    logger,
		Store:     st,
		Tokens:    tokens,
		Publisher: publisher.New(tokens, nil, logger),
		cfg:       cfg,
		cfgPath:   cfgPath,
	}, nil
}

// Config returns the current configuration snapshot.
func (a *App) Config() config.Config {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.cfg
}

// UpdateConfig applies mutate to a copy of the current config, installs the
// new snapshot, persists it, and invalidates the credential cache so the next
// platform call runs under the new identity.
func (a *App) UpdateConfig(mutate func(*config.Config)) (config.Config, error) {
	a.mu.Lock()
	cfg := a.cfg
	mutate(&cfg)
	a.cfg = cfg
	path := a.cfgPath
	a.mu.Unlock()

	a.Tokens.SetCredentials(cfg.WeChat.AppID, cfg.WeChat.AppSecret)

	if path == "" {
		return cfg, nil
	}
	return cfg, config.Save(path, cfg)
}

// BuildLLM constructs the model client for the configured provider.
func (a *App) BuildLLM() (generator.LLMClient, error) {
	cfg := a.Config().LLM
	switch cfg.Provider {
	case "openai":
		return generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
			Provider:    cfg.Provider,
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.APIBase,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case "deepseek":
		// DeepSeek 提供 OpenAI 兼容接口，需填写 api_base（例如官方/网关地址）。
		if cfg.APIBase == "" {
			return nil, errors.New("llm provider deepseek requires api_base (OpenAI-compatible endpoint)")
		}
		return generator.NewOpenAILLMFromConfig(&generator.LLMSettings{
			Provider:    cfg.Provider,
			Model:       cfg.Model,
			APIKey:      cfg.APIKey,
			BaseURL:     cfg.APIBase,
			Temperature: cfg.Temperature,
			MaxTokens:   cfg.MaxTokens,
		})
	case "mock":
		return generator.MockLLM{}, nil
	case "":
		return nil, errors.New("llm config missing; please set llm.provider/model/api_key in config")
	default:
		return nil, fmt.Errorf("llm provider %s not supported", cfg.Provider)
	}
}

// Generator builds a document generator against the current config.
func (a *App) Generator() (*generator.Generator, error) {
	llm, err := a.BuildLLM()
	if err != nil {
		return nil, err
	}
	return generator.New(llm, a.Config().WeChat.AccountName, a.Logger), nil
}

// Images builds the asset pipeline against the current config.
func (a *App) Images() (*imagegen.Pipeline, error) {
	cfg := a.Config().Image
	client, err := imagegen.NewHTTPClient(cfg.APIURL, nil)
	if err != nil {
		return nil, err
	}
	return imagegen.NewPipeline(client, a.Store, cfg.DefaultCoverPrefix, a.Logger), nil
}

// RefreshNews fans out over all source providers concurrently, keeps whatever
// succeeded, and replaces the stored news collection. A provider failure is
// logged and skipped; the refresh only fails when every provider fails.
func (a *App) RefreshNews(ctx context.Context, limit int) ([]model.NewsItem, error) {
	if len(a.Sources) == 0 {
		return a.Store.LoadNews()
	}

	batches := make([][]model.NewsItem, len(a.Sources))
	errs := make([]error, len(a.Sources))
	g, gctx := errgroup.WithContext(ctx)
	for i, src := range a.Sources {
		g.Go(func() error {
			items, err := src.Fetch(gctx, limit)
			batches[i], errs[i] = items, err
			return nil
		})
	}
	_ = g.Wait()

	var all []model.NewsItem
	failed := 0
	for i, src := range a.Sources {
		if errs[i] != nil {
			failed++
			a.Logger.Printf("[pipeline] 抓取 %s 失败: %v", src.Name(), errs[i])
			continue
		}
		a.Logger.Printf("[pipeline] %s 抓取到 %d 条新闻", src.Name(), len(batches[i]))
		all = append(all, batches[i]...)
	}
	if failed == len(a.Sources) {
		return nil, fmt.Errorf("all %d news sources failed", failed)
	}
	if err := a.Store.SaveNews(all); err != nil {
		return nil, err
	}
	return all, nil
}
