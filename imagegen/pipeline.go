package imagegen

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"wechat_article_autopilot/model"
	"wechat_article_autopilot/store"
)

// 并发生成插图的上限；生成服务通常扛不住更高的并发。
const maxConcurrentFigures = 3

// Pipeline generates the cover and illustrations for an article, persists the
// image files locally, and rewrites <figureN> placeholders in the body into
// locally served <img> references.
type Pipeline struct {
	client      Client
	store       *store.Store
	coverPrefix string
	logger      *log.Logger
}

func NewPipeline(client Client, st *store.Store, coverPrefix string, logger *log.Logger) *Pipeline {
	if logger == nil {
		logger = log.Default()
	}
	return &Pipeline{client: client, store: st, coverPrefix: coverPrefix, logger: logger}
}

// Fill resolves all images for the article. The cover prompt is chosen from
// coverOverride, then the article's stored prompt, then synthesized from the
// title and digest. A cover failure is fatal; a single illustration failure
// only drops that slot's placeholder. The updated article is persisted and
// returned.
func (p *Pipeline) Fill(ctx context.Context, art model.Article, coverOverride string) (model.Article, error) {
	prompt := coverOverride
	if prompt == "" {
		prompt = art.CoverPrompt
	}
	if prompt == "" {
		prompt = p.coverPromptFor(art.Title, art.Digest)
	}

	coverPath, err := p.generateToFile(ctx, prompt, "cover")
	if err != nil {
		return art, fmt.Errorf("generate cover: %w", err)
	}
	art.CoverURL = coverPath
	p.logger.Printf("[imagegen] 封面图生成成功: %s", coverPath)

	// Fan out illustration generation, then apply substitutions in a single
	// deterministic pass keyed by index.
	type figureResult struct {
		path string
		err  error
	}
	results := make([]figureResult, len(art.FigurePrompts))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentFigures)
	for i, figPrompt := range art.FigurePrompts {
		g.Go(func() error {
			path, err := p.generateToFile(gctx, figPrompt, "image")
			results[i] = figureResult{path: path, err: err}
			return nil // 单张失败不终止整体流程
		})
	}
	_ = g.Wait()

	content := art.Content
	figureURLs := make([]string, 0, len(art.FigurePrompts))
	for i := range art.FigurePrompts {
		n := i + 1
		placeholder := fmt.Sprintf("<figure%d>", n)
		if res := results[i]; res.err == nil {
			figureURLs = append(figureURLs, res.path)
			content = strings.ReplaceAll(content, placeholder, figureHTML(art.ID, n))
			p.logger.Printf("[imagegen] 插图%d生成成功", n)
		} else {
			p.logger.Printf("[imagegen] 生成插图%d失败: %v", n, res.err)
			content = strings.ReplaceAll(content, placeholder, "")
		}
	}

	art.Content = content
	art.FigureURLs = figureURLs
	art.Touch()
	if err := p.store.SaveArticle(art); err != nil {
		return art, err
	}
	return art, nil
}

// RegenerateCover regenerates only the cover image with an explicit prompt
// and persists the article.
func (p *Pipeline) RegenerateCover(ctx context.Context, articleID, prompt string) (model.Article, error) {
	art, err := p.store.Article(articleID)
	if err != nil {
		return model.Article{}, err
	}
	path, err := p.generateToFile(ctx, prompt, "cover")
	if err != nil {
		return art, fmt.Errorf("generate cover: %w", err)
	}
	art.CoverURL = path
	art.CoverPrompt = prompt
	art.CoverMediaID = "" // 旧素材对应的是上一版封面
	art.Touch()
	return art, p.store.SaveArticle(art)
}

// RegenerateFigure regenerates a single illustration slot (1-based) with an
// explicit prompt, extending the prompt/asset arrays if the slot is beyond
// their current length, and persists the article.
func (p *Pipeline) RegenerateFigure(ctx context.Context, articleID string, index int, prompt string) (model.Article, error) {
	if index < 1 {
		return model.Article{}, fmt.Errorf("figure index %d out of range", index)
	}
	art, err := p.store.Article(articleID)
	if err != nil {
		return model.Article{}, err
	}
	path, err := p.generateToFile(ctx, prompt, "image")
	if err != nil {
		return art, fmt.Errorf("generate figure %d: %w", index, err)
	}

	idx := index - 1
	for len(art.FigureURLs) <= idx {
		art.FigureURLs = append(art.FigureURLs, "")
	}
	art.FigureURLs[idx] = path
	for len(art.FigurePrompts) <= idx {
		art.FigurePrompts = append(art.FigurePrompts, "")
	}
	art.FigurePrompts[idx] = prompt
	art.Touch()
	return art, p.store.SaveArticle(art)
}

func (p *Pipeline) coverPromptFor(title, digest string) string {
	prompt := p.coverPrefix + title
	if digest != "" {
		runes := []rune(digest)
		if len(runes) > 50 {
			digest = string(runes[:50])
		}
		prompt += "，" + digest
	}
	return prompt
}

func (p *Pipeline) generateToFile(ctx context.Context, prompt, kind string) (string, error) {
	data, err := p.client.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("%s_%s.png", kind, uuid.NewString()[:8])
	path := filepath.Join(p.store.ImagesDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

// figureHTML is the locally served <img> reference substituted for a
// placeholder. The path pattern is what the publish step later rewrites into
// hosted WeChat URLs.
func figureHTML(articleID string, index int) string {
	return fmt.Sprintf(`<p style="text-align:center;margin:20px 0;"><img src="/api/articles/figure/%s/%d" style="max-width:100%%;border-radius:8px;" alt="插图%d"></p>`, articleID, index, index)
}
