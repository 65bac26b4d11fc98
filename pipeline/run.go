package pipeline

import (
	"context"
	"fmt"

	"wechat_article_autopilot/model"
)

// Pipeline stages, reported back so a failed run can be resumed manually
// from the stage that broke instead of starting over.
const (
	StageSources  = "sources"
	StageGenerate = "generate"
	StageImages   = "images"
	StageUpload   = "upload"
	StageDone     = "done"
)

// 单次自动任务里每个来源最多取这么多条新闻。
const defaultFetchLimit = 10

// RunResult reports how far a pipeline run got and which article it produced.
type RunResult struct {
	Stage     string `json:"stage"`
	ArticleID string `json:"article_id,omitempty"`
}

// Run executes the full automation flow: refresh news, generate an article
// from everything scraped, fill in images, upload the WeChat draft. Each
// stage's failure rules follow its contract — generation failures halt the
// run, a single illustration failure does not, and the upload only requires
// a cover.
func (a *App) Run(ctx context.Context) (RunResult, error) {
	a.Logger.Printf("[pipeline] 自动任务开始")

	news, err := a.RefreshNews(ctx, defaultFetchLimit)
	if err != nil {
		return RunResult{Stage: StageSources}, err
	}
	if len(news) == 0 {
		return RunResult{Stage: StageSources}, model.ErrNoSourceNews
	}

	gen, err := a.Generator()
	if err != nil {
		return RunResult{Stage: StageGenerate}, err
	}
	bodies := make([]string, len(news))
	for i, item := range news {
		bodies[i] = item.Content
	}
	art, err := gen.Generate(ctx, news, "", bodies)
	if err != nil {
		return RunResult{Stage: StageGenerate}, err
	}
	if err := a.Store.SaveArticle(art); err != nil {
		return RunResult{Stage: StageGenerate, ArticleID: art.ID}, err
	}
	a.Logger.Printf("[pipeline] 文章生成成功: %s", art.Title)

	images, err := a.Images()
	if err != nil {
		a.Logger.Printf("[pipeline] 图片生成不可用: %v", err)
	} else {
		filled, fillErr := images.Fill(ctx, art, "")
		if fillErr != nil {
			// 继续执行；只要封面存在仍尝试上传。
			a.Logger.Printf("[pipeline] 生成图片失败: %v", fillErr)
		}
		art = filled
	}
	if art.CoverURL == "" {
		return RunResult{Stage: StageImages, ArticleID: art.ID}, model.ErrMissingCover
	}

	mediaID, err := a.Publisher.UploadDraft(ctx, art)
	if err != nil {
		return RunResult{Stage: StageUpload, ArticleID: art.ID}, err
	}
	art.WeChatMediaID = mediaID
	if err := art.AdvanceTo(model.StatusUploaded); err != nil {
		return RunResult{Stage: StageUpload, ArticleID: art.ID}, err
	}
	if err := a.Store.SaveArticle(art); err != nil {
		return RunResult{Stage: StageUpload, ArticleID: art.ID}, err
	}

	a.Logger.Printf("[pipeline] 自动任务完成 article=%s media_id=%s", art.ID, mediaID)
	return RunResult{Stage: StageDone, ArticleID: art.ID}, nil
}

// GenerateFromNews drafts a new article from the selected stored news items,
// persisting it. Item order follows the stored collection, not the id list.
func (a *App) GenerateFromNews(ctx context.Context, newsIDs []string, customPrompt string) (model.Article, error) {
	news, err := a.Store.LoadNews()
	if err != nil {
		return model.Article{}, err
	}
	selected := selectNews(news, newsIDs)
	if len(selected) == 0 {
		return model.Article{}, model.ErrNoSourceNews
	}

	gen, err := a.Generator()
	if err != nil {
		return model.Article{}, err
	}
	bodies := make([]string, len(selected))
	for i, item := range selected {
		bodies[i] = item.Content
	}
	art, err := gen.Generate(ctx, selected, customPrompt, bodies)
	if err != nil {
		return model.Article{}, err
	}
	return art, a.Store.SaveArticle(art)
}

// RegenerateArticle re-runs generation for an existing article from its
// original source news, keeping its identity and source links.
func (a *App) RegenerateArticle(ctx context.Context, articleID, customPrompt string) (model.Article, error) {
	art, err := a.Store.Article(articleID)
	if err != nil {
		return model.Article{}, err
	}
	if len(art.SourceNews) == 0 {
		return model.Article{}, fmt.Errorf("article %s has no source news to regenerate from", articleID)
	}

	news, err := a.Store.LoadNews()
	if err != nil {
		return model.Article{}, err
	}
	selected := selectNews(news, art.SourceNews)
	if len(selected) == 0 {
		return model.Article{}, model.ErrNoSourceNews
	}

	gen, err := a.Generator()
	if err != nil {
		return model.Article{}, err
	}
	bodies := make([]string, len(selected))
	for i, item := range selected {
		bodies[i] = item.Content
	}
	fresh, err := gen.Generate(ctx, selected, customPrompt, bodies)
	if err != nil {
		return model.Article{}, err
	}

	art.ResetContent(fresh.Title, fresh.Digest, fresh.Content, fresh.CoverPrompt, fresh.FigurePrompts)
	return art, a.Store.SaveArticle(art)
}

func selectNews(news []model.NewsItem, ids []string) []model.NewsItem {
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	var selected []model.NewsItem
	for _, item := range news {
		if want[item.ID] {
			selected = append(selected, item)
		}
	}
	return selected
}
