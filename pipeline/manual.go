package pipeline

import (
	"errors"
	"time"

	"wechat_article_autopilot/generator"
	"wechat_article_autopilot/model"
	"wechat_article_autopilot/publisher"
)

// CreateManualArticle creates a DRAFT article from hand-written Markdown, no
// model involved. Title and digest fall back to values extracted from the
// Markdown source.
func (a *App) CreateManualArticle(title, markdown, digest, author string) (model.Article, error) {
	content, err := publisher.RenderMarkdown(markdown)
	if err != nil {
		return model.Article{}, err
	}
	if title == "" {
		title = publisher.ExtractTitle(markdown)
	}
	if title == "" {
		return model.Article{}, errors.New("title is required when the markdown has no level-one heading")
	}
	if digest == "" {
		digest = publisher.DefaultDigest(markdown, 100)
	}
	if author == "" {
		author = a.Config().WeChat.AccountName
	}

	now := time.Now()
	art := model.Article{
		ID:            generator.NewArticleID(),
		Title:         title,
		Digest:        digest,
		Content:       content,
		Author:        author,
		FigurePrompts: []string{},
		FigureURLs:    []string{},
		SourceNews:    []string{},
		Status:        model.StatusDraft,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	return art, a.Store.SaveArticle(art)
}
