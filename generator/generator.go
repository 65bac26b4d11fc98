package generator

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"wechat_article_autopilot/model"
)

const defaultAuthor = "AI资讯"

// Generator 根据选中的新闻生成公众号文章。
type Generator struct {
	llm    LLMClient
	parser *Parser
	author string
	logger *log.Logger
}

// New creates a Generator. author is the configured account display name; when
// empty a generic byline is used.
func New(llm LLMClient, author string, logger *log.Logger) *Generator {
	if author == "" {
		author = defaultAuthor
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Generator{
		llm:    llm,
		parser: NewParser(llm, logger),
		author: author,
		logger: logger,
	}
}

// Generate drafts one article from the given news items. bodies supplies
// pre-fetched full text matched positionally to items; entries may be empty.
// The model is called once for the draft, plus at most one repair round
// inside the parser. Model transport failures surface as ErrModelUpstream;
// malformed replies never fail (the parser degrades instead).
func (g *Generator) Generate(ctx context.Context, items []model.NewsItem, customPrompt string, bodies []string) (model.Article, error) {
	if len(items) == 0 {
		return model.Article{}, model.ErrNoSourceNews
	}

	msgs := BuildArticlePrompt(items, bodies, customPrompt)
	raw, err := g.llm.Complete(ctx, msgs)
	if err != nil {
		return model.Article{}, fmt.Errorf("%w: %v", model.ErrModelUpstream, err)
	}

	rec, outcome := g.parser.Parse(ctx, raw)
	switch outcome {
	case OutcomeRepaired:
		g.logger.Printf("[generator] 模型输出经修复后解析成功")
	case OutcomeFallback:
		g.logger.Printf("[generator] 模型输出无法解析，使用降级稿件")
	}

	ids := make([]string, 0, len(items))
	for _, item := range items {
		ids = append(ids, item.ID)
	}

	now := time.Now()
	return model.Article{
		ID:            NewArticleID(),
		Title:         rec.Title,
		Digest:        rec.Digest,
		Content:       rec.Content,
		Author:        g.author,
		CoverPrompt:   rec.CoverPrompt,
		FigurePrompts: rec.FigurePrompts,
		FigureURLs:    []string{},
		SourceNews:    ids,
		Status:        model.StatusGenerated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}, nil
}

// NewArticleID mints a short unique article identifier.
func NewArticleID() string {
	return uuid.NewString()[:8]
}
