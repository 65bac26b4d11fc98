package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"wechat_article_autopilot/model"
)

func TestGenerateFromThreeItems(t *testing.T) {
	items := []model.NewsItem{
		{ID: "n1", Title: "一", Summary: "s1"},
		{ID: "n2", Title: "二", Summary: "s2"},
		{ID: "n3", Title: "三", Summary: "s3"},
	}
	bodies := []string{"<p>正文一</p>", "<p>正文二</p>", ""}

	llm := &scriptedLLM{replies: []string{validReply}}
	gen := New(llm, "测试公众号", nil)

	art, err := gen.Generate(context.Background(), items, "", bodies)
	require.NoError(t, err)

	require.Equal(t, model.StatusGenerated, art.Status)
	require.Equal(t, "测试公众号", art.Author)
	require.Equal(t, []string{"n1", "n2", "n3"}, art.SourceNews)
	require.NotEmpty(t, art.ID)
	require.False(t, art.CreatedAt.IsZero())
	require.Equal(t, "大模型的门槛彻底消失了", art.Title)
	require.Equal(t, []string{"数据洪流中的个人剪影"}, art.FigurePrompts)

	// Two bodies are injected as body text, the third falls back to summary.
	require.Len(t, llm.calls, 1)
	user := llm.calls[0][1].Content
	require.Contains(t, user, "正文：正文一")
	require.Contains(t, user, "正文：正文二")
	require.Contains(t, user, "摘要：s3")
}

func TestGenerateDefaultAuthor(t *testing.T) {
	llm := &scriptedLLM{replies: []string{validReply}}
	gen := New(llm, "", nil)

	art, err := gen.Generate(context.Background(), []model.NewsItem{{ID: "n1", Title: "t"}}, "", nil)
	require.NoError(t, err)
	require.Equal(t, defaultAuthor, art.Author)
}

func TestGenerateNoItems(t *testing.T) {
	gen := New(&scriptedLLM{}, "", nil)
	_, err := gen.Generate(context.Background(), nil, "", nil)
	require.ErrorIs(t, err, model.ErrNoSourceNews)
}

func TestGenerateUpstreamFailure(t *testing.T) {
	llm := &scriptedLLM{err: errors.New("dial tcp: timeout")}
	gen := New(llm, "", nil)

	_, err := gen.Generate(context.Background(), []model.NewsItem{{ID: "n1", Title: "t"}}, "", nil)
	require.ErrorIs(t, err, model.ErrModelUpstream)
}

func TestGenerateMalformedReplyNeverFails(t *testing.T) {
	// Both the draft and the repair reply are garbage; generation still
	// yields a usable article.
	llm := &scriptedLLM{replies: []string{"不是JSON", "还不是JSON"}}
	gen := New(llm, "", nil)

	art, err := gen.Generate(context.Background(), []model.NewsItem{{ID: "n1", Title: "t"}}, "", nil)
	require.NoError(t, err)
	require.Equal(t, model.StatusGenerated, art.Status)
	require.Equal(t, "<p>不是JSON</p>", art.Content)
	require.Empty(t, art.FigurePrompts)
}
