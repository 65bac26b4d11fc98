package generator

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"wechat_article_autopilot/model"
)

func TestBuildArticlePromptPrefersBodies(t *testing.T) {
	items := []model.NewsItem{
		{ID: "n1", Title: "头条", Summary: "摘要一"},
		{ID: "n2", Title: "二条", Summary: "摘要二"},
	}
	bodies := []string{"<p>完整正文</p>", ""}

	msgs := BuildArticlePrompt(items, bodies, "")
	require.Len(t, msgs, 2)
	require.Equal(t, "system", msgs[0].Role)

	user := msgs[1].Content
	require.Contains(t, user, "【新闻1】")
	require.Contains(t, user, "正文：完整正文")
	require.NotContains(t, user, "<p>")
	require.Contains(t, user, "【新闻2】")
	require.Contains(t, user, "摘要：摘要二")
}

func TestBuildArticlePromptTruncatesBody(t *testing.T) {
	long := strings.Repeat("文", 5000)
	items := []model.NewsItem{{ID: "n1", Title: "t"}}

	msgs := BuildArticlePrompt(items, []string{long}, "")
	user := msgs[1].Content
	require.Contains(t, user, strings.Repeat("文", 2000))
	require.NotContains(t, user, strings.Repeat("文", 2001))
}

func TestBuildArticlePromptCustomInstruction(t *testing.T) {
	items := []model.NewsItem{{ID: "n1", Title: "t", Summary: "s"}}
	msgs := BuildArticlePrompt(items, nil, "语气再犀利一点")
	require.True(t, strings.HasSuffix(msgs[1].Content, "额外要求：语气再犀利一点"))
}

func TestStripTags(t *testing.T) {
	require.Equal(t, "正文内容", StripTags(`<div class="x"><p>正文</p><script>alert(1)</script>内容</div>`))
}
