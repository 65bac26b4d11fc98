package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"wechat_article_autopilot/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	st, err := New(t.TempDir())
	require.NoError(t, err)
	return st
}

func TestEmptyCollections(t *testing.T) {
	st := newTestStore(t)

	articles, err := st.LoadArticles()
	require.NoError(t, err)
	require.Empty(t, articles)

	news, err := st.LoadNews()
	require.NoError(t, err)
	require.Empty(t, news)
}

func TestArticleRoundTrip(t *testing.T) {
	st := newTestStore(t)
	now := time.Now()
	art := model.Article{
		ID:            "a1",
		Title:         "标题",
		Author:        "AI资讯",
		Digest:        "摘要",
		Content:       `<p>正文 <img src="/api/articles/figure/a1/1"></p>`,
		CoverURL:      "/tmp/cover.png",
		CoverPrompt:   "科技感封面",
		FigurePrompts: []string{"p1", "p2"},
		FigureURLs:    []string{"/tmp/f1.png"},
		SourceNews:    []string{"n1", "n2", "n3"},
		Status:        model.StatusGenerated,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	require.NoError(t, st.SaveArticle(art))

	loaded, err := st.Article("a1")
	require.NoError(t, err)

	// Timestamps survive JSON with wall-clock precision; compare them with
	// Equal and the rest field by field.
	require.True(t, loaded.CreatedAt.Equal(art.CreatedAt))
	require.True(t, loaded.UpdatedAt.Equal(art.UpdatedAt))
	loaded.CreatedAt = art.CreatedAt
	loaded.UpdatedAt = art.UpdatedAt
	require.Equal(t, art, loaded)
}

func TestSaveArticleUpserts(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveArticle(model.Article{ID: "a1", Title: "v1"}))
	require.NoError(t, st.SaveArticle(model.Article{ID: "a2", Title: "other"}))
	require.NoError(t, st.SaveArticle(model.Article{ID: "a1", Title: "v2"}))

	articles, err := st.LoadArticles()
	require.NoError(t, err)
	require.Len(t, articles, 2)

	a1, err := st.Article("a1")
	require.NoError(t, err)
	require.Equal(t, "v2", a1.Title)
}

func TestDeleteArticle(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveArticle(model.Article{ID: "a1"}))

	require.NoError(t, st.DeleteArticle("a1"))
	_, err := st.Article("a1")
	require.ErrorIs(t, err, model.ErrArticleNotFound)

	require.ErrorIs(t, st.DeleteArticle("a1"), model.ErrArticleNotFound)
}

func TestNewsRoundTrip(t *testing.T) {
	st := newTestStore(t)
	items := []model.NewsItem{
		{ID: "n1", Title: "新闻一", Summary: "s", URL: "https://example.com/1", Source: "AIBase", ScrapedAt: time.Now()},
		{ID: "n2", Title: "新闻二", Content: "<p>正文</p>", URL: "https://example.com/2", Source: "AIBot", ScrapedAt: time.Now()},
	}
	require.NoError(t, st.SaveNews(items))

	loaded, err := st.LoadNews()
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	require.Equal(t, "n1", loaded[0].ID)
	require.Equal(t, "<p>正文</p>", loaded[1].Content)
}

func TestNewsLookup(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveNews([]model.NewsItem{{ID: "n1", Title: "新闻一"}}))

	item, err := st.News("n1")
	require.NoError(t, err)
	require.Equal(t, "新闻一", item.Title)

	_, err = st.News("missing")
	require.ErrorIs(t, err, model.ErrNewsNotFound)
}

func TestDeleteNews(t *testing.T) {
	st := newTestStore(t)
	require.NoError(t, st.SaveNews([]model.NewsItem{{ID: "n1"}, {ID: "n2"}}))

	require.NoError(t, st.DeleteNews("n1"))
	remaining, err := st.LoadNews()
	require.NoError(t, err)
	require.Len(t, remaining, 1)
	require.Equal(t, "n2", remaining[0].ID)

	require.ErrorIs(t, st.DeleteNews("n1"), model.ErrNewsNotFound)
}
