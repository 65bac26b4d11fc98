package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"

	"wechat_article_autopilot/model"
)

// fakeWeChat stubs the endpoints the Publisher touches and records every
// JSON payload for assertions.
type fakeWeChat struct {
	*httptest.Server
	materialCalls  int
	uploadimgCalls int
	deleteBodies   []string
	addBodies      []string
	batchgetBodies []string
	submitBodies   []string
	deleteErrCode  int
	addErrCode     int
}

func newFakeWeChat(t *testing.T) *fakeWeChat {
	t.Helper()
	f := &fakeWeChat{}
	mux := http.NewServeMux()
	mux.HandleFunc("/cgi-bin/token", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"access_token":"tok","expires_in":7200}`)
	})
	mux.HandleFunc("/cgi-bin/material/add_material", func(w http.ResponseWriter, r *http.Request) {
		f.materialCalls++
		fmt.Fprintf(w, `{"media_id":"thumb-%d","url":"https://mmbiz.qpic.cn/thumb%d"}`, f.materialCalls, f.materialCalls)
	})
	mux.HandleFunc("/cgi-bin/media/uploadimg", func(w http.ResponseWriter, r *http.Request) {
		f.uploadimgCalls++
		fmt.Fprintf(w, `{"url":"https://mmbiz.qpic.cn/fig%d"}`, f.uploadimgCalls)
	})
	mux.HandleFunc("/cgi-bin/draft/add", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.addBodies = append(f.addBodies, string(body))
		if f.addErrCode != 0 {
			fmt.Fprintf(w, `{"errcode":%d,"errmsg":"add failed"}`, f.addErrCode)
			return
		}
		fmt.Fprint(w, `{"media_id":"draft-media-id"}`)
	})
	mux.HandleFunc("/cgi-bin/draft/delete", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.deleteBodies = append(f.deleteBodies, string(body))
		if f.deleteErrCode != 0 {
			fmt.Fprintf(w, `{"errcode":%d,"errmsg":"delete failed"}`, f.deleteErrCode)
			return
		}
		fmt.Fprint(w, `{"errcode":0,"errmsg":"ok"}`)
	})
	mux.HandleFunc("/cgi-bin/draft/batchget", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.batchgetBodies = append(f.batchgetBodies, string(body))
		fmt.Fprint(w, `{"total_count":1,"item_count":1,"item":[{"media_id":"draft-media-id"}]}`)
	})
	mux.HandleFunc("/cgi-bin/draft/get", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"news_item":[{"title":"远端标题"}]}`)
	})
	mux.HandleFunc("/cgi-bin/freepublish/submit", func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		f.submitBodies = append(f.submitBodies, string(body))
		fmt.Fprint(w, `{"errcode":0,"errmsg":"ok","publish_id":"pub-1"}`)
	})
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Close)
	return f
}

func newTestPublisher(srv *fakeWeChat) *Publisher {
	tokens := NewTokenManager("wxid", "secret", srv.Client(), nil)
	tokens.BaseURL = srv.URL
	return New(tokens, srv.Client(), nil)
}

func writeImage(t *testing.T, dir, name string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("png"), 0o644))
	return path
}

func TestUploadDraftRewritesFigures(t *testing.T) {
	srv := newFakeWeChat(t)
	pub := newTestPublisher(srv)
	dir := t.TempDir()

	art := model.Article{
		ID:     "a1",
		Title:  "标题",
		Author: "作者",
		Digest: "摘要",
		Content: `<p>x</p><img src="/api/articles/figure/a1/1"><img src="/api/articles/figure/a1/2">` +
			`<img src="/api/articles/figure/a1/99">`,
		CoverURL:   writeImage(t, dir, "cover.png"),
		FigureURLs: []string{writeImage(t, dir, "f1.png"), writeImage(t, dir, "f2.png")},
	}

	mediaID, err := pub.UploadDraft(context.Background(), art)
	require.NoError(t, err)
	require.Equal(t, "draft-media-id", mediaID)
	require.Equal(t, 1, srv.materialCalls)
	require.Equal(t, 2, srv.uploadimgCalls)

	require.Len(t, srv.addBodies, 1)
	sent := gjson.Get(srv.addBodies[0], "articles.0")
	require.Equal(t, "标题", sent.Get("title").String())
	require.Equal(t, "thumb-1", sent.Get("thumb_media_id").String())
	content := sent.Get("content").String()
	require.Contains(t, content, "https://mmbiz.qpic.cn/fig1")
	require.Contains(t, content, "https://mmbiz.qpic.cn/fig2")
	require.NotContains(t, content, "/api/articles/figure/a1/1")
	// 越界引用原样保留。
	require.Contains(t, content, "/api/articles/figure/a1/99")
}

func TestUploadDraftReusesCoverMediaID(t *testing.T) {
	srv := newFakeWeChat(t)
	pub := newTestPublisher(srv)

	art := model.Article{ID: "a1", Title: "t", Content: "<p>x</p>", CoverMediaID: "existing-thumb"}
	_, err := pub.UploadDraft(context.Background(), art)
	require.NoError(t, err)
	require.Zero(t, srv.materialCalls, "an attached media_id skips the material upload")
	require.Equal(t, "existing-thumb", gjson.Get(srv.addBodies[0], "articles.0.thumb_media_id").String())
}

func TestUploadDraftMissingCover(t *testing.T) {
	srv := newFakeWeChat(t)
	pub := newTestPublisher(srv)

	_, err := pub.UploadDraft(context.Background(), model.Article{ID: "a1", Title: "t"})
	require.ErrorIs(t, err, model.ErrMissingCover)
	require.Empty(t, srv.addBodies, "precondition fails before any network call")
}

func TestUpdateDraftRecreatesAfterDeleteFailure(t *testing.T) {
	srv := newFakeWeChat(t)
	srv.deleteErrCode = 40007 // 平台可能已自行清掉旧草稿
	pub := newTestPublisher(srv)

	art := model.Article{ID: "a1", Title: "t", Content: "<p>x</p>", CoverMediaID: "thumb", WeChatMediaID: "old-draft"}
	mediaID, err := pub.UpdateDraft(context.Background(), art)
	require.NoError(t, err)
	require.Equal(t, "draft-media-id", mediaID)
	require.Len(t, srv.deleteBodies, 1)
	require.Contains(t, srv.deleteBodies[0], "old-draft")
	require.Len(t, srv.addBodies, 1)
}

func TestUpdateDraftWithoutRemoteCopy(t *testing.T) {
	srv := newFakeWeChat(t)
	pub := newTestPublisher(srv)

	art := model.Article{ID: "a1", Title: "t", Content: "<p>x</p>", CoverMediaID: "thumb"}
	_, err := pub.UpdateDraft(context.Background(), art)
	require.NoError(t, err)
	require.Empty(t, srv.deleteBodies)
}

func TestListDraftsCapsPageSize(t *testing.T) {
	srv := newFakeWeChat(t)
	pub := newTestPublisher(srv)

	for _, count := range []int{500, 0, -3} {
		_, err := pub.ListDrafts(context.Background(), -1, count)
		require.NoError(t, err)
	}
	for _, body := range srv.batchgetBodies {
		var payload map[string]int
		require.NoError(t, json.Unmarshal([]byte(body), &payload))
		require.Equal(t, maxDraftPageSize, payload["count"])
		require.Equal(t, 0, payload["offset"])
		require.Equal(t, 1, payload["no_content"])
	}
}

func TestListDraftsKeepsValidCount(t *testing.T) {
	srv := newFakeWeChat(t)
	pub := newTestPublisher(srv)

	raw, err := pub.ListDrafts(context.Background(), 5, 10)
	require.NoError(t, err)
	require.Equal(t, int64(1), gjson.GetBytes(raw, "item_count").Int())

	var payload map[string]int
	require.NoError(t, json.Unmarshal([]byte(srv.batchgetBodies[0]), &payload))
	require.Equal(t, 10, payload["count"])
	require.Equal(t, 5, payload["offset"])
}

func TestSubmitPublish(t *testing.T) {
	srv := newFakeWeChat(t)
	pub := newTestPublisher(srv)

	publishID, err := pub.SubmitPublish(context.Background(), "draft-media-id")
	require.NoError(t, err)
	require.Equal(t, "pub-1", publishID)
	require.Contains(t, srv.submitBodies[0], "draft-media-id")
}

func TestUploadDraftPlatformError(t *testing.T) {
	srv := newFakeWeChat(t)
	srv.addErrCode = 45009
	pub := newTestPublisher(srv)

	art := model.Article{ID: "a1", Title: "t", Content: "<p>x</p>", CoverMediaID: "thumb"}
	_, err := pub.UploadDraft(context.Background(), art)
	var perr *model.PlatformError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, 45009, perr.Code)
}

func TestGetDraftPassthrough(t *testing.T) {
	srv := newFakeWeChat(t)
	pub := newTestPublisher(srv)

	raw, err := pub.GetDraft(context.Background(), "draft-media-id")
	require.NoError(t, err)
	require.True(t, strings.Contains(string(raw), "远端标题"))
}
