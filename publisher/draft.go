package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"wechat_article_autopilot/model"
)

// 草稿列表单页数量的平台上限。
const maxDraftPageSize = 20

// 插图在本地预览时的引用形式；上传草稿前要把它替换成微信托管的 URL。
var figureSrcRe = regexp.MustCompile(`src="(/api/articles/figure/[^"]+/(\d+))"`)

type draftArticle struct {
	Title              string `json:"title"`
	Author             string `json:"author"`
	Digest             string `json:"digest"`
	Content            string `json:"content"`
	ThumbMediaID       string `json:"thumb_media_id"`
	NeedOpenComment    int    `json:"need_open_comment"`
	OnlyFansCanComment int    `json:"only_fans_can_comment"`
}

type addDraftPayload struct {
	Articles []draftArticle `json:"articles"`
}

type addDraftResp struct {
	MediaID string `json:"media_id"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type submitPublishResp struct {
	PublishID string `json:"publish_id"`
	ErrCode   int    `json:"errcode"`
	ErrMsg    string `json:"errmsg"`
}

// Publisher manages WeChat drafts for locally resolved articles.
type Publisher struct {
	// BaseURL may be overridden in tests.
	BaseURL string

	tokens *TokenManager
	client *http.Client
	logger *log.Logger
}

func New(tokens *TokenManager, client *http.Client, logger *log.Logger) *Publisher {
	if client == nil {
		client = &http.Client{Timeout: 60 * time.Second}
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Publisher{
		BaseURL: tokens.BaseURL,
		tokens:  tokens,
		client:  client,
		logger:  logger,
	}
}

// UploadDraft creates a WeChat draft from the article: the cover is uploaded
// as permanent material unless a media_id is already attached, inline figure
// references are rewritten to hosted URLs, and the draft is created with
// comments closed. Returns the new draft media_id. The article itself is not
// mutated; the caller records the media_id and status change.
func (p *Publisher) UploadDraft(ctx context.Context, art model.Article) (string, error) {
	if art.CoverURL == "" && art.CoverMediaID == "" {
		return "", model.ErrMissingCover
	}

	thumbMediaID := art.CoverMediaID
	if thumbMediaID == "" {
		coverBytes, err := os.ReadFile(art.CoverURL)
		if err != nil {
			return "", fmt.Errorf("read cover image: %w", err)
		}
		thumbMediaID, err = p.UploadPermanentImage(ctx, coverBytes, filepath.Base(art.CoverURL))
		if err != nil {
			return "", fmt.Errorf("upload cover: %w", err)
		}
		p.logger.Printf("[publisher] 封面上传成功 media_id=%s", thumbMediaID)
	}

	content := p.rewriteFigureImages(ctx, art)

	payload := addDraftPayload{Articles: []draftArticle{{
		Title:              art.Title,
		Author:             art.Author,
		Digest:             art.Digest,
		Content:            content,
		ThumbMediaID:       thumbMediaID,
		NeedOpenComment:    0,
		OnlyFansCanComment: 0,
	}}}

	body, err := p.postJSON(ctx, "/cgi-bin/draft/add", payload)
	if err != nil {
		return "", err
	}
	var resp addDraftResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.ErrCode != 0 || resp.MediaID == "" {
		return "", &model.PlatformError{Code: resp.ErrCode, Msg: resp.ErrMsg}
	}
	p.logger.Printf("[publisher] 草稿创建成功 media_id=%s", resp.MediaID)
	return resp.MediaID, nil
}

// UpdateDraft replaces an existing remote draft. WeChat has no draft-update
// call, so this deletes the old draft (best effort; the platform may have
// already dropped it) and recreates it.
func (p *Publisher) UpdateDraft(ctx context.Context, art model.Article) (string, error) {
	if art.CoverURL == "" && art.CoverMediaID == "" {
		return "", model.ErrMissingCover
	}
	if art.WeChatMediaID != "" {
		if err := p.DeleteDraft(ctx, art.WeChatMediaID); err != nil {
			p.logger.Printf("[publisher] 删除旧草稿失败: %v", err)
		}
	}
	return p.UploadDraft(ctx, art)
}

// DeleteDraft removes a remote draft.
func (p *Publisher) DeleteDraft(ctx context.Context, mediaID string) error {
	body, err := p.postJSON(ctx, "/cgi-bin/draft/delete", map[string]string{"media_id": mediaID})
	if err != nil {
		return err
	}
	return platformErrFrom(body)
}

// SubmitPublish submits a draft for publication and returns the publish job
// id.
func (p *Publisher) SubmitPublish(ctx context.Context, mediaID string) (string, error) {
	body, err := p.postJSON(ctx, "/cgi-bin/freepublish/submit", map[string]string{"media_id": mediaID})
	if err != nil {
		return "", err
	}
	var resp submitPublishResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.ErrCode != 0 {
		return "", &model.PlatformError{Code: resp.ErrCode, Msg: resp.ErrMsg}
	}
	return resp.PublishID, nil
}

// GetDraft fetches one draft record verbatim.
func (p *Publisher) GetDraft(ctx context.Context, mediaID string) (json.RawMessage, error) {
	body, err := p.postJSON(ctx, "/cgi-bin/draft/get", map[string]string{"media_id": mediaID})
	if err != nil {
		return nil, err
	}
	if err := platformErrFrom(body); err != nil {
		return nil, err
	}
	return body, nil
}

// ListDrafts pages through the remote draft box. count is capped at the
// platform maximum regardless of caller input.
func (p *Publisher) ListDrafts(ctx context.Context, offset, count int) (json.RawMessage, error) {
	if count < 1 || count > maxDraftPageSize {
		count = maxDraftPageSize
	}
	if offset < 0 {
		offset = 0
	}
	payload := map[string]int{"offset": offset, "count": count, "no_content": 1}
	body, err := p.postJSON(ctx, "/cgi-bin/draft/batchget", payload)
	if err != nil {
		return nil, err
	}
	if err := platformErrFrom(body); err != nil {
		return nil, err
	}
	return body, nil
}

// rewriteFigureImages uploads every locally referenced figure whose slot has
// a resolved file and swaps the local src for the hosted URL. Slots without a
// resolved file keep their local reference; a failed upload only skips that
// figure.
func (p *Publisher) rewriteFigureImages(ctx context.Context, art model.Article) string {
	content := art.Content
	for _, m := range figureSrcRe.FindAllStringSubmatch(content, -1) {
		localURL := m[1]
		index, err := strconv.Atoi(m[2])
		if err != nil {
			continue
		}
		idx := index - 1
		if idx < 0 || idx >= len(art.FigureURLs) || art.FigureURLs[idx] == "" {
			continue
		}
		data, err := os.ReadFile(art.FigureURLs[idx])
		if err != nil {
			p.logger.Printf("[publisher] 读取插图%d失败: %v", index, err)
			continue
		}
		hostedURL, err := p.UploadContentImage(ctx, data, filepath.Base(art.FigureURLs[idx]))
		if err != nil {
			p.logger.Printf("[publisher] 上传插图%d失败: %v", index, err)
			continue
		}
		content = strings.ReplaceAll(content, `src="`+localURL+`"`, `src="`+hostedURL+`"`)
		p.logger.Printf("[publisher] 插图%d上传成功: %s", index, hostedURL)
	}
	return content
}

func (p *Publisher) postJSON(ctx context.Context, path string, payload any) ([]byte, error) {
	token, err := p.tokens.AccessToken(ctx, false)
	if err != nil {
		return nil, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	q := req.URL.Query()
	q.Set("access_token", token)
	req.URL.RawQuery = q.Encode()

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// platformErrFrom checks the errcode field of a passthrough response body.
func platformErrFrom(body []byte) error {
	code := gjson.GetBytes(body, "errcode")
	if code.Exists() && code.Int() != 0 {
		return &model.PlatformError{Code: int(code.Int()), Msg: gjson.GetBytes(body, "errmsg").String()}
	}
	return nil
}
