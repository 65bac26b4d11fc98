package model

import (
	"fmt"
	"time"
)

// Status 文章生命周期状态，只允许向前推进。
type Status string

const (
	StatusDraft     Status = "draft"     // 本地草稿（手工创建，未经 AI）
	StatusGenerated Status = "generated" // AI已生成
	StatusUploaded  Status = "uploaded"  // 已上传到微信草稿箱
	StatusPublished Status = "published" // 已发布
)

var statusOrder = map[Status]int{
	StatusDraft:     0,
	StatusGenerated: 1,
	StatusUploaded:  2,
	StatusPublished: 3,
}

// Valid reports whether s is a known lifecycle status.
func (s Status) Valid() bool {
	_, ok := statusOrder[s]
	return ok
}

// Article is a single WeChat Official Account article managed by the system.
// Content holds inline-styled HTML; before illustration generation it may
// contain up to five <figureN> placeholders matched positionally against
// FigurePrompts.
type Article struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author"`
	Digest        string    `json:"digest"`
	Content       string    `json:"content"`
	CoverURL      string    `json:"cover_url,omitempty"`      // 本地封面图路径
	CoverMediaID  string    `json:"cover_media_id,omitempty"` // 微信永久素材 media_id
	CoverPrompt   string    `json:"cover_prompt,omitempty"`
	FigurePrompts []string  `json:"figure_prompt_list"`
	FigureURLs    []string  `json:"figure_urls"` // 已生成插图的本地路径
	SourceNews    []string  `json:"source_news"`
	Status        Status    `json:"status"`
	WeChatMediaID string    `json:"wechat_media_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// Touch bumps the update timestamp.
func (a *Article) Touch() {
	a.UpdatedAt = time.Now()
}

// AdvanceTo moves the article forward in its lifecycle. Moving backwards is
// rejected; regeneration keeps the current status and resets content fields
// instead (see ResetContent).
func (a *Article) AdvanceTo(next Status) error {
	if !next.Valid() {
		return fmt.Errorf("unknown article status %q", next)
	}
	if statusOrder[next] < statusOrder[a.Status] {
		return fmt.Errorf("article %s: cannot move status backwards from %s to %s", a.ID, a.Status, next)
	}
	a.Status = next
	a.Touch()
	return nil
}

// ResetContent replaces the generated content fields while preserving the
// article identity and its source-news links. Used when regenerating from the
// same sources.
func (a *Article) ResetContent(title, digest, content, coverPrompt string, figurePrompts []string) {
	a.Title = title
	a.Digest = digest
	a.Content = content
	a.CoverPrompt = coverPrompt
	a.FigurePrompts = figurePrompts
	a.FigureURLs = nil
	a.Touch()
}
