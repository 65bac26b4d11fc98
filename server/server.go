// Package server exposes the JSON management API plus the local image
// endpoints that article bodies reference before publishing.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"wechat_article_autopilot/config"
	"wechat_article_autopilot/model"
	"wechat_article_autopilot/pipeline"
)

// 模型生成最慢；其余接口给个宽松的统一上限即可。
const (
	generateTimeout = 180 * time.Second
	imageTimeout    = 300 * time.Second
	wechatTimeout   = 120 * time.Second
	refreshTimeout  = 120 * time.Second
)

type Server struct {
	app    *pipeline.App
	logger *log.Logger
}

func New(app *pipeline.App) (*Server, error) {
	if app == nil {
		return nil, errors.New("pipeline app required")
	}
	return &Server{app: app, logger: app.Logger}, nil
}

func (s *Server) Routes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /health", s.handleHealth)

	mux.HandleFunc("POST /api/news/refresh", s.handleNewsRefresh)
	mux.HandleFunc("GET /api/news/list", s.handleNewsList)
	mux.HandleFunc("GET /api/news/{id}", s.handleNewsGet)
	mux.HandleFunc("DELETE /api/news/{id}", s.handleNewsDelete)

	mux.HandleFunc("POST /api/articles/generate", s.handleGenerate)
	mux.HandleFunc("POST /api/articles/generate-images", s.handleGenerateImages)
	mux.HandleFunc("POST /api/articles/regenerate-image", s.handleRegenerateImage)
	mux.HandleFunc("GET /api/articles/figure/{id}/{index}", s.handleFigureImage)
	mux.HandleFunc("GET /api/articles/cover/{id}", s.handleCoverImage)
	mux.HandleFunc("GET /api/articles/list", s.handleArticleList)
	mux.HandleFunc("POST /api/articles", s.handleArticleCreate)
	mux.HandleFunc("GET /api/articles/{id}", s.handleArticleGet)
	mux.HandleFunc("PUT /api/articles/{id}", s.handleArticleUpdate)
	mux.HandleFunc("DELETE /api/articles/{id}", s.handleArticleDelete)
	mux.HandleFunc("POST /api/articles/{id}/regenerate", s.handleArticleRegenerate)

	mux.HandleFunc("POST /api/wechat/bind", s.handleBind)
	mux.HandleFunc("GET /api/wechat/status", s.handleWeChatStatus)
	mux.HandleFunc("POST /api/wechat/draft/upload", s.handleDraftUpload)
	mux.HandleFunc("PUT /api/wechat/draft/update", s.handleDraftUpdate)
	mux.HandleFunc("GET /api/wechat/draft/list", s.handleDraftList)
	mux.HandleFunc("GET /api/wechat/draft/{mediaID}", s.handleDraftGet)
	mux.HandleFunc("DELETE /api/wechat/draft/{mediaID}", s.handleDraftDelete)
	mux.HandleFunc("POST /api/wechat/draft/{mediaID}/publish", s.handleDraftPublish)

	mux.HandleFunc("POST /api/pipeline/run", s.handlePipelineRun)

	mux.HandleFunc("GET /api/config", s.handleConfigGet)
	mux.HandleFunc("PUT /api/config", s.handleConfigUpdate)

	return s.logMiddleware(mux)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, map[string]string{"status": "healthy"})
}

// --- News ---

type newsRefreshReq struct {
	MaxCount int `json:"max_count"`
}

// handleNewsRefresh re-fetches news from the configured source providers and
// replaces the stored collection. Selection for article generation happens
// against this list.
func (s *Server) handleNewsRefresh(w http.ResponseWriter, r *http.Request) {
	var req newsRefreshReq
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	if req.MaxCount < 1 {
		req.MaxCount = 10
	}
	ctx, cancel := context.WithTimeout(r.Context(), refreshTimeout)
	defer cancel()
	items, err := s.app.RefreshNews(ctx, req.MaxCount)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "news_count": len(items), "items": items})
}

func (s *Server) handleNewsList(w http.ResponseWriter, _ *http.Request) {
	items, err := s.app.Store.LoadNews()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"items": items, "total": len(items)})
}

func (s *Server) handleNewsGet(w http.ResponseWriter, r *http.Request) {
	item, err := s.app.Store.News(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, item)
}

func (s *Server) handleNewsDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Store.DeleteNews(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true})
}

// --- Articles ---

type generateReq struct {
	NewsIDs      []string `json:"news_ids"`
	CustomPrompt string   `json:"custom_prompt"`
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	var req generateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()
	art, err := s.app.GenerateFromNews(ctx, req.NewsIDs, req.CustomPrompt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "article": art})
}

type generateImagesReq struct {
	ArticleID    string `json:"article_id"`
	CustomPrompt string `json:"custom_prompt"`
}

func (s *Server) handleGenerateImages(w http.ResponseWriter, r *http.Request) {
	var req generateImagesReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	art, err := s.app.Store.Article(req.ArticleID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	images, err := s.app.Images()
	if err != nil {
		s.writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), imageTimeout)
	defer cancel()
	filled, err := images.Fill(ctx, art, req.CustomPrompt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"success":      true,
		"cover_path":   filled.CoverURL,
		"figure_count": len(filled.FigureURLs),
		"article":      filled,
	})
}

type regenerateImageReq struct {
	ArticleID   string `json:"article_id"`
	ImageType   string `json:"image_type"` // cover | figure
	FigureIndex int    `json:"figure_index"`
	Prompt      string `json:"prompt"`
}

func (s *Server) handleRegenerateImage(w http.ResponseWriter, r *http.Request) {
	var req regenerateImageReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Prompt == "" {
		http.Error(w, "prompt is required", http.StatusBadRequest)
		return
	}
	images, err := s.app.Images()
	if err != nil {
		s.writeError(w, err)
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), imageTimeout)
	defer cancel()

	switch req.ImageType {
	case "cover":
		art, err := images.RegenerateCover(ctx, req.ArticleID, req.Prompt)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{"success": true, "image_url": "/api/articles/cover/" + art.ID})
	case "figure":
		if req.FigureIndex < 1 {
			http.Error(w, "figure_index must be >= 1", http.StatusBadRequest)
			return
		}
		art, err := images.RegenerateFigure(ctx, req.ArticleID, req.FigureIndex, req.Prompt)
		if err != nil {
			s.writeError(w, err)
			return
		}
		writeJSON(w, map[string]any{
			"success":   true,
			"image_url": "/api/articles/figure/" + art.ID + "/" + strconv.Itoa(req.FigureIndex),
		})
	default:
		http.Error(w, "image_type must be cover or figure", http.StatusBadRequest)
	}
}

func (s *Server) handleFigureImage(w http.ResponseWriter, r *http.Request) {
	art, err := s.app.Store.Article(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	index, err := strconv.Atoi(r.PathValue("index"))
	if err != nil || index < 1 || index > len(art.FigureURLs) || art.FigureURLs[index-1] == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, art.FigureURLs[index-1])
}

func (s *Server) handleCoverImage(w http.ResponseWriter, r *http.Request) {
	art, err := s.app.Store.Article(r.PathValue("id"))
	if err != nil || art.CoverURL == "" {
		http.NotFound(w, r)
		return
	}
	w.Header().Set("Content-Type", "image/png")
	http.ServeFile(w, r, art.CoverURL)
}

func (s *Server) handleArticleList(w http.ResponseWriter, _ *http.Request) {
	articles, err := s.app.Store.LoadArticles()
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"items": articles, "total": len(articles)})
}

type articleCreateReq struct {
	Title    string `json:"title"`
	Markdown string `json:"markdown"`
	Digest   string `json:"digest"`
	Author   string `json:"author"`
}

// handleArticleCreate creates a manual draft from Markdown, without AI.
func (s *Server) handleArticleCreate(w http.ResponseWriter, r *http.Request) {
	var req articleCreateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.Markdown == "" {
		http.Error(w, "markdown is required", http.StatusBadRequest)
		return
	}
	art, err := s.app.CreateManualArticle(req.Title, req.Markdown, req.Digest, req.Author)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "article": art})
}

func (s *Server) handleArticleGet(w http.ResponseWriter, r *http.Request) {
	art, err := s.app.Store.Article(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, art)
}

type articleUpdateReq struct {
	Title       *string `json:"title"`
	Digest      *string `json:"digest"`
	Content     *string `json:"content"`
	Author      *string `json:"author"`
	CoverPrompt *string `json:"cover_prompt"`
}

func (s *Server) handleArticleUpdate(w http.ResponseWriter, r *http.Request) {
	var req articleUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	art, err := s.app.Store.Article(r.PathValue("id"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	if req.Title != nil {
		art.Title = *req.Title
	}
	if req.Digest != nil {
		art.Digest = *req.Digest
	}
	if req.Content != nil {
		art.Content = *req.Content
	}
	if req.Author != nil {
		art.Author = *req.Author
	}
	if req.CoverPrompt != nil {
		art.CoverPrompt = *req.CoverPrompt
	}
	art.Touch()
	if err := s.app.Store.SaveArticle(art); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "article": art})
}

func (s *Server) handleArticleDelete(w http.ResponseWriter, r *http.Request) {
	if err := s.app.Store.DeleteArticle(r.PathValue("id")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true})
}

type regenerateReq struct {
	CustomPrompt string `json:"custom_prompt"`
}

func (s *Server) handleArticleRegenerate(w http.ResponseWriter, r *http.Request) {
	var req regenerateReq
	if r.ContentLength > 0 {
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
	}
	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout)
	defer cancel()
	art, err := s.app.RegenerateArticle(ctx, r.PathValue("id"), req.CustomPrompt)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "article": art})
}

// --- WeChat ---

type bindReq struct {
	AppID       string `json:"app_id"`
	AppSecret   string `json:"app_secret"`
	AccountName string `json:"account_name"`
}

func (s *Server) handleBind(w http.ResponseWriter, r *http.Request) {
	var req bindReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.app.UpdateConfig(func(cfg *config.Config) {
		cfg.WeChat.AppID = req.AppID
		cfg.WeChat.AppSecret = req.AppSecret
		cfg.WeChat.AccountName = req.AccountName
	}); err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), wechatTimeout)
	defer cancel()
	ipList, err := s.app.Tokens.Verify(ctx)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{
		"success":      true,
		"account_name": req.AccountName,
		"ip_list":      ipList,
	})
}

func (s *Server) handleWeChatStatus(w http.ResponseWriter, r *http.Request) {
	cfg := s.app.Config().WeChat
	if !cfg.Configured() {
		writeJSON(w, map[string]any{"bound": false, "valid": false, "account_name": ""})
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), wechatTimeout)
	defer cancel()
	if _, err := s.app.Tokens.Verify(ctx); err != nil {
		writeJSON(w, map[string]any{
			"bound":        true,
			"valid":        false,
			"account_name": cfg.AccountName,
			"error":        err.Error(),
		})
		return
	}
	writeJSON(w, map[string]any{
		"bound":        true,
		"valid":        true,
		"app_id":       config.MaskSecret(cfg.AppID),
		"account_name": cfg.AccountName,
	})
}

type draftArticleReq struct {
	ArticleID string `json:"article_id"`
}

func (s *Server) handleDraftUpload(w http.ResponseWriter, r *http.Request) {
	s.uploadOrUpdateDraft(w, r, false)
}

func (s *Server) handleDraftUpdate(w http.ResponseWriter, r *http.Request) {
	s.uploadOrUpdateDraft(w, r, true)
}

func (s *Server) uploadOrUpdateDraft(w http.ResponseWriter, r *http.Request, update bool) {
	var req draftArticleReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	art, err := s.app.Store.Article(req.ArticleID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), wechatTimeout)
	defer cancel()
	var mediaID string
	if update {
		mediaID, err = s.app.Publisher.UpdateDraft(ctx, art)
	} else {
		mediaID, err = s.app.Publisher.UploadDraft(ctx, art)
	}
	if err != nil {
		s.writeError(w, err)
		return
	}

	// 远端草稿已创建，media_id 必须落盘；已发布的文章重传草稿时状态保持不变。
	art.WeChatMediaID = mediaID
	if err := art.AdvanceTo(model.StatusUploaded); err != nil {
		s.logger.Printf("[server] 文章 %s 状态保持 %s: %v", art.ID, art.Status, err)
		art.Touch()
	}
	if err := s.app.Store.SaveArticle(art); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true, "media_id": mediaID})
}

func (s *Server) handleDraftList(w http.ResponseWriter, r *http.Request) {
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	count, _ := strconv.Atoi(r.URL.Query().Get("count"))
	ctx, cancel := context.WithTimeout(r.Context(), wechatTimeout)
	defer cancel()
	raw, err := s.app.Publisher.ListDrafts(ctx, offset, count)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeRawJSON(w, raw)
}

func (s *Server) handleDraftGet(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), wechatTimeout)
	defer cancel()
	raw, err := s.app.Publisher.GetDraft(ctx, r.PathValue("mediaID"))
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeRawJSON(w, raw)
}

func (s *Server) handleDraftDelete(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), wechatTimeout)
	defer cancel()
	if err := s.app.Publisher.DeleteDraft(ctx, r.PathValue("mediaID")); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true})
}

func (s *Server) handleDraftPublish(w http.ResponseWriter, r *http.Request) {
	mediaID := r.PathValue("mediaID")
	ctx, cancel := context.WithTimeout(r.Context(), wechatTimeout)
	defer cancel()
	publishID, err := s.app.Publisher.SubmitPublish(ctx, mediaID)
	if err != nil {
		s.writeError(w, err)
		return
	}

	// 发布确认后推进对应文章的状态。
	if articles, err := s.app.Store.LoadArticles(); err == nil {
		for _, art := range articles {
			if art.WeChatMediaID == mediaID {
				if err := art.AdvanceTo(model.StatusPublished); err == nil {
					_ = s.app.Store.SaveArticle(art)
				}
				break
			}
		}
	}
	writeJSON(w, map[string]any{"success": true, "publish_id": publishID})
}

// --- Pipeline / config ---

func (s *Server) handlePipelineRun(w http.ResponseWriter, r *http.Request) {
	// 整条流水线包含抓取、生成、配图、上传，放最宽松的超时。
	ctx, cancel := context.WithTimeout(r.Context(), generateTimeout+imageTimeout+wechatTimeout)
	defer cancel()
	result, err := s.app.Run(ctx)
	if err != nil {
		writeJSONStatus(w, http.StatusInternalServerError, map[string]any{
			"success":    false,
			"stage":      result.Stage,
			"article_id": result.ArticleID,
			"error":      err.Error(),
		})
		return
	}
	writeJSON(w, map[string]any{"success": true, "stage": result.Stage, "article_id": result.ArticleID})
}

func (s *Server) handleConfigGet(w http.ResponseWriter, _ *http.Request) {
	cfg := s.app.Config()
	writeJSON(w, map[string]any{
		"wechat": map[string]any{
			"app_id":       config.MaskSecret(cfg.WeChat.AppID),
			"app_secret":   config.MaskSecret(cfg.WeChat.AppSecret),
			"account_name": cfg.WeChat.AccountName,
			"configured":   cfg.WeChat.Configured(),
		},
		"llm": map[string]any{
			"provider":    cfg.LLM.Provider,
			"api_base":    cfg.LLM.APIBase,
			"api_key":     config.MaskSecret(cfg.LLM.APIKey),
			"model":       cfg.LLM.Model,
			"temperature": cfg.LLM.Temperature,
			"max_tokens":  cfg.LLM.MaxTokens,
		},
		"image": map[string]any{
			"api_url":               cfg.Image.APIURL,
			"default_prompt_prefix": cfg.Image.DefaultCoverPrefix,
		},
	})
}

type configUpdateReq struct {
	WeChat *config.WeChatConfig `json:"wechat"`
	LLM    *config.LLMConfig    `json:"llm"`
	Image  *config.ImageConfig  `json:"image"`
}

func (s *Server) handleConfigUpdate(w http.ResponseWriter, r *http.Request) {
	var req configUpdateReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := s.app.UpdateConfig(func(cfg *config.Config) {
		if req.WeChat != nil {
			cfg.WeChat = *req.WeChat
		}
		if req.LLM != nil {
			cfg.LLM = *req.LLM
		}
		if req.Image != nil {
			cfg.Image = *req.Image
		}
	}); err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, map[string]any{"success": true})
}

// --- Helpers ---

func (s *Server) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	var platformErr *model.PlatformError
	switch {
	case errors.Is(err, model.ErrArticleNotFound), errors.Is(err, model.ErrNewsNotFound):
		status = http.StatusNotFound
	case errors.Is(err, model.ErrMissingCover),
		errors.Is(err, model.ErrNoSourceNews),
		errors.Is(err, model.ErrNotConfigured):
		status = http.StatusBadRequest
	case errors.As(err, &platformErr), errors.Is(err, model.ErrModelUpstream):
		status = http.StatusBadGateway
	}
	http.Error(w, err.Error(), status)
}

func writeJSON(w http.ResponseWriter, v any) {
	writeJSONStatus(w, http.StatusOK, v)
}

func writeJSONStatus(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeRawJSON(w http.ResponseWriter, raw []byte) {
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(raw)
}

func (s *Server) logMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Printf("%s %s %s", r.Method, r.URL.Path, time.Since(start).Round(time.Millisecond))
	})
}
