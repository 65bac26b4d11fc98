package publisher

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"

	"wechat_article_autopilot/model"
)

type uploadMaterialResp struct {
	MediaID string `json:"media_id"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

type uploadImgResp struct {
	URL     string `json:"url"`
	ErrCode int    `json:"errcode"`
	ErrMsg  string `json:"errmsg"`
}

// UploadPermanentImage uploads a cover image as permanent material and
// returns its media_id.
func (p *Publisher) UploadPermanentImage(ctx context.Context, data []byte, filename string) (string, error) {
	body, err := p.postMultipart(ctx, "/cgi-bin/material/add_material", map[string]string{"type": "image"}, data, filename)
	if err != nil {
		return "", err
	}
	var resp uploadMaterialResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.ErrCode != 0 || resp.MediaID == "" {
		return "", &model.PlatformError{Code: resp.ErrCode, Msg: resp.ErrMsg}
	}
	return resp.MediaID, nil
}

// UploadContentImage uploads an inline article image and returns the hosted
// URL usable inside draft content.
func (p *Publisher) UploadContentImage(ctx context.Context, data []byte, filename string) (string, error) {
	body, err := p.postMultipart(ctx, "/cgi-bin/media/uploadimg", nil, data, filename)
	if err != nil {
		return "", err
	}
	var resp uploadImgResp
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", err
	}
	if resp.ErrCode != 0 || resp.URL == "" {
		return "", &model.PlatformError{Code: resp.ErrCode, Msg: resp.ErrMsg}
	}
	return resp.URL, nil
}

func (p *Publisher) postMultipart(ctx context.Context, path string, extraQuery map[string]string, data []byte, filename string) ([]byte, error) {
	token, err := p.tokens.AccessToken(ctx, false)
	if err != nil {
		return nil, err
	}
	if filename == "" {
		filename = "image.png"
	}

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	part, err := writer.CreateFormFile("media", filename)
	if err != nil {
		return nil, err
	}
	if _, err := part.Write(data); err != nil {
		return nil, err
	}
	if err := writer.Close(); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", p.BaseURL+path, &buf)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", writer.FormDataContentType())
	q := req.URL.Query()
	q.Set("access_token", token)
	for k, v := range extraQuery {
		q.Set(k, v)
	}
	req.URL.RawQuery = q.Encode()

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}
