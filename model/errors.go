package model

import (
	"errors"
	"fmt"
)

var (
	// ErrNotConfigured means the WeChat app identity is missing from config.
	ErrNotConfigured = errors.New("wechat app_id/app_secret not configured")

	// ErrMissingCover means a draft upload was attempted before a cover image
	// was generated or assigned.
	ErrMissingCover = errors.New("article has no cover image")

	// ErrNoSourceNews means generation was requested without any source items.
	ErrNoSourceNews = errors.New("no source news selected")

	// ErrModelUpstream wraps failures of the language-model call itself, as
	// opposed to malformed-but-received replies which the parser recovers from.
	ErrModelUpstream = errors.New("upstream model error")

	// ErrArticleNotFound is returned by the store for unknown article ids.
	ErrArticleNotFound = errors.New("article not found")

	// ErrNewsNotFound is returned by the store for unknown news ids.
	ErrNewsNotFound = errors.New("news not found")
)

// PlatformError is a non-zero errcode reply from the WeChat API.
type PlatformError struct {
	Code int
	Msg  string
}

func (e *PlatformError) Error() string {
	return fmt.Sprintf("wechat api error %d: %s", e.Code, e.Msg)
}
