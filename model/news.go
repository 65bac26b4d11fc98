package model

import "time"

// NewsItem is one scraped news entry. Items arrive from the scraping
// collaborator already filled in and are treated as immutable here.
type NewsItem struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Summary     string    `json:"summary"`
	Content     string    `json:"content"` // 预抓取的正文，可为空
	URL         string    `json:"url"`
	Source      string    `json:"source"`
	PublishedAt string    `json:"published_at,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at"`
}
