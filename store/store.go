// Package store is the flat-file persistence layer. Collections are stored as
// whole JSON files and rewritten on every save, mirroring the simple hosting
// environments this tool runs in. Callers are expected to serialize pipeline
// runs; the store only guards against concurrent access within one process.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"

	"wechat_article_autopilot/model"
)

// Store reads and writes the news and article collections plus generated
// image files under a single data directory.
type Store struct {
	mu  sync.Mutex
	dir string
}

// New creates the data directory layout if needed.
func New(dir string) (*Store, error) {
	for _, sub := range []string{"news", "articles", "images"} {
		if err := os.MkdirAll(filepath.Join(dir, sub), 0o755); err != nil {
			return nil, err
		}
	}
	return &Store{dir: dir}, nil
}

// ImagesDir is where generated cover and figure files live.
func (s *Store) ImagesDir() string {
	return filepath.Join(s.dir, "images")
}

func (s *Store) newsPath() string     { return filepath.Join(s.dir, "news", "news.json") }
func (s *Store) articlesPath() string { return filepath.Join(s.dir, "articles", "articles.json") }

func readCollection[T any](path string) ([]T, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	var items []T
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, err
	}
	return items, nil
}

func writeCollection[T any](path string, items []T) error {
	if items == nil {
		items = []T{}
	}
	data, err := json.MarshalIndent(items, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// LoadNews returns the full news collection.
func (s *Store) LoadNews() ([]model.NewsItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readCollection[model.NewsItem](s.newsPath())
}

// SaveNews replaces the full news collection.
func (s *Store) SaveNews(items []model.NewsItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeCollection(s.newsPath(), items)
}

// News looks up one news item by id.
func (s *Store) News(id string) (model.NewsItem, error) {
	news, err := s.LoadNews()
	if err != nil {
		return model.NewsItem{}, err
	}
	for _, item := range news {
		if item.ID == id {
			return item, nil
		}
	}
	return model.NewsItem{}, model.ErrNewsNotFound
}

// DeleteNews removes a news item from the collection.
func (s *Store) DeleteNews(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	news, err := readCollection[model.NewsItem](s.newsPath())
	if err != nil {
		return err
	}
	kept := news[:0]
	for _, item := range news {
		if item.ID != id {
			kept = append(kept, item)
		}
	}
	if len(kept) == len(news) {
		return model.ErrNewsNotFound
	}
	return writeCollection(s.newsPath(), kept)
}

// LoadArticles returns the full article collection.
func (s *Store) LoadArticles() ([]model.Article, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return readCollection[model.Article](s.articlesPath())
}

// SaveArticles replaces the full article collection.
func (s *Store) SaveArticles(articles []model.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return writeCollection(s.articlesPath(), articles)
}

// Article looks up one article by id.
func (s *Store) Article(id string) (model.Article, error) {
	articles, err := s.LoadArticles()
	if err != nil {
		return model.Article{}, err
	}
	for _, a := range articles {
		if a.ID == id {
			return a, nil
		}
	}
	return model.Article{}, model.ErrArticleNotFound
}

// SaveArticle upserts one article via read-modify-write over the collection.
func (s *Store) SaveArticle(a model.Article) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	articles, err := readCollection[model.Article](s.articlesPath())
	if err != nil {
		return err
	}
	found := false
	for i := range articles {
		if articles[i].ID == a.ID {
			articles[i] = a
			found = true
			break
		}
	}
	if !found {
		articles = append(articles, a)
	}
	return writeCollection(s.articlesPath(), articles)
}

// DeleteArticle removes an article from the collection. Locally stored image
// files and any remote WeChat draft are left alone; remote deletion is a
// separate explicit operation.
func (s *Store) DeleteArticle(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	articles, err := readCollection[model.Article](s.articlesPath())
	if err != nil {
		return err
	}
	kept := articles[:0]
	for _, a := range articles {
		if a.ID != id {
			kept = append(kept, a)
		}
	}
	if len(kept) == len(articles) {
		return model.ErrArticleNotFound
	}
	return writeCollection(s.articlesPath(), kept)
}
