package api

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"

	"aplose/internal/logging"
	"aplose/internal/store"
	"aplose/internal/validation"
)

// NewsStore abstracts news persistence.
type NewsStore interface {
	CreateNews(ctx context.Context, news store.News) (*store.News, error)
	UpdateNews(ctx context.Context, news store.News) (*store.News, error)
	DeleteNews(ctx context.Context, id int64) (bool, error)
	NewsByID(ctx context.Context, id int64) (*store.News, error)
	ListNews(ctx context.Context, limit, offset int) ([]store.News, error)
	CountNews(ctx context.Context) (int, error)
}

// NewsService manages site announcements. Bodies are sanitized with a
// user-generated-content policy before they are stored.
type NewsService struct {
	store    NewsStore
	policy   *bluemonday.Policy
	pageSize int
	logger   *slog.Logger
}

// NewNewsService constructs a NewsService. pageSize caps List when the
// caller passes no limit.
func NewNewsService(st NewsStore, pageSize int, logger *slog.Logger) *NewsService {
	if pageSize <= 0 {
		pageSize = 20
	}
	return &NewsService{
		store:    st,
		policy:   bluemonday.UGCPolicy(),
		pageSize: pageSize,
		logger:   logging.NewComponentLogger(logger, "news"),
	}
}

// List returns a page of articles, newest first.
func (s *NewsService) List(ctx context.Context, limit, offset int) (*NewsList, error) {
	if limit <= 0 || limit > s.pageSize {
		limit = s.pageSize
	}
	items, err := s.store.ListNews(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	count, err := s.store.CountNews(ctx)
	if err != nil {
		return nil, err
	}
	out := &NewsList{Count: count, Results: make([]NewsItem, 0, len(items))}
	for i := range items {
		out.Results = append(out.Results, FromNews(&items[i]))
	}
	return out, nil
}

func (s *NewsService) Get(ctx context.Context, id int64) (*NewsItem, error) {
	news, err := s.store.NewsByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if news == nil {
		return nil, ErrNotFound
	}
	item := FromNews(news)
	return &item, nil
}

func (s *NewsService) Create(ctx context.Context, input NewsInput) (*NewsItem, error) {
	news, err := s.toNews(input)
	if err != nil {
		return nil, err
	}
	created, err := s.store.CreateNews(ctx, news)
	if errors.Is(err, store.ErrDuplicateTitle) {
		return nil, validation.NewError("title", "unique", "title is already used by another article")
	}
	if err != nil {
		return nil, err
	}
	logging.WithContext(ctx, s.logger).Info("news created",
		logging.Int64("news_id", created.ID),
		logging.String("title", created.Title),
	)
	item := FromNews(created)
	return &item, nil
}

// Update replaces every field of an article.
func (s *NewsService) Update(ctx context.Context, id int64, input NewsInput) (*NewsItem, error) {
	news, err := s.toNews(input)
	if err != nil {
		return nil, err
	}
	news.ID = id
	updated, err := s.store.UpdateNews(ctx, news)
	if errors.Is(err, store.ErrDuplicateTitle) {
		return nil, validation.NewError("title", "unique", "title is already used by another article")
	}
	if err != nil {
		return nil, err
	}
	if updated == nil {
		return nil, ErrNotFound
	}
	item := FromNews(updated)
	return &item, nil
}

func (s *NewsService) Delete(ctx context.Context, id int64) error {
	deleted, err := s.store.DeleteNews(ctx, id)
	if err != nil {
		return err
	}
	if !deleted {
		return ErrNotFound
	}
	logging.WithContext(ctx, s.logger).Info("news deleted", logging.Int64("news_id", id))
	return nil
}

func (s *NewsService) toNews(input NewsInput) (store.News, error) {
	input.Title = strings.TrimSpace(input.Title)
	input.Intro = strings.TrimSpace(input.Intro)
	input.Vignette = strings.TrimSpace(input.Vignette)
	if verr := validation.ValidateStruct(&input); verr != nil {
		return store.News{}, verr
	}
	news := store.News{
		Title:    input.Title,
		Intro:    input.Intro,
		Body:     s.policy.Sanitize(input.Body),
		Vignette: input.Vignette,
	}
	if input.Date != "" {
		date, err := time.Parse(newsDateFormat, input.Date)
		if err != nil {
			return store.News{}, validation.NewError("date", "datetime", "date must use YYYY-MM-DD")
		}
		news.Date = &date
	}
	return news, nil
}
