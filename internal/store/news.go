package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// ErrDuplicateTitle reports a news title that is already in use.
var ErrDuplicateTitle = errors.New("news title already exists")

const newsColumns = "id, title, intro, body, date, vignette"

func scanNews(scanner rowScanner) (*News, error) {
	var (
		news News
		date sql.NullString
	)
	if err := scanner.Scan(&news.ID, &news.Title, &news.Intro, &news.Body, &date, &news.Vignette); err != nil {
		return nil, err
	}
	news.Date = timePtr(date)
	return &news, nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// newsDate stores only the calendar day.
func newsDate(news News) any {
	if news.Date == nil {
		return nil
	}
	return news.Date.UTC().Format("2006-01-02")
}

func (s *Store) CreateNews(ctx context.Context, news News) (*News, error) {
	id, err := s.insertWithRetry(ctx,
		`INSERT INTO news (title, intro, body, date, vignette) VALUES (?, ?, ?, ?, ?)`,
		news.Title, news.Intro, news.Body, newsDate(news), news.Vignette)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateTitle
	}
	if err != nil {
		return nil, fmt.Errorf("insert news: %w", err)
	}
	news.ID = id
	return &news, nil
}

// UpdateNews overwrites every field of an existing article. It returns
// (nil, nil) when the article does not exist.
func (s *Store) UpdateNews(ctx context.Context, news News) (*News, error) {
	res, err := s.execWithRetry(ctx,
		`UPDATE news SET title = ?, intro = ?, body = ?, date = ?, vignette = ? WHERE id = ?`,
		news.Title, news.Intro, news.Body, newsDate(news), news.Vignette, news.ID)
	if isUniqueViolation(err) {
		return nil, ErrDuplicateTitle
	}
	if err != nil {
		return nil, fmt.Errorf("update news: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.NewsByID(ctx, news.ID)
}

// DeleteNews removes an article and reports whether it existed.
func (s *Store) DeleteNews(ctx context.Context, id int64) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM news WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete news: %w", err)
	}
	n, _ := res.RowsAffected()
	return n > 0, nil
}

func (s *Store) NewsByID(ctx context.Context, id int64) (*News, error) {
	row := s.db.QueryRowContext(ensureContext(ctx), `SELECT `+newsColumns+` FROM news WHERE id = ?`, id)
	news, err := scanNews(row)
	if noRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("news by id: %w", err)
	}
	return news, nil
}

// ListNews returns articles newest first; undated articles come last.
// A non-positive limit returns everything after offset.
func (s *Store) ListNews(ctx context.Context, limit, offset int) ([]News, error) {
	if limit <= 0 {
		limit = -1
	}
	if offset < 0 {
		offset = 0
	}
	rows, err := s.db.QueryContext(ensureContext(ctx), `
		SELECT `+newsColumns+` FROM news
		ORDER BY date IS NULL, date DESC, id DESC
		LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list news: %w", err)
	}
	defer rows.Close()

	items := []News{}
	for rows.Next() {
		news, err := scanNews(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, *news)
	}
	return items, rows.Err()
}

// CountNews returns the number of stored articles.
func (s *Store) CountNews(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM news`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count news: %w", err)
	}
	return count, nil
}
