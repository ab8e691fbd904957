// search отвечает на фильтрованные запросы к корпусу статей с постраничной выдачей.
// Все операции только читают хранилище.
package search

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/ewangclarkson/news-aggregator-app/internal/metrics"
	"github.com/ewangclarkson/news-aggregator-app/internal/models"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage"
)

// ErrUnavailable хранилище не ответило. Причина доступна через errors.Unwrap.
var ErrUnavailable = errors.New("unable to fetch articles, please try again later")

// InvalidQueryError запрос противоречив, например конец диапазона раньше начала.
type InvalidQueryError struct {
	Reason string
}

func (e *InvalidQueryError) Error() string {
	return "invalid query: " + e.Reason
}

type Engine struct {
	store    storage.ArticleStore
	pageSize int
	metrics  *metrics.Metrics
}

func New(store storage.ArticleStore, pageSize int, m *metrics.Metrics) *Engine {
	if pageSize < 1 {
		pageSize = 1
	}
	return &Engine{store: store, pageSize: pageSize, metrics: m}
}

func (e *Engine) PageSize() int { return e.pageSize }

// Search возвращает страницу статей, удовлетворяющих всем заданным условиям.
// Диапазон дат применяется только если заданы обе границы.
func (e *Engine) Search(ctx context.Context, q models.SearchQuery) (*models.Page, error) {
	page, err := e.search(ctx, q)
	e.metrics.ObserveSearch("search", err)
	return page, err
}

// ListForUserPreferences первая страница статей по спискам из предпочтений пользователя.
func (e *Engine) ListForUserPreferences(ctx context.Context, f models.PreferenceFilter) (*models.Page, error) {
	page, err := e.search(ctx, models.SearchQuery{
		Sources:    f.Sources,
		Categories: f.Categories,
		Authors:    f.Authors,
		Page:       1,
	})
	e.metrics.ObserveSearch("preferences", err)
	return page, err
}

func (e *Engine) search(ctx context.Context, q models.SearchQuery) (*models.Page, error) {
	page := pageNumber(q.Page)
	c, err := e.criteria(q)
	if err != nil {
		return nil, err
	}

	items, total, err := e.store.FindArticles(ctx, c)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	if items == nil {
		items = []models.Article{}
	}

	return &models.Page{
		Data: items,
		Meta: models.PageMeta{
			CurrentPage: page,
			TotalPages:  totalPages(total, e.pageSize),
			TotalItems:  total,
			PageSize:    e.pageSize,
		},
	}, nil
}

func (e *Engine) criteria(q models.SearchQuery) (storage.Criteria, error) {
	c := storage.Criteria{
		Keyword:    q.Keyword,
		Categories: q.Categories,
		Sources:    q.Sources,
		Authors:    q.Authors,
		Limit:      e.pageSize,
		Offset:     e.offset(pageNumber(q.Page)),
	}

	if q.StartDate != nil && q.EndDate != nil {
		if q.EndDate.Before(*q.StartDate) {
			return storage.Criteria{}, &InvalidQueryError{Reason: "end_date is before start_date"}
		}
		c.Published = &storage.TimeRange{From: q.StartDate.UTC(), To: q.EndDate.UTC()}
	}
	return c, nil
}

func pageNumber(page int) int {
	if page < 1 {
		return 1
	}
	return page
}

// offset смещение первой записи страницы. Для страниц, чьё смещение не помещается в int,
// берётся наибольшее кратное размеру страницы: такая страница всё равно пуста.
func (e *Engine) offset(page int) int {
	if page-1 > math.MaxInt/e.pageSize {
		return math.MaxInt / e.pageSize * e.pageSize
	}
	return (page - 1) * e.pageSize
}

func totalPages(total, size int) int {
	pages := (total + size - 1) / size
	if pages < 1 {
		return 1
	}
	return pages
}

// Filters возвращает все категории и авторов корпуса, без учёта фильтров.
func (e *Engine) Filters(ctx context.Context) (*models.FilterOptions, error) {
	categories, err := e.store.DistinctCategories(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	authors, err := e.store.DistinctAuthors(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return &models.FilterOptions{Categories: nonNil(categories), Authors: nonNil(authors)}, nil
}

// Article возвращает статью по id. Отсутствие записи отдаётся как storage.ErrNotFound.
func (e *Engine) Article(ctx context.Context, id int64) (*models.Article, error) {
	a, err := e.store.ArticleByID(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	return a, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
