// storage определяет контракты хранилища статей и маркера последнего sweep.
package storage

//go:generate mockgen -destination=../../mocks/mock_storage.go -package=mocks github.com/ewangclarkson/news-aggregator-app/internal/storage ArticleStore,MarkerStore

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ewangclarkson/news-aggregator-app/internal/models"
)

var (
	// ErrNotFound сущность отсутствует в хранилище.
	ErrNotFound = errors.New("not found")
	// ErrConstraint нарушено ограничение целостности.
	ErrConstraint = errors.New("constraint violation")
)

// PersistenceError хранилище недоступно или отклонило запись.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("%s: persistence failure: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }

// Wrap оборачивает ошибку драйвера в PersistenceError. ErrNotFound остаётся как есть,
// чтобы вызывающий мог отличить отсутствие записи от сбоя.
func Wrap(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, ErrNotFound) {
		return fmt.Errorf("%s: %w", op, err)
	}
	return &PersistenceError{Op: op, Err: err}
}

// TimeRange включительный диапазон дат публикации.
type TimeRange struct {
	From time.Time
	To   time.Time
}

// Criteria набор условий выборки, объединяемых через AND.
// Пустая строка или пустой список не ограничивают выборку.
type Criteria struct {
	Keyword    string
	Categories []string
	Sources    []string
	Authors    []string
	Published  *TimeRange
	Limit      int
	Offset     int
}

// ArticleStore операции над статьями.
type ArticleStore interface {
	// Upsert ищет статью по заголовку: если есть, заменяет все остальные поля
	// (id и title сохраняются), иначе вставляет новую. Возвращает id записи.
	Upsert(ctx context.Context, a models.Article) (int64, error)
	// FindArticles возвращает страницу статей, упорядоченных по id, и общее число совпадений.
	FindArticles(ctx context.Context, c Criteria) ([]models.Article, int, error)
	// ArticleByID возвращает статью или ErrNotFound.
	ArticleByID(ctx context.Context, id int64) (*models.Article, error)
	DistinctCategories(ctx context.Context) ([]string, error)
	DistinctAuthors(ctx context.Context) ([]string, error)
	Ping(ctx context.Context) error
}

// MarkerStore хранит время старта последнего sweep.
type MarkerStore interface {
	// LastRun возвращает время и признак наличия маркера.
	LastRun(ctx context.Context, name string) (time.Time, bool, error)
	SetLastRun(ctx context.Context, name string, at time.Time) error
}

// Store полный контракт бэкенда хранения.
type Store interface {
	ArticleStore
	MarkerStore
	Close() error
}
