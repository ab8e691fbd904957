package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/ewangclarkson/news-aggregator-app/internal/models"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage/sqlfilter"

	"github.com/jackc/pgx/v5"
)

const articleColumns = `id, title, content, category, source, author, description, link, image, published_at`

// Upsert вставляет статью или перезаписывает существующую с тем же title одним
// оператором, поэтому параллельные записи одного заголовка не теряют обновлений.
func (s *Storage) Upsert(ctx context.Context, a models.Article) (int64, error) {
	const op = "storage.postgres.Upsert"

	var published *time.Time
	if a.PublishedAt != nil {
		t := a.PublishedAt.UTC()
		published = &t
	}

	var id int64
	err := s.db.QueryRow(ctx, `
		INSERT INTO articles (title, content, category, source, author, description, link, image, published_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (title) DO UPDATE SET
			content = EXCLUDED.content,
			category = EXCLUDED.category,
			source = EXCLUDED.source,
			author = EXCLUDED.author,
			description = EXCLUDED.description,
			link = EXCLUDED.link,
			image = EXCLUDED.image,
			published_at = EXCLUDED.published_at,
			updated_at = now()
		RETURNING id
	`, a.Title, a.Content, a.Category, string(a.Source), a.Author, a.Description, a.Link, a.Image, published).Scan(&id)
	if err != nil {
		return 0, wrap(op, err)
	}
	return id, nil
}

// FindArticles возвращает страницу статей по критериям и общее число совпадений.
// Порядок по id стабилен между запросами.
func (s *Storage) FindArticles(ctx context.Context, c storage.Criteria) ([]models.Article, int, error) {
	const op = "storage.postgres.FindArticles"

	where, args := sqlfilter.Build(sqlfilter.Postgres, c)

	var total int
	if err := s.db.QueryRow(ctx, `SELECT COUNT(*) FROM articles`+where, args...).Scan(&total); err != nil {
		return nil, 0, wrap(op, fmt.Errorf("count: %w", err))
	}

	n := len(args)
	query := fmt.Sprintf(`SELECT %s FROM articles%s ORDER BY id ASC LIMIT %s OFFSET %s`,
		articleColumns, where, sqlfilter.Postgres.Placeholder(n+1), sqlfilter.Postgres.Placeholder(n+2))

	rows, err := s.db.Query(ctx, query, append(args, c.Limit, c.Offset)...)
	if err != nil {
		return nil, 0, wrap(op, err)
	}
	defer rows.Close()

	items := make([]models.Article, 0, c.Limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, wrap(op, fmt.Errorf("scan row: %w", err))
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, wrap(op, err)
	}
	return items, total, nil
}

// ArticleByID возвращает статью по id или storage.ErrNotFound.
func (s *Storage) ArticleByID(ctx context.Context, id int64) (*models.Article, error) {
	const op = "storage.postgres.ArticleByID"

	a, err := scanArticle(s.db.QueryRow(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, storage.Wrap(op, storage.ErrNotFound)
		}
		return nil, wrap(op, err)
	}
	return &a, nil
}

func (s *Storage) DistinctCategories(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "storage.postgres.DistinctCategories",
		`SELECT DISTINCT category FROM articles WHERE category IS NOT NULL AND category <> '' ORDER BY category`)
}

func (s *Storage) DistinctAuthors(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "storage.postgres.DistinctAuthors",
		`SELECT DISTINCT author FROM articles WHERE author IS NOT NULL AND author <> '' ORDER BY author`)
}

func (s *Storage) distinct(ctx context.Context, op, query string) ([]string, error) {
	rows, err := s.db.Query(ctx, query)
	if err != nil {
		return nil, wrap(op, err)
	}

	values, err := pgx.CollectRows(rows, pgx.RowTo[string])
	if err != nil {
		return nil, wrap(op, err)
	}
	if values == nil {
		values = []string{}
	}
	return values, nil
}

func scanArticle(row pgx.Row) (models.Article, error) {
	var (
		a      models.Article
		source string
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Category, &source, &a.Author,
		&a.Description, &a.Link, &a.Image, &a.PublishedAt); err != nil {
		return models.Article{}, err
	}
	a.Source = models.Source(source)
	if a.PublishedAt != nil {
		t := a.PublishedAt.UTC()
		a.PublishedAt = &t
	}
	return a, nil
}
