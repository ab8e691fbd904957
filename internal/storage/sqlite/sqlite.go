// sqlite встраиваемая реализация storage.Store на modernc.org/sqlite (без cgo).
package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/ewangclarkson/news-aggregator-app/internal/models"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage/sqlfilter"

	sqlitedrv "modernc.org/sqlite"
)

func init() {
	// Регистрация глобальная для драйвера и действует на все соединения.
	err := sqlitedrv.RegisterDeterministicScalarFunction(sqlfilter.FoldFunc, 1, unicodeLower)
	if err != nil {
		panic(fmt.Sprintf("storage.sqlite: register %s: %v", sqlfilter.FoldFunc, err))
	}
}

// unicodeLower реализует sqlfilter.FoldFunc тем же strings.ToLower, что и для ключевого слова.
func unicodeLower(_ *sqlitedrv.FunctionContext, args []driver.Value) (driver.Value, error) {
	switch v := args[0].(type) {
	case nil:
		return nil, nil
	case string:
		return strings.ToLower(v), nil
	case []byte:
		return strings.ToLower(string(v)), nil
	default:
		return v, nil
	}
}

const articleColumns = `id, title, content, category, source, author, description, link, image, published_at`

type Storage struct {
	db *sql.DB
}

// New открывает файл базы, включает WAL и применяет схему.
// Соединение одно: SQLite допускает одного писателя, а так upsert сериализуются.
func New(ctx context.Context, path string) (*Storage, error) {
	const op = "storage.sqlite.New"

	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}

	s := &Storage{db: db}
	if err := s.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return s, nil
}

func (s *Storage) migrate(ctx context.Context) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS articles (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL UNIQUE,
			content TEXT,
			category TEXT NOT NULL DEFAULT 'General',
			source TEXT NOT NULL,
			author TEXT,
			description TEXT,
			link TEXT,
			image TEXT,
			published_at TEXT,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_category ON articles(category);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_source ON articles(source);`,
		`CREATE INDEX IF NOT EXISTS idx_articles_published ON articles(published_at);`,
		`CREATE TABLE IF NOT EXISTS ingestion_state (
			name TEXT PRIMARY KEY,
			last_run_at TEXT NOT NULL
		);`,
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}

func (s *Storage) Upsert(ctx context.Context, a models.Article) (int64, error) {
	const op = "storage.sqlite.Upsert"

	now := time.Now().UTC().Format(sqlfilter.TimeLayout)
	var id int64
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO articles (title, content, category, source, author, description, link, image, published_at, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(title) DO UPDATE SET
			content = excluded.content,
			category = excluded.category,
			source = excluded.source,
			author = excluded.author,
			description = excluded.description,
			link = excluded.link,
			image = excluded.image,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at
		RETURNING id
	`, a.Title, a.Content, a.Category, string(a.Source), a.Author, a.Description, a.Link, a.Image,
		timeArg(a.PublishedAt), now, now).Scan(&id)
	if err != nil {
		return 0, storage.Wrap(op, err)
	}
	return id, nil
}

func (s *Storage) FindArticles(ctx context.Context, c storage.Criteria) ([]models.Article, int, error) {
	const op = "storage.sqlite.FindArticles"

	where, args := sqlfilter.Build(sqlfilter.SQLite, c)

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM articles`+where, args...).Scan(&total); err != nil {
		return nil, 0, storage.Wrap(op, fmt.Errorf("count: %w", err))
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+articleColumns+` FROM articles`+where+` ORDER BY id ASC LIMIT ? OFFSET ?`,
		append(args, c.Limit, c.Offset)...)
	if err != nil {
		return nil, 0, storage.Wrap(op, err)
	}
	defer rows.Close()

	items := make([]models.Article, 0, c.Limit)
	for rows.Next() {
		a, err := scanArticle(rows)
		if err != nil {
			return nil, 0, storage.Wrap(op, err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, storage.Wrap(op, err)
	}
	return items, total, nil
}

func (s *Storage) ArticleByID(ctx context.Context, id int64) (*models.Article, error) {
	const op = "storage.sqlite.ArticleByID"

	row := s.db.QueryRowContext(ctx, `SELECT `+articleColumns+` FROM articles WHERE id = ?`, id)
	a, err := scanArticle(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.Wrap(op, storage.ErrNotFound)
		}
		return nil, storage.Wrap(op, err)
	}
	return &a, nil
}

func (s *Storage) DistinctCategories(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "storage.sqlite.DistinctCategories", "category")
}

func (s *Storage) DistinctAuthors(ctx context.Context) ([]string, error) {
	return s.distinct(ctx, "storage.sqlite.DistinctAuthors", "author")
}

func (s *Storage) distinct(ctx context.Context, op, column string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(
		`SELECT DISTINCT %[1]s FROM articles WHERE %[1]s IS NOT NULL AND %[1]s <> '' ORDER BY %[1]s`, column))
	if err != nil {
		return nil, storage.Wrap(op, err)
	}
	defer rows.Close()

	values := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, storage.Wrap(op, err)
		}
		values = append(values, v)
	}
	if err := rows.Err(); err != nil {
		return nil, storage.Wrap(op, err)
	}
	return values, nil
}

func (s *Storage) LastRun(ctx context.Context, name string) (time.Time, bool, error) {
	const op = "storage.sqlite.LastRun"

	var raw string
	err := s.db.QueryRowContext(ctx, `SELECT last_run_at FROM ingestion_state WHERE name = ?`, name).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, storage.Wrap(op, err)
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false, storage.Wrap(op, fmt.Errorf("parse marker %q: %w", raw, err))
	}
	return t.UTC(), true, nil
}

func (s *Storage) SetLastRun(ctx context.Context, name string, at time.Time) error {
	const op = "storage.sqlite.SetLastRun"

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ingestion_state (name, last_run_at) VALUES (?, ?)
		ON CONFLICT(name) DO UPDATE SET last_run_at = excluded.last_run_at
	`, name, at.UTC().Format(time.RFC3339Nano))
	return storage.Wrap(op, err)
}

func (s *Storage) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close закрывает соединение с базой.
func (s *Storage) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanArticle(row scanner) (models.Article, error) {
	var (
		a         models.Article
		source    string
		published sql.NullString
	)
	if err := row.Scan(&a.ID, &a.Title, &a.Content, &a.Category, &source, &a.Author,
		&a.Description, &a.Link, &a.Image, &published); err != nil {
		return models.Article{}, err
	}
	a.Source = models.Source(source)

	if published.Valid {
		t, err := time.Parse(sqlfilter.TimeLayout, published.String)
		if err != nil {
			return models.Article{}, fmt.Errorf("parse published_at %q: %w", published.String, err)
		}
		a.PublishedAt = &t
	}
	return a, nil
}

func timeArg(t *time.Time) any {
	if t == nil {
		return nil
	}
	return sqlfilter.SQLite.TimeArg(*t)
}

var _ storage.Store = (*Storage)(nil)
