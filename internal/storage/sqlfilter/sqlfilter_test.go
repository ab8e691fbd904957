package sqlfilter

import (
	"testing"
	"time"

	"github.com/ewangclarkson/news-aggregator-app/internal/storage"

	"github.com/stretchr/testify/require"
)

func TestBuild_Empty(t *testing.T) {
	where, args := Build(Postgres, storage.Criteria{Keyword: "   "})
	require.Empty(t, where)
	require.Empty(t, args)
}

func TestBuild_Postgres(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)

	where, args := Build(Postgres, storage.Criteria{
		Keyword:    "Go 100%",
		Categories: []string{"Tech", "Health"},
		Authors:    []string{"Jane Doe"},
		Published:  &storage.TimeRange{From: from, To: to},
	})

	require.Equal(t,
		` WHERE title ILIKE $1 ESCAPE '\' AND category = ANY($2) AND author = ANY($3) AND published_at BETWEEN $4 AND $5`,
		where)
	require.Equal(t, []any{`%Go 100\%%`, []string{"Tech", "Health"}, []string{"Jane Doe"}, from, to}, args)
}

func TestBuild_SQLite(t *testing.T) {
	from := time.Date(2024, 1, 1, 0, 0, 0, 0, time.FixedZone("UTC+2", 2*3600))
	to := time.Date(2024, 1, 2, 0, 0, 0, 0, time.UTC)

	where, args := Build(SQLite, storage.Criteria{
		Keyword:   "Elections",
		Sources:   []string{"NEWS_ORG", "GUARDIAN_NEWS"},
		Published: &storage.TimeRange{From: from, To: to},
	})

	require.Equal(t,
		` WHERE unicode_lower(title) LIKE ? ESCAPE '\' AND source IN (?, ?) AND published_at BETWEEN ? AND ?`,
		where)
	require.Equal(t, []any{"%elections%", "NEWS_ORG", "GUARDIAN_NEWS", "2023-12-31T22:00:00Z", "2024-01-02T00:00:00Z"}, args)
}

func TestBuild_SQLiteFoldsUnicodeKeyword(t *testing.T) {
	where, args := Build(SQLite, storage.Criteria{Keyword: "ÉLECTION"})
	require.Equal(t, ` WHERE unicode_lower(title) LIKE ? ESCAPE '\'`, where)
	require.Equal(t, []any{"%élection%"}, args)
}

func TestEscapeLike(t *testing.T) {
	require.Equal(t, `a\_b\%c\\d`, EscapeLike(`a_b%c\d`))
}
