package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/ewangclarkson/news-aggregator-app/internal/models"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage"

	"github.com/stretchr/testify/require"
)

func newTestStorage(t *testing.T) *Storage {
	t.Helper()
	st, err := New(context.Background(), filepath.Join(t.TempDir(), "articles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })
	return st
}

func ptr[T any](v T) *T { return &v }

func TestUpsert_InsertThenOverwrite(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()
	published := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	id1, err := st.Upsert(ctx, models.Article{
		Title:       "Same title",
		Content:     ptr("v1"),
		Category:    "Tech",
		Source:      models.SourceNewsAPI,
		Author:      ptr("Jane Doe"),
		Link:        ptr("https://example.com/1"),
		PublishedAt: &published,
	})
	require.NoError(t, err)

	id2, err := st.Upsert(ctx, models.Article{
		Title:    "Same title",
		Content:  ptr("v2"),
		Category: "Health",
		Source:   models.SourceGuardian,
	})
	require.NoError(t, err)
	require.Equal(t, id1, id2, "id must be preserved on overwrite")

	items, total, err := st.FindArticles(ctx, storage.Criteria{Limit: 10})
	require.NoError(t, err)
	require.Equal(t, 1, total)
	require.Len(t, items, 1)

	got := items[0]
	require.Equal(t, "Same title", got.Title)
	require.Equal(t, "v2", *got.Content)
	require.Equal(t, "Health", got.Category)
	require.Equal(t, models.SourceGuardian, got.Source)
	require.Nil(t, got.Author, "optional fields are replaced too, including with null")
	require.Nil(t, got.Link)
	require.Nil(t, got.PublishedAt)
}

func TestFindArticles_Filters(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	day := func(d int) *time.Time {
		v := time.Date(2024, 3, d, 12, 0, 0, 0, time.UTC)
		return &v
	}
	seed := []models.Article{
		{Title: "Go 1.23 released", Category: "Tech", Source: models.SourceNewsAPI, Author: ptr("Rob"), PublishedAt: day(1)},
		{Title: "Healthy eating", Category: "Health", Source: models.SourceGuardian, Author: ptr("Ann"), PublishedAt: day(5)},
		{Title: "GPU prices fall", Category: "Tech", Source: models.SourceNYT, PublishedAt: day(10)},
	}
	for _, a := range seed {
		_, err := st.Upsert(ctx, a)
		require.NoError(t, err)
	}

	titles := func(items []models.Article) []string {
		out := make([]string, 0, len(items))
		for _, a := range items {
			out = append(out, a.Title)
		}
		return out
	}

	tests := []struct {
		name  string
		c     storage.Criteria
		want  []string
		total int
	}{
		{
			name:  "no filters",
			c:     storage.Criteria{Limit: 10},
			want:  []string{"Go 1.23 released", "Healthy eating", "GPU prices fall"},
			total: 3,
		},
		{
			name:  "keyword is case-insensitive",
			c:     storage.Criteria{Keyword: "gpu", Limit: 10},
			want:  []string{"GPU prices fall"},
			total: 1,
		},
		{
			name:  "category membership",
			c:     storage.Criteria{Categories: []string{"Health"}, Limit: 10},
			want:  []string{"Healthy eating"},
			total: 1,
		},
		{
			name:  "source and author combine with AND",
			c:     storage.Criteria{Sources: []string{"NEWS_ORG", "GUARDIAN_NEWS"}, Authors: []string{"Ann"}, Limit: 10},
			want:  []string{"Healthy eating"},
			total: 1,
		},
		{
			name: "inclusive date range",
			c: storage.Criteria{
				Published: &storage.TimeRange{From: *day(5), To: *day(10)},
				Limit:     10,
			},
			want:  []string{"Healthy eating", "GPU prices fall"},
			total: 2,
		},
		{
			name:  "limit and offset keep total",
			c:     storage.Criteria{Limit: 1, Offset: 1},
			want:  []string{"Healthy eating"},
			total: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, total, err := st.FindArticles(ctx, tt.c)
			require.NoError(t, err)
			require.Equal(t, tt.total, total)
			require.Equal(t, tt.want, titles(items))
		})
	}
}

func TestDistinct_SkipsNull(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	for _, a := range []models.Article{
		{Title: "a", Category: "Tech", Source: models.SourceNewsAPI, Author: ptr("Rob")},
		{Title: "b", Category: "Health", Source: models.SourceNewsAPI, Author: ptr("Rob")},
		{Title: "c", Category: "Tech", Source: models.SourceNYT},
	} {
		_, err := st.Upsert(ctx, a)
		require.NoError(t, err)
	}

	cats, err := st.DistinctCategories(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Health", "Tech"}, cats)

	authors, err := st.DistinctAuthors(ctx)
	require.NoError(t, err)
	require.Equal(t, []string{"Rob"}, authors)
}

func TestArticleByID(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	id, err := st.Upsert(ctx, models.Article{Title: "x", Category: "General", Source: models.SourceNYT})
	require.NoError(t, err)

	got, err := st.ArticleByID(ctx, id)
	require.NoError(t, err)
	require.Equal(t, "x", got.Title)

	_, err = st.ArticleByID(ctx, id+100)
	require.True(t, errors.Is(err, storage.ErrNotFound))

	var perr *storage.PersistenceError
	require.False(t, errors.As(err, &perr), "not found is not a persistence failure")
}

func TestMarker(t *testing.T) {
	st := newTestStorage(t)
	ctx := context.Background()

	_, ok, err := st.LastRun(ctx, "ingestion_sweep")
	require.NoError(t, err)
	require.False(t, ok)

	at := time.Date(2024, 6, 1, 8, 30, 0, 0, time.UTC)
	require.NoError(t, st.SetLastRun(ctx, "ingestion_sweep", at))
	require.NoError(t, st.SetLastRun(ctx, "ingestion_sweep", at.Add(time.Hour)))

	got, ok, err := st.LastRun(ctx, "ingestion_sweep")
	require.NoError(t, err)
	require.True(t, ok)
	require.True(t, got.Equal(at.Add(time.Hour)))
}

func TestClosedStore_ReturnsPersistenceError(t *testing.T) {
	st, err := New(context.Background(), filepath.Join(t.TempDir(), "closed.db"))
	require.NoError(t, err)
	require.NoError(t, st.Close())

	_, err = st.Upsert(context.Background(), models.Article{Title: "t", Category: "General", Source: models.SourceNYT})
	var perr *storage.PersistenceError
	require.ErrorAs(t, err, &perr)
	require.Equal(t, "storage.sqlite.Upsert", perr.Op)
}
