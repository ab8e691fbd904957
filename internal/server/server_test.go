package server_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/golang/mock/gomock"
	"github.com/stretchr/testify/require"

	"github.com/ewangclarkson/news-aggregator-app/internal/ingest"
	"github.com/ewangclarkson/news-aggregator-app/internal/models"
	"github.com/ewangclarkson/news-aggregator-app/internal/search"
	"github.com/ewangclarkson/news-aggregator-app/internal/server"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage/sqlite"
	"github.com/ewangclarkson/news-aggregator-app/mocks"
)

type fakeIngestor struct {
	outcome ingest.Outcome
	err     error
}

func (f *fakeIngestor) Run(context.Context) (ingest.Outcome, error) { return f.outcome, f.err }

func ptr[T any](v T) *T { return &v }

func setupServer(t *testing.T, in server.Ingestor) http.Handler {
	t.Helper()
	st, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "articles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	day := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	for _, a := range []models.Article{
		{Title: "Chips are back", Category: "Tech", Source: models.SourceNewsAPI, Author: ptr("Jane Doe"), PublishedAt: &day},
		{Title: "Heatwave warning", Category: "Health", Source: models.SourceGuardian, Author: ptr("John Roe")},
		{Title: "Markets rally", Category: "Business", Source: models.SourceNYT},
	} {
		_, err := st.Upsert(context.Background(), a)
		require.NoError(t, err)
	}

	if in == nil {
		in = &fakeIngestor{}
	}
	return server.NewServer(search.New(st, 2, nil), in, st, nil).Router()
}

func do(t *testing.T, h http.Handler, method, target, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func decodePage(t *testing.T, w *httptest.ResponseRecorder) models.Page {
	t.Helper()
	var p models.Page
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &p))
	return p
}

func TestHealthCheck(t *testing.T) {
	h := setupServer(t, nil)

	w := do(t, h, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.NotEmpty(t, w.Header().Get(server.RequestIDHeader))
}

func TestRequestIDIsEchoed(t *testing.T) {
	h := setupServer(t, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(server.RequestIDHeader, "abc-123")
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, "abc-123", w.Header().Get(server.RequestIDHeader))
}

func TestListArticles(t *testing.T) {
	h := setupServer(t, nil)

	t.Run("first page", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/api/articles", "")
		require.Equal(t, http.StatusOK, w.Code)

		p := decodePage(t, w)
		require.Len(t, p.Data, 2)
		require.Equal(t, models.PageMeta{CurrentPage: 1, TotalPages: 2, TotalItems: 3, PageSize: 2}, p.Meta)
	})

	t.Run("filters", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/api/articles?category=Health,Business&keyword=warn", "")
		require.Equal(t, http.StatusOK, w.Code)

		p := decodePage(t, w)
		require.Len(t, p.Data, 1)
		require.Equal(t, "Heatwave warning", p.Data[0].Title)
	})

	t.Run("beyond last page", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/api/articles?page=9", "")
		require.Equal(t, http.StatusOK, w.Code)
		require.JSONEq(t, `{"data":[],"meta":{"current_page":9,"total_pages":2,"total_items":3,"items_per_page":2}}`, w.Body.String())
	})

	t.Run("bad date", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/api/articles?start_date=yesterday", "")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})

	t.Run("end before start", func(t *testing.T) {
		w := do(t, h, http.MethodGet, "/api/articles?start_date=2024-05-02&end_date=2024-05-01", "")
		require.Equal(t, http.StatusBadRequest, w.Code)
	})
}

func TestSearchArticles(t *testing.T) {
	h := setupServer(t, nil)

	w := do(t, h, http.MethodPost, "/api/articles/search", `{"sources":["NEWS_ORG"],"start_date":"2024-05-01T00:00:00Z","end_date":"2024-05-02T00:00:00Z"}`)
	require.Equal(t, http.StatusOK, w.Code)
	p := decodePage(t, w)
	require.Len(t, p.Data, 1)
	require.Equal(t, "Chips are back", p.Data[0].Title)

	w = do(t, h, http.MethodPost, "/api/articles/search", `{"unknown":1}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestPreferredArticles(t *testing.T) {
	h := setupServer(t, nil)

	w := do(t, h, http.MethodPost, "/api/articles/preferred", `{"authors":["John Roe","Jane Doe"]}`)
	require.Equal(t, http.StatusOK, w.Code)
	p := decodePage(t, w)
	require.Len(t, p.Data, 2)
	require.Equal(t, 1, p.Meta.CurrentPage)
}

func TestGetArticle(t *testing.T) {
	h := setupServer(t, nil)

	w := do(t, h, http.MethodGet, "/api/articles/1", "")
	require.Equal(t, http.StatusOK, w.Code)
	var a models.Article
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &a))
	require.Equal(t, "Chips are back", a.Title)

	require.Equal(t, http.StatusNotFound, do(t, h, http.MethodGet, "/api/articles/999", "").Code)
	require.Equal(t, http.StatusBadRequest, do(t, h, http.MethodGet, "/api/articles/abc", "").Code)
}

func TestGetFiltersAndSources(t *testing.T) {
	h := setupServer(t, nil)

	w := do(t, h, http.MethodGet, "/api/filters", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"categories":["Business","Health","Tech"],"authors":["Jane Doe","John Roe"]}`, w.Body.String())

	w = do(t, h, http.MethodGet, "/api/sources", "")
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"nyt_news"`)
}

func TestTriggerIngest(t *testing.T) {
	tests := []struct {
		name string
		in   *fakeIngestor
		code int
	}{
		{name: "ran", in: &fakeIngestor{outcome: ingest.Outcome{Status: ingest.StatusRan}}, code: http.StatusOK},
		{name: "skipped", in: &fakeIngestor{outcome: ingest.Outcome{Status: ingest.StatusSkipped}}, code: http.StatusOK},
		{name: "busy", in: &fakeIngestor{outcome: ingest.Outcome{Status: ingest.StatusBusy}, err: ingest.ErrSweepInProgress}, code: http.StatusConflict},
		{name: "marker failure", in: &fakeIngestor{err: errors.New("db down")}, code: http.StatusServiceUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupServer(t, tt.in)
			w := do(t, h, http.MethodPost, "/api/ingest", "")
			require.Equal(t, tt.code, w.Code)
		})
	}
}

type slowIngestor struct {
	release chan struct{}
	ctxErr  chan error
}

func (s *slowIngestor) Run(ctx context.Context) (ingest.Outcome, error) {
	<-s.release
	s.ctxErr <- ctx.Err()
	return ingest.Outcome{Status: ingest.StatusRan}, nil
}

func TestTriggerIngest_LongSweepAccepted(t *testing.T) {
	st, err := sqlite.New(context.Background(), filepath.Join(t.TempDir(), "articles.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	in := &slowIngestor{release: make(chan struct{}), ctxErr: make(chan error, 1)}
	h := server.NewServer(search.New(st, 2, nil), in, st, nil).WithIngestWait(20 * time.Millisecond).Router()

	ctx, cancel := context.WithCancel(context.Background())
	req := httptest.NewRequest(http.MethodPost, "/api/ingest", nil).WithContext(ctx)
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	require.Equal(t, http.StatusAccepted, w.Code)
	require.JSONEq(t, `{"status":"running"}`, w.Body.String())

	// Sweep продолжается после ухода клиента.
	cancel()
	close(in.release)
	select {
	case err := <-in.ctxErr:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("sweep did not finish")
	}
}

func TestStoreUnavailable(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockArticleStore(ctrl)
	store.EXPECT().FindArticles(gomock.Any(), gomock.Any()).Return(nil, 0, errors.New("connection refused"))
	store.EXPECT().Ping(gomock.Any()).Return(errors.New("connection refused"))

	h := server.NewServer(search.New(store, 10, nil), &fakeIngestor{}, store, nil).Router()

	w := do(t, h, http.MethodGet, "/api/articles", "")
	require.Equal(t, http.StatusServiceUnavailable, w.Code)
	require.Contains(t, w.Body.String(), "Unable to fetch articles. Please try again later.")
	require.NotContains(t, w.Body.String(), "connection refused")

	require.Equal(t, http.StatusServiceUnavailable, do(t, h, http.MethodGet, "/health", "").Code)
}
