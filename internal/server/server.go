package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ewangclarkson/news-aggregator-app/internal/ingest"
	"github.com/ewangclarkson/news-aggregator-app/internal/logger"
	"github.com/ewangclarkson/news-aggregator-app/internal/models"
	"github.com/ewangclarkson/news-aggregator-app/internal/providers"
	"github.com/ewangclarkson/news-aggregator-app/internal/search"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage"
)

// Searcher операции чтения корпуса.
type Searcher interface {
	Search(ctx context.Context, q models.SearchQuery) (*models.Page, error)
	ListForUserPreferences(ctx context.Context, f models.PreferenceFilter) (*models.Page, error)
	Filters(ctx context.Context) (*models.FilterOptions, error)
	Article(ctx context.Context, id int64) (*models.Article, error)
}

// Ingestor запускает sweep через gate.
type Ingestor interface {
	Run(ctx context.Context) (ingest.Outcome, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

// DefaultIngestWait сколько POST /api/ingest ждёт итога sweep, прежде чем ответить 202.
const DefaultIngestWait = 5 * time.Second

// Server хранит зависимости HTTP-обработчиков.
type Server struct {
	search     Searcher
	ingest     Ingestor
	db         Pinger
	metrics    http.Handler
	ingestWait time.Duration
}

// NewServer создаёт Server. metrics может быть nil: тогда /metrics не регистрируется.
func NewServer(s Searcher, in Ingestor, db Pinger, metrics http.Handler) *Server {
	return &Server{search: s, ingest: in, db: db, metrics: metrics, ingestWait: DefaultIngestWait}
}

// WithIngestWait меняет время ожидания итога sweep. Должно быть меньше WriteTimeout сервера.
func (s *Server) WithIngestWait(d time.Duration) *Server {
	s.ingestWait = d
	return s
}

// Router собирает chi-роутер с middleware.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(RecoverMiddleware, RequestIDMiddleware, LoggingMiddleware)

	r.Get("/health", s.HealthCheck)
	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/articles", s.ListArticles)
		r.Post("/articles/search", s.SearchArticles)
		r.Post("/articles/preferred", s.PreferredArticles)
		r.Get("/articles/{id}", s.GetArticle)
		r.Get("/filters", s.GetFilters)
		r.Get("/sources", s.GetSources)
		r.Post("/ingest", s.TriggerIngest)
	})
	return r
}

// HealthCheck отвечает 200 OK, если хранилище доступно, иначе 503.
func (s *Server) HealthCheck(w http.ResponseWriter, r *http.Request) {
	if err := s.db.Ping(r.Context()); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "storage unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ListArticles поиск по query-параметрам:
// keyword, category, source, author (повторяемые или через запятую), start_date, end_date, page.
func (s *Server) ListArticles(w http.ResponseWriter, r *http.Request) {
	q, err := queryFromURL(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.respondSearch(w, r, q)
}

// SearchArticles тот же поиск, но критерии приходят JSON-телом.
func (s *Server) SearchArticles(w http.ResponseWriter, r *http.Request) {
	var q models.SearchQuery
	if err := decodeStrict(r, &q); err != nil {
		writeError(w, r, &search.InvalidQueryError{Reason: "malformed body: " + err.Error()})
		return
	}
	s.respondSearch(w, r, q)
}

func (s *Server) respondSearch(w http.ResponseWriter, r *http.Request, q models.SearchQuery) {
	page, err := s.search.Search(r.Context(), q)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

// PreferredArticles первая страница по спискам из предпочтений пользователя.
func (s *Server) PreferredArticles(w http.ResponseWriter, r *http.Request) {
	var f models.PreferenceFilter
	if err := decodeStrict(r, &f); err != nil {
		writeError(w, r, &search.InvalidQueryError{Reason: "malformed body: " + err.Error()})
		return
	}
	page, err := s.search.ListForUserPreferences(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func (s *Server) GetArticle(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id < 1 {
		writeError(w, r, &search.InvalidQueryError{Reason: "id must be a positive integer"})
		return
	}
	a, err := s.search.Article(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) GetFilters(w http.ResponseWriter, r *http.Request) {
	opts, err := s.search.Filters(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, opts)
}

func (s *Server) GetSources(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, providers.Available())
}

type ingestResult struct {
	outcome ingest.Outcome
	err     error
}

// TriggerIngest запускает sweep на контексте, отвязанном от запроса: обрыв соединения
// не прерывает ингест и запись маркера. Если итог готов за ingestWait, он отдаётся
// сразу (skipped 200, busy 409). Иначе ответ 202, а итог пишется в лог.
func (s *Server) TriggerIngest(w http.ResponseWriter, r *http.Request) {
	log := logger.Log.WithField("request_id", RequestIDFrom(r.Context()))

	done := make(chan ingestResult, 1)
	go func() {
		outcome, err := s.ingest.Run(context.WithoutCancel(r.Context()))
		if err != nil && !errors.Is(err, ingest.ErrSweepInProgress) {
			log.WithError(err).Error("Ingest trigger failed")
		} else {
			log.WithField("status", outcome.Status).Info("Ingest trigger finished")
		}
		done <- ingestResult{outcome: outcome, err: err}
	}()

	timer := time.NewTimer(s.ingestWait)
	defer timer.Stop()

	select {
	case res := <-done:
		if errors.Is(res.err, ingest.ErrSweepInProgress) {
			writeJSON(w, http.StatusConflict, res.outcome)
			return
		}
		if res.err != nil {
			writeJSON(w, http.StatusServiceUnavailable, errorBody{Error: "ingestion failed", Message: res.err.Error()})
			return
		}
		writeJSON(w, http.StatusOK, res.outcome)
	case <-timer.C:
		writeJSON(w, http.StatusAccepted, map[string]string{"status": "running"})
	case <-r.Context().Done():
	}
}

// Формат дат в query-параметрах: RFC3339 или просто дата.
var dateLayouts = []string{time.RFC3339, "2006-01-02"}

func parseDate(name, raw string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, &search.InvalidQueryError{Reason: name + " must be RFC3339 or YYYY-MM-DD"}
}

func listParam(v []string) []string {
	var out []string
	for _, item := range v {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func queryFromURL(r *http.Request) (models.SearchQuery, error) {
	v := r.URL.Query()
	q := models.SearchQuery{
		Keyword:    strings.TrimSpace(v.Get("keyword")),
		Categories: listParam(v["category"]),
		Sources:    listParam(v["source"]),
		Authors:    listParam(v["author"]),
	}

	var err error
	if q.StartDate, err = parseDate("start_date", v.Get("start_date")); err != nil {
		return q, err
	}
	if q.EndDate, err = parseDate("end_date", v.Get("end_date")); err != nil {
		return q, err
	}
	if raw := v.Get("page"); raw != "" {
		if q.Page, err = strconv.Atoi(raw); err != nil {
			return q, &search.InvalidQueryError{Reason: "page must be an integer"}
		}
	}
	return q, nil
}

type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// writeError переводит ошибку в HTTP-статус. Причина сбоя хранилища уходит в лог,
// клиент получает общее сообщение.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	var invalid *search.InvalidQueryError
	switch {
	case errors.As(err, &invalid):
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid query", Message: invalid.Reason})
	case errors.Is(err, storage.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorBody{Error: "article not found"})
	default:
		logger.Log.WithError(err).WithField("request_id", RequestIDFrom(r.Context())).Error("Request failed")
		writeJSON(w, http.StatusServiceUnavailable, errorBody{
			Error:   "Unable to fetch articles. Please try again later.",
			Message: "storage unavailable",
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, value any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(value)
}

// decodeStrict запрещает неизвестные поля. Пустое тело считается пустым объектом.
func decodeStrict(r *http.Request, value any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(value); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}
