// providers реализует адаптеры внешних новостных API: загрузку, нормализацию
// в models.Article и upsert в хранилище.
package providers

import (
	"context"
	"fmt"
	"net/url"

	"github.com/ewangclarkson/news-aggregator-app/internal/config"
	"github.com/ewangclarkson/news-aggregator-app/internal/fetcher"
	"github.com/ewangclarkson/news-aggregator-app/internal/logger"
	"github.com/ewangclarkson/news-aggregator-app/internal/models"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage"
)

// Key ключ провайдера.
type Key string

const (
	KeyNewsAPI  Key = config.ProviderNewsAPI
	KeyGuardian Key = config.ProviderGuardian
	KeyNYT      Key = config.ProviderNYT
)

// Keys возвращает все ключи в порядке обхода при sweep.
func Keys() []Key {
	return []Key{KeyNewsAPI, KeyGuardian, KeyNYT}
}

var sources = map[Key]models.Source{
	KeyNewsAPI:  models.SourceNewsAPI,
	KeyGuardian: models.SourceGuardian,
	KeyNYT:      models.SourceNYT,
}

// Available возвращает список поддерживаемых источников.
func Available() []models.ProviderInfo {
	keys := Keys()
	out := make([]models.ProviderInfo, 0, len(keys))
	for _, k := range keys {
		out = append(out, models.ProviderInfo{Key: string(k), Source: sources[k]})
	}
	return out
}

// Result итог одного запуска провайдера.
type Result struct {
	Fetched  int
	Upserted int
}

// Adapter один внешний провайдер. FetchArticles загружает свежие статьи и
// сохраняет их; побочный эффект целиком в хранилище.
type Adapter interface {
	Key() Key
	Source() models.Source
	FetchArticles(ctx context.Context) (Result, error)
}

// Archiver сохраняет сырой ответ провайдера. Необязателен.
type Archiver interface {
	Archive(ctx context.Context, source models.Source, body []byte) error
}

// endpoint общая часть адаптеров: адрес, ключ API и HTTP-клиент.
type endpoint struct {
	key      Key
	cfg      config.ProviderConfig
	keyParam string
	client   *fetcher.Client
	store    storage.ArticleStore
	archiver Archiver
}

func (e *endpoint) Key() Key              { return e.key }
func (e *endpoint) Source() models.Source { return sources[e.key] }

func (e *endpoint) query() url.Values {
	q := url.Values{}
	for k, v := range e.cfg.Params {
		q.Set(k, v)
	}
	if e.cfg.APIKey != "" {
		q.Set(e.keyParam, e.cfg.APIKey)
	}
	return q
}

func (e *endpoint) fetch(ctx context.Context) ([]byte, error) {
	body, err := e.client.Get(ctx, e.cfg.Endpoint, e.query())
	if err != nil {
		return nil, &FetchError{Provider: string(e.key), Err: err}
	}
	return body, nil
}

// archive сохраняет сырой ответ; сбой архива не влияет на результат провайдера.
func (e *endpoint) archive(ctx context.Context, body []byte) {
	if e.archiver == nil {
		return
	}
	if err := e.archiver.Archive(ctx, e.Source(), body); err != nil {
		logger.Provider(string(e.key)).WithError(err).Warn("Failed to archive raw payload")
	}
}

// persist сохраняет статьи по одной. При ошибке уже записанные статьи остаются.
func (e *endpoint) persist(ctx context.Context, articles []models.Article) (int, error) {
	n := 0
	for _, a := range articles {
		if _, err := e.store.Upsert(ctx, a); err != nil {
			return n, fmt.Errorf("%s: upsert %q: %w", e.key, a.Title, err)
		}
		n++
	}
	return n, nil
}
