package providers

import (
	"context"

	"github.com/ewangclarkson/news-aggregator-app/internal/config"
)

// newsAPIAdapter одношаговый адаптер NewsAPI: загрузка, разбор и upsert в одном вызове.
type newsAPIAdapter struct {
	endpoint
}

func newNewsAPI(cfg config.ProviderConfig, deps Deps) Adapter {
	return &newsAPIAdapter{endpoint{
		key:      KeyNewsAPI,
		cfg:      cfg,
		keyParam: "apiKey",
		client:   deps.Client,
		store:    deps.Store,
		archiver: deps.Archive,
	}}
}

func (a *newsAPIAdapter) FetchArticles(ctx context.Context) (Result, error) {
	body, err := a.fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	a.archive(ctx, body)

	articles, err := NormalizeNewsAPI(body)
	if err != nil {
		return Result{}, &DecodeError{Provider: string(a.key), Err: err}
	}

	n, err := a.persist(ctx, articles)
	return Result{Fetched: len(articles), Upserted: n}, err
}
