package providers

import (
	"context"

	"github.com/ewangclarkson/news-aggregator-app/internal/config"
)

type guardianAdapter struct {
	endpoint
}

func newGuardian(cfg config.ProviderConfig, deps Deps) Adapter {
	return &guardianAdapter{endpoint{
		key:      KeyGuardian,
		cfg:      cfg,
		keyParam: "api-key",
		client:   deps.Client,
		store:    deps.Store,
		archiver: deps.Archive,
	}}
}

func (a *guardianAdapter) FetchArticles(ctx context.Context) (Result, error) {
	body, err := a.fetch(ctx)
	if err != nil {
		return Result{}, err
	}
	a.archive(ctx, body)

	articles, err := NormalizeGuardian(body)
	if err != nil {
		return Result{}, &DecodeError{Provider: string(a.key), Err: err}
	}

	n, err := a.persist(ctx, articles)
	return Result{Fetched: len(articles), Upserted: n}, err
}
