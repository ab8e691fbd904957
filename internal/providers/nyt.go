package providers

import (
	"context"

	"github.com/ewangclarkson/news-aggregator-app/internal/config"
	"github.com/ewangclarkson/news-aggregator-app/internal/logger"
	"github.com/ewangclarkson/news-aggregator-app/internal/models"
)

// nytAdapter многошаговый провайдер: fetch -> archive -> normalize -> persist.
type nytAdapter struct {
	endpoint
	pipeline *Pipeline
}

func newNYT(cfg config.ProviderConfig, deps Deps) Adapter {
	a := &nytAdapter{endpoint: endpoint{
		key:      KeyNYT,
		cfg:      cfg,
		keyParam: "api-key",
		client:   deps.Client,
		store:    deps.Store,
		archiver: deps.Archive,
	}}
	a.pipeline = NewPipeline(
		NamedStage{Name: "fetch", Run: a.fetchStage},
		NamedStage{Name: "archive", Run: a.archiveStage},
		NamedStage{Name: "normalize", Run: a.normalizeStage},
		NamedStage{Name: "persist", Run: a.persistStage},
	)
	return a
}

func (a *nytAdapter) FetchArticles(ctx context.Context) (Result, error) {
	acc, err := a.pipeline.Process(ctx, Accumulator{})
	return Result{Fetched: len(acc.Articles), Upserted: acc.Upserted}, err
}

// fetchStage игнорирует вход и возвращает список сырых документов.
func (a *nytAdapter) fetchStage(ctx context.Context, _ Accumulator) (Accumulator, error) {
	body, err := a.fetch(ctx)
	if err != nil {
		return Accumulator{}, err
	}
	docs, err := DecodeNYTDocs(body)
	if err != nil {
		return Accumulator{}, &DecodeError{Provider: string(a.key), Err: err}
	}
	return Accumulator{Payload: body, Items: docs}, nil
}

func (a *nytAdapter) archiveStage(ctx context.Context, acc Accumulator) (Accumulator, error) {
	a.archive(ctx, acc.Payload)
	return acc, nil
}

func (a *nytAdapter) normalizeStage(_ context.Context, acc Accumulator) (Accumulator, error) {
	articles := make([]models.Article, 0, len(acc.Items))
	for i, raw := range acc.Items {
		article, ok, err := NormalizeNYTDoc(raw)
		if err != nil {
			return acc, &DecodeError{Provider: string(a.key), Err: err}
		}
		if !ok {
			logger.Provider(string(a.key)).WithField("index", i).Debug("Skipping document without headline")
			continue
		}
		articles = append(articles, article)
	}
	acc.Articles = articles
	return acc, nil
}

func (a *nytAdapter) persistStage(ctx context.Context, acc Accumulator) (Accumulator, error) {
	n, err := a.persist(ctx, acc.Articles)
	acc.Upserted = n
	return acc, err
}
