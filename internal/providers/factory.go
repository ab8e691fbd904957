package providers

import (
	"github.com/ewangclarkson/news-aggregator-app/internal/config"
	"github.com/ewangclarkson/news-aggregator-app/internal/fetcher"
	"github.com/ewangclarkson/news-aggregator-app/internal/storage"
)

// Deps общие зависимости адаптеров.
type Deps struct {
	Client  *fetcher.Client
	Store   storage.ArticleStore
	Archive Archiver
}

type constructor func(cfg config.ProviderConfig, deps Deps) Adapter

var constructors = map[Key]constructor{
	KeyNewsAPI:  newNewsAPI,
	KeyGuardian: newGuardian,
	KeyNYT:      newNYT,
}

// Factory создаёт адаптеры по ключу. Создание не выполняет сетевых вызовов.
type Factory struct {
	cfg  config.ProvidersConfig
	deps Deps
}

func NewFactory(cfg config.ProvidersConfig, deps Deps) *Factory {
	return &Factory{cfg: cfg, deps: deps}
}

// Create возвращает адаптер для key или *UnsupportedProviderError.
func (f *Factory) Create(key Key) (Adapter, error) {
	build, ok := constructors[key]
	if !ok {
		return nil, &UnsupportedProviderError{Key: string(key)}
	}
	pc, ok := f.cfg.For(string(key))
	if !ok {
		return nil, &UnsupportedProviderError{Key: string(key)}
	}
	return build(pc, f.deps), nil
}
