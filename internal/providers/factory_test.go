package providers

import (
	"errors"
	"testing"

	"github.com/ewangclarkson/news-aggregator-app/internal/config"
	"github.com/ewangclarkson/news-aggregator-app/internal/models"

	"github.com/stretchr/testify/require"
)

func TestFactory_Create(t *testing.T) {
	f := NewFactory(config.ProvidersConfig{}, Deps{})

	tests := []struct {
		key    Key
		source models.Source
	}{
		{KeyNewsAPI, models.SourceNewsAPI},
		{KeyGuardian, models.SourceGuardian},
		{KeyNYT, models.SourceNYT},
	}
	for _, tt := range tests {
		t.Run(string(tt.key), func(t *testing.T) {
			a, err := f.Create(tt.key)
			require.NoError(t, err)
			require.Equal(t, tt.key, a.Key())
			require.Equal(t, tt.source, a.Source())
		})
	}
}

func TestFactory_Unsupported(t *testing.T) {
	f := NewFactory(config.ProvidersConfig{}, Deps{})

	a, err := f.Create("reuters")
	require.Nil(t, a)

	var unsupported *UnsupportedProviderError
	require.True(t, errors.As(err, &unsupported))
	require.Equal(t, "reuters", unsupported.Key)
}

func TestAvailable(t *testing.T) {
	got := Available()
	require.Equal(t, []models.ProviderInfo{
		{Key: "news_api", Source: models.SourceNewsAPI},
		{Key: "guardian_news", Source: models.SourceGuardian},
		{Key: "nyt_news", Source: models.SourceNYT},
	}, got)
}

func TestNYTPipelineStages(t *testing.T) {
	a, err := NewFactory(config.ProvidersConfig{}, Deps{}).Create(KeyNYT)
	require.NoError(t, err)

	nyt, ok := a.(*nytAdapter)
	require.True(t, ok)
	require.Equal(t, []string{"fetch", "archive", "normalize", "persist"}, nyt.pipeline.Stages())
}
