package metrics

import (
	"context"
	"errors"
	"testing"

	"github.com/dtnitsch/seo-pipeline/models"
)

type stubProvider struct {
	err  error
	rows []models.KeywordMetrics
	rank []models.Rankings
}

func (s stubProvider) KeywordMetrics(context.Context, []string) ([]models.KeywordMetrics, error) {
	return s.rows, s.err
}

func (s stubProvider) Rankings(context.Context, string, []string) ([]models.Rankings, error) {
	return s.rank, s.err
}

func TestFallbackUsesProvider(t *testing.T) {
	p := stubProvider{
		rows: []models.KeywordMetrics{{Keyword: "SEO Audit", Volume: 1200, Difficulty: 41}},
		rank: []models.Rankings{{Keyword: "seo audit", Position: 7}},
	}
	f := WithFallback(p, p, nil)

	got, err := f.KeywordMetrics(context.Background(), []string{"seo audit", "crawl budget"})
	if err != nil {
		t.Fatalf("KeywordMetrics() error: %v", err)
	}
	if got[0].Volume != 1200 || got[0].Estimated {
		t.Errorf("provider row = %+v", got[0])
	}
	if !got[1].Estimated || got[1].Keyword != "crawl budget" {
		t.Errorf("missing row = %+v, want estimate", got[1])
	}

	ranks, _ := f.Rankings(context.Background(), "example.com", []string{"seo audit", "crawl budget"})
	if ranks[0].Position != 7 || ranks[0].Estimated {
		t.Errorf("provider rank = %+v", ranks[0])
	}
	if ranks[1].Position != 0 || !ranks[1].Estimated {
		t.Errorf("missing rank = %+v", ranks[1])
	}
}

func TestFallbackOnProviderError(t *testing.T) {
	p := stubProvider{
		err:  errors.New("quota exceeded"),
		rows: []models.KeywordMetrics{{Keyword: "seo audit", Volume: 1}},
	}
	f := WithFallback(p, nil, nil)

	got, err := f.KeywordMetrics(context.Background(), []string{"seo audit"})
	if err != nil {
		t.Fatalf("KeywordMetrics() error: %v", err)
	}
	if len(got) != 1 || !got[0].Estimated || got[0] != EstimateKeyword("seo audit") {
		t.Errorf("KeywordMetrics() = %+v, want estimate", got)
	}
	ranks, err := f.Rankings(context.Background(), "example.com", []string{"seo audit"})
	if err != nil || len(ranks) != 1 || !ranks[0].Estimated {
		t.Errorf("Rankings() = %+v, %v", ranks, err)
	}
}

func TestEstimateKeyword(t *testing.T) {
	head := EstimateKeyword("shoes")
	if other := EstimateKeyword("  Shoes "); other.Volume != head.Volume || other.Difficulty != head.Difficulty {
		t.Error("EstimateKeyword() not stable under normalization")
	}
	tail := EstimateKeyword("waterproof trail running shoes for women")
	if tail.Volume >= head.Volume {
		t.Errorf("long-tail volume %d >= head volume %d", tail.Volume, head.Volume)
	}
	for _, m := range []models.KeywordMetrics{head, tail} {
		if m.Difficulty < 0 || m.Difficulty > 100 || m.CPC <= 0 {
			t.Errorf("estimate out of range: %+v", m)
		}
	}
}

func TestRankingsFailsOnDoneContext(t *testing.T) {
	f := WithFallback(nil, stubProvider{rank: []models.Rankings{{Keyword: "seo audit", Position: 3}}}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if ranks, err := f.Rankings(ctx, "example.com", []string{"seo audit"}); !errors.Is(err, context.Canceled) || ranks != nil {
		t.Errorf("Rankings(cancelled) = %+v, %v, want context.Canceled", ranks, err)
	}
}
