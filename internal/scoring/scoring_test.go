package scoring

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/domain"
)

func testEngine(t *testing.T) *Engine {
	t.Helper()
	cfg := config.Default()
	require.NoError(t, cfg.Validate())
	return NewEngine(cfg.Scoring)
}

func intPtr(v int) *int { return &v }

func sample(device domain.DeviceType, score int) *domain.PerformanceSample {
	return &domain.PerformanceSample{
		DeviceType:       device,
		PerformanceScore: intPtr(score),
	}
}

func finding(category domain.Category, severity domain.Severity) *domain.Finding {
	return &domain.Finding{Category: category, Severity: severity}
}

func TestLinksScore(t *testing.T) {
	engine := testEngine(t)

	tests := []struct {
		name   string
		total  int
		broken int
		want   float64
	}{
		{"no links scores perfect", 0, 0, 100},
		{"three of ten broken", 10, 3, 70.0},
		{"all broken", 4, 4, 0},
		{"none broken", 7, 0, 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var links []*domain.LinkRecord
			for i := 0; i < tt.total; i++ {
				links = append(links, &domain.LinkRecord{IsBroken: i < tt.broken})
			}
			got := engine.LinksScore(Input{Links: links})
			assert.InDelta(t, tt.want, got, 1e-9)
		})
	}
}

func TestMobileScore(t *testing.T) {
	engine := testEngine(t)

	t.Run("blends performance and penalty shares", func(t *testing.T) {
		in := Input{Samples: []*domain.PerformanceSample{sample(domain.DeviceMobile, 80)}}
		assert.InDelta(t, 88.0, engine.MobileScore(in), 1e-9)
	})

	t.Run("zero without mobile samples", func(t *testing.T) {
		in := Input{Samples: []*domain.PerformanceSample{sample(domain.DeviceDesktop, 95)}}
		assert.Zero(t, engine.MobileScore(in))
	})

	t.Run("mobile findings reduce the penalty share", func(t *testing.T) {
		in := Input{
			Samples:  []*domain.PerformanceSample{sample(domain.DeviceMobile, 80)},
			Findings: []*domain.Finding{finding(domain.CategoryMobile, domain.SeverityCritical)},
		}
		// 0.60*80 + 0.40*(100-20) = 80.0
		assert.InDelta(t, 80.0, engine.MobileScore(in), 1e-9)
	})
}

func TestSEOScore(t *testing.T) {
	engine := testEngine(t)

	t.Run("zero without pages", func(t *testing.T) {
		assert.Zero(t, engine.SEOScore(Input{}))
	})

	t.Run("penalties subtract from 100", func(t *testing.T) {
		in := Input{
			Pages: []*domain.Page{{}},
			Findings: []*domain.Finding{
				finding(domain.CategorySEO, domain.SeverityHigh),
				finding(domain.CategorySEO, domain.SeverityMedium),
				finding(domain.CategorySEO, domain.SeverityLow),
			},
		}
		assert.InDelta(t, 83.0, engine.SEOScore(in), 1e-9)
	})

	t.Run("clamped at zero", func(t *testing.T) {
		in := Input{Pages: []*domain.Page{{}}}
		for i := 0; i < 10; i++ {
			in.Findings = append(in.Findings, finding(domain.CategorySEO, domain.SeverityCritical))
		}
		assert.Zero(t, engine.SEOScore(in))
	})
}

func TestPerformanceScorePoolsDevices(t *testing.T) {
	engine := testEngine(t)

	in := Input{Samples: []*domain.PerformanceSample{
		sample(domain.DeviceMobile, 60),
		sample(domain.DeviceDesktop, 90),
	}}
	assert.InDelta(t, 75.0, engine.PerformanceScore(in), 1e-9)

	assert.Zero(t, engine.PerformanceScore(Input{}))
}

func TestPenaltyIsUnbounded(t *testing.T) {
	engine := testEngine(t)

	var findings []*domain.Finding
	for i := 0; i < 8; i++ {
		findings = append(findings, finding(domain.CategorySEO, domain.SeverityCritical))
	}
	assert.InDelta(t, 160.0, engine.Penalty(findings), 1e-9)
}

func TestScoreDeterministicAndBounded(t *testing.T) {
	engine := testEngine(t)

	in := Input{
		Pages: []*domain.Page{{}, {}},
		Samples: []*domain.PerformanceSample{
			sample(domain.DeviceMobile, 55),
			sample(domain.DeviceDesktop, 70),
		},
		Findings: []*domain.Finding{
			finding(domain.CategorySEO, domain.SeverityHigh),
			finding(domain.CategoryCheckout, domain.SeverityCritical),
			finding(domain.CategoryLinks, domain.SeverityMedium),
			finding(domain.CategoryMobile, domain.SeverityMedium),
		},
		Links: []*domain.LinkRecord{{IsBroken: true}, {}, {}, {}},
	}

	first := engine.Score(in)
	for i := 0; i < 50; i++ {
		assert.Equal(t, first, engine.Score(in))
	}

	assert.GreaterOrEqual(t, first.Overall, 0)
	assert.LessOrEqual(t, first.Overall, 100)
	for category, score := range first.Categories {
		assert.GreaterOrEqualf(t, score, 0.0, "category %s below zero", category)
		assert.LessOrEqualf(t, score, 100.0, "category %s above 100", category)
	}
}

func TestGradeAndLabel(t *testing.T) {
	tests := []struct {
		score int
		grade string
		label string
	}{
		{95, "A", "Excellent"},
		{90, "A", "Excellent"},
		{89, "B", "Good"},
		{80, "B", "Good"},
		{79, "C", "Fair"},
		{70, "C", "Fair"},
		{69, "D", "Poor"},
		{60, "D", "Poor"},
		{59, "F", "Critical"},
		{0, "F", "Critical"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.grade, Grade(tt.score), "score %d", tt.score)
		assert.Equal(t, tt.label, Label(tt.score), "score %d", tt.score)
	}
}

func TestScoreChange(t *testing.T) {
	tests := []struct {
		name      string
		current   int
		previous  int
		absolute  int
		direction string
	}{
		{"improvement", 85, 70, 15, "up"},
		{"regression", 60, 80, -20, "down"},
		{"no change", 75, 75, 0, "neutral"},
		{"previous zero", 50, 0, 50, "up"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			change := ScoreChange(tt.current, tt.previous)
			assert.Equal(t, tt.absolute, change.Absolute)
			assert.Equal(t, tt.direction, change.Direction)
		})
	}
}
