// Package scoring computes category scores, the weighted overall score, and
// the letter grade for an audit. The engine is a pure function of its input:
// it never touches storage, so it can score historical data for before/after
// comparisons as well as live audits.
package scoring

import (
	"math"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/domain"
)

// maxCategoryScore is the ceiling of every category score.
const maxCategoryScore = 100.0

// Grade cut points, shared by letter grades and labels.
const (
	gradeACutoff = 90
	gradeBCutoff = 80
	gradeCCutoff = 70
	gradeDCutoff = 60
)

// Input is everything the engine needs to score one audit.
type Input struct {
	Pages    []*domain.Page
	Findings []*domain.Finding
	Samples  []*domain.PerformanceSample
	Links    []*domain.LinkRecord
}

// Result holds the category scores, the weighted overall score, and its
// grade and label.
type Result struct {
	Categories map[domain.Category]float64 `json:"categories"`
	Overall    int                         `json:"overall"`
	Grade      string                      `json:"grade"`
	Label      string                      `json:"label"`
}

// Change describes the difference between two overall scores.
type Change struct {
	Absolute   int     `json:"absolute"`
	Percentage float64 `json:"percentage"`
	Direction  string  `json:"direction"`
}

// Engine scores audits using configured weights and severity penalties.
type Engine struct {
	cfg config.ScoringConfig
}

// NewEngine creates a scoring engine. The configuration is validated at load
// time (weights sum to 1.0), so the engine trusts it.
func NewEngine(cfg config.ScoringConfig) *Engine {
	return &Engine{cfg: cfg}
}

// Score computes all category scores and the weighted overall score.
func (e *Engine) Score(in Input) Result {
	categories := map[domain.Category]float64{
		domain.CategoryPerformance: e.PerformanceScore(in),
		domain.CategoryMobile:      e.MobileScore(in),
		domain.CategorySEO:         e.SEOScore(in),
		domain.CategoryCheckout:    e.CheckoutScore(in),
		domain.CategoryLinks:       e.LinksScore(in),
	}

	w := e.cfg.Weights
	overall := categories[domain.CategoryPerformance]*w.Performance +
		categories[domain.CategoryMobile]*w.Mobile +
		categories[domain.CategorySEO]*w.SEO +
		categories[domain.CategoryCheckout]*w.Checkout +
		categories[domain.CategoryLinks]*w.Links

	rounded := int(math.Round(overall))

	return Result{
		Categories: categories,
		Overall:    rounded,
		Grade:      Grade(rounded),
		Label:      Label(rounded),
	}
}

// PerformanceScore is the mean performance sub-score across all samples,
// both device types pooled. Zero if there are no scored samples.
func (e *Engine) PerformanceScore(in Input) float64 {
	return meanPerformance(in.Samples, nil)
}

// MobileScore blends the mean mobile performance sub-score with the
// mobile-category finding penalty. Zero if there are no mobile samples.
func (e *Engine) MobileScore(in Input) float64 {
	mobile := make([]*domain.PerformanceSample, 0, len(in.Samples))
	for _, s := range in.Samples {
		if s.DeviceType == domain.DeviceMobile {
			mobile = append(mobile, s)
		}
	}
	if len(mobile) == 0 {
		return 0
	}

	perfShare := e.cfg.MobilePerformanceShare
	perf := meanPerformance(mobile, nil)
	penalty := e.Penalty(filterCategory(in.Findings, domain.CategoryMobile))

	score := perf*perfShare + (maxCategoryScore-penalty)*(1-perfShare)
	return clampScore(score)
}

// SEOScore starts from a perfect score and subtracts the seo-category
// finding penalty. Zero if the audit discovered no pages at all.
func (e *Engine) SEOScore(in Input) float64 {
	if len(in.Pages) == 0 {
		return 0
	}

	penalty := e.Penalty(filterCategory(in.Findings, domain.CategorySEO))
	return clampScore(maxCategoryScore - penalty)
}

// CheckoutScore starts from a perfect score and subtracts the
// checkout-category finding penalty.
func (e *Engine) CheckoutScore(in Input) float64 {
	penalty := e.Penalty(filterCategory(in.Findings, domain.CategoryCheckout))
	return clampScore(maxCategoryScore - penalty)
}

// LinksScore is the working-link percentage. A page set with no links at all
// scores perfect: there is nothing to be broken.
func (e *Engine) LinksScore(in Input) float64 {
	total := len(in.Links)
	if total == 0 {
		return maxCategoryScore
	}

	broken := 0
	for _, l := range in.Links {
		if l.IsBroken {
			broken++
		}
	}

	return float64(total-broken) / float64(total) * maxCategoryScore
}

// Penalty sums the severity weights of the given findings. The sum is
// deliberately unbounded; callers clamp the resulting category score.
func (e *Engine) Penalty(findings []*domain.Finding) float64 {
	p := e.cfg.Penalties
	weights := map[domain.Severity]float64{
		domain.SeverityCritical: p.Critical,
		domain.SeverityHigh:     p.High,
		domain.SeverityMedium:   p.Medium,
		domain.SeverityLow:      p.Low,
		domain.SeverityInfo:     p.Info,
	}

	var penalty float64
	for _, f := range findings {
		penalty += weights[f.Severity]
	}

	return penalty
}

// Grade returns the letter grade for an overall score.
func Grade(score int) string {
	switch {
	case score >= gradeACutoff:
		return "A"
	case score >= gradeBCutoff:
		return "B"
	case score >= gradeCCutoff:
		return "C"
	case score >= gradeDCutoff:
		return "D"
	default:
		return "F"
	}
}

// Label returns the human-readable label for an overall score.
func Label(score int) string {
	switch {
	case score >= gradeACutoff:
		return "Excellent"
	case score >= gradeBCutoff:
		return "Good"
	case score >= gradeCCutoff:
		return "Fair"
	case score >= gradeDCutoff:
		return "Poor"
	default:
		return "Critical"
	}
}

// ScoreChange compares two overall scores.
func ScoreChange(current, previous int) Change {
	change := current - previous

	var pct float64
	if previous > 0 {
		pct = math.Round(float64(change)/float64(previous)*100*100) / 100
	}

	direction := "neutral"
	switch {
	case change > 0:
		direction = "up"
	case change < 0:
		direction = "down"
	}

	return Change{Absolute: change, Percentage: pct, Direction: direction}
}

// meanPerformance averages the performance sub-score over samples that have
// one. The filter is applied first when non-nil.
func meanPerformance(samples []*domain.PerformanceSample, filter func(*domain.PerformanceSample) bool) float64 {
	var sum float64
	var n int
	for _, s := range samples {
		if filter != nil && !filter(s) {
			continue
		}
		if s.PerformanceScore == nil {
			continue
		}
		sum += float64(*s.PerformanceScore)
		n++
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

// filterCategory returns the findings in one category.
func filterCategory(findings []*domain.Finding, category domain.Category) []*domain.Finding {
	out := make([]*domain.Finding, 0, len(findings))
	for _, f := range findings {
		if f.Category == category {
			out = append(out, f)
		}
	}
	return out
}

// clampScore bounds a category score to [0, 100].
func clampScore(score float64) float64 {
	if score < 0 {
		return 0
	}
	if score > maxCategoryScore {
		return maxCategoryScore
	}
	return score
}
