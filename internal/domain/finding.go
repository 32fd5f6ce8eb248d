package domain

import "time"

// Category classifies a finding by the audit dimension it belongs to.
type Category string

const (
	CategoryPerformance   Category = "performance"
	CategoryMobile        Category = "mobile"
	CategorySEO           Category = "seo"
	CategoryCheckout      Category = "checkout"
	CategoryLinks         Category = "links"
	CategoryAccessibility Category = "accessibility"
)

// Severity ranks how much a finding hurts the audited site.
type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityHigh     Severity = "high"
	SeverityMedium   Severity = "medium"
	SeverityLow      Severity = "low"
	SeverityInfo     Severity = "info"
)

// AllCategories returns every finding category.
func AllCategories() []Category {
	return []Category{
		CategoryPerformance,
		CategoryMobile,
		CategorySEO,
		CategoryCheckout,
		CategoryLinks,
		CategoryAccessibility,
	}
}

// AllSeverities returns every severity, most severe first.
func AllSeverities() []Severity {
	return []Severity{SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo}
}

// IsValid returns true if the severity is a known value.
func (s Severity) IsValid() bool {
	switch s {
	case SeverityCritical, SeverityHigh, SeverityMedium, SeverityLow, SeverityInfo:
		return true
	default:
		return false
	}
}

// IsValid returns true if the category is a known value.
func (c Category) IsValid() bool {
	switch c {
	case CategoryPerformance, CategoryMobile, CategorySEO, CategoryCheckout,
		CategoryLinks, CategoryAccessibility:
		return true
	default:
		return false
	}
}

// Finding represents one detected problem. Findings are append-only: analysis
// units create them and nothing ever updates them. They are removed only when
// their owning audit is deleted or restarted.
type Finding struct {
	ID              string    `db:"id" json:"id"`
	AuditID         string    `db:"audit_id" json:"audit_id"`
	PageID          *string   `db:"page_id" json:"page_id,omitempty"`
	Category        Category  `db:"category" json:"category"`
	Severity        Severity  `db:"severity" json:"severity"`
	Title           string    `db:"title" json:"title"`
	Description     string    `db:"description" json:"description"`
	Recommendation  string    `db:"recommendation" json:"recommendation"`
	AffectedElement *string   `db:"affected_element" json:"affected_element,omitempty"`
	Metadata        JSONBMap  `db:"metadata" json:"metadata,omitempty"`
	CreatedAt       time.Time `db:"created_at" json:"created_at"`
}
