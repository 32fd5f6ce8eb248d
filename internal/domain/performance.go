package domain

import "time"

// DeviceType is the emulated device class for a performance measurement.
type DeviceType string

const (
	DeviceMobile  DeviceType = "mobile"
	DeviceDesktop DeviceType = "desktop"
)

// AllDeviceTypes returns the device types measured per page.
func AllDeviceTypes() []DeviceType {
	return []DeviceType{DeviceMobile, DeviceDesktop}
}

// PerformanceSample represents one (page, device type) performance
// measurement: Core Web Vitals plus the measurement tool's four 0-100
// sub-scores and the raw report it produced. Immutable after creation.
type PerformanceSample struct {
	ID                 string     `db:"id" json:"id"`
	PageID             string     `db:"page_id" json:"page_id"`
	AuditID            string     `db:"audit_id" json:"audit_id"`
	DeviceType         DeviceType `db:"device_type" json:"device_type"`
	LCP                *float64   `db:"lcp" json:"lcp,omitempty"`
	FID                *float64   `db:"fid" json:"fid,omitempty"`
	CLS                *float64   `db:"cls" json:"cls,omitempty"`
	FCP                *float64   `db:"fcp" json:"fcp,omitempty"`
	TTFB               *float64   `db:"ttfb" json:"ttfb,omitempty"`
	SpeedIndex         *float64   `db:"speed_index" json:"speed_index,omitempty"`
	TotalBlockingTime  *float64   `db:"total_blocking_time" json:"total_blocking_time,omitempty"`
	PerformanceScore   *int       `db:"performance_score" json:"performance_score,omitempty"`
	AccessibilityScore *int       `db:"accessibility_score" json:"accessibility_score,omitempty"`
	SEOScore           *int       `db:"seo_score" json:"seo_score,omitempty"`
	BestPracticesScore *int       `db:"best_practices_score" json:"best_practices_score,omitempty"`
	RawReport          JSONBMap   `db:"raw_report" json:"raw_report,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}
