package domain

import "time"

// CheckoutStepResult represents one step of the simulated checkout flow,
// ordered by StepNumber. Created by the checkout analysis unit, immutable.
type CheckoutStepResult struct {
	ID              string      `db:"id" json:"id"`
	AuditID         string      `db:"audit_id" json:"audit_id"`
	StepNumber      int         `db:"step_number" json:"step_number"`
	StepName        string      `db:"step_name" json:"step_name"`
	URL             string      `db:"url" json:"url"`
	ScreenshotPath  *string     `db:"screenshot_path" json:"screenshot_path,omitempty"`
	FormFieldsCount int         `db:"form_fields_count" json:"form_fields_count"`
	LoadTimeMillis  int64       `db:"load_time_ms" json:"load_time_ms"`
	Successful      bool        `db:"successful" json:"successful"`
	ErrorsFound     StringSlice `db:"errors_found" json:"errors_found,omitempty"`
	CreatedAt       time.Time   `db:"created_at" json:"created_at"`
}
