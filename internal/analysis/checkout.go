package analysis

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/database"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/fetcher"
	"github.com/jonesrussell/goaudit/internal/logger"
)

// checkoutStepNames maps checkout path suffixes to step names. The order of
// AnalysisConfig.CheckoutPaths drives the walk; unknown paths fall back to
// the path itself.
var checkoutStepNames = map[string]string{
	"":          "Homepage",
	"/cart":     "Cart",
	"/checkout": "Checkout",
}

// CheckoutUnit walks the site's purchase path step by step, recording a
// CheckoutStepResult per step and emitting findings for friction points:
// failed steps, too many steps, excessive form fields, slow pages, and a
// missing guest checkout option. There is exactly one checkout unit per
// audit.
type CheckoutUnit struct {
	audit    *domain.Audit
	steps    database.CheckoutRepositoryInterface
	findings FindingSink
	client   fetcher.Client
	cfg      config.AnalysisConfig
	log      logger.Interface
}

// NewCheckoutUnit creates the audit's checkout flow unit.
func NewCheckoutUnit(
	audit *domain.Audit,
	steps database.CheckoutRepositoryInterface,
	findings FindingSink,
	client fetcher.Client,
	cfg config.AnalysisConfig,
	log logger.Interface,
) *CheckoutUnit {
	return &CheckoutUnit{
		audit:    audit,
		steps:    steps,
		findings: findings,
		client:   client,
		cfg:      cfg,
		log:      log.WithComponent("analysis.checkout").WithAudit(audit.ID),
	}
}

func (u *CheckoutUnit) Kind() Kind { return KindCheckout }

func (u *CheckoutUnit) Describe() string {
	return fmt.Sprintf("checkout flow test of %s", u.audit.URL)
}

// Run visits each configured checkout path in order, persists one step
// result per path, then evaluates the flow as a whole.
func (u *CheckoutUnit) Run(ctx context.Context) error {
	base, err := url.Parse(u.audit.URL)
	if err != nil {
		return fmt.Errorf("failed to parse audit url %q: %w", u.audit.URL, err)
	}

	var (
		results      []*domain.CheckoutStepResult
		checkoutHTML string
	)

	for i, path := range u.cfg.CheckoutPaths {
		stepURL := strings.TrimRight(base.String(), "/") + path
		result, html := u.visitStep(ctx, i+1, path, stepURL)

		if err := u.steps.Create(ctx, result); err != nil {
			return fmt.Errorf("failed to store checkout step: %w", err)
		}
		results = append(results, result)

		// A failed checkout step surfaces through the step findings; the
		// guest-checkout check only applies to a page we actually got.
		if path == "/checkout" && result.Successful {
			checkoutHTML = html
		}
	}

	u.evaluateFlow(ctx, results, checkoutHTML)

	u.log.Debug("checkout flow tested", "steps", len(results))
	return nil
}

// HandleFailure records a diagnostic checkout finding for the audit.
func (u *CheckoutUnit) HandleFailure(ctx context.Context, cause error) error {
	f := newFinding(u.audit.ID, domain.CategoryCheckout, domain.SeverityHigh)
	f.Title = "Checkout Flow Test Failed"
	f.Description = fmt.Sprintf("Failed to test checkout flow: %v", cause)
	f.Recommendation = "The automated checkout test could not be completed. This may indicate issues with the checkout process or site accessibility."
	return u.findings.Create(ctx, f)
}

// visitStep fetches one checkout page and records what a shopper would hit:
// load time, form field count, and any errors. The fetched HTML is returned
// so the flow evaluation never refetches a step.
func (u *CheckoutUnit) visitStep(ctx context.Context, number int, path, stepURL string) (*domain.CheckoutStepResult, string) {
	result := &domain.CheckoutStepResult{
		ID:         uuid.New().String(),
		AuditID:    u.audit.ID,
		StepNumber: number,
		StepName:   stepName(path),
		URL:        stepURL,
		Successful: true,
		CreatedAt:  time.Now(),
	}

	res, err := u.client.Fetch(ctx, stepURL)
	if err != nil {
		result.Successful = false
		result.ErrorsFound = domain.StringSlice{err.Error()}
		return result, ""
	}

	result.LoadTimeMillis = res.LoadTime.Milliseconds()
	if res.StatusCode >= 400 {
		result.Successful = false
		result.ErrorsFound = domain.StringSlice{fmt.Sprintf("HTTP %d", res.StatusCode)}
		return result, ""
	}

	fields, err := fetcher.CountFormFields(res.HTML)
	if err != nil {
		result.ErrorsFound = append(result.ErrorsFound, fmt.Sprintf("failed to parse page: %v", err))
	}
	result.FormFieldsCount = fields

	return result, res.HTML
}

// evaluateFlow turns the recorded steps into findings.
func (u *CheckoutUnit) evaluateFlow(ctx context.Context, steps []*domain.CheckoutStepResult, checkoutHTML string) {
	totalSteps := len(steps)
	totalFields := 0
	failedSteps := 0
	for _, step := range steps {
		totalFields += step.FormFieldsCount
		if !step.Successful {
			failedSteps++
		}
	}

	if failedSteps > 0 {
		f := newFinding(u.audit.ID, domain.CategoryCheckout, domain.SeverityCritical)
		f.Title = "Checkout Flow Failed"
		f.Description = "The automated checkout test encountered errors and could not complete the flow."
		f.Recommendation = "Review the checkout process to ensure all steps are accessible and functional. Check for JavaScript errors or broken functionality."
		f.Metadata = domain.JSONBMap{"failed_steps": failedSteps, "total_steps": totalSteps}
		u.record(ctx, f)
	}

	if totalSteps > u.cfg.MaxCheckoutSteps {
		f := newFinding(u.audit.ID, domain.CategoryCheckout, domain.SeverityMedium)
		f.Title = "Too Many Checkout Steps"
		f.Description = fmt.Sprintf(
			"The checkout process has %d steps, which may increase cart abandonment.", totalSteps)
		f.Recommendation = "Consider consolidating checkout steps. Best practice is 3-4 steps maximum (Cart, Shipping/Billing, Payment, Confirmation)."
		f.Metadata = domain.JSONBMap{"steps_count": totalSteps}
		u.record(ctx, f)
	}

	if totalFields > u.cfg.MaxTotalFormFields {
		f := newFinding(u.audit.ID, domain.CategoryCheckout, domain.SeverityHigh)
		f.Title = "Excessive Form Fields"
		f.Description = fmt.Sprintf(
			"The checkout process requires %d form fields, which can lead to abandonment.", totalFields)
		f.Recommendation = "Reduce required form fields. Remove optional fields, use autofill, and consider guest checkout. Aim for 8-12 fields maximum."
		f.Metadata = domain.JSONBMap{"total_fields": totalFields}
		u.record(ctx, f)
	}

	for _, step := range steps {
		if step.FormFieldsCount > u.cfg.MaxStepFormFields {
			f := newFinding(u.audit.ID, domain.CategoryCheckout, domain.SeverityMedium)
			f.Title = fmt.Sprintf("Too Many Fields in %s", step.StepName)
			f.Description = fmt.Sprintf(
				"The '%s' step has %d form fields.", step.StepName, step.FormFieldsCount)
			f.Recommendation = "Reduce the number of required fields in this step. Consider making some fields optional or removing them entirely."
			f.Metadata = domain.JSONBMap{"step": step.StepName, "fields_count": step.FormFieldsCount}
			u.record(ctx, f)
		}

		if step.LoadTimeMillis > u.cfg.MaxStepLoadTime.Milliseconds() {
			f := newFinding(u.audit.ID, domain.CategoryCheckout, domain.SeverityHigh)
			f.Title = fmt.Sprintf("Slow Checkout Page: %s", step.StepName)
			f.Description = fmt.Sprintf(
				"The '%s' step took %dms to load.", step.StepName, step.LoadTimeMillis)
			f.Recommendation = "Optimize this checkout page for faster loading. Slow checkout pages lead to cart abandonment."
			f.Metadata = domain.JSONBMap{"step": step.StepName, "load_time": step.LoadTimeMillis}
			u.record(ctx, f)
		}

		if len(step.ErrorsFound) > 0 {
			f := newFinding(u.audit.ID, domain.CategoryCheckout, domain.SeverityCritical)
			f.Title = fmt.Sprintf("Errors in %s", step.StepName)
			f.Description = fmt.Sprintf(
				"Errors detected during '%s' step: %s", step.StepName, strings.Join(step.ErrorsFound, ", "))
			f.Recommendation = "Fix the errors preventing successful checkout completion."
			f.Metadata = domain.JSONBMap{"step": step.StepName, "errors": []string(step.ErrorsFound)}
			u.record(ctx, f)
		}
	}

	if checkoutHTML != "" && !fetcher.HasGuestCheckout(checkoutHTML) {
		f := newFinding(u.audit.ID, domain.CategoryCheckout, domain.SeverityHigh)
		f.Title = "No Guest Checkout Option"
		f.Description = "The checkout process appears to require account creation, which significantly increases cart abandonment."
		f.Recommendation = "Implement a guest checkout option. Allow users to complete purchases without creating an account. You can optionally offer account creation after purchase."
		u.record(ctx, f)
	}
}

func (u *CheckoutUnit) record(ctx context.Context, f *domain.Finding) {
	if err := u.findings.Create(ctx, f); err != nil {
		u.log.Error("failed to record finding", "title", f.Title, "error", err)
	}
}

func stepName(path string) string {
	if name, ok := checkoutStepNames[path]; ok {
		return name
	}
	return strings.Trim(path, "/")
}
