package analysis

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/fetcher"
	"github.com/jonesrussell/goaudit/internal/logger"
	"github.com/jonesrussell/goaudit/testutils"
)

const guestCheckoutPage = `<html><body>
	<form><input name="email"></form>
	<a href="/checkout/guest">Continue as guest</a>
</body></html>`

func checkoutAudit() *domain.Audit {
	return &domain.Audit{ID: "audit-1", URL: "https://shop.example", Domain: "shop.example"}
}

func findingTitles(t *testing.T, repos interface {
	ListByAudit(ctx context.Context, auditID string) ([]*domain.Finding, error)
}, auditID string) []string {
	t.Helper()
	findings, err := repos.ListByAudit(context.Background(), auditID)
	require.NoError(t, err)
	titles := make([]string, 0, len(findings))
	for _, f := range findings {
		titles = append(titles, f.Title)
	}
	return titles
}

func TestCheckoutUnitHealthyFlow(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	audit := checkoutAudit()

	client := testutils.NewFakeFetcher()
	client.SetHTML("https://shop.example", `<html><body>Home</body></html>`)
	client.SetHTML("https://shop.example/cart", `<html><body>Cart</body></html>`)
	client.SetHTML("https://shop.example/checkout", guestCheckoutPage)

	unit := NewCheckoutUnit(audit, repos.Checkout, repos.Findings, client, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	steps, err := repos.Checkout.ListByAudit(context.Background(), audit.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.Equal(t, "Homepage", steps[0].StepName)
	assert.Equal(t, "Cart", steps[1].StepName)
	assert.Equal(t, "Checkout", steps[2].StepName)
	for _, step := range steps {
		assert.True(t, step.Successful)
	}

	findings, err := repos.Findings.ListByAudit(context.Background(), audit.ID)
	require.NoError(t, err)
	assert.Empty(t, findings)
}

func TestCheckoutUnitFailedStep(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	audit := checkoutAudit()

	client := testutils.NewFakeFetcher()
	client.SetHTML("https://shop.example", `<html><body>Home</body></html>`)
	client.SetError("https://shop.example/cart", errors.New("connection reset"))
	client.SetHTML("https://shop.example/checkout", guestCheckoutPage)

	unit := NewCheckoutUnit(audit, repos.Checkout, repos.Findings, client, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	steps, err := repos.Checkout.ListByAudit(context.Background(), audit.ID)
	require.NoError(t, err)
	require.Len(t, steps, 3)
	assert.False(t, steps[1].Successful)
	assert.Equal(t, domain.StringSlice{"connection reset"}, steps[1].ErrorsFound)

	titles := findingTitles(t, repos.Findings, audit.ID)
	assert.Contains(t, titles, "Checkout Flow Failed")
	assert.Contains(t, titles, "Errors in Cart")

	findings, err := repos.Findings.ListByAudit(context.Background(), audit.ID)
	require.NoError(t, err)
	for _, f := range findings {
		if f.Title == "Errors in Cart" {
			assert.Equal(t, domain.SeverityCritical, f.Severity)
			assert.Contains(t, f.Description, "connection reset")
		}
	}
}

func TestCheckoutUnitTooManySteps(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	audit := checkoutAudit()

	cfg := config.Default().Analysis
	cfg.CheckoutPaths = []string{"", "/cart", "/login", "/shipping", "/payment", "/checkout"}

	client := testutils.NewFakeFetcher()
	for _, path := range cfg.CheckoutPaths {
		html := `<html><body>Step</body></html>`
		if path == "/checkout" {
			html = guestCheckoutPage
		}
		client.SetHTML("https://shop.example"+path, html)
	}

	unit := NewCheckoutUnit(audit, repos.Checkout, repos.Findings, client, cfg, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	findings, err := repos.Findings.ListByAudit(context.Background(), audit.ID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Too Many Checkout Steps", findings[0].Title)
	assert.Equal(t, domain.SeverityMedium, findings[0].Severity)
	assert.Contains(t, findings[0].Description, "6 steps")
}

func TestCheckoutUnitExcessiveFormFields(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	audit := checkoutAudit()

	var form strings.Builder
	form.WriteString(`<html><body>Continue as guest<form>`)
	for i := 0; i < 20; i++ {
		form.WriteString(`<input type="text">`)
	}
	form.WriteString(`</form></body></html>`)

	client := testutils.NewFakeFetcher()
	client.SetHTML("https://shop.example", `<html><body>Home</body></html>`)
	client.SetHTML("https://shop.example/cart", `<html><body>Cart</body></html>`)
	client.SetHTML("https://shop.example/checkout", form.String())

	unit := NewCheckoutUnit(audit, repos.Checkout, repos.Findings, client, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	titles := findingTitles(t, repos.Findings, audit.ID)
	assert.Contains(t, titles, "Excessive Form Fields")
	assert.Contains(t, titles, "Too Many Fields in Checkout")
}

func TestCheckoutUnitSlowStep(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	audit := checkoutAudit()

	client := testutils.NewFakeFetcher()
	client.SetHTML("https://shop.example", `<html><body>Home</body></html>`)
	client.SetResult("https://shop.example/cart", &fetcher.FetchResult{
		HTML:       `<html><body>Cart</body></html>`,
		StatusCode: 200,
		LoadTime:   7 * time.Second,
	})
	client.SetHTML("https://shop.example/checkout", guestCheckoutPage)

	unit := NewCheckoutUnit(audit, repos.Checkout, repos.Findings, client, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	findings, err := repos.Findings.ListByAudit(context.Background(), audit.ID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Slow Checkout Page: Cart", findings[0].Title)
	assert.Equal(t, domain.SeverityHigh, findings[0].Severity)
	assert.Contains(t, findings[0].Description, "7000ms")
}

func TestCheckoutUnitNoGuestOption(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	audit := checkoutAudit()

	client := testutils.NewFakeFetcher()
	client.SetHTML("https://shop.example", `<html><body>Home</body></html>`)
	client.SetHTML("https://shop.example/cart", `<html><body>Cart</body></html>`)
	client.SetHTML("https://shop.example/checkout", `<html><body><a href="/register">Create an account to continue</a></body></html>`)

	unit := NewCheckoutUnit(audit, repos.Checkout, repos.Findings, client, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	findings, err := repos.Findings.ListByAudit(context.Background(), audit.ID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "No Guest Checkout Option", findings[0].Title)
	assert.Equal(t, domain.SeverityHigh, findings[0].Severity)
}

func TestCheckoutUnitHandleFailure(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	audit := checkoutAudit()

	unit := NewCheckoutUnit(audit, repos.Checkout, repos.Findings, testutils.NewFakeFetcher(), config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.HandleFailure(context.Background(), errors.New("timed out")))

	findings, err := repos.Findings.ListByAudit(context.Background(), audit.ID)
	require.NoError(t, err)
	require.Len(t, findings, 1)
	assert.Equal(t, "Checkout Flow Test Failed", findings[0].Title)
	assert.Equal(t, domain.CategoryCheckout, findings[0].Category)
}

func TestCheckoutUnitFetchesEachStepOnce(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	audit := checkoutAudit()

	client := testutils.NewFakeFetcher()
	client.SetHTML("https://shop.example", `<html><body>Home</body></html>`)
	client.SetHTML("https://shop.example/cart", `<html><body>Cart</body></html>`)
	client.SetHTML("https://shop.example/checkout", `<html><body><form><input name="email"></form>Create an account</body></html>`)

	unit := NewCheckoutUnit(audit, repos.Checkout, repos.Findings, client, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	// One fetch per step; the guest-checkout check reuses the step's HTML.
	assert.Equal(t, []string{
		"https://shop.example",
		"https://shop.example/cart",
		"https://shop.example/checkout",
	}, client.Calls)

	titles := findingTitles(t, repos.Findings, audit.ID)
	assert.Contains(t, titles, "No Guest Checkout Option")
}

func TestCheckoutUnitFailedCheckoutStepSurfaces(t *testing.T) {
	repos, _ := testutils.NewMemoryRepositories()
	audit := checkoutAudit()

	client := testutils.NewFakeFetcher()
	client.SetHTML("https://shop.example", `<html><body>Home</body></html>`)
	client.SetHTML("https://shop.example/cart", `<html><body>Cart</body></html>`)
	client.SetError("https://shop.example/checkout", errors.New("gateway timeout"))

	unit := NewCheckoutUnit(audit, repos.Checkout, repos.Findings, client, config.Default().Analysis, logger.NewNoOp())
	require.NoError(t, unit.Run(context.Background()))

	titles := findingTitles(t, repos.Findings, audit.ID)
	assert.Contains(t, titles, "Checkout Flow Failed")
	assert.Contains(t, titles, "Errors in Checkout")
	// An unreachable checkout page cannot be judged for a guest option.
	assert.NotContains(t, titles, "No Guest Checkout Option")
}
