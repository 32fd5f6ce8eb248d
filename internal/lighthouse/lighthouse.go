// Package lighthouse runs the Lighthouse CLI to capture Core Web Vitals and
// category scores for a URL under mobile or desktop emulation.
package lighthouse

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"os/exec"

	"github.com/jonesrussell/goaudit/internal/config"
	"github.com/jonesrussell/goaudit/internal/domain"
	"github.com/jonesrussell/goaudit/internal/logger"
)

// Measurement is one Lighthouse run. Metric pointers are nil when Lighthouse
// did not report the metric; times are seconds, scores 0-100.
type Measurement struct {
	LCP                *float64
	FID                *float64
	CLS                *float64
	FCP                *float64
	TTFB               *float64
	SpeedIndex         *float64
	TotalBlockingTime  *float64
	PerformanceScore   *int
	AccessibilityScore *int
	SEOScore           *int
	BestPracticesScore *int
	RawReport          map[string]any
}

// Measurer captures a performance measurement for a URL on a device class.
type Measurer interface {
	Measure(ctx context.Context, url string, device domain.DeviceType) (*Measurement, error)
}

// CLIMeasurer shells out to the lighthouse binary.
type CLIMeasurer struct {
	cfg config.LighthouseConfig
	log logger.Interface
}

// NewCLIMeasurer creates a Measurer backed by the Lighthouse CLI.
func NewCLIMeasurer(cfg config.LighthouseConfig, log logger.Interface) *CLIMeasurer {
	return &CLIMeasurer{cfg: cfg, log: log.WithComponent("lighthouse")}
}

// Measure runs Lighthouse against url with the emulation preset for device
// and parses the JSON report from stdout.
func (m *CLIMeasurer) Measure(ctx context.Context, url string, device domain.DeviceType) (*Measurement, error) {
	if m.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.cfg.Timeout)
		defer cancel()
	}

	args := []string{
		url,
		"--output=json",
		"--output-path=stdout",
		"--quiet",
		"--chrome-flags=--headless --no-sandbox --disable-gpu",
	}
	if device == domain.DeviceDesktop {
		args = append(args, "--preset=desktop")
	} else {
		args = append(args, "--form-factor=mobile")
	}
	if m.cfg.ChromePath != "" {
		args = append(args, "--chrome-path="+m.cfg.ChromePath)
	}

	cmd := exec.CommandContext(ctx, m.cfg.BinaryPath, args...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	m.log.Debug("running lighthouse", "url", url, "device", device)
	if err := cmd.Run(); err != nil {
		return nil, fmt.Errorf("lighthouse run failed for %s (%s): %w: %s",
			url, device, err, stderr.String())
	}

	var report map[string]any
	if err := json.Unmarshal(stdout.Bytes(), &report); err != nil {
		return nil, fmt.Errorf("failed to parse lighthouse report: %w", err)
	}

	return extractMeasurement(report), nil
}

// extractMeasurement pulls the metrics this pipeline cares about out of a raw
// Lighthouse report. Paint timings arrive in milliseconds and are converted
// to seconds; category scores arrive as 0-1 fractions and become 0-100 ints.
func extractMeasurement(report map[string]any) *Measurement {
	meas := &Measurement{RawReport: report}

	audits, _ := report["audits"].(map[string]any)
	meas.LCP = auditSeconds(audits, "largest-contentful-paint")
	meas.FCP = auditSeconds(audits, "first-contentful-paint")
	meas.SpeedIndex = auditSeconds(audits, "speed-index")
	meas.TTFB = auditSeconds(audits, "server-response-time")
	meas.CLS = auditValue(audits, "cumulative-layout-shift")
	meas.TotalBlockingTime = auditValue(audits, "total-blocking-time")
	meas.FID = auditValue(audits, "max-potential-fid")

	categories, _ := report["categories"].(map[string]any)
	meas.PerformanceScore = categoryScore(categories, "performance")
	meas.AccessibilityScore = categoryScore(categories, "accessibility")
	meas.SEOScore = categoryScore(categories, "seo")
	meas.BestPracticesScore = categoryScore(categories, "best-practices")

	return meas
}

func auditValue(audits map[string]any, key string) *float64 {
	audit, ok := audits[key].(map[string]any)
	if !ok {
		return nil
	}
	value, ok := audit["numericValue"].(float64)
	if !ok {
		return nil
	}
	return &value
}

func auditSeconds(audits map[string]any, key string) *float64 {
	ms := auditValue(audits, key)
	if ms == nil {
		return nil
	}
	sec := *ms / 1000
	return &sec
}

func categoryScore(categories map[string]any, key string) *int {
	category, ok := categories[key].(map[string]any)
	if !ok {
		return nil
	}
	score, ok := category["score"].(float64)
	if !ok {
		return nil
	}
	scaled := int(math.Round(score * 100))
	return &scaled
}
