package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/zombor/receipt-pipeline/internal/correction"
	"github.com/zombor/receipt-pipeline/internal/extraction"
	"github.com/zombor/receipt-pipeline/internal/scanning"
)

// State is a step of one pipeline run
type State int

const (
	StateIdle State = iota
	StateLocalAttempt
	StateValidating
	StateAccepted
	StateCloudFallback
	StateDone
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLocalAttempt:
		return "local_attempt"
	case StateValidating:
		return "validating"
	case StateAccepted:
		return "accepted"
	case StateCloudFallback:
		return "cloud_fallback"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Outcome describes one pipeline run. Result is always set.
type Outcome struct {
	Result *extraction.Result
	// Method is the path that produced a successful Result
	Method extraction.Method
	// States lists the states visited, in order
	States []State
	// Attempt and Validation are set when the local path got that far
	Attempt    *extraction.ExtractionAttempt
	Validation *extraction.ValidationResult
	// FallbackReason is why the cloud path was taken, nil when accepted locally
	FallbackReason error
	// Err classifies a failed run
	Err error
}

func (o *Outcome) enter(s State) {
	slog.Debug("Pipeline state", "state", s.String())
	o.States = append(o.States, s)
}

// Orchestrator runs the local extraction, validates it and falls back to the
// cloud when the local result cannot be trusted
type Orchestrator struct {
	local       scanning.LocalExtractor
	cloud       scanning.CloudParser
	validator   *extraction.Validator
	corrector   *correction.Corrector
	config      Config
	diffs       DiffRecorder
	metrics     *Metrics
	idGenerator extraction.IDGenerator
	timeSource  extraction.TimeSource
}

// Option configures an Orchestrator
type Option func(*Orchestrator)

// WithConfig sets timeouts and retry policy
func WithConfig(c Config) Option {
	return func(o *Orchestrator) { o.config = c }
}

// WithCorrector replaces the default text corrector
func WithCorrector(c *correction.Corrector) Option {
	return func(o *Orchestrator) { o.corrector = c }
}

// WithDiffRecorder stores local versus cloud diffs
func WithDiffRecorder(r DiffRecorder) Option {
	return func(o *Orchestrator) { o.diffs = r }
}

// WithMetrics records pipeline metrics
func WithMetrics(m *Metrics) Option {
	return func(o *Orchestrator) { o.metrics = m }
}

// WithIDGenerator sets how local receipt and diff IDs are generated
func WithIDGenerator(g extraction.IDGenerator) Option {
	return func(o *Orchestrator) { o.idGenerator = g }
}

// WithTimeSource sets the clock used for CreatedAt
func WithTimeSource(t extraction.TimeSource) Option {
	return func(o *Orchestrator) { o.timeSource = t }
}

// NewOrchestrator creates an Orchestrator. local may be nil, in which case
// every run goes to the cloud.
func NewOrchestrator(local scanning.LocalExtractor, cloud scanning.CloudParser, validator *extraction.Validator, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		local:       local,
		cloud:       cloud,
		validator:   validator,
		corrector:   correction.NewCorrector(),
		config:      DefaultConfig(),
		idGenerator: extraction.UUIDGenerator{},
		timeSource:  extraction.SystemClock{},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ProcessReceipt runs the pipeline and returns exactly one of an accepted
// local receipt, a cloud receipt or an error.
func (o *Orchestrator) ProcessReceipt(ctx context.Context, imageBase64, userID, userCity string) *extraction.Result {
	return o.Process(ctx, imageBase64, userID, userCity).Result
}

// Process is ProcessReceipt with the details of the run
func (o *Orchestrator) Process(ctx context.Context, imageBase64, userID, userCity string) *Outcome {
	out := &Outcome{}
	out.enter(StateIdle)

	reason := o.runLocal(ctx, imageBase64, out)
	if reason == nil {
		o.metrics.run(string(extraction.MethodLocal), "success")
		slog.Info("Accepted local extraction",
			"user_id", userID,
			"receipt_id", out.Result.Receipt.ID,
			"confidence", out.Validation.Confidence,
		)
		return out
	}

	out.FallbackReason = reason
	o.runCloud(ctx, imageBase64, userID, userCity, out)
	return out
}

// runLocal walks LocalAttempt, Validating and Accepted. It returns the reason
// to fall back, or nil when the local receipt was accepted. Panics anywhere on
// this path become a fallback.
func (o *Orchestrator) runLocal(ctx context.Context, imageBase64 string, out *Outcome) (reason error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic in local extraction", "panic", r)
			out.Result = nil
			out.Method = ""
			reason = &PanicError{Stage: "local", Value: r}
		}
	}()

	if o.local == nil || !o.local.Available() {
		return ErrLocalUnavailable
	}

	out.enter(StateLocalAttempt)
	attempt, err := o.extractLocal(ctx, imageBase64)
	out.Attempt = attempt
	if err != nil {
		return fmt.Errorf("%w: %v", ErrLocalExtractionFailed, err)
	}
	if attempt == nil {
		return fmt.Errorf("%w: no result", ErrLocalExtractionFailed)
	}
	if !attempt.Success {
		return fmt.Errorf("%w: %s", ErrLocalExtractionFailed, attempt.ErrorMessage)
	}

	out.enter(StateValidating)
	validation := o.validator.Validate(attempt)
	out.Validation = &validation
	o.metrics.confidence(validation.Confidence)

	if issues := o.rejections(attempt, validation); len(issues) > 0 {
		return &ValidationError{Issues: issues}
	}

	out.enter(StateAccepted)
	out.Result = extraction.Succeeded(o.buildLocalReceipt(attempt))
	out.Method = extraction.MethodLocal
	out.enter(StateDone)
	return nil
}

func (o *Orchestrator) extractLocal(ctx context.Context, imageBase64 string) (*extraction.ExtractionAttempt, error) {
	ctx, cancel := context.WithTimeout(ctx, o.config.LocalTimeout)
	defer cancel()

	start := time.Now()
	defer func() { o.metrics.stage("local", time.Since(start)) }()

	return o.local.ExtractReceiptData(ctx, imageBase64)
}

// rejections lists why a validated attempt cannot be accepted. Every condition
// of the gate is mandatory; an empty list means accept.
func (o *Orchestrator) rejections(attempt *extraction.ExtractionAttempt, v extraction.ValidationResult) []string {
	th := o.validator.Thresholds()
	accepted := attempt.Success &&
		v.IsValid &&
		v.Confidence >= th.AcceptConfidence &&
		v.Metrics.ArithmeticMatches &&
		v.Metrics.TextQualityScore >= th.MinTextQuality
	if accepted {
		return nil
	}

	issues := append([]string(nil), v.Issues...)
	if v.Confidence < th.AcceptConfidence {
		issues = append(issues, fmt.Sprintf("confidence %.2f below %.2f", v.Confidence, th.AcceptConfidence))
	}
	if v.Metrics.TextQualityScore < th.MinTextQuality {
		issues = append(issues, fmt.Sprintf("text quality %.2f below %.2f", v.Metrics.TextQualityScore, th.MinTextQuality))
	}
	if len(issues) == 0 {
		issues = append(issues, "local result rejected")
	}
	return issues
}

// buildLocalReceipt runs merchant and item names through the corrector
func (o *Orchestrator) buildLocalReceipt(attempt *extraction.ExtractionAttempt) *extraction.FinalReceipt {
	merchant := o.corrector.Correct(attempt.MerchantName)

	items := make([]extraction.FinalItem, 0, len(attempt.LineItems))
	for _, it := range attempt.LineItems {
		items = append(items, extraction.FinalItem{
			Name:           o.corrector.Correct(it.Name),
			NormalizedName: o.corrector.CorrectProductName(it.Name),
			UnitPrice:      it.UnitPrice,
			Quantity:       it.Quantity,
		})
	}

	currency := attempt.CurrencyCode
	if currency == "" {
		currency = o.config.DefaultCurrency
	}
	total, _ := attempt.Total()

	return &extraction.FinalReceipt{
		ID:                     o.idGenerator.Generate(),
		MerchantName:           merchant,
		NormalizedMerchantName: correction.NormalizeMerchant(merchant),
		Items:                  items,
		CurrencyCode:           currency,
		TotalAmount:            total,
		TransactionDate:        attempt.TransactionDate,
		ExtractionMethod:       extraction.MethodLocal,
		CreatedAt:              o.timeSource.Now(),
	}
}

// runCloud is CloudFallback then Done. A cloud Result is returned verbatim.
func (o *Orchestrator) runCloud(ctx context.Context, imageBase64, userID, userCity string, out *Outcome) {
	out.enter(StateCloudFallback)
	reason := fallbackReason(out.FallbackReason)
	o.metrics.fallback(reason)
	slog.Info("Falling back to cloud extraction",
		"user_id", userID,
		"reason", reason,
		"detail", out.FallbackReason.Error(),
	)

	result, err := o.callCloud(ctx, imageBase64, userID, userCity)
	out.enter(StateDone)

	if err != nil {
		var panicErr *PanicError
		if errors.Is(out.FallbackReason, ErrLocalUnavailable) || errors.As(err, &panicErr) {
			out.Err = fmt.Errorf("%w: %v", ErrCloudExtractionFailed, err)
			out.Result = extraction.Failed(out.Err.Error())
		} else {
			out.Err = fmt.Errorf("%w: %v", ErrBothMethodsFailed, err)
			out.Result = extraction.Failed(bothFailedMessage)
		}
		o.metrics.run(string(extraction.MethodCloud), "error")
		slog.Error("Cloud extraction failed", "user_id", userID, "error", err)
		return
	}

	out.Result = result
	if !result.Success {
		out.Err = fmt.Errorf("%w: %s", ErrCloudExtractionFailed, result.Error)
		o.metrics.run(string(extraction.MethodCloud), "failed")
		slog.Warn("Cloud extraction returned no receipt", "user_id", userID, "error", result.Error)
		return
	}

	out.Method = extraction.MethodCloud
	o.metrics.run(string(extraction.MethodCloud), "success")
	if out.Attempt != nil {
		o.recordDiff(ctx, userID, userCity, out)
	}
}

// callCloud calls the cloud parser with a per-attempt deadline, retrying
// transport errors with exponential backoff. Unsuccessful Results and panics
// are not retried.
func (o *Orchestrator) callCloud(ctx context.Context, imageBase64, userID, userCity string) (*extraction.Result, error) {
	if o.cloud == nil {
		return nil, errors.New("no cloud parser configured")
	}

	policy := backoff.NewExponentialBackOff()
	policy.InitialInterval = o.config.InitialBackoff
	policy.MaxInterval = o.config.MaxBackoff
	policy.MaxElapsedTime = 0
	policy.Reset()
	retries := uint64(max(0, o.config.CloudMaxRetries))

	var result *extraction.Result
	operation := func() error {
		r, err := o.cloudOnce(ctx, imageBase64, userID, userCity)
		if err != nil {
			var panicErr *PanicError
			if errors.As(err, &panicErr) || ctx.Err() != nil {
				return backoff.Permanent(err)
			}
			return err
		}
		if r == nil {
			return backoff.Permanent(errors.New("cloud parser returned no result"))
		}
		result = r
		return nil
	}
	notify := func(err error, wait time.Duration) {
		slog.Warn("Cloud extraction attempt failed, retrying", "error", err, "wait", wait)
	}

	err := backoff.RetryNotify(operation, backoff.WithContext(backoff.WithMaxRetries(policy, retries), ctx), notify)
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (o *Orchestrator) cloudOnce(ctx context.Context, imageBase64, userID, userCity string) (result *extraction.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic in cloud extraction", "panic", r)
			result, err = nil, &PanicError{Stage: "cloud", Value: r}
		}
	}()

	ctx, cancel := context.WithTimeout(ctx, o.config.CloudTimeout)
	defer cancel()

	start := time.Now()
	defer func() { o.metrics.stage("cloud", time.Since(start)) }()

	return o.cloud.ParseReceipt(ctx, imageBase64, userID, userCity)
}

// recordDiff logs the local versus cloud comparison and stores it. Failures
// here never change the run's result.
func (o *Orchestrator) recordDiff(ctx context.Context, userID, userCity string, out *Outcome) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Recovered panic recording correction diff", "panic", r)
		}
	}()

	attempt := out.Attempt
	receipt := out.Result.Receipt
	diff := &CorrectionDiff{
		ID:             o.idGenerator.Generate(),
		ReceiptID:      receipt.ID,
		UserID:         userID,
		UserCity:       userCity,
		FallbackReason: fallbackReason(out.FallbackReason),
		LocalMerchant:  attempt.MerchantName,
		CloudMerchant:  receipt.MerchantName,
		LocalItemCount: len(attempt.LineItems),
		CloudItemCount: len(receipt.Items),
		LocalTotal:     attempt.TotalAmount,
		CloudTotal:     receipt.TotalAmount,
		CreatedAt:      o.timeSource.Now(),
	}
	var validationErr *ValidationError
	if errors.As(out.FallbackReason, &validationErr) {
		diff.Issues = validationErr.Issues
	}
	if out.Validation != nil {
		diff.LocalConfidence = out.Validation.Confidence
	}

	slog.Info("Local and cloud extraction differ",
		"user_id", userID,
		"reason", diff.FallbackReason,
		"local_merchant", diff.LocalMerchant,
		"cloud_merchant", diff.CloudMerchant,
		"local_items", diff.LocalItemCount,
		"cloud_items", diff.CloudItemCount,
		"cloud_total", diff.CloudTotal,
	)

	if o.diffs == nil {
		return
	}
	if err := o.diffs.RecordDiff(ctx, diff); err != nil {
		slog.Warn("Failed to record correction diff", "error", err)
	}
}
