// Package classify resolves line items the rule engine left open by asking
// a reasoning oracle in fixed-size batches
package classify

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/singleflight"

	"github.com/ppiankov/adjudex/internal/cache"
	"github.com/ppiankov/adjudex/internal/keywords"
	"github.com/ppiankov/adjudex/internal/llm"
	"github.com/ppiankov/adjudex/internal/metrics"
	"github.com/ppiankov/adjudex/internal/model"
	"github.com/ppiankov/adjudex/internal/worker"
)

const maxBackoff = 30 * time.Second

var tracer = otel.Tracer("github.com/ppiankov/adjudex/internal/classify")

// Item is one unresolved line item handed to the classifier
type Item struct {
	Index int // Position in the invoice
	Item  model.LineItem
	Hint  *keywords.Hint
}

// Result is the outcome of ClassifyItems
type Result struct {
	// Coverages are aligned with the input items
	Coverages []model.LineItemCoverage

	// Advisory collects the oracle's suggested decisions. Commentary only
	Advisory model.AdvisoryOpinion
}

// Classifier asks the reasoning oracle about unresolved items.
// A nil oracle routes every item to review
type Classifier struct {
	oracle     llm.Oracle
	cfg        model.ClassifierConfig
	vague      []*regexp.Regexp
	modelName  string
	maxTokens  int
	timeout    time.Duration
	maxRetries int
	backoff    time.Duration
	workers    int

	cache    cache.Cache
	cacheTTL time.Duration
	limiter  *worker.Limiter
	group    singleflight.Group

	logger  *slog.Logger
	metrics *metrics.Metrics
}

// Option configures a Classifier
type Option func(*Classifier)

// WithCache caches raw oracle answers in c for ttl
func WithCache(c cache.Cache, ttl time.Duration) Option {
	return func(cl *Classifier) {
		cl.cache = c
		cl.cacheTTL = ttl
	}
}

// WithLimiter rate limits oracle calls per provider
func WithLimiter(l *worker.Limiter) Option {
	return func(cl *Classifier) {
		cl.limiter = l
	}
}

// WithRetry sets the retry budget and the initial backoff, doubled per attempt
func WithRetry(maxRetries int, backoff time.Duration) Option {
	return func(cl *Classifier) {
		cl.maxRetries = maxRetries
		cl.backoff = backoff
	}
}

// WithWorkers bounds the number of concurrent oracle calls
func WithWorkers(n int) Option {
	return func(cl *Classifier) {
		cl.workers = n
	}
}

// WithOracleSettings sets the model name used in cache keys, the response
// token limit and the per-call timeout
func WithOracleSettings(modelName string, maxTokens int, timeout time.Duration) Option {
	return func(cl *Classifier) {
		cl.modelName = modelName
		cl.maxTokens = maxTokens
		cl.timeout = timeout
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(cl *Classifier) {
		cl.logger = l
	}
}

// WithMetrics records oracle calls and classified items
func WithMetrics(m *metrics.Metrics) Option {
	return func(cl *Classifier) {
		cl.metrics = m
	}
}

// New creates a classifier. Invalid vague patterns are rejected
func New(oracle llm.Oracle, cfg model.ClassifierConfig, opts ...Option) (*Classifier, error) {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 15
	}
	if cfg.CoveredThreshold <= 0 {
		cfg.CoveredThreshold = 0.80
	}
	if cfg.NotCoveredThreshold <= 0 {
		cfg.NotCoveredThreshold = 0.60
	}
	if cfg.CoveredThreshold < cfg.NotCoveredThreshold {
		return nil, fmt.Errorf("covered threshold %.2f below not-covered threshold %.2f",
			cfg.CoveredThreshold, cfg.NotCoveredThreshold)
	}

	c := &Classifier{
		oracle:     oracle,
		cfg:        cfg,
		maxRetries: 3,
		backoff:    500 * time.Millisecond,
		workers:    4,
		logger:     slog.Default(),
	}
	for _, p := range cfg.VaguePatterns {
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("vague pattern %q: %w", p, err)
		}
		c.vague = append(c.vague, re)
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.workers <= 0 {
		c.workers = 1
	}
	if c.maxRetries < 0 {
		c.maxRetries = 0
	}
	return c, nil
}

// HasOracle reports whether an oracle is configured
func (c *Classifier) HasOracle() bool {
	return c.oracle != nil
}

// OracleAvailable asks the configured oracle whether it can answer.
// Without an oracle it reports false
func (c *Classifier) OracleAvailable(ctx context.Context) bool {
	if !c.HasOracle() {
		return false
	}
	return c.oracle.IsAvailable(ctx)
}

// ClassifyItems classifies the items in batches and reassembles the verdicts
// in input order. Items the oracle cannot answer for end up REVIEW_NEEDED.
// On cancellation the partial result is returned together with the context error
func (c *Classifier) ClassifyItems(ctx context.Context, items []Item, policy model.PolicyCoverage) (Result, error) {
	ctx, span := tracer.Start(ctx, "classify.ClassifyItems",
		trace.WithAttributes(attribute.Int("items", len(items))))
	defer span.End()

	res := Result{Coverages: make([]model.LineItemCoverage, len(items))}
	if len(items) == 0 {
		return res, nil
	}

	if c.oracle == nil {
		for i, it := range items {
			res.Coverages[i] = reviewCoverage(it, "no reasoning oracle configured")
		}
		c.countItems(res.Coverages)
		return res, nil
	}

	batches := chunk(items, c.cfg.BatchSize)
	jobs := make([]worker.Job, len(batches))
	for b, batch := range batches {
		jobs[b] = &batchJob{classifier: c, batch: b, items: batch, policy: policy}
	}

	results := worker.NewPool(ctx, c.workers).Run(jobs)
	done := make([]*batchResult, len(batches))
	for b, r := range results {
		if r != nil {
			done[b] = r.(*batchResult)
		}
	}
	if errs := worker.Errors(results); len(errs) > 0 {
		span.SetAttributes(attribute.Int("failed_batches", len(errs)))
		c.logger.Warn("Oracle batches failed",
			"failed", len(errs),
			"batches", len(batches),
			"first_error", errs[0])
	}

	var opinions []model.AdvisoryOpinion
	offset := 0
	for b, batch := range batches {
		br := done[b]
		for k, it := range batch {
			if br == nil {
				res.Coverages[offset+k] = reviewCoverage(it, "batch not classified: run cancelled")
				continue
			}
			res.Coverages[offset+k] = br.coverages[k]
		}
		if br != nil && !br.advisory.Empty() {
			opinions = append(opinions, br.advisory)
		}
		offset += len(batch)
	}
	res.Advisory = mergeAdvisory(c.oracle.Name(), opinions)
	c.countItems(res.Coverages)

	if err := ctx.Err(); err != nil {
		span.SetStatus(codes.Error, "cancelled")
		return res, fmt.Errorf("classify: %w", err)
	}
	return res, nil
}

// batchJob classifies one batch on the worker pool
type batchJob struct {
	classifier *Classifier
	batch      int
	items      []Item
	policy     model.PolicyCoverage
}

// Execute implements worker.Job
func (j *batchJob) Execute(ctx context.Context) worker.Result {
	return j.classifier.classifyBatch(ctx, j.batch, j.items, j.policy)
}

// batchResult is the outcome of one batch
type batchResult struct {
	batch     int
	coverages []model.LineItemCoverage
	advisory  model.AdvisoryOpinion
	err       error
}

// GetError returns the oracle failure of the batch, if any
func (r *batchResult) GetError() error {
	return r.err
}

func (c *Classifier) classifyBatch(ctx context.Context, batch int, items []Item, policy model.PolicyCoverage) *batchResult {
	ctx, span := tracer.Start(ctx, "classify.batch", trace.WithAttributes(
		attribute.Int("batch", batch),
		attribute.Int("size", len(items)),
	))
	defer span.End()

	out := &batchResult{batch: batch, coverages: make([]model.LineItemCoverage, len(items))}

	text, err := c.complete(ctx, systemPrompt, buildBatchPrompt(items, policy))
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "oracle failure")
		c.logger.Warn("Oracle batch failed, items routed to review",
			"batch", batch, "items", len(items), "error", err)
		for k, it := range items {
			out.coverages[k] = reviewCoverage(it, fmt.Sprintf("oracle failure: %v", err))
		}
		out.err = fmt.Errorf("%w: batch %d: %v", model.ErrOracleFailure, batch, err)
		return out
	}

	resp, err := parseBatchResponse(text, len(items))
	if err != nil {
		span.RecordError(err)
		c.logger.Warn("Oracle answer rejected, items routed to review",
			"batch", batch, "items", len(items), "error", err)
		for k, it := range items {
			out.coverages[k] = reviewCoverage(it, err.Error())
		}
		out.err = fmt.Errorf("%w: batch %d: %v", model.ErrOracleFailure, batch, err)
		return out
	}

	for k, it := range items {
		v, problem := resp.lookup(k)
		if problem != "" {
			out.coverages[k] = reviewCoverage(it, problem)
			continue
		}
		out.coverages[k] = c.decide(it, v, policy)
	}

	if resp.suggestedDecision != "" || resp.rationale != "" {
		out.advisory.SuggestedDecision = resp.suggestedDecision
		if resp.rationale != "" {
			out.advisory.Rationale = []string{resp.rationale}
		}
	}
	return out
}

// decide turns a validated oracle verdict into a coverage determination
func (c *Classifier) decide(it Item, v verdict, policy model.PolicyCoverage) model.LineItemCoverage {
	cov := model.NewCoverage(it.Index, it.Item)

	category, component := v.Category, v.Component
	if category == "" && it.Hint != nil {
		category = it.Hint.Category
		if component == "" {
			component = it.Hint.Component
		}
	}

	confidence := v.Confidence
	var notes []string
	if c.isVague(it.Item.Description) && confidence > c.cfg.VagueConfidenceCap {
		confidence = c.cfg.VagueConfidenceCap
		notes = append(notes, fmt.Sprintf("vague description, confidence capped at %.2f", confidence))
	}

	status := model.StatusReviewNeeded
	switch {
	case v.Covered && confidence >= c.cfg.CoveredThreshold:
		status = model.StatusCovered
	case !v.Covered && confidence >= c.cfg.NotCoveredThreshold:
		status = model.StatusNotCovered
	default:
		notes = append(notes, fmt.Sprintf("confidence %.2f below threshold", confidence))
	}

	if status == model.StatusCovered {
		switch {
		case !policy.CoversCategory(category):
			status = model.StatusReviewNeeded
			notes = append(notes, fmt.Sprintf("category %q not covered by policy", category))
		case policy.IsExcluded(category, component):
			status = model.StatusReviewNeeded
			notes = append(notes, fmt.Sprintf("component %q is excluded in %q", component, category))
		}
	}

	detail := v.Reasoning
	if len(notes) > 0 {
		detail = strings.TrimSpace(detail + " [" + strings.Join(notes, "; ") + "]")
	}

	cov.Reasoning = v.Reasoning
	cov.Apply(model.TraceStep{
		Source:     model.SourceReasoning,
		Verdict:    status,
		Method:     model.MethodReasoning,
		Confidence: confidence,
		Category:   category,
		Component:  component,
		Detail:     detail,
	})
	return cov
}

func (c *Classifier) isVague(description string) bool {
	d := strings.TrimSpace(description)
	if c.cfg.VagueMinLength > 0 && utf8.RuneCountInString(d) < c.cfg.VagueMinLength {
		return true
	}
	for _, re := range c.vague {
		if re.MatchString(d) {
			return true
		}
	}
	return false
}

func (c *Classifier) countItems(coverages []model.LineItemCoverage) {
	counts := make(map[model.CoverageStatus]int)
	for _, cov := range coverages {
		counts[cov.Status]++
	}
	for status, n := range counts {
		c.metrics.IncrementItems("reasoning", string(status), n)
	}
}

// complete runs one oracle call through the cache, in-flight deduplication,
// the rate limiter and the retry loop
func (c *Classifier) complete(ctx context.Context, system, prompt string) (string, error) {
	provider := c.oracle.Name()
	key := cache.OracleKey(provider, c.modelName, system, prompt)

	if c.cache != nil {
		if data, ok := c.cache.Get(key); ok {
			c.metrics.ObserveOracleCall(provider, "cached", 0)
			c.logger.Debug("Oracle cache hit", "provider", provider)
			return string(data), nil
		}
	}

	v, err, shared := c.group.Do(key, func() (interface{}, error) {
		text, err := c.callWithRetry(ctx, system, prompt)
		if err != nil {
			return "", err
		}
		if c.cache != nil {
			if err := c.cache.Set(key, []byte(text), c.cacheTTL); err != nil {
				c.logger.Debug("Failed to cache oracle answer", "error", err)
			}
		}
		return text, nil
	})
	if err != nil {
		return "", err
	}
	if shared {
		c.logger.Debug("Oracle call shared with in-flight duplicate", "provider", provider)
	}
	return v.(string), nil
}

func (c *Classifier) callWithRetry(ctx context.Context, system, prompt string) (string, error) {
	provider := c.oracle.Name()
	delay := c.backoff
	attempts := 0
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			c.metrics.IncrementRetry(provider)
			c.logger.Warn("Oracle call failed, retrying",
				"provider", provider,
				"attempt", attempt,
				"max_retries", c.maxRetries,
				"delay", delay,
				"error", lastErr)

			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
			if delay > maxBackoff {
				delay = maxBackoff
			}
		}

		if c.limiter != nil && !c.limiter.Allow(provider) {
			c.logger.Debug("Oracle rate limit reached, waiting", "provider", provider)
			if err := c.limiter.Wait(ctx, provider); err != nil {
				return "", fmt.Errorf("rate limit wait: %w", err)
			}
		}

		attempts++
		text, err := c.call(ctx, system, prompt)
		if err == nil {
			return text, nil
		}
		lastErr = err
		if ctx.Err() != nil || !llm.IsRetryable(err) {
			break
		}
	}

	return "", fmt.Errorf("oracle call failed after %d attempts: %w", attempts, lastErr)
}

func (c *Classifier) call(ctx context.Context, system, prompt string) (string, error) {
	provider := c.oracle.Name()
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	start := time.Now()
	resp, err := c.oracle.Complete(ctx, llm.CompletionRequest{
		System:    system,
		Prompt:    prompt,
		Model:     c.modelName,
		MaxTokens: c.maxTokens,
		JSON:      true,
	})
	if err != nil {
		c.metrics.ObserveOracleCall(provider, "error", time.Since(start))
		return "", err
	}
	c.metrics.ObserveOracleCall(provider, "ok", time.Since(start))
	return resp.Text, nil
}

// reviewCoverage routes an item to manual review with zero confidence. The
// step is marked as a fallback: no oracle verdict stands behind it.
// A keyword hint, when present, still supplies category and component
func reviewCoverage(it Item, detail string) model.LineItemCoverage {
	cov := model.NewCoverage(it.Index, it.Item)
	step := model.TraceStep{
		Source:     model.SourceReasoning,
		Verdict:    model.StatusReviewNeeded,
		Method:     model.MethodReasoning,
		Confidence: 0,
		Fallback:   true,
		Detail:     detail,
	}
	if it.Hint != nil {
		step.Method = model.MethodKeywordHint
		step.Category = it.Hint.Category
		step.Component = it.Hint.Component
		step.Detail = fmt.Sprintf("%s; hint %s", detail, it.Hint)
	}
	cov.Reasoning = detail
	cov.Apply(step)
	return cov
}

// mergeAdvisory combines per-batch opinions. Disagreeing batches suggest REFER
func mergeAdvisory(provider string, opinions []model.AdvisoryOpinion) model.AdvisoryOpinion {
	var merged model.AdvisoryOpinion
	if len(opinions) == 0 {
		return merged
	}
	merged.Provider = provider
	for _, op := range opinions {
		merged.Rationale = append(merged.Rationale, op.Rationale...)
		switch {
		case op.SuggestedDecision == "":
		case merged.SuggestedDecision == "":
			merged.SuggestedDecision = op.SuggestedDecision
		case merged.SuggestedDecision != op.SuggestedDecision:
			merged.SuggestedDecision = string(model.DecisionRefer)
		}
	}
	return merged
}

func chunk(items []Item, size int) [][]Item {
	var out [][]Item
	for start := 0; start < len(items); start += size {
		end := start + size
		if end > len(items) {
			end = len(items)
		}
		out = append(out, items[start:end])
	}
	return out
}
