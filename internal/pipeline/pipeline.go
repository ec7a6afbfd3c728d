// Package pipeline runs one claim through every decision stage and produces
// the versioned dossier
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ppiankov/adjudex/internal/cache"
	"github.com/ppiankov/adjudex/internal/classify"
	"github.com/ppiankov/adjudex/internal/decision"
	"github.com/ppiankov/adjudex/internal/keywords"
	"github.com/ppiankov/adjudex/internal/linkage"
	"github.com/ppiankov/adjudex/internal/llm"
	"github.com/ppiankov/adjudex/internal/metrics"
	"github.com/ppiankov/adjudex/internal/model"
	"github.com/ppiankov/adjudex/internal/rules"
	"github.com/ppiankov/adjudex/internal/score"
	"github.com/ppiankov/adjudex/internal/screening"
	"github.com/ppiankov/adjudex/internal/store"
	"github.com/ppiankov/adjudex/internal/worker"
)

var tracer = otel.Tracer("github.com/ppiankov/adjudex/internal/pipeline")

// Pipeline orchestrates the complete adjudication of one claim
type Pipeline struct {
	rules      *rules.RuleSet
	hints      *keywords.Generator
	classifier *classify.Classifier
	linker     *linkage.Linker
	screener   *screening.Screener
	engine     *decision.Engine
	scorer     *score.Scorer
	store      store.DecisionStore // Optional; nil means dossiers are not persisted

	catalogConfidence float64
	configVersion     string

	logger  *slog.Logger
	metrics *metrics.Metrics
	now     func() time.Time
}

// Option configures a Pipeline
type Option func(*options)

type options struct {
	oracle    llm.Oracle
	oracleSet bool
	cache     cache.Cache
	cacheSet  bool
	store     store.DecisionStore
	logger    *slog.Logger
	metrics   *metrics.Metrics
	now       func() time.Time
}

// WithOracle uses oracle instead of building one from configuration.
// A nil oracle disables reasoning: unresolved items go to review
func WithOracle(oracle llm.Oracle) Option {
	return func(o *options) {
		o.oracle = oracle
		o.oracleSet = true
	}
}

// WithCache uses c instead of building the oracle cache from configuration
func WithCache(c cache.Cache) Option {
	return func(o *options) {
		o.cache = c
		o.cacheSet = true
	}
}

// WithStore persists every dossier in s
func WithStore(s store.DecisionStore) Option {
	return func(o *options) {
		o.store = s
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithMetrics records pipeline metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithClock overrides the time source of dossier timestamps
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// NewPipeline compiles every stage from configuration
func NewPipeline(ctx context.Context, cfg *model.Config, opts ...Option) (*Pipeline, error) {
	o := &options{logger: slog.Default(), now: time.Now}
	for _, opt := range opts {
		opt(o)
	}

	ruleSet, err := rules.Compile(cfg.Rules)
	if err != nil {
		return nil, fmt.Errorf("rules: %w", err)
	}
	hints, err := keywords.NewGenerator(cfg.Vocabulary)
	if err != nil {
		return nil, fmt.Errorf("vocabulary: %w", err)
	}
	linker, err := linkage.New(cfg.Linkage, o.logger)
	if err != nil {
		return nil, fmt.Errorf("linkage: %w", err)
	}
	screener, err := screening.New(cfg.Screening)
	if err != nil {
		return nil, fmt.Errorf("screening: %w", err)
	}

	oracle := o.oracle
	if !o.oracleSet {
		oracle, err = llm.NewOracle(ctx, llm.ConfigFromModel(cfg.Oracle))
		if err != nil {
			return nil, fmt.Errorf("oracle: %w", err)
		}
	}

	oracleCache := o.cache
	if !o.cacheSet {
		oracleCache, err = cache.New(cfg.Cache)
		if err != nil {
			return nil, fmt.Errorf("cache: %w", err)
		}
	}

	classifierOpts := []classify.Option{
		classify.WithLimiter(newLimiter(cfg.RateLimit)),
		classify.WithRetry(cfg.Oracle.MaxRetries, time.Duration(cfg.Oracle.BackoffMS)*time.Millisecond),
		classify.WithWorkers(cfg.Concurrency.OracleWorkers),
		classify.WithOracleSettings(cfg.Oracle.Model, cfg.Oracle.MaxTokens, time.Duration(cfg.Oracle.Timeout)*time.Second),
		classify.WithLogger(o.logger),
		classify.WithMetrics(o.metrics),
	}
	if oracleCache != nil {
		classifierOpts = append(classifierOpts, classify.WithCache(oracleCache, time.Duration(cfg.Cache.TTL)*time.Hour))
	}
	classifier, err := classify.New(oracle, cfg.Classifier, classifierOpts...)
	if err != nil {
		return nil, fmt.Errorf("classifier: %w", err)
	}

	return &Pipeline{
		rules:             ruleSet,
		hints:             hints,
		classifier:        classifier,
		linker:            linker,
		screener:          screener,
		engine:            decision.NewEngine(cfg.Decision),
		scorer:            score.NewScorer(cfg.Confidence),
		store:             o.store,
		catalogConfidence: cfg.Rules.CatalogConfidence,
		configVersion:     cfg.Version,
		logger:            o.logger,
		metrics:           o.metrics,
		now:               o.now,
	}, nil
}

// Adjudicate runs every stage for one claim and returns the saved dossier.
// A cancelled context aborts the run before anything is saved
func (p *Pipeline) Adjudicate(ctx context.Context, in model.ClaimInput) (*model.Dossier, error) {
	start := time.Now()
	ctx, span := tracer.Start(ctx, "pipeline.Adjudicate",
		trace.WithAttributes(
			attribute.String("claim_id", in.ClaimID),
			attribute.Int("items", len(in.Invoice.LineItems)),
		))
	defer span.End()

	fail := func(err error) (*model.Dossier, error) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// 0. Input must be usable at all
	if err := in.Validate(); err != nil {
		return fail(err)
	}
	logger := p.logger.With("claim_id", in.ClaimID)
	items := in.Invoice.LineItems

	// 1. Deterministic rules decide what they can
	coverages, pending := p.applyRules(in)

	// 2. Keyword hints for the rest, part numbers first
	unresolved := p.withHints(items, pending)

	// 3. Reasoning classifier for the unresolved items
	result, err := p.classifier.ClassifyItems(ctx, unresolved, in.Policy)
	if err != nil {
		return fail(fmt.Errorf("adjudicate %s: %w", in.ClaimID, err))
	}
	for k, it := range unresolved {
		coverages[it.Index] = result.Coverages[k]
	}

	// 4. Primary repair and labor linkage
	primary := p.linker.ResolvePrimary(ctx, p.classifier, items, coverages)
	promoted := p.linker.Promote(coverages, primary, in.Policy)
	p.metrics.IncrementItems("promotion", string(model.StatusCovered), len(promoted))

	// 5. Every item must satisfy its invariants before anything is derived from it
	for i := range coverages {
		if err := coverages[i].Verify("coverage invariants verified"); err != nil {
			return fail(fmt.Errorf("adjudicate %s: %w", in.ClaimID, err))
		}
	}

	// 6. Screening checks
	screen := p.screener.Run(screening.Input{Facts: in.Facts, Items: items, Coverages: coverages})

	// 7. Payout and verdict
	payout := decision.ComputePayout(coverages, in.Policy, in.Invoice.TaxRate, in.Facts.Odometer)
	verdict := p.engine.DeriveVerdict(screen, coverages, payout)

	// 8. Confidence, advisory only
	confidence := p.scorer.Calculate(score.Input{
		Facts:     in.Facts,
		Invoice:   in.Invoice,
		Coverages: coverages,
		Screening: screen,
		Verdict:   verdict,
	})

	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("adjudicate %s: %w", in.ClaimID, err))
	}

	dossier := &model.Dossier{
		ID:                uuid.NewString(),
		ClaimID:           in.ClaimID,
		CreatedAt:         p.now().UTC(),
		ConfigVersion:     p.configVersion,
		VocabularyVersion: p.hints.Version(),
		Items:             items,
		Coverages:         coverages,
		PrimaryRepair:     primary,
		Screening:         screen,
		Payout:            payout,
		Verdict:           verdict,
		Confidence:        confidence,
		Duration:          time.Since(start),
	}
	if !result.Advisory.Empty() {
		advisory := result.Advisory
		dossier.Advisory = &advisory
	}

	// 9. Persist as a new version
	if p.store != nil {
		if _, err := p.store.Save(ctx, dossier); err != nil {
			return fail(fmt.Errorf("save dossier %s: %w", in.ClaimID, err))
		}
	}

	p.metrics.IncrementDecision(string(verdict.Decision))
	p.metrics.IncrementBand(string(confidence.Band))
	p.metrics.ObserveAdjudicateLatency(time.Since(start))
	span.SetAttributes(
		attribute.String("decision", string(verdict.Decision)),
		attribute.Float64("payout", verdict.Payout),
	)

	logger.Info("Claim adjudicated",
		"decision", verdict.Decision,
		"payout", verdict.Payout,
		"band", confidence.Band,
		"version", dossier.Version,
		"reasoned", len(unresolved),
		"promoted", len(promoted),
		"duration", dossier.Duration)

	return dossier, nil
}

// applyRules runs the rule engine over every item. It returns the coverage
// slice with rule decisions filled in and the indices still undecided
func (p *Pipeline) applyRules(in model.ClaimInput) ([]model.LineItemCoverage, []int) {
	engine := p.rules.ForPolicy(in.Policy)
	coverages := make([]model.LineItemCoverage, len(in.Invoice.LineItems))
	var pending []int

	counts := make(map[model.CoverageStatus]int)
	for i, item := range in.Invoice.LineItems {
		if c, ok := engine.Classify(i, item); ok {
			coverages[i] = c
			counts[c.Status]++
			continue
		}
		pending = append(pending, i)
	}
	for status, n := range counts {
		p.metrics.IncrementItems("rule", string(status), n)
	}
	return coverages, pending
}

// withHints builds classifier items for the pending indices. A part-number
// catalog entry that did not decide coverage still beats a vocabulary hint
func (p *Pipeline) withHints(items []model.LineItem, pending []int) []classify.Item {
	out := make([]classify.Item, 0, len(pending))
	for _, i := range pending {
		item := items[i]
		hint := p.hints.Hint(item.Description)
		if entry, ok := p.rules.CatalogLookup(item); ok {
			hint = keywords.FromCatalog(entry, p.catalogConfidence)
		}
		out = append(out, classify.Item{Index: i, Item: item, Hint: hint})
	}
	return out
}

// ConfigVersion returns the configuration version recorded in dossiers
func (p *Pipeline) ConfigVersion() string {
	return p.configVersion
}

// Store returns the decision store, or nil
func (p *Pipeline) Store() store.DecisionStore {
	return p.store
}

// CheckOracle asks the configured oracle whether it can answer. Running
// without an oracle is valid and reports no error
func (p *Pipeline) CheckOracle(ctx context.Context) error {
	if !p.classifier.HasOracle() {
		p.logger.Debug("No reasoning oracle configured, unresolved items go to review")
		return nil
	}
	if !p.classifier.OracleAvailable(ctx) {
		return fmt.Errorf("%w: oracle not available", model.ErrOracleFailure)
	}
	return nil
}

// newLimiter builds the per-provider oracle rate limiter
func newLimiter(cfg model.RateLimitConfig) *worker.Limiter {
	l := worker.NewLimiter(cfg.RequestsPerSecond, cfg.Burst)
	for provider, r := range cfg.Providers {
		l.SetRate(provider, r.RequestsPerSecond, r.Burst)
	}
	return l
}
