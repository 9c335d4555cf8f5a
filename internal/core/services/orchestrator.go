package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/ansa/internal/core/domain"
	"github.com/custodia-labs/ansa/internal/core/ports/driven"
	"github.com/custodia-labs/ansa/internal/core/ports/driving"
	"github.com/custodia-labs/ansa/internal/logger"
)

// Ensure Orchestrator implements the interface.
var _ driving.AnswerService = (*Orchestrator)(nil)

// Default orchestrator settings.
const (
	DefaultTopK            = 5
	DefaultRequestDeadline = 60 * time.Second
	DefaultMaxAnswerTokens = 1024
	DefaultCacheTTL        = time.Hour
	DefaultCacheTimeout    = 250 * time.Millisecond
)

// Options configures the orchestrator.
type Options struct {
	// TopK is the default number of chunks to retrieve.
	TopK int

	// Deadline is the default overall per-request deadline.
	Deadline time.Duration

	// MaxAnswerTokens bounds generation length.
	MaxAnswerTokens int

	// CacheTTL is the validity window for cached answers.
	CacheTTL time.Duration

	// CacheTimeout bounds cache reads and writes; a slower cache is
	// treated as a miss.
	CacheTimeout time.Duration

	// RequireGrounding fails requests whose retrieval stage failed
	// instead of degrading to an empty-context answer.
	RequireGrounding bool

	// Backoff is the per-provider retry policy.
	Backoff domain.BackoffPolicy
}

// Orchestrator drives a question through the request state machine:
// CacheCheck, Retrieving, PromptBuilding, Generating, Caching, Completed,
// with an error path from any state to Failed. Stages run in that strict
// order; the only short-circuit is a cache hit.
//
// The cache, ledger and prompt store are explicitly injected; there are no
// process-wide singletons. The cache and ledger are optional (may be nil).
type Orchestrator struct {
	retriever ContextRetriever
	providers []driven.GenerationProvider
	cache     driven.AnswerCache
	ledger    driven.CostLedger
	prompts   *PromptBuilder
	opts      Options
}

// NewOrchestrator creates the request orchestrator.
// Fails with InvalidConfiguration when no providers are configured or the
// backoff policy is unusable.
func NewOrchestrator(
	retriever ContextRetriever,
	providers []driven.GenerationProvider,
	cache driven.AnswerCache,
	ledger driven.CostLedger,
	prompts *PromptBuilder,
	opts Options,
) (*Orchestrator, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("%w: at least one generation provider is required", domain.ErrInvalidConfiguration)
	}
	if opts.Backoff == (domain.BackoffPolicy{}) {
		opts.Backoff = domain.DefaultBackoffPolicy()
	}
	if err := opts.Backoff.Validate(); err != nil {
		return nil, err
	}
	if opts.TopK <= 0 {
		opts.TopK = DefaultTopK
	}
	if opts.Deadline <= 0 {
		opts.Deadline = DefaultRequestDeadline
	}
	if opts.MaxAnswerTokens <= 0 {
		opts.MaxAnswerTokens = DefaultMaxAnswerTokens
	}
	if opts.CacheTTL <= 0 {
		opts.CacheTTL = DefaultCacheTTL
	}
	if opts.CacheTimeout <= 0 {
		opts.CacheTimeout = DefaultCacheTimeout
	}
	if prompts == nil {
		prompts = NewPromptBuilder(nil)
	}

	return &Orchestrator{
		retriever: retriever,
		providers: providers,
		cache:     cache,
		ledger:    ledger,
		prompts:   prompts,
		opts:      opts,
	}, nil
}

// Ask answers a question, returning the answer with provenance, token
// counts and cost.
func (o *Orchestrator) Ask(ctx context.Context, question string, opts domain.AskOptions) (*domain.Answer, error) {
	return o.run(ctx, question, opts, nil)
}

// AskStream answers a question incrementally. Each text increment is
// delivered to onDelta before the next is requested; an error from onDelta
// cancels the stream and fails the request with Cancelled, without caching
// a partial answer.
func (o *Orchestrator) AskStream(
	ctx context.Context, question string, opts domain.AskOptions, onDelta func(string) error,
) (*domain.Answer, error) {
	if onDelta == nil {
		return o.run(ctx, question, opts, nil)
	}
	return o.run(ctx, question, opts, onDelta)
}

// run executes the request state machine.
func (o *Orchestrator) run(
	ctx context.Context, question string, opts domain.AskOptions, onDelta func(string) error,
) (*domain.Answer, error) {
	reqID := uuid.NewString()[:8]
	logger.Section("Answer Request " + reqID)

	question = strings.TrimSpace(question)
	if question == "" {
		err := fmt.Errorf("%w: question must not be empty", domain.ErrInvalidConfiguration)
		return nil, domain.NewStructuredError(err, "", 0)
	}

	topK := opts.TopK
	if topK <= 0 {
		topK = o.opts.TopK
	}
	deadline := opts.Deadline
	if deadline <= 0 {
		deadline = o.opts.Deadline
	}
	ctx, cancel := context.WithTimeout(ctx, deadline)
	defer cancel()

	var (
		rc         domain.RetrievedContext
		prompt     string
		answer     *domain.Answer
		providerID string
		attempts   int
		failure    error
	)

	state := domain.StateCacheCheck
	for !state.Terminal() {
		logger.Debug("[%s] state: %s", reqID, state)

		switch state {
		case domain.StateCacheCheck:
			if opts.UseCache {
				if cached := o.cacheLookup(ctx, question, opts.ProviderHint); cached != nil {
					logger.Info("[%s] cache hit (provider %s)", reqID, cached.ProviderID)
					answer = cached
					state = domain.StateCompleted
					continue
				}
			}
			state = domain.StateRetrieving

		case domain.StateRetrieving:
			var err error
			rc, err = o.retriever.Retrieve(ctx, question, topK)
			if err != nil {
				if o.opts.RequireGrounding {
					failure = err
					state = domain.StateFailed
					continue
				}
				logger.Warn("[%s] retrieval degraded to empty context: %v", reqID, err)
				rc = domain.RetrievedContext{}
			}
			if o.opts.RequireGrounding && rc.IsEmpty() {
				failure = fmt.Errorf("%w: no context retrieved", domain.ErrRetrievalFailed)
				state = domain.StateFailed
				continue
			}
			state = domain.StatePromptBuilding

		case domain.StatePromptBuilding:
			var err error
			prompt, err = o.prompts.Build(question, rc)
			if err != nil {
				failure = err
				state = domain.StateFailed
				continue
			}
			state = domain.StateGenerating

		case domain.StateGenerating:
			gen, provider, n, err := o.generate(ctx, prompt, opts.ProviderHint, onDelta)
			attempts = n
			if provider != nil {
				providerID = provider.ID()
			}
			if err != nil {
				failure = err
				state = domain.StateFailed
				continue
			}
			answer = &domain.Answer{
				Text:         strings.TrimSpace(gen.Text),
				Sources:      rc.Sources(),
				InputTokens:  gen.InputTokens,
				OutputTokens: gen.OutputTokens,
				Cost:         provider.Cost(gen.InputTokens, gen.OutputTokens),
				ProviderID:   provider.ID(),
				CreatedAt:    time.Now(),
			}
			o.recordCost(answer)
			state = domain.StateCaching

		case domain.StateCaching:
			if opts.UseCache {
				o.cacheWrite(ctx, question, answer)
			}
			state = domain.StateCompleted
		}
	}

	if state == domain.StateFailed || failure != nil {
		logger.Warn("[%s] failed: %v", reqID, failure)
		return nil, domain.NewStructuredError(failure, providerID, attempts)
	}

	logger.Info("[%s] completed: provider=%s cached=%t tokens=%d/%d cost=%.6f",
		reqID, answer.ProviderID, answer.Cached, answer.InputTokens, answer.OutputTokens, answer.Cost)
	return answer, nil
}

// cacheLookup checks the answer cache, bounded by the cache timeout.
// Any failure is treated as a miss; cache errors never propagate.
func (o *Orchestrator) cacheLookup(ctx context.Context, question, hint string) *domain.Answer {
	if o.cache == nil {
		return nil
	}

	cctx, cancel := context.WithTimeout(ctx, o.opts.CacheTimeout)
	defer cancel()

	for _, p := range o.orderProviders(hint) {
		cached, err := o.cache.Get(cctx, question, p.ID())
		if err != nil {
			continue
		}
		hit := *cached
		hit.Cached = true
		return &hit
	}
	return nil
}

// cacheWrite stores the answer, detached from request cancellation so that
// a cancelled request's completed generation is not wasted. Best effort:
// failures are logged and ignored.
func (o *Orchestrator) cacheWrite(ctx context.Context, question string, answer *domain.Answer) {
	if o.cache == nil {
		return
	}

	cctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.opts.CacheTimeout)
	defer cancel()

	if err := o.cache.Put(cctx, question, answer.ProviderID, answer, o.opts.CacheTTL); err != nil {
		logger.Error("cache write failed: %v", err)
	}
}

// recordCost emits the cost event to the ledger. Recording failures are
// logged, never propagated.
func (o *Orchestrator) recordCost(answer *domain.Answer) {
	if o.ledger == nil {
		return
	}

	cctx, cancel := context.WithTimeout(context.Background(), o.opts.CacheTimeout)
	defer cancel()

	event := domain.CostEvent{
		ProviderID:   answer.ProviderID,
		InputTokens:  answer.InputTokens,
		OutputTokens: answer.OutputTokens,
		Cost:         answer.Cost,
		CreatedAt:    answer.CreatedAt,
	}
	if err := o.ledger.Record(cctx, event); err != nil {
		logger.Error("cost ledger record failed: %v", err)
	}
}
