// Package pipeline drives one analysis request through mode selection,
// merging, the model call, validation and persistence.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"alphaseeker/pkg/core/agent"
	"alphaseeker/pkg/core/merge"
	"alphaseeker/pkg/core/prompt"
	"alphaseeker/pkg/core/store"
	"alphaseeker/pkg/core/utils"
	"alphaseeker/pkg/core/validate"
	"alphaseeker/pkg/models"
)

// Gateway is the model call the orchestrator depends on. agent.Manager satisfies it.
type Gateway interface {
	ExecutePrompt(ctx context.Context, agentType string, prompt string, systemPrompt string, options map[string]interface{}) (string, error)
}

// DefaultModelTimeout bounds a model call when Options leaves it unset.
const DefaultModelTimeout = 120 * time.Second

type Options struct {
	ModelTimeout time.Duration
	Now          func() time.Time // clock for entry timestamps; time.Now when nil
}

// Orchestrator runs the analysis state machine. It is safe for concurrent use;
// requests for the same ticker are serialized from the history lookup through
// the append.
type Orchestrator struct {
	store     store.HistoryStore
	gateway   Gateway
	prompts   *prompt.Registry
	validator *validate.Validator
	opts      Options
	locks     *keyedLock
	log       zerolog.Logger
}

// NewOrchestrator wires the orchestrator to its dependencies.
func NewOrchestrator(hs store.HistoryStore, gw Gateway, prompts *prompt.Registry, v *validate.Validator, opts Options, log zerolog.Logger) *Orchestrator {
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = DefaultModelTimeout
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Orchestrator{
		store:     hs,
		gateway:   gw,
		prompts:   prompts,
		validator: v,
		opts:      opts,
		locks:     newKeyedLock(),
		log:       log.With().Str("component", "orchestrator").Logger(),
	}
}

type AnalyzeRequest struct {
	Ticker            string                    `json:"ticker"`
	Price             float64                   `json:"price"`
	CustomMetrics     []models.CustomMetric     `json:"custom_metrics"`
	FinancialSnapshot *models.FinancialSnapshot `json:"financial_snapshot,omitempty"`
}

type ReactRequest struct {
	OldContext        *models.AnalysisContext  `json:"old_context"`
	FinancialSnapshot models.FinancialSnapshot `json:"financial_snapshot"`
	CustomMetrics     []models.CustomMetric    `json:"custom_metrics"`
	Price             float64                  `json:"price"`
}

type ImportRequest struct {
	Ticker    string          `json:"ticker"`
	Data      json.RawMessage `json:"data"`
	Price     float64         `json:"price"`
	Timestamp string          `json:"timestamp,omitempty"` // RFC 3339 or zone-less ISO-8601; empty means now
}

type ChallengeRequest struct {
	Context      *models.AnalysisContext `json:"context"`
	BearArgument string                  `json:"bear_argument"`
}

// Result is returned once a request reaches PERSISTED.
type Result struct {
	Mode    models.Mode         `json:"mode"`
	Entry   models.HistoryEntry `json:"entry"`
	PriorID string              `json:"prior_id,omitempty"` // history entry the REACT pass was based on
}

// Analyze selects the mode from the ticker's history and runs a full pass.
func (o *Orchestrator) Analyze(ctx context.Context, req AnalyzeRequest) (*Result, error) {
	ticker := models.NormalizeTicker(req.Ticker)
	r := newRun(o.log, "analyze", ticker)
	if ticker == "" {
		return nil, r.fail(KindInvalidInput, fmt.Errorf("%w: ticker is required", models.ErrValidation))
	}

	unlock, err := o.locks.Lock(ctx, ticker)
	if err != nil {
		return nil, r.fail(KindCancelled, err)
	}
	defer unlock()

	latest, err := o.store.Latest(ctx, ticker)
	if err != nil {
		if ctx.Err() != nil {
			return nil, r.fail(KindCancelled, ctx.Err())
		}
		return nil, r.fail(KindStorage, err)
	}

	var (
		prior   *models.AnalysisContext
		priorID string
	)
	if latest != nil {
		prior = &latest.Data
		priorID = latest.ID
	}

	var snapshot models.FinancialSnapshot
	if req.FinancialSnapshot != nil {
		snapshot = *req.FinancialSnapshot
	}
	mreq := merge.Merge(prior, ticker, snapshot, req.CustomMetrics, req.Price)
	r.to(StateModeSelected, mreq.Mode)

	res, err := o.execute(ctx, r, mreq)
	if err != nil {
		return nil, err
	}
	res.PriorID = priorID
	return res, nil
}

// React forces a REACT pass against the caller's context. There is no
// fallback to stored history: a missing context is NotFound.
func (o *Orchestrator) React(ctx context.Context, req ReactRequest) (*Result, error) {
	if req.OldContext == nil {
		r := newRun(o.log, "react", "")
		return nil, r.fail(KindNotFound, fmt.Errorf("%w: react requires old_context", models.ErrNotFound))
	}

	ticker := models.NormalizeTicker(req.OldContext.Ticker)
	r := newRun(o.log, "react", ticker)
	if ticker == "" {
		return nil, r.fail(KindInvalidInput, fmt.Errorf("%w: old_context has no ticker", models.ErrValidation))
	}

	unlock, err := o.locks.Lock(ctx, ticker)
	if err != nil {
		return nil, r.fail(KindCancelled, err)
	}
	defer unlock()

	mreq := merge.Merge(req.OldContext, ticker, req.FinancialSnapshot, req.CustomMetrics, req.Price)
	r.to(StateModeSelected, mreq.Mode)
	return o.execute(ctx, r, mreq)
}

// execute runs MERGED through PERSISTED for a prepared request. The caller holds the ticker lock.
func (o *Orchestrator) execute(ctx context.Context, r *run, mreq *merge.Request) (*Result, error) {
	system, user, err := mreq.Render(o.prompts)
	if err != nil {
		return nil, r.fail(KindInvalidInput, fmt.Errorf("%w: %v", models.ErrValidation, err))
	}
	r.to(StateMerged, mreq.Mode)

	role := agent.RoleAnalysis
	if mreq.Mode == models.ModeReact {
		role = agent.RoleReact
	}
	raw, err := o.invoke(ctx, role, user, system)
	if err != nil {
		if ctx.Err() != nil {
			return nil, r.fail(KindCancelled, ctx.Err())
		}
		return nil, r.fail(KindModelUnavailable, err)
	}
	r.to(StateModelInvoked, mreq.Mode)

	out, err := o.validator.Validate(raw)
	if err != nil {
		return nil, r.fail(KindInvalidModelOutput, err)
	}
	r.to(StateValidated, mreq.Mode)

	finalize(out, mreq)

	entry := models.NewHistoryEntry(mreq.Ticker, o.opts.Now(), mreq.Price, *out)
	if err := o.persist(ctx, entry); err != nil {
		if ctx.Err() != nil {
			return nil, r.fail(KindCancelled, ctx.Err())
		}
		return nil, r.fail(KindStorage, err)
	}
	r.to(StatePersisted, mreq.Mode)

	return &Result{Mode: mreq.Mode, Entry: entry}, nil
}

// invoke calls the gateway under the model timeout. Gateway errors are ModelUnavailable.
func (o *Orchestrator) invoke(ctx context.Context, role, user, system string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.opts.ModelTimeout)
	defer cancel()

	type reply struct {
		text string
		err  error
	}
	done := make(chan reply, 1)
	go func() {
		text, err := o.gateway.ExecutePrompt(callCtx, role, user, system, nil)
		done <- reply{text, err}
	}()

	select {
	case rep := <-done:
		if rep.err != nil {
			return "", fmt.Errorf("%w: %w", models.ErrModelUnavailable, rep.err)
		}
		if strings.TrimSpace(rep.text) == "" {
			return "", fmt.Errorf("%w: empty response", models.ErrModelUnavailable)
		}
		return rep.text, nil
	case <-callCtx.Done():
		return "", fmt.Errorf("%w: model call timed out after %s: %w", models.ErrModelUnavailable, o.opts.ModelTimeout, callCtx.Err())
	}
}

// persist appends unless the caller has gone away; nothing is written after cancellation.
func (o *Orchestrator) persist(ctx context.Context, entry models.HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return o.store.Append(ctx, entry)
}

// Import persists an already-structured context. It enters at VALIDATED
// straight from RECEIVED, so the data still has to pass the validator.
func (o *Orchestrator) Import(ctx context.Context, req ImportRequest) (*Result, error) {
	r := newRun(o.log, "import", models.NormalizeTicker(req.Ticker))

	data, err := o.validator.ValidateJSON(req.Data)
	if err != nil {
		return nil, r.fail(KindInvalidInput, err)
	}

	ticker := models.NormalizeTicker(req.Ticker)
	embedded := models.NormalizeTicker(data.Ticker)
	switch {
	case ticker == "":
		ticker = embedded
	case embedded != "" && embedded != ticker:
		return nil, r.fail(KindInvalidInput, fmt.Errorf("%w: ticker %s does not match data.ticker %s", models.ErrValidation, ticker, embedded))
	}
	if ticker == "" {
		return nil, r.fail(KindInvalidInput, fmt.Errorf("%w: ticker is required", models.ErrValidation))
	}

	ts := o.opts.Now()
	if req.Timestamp != "" {
		if ts, err = models.ParseTimestamp(req.Timestamp); err != nil {
			return nil, r.fail(KindInvalidInput, fmt.Errorf("%w: %v", models.ErrValidation, err))
		}
	}
	r.to(StateValidated, "")

	unlock, err := o.locks.Lock(ctx, ticker)
	if err != nil {
		return nil, r.fail(KindCancelled, err)
	}
	defer unlock()

	entry := models.NewHistoryEntry(ticker, ts, req.Price, *data)
	if err := o.persist(ctx, entry); err != nil {
		if ctx.Err() != nil {
			return nil, r.fail(KindCancelled, ctx.Err())
		}
		return nil, r.fail(KindStorage, err)
	}
	r.to(StatePersisted, "")
	return &Result{Entry: entry}, nil
}

// History returns entries for ticker ("" for all) in ascending timestamp order.
func (o *Orchestrator) History(ctx context.Context, ticker string) ([]models.HistoryEntry, error) {
	return o.store.Query(ctx, ticker)
}

// Latest returns the newest entry for ticker, or an ErrNotFound error.
func (o *Orchestrator) Latest(ctx context.Context, ticker string) (*models.HistoryEntry, error) {
	ticker = models.NormalizeTicker(ticker)
	if ticker == "" {
		return nil, fmt.Errorf("%w: ticker is required", models.ErrValidation)
	}
	e, err := o.store.Latest(ctx, ticker)
	if err != nil {
		return nil, err
	}
	if e == nil {
		return nil, fmt.Errorf("%w: no history for %s", models.ErrNotFound, ticker)
	}
	return e, nil
}

// Tickers lists tickers with history.
func (o *Orchestrator) Tickers(ctx context.Context) ([]string, error) {
	return o.store.Tickers(ctx)
}

// Challenge asks the model to defend an analysis against a bear argument.
// The reply is parsed leniently and never persisted.
func (o *Orchestrator) Challenge(ctx context.Context, req ChallengeRequest) (map[string]interface{}, error) {
	if req.Context == nil {
		return nil, fmt.Errorf("%w: context is required", models.ErrValidation)
	}
	if strings.TrimSpace(req.BearArgument) == "" {
		return nil, fmt.Errorf("%w: bear_argument is required", models.ErrValidation)
	}
	log := o.log.With().Str("op", "challenge").Str("ticker", req.Context.Ticker).Logger()

	pc := prompt.NewContext().
		Set("CompanyName", req.Context.CompanyName).
		Set("ReasoningTrace", req.Context.ReasoningTrace).
		Set("BearArgument", req.BearArgument)
	if s := req.Context.Scores.Moat; s != nil {
		pc.Set("MoatScore", s.Float64())
	}
	if s := req.Context.Scores.Valuation; s != nil {
		pc.Set("ValuationScore", s.Float64())
	}
	system, user, err := o.prompts.Render(prompt.AnalysisChallenge, pc)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrValidation, err)
	}

	raw, err := o.invoke(ctx, agent.RoleChallenge, user, system)
	if err != nil {
		log.Warn().Err(err).Msg("challenge model call failed")
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, err
	}

	var out map[string]interface{}
	if _, err := utils.SmartParse(raw, &out); err != nil {
		log.Warn().Err(err).Msg("challenge reply unparseable")
		return nil, &validate.ValidationError{Reason: err.Error(), Fragment: raw}
	}
	log.Info().Interface("verdict", out["verdict"]).Msg("challenge answered")
	return out, nil
}

// IsCancelled reports whether err came from the caller abandoning the request.
func IsCancelled(err error) bool {
	return KindOf(err) == KindCancelled || errors.Is(err, context.Canceled)
}
