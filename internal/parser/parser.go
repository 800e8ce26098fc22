// Package parser turns a free-form expense description into a validated
// draft by querying two model tiers concurrently.
//
// The fast tier supplies the expense totals and description; the quality
// tier supplies the members, their roles and their splits. Both must
// succeed. The merged result is checked against a strict shape and then
// against the business rules (positive amount, one payer, splits that sum
// to one).
package parser

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mmynk/splitledger/internal/generation"
	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
)

// Tier keys registered by default.
const (
	TierFast    = "fast"
	TierQuality = "quality"
)

// ExpenseDraft is the parsed expense before it is persisted.
type ExpenseDraft struct {
	Amount      int64
	Description string
}

// ParticipantDraft is one parsed member before name resolution.
type ParticipantDraft struct {
	Name  string
	Role  models.Role
	Split models.Fraction
}

// IsSentinel reports whether the member stands for the description's author.
func (m ParticipantDraft) IsSentinel() bool {
	return strings.TrimSpace(m.Name) == SentinelName
}

// Draft is a validated parse result.
type Draft struct {
	Expense ExpenseDraft
	Members []ParticipantDraft
}

// Tiers selects the registry keys used for each tier. Empty fields fall
// back to the parser defaults.
type Tiers struct {
	Fast    string
	Quality string
}

// Input is a parse request.
type Input struct {
	Description string
	Images      []string
	Tiers       Tiers
}

// Parser issues the two tier calls and validates the merged result.
type Parser struct {
	registry *generation.Registry
	adapter  *generation.Adapter
	defaults Tiers
	metrics  *metrics.Collector
}

// New creates a parser. Empty defaults use TierFast and TierQuality.
func New(registry *generation.Registry, adapter *generation.Adapter, defaults Tiers, collector *metrics.Collector) *Parser {
	if defaults.Fast == "" {
		defaults.Fast = TierFast
	}
	if defaults.Quality == "" {
		defaults.Quality = TierQuality
	}
	return &Parser{
		registry: registry,
		adapter:  adapter,
		defaults: defaults,
		metrics:  collector,
	}
}

// Parse extracts a draft from in. Any tier failure fails the whole parse.
func (p *Parser) Parse(ctx context.Context, in Input) (*Draft, error) {
	start := time.Now()
	draft, err := p.parse(ctx, in)
	p.metrics.ObserveParse(Kind(err))

	if err != nil {
		slog.Warn("Parse failed", "kind", Kind(err), "error", err, "duration_ms", time.Since(start).Milliseconds())
		return nil, err
	}
	slog.Debug("Parse succeeded",
		"amount", draft.Expense.Amount,
		"description", draft.Expense.Description,
		"members_count", len(draft.Members),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return draft, nil
}

func (p *Parser) parse(ctx context.Context, in Input) (*Draft, error) {
	if strings.TrimSpace(in.Description) == "" {
		return nil, ErrEmptyDescription
	}

	tiers := p.resolveTiers(in.Tiers)
	fast, err := p.registry.Lookup(tiers.Fast)
	if err != nil {
		return nil, err
	}
	quality, err := p.registry.Lookup(tiers.Quality)
	if err != nil {
		return nil, err
	}

	call := generation.Call{
		System: systemPrompt,
		Prompt: userPrompt(in.Description),
		Schema: expenseSchema,
		Images: in.Images,
	}

	// Each goroutine writes only its own result; Wait orders the reads.
	var fastOut, qualityOut json.RawMessage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		out, err := p.adapter.Generate(gctx, fast, call)
		fastOut = out
		return err
	})
	g.Go(func() error {
		out, err := p.adapter.Generate(gctx, quality, call)
		qualityOut = out
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	merged, err := merge(fastOut, qualityOut)
	if err != nil {
		return nil, err
	}

	draft, err := decodeDraft(merged)
	if err != nil {
		return nil, err
	}
	if err := validateDraft(draft); err != nil {
		return nil, err
	}
	return draft, nil
}

func (p *Parser) resolveTiers(override Tiers) Tiers {
	tiers := p.defaults
	if override.Fast != "" {
		tiers.Fast = override.Fast
	}
	if override.Quality != "" {
		tiers.Quality = override.Quality
	}
	return tiers
}

// tierOutput is the loose top-level shape of one tier's answer.
type tierOutput struct {
	Expense json.RawMessage `json:"expense"`
	Members json.RawMessage `json:"members"`
}

// merge takes expense from the fast answer and members from the quality answer.
func merge(fastOut, qualityOut json.RawMessage) (json.RawMessage, error) {
	var fast, quality tierOutput
	if err := json.Unmarshal(fastOut, &fast); err != nil {
		return nil, fmt.Errorf("%w: fast tier: %v", ErrSchemaValidation, err)
	}
	if err := json.Unmarshal(qualityOut, &quality); err != nil {
		return nil, fmt.Errorf("%w: quality tier: %v", ErrSchemaValidation, err)
	}

	merged, err := json.Marshal(tierOutput{Expense: fast.Expense, Members: quality.Members})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSchemaValidation, err)
	}
	return merged, nil
}
