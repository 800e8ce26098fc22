package parser

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/mmynk/splitledger/internal/generation"
	"github.com/mmynk/splitledger/internal/models"
)

// stubBackend answers with a fixed document or error.
type stubBackend struct {
	model string
	out   string
	err   error
	block bool

	mu    sync.Mutex
	calls []generation.Call
}

func (s *stubBackend) Model() string { return s.model }

func (s *stubBackend) Generate(ctx context.Context, call generation.Call) (json.RawMessage, error) {
	s.mu.Lock()
	s.calls = append(s.calls, call)
	s.mu.Unlock()

	if s.block {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(s.out), nil
}

func (s *stubBackend) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

const (
	dinnerExpense = `{"amount": 85, "description": "Dinner"}`
	halfAndHalf   = `[{"name": "USER", "role": "payer", "split": [1, 2]}, {"name": "John", "role": "participant", "split": [1, 2]}]`
)

func doc(expense, members string) string {
	return `{"expense": ` + expense + `, "members": ` + members + `}`
}

func newTestParser(fast, quality generation.Backend) *Parser {
	registry := generation.NewRegistry()
	registry.Register(TierFast, fast)
	registry.Register(TierQuality, quality)
	adapter := generation.NewAdapter(generation.WithTracerProvider(noop.NewTracerProvider()))
	return New(registry, adapter, Tiers{}, nil)
}

func TestParseFieldSourcedMerge(t *testing.T) {
	fast := &stubBackend{model: "small", out: doc(dinnerExpense, `[{"name": "Someone", "role": "payer", "split": [1, 1]}]`)}
	quality := &stubBackend{model: "large", out: doc(`{"amount": 1, "description": "Wrong"}`, halfAndHalf)}
	p := newTestParser(fast, quality)

	draft, err := p.Parse(context.Background(), Input{Description: "Between John and I, that dinner came to $85"})
	require.NoError(t, err)

	assert.Equal(t, ExpenseDraft{Amount: 85, Description: "Dinner"}, draft.Expense)
	require.Len(t, draft.Members, 2)
	assert.Equal(t, ParticipantDraft{Name: "USER", Role: models.RolePayer, Split: models.Fraction{Numerator: 1, Denominator: 2}}, draft.Members[0])
	assert.Equal(t, ParticipantDraft{Name: "John", Role: models.RoleParticipant, Split: models.Fraction{Numerator: 1, Denominator: 2}}, draft.Members[1])
	assert.True(t, draft.Members[0].IsSentinel())
	assert.False(t, draft.Members[1].IsSentinel())

	// Both tiers get the same instructions.
	require.Equal(t, 1, fast.callCount())
	require.Equal(t, 1, quality.callCount())
	assert.Equal(t, fast.calls[0].System, quality.calls[0].System)
	assert.Equal(t, fast.calls[0].Prompt, quality.calls[0].Prompt)
	assert.Contains(t, fast.calls[0].Prompt, "$85")
}

func TestParseSendsImagesToBothTiers(t *testing.T) {
	const img = "data:image/jpeg;base64,aGVsbG8="
	fast := &stubBackend{model: "small", out: doc(dinnerExpense, halfAndHalf)}
	quality := &stubBackend{model: "large", out: doc(dinnerExpense, halfAndHalf)}
	p := newTestParser(fast, quality)

	_, err := p.Parse(context.Background(), Input{Description: "see receipt", Images: []string{img, "bogus"}})
	require.NoError(t, err)

	assert.Equal(t, []string{img}, fast.calls[0].Images)
	assert.Equal(t, []string{img}, quality.calls[0].Images)
}

func TestParseFailsWhenEitherTierFails(t *testing.T) {
	ok := func() *stubBackend { return &stubBackend{model: "ok", out: doc(dinnerExpense, halfAndHalf)} }
	broken := func() *stubBackend { return &stubBackend{model: "broken", err: errors.New("upstream 503")} }

	tests := []struct {
		name    string
		fast    *stubBackend
		quality *stubBackend
	}{
		{"fast fails", broken(), ok()},
		{"quality fails", ok(), broken()},
		{"both fail", broken(), broken()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestParser(tt.fast, tt.quality)

			draft, err := p.Parse(context.Background(), Input{Description: "dinner $85"})
			assert.Nil(t, draft)
			var genErr *generation.GenerationError
			require.ErrorAs(t, err, &genErr)
			assert.Equal(t, "broken", genErr.Model)
			assert.Equal(t, "generation", Kind(err))
		})
	}
}

func TestParseCancelsSiblingOnFailure(t *testing.T) {
	fast := &stubBackend{model: "small", err: errors.New("boom")}
	quality := &stubBackend{model: "large", block: true}
	p := newTestParser(fast, quality)

	done := make(chan error, 1)
	go func() {
		_, err := p.Parse(context.Background(), Input{Description: "dinner $85"})
		done <- err
	}()

	select {
	case err := <-done:
		var genErr *generation.GenerationError
		require.ErrorAs(t, err, &genErr)
		assert.Equal(t, "small", genErr.Model)
	case <-time.After(5 * time.Second):
		t.Fatal("Parse did not return after the fast tier failed")
	}
}

func TestParseTierOverrides(t *testing.T) {
	registry := generation.NewRegistry()
	broken := &stubBackend{model: "broken", err: errors.New("should not be called")}
	pro := &stubBackend{model: "pro", out: doc(dinnerExpense, halfAndHalf)}
	registry.Register(TierFast, broken)
	registry.Register(TierQuality, broken)
	registry.Register("pro", pro)
	p := New(registry, generation.NewAdapter(), Tiers{}, nil)

	_, err := p.Parse(context.Background(), Input{Description: "dinner", Tiers: Tiers{Fast: "pro", Quality: "pro"}})
	require.NoError(t, err)
	assert.Equal(t, 2, pro.callCount())
	assert.Equal(t, 0, broken.callCount())

	_, err = p.Parse(context.Background(), Input{Description: "dinner", Tiers: Tiers{Quality: "missing"}})
	assert.ErrorIs(t, err, generation.ErrUnknownModel)
}

func TestParseEmptyDescription(t *testing.T) {
	p := newTestParser(&stubBackend{model: "a"}, &stubBackend{model: "b"})

	_, err := p.Parse(context.Background(), Input{Description: "   "})
	assert.ErrorIs(t, err, ErrEmptyDescription)
}

func TestParseSchemaValidation(t *testing.T) {
	tests := []struct {
		name    string
		expense string
		members string
	}{
		{"fractional split entry", dinnerExpense, `[{"name": "USER", "role": "payer", "split": [0.5, 1]}]`},
		{"split with three entries", dinnerExpense, `[{"name": "USER", "role": "payer", "split": [1, 1, 1]}]`},
		{"split as object", dinnerExpense, `[{"name": "USER", "role": "payer", "split": {"n": 1, "d": 1}}]`},
		{"zero denominator", dinnerExpense, `[{"name": "USER", "role": "payer", "split": [1, 0]}]`},
		{"negative numerator", dinnerExpense, `[{"name": "USER", "role": "payer", "split": [-1, 2]}]`},
		{"unknown role", dinnerExpense, `[{"name": "USER", "role": "owner", "split": [1, 1]}]`},
		{"missing name", dinnerExpense, `[{"role": "payer", "split": [1, 1]}]`},
		{"unknown member field", dinnerExpense, `[{"name": "USER", "role": "payer", "split": [1, 1], "email": "x"}]`},
		{"missing amount", `{"description": "Dinner"}`, halfAndHalf},
		{"fractional amount", `{"amount": 85.5, "description": "Dinner"}`, halfAndHalf},
		{"members not a list", dinnerExpense, `"USER"`},
		{"members missing", dinnerExpense, `null`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := doc(tt.expense, tt.members)
			p := newTestParser(&stubBackend{model: "small", out: out}, &stubBackend{model: "large", out: out})

			_, err := p.Parse(context.Background(), Input{Description: "dinner"})
			assert.ErrorIs(t, err, ErrSchemaValidation)
			assert.Equal(t, "schema", Kind(err))
		})
	}
}

func TestParseBusinessValidation(t *testing.T) {
	tests := []struct {
		name    string
		expense string
		members string
		want    error
	}{
		{"zero amount", `{"amount": 0, "description": "Dinner"}`, halfAndHalf, ErrAmountInvalid},
		{"negative amount", `{"amount": -5, "description": "Dinner"}`, halfAndHalf, ErrAmountInvalid},
		{"amount checked before payer", `{"amount": 0, "description": "Dinner"}`, `[]`, ErrAmountInvalid},
		{"no payer", dinnerExpense, `[{"name": "USER", "role": "participant", "split": [1, 1]}]`, ErrMissingPayer},
		{"two payers", dinnerExpense, `[{"name": "USER", "role": "payer", "split": [1, 2]}, {"name": "John", "role": "payer", "split": [1, 2]}]`, ErrMissingPayer},
		{"empty members reports missing payer first", dinnerExpense, `[]`, ErrMissingPayer},
		{"numerator above denominator", dinnerExpense, `[{"name": "USER", "role": "payer", "split": [3, 2]}, {"name": "John", "role": "participant", "split": [0, 2]}]`, ErrInvalidSplitBounds},
		{"splits short of one", dinnerExpense, `[{"name": "USER", "role": "payer", "split": [1, 3]}, {"name": "John", "role": "participant", "split": [1, 3]}]`, ErrSplitSumMismatch},
		{"splits beyond tolerance", dinnerExpense, `[{"name": "USER", "role": "payer", "split": [333, 1000]}, {"name": "A", "role": "participant", "split": [333, 1000]}, {"name": "B", "role": "participant", "split": [333, 1000]}]`, ErrSplitSumMismatch},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out := doc(tt.expense, tt.members)
			p := newTestParser(&stubBackend{model: "small", out: out}, &stubBackend{model: "large", out: out})

			_, err := p.Parse(context.Background(), Input{Description: "dinner"})
			assert.ErrorIs(t, err, tt.want)
		})
	}
}

func TestValidatedDraftInvariants(t *testing.T) {
	memberSets := []string{
		halfAndHalf,
		`[{"name": "USER", "role": "participant", "split": [1, 3]}, {"name": "A", "role": "payer", "split": [1, 3]}, {"name": "B", "role": "participant", "split": [1, 3]}]`,
		`[{"name": "USER", "role": "payer", "split": [1, 1]}]`,
		`[{"name": "USER", "role": "payer", "split": [3, 4]}, {"name": "A", "role": "participant", "split": [1, 8]}, {"name": "B", "role": "participant", "split": [1, 8]}]`,
	}

	for _, members := range memberSets {
		out := doc(dinnerExpense, members)
		p := newTestParser(&stubBackend{model: "small", out: out}, &stubBackend{model: "large", out: out})

		draft, err := p.Parse(context.Background(), Input{Description: "dinner"})
		require.NoError(t, err)

		var sum float64
		payers := 0
		for _, m := range draft.Members {
			sum += m.Split.Float64()
			if m.Role == models.RolePayer {
				payers++
			}
		}
		assert.LessOrEqual(t, math.Abs(sum-1), splitTolerance)
		assert.Equal(t, 1, payers)
	}
}

func TestKind(t *testing.T) {
	assert.Equal(t, "ok", Kind(nil))
	assert.Equal(t, "split_sum", Kind(ErrSplitSumMismatch))
	assert.Equal(t, "other", Kind(errors.New("x")))
}
