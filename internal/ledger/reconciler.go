// Package ledger turns a parsed expense into persisted ledger rows.
//
// The Reconciler fetches the group roster, parses the description, maps the
// reserved USER entry to the caller, resolves every other name against the
// roster and writes the expense with its participants in one transaction.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"time"

	"github.com/mmynk/splitledger/internal/metrics"
	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/parser"
	"github.com/mmynk/splitledger/internal/resolver"
	"github.com/mmynk/splitledger/internal/storage"
)

// TierPro selects the pro models when images are attached.
const TierPro = "pro"

var (
	// ErrParsingFailed is returned when the description could not be turned
	// into a set of known participants.
	ErrParsingFailed = errors.New("expense parsing failed")

	// ErrCreationFailed is returned when the parsed expense could not be
	// persisted.
	ErrCreationFailed = errors.New("expense creation failed")

	// ErrInvalidRequest is returned for requests missing required fields.
	ErrInvalidRequest = errors.New("invalid request")

	// ErrRosterLookup is returned when the group roster cannot be read or
	// is empty.
	ErrRosterLookup = errors.New("group roster unavailable")

	// ErrCallerNotMember is returned when the caller is not on the group's
	// roster.
	ErrCallerNotMember = errors.New("caller is not a member of the group")

	// ErrMissingPayerTarget is returned when the draft has no USER entry or
	// more than one.
	ErrMissingPayerTarget = errors.New("description has no single USER entry")

	// ErrDuplicateParticipant is returned when two entries resolve to the
	// same member.
	ErrDuplicateParticipant = errors.New("participant matched more than once")

	// ErrAmbiguousNickname is returned when a name resolves to a nickname
	// shared by several members.
	ErrAmbiguousNickname = errors.New("nickname belongs to more than one member")

	// ErrConsistency is returned when the store acknowledges fewer
	// participant rows than were written.
	ErrConsistency = errors.New("inserted participant count mismatch")
)

// Request asks for one expense to be created from a description.
type Request struct {
	GroupID     string
	UserID      string
	Description string
	// Date is a unix timestamp; zero means now.
	Date   int64
	Images []string
	// ParserTier set to TierPro switches both tiers to the pro models, but
	// only when images are attached.
	ParserTier string
}

// Result is the persisted expense.
type Result struct {
	Expense      *models.Expense
	Participants []models.ParticipantRecord
}

// Reconciler creates ledger entries from free-form descriptions.
type Reconciler struct {
	roster   storage.RosterReader
	ledger   storage.Ledger
	parser   *parser.Parser
	resolver *resolver.Resolver
	proTiers parser.Tiers
	metrics  *metrics.Collector
}

// Option configures a Reconciler.
type Option func(*Reconciler)

// WithProTiers sets the registry keys used for TierPro requests.
func WithProTiers(t parser.Tiers) Option {
	return func(r *Reconciler) {
		r.proTiers = t
	}
}

// WithMetrics records commit outcomes on c.
func WithMetrics(c *metrics.Collector) Option {
	return func(r *Reconciler) {
		r.metrics = c
	}
}

// NewReconciler creates a reconciler.
func NewReconciler(roster storage.RosterReader, ledger storage.Ledger, p *parser.Parser, res *resolver.Resolver, opts ...Option) *Reconciler {
	r := &Reconciler{
		roster:   roster,
		ledger:   ledger,
		parser:   p,
		resolver: res,
		proTiers: parser.Tiers{Fast: "fast-pro", Quality: "quality-pro"},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// CreateFromDescription parses req.Description and commits the expense.
//
// Failures before the transaction return an error wrapping ErrParsingFailed;
// failures inside it return an error wrapping ErrCreationFailed. Both still
// wrap the underlying cause. Invalid requests and cancellation of ctx are
// returned unchanged.
func (r *Reconciler) CreateFromDescription(ctx context.Context, req Request) (*Result, error) {
	start := time.Now()

	if err := validateRequest(req); err != nil {
		return nil, err
	}

	records, draft, err := r.reconcile(ctx, req)
	if err != nil {
		return nil, r.consolidate(ctx, req, ErrParsingFailed, err)
	}

	expense := &models.Expense{
		GroupID:     req.GroupID,
		Amount:      draft.Expense.Amount,
		Description: draft.Expense.Description,
		Date:        req.Date,
		CreatedBy:   req.UserID,
	}
	participants, err := r.commit(ctx, expense, records)
	if err != nil {
		r.metrics.ObserveCommit("failed")
		return nil, r.consolidate(ctx, req, ErrCreationFailed, err)
	}
	r.metrics.ObserveCommit("committed")

	slog.Info("Expense created",
		"expense_id", expense.ID,
		"group_id", req.GroupID,
		"user_id", req.UserID,
		"amount", expense.Amount,
		"participants", len(participants),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return &Result{Expense: expense, Participants: participants}, nil
}

// reconcile runs everything up to the transaction and returns the records to
// insert, without expense ids.
func (r *Reconciler) reconcile(ctx context.Context, req Request) ([]models.ParticipantRecord, *parser.Draft, error) {
	roster, err := r.roster.GetRoster(ctx, req.GroupID)
	if err != nil {
		return nil, nil, fmt.Errorf("%w: %w", ErrRosterLookup, err)
	}
	if len(roster) == 0 {
		return nil, nil, fmt.Errorf("%w: group %s has no members", ErrRosterLookup, req.GroupID)
	}
	if !slices.ContainsFunc(roster, func(m models.RosterMember) bool { return m.UserID == req.UserID }) {
		return nil, nil, fmt.Errorf("%w: %s in group %s", ErrCallerNotMember, req.UserID, req.GroupID)
	}

	draft, err := r.parser.Parse(ctx, r.parserInput(req))
	if err != nil {
		return nil, nil, err
	}

	records, err := r.resolveMembers(req.UserID, draft.Members, roster)
	if err != nil {
		return nil, nil, err
	}
	return records, draft, nil
}

// Preview parses req without touching the roster or the ledger. Errors are
// consolidated like CreateFromDescription's parse-phase errors.
func (r *Reconciler) Preview(ctx context.Context, req Request) (*parser.Draft, error) {
	if strings.TrimSpace(req.Description) == "" {
		return nil, fmt.Errorf("%w: %w", ErrInvalidRequest, parser.ErrEmptyDescription)
	}
	draft, err := r.parser.Parse(ctx, r.parserInput(req))
	if err != nil {
		return nil, r.consolidate(ctx, req, ErrParsingFailed, err)
	}
	return draft, nil
}

func (r *Reconciler) parserInput(req Request) parser.Input {
	in := parser.Input{Description: req.Description, Images: req.Images}
	if req.ParserTier == TierPro && len(req.Images) > 0 {
		in.Tiers = r.proTiers
	}
	return in
}

// resolveMembers maps the USER entry to userID and every other entry to a
// roster member. The USER record comes first.
func (r *Reconciler) resolveMembers(userID string, members []parser.ParticipantDraft, roster []models.RosterMember) ([]models.ParticipantRecord, error) {
	var self *parser.ParticipantDraft
	named := make([]parser.ParticipantDraft, 0, len(members))
	for i := range members {
		if !members[i].IsSentinel() {
			named = append(named, members[i])
			continue
		}
		if self != nil {
			return nil, fmt.Errorf("%w: found more than one", ErrMissingPayerTarget)
		}
		self = &members[i]
	}
	if self == nil {
		return nil, ErrMissingPayerTarget
	}

	records := make([]models.ParticipantRecord, 0, len(members))
	records = append(records, models.ParticipantRecord{UserID: userID, Role: self.Role, Split: self.Split})
	used := map[string]string{userID: parser.SentinelName}

	nicknames := models.Nicknames(roster)
	byNickname := make(map[string][]string, len(roster))
	for _, m := range roster {
		byNickname[m.Nickname] = append(byNickname[m.Nickname], m.UserID)
	}

	for _, m := range named {
		nickname, err := r.resolver.Resolve(m.Name, nicknames)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve %q: %w", m.Name, err)
		}
		ids := byNickname[nickname]
		if len(ids) > 1 {
			return nil, fmt.Errorf("%w: %q matches %s (%s)", ErrAmbiguousNickname, m.Name, nickname, strings.Join(ids, ", "))
		}
		id := ids[0]
		if prev, ok := used[id]; ok {
			return nil, fmt.Errorf("%w: %q and %q both match %s", ErrDuplicateParticipant, prev, m.Name, nickname)
		}
		used[id] = m.Name

		slog.Debug("Resolved participant", "name", m.Name, "nickname", nickname, "user_id", id)
		records = append(records, models.ParticipantRecord{UserID: id, Role: m.Role, Split: m.Split})
	}
	return records, nil
}

// commit writes the expense and its participants in one transaction.
func (r *Reconciler) commit(ctx context.Context, expense *models.Expense, records []models.ParticipantRecord) ([]models.ParticipantRecord, error) {
	var inserted []models.ParticipantRecord
	err := r.ledger.RunInTx(ctx, func(ctx context.Context, tx storage.LedgerTx) error {
		id, err := tx.InsertExpense(ctx, expense)
		if err != nil {
			return fmt.Errorf("failed to insert expense: %w", err)
		}

		rows := make([]models.ParticipantRecord, len(records))
		for i, rec := range records {
			rec.ExpenseID = id
			rows[i] = rec
		}

		got, err := tx.InsertParticipants(ctx, rows)
		if err != nil {
			return fmt.Errorf("failed to insert participants: %w", err)
		}
		if len(got) != len(rows) {
			return fmt.Errorf("%w: requested %d, inserted %d", ErrConsistency, len(rows), len(got))
		}
		inserted = got
		return nil
	})
	if err != nil {
		return nil, err
	}
	return inserted, nil
}

// consolidate wraps err in class unless it is a cancellation of ctx.
func (r *Reconciler) consolidate(ctx context.Context, req Request, class, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
		return err
	}
	if errors.Is(err, parser.ErrEmptyDescription) {
		return err
	}

	slog.Warn("Expense not created",
		"class", class.Error(),
		"group_id", req.GroupID,
		"user_id", req.UserID,
		"error", err,
	)
	return fmt.Errorf("%w: %w", class, err)
}

func validateRequest(req Request) error {
	switch {
	case strings.TrimSpace(req.GroupID) == "":
		return fmt.Errorf("%w: group_id is required", ErrInvalidRequest)
	case strings.TrimSpace(req.UserID) == "":
		return fmt.Errorf("%w: user_id is required", ErrInvalidRequest)
	case strings.TrimSpace(req.Description) == "":
		return fmt.Errorf("%w: %w", ErrInvalidRequest, parser.ErrEmptyDescription)
	}
	return nil
}
