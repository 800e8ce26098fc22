package telemetry

import (
	"context"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/mmynk/splitledger/internal/models"
	"github.com/mmynk/splitledger/internal/storage"
)

const storeTracerName = "github.com/mmynk/splitledger/internal/storage"

// TraceStore wraps a store so roster reads and ledger transactions each get
// a span.
func TraceStore(store storage.Store, tp trace.TracerProvider) storage.Store {
	return &tracedStore{Store: store, tracer: tp.Tracer(storeTracerName)}
}

type tracedStore struct {
	storage.Store
	tracer trace.Tracer
}

func (s *tracedStore) GetRoster(ctx context.Context, groupID string) ([]models.RosterMember, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetRoster",
		trace.WithAttributes(attribute.String("group.id", groupID)),
	)
	defer span.End()

	roster, err := s.Store.GetRoster(ctx, groupID)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("roster.size", len(roster)))
	return roster, nil
}

func (s *tracedStore) RunInTx(ctx context.Context, fn func(ctx context.Context, tx storage.LedgerTx) error) error {
	ctx, span := s.tracer.Start(ctx, "storage.RunInTx")
	defer span.End()

	err := s.Store.RunInTx(ctx, func(ctx context.Context, tx storage.LedgerTx) error {
		return fn(ctx, &tracedTx{LedgerTx: tx, tracer: s.tracer})
	})
	if err != nil {
		fail(span, err)
	}
	return err
}

func (s *tracedStore) GetExpense(ctx context.Context, expenseID string) (*models.Expense, []models.ParticipantRecord, error) {
	ctx, span := s.tracer.Start(ctx, "storage.GetExpense",
		trace.WithAttributes(attribute.String("expense.id", expenseID)),
	)
	defer span.End()

	expense, participants, err := s.Store.GetExpense(ctx, expenseID)
	if err != nil {
		fail(span, err)
	}
	return expense, participants, err
}

type tracedTx struct {
	storage.LedgerTx
	tracer trace.Tracer
}

func (t *tracedTx) InsertExpense(ctx context.Context, expense *models.Expense) (string, error) {
	ctx, span := t.tracer.Start(ctx, "storage.InsertExpense",
		trace.WithAttributes(attribute.String("group.id", expense.GroupID)),
	)
	defer span.End()

	id, err := t.LedgerTx.InsertExpense(ctx, expense)
	if err != nil {
		fail(span, err)
		return "", err
	}
	span.SetAttributes(attribute.String("expense.id", id))
	return id, nil
}

func (t *tracedTx) InsertParticipants(ctx context.Context, rows []models.ParticipantRecord) ([]models.ParticipantRecord, error) {
	ctx, span := t.tracer.Start(ctx, "storage.InsertParticipants",
		trace.WithAttributes(attribute.Int("participants.requested", len(rows))),
	)
	defer span.End()

	inserted, err := t.LedgerTx.InsertParticipants(ctx, rows)
	if err != nil {
		fail(span, err)
		return nil, err
	}
	span.SetAttributes(attribute.Int("participants.inserted", len(inserted)))
	return inserted, nil
}

func fail(span trace.Span, err error) {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
}
