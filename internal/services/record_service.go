// Package services orchestrates record operations: persistence through the
// store plus best-effort event publishing for mutations.
package services

import (
	"context"
	"fmt"
	"log/slog"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
)

// Store is the owner-scoped record persistence the service requires.
// *storage.SQLiteRepository satisfies it.
type Store interface {
	ListIncomes(ctx context.Context, userID string) ([]core.Income, error)
	CreateIncome(ctx context.Context, userID string, d core.RecordDraft) (core.Income, error)
	UpdateIncome(ctx context.Context, userID, id string, d core.RecordDraft) (core.Income, error)
	DeleteIncome(ctx context.Context, userID, id string) error

	ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	CreateExpense(ctx context.Context, userID string, d core.RecordDraft) (core.Expense, error)
	UpdateExpense(ctx context.Context, userID, id string, d core.RecordDraft) (core.Expense, error)
	DeleteExpense(ctx context.Context, userID, id string) error
}

// EventPublisher emits record mutation events. *amqp.Client satisfies it.
type EventPublisher interface {
	PublishRecordEvent(ctx context.Context, entity core.RecordKind, action, recordID, userID string) error
}

// RecordService is the per-user CRUD surface over both record entities.
// The store is the source of truth; event publishing never fails a request.
type RecordService struct {
	store  Store
	events EventPublisher
}

// NewRecordService wires the service. events may be nil when no broker is
// configured.
func NewRecordService(store Store, events EventPublisher) *RecordService {
	return &RecordService{store: store, events: events}
}

func (s *RecordService) GetIncomes(ctx context.Context, userID string) ([]core.Income, error) {
	incomes, err := s.store.ListIncomes(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list incomes: %w", err)
	}
	return incomes, nil
}

func (s *RecordService) CreateIncome(ctx context.Context, userID string, d core.RecordDraft) (core.Income, error) {
	in, err := s.store.CreateIncome(ctx, userID, d)
	if err != nil {
		return core.Income{}, fmt.Errorf("create income: %w", err)
	}
	s.publish(ctx, core.KindIncome, amqp.ActionCreated, in.ID, userID)
	return in, nil
}

func (s *RecordService) UpdateIncome(ctx context.Context, userID, id string, d core.RecordDraft) (core.Income, error) {
	in, err := s.store.UpdateIncome(ctx, userID, id, d)
	if err != nil {
		return core.Income{}, err
	}
	s.publish(ctx, core.KindIncome, amqp.ActionUpdated, in.ID, userID)
	return in, nil
}

func (s *RecordService) DeleteIncome(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteIncome(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, core.KindIncome, amqp.ActionDeleted, id, userID)
	return nil
}

func (s *RecordService) GetExpenses(ctx context.Context, userID string) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return expenses, nil
}

func (s *RecordService) CreateExpense(ctx context.Context, userID string, d core.RecordDraft) (core.Expense, error) {
	ex, err := s.store.CreateExpense(ctx, userID, d)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.publish(ctx, core.KindExpense, amqp.ActionCreated, ex.ID, userID)
	return ex, nil
}

func (s *RecordService) UpdateExpense(ctx context.Context, userID, id string, d core.RecordDraft) (core.Expense, error) {
	ex, err := s.store.UpdateExpense(ctx, userID, id, d)
	if err != nil {
		return core.Expense{}, err
	}
	s.publish(ctx, core.KindExpense, amqp.ActionUpdated, ex.ID, userID)
	return ex, nil
}

func (s *RecordService) DeleteExpense(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return err
	}
	s.publish(ctx, core.KindExpense, amqp.ActionDeleted, id, userID)
	return nil
}

// publish emits a mutation event. The record is already persisted, so a
// publish failure is logged and swallowed.
func (s *RecordService) publish(ctx context.Context, entity core.RecordKind, action, recordID, userID string) {
	if s.events == nil {
		return
	}
	if err := s.events.PublishRecordEvent(ctx, entity, action, recordID, userID); err != nil {
		slog.ErrorContext(ctx, "Failed to publish record event",
			"error", err,
			"entity", entity,
			"action", action,
			"record_id", recordID)
	}
}
