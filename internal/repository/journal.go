package repository

import (
	"context"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/google/uuid"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
)

const journalTable = "mutation_journal"

// Максимум строк, возвращаемых ListRecent.
const maxJournalLimit = 200

var journalColumns = []string{
	"id::text", "username", "kind", "record_id", "record_name",
	"outcome", "error_message", "started_at", "resolved_at",
}

// MutationJournalRepository — интерфейс для таблицы mutation_journal.
type MutationJournalRepository interface {
	// Append сохраняет разрешённое изменение.
	Append(ctx context.Context, entry model.JournalEntry) error
	// ListRecent возвращает последние изменения (новые первыми).
	// Пустой username — изменения всех пользователей.
	ListRecent(ctx context.Context, username string, limit int) ([]model.JournalEntry, error)
}

type journalRepo struct {
	db DBTX
}

// NewMutationJournalRepository создаёт репозиторий журнала изменений.
func NewMutationJournalRepository(db DBTX) MutationJournalRepository {
	return &journalRepo{db: db}
}

// Append сохраняет запись журнала. Повторный ID — ErrConflict.
func (r *journalRepo) Append(ctx context.Context, e model.JournalEntry) error {
	id, err := uuid.Parse(e.ID)
	if err != nil {
		return fmt.Errorf("некорректный ID изменения %q: %w", e.ID, err)
	}

	query, args, err := psql.Insert(journalTable).
		Columns(
			"id", "username", "kind", "record_id", "record_name",
			"outcome", "error_message", "started_at", "resolved_at",
		).
		Values(
			id, e.Username, string(e.Kind), e.RecordID, e.RecordName,
			string(e.Outcome), e.ErrorMessage, e.StartedAt, e.ResolvedAt,
		).
		ToSql()
	if err != nil {
		return fmt.Errorf("ошибка построения запроса mutation_journal: %w", err)
	}

	if _, err := r.db.Exec(ctx, query, args...); err != nil {
		if isUniqueViolation(err) {
			return ErrConflict
		}
		return fmt.Errorf("ошибка записи mutation_journal[%s]: %w", e.ID, err)
	}
	return nil
}

// ListRecent возвращает не более limit последних изменений.
func (r *journalRepo) ListRecent(ctx context.Context, username string, limit int) ([]model.JournalEntry, error) {
	if limit <= 0 || limit > maxJournalLimit {
		limit = maxJournalLimit
	}

	q := psql.Select(journalColumns...).
		From(journalTable).
		OrderBy("resolved_at DESC").
		Limit(uint64(limit))
	if username != "" {
		q = q.Where(squirrel.Eq{"username": username})
	}

	query, args, err := q.ToSql()
	if err != nil {
		return nil, fmt.Errorf("ошибка построения запроса mutation_journal: %w", err)
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ошибка чтения mutation_journal: %w", err)
	}
	defer rows.Close()

	var entries []model.JournalEntry
	for rows.Next() {
		var (
			e             model.JournalEntry
			kind, outcome string
		)
		if err := rows.Scan(
			&e.ID, &e.Username, &kind, &e.RecordID, &e.RecordName,
			&outcome, &e.ErrorMessage, &e.StartedAt, &e.ResolvedAt,
		); err != nil {
			return nil, fmt.Errorf("ошибка сканирования mutation_journal: %w", err)
		}
		e.Kind = model.MutationKind(kind)
		e.Outcome = model.MutationState(outcome)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("ошибка итерации mutation_journal: %w", err)
	}
	return entries, nil
}
