package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
)

var mutationsTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ru_mutations_total",
		Help: "Изменения записей по типу и результату",
	},
	[]string{"kind", "outcome"},
)

// Confirmer спрашивает пользователя, выполнять ли удаление.
type Confirmer interface {
	Confirm() bool
}

// ConfirmFunc — адаптер функции к Confirmer.
type ConfirmFunc func() bool

// Confirm вызывает f.
func (f ConfirmFunc) Confirm() bool { return f() }

// Invalidator — кэш, который нужно обновить после успешного изменения.
type Invalidator interface {
	Invalidate(ctx context.Context) error
}

// MutationJournal — журнал разрешённых изменений.
type MutationJournal interface {
	Append(ctx context.Context, entry model.JournalEntry) error
}

// messages — фиксированные ключи сообщений по типу изменения.
var messages = map[model.MutationKind]struct{ ok, fail string }{
	model.MutationCreate: {MsgCreateSucceeded, MsgCreateFailed},
	model.MutationUpdate: {MsgUpdateSucceeded, MsgUpdateFailed},
	model.MutationDelete: {MsgDeleteSucceeded, MsgDeleteFailed},
}

// MutationExecutor отправляет изменения в хранилище.
//
// Create, Update и Delete возвращаются сразу, запрос выполняется в
// отдельной горутине. Каждое изменение разрешается ровно один раз:
// успех — уведомление и Invalidate кэша, ошибка — уведомление,
// снимок не трогается. Изменения между собой не упорядочиваются,
// при конкурирующих правках одной записи побеждает последняя,
// обработанная хранилищем.
type MutationExecutor struct {
	baseCtx  context.Context
	store    RecordStore
	session  SessionHolder
	cache    Invalidator
	notifier Notifier
	journal  MutationJournal
	logger   *slog.Logger
	now      func() time.Time

	wg sync.WaitGroup
}

// NewMutationExecutor создаёт исполнитель изменений.
// baseCtx ограничивает время жизни запросов: изменения не отменяются
// вместе с HTTP-запросом пользователя.
func NewMutationExecutor(
	baseCtx context.Context,
	store RecordStore,
	session SessionHolder,
	cache Invalidator,
	notifier Notifier,
	logger *slog.Logger,
) *MutationExecutor {
	return &MutationExecutor{
		baseCtx:  baseCtx,
		store:    store,
		session:  session,
		cache:    cache,
		notifier: notifier,
		logger:   logger.With(slog.String("component", "mutation_executor")),
		now:      time.Now,
	}
}

// SetJournal подключает журнал изменений (опционально).
func (e *MutationExecutor) SetJournal(j MutationJournal) {
	e.journal = j
}

// Create отправляет создание записи.
func (e *MutationExecutor) Create(payload model.RecordPayload) *model.PendingMutation {
	m := model.NewPendingMutation(uuid.NewString(), model.MutationCreate, "", &payload, e.now())
	e.launch(m, func(ctx context.Context, token string) (string, error) {
		rec, err := e.store.Create(ctx, token, payload)
		if err != nil {
			return "", err
		}
		return rec.ID, nil
	})
	return m
}

// Update отправляет изменение записи id.
// Отсутствие записи в хранилище — такая же ошибка изменения.
func (e *MutationExecutor) Update(id string, payload model.RecordPayload) *model.PendingMutation {
	m := model.NewPendingMutation(uuid.NewString(), model.MutationUpdate, id, &payload, e.now())
	e.launch(m, func(ctx context.Context, token string) (string, error) {
		_, err := e.store.Update(ctx, token, id, payload)
		return id, err
	})
	return m
}

// Delete спрашивает подтверждение и отправляет удаление.
// Без утвердительного ответа запрос не выполняется: (nil, false).
func (e *MutationExecutor) Delete(id string, confirmer Confirmer) (*model.PendingMutation, bool) {
	if confirmer == nil || !confirmer.Confirm() {
		e.logger.Debug("Удаление не подтверждено", slog.String("record_id", id))
		return nil, false
	}
	m := model.NewPendingMutation(uuid.NewString(), model.MutationDelete, id, nil, e.now())
	e.launch(m, func(ctx context.Context, token string) (string, error) {
		return id, e.store.Delete(ctx, token, id)
	})
	return m, true
}

// Wait ждёт разрешения всех отправленных изменений.
func (e *MutationExecutor) Wait() {
	e.wg.Wait()
}

// Drain ждёт разрешения изменений не дольше ctx.
func (e *MutationExecutor) Drain(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// launch выполняет запрос в горутине.
func (e *MutationExecutor) launch(m *model.PendingMutation, call func(ctx context.Context, token string) (string, error)) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()

		recordID := m.RecordID
		token, ok := e.session.CurrentToken()
		var err error
		if !ok {
			err = ErrNoSession
		} else {
			var id string
			id, err = call(e.baseCtx, token)
			if id != "" {
				recordID = id
			}
		}
		e.resolve(m, recordID, err)
	}()
}

// resolve переводит изменение в конечное состояние и уведомляет пользователя.
func (e *MutationExecutor) resolve(m *model.PendingMutation, recordID string, err error) {
	if !m.Resolve(err, e.now()) {
		return
	}
	msg := messages[m.Kind]

	if err != nil {
		mutationsTotal.WithLabelValues(string(m.Kind), "failed").Inc()
		e.logger.Warn("Изменение записи не выполнено",
			slog.String("mutation_id", m.ID),
			slog.String("kind", string(m.Kind)),
			slog.String("record_id", recordID),
			slog.String("error", err.Error()),
		)
		e.record(m, recordID)
		e.notifier.Notify(NotifyError, msg.fail)
		return
	}

	mutationsTotal.WithLabelValues(string(m.Kind), "succeeded").Inc()
	e.logger.Info("Изменение записи выполнено",
		slog.String("mutation_id", m.ID),
		slog.String("kind", string(m.Kind)),
		slog.String("record_id", recordID),
	)
	e.record(m, recordID)
	e.notifier.Notify(NotifySuccess, msg.ok)

	if ierr := e.cache.Invalidate(e.baseCtx); ierr != nil && !errors.Is(ierr, ErrStaleResponse) {
		e.notifier.Notify(NotifyError, MsgFetchFailed)
	}
}

// record пишет изменение в журнал, ошибки журнала только логируются.
func (e *MutationExecutor) record(m *model.PendingMutation, recordID string) {
	if e.journal == nil {
		return
	}

	entry := model.JournalEntry{
		ID:         m.ID,
		Kind:       m.Kind,
		RecordID:   recordID,
		Outcome:    m.State(),
		StartedAt:  m.StartedAt,
		ResolvedAt: m.ResolvedAt(),
	}
	if u, ok := e.session.(interface{ Username() string }); ok {
		entry.Username = u.Username()
	}
	if m.Payload != nil {
		entry.RecordName = m.Payload.Name
	}
	if err := m.Err(); err != nil {
		entry.ErrorMessage = err.Error()
	}

	if err := e.journal.Append(e.baseCtx, entry); err != nil {
		e.logger.Warn("Ошибка записи в журнал изменений",
			slog.String("mutation_id", m.ID),
			slog.String("error", err.Error()),
		)
	}
}
