package model

import (
	"sync"
	"time"
)

// MutationKind — тип изменения записи.
type MutationKind string

const (
	MutationCreate MutationKind = "create"
	MutationUpdate MutationKind = "update"
	MutationDelete MutationKind = "delete"
)

// MutationState — состояние жизненного цикла изменения.
type MutationState string

const (
	MutationInFlight  MutationState = "in_flight"
	MutationSucceeded MutationState = "succeeded"
	MutationFailed    MutationState = "failed"
)

// PendingMutation — изменение, отправленное в хранилище.
// Разрешается ровно один раз: in_flight → succeeded | failed.
type PendingMutation struct {
	// ID — UUID изменения
	ID string
	// Kind — create, update, delete
	Kind MutationKind
	// RecordID — идентификатор записи (пустой для create)
	RecordID string
	// Payload — данные для create/update
	Payload *RecordPayload
	// StartedAt — момент отправки
	StartedAt time.Time

	mu         sync.Mutex
	state      MutationState
	err        error
	resolvedAt time.Time
	done       chan struct{}
}

// NewPendingMutation создаёт изменение в состоянии in_flight.
func NewPendingMutation(id string, kind MutationKind, recordID string, payload *RecordPayload, now time.Time) *PendingMutation {
	return &PendingMutation{
		ID:        id,
		Kind:      kind,
		RecordID:  recordID,
		Payload:   payload,
		StartedAt: now,
		state:     MutationInFlight,
		done:      make(chan struct{}),
	}
}

// Resolve переводит изменение в конечное состояние.
// Повторные вызовы игнорируются, возвращается false.
func (m *PendingMutation) Resolve(err error, now time.Time) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state != MutationInFlight {
		return false
	}
	if err != nil {
		m.state = MutationFailed
		m.err = err
	} else {
		m.state = MutationSucceeded
	}
	m.resolvedAt = now
	close(m.done)
	return true
}

// State возвращает текущее состояние.
func (m *PendingMutation) State() MutationState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Err возвращает ошибку для failed-изменения.
func (m *PendingMutation) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.err
}

// ResolvedAt возвращает момент разрешения (нулевое время, пока in_flight).
func (m *PendingMutation) ResolvedAt() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.resolvedAt
}

// Done закрывается при разрешении изменения.
func (m *PendingMutation) Done() <-chan struct{} {
	return m.done
}

// JournalEntry — запись журнала изменений (хранится в mutation_journal).
type JournalEntry struct {
	// ID — UUID изменения
	ID string
	// Username — пользователь, инициировавший изменение
	Username string
	// Kind — тип изменения
	Kind MutationKind
	// RecordID — идентификатор записи (пустой для неудачного create)
	RecordID string
	// RecordName — имя из payload (пустое для delete)
	RecordName string
	// Outcome — succeeded или failed
	Outcome MutationState
	// ErrorMessage — текст ошибки для failed
	ErrorMessage string
	// StartedAt, ResolvedAt — временные метки
	StartedAt  time.Time
	ResolvedAt time.Time
}

// LoadState — состояние загрузки кэша записей.
type LoadState string

const (
	LoadStateLoading LoadState = "loading"
	LoadStateReady   LoadState = "ready"
	LoadStateError   LoadState = "error"
)
