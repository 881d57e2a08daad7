package service

import (
	"sync"
	"time"
)

// Ключи сообщений для уведомлений (переводятся в ui/i18n).
const (
	MsgCreateSucceeded = "notify.create_succeeded"
	MsgCreateFailed    = "notify.create_failed"
	MsgUpdateSucceeded = "notify.update_succeeded"
	MsgUpdateFailed    = "notify.update_failed"
	MsgDeleteSucceeded = "notify.delete_succeeded"
	MsgDeleteFailed    = "notify.delete_failed"
	MsgFetchFailed     = "notify.fetch_failed"
	MsgMissingFields   = "notify.missing_fields"
	MsgInvalidDate     = "notify.invalid_date"
	MsgDialogMismatch  = "notify.dialog_mismatch"
	MsgForbidden       = "notify.forbidden"
	MsgLogoutSucceeded = "notify.logout_succeeded"
)

// NotificationKind — вид уведомления.
type NotificationKind string

const (
	NotifySuccess NotificationKind = "success"
	NotifyError   NotificationKind = "error"
	NotifyInfo    NotificationKind = "info"
)

// Notification — всплывающее сообщение для пользователя.
type Notification struct {
	// ID — порядковый номер в очереди
	ID uint64
	// Kind — success, error, info
	Kind NotificationKind
	// MessageKey — ключ перевода
	MessageKey string
	// At — время создания
	At time.Time
}

// TitleKey возвращает ключ заголовка по виду уведомления.
func (n Notification) TitleKey() string {
	switch n.Kind {
	case NotifySuccess:
		return "notify.title_success"
	case NotifyError:
		return "notify.title_error"
	default:
		return "notify.title_info"
	}
}

// Notifier — получатель уведомлений.
type Notifier interface {
	Notify(kind NotificationKind, messageKey string)
}

// NotificationQueue — очередь уведомлений одной сессии.
// Забирается целиком при отрисовке, старые сообщения сверх лимита отбрасываются.
type NotificationQueue struct {
	mu     sync.Mutex
	items  []Notification
	limit  int
	nextID uint64
	now    func() time.Time
	signal *broadcaster
}

// NewNotificationQueue создаёт очередь с ограничением размера.
func NewNotificationQueue(limit int) *NotificationQueue {
	if limit <= 0 {
		limit = 20
	}
	return &NotificationQueue{
		limit:  limit,
		now:    time.Now,
		signal: newBroadcaster(),
	}
}

// Notify добавляет уведомление и будит подписчиков.
func (q *NotificationQueue) Notify(kind NotificationKind, messageKey string) {
	q.mu.Lock()
	q.nextID++
	q.items = append(q.items, Notification{
		ID:         q.nextID,
		Kind:       kind,
		MessageKey: messageKey,
		At:         q.now(),
	})
	if len(q.items) > q.limit {
		q.items = q.items[len(q.items)-q.limit:]
	}
	q.mu.Unlock()

	q.signal.broadcast()
}

// Drain возвращает и удаляет все накопленные уведомления.
func (q *NotificationQueue) Drain() []Notification {
	q.mu.Lock()
	defer q.mu.Unlock()
	items := q.items
	q.items = nil
	return items
}

// Len возвращает количество ожидающих уведомлений.
func (q *NotificationQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Subscribe возвращает канал сигналов о новых уведомлениях.
func (q *NotificationQueue) Subscribe() (<-chan struct{}, func()) {
	return q.signal.subscribe()
}

// Close закрывает каналы подписчиков.
func (q *NotificationQueue) Close() {
	q.signal.close()
}

// broadcaster рассылает сигнал «что-то изменилось» подписчикам.
// Сигналы схлопываются: канал с буфером 1.
type broadcaster struct {
	mu     sync.Mutex
	subs   map[chan struct{}]struct{}
	closed bool
}

func newBroadcaster() *broadcaster {
	return &broadcaster{subs: make(map[chan struct{}]struct{})}
}

func (b *broadcaster) subscribe() (<-chan struct{}, func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ch := make(chan struct{}, 1)
	if b.closed {
		close(ch)
		return ch, func() {}
	}
	b.subs[ch] = struct{}{}
	cancel := func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		if _, ok := b.subs[ch]; ok {
			delete(b.subs, ch)
			close(ch)
		}
	}
	return ch, cancel
}

func (b *broadcaster) broadcast() {
	b.mu.Lock()
	defer b.mu.Unlock()
	for ch := range b.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

func (b *broadcaster) close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}
	b.closed = true
	for ch := range b.subs {
		close(ch)
		delete(b.subs, ch)
	}
}
