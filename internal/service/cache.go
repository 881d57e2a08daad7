package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bigkaa/goartstore/records-ui/internal/domain/model"
)

// RecordStore — операции удалённого хранилища записей.
type RecordStore interface {
	List(ctx context.Context, token string) ([]model.Record, error)
	Create(ctx context.Context, token string, payload model.RecordPayload) (*model.Record, error)
	Update(ctx context.Context, token, id string, payload model.RecordPayload) (*model.Record, error)
	Delete(ctx context.Context, token, id string) error
}

// Метрики кэша записей.
var cacheRefreshTotal = promauto.NewCounterVec(
	prometheus.CounterOpts{
		Name: "ru_cache_refresh_total",
		Help: "Обновления списка записей по результату (ok, error, stale)",
	},
	[]string{"outcome"},
)

// CacheView — согласованное состояние кэша для отрисовки.
type CacheView struct {
	// State — loading, ready, error
	State model.LoadState
	// Snapshot — последний успешно полученный снимок (nil до первой загрузки)
	Snapshot *model.Snapshot
	// Stale — снимок устарел: идёт обновление после изменения или последнее обновление не удалось
	Stale bool
	// Err — ошибка последнего обновления (для State == error)
	Err error
}

// RecordCache — клиентская копия коллекции записей одной сессии.
//
// Снимок заменяется целиком под mu и публикуется через atomic.Pointer,
// читатели никогда не видят частично обновлённый список. Параллельные
// обновления допустимы: каждый запрос получает возрастающий номер,
// ответ старше уже применённого отбрасывается.
type RecordCache struct {
	store   RecordStore
	session SessionHolder
	logger  *slog.Logger
	now     func() time.Time

	issued atomic.Uint64

	mu      sync.Mutex
	applied uint64
	view    atomic.Pointer[CacheView]

	loadOnce sync.Once
	signal   *broadcaster
}

// NewRecordCache создаёт кэш в состоянии loading.
func NewRecordCache(store RecordStore, session SessionHolder, logger *slog.Logger) *RecordCache {
	c := &RecordCache{
		store:   store,
		session: session,
		logger:  logger.With(slog.String("component", "record_cache")),
		now:     time.Now,
		signal:  newBroadcaster(),
	}
	c.view.Store(&CacheView{State: model.LoadStateLoading})
	return c
}

// View возвращает текущее состояние кэша.
func (c *RecordCache) View() CacheView {
	return *c.view.Load()
}

// Snapshot возвращает текущий снимок (nil до первой успешной загрузки).
func (c *RecordCache) Snapshot() *model.Snapshot {
	return c.view.Load().Snapshot
}

// Refresh запрашивает список записей и заменяет снимок.
// При ошибке прежний снимок остаётся видимым и помечается устаревшим,
// ошибка возвращается вызывающему для уведомления пользователя.
// Повторов нет. Если к моменту ответа уже применён более поздний
// запрос, возвращается ErrStaleResponse.
func (c *RecordCache) Refresh(ctx context.Context) error {
	seq := c.issued.Add(1)

	var (
		records []model.Record
		err     error
	)
	token, ok := c.session.CurrentToken()
	if !ok {
		err = ErrNoSession
	} else {
		records, err = c.store.List(ctx, token)
	}

	c.mu.Lock()
	if seq < c.applied {
		c.mu.Unlock()
		cacheRefreshTotal.WithLabelValues("stale").Inc()
		c.logger.Debug("Устаревший ответ списка записей отброшен",
			slog.Uint64("seq", seq),
		)
		return ErrStaleResponse
	}
	c.applied = seq

	prev := c.view.Load()
	var next CacheView
	if err != nil {
		next = CacheView{
			State:    model.LoadStateError,
			Snapshot: prev.Snapshot,
			Stale:    prev.Snapshot != nil,
			Err:      err,
		}
	} else {
		next = CacheView{
			State: model.LoadStateReady,
			Snapshot: &model.Snapshot{
				Records:   records,
				FetchedAt: c.now(),
				Seq:       seq,
			},
		}
	}
	c.view.Store(&next)
	c.mu.Unlock()

	c.signal.broadcast()

	if err != nil {
		cacheRefreshTotal.WithLabelValues("error").Inc()
		c.logger.Warn("Ошибка обновления списка записей",
			slog.Uint64("seq", seq),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("обновление списка записей: %w", err)
	}

	cacheRefreshTotal.WithLabelValues("ok").Inc()
	c.logger.Debug("Список записей обновлён",
		slog.Uint64("seq", seq),
		slog.Int("count", len(records)),
	)
	return nil
}

// Invalidate помечает снимок устаревшим и запускает обновление.
func (c *RecordCache) Invalidate(ctx context.Context) error {
	c.mu.Lock()
	prev := c.view.Load()
	if !prev.Stale && prev.State == model.LoadStateReady {
		next := *prev
		next.Stale = true
		c.view.Store(&next)
	}
	c.mu.Unlock()

	return c.Refresh(ctx)
}

// EnsureLoaded один раз запускает первую загрузку в фоне.
// onErr вызывается при ошибке загрузки (кроме ErrStaleResponse).
func (c *RecordCache) EnsureLoaded(ctx context.Context, onErr func(error)) {
	c.loadOnce.Do(func() {
		go func() {
			if err := c.Refresh(ctx); err != nil && !errors.Is(err, ErrStaleResponse) && onErr != nil {
				onErr(err)
			}
		}()
	})
}

// Subscribe возвращает канал сигналов о смене снимка или состояния.
func (c *RecordCache) Subscribe() (<-chan struct{}, func()) {
	return c.signal.subscribe()
}

// Close закрывает каналы подписчиков.
func (c *RecordCache) Close() {
	c.signal.close()
}
