package service

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Метрики реестра рабочих областей.
var (
	workspaceHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ru_workspace_hits_total",
		Help: "Обращения к существующей рабочей области сессии",
	})
	workspaceMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "ru_workspace_misses_total",
		Help: "Создания рабочей области сессии",
	})
)

// Workspace — клиентское состояние одной браузерной сессии:
// кэш записей, исполнитель изменений, диалог и очередь уведомлений.
type Workspace struct {
	ID       string
	Session  *SessionState
	Cache    *RecordCache
	Executor *MutationExecutor
	Editor   *RecordEditor
	Notices  *NotificationQueue

	baseCtx   context.Context
	closeOnce sync.Once
}

// WorkspaceDeps — общие зависимости рабочих областей.
type WorkspaceDeps struct {
	// BaseCtx — контекст фоновых запросов (живёт до остановки сервиса)
	BaseCtx context.Context
	Store   RecordStore
	// Journal — журнал изменений, nil если отключён
	Journal MutationJournal
	Logger  *slog.Logger
}

// NewWorkspace создаёт рабочую область сессии id.
func NewWorkspace(id string, deps WorkspaceDeps) *Workspace {
	logger := deps.Logger.With(slog.String("workspace", id))
	session := NewSessionState()
	notices := NewNotificationQueue(20)
	cache := NewRecordCache(deps.Store, session, logger)
	executor := NewMutationExecutor(deps.BaseCtx, deps.Store, session, cache, notices, logger)
	if deps.Journal != nil {
		executor.SetJournal(deps.Journal)
	}

	return &Workspace{
		ID:       id,
		Session:  session,
		Cache:    cache,
		Executor: executor,
		Editor:   NewRecordEditor(),
		Notices:  notices,
		baseCtx:  deps.BaseCtx,
	}
}

// EnsureLoaded запускает первую загрузку списка; ошибка попадает в уведомления.
func (w *Workspace) EnsureLoaded() {
	w.Cache.EnsureLoaded(w.baseCtx, func(error) {
		w.Notices.Notify(NotifyError, MsgFetchFailed)
	})
}

// Refresh обновляет список и уведомляет об ошибке.
func (w *Workspace) Refresh(ctx context.Context) error {
	err := w.Cache.Refresh(ctx)
	if err != nil && !errors.Is(err, ErrStaleResponse) {
		w.Notices.Notify(NotifyError, MsgFetchFailed)
		return err
	}
	return nil
}

// Close закрывает подписки SSE. Отправленные изменения доработают сами.
func (w *Workspace) Close() {
	w.closeOnce.Do(func() {
		w.Session.Clear()
		w.Cache.Close()
		w.Notices.Close()
	})
}

// WorkspaceRegistry хранит рабочие области сессий в LRU с TTL простоя.
type WorkspaceRegistry struct {
	mu     sync.Mutex
	lru    *expirable.LRU[string, *Workspace]
	deps   WorkspaceDeps
	logger *slog.Logger
}

// NewWorkspaceRegistry создаёт реестр рабочих областей.
// maxSize — лимит одновременно хранимых сессий, idleTTL — время жизни без обращений.
func NewWorkspaceRegistry(maxSize int, idleTTL time.Duration, deps WorkspaceDeps) *WorkspaceRegistry {
	r := &WorkspaceRegistry{
		deps:   deps,
		logger: deps.Logger.With(slog.String("component", "workspace_registry")),
	}
	r.lru = expirable.NewLRU[string, *Workspace](maxSize, func(id string, ws *Workspace) {
		ws.Close()
		r.logger.Debug("Рабочая область закрыта", slog.String("workspace", id))
	}, idleTTL)
	return r
}

// GetOrCreate возвращает рабочую область сессии, создавая её при отсутствии.
// Каждое обращение продлевает TTL.
func (r *WorkspaceRegistry) GetOrCreate(id string) *Workspace {
	r.mu.Lock()
	defer r.mu.Unlock()

	if ws, ok := r.lru.Get(id); ok {
		workspaceHits.Inc()
		r.lru.Add(id, ws)
		return ws
	}

	workspaceMisses.Inc()
	// Просроченная, но ещё не вычищенная запись закрывается явно
	r.lru.Remove(id)
	ws := NewWorkspace(id, r.deps)
	r.lru.Add(id, ws)
	r.logger.Debug("Рабочая область создана", slog.String("workspace", id))
	return ws
}

// Get возвращает рабочую область без создания.
func (r *WorkspaceRegistry) Get(id string) (*Workspace, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.lru.Get(id)
}

// Remove удаляет рабочую область (logout).
func (r *WorkspaceRegistry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lru.Remove(id)
}

// Len возвращает число активных рабочих областей.
func (r *WorkspaceRegistry) Len() int {
	return r.lru.Len()
}

// Drain ждёт разрешения изменений во всех рабочих областях.
func (r *WorkspaceRegistry) Drain(ctx context.Context) error {
	r.mu.Lock()
	workspaces := r.lru.Values()
	r.mu.Unlock()

	for _, ws := range workspaces {
		if err := ws.Executor.Drain(ctx); err != nil {
			return err
		}
	}
	return nil
}
