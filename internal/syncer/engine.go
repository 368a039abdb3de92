package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/registry"
	"github.com/yallaspeak/syncd/internal/storage"
)

// Границы по умолчанию; переопределяются конфигурацией.
const (
	// DefaultRetryLimit потолок повторов для элемента offline очереди
	DefaultRetryLimit = 5
	// DefaultMaxSyncAge глубина первого pull, когда у владельца еще нет checkpoint
	DefaultMaxSyncAge = 30 * 24 * time.Hour
)

// ErrUnknownEntityType возвращается для изменения с незарегистрированным
// типом сущности. Такое изменение пропускается, цикл продолжается.
var ErrUnknownEntityType = errors.New("unknown entity type")

// Options настраивает движок. Нулевые значения заменяются дефолтами.
type Options struct {
	ConflictWindow  time.Duration
	MaxSyncAge      time.Duration
	RetryLimit      int
	DefaultStrategy models.Strategy
	Enabled         bool
}

// Engine — точка входа движка синхронизации. Выполняет цикл
// синхронизации синхронно, один вызов за раз на владельца
// (сериализация конкурентных вызовов одного владельца — обязанность
// вызывающей стороны; см. IsSyncing).
type Engine struct {
	registry    *registry.Registry
	checkpoints storage.CheckpointStorage
	queue       storage.QueueStorage
	logger      *slog.Logger

	window          time.Duration
	maxSyncAge      time.Duration
	retryLimit      int
	defaultStrategy models.Strategy
	enabled         bool

	// In-memory статус по владельцам: in-flight флаг и последняя ошибка.
	// Durable состояние (checkpoint, очередь) живет в хранилищах.
	mu        sync.Mutex
	inFlight  map[string]bool
	lastError map[string]string
}

// New создает движок синхронизации поверх реестра адаптеров
// и durable хранилищ checkpoint и offline очереди.
func New(reg *registry.Registry, checkpoints storage.CheckpointStorage, queue storage.QueueStorage, logger *slog.Logger, opts Options) *Engine {
	if opts.ConflictWindow <= 0 {
		opts.ConflictWindow = DefaultConflictWindow
	}
	if opts.MaxSyncAge <= 0 {
		opts.MaxSyncAge = DefaultMaxSyncAge
	}
	if opts.RetryLimit <= 0 {
		opts.RetryLimit = DefaultRetryLimit
	}
	if opts.DefaultStrategy == "" {
		opts.DefaultStrategy = models.StrategyServerWins
	}

	return &Engine{
		registry:        reg,
		checkpoints:     checkpoints,
		queue:           queue,
		logger:          logger,
		window:          opts.ConflictWindow,
		maxSyncAge:      opts.MaxSyncAge,
		retryLimit:      opts.RetryLimit,
		defaultStrategy: opts.DefaultStrategy,
		enabled:         opts.Enabled,
		inFlight:        make(map[string]bool),
		lastError:       make(map[string]string),
	}
}

// SyncResult содержит результат одного цикла синхронизации.
// Вызывающая сторона всегда получает результат, даже при частичном
// сбое: что применилось, что конфликтовало, что не удалось.
type SyncResult struct {
	LastSync      time.Time           // новый checkpoint владельца
	ServerChanges []*models.ChangeSet // изменения сервера для клиента
	Conflicts     []*models.Conflict  // обнаруженные конфликты (для отчета)
	Errors        []string            // изолированные ошибки по записям
	SyncedCount   int                 // применено клиентских + возвращено серверных
	ConflictCount int                 // количество разрешенных конфликтов
	Success       bool
}

// Sync выполняет полный цикл синхронизации владельца:
//  1. читает серверные изменения с последнего checkpoint;
//  2. обнаруживает конфликты с изменениями клиента;
//  3. разрешает их настроенной стратегией;
//  4. применяет неконфликтующие изменения клиента и победителей;
//  5. перечитывает серверные изменения для ответа клиенту;
//  6. продвигает checkpoint — строго последним шагом.
//
// lastSync из запроса (если задан) замещает сохраненный checkpoint:
// устройство, восстановленное из бэкапа, может перечитать историю.
// Ошибки отдельных записей собираются в результат и не прерывают цикл;
// фатальна только ошибка продвижения checkpoint.
func (e *Engine) Sync(ctx context.Context, ownerID string, clientChanges []*models.ChangeSet, lastSync *time.Time, strategy models.Strategy) (*SyncResult, error) {
	if strategy == "" {
		strategy = e.defaultStrategy
	}

	e.setInFlight(ownerID, true)
	defer e.setInFlight(ownerID, false)

	e.logger.Info("starting sync cycle",
		"owner_id", ownerID,
		"client_changes", len(clientChanges),
		"strategy", string(strategy))

	result := &SyncResult{}

	since, err := e.resolveSince(ctx, ownerID, lastSync)
	if err != nil {
		e.setLastError(ownerID, err.Error())
		return result, fmt.Errorf("failed to resolve sync checkpoint: %w", err)
	}

	// Шаг 1: серверные изменения со времени since
	serverChanges := e.collectChanges(ctx, ownerID, since, &result.Errors)

	// Шаги 2-3: обнаружение и разрешение конфликтов
	now := time.Now().UTC()
	conflicts := Detect(clientChanges, serverChanges, e.window, now)
	result.Conflicts = conflicts
	result.ConflictCount = len(conflicts)

	conflictByKey := make(map[string]*models.Conflict, len(conflicts))
	for _, c := range conflicts {
		conflictByKey[c.ClientChange.Key()] = c
	}

	// Шаг 4: применяем изменения клиента.
	// Проигравшая сторона конфликта не применяется; если победил сервер,
	// применять нечего — backing store уже содержит его версию.
	applied := 0
	for _, cc := range clientChanges {
		if cc.OwnerID != "" && cc.OwnerID != ownerID {
			// Запись чужого владельца никогда не пишется
			e.logger.Warn("change owner mismatch, skipping",
				"owner_id", ownerID,
				"change_owner", cc.OwnerID,
				"key", cc.Key())
			result.Errors = append(result.Errors, fmt.Sprintf("%s: owner mismatch", cc.Key()))
			continue
		}

		toApply := cc
		if c, ok := conflictByKey[cc.Key()]; ok {
			winner := resolveOne(c, strategy)
			if winner != c.ClientChange {
				continue
			}
			toApply = winner
		}

		if err := e.applyChange(ctx, ownerID, toApply); err != nil {
			e.logger.Warn("failed to apply client change",
				"owner_id", ownerID,
				"key", toApply.Key(),
				"error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", toApply.Key(), err))
			continue
		}
		applied++
	}

	// Шаг 5: перечитываем серверные изменения (теперь включая шаг 4)
	result.ServerChanges = e.collectChanges(ctx, ownerID, since, &result.Errors)

	// Шаг 6: продвигаем checkpoint. Любая ошибка здесь фатальна для
	// цикла: checkpoint остается прежним, повторный цикл переиграет
	// применение идемпотентно.
	checkpoint := time.Now().UTC()
	if err := e.checkpoints.SaveCheckpoint(ctx, ownerID, checkpoint); err != nil {
		e.setLastError(ownerID, err.Error())
		e.logger.Error("failed to advance sync checkpoint",
			"owner_id", ownerID,
			"error", err)
		return result, fmt.Errorf("failed to advance checkpoint: %w", err)
	}

	result.LastSync = checkpoint
	result.SyncedCount = applied + len(result.ServerChanges)
	result.Success = true
	e.setLastError(ownerID, "")

	e.logger.Info("sync cycle completed",
		"owner_id", ownerID,
		"synced_count", result.SyncedCount,
		"conflicts", result.ConflictCount,
		"errors", len(result.Errors))

	return result, nil
}

// Changes возвращает инкрементальные серверные изменения владельца
// без приема изменений от клиента (GET часть протокола).
// since == nil означает "с последнего checkpoint".
func (e *Engine) Changes(ctx context.Context, ownerID string, since *time.Time) ([]*models.ChangeSet, error) {
	from, err := e.resolveSince(ctx, ownerID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve sync checkpoint: %w", err)
	}

	var adapterErrors []string
	changes := e.collectChanges(ctx, ownerID, from, &adapterErrors)
	for _, msg := range adapterErrors {
		e.logger.Warn("incremental pull adapter error", "owner_id", ownerID, "error", msg)
	}

	return changes, nil
}

// resolveSince определяет момент, с которого читать изменения:
// явный override из запроса, иначе durable checkpoint, иначе
// ограниченное окно maxSyncAge (не начало времен).
func (e *Engine) resolveSince(ctx context.Context, ownerID string, override *time.Time) (time.Time, error) {
	if override != nil {
		return *override, nil
	}

	checkpoint, err := e.checkpoints.GetCheckpoint(ctx, ownerID)
	if err != nil {
		if errors.Is(err, storage.ErrCheckpointNotFound) {
			return time.Now().UTC().Add(-e.maxSyncAge), nil
		}
		return time.Time{}, err
	}

	return checkpoint, nil
}

// collectChanges собирает изменения владельца со всех известных типов
// сущностей. Ошибка адаптера изолируется: тип пропускается, остальные
// читаются дальше.
func (e *Engine) collectChanges(ctx context.Context, ownerID string, since time.Time, errs *[]string) []*models.ChangeSet {
	var changes []*models.ChangeSet
	for _, entityType := range e.registry.Types() {
		adapter, _ := e.registry.Get(entityType)

		typeChanges, err := adapter.ChangesSince(ctx, ownerID, since)
		if err != nil {
			e.logger.Warn("failed to read changes",
				"owner_id", ownerID,
				"entity_type", entityType,
				"error", err)
			*errs = append(*errs, fmt.Sprintf("%s: %v", entityType, err))
			continue
		}

		changes = append(changes, typeChanges...)
	}

	return changes
}

// applyChange применяет одно изменение через адаптер его типа.
// Неизвестный тип — reportable-but-non-fatal ошибка.
func (e *Engine) applyChange(ctx context.Context, ownerID string, change *models.ChangeSet) error {
	adapter, ok := e.registry.Get(change.EntityType)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownEntityType, change.EntityType)
	}

	if change.OwnerID == "" {
		// Владелец всегда берется из аутентифицированного контекста
		change = change.Clone()
		change.OwnerID = ownerID
	}

	return adapter.Apply(ctx, change)
}

// IsSyncing сообщает, выполняется ли сейчас цикл синхронизации владельца.
func (e *Engine) IsSyncing(ownerID string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.inFlight[ownerID]
}

func (e *Engine) setInFlight(ownerID string, v bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if v {
		e.inFlight[ownerID] = true
		return
	}
	delete(e.inFlight, ownerID)
}

func (e *Engine) setLastError(ownerID, msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if msg == "" {
		delete(e.lastError, ownerID)
		return
	}
	e.lastError[ownerID] = msg
}

func (e *Engine) getLastError(ownerID string) string {
	e.mu.Lock()
	defer e.mu.Unlock()

	return e.lastError[ownerID]
}
