package syncer

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yallaspeak/syncd/internal/models"
	"github.com/yallaspeak/syncd/internal/registry"
)

// Snapshot полный снимок данных владельца по всем типам сущностей.
// Используется для бэкапа, миграции и заселения нового устройства.
type Snapshot struct {
	ExportedAt time.Time                   `json:"exported_at"`
	OwnerID    string                      `json:"owner_id"`
	Data       map[string][]map[string]any `json:"data"` // entity type -> записи
}

// Export собирает snapshot владельца через ExportAll каждого
// зарегистрированного адаптера. В отличие от цикла синхронизации,
// ошибка любого адаптера фатальна: бэкап с молча пропущенной таблицей
// хуже отсутствия бэкапа.
func (e *Engine) Export(ctx context.Context, ownerID string) (*Snapshot, error) {
	snapshot := &Snapshot{
		ExportedAt: time.Now().UTC(),
		OwnerID:    ownerID,
		Data:       make(map[string][]map[string]any),
	}

	for _, entityType := range e.registry.Types() {
		adapter, _ := e.registry.Get(entityType)

		records, err := adapter.ExportAll(ctx, ownerID)
		if err != nil {
			return nil, fmt.Errorf("failed to export %s: %w", entityType, err)
		}

		snapshot.Data[entityType] = records
	}

	e.logger.Info("data export completed",
		"owner_id", ownerID,
		"entity_types", len(snapshot.Data))

	return snapshot, nil
}

// Import восстанавливает данные владельца из snapshot.
//
// ImportReplace полностью перезаписывает состояние владельца по каждому
// типу сущности из snapshot. ImportMerge превращает записи в обычные
// ChangeSet и прогоняет их через полный цикл синхронизации — то есть
// через ту же машинерию конфликтов, что и обычный sync.
//
// Неизвестные типы сущностей в snapshot пропускаются с предупреждением;
// ошибки отдельных типов собираются в результат и не откатывают
// остальные (частичный сбой между типами ожидаем и сообщается).
func (e *Engine) Import(ctx context.Context, ownerID string, snapshot *Snapshot, strategy registry.ImportStrategy) (*SyncResult, error) {
	switch strategy {
	case registry.ImportReplace:
		return e.importReplace(ctx, ownerID, snapshot)
	case registry.ImportMerge:
		return e.importMerge(ctx, ownerID, snapshot)
	default:
		return nil, fmt.Errorf("unknown import strategy: %q", strategy)
	}
}

func (e *Engine) importReplace(ctx context.Context, ownerID string, snapshot *Snapshot) (*SyncResult, error) {
	result := &SyncResult{}

	for _, entityType := range sortedTypes(snapshot.Data) {
		records := snapshot.Data[entityType]

		adapter, ok := e.registry.Get(entityType)
		if !ok {
			e.logger.Warn("skipping unknown entity type in snapshot",
				"owner_id", ownerID,
				"entity_type", entityType)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entityType, ErrUnknownEntityType))
			continue
		}

		if err := adapter.ImportAll(ctx, ownerID, records, registry.ImportReplace); err != nil {
			e.logger.Warn("failed to import entity type",
				"owner_id", ownerID,
				"entity_type", entityType,
				"error", err)
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", entityType, err))
			continue
		}

		result.SyncedCount += len(records)
	}

	result.Success = len(result.Errors) == 0
	result.LastSync = time.Now().UTC()

	e.logger.Info("data import completed",
		"owner_id", ownerID,
		"strategy", "replace",
		"records", result.SyncedCount,
		"errors", len(result.Errors))

	return result, nil
}

func (e *Engine) importMerge(ctx context.Context, ownerID string, snapshot *Snapshot) (*SyncResult, error) {
	var changes []*models.ChangeSet
	var skipped []string

	for _, entityType := range sortedTypes(snapshot.Data) {
		records := snapshot.Data[entityType]

		adapter, ok := e.registry.Get(entityType)
		if !ok {
			e.logger.Warn("skipping unknown entity type in snapshot",
				"owner_id", ownerID,
				"entity_type", entityType)
			skipped = append(skipped, fmt.Sprintf("%s: %v", entityType, ErrUnknownEntityType))
			continue
		}

		for _, record := range records {
			recordID, ok := adapter.RecordKey(record)
			if !ok {
				skipped = append(skipped, fmt.Sprintf("%s: record without primary key", entityType))
				continue
			}

			updatedAt := recordTime(record, "updated_at", snapshot.ExportedAt)
			clientTime := updatedAt

			changes = append(changes, &models.ChangeSet{
				UpdatedAt:  updatedAt,
				ClientTime: &clientTime,
				EntityType: entityType,
				RecordID:   recordID,
				OwnerID:    ownerID,
				Operation:  models.OpUpdate,
				Payload:    record,
			})
		}
	}

	result, err := e.Sync(ctx, ownerID, changes, nil, e.defaultStrategy)
	if result != nil {
		result.Errors = append(skipped, result.Errors...)
	}

	return result, err
}

// recordTime достает timestamp из payload записи snapshot.
// Поддерживает RFC3339 строку (формат экспорта) и fallback.
func recordTime(record map[string]any, key string, fallback time.Time) time.Time {
	raw, ok := record[key].(string)
	if !ok {
		return fallback
	}

	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return fallback
	}

	return t
}

func sortedTypes(data map[string][]map[string]any) []string {
	types := make([]string, 0, len(data))
	for t := range data {
		types = append(types, t)
	}

	sort.Strings(types)
	return types
}
