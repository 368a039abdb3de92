// Package registry содержит реестр адаптеров синхронизируемых сущностей.
// Каждый тип сущности (таблица) участвует в синхронизации через свой
// Adapter; движок синхронизации generic относительно этого интерфейса.
// Новые типы добавляются регистрацией адаптера, без изменения движка.
package registry

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/yallaspeak/syncd/internal/models"
)

// ImportStrategy определяет поведение импорта snapshot.
type ImportStrategy string

const (
	// ImportReplace полностью перезаписывает состояние владельца по типу сущности
	ImportReplace ImportStrategy = "replace"
	// ImportMerge применяет записи как обычные изменения (upsert)
	ImportMerge ImportStrategy = "merge"
)

// Adapter определяет контракт типа сущности для участия в синхронизации.
// Реализуется хранилищем каждой таблицы. Все методы могут выполнять I/O
// и должны уважать переданный контекст.
type Adapter interface {
	// ChangesSince возвращает изменения записей владельца после момента since.
	// Включает удаления, если хранилище их отслеживает.
	ChangesSince(ctx context.Context, ownerID string, since time.Time) ([]*models.ChangeSet, error)

	// Apply применяет изменение к хранилищу.
	// Семантика "установить запись в payload": повторное применение
	// того же ChangeSet дает то же конечное состояние (идемпотентность).
	// create против существующей записи трактуется как update.
	Apply(ctx context.Context, change *models.ChangeSet) error

	// ExportAll возвращает полный snapshot записей владельца.
	ExportAll(ctx context.Context, ownerID string) ([]map[string]any, error)

	// ImportAll загружает записи владельца из snapshot.
	// ImportReplace предварительно удаляет текущее состояние владельца.
	ImportAll(ctx context.Context, ownerID string, records []map[string]any, strategy ImportStrategy) error

	// RecordKey извлекает идентификатор записи из payload.
	// Используется импортом merge для превращения записей snapshot
	// в обычные ChangeSet. Второе значение false, если payload не
	// содержит первичный ключ сущности.
	RecordKey(payload map[string]any) (string, bool)
}

// Registry сопоставляет имя типа сущности его адаптеру.
// Заполняется при старте процесса и после этого только читается,
// поэтому безопасно разделяется между конкурентными циклами
// синхронизации без блокировок.
type Registry struct {
	adapters map[string]Adapter
}

// New создает пустой реестр адаптеров.
func New() *Registry {
	return &Registry{
		adapters: make(map[string]Adapter),
	}
}

// Register добавляет адаптер для типа сущности.
// Вызывается только при инициализации, до начала обслуживания запросов.
// Повторная регистрация того же типа — ошибка конфигурации процесса.
func (r *Registry) Register(entityType string, adapter Adapter) error {
	if _, exists := r.adapters[entityType]; exists {
		return fmt.Errorf("adapter for entity type %q already registered", entityType)
	}

	r.adapters[entityType] = adapter
	return nil
}

// Get возвращает адаптер для типа сущности.
// Второе значение false, если тип неизвестен; для движка это
// reportable-but-non-fatal ситуация — изменение пропускается.
func (r *Registry) Get(entityType string) (Adapter, bool) {
	adapter, ok := r.adapters[entityType]
	return adapter, ok
}

// Types возвращает отсортированный список зарегистрированных типов.
// Сортировка дает детерминированный порядок обхода в циклах
// синхронизации и экспорте.
func (r *Registry) Types() []string {
	types := make([]string, 0, len(r.adapters))
	for t := range r.adapters {
		types = append(types, t)
	}

	sort.Strings(types)
	return types
}
