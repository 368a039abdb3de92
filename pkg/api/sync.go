// Package api содержит wire типы HTTP поверхности синхронизации.
package api

import "time"

// ChangeSet представляет одну мутацию одной записи для передачи по сети
type ChangeSet struct {
	UpdatedAt       time.Time      `json:"updated_at"`
	ClientTimestamp *time.Time     `json:"client_timestamp,omitempty"`
	EntityType      string         `json:"entity_type"`
	RecordID        string         `json:"record_id"`
	Operation       string         `json:"operation"`
	Payload         map[string]any `json:"payload"`
}

// Conflict представляет пару конкурирующих изменений в отчете клиенту
type Conflict struct {
	DetectedAt   time.Time `json:"detected_at"`
	EntityType   string    `json:"entity_type"`
	RecordID     string    `json:"record_id"`
	ServerChange ChangeSet `json:"server_change"`
	ClientChange ChangeSet `json:"client_change"`
}

// SyncRequest представляет запрос на синхронизацию от клиента
type SyncRequest struct {
	LastSync           *time.Time  `json:"last_sync,omitempty"`           // замещает сохраненный checkpoint
	ClientData         []ChangeSet `json:"client_data"`                   // изменения клиента
	ConflictResolution string      `json:"conflict_resolution,omitempty"` // server-wins | client-wins | timestamp
}

// SyncResponse представляет ответ сервера на синхронизацию
type SyncResponse struct {
	LastSync      time.Time   `json:"last_sync"`      // новый checkpoint
	ServerChanges []ChangeSet `json:"server_changes"` // изменения сервера для клиента
	Conflicts     []Conflict  `json:"conflicts"`      // обнаруженные конфликты
	Errors        []string    `json:"errors,omitempty"`
	SyncedCount   int         `json:"synced_count"`
	ConflictCount int         `json:"conflict_count"`
	Success       bool        `json:"success"`
}

// SyncStatus представляет состояние синхронизации владельца
type SyncStatus struct {
	LastSync     *time.Time `json:"last_sync"`     // null, если синхронизаций еще не было
	LastError    *string    `json:"last_error"`    // null, если последний цикл прошел успешно
	PendingItems int        `json:"pending_items"` // элементов в offline очереди
	IsSyncing    bool       `json:"is_syncing"`
	SyncEnabled  bool       `json:"sync_enabled"`
}

// QueueItem представляет одно отложенное изменение для постановки в очередь
type QueueItem struct {
	UpdatedAt time.Time      `json:"updated_at"`
	Table     string         `json:"table"`
	RecordID  string         `json:"record_id"`
	Operation string         `json:"operation"`
	Payload   map[string]any `json:"payload"`
}

// EnqueueResponse возвращает идентификатор поставленного в очередь элемента
type EnqueueResponse struct {
	QueueID string `json:"queue_id"`
}

// ProcessQueueResponse итог выгрузки offline очереди
type ProcessQueueResponse struct {
	Processed int `json:"processed"`
	Failed    int `json:"failed"`
}

// Snapshot полный снимок данных владельца для бэкапа/миграции
type Snapshot struct {
	ExportedAt time.Time                   `json:"exported_at"`
	OwnerID    string                      `json:"owner_id"`
	Data       map[string][]map[string]any `json:"data"`
}

// ImportRequest представляет запрос на восстановление из snapshot
type ImportRequest struct {
	Strategy string   `json:"strategy"` // replace | merge
	Snapshot Snapshot `json:"snapshot"`
}
