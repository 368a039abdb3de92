package models

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"time"
)

// Операции, которые может нести ChangeSet.
const (
	OpCreate = "create"
	OpUpdate = "update"
	OpDelete = "delete"
)

// EntityType константы для синхронизируемых типов сущностей.
// Регистрируются в registry при старте сервера; список открыт для расширения.
const (
	EntityProfiles = "user_profiles"
	EntityProgress = "user_progress"
	EntityAttempts = "quiz_attempts"
	EntityErrors   = "error_log"
)

// ChangeSet представляет одну типизированную мутацию одной записи
// одного владельца. Это атомарная единица синхронизации.
// ChangeSet никогда не мутируется после создания: разрешение конфликта
// порождает новый ChangeSet с выигравшим значением.
type ChangeSet struct {
	UpdatedAt  time.Time      `json:"updated_at"`                 // UpdatedAt серверное время последнего изменения записи
	ClientTime *time.Time     `json:"client_timestamp,omitempty"` // ClientTime время изменения на клиенте (может отсутствовать)
	EntityType string         `json:"entity_type"`                // EntityType тип сущности (таблица)
	RecordID   string         `json:"record_id"`                  // RecordID идентификатор записи внутри типа
	OwnerID    string         `json:"owner_id"`                   // OwnerID владелец записи (из JWT)
	Operation  string         `json:"operation"`                  // Operation одна из OpCreate/OpUpdate/OpDelete
	Payload    map[string]any `json:"payload"`                    // Payload полное новое состояние записи
}

// Key возвращает составной ключ (entity_type, record_id).
// Ровно одна логическая запись владельца соответствует одному ключу.
func (c *ChangeSet) Key() string {
	return c.EntityType + "/" + c.RecordID
}

// Clone создает глубокую копию ChangeSet.
// Payload копируется по верхнему уровню: вложенные значения
// приходят из JSON и не мутируются после декодирования.
func (c *ChangeSet) Clone() *ChangeSet {
	payload := make(map[string]any, len(c.Payload))
	for k, v := range c.Payload {
		payload[k] = v
	}

	var clientTime *time.Time
	if c.ClientTime != nil {
		t := *c.ClientTime
		clientTime = &t
	}

	return &ChangeSet{
		UpdatedAt:  c.UpdatedAt,
		ClientTime: clientTime,
		EntityType: c.EntityType,
		RecordID:   c.RecordID,
		OwnerID:    c.OwnerID,
		Operation:  c.Operation,
		Payload:    payload,
	}
}

// Служебные и идентификационные ключи, исключаемые из сравнения payload.
// Идентичность записи несут EntityType/RecordID/OwnerID самого ChangeSet,
// а время изменения сравнивается отдельно через окно близости. Серверные
// payload (из scan строки) несут эти ключи, клиентские обычно нет;
// без исключения одинаковые правки выглядели бы конфликтом.
var bookkeepingKeys = map[string]struct{}{
	"created_at":  {},
	"updated_at":  {},
	"owner_id":    {},
	"progress_id": {},
	"attempt_id":  {},
	"error_id":    {},
}

// PayloadHash возвращает канонический hash payload для сравнения.
// encoding/json сортирует ключи map, поэтому hash детерминирован
// независимо от порядка вставки.
func (c *ChangeSet) PayloadHash() string {
	payload := stripBookkeeping(c.Payload)

	data, err := json.Marshal(payload)
	if err != nil {
		// Payload приходит из json.Unmarshal и всегда сериализуем обратно;
		// сюда можно попасть только с рукописным payload в тестах.
		return fmt.Sprintf("unmarshalable:%v", err)
	}

	sum := sha256.Sum256(data)
	return fmt.Sprintf("%x", sum)
}

// PayloadEquals сравнивает payload двух ChangeSet по каноническому hash.
func (c *ChangeSet) PayloadEquals(other *ChangeSet) bool {
	return c.PayloadHash() == other.PayloadHash()
}

func stripBookkeeping(payload map[string]any) map[string]any {
	stripped := make(map[string]any, len(payload))
	for k, v := range payload {
		if _, ok := bookkeepingKeys[k]; ok {
			continue
		}
		stripped[k] = v
	}

	return stripped
}
