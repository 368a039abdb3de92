package models

import "time"

// QueueEntry представляет отложенное изменение в offline очереди.
// Создается, когда клиент не может достучаться до сервера;
// удаляется после успешного применения или паркуется как poison
// после превышения лимита повторов.
type QueueEntry struct {
	EnqueuedAt time.Time      `json:"enqueued_at"` // EnqueuedAt время постановки в очередь
	UpdatedAt  time.Time      `json:"updated_at"`  // UpdatedAt время изменения записи на клиенте
	QueueID    string         `json:"queue_id"`    // QueueID уникальный идентификатор элемента очереди (UUID)
	OwnerID    string         `json:"owner_id"`    // OwnerID владелец очереди
	EntityType string         `json:"entity_type"` // EntityType тип сущности изменения
	RecordID   string         `json:"record_id"`   // RecordID идентификатор записи
	Operation  string         `json:"operation"`   // Operation create/update/delete
	LastError  string         `json:"last_error,omitempty"`
	Payload    map[string]any `json:"payload"`
	Seq        uint64         `json:"-"`           // Seq порядковый ключ в bolt bucket (FIFO)
	RetryCount int            `json:"retry_count"` // RetryCount количество неудачных применений
	Poisoned   bool           `json:"poisoned"`    // Poisoned true = исключен из автоматических повторов
}

// ToChangeSet конвертирует элемент очереди в ChangeSet для применения
// через adapter. Время клиентского изменения берется из UpdatedAt.
func (e *QueueEntry) ToChangeSet() *ChangeSet {
	clientTime := e.UpdatedAt

	payload := make(map[string]any, len(e.Payload))
	for k, v := range e.Payload {
		payload[k] = v
	}

	return &ChangeSet{
		UpdatedAt:  e.UpdatedAt,
		ClientTime: &clientTime,
		EntityType: e.EntityType,
		RecordID:   e.RecordID,
		OwnerID:    e.OwnerID,
		Operation:  e.Operation,
		Payload:    payload,
	}
}
