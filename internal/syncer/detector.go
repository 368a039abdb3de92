// Package syncer реализует движок синхронизации: обнаружение и
// разрешение конфликтов, цикл синхронизации, offline очередь и
// экспорт/импорт. Обнаружение и разрешение — чистые функции над
// plain данными, что позволяет тестировать их изолированно от
// хранилищ и всего pipeline.
package syncer

import (
	"time"

	"github.com/yallaspeak/syncd/internal/models"
)

// DefaultConflictWindow окно близости для обнаружения конфликта.
// Изменения, разнесенные во времени дальше окна, считаются обычной
// последовательной правкой (последний пишущий побеждает через
// инкрементальный pull), а не конфликтом.
const DefaultConflictWindow = 60 * time.Second

// Detect сравнивает изменения клиента с текущими изменениями сервера
// и возвращает пары, находящиеся в конфликте.
//
// Конфликт существует тогда и только тогда, когда payload различаются
// И обе стороны были изменены в пределах окна window (сравниваются
// client_timestamp клиента и updated_at сервера). Если любой из
// timestamp отсутствует, пара не считается конфликтом: клиентское
// изменение применится как обычное последовательное обновление.
func Detect(clientChanges, serverChanges []*models.ChangeSet, window time.Duration, now time.Time) []*models.Conflict {
	if len(clientChanges) == 0 || len(serverChanges) == 0 {
		return nil
	}

	// Lookup серверных изменений по ключу (entity_type, record_id)
	serverByKey := make(map[string]*models.ChangeSet, len(serverChanges))
	for _, sc := range serverChanges {
		serverByKey[sc.Key()] = sc
	}

	var conflicts []*models.Conflict
	for _, cc := range clientChanges {
		sc, ok := serverByKey[cc.Key()]
		if !ok {
			continue
		}

		if !inConflict(cc, sc, window) {
			continue
		}

		conflicts = append(conflicts, &models.Conflict{
			DetectedAt:   now,
			EntityType:   cc.EntityType,
			RecordID:     cc.RecordID,
			ServerChange: sc,
			ClientChange: cc,
		})
	}

	return conflicts
}

// inConflict проверяет одну пару изменений на конфликт.
func inConflict(client, server *models.ChangeSet, window time.Duration) bool {
	if client.PayloadEquals(server) {
		return false
	}

	// Без обоих timestamp близость определить нельзя — не конфликт
	if client.ClientTime == nil || server.UpdatedAt.IsZero() {
		return false
	}

	diff := client.ClientTime.Sub(server.UpdatedAt)
	if diff < 0 {
		diff = -diff
	}

	return diff < window
}
