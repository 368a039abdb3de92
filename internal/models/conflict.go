package models

import (
	"errors"
	"time"
)

// Strategy определяет стратегию разрешения конфликтов.
type Strategy string

const (
	// StrategyServerWins всегда выбирает серверную версию (default)
	StrategyServerWins Strategy = "server-wins"
	// StrategyClientWins всегда выбирает клиентскую версию
	StrategyClientWins Strategy = "client-wins"
	// StrategyTimestamp выбирает версию с большим timestamp,
	// при равенстве или отсутствии timestamp — серверную
	StrategyTimestamp Strategy = "timestamp"
)

// ErrUnknownStrategy возвращается при неизвестном имени стратегии
var ErrUnknownStrategy = errors.New("unknown conflict resolution strategy")

// ParseStrategy валидирует строковое имя стратегии из запроса.
// Пустая строка означает стратегию по умолчанию (server-wins).
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyServerWins, StrategyClientWins, StrategyTimestamp:
		return Strategy(s), nil
	case "":
		return StrategyServerWins, nil
	default:
		return "", ErrUnknownStrategy
	}
}

// Conflict представляет пару конкурирующих изменений одной записи.
// Существует только внутри цикла синхронизации: после разрешения
// остается лишь в отчете для клиента, в очередь не попадает.
type Conflict struct {
	DetectedAt   time.Time  `json:"detected_at"`
	EntityType   string     `json:"entity_type"`
	RecordID     string     `json:"record_id"`
	ServerChange *ChangeSet `json:"server_change"`
	ClientChange *ChangeSet `json:"client_change"`
}
