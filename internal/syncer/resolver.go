package syncer

import "github.com/yallaspeak/syncd/internal/models"

// resolveOne выбирает победителя одного конфликта. Функция чистая
// и детерминированная: одинаковые входы всегда дают одинаковый
// результат, оригиналы конфликта не мутируются.
//
// Возвращается указатель на оригинальное изменение внутри конфликта,
// что позволяет движку определить, чья сторона выиграла.
func resolveOne(c *models.Conflict, strategy models.Strategy) *models.ChangeSet {
	switch strategy {
	case models.StrategyClientWins:
		return c.ClientChange

	case models.StrategyTimestamp:
		// Побеждает строго больший timestamp; при равенстве или
		// отсутствии любого из них — сервер (детерминизм ничьих).
		if c.ClientChange.ClientTime == nil || c.ServerChange.UpdatedAt.IsZero() {
			return c.ServerChange
		}
		if c.ClientChange.ClientTime.After(c.ServerChange.UpdatedAt) {
			return c.ClientChange
		}
		return c.ServerChange

	default:
		// server-wins — стратегия по умолчанию
		return c.ServerChange
	}
}
