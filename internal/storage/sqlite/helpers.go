package sqlite

import (
	"database/sql"
	"encoding/json"
	"time"
)

// Все timestamp в схеме хранятся как unix миллисекунды.

func timeToMillis(t time.Time) int64 {
	return t.UnixMilli()
}

func millisToTime(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

// Payload приходит из json.Unmarshal, поэтому числа обычно float64.
// Хелперы ниже принимают оба представления.

func payloadString(p map[string]any, key string) string {
	v, _ := p[key].(string)
	return v
}

func payloadInt(p map[string]any, key string) int64 {
	switch v := p[key].(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case int:
		return int64(v)
	case json.Number:
		n, _ := v.Int64()
		return n
	default:
		return 0
	}
}

func payloadFloat(p map[string]any, key string) sql.NullFloat64 {
	switch v := p[key].(type) {
	case float64:
		return sql.NullFloat64{Float64: v, Valid: true}
	case int64:
		return sql.NullFloat64{Float64: float64(v), Valid: true}
	case int:
		return sql.NullFloat64{Float64: float64(v), Valid: true}
	case json.Number:
		f, err := v.Float64()
		if err != nil {
			return sql.NullFloat64{}
		}
		return sql.NullFloat64{Float64: f, Valid: true}
	default:
		return sql.NullFloat64{}
	}
}

func payloadBool(p map[string]any, key string) bool {
	switch v := p[key].(type) {
	case bool:
		return v
	case float64:
		return v != 0
	case int64:
		return v != 0
	default:
		return false
	}
}

func payloadNullString(p map[string]any, key string) sql.NullString {
	v, ok := p[key].(string)
	if !ok || v == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: v, Valid: true}
}

// payloadJSON сериализует вложенное значение payload для хранения
// в TEXT колонке. Отсутствующее значение дает fallback.
func payloadJSON(p map[string]any, key, fallback string) string {
	v, ok := p[key]
	if !ok || v == nil {
		return fallback
	}

	data, err := json.Marshal(v)
	if err != nil {
		return fallback
	}

	return string(data)
}

// columnJSON десериализует TEXT колонку обратно во вложенное значение.
func columnJSON(raw string) any {
	if raw == "" {
		return nil
	}

	var v any
	if err := json.Unmarshal([]byte(raw), &v); err != nil {
		return raw
	}

	return v
}

// createdAtMillis выбирает created_at для вставки: значение из payload
// (восстановление из бэкапа сохраняет оригинальное время) либо время
// самого изменения.
func createdAtMillis(p map[string]any, changeTime time.Time) int64 {
	if raw, ok := p["created_at"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, raw); err == nil {
			return timeToMillis(t)
		}
	}

	return timeToMillis(changeTime)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
