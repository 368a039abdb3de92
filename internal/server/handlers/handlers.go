package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
)

// contextKey тип для ключей контекста
type contextKey string

// OwnerIDKey ключ для хранения owner_id в контексте.
// Устанавливается Auth middleware из валидированного JWT.
const OwnerIDKey contextKey = "owner_id"

// GetOwnerID извлекает owner_id из контекста запроса
func GetOwnerID(ctx context.Context) (string, bool) {
	ownerID, ok := ctx.Value(OwnerIDKey).(string)
	return ownerID, ok
}

// ownerID достает владельца из контекста или отвечает 401.
// Отсутствие owner_id означает, что Auth middleware не отработал.
func ownerID(logger *slog.Logger, w http.ResponseWriter, r *http.Request) (string, bool) {
	id, ok := GetOwnerID(r.Context())
	if !ok {
		logger.Error("owner ID not found in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return "", false
	}

	return id, true
}

func decodeJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func respondJSON(logger *slog.Logger, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", "error", err)
	}
}
