package http

import (
	"encoding/json"
	"net/http"
)

// WriteJSON escreve o corpo de sucesso sem envelope; o contrato consumido
// pelo SPA espera o registro (ou array) diretamente.
func WriteJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// WriteError escreve o corpo de erro no formato {"error": mensagem}.
func WriteError(w http.ResponseWriter, status int, message string) {
	WriteJSON(w, status, map[string]string{"error": message})
}
