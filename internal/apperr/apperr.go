package apperr

import "net/http"

// Kind classifica a falha de negócio; o adaptador HTTP converte para status.
type Kind int

const (
	KindInvalidInput Kind = iota
	KindUnauthorized
	KindForbidden
	KindNotFound
	KindConflict
	KindAccountLocked
	KindInvalidCredentials
	KindNoOpUpdate
)

// Error carrega a classificação e uma mensagem legível para o cliente.
type Error struct {
	Kind    Kind
	Message string
}

func (e *Error) Error() string {
	return e.Message
}

// Status devolve o código HTTP equivalente à classificação.
func (e *Error) Status() int {
	switch e.Kind {
	case KindUnauthorized, KindInvalidCredentials:
		return http.StatusUnauthorized
	case KindForbidden, KindAccountLocked:
		return http.StatusForbidden
	case KindNotFound:
		return http.StatusNotFound
	case KindConflict:
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

// InvalidInput indica campo ausente ou malformado.
func InvalidInput(msg string) *Error {
	return &Error{Kind: KindInvalidInput, Message: msg}
}

// Unauthorized indica ausência de identidade do solicitante.
func Unauthorized(msg string) *Error {
	return &Error{Kind: KindUnauthorized, Message: msg}
}

// Forbidden indica solicitante identificado sem privilégio suficiente.
func Forbidden(msg string) *Error {
	return &Error{Kind: KindForbidden, Message: msg}
}

// NotFound indica registro inexistente.
func NotFound(msg string) *Error {
	return &Error{Kind: KindNotFound, Message: msg}
}

// Conflict indica violação de unicidade.
func Conflict(msg string) *Error {
	return &Error{Kind: KindConflict, Message: msg}
}

// AccountLocked indica conta bloqueada por tentativas de login.
func AccountLocked(msg string) *Error {
	return &Error{Kind: KindAccountLocked, Message: msg}
}

// InvalidCredentials indica falha genérica de autenticação.
func InvalidCredentials(msg string) *Error {
	return &Error{Kind: KindInvalidCredentials, Message: msg}
}

// NoOpUpdate indica atualização sem nenhuma alteração efetiva.
func NoOpUpdate(msg string) *Error {
	return &Error{Kind: KindNoOpUpdate, Message: msg}
}
