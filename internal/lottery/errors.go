package lottery

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// ErrNotFound indica jogador ou bilhete inexistente em operações de leitura.
var ErrNotFound = errors.New("not found")

// ValidationError acumula mensagens por campo. Nunca persiste estado parcial:
// quem a recebe não gravou nada.
type ValidationError struct {
	Fields map[string][]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string][]string{}}
}

// Addf registra uma mensagem de validação para o campo.
func (e *ValidationError) Addf(field, format string, args ...any) {
	e.Fields[field] = append(e.Fields[field], fmt.Sprintf(format, args...))
}

// HasErrors diz se alguma mensagem foi registrada.
func (e *ValidationError) HasErrors() bool { return len(e.Fields) > 0 }

func (e *ValidationError) Error() string {
	fields := make([]string, 0, len(e.Fields))
	for f := range e.Fields {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+strings.Join(e.Fields[f], "; "))
	}
	return "validation failed: " + strings.Join(parts, " | ")
}

// ConflictError reporta, por ticket_id, por que a transição de status foi
// recusada (not_found, already completed/failed). A chamada é tudo-ou-nada:
// um único conflito aborta o lote inteiro sem mutação.
type ConflictError struct {
	Reasons map[string]string // ticket_id -> motivo
}

func (e *ConflictError) Error() string {
	ids := make([]string, 0, len(e.Reasons))
	for id := range e.Reasons {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	parts := make([]string, 0, len(ids))
	for _, id := range ids {
		parts = append(parts, id+": "+e.Reasons[id])
	}
	return "status update conflict: " + strings.Join(parts, " | ")
}

// TransientError embrulha falha de transporte/armazenamento durante a escrita
// atômica: nada foi persistido e a chamada pode ser repetida.
type TransientError struct {
	Op  string
	Err error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("transient failure in %s: %v", e.Op, e.Err)
}

func (e *TransientError) Unwrap() error { return e.Err }
