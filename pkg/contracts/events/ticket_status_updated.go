package events

// Evento emitido pelo ticket-service após a revisão manual do comprovante.
type TicketStatusUpdated struct {
	TicketIDs     []string `json:"ticket_ids"`
	Digits        []string `json:"digits"`
	PaymentStatus string   `json:"payment_status"` // "completed" | "failed"
	DrawDate      string   `json:"draw_date"`
	TsUnixMs      int64    `json:"ts_unix_ms"`
}
