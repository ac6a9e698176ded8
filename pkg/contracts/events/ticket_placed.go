package events

type TicketPlaced struct {
	OrderID          string   `json:"order_id"`
	PlayerID         string   `json:"player_id"`
	PlayerUserName   string   `json:"player_user_name"`
	TicketIDs        []string `json:"ticket_ids"`
	Digits           []string `json:"digits"`
	AmountPerTicket  int64    `json:"amount_per_ticket"`
	TotalAmount      int64    `json:"total_amount"`
	PaymentMethod    string   `json:"payment_method"`
	PaymentReference string   `json:"payment_reference"` // idempotência/auditoria, gerada no cliente
	DrawDate         string   `json:"draw_date"`         // "YYYY-MM-DD" do sorteio alvo
	TsUnixMs         int64    `json:"ts_unix_ms"`
}
