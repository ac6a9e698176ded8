package dto

// UpdatePaymentStatusRequest move um lote de bilhetes pending para um estado
// terminal. A aplicação é tudo-ou-nada: quem precisa de sucesso parcial
// divide o lote antes de chamar.
type UpdatePaymentStatusRequest struct {
	TicketIDs        []string `json:"ticket_ids"`
	PaymentStatus    string   `json:"payment_status"` // "completed" | "failed"
	PaymentMethod    string   `json:"payment_method"`
	PaymentReference string   `json:"payment_reference"`
}

type DeleteTicketsRequest struct {
	TicketIDs []string `json:"ticket_ids"`
}

type CartAddRequest struct {
	Number string `json:"number"`
}
