package dto

import (
	"time"

	"github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/repo"
)

type OrderSummary struct {
	OrderID          string `json:"order_id"`
	PlayerID         string `json:"player_id"`
	PlayerUserName   string `json:"player_user_name"`
	AmountPerTicket  int64  `json:"amount_per_ticket"`
	PaymentMethod    string `json:"payment_method"`
	PaymentReference string `json:"payment_reference"`
	DrawDate         string `json:"draw_date"`
}

type CreateTicketsResponse struct {
	OrderSummary OrderSummary  `json:"order_summary"`
	Tickets      []repo.Ticket `json:"tickets"`
	TotalAmount  int64         `json:"total_amount"`
	TotalTickets int           `json:"total_tickets"`
}

type TicketListResponse struct {
	Tickets    []repo.Ticket   `json:"tickets"`
	Pagination repo.Pagination `json:"pagination"`
}

type UpdatePaymentStatusResponse struct {
	UpdatedIDs    []string `json:"updated_ids"`
	PaymentStatus string   `json:"payment_status"`
}

type DeleteTicketsResponse struct {
	Deleted int64 `json:"deleted"`
}

type NextDrawResponse struct {
	At       time.Time `json:"at"`
	Label    string    `json:"label"`
	DrawDate string    `json:"draw_date"`
}

type AvailableNumbersResponse struct {
	DrawDate string   `json:"draw_date"`
	Total    int      `json:"total"`
	Numbers  []string `json:"numbers"`
}

type CartResponse struct {
	Numbers   []string `json:"numbers"`
	Remaining int      `json:"remaining"` // vagas até o limite por compra
}

// ErrorResponse é o envelope de erro da API. errors traz mensagens por campo
// (validação); conflicts traz motivo por ticket_id (transição recusada).
type ErrorResponse struct {
	Message   string              `json:"message"`
	Errors    map[string][]string `json:"errors,omitempty"`
	Conflicts map[string]string   `json:"conflicts,omitempty"`
}
