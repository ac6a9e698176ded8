package repo

import "time"

// Status de pagamento de um bilhete. pending é o estado inicial; completed e
// failed são terminais (a máquina não é reentrante).
const (
	StatusPending   = "pending"
	StatusCompleted = "completed"
	StatusFailed    = "failed"
)

// Order é uma tentativa de compra: 1..10 números compartilhando o mesmo
// payment_reference e um único comprovante de pagamento.
type Order struct {
	ID               string
	PlayerID         string
	PlayerUserName   string
	Digits           []string
	AmountPerTicket  int64
	TotalAmount      int64
	PaymentMethod    string
	PaymentReference string
	ProofPath        string
	DrawDate         string // "YYYY-MM-DD"
	CreatedAt        time.Time
}

// Ticket é a unidade persistida por número: a expansão linha-a-linha do
// pedido e a unidade sobre a qual as estatísticas agregam.
type Ticket struct {
	ID               string    `json:"id"`
	OrderID          string    `json:"order_id"`
	PlayerID         string    `json:"player_id"`
	PlayerUserName   string    `json:"player_user_name"`
	SelectedDigit    string    `json:"selected_digit"`
	Amount           int64     `json:"amount"`
	PaymentMethod    string    `json:"payment_method"`
	PaymentReference string    `json:"payment_reference"`
	PaymentStatus    string    `json:"payment_status"`
	DrawDate         string    `json:"draw_date"`
	CreatedAt        time.Time `json:"created_at"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// Filters restringe a listagem de bilhetes de um jogador.
type Filters struct {
	Date   string // dia no fuso do deployment, "YYYY-MM-DD"
	Status string
	Page   int
	Limit  int
}

// Pagination descreve a página devolvida.
type Pagination struct {
	Page     int   `json:"page"`
	Limit    int   `json:"limit"`
	Total    int64 `json:"total"`
	LastPage int   `json:"last_page"`
}
