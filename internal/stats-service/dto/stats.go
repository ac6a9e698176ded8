package dto

// Summary agrega os bilhetes de uma janela de dias. total_amount soma todos
// os status (venda pretendida, não receita confirmada); os contadores
// separam por status.
type Summary struct {
	TotalTickets int64 `json:"total_tickets"`
	TotalAmount  int64 `json:"total_amount"`
	Completed    int64 `json:"completed"`
	Pending      int64 `json:"pending"`
	Failed       int64 `json:"failed"`
}
