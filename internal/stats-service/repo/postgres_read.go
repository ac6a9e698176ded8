package repo

import (
	"context"
	"database/sql"

	"github.com/radieske/lottery-3d-platform-poc/internal/lottery"
	"github.com/radieske/lottery-3d-platform-poc/internal/stats-service/dto"
)

// ReadRepo agrega bilhetes por janela de dias no fuso do deployment.
type ReadRepo struct {
	DB *sql.DB
	TZ string
}

// Summary agrega a janela [startDate, endDate], ambos os dias inclusos.
// Janela vazia devolve zeros: não é estado excepcional.
func (r *ReadRepo) Summary(ctx context.Context, startDate, endDate string) (dto.Summary, error) {
	const q = `
		SELECT COUNT(*),
		       COALESCE(SUM(amount), 0),
		       COUNT(*) FILTER (WHERE payment_status = 'completed'),
		       COUNT(*) FILTER (WHERE payment_status = 'pending'),
		       COUNT(*) FILTER (WHERE payment_status = 'failed')
		FROM lottery_tickets
		WHERE (created_at AT TIME ZONE $1)::date BETWEEN $2::date AND $3::date;
	`
	var s dto.Summary
	err := r.DB.QueryRowContext(ctx, q, r.TZ, startDate, endDate).
		Scan(&s.TotalTickets, &s.TotalAmount, &s.Completed, &s.Pending, &s.Failed)
	if err != nil {
		return dto.Summary{}, &lottery.TransientError{Op: "stats summary", Err: err}
	}
	return s, nil
}
