package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/radieske/lottery-3d-platform-poc/internal/lottery"
)

// Postgres implementa a persistência de pedidos e bilhetes.
// Timezone é o fuso do deployment, usado nos filtros por dia.
type Postgres struct {
	db *sql.DB
	tz string
}

// NewPostgres retorna uma instância do repositório de bilhetes.
func NewPostgres(db *sql.DB, timezone string) *Postgres {
	return &Postgres{db: db, tz: timezone}
}

// CreateTickets persiste o pedido e uma linha de bilhete por número, tudo com
// payment_status=pending, numa única transação: ou grava tudo ou nada.
// Não trava o espaço de números: dois pedidos podem comprar o mesmo dígito e
// a colisão é resolvida manualmente na revisão do comprovante.
func (p *Postgres) CreateTickets(ctx context.Context, o *Order) ([]Ticket, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &lottery.TransientError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	var exists int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM players WHERE id=$1`, o.PlayerID).Scan(&exists)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("player %s: %w", o.PlayerID, lottery.ErrNotFound)
	} else if err != nil {
		return nil, &lottery.TransientError{Op: "player lookup", Err: err}
	}

	o.ID = uuid.NewString()
	err = tx.QueryRowContext(ctx, `
		INSERT INTO lottery_orders
			(id, player_id, player_user_name, amount_per_ticket, total_amount,
			 payment_method, payment_reference, proof_path, draw_date)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
		RETURNING created_at`,
		o.ID, o.PlayerID, o.PlayerUserName, o.AmountPerTicket, o.TotalAmount,
		o.PaymentMethod, o.PaymentReference, o.ProofPath, o.DrawDate,
	).Scan(&o.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			ve := lottery.NewValidationError()
			ve.Addf("payment_reference", "payment reference %q already used", o.PaymentReference)
			return nil, ve
		}
		return nil, &lottery.TransientError{Op: "insert order", Err: err}
	}

	tickets := make([]Ticket, 0, len(o.Digits))
	for _, digit := range o.Digits {
		t := Ticket{
			ID:               uuid.NewString(),
			OrderID:          o.ID,
			PlayerID:         o.PlayerID,
			PlayerUserName:   o.PlayerUserName,
			SelectedDigit:    digit,
			Amount:           o.AmountPerTicket,
			PaymentMethod:    o.PaymentMethod,
			PaymentReference: o.PaymentReference,
			PaymentStatus:    StatusPending,
			DrawDate:         o.DrawDate,
			CreatedAt:        o.CreatedAt,
			UpdatedAt:        o.CreatedAt,
		}
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO lottery_tickets
				(id, order_id, player_id, player_user_name, selected_digit, amount,
				 payment_method, payment_reference, payment_status, draw_date,
				 created_at, updated_at)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
			t.ID, t.OrderID, t.PlayerID, t.PlayerUserName, t.SelectedDigit, t.Amount,
			t.PaymentMethod, t.PaymentReference, t.PaymentStatus, t.DrawDate,
			t.CreatedAt, t.UpdatedAt,
		); err != nil {
			return nil, &lottery.TransientError{Op: "insert ticket", Err: err}
		}
		tickets = append(tickets, t)
	}

	if err := tx.Commit(); err != nil {
		return nil, &lottery.TransientError{Op: "commit", Err: err}
	}
	return tickets, nil
}

// UpdatePaymentStatus move o conjunto de bilhetes de pending para o status
// terminal pedido, tudo-ou-nada. Trava as linhas (FOR UPDATE) para que duas
// revisões concorrentes sobre ids sobrepostos serializem: a segunda enxerga o
// estado terminal e falha sem sobrescrever.
func (p *Postgres) UpdatePaymentStatus(ctx context.Context, ids []string, status, method, reference string) ([]Ticket, error) {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, &lottery.TransientError{Op: "begin tx", Err: err}
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, `
		SELECT id, payment_status FROM lottery_tickets
		WHERE id = ANY($1) FOR UPDATE`, pq.Array(ids))
	if err != nil {
		return nil, &lottery.TransientError{Op: "lock tickets", Err: err}
	}
	current := make(map[string]string, len(ids))
	for rows.Next() {
		var id, st string
		if err := rows.Scan(&id, &st); err != nil {
			rows.Close()
			return nil, &lottery.TransientError{Op: "scan ticket", Err: err}
		}
		current[id] = st
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, &lottery.TransientError{Op: "lock tickets", Err: err}
	}

	reasons := map[string]string{}
	for _, id := range ids {
		st, ok := current[id]
		switch {
		case !ok:
			reasons[id] = "not_found"
		case st != StatusPending:
			reasons[id] = "already " + st
		}
	}
	if len(reasons) > 0 {
		return nil, &lottery.ConflictError{Reasons: reasons}
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE lottery_tickets
		SET payment_status=$1, payment_method=$2, payment_reference=$3, updated_at=NOW()
		WHERE id = ANY($4)`,
		status, method, reference, pq.Array(ids),
	); err != nil {
		return nil, &lottery.TransientError{Op: "update status", Err: err}
	}

	updated, err := p.selectTickets(ctx, tx, ids)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, &lottery.TransientError{Op: "commit", Err: err}
	}
	return updated, nil
}

// ListByPlayer pagina os bilhetes de um jogador, mais recentes primeiro.
// O filtro por data é avaliado no fuso do deployment.
func (p *Postgres) ListByPlayer(ctx context.Context, playerID string, f Filters) ([]Ticket, Pagination, error) {
	if f.Page < 1 {
		f.Page = 1
	}
	if f.Limit < 1 {
		f.Limit = 20
	}
	if f.Limit > 100 {
		f.Limit = 100
	}

	where := []string{"player_id = $1"}
	args := []any{playerID}
	if f.Status != "" {
		args = append(args, f.Status)
		where = append(where, fmt.Sprintf("payment_status = $%d", len(args)))
	}
	if f.Date != "" {
		args = append(args, p.tz, f.Date)
		where = append(where, fmt.Sprintf("(created_at AT TIME ZONE $%d)::date = $%d::date", len(args)-1, len(args)))
	}
	cond := strings.Join(where, " AND ")

	var total int64
	if err := p.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM lottery_tickets WHERE `+cond, args...,
	).Scan(&total); err != nil {
		return nil, Pagination{}, &lottery.TransientError{Op: "count tickets", Err: err}
	}

	args = append(args, f.Limit, (f.Page-1)*f.Limit)
	q := fmt.Sprintf(`
		SELECT id, order_id, player_id, player_user_name, selected_digit, amount,
		       payment_method, payment_reference, payment_status,
		       to_char(draw_date, 'YYYY-MM-DD'), created_at, updated_at
		FROM lottery_tickets
		WHERE %s
		ORDER BY created_at DESC, selected_digit
		LIMIT $%d OFFSET $%d`, cond, len(args)-1, len(args))

	rows, err := p.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, Pagination{}, &lottery.TransientError{Op: "list tickets", Err: err}
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.OrderID, &t.PlayerID, &t.PlayerUserName,
			&t.SelectedDigit, &t.Amount, &t.PaymentMethod, &t.PaymentReference,
			&t.PaymentStatus, &t.DrawDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, Pagination{}, &lottery.TransientError{Op: "scan ticket", Err: err}
		}
		out = append(out, t)
	}
	if err := rows.Err(); err != nil {
		return nil, Pagination{}, &lottery.TransientError{Op: "list tickets", Err: err}
	}

	lastPage := int((total + int64(f.Limit) - 1) / int64(f.Limit))
	if lastPage < 1 {
		lastPage = 1
	}
	return out, Pagination{Page: f.Page, Limit: f.Limit, Total: total, LastPage: lastPage}, nil
}

// SoldDigits devolve os dígitos com bilhete não-failed para o sorteio: a
// visão consultiva de "vendido" usada pela disponibilidade do storefront.
func (p *Postgres) SoldDigits(ctx context.Context, drawDate string) ([]string, error) {
	rows, err := p.db.QueryContext(ctx, `
		SELECT DISTINCT selected_digit FROM lottery_tickets
		WHERE draw_date = $1 AND payment_status <> 'failed'
		ORDER BY selected_digit`, drawDate)
	if err != nil {
		return nil, &lottery.TransientError{Op: "sold digits", Err: err}
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var d string
		if err := rows.Scan(&d); err != nil {
			return nil, &lottery.TransientError{Op: "scan digit", Err: err}
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// DeleteTickets remove bilhetes (capacidade administrativa).
func (p *Postgres) DeleteTickets(ctx context.Context, ids []string) (int64, error) {
	res, err := p.db.ExecContext(ctx,
		`DELETE FROM lottery_tickets WHERE id = ANY($1)`, pq.Array(ids))
	if err != nil {
		return 0, &lottery.TransientError{Op: "delete tickets", Err: err}
	}
	return res.RowsAffected()
}

func (p *Postgres) selectTickets(ctx context.Context, tx *sql.Tx, ids []string) ([]Ticket, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, order_id, player_id, player_user_name, selected_digit, amount,
		       payment_method, payment_reference, payment_status,
		       to_char(draw_date, 'YYYY-MM-DD'), created_at, updated_at
		FROM lottery_tickets
		WHERE id = ANY($1)
		ORDER BY selected_digit`, pq.Array(ids))
	if err != nil {
		return nil, &lottery.TransientError{Op: "select tickets", Err: err}
	}
	defer rows.Close()

	var out []Ticket
	for rows.Next() {
		var t Ticket
		if err := rows.Scan(&t.ID, &t.OrderID, &t.PlayerID, &t.PlayerUserName,
			&t.SelectedDigit, &t.Amount, &t.PaymentMethod, &t.PaymentReference,
			&t.PaymentStatus, &t.DrawDate, &t.CreatedAt, &t.UpdatedAt); err != nil {
			return nil, &lottery.TransientError{Op: "scan ticket", Err: err}
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}
