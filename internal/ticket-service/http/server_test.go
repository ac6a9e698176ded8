package http

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/radieske/lottery-3d-platform-poc/internal/lottery"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/auth"
	"github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/dto"
	"github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/proof"
	"github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/repo"
	"github.com/radieske/lottery-3d-platform-poc/pkg/contracts/events"
)

var testSecret = []byte("test-secret")

type fakeRepo struct {
	createdOrder *repo.Order
	createErr    error
	updateErr    error
	updated      []repo.Ticket
	listed       []repo.Ticket
	pagination   repo.Pagination
	soldDigits   []string
	deleted      int64
}

func (f *fakeRepo) CreateTickets(ctx context.Context, o *repo.Order) ([]repo.Ticket, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdOrder = o
	o.ID = "order-1"
	now := time.Now()
	out := make([]repo.Ticket, len(o.Digits))
	for i, d := range o.Digits {
		out[i] = repo.Ticket{
			ID: "t" + d, OrderID: o.ID, PlayerID: o.PlayerID,
			SelectedDigit: d, Amount: o.AmountPerTicket,
			PaymentStatus: repo.StatusPending, DrawDate: o.DrawDate,
			CreatedAt: now, UpdatedAt: now,
		}
	}
	return out, nil
}

func (f *fakeRepo) UpdatePaymentStatus(ctx context.Context, ids []string, status, method, reference string) ([]repo.Ticket, error) {
	if f.updateErr != nil {
		return nil, f.updateErr
	}
	return f.updated, nil
}

func (f *fakeRepo) ListByPlayer(ctx context.Context, playerID string, fl repo.Filters) ([]repo.Ticket, repo.Pagination, error) {
	return f.listed, f.pagination, nil
}

func (f *fakeRepo) SoldDigits(ctx context.Context, drawDate string) ([]string, error) {
	return f.soldDigits, nil
}

func (f *fakeRepo) DeleteTickets(ctx context.Context, ids []string) (int64, error) {
	return f.deleted, nil
}

type fakeProofs struct {
	saveErr error
	saved   int
	removed []string
}

func (f *fakeProofs) Save(size int64, r io.Reader) (string, error) {
	if f.saveErr != nil {
		return "", f.saveErr
	}
	f.saved++
	return "proof.png", nil
}

func (f *fakeProofs) Remove(name string) error {
	f.removed = append(f.removed, name)
	return nil
}

type fakeCarts struct {
	carts   map[string]*lottery.SelectionCart
	cleared []string
}

func newFakeCarts() *fakeCarts {
	return &fakeCarts{carts: map[string]*lottery.SelectionCart{}}
}

func (f *fakeCarts) Get(ctx context.Context, playerID string) (*lottery.SelectionCart, error) {
	if c, ok := f.carts[playerID]; ok {
		return lottery.RestoreSelectionCart(c.Digits()), nil
	}
	return lottery.NewSelectionCart(), nil
}

func (f *fakeCarts) Save(ctx context.Context, playerID string, c *lottery.SelectionCart) error {
	f.carts[playerID] = c
	return nil
}

func (f *fakeCarts) Clear(ctx context.Context, playerID string) error {
	delete(f.carts, playerID)
	f.cleared = append(f.cleared, playerID)
	return nil
}

type fakePublisher struct {
	placed []events.TicketPlaced
	status []events.TicketStatusUpdated
}

func (f *fakePublisher) PublishTicketPlaced(ctx context.Context, e events.TicketPlaced) error {
	f.placed = append(f.placed, e)
	return nil
}

func (f *fakePublisher) PublishTicketStatusUpdated(ctx context.Context, e events.TicketStatusUpdated) error {
	f.status = append(f.status, e)
	return nil
}

type env struct {
	srv    *Server
	repo   *fakeRepo
	proofs *fakeProofs
	carts  *fakeCarts
	publ   *fakePublisher
	h      http.Handler
}

func newEnv(t *testing.T) *env {
	t.Helper()
	loc, err := time.LoadLocation("Asia/Yangon")
	require.NoError(t, err)

	e := &env{
		repo:   &fakeRepo{},
		proofs: &fakeProofs{},
		carts:  newFakeCarts(),
		publ:   &fakePublisher{},
	}
	e.srv = NewServer(zap.NewNop(), Settings{
		TicketPrice: 1000,
		Location:    loc,
		JWTSecret:   testSecret,
	}, e.repo, e.proofs, e.carts, nil, e.publ)
	// relógio fixo: 2 de abril, 09:00 -> sorteio de 15 de abril
	e.srv.clock = func() time.Time {
		return time.Date(2025, time.April, 2, 9, 0, 0, 0, loc)
	}
	e.h = e.srv.Router()
	return e
}

func bearer(t *testing.T, playerID, role string) string {
	t.Helper()
	tok, err := auth.Sign(testSecret, auth.Claims{PlayerID: playerID, UserName: "maung", Role: role}, time.Minute)
	require.NoError(t, err)
	return "Bearer " + tok
}

var pngBytes = append([]byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n'}, bytes.Repeat([]byte{0}, 64)...)

func multipartOrder(t *testing.T, digits []string, withProof bool, amount string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for _, d := range digits {
		require.NoError(t, mw.WriteField("selected_digits[]", d))
	}
	require.NoError(t, mw.WriteField("amount_per_ticket", amount))
	require.NoError(t, mw.WriteField("payment_method", "kpay"))
	require.NoError(t, mw.WriteField("payment_reference", "KPAY_123"))
	if withProof {
		fw, err := mw.CreateFormFile("payment_image", "proof.png")
		require.NoError(t, err)
		_, err = fw.Write(pngBytes)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())
	return &buf, mw.FormDataContentType()
}

func TestCreateTickets(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartOrder(t, []string{"003", "017"}, true, "1000")

	req := httptest.NewRequest(http.MethodPost, "/lottery/tickets", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", bearer(t, "p1", ""))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var resp dto.CreateTicketsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, int64(2000), resp.TotalAmount)
	assert.Equal(t, 2, resp.TotalTickets)
	require.Len(t, resp.Tickets, 2)
	for _, tk := range resp.Tickets {
		assert.Equal(t, repo.StatusPending, tk.PaymentStatus)
	}
	// sorteio alvo calculado no servidor
	assert.Equal(t, "2025-04-15", resp.OrderSummary.DrawDate)
	// evento publicado e carrinho limpo
	require.Len(t, e.publ.placed, 1)
	assert.Equal(t, []string{"003", "017"}, e.publ.placed[0].Digits)
	assert.Contains(t, e.carts.cleared, "p1")
}

func TestCreateTicketsWithoutProof(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartOrder(t, []string{"003"}, false, "1000")

	req := httptest.NewRequest(http.MethodPost, "/lottery/tickets", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", bearer(t, "p1", ""))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Errors, "payment_image")
	// nada persistido
	assert.Nil(t, e.repo.createdOrder)
	assert.Zero(t, e.proofs.saved)
}

func TestCreateTicketsRejectsDuplicatesAndBadDigits(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartOrder(t, []string{"007", "007", "9x9"}, true, "1000")

	req := httptest.NewRequest(http.MethodPost, "/lottery/tickets", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", bearer(t, "p1", ""))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Errors, "selected_digits")
	assert.Nil(t, e.repo.createdOrder)
}

func TestCreateTicketsFailureDiscardsProof(t *testing.T) {
	e := newEnv(t)
	ve := lottery.NewValidationError()
	ve.Addf("payment_reference", "payment reference %q already used", "KPAY_123")
	e.repo.createErr = ve

	body, ct := multipartOrder(t, []string{"003"}, true, "1000")
	req := httptest.NewRequest(http.MethodPost, "/lottery/tickets", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", bearer(t, "p1", ""))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	// criação é tudo-ou-nada: o comprovante gravado antes da transação cai junto
	assert.Equal(t, []string{"proof.png"}, e.proofs.removed)
	assert.Empty(t, e.publ.placed)
}

func TestCreateTicketsFailureLeavesProofDirEmpty(t *testing.T) {
	// mesmo cenário com o store real: nenhum arquivo órfão sobra no disco
	loc, err := time.LoadLocation("Asia/Yangon")
	require.NoError(t, err)
	dir := t.TempDir()
	proofs, err := proof.NewStore(dir, 5*1024*1024)
	require.NoError(t, err)

	r := &fakeRepo{createErr: &lottery.TransientError{Op: "insert order", Err: io.ErrUnexpectedEOF}}
	srv := NewServer(zap.NewNop(), Settings{
		TicketPrice: 1000,
		Location:    loc,
		JWTSecret:   testSecret,
	}, r, proofs, newFakeCarts(), nil, &fakePublisher{})
	h := srv.Router()

	body, ct := multipartOrder(t, []string{"003"}, true, "1000")
	req := httptest.NewRequest(http.MethodPost, "/lottery/tickets", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", bearer(t, "p1", ""))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestCreateTicketsRejectsWrongPrice(t *testing.T) {
	// o preço é do servidor; cliente divergente é rejeitado
	e := newEnv(t)
	body, ct := multipartOrder(t, []string{"003"}, true, "500")

	req := httptest.NewRequest(http.MethodPost, "/lottery/tickets", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", bearer(t, "p1", ""))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Contains(t, resp.Errors, "amount_per_ticket")
}

func TestCreateTicketsRejectsOversizedSelection(t *testing.T) {
	e := newEnv(t)
	digits := make([]string, 11)
	for i := range digits {
		digits[i] = string([]byte{'0', byte('0' + i/10), byte('0' + i%10)})
	}
	body, ct := multipartOrder(t, digits, true, "1000")

	req := httptest.NewRequest(http.MethodPost, "/lottery/tickets", body)
	req.Header.Set("Content-Type", ct)
	req.Header.Set("Authorization", bearer(t, "p1", ""))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestCreateTicketsRequiresAuth(t *testing.T) {
	e := newEnv(t)
	body, ct := multipartOrder(t, []string{"003"}, true, "1000")

	req := httptest.NewRequest(http.MethodPost, "/lottery/tickets", body)
	req.Header.Set("Content-Type", ct)
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdatePaymentStatusConflict(t *testing.T) {
	e := newEnv(t)
	e.repo.updateErr = &lottery.ConflictError{Reasons: map[string]string{"t1": "already completed"}}

	body, _ := json.Marshal(dto.UpdatePaymentStatusRequest{
		TicketIDs: []string{"t1"}, PaymentStatus: "failed",
		PaymentMethod: "kpay", PaymentReference: "R",
	})
	req := httptest.NewRequest(http.MethodPatch, "/lottery/tickets/payment-status", bytes.NewReader(body))
	req.Header.Set("Authorization", bearer(t, "op1", ""))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusConflict, rec.Code)
	var resp dto.ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "already completed", resp.Conflicts["t1"])
	assert.Empty(t, e.publ.status)
}

func TestUpdatePaymentStatusRejectsBadStatus(t *testing.T) {
	e := newEnv(t)
	body, _ := json.Marshal(dto.UpdatePaymentStatusRequest{
		TicketIDs: []string{"t1"}, PaymentStatus: "pending",
	})
	req := httptest.NewRequest(http.MethodPatch, "/lottery/tickets/payment-status", bytes.NewReader(body))
	req.Header.Set("Authorization", bearer(t, "op1", ""))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestUpdatePaymentStatusPublishesEvent(t *testing.T) {
	e := newEnv(t)
	e.repo.updated = []repo.Ticket{
		{ID: "t1", SelectedDigit: "003", PaymentStatus: repo.StatusFailed, DrawDate: "2025-04-15"},
	}

	body, _ := json.Marshal(dto.UpdatePaymentStatusRequest{
		TicketIDs: []string{"t1"}, PaymentStatus: "failed",
		PaymentMethod: "kpay", PaymentReference: "R",
	})
	req := httptest.NewRequest(http.MethodPatch, "/lottery/tickets/payment-status", bytes.NewReader(body))
	req.Header.Set("Authorization", bearer(t, "op1", ""))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.UpdatePaymentStatusResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, []string{"t1"}, resp.UpdatedIDs)
	require.Len(t, e.publ.status, 1)
	assert.Equal(t, []string{"003"}, e.publ.status[0].Digits)
	assert.Equal(t, "2025-04-15", e.publ.status[0].DrawDate)
}

func TestAvailableNumbers(t *testing.T) {
	e := newEnv(t)
	e.repo.soldDigits = []string{"000", "017"}

	req := httptest.NewRequest(http.MethodGet, "/lottery/numbers/available", nil)
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.AvailableNumbersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "2025-04-15", resp.DrawDate)
	assert.Equal(t, 998, resp.Total)
	assert.NotContains(t, resp.Numbers, "000")
	assert.NotContains(t, resp.Numbers, "017")
	assert.Contains(t, resp.Numbers, "001")
}

func TestAvailableNumbersSearch(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/lottery/numbers/available?search=99", nil)
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.AvailableNumbersResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	for _, n := range resp.Numbers {
		assert.Contains(t, n, "99")
	}
	assert.Contains(t, resp.Numbers, "990")
	assert.Contains(t, resp.Numbers, "199")
}

func TestNextDraw(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/lottery/draws/next", nil)
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.NextDrawResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, "mid_month", resp.Label)
	assert.Equal(t, "2025-04-15", resp.DrawDate)
}

func TestMyTicketsFilterValidation(t *testing.T) {
	e := newEnv(t)

	req := httptest.NewRequest(http.MethodGet, "/lottery/tickets/my-tickets?status=bogus", nil)
	req.Header.Set("Authorization", bearer(t, "p1", ""))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}

func TestPlayerTickets(t *testing.T) {
	e := newEnv(t)
	e.repo.listed = []repo.Ticket{{ID: "t1", PlayerID: "p9", SelectedDigit: "500"}}
	e.repo.pagination = repo.Pagination{Page: 1, Limit: 20, Total: 1, LastPage: 1}

	req := httptest.NewRequest(http.MethodGet, "/lottery/tickets/player/p9?page=1&limit=20", nil)
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var resp dto.TicketListResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.Len(t, resp.Tickets, 1)
	assert.Equal(t, 1, resp.Pagination.LastPage)
}

func TestDeleteTicketsRequiresAdmin(t *testing.T) {
	e := newEnv(t)
	body, _ := json.Marshal(dto.DeleteTicketsRequest{TicketIDs: []string{"t1"}})

	req := httptest.NewRequest(http.MethodDelete, "/lottery/tickets", bytes.NewReader(body))
	req.Header.Set("Authorization", bearer(t, "p1", "player"))
	rec := httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	e.repo.deleted = 1
	req = httptest.NewRequest(http.MethodDelete, "/lottery/tickets", bytes.NewReader(body))
	req.Header.Set("Authorization", bearer(t, "admin1", "admin"))
	rec = httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestCartFlow(t *testing.T) {
	e := newEnv(t)
	authz := bearer(t, "p1", "")

	add := func(number string) *httptest.ResponseRecorder {
		body, _ := json.Marshal(dto.CartAddRequest{Number: number})
		req := httptest.NewRequest(http.MethodPost, "/lottery/cart/numbers", bytes.NewReader(body))
		req.Header.Set("Authorization", authz)
		rec := httptest.NewRecorder()
		e.h.ServeHTTP(rec, req)
		return rec
	}

	rec := add("007")
	require.Equal(t, http.StatusOK, rec.Code)
	var cart dto.CartResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Equal(t, []string{"007"}, cart.Numbers)
	assert.Equal(t, 9, cart.Remaining)

	// duplicata é no-op
	rec = add("007")
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Equal(t, []string{"007"}, cart.Numbers)

	// número inválido é rejeitado
	rec = add("7")
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)

	// remove e limpa
	req := httptest.NewRequest(http.MethodDelete, "/lottery/cart/numbers/007", nil)
	req.Header.Set("Authorization", authz)
	rec = httptest.NewRecorder()
	e.h.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &cart))
	assert.Empty(t, cart.Numbers)
}
