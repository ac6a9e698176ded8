package http

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/radieske/lottery-3d-platform-poc/internal/lottery"
	"github.com/radieske/lottery-3d-platform-poc/internal/shared/auth"
	"github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/dto"
	"github.com/radieske/lottery-3d-platform-poc/internal/ticket-service/repo"
	"github.com/radieske/lottery-3d-platform-poc/pkg/contracts/events"
)

// PaymentMethodKPay é o único método de pagamento aceito neste deployment.
const PaymentMethodKPay = "kpay"

// Repo define as operações de persistência usadas pelo handler HTTP.
type Repo interface {
	CreateTickets(ctx context.Context, o *repo.Order) ([]repo.Ticket, error)
	UpdatePaymentStatus(ctx context.Context, ids []string, status, method, reference string) ([]repo.Ticket, error)
	ListByPlayer(ctx context.Context, playerID string, f repo.Filters) ([]repo.Ticket, repo.Pagination, error)
	SoldDigits(ctx context.Context, drawDate string) ([]string, error)
	DeleteTickets(ctx context.Context, ids []string) (int64, error)
}

// ProofStore grava o comprovante de pagamento antes do pedido ser persistido.
// Remove desfaz a gravação quando a transação do pedido falha: o contrato da
// criação é tudo-ou-nada, comprovante incluso.
type ProofStore interface {
	Save(size int64, r io.Reader) (string, error)
	Remove(name string) error
}

// Carts é a sessão de carrinho por jogador.
type Carts interface {
	Get(ctx context.Context, playerID string) (*lottery.SelectionCart, error)
	Save(ctx context.Context, playerID string, c *lottery.SelectionCart) error
	Clear(ctx context.Context, playerID string) error
}

// SoldProjection é o caminho rápido (Redis) da disponibilidade; found=false
// quando a projeção ainda não existe para o sorteio e o Postgres responde.
type SoldProjection interface {
	Members(ctx context.Context, drawDate string) (digits []string, found bool, err error)
}

// Publisher publica os eventos de negócio (best-effort, após o commit).
type Publisher interface {
	PublishTicketPlaced(ctx context.Context, e events.TicketPlaced) error
	PublishTicketStatusUpdated(ctx context.Context, e events.TicketStatusUpdated) error
}

// Settings são as constantes de negócio do lado servidor. O cliente envia
// amount_per_ticket só por conferência; divergência é rejeitada.
type Settings struct {
	TicketPrice int64
	Location    *time.Location
	JWTSecret   []byte
}

type Server struct {
	log    *zap.Logger
	set    Settings
	repo   Repo
	proofs ProofStore
	carts  Carts
	sold   SoldProjection // pode ser nil (sem Redis, só Postgres)
	publ   Publisher

	clock func() time.Time
}

func NewServer(log *zap.Logger, set Settings, r Repo, proofs ProofStore, carts Carts, sold SoldProjection, publ Publisher) *Server {
	return &Server{
		log: log, set: set, repo: r, proofs: proofs, carts: carts,
		sold: sold, publ: publ, clock: time.Now,
	}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Route("/lottery", func(r chi.Router) {
		// rotas públicas deste deployment
		r.Get("/draws/next", s.nextDraw)
		r.Get("/numbers/available", s.availableNumbers)
		r.Get("/tickets/player/{playerID}", s.playerTickets)

		// rotas autenticadas
		r.Group(func(r chi.Router) {
			r.Use(auth.Middleware(s.set.JWTSecret))
			r.Post("/tickets", s.createTickets)
			r.Get("/tickets/my-tickets", s.myTickets)
			r.Patch("/tickets/payment-status", s.updatePaymentStatus)
			r.With(auth.RequireAdmin).Delete("/tickets", s.deleteTickets)

			r.Get("/cart", s.getCart)
			r.Delete("/cart", s.clearCart)
			r.Post("/cart/numbers", s.addCartNumber)
			r.Delete("/cart/numbers/{number}", s.removeCartNumber)
		})
	})
	return r
}

// nextDraw devolve o próximo sorteio agendado (1, 15 e último dia, 18:00).
func (s *Server) nextDraw(w http.ResponseWriter, r *http.Request) {
	d := lottery.NextDraw(s.clock(), s.set.Location)
	writeJSON(w, http.StatusOK, dto.NextDrawResponse{
		At:       d.At,
		Label:    string(d.Label),
		DrawDate: d.At.Format("2006-01-02"),
	})
}

// availableNumbers lista o universo menos os vendidos do próximo sorteio,
// com filtro opcional por substring dos dígitos. Redis primeiro, Postgres
// como fonte da verdade.
func (s *Server) availableNumbers(w http.ResponseWriter, r *http.Request) {
	drawDate := lottery.NextDrawDate(s.clock(), s.set.Location)

	var digits []string
	fromProjection := false
	if s.sold != nil {
		if d, found, err := s.sold.Members(r.Context(), drawDate); err == nil && found {
			digits, fromProjection = d, true
		}
	}
	if !fromProjection {
		var err error
		digits, err = s.repo.SoldDigits(r.Context(), drawDate)
		if err != nil {
			s.writeError(w, err)
			return
		}
	}

	avail := lottery.Available(lottery.SoldSet(digits))
	if q := r.URL.Query().Get("search"); q != "" {
		avail = lottery.Matching(avail, q)
	}

	numbers := make([]string, len(avail))
	for i, n := range avail {
		numbers[i] = string(n)
	}
	writeJSON(w, http.StatusOK, dto.AvailableNumbersResponse{
		DrawDate: drawDate,
		Total:    len(numbers),
		Numbers:  numbers,
	})
}

// createTickets cria o pedido a partir do formulário multipart: valida os
// números, confere as constantes de negócio, grava o comprovante e persiste
// tudo numa transação. Nada é gravado em caso de erro de validação.
func (s *Server) createTickets(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	if err := r.ParseMultipartForm(s.maxMemory()); err != nil {
		ve := lottery.NewValidationError()
		ve.Addf("body", "multipart form expected: %v", err)
		s.writeError(w, ve)
		return
	}

	ve := lottery.NewValidationError()

	if got := r.FormValue("player_id"); got != "" && got != claims.PlayerID {
		ve.Addf("player_id", "does not match the authenticated player")
	}
	userName := r.FormValue("player_user_name")
	if userName == "" {
		userName = claims.UserName
	}

	digits := s.validateDigits(collectDigits(r.MultipartForm.Value), ve)

	// o servidor é a fonte da verdade do preço; o valor do cliente só confere
	if raw := r.FormValue("amount_per_ticket"); raw != "" {
		if amt, err := strconv.ParseInt(raw, 10, 64); err != nil || amt != s.set.TicketPrice {
			ve.Addf("amount_per_ticket", "must be %d", s.set.TicketPrice)
		}
	}

	method := r.FormValue("payment_method")
	if method == "" {
		method = PaymentMethodKPay
	}
	if method != PaymentMethodKPay {
		ve.Addf("payment_method", "unsupported payment method %q", method)
	}

	reference := r.FormValue("payment_reference")
	if reference == "" {
		ve.Addf("payment_reference", "payment reference is required")
	}

	file, header, err := r.FormFile("payment_image")
	if err != nil {
		ve.Addf("payment_image", "payment proof image is required")
	}

	if ve.HasErrors() {
		if file != nil {
			file.Close()
		}
		s.writeError(w, ve)
		return
	}
	defer file.Close()

	proofPath, err := s.proofs.Save(header.Size, file)
	if err != nil {
		s.writeError(w, err)
		return
	}

	drawDate := lottery.NextDrawDate(s.clock(), s.set.Location)
	order := &repo.Order{
		PlayerID:         claims.PlayerID,
		PlayerUserName:   userName,
		Digits:           digits,
		AmountPerTicket:  s.set.TicketPrice,
		TotalAmount:      s.set.TicketPrice * int64(len(digits)),
		PaymentMethod:    method,
		PaymentReference: reference,
		ProofPath:        proofPath,
		DrawDate:         drawDate,
	}

	tickets, err := s.repo.CreateTickets(r.Context(), order)
	if err != nil {
		// nada foi persistido; o comprovante já gravado não pode sobrar órfão
		if rmErr := s.proofs.Remove(proofPath); rmErr != nil {
			s.log.Warn("discard proof after failed create", zap.Error(rmErr))
		}
		s.writeError(w, err)
		return
	}

	ids := make([]string, len(tickets))
	for i, t := range tickets {
		ids[i] = t.ID
	}
	if err := s.publ.PublishTicketPlaced(r.Context(), events.TicketPlaced{
		OrderID:          order.ID,
		PlayerID:         order.PlayerID,
		PlayerUserName:   order.PlayerUserName,
		TicketIDs:        ids,
		Digits:           digits,
		AmountPerTicket:  order.AmountPerTicket,
		TotalAmount:      order.TotalAmount,
		PaymentMethod:    order.PaymentMethod,
		PaymentReference: order.PaymentReference,
		DrawDate:         order.DrawDate,
	}); err != nil {
		s.log.Warn("publish ticket_placed", zap.Error(err))
	}

	// compra concluída encerra a seleção da sessão
	if err := s.carts.Clear(r.Context(), claims.PlayerID); err != nil {
		s.log.Warn("cart clear after order", zap.Error(err))
	}

	writeJSON(w, http.StatusCreated, dto.CreateTicketsResponse{
		OrderSummary: dto.OrderSummary{
			OrderID:          order.ID,
			PlayerID:         order.PlayerID,
			PlayerUserName:   order.PlayerUserName,
			AmountPerTicket:  order.AmountPerTicket,
			PaymentMethod:    order.PaymentMethod,
			PaymentReference: order.PaymentReference,
			DrawDate:         order.DrawDate,
		},
		Tickets:      tickets,
		TotalAmount:  order.TotalAmount,
		TotalTickets: len(tickets),
	})
}

// updatePaymentStatus aplica a revisão manual do comprovante: todo o lote vai
// para completed ou failed, ou nada muda.
func (s *Server) updatePaymentStatus(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdatePaymentStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ve := lottery.NewValidationError()
		ve.Addf("body", "invalid json: %v", err)
		s.writeError(w, ve)
		return
	}

	ve := lottery.NewValidationError()
	if len(req.TicketIDs) == 0 {
		ve.Addf("ticket_ids", "at least one ticket id is required")
	}
	if req.PaymentStatus != repo.StatusCompleted && req.PaymentStatus != repo.StatusFailed {
		ve.Addf("payment_status", "must be %q or %q", repo.StatusCompleted, repo.StatusFailed)
	}
	if ve.HasErrors() {
		s.writeError(w, ve)
		return
	}

	updated, err := s.repo.UpdatePaymentStatus(r.Context(), req.TicketIDs, req.PaymentStatus, req.PaymentMethod, req.PaymentReference)
	if err != nil {
		s.writeError(w, err)
		return
	}

	ids := make([]string, len(updated))
	digits := make([]string, len(updated))
	drawDate := ""
	for i, t := range updated {
		ids[i] = t.ID
		digits[i] = t.SelectedDigit
		drawDate = t.DrawDate
	}
	if err := s.publ.PublishTicketStatusUpdated(r.Context(), events.TicketStatusUpdated{
		TicketIDs:     ids,
		Digits:        digits,
		PaymentStatus: req.PaymentStatus,
		DrawDate:      drawDate,
	}); err != nil {
		s.log.Warn("publish ticket_status_updated", zap.Error(err))
	}

	writeJSON(w, http.StatusOK, dto.UpdatePaymentStatusResponse{
		UpdatedIDs:    ids,
		PaymentStatus: req.PaymentStatus,
	})
}

// playerTickets lista os bilhetes de um jogador (rota pública neste
// deployment, decisão do produto).
func (s *Server) playerTickets(w http.ResponseWriter, r *http.Request) {
	s.listTickets(w, r, chi.URLParam(r, "playerID"))
}

// myTickets lista os bilhetes do jogador autenticado.
func (s *Server) myTickets(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	s.listTickets(w, r, claims.PlayerID)
}

func (s *Server) listTickets(w http.ResponseWriter, r *http.Request, playerID string) {
	q := r.URL.Query()
	f := repo.Filters{
		Date:   q.Get("date"),
		Status: q.Get("status"),
	}
	f.Page, _ = strconv.Atoi(q.Get("page"))
	f.Limit, _ = strconv.Atoi(q.Get("limit"))

	ve := lottery.NewValidationError()
	if f.Status != "" && f.Status != repo.StatusPending && f.Status != repo.StatusCompleted && f.Status != repo.StatusFailed {
		ve.Addf("status", "unknown status %q", f.Status)
	}
	if f.Date != "" {
		if _, err := time.Parse("2006-01-02", f.Date); err != nil {
			ve.Addf("date", "want YYYY-MM-DD, got %q", f.Date)
		}
	}
	if ve.HasErrors() {
		s.writeError(w, ve)
		return
	}

	tickets, pg, err := s.repo.ListByPlayer(r.Context(), playerID, f)
	if err != nil {
		s.writeError(w, err)
		return
	}
	if tickets == nil {
		tickets = []repo.Ticket{}
	}
	writeJSON(w, http.StatusOK, dto.TicketListResponse{Tickets: tickets, Pagination: pg})
}

// deleteTickets remove bilhetes; capacidade de operador, exige role admin.
func (s *Server) deleteTickets(w http.ResponseWriter, r *http.Request) {
	var req dto.DeleteTicketsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || len(req.TicketIDs) == 0 {
		ve := lottery.NewValidationError()
		ve.Addf("ticket_ids", "at least one ticket id is required")
		s.writeError(w, ve)
		return
	}
	n, err := s.repo.DeleteTickets(r.Context(), req.TicketIDs)
	if err != nil {
		s.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, dto.DeleteTicketsResponse{Deleted: n})
}

func (s *Server) getCart(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	cart, err := s.carts.Get(r.Context(), claims.PlayerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	s.writeCart(w, cart)
}

func (s *Server) addCartNumber(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	var req dto.CartAddRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		ve := lottery.NewValidationError()
		ve.Addf("body", "invalid json: %v", err)
		s.writeError(w, ve)
		return
	}
	n, err := lottery.ParseNumber(req.Number)
	if err != nil {
		ve := lottery.NewValidationError()
		ve.Addf("number", "%v", err)
		s.writeError(w, ve)
		return
	}

	cart, err := s.carts.Get(r.Context(), claims.PlayerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	// duplicata ou carrinho cheio é no-op: devolve o estado como está
	cart.Add(n)
	if err := s.carts.Save(r.Context(), claims.PlayerID, cart); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeCart(w, cart)
}

func (s *Server) removeCartNumber(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())

	n, err := lottery.ParseNumber(chi.URLParam(r, "number"))
	if err != nil {
		ve := lottery.NewValidationError()
		ve.Addf("number", "%v", err)
		s.writeError(w, ve)
		return
	}

	cart, err := s.carts.Get(r.Context(), claims.PlayerID)
	if err != nil {
		s.writeError(w, err)
		return
	}
	cart.Remove(n)
	if err := s.carts.Save(r.Context(), claims.PlayerID, cart); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeCart(w, cart)
}

func (s *Server) clearCart(w http.ResponseWriter, r *http.Request) {
	claims, _ := auth.FromContext(r.Context())
	if err := s.carts.Clear(r.Context(), claims.PlayerID); err != nil {
		s.writeError(w, err)
		return
	}
	s.writeCart(w, lottery.NewSelectionCart())
}

func (s *Server) writeCart(w http.ResponseWriter, cart *lottery.SelectionCart) {
	writeJSON(w, http.StatusOK, dto.CartResponse{
		Numbers:   cart.Digits(),
		Remaining: lottery.MaxSelection - cart.Len(),
	})
}

// validateDigits confere 1..10 números válidos e únicos.
func (s *Server) validateDigits(raw []string, ve *lottery.ValidationError) []string {
	if len(raw) == 0 {
		ve.Addf("selected_digits", "at least one number is required")
		return nil
	}
	if len(raw) > lottery.MaxSelection {
		ve.Addf("selected_digits", "at most %d numbers per order, got %d", lottery.MaxSelection, len(raw))
		return nil
	}
	seen := make(map[string]struct{}, len(raw))
	out := make([]string, 0, len(raw))
	for _, d := range raw {
		n, err := lottery.ParseNumber(d)
		if err != nil {
			ve.Addf("selected_digits", "%v", err)
			continue
		}
		if _, dup := seen[string(n)]; dup {
			ve.Addf("selected_digits", "duplicate number %q", d)
			continue
		}
		seen[string(n)] = struct{}{}
		out = append(out, string(n))
	}
	return out
}

func (s *Server) maxMemory() int64 {
	return 8 << 20 // além disso o multipart vai pra disco temporário
}

// collectDigits junta selected_digits enviados como campo repetido
// ("selected_digits"/"selected_digits[]") ou indexado ("selected_digits[0]",
// estilo do cliente web), preservando a ordem de seleção.
func collectDigits(form map[string][]string) []string {
	if v, ok := form["selected_digits"]; ok && len(v) > 0 {
		return v
	}
	if v, ok := form["selected_digits[]"]; ok && len(v) > 0 {
		return v
	}

	type indexed struct {
		idx int
		val string
	}
	var items []indexed
	for key, vals := range form {
		if !strings.HasPrefix(key, "selected_digits[") || !strings.HasSuffix(key, "]") || len(vals) == 0 {
			continue
		}
		idx, err := strconv.Atoi(key[len("selected_digits[") : len(key)-1])
		if err != nil {
			continue
		}
		items = append(items, indexed{idx: idx, val: vals[0]})
	}
	sort.Slice(items, func(i, j int) bool { return items[i].idx < items[j].idx })
	out := make([]string, len(items))
	for i, it := range items {
		out[i] = it.val
	}
	return out
}

// writeError mapeia a taxonomia de erros do domínio para HTTP.
func (s *Server) writeError(w http.ResponseWriter, err error) {
	var ve *lottery.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, dto.ErrorResponse{
			Message: "validation failed",
			Errors:  ve.Fields,
		})
		return
	}
	var ce *lottery.ConflictError
	if errors.As(err, &ce) {
		writeJSON(w, http.StatusConflict, dto.ErrorResponse{
			Message:   "payment status conflict",
			Conflicts: ce.Reasons,
		})
		return
	}
	if errors.Is(err, lottery.ErrNotFound) {
		writeJSON(w, http.StatusNotFound, dto.ErrorResponse{Message: err.Error()})
		return
	}
	var te *lottery.TransientError
	if errors.As(err, &te) {
		s.log.Error("transient failure", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, dto.ErrorResponse{Message: "temporary failure, retry later"})
		return
	}
	s.log.Error("unhandled error", zap.Error(err))
	writeJSON(w, http.StatusInternalServerError, dto.ErrorResponse{Message: "internal error"})
}

// writeJSON serializa e envia resposta JSON
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
