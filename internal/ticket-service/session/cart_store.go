package session

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/radieske/lottery-3d-platform-poc/internal/lottery"
)

// CartStore persiste o carrinho de seleção por jogador no Redis, com TTL de
// sessão. Substitui o estado ambiente do cliente original: o carrinho é um
// objeto de sessão explícito, criado vazio, limpo no logout ou após a compra.
type CartStore struct {
	R   *redis.Client
	TTL time.Duration
}

func NewCartStore(r *redis.Client, ttl time.Duration) *CartStore {
	return &CartStore{R: r, TTL: ttl}
}

func key(playerID string) string { return "cart:" + playerID }

// Get carrega o carrinho do jogador; sessão sem carrinho devolve um vazio.
func (s *CartStore) Get(ctx context.Context, playerID string) (*lottery.SelectionCart, error) {
	b, err := s.R.Get(ctx, key(playerID)).Bytes()
	if err == redis.Nil {
		return lottery.NewSelectionCart(), nil
	}
	if err != nil {
		return nil, &lottery.TransientError{Op: "cart get", Err: err}
	}
	var digits []string
	if err := json.Unmarshal(b, &digits); err != nil {
		// carrinho corrompido não derruba a sessão: recomeça vazio
		return lottery.NewSelectionCart(), nil
	}
	return lottery.RestoreSelectionCart(digits), nil
}

// Save grava o carrinho renovando o TTL da sessão.
func (s *CartStore) Save(ctx context.Context, playerID string, c *lottery.SelectionCart) error {
	b, _ := json.Marshal(c.Digits())
	if err := s.R.Set(ctx, key(playerID), b, s.TTL).Err(); err != nil {
		return &lottery.TransientError{Op: "cart save", Err: err}
	}
	return nil
}

// Clear descarta o carrinho (logout ou pedido concluído).
func (s *CartStore) Clear(ctx context.Context, playerID string) error {
	if err := s.R.Del(ctx, key(playerID)).Err(); err != nil {
		return &lottery.TransientError{Op: "cart clear", Err: err}
	}
	return nil
}
