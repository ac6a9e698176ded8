package cache

import (
	"context"
	"sort"
	"time"

	"github.com/redis/go-redis/v9"
)

// SoldCache mantém no Redis o conjunto de dígitos vendidos por sorteio, a
// projeção que o storefront consulta antes de cair no Postgres. TTL cobre o
// ciclo do sorteio; a chave morre sozinha depois que o sorteio passa.
type SoldCache struct {
	Client *redis.Client
	TTL    time.Duration
}

func NewSoldCache(c *redis.Client, ttl time.Duration) *SoldCache {
	return &SoldCache{Client: c, TTL: ttl}
}

func key(drawDate string) string { return "sold:" + drawDate }

// MarkSold adiciona os dígitos ao conjunto do sorteio.
func (s *SoldCache) MarkSold(ctx context.Context, drawDate string, digits []string) error {
	if len(digits) == 0 {
		return nil
	}
	members := make([]any, len(digits))
	for i, d := range digits {
		members[i] = d
	}
	pipe := s.Client.TxPipeline()
	pipe.SAdd(ctx, key(drawDate), members...)
	pipe.Expire(ctx, key(drawDate), s.TTL)
	_, err := pipe.Exec(ctx)
	return err
}

// Rebuild substitui o conjunto do sorteio pelos dígitos informados (a visão
// atual do banco). Um SREM cego não serve aqui: números não são reservados
// com exclusividade, então um dígito de pagamento failed pode continuar
// vendido por outro pedido. Conjunto vazio vira DEL: Members devolve
// found=false e o chamador cai no Postgres.
func (s *SoldCache) Rebuild(ctx context.Context, drawDate string, digits []string) error {
	pipe := s.Client.TxPipeline()
	pipe.Del(ctx, key(drawDate))
	if len(digits) > 0 {
		members := make([]any, len(digits))
		for i, d := range digits {
			members[i] = d
		}
		pipe.SAdd(ctx, key(drawDate), members...)
		pipe.Expire(ctx, key(drawDate), s.TTL)
	}
	_, err := pipe.Exec(ctx)
	return err
}

// Members devolve os dígitos vendidos em ordem crescente. found=false quando
// a projeção ainda não existe para o sorteio: o chamador cai no Postgres.
func (s *SoldCache) Members(ctx context.Context, drawDate string) ([]string, bool, error) {
	exists, err := s.Client.Exists(ctx, key(drawDate)).Result()
	if err != nil {
		return nil, false, err
	}
	if exists == 0 {
		return nil, false, nil
	}
	digits, err := s.Client.SMembers(ctx, key(drawDate)).Result()
	if err != nil {
		return nil, false, err
	}
	sort.Strings(digits)
	return digits, true, nil
}
