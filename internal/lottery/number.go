package lottery

import (
	"fmt"
	"strings"
)

// UniverseSize é o total de números vendáveis: "000" até "999".
const UniverseSize = 1000

// Number é um número de loteria de exatamente 3 dígitos decimais, com zeros
// à esquerda ("007"). Valor imutável.
type Number string

// ParseNumber valida a string de dígitos e devolve o Number correspondente.
func ParseNumber(s string) (Number, error) {
	if len(s) != 3 {
		return "", fmt.Errorf("number must have exactly 3 digits, got %q", s)
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return "", fmt.Errorf("number must be decimal digits only, got %q", s)
		}
	}
	return Number(s), nil
}

// Universe devolve os 1000 números do espaço em ordem crescente.
func Universe() []Number {
	out := make([]Number, 0, UniverseSize)
	for i := 0; i < UniverseSize; i++ {
		out = append(out, Number(fmt.Sprintf("%03d", i)))
	}
	return out
}

// Available devolve o universo menos o conjunto vendido/reservado, em ordem
// crescente. Determinístico: a mesma entrada produz sempre a mesma saída.
func Available(sold map[Number]struct{}) []Number {
	out := make([]Number, 0, UniverseSize-len(sold))
	for i := 0; i < UniverseSize; i++ {
		n := Number(fmt.Sprintf("%03d", i))
		if _, taken := sold[n]; !taken {
			out = append(out, n)
		}
	}
	return out
}

// Matching filtra os números disponíveis por substring dos dígitos (busca do
// storefront), preservando a ordem. Não trunca: paginação é problema da
// camada de apresentação.
func Matching(available []Number, query string) []Number {
	if query == "" {
		return available
	}
	out := make([]Number, 0, len(available))
	for _, n := range available {
		if strings.Contains(string(n), query) {
			out = append(out, n)
		}
	}
	return out
}

// SoldSet converte a lista de dígitos vendidos vinda do repositório no
// conjunto usado por Available. Dígitos inválidos são ignorados: o banco só
// aceita dígitos válidos, então nada a reportar aqui.
func SoldSet(digits []string) map[Number]struct{} {
	set := make(map[Number]struct{}, len(digits))
	for _, d := range digits {
		if n, err := ParseNumber(d); err == nil {
			set[n] = struct{}{}
		}
	}
	return set
}
