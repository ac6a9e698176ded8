package lottery

// MaxSelection limita quantos números um jogador compra de uma vez.
const MaxSelection = 10

// SelectionCart é o conjunto de trabalho de números que o jogador pretende
// comprar, escopado à sessão. Mantém ordem de inserção estável para a UI,
// nunca duplica e nunca passa de MaxSelection. Não reserva números: a
// disponibilidade é só consultiva até a criação do pedido.
type SelectionCart struct {
	numbers []Number
}

// NewSelectionCart cria um carrinho vazio.
func NewSelectionCart() *SelectionCart { return &SelectionCart{} }

// RestoreSelectionCart reconstrói um carrinho persistido (sessão Redis),
// descartando duplicatas, inválidos e excedentes.
func RestoreSelectionCart(digits []string) *SelectionCart {
	c := NewSelectionCart()
	for _, d := range digits {
		n, err := ParseNumber(d)
		if err != nil {
			continue
		}
		c.Add(n)
	}
	return c
}

// Add inclui o número no carrinho. Duplicata ou carrinho cheio é no-op;
// devolve se o número entrou.
func (c *SelectionCart) Add(n Number) bool {
	if len(c.numbers) >= MaxSelection || c.Contains(n) {
		return false
	}
	c.numbers = append(c.numbers, n)
	return true
}

// Remove tira o número do carrinho; devolve se ele estava lá.
func (c *SelectionCart) Remove(n Number) bool {
	for i, have := range c.numbers {
		if have == n {
			c.numbers = append(c.numbers[:i], c.numbers[i+1:]...)
			return true
		}
	}
	return false
}

// Clear esvazia o carrinho (logout ou pedido concluído).
func (c *SelectionCart) Clear() { c.numbers = nil }

// Contains diz se o número já está no carrinho.
func (c *SelectionCart) Contains(n Number) bool {
	for _, have := range c.numbers {
		if have == n {
			return true
		}
	}
	return false
}

// Len devolve quantos números há no carrinho.
func (c *SelectionCart) Len() int { return len(c.numbers) }

// Numbers devolve uma cópia dos números na ordem de inserção.
func (c *SelectionCart) Numbers() []Number {
	out := make([]Number, len(c.numbers))
	copy(out, c.numbers)
	return out
}

// Digits devolve os números como strings, na ordem de inserção.
func (c *SelectionCart) Digits() []string {
	out := make([]string, len(c.numbers))
	for i, n := range c.numbers {
		out[i] = string(n)
	}
	return out
}
