package lottery

import "time"

// DrawLabel classifica o sorteio dentro do mês.
type DrawLabel string

const (
	EarlyMonth DrawLabel = "early_month" // dia 1
	MidMonth   DrawLabel = "mid_month"   // dia 15
	EndMonth   DrawLabel = "end_month"   // último dia do mês
)

const drawHour = 18 // sorteios sempre às 18:00 no fuso do deployment

// Draw é o próximo sorteio agendado.
type Draw struct {
	At    time.Time `json:"at"`
	Label DrawLabel `json:"label"`
}

// NextDraw calcula o próximo sorteio estritamente depois de now. Sorteios
// ocorrem nos dias 1, 15 e último dia de cada mês, às 18:00 em loc. Se todos
// os candidatos do mês já passaram, cai no dia 1 do mês seguinte. Função
// pura: o chamador fornece o relógio.
func NextDraw(now time.Time, loc *time.Location) Draw {
	local := now.In(loc)
	year, month, _ := local.Date()

	lastDay := time.Date(year, month+1, 0, 0, 0, 0, 0, loc).Day()

	candidates := []struct {
		day   int
		label DrawLabel
	}{
		{1, EarlyMonth},
		{15, MidMonth},
		{lastDay, EndMonth},
	}

	for _, c := range candidates {
		at := time.Date(year, month, c.day, drawHour, 0, 0, 0, loc)
		if at.After(local) {
			return Draw{At: at, Label: c.label}
		}
	}

	// todos os candidatos deste mês já passaram
	return Draw{
		At:    time.Date(year, month+1, 1, drawHour, 0, 0, 0, loc),
		Label: EarlyMonth,
	}
}

// NextDrawDate devolve a data do próximo sorteio no formato "YYYY-MM-DD",
// usada como chave da projeção de números vendidos.
func NextDrawDate(now time.Time, loc *time.Location) string {
	return NextDraw(now, loc).At.Format("2006-01-02")
}
