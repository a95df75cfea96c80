package ledger

import (
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// UnitsPerDisplay é a quantidade de e8s em uma unidade da moeda exibida.
const UnitsPerDisplay int64 = 100_000_000

const unitsExp int32 = -8

// FormatUnits converte e8s para a moeda exibida com casas decimais fixas.
// Usado apenas na apresentação; a contabilidade trabalha sempre com e8s.
func FormatUnits(e8s int64, places int32) string {
	return decimal.New(e8s, unitsExp).StringFixed(places)
}

// ParseUnits converte um valor digitado na moeda exibida para e8s,
// descartando frações menores que 1 e8s.
func ParseUnits(text string) (int64, error) {
	d, err := decimal.NewFromString(strings.TrimSpace(text))
	if err != nil {
		return 0, Invalid("valor inválido: %q", text)
	}
	if d.IsNegative() {
		return 0, Invalid("valor não pode ser negativo: %q", text)
	}
	scaled := d.Shift(-unitsExp).Truncate(0)
	if scaled.GreaterThan(decimal.NewFromInt(math.MaxInt64)) {
		return 0, ErrAmountOverflow
	}
	return scaled.IntPart(), nil
}

// MulUnits multiplica quantidades não negativas detectando estouro de int64.
func MulUnits(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, Invalid("quantidades devem ser não negativas")
	}
	if a == 0 || b == 0 {
		return 0, nil
	}
	if a > math.MaxInt64/b {
		return 0, ErrAmountOverflow
	}
	return a * b, nil
}

// AddUnits soma quantidades não negativas detectando estouro de int64.
func AddUnits(a, b int64) (int64, error) {
	if a < 0 || b < 0 {
		return 0, Invalid("quantidades devem ser não negativas")
	}
	if a > math.MaxInt64-b {
		return 0, ErrAmountOverflow
	}
	return a + b, nil
}
