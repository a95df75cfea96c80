package ledger

import (
	"sort"
	"strings"

	"github.com/ferreirogomes/artshare/models"
)

// SortKey define a ordenação do catálogo.
type SortKey string

const (
	SortNewest    SortKey = "newest"
	SortPopular   SortKey = "popular"
	SortPriceLow  SortKey = "price-low"
	SortPriceHigh SortKey = "price-high"
)

// ParseSortKey aceita os valores usados pelo frontend; qualquer outro vira "newest".
func ParseSortKey(s string) SortKey {
	switch SortKey(strings.ToLower(strings.TrimSpace(s))) {
	case SortPopular:
		return SortPopular
	case SortPriceLow:
		return SortPriceLow
	case SortPriceHigh:
		return SortPriceHigh
	default:
		return SortNewest
	}
}

// FilterAndSort filtra por título ou artista (sem diferenciar maiúsculas)
// e ordena de forma estável: empates mantêm a ordem de inserção recebida.
func FilterAndSort(artworks []models.Artwork, search string, key SortKey) []models.Artwork {
	term := strings.ToLower(strings.TrimSpace(search))
	out := make([]models.Artwork, 0, len(artworks))
	for _, a := range artworks {
		if term == "" ||
			strings.Contains(strings.ToLower(a.Title), term) ||
			strings.Contains(strings.ToLower(a.Artist), term) {
			out = append(out, a)
		}
	}

	var less func(i, j int) bool
	switch key {
	case SortPopular:
		less = func(i, j int) bool { return out[i].OwnerCount > out[j].OwnerCount }
	case SortPriceLow:
		less = func(i, j int) bool { return out[i].PricePerToken < out[j].PricePerToken }
	case SortPriceHigh:
		less = func(i, j int) bool { return out[i].PricePerToken > out[j].PricePerToken }
	default:
		less = func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) }
	}
	sort.SliceStable(out, less)
	return out
}

// BuildPortfolio calcula os valores derivados de cada posição e os totais.
// Posições cuja obra não está em artworks entram com valor zero.
func BuildPortfolio(owner string, holdings []models.TokenHolding, artworks map[int64]models.Artwork) models.Portfolio {
	p := models.Portfolio{Owner: owner, Holdings: make([]models.HoldingView, 0, len(holdings))}
	for _, h := range holdings {
		view := models.HoldingView{TokenHolding: h}
		if art, ok := artworks[h.ArtworkID]; ok {
			view.ArtworkTitle = art.Title
			view.OwnershipPercent = h.OwnershipPercent(art)
			view.CurrentValue = h.CurrentValue(art)
		}
		view.ProfitLoss = view.CurrentValue - h.PurchasePrice
		p.TotalValue += view.CurrentValue
		p.TotalInvested += h.PurchasePrice
		p.Holdings = append(p.Holdings, view)
	}
	p.ProfitLoss = p.TotalValue - p.TotalInvested
	return p
}
