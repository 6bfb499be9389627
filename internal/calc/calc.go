// Package calc converts lot counts and point/percentage offsets into
// venue-acceptable quantities and prices.
package calc

import (
	"github.com/shopspring/decimal"

	"tradehook/pkg/exchanges/common"
)

// RoundToTick rounds a price to the nearest multiple of the tick size.
// Decimal arithmetic keeps the result an exact tick multiple; re-rounding
// an already rounded price is a no-op.
func RoundToTick(price, tick float64) float64 {
	if tick <= 0 {
		return price
	}
	p := decimal.NewFromFloat(price)
	t := decimal.NewFromFloat(tick)
	out, _ := p.Div(t).Round(0).Mul(t).Float64()
	return out
}

// PriceForOffset derives a protective trigger price from the reference
// price. Percentage mode scales the reference by (1 ± offset/100); point
// mode shifts it by the offset in price units. The direction is up for the
// gain leg of a buy and the loss leg of a sell, down otherwise. The result
// is always a tick multiple.
func PriceForOffset(ref, offset float64, isPercentage, isGain bool, side common.Side, tick float64) float64 {
	up := isGain == (side == common.SideBuy)

	delta := offset
	if isPercentage {
		delta = ref * offset / 100
	}
	price := ref - delta
	if up {
		price = ref + delta
	}
	return RoundToTick(price, tick)
}
