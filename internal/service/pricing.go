package service

import (
	"storefront-service/internal/models"

	"github.com/shopspring/decimal"
)

// ChargeCurrency is the currency every checkout is charged in.
const ChargeCurrency = "USD"

var hundred = decimal.NewFromInt(100)

// PriceTotal sums approximatePriceUSD × quantity over the lines and converts
// to cents, rounding up.
func PriceTotal(lines []models.PopulatedLine) int64 {
	sum := decimal.Zero
	for _, line := range lines {
		price := decimal.NewFromFloat(line.Product.Internal.ApproximatePriceUSD)
		sum = sum.Add(price.Mul(decimal.NewFromInt(int64(line.Quantity))))
	}
	return sum.Mul(hundred).Ceil().IntPart()
}
