package service

import (
	"testing"

	"storefront-service/internal/models"

	"github.com/stretchr/testify/assert"
)

func line(usd float64, qty int) models.PopulatedLine {
	return models.PopulatedLine{
		Product:  models.Product{Internal: models.ProductInternal{ApproximatePriceUSD: usd}},
		Quantity: qty,
	}
}

func TestPriceTotal(t *testing.T) {
	tests := []struct {
		name  string
		lines []models.PopulatedLine
		want  int64
	}{
		{"three hundred dollars", []models.PopulatedLine{line(300, 1)}, 30000},
		{"two thousand dollars", []models.PopulatedLine{line(2000, 1)}, 200000},
		{"quantity multiplies", []models.PopulatedLine{line(9.99, 3)}, 2997},
		{"exact cents stay exact", []models.PopulatedLine{line(19.99, 1)}, 1999},
		{"fractions of a cent round up", []models.PopulatedLine{line(0.001, 1)}, 1},
		{"sum across lines", []models.PopulatedLine{line(300, 1), line(2000, 1), line(0.005, 2)}, 230001},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, PriceTotal(tt.lines))
		})
	}
}
