package services

import (
	"strings"

	"github.com/fingermelody/ai-generation-codebuddy/internal/domain"
)

// Prices are integer cents (CNY fen). Image pricing keys off resolution;
// 3D-model pricing is a quality base plus a format surcharge.
const (
	priceImageLarge   int64 = 500 // 1024x1024
	priceImageDefault int64 = 300

	priceModelLow    int64 = 500
	priceModelMedium int64 = 1000
	priceModelHigh   int64 = 1500

	surchargeOBJ int64 = 200
	surchargeFBX int64 = 500
)

// PriceImage returns the price in cents for a single image at the given
// resolution string, e.g. "1024x1024".
func PriceImage(resolution string) int64 {
	if strings.TrimSpace(resolution) == "1024x1024" {
		return priceImageLarge
	}
	return priceImageDefault
}

// PriceModel3D returns the price in cents for a 3D model of the given
// quality and export format.
func PriceModel3D(quality, format string) int64 {
	var base int64
	switch strings.ToLower(strings.TrimSpace(quality)) {
	case "low":
		base = priceModelLow
	case "high":
		base = priceModelHigh
	default:
		base = priceModelMedium
	}
	switch strings.ToUpper(strings.TrimSpace(format)) {
	case "OBJ":
		base += surchargeOBJ
	case "FBX":
		base += surchargeFBX
	}
	return base
}

// PriceFor prices a generation record by its resource type.
func PriceFor(g *domain.Generation) int64 {
	if g.Kind == domain.ResourceModel3D {
		return PriceModel3D(g.Quality, g.Format)
	}
	return PriceImage(g.Resolution)
}
