package general

import (
	"math"
)

func ItemInSlice[T comparable](slice []T, item T) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func NoDuplicateItemsInSlice[T comparable](slice []T) bool {
	seen := make(map[T]bool)
	for _, item := range slice {
		if seen[item] {
			return false
		}
		seen[item] = true
	}
	return true
}

func ChannelAtLoadLevel[T any](channel <-chan T, loadLevel float64) bool {
	return float64(len(channel))/float64(cap(channel)) >= loadLevel
}

// RoundToDecimals rounds v to the given number of decimal digits.
func RoundToDecimals(v float64, digits int) float64 {
	scale := math.Pow(10, float64(digits))
	return math.Round(v*scale) / scale
}

// SafeValue returns v, or 0 when v is NaN or infinite. Keeps derived
// totals finite and displayable no matter what a component reports.
func SafeValue(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return v
}
