package advisory

import (
	"sort"
	"strings"
)

// MarketPrice is a reference price in rupees per quintal.
type MarketPrice struct {
	Crop       string `json:"crop"`
	PerQuintal int    `json:"per_quintal"`
}

// Fixed placeholder figures; there is no live market feed.
var marketPrices = map[string]int{
	"Rice":      2183,
	"Wheat":     2275,
	"Cotton":    6620,
	"Maize":     2090,
	"Tomato":    1500,
	"Onion":     1800,
	"Chilli":    8000,
	"Turmeric":  7000,
	"Groundnut": 6377,
	"Soybean":   4600,
}

// MarketPrices returns the reference prices sorted by crop.
func MarketPrices() []MarketPrice {
	out := make([]MarketPrice, 0, len(marketPrices))
	for crop, price := range marketPrices {
		out = append(out, MarketPrice{Crop: crop, PerQuintal: price})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Crop < out[j].Crop })
	return out
}

// LookupPrice finds the reference price for crop, ignoring case.
func LookupPrice(crop string) (MarketPrice, bool) {
	crop = strings.TrimSpace(crop)
	for name, price := range marketPrices {
		if strings.EqualFold(name, crop) {
			return MarketPrice{Crop: name, PerQuintal: price}, true
		}
	}
	return MarketPrice{}, false
}
