// Package economy provides the goods catalogue, inventories and the
// relationship-sensitive pricing used when agents trade or share.
package economy

import "math"

// Good enumerates tradeable item kinds.
type Good uint8

const (
	GoodFood  Good = iota // Meals, eaten to satisfy hunger
	GoodWares             // Produced at work, sold to others
	GoodGifts             // Small tokens handed out when sharing
)

// NumGoods is the total number of good kinds.
const NumGoods = 3

// basePrices in coins, indexed by Good.
var basePrices = [NumGoods]int64{
	GoodFood:  4,
	GoodWares: 10,
	GoodGifts: 6,
}

// BasePrice returns the list price of a good.
func BasePrice(g Good) int64 {
	if int(g) >= NumGoods {
		return 0
	}
	return basePrices[g]
}

// Price returns what a seller asks from a buyer with the given relationship
// score toward the seller (-100..100). Friends get up to a quarter off,
// enemies pay up to a quarter more. Never below one coin.
func Price(g Good, relationship int) int64 {
	base := float64(BasePrice(g))
	if base == 0 {
		return 0
	}
	if relationship > 100 {
		relationship = 100
	}
	if relationship < -100 {
		relationship = -100
	}
	p := int64(math.Round(base * (1 - float64(relationship)/400)))
	if p < 1 {
		p = 1
	}
	return p
}

// GoodName returns a human-readable name for a good.
func GoodName(g Good) string {
	switch g {
	case GoodFood:
		return "food"
	case GoodWares:
		return "wares"
	case GoodGifts:
		return "gifts"
	default:
		return "unknown"
	}
}
