package economy

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPriceFollowsRelationship(t *testing.T) {
	assert.Equal(t, int64(10), Price(GoodWares, 0))
	assert.Equal(t, int64(8), Price(GoodWares, 100))
	assert.Equal(t, int64(13), Price(GoodWares, -100))
	assert.Equal(t, Price(GoodWares, 100), Price(GoodWares, 500))
	assert.Equal(t, int64(0), Price(Good(99), 0))
	assert.GreaterOrEqual(t, Price(GoodFood, 100), int64(1))
}

func TestInventory(t *testing.T) {
	var inv Inventory
	assert.True(t, inv.IsEmpty())

	inv.Add(GoodFood, 2)
	inv.Add(GoodFood, -5)
	assert.Equal(t, 2, inv.Count(GoodFood))
	assert.False(t, inv.Take(GoodFood, 3))
	assert.True(t, inv.Take(GoodFood, 2))
	assert.Zero(t, inv.Count(GoodFood))

	inv.Earn(5)
	inv.Earn(-3)
	assert.False(t, inv.Spend(6))
	assert.True(t, inv.Spend(5))
	assert.Zero(t, inv.Money)
	assert.False(t, inv.Spend(-1))
}
