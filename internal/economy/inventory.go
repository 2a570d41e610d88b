package economy

// Inventory holds an agent's coins and item counts.
// Counts and money never go negative.
type Inventory struct {
	Money int64         `json:"money"`
	Items [NumGoods]int `json:"items"`
}

// Count returns how many of g are held.
func (inv *Inventory) Count(g Good) int {
	if int(g) >= NumGoods {
		return 0
	}
	return inv.Items[g]
}

// Add puts n of g into the inventory. Non-positive n is ignored.
func (inv *Inventory) Add(g Good, n int) {
	if n <= 0 || int(g) >= NumGoods {
		return
	}
	inv.Items[g] += n
}

// Take removes n of g if at least n are held and reports whether it did.
func (inv *Inventory) Take(g Good, n int) bool {
	if n <= 0 || int(g) >= NumGoods || inv.Items[g] < n {
		return false
	}
	inv.Items[g] -= n
	return true
}

// Earn adds coins. Non-positive amounts are ignored.
func (inv *Inventory) Earn(amount int64) {
	if amount > 0 {
		inv.Money += amount
	}
}

// Spend removes coins if enough are held and reports whether it did.
func (inv *Inventory) Spend(amount int64) bool {
	if amount < 0 || inv.Money < amount {
		return false
	}
	inv.Money -= amount
	return true
}

// IsEmpty returns true if no items and no coins are held.
func (inv *Inventory) IsEmpty() bool {
	if inv.Money != 0 {
		return false
	}
	for _, qty := range inv.Items {
		if qty != 0 {
			return false
		}
	}
	return true
}
