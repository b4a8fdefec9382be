package portfolio

// CommissionSchedule prices a single fill. All components are additive;
// minimum/maximum clamp the combined charge when set.
type CommissionSchedule struct {
	PerContract float64 // flat amount per contract/unit
	PerTrade    float64 // flat amount per fill
	Percentage  float64 // fraction of notional, e.g. 0.0005
	Minimum     float64 // 0 disables
	Maximum     float64 // 0 disables
}

// For returns the commission for a fill of qty units at price.
func (c CommissionSchedule) For(price, qty float64) float64 {
	amount := c.PerContract*qty + c.PerTrade + c.Percentage*price*qty
	if c.Minimum > 0 && amount < c.Minimum {
		amount = c.Minimum
	}
	if c.Maximum > 0 && amount > c.Maximum {
		amount = c.Maximum
	}
	return amount
}
