// Package pricing holds the single implementation of the rate and invoice
// figures shown across the console: markup, profit and margin.
package pricing

import "math"

// Markup is the percentage by which the client rate exceeds the contractor rate.
// It is 0 when the contractor rate is not positive.
func Markup(contractorRate, clientRate float64) float64 {
	if contractorRate <= 0 {
		return 0
	}
	return (clientRate - contractorRate) / contractorRate * 100
}

// Profit is what remains of the client amount after paying the contractor.
func Profit(clientAmount, contractorAmount float64) float64 {
	return clientAmount - contractorAmount
}

// MarginPct is profit as a percentage of contractor cost. It is 0 when the
// contractor amount is zero or the result is not a finite number.
func MarginPct(profit, contractorAmount float64) float64 {
	if contractorAmount == 0 {
		return 0
	}
	m := profit / contractorAmount * 100
	if math.IsNaN(m) || math.IsInf(m, 0) {
		return 0
	}
	return m
}

// Round2 rounds to two decimals for display.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}

// Line is one billable row contributing to Totals.
type Line struct {
	Hours            float64
	ContractorAmount float64
	ClientAmount     float64
	Profit           float64
}

// Totals aggregates billable lines, e.g. the timesheets selected for an invoice.
type Totals struct {
	Count            int     `json:"count"`
	Hours            float64 `json:"hours"`
	ContractorAmount float64 `json:"contractor_amount"`
	ClientAmount     float64 `json:"client_amount"`
	Profit           float64 `json:"profit"`
	MarginPct        float64 `json:"margin_percentage"`
}

// Add folds a line into the totals and refreshes the margin.
func (t *Totals) Add(l Line) {
	t.Count++
	t.Hours += l.Hours
	t.ContractorAmount += l.ContractorAmount
	t.ClientAmount += l.ClientAmount
	t.Profit += l.Profit
	t.MarginPct = MarginPct(t.Profit, t.ContractorAmount)
}

// Sum builds Totals over lines.
func Sum(lines ...Line) Totals {
	var t Totals
	for _, l := range lines {
		t.Add(l)
	}
	return t
}
