// Package money holds the single authoritative implementation of the
// tax arithmetic. All amounts are int64 paise; no other package may
// recompute GST on its own.
package money

// ComputeGST derives the GST amount from a subtotal and a percent rate,
// flooring the result. Flooring (not rounding) keeps redisplayed values
// identical to the persisted order amounts.
func ComputeGST(subtotal int64, ratePercent int) int64 {
	if subtotal <= 0 || ratePercent <= 0 {
		return 0
	}
	return subtotal * int64(ratePercent) / 100
}

// SplitGST splits a GST amount into its SGST and CGST halves for display.
// SGST is the rounded half; CGST is the remainder, so sgst+cgst == gst
// holds exactly for every input.
func SplitGST(gst int64) (sgst, cgst int64) {
	if gst <= 0 {
		return 0, 0
	}
	sgst = (gst + 1) / 2
	cgst = gst - sgst
	return sgst, cgst
}
