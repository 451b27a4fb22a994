package predict

import (
	"math"
	"strconv"

	"github.com/goliatone/go-drivalyze"
)

// FormatINR renders price in rupees with Indian digit grouping and no
// fraction, e.g. 1234567 becomes "₹12,34,567". Non-positive prices render
// as "N/A".
func FormatINR(price drivalyze.Price) string {
	value := math.Round(float64(price))
	if value <= 0 || math.IsNaN(value) || math.IsInf(value, 0) {
		return "N/A"
	}
	digits := strconv.FormatFloat(value, 'f', 0, 64)
	return "₹" + groupIndian(digits)
}

// groupIndian inserts separators after the last three digits and then every
// two digits.
func groupIndian(digits string) string {
	if len(digits) <= 3 {
		return digits
	}
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	out := make([]byte, 0, len(digits)+len(digits)/2)
	lead := len(head) % 2
	if lead == 1 {
		out = append(out, head[0])
	}
	for i := lead; i < len(head); i += 2 {
		if len(out) > 0 {
			out = append(out, ',')
		}
		out = append(out, head[i:i+2]...)
	}
	out = append(out, ',')
	return string(append(out, tail...))
}
