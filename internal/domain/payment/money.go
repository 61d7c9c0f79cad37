package payment

import "fmt"

// FormatAmount renders minor units as dollars, e.g. 5500 -> "$55.00".
func FormatAmount(cents int64) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s$%d.%02d", sign, cents/100, cents%100)
}
