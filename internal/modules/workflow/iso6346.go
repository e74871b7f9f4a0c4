// README: ISO 6346 container number check-digit validation.
package workflow

import "strings"

// ValidContainerNumber checks owner code, category identifier, serial and
// check digit, e.g. "CSQU3054383".
func ValidContainerNumber(raw string) bool {
	n := strings.ToUpper(strings.TrimSpace(raw))
	if len(n) != 11 {
		return false
	}
	sum := 0
	for i := 0; i < 10; i++ {
		ch := n[i]
		var v int
		switch {
		case i < 4:
			if ch < 'A' || ch > 'Z' {
				return false
			}
			v = letterValue(ch)
		default:
			if ch < '0' || ch > '9' {
				return false
			}
			v = int(ch - '0')
		}
		sum += v << i
	}
	if c := n[3]; c != 'U' && c != 'J' && c != 'Z' {
		return false
	}
	check := n[10]
	if check < '0' || check > '9' {
		return false
	}
	return sum%11%10 == int(check-'0')
}

// letterValue maps A=10 upwards, skipping multiples of 11.
func letterValue(ch byte) int {
	v := 10
	for c := byte('A'); c < ch; c++ {
		v++
		if v%11 == 0 {
			v++
		}
	}
	return v
}
