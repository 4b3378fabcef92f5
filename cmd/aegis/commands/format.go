package commands

import "fmt"

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

// formatNumber renders an integer with thousands separators
func formatNumber(n int64) string {
	sign := ""
	if n < 0 {
		sign = "-"
		n = -n
	}

	s := fmt.Sprintf("%d", n)
	out := make([]byte, 0, len(s)+len(s)/3)
	for i, c := range []byte(s) {
		if i > 0 && (len(s)-i)%3 == 0 {
			out = append(out, ',')
		}
		out = append(out, c)
	}
	return sign + string(out)
}

// printSeparator prints a visual separator
func printSeparator() {
	fmt.Println("───────────────────────────────────────────────────────────")
}

// printDoubleSeparator prints a double-line separator
func printDoubleSeparator() {
	fmt.Println("═══════════════════════════════════════════════════════════")
}
