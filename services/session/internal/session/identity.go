package session

import "fmt"

// dinerPalette is the fixed set of avatar colors handed out by join order.
// Indexing is cyclic so replaying the same join sequence always reproduces
// the same coloring.
var dinerPalette = []string{
	"#FF6B6B", "#4ECDC4", "#45B7D1", "#FFA07A",
	"#98D8C8", "#F7DC6F", "#BB8FCE", "#85C1E9",
	"#F0B27A", "#82E0AA", "#F1948A", "#73C6B6",
	"#D7BDE2", "#7FB3D5", "#F8C471", "#76D7C4",
}

// ColorForIndex picks the avatar color for the diner joining at position i.
func ColorForIndex(i int) string {
	if i < 0 {
		i = -i
	}
	return dinerPalette[i%len(dinerPalette)]
}

// FallbackDinerName builds a display name for a diner who joined without
// supplying one.
func FallbackDinerName(i int) string {
	return fmt.Sprintf("Diner %d", i+1)
}
