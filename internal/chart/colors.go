// Package chart renders comparison results as dark-themed HTML charts
// (go-echarts) and PNG artifacts (gonum/plot).
package chart

// teamColors maps driver codes to their team's approximate colour.
var teamColors = map[string]string{
	"VER": "#1E41FF", // Red Bull
	"PER": "#1E41FF", // Red Bull
	"HAM": "#00D2BE", // Mercedes
	"RUS": "#00D2BE", // Mercedes
	"LEC": "#DC143C", // Ferrari
	"SAI": "#DC143C", // Ferrari
	"NOR": "#FF8700", // McLaren
	"PIA": "#FF8700", // McLaren
	"ALO": "#006F62", // Aston Martin
	"STR": "#006F62", // Aston Martin
}

// defaultPalette colours drivers without a team entry.
var defaultPalette = []string{"#4A9EFF", "#00D4AA", "#FF6B6B", "#4ECDC4", "#45B7D1"}

// DriverColor returns the display colour for a driver. Unknown drivers
// cycle through the default palette by index.
func DriverColor(driver string, index int) string {
	if c, ok := teamColors[driver]; ok {
		return c
	}
	return defaultPalette[index%len(defaultPalette)]
}
