package export

import (
	"fmt"
	"math"
	"strings"

	"github.com/san-kum/ljmd/internal/dynamo"
)

// ParticlesSVG draws the x-y projection of p folded into the periodic box,
// size pixels on a side. Particles deeper in z are drawn darker.
func ParticlesSVG(p *dynamo.Particles, box float64, size int) string {
	if p == nil || box <= 0 || size <= 0 {
		return ""
	}
	scale := float64(size) / box

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<g fill="#00ff88">
`, size, size, size, size))

	radius := math.Max(1.5, float64(size)/80)
	for i := 0; i < p.Len(); i++ {
		x := fold(p.Rx[i], box) * scale
		y := float64(size) - fold(p.Ry[i], box)*scale
		depth := 0.35 + 0.65*fold(p.Rz[i], box)/box
		sb.WriteString(fmt.Sprintf(`<circle cx="%.1f" cy="%.1f" r="%.1f" fill-opacity="%.2f"/>
`, x, y, radius, depth))
	}

	sb.WriteString("</g>\n</svg>")
	return sb.String()
}

func fold(v, box float64) float64 {
	v = math.Mod(v, box)
	if v < 0 {
		v += box
	}
	return v
}

// SeriesSVG draws values as a polyline scaled to width x height.
func SeriesSVG(values []float64, width, height int, strokeColor string) string {
	if len(values) < 2 {
		return ""
	}

	minY, maxY := values[0], values[0]
	for _, v := range values {
		minY = math.Min(minY, v)
		maxY = math.Max(maxY, v)
	}

	rangeY := maxY - minY
	if rangeY == 0 {
		rangeY = math.Max(math.Abs(maxY), 1)
	}
	minY -= rangeY * 0.1
	maxY += rangeY * 0.1
	rangeY = maxY - minY
	stepX := float64(width) / float64(len(values)-1)

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="#0a0a0a"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, strokeColor))

	for i, v := range values {
		x := float64(i) * stepX
		y := float64(height) - (v-minY)/rangeY*float64(height)
		if i == 0 {
			sb.WriteString(fmt.Sprintf("%.1f,%.1f", x, y))
		} else {
			sb.WriteString(fmt.Sprintf(" L%.1f,%.1f", x, y))
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
