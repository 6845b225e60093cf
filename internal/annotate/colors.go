package annotate

import "image/color"

// DefaultColor is used for classes missing from a ColorTable.
var DefaultColor = color.RGBA{R: 255, G: 255, B: 255, A: 255}

// ColorTable maps class names to overlay colours. Treat it as read-only once
// it has been handed to an Annotator.
type ColorTable map[string]color.RGBA

// DefaultColors returns the colour coding for the fabric defect classes.
func DefaultColors() ColorTable {
	return ColorTable{
		"defect free": rgb(0, 255, 0),
		"horizontal":  rgb(0, 0, 255),
		"lines":       rgb(255, 0, 0),
		"Vertical":    rgb(255, 165, 0),
		"hole":        rgb(128, 0, 128),
		"stain":       rgb(0, 255, 255),
	}
}

// Lookup returns the colour for class, or DefaultColor on a miss.
func (t ColorTable) Lookup(class string) color.RGBA {
	if c, ok := t[class]; ok {
		return c
	}
	return DefaultColor
}

// FromTriples builds a table from raw RGB triples, as found in config files.
func FromTriples(triples map[string][3]uint8) ColorTable {
	t := make(ColorTable, len(triples))
	for name, v := range triples {
		t[name] = rgb(v[0], v[1], v[2])
	}
	return t
}

func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 255}
}
