package bucket

import (
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Palette maps bucket indices to colors. NoData is the color for ZIPs
// excluded from bucketing because the active metric is missing.
type Palette struct {
	Colors []string `yaml:"colors"`
	NoData string   `yaml:"no_data"`
}

// DefaultPalette is the house style: dark-to-blue quintile ramp.
func DefaultPalette() Palette {
	return Palette{
		Colors: []string{"#000000", "#999999", "#C6DCCB", "#99ccff", "#0bb4ff"},
		NoData: "#e8e8e8",
	}
}

// LoadPalette reads a palette from a YAML file. Missing fields fall back
// to the default palette.
func LoadPalette(path string) (Palette, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Palette{}, eris.Wrapf(err, "bucket: read palette %s", path)
	}

	p := DefaultPalette()
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Palette{}, eris.Wrapf(err, "bucket: parse palette %s", path)
	}
	if len(p.Colors) == 0 {
		p.Colors = DefaultPalette().Colors
	}
	if p.NoData == "" {
		p.NoData = DefaultPalette().NoData
	}
	return p, nil
}

// Color returns the color for bucket i of k, spreading the ramp across
// the requested bucket count.
func (p Palette) Color(i, k int) string {
	if len(p.Colors) == 0 {
		return ""
	}
	if i < 0 {
		i = 0
	}
	if i >= k {
		i = k - 1
	}
	if k <= 1 {
		return p.Colors[len(p.Colors)-1]
	}
	pos := i * (len(p.Colors) - 1) / (k - 1)
	return p.Colors[pos]
}
