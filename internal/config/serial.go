package config

import (
	"fmt"
	"strings"
)

// SerialConfig describes the product lines that receive serial numbers
type SerialConfig struct {
	DefaultLine string       `mapstructure:"default_line" validate:"required"`
	Lines       []SerialLine `mapstructure:"lines" validate:"required,min=1,dive"`
}

// SerialLine is one independently numbered product line.
// Counter names the durable counter, so two lines may share one sequence.
type SerialLine struct {
	Name        string   `mapstructure:"name" validate:"required"`
	Counter     string   `mapstructure:"counter" validate:"required"`
	Prefix      string   `mapstructure:"prefix"`
	Width       int      `mapstructure:"width" validate:"gte=0,lte=20"`
	Start       int64    `mapstructure:"start" validate:"gte=1"`
	SKUPrefixes []string `mapstructure:"sku_prefixes"`
	// NoteLabel introduces the line's serials in the order note, e.g. "Serial Numbers"
	NoteLabel string `mapstructure:"note_label"`
}

// DefaultSerialLines mirrors the two clock lines sold by the shop
func DefaultSerialLines() []SerialLine {
	return []SerialLine{
		{
			Name:        "lck",
			Counter:     "global_serial_counter",
			Prefix:      "LCK-",
			Start:       1,
			SKUPrefixes: []string{"LCK-"},
			NoteLabel:   "Serial Numbers",
		},
		{
			Name:        "cleartime",
			Counter:     "cleartime_serial_counter",
			Start:       1,
			SKUPrefixes: []string{"CT", "FA", "MP", "KIT"},
			NoteLabel:   "Cleartime Serial Numbers",
		},
	}
}

func defaultSerialLinesMap() []map[string]interface{} {
	lines := DefaultSerialLines()
	out := make([]map[string]interface{}, 0, len(lines))
	for _, l := range lines {
		out = append(out, map[string]interface{}{
			"name":         l.Name,
			"counter":      l.Counter,
			"prefix":       l.Prefix,
			"width":        l.Width,
			"start":        l.Start,
			"sku_prefixes": l.SKUPrefixes,
			"note_label":   l.NoteLabel,
		})
	}
	return out
}

// Validate checks cross-field rules the struct tags cannot express
func (c SerialConfig) Validate() error {
	seen := make(map[string]struct{}, len(c.Lines))
	for _, l := range c.Lines {
		if _, ok := seen[l.Name]; ok {
			return fmt.Errorf("serial line %q configured twice", l.Name)
		}
		if strings.Contains(l.Name, "#") {
			return fmt.Errorf("serial line %q must not contain '#'", l.Name)
		}
		seen[l.Name] = struct{}{}
	}
	if _, ok := seen[c.DefaultLine]; !ok {
		return fmt.Errorf("default serial line %q is not configured", c.DefaultLine)
	}
	for i, a := range c.Lines {
		for _, b := range c.Lines[i+1:] {
			if numbersOverlap(a, b) {
				return fmt.Errorf("serial lines %q and %q can issue the same serial number", a.Name, b.Name)
			}
		}
	}
	return nil
}

// numbersOverlap reports whether two lines can render the same number. A rendered number
// is prefix + digits, so a collision needs one prefix to extend the other by digits only.
// Lines sharing a counter and a prefix never collide since their values are distinct.
func numbersOverlap(a, b SerialLine) bool {
	if a.Counter == b.Counter && a.Prefix == b.Prefix {
		return false
	}
	short, long := a.Prefix, b.Prefix
	if len(short) > len(long) {
		short, long = long, short
	}
	if !strings.HasPrefix(long, short) {
		return false
	}
	for _, r := range long[len(short):] {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}

// Line returns the named line; an empty name resolves to the default line
func (c SerialConfig) Line(name string) (SerialLine, bool) {
	if name == "" {
		name = c.DefaultLine
	}
	for _, l := range c.Lines {
		if l.Name == name {
			return l, true
		}
	}
	return SerialLine{}, false
}

// Label returns the note label, falling back to the line name
func (l SerialLine) Label() string {
	if l.NoteLabel != "" {
		return l.NoteLabel
	}
	return l.Name + " Serial Numbers"
}

// LineForSKU returns the first line whose SKU prefixes match, compared case-insensitively
func (c SerialConfig) LineForSKU(sku string) (SerialLine, bool) {
	sku = strings.ToUpper(strings.TrimSpace(sku))
	if sku == "" {
		return SerialLine{}, false
	}
	for _, l := range c.Lines {
		for _, p := range l.SKUPrefixes {
			if p != "" && strings.HasPrefix(sku, strings.ToUpper(p)) {
				return l, true
			}
		}
	}
	return SerialLine{}, false
}
