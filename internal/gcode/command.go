// Package gcode implements the RS-274 line tokenizer and a typed view
// over a parsed line (C2). It carries no motion or machine semantics —
// see internal/machine for that.
package gcode

import (
	"fmt"

	"gocnc/internal/geometry"
)

// ParseError reports a malformed line. It is one of the two error
// families surfaced to the user as "ERROR <msg>" (spec §7).
type ParseError struct {
	Line string
	Msg  string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("gcode: %s: %q", e.Msg, e.Line)
}

// Command is a pure view over a parsed line's letter→value map. It does
// not interpret any semantics; internal/machine's Machine.Execute does that.
type Command struct {
	params map[byte]float64
	raw    string
}

// Command returns "G<n>" or "M<n>" for the command word present in the
// line, or "" if neither G nor M is present.
func (c *Command) Command() string {
	if n, ok := c.params['G']; ok {
		return formatWord('G', n)
	}
	if n, ok := c.params['M']; ok {
		return formatWord('M', n)
	}
	return ""
}

func formatWord(letter byte, n float64) string {
	if n == float64(int(n)) {
		return fmt.Sprintf("%c%d", letter, int(n))
	}
	return fmt.Sprintf("%c%g", letter, n)
}

// Has reports whether letter appears in the line.
func (c *Command) Has(letter byte) bool {
	_, ok := c.params[letter]
	return ok
}

// Get returns params[letter]*multiplier, or default_ if letter is absent.
func (c *Command) Get(letter byte, default_ float64, multiplier float64) float64 {
	v, ok := c.params[letter]
	if !ok {
		return default_
	}
	return v * multiplier
}

// HasCoordinates reports whether at least one of X/Y/Z/E is present.
func (c *Command) HasCoordinates() bool {
	return c.Has('X') || c.Has('Y') || c.Has('Z') || c.Has('E')
}

// Coordinates builds a Vector4 from X/Y/Z/E, falling back to defaults
// per-axis and scaling present values by multiplier.
func (c *Command) Coordinates(defaults geometry.Vector4, multiplier float64) geometry.Vector4 {
	return geometry.New(
		c.Get('X', defaults.X, multiplier),
		c.Get('Y', defaults.Y, multiplier),
		c.Get('Z', defaults.Z, multiplier),
		c.Get('E', defaults.E, multiplier),
	)
}

// Radius builds a Vector4 from I/J/K (mapped to X/Y/Z) and a fixed zero
// E component, used for arc centre offsets.
func (c *Command) Radius(defaults geometry.Vector4, multiplier float64) geometry.Vector4 {
	return geometry.New(
		c.Get('I', defaults.X, multiplier),
		c.Get('J', defaults.Y, multiplier),
		c.Get('K', defaults.Z, multiplier),
		0,
	)
}

// Raw returns the stripped source line, for logging.
func (c *Command) Raw() string { return c.raw }

// Letters returns the set of letters present, for diagnostics.
func (c *Command) Letters() []byte {
	out := make([]byte, 0, len(c.params))
	for k := range c.params {
		out = append(out, k)
	}
	return out
}
