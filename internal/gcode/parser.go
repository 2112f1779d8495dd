package gcode

import (
	"strconv"
	"strings"
)

// ParseLine parses a single G-code line into a Command.
//
// It returns (nil, nil) for lines that carry no command: empty lines,
// comment-only lines, and lines starting with '%'. It fails with
// *ParseError when the tokenised letter/value pairs do not reconstruct
// the stripped line exactly, a letter repeats, or both G and M appear
// (spec §4.1).
func ParseLine(line string) (*Command, error) {
	stripped := stripCommentsAndSpace(strings.ToUpper(line))
	if stripped == "" {
		return nil, nil
	}
	if stripped[0] == '%' {
		return nil, nil
	}

	pairs, reconstructed := tokenize(stripped)
	if reconstructed != stripped {
		return nil, &ParseError{Line: line, Msg: "extra characters in line"}
	}
	if len(pairs) == 0 {
		return nil, &ParseError{Line: line, Msg: "gcode not found"}
	}

	params := make(map[byte]float64, len(pairs))
	for _, p := range pairs {
		if _, dup := params[p.letter]; dup {
			return nil, &ParseError{Line: line, Msg: "duplicated gcode entries"}
		}
		params[p.letter] = p.value
	}
	if _, hasG := params['G']; hasG {
		if _, hasM := params['M']; hasM {
			return nil, &ParseError{Line: line, Msg: "g and m command found"}
		}
	}

	return &Command{params: params, raw: stripped}, nil
}

type pair struct {
	letter byte
	value  float64
	text   string // original "LETTERvalue" text, for the reconstruction check
}

// tokenize scans a stripped line for [A-Z][-+]?[0-9.]+ pairs. It returns
// every matched pair plus the concatenation of their source text, so the
// caller can detect extraneous characters by comparing it to the input.
func tokenize(s string) ([]pair, string) {
	var pairs []pair
	var recon strings.Builder
	i := 0
	for i < len(s) {
		c := s[i]
		if c < 'A' || c > 'Z' {
			i++
			continue
		}
		j := i + 1
		numStart := j
		if j < len(s) && (s[j] == '-' || s[j] == '+') {
			j++
		}
		sawDigit := false
		for j < len(s) && (s[j] >= '0' && s[j] <= '9' || s[j] == '.') {
			if s[j] >= '0' && s[j] <= '9' {
				sawDigit = true
			}
			j++
		}
		if !sawDigit {
			// Letter with no numeric value: not a valid pair, leave for
			// the reconstruction check to flag as an extra character.
			i++
			continue
		}
		val, err := strconv.ParseFloat(s[numStart:j], 64)
		if err != nil {
			i++
			continue
		}
		text := s[i:j]
		pairs = append(pairs, pair{letter: c, value: val, text: text})
		recon.WriteString(text)
		i = j
	}
	return pairs, recon.String()
}

// stripCommentsAndSpace removes whitespace, ';...' end-of-line comments
// and '(...)' inline comments.
func stripCommentsAndSpace(s string) string {
	var b strings.Builder
	depth := 0
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == ';':
			return b.String()
		case c == '(':
			depth++
		case c == ')':
			if depth > 0 {
				depth--
			}
		case depth > 0:
			// inside a comment, skip
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			// whitespace, skip
		default:
			b.WriteByte(c)
		}
	}
	return b.String()
}
