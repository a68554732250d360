package protocol

import "unicode/utf16"

// LineCol converts a browser selection offset (0-based, counted in UTF-16
// code units) into the 1-based line and 1-based UTF-8 byte column that
// editor command lines expect.
//
// A code point below U+10000 is one UTF-16 unit but up to three UTF-8
// bytes; anything above is a surrogate pair (two units) and four bytes.
// An offset landing inside a surrogate pair resolves to the position
// before that code point; an offset past the end of the text clamps to
// the last position.
func LineCol(offset int, text string) (line, col int) {
	line = 1
	col = 1
	units := 0

	for _, r := range text {
		units += utf16.RuneLen(r)
		if units > offset {
			break
		}
		if r == '\n' {
			line++
			col = 1
		} else {
			col += utf8Len(r)
		}
	}

	return line, col
}

// utf8Len is the UTF-8 encoded byte length of r. utf16.RuneLen returns -1
// for surrogate halves, which cannot appear when ranging over a string.
func utf8Len(r rune) int {
	switch {
	case r < 0x80:
		return 1
	case r < 0x800:
		return 2
	case r < 0x10000:
		return 3
	default:
		return 4
	}
}

// CursorLineCol derives the editor cursor position from an update's first
// selection, defaulting to 1:1 when the browser sent none.
func CursorLineCol(u TextUpdate) (line, col int) {
	if len(u.Selections) == 0 {
		return 1, 1
	}
	return LineCol(u.Selections[0].Start, u.Text)
}
