package protocol

import "testing"

func TestLineCol(t *testing.T) {
	cases := []struct {
		name   string
		text   string
		offset int
		line   int
		col    int
	}{
		{"at text beginning", "asdf hjkl", 0, 1, 1},
		{"at text end", "asdf hjkl", 10, 1, 10},
		{"in text", "asdf hjkl", 4, 1, 5},
		{"past end of text", "asdf hjkl", 12, 1, 10},
		{"on another line", "asdf\nhjkl\nzxcv", 7, 2, 3},
		{"at beginning of surrogate pair", "asdf 🇺🇸", 5, 1, 6},
		{"at end of surrogate pair", "asdf 🇺🇸", 9, 1, 14},
		{"in middle of surrogate pair", "asdf 🇺🇸", 6, 1, 6},
		{"right after 2-byte utf8 sequence", "àsdf hjkl", 1, 1, 3},
		{"after 2-byte utf8 sequence", "àsdf hjkl", 4, 1, 6},
		{"right before utf16 surrogate pair", "linear A: 𐘗 (U+10617)", 10, 1, 11},
		{"in middle of utf16 surrogate pair", "linear A: 𐘗 (U+10617)", 11, 1, 11},
		{"right after utf16 surrogate pair", "linear A: 𐘗 (U+10617)", 12, 1, 15},
		{"after utf16 surrogate pair", "linear A: 𐘗 (U+10617)", 14, 1, 17},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			line, col := LineCol(tc.offset, tc.text)
			if line != tc.line || col != tc.col {
				t.Errorf("LineCol(%d, %q) = (%d, %d), want (%d, %d)",
					tc.offset, tc.text, line, col, tc.line, tc.col)
			}
		})
	}
}

func TestCursorLineCol(t *testing.T) {
	u := TextUpdate{Text: "asdf\nhjkl", Selections: []Range{{Start: 7, End: 7}}}
	line, col := CursorLineCol(u)
	if line != 2 || col != 3 {
		t.Errorf("got (%d, %d), want (2, 3)", line, col)
	}

	line, col = CursorLineCol(TextUpdate{Text: "asdf"})
	if line != 1 || col != 1 {
		t.Errorf("no selection: got (%d, %d), want (1, 1)", line, col)
	}
}
