package emulator

import (
	"strconv"
	"strings"

	"github.com/dcosson/termscene/internal/snapshot"
)

// attrsFromSGR derives a snapshot.Attrs from the SGR escape sequence a
// midterm.Format.Render() call would emit (e.g. "\x1b[1;4;38;5;208m").
// h2's RenderLineFrom treats Format opaquely, forwarding Render()'s bytes
// straight to the outer terminal; we instead parse those bytes back into
// a structured Attrs value, which keeps this package decoupled from
// midterm's private Format field layout.
func attrsFromSGR(seq string) snapshot.Attrs {
	var a snapshot.Attrs
	params := extractParams(seq)
	for i := 0; i < len(params); i++ {
		code := params[i]
		switch {
		case code == 0:
			a = snapshot.Attrs{}
		case code == 1:
			a.Bold = true
		case code == 2:
			a.Dim = true
		case code == 3:
			a.Italic = true
		case code == 4:
			a.Underline = true
		case code == 7:
			a.Inverse = true
		case code == 9:
			a.Strikethrough = true
		case code == 53:
			a.Overline = true
		case code == 22:
			a.Bold, a.Dim = false, false
		case code == 23:
			a.Italic = false
		case code == 24:
			a.Underline = false
		case code == 27:
			a.Inverse = false
		case code == 29:
			a.Strikethrough = false
		case code == 55:
			a.Overline = false
		case code == 39:
			a.Fg = nil
		case code == 49:
			a.Bg = nil
		case code >= 30 && code <= 37:
			c := snapshot.Color{Palette: uint8(code - 30)}
			a.Fg = &c
		case code >= 90 && code <= 97:
			c := snapshot.Color{Palette: uint8(code-90) + 8}
			a.Fg = &c
		case code >= 40 && code <= 47:
			c := snapshot.Color{Palette: uint8(code - 40)}
			a.Bg = &c
		case code >= 100 && code <= 107:
			c := snapshot.Color{Palette: uint8(code-100) + 8}
			a.Bg = &c
		case code == 38 || code == 48:
			consumed, col := parseExtendedColor(params[i:])
			if consumed == 0 {
				continue
			}
			if code == 38 {
				a.Fg = col
			} else {
				a.Bg = col
			}
			i += consumed - 1
		}
	}
	return a
}

// parseExtendedColor handles the "38;5;N" (256-color) and "38;2;r;g;b"
// (truecolor) forms. params[0] is the leading 38/48. Returns how many
// entries from params were consumed and the resulting color.
func parseExtendedColor(params []int) (int, *snapshot.Color) {
	if len(params) < 2 {
		return 0, nil
	}
	switch params[1] {
	case 5:
		if len(params) < 3 {
			return 0, nil
		}
		c := snapshot.Color{Palette: uint8(params[2])}
		return 3, &c
	case 2:
		if len(params) < 5 {
			return 0, nil
		}
		c := snapshot.Color{RGB: rgbHex(params[2], params[3], params[4])}
		return 5, &c
	}
	return 0, nil
}

func rgbHex(r, g, b int) string {
	const hexDigits = "0123456789abcdef"
	clamp := func(v int) int {
		if v < 0 {
			return 0
		}
		if v > 255 {
			return 255
		}
		return v
	}
	r, g, b = clamp(r), clamp(g), clamp(b)
	buf := make([]byte, 7)
	buf[0] = '#'
	hex2 := func(off int, v int) {
		buf[off] = hexDigits[v>>4]
		buf[off+1] = hexDigits[v&0xF]
	}
	hex2(1, r)
	hex2(3, g)
	hex2(5, b)
	return string(buf)
}

// extractParams pulls the numeric ';'-separated parameter list out of an
// SGR sequence, defaulting empty fields to 0 ("\x1b[m" == "\x1b[0m").
func extractParams(seq string) []int {
	start := strings.IndexByte(seq, '[')
	end := strings.LastIndexByte(seq, 'm')
	if start < 0 || end < 0 || end <= start {
		return nil
	}
	body := seq[start+1 : end]
	if body == "" {
		return []int{0}
	}
	fields := strings.Split(body, ";")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		if f == "" {
			out = append(out, 0)
			continue
		}
		n, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}
