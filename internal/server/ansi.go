package server

import (
	"fmt"
	"strings"
)

// terminal palette used for the SVG snapshot, dark background
var ansiPalette = map[int]string{
	30: "#3b4252", 31: "#bf616a", 32: "#a3be8c", 33: "#ebcb8b",
	34: "#81a1c1", 35: "#b48ead", 36: "#88c0d0", 37: "#e5e9f0",
	90: "#4c566a", 91: "#bf616a", 92: "#a3be8c", 93: "#ebcb8b",
	94: "#81a1c1", 95: "#b48ead", 96: "#88c0d0", 97: "#eceff4",
}

const (
	svgDefaultFill = "#d8dee9"
	svgLineHeight  = 19
	svgCharWidth   = 8
	svgPadding     = 10
)

type ansiSpan struct {
	text string
	fill string
	bold bool
}

// AnsiToSVG renders colored terminal output as a standalone SVG, one
// <text> element per line. Only SGR color and bold sequences are
// interpreted; anything else is dropped.
func AnsiToSVG(input string) string {
	lines := strings.Split(strings.TrimRight(input, "\n"), "\n")

	width := 0
	body := strings.Builder{}
	for i, line := range lines {
		spans, printable := parseAnsiLine(line)
		if printable > width {
			width = printable
		}
		y := svgPadding + (i+1)*svgLineHeight
		fmt.Fprintf(&body, `<text x="%d" y="%d" xml:space="preserve">`, svgPadding, y)
		for _, span := range spans {
			weight := ""
			if span.bold {
				weight = ` font-weight="bold"`
			}
			fmt.Fprintf(&body, `<tspan fill="%s"%s>%s</tspan>`, span.fill, weight, escapeXML(span.text))
		}
		body.WriteString("</text>\n")
	}

	svgWidth := width*svgCharWidth + 2*svgPadding
	svgHeight := len(lines)*svgLineHeight + 2*svgPadding
	return fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" font-family="monospace" font-size="14">
<rect width="100%%" height="100%%" fill="#2e3440"/>
%s</svg>`, svgWidth, svgHeight, body.String())
}

func parseAnsiLine(line string) ([]ansiSpan, int) {
	spans := []ansiSpan{}
	current := ansiSpan{fill: svgDefaultFill}
	printable := 0
	text := strings.Builder{}

	flush := func() {
		if text.Len() > 0 {
			current.text = text.String()
			spans = append(spans, current)
			text.Reset()
		}
	}

	for i := 0; i < len(line); i++ {
		if line[i] != 0x1b {
			text.WriteByte(line[i])
			// count runes, not bytes: skip UTF-8 continuation bytes
			if line[i]&0xc0 != 0x80 {
				printable++
			}
			continue
		}
		// CSI sequence: ESC [ params m
		end := strings.IndexByte(line[i:], 'm')
		if i+1 >= len(line) || line[i+1] != '[' || end < 0 {
			continue
		}
		flush()
		for _, param := range strings.Split(line[i+2:i+end], ";") {
			code := 0
			fmt.Sscanf(param, "%d", &code)
			switch {
			case code == 0:
				current = ansiSpan{fill: svgDefaultFill}
			case code == 1:
				current.bold = true
			default:
				if fill, ok := ansiPalette[code]; ok {
					current.fill = fill
				}
			}
		}
		i += end
	}
	flush()
	return spans, printable
}

func escapeXML(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}
