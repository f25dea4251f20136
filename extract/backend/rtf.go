package backend

import (
	"bytes"
	"errors"
	"strconv"
	"strings"

	"golang.org/x/text/encoding/charmap"
)

var rtfMagic = []byte(`{\rtf`)

// Destinations whose content is never body text.
var rtfSkipDestinations = map[string]bool{
	"fonttbl": true, "colortbl": true, "stylesheet": true, "info": true,
	"pict": true, "object": true, "header": true, "footer": true,
	"headerl": true, "headerr": true, "footerl": true, "footerr": true,
	"listtable": true, "listoverridetable": true, "rsidtbl": true,
	"xmlnstbl": true, "filetbl": true, "revtbl": true, "themedata": true,
	"colorschememapping": true, "datastore": true, "latentstyles": true,
	"generator": true, "mmathPr": true, "fldinst": true,
}

// ANSI code pages an RTF \ansicpg word may select.
var rtfCodePages = map[int]*charmap.Charmap{
	437:  charmap.CodePage437,
	850:  charmap.CodePage850,
	1250: charmap.Windows1250,
	1251: charmap.Windows1251,
	1252: charmap.Windows1252,
	1253: charmap.Windows1253,
	1254: charmap.Windows1254,
	1255: charmap.Windows1255,
	1256: charmap.Windows1256,
	1257: charmap.Windows1257,
	1258: charmap.Windows1258,
}

type rtfGroup struct {
	skip bool
	uc   int
}

// rtfText returns the body text of an RTF document. Control words are
// dropped, \par and \line become newlines, hex escapes are decoded with the
// document's ANSI code page and \u escapes as Unicode.
func rtfText(data []byte) (string, error) {
	if !bytes.HasPrefix(bytes.TrimLeft(data, " \t\r\n"), rtfMagic) {
		return "", errors.New("missing {\\rtf header")
	}

	var out strings.Builder
	var stack []rtfGroup
	cp := charmap.Windows1252
	cur := rtfGroup{uc: 1}
	// fallback characters still to drop after a \u escape
	pending := 0
	emit := func(r rune) {
		if pending > 0 {
			pending--
			return
		}
		if !cur.skip {
			out.WriteRune(r)
		}
	}

	for i := 0; i < len(data); i++ {
		c := data[i]
		switch c {
		case '{':
			stack = append(stack, cur)
			pending = 0
		case '}':
			if len(stack) > 0 {
				cur = stack[len(stack)-1]
				stack = stack[:len(stack)-1]
			}
			pending = 0
		case '\r', '\n':
		case '\\':
			if i+1 >= len(data) {
				continue
			}
			i++
			c = data[i]
			switch {
			case isASCIILetter(c):
				start := i
				for i < len(data) && isASCIILetter(data[i]) {
					i++
				}
				word := string(data[start:i])
				param, hasParam := 0, false
				pstart := i
				if i < len(data) && (data[i] == '-' || isDigit(data[i])) {
					i++
					for i < len(data) && isDigit(data[i]) {
						i++
					}
					param, _ = strconv.Atoi(string(data[pstart:i]))
					hasParam = true
				}
				if i >= len(data) || data[i] != ' ' {
					i--
				}
				switch word {
				case "par", "line", "row", "sect", "page":
					emit('\n')
				case "tab", "cell":
					emit('\t')
				case "emdash", "endash":
					emit('-')
				case "lquote", "rquote":
					emit('\'')
				case "ldblquote", "rdblquote":
					emit('"')
				case "bullet":
					emit('•')
				case "u":
					if hasParam {
						if param < 0 {
							param += 65536
						}
						emit(rune(param))
						pending = cur.uc
					}
				case "uc":
					if hasParam {
						cur.uc = param
					}
				case "ansicpg":
					if m, ok := rtfCodePages[param]; ok {
						cp = m
					}
				default:
					if rtfSkipDestinations[word] {
						cur.skip = true
					}
				}
			case c == '*':
				cur.skip = true
			case c == '\'':
				if i+2 < len(data) {
					if b, err := strconv.ParseUint(string(data[i+1:i+3]), 16, 8); err == nil {
						emit(cp.DecodeByte(byte(b)))
						i += 2
					}
				}
			case c == '\\' || c == '{' || c == '}':
				emit(rune(c))
			case c == '~':
				emit(' ')
			case c == '_':
				emit('-')
			case c == '\r' || c == '\n':
				emit('\n')
			}
		default:
			if c < 0x80 {
				emit(rune(c))
			} else {
				emit(cp.DecodeByte(c))
			}
		}
	}
	return out.String(), nil
}

func isASCIILetter(c byte) bool {
	return (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z')
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}
