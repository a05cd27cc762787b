package email

import (
	"mime"
	"strings"

	"github.com/emersion/go-message/charset"
)

var wordDecoder = &mime.WordDecoder{CharsetReader: charset.Reader}

var unfolder = strings.NewReplacer("\r\n", "", "\n", "")

// DecodeHeader decodes the RFC 2047 encoded-words in a header value. Each
// word is decoded with its own charset and the results are concatenated in
// order. Words that cannot be decoded are kept as they appear on the wire.
func DecodeHeader(raw string) string {
	if raw == "" {
		return ""
	}

	rest := unfolder.Replace(raw)
	var b strings.Builder
	prevWord := false

	for rest != "" {
		start, end := nextEncodedWord(rest)
		if start < 0 {
			b.WriteString(rest)
			break
		}

		between := rest[:start]
		word := rest[start:end]
		rest = rest[end:]

		decoded, err := wordDecoder.Decode(word)
		if err != nil {
			b.WriteString(between)
			b.WriteString(word)
			prevWord = false
			continue
		}

		// Linear whitespace between two adjacent encoded-words is not displayed.
		if !prevWord || strings.TrimLeft(between, " \t") != "" {
			b.WriteString(between)
		}
		b.WriteString(decoded)
		prevWord = true
	}

	return b.String()
}

// nextEncodedWord locates the first "=?charset?enc?text?=" token in s and
// returns its bounds, or -1 when there is none.
func nextEncodedWord(s string) (int, int) {
	offset := 0
	for {
		start := strings.Index(s[offset:], "=?")
		if start < 0 {
			return -1, -1
		}
		start += offset

		if end := encodedWordEnd(s, start); end > 0 {
			return start, end
		}
		offset = start + 2
	}
}

func encodedWordEnd(s string, start int) int {
	// Three '?' separate charset, encoding and text; the word closes on "?=".
	pos := start + 2
	for field := 0; field < 2; field++ {
		i := strings.IndexByte(s[pos:], '?')
		if i <= 0 {
			return -1
		}
		if strings.ContainsAny(s[pos:pos+i], " \t") {
			return -1
		}
		pos += i + 1
	}

	i := strings.Index(s[pos:], "?=")
	if i < 0 || strings.ContainsAny(s[pos:pos+i], " \t") {
		return -1
	}
	return pos + i + 2
}
