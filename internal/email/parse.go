package email

import (
	"bufio"
	"bytes"
	"errors"
	"io"

	"github.com/emersion/go-message/textproto"
)

var envelopePrefix = []byte("From ")

// readHeader parses the header block of raw and returns it together with
// the message to hand to body extractors. Damaged header blocks are
// repaired rather than rejected: mbox "From " envelope lines and leading
// continuation lines are dropped, and the first line that is not a header
// field ends the header block and starts the body. A header that still
// fails to parse yields the fields read before the bad line, plus the error.
func readHeader(raw []byte) (textproto.Header, []byte, error) {
	msg := repairHeader(raw)

	header, err := textproto.ReadHeader(bufio.NewReader(bytes.NewReader(msg)))
	if err != nil && !errors.Is(err, io.EOF) {
		return header, msg, err
	}
	return header, msg, nil
}

// repairHeader returns raw unchanged when its header block is well formed,
// and a rebuilt message otherwise.
func repairHeader(raw []byte) []byte {
	var header bytes.Buffer
	repaired := false
	haveField := false

	for rest := raw; len(rest) > 0; {
		line, next := cutLine(rest)
		content := bytes.TrimRight(line, "\r\n")

		switch {
		case len(content) == 0:
			if !repaired {
				return raw
			}
			return joinBody(&header, next)
		case bytes.HasPrefix(content, envelopePrefix):
			repaired = true
		case content[0] == ' ' || content[0] == '\t':
			if haveField {
				header.Write(line)
			} else {
				repaired = true
			}
		case isFieldLine(content):
			header.Write(line)
			haveField = true
		default:
			return joinBody(&header, rest)
		}
		rest = next
	}

	if !repaired {
		return raw
	}
	return joinBody(&header, nil)
}

// joinBody terminates the header block with an empty line and appends body.
func joinBody(header *bytes.Buffer, body []byte) []byte {
	if header.Len() > 0 && !bytes.HasSuffix(header.Bytes(), []byte("\n")) {
		header.WriteString("\r\n")
	}
	header.WriteString("\r\n")
	header.Write(body)
	return header.Bytes()
}

// cutLine splits b after the first newline.
func cutLine(b []byte) (line, rest []byte) {
	if i := bytes.IndexByte(b, '\n'); i >= 0 {
		return b[:i+1], b[i+1:]
	}
	return b, nil
}

// isFieldLine reports whether line starts with a field name and a colon.
func isFieldLine(line []byte) bool {
	i := bytes.IndexByte(line, ':')
	if i < 0 {
		return false
	}
	for _, c := range bytes.TrimRight(line[:i], " \t") {
		if c < 33 || c > 126 {
			return false
		}
	}
	return true
}
