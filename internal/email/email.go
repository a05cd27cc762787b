package email

import (
	"fmt"
	"log/slog"
	"strings"
)

// SeenFlag is the IMAP system flag marking a message as read.
const SeenFlag = `\Seen`

// Record is the normalized form of one fetched message.
type Record struct {
	ID      string `json:"id" yaml:"id"`
	Date    string `json:"date" yaml:"date"`
	From    string `json:"from" yaml:"from"`
	To      string `json:"to" yaml:"to"`
	Subject string `json:"subject" yaml:"subject"`
	Body    string `json:"body" yaml:"body"`
	Read    bool   `json:"read" yaml:"read"`
}

// Decoder turns raw RFC 5322 bytes into Records.
type Decoder struct {
	// Extractors are tried in order until one yields a non-empty body.
	Extractors []BodyExtractor
	Logger     *slog.Logger
}

func NewDecoder(logger *slog.Logger) *Decoder {
	return &Decoder{Extractors: DefaultExtractors, Logger: logger}
}

// Decode builds a Record from the raw message and its flags. It never fails:
// a damaged header block keeps the fields that could be read, and body
// problems degrade to an empty or undecoded body.
func (d *Decoder) Decode(raw []byte, flags string) Record {
	header, msg, err := readHeader(raw)
	if err != nil {
		d.debug("malformed header block", "err", err)
	}

	rec := Record{
		Date:    DecodeHeader(header.Get("Date")),
		From:    DecodeHeader(header.Get("From")),
		To:      DecodeHeader(header.Get("To")),
		Subject: DecodeHeader(header.Get("Subject")),
		Body:    d.extractBody(msg),
		Read:    IsSeen(flags),
	}
	rec.ID = StableID(rec.Date, rec.From, rec.Subject)

	return rec
}

func (d *Decoder) extractBody(raw []byte) string {
	extractors := d.Extractors
	if extractors == nil {
		extractors = DefaultExtractors
	}

	for _, extractor := range extractors {
		body, err := extractor.ExtractBody(raw)
		if err != nil {
			d.debug("body extractor failed", "extractor", fmt.Sprintf("%T", extractor), "err", err)
			continue
		}
		if body != "" {
			return body
		}
	}
	return ""
}

func (d *Decoder) debug(msg string, args ...any) {
	if d.Logger != nil {
		d.Logger.Debug(msg, args...)
	}
}

// IsSeen reports whether a flags representation carries the seen marker.
// Flags may come as text or as the raw bytes of a FETCH response.
func IsSeen[F ~string | ~[]byte](flags F) bool {
	return strings.Contains(strings.ToLower(string(flags)), strings.ToLower(SeenFlag))
}
