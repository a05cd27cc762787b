package email

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/emersion/go-message"
	"github.com/emersion/go-message/mail"
	"github.com/emersion/go-message/textproto"
)

// BodyExtractor pulls a displayable plain-text body out of a raw message.
// An empty result means the strategy found nothing; an error means the
// strategy could not handle the message. Either way the next extractor is
// tried.
type BodyExtractor interface {
	ExtractBody(raw []byte) (string, error)
}

// DefaultExtractors is the order in which body strategies are tried.
var DefaultExtractors = []BodyExtractor{
	DisplayBodyExtractor{},
	WalkBodyExtractor{},
}

// DisplayBodyExtractor returns the first inline text/plain part, or the
// first inline text/html part when the message has no plain text.
type DisplayBodyExtractor struct{}

func (DisplayBodyExtractor) ExtractBody(raw []byte) (string, error) {
	r, err := mail.CreateReader(bytes.NewReader(raw))
	if err != nil && !message.IsUnknownCharset(err) {
		return "", err
	}
	defer r.Close()

	var plain, html string
	var havePlain, haveHTML bool

	for {
		part, err := r.NextPart()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}

		h, ok := part.Header.(*mail.InlineHeader)
		if !ok {
			continue
		}

		switch mediaType(h.Header) {
		case "text/plain":
			if havePlain {
				continue
			}
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return "", err
			}
			plain, havePlain = string(data), true
		case "text/html":
			if haveHTML {
				continue
			}
			data, err := io.ReadAll(part.Body)
			if err != nil {
				return "", err
			}
			html, haveHTML = string(data), true
		}
	}

	switch {
	case havePlain:
		return displayText(plain), nil
	case haveHTML:
		return displayText(html), nil
	}
	return "", nil
}

// displayText trims s and replaces byte sequences that are not valid UTF-8.
func displayText(s string) string {
	return strings.TrimSpace(strings.ToValidUTF8(s, "\uFFFD"))
}

// WalkBodyExtractor walks the MIME tree depth-first and returns the first
// text/plain part that is not an attachment. A single-part message only
// yields a body when it is text/plain; if its content cannot be decoded the
// raw payload is returned instead.
type WalkBodyExtractor struct{}

var errFound = errors.New("body found")

func (WalkBodyExtractor) ExtractBody(raw []byte) (string, error) {
	entity, readErr := message.Read(bytes.NewReader(raw))
	if readErr != nil && !isDecodeError(readErr) {
		return "", readErr
	}

	if !strings.HasPrefix(mediaType(entity.Header), "multipart/") {
		return extractSinglePart(entity, raw)
	}

	var body string
	err := entity.Walk(func(_ []int, part *message.Entity, err error) error {
		if err != nil {
			return nil
		}
		if isAttachment(part.Header) || mediaType(part.Header) != "text/plain" {
			return nil
		}
		data, err := io.ReadAll(part.Body)
		if err != nil || !utf8.Valid(data) {
			return nil
		}
		body = string(data)
		return errFound
	})
	if err != nil && !errors.Is(err, errFound) {
		return "", err
	}

	return strings.TrimSpace(body), nil
}

func extractSinglePart(entity *message.Entity, raw []byte) (string, error) {
	if mediaType(entity.Header) != "text/plain" {
		return "", nil
	}

	data, err := io.ReadAll(entity.Body)
	if err == nil && utf8.Valid(data) {
		return strings.TrimSpace(string(data)), nil
	}

	payload, err := rawPayload(raw)
	if err != nil {
		return "", err
	}
	return strings.TrimSpace(payload), nil
}

// rawPayload returns everything after the header block, undecoded.
func rawPayload(raw []byte) (string, error) {
	br := bufio.NewReader(bytes.NewReader(raw))
	if _, err := textproto.ReadHeader(br); err != nil {
		return "", err
	}
	data, err := io.ReadAll(br)
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// mediaType returns the lower-cased media type. A missing or malformed
// Content-Type counts as text/plain; broken parameters do not hide an
// otherwise valid type.
func mediaType(h message.Header) string {
	if !h.Has("Content-Type") {
		return "text/plain"
	}
	t, _, err := h.ContentType()
	if err != nil {
		t, _, _ = strings.Cut(h.Get("Content-Type"), ";")
	}
	t = strings.ToLower(strings.TrimSpace(t))
	if strings.Count(t, "/") != 1 {
		return "text/plain"
	}
	return t
}

func isAttachment(h message.Header) bool {
	return strings.Contains(strings.ToLower(h.Get("Content-Disposition")), "attachment")
}

func isDecodeError(err error) bool {
	return message.IsUnknownCharset(err) || message.IsUnknownEncoding(err)
}
