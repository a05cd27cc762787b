package email

import (
	"strings"
	"testing"

	"github.com/emersion/go-message"
)

func rawMessage(lines ...string) []byte {
	return []byte(strings.Join(lines, "\r\n"))
}

var headerLines = []string{
	"From: alice@example.com",
	"To: bob@example.com",
	"Subject: Report",
	"Date: Mon, 1 Jan 2024 10:00:00 +0000",
	"MIME-Version: 1.0",
}

func withHeaders(lines ...string) []byte {
	return rawMessage(append(append([]string{}, headerLines...), lines...)...)
}

var (
	attachmentFirst = withHeaders(
		`Content-Type: multipart/mixed; boundary="XYZ"`,
		"",
		"--XYZ",
		`Content-Type: text/plain; name="notes.txt"`,
		`Content-Disposition: attachment; filename="notes.txt"`,
		"",
		"attached notes",
		"--XYZ",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"  Hello body  ",
		"--XYZ--",
		"",
	)

	attachmentLast = withHeaders(
		`Content-Type: multipart/mixed; boundary="XYZ"`,
		"",
		"--XYZ",
		"Content-Type: text/plain; charset=utf-8",
		"",
		"Hello body",
		"--XYZ",
		`Content-Type: text/plain; name="notes.txt"`,
		`Content-Disposition: attachment; filename="notes.txt"`,
		"",
		"attached notes",
		"--XYZ--",
		"",
	)

	twoPlainParts = withHeaders(
		`Content-Type: multipart/mixed; boundary="XYZ"`,
		"",
		"--XYZ",
		"Content-Type: text/plain",
		"",
		"first",
		"--XYZ",
		"Content-Type: text/plain",
		"",
		"second",
		"--XYZ--",
		"",
	)

	nestedAlternative = withHeaders(
		`Content-Type: multipart/mixed; boundary="outer"`,
		"",
		"--outer",
		`Content-Type: multipart/alternative; boundary="inner"`,
		"",
		"--inner",
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Hello <b>html</b></p>",
		"--inner",
		"Content-Type: text/plain; charset=iso-8859-1",
		"Content-Transfer-Encoding: quoted-printable",
		"",
		"Caf=E9 is open",
		"--inner--",
		"--outer",
		"Content-Type: application/pdf",
		`Content-Disposition: attachment; filename="menu.pdf"`,
		"Content-Transfer-Encoding: base64",
		"",
		"JVBERi0xLjQK",
		"--outer--",
		"",
	)

	htmlOnly = withHeaders(
		"Content-Type: text/html; charset=utf-8",
		"",
		"<p>Only html</p>",
	)

	plainSinglePart = withHeaders(
		"Content-Type: text/plain; charset=utf-8",
		"",
		"",
		"Just text.",
		"",
	)

	invalidUTF8 = withHeaders(
		"Content-Type: text/plain; charset=utf-8",
		"Content-Transfer-Encoding: base64",
		"",
		"/w==",
		"",
	)

	attachmentsOnly = withHeaders(
		`Content-Type: multipart/mixed; boundary="XYZ"`,
		"",
		"--XYZ",
		"Content-Type: application/octet-stream",
		`Content-Disposition: attachment; filename="blob.bin"`,
		"",
		"xx",
		"--XYZ--",
		"",
	)
)

func TestWalkBodyExtractor(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"attachment before plain part", attachmentFirst, "Hello body"},
		{"attachment after plain part", attachmentLast, "Hello body"},
		{"first plain part wins", twoPlainParts, "first"},
		{"nested alternative with charset", nestedAlternative, "Café is open"},
		{"single part html yields nothing", htmlOnly, ""},
		{"single part plain", plainSinglePart, "Just text."},
		{"undecodable single part falls back to payload", invalidUTF8, "/w=="},
		{"only attachments", attachmentsOnly, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := WalkBodyExtractor{}.ExtractBody(tt.raw)
			if err != nil {
				t.Fatalf("extract body: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDisplayBodyExtractor(t *testing.T) {
	tests := []struct {
		name string
		raw  []byte
		want string
	}{
		{"attachment before plain part", attachmentFirst, "Hello body"},
		{"attachment after plain part", attachmentLast, "Hello body"},
		{"first plain part wins", twoPlainParts, "first"},
		{"plain preferred over html", nestedAlternative, "Café is open"},
		{"html when no plain part", htmlOnly, "<p>Only html</p>"},
		{"single part plain", plainSinglePart, "Just text."},
		{"only attachments", attachmentsOnly, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := DisplayBodyExtractor{}.ExtractBody(tt.raw)
			if err != nil {
				t.Fatalf("extract body: %v", err)
			}
			if got != tt.want {
				t.Fatalf("got %q, want %q", got, tt.want)
			}
		})
	}
}

type stubExtractor struct {
	body  string
	err   error
	calls int
}

func (s *stubExtractor) ExtractBody([]byte) (string, error) {
	s.calls++
	return s.body, s.err
}

func TestDecoderTriesExtractorsInOrder(t *testing.T) {
	failing := &stubExtractor{err: errTest}
	empty := &stubExtractor{}
	found := &stubExtractor{body: "from fallback"}
	unused := &stubExtractor{body: "never"}

	d := &Decoder{Extractors: []BodyExtractor{failing, empty, found, unused}}
	rec := d.Decode(plainSinglePart, "")
	if rec.Body != "from fallback" {
		t.Fatalf("unexpected body %q", rec.Body)
	}
	if failing.calls != 1 || empty.calls != 1 || found.calls != 1 || unused.calls != 0 {
		t.Fatalf("unexpected call counts: %d %d %d %d", failing.calls, empty.calls, found.calls, unused.calls)
	}
}

func TestDecoderWithoutAnyBody(t *testing.T) {
	d := &Decoder{Extractors: []BodyExtractor{&stubExtractor{err: errTest}}}
	rec := d.Decode(plainSinglePart, "")
	if rec.Body != "" {
		t.Fatalf("expected empty body, got %q", rec.Body)
	}
}

func TestMediaType(t *testing.T) {
	tests := []struct {
		value string
		want  string
	}{
		{"", "text/plain"},
		{"Text/HTML; charset=utf-8", "text/html"},
		{"garbage", "text/plain"},
		{"text/html; charset", "text/html"},
		{"text/plain/extra", "text/plain"},
		{"multipart/mixed; boundary=\"XYZ\"", "multipart/mixed"},
	}

	for _, tt := range tests {
		var h message.Header
		if tt.value != "" {
			h.Set("Content-Type", tt.value)
		}
		if got := mediaType(h); got != tt.want {
			t.Fatalf("mediaType(%q) = %q, want %q", tt.value, got, tt.want)
		}
	}
}

func TestMalformedContentTypeReadsAsPlainText(t *testing.T) {
	raw := withHeaders(
		"Content-Type: garbage",
		"",
		"  still readable  ",
	)

	for _, extractor := range DefaultExtractors {
		body, err := extractor.ExtractBody(raw)
		if err != nil {
			t.Fatalf("%T: %v", extractor, err)
		}
		if body != "still readable" {
			t.Fatalf("%T: unexpected body %q", extractor, body)
		}
	}
}
