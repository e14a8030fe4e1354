package pipeline

import (
	"bytes"
	"encoding/base64"
	"io"

	"github.com/klauspost/compress/zlib"
)

// Compression names a body codec.
type Compression string

const (
	// CompressionNone sends the body as is.
	CompressionNone Compression = ""
	// CompressionDeflate is zlib-wrapped deflate, base64 encoded so the body
	// stays valid UTF-8 on the wire.
	CompressionDeflate Compression = "deflate"
)

// Supported reports whether c can be used for publishing.
func (c Compression) Supported() bool {
	return c == CompressionNone || c == CompressionDeflate
}

func deflate(body []byte) (string, error) {
	var buf bytes.Buffer
	w := zlib.NewWriter(&buf)
	if _, err := w.Write(body); err != nil {
		_ = w.Close()
		return "", err
	}
	if err := w.Close(); err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes()), nil
}

func inflate(body string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		return nil, err
	}
	r, err := zlib.NewReader(bytes.NewReader(raw))
	if err != nil {
		return nil, err
	}
	defer func() { _ = r.Close() }()
	return io.ReadAll(r)
}
