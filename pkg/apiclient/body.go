package apiclient

import (
	"bytes"
	"encoding/json"
	"io"
	"strings"
)

type (
	// Body is the payload of a request. It is one of NoBody, RawBody,
	// JSONBody or BinaryBody.
	Body interface {
		// encode returns the reader to send and the content type to set. An
		// empty content type leaves the header to the caller or transport.
		encode() (io.Reader, string, error)
	}

	NoBody struct{}

	// RawBody is sent as is
	RawBody struct {
		Data        string
		ContentType string
	}

	// JSONBody is serialized to JSON
	JSONBody struct {
		Value any
	}

	// BinaryBody is streamed unmodified. ContentType is passed through as
	// given, for multipart data it must carry the boundary.
	BinaryBody struct {
		Reader      io.Reader
		ContentType string
	}
)

const contentTypeJSON = "application/json"

// BodyOf classifies v by its shape: nil yields NoBody, strings RawBody,
// bytes and readers BinaryBody, everything else JSONBody. A Body is
// returned unchanged.
func BodyOf(v any) Body {
	switch val := v.(type) {
	case nil:
		return NoBody{}
	case Body:
		return val
	case string:
		return RawBody{Data: val}
	case []byte:
		return BinaryBody{Reader: bytes.NewReader(val)}
	case io.Reader:
		return BinaryBody{Reader: val}
	default:
		return JSONBody{Value: val}
	}
}

func (NoBody) encode() (io.Reader, string, error) {
	return nil, "", nil
}

func (b RawBody) encode() (io.Reader, string, error) {
	return strings.NewReader(b.Data), b.ContentType, nil
}

func (b JSONBody) encode() (io.Reader, string, error) {
	data, err := json.Marshal(b.Value)
	if err != nil {
		return nil, "", err
	}
	return bytes.NewReader(data), contentTypeJSON, nil
}

func (b BinaryBody) encode() (io.Reader, string, error) {
	return b.Reader, b.ContentType, nil
}
