package dispatch

import "errors"

var (
	// ErrInputDecode indicates a payload that is not hex or not UTF-8 text.
	ErrInputDecode = errors.New("invalid input encoding")
	// ErrPayloadParse indicates decoded text that does not match an accepted request shape.
	ErrPayloadParse = errors.New("invalid input format")
	// ErrContentDecode indicates notarize content that is not valid base64.
	ErrContentDecode = errors.New("invalid base64 content")

	errMissingService = errors.New("notary service dependency required")
)
