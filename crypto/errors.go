package crypto

import "fmt"

// VerifyKind distinguishes the reasons a Verify call can fail, so callers
// never have to collapse "signature did not verify" and "this build
// cannot check this scheme" into the same boolean false.
type VerifyKind string

const (
	ErrSignatureInvalid VerifyKind = "SIGNATURE_INVALID"
	ErrMalformedInput   VerifyKind = "MALFORMED_INPUT"
	ErrUnsupportedScheme VerifyKind = "UNSUPPORTED_SCHEME"
)

// VerifyError is always returned instead of a silent false on any
// verification failure, including a plain cryptographic rejection
// (Kind ErrSignatureInvalid).
type VerifyError struct {
	Tag  Tag
	Kind VerifyKind
	Msg  string
	Err  error
}

func (e *VerifyError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("crypto: %s (%s, %s): %v", e.Msg, e.Tag, e.Kind, e.Err)
	}
	return fmt.Sprintf("crypto: %s (%s, %s)", e.Msg, e.Tag, e.Kind)
}

func (e *VerifyError) Unwrap() error { return e.Err }
