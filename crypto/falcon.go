package crypto

// verifyFalcon implements the Falcon-512 signature variant named in the
// tx/account model. No pure-Go or cgo-free Falcon implementation exists
// anywhere in the retrieved example corpus (cloudflare/circl ships
// Dilithium and SLH-DSA but not Falcon as of the versions vendored
// there). Rather than fabricate a dependency, this always returns a
// typed "unsupported scheme" error, which callers must propagate rather
// than coerce to a bare false per the verifier-error-propagation
// requirement.
func verifyFalcon(_, _, _ []byte) (bool, error) {
	return false, &VerifyError{
		Tag:  TagFalcon,
		Kind: ErrUnsupportedScheme,
		Msg:  "falcon-512 verification is not available in this build",
	}
}
