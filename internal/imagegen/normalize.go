package imagegen

import "strings"

const dataURLScheme = "data:"

// StripDataURL splits a data URL of the form "data:<mime>;base64,<payload>"
// into its payload and media type. Strings without the wrapper are returned
// unchanged with ok=false.
func StripDataURL(s string) (payload, mimeType string, ok bool) {
	if !strings.HasPrefix(s, dataURLScheme) {
		return s, "", false
	}
	rest := s[len(dataURLScheme):]
	meta, payload, found := strings.Cut(rest, ",")
	if !found {
		return s, "", false
	}
	mimeType, encoding, _ := strings.Cut(meta, ";")
	if !strings.EqualFold(strings.TrimSpace(encoding), "base64") {
		return s, "", false
	}
	return payload, strings.TrimSpace(mimeType), true
}

// BuildDataURL wraps a bare base64 payload into a self-describing data URL.
// BuildDataURL(StripDataURL(s)) reconstructs s exactly for well-formed input.
func BuildDataURL(mimeType, payload string) string {
	return dataURLScheme + mimeType + ";base64," + payload
}

// PadBase64 appends the '=' characters required to make the length of a
// base64 string a multiple of four. Already-padded input passes through.
func PadBase64(s string) string {
	if rem := len(s) % 4; rem != 0 {
		return s + strings.Repeat("=", 4-rem)
	}
	return s
}

// NormalizeImagePayload converts an arbitrary image payload string into bare,
// canonically padded base64. A data-URL wrapper is stripped when present and
// its declared media type returned; otherwise the fallback mime is kept.
func NormalizeImagePayload(s, fallbackMIME string) (string, string) {
	payload, mimeType, ok := StripDataURL(strings.TrimSpace(s))
	if !ok {
		mimeType = fallbackMIME
	}
	if mimeType == "" {
		mimeType = fallbackMIME
	}
	return PadBase64(strings.TrimSpace(payload)), mimeType
}
