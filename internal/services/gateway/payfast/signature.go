package payfast

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"net/url"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"quote-booking/internal/status"
)

const (
	SignatureField  = "signature"
	passphraseField = "passphrase"
)

var keyPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// Encode percent-encodes a value the way the gateway recomputes it:
// spaces become %20, never '+'.
func Encode(s string) string {
	return strings.ReplaceAll(url.QueryEscape(s), "+", "%20")
}

// Canonicalize renders params as key=value pairs sorted by key byte order
// and joined with '&'. The signature field is skipped.
func Canonicalize(params map[string]string) (string, error) {
	keys := make([]string, 0, len(params))
	for k, v := range params {
		if k == SignatureField {
			continue
		}
		if k == passphraseField {
			return "", &status.SigningError{Key: k, Reason: "reserved parameter name"}
		}
		if !keyPattern.MatchString(k) {
			return "", &status.SigningError{Key: k, Reason: "name must match [a-z0-9_]+"}
		}
		if !utf8.ValidString(v) {
			return "", &status.SigningError{Key: k, Reason: "value is not valid UTF-8"}
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(Encode(params[k]))
	}
	return b.String(), nil
}

// Sign computes the gateway signature over params and the optional passphrase.
func Sign(params map[string]string, passphrase string) (string, error) {
	canonical, err := Canonicalize(params)
	if err != nil {
		return "", err
	}
	return digest(canonical, passphrase), nil
}

// SignValues signs form-style parameters. Every key must carry exactly one value.
func SignValues(values url.Values, passphrase string) (string, error) {
	params := make(map[string]string, len(values))
	for k, vs := range values {
		if k == SignatureField {
			continue
		}
		if len(vs) != 1 {
			return "", &status.SigningError{Key: k, Reason: "expected exactly one value"}
		}
		params[k] = vs[0]
	}
	return Sign(params, passphrase)
}

// Verify reports whether signature matches the one computed for values.
func Verify(values url.Values, passphrase string) (bool, error) {
	want, err := SignValues(values, passphrase)
	if err != nil {
		return false, err
	}
	got := strings.ToLower(values.Get(SignatureField))
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1, nil
}

func digest(canonical, passphrase string) string {
	if passphrase != "" {
		if canonical != "" {
			canonical += "&"
		}
		canonical += passphraseField + "=" + Encode(passphrase)
	}
	sum := md5.Sum([]byte(canonical))
	return hex.EncodeToString(sum[:])
}
