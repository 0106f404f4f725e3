// Package codec implements RFC 8785 canonical JSON, SHA-256 hashing and
// secp256k1 ECDSA sign/verify with low-S normalization, as required by
// spec.md §4.1. No JCS/canonical-JSON library appears anywhere in the
// retrieved example corpus (checked across all five example repos' go.mod
// files and other_examples/manifests), so canonicalization is implemented
// directly over the standard library — see DESIGN.md's C1 entry.
package codec

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"
	"unicode/utf16"
)

// CanonicalJSON encodes value as RFC 8785 canonical JSON: object keys
// sorted lexicographically by UTF-16 code unit, numbers in shortest
// round-trip form, no insignificant whitespace.
func CanonicalJSON(value any) ([]byte, error) {
	// Round-trip through encoding/json first so that Go structs (with
	// their json tags) and json.Number-free plain values are normalized
	// into the generic map/slice/scalar shape canonicalize() expects.
	raw, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidForm, err)
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return nil, fmt.Errorf("%w: %v", errInvalidForm, err)
	}
	var buf bytes.Buffer
	if err := canonicalize(&buf, generic); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func canonicalize(buf *bytes.Buffer, v any) error {
	switch t := v.(type) {
	case nil:
		buf.WriteString("null")
	case bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case json.Number:
		return canonicalizeNumber(buf, t)
	case string:
		canonicalizeString(buf, t)
	case []any:
		buf.WriteByte('[')
		for i, el := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := canonicalize(buf, el); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Slice(keys, func(i, j int) bool { return utf16Less(keys[i], keys[j]) })
		buf.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			canonicalizeString(buf, k)
			buf.WriteByte(':')
			if err := canonicalize(buf, t[k]); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("%w: unsupported type %T", errInvalidForm, v)
	}
	return nil
}

// utf16Less compares two strings by UTF-16 code unit, per RFC 8785 §3.2.3.
func utf16Less(a, b string) bool {
	ua := utf16.Encode([]rune(a))
	ub := utf16.Encode([]rune(b))
	for i := 0; i < len(ua) && i < len(ub); i++ {
		if ua[i] != ub[i] {
			return ua[i] < ub[i]
		}
	}
	return len(ua) < len(ub)
}

func canonicalizeString(buf *bytes.Buffer, s string) {
	// encoding/json already produces the minimal, RFC-8785-compatible
	// escaping for strings (UTF-8, \" \\ and control characters escaped);
	// HTML-escaping is disabled since canonical JSON has no HTML context.
	var sb strings.Builder
	enc := json.NewEncoder(&sb)
	enc.SetEscapeHTML(false)
	_ = enc.Encode(s)
	out := sb.String()
	// Encoder.Encode appends a trailing newline; strip it.
	buf.WriteString(strings.TrimSuffix(out, "\n"))
}

func canonicalizeNumber(buf *bytes.Buffer, n json.Number) error {
	// Integers round-trip exactly through their decimal text.
	if i, err := n.Int64(); err == nil {
		buf.WriteString(strconv.FormatInt(i, 10))
		return nil
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("%w: %v", errInvalidForm, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("%w: non-finite number", errInvalidForm)
	}
	// Shortest round-trip digits in the ECMAScript number-to-string layout,
	// RFC 8785 §3.2.2.3: plain decimal for magnitudes in [1e-6, 1e21),
	// otherwise exponent form with an unpadded exponent (1e-7, 1e+21).
	if abs := math.Abs(f); f == 0 || (abs >= 1e-6 && abs < 1e21) {
		buf.WriteString(strconv.FormatFloat(f, 'f', -1, 64))
		return nil
	}
	mant, exp, _ := strings.Cut(strconv.FormatFloat(f, 'e', -1, 64), "e")
	buf.WriteString(mant + "e" + exp[:1] + strings.TrimLeft(exp[1:], "0"))
	return nil
}
