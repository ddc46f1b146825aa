package gateway

import (
	"crypto/md5"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"net/url"
	"strings"
)

var ErrInvalidSignature = errors.New("invalid gateway signature")

// Field is one ordered form field. The gateway signs fields in the order
// they appear in the form or notification body, so a map cannot carry them.
type Field struct {
	Name  string
	Value string
}

// gateway urlencoding: spaces become '+', everything else per query escaping.
func encode(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "%20", "+")
}

// Sign computes the hex MD5 over the ordered non-empty fields plus the
// merchant passphrase.
func Sign(fields []Field, passphrase string) string {
	var b strings.Builder
	for _, f := range fields {
		if f.Name == "signature" || f.Value == "" {
			continue
		}
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString(f.Name)
		b.WriteByte('=')
		b.WriteString(encode(f.Value))
	}
	if passphrase != "" {
		if b.Len() > 0 {
			b.WriteByte('&')
		}
		b.WriteString("passphrase=")
		b.WriteString(encode(passphrase))
	}
	sum := md5.Sum([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// Verify recomputes the signature over the received field order and fails
// closed on any mismatch.
func Verify(fields []Field, passphrase string) error {
	var received string
	for _, f := range fields {
		if f.Name == "signature" {
			received = f.Value
		}
	}
	if received == "" {
		return ErrInvalidSignature
	}
	expected := Sign(fields, passphrase)
	if subtle.ConstantTimeCompare([]byte(received), []byte(expected)) != 1 {
		return ErrInvalidSignature
	}
	return nil
}

// ParseBody decodes a form-encoded notification body preserving field
// order, which url.Values would lose.
func ParseBody(body string) ([]Field, error) {
	var fields []Field
	for _, pair := range strings.Split(body, "&") {
		if pair == "" {
			continue
		}
		name, value, _ := strings.Cut(pair, "=")
		decodedName, err := url.QueryUnescape(name)
		if err != nil {
			return nil, err
		}
		decodedValue, err := url.QueryUnescape(value)
		if err != nil {
			return nil, err
		}
		fields = append(fields, Field{Name: decodedName, Value: decodedValue})
	}
	return fields, nil
}

// Get returns the first value for a field name.
func Get(fields []Field, name string) string {
	for _, f := range fields {
		if f.Name == name {
			return f.Value
		}
	}
	return ""
}
