package models

import (
	"bytes"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"strings"
)

const keySuffix = ".json"

// KeyFor returns the storage key of an order
func KeyFor(orderID string) string {
	return orderID + keySuffix
}

// OrderIDFromKey is the inverse of KeyFor. ok is false for keys that are not order blobs.
func OrderIDFromKey(key string) (string, bool) {
	if i := strings.LastIndex(key, "/"); i >= 0 {
		key = key[i+1:]
	}
	id, ok := strings.CutSuffix(key, keySuffix)
	if !ok || id == "" {
		return "", false
	}
	return id, true
}

// Canonical serializes a record the way it is stored: two-space indent,
// trailing newline, HTML characters left unescaped.
func Canonical(r *OrderRecord) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(r); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// ContentHash is the lowercase hex MD5 of data
func ContentHash(data []byte) string {
	sum := md5.Sum(data)
	return hex.EncodeToString(sum[:])
}
