// Package refid generates human-facing reference numbers.
package refid

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strconv"
	"time"
)

// Reference prefixes.
const (
	PrefixClaim   = "CLM"
	PrefixRenewal = "RNW"
	PrefixPolicy  = "POL"
)

const timestampLayout = "20060102150405"

// New returns "<prefix>-<yyyyMMddHHmmss UTC>-<6 lowercase hex>".
func New(prefix string, now time.Time) (string, error) {
	var b [3]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "", fmt.Errorf("failed to generate reference suffix: %w", err)
	}
	return prefix + "-" + now.UTC().Format(timestampLayout) + "-" + hex.EncodeToString(b[:]), nil
}

// PolicyNumber returns "POL-<unix milliseconds>".
func PolicyNumber(now time.Time) string {
	return PrefixPolicy + "-" + strconv.FormatInt(now.UnixMilli(), 10)
}
