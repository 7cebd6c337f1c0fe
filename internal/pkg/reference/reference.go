// Package reference generates the globally-unique references shared with the
// payment gateway. A reference ties one logical money movement to at most one
// completed effect on either side, so collisions are never acceptable: the
// suffix comes from crypto/rand, not a counter.
package reference

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"regexp"
	"time"
)

const (
	transactionPrefix = "TXN"
	transferPrefix    = "TRF"
	suffixBytes       = 4 // 8 hex chars
)

var (
	transactionPattern = regexp.MustCompile(`^TXN-\d{10}-[0-9a-f]{8}$`)
	transferPattern    = regexp.MustCompile(`^TRF-\d{10}-[0-9a-f]{8}$`)
)

// Transaction returns a new payment transaction reference,
// e.g. TXN-1735689600-9f3ab21c.
func Transaction() string {
	return generate(transactionPrefix)
}

// Transfer returns a new payout transfer reference,
// e.g. TRF-1735689600-4d01be77.
func Transfer() string {
	return generate(transferPrefix)
}

// IsValidTransactionReference reports whether ref matches the transaction
// reference pattern. Used to reject malformed webhook replays before any
// lookup happens.
func IsValidTransactionReference(ref string) bool {
	return transactionPattern.MatchString(ref)
}

// IsValidTransferReference reports whether ref matches the transfer
// reference pattern.
func IsValidTransferReference(ref string) bool {
	return transferPattern.MatchString(ref)
}

func generate(prefix string) string {
	buf := make([]byte, suffixBytes)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand only fails when the OS entropy source is broken;
		// nothing sensible can continue past that in a payments service.
		panic(fmt.Sprintf("reference: crypto/rand failed: %v", err))
	}
	return fmt.Sprintf("%s-%d-%s", prefix, time.Now().Unix(), hex.EncodeToString(buf))
}
