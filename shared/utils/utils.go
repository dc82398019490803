package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"regexp"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
	"golang.org/x/crypto/bcrypt"
)

const referencePrefix = "TXN"

var (
	referencePattern = regexp.MustCompile(`^TXN-\d{14}-[0-9A-Z]{10}$`)
	pinPattern       = regexp.MustCompile(`^\d{4}$`)
)

// GenerateReference builds a transaction reference of the form
// TXN-<yyyymmddHHMMSS>-<10 random chars>, timestamped in UTC.
func GenerateReference(at time.Time) string {
	id := ulid.Make().String()
	return fmt.Sprintf("%s-%s-%s", referencePrefix, at.UTC().Format("20060102150405"), id[len(id)-10:])
}

// ValidateReference validates the transaction reference format
func ValidateReference(reference string) bool {
	return referencePattern.MatchString(reference)
}

// GenerateAccountNumber generates a 10-digit account number
func GenerateAccountNumber() string {
	num, _ := rand.Int(rand.Reader, big.NewInt(1000000000))
	return fmt.Sprintf("1%09d", num.Int64())
}

// ValidatePIN checks that a PIN is exactly four digits
func ValidatePIN(pin string) bool {
	return pinPattern.MatchString(pin)
}

// HashPIN hashes a transaction PIN using bcrypt
func HashPIN(pin string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(pin), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPIN checks if a PIN matches a hash
func CheckPIN(pin, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(pin))
	return err == nil
}

// NormalizePhone strips whitespace and separators from a phone number
func NormalizePhone(phone string) string {
	return strings.NewReplacer(" ", "", "-", "", "(", "", ")", "").Replace(strings.TrimSpace(phone))
}
