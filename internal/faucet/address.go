package faucet

import "strings"

const base58Alphabet = "123456789ABCDEFGHJKLMNPQRSTUVWXYZabcdefghijkmnopqrstuvwxyz"

// ValidAddress reports whether address is a well-formed payout address:
// the fixed prefix, the fixed total length, and a base58 body.
func ValidAddress(address, prefix string, length int) bool {
	if len(address) != length || !strings.HasPrefix(address, prefix) {
		return false
	}
	for _, r := range address[len(prefix):] {
		if !strings.ContainsRune(base58Alphabet, r) {
			return false
		}
	}
	return true
}
