// Package hashing computes file digests through a tiered set of backends:
// memory-mapped hashing, the coreutils *sum tools, and buffered streaming.
package hashing

import (
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"fmt"
	"hash"
	"strings"
)

// Algorithm names a supported digest.
type Algorithm string

const (
	SHA256 Algorithm = "sha256"
	SHA1   Algorithm = "sha1"
	MD5    Algorithm = "md5"
)

// DefaultAlgorithm is used when none is configured.
const DefaultAlgorithm = SHA256

// Algorithms lists the supported algorithms.
func Algorithms() []Algorithm {
	return []Algorithm{SHA256, SHA1, MD5}
}

// ParseAlgorithm returns the algorithm for a case-insensitive name.
// An empty name selects DefaultAlgorithm.
func ParseAlgorithm(name string) (Algorithm, error) {
	switch Algorithm(strings.ToLower(strings.TrimSpace(name))) {
	case "":
		return DefaultAlgorithm, nil
	case SHA256:
		return SHA256, nil
	case SHA1:
		return SHA1, nil
	case MD5:
		return MD5, nil
	default:
		return "", fmt.Errorf("unsupported hash algorithm: %s", name)
	}
}

// New returns a fresh hash.Hash for the algorithm.
func (a Algorithm) New() hash.Hash {
	switch a {
	case SHA1:
		return sha1.New()
	case MD5:
		return md5.New()
	default:
		return sha256.New()
	}
}

// HexLen is the length of the algorithm's lowercase hex digest.
func (a Algorithm) HexLen() int {
	switch a {
	case SHA1:
		return sha1.Size * 2
	case MD5:
		return md5.Size * 2
	default:
		return sha256.Size * 2
	}
}

// Valid reports whether a is a supported algorithm.
func (a Algorithm) Valid() bool {
	switch a {
	case SHA256, SHA1, MD5:
		return true
	}
	return false
}

// Tool is the coreutils binary computing this digest.
func (a Algorithm) Tool() string {
	return string(a) + "sum"
}
