package ir

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
)

// Domain prefixes for content digests. The version suffix leaves room to
// change the algorithm without colliding with old digests.
const (
	DomainParams    = "statetree/params/v1"
	DomainTransform = "statetree/transform/v1"
	DomainTree      = "statetree/tree/v1"
)

// hashWithDomain computes SHA256(domain || 0x00 || data).
// The null separator keeps domain and data unambiguous.
func hashWithDomain(domain string, data []byte) string {
	h := sha256.New()
	h.Write([]byte(domain))
	h.Write([]byte{0x00})
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// ParamsDigest returns a stable content digest of a params value.
// Two values have the same digest iff they are Equal (modulo NFC
// normalization of strings).
func ParamsDigest(params IRValue) (string, error) {
	canonical, err := MarshalCanonical(params)
	if err != nil {
		return "", fmt.Errorf("ParamsDigest: %w", err)
	}
	return hashWithDomain(DomainParams, canonical), nil
}

// TransformDigest returns a content digest of everything that identifies a
// transform: ref, parent, transformer, params and tags. Dumps use it to
// compare trees across processes without shipping full params.
func TransformDigest(t Transform) (string, error) {
	canonical, err := MarshalCanonical(t.IRObject())
	if err != nil {
		return "", fmt.Errorf("TransformDigest %s: %w", t.Ref, err)
	}
	return hashWithDomain(DomainTransform, canonical), nil
}

// TreeDigest returns a content digest of a tree dump.
func TreeDigest(dump IRArray) (string, error) {
	canonical, err := MarshalCanonical(dump)
	if err != nil {
		return "", fmt.Errorf("TreeDigest: %w", err)
	}
	return hashWithDomain(DomainTree, canonical), nil
}

// MustParamsDigest is like ParamsDigest but panics on error.
// Use only in tests or when inputs are known to be valid.
func MustParamsDigest(params IRValue) string {
	d, err := ParamsDigest(params)
	if err != nil {
		panic(err)
	}
	return d
}
