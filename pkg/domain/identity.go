package domain

import (
	"encoding/hex"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

type (
	// Identity is an authenticated 20-byte account address.
	Identity = common.Address
	// Digest is a 32-byte cryptographic hash of an external reference document.
	Digest = common.Hash
)

// ParseIdentity parses a 0x-prefixed hex account address.
func ParseIdentity(raw string) (Identity, error) {
	raw = strings.TrimSpace(raw)
	if !common.IsHexAddress(raw) {
		return Identity{}, Errorf(CodeInvalidArgument, "invalid identity %q", raw)
	}
	return common.HexToAddress(raw), nil
}

// ParseDigest parses a 32-byte hex digest, with or without the 0x prefix.
func ParseDigest(raw string) (Digest, error) {
	trimmed := strings.TrimPrefix(strings.TrimPrefix(strings.TrimSpace(raw), "0x"), "0X")
	b, err := hex.DecodeString(trimmed)
	if err != nil || len(b) != common.HashLength {
		return Digest{}, Errorf(CodeInvalidArgument, "invalid digest %q", raw)
	}
	return common.BytesToHash(b), nil
}
