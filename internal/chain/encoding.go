package chain

import (
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
)

// DecodeAddress turns a hex address, with or without 0x prefix, into raw bytes
func DecodeAddress(address string) ([]byte, error) {
	address = strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X")
	if address == "" {
		return nil, fmt.Errorf("empty address")
	}

	raw, err := hex.DecodeString(address)
	if err != nil {
		return nil, fmt.Errorf("address is not hex: %w", err)
	}
	return raw, nil
}

// HashToHex converts a base64 transaction hash to the hex form shown to users
func HashToHex(b64 string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(b64)
	if err != nil {
		return "", fmt.Errorf("transaction hash is not base64: %w", err)
	}
	return hex.EncodeToString(raw), nil
}
