package rollup

import (
	"encoding/hex"
	"strings"
)

const hexPrefix = "0x"

// EncodeHex renders bytes as a 0x-prefixed lowercase hex string.
func EncodeHex(data []byte) string {
	return hexPrefix + hex.EncodeToString(data)
}

// DecodeHex decodes a hex string with or without the 0x prefix.
func DecodeHex(value string) ([]byte, error) {
	if strings.HasPrefix(value, hexPrefix) || strings.HasPrefix(value, "0X") {
		value = value[len(hexPrefix):]
	}
	return hex.DecodeString(value)
}
