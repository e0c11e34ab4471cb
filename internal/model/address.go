package model

import (
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/common"
)

// NormalizeAddress validates a hex account address and returns it lowercased.
func NormalizeAddress(addr string) (string, error) {
	addr = strings.TrimSpace(addr)
	if !common.IsHexAddress(addr) {
		return "", fmt.Errorf("%w: %q", ErrInvalidAddress, addr)
	}
	return strings.ToLower(common.HexToAddress(addr).Hex()), nil
}
