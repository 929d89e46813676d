package enums

import "fmt"

// SaleChannel identifies where a sale was rung up.
type SaleChannel string

const (
	SaleChannelPOS  SaleChannel = "pos"
	SaleChannelShop SaleChannel = "shop"
)

var validSaleChannels = []SaleChannel{
	SaleChannelPOS,
	SaleChannelShop,
}

// String implements fmt.Stringer.
func (c SaleChannel) String() string {
	return string(c)
}

// IsValid reports whether the value is a known SaleChannel.
func (c SaleChannel) IsValid() bool {
	for _, candidate := range validSaleChannels {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseSaleChannel converts raw input into a SaleChannel.
func ParseSaleChannel(value string) (SaleChannel, error) {
	for _, candidate := range validSaleChannels {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid sale channel %q", value)
}
