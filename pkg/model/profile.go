package model

// Profile maps a social identity to payment addresses. Rows are owned by an
// external registration flow; this service only reads them.
type Profile struct {
	BaseModel
	SocialHandle string `gorm:"not null;type:varchar(64);uniqueIndex:idx_unique_social_handle" json:"social_handle"`
	PayTag       string `gorm:"type:varchar(64);index"                                         json:"pay_tag"`
	// ChainAddress is the address on the configured chain; WalletAddress is
	// the generic fallback when no chain-specific address was registered.
	ChainAddress  string `gorm:"type:varchar(255)" json:"chain_address"`
	WalletAddress string `gorm:"type:varchar(255)" json:"wallet_address"`
}

// PayAddress returns the usable payment address, preferring the
// chain-specific one. Empty string means no address is usable.
func (p *Profile) PayAddress() string {
	if p.ChainAddress != "" {
		return p.ChainAddress
	}
	return p.WalletAddress
}
