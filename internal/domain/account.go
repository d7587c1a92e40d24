package domain

// Account is a registered user as stored in the credential record.
type Account struct {
	Username     string `json:"-"`
	DisplayName  string `json:"display_name"`
	PasswordHash string `json:"password_hash"`
}

// Profile holds the farm attributes a user saves once and every tool reads.
// The zero value is the valid "no profile yet" state.
type Profile struct {
	Location string  `json:"location"`
	FarmSize float64 `json:"farm_size"` // acres
	Crops    string  `json:"crops"`
}
