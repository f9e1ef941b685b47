package domain

import "time"

// Supported user preference values.
const (
	LanguageEnglish = "en"
	LanguageChinese = "zh"

	NetworkMainnet = "mainnet"
	NetworkDevnet  = "devnet"
)

// UserSettings are the per-user preferences applied to every interaction.
type UserSettings struct {
	UserID    int64
	Language  string
	Network   string
	UpdatedAt time.Time
}

// DefaultSettings returns the settings applied to a user seen for the first time.
func DefaultSettings(userID int64) UserSettings {
	return UserSettings{
		UserID:   userID,
		Language: LanguageEnglish,
		Network:  NetworkMainnet,
	}
}
