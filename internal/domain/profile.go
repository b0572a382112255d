package domain

// DefaultAvatarURL is the placeholder avatar of the synthesized guest profile.
const DefaultAvatarURL = "https://api.dicebear.com/9.x/lorelei/svg?seed=Felix"

// Profile is the single user profile kept per store.
type Profile struct {
	Name      string `json:"name"`
	Handle    string `json:"handle"`
	AvatarURL string `json:"avatar"`
}

// DefaultProfile is used whenever no profile has been saved yet.
func DefaultProfile() Profile {
	return Profile{
		Name:      "Guest Otaku",
		Handle:    "@guest",
		AvatarURL: DefaultAvatarURL,
	}
}
