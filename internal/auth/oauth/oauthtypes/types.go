package oauthtypes

// UserProfile is the part of the provider's "me" response the authenticator uses
type UserProfile struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
