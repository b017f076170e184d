package models

// User represents the logged-in actor. There is no password and no
// server-side verification; the session is purely client-local.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
	Name  string `json:"name"`
}
