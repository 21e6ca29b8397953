package domain

// User is the public view of an account owned by the auth subsystem.
type User struct {
	ID   int64  `json:"id" db:"id"`
	Name string `json:"name" db:"name"`
}
