package domain

// UserInvite names one project a new user is invited to, and the role
// they should receive on it.
type UserInvite struct {
	ID   int64 `json:"id"`
	Role Role  `json:"role"`
}

// UserInviteData is the payload attached to a new-user registration.
// Invites are resolved into membership rows only for projects where the
// inviter held Admin at creation time; others are silently dropped.
type UserInviteData struct {
	Projects []UserInvite `json:"projects"`
}
