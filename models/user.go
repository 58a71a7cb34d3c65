package models

import "time"

type User struct {
	ID           string    `json:"userid" bson:"_id,omitempty"`
	Username     string    `json:"username" bson:"username"`
	Email        string    `json:"email" bson:"email"`
	PasswordHash string    `json:"-" bson:"password_hash"`
	Role         string    `json:"role" bson:"role"`
	Name         string    `json:"name,omitempty" bson:"name,omitempty"`
	CreatedAt    time.Time `json:"created_at" bson:"created_at"`
	LastLogin    time.Time `json:"last_login,omitempty" bson:"last_login,omitempty"`
}

const (
	RoleAdmin     = "admin"
	RoleUser      = "user"
	RoleVolunteer = "volunteer"
)

func (u User) IsAdmin() bool { return u.Role == RoleAdmin }
