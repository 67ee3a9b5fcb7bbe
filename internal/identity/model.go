package identity

import "time"

// User is never physically deleted; Active=false is the logical-delete flag.
type User struct {
	ID           string `gorm:"primaryKey;size:36"`
	Username     string `gorm:"uniqueIndex;size:100;not null"`
	PasswordHash string `gorm:"size:100;not null"`

	Name              string `gorm:"size:100"`
	LastName          string `gorm:"size:100"`
	MothersMaidenName string `gorm:"size:100"`
	Email             string `gorm:"size:191"`
	CellPhone         string `gorm:"size:32"`

	Active    bool `gorm:"not null;default:true"`
	CreatedAt time.Time
	UpdatedAt time.Time

	Assignments []UserRole `gorm:"foreignKey:UserID"`
}

func (User) TableName() string { return "users" }

// Role rows are administered through the admin surface, never by the engine.
type Role struct {
	ID        string    `gorm:"primaryKey;size:36" json:"id"`
	Name      string    `gorm:"uniqueIndex;size:64;not null" json:"name"`
	Active    bool      `gorm:"not null;default:true" json:"active"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func (Role) TableName() string { return "roles" }

// UserRole binds a user to a role; identity is the (user, role) pair.
// Created in the same transaction as the User row.
type UserRole struct {
	UserID    string `gorm:"primaryKey;size:36"`
	RoleID    string `gorm:"primaryKey;size:36"`
	Active    bool   `gorm:"not null;default:true"`
	CreatedAt time.Time

	Role Role `gorm:"foreignKey:RoleID"`
}

func (UserRole) TableName() string { return "user_roles" }

// PrimaryRole resolves the user's role name from the eagerly loaded
// assignments. Storage may hold several; the assignment with the lowest role
// id wins, so resolution never depends on query order. A user without an
// active assignment has no role and cannot authenticate.
func (u *User) PrimaryRole() (string, bool) {
	for _, a := range u.Assignments {
		if a.Active && a.Role.Active && a.Role.Name != "" {
			return a.Role.Name, true
		}
	}
	return "", false
}
