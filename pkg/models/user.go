package models

import (
	"strings"
	"time"
)

// GroupAdmin members may override immutability, force-unlock and bypass
// archive permission checks.
const GroupAdmin = "admin"

// RetentionUser is the reserved system actor used by retention jobs; it
// bypasses archive permission checks like an administrator.
const RetentionUser = "_retention"

// User is the actor on whose behalf lifecycle operations run. Authentication
// and session handling live outside this module; callers pass a resolved
// user.
type User struct {
	ID        uint64    `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`

	Username string `gorm:"type:varchar(255);uniqueIndex;not null" json:"username"`
	FullName string `gorm:"type:varchar(255)" json:"fullName"`

	// Groups is a comma-separated list of group names.
	Groups string `gorm:"type:varchar(1000)" json:"groups"`
}

// TableName specifies the table name.
func (User) TableName() string {
	return "users"
}

// IsMemberOf reports whether the user belongs to the named group.
func (u *User) IsMemberOf(group string) bool {
	for _, g := range strings.Split(u.Groups, ",") {
		if strings.TrimSpace(g) == group {
			return true
		}
	}
	return false
}

// IsAdmin reports whether the user belongs to the administrative group.
func (u *User) IsAdmin() bool {
	return u.IsMemberOf(GroupAdmin)
}

// DisplayName returns the full name when set, the username otherwise.
func (u *User) DisplayName() string {
	if u.FullName != "" {
		return u.FullName
	}
	return u.Username
}
