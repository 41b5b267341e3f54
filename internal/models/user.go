package models

import "time"

// User represents a registered account.
type User struct {
	ID          string    `json:"id" gorm:"primaryKey;type:varchar(36)" validate:"omitempty,uuid"`
	Username    string    `json:"username" gorm:"uniqueIndex;type:varchar(100)" validate:"required,min=3,max=100"`
	Password    string    `json:"-" gorm:"type:varchar(255)" validate:"required,min=6"` // Always a bcrypt hash once persisted
	Email       string    `json:"email" gorm:"uniqueIndex;type:varchar(255)" validate:"required,email"`
	Address     string    `json:"address" validate:"required"`
	PhoneNum    string    `json:"phoneNum" validate:"required"`
	DateOfBirth time.Time `json:"dateOfBirth" validate:"required"`
	Image       string    `json:"image,omitempty"` // Stored profile image filename, empty if none
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Profile is the non-sensitive view of a User returned by the profile
// endpoint. DateOfBirth is rendered as a calendar date and Image as a
// fully-qualified download URL (or null when no image is set).
type Profile struct {
	ID          string  `json:"id"`
	Username    string  `json:"username"`
	Email       string  `json:"email"`
	Address     string  `json:"address"`
	PhoneNum    string  `json:"phoneNum"`
	DateOfBirth string  `json:"dateOfBirth"`
	Image       *string `json:"image"`
}

// NewProfile shapes a User into its Profile view. baseURL is the public
// root under which /download/users is mounted.
func NewProfile(u *User, baseURL string) Profile {
	p := Profile{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		Address:     u.Address,
		PhoneNum:    u.PhoneNum,
		DateOfBirth: u.DateOfBirth.Format("2006-01-02"),
	}
	if u.Image != "" {
		url := baseURL + "/download/users/" + u.Image
		p.Image = &url
	}
	return p
}
