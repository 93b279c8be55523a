package models

import "time"

type User struct {
	ID               string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Email            string     `json:"email" gorm:"type:varchar(256);uniqueIndex;not null"`
	Password         string     `json:"-"`
	EmailConfirmedAt *time.Time `json:"emailConfirmedAt"`
	CreatedAt        time.Time  `json:"createdAt"`
	UpdatedAt        time.Time  `json:"updatedAt"`
}

func (u *User) IsConfirmed() bool {
	return u.EmailConfirmedAt != nil
}

// Admin is one row of the administrator allow-list.
type Admin struct {
	Email     string    `json:"email" gorm:"primaryKey;type:varchar(256)"`
	CreatedAt time.Time `json:"createdAt"`
}
