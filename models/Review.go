package models

import "time"

const (
	VerificationUnverified = "unverified"
	VerificationPending    = "pending"
	VerificationVerified   = "verified"
)

type Review struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	LandlordID          uint      `json:"landlordID" gorm:"not null;index"`
	UserID              *string   `json:"userID" gorm:"type:varchar(36);index"` // nil for anonymous submissions
	Rating              int       `json:"rating" gorm:"not null;check:rating >= 1 AND rating <= 5"`
	Communication       int       `json:"communication" gorm:"not null;check:communication >= 1 AND communication <= 5"`
	Maintenance         int       `json:"maintenance" gorm:"not null;check:maintenance >= 1 AND maintenance <= 5"`
	Respect             int       `json:"respect" gorm:"not null;check:respect >= 1 AND respect <= 5"`
	Comment             string    `json:"comment" gorm:"type:text;not null"`
	WouldRentAgain      bool      `json:"wouldRentAgain" gorm:"default:false"`
	RentAmount          *float64  `json:"rentAmount"`
	PropertyAddress     *string   `json:"propertyAddress" gorm:"type:text"`
	VerificationStatus  string    `json:"verificationStatus" gorm:"type:varchar(20);default:'unverified';index"` // unverified, pending, verified
	VerificationFileURL *string   `json:"verificationFileURL" gorm:"column:verification_file_url;type:text"`
	CreatedByStudent    bool      `json:"createdByStudent" gorm:"default:false"`
	IsDeleted           bool      `json:"isDeleted" gorm:"default:false;index"`
	CreatedAt           time.Time `json:"createdAt"`
	UpdatedAt           time.Time `json:"updatedAt"`
}

// EffectiveVerificationStatus treats rows stored before the status column
// existed as unverified.
func (r *Review) EffectiveVerificationStatus() string {
	switch r.VerificationStatus {
	case VerificationPending, VerificationVerified:
		return r.VerificationStatus
	default:
		return VerificationUnverified
	}
}

// OwnedBy reports whether userID authored the review.
func (r *Review) OwnedBy(userID string) bool {
	return userID != "" && r.UserID != nil && *r.UserID == userID
}

func (r *Review) HasVerificationFile() bool {
	return r.VerificationFileURL != nil && *r.VerificationFileURL != ""
}
