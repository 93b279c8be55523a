package models

import (
	"encoding/json"
	"strings"
	"time"

	"gorm.io/datatypes"
)

const (
	LandlordPending  = "pending"
	LandlordApproved = "approved"
	LandlordRejected = "rejected"
)

type Landlord struct {
	ID        uint           `json:"id" gorm:"primaryKey"`
	Name      string         `json:"name" gorm:"type:varchar(256);not null;index"`
	Addresses datatypes.JSON `json:"addresses"`
	// Rows written before addresses became a list carry a single address here.
	LegacyAddress string    `json:"-" gorm:"column:address;type:text"`
	City          string    `json:"city" gorm:"type:varchar(100)"`
	Status        string    `json:"status" gorm:"type:varchar(20);default:'pending';index"` // pending, approved, rejected
	IsDeleted     bool      `json:"isDeleted" gorm:"default:false;index"`
	CreatedAt     time.Time `json:"createdAt"`
}

// AddressList merges the JSON address list with the legacy single address.
func (l *Landlord) AddressList() []string {
	out := []string{}
	if len(l.Addresses) > 0 {
		var list []string
		if err := json.Unmarshal(l.Addresses, &list); err == nil {
			for _, a := range list {
				if a = strings.TrimSpace(a); a != "" {
					out = append(out, a)
				}
			}
		}
	}
	if legacy := strings.TrimSpace(l.LegacyAddress); legacy != "" {
		for _, a := range out {
			if a == legacy {
				return out
			}
		}
		out = append(out, legacy)
	}
	return out
}

// SetAddresses stores the given addresses, dropping blanks.
func (l *Landlord) SetAddresses(addresses []string) {
	clean := []string{}
	for _, a := range addresses {
		if a = strings.TrimSpace(a); a != "" {
			clean = append(clean, a)
		}
	}
	b, _ := json.Marshal(clean)
	l.Addresses = datatypes.JSON(b)
}

// IsPubliclyVisible reports whether ordinary users may see the landlord.
func (l *Landlord) IsPubliclyVisible() bool {
	return l.Status == LandlordApproved && !l.IsDeleted
}

func (l Landlord) MarshalJSON() ([]byte, error) {
	type Alias Landlord
	aux := &struct {
		Addresses []string `json:"addresses"`
		*Alias
	}{
		Addresses: l.AddressList(),
		Alias:     (*Alias)(&l),
	}
	return json.Marshal(aux)
}
