package models

import "time"

type PlaidItem struct {
	UserID        string    `json:"user_id"`
	ItemID        string    `json:"item_id"`
	AccessToken   string    `json:"-"`
	InstitutionID string    `json:"institution_id,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}
