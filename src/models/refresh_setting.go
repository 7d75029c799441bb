package models

import "time"

type Frequency string

const (
	FrequencyDaily   Frequency = "daily"
	FrequencyWeekly  Frequency = "weekly"
	FrequencyMonthly Frequency = "monthly"
	FrequencyCustom  Frequency = "custom"
)

type RefreshSetting struct {
	UserID         string     `json:"user_id"`
	Frequency      Frequency  `json:"frequency,omitempty"`
	Schedule       string     `json:"schedule,omitempty"`
	CustomSchedule string     `json:"custom_schedule,omitempty"`
	LastRefreshed  *time.Time `json:"last_refreshed"`
	UpdatedAt      time.Time  `json:"updated_at"`
}
