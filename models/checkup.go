package models

import "time"

// UserProfile is a bot or API user known to the checkup history.
type UserProfile struct {
	UserID           int64        `json:"userId"`
	ChatID           int64        `json:"chatId"`
	CreatedAt        time.Time    `json:"createdAt"`
	LastPredicted    time.Time    `json:"lastPredicted,omitempty"`
	LastRiskCategory RiskCategory `json:"lastRiskCategory,omitempty"`
	LastProbability  float64      `json:"lastProbability,omitempty"`
}

// Checkup is one scheduled or completed clinical visit.
type Checkup struct {
	ID           string    `json:"id"`
	UserID       int64     `json:"userId"`
	Date         time.Time `json:"date"`
	Notes        string    `json:"notes"`
	DocumentName string    `json:"documentName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// CheckupReminder is a due checkup together with the chat to notify.
type CheckupReminder struct {
	Checkup Checkup
	ChatID  int64
}

// CheckupDateLayout is the accepted date format for checkups.
const CheckupDateLayout = "2006-01-02"
