package kpi

import "time"

type User struct {
	ID              string  `json:"id"`
	Name            string  `json:"name"`
	Email           string  `json:"email"`
	Role            Role    `json:"role"`
	BaseSalary      float64 `json:"baseSalary"`
	IncentiveTarget float64 `json:"incentiveTarget"`
	Department      string  `json:"department,omitempty"`
}

// SystemStats carries the three reported figures as formatted strings
// ("285ms", "97.5%", "99.8%").
type SystemStats struct {
	ResponseTime string `json:"responseTime"`
	Accuracy     string `json:"accuracy"`
	Uptime       string `json:"uptime"`
}

type Transmission struct {
	ID         string    `json:"id"`
	UserID     string    `json:"userId"`
	UserName   string    `json:"userName"`
	Department string    `json:"department,omitempty"`
	Timestamp  time.Time `json:"timestamp"`
	SystemStats
}

type AuditEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	User      string    `json:"user"`
	Action    string    `json:"action"`
	Details   string    `json:"details"`
	Type      string    `json:"type"`
}

type SystemNotification struct {
	ID           string    `json:"id"`
	TargetUserID string    `json:"targetUserId"`
	Message      string    `json:"message"`
	Timestamp    time.Time `json:"timestamp"`
	Type         string    `json:"type"`
}

type Announcement struct {
	ID         string    `json:"id"`
	Department string    `json:"department"`
	SenderName string    `json:"senderName"`
	Message    string    `json:"message"`
	Timestamp  time.Time `json:"timestamp"`
}

// Credential is a registry row. Passkeys are kept as bcrypt hashes.
type Credential struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	PasswordHash string `json:"passwordHash"`
	Department   string `json:"department"`
	Role         Role   `json:"role"`
}
