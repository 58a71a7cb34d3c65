package models

import "time"

// Alert is raised by the field apps (SOS, crowd surge, medical).
type Alert struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	Title       string    `json:"title" bson:"title"`
	Description string    `json:"description" bson:"description"`
	Status      string    `json:"status" bson:"status"`
	Severity    string    `json:"severity,omitempty" bson:"severity,omitempty"`
	Latitude    float64   `json:"latitude,omitempty" bson:"latitude,omitempty"`
	Longitude   float64   `json:"longitude,omitempty" bson:"longitude,omitempty"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
}

const (
	AlertActive   = "active"
	AlertResolved = "resolved"
)

type LostPerson struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	Name        string    `json:"name" bson:"name"`
	Age         int       `json:"age,omitempty" bson:"age,omitempty"`
	Description string    `json:"description" bson:"description"`
	LastSeen    string    `json:"lastSeen,omitempty" bson:"lastSeen,omitempty"`
	Status      string    `json:"status" bson:"status"`
	ReportedAt  time.Time `json:"reportedAt" bson:"reportedAt"`
}

const (
	PersonMissing = "missing"
	PersonFound   = "found"
)
