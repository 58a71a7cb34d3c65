package models

import "time"

type Event struct {
	ID          string    `json:"id" bson:"_id,omitempty"`
	EventName   string    `json:"eventName" bson:"eventName"`
	EventType   string    `json:"eventType" bson:"eventType"`
	StartDate   string    `json:"startDate" bson:"startDate"`
	EndDate     string    `json:"endDate" bson:"endDate"`
	StartTime   string    `json:"startTime" bson:"startTime"`
	EndTime     string    `json:"endTime" bson:"endTime"`
	Description string    `json:"description" bson:"description"`
	Organizer   string    `json:"organizer" bson:"organizer"`
	Latitude    float64   `json:"latitude" bson:"latitude"`
	Longitude   float64   `json:"longitude" bson:"longitude"`
	ImageURL    string    `json:"imageUrl" bson:"imageUrl"`
	IsRecurring bool      `json:"isRecurring" bson:"isRecurring"`
	EntryFee    EntryFee  `json:"entryFee" bson:"entryFee"`
	CreatedAt   time.Time `json:"createdAt" bson:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt" bson:"updatedAt"`
}

var EventTypes = []string{
	"Religious",
	"Cultural",
	"Procession",
	"Holy Dip",
	"Aarti",
	"Satsang",
	"Other",
}

const (
	DateLayout = "2006-01-02"
	TimeLayout = "15:04"
)

func (e Event) RecordID() string { return e.ID }

func (e Event) SearchText() []string {
	return []string{e.EventName, e.Description, e.EventType, e.Organizer}
}
