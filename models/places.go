package models

import "time"

type Place struct {
	ID           string           `json:"id" bson:"_id,omitempty"`
	Name         string           `json:"name" bson:"name"`
	Categories   []string         `json:"categories" bson:"categories"`
	Latitude     float64          `json:"latitude" bson:"latitude"`
	Longitude    float64          `json:"longitude" bson:"longitude"`
	Images       []string         `json:"images" bson:"images"`
	Description  string           `json:"description" bson:"description"`
	VisitTime    string           `json:"visitTime,omitempty" bson:"visitTime,omitempty"`
	CrowdLevel   CrowdLevel       `json:"crowdLevel" bson:"crowdLevel"`
	BestSeason   string           `json:"bestSeason,omitempty" bson:"bestSeason,omitempty"`
	EntryTypes   []EntryType      `json:"entryTypes" bson:"entryTypes"`
	EntryFee     EntryFee         `json:"entryFee" bson:"entryFee"`
	OpeningHours string           `json:"openingHours,omitempty" bson:"openingHours,omitempty"`
	Transport    []TransportPrice `json:"transport" bson:"transport"`
	Facilities   []FacilityPrice  `json:"facilities" bson:"facilities"`
	CreatedAt    time.Time        `json:"createdAt" bson:"createdAt"`
	UpdatedAt    time.Time        `json:"updatedAt" bson:"updatedAt"`
}

// TransportPrice is the fare range for reaching a place by one mode.
type TransportPrice struct {
	Mode     string  `json:"mode" bson:"mode"`
	MinPrice float64 `json:"minPrice" bson:"minPrice"`
	MaxPrice float64 `json:"maxPrice" bson:"maxPrice"`
}

type FacilityPrice struct {
	Name           string  `json:"name" bson:"name"`
	MinPrice       float64 `json:"minPrice" bson:"minPrice"`
	MaxPrice       float64 `json:"maxPrice" bson:"maxPrice"`
	EstimatedPrice float64 `json:"estimatedPrice" bson:"estimatedPrice"`
}

type CrowdLevel string

const (
	CrowdLow    CrowdLevel = "Low"
	CrowdMedium CrowdLevel = "Medium"
	CrowdHigh   CrowdLevel = "High"
)

var CrowdLevels = []CrowdLevel{CrowdLow, CrowdMedium, CrowdHigh}

type EntryType string

const (
	EntryFree EntryType = "Free"
	EntryPaid EntryType = "Paid"
)

var PlaceCategories = []string{
	"Temple",
	"Ghats",
	"Ashram",
	"Heritage",
	"Nature",
	"Food",
	"Accommodation",
	"Parking",
	"Medical",
	"Shopping",
}

var TransportModes = []string{
	"Bus",
	"Auto Rickshaw",
	"Taxi",
	"Train",
	"Walking",
	"Boat",
}

var Facilities = []string{
	"Parking",
	"Drinking Water",
	"Restrooms",
	"Cloak Room",
	"Wheelchair Access",
	"Guide",
	"Locker",
	"Food Stalls",
}

func (p Place) RecordID() string { return p.ID }

// SearchText is what the admin list filter matches against.
func (p Place) SearchText() []string {
	out := make([]string, 0, len(p.Categories)+2)
	out = append(out, p.Name, p.Description)
	return append(out, p.Categories...)
}

func (p Place) HasEntryType(t EntryType) bool {
	for _, et := range p.EntryTypes {
		if et == t {
			return true
		}
	}
	return false
}
