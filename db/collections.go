package db

// Collection names shared by the store, the admin controllers and the
// dashboard.
const (
	UsersCollection      = "users"
	PlacesCollection     = "places"
	EventsCollection     = "events"
	AlertsCollection     = "alerts"
	LostPeopleCollection = "lost_people"
)
