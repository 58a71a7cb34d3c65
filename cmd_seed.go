package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pilgrimsafe/auth"
	"pilgrimsafe/db"
	"pilgrimsafe/forms"
	"pilgrimsafe/models"
	"pilgrimsafe/store"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load demo places, events, alerts and field users",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		b, err := openBackend(ctx, cfg, logger)
		if err != nil {
			return err
		}
		defer b.Close(context.Background())
		return seed(ctx, b.Store, auth.NewService(b.Store, cfg.Auth.JWTSecret, cfg.Auth.TokenTTL, logger), logger)
	},
}

var demoPlaces = []forms.PlaceDraft{
	{
		Name: "Ramkund", Categories: []string{"Ghats"}, Latitude: "20.0075", Longitude: "73.7929",
		Images: []string{}, Description: "Sacred bathing tank on the Godavari.", VisitTime: "1 hour",
		CrowdLevel: "High", BestSeason: "October to March", EntryTypes: []string{"Free"},
		OpeningHours: "Open 24 hours", TransportModes: []string{"Auto Rickshaw", "Walking"},
		Transport: []forms.TransportDraft{
			{Mode: "Auto Rickshaw", MinPrice: "30", MaxPrice: "80"},
			{Mode: "Walking", MinPrice: "0", MaxPrice: "0"},
		},
		Facilities: []string{"Drinking Water", "Restrooms"},
		FacilityPrices: []forms.FacilityDraft{
			{Name: "Drinking Water", MinPrice: "0", MaxPrice: "0", EstimatedPrice: "0"},
			{Name: "Restrooms", MinPrice: "0", MaxPrice: "5", EstimatedPrice: "5"},
		},
	},
	{
		Name: "Kalaram Temple", Categories: []string{"Temple", "Heritage"}, Latitude: "20.0069", Longitude: "73.7955",
		Images: []string{}, Description: "Temple with a black stone idol of Rama.", VisitTime: "45 minutes",
		CrowdLevel: "Medium", EntryTypes: []string{"Free", "Paid"}, EntryFee: "",
		OpeningHours: "5:00 AM - 10:00 PM", TransportModes: []string{}, Transport: []forms.TransportDraft{},
		Facilities: []string{"Cloak Room"},
		FacilityPrices: []forms.FacilityDraft{
			{Name: "Cloak Room", MinPrice: "10", MaxPrice: "20", EstimatedPrice: "10"},
		},
	},
	{
		Name: "Tapovan Parking", Categories: []string{"Parking"}, Latitude: "20.0031", Longitude: "73.8102",
		Images: []string{}, Description: "Bus and car parking with shuttle to the ghats.",
		CrowdLevel: "Low", EntryTypes: []string{"Paid"}, EntryFee: "50",
		TransportModes: []string{"Bus"},
		Transport:      []forms.TransportDraft{{Mode: "Bus", MinPrice: "10", MaxPrice: "20"}},
		Facilities:     []string{}, FacilityPrices: []forms.FacilityDraft{},
	},
}

var demoEvents = []forms.EventDraft{
	{
		EventName: "Godavari Aarti", EventType: "Aarti", StartDate: "2027-07-14", EndDate: "2027-09-24",
		StartTime: "18:30", EndTime: "19:15", Description: "Evening aarti at Ramkund.",
		Organizer: "Ramkund Samiti", Latitude: "20.0075", Longitude: "73.7929",
		ImageURL: "https://cdn.pilgrimsafe.org/events/aarti.jpg", IsRecurring: true, EntryFeeType: "free",
	},
	{
		EventName: "Shahi Snan", EventType: "Holy Dip", StartDate: "2027-08-02", EndDate: "2027-08-02",
		StartTime: "04:00", EndTime: "12:00", Description: "Royal bath of the akharas.",
		Organizer: "Kumbh Mela Authority", Latitude: "20.0075", Longitude: "73.7929",
		ImageURL: "https://cdn.pilgrimsafe.org/events/snan.jpg", EntryFeeType: "free",
	},
}

func seed(ctx context.Context, s store.Client, svc *auth.Service, log *zap.Logger) error {
	msgs := &forms.Messages{}
	placeForm := forms.NewPlaceForm(s, msgs)
	for _, d := range demoPlaces {
		placeForm.Load(d)
		if _, err := placeForm.Submit(ctx); err != nil {
			return fmt.Errorf("seed place %s: %w", d.Name, err)
		}
	}
	eventForm := forms.NewEventForm(s, msgs)
	for _, d := range demoEvents {
		eventForm.Load(d)
		if _, err := eventForm.Submit(ctx); err != nil {
			return fmt.Errorf("seed event %s: %w", d.EventName, err)
		}
	}

	now := time.Now().UTC()
	records := []struct {
		collection string
		v          any
	}{
		{db.AlertsCollection, models.Alert{Title: "Crowd surge at Ramkund", Description: "Barricades at gate 3 under pressure.",
			Status: models.AlertActive, Severity: "high", Latitude: 20.0075, Longitude: 73.7929, CreatedAt: now.Add(-20 * time.Minute)}},
		{db.AlertsCollection, models.Alert{Title: "Medical assistance", Description: "Heat exhaustion near Kalaram Temple.",
			Status: models.AlertResolved, Severity: "medium", CreatedAt: now.Add(-2 * time.Hour)}},
		{db.LostPeopleCollection, models.LostPerson{Name: "Gopal Patil", Age: 71, Description: "White kurta, walking stick.",
			LastSeen: "Ramkund gate 2", Status: models.PersonMissing, ReportedAt: now.Add(-45 * time.Minute)}},
		{db.LostPeopleCollection, models.LostPerson{Name: "Anaya Joshi", Age: 8, Description: "Red frock.",
			LastSeen: "Tapovan Parking", Status: models.PersonFound, ReportedAt: now.Add(-3 * time.Hour)}},
	}
	for _, r := range records {
		fields, err := store.FieldsOf(r.v)
		if err != nil {
			return err
		}
		if _, err := s.Create(ctx, r.collection, fields); err != nil {
			return fmt.Errorf("seed %s: %w", r.collection, err)
		}
	}

	users := []struct {
		reg  auth.Registration
		role string
	}{
		{auth.Registration{Username: "meera", Email: "meera@pilgrimsafe.org", Password: "volunteer-demo", Name: "Meera Kulkarni"}, models.RoleVolunteer},
		{auth.Registration{Username: "asha", Email: "asha@pilgrimsafe.org", Password: "pilgrim-demo", Name: "Asha Deshmukh"}, models.RoleUser},
	}
	for _, u := range users {
		if _, err := svc.Register(ctx, u.reg, u.role); err != nil && !errors.Is(err, auth.ErrUserExists) {
			return fmt.Errorf("seed user %s: %w", u.reg.Username, err)
		}
	}

	log.Info("demo data loaded",
		zap.Int("places", len(demoPlaces)),
		zap.Int("events", len(demoEvents)),
		zap.Int("records", len(records)),
		zap.Int("users", len(users)))
	return nil
}
