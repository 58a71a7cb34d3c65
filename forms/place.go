package forms

import (
	"context"
	"fmt"
	"slices"
	"strings"
	"time"

	"pilgrimsafe/db"
	"pilgrimsafe/models"
	"pilgrimsafe/store"
)

// PlaceDraft mirrors models.Place as strings for controlled inputs.
type PlaceDraft struct {
	Name           string           `json:"name"`
	Categories     []string         `json:"categories"`
	Latitude       string           `json:"latitude"`
	Longitude      string           `json:"longitude"`
	Images         []string         `json:"images"`
	Description    string           `json:"description"`
	VisitTime      string           `json:"visitTime"`
	CrowdLevel     string           `json:"crowdLevel"`
	BestSeason     string           `json:"bestSeason"`
	EntryTypes     []string         `json:"entryTypes"`
	EntryFee       string           `json:"entryFee"`
	OpeningHours   string           `json:"openingHours"`
	TransportModes []string         `json:"transportModes"`
	Transport      []TransportDraft `json:"transport"`
	Facilities     []string         `json:"facilities"`
	FacilityPrices []FacilityDraft  `json:"facilityPrices"`
}

type TransportDraft struct {
	Mode     string `json:"mode"`
	MinPrice string `json:"minPrice"`
	MaxPrice string `json:"maxPrice"`
}

type FacilityDraft struct {
	Name           string `json:"name"`
	MinPrice       string `json:"minPrice"`
	MaxPrice       string `json:"maxPrice"`
	EstimatedPrice string `json:"estimatedPrice"`
}

func NewPlaceDraft() PlaceDraft {
	return PlaceDraft{
		Categories:     []string{},
		Images:         []string{},
		CrowdLevel:     string(models.CrowdLow),
		EntryTypes:     []string{},
		TransportModes: []string{},
		Transport:      []TransportDraft{},
		Facilities:     []string{},
		FacilityPrices: []FacilityDraft{},
	}
}

// PlaceDraftFrom copies a stored place into a draft for editing.
func PlaceDraftFrom(p models.Place) PlaceDraft {
	d := NewPlaceDraft()
	d.Name = p.Name
	d.Categories = append(d.Categories, p.Categories...)
	d.Latitude = formatNumber(p.Latitude)
	d.Longitude = formatNumber(p.Longitude)
	d.Images = append(d.Images, p.Images...)
	d.Description = p.Description
	d.VisitTime = p.VisitTime
	if p.CrowdLevel != "" {
		d.CrowdLevel = string(p.CrowdLevel)
	}
	d.BestSeason = p.BestSeason
	for _, et := range p.EntryTypes {
		d.EntryTypes = append(d.EntryTypes, string(et))
	}
	d.EntryFee = p.EntryFee.AmountText()
	d.OpeningHours = p.OpeningHours
	for _, t := range p.Transport {
		d.TransportModes = append(d.TransportModes, t.Mode)
		d.Transport = append(d.Transport, TransportDraft{
			Mode:     t.Mode,
			MinPrice: formatNumber(t.MinPrice),
			MaxPrice: formatNumber(t.MaxPrice),
		})
	}
	for _, f := range p.Facilities {
		d.Facilities = append(d.Facilities, f.Name)
		d.FacilityPrices = append(d.FacilityPrices, FacilityDraft{
			Name:           f.Name,
			MinPrice:       formatNumber(f.MinPrice),
			MaxPrice:       formatNumber(f.MaxPrice),
			EstimatedPrice: formatNumber(f.EstimatedPrice),
		})
	}
	return d
}

func (d PlaceDraft) paid() bool {
	return slices.Contains(d.EntryTypes, string(models.EntryPaid))
}

// ValidatePlace reports every invalid field of d.
func ValidatePlace(d PlaceDraft) ErrorSet {
	errs := ErrorSet{}
	required(errs, "name", d.Name, "Name")
	required(errs, "description", d.Description, "Description")
	checkCoordinate(errs, "latitude", d.Latitude, "Latitude", 90)
	checkCoordinate(errs, "longitude", d.Longitude, "Longitude", 180)

	if len(d.Categories) == 0 {
		errs.Add("categories", "Select at least one category")
	}
	for _, c := range d.Categories {
		if !slices.Contains(models.PlaceCategories, c) {
			errs.Add("categories", fmt.Sprintf("Unknown category %q", c))
		}
	}
	if c, ok := duplicate(d.Categories); ok {
		errs.Add("categories", fmt.Sprintf("Category %q is selected twice", c))
	}
	if !slices.Contains(models.CrowdLevels, models.CrowdLevel(d.CrowdLevel)) {
		errs.Add("crowdLevel", "Crowd level must be Low, Medium or High")
	}
	for _, et := range d.EntryTypes {
		if et != string(models.EntryFree) && et != string(models.EntryPaid) {
			errs.Add("entryTypes", fmt.Sprintf("Unknown entry type %q", et))
		}
	}
	if et, ok := duplicate(d.EntryTypes); ok {
		errs.Add("entryTypes", fmt.Sprintf("Entry type %q is selected twice", et))
	}
	if d.paid() {
		checkPrice(errs, "entryFee", d.EntryFee, "Entry fee")
	}
	modes := companionKeys(d.Transport, func(t TransportDraft) string { return t.Mode })
	if m, ok := duplicate(modes); ok {
		errs.Add("transport", fmt.Sprintf("Transport mode %q has more than one price", m))
	}
	if !sameSet(d.TransportModes, modes) {
		errs.Add("transportModes", "Selected transport modes must match the transport prices")
	}
	names := companionKeys(d.FacilityPrices, func(f FacilityDraft) string { return f.Name })
	if n, ok := duplicate(names); ok {
		errs.Add("facilityPrices", fmt.Sprintf("Facility %q has more than one price", n))
	}
	if !sameSet(d.Facilities, names) {
		errs.Add("facilities", "Selected facilities must match the facility prices")
	}
	for _, t := range d.Transport {
		prefix := "transport." + t.Mode
		if !slices.Contains(models.TransportModes, t.Mode) {
			errs.Add(prefix, fmt.Sprintf("Unknown transport mode %q", t.Mode))
		}
		checkPrice(errs, prefix+".minPrice", t.MinPrice, "Minimum price")
		checkPrice(errs, prefix+".maxPrice", t.MaxPrice, "Maximum price")
	}
	for _, f := range d.FacilityPrices {
		prefix := "facilities." + f.Name
		if !slices.Contains(models.Facilities, f.Name) {
			errs.Add(prefix, fmt.Sprintf("Unknown facility %q", f.Name))
		}
		checkPrice(errs, prefix+".minPrice", f.MinPrice, "Minimum price")
		checkPrice(errs, prefix+".maxPrice", f.MaxPrice, "Maximum price")
		checkPrice(errs, prefix+".estimatedPrice", f.EstimatedPrice, "Estimated price")
	}
	return errs
}

// Place validates d and coerces it into a record. The returned ErrorSet is
// empty when the record is usable.
func (d PlaceDraft) Place() (models.Place, ErrorSet) {
	if errs := ValidatePlace(d); len(errs) > 0 {
		return models.Place{}, errs
	}
	lat, _ := parseNumber(d.Latitude)
	lng, _ := parseNumber(d.Longitude)
	p := models.Place{
		Name:         strings.TrimSpace(d.Name),
		Categories:   append([]string{}, d.Categories...),
		Latitude:     lat,
		Longitude:    lng,
		Images:       trimAll(d.Images),
		Description:  strings.TrimSpace(d.Description),
		VisitTime:    strings.TrimSpace(d.VisitTime),
		CrowdLevel:   models.CrowdLevel(d.CrowdLevel),
		BestSeason:   strings.TrimSpace(d.BestSeason),
		EntryTypes:   []models.EntryType{},
		EntryFee:     models.FreeEntry(),
		OpeningHours: strings.TrimSpace(d.OpeningHours),
		Transport:    []models.TransportPrice{},
		Facilities:   []models.FacilityPrice{},
	}
	for _, et := range d.EntryTypes {
		p.EntryTypes = append(p.EntryTypes, models.EntryType(et))
	}
	if d.paid() {
		p.EntryFee = models.PaidEntry(optionalAmount(d.EntryFee))
	}
	for _, t := range d.Transport {
		p.Transport = append(p.Transport, models.TransportPrice{
			Mode:     t.Mode,
			MinPrice: price(t.MinPrice),
			MaxPrice: price(t.MaxPrice),
		})
	}
	for _, f := range d.FacilityPrices {
		p.Facilities = append(p.Facilities, models.FacilityPrice{
			Name:           f.Name,
			MinPrice:       price(f.MinPrice),
			MaxPrice:       price(f.MaxPrice),
			EstimatedPrice: price(f.EstimatedPrice),
		})
	}
	return p, ErrorSet{}
}

func (d *PlaceDraft) text(field string) (*string, bool) {
	switch field {
	case "name":
		return &d.Name, true
	case "latitude":
		return &d.Latitude, true
	case "longitude":
		return &d.Longitude, true
	case "description":
		return &d.Description, true
	case "visitTime":
		return &d.VisitTime, true
	case "crowdLevel":
		return &d.CrowdLevel, true
	case "bestSeason":
		return &d.BestSeason, true
	case "entryFee":
		return &d.EntryFee, true
	case "openingHours":
		return &d.OpeningHours, true
	}
	return nil, false
}

var placeEntity = entity[PlaceDraft, models.Place]{
	collection: db.PlacesCollection,
	label:      "Place",
	blank:      NewPlaceDraft,
	from:       PlaceDraftFrom,
	build:      PlaceDraft.Place,
	id:         func(p models.Place) string { return p.ID },
	created:    func(p models.Place) time.Time { return p.CreatedAt },
	stamp: func(p *models.Place, created, updated time.Time) {
		p.CreatedAt, p.UpdatedAt = created, updated
	},
}

// PlaceForm is the add/edit form for places.
type PlaceForm struct {
	f *form[PlaceDraft, models.Place]
}

func NewPlaceForm(w store.Writer, n Notifier) *PlaceForm {
	return &PlaceForm{f: newForm(placeEntity, w, n)}
}

func (p *PlaceForm) SetField(field, value string) error {
	return p.f.mutate(func(d *PlaceDraft) ([]string, error) {
		ptr, ok := d.text(field)
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		*ptr = value
		return []string{field}, nil
	})
}

func (p *PlaceForm) ToggleCategory(category string) error {
	if !slices.Contains(models.PlaceCategories, category) {
		return fmt.Errorf("%w: category %s", ErrUnknownOption, category)
	}
	return p.f.mutate(func(d *PlaceDraft) ([]string, error) {
		d.Categories, _ = toggle(d.Categories, category)
		return []string{"categories"}, nil
	})
}

// ToggleEntryType flips Free or Paid. Turning Paid off clears the fee.
func (p *PlaceForm) ToggleEntryType(entryType string) error {
	if entryType != string(models.EntryFree) && entryType != string(models.EntryPaid) {
		return fmt.Errorf("%w: entry type %s", ErrUnknownOption, entryType)
	}
	return p.f.mutate(func(d *PlaceDraft) ([]string, error) {
		var added bool
		d.EntryTypes, added = toggle(d.EntryTypes, entryType)
		if entryType == string(models.EntryPaid) && !added {
			d.EntryFee = ""
		}
		return []string{"entryTypes", "entryFee"}, nil
	})
}

func (p *PlaceForm) ToggleTransport(mode string) error {
	if !slices.Contains(models.TransportModes, mode) {
		return fmt.Errorf("%w: transport mode %s", ErrUnknownOption, mode)
	}
	return p.f.mutate(func(d *PlaceDraft) ([]string, error) {
		d.TransportModes, d.Transport = toggleCompanion(d.TransportModes, d.Transport, mode,
			func(t TransportDraft) string { return t.Mode },
			func(m string) TransportDraft { return TransportDraft{Mode: m, MinPrice: "0", MaxPrice: "0"} })
		return []string{"transport." + mode}, nil
	})
}

// SetTransportPrice sets "minPrice" or "maxPrice" of a selected mode.
func (p *PlaceForm) SetTransportPrice(mode, field, value string) error {
	return p.f.mutate(func(d *PlaceDraft) ([]string, error) {
		i := slices.IndexFunc(d.Transport, func(t TransportDraft) bool { return t.Mode == mode })
		if i < 0 {
			return nil, fmt.Errorf("%w: transport mode %s is not selected", ErrUnknownOption, mode)
		}
		t := slices.Clone(d.Transport)
		switch field {
		case "minPrice":
			t[i].MinPrice = value
		case "maxPrice":
			t[i].MaxPrice = value
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		d.Transport = t
		return []string{"transport." + mode + "." + field}, nil
	})
}

func (p *PlaceForm) ToggleFacility(name string) error {
	if !slices.Contains(models.Facilities, name) {
		return fmt.Errorf("%w: facility %s", ErrUnknownOption, name)
	}
	return p.f.mutate(func(d *PlaceDraft) ([]string, error) {
		d.Facilities, d.FacilityPrices = toggleCompanion(d.Facilities, d.FacilityPrices, name,
			func(f FacilityDraft) string { return f.Name },
			func(n string) FacilityDraft {
				return FacilityDraft{Name: n, MinPrice: "0", MaxPrice: "0", EstimatedPrice: "0"}
			})
		return []string{"facilities." + name}, nil
	})
}

// SetFacilityPrice sets "minPrice", "maxPrice" or "estimatedPrice" of a
// selected facility.
func (p *PlaceForm) SetFacilityPrice(name, field, value string) error {
	return p.f.mutate(func(d *PlaceDraft) ([]string, error) {
		i := slices.IndexFunc(d.FacilityPrices, func(f FacilityDraft) bool { return f.Name == name })
		if i < 0 {
			return nil, fmt.Errorf("%w: facility %s is not selected", ErrUnknownOption, name)
		}
		fp := slices.Clone(d.FacilityPrices)
		switch field {
		case "minPrice":
			fp[i].MinPrice = value
		case "maxPrice":
			fp[i].MaxPrice = value
		case "estimatedPrice":
			fp[i].EstimatedPrice = value
		default:
			return nil, fmt.Errorf("%w: %s", ErrUnknownField, field)
		}
		d.FacilityPrices = fp
		return []string{"facilities." + name + "." + field}, nil
	})
}

func (p *PlaceForm) AddImage(url string) {
	_ = p.f.mutate(func(d *PlaceDraft) ([]string, error) {
		if url = strings.TrimSpace(url); url != "" {
			d.Images = append(slices.Clone(d.Images), url)
		}
		return []string{"images"}, nil
	})
}

func (p *PlaceForm) RemoveImage(i int) {
	_ = p.f.mutate(func(d *PlaceDraft) ([]string, error) {
		if i >= 0 && i < len(d.Images) {
			d.Images = slices.Delete(slices.Clone(d.Images), i, i+1)
		}
		return []string{"images"}, nil
	})
}

// Load replaces the whole draft, e.g. with a decoded request body. The
// selected transport modes and facilities are taken from the price tuples,
// which are what gets stored.
func (p *PlaceForm) Load(d PlaceDraft) { p.f.load(d.withSelections()) }

func (d PlaceDraft) withSelections() PlaceDraft {
	d.TransportModes = companionKeys(d.Transport, func(t TransportDraft) string { return t.Mode })
	d.Facilities = companionKeys(d.FacilityPrices, func(f FacilityDraft) string { return f.Name })
	return d
}

func (p *PlaceForm) Validate() ErrorSet { return p.f.validate() }

// Submit creates the place, or updates the one being edited, with the full
// coerced draft.
func (p *PlaceForm) Submit(ctx context.Context) (string, error) { return p.f.submit(ctx) }

// Seed starts editing rec.
func (p *PlaceForm) Seed(rec models.Place) { p.f.seed(rec) }

// Reset discards the draft and leaves edit mode.
func (p *PlaceForm) Reset() { p.f.reset() }

func (p *PlaceForm) Draft() PlaceDraft {
	d, _, _, _ := p.f.snapshot()
	return d
}

func (p *PlaceForm) Errors() ErrorSet {
	_, errs, _, _ := p.f.snapshot()
	return errs
}

func (p *PlaceForm) Submitting() bool {
	_, _, s, _ := p.f.snapshot()
	return s
}

func (p *PlaceForm) Editing() bool {
	_, _, _, e := p.f.snapshot()
	return e
}
