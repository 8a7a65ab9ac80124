// Package ad provides the listing domain model, persistence, lifecycle
// rules, and the geospatial search and related-listing queries.
package ad

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/rcollings/realtyads/internal/user"
)

// PropertyType classifies a listing.
type PropertyType string

const (
	PropertyHouse     PropertyType = "House"
	PropertyApartment PropertyType = "Apartment"
	PropertyLand      PropertyType = "Land"
	PropertyTownhouse PropertyType = "Townhouse"
)

// ValidPropertyType returns true if s is a known property type.
func ValidPropertyType(s string) bool {
	switch PropertyType(s) {
	case PropertyHouse, PropertyApartment, PropertyLand, PropertyTownhouse:
		return true
	}
	return false
}

// Action says whether a listing is for sale or for rent.
type Action string

const (
	ActionSale Action = "Sale"
	ActionRent Action = "Rent"
)

// ValidAction returns true if s is a known action.
func ValidAction(s string) bool {
	switch Action(s) {
	case ActionSale, ActionRent:
		return true
	}
	return false
}

// Status represents where a listing sits in the market.
type Status string

const (
	StatusInMarket     Status = "In Market"
	StatusDepositTaken Status = "Deposit Taken"
	StatusUnderOffer   Status = "Under Offer"
	StatusSold         Status = "Sold"
	StatusContactAgent Status = "Contact agent"
	StatusRented       Status = "Rented"
	StatusOffMarket    Status = "Off Market"
)

// ValidStatus returns true if s is a known status. Any valid status may
// follow any other; there is no transition graph.
func ValidStatus(s string) bool {
	switch Status(s) {
	case StatusInMarket, StatusDepositTaken, StatusUnderOffer, StatusSold,
		StatusContactAgent, StatusRented, StatusOffMarket:
		return true
	}
	return false
}

// Photo is a reference to an uploaded listing image on the asset host.
type Photo struct {
	URL      string `bson:"url" json:"url"`
	PublicID string `bson:"publicId,omitempty" json:"publicId,omitempty"`
}

// AttrMap is an open-ended attribute map (features, nearby amenities).
// Values are restricted to strings, numbers, and booleans.
type AttrMap map[string]any

// validate rejects empty maps and values outside the allowed kinds.
func (m AttrMap) validate(field string) error {
	if len(m) == 0 {
		return &ValidationError{Field: field}
	}
	for k, v := range m {
		switch v.(type) {
		case string, bool, float64, int, int64:
		default:
			return &ValidationError{Field: field, Reason: fmt.Sprintf("has unsupported value for key %q", k)}
		}
	}
	return nil
}

// Location is a GeoJSON point: coordinates are [longitude, latitude].
type Location struct {
	Type        string    `bson:"type" json:"type"`
	Coordinates []float64 `bson:"coordinates" json:"coordinates"`
}

// NewLocation builds a GeoJSON point from a longitude/latitude pair.
func NewLocation(lon, lat float64) Location {
	return Location{Type: "Point", Coordinates: []float64{lon, lat}}
}

// Ad represents a property listing.
//
// GeocoderRaw is retained for auditing but never serialized to clients.
// Owner is populated on public views only; it is not persisted.
type Ad struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"_id"`
	Address      string             `bson:"address" json:"address"`
	Photos       []Photo            `bson:"photos" json:"photos"`
	Description  string             `bson:"description" json:"description"`
	PropertyType PropertyType       `bson:"propertyType" json:"propertyType"`
	Price        string             `bson:"price" json:"price"`
	PriceValue   float64            `bson:"priceValue" json:"-"`
	LandSize     float64            `bson:"landSize,omitempty" json:"landSize,omitempty"`
	LandSizeType string             `bson:"landSizeType,omitempty" json:"landSizeType,omitempty"`
	Action       Action             `bson:"action" json:"action"`
	Bedrooms     int                `bson:"bedrooms" json:"bedrooms"`
	Bathrooms    int                `bson:"bathrooms" json:"bathrooms"`
	Carpark      int                `bson:"carpark" json:"carpark"`
	Title        string             `bson:"title" json:"title"`
	Slug         string             `bson:"slug" json:"slug"`
	Features     AttrMap            `bson:"features" json:"features"`
	Nearby       AttrMap            `bson:"nearby" json:"nearby"`
	PostedBy     primitive.ObjectID `bson:"postedBy" json:"postedBy"`
	Published    bool               `bson:"published" json:"published"`
	Status       Status             `bson:"status" json:"status"`
	Views        int64              `bson:"views" json:"views"`
	Location     Location           `bson:"location" json:"location"`
	GeocoderRaw  json.RawMessage    `bson:"geocoderRaw,omitempty" json:"-"`
	Distance     float64            `bson:"distance,omitempty" json:"distance,omitempty"`
	Owner        *user.Summary      `bson:"-" json:"owner,omitempty"`
	CreatedAt    time.Time          `bson:"createdAt" json:"createdAt"`
	UpdatedAt    time.Time          `bson:"updatedAt" json:"updatedAt"`
}

// ValidationError reports a missing or malformed request field.
type ValidationError struct {
	Field  string
	Reason string // empty means "is required"
}

func (e *ValidationError) Error() string {
	if e.Reason == "" {
		return e.Field + " is required"
	}
	return e.Field + " " + e.Reason
}

// Input is the request payload for creating or updating a listing.
type Input struct {
	Address      string  `json:"address"`
	Photos       []Photo `json:"photos"`
	Description  string  `json:"description"`
	PropertyType string  `json:"propertyType"`
	Price        string  `json:"price"`
	LandSize     string  `json:"landsize"`
	LandSizeType string  `json:"landsizeType"`
	Action       string  `json:"action"`
	Bedrooms     *int    `json:"bedrooms"`
	Bathrooms    *int    `json:"bathrooms"`
	Carpark      *int    `json:"carpark"`
	Title        string  `json:"title"`
	Features     AttrMap `json:"features"`
	Nearby       AttrMap `json:"nearBy"`
	Published    *bool   `json:"published"`
	Views        *int64  `json:"views"`
	Status       string  `json:"status"`
}

// Validate checks presence and shape of every required field, in a fixed
// order, before any geocoding or persistence happens. Land size fields
// are required exactly when the property type is Land.
func (in *Input) Validate() error {
	if strings.TrimSpace(in.Address) == "" {
		return &ValidationError{Field: "Address"}
	}
	if len(in.Photos) == 0 {
		return &ValidationError{Field: "Photos"}
	}
	if strings.TrimSpace(in.Description) == "" {
		return &ValidationError{Field: "Description"}
	}
	if strings.TrimSpace(in.PropertyType) == "" {
		return &ValidationError{Field: "Property Type"}
	}
	if !ValidPropertyType(strings.TrimSpace(in.PropertyType)) {
		return &ValidationError{Field: "Property Type", Reason: "is invalid"}
	}
	if strings.TrimSpace(in.Price) == "" {
		return &ValidationError{Field: "Price"}
	}
	if strings.TrimSpace(in.Action) == "" {
		return &ValidationError{Field: "Action"}
	}
	if !ValidAction(strings.TrimSpace(in.Action)) {
		return &ValidationError{Field: "Action", Reason: "is invalid"}
	}
	if in.Bedrooms == nil || *in.Bedrooms < 0 {
		return &ValidationError{Field: "Bedrooms"}
	}
	if in.Bathrooms == nil || *in.Bathrooms < 0 {
		return &ValidationError{Field: "Bathrooms"}
	}
	if in.Carpark == nil || *in.Carpark < 0 {
		return &ValidationError{Field: "Carpark"}
	}
	if strings.TrimSpace(in.Title) == "" {
		return &ValidationError{Field: "Title"}
	}
	if err := in.Features.validate("Features"); err != nil {
		return err
	}
	if err := in.Nearby.validate("Nearby"); err != nil {
		return err
	}
	if in.Published == nil {
		return &ValidationError{Field: "Published"}
	}
	if in.Views == nil || *in.Views < 0 {
		return &ValidationError{Field: "Views"}
	}
	if strings.TrimSpace(in.Status) == "" {
		return &ValidationError{Field: "Status"}
	}
	if !ValidStatus(strings.TrimSpace(in.Status)) {
		return &ValidationError{Field: "Status", Reason: "is invalid"}
	}

	if PropertyType(strings.TrimSpace(in.PropertyType)) == PropertyLand {
		if strings.TrimSpace(in.LandSize) == "" {
			return &ValidationError{Field: "Land Size"}
		}
		if _, err := strconv.ParseFloat(strings.TrimSpace(in.LandSize), 64); err != nil {
			return &ValidationError{Field: "Land Size", Reason: "must be numeric"}
		}
		if strings.TrimSpace(in.LandSizeType) == "" {
			return &ValidationError{Field: "Land Size Type"}
		}
	}

	return nil
}

// apply copies the input's mutable fields onto ad. Land size fields are
// cleared when the property type is not Land.
func (in *Input) apply(ad *Ad) {
	propertyType := PropertyType(strings.TrimSpace(in.PropertyType))

	ad.Address = strings.TrimSpace(in.Address)
	ad.Photos = in.Photos
	ad.Description = strings.TrimSpace(in.Description)
	ad.PropertyType = propertyType
	ad.Price = strings.TrimSpace(in.Price)
	ad.PriceValue = parsePrice(in.Price)
	ad.Action = Action(strings.TrimSpace(in.Action))
	ad.Bedrooms = *in.Bedrooms
	ad.Bathrooms = *in.Bathrooms
	ad.Carpark = *in.Carpark
	ad.Title = strings.TrimSpace(in.Title)
	ad.Features = in.Features
	ad.Nearby = in.Nearby
	ad.Published = *in.Published
	ad.Views = *in.Views
	ad.Status = Status(strings.TrimSpace(in.Status))

	if propertyType == PropertyLand {
		size, _ := strconv.ParseFloat(strings.TrimSpace(in.LandSize), 64)
		ad.LandSize = size
		ad.LandSizeType = strings.TrimSpace(in.LandSizeType)
	} else {
		ad.LandSize = 0
		ad.LandSizeType = ""
	}
}

// parsePrice extracts the numeric value of a price string for band
// filtering. Non-numeric prices ("Contact agent") yield zero.
func parsePrice(price string) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(price), 64)
	if err != nil {
		return 0
	}
	return v
}
