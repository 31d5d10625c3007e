package models

import "time"

// Package categories.
const (
	CategoryDomestic      = "Domestic"
	CategoryInternational = "International"
	CategoryUmrah         = "Umrah"
)

// TitleMaxLen bounds titles and master template names.
const TitleMaxLen = 200

// HolidayPackage is a sellable multi-day itinerary. Children are replaced
// through the catalog save path, never through generic CRUD.
type HolidayPackage struct {
	ID           uint   `json:"id" gorm:"primaryKey"`
	Title        string `json:"title" gorm:"size:200;not null" validate:"required,max=200"`
	Description  string `json:"description" gorm:"type:text"`
	Category     string `json:"category" gorm:"size:20;not null" validate:"required,oneof=Domestic International Umrah"`
	StartingCity string `json:"starting_city" gorm:"size:100;not null" validate:"required,max=100"`
	Days         int    `json:"days" gorm:"not null" validate:"required,gte=1"`
	StartDate    Date   `json:"start_date" gorm:"type:date"`
	OfferPrice   int    `json:"Offer_price" gorm:"column:offer_price;not null" validate:"required,gte=0"`
	Price        *int   `json:"price" validate:"omitempty,gte=0"`
	GroupSize    int    `json:"group_size" gorm:"not null" validate:"gte=0"`
	WithFlight   bool   `json:"with_flight" gorm:"not null;index"`
	HeaderImage  string `json:"header_image" gorm:"size:255"`
	CardImage    string `json:"card_image" gorm:"size:255"`
	// is_active has no column default: gorm would swap an explicit false for it.
	IsActive  bool      `json:"is_active" gorm:"not null;index"`
	CreatedAt time.Time `json:"created_at"`

	Itinerary    []ItineraryDay       `json:"-" gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE"`
	Inclusions   []Inclusion          `json:"-" gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE"`
	Exclusions   []Exclusion          `json:"-" gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE"`
	Highlights   []Highlight          `json:"-" gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE"`
	Destinations []PackageDestination `json:"-" gorm:"foreignKey:PackageID;constraint:OnDelete:CASCADE"`
}

type ItineraryDay struct {
	ID               uint             `json:"id" gorm:"primaryKey"`
	PackageID        uint             `json:"package" gorm:"not null;uniqueIndex:idx_itinerary_package_day"`
	MasterTemplateID *uint            `json:"master_template"`
	MasterTemplate   *ItineraryMaster `json:"-" gorm:"foreignKey:MasterTemplateID;constraint:OnDelete:SET NULL" validate:"-"`
	DayNumber        int              `json:"day_number" gorm:"not null;uniqueIndex:idx_itinerary_package_day"`
	Title            string           `json:"title" gorm:"size:200;not null"`
	Description      string           `json:"description" gorm:"type:text"`
	Image            string           `json:"image" gorm:"size:255"`
}

// ItineraryMaster is a reusable day template shared across packages.
type ItineraryMaster struct {
	ID            uint         `json:"id" gorm:"primaryKey"`
	DestinationID *uint        `json:"destination"`
	Destination   *Destination `json:"-" gorm:"foreignKey:DestinationID;constraint:OnDelete:SET NULL" validate:"-"`
	Name          string       `json:"name" gorm:"size:200;not null;index" validate:"required,max=200"`
	Title         string       `json:"title" gorm:"size:200;not null" validate:"required,max=200"`
	Description   string       `json:"description" gorm:"type:text"`
	Image         string       `json:"image" gorm:"size:255"`
}

type Inclusion struct {
	ID        uint   `json:"-" gorm:"primaryKey"`
	PackageID uint   `json:"-" gorm:"not null;index"`
	Text      string `json:"text" gorm:"size:255;not null"`
}

type Exclusion struct {
	ID        uint   `json:"-" gorm:"primaryKey"`
	PackageID uint   `json:"-" gorm:"not null;index"`
	Text      string `json:"text" gorm:"size:255;not null"`
}

type Highlight struct {
	ID        uint   `json:"-" gorm:"primaryKey"`
	PackageID uint   `json:"-" gorm:"not null;index"`
	Text      string `json:"text" gorm:"size:255;not null"`
}

type PackageDestination struct {
	ID            uint        `json:"-" gorm:"primaryKey"`
	PackageID     uint        `json:"-" gorm:"not null;index"`
	DestinationID uint        `json:"-" gorm:"not null;index"`
	Destination   Destination `json:"-" gorm:"foreignKey:DestinationID;constraint:OnDelete:CASCADE" validate:"-"`
	Nights        int         `json:"nights" gorm:"not null;default:1"`
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
