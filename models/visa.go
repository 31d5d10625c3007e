package models

import (
	"time"

	"gorm.io/datatypes"
)

// Entry types accepted for a visa offering.
var EntryTypes = []string{
	"Single-Entry Visa",
	"Double-Entry Visa",
	"Multiple-Entry Visa",
	"Transit Visa",
	"Visa on Arrival",
	"Electronic Visa (e-Visa)",
	"Re-Entry Visa",
}

// Application lifecycle states.
const (
	StatusPending    = "Pending"
	StatusProcessing = "Processing"
	StatusApproved   = "Approved"
	StatusRejected   = "Rejected"
)

const (
	ApplicationIndividual = "Individual"
	ApplicationGroup      = "Group"
)

// Visa is a priced processing offering for one country.
type Visa struct {
	ID                  uint      `json:"id" gorm:"primaryKey"`
	Country             string    `json:"country" gorm:"size:100;not null;index" validate:"required,max=100"`
	Title               string    `json:"title" gorm:"size:200;not null" validate:"required,max=200"`
	EntryType           string    `json:"entry_type" gorm:"size:50;not null" validate:"required,max=50"`
	Validity            string    `json:"validity" gorm:"size:50" validate:"max=50"`
	Duration            string    `json:"duration" gorm:"size:50" validate:"max=50"`
	ProcessingTime      string    `json:"processing_time" gorm:"size:100;not null" validate:"required,max=100"`
	CostPrice           int       `json:"cost_price" gorm:"not null" validate:"gte=0"`
	ServiceCharge       int       `json:"service_charge" gorm:"not null" validate:"gte=0"`
	SellingPrice        int       `json:"selling_price" gorm:"not null;index" validate:"gte=0"`
	DocumentsRequired   string    `json:"documents_required" gorm:"type:text"`
	PhotographyRequired string    `json:"photography_required" gorm:"type:text"`
	VisaType            string    `json:"visa_type" gorm:"size:100" validate:"max=100"`
	CardImage           string    `json:"card_image" gorm:"size:255"`
	SupplierID          *uint     `json:"supplier"`
	Supplier            *Supplier `json:"-" gorm:"foreignKey:SupplierID;constraint:OnDelete:SET NULL" validate:"-"`
	IsActive            bool      `json:"is_active" gorm:"not null;index"`
	CreatedAt           time.Time `json:"created_at"`
}

// VisaApplication is an order for one or more travellers. Only its status
// changes after submission.
type VisaApplication struct {
	ID              uint            `json:"id" gorm:"primaryKey"`
	VisaID          uint            `json:"visa" gorm:"not null;index" validate:"required"`
	Visa            Visa            `json:"-" gorm:"foreignKey:VisaID;constraint:OnDelete:CASCADE" validate:"-"`
	ApplicationType string          `json:"application_type" gorm:"size:20;not null" validate:"required,oneof=Individual Group"`
	InternalID      string          `json:"internal_id" gorm:"size:100" validate:"max=100"`
	GroupName       string          `json:"group_name" gorm:"size:100" validate:"max=100"`
	DepartureDate   Date            `json:"departure_date" gorm:"type:date" validate:"required"`
	ReturnDate      Date            `json:"return_date" gorm:"type:date" validate:"required"`
	TotalPrice      float64         `json:"total_price" gorm:"type:decimal(12,2);not null" validate:"gte=0"`
	Status          string          `json:"status" gorm:"size:20;not null;index"`
	Reference       string          `json:"reference" gorm:"size:36;uniqueIndex"`
	CreatedAt       time.Time       `json:"created_at" gorm:"index"`
	Applicants      []VisaApplicant `json:"applicants" gorm:"foreignKey:ApplicationID;constraint:OnDelete:CASCADE" validate:"-"`
}

type VisaApplicant struct {
	ID                  uint                     `json:"id" gorm:"primaryKey"`
	ApplicationID       uint                     `json:"application" gorm:"not null;index" validate:"required"`
	FirstName           string                   `json:"first_name" gorm:"size:100;not null" validate:"max=100"`
	LastName            string                   `json:"last_name" gorm:"size:100" validate:"max=100"`
	PassportNumber      string                   `json:"passport_number" gorm:"size:50;not null" validate:"max=50"`
	Nationality         string                   `json:"nationality" gorm:"size:50" validate:"max=50"`
	Sex                 string                   `json:"sex" gorm:"size:10" validate:"omitempty,oneof=Male Female Other"`
	DOB                 Date                     `json:"dob" gorm:"column:dob;type:date"`
	PlaceOfBirth        string                   `json:"place_of_birth" gorm:"size:100" validate:"max=100"`
	PlaceOfIssue        string                   `json:"place_of_issue" gorm:"size:100" validate:"max=100"`
	MaritalStatus       string                   `json:"marital_status" gorm:"size:20" validate:"omitempty,oneof=Single Married Divorced Widowed"`
	Phone               string                   `json:"phone" gorm:"size:20" validate:"max=20"`
	DateOfIssue         Date                     `json:"date_of_issue" gorm:"type:date"`
	DateOfExpiry        Date                     `json:"date_of_expiry" gorm:"type:date"`
	PassportFront       string                   `json:"passport_front" gorm:"size:255"`
	Photo               string                   `json:"photo" gorm:"size:255"`
	AdditionalDocuments []VisaAdditionalDocument `json:"additional_documents" gorm:"foreignKey:ApplicantID;constraint:OnDelete:CASCADE" validate:"-"`
}

type VisaAdditionalDocument struct {
	ID           uint      `json:"id" gorm:"primaryKey"`
	ApplicantID  uint      `json:"applicant" gorm:"not null;index" validate:"required"`
	DocumentName string    `json:"document_name" gorm:"size:100" validate:"max=100"`
	File         string    `json:"file" gorm:"size:255;not null"`
	CreatedAt    time.Time `json:"created_at"`
}

type Supplier struct {
	ID            uint           `json:"id" gorm:"primaryKey"`
	CompanyName   string         `json:"company_name" gorm:"size:255;not null" validate:"required,max=255"`
	Services      datatypes.JSON `json:"services"`
	AddressLine1  string         `json:"address_line1" gorm:"size:255;not null" validate:"required,max=255"`
	AddressLine2  string         `json:"address_line2" gorm:"size:255" validate:"max=255"`
	City          string         `json:"city" gorm:"size:100;not null" validate:"required,max=100"`
	State         string         `json:"state" gorm:"size:100;not null" validate:"required,max=100"`
	Country       string         `json:"country" gorm:"size:100;not null" validate:"required,max=100"`
	ContactNo     string         `json:"contact_no" gorm:"size:20;not null" validate:"required,max=20"`
	ContactPerson string         `json:"contact_person" gorm:"size:100;not null" validate:"required,max=100"`
	CreatedAt     time.Time      `json:"created_at"`
}
