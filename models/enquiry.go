package models

import (
	"time"

	"gorm.io/datatypes"
)

// Enquiries are lead-capture records. Trip details ride along as JSON lists.

type HolidayEnquiry struct {
	ID              uint           `json:"id" gorm:"primaryKey"`
	PackageType     string         `json:"package_type" gorm:"size:100" validate:"max=100"`
	StartCity       string         `json:"start_city" gorm:"size:100;not null" validate:"required,max=100"`
	Nationality     string         `json:"nationality" gorm:"size:50;not null" validate:"required,max=50"`
	TravelDate      Date           `json:"travel_date" gorm:"type:date" validate:"required"`
	Rooms           int            `json:"rooms" gorm:"not null" validate:"gte=0"`
	StarRating      string         `json:"star_rating" gorm:"size:10;not null" validate:"required,max=10"`
	HolidayType     string         `json:"holiday_type" gorm:"size:50;not null" validate:"required,max=50"`
	Budget          string         `json:"budget" gorm:"size:50" validate:"max=50"`
	FullName        string         `json:"full_name" gorm:"size:100;not null" validate:"required,max=100"`
	Email           string         `json:"email" gorm:"size:254;not null" validate:"required,email"`
	Phone           string         `json:"phone" gorm:"size:20;not null" validate:"required,max=20"`
	Adults          int            `json:"adults" validate:"gte=0"`
	Children        int            `json:"children" validate:"gte=0"`
	Message         string         `json:"message" gorm:"type:text"`
	Cities          datatypes.JSON `json:"cities"`
	RoomDetails     datatypes.JSON `json:"room_details"`
	RoomType        string         `json:"room_type" gorm:"size:100" validate:"max=100"`
	MealPlan        string         `json:"meal_plan" gorm:"size:100" validate:"max=100"`
	TransferDetails string         `json:"transfer_details" gorm:"size:100" validate:"max=100"`
	OtherInclusions string         `json:"other_inclusions" gorm:"type:text"`
	Nights          int            `json:"nights" validate:"gte=0"`
	CreatedAt       time.Time      `json:"created_at" gorm:"index"`
}

type UmrahEnquiry struct {
	ID          uint           `json:"id" gorm:"primaryKey"`
	PackageType string         `json:"package_type" gorm:"size:100" validate:"max=100"`
	StartCity   string         `json:"start_city" gorm:"size:100;not null" validate:"required,max=100"`
	Nationality string         `json:"nationality" gorm:"size:50;not null" validate:"required,max=50"`
	TravelDate  Date           `json:"travel_date" gorm:"type:date" validate:"required"`
	Rooms       int            `json:"rooms" gorm:"not null" validate:"gte=0"`
	StarRating  string         `json:"star_rating" gorm:"size:10;not null" validate:"required,max=10"`
	Budget      string         `json:"budget" gorm:"size:50" validate:"max=50"`
	FullName    string         `json:"full_name" gorm:"size:100;not null" validate:"required,max=100"`
	Email       string         `json:"email" gorm:"size:254;not null" validate:"required,email"`
	Phone       string         `json:"phone" gorm:"size:20;not null" validate:"required,max=20"`
	Adults      int            `json:"adults" validate:"gte=0"`
	Children    int            `json:"children" validate:"gte=0"`
	Infants     int            `json:"infants" validate:"gte=0"`
	Message     string         `json:"message" gorm:"type:text"`
	Cities      datatypes.JSON `json:"cities"`
	RoomDetails datatypes.JSON `json:"room_details"`
	CreatedAt   time.Time      `json:"created_at" gorm:"index"`
}

// Enquiry types used by the contact, cab, cruise and hotel forms.
var EnquiryTypes = []string{"General", "Cab", "Cruise", "Hotel"}

type Enquiry struct {
	ID          uint      `json:"id" gorm:"primaryKey"`
	Name        string    `json:"name" gorm:"size:100;not null" validate:"required,max=100"`
	Email       string    `json:"email" gorm:"size:254" validate:"omitempty,email"`
	Phone       string    `json:"phone" gorm:"size:20;not null" validate:"required,max=20"`
	Destination string    `json:"destination" gorm:"size:200" validate:"max=200"`
	Purpose     string    `json:"purpose" gorm:"type:text"`
	EnquiryType string    `json:"enquiry_type" gorm:"size:50;not null;index" validate:"required,max=50"`
	CreatedAt   time.Time `json:"created_at" gorm:"index"`
}

func (Enquiry) TableName() string {
	return "enquiries"
}

func (HolidayEnquiry) TableName() string {
	return "holiday_enquiries"
}

func (UmrahEnquiry) TableName() string {
	return "umrah_enquiries"
}
