package models

// Reference tables are flat lookup rows. Names are not unique at the database
// level (except Country); seed routines match on exact name.

type Destination struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	Name    string `json:"name" gorm:"size:100;not null;index" validate:"required,max=100"`
	Region  string `json:"region" gorm:"size:100" validate:"max=100"`
	City    string `json:"city" gorm:"size:100" validate:"max=100"`
	Country string `json:"country" gorm:"size:100" validate:"max=100"`
}

type StartingCity struct {
	ID     uint   `json:"id" gorm:"primaryKey"`
	Name   string `json:"name" gorm:"size:100;not null;index" validate:"required,max=100"`
	Region string `json:"region" gorm:"size:100" validate:"max=100"`
}

func (StartingCity) TableName() string {
	return "starting_cities"
}

type Country struct {
	ID   uint   `json:"id" gorm:"primaryKey"`
	Name string `json:"name" gorm:"size:100;not null;uniqueIndex" validate:"required,max=100"`
	Code string `json:"code" gorm:"size:3" validate:"omitempty,max=3"`
}

func (Country) TableName() string {
	return "countries"
}

type Nationality struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	Country     string `json:"country" gorm:"size:100;not null" validate:"required,max=100"`
	Nationality string `json:"nationality" gorm:"size:100;not null" validate:"required,max=100"`
	Continent   string `json:"continent" gorm:"size:50;not null;index" validate:"required,max=50"`
}

func (Nationality) TableName() string {
	return "nationalities"
}

type UmrahDestination struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	Name    string `json:"name" gorm:"size:100;not null" validate:"required,max=100"`
	Country string `json:"country" gorm:"size:100;not null" validate:"required,max=100"`
}
