package models

import "gorm.io/gorm"

// Slot is one entry of the durable key-value store. Value holds a JSON document.
type Slot struct {
	gorm.Model
	Name  string `gorm:"uniqueIndex;not null"`
	Value string `gorm:"type:text"`
}
