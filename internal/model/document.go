package model

import "time"

// Document is one named JSON document persisted by the SQL document store.
type Document struct {
	Name      string    `gorm:"primaryKey;size:128"`
	Body      []byte    `gorm:"not null"`
	UpdatedAt time.Time `gorm:"not null"`
}
