package models

import "time"

type SchemaVersion struct {
	Version   int `gorm:"primaryKey;autoIncrement:false"`
	AppliedAt time.Time
}

// All returns every persisted model in migration order.
func All() []interface{} {
	return []interface{}{
		&User{},
		&Application{},
		&ApplicationAccess{},
		&License{},
		&LicenseUsage{},
		&LicenseFormat{},
		&CustomMessage{},
	}
}
