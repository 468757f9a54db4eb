package models

import "time"

// VehicleClass enumerates the licence classes a vehicle can serve.
type VehicleClass string

const (
	VehicleClass1 VehicleClass = "class1"
	VehicleClass2 VehicleClass = "class2"
	VehicleClass3 VehicleClass = "class3"
	VehicleClass4 VehicleClass = "class4"
	VehicleClass5 VehicleClass = "class5"
)

// Valid reports whether the class is one of the known licence classes.
func (c VehicleClass) Valid() bool {
	switch c {
	case VehicleClass1, VehicleClass2, VehicleClass3, VehicleClass4, VehicleClass5:
		return true
	}
	return false
}

// Vehicle represents a physical training vehicle. The available flag is
// operator controlled; scheduling never flips it.
type Vehicle struct {
	ID           string       `db:"id" json:"id"`
	Registration string       `db:"registration_number" json:"registration_number"`
	Model        string       `db:"model" json:"model"`
	Class        VehicleClass `db:"vehicle_class" json:"vehicle_class"`
	Available    bool         `db:"available" json:"available"`
	CreatedAt    time.Time    `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time    `db:"updated_at" json:"updated_at"`
}

// VehicleFilter captures filtering options for listing vehicles.
type VehicleFilter struct {
	Class     *VehicleClass
	Available *bool
	Page      int
	PageSize  int
}

// VehicleAllocation reserves a vehicle for a lesson. The lesson's window is
// denormalised onto the row so the storage-layer exclusion constraint on
// (vehicle_id, lesson_date, time range) can arbitrate concurrent reservations.
type VehicleAllocation struct {
	ID          string    `db:"id" json:"id"`
	LessonID    string    `db:"lesson_id" json:"lesson_id"`
	VehicleID   string    `db:"vehicle_id" json:"vehicle_id"`
	Date        time.Time `db:"lesson_date" json:"date"`
	StartTime   string    `db:"start_time" json:"start_time"`
	EndTime     string    `db:"end_time" json:"end_time"`
	AllocatedAt time.Time `db:"allocated_at" json:"allocated_at"`
}

// SuggestionTier labels how well a suggested vehicle fits the request.
type SuggestionTier string

const (
	TierPerfect     SuggestionTier = "PERFECT"
	TierAlternative SuggestionTier = "ALTERNATIVE"
)

// Fixed presentation confidences per tier. These are heuristics carried
// over from the legacy suggestion engine, not statistical scores.
const (
	ConfidencePerfect     = 95
	ConfidenceAlternative = 75
)

// VehicleSuggestion ranks one candidate vehicle for a lesson window.
type VehicleSuggestion struct {
	Vehicle    Vehicle        `json:"vehicle"`
	Tier       SuggestionTier `json:"tier"`
	Confidence int            `json:"confidence"`
	Reason     string         `json:"reason"`
}

// VehicleUtilization summarises a vehicle's recent allocation load.
type VehicleUtilization struct {
	Vehicle       Vehicle `json:"vehicle"`
	RecentLessons int     `json:"recent_lessons"`
	Utilization   float64 `json:"utilization_percentage"`
	Band          string  `json:"band"`
}
