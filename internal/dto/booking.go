package dto

import "github.com/roadready/driveschool-api/internal/models"

// TimeWindowPayload is the wire form of a lesson window.
type TimeWindowPayload struct {
	Date  string `json:"date" validate:"required,datetime=2006-01-02"`
	Start string `json:"start" validate:"required,datetime=15:04"`
	End   string `json:"end" validate:"required,datetime=15:04"`
}

// BookLessonRequest is the payload for booking a lesson.
type BookLessonRequest struct {
	StudentID    string            `json:"student_id" validate:"required"`
	TutorID      string            `json:"tutor_id" validate:"required"`
	Window       TimeWindowPayload `json:"window" validate:"required"`
	Location     string            `json:"location" validate:"required,max=255"`
	VehicleClass string            `json:"vehicle_class" validate:"required"`
}

// RescheduleLessonRequest moves an existing lesson to a new window.
type RescheduleLessonRequest struct {
	Window   TimeWindowPayload `json:"window" validate:"required"`
	Location *string           `json:"location" validate:"omitempty,max=255"`
}

// BookingOutcome reports the result of a successful booking. Allocation is
// nil when every vehicle was taken; the booking itself still stands.
type BookingOutcome struct {
	Lesson     *models.Lesson            `json:"lesson"`
	Allocation *models.VehicleAllocation `json:"allocation,omitempty"`
	Suggestion *models.VehicleSuggestion `json:"suggestion,omitempty"`
	Warnings   []string                  `json:"warnings,omitempty"`
}

// RescheduleOutcome reports the result of moving a lesson. When the previous
// vehicle allocation no longer covers the new window it is dropped and
// flagged here so the caller can re-allocate explicitly.
type RescheduleOutcome struct {
	Lesson            *models.Lesson `json:"lesson"`
	AllocationDropped bool           `json:"allocation_dropped"`
	Warnings          []string       `json:"warnings,omitempty"`
}

// SuggestVehiclesQuery asks for ranked vehicle candidates for a window.
type SuggestVehiclesQuery struct {
	Window       TimeWindowPayload `json:"window" validate:"required"`
	VehicleClass string            `json:"vehicle_class" validate:"required"`
}

// SuggestTimesQuery asks for open hourly slots for a tutor/student pair.
type SuggestTimesQuery struct {
	TutorID   string `json:"tutor_id" validate:"required"`
	StudentID string `json:"student_id" validate:"required"`
	Date      string `json:"date" validate:"required,datetime=2006-01-02"`
}

// TimeSlotSuggestion is one open hourly slot with a presentation confidence.
type TimeSlotSuggestion struct {
	Date              string `json:"date"`
	Start             string `json:"start"`
	End               string `json:"end"`
	AvailableVehicles int    `json:"available_vehicles"`
	Confidence        int    `json:"confidence"`
	Reason            string `json:"reason"`
}

// TimetableRunResult summarises a bulk timetable generation run.
type TimetableRunResult struct {
	Created   int `json:"created"`
	Attempted int `json:"attempted"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}
