package api

import (
	"time"

	"github.com/google/uuid"
)

type BookAppointmentRequest struct {
	PatientID     string    `json:"patient_id"`
	DoctorID      string    `json:"doctor_id,omitempty"`
	RoomID        string    `json:"room_id,omitempty"`
	BranchID      string    `json:"branch_id"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	Type          string    `json:"type,omitempty"`
	Notes         string    `json:"notes,omitempty"`
	CreatedBy     string    `json:"created_by"`
	StaffOverride bool      `json:"staff_override,omitempty"`
}

type ChangeStatusRequest struct {
	Status string  `json:"status"`
	Reason *string `json:"reason,omitempty"`
}

type AppointmentResponse struct {
	ID        uuid.UUID  `json:"id"`
	PatientID uuid.UUID  `json:"patient_id"`
	DoctorID  *uuid.UUID `json:"doctor_id,omitempty"`
	RoomID    *uuid.UUID `json:"room_id,omitempty"`
	BranchID  uuid.UUID  `json:"branch_id"`
	Start     time.Time  `json:"start"`
	End       time.Time  `json:"end"`
	Status    string     `json:"status"`
	Type      string     `json:"type,omitempty"`
	Notes     string     `json:"notes,omitempty"`
	Reason    *string    `json:"reason,omitempty"`
}

type SlotResponse struct {
	DoctorID uuid.UUID `json:"doctor_id"`
	Start    time.Time `json:"start"`
	End      time.Time `json:"end"`
}

type CreateShiftRequest struct {
	DoctorID   string    `json:"doctor_id"`
	RoomID     string    `json:"room_id"`
	BranchID   string    `json:"branch_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Recurrence string    `json:"recurrence,omitempty"`
}

type RescheduleShiftRequest struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

type ShiftResponse struct {
	ID         uuid.UUID `json:"id"`
	DoctorID   uuid.UUID `json:"doctor_id"`
	RoomID     uuid.UUID `json:"room_id"`
	BranchID   uuid.UUID `json:"branch_id"`
	Start      time.Time `json:"start"`
	End        time.Time `json:"end"`
	Recurrence string    `json:"recurrence"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
