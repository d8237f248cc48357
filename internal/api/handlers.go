package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/mknumberone/clinic-scheduling/internal/appointment"
	"github.com/mknumberone/clinic-scheduling/internal/availability"
	"github.com/mknumberone/clinic-scheduling/internal/schedule"
	"github.com/mknumberone/clinic-scheduling/internal/scheduling"
)

const dateLayout = "2006-01-02"

func availabilityHandler(engine *availability.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		branchID, err := uuid.Parse(q.Get("branch_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branch_id must be a valid UUID")
			return
		}

		date, err := time.Parse(dateLayout, q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		query := availability.Query{BranchID: branchID, Date: date}

		if v := q.Get("doctor_id"); v != "" {
			id, err := uuid.Parse(v)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			query.DoctorID = &id
		}
		if v := q.Get("specialty"); v != "" {
			query.Specialty = &v
		}
		if v := q.Get("slot_minutes"); v != "" {
			mins, err := strconv.Atoi(v)
			if err != nil || mins <= 0 {
				writeError(w, http.StatusBadRequest, "invalid_slot_minutes", "slot_minutes must be a positive integer")
				return
			}
			query.SlotDuration = time.Duration(mins) * time.Minute
		}

		slots, err := engine.ComputeAvailableSlots(r.Context(), query)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]SlotResponse, 0, len(slots))
		for _, s := range slots {
			resp = append(resp, SlotResponse{
				DoctorID: s.DoctorID,
				Start:    s.Window.Start,
				End:      s.Window.End,
			})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func bookAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req BookAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		patientID, err := uuid.Parse(req.PatientID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}
		branchID, err := uuid.Parse(req.BranchID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branch_id must be a valid UUID")
			return
		}
		createdBy, err := uuid.Parse(req.CreatedBy)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_created_by", "created_by must be a valid UUID")
			return
		}

		booking := appointment.BookingRequest{
			PatientID:     patientID,
			BranchID:      branchID,
			Window:        scheduling.Window{Start: req.Start, End: req.End},
			Type:          req.Type,
			Notes:         req.Notes,
			CreatedBy:     createdBy,
			StaffOverride: req.StaffOverride,
		}

		if req.DoctorID != "" {
			id, err := uuid.Parse(req.DoctorID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
				return
			}
			booking.DoctorID = &id
		}
		if req.RoomID != "" {
			id, err := uuid.Parse(req.RoomID)
			if err != nil {
				writeError(w, http.StatusBadRequest, "invalid_room_id", "room_id must be a valid UUID")
				return
			}
			booking.RoomID = &id
		}

		appt, err := svc.Book(r.Context(), booking)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func changeStatusHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		var req ChangeStatusRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		target, err := appointment.ParseStatus(req.Status)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_status", err.Error())
			return
		}

		appt, err := svc.ChangeStatus(r.Context(), id, target, req.Reason)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func getAppointmentHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "id must be a valid UUID")
			return
		}

		appt, err := svc.GetAppointment(r.Context(), id)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *appointment.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		patientID, err := uuid.Parse(q.Get("patient_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_patient_id", "patient_id must be a valid UUID")
			return
		}

		limit, _ := strconv.Atoi(q.Get("limit"))
		offset, _ := strconv.Atoi(q.Get("offset"))

		appts, err := svc.ListByPatient(r.Context(), patientID, limit, offset)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]AppointmentResponse, 0, len(appts))
		for i := range appts {
			resp = append(resp, toAppointmentResponse(&appts[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createShiftHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateShiftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		doctorID, err := uuid.Parse(req.DoctorID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		roomID, err := uuid.Parse(req.RoomID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_room_id", "room_id must be a valid UUID")
			return
		}
		branchID, err := uuid.Parse(req.BranchID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_branch_id", "branch_id must be a valid UUID")
			return
		}

		kind, err := scheduling.ParseRecurrenceKind(req.Recurrence)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_recurrence", err.Error())
			return
		}

		shift, err := svc.CreateShift(r.Context(), schedule.CreateShiftRequest{
			DoctorID:   doctorID,
			RoomID:     roomID,
			BranchID:   branchID,
			Start:      req.Start,
			End:        req.End,
			Recurrence: scheduling.Recurrence{Kind: kind},
		})
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toShiftResponse(shift))
	}
}

func rescheduleShiftHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_shift_id", "id must be a valid UUID")
			return
		}

		var req RescheduleShiftRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		shift, err := svc.RescheduleShift(r.Context(), id, req.Start, req.End)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, toShiftResponse(shift))
	}
}

func deleteShiftHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := uuid.Parse(chi.URLParam(r, "id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_shift_id", "id must be a valid UUID")
			return
		}

		if err := svc.DeleteShift(r.Context(), id); err != nil {
			handleDomainError(w, err)
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func listShiftsHandler(svc *schedule.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()

		doctorID, err := uuid.Parse(q.Get("doctor_id"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_doctor_id", "doctor_id must be a valid UUID")
			return
		}
		date, err := time.Parse(dateLayout, q.Get("date"))
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_date", "date must be YYYY-MM-DD")
			return
		}

		shifts, err := svc.ListShiftsForDoctorOnDate(r.Context(), doctorID, date)
		if err != nil {
			handleDomainError(w, err)
			return
		}

		resp := make([]ShiftResponse, 0, len(shifts))
		for i := range shifts {
			resp = append(resp, toShiftResponse(&shifts[i]))
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

// handleDomainError maps sentinel errors from the domain packages to HTTP
// status codes. Unrecognized errors fall through as 500.
func handleDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, appointment.ErrValidation),
		errors.Is(err, scheduling.ErrInvalidWindow):
		writeError(w, http.StatusBadRequest, "validation_failed", err.Error())
	case errors.Is(err, appointment.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, appointment.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, schedule.ErrDoctorNotFound):
		writeError(w, http.StatusNotFound, "doctor_not_found", err.Error())
	case errors.Is(err, schedule.ErrRoomNotFound):
		writeError(w, http.StatusNotFound, "room_not_found", err.Error())
	case errors.Is(err, schedule.ErrShiftNotFound):
		writeError(w, http.StatusNotFound, "shift_not_found", err.Error())
	case errors.Is(err, appointment.ErrSlotConflict):
		writeError(w, http.StatusConflict, "slot_conflict", err.Error())
	case errors.Is(err, appointment.ErrOutsideShiftHours):
		writeError(w, http.StatusConflict, "outside_shift_hours", err.Error())
	case errors.Is(err, appointment.ErrBookingContended):
		writeError(w, http.StatusConflict, "booking_contended", "resource is currently being booked, please retry shortly")
	case errors.Is(err, appointment.ErrInvalidTransition):
		writeError(w, http.StatusConflict, "invalid_status_transition", err.Error())
	case errors.Is(err, schedule.ErrShiftHasAppointments):
		writeError(w, http.StatusConflict, "shift_has_appointments", err.Error())
	case errors.Is(err, appointment.ErrDependencyUnavailable):
		writeError(w, http.StatusServiceUnavailable, "dependency_unavailable", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func toAppointmentResponse(a *appointment.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:        a.ID,
		PatientID: a.PatientID,
		DoctorID:  a.DoctorID,
		RoomID:    a.RoomID,
		BranchID:  a.BranchID,
		Start:     a.Window.Start,
		End:       a.Window.End,
		Status:    string(a.Status),
		Type:      a.Type,
		Notes:     a.Notes,
		Reason:    a.Reason,
	}
}

func toShiftResponse(s *schedule.Shift) ShiftResponse {
	return ShiftResponse{
		ID:         s.ID,
		DoctorID:   s.DoctorID,
		RoomID:     s.RoomID,
		BranchID:   s.BranchID,
		Start:      s.Window.Start,
		End:        s.Window.End,
		Recurrence: string(s.Recurrence.Kind),
	}
}
