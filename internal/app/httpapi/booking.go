package httpapi

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/R3E-Network/studio_layer/internal/app/domain/appointment"
	"github.com/R3E-Network/studio_layer/internal/app/services/auth"
	"github.com/R3E-Network/studio_layer/internal/app/services/booking"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
)

func (h *handler) registerAuth(r *mux.Router) {
	r.Handle("/auth/login", public(h.login)).Methods(http.MethodPost)
	r.Handle("/auth/register", public(h.register)).Methods(http.MethodPost)
	r.Handle("/auth/recover", public(h.recoverPassword)).Methods(http.MethodPost)
}

func (h *handler) login(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	sess, err := h.app.Auth.Login(r.Context(), studioID(r), body.Username, body.Password)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, sess)
}

func (h *handler) register(w http.ResponseWriter, r *http.Request) {
	var req auth.RegisterRequest
	if !h.decode(w, r, &req) {
		return
	}
	sess, err := h.app.Auth.Register(r.Context(), studioID(r), req)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.created(w, sess)
}

func (h *handler) recoverPassword(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Email       string `json:"email"`
		NewPassword string `json:"new_password"`
	}
	if !h.decode(w, r, &body) {
		return
	}
	msg, err := h.app.Auth.Recover(r.Context(), studioID(r), body.Email, body.NewPassword)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, map[string]string{"message": msg})
}

func (h *handler) registerBooking(r *mux.Router) {
	r.Handle("/appointments", admin(h.listAppointments)).Methods(http.MethodGet)
	r.Handle("/appointments", authed(h.bookAppointment)).Methods(http.MethodPost)
	r.Handle("/appointments/pending", admin(h.pendingAppointment)).Methods(http.MethodGet)
	r.Handle("/appointments/{id}", admin(h.getAppointment)).Methods(http.MethodGet)
	r.Handle("/appointments/{id}", admin(h.rescheduleAppointment)).Methods(http.MethodPut)
	r.Handle("/appointments/{id}", admin(h.updateAppointment)).Methods(http.MethodPatch)
	r.Handle("/appointments/{id}", admin(h.deleteAppointment)).Methods(http.MethodDelete)
	r.Handle("/appointments/{id}/complete", admin(h.completeAppointment)).Methods(http.MethodPost)
	r.Handle("/availability", public(h.availability)).Methods(http.MethodGet)
}

func (h *handler) listAppointments(w http.ResponseWriter, r *http.Request) {
	scheduled, past, err := h.app.Booking.Split(r.Context(), studioID(r), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if scheduled == nil {
		scheduled = []appointment.Appointment{}
	}
	if past == nil {
		past = []appointment.Appointment{}
	}
	h.ok(w, map[string][]appointment.Appointment{"scheduled": scheduled, "past": past})
}

func (h *handler) bookAppointment(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if !h.decode(w, r, &req) {
		return
	}
	appt, err := h.app.Booking.Book(r.Context(), studioID(r), req, isAdmin(r))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.created(w, appt)
}

func (h *handler) pendingAppointment(w http.ResponseWriter, r *http.Request) {
	appt, found, err := h.app.Booking.PendingConfirmation(r.Context(), studioID(r), h.now())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !found {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	h.ok(w, appt)
}

func (h *handler) getAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.app.Booking.Get(r.Context(), studioID(r), pathVar(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, appt)
}

func (h *handler) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	var req booking.Request
	if !h.decode(w, r, &req) {
		return
	}
	appt, err := h.app.Booking.Reschedule(r.Context(), studioID(r), pathVar(r, "id"), req, true)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, appt)
}

func (h *handler) updateAppointment(w http.ResponseWriter, r *http.Request) {
	var p booking.Patch
	if !h.decode(w, r, &p) {
		return
	}
	appt, err := h.app.Booking.Update(r.Context(), studioID(r), pathVar(r, "id"), p)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, appt)
}

func (h *handler) completeAppointment(w http.ResponseWriter, r *http.Request) {
	appt, err := h.app.Booking.MarkCompleted(r.Context(), studioID(r), pathVar(r, "id"))
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.ok(w, appt)
}

func (h *handler) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	if err := h.app.Booking.Delete(r.Context(), studioID(r), pathVar(r, "id")); err != nil {
		h.fail(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// availability answers either ?date=YYYY-MM-DD or ?month=YYYY-MM.
func (h *handler) availability(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if date := q.Get("date"); date != "" {
		booked, err := h.app.Booking.IsDateBooked(r.Context(), studioID(r), date)
		if err != nil {
			h.fail(w, r, err)
			return
		}
		h.ok(w, map[string]any{"date": date, "booked": booked})
		return
	}
	month := q.Get("month")
	if month == "" {
		h.fail(w, r, apperrors.BadRequest("Indica una fecha o un mes."))
		return
	}
	dates, err := h.app.Booking.BookedDates(r.Context(), studioID(r), month)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if dates == nil {
		dates = []string{}
	}
	h.ok(w, map[string]any{"month": month, "dates": dates})
}
