// Package booking runs the studio calendar: contact validation, bookings,
// edits, the scheduled/past split and the pending-confirmation check.
package booking

import (
	"context"
	"fmt"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/appointment"
	"github.com/R3E-Network/studio_layer/internal/app/domain/client"
	"github.com/R3E-Network/studio_layer/internal/app/metrics"
	"github.com/R3E-Network/studio_layer/internal/app/storage"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/pkg/logger"
)

// DefaultTime is the slot offered when a booking names no time.
const DefaultTime = "14:00"

// ConfirmationDelay is how long after its start an appointment that is still
// scheduled is flagged for confirmation.
const ConfirmationDelay = 4 * time.Hour

var (
	emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phonePattern = regexp.MustCompile(`^\d[\d\s-]{8,}\d$`)
)

// ValidContact reports whether contact fits the reminder method: an e-mail
// address for email reminders, a phone number for sms.
func ValidContact(method, contact string) bool {
	if method == appointment.ReminderSMS {
		return phonePattern.MatchString(contact)
	}
	return emailPattern.MatchString(contact)
}

// ContactHint is the inline field message for an invalid contact.
func ContactHint(method string) string {
	if method == appointment.ReminderSMS {
		return "Introduce un teléfono válido."
	}
	return "Introduce un correo válido."
}

// ValidateContact returns a validation error carrying the submit message and
// the field hint when contact does not fit method.
func ValidateContact(method, contact string) error {
	if ValidContact(method, contact) {
		return nil
	}
	msg := "El formato del correo no es válido."
	if method == appointment.ReminderSMS {
		msg = "El formato del teléfono no es válido."
	}
	return apperrors.Validation(msg).WithDetails("contact", ContactHint(method))
}

// ClientFinder resolves the client record behind a booking.
type ClientFinder interface {
	FindOrCreate(ctx context.Context, studioID, name, contact string) (client.Client, error)
}

// Service manages appointments.
type Service struct {
	store   storage.AppointmentStore
	clients ClientFinder
	log     *logger.Logger
	loc     *time.Location
	now     func() time.Time
}

// New constructs a booking service. Dates and times are read in the local
// time zone unless WithLocation is used.
func New(store storage.AppointmentStore, clients ClientFinder, log *logger.Logger) *Service {
	if log == nil {
		log = logger.NewDefault("booking")
	}
	return &Service{store: store, clients: clients, log: log, loc: time.Local, now: time.Now}
}

// WithLocation sets the studio time zone.
func (s *Service) WithLocation(loc *time.Location) *Service {
	if loc != nil {
		s.loc = loc
	}
	return s
}

// Request is a booking form submission.
type Request struct {
	Name           string `json:"name"`
	Contact        string `json:"contact"`
	Idea           string `json:"idea"`
	Date           string `json:"date"`
	Time           string `json:"time"`
	ReminderMethod string `json:"reminder_method"`
}

func (s *Service) normalize(req *Request, admin bool) error {
	req.Name = strings.TrimSpace(req.Name)
	req.Contact = strings.TrimSpace(req.Contact)
	req.Date = strings.TrimSpace(req.Date)
	req.Time = strings.TrimSpace(req.Time)
	if req.Time == "" {
		req.Time = DefaultTime
	}
	switch req.ReminderMethod {
	case "":
		req.ReminderMethod = appointment.ReminderEmail
	case appointment.ReminderEmail, appointment.ReminderSMS:
	default:
		return apperrors.Validation(fmt.Sprintf("reminder_method %q is not supported", req.ReminderMethod))
	}
	if req.Name == "" {
		return apperrors.Validation("El nombre es obligatorio.")
	}
	if err := ValidateContact(req.ReminderMethod, req.Contact); err != nil {
		return err
	}
	if err := s.checkDate(req.Date, admin); err != nil {
		return err
	}
	if _, err := time.Parse(appointment.TimeLayout, req.Time); err != nil {
		return apperrors.Validation("La hora no es válida.")
	}
	return nil
}

func (s *Service) checkDate(date string, admin bool) error {
	if date == "" {
		return apperrors.Validation("La fecha es obligatoria.")
	}
	day, err := time.ParseInLocation(appointment.DateLayout, date, s.loc)
	if err != nil {
		return apperrors.Validation("La fecha no es válida.")
	}
	if admin {
		return nil
	}
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	if day.Before(today) {
		return apperrors.Validation("No puedes agendar en una fecha pasada.")
	}
	return nil
}

// Book validates req, makes sure a client record exists for the contact and
// stores a new scheduled appointment. Admins may book past dates.
func (s *Service) Book(ctx context.Context, studioID string, req Request, admin bool) (appointment.Appointment, error) {
	created, err := s.book(ctx, studioID, req, admin)
	metrics.RecordBooking(studioID, err)
	return created, err
}

func (s *Service) book(ctx context.Context, studioID string, req Request, admin bool) (appointment.Appointment, error) {
	if err := s.normalize(&req, admin); err != nil {
		return appointment.Appointment{}, err
	}
	c, err := s.clients.FindOrCreate(ctx, studioID, req.Name, req.Contact)
	if err != nil {
		return appointment.Appointment{}, err
	}
	created, err := s.store.CreateAppointment(ctx, appointment.Appointment{
		StudioID:       studioID,
		ClientID:       c.ID,
		Name:           req.Name,
		Contact:        req.Contact,
		Idea:           req.Idea,
		Date:           req.Date,
		Time:           req.Time,
		ReminderMethod: req.ReminderMethod,
		Status:         appointment.StatusScheduled,
	})
	if err != nil {
		return appointment.Appointment{}, err
	}
	s.log.WithContext(ctx).
		WithField("appointment_id", created.ID).
		Infof("appointment booked for %s at %s %s", created.Date, created.Time, created.Name)
	return created, nil
}

// Reschedule replaces the booking details of an existing appointment.
func (s *Service) Reschedule(ctx context.Context, studioID, id string, req Request, admin bool) (appointment.Appointment, error) {
	existing, err := s.store.GetAppointment(ctx, studioID, id)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if err := s.normalize(&req, admin); err != nil {
		return appointment.Appointment{}, err
	}
	c, err := s.clients.FindOrCreate(ctx, studioID, req.Name, req.Contact)
	if err != nil {
		return appointment.Appointment{}, err
	}
	existing.ClientID = c.ID
	existing.Name = req.Name
	existing.Contact = req.Contact
	existing.Idea = req.Idea
	existing.Date = req.Date
	existing.Time = req.Time
	existing.ReminderMethod = req.ReminderMethod
	return s.store.UpdateAppointment(ctx, existing)
}

// Patch holds the admin-only financial and paperwork fields.
type Patch struct {
	DepositAmount *float64 `json:"deposit_amount"`
	DepositPaid   *bool    `json:"deposit_paid"`
	PriceTotal    *float64 `json:"price_total"`
	HasConsent    *bool    `json:"has_consent"`
	Status        *string  `json:"status"`
}

// Update applies p to an appointment.
func (s *Service) Update(ctx context.Context, studioID, id string, p Patch) (appointment.Appointment, error) {
	a, err := s.store.GetAppointment(ctx, studioID, id)
	if err != nil {
		return appointment.Appointment{}, err
	}
	if p.DepositAmount != nil {
		if *p.DepositAmount < 0 {
			return appointment.Appointment{}, apperrors.Validation("deposit_amount must not be negative")
		}
		a.DepositAmount = *p.DepositAmount
	}
	if p.PriceTotal != nil {
		if *p.PriceTotal < 0 {
			return appointment.Appointment{}, apperrors.Validation("price_total must not be negative")
		}
		a.PriceTotal = *p.PriceTotal
	}
	if p.DepositPaid != nil {
		a.DepositPaid = *p.DepositPaid
	}
	if p.HasConsent != nil {
		a.HasConsent = *p.HasConsent
	}
	if p.Status != nil {
		switch *p.Status {
		case appointment.StatusScheduled, appointment.StatusCompleted:
			a.Status = *p.Status
		default:
			return appointment.Appointment{}, apperrors.Validation(fmt.Sprintf("status %q is not supported", *p.Status))
		}
	}
	return s.store.UpdateAppointment(ctx, a)
}

// MarkCompleted closes an appointment.
func (s *Service) MarkCompleted(ctx context.Context, studioID, id string) (appointment.Appointment, error) {
	a, err := s.store.GetAppointment(ctx, studioID, id)
	if err != nil {
		return appointment.Appointment{}, err
	}
	a.Status = appointment.StatusCompleted
	updated, err := s.store.UpdateAppointment(ctx, a)
	if err != nil {
		return appointment.Appointment{}, err
	}
	s.log.WithContext(ctx).Infof("appointment %s completed", id)
	return updated, nil
}

// Delete removes an appointment.
func (s *Service) Delete(ctx context.Context, studioID, id string) error {
	return s.store.DeleteAppointment(ctx, studioID, id)
}

// Get fetches one appointment.
func (s *Service) Get(ctx context.Context, studioID, id string) (appointment.Appointment, error) {
	return s.store.GetAppointment(ctx, studioID, id)
}

// List returns every appointment of the studio.
func (s *Service) List(ctx context.Context, studioID string) ([]appointment.Appointment, error) {
	return s.store.ListAppointments(ctx, studioID)
}

// IsDateBooked reports whether date holds an appointment that is not
// completed.
func (s *Service) IsDateBooked(ctx context.Context, studioID, date string) (bool, error) {
	all, err := s.store.ListAppointments(ctx, studioID)
	if err != nil {
		return false, err
	}
	for _, a := range all {
		if a.Date == date && a.Status != appointment.StatusCompleted {
			return true, nil
		}
	}
	return false, nil
}

// BookedDates lists the dates of month (YYYY-MM) with open appointments.
func (s *Service) BookedDates(ctx context.Context, studioID, month string) ([]string, error) {
	all, err := s.store.ListAppointments(ctx, studioID)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool)
	var out []string
	for _, a := range all {
		if a.Status == appointment.StatusCompleted || !strings.HasPrefix(a.Date, month) || seen[a.Date] {
			continue
		}
		seen[a.Date] = true
		out = append(out, a.Date)
	}
	sort.Strings(out)
	return out, nil
}

// Split separates upcoming scheduled appointments, soonest first, from the
// rest, latest first.
func (s *Service) Split(ctx context.Context, studioID string, now time.Time) (scheduled, past []appointment.Appointment, err error) {
	all, err := s.store.ListAppointments(ctx, studioID)
	if err != nil {
		return nil, nil, err
	}
	starts := make(map[string]time.Time, len(all))
	for _, a := range all {
		at, perr := a.StartsAt(s.loc)
		if perr != nil {
			s.log.WithError(perr).Warn("skipping appointment with unreadable date")
		}
		starts[a.ID] = at
		if perr == nil && !at.Before(now) && a.Status == appointment.StatusScheduled {
			scheduled = append(scheduled, a)
		} else {
			past = append(past, a)
		}
	}
	sort.SliceStable(scheduled, func(i, j int) bool { return starts[scheduled[i].ID].Before(starts[scheduled[j].ID]) })
	sort.SliceStable(past, func(i, j int) bool { return starts[past[i].ID].After(starts[past[j].ID]) })
	return scheduled, past, nil
}

// PendingConfirmation returns the first scheduled appointment that started
// more than ConfirmationDelay before now.
func (s *Service) PendingConfirmation(ctx context.Context, studioID string, now time.Time) (appointment.Appointment, bool, error) {
	all, err := s.Overdue(ctx, studioID, now)
	if err != nil || len(all) == 0 {
		return appointment.Appointment{}, false, err
	}
	return all[0], true, nil
}

// Overdue lists every scheduled appointment that started more than
// ConfirmationDelay before now, in store order.
func (s *Service) Overdue(ctx context.Context, studioID string, now time.Time) ([]appointment.Appointment, error) {
	all, err := s.store.ListAppointments(ctx, studioID)
	if err != nil {
		return nil, err
	}
	cutoff := now.Add(-ConfirmationDelay)
	var out []appointment.Appointment
	for _, a := range all {
		if a.Status != appointment.StatusScheduled {
			continue
		}
		at, err := a.StartsAt(s.loc)
		if err != nil {
			continue
		}
		if at.Before(cutoff) {
			out = append(out, a)
		}
	}
	return out, nil
}
