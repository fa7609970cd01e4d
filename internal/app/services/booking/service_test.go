package booking

import (
	"context"
	"testing"
	"time"

	"github.com/R3E-Network/studio_layer/internal/app/domain/appointment"
	"github.com/R3E-Network/studio_layer/internal/app/domain/notification"
	"github.com/R3E-Network/studio_layer/internal/app/services/clients"
	"github.com/R3E-Network/studio_layer/internal/app/storage/memory"
	apperrors "github.com/R3E-Network/studio_layer/internal/errors"
	"github.com/R3E-Network/studio_layer/pkg/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var fixedNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func newService(t *testing.T) (*Service, *memory.Store) {
	t.Helper()
	store := memory.New()
	svc := New(store, clients.New(store, nil), nil).WithLocation(time.UTC)
	svc.now = func() time.Time { return fixedNow }
	return svc, store
}

func TestValidContact(t *testing.T) {
	cases := []struct {
		method  string
		contact string
		want    bool
	}{
		{appointment.ReminderEmail, "ana@example.com", true},
		{appointment.ReminderEmail, "ana@example", false},
		{appointment.ReminderEmail, "ana @example.com", false},
		{appointment.ReminderEmail, "5512345678", false},
		{appointment.ReminderSMS, "5512345678", true},
		{appointment.ReminderSMS, "55 1234-5678", true},
		{appointment.ReminderSMS, "12345", false},
		{appointment.ReminderSMS, "55123456-", false},
		{appointment.ReminderSMS, "ana@example.com", false},
	}
	for _, tc := range cases {
		if got := ValidContact(tc.method, tc.contact); got != tc.want {
			t.Errorf("ValidContact(%q, %q) = %v, want %v", tc.method, tc.contact, got, tc.want)
		}
	}
}

func TestValidateContactMessages(t *testing.T) {
	err := ValidateContact(appointment.ReminderEmail, "nope")
	se := apperrors.GetServiceError(err)
	require.NotNil(t, se)
	assert.Equal(t, "El formato del correo no es válido.", se.Message)
	assert.Equal(t, "Introduce un correo válido.", se.Details["contact"])

	se = apperrors.GetServiceError(ValidateContact(appointment.ReminderSMS, "nope"))
	require.NotNil(t, se)
	assert.Equal(t, "El formato del teléfono no es válido.", se.Message)
	assert.Equal(t, "Introduce un teléfono válido.", se.Details["contact"])

	assert.NoError(t, ValidateContact(appointment.ReminderSMS, "5512345678"))
}

func TestBookDefaultsAndClient(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)

	a, err := svc.Book(ctx, "s1", Request{Name: "Ana", Contact: "ana@example.com", Idea: "rosa", Date: "2024-06-12"}, false)
	require.NoError(t, err)
	assert.Equal(t, DefaultTime, a.Time)
	assert.Equal(t, appointment.ReminderEmail, a.ReminderMethod)
	assert.Equal(t, appointment.StatusScheduled, a.Status)
	assert.Zero(t, a.DepositAmount)
	assert.False(t, a.DepositPaid)
	assert.Zero(t, a.PriceTotal)
	assert.False(t, a.HasConsent)
	require.NotEmpty(t, a.ClientID)

	c, err := store.FindClientByContact(ctx, "s1", "ana@example.com")
	require.NoError(t, err)
	assert.Equal(t, c.ID, a.ClientID)

	// A second booking reuses the client.
	b, err := svc.Book(ctx, "s1", Request{Name: "Ana", Contact: "ana@example.com", Date: "2024-06-13", Time: "10:30"}, false)
	require.NoError(t, err)
	assert.Equal(t, a.ClientID, b.ClientID)
	all, _ := store.ListClients(ctx, "s1")
	assert.Len(t, all, 1)
}

func TestBookRejections(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)

	_, err := svc.Book(ctx, "s1", Request{Name: "Ana", Contact: "5512345678", Date: "2024-06-12"}, false)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "email method with phone contact: %v", err)

	_, err = svc.Book(ctx, "s1", Request{Name: "Ana", Contact: "5512345678", Date: "2024-06-12", ReminderMethod: "sms"}, false)
	assert.NoError(t, err)

	_, err = svc.Book(ctx, "s1", Request{Name: "", Contact: "ana@example.com", Date: "2024-06-12"}, false)
	assert.Error(t, err)

	_, err = svc.Book(ctx, "s1", Request{Name: "Ana", Contact: "ana@example.com", Date: "2024-06-09"}, false)
	assert.True(t, apperrors.Is(err, apperrors.CodeValidation), "past date: %v", err)

	_, err = svc.Book(ctx, "s1", Request{Name: "Ana", Contact: "ana@example.com", Date: "2024-06-09"}, true)
	assert.NoError(t, err, "admins may book past dates")

	_, err = svc.Book(ctx, "s1", Request{Name: "Ana", Contact: "ana@example.com", Date: "2024-06-10"}, false)
	assert.NoError(t, err, "today is bookable")

	_, err = svc.Book(ctx, "s1", Request{Name: "Ana", Contact: "ana@example.com", Date: "2024-06-12", ReminderMethod: "fax"}, false)
	assert.Error(t, err)
}

func TestRescheduleUpdateComplete(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	a, err := svc.Book(ctx, "s1", Request{Name: "Ana", Contact: "ana@example.com", Date: "2024-06-12"}, false)
	require.NoError(t, err)

	moved, err := svc.Reschedule(ctx, "s1", a.ID, Request{Name: "Ana", Contact: "ana@example.com", Date: "2024-06-20", Time: "16:00", Idea: "lobo"}, false)
	require.NoError(t, err)
	assert.Equal(t, "2024-06-20", moved.Date)
	assert.Equal(t, "16:00", moved.Time)
	assert.Equal(t, "lobo", moved.Idea)
	assert.Equal(t, a.CreatedAt, moved.CreatedAt)

	deposit, price, paid := 500.0, 2500.0, true
	updated, err := svc.Update(ctx, "s1", a.ID, Patch{DepositAmount: &deposit, PriceTotal: &price, DepositPaid: &paid})
	require.NoError(t, err)
	assert.Equal(t, 500.0, updated.DepositAmount)
	assert.Equal(t, 2500.0, updated.PriceTotal)
	assert.True(t, updated.DepositPaid)

	neg := -1.0
	_, err = svc.Update(ctx, "s1", a.ID, Patch{PriceTotal: &neg})
	assert.Error(t, err)

	done, err := svc.MarkCompleted(ctx, "s1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, appointment.StatusCompleted, done.Status)

	require.NoError(t, svc.Delete(ctx, "s1", a.ID))
	_, err = svc.Get(ctx, "s1", a.ID)
	assert.Error(t, err)
}

func TestIsDateBooked(t *testing.T) {
	ctx := context.Background()
	svc, _ := newService(t)
	a, _ := svc.Book(ctx, "s1", Request{Name: "Ana", Contact: "ana@example.com", Date: "2024-06-12"}, false)

	booked, err := svc.IsDateBooked(ctx, "s1", "2024-06-12")
	require.NoError(t, err)
	assert.True(t, booked)

	booked, _ = svc.IsDateBooked(ctx, "s2", "2024-06-12")
	assert.False(t, booked)

	_, _ = svc.MarkCompleted(ctx, "s1", a.ID)
	booked, _ = svc.IsDateBooked(ctx, "s1", "2024-06-12")
	assert.False(t, booked, "completed appointments free the date")

	_, _ = svc.Book(ctx, "s1", Request{Name: "Bo", Contact: "bo@example.com", Date: "2024-06-28"}, false)
	dates, err := svc.BookedDates(ctx, "s1", "2024-06")
	require.NoError(t, err)
	assert.Equal(t, []string{"2024-06-28"}, dates)
}

func TestSplit(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	for _, a := range []appointment.Appointment{
		{ID: "late", Date: "2024-06-20", Time: "10:00", Status: appointment.StatusScheduled},
		{ID: "soon", Date: "2024-06-10", Time: "13:00", Status: appointment.StatusScheduled},
		{ID: "old", Date: "2024-05-01", Time: "10:00", Status: appointment.StatusScheduled},
		{ID: "done", Date: "2024-07-01", Time: "10:00", Status: appointment.StatusCompleted},
		{ID: "older", Date: "2024-04-01", Status: appointment.StatusCompleted},
	} {
		a.StudioID = "s1"
		_, err := store.CreateAppointment(ctx, a)
		require.NoError(t, err)
	}

	scheduled, past, err := svc.Split(ctx, "s1", fixedNow)
	require.NoError(t, err)
	assert.Equal(t, []string{"soon", "late"}, ids(scheduled))
	assert.Equal(t, []string{"done", "old", "older"}, ids(past))
}

func TestPendingConfirmation(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	for _, a := range []appointment.Appointment{
		{ID: "recent", Date: "2024-06-10", Time: "09:00", Status: appointment.StatusScheduled},
		{ID: "overdue", Date: "2024-06-10", Time: "07:30", Status: appointment.StatusScheduled},
		{ID: "closed", Date: "2024-06-01", Time: "07:30", Status: appointment.StatusCompleted},
	} {
		a.StudioID = "s1"
		_, _ = store.CreateAppointment(ctx, a)
	}

	got, ok, err := svc.PendingConfirmation(ctx, "s1", fixedNow)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "overdue", got.ID)

	_, ok, _ = svc.PendingConfirmation(ctx, "s1", fixedNow.Add(-3*time.Hour))
	assert.False(t, ok)
}

func TestSweeperAnnouncesOnce(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	_, _ = store.CreateAppointment(ctx, appointment.Appointment{
		StudioID: "s1", Name: "Ana", Date: "2024-06-10", Time: "07:00", Status: appointment.StatusScheduled,
	})

	rec := &testutil.MockPublisher{}
	sw := NewSweeper(svc, []string{"s1", "s2"}, rec, nil)
	sw.now = func() time.Time { return fixedNow }

	assert.Equal(t, 1, sw.Sweep(ctx))
	assert.Equal(t, 0, sw.Sweep(ctx))
	require.Len(t, rec.Sent(), 1)
	n := rec.Sent()[0]
	assert.Equal(t, notification.KindPendingConfirmation, n.Kind)
	assert.Equal(t, notification.AudienceAdmin, n.Audience)
	assert.Equal(t, "CITA PENDIENTE: ¿Se completó la cita de Ana del 2024-06-10 a las 07:00?", n.Message)
}

func TestSweeperForgetsConfirmedAppointments(t *testing.T) {
	ctx := context.Background()
	svc, store := newService(t)
	a, err := store.CreateAppointment(ctx, appointment.Appointment{
		StudioID: "s1", Name: "Ana", Date: "2024-06-10", Time: "07:00", Status: appointment.StatusScheduled,
	})
	require.NoError(t, err)

	sw := NewSweeper(svc, []string{"s1"}, &testutil.MockPublisher{}, nil)
	sw.now = func() time.Time { return fixedNow }
	require.Equal(t, 1, sw.Sweep(ctx))
	assert.Contains(t, sw.announced["s1"], a.ID)

	_, err = svc.MarkCompleted(ctx, "s1", a.ID)
	require.NoError(t, err)

	assert.Equal(t, 0, sw.Sweep(ctx))
	assert.Empty(t, sw.announced["s1"])
}

func TestSweeperLifecycle(t *testing.T) {
	svc, _ := newService(t)
	sw := NewSweeper(svc, nil, nil, nil).WithSchedule("@every 1h")
	require.NoError(t, sw.Start(context.Background()))
	require.NoError(t, sw.Start(context.Background()))
	require.NoError(t, sw.Stop(context.Background()))
	require.NoError(t, sw.Stop(context.Background()))

	bad := NewSweeper(svc, nil, nil, nil).WithSchedule("not a schedule")
	assert.Error(t, bad.Start(context.Background()))
}

func ids(list []appointment.Appointment) []string {
	out := make([]string, len(list))
	for i, a := range list {
		out[i] = a.ID
	}
	return out
}
