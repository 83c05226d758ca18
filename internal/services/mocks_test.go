package services

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/joshua-takyi/gigbay/internal/events"
	"github.com/joshua-takyi/gigbay/internal/models"
)

var fixedNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type recordingPublisher struct {
	mu   sync.Mutex
	sent []events.Envelope
}

func (p *recordingPublisher) Publish(_ context.Context, env events.Envelope) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sent = append(p.sent, env)
	return nil
}

func (p *recordingPublisher) keys() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.sent))
	for i, e := range p.sent {
		out[i] = e.Key
	}
	return out
}

type mockBookingRepo struct{ mock.Mock }

func (m *mockBookingRepo) GetBooking(ctx context.Context, id uuid.UUID) (*models.Booking, error) {
	args := m.Called(ctx, id)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *mockBookingRepo) ListBookings(ctx context.Context, filter models.BookingFilter, offset, limit int) ([]*models.Booking, int, error) {
	args := m.Called(ctx, filter, offset, limit)
	rows, _ := args.Get(0).([]*models.Booking)
	return rows, args.Int(1), args.Error(2)
}

func (m *mockBookingRepo) UpdateBookingStatus(ctx context.Context, id uuid.UUID, from, to models.BookingStatus, at time.Time) (*models.Booking, error) {
	args := m.Called(ctx, id, from, to, at)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *mockBookingRepo) SetTrackingActive(ctx context.Context, id uuid.UUID, active bool, at time.Time) (*models.Booking, error) {
	args := m.Called(ctx, id, active, at)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

type mockLedger struct{ mock.Mock }

func (m *mockLedger) Deposit(ctx context.Context, clientID uuid.UUID, amount decimal.Decimal, reference string, at time.Time) (*models.Wallet, *models.WalletTransaction, error) {
	args := m.Called(ctx, clientID, amount, reference, at)
	w, _ := args.Get(0).(*models.Wallet)
	tx, _ := args.Get(1).(*models.WalletTransaction)
	return w, tx, args.Error(2)
}

func (m *mockLedger) PayFromWallet(ctx context.Context, req models.WalletPayment) (*models.PaymentReceipt, error) {
	args := m.Called(ctx, req)
	r, _ := args.Get(0).(*models.PaymentReceipt)
	return r, args.Error(1)
}

func (m *mockLedger) CompleteBooking(ctx context.Context, bookingID uuid.UUID, at time.Time) (*models.Booking, error) {
	args := m.Called(ctx, bookingID, at)
	b, _ := args.Get(0).(*models.Booking)
	return b, args.Error(1)
}

func (m *mockLedger) ReleaseEscrow(ctx context.Context, bookingID uuid.UUID, at time.Time, onlyIfDue bool) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, bookingID, at, onlyIfDue)
	e, _ := args.Get(0).(*models.EscrowTransaction)
	return e, args.Error(1)
}

func (m *mockLedger) DueEscrowReleases(ctx context.Context, at time.Time, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, at, limit)
	ids, _ := args.Get(0).([]uuid.UUID)
	return ids, args.Error(1)
}

type mockWalletRepo struct{ mock.Mock }

func (m *mockWalletRepo) GetWallet(ctx context.Context, clientID uuid.UUID) (*models.Wallet, error) {
	args := m.Called(ctx, clientID)
	w, _ := args.Get(0).(*models.Wallet)
	return w, args.Error(1)
}

func (m *mockWalletRepo) ListWalletTransactions(ctx context.Context, clientID uuid.UUID, offset, limit int) ([]*models.WalletTransaction, int, error) {
	args := m.Called(ctx, clientID, offset, limit)
	rows, _ := args.Get(0).([]*models.WalletTransaction)
	return rows, args.Int(1), args.Error(2)
}

func (m *mockWalletRepo) GetEscrowForBooking(ctx context.Context, bookingID uuid.UUID) (*models.EscrowTransaction, error) {
	args := m.Called(ctx, bookingID)
	e, _ := args.Get(0).(*models.EscrowTransaction)
	return e, args.Error(1)
}

type mockModerationRepo struct{ mock.Mock }

func (m *mockModerationRepo) GetReport(ctx context.Context, id uuid.UUID) (*models.Report, error) {
	args := m.Called(ctx, id)
	r, _ := args.Get(0).(*models.Report)
	return r, args.Error(1)
}

func (m *mockModerationRepo) ListReports(ctx context.Context, status models.ReportStatus, offset, limit int) ([]*models.Report, int, error) {
	args := m.Called(ctx, status, offset, limit)
	rows, _ := args.Get(0).([]*models.Report)
	return rows, args.Int(1), args.Error(2)
}

func (m *mockModerationRepo) ListEvents(ctx context.Context, status models.EventStatus, offset, limit int) ([]*models.Event, int, error) {
	args := m.Called(ctx, status, offset, limit)
	rows, _ := args.Get(0).([]*models.Event)
	return rows, args.Int(1), args.Error(2)
}

func (m *mockModerationRepo) ListTicketPurchases(ctx context.Context, status models.TicketStatus, offset, limit int) ([]*models.TicketPurchase, int, error) {
	args := m.Called(ctx, status, offset, limit)
	rows, _ := args.Get(0).([]*models.TicketPurchase)
	return rows, args.Int(1), args.Error(2)
}

func (m *mockModerationRepo) ListAdminActions(ctx context.Context, offset, limit int) ([]*models.AdminAction, int, error) {
	args := m.Called(ctx, offset, limit)
	rows, _ := args.Get(0).([]*models.AdminAction)
	return rows, args.Int(1), args.Error(2)
}

type mockModerationLedger struct{ mock.Mock }

func (m *mockModerationLedger) ResolveReport(ctx context.Context, res models.ReportResolution) (*models.Report, error) {
	args := m.Called(ctx, res)
	r, _ := args.Get(0).(*models.Report)
	return r, args.Error(1)
}

func (m *mockModerationLedger) SetUserSuspended(ctx context.Context, userID, adminID uuid.UUID, suspended bool, reason string, at time.Time) error {
	return m.Called(ctx, userID, adminID, suspended, reason, at).Error(0)
}

func (m *mockModerationLedger) FlagEvent(ctx context.Context, eventID, adminID uuid.UUID, reason string, at time.Time) (*models.Event, error) {
	args := m.Called(ctx, eventID, adminID, reason, at)
	e, _ := args.Get(0).(*models.Event)
	return e, args.Error(1)
}

func (m *mockModerationLedger) DeleteEvent(ctx context.Context, eventID, adminID uuid.UUID, reason string, at time.Time) error {
	return m.Called(ctx, eventID, adminID, reason, at).Error(0)
}

func (m *mockModerationLedger) RefundTicket(ctx context.Context, purchaseID, adminID uuid.UUID, reason string, at time.Time) (*models.TicketPurchase, error) {
	args := m.Called(ctx, purchaseID, adminID, reason, at)
	p, _ := args.Get(0).(*models.TicketPurchase)
	return p, args.Error(1)
}

type mockLocationRepo struct{ mock.Mock }

func (m *mockLocationRepo) UpsertLocation(ctx context.Context, loc *models.LiveLocation) (*models.LiveLocation, error) {
	args := m.Called(ctx, loc)
	l, _ := args.Get(0).(*models.LiveLocation)
	return l, args.Error(1)
}

func (m *mockLocationRepo) ListLocations(ctx context.Context, bookingID uuid.UUID) ([]*models.LiveLocation, error) {
	args := m.Called(ctx, bookingID)
	rows, _ := args.Get(0).([]*models.LiveLocation)
	return rows, args.Error(1)
}

type mockPreferencesRepo struct{ mock.Mock }

func (m *mockPreferencesRepo) GetPreferences(ctx context.Context, userID uuid.UUID) (*models.NotificationPreferences, error) {
	args := m.Called(ctx, userID)
	p, _ := args.Get(0).(*models.NotificationPreferences)
	return p, args.Error(1)
}

func (m *mockPreferencesRepo) SavePreferences(ctx context.Context, prefs *models.NotificationPreferences) (*models.NotificationPreferences, error) {
	args := m.Called(ctx, prefs)
	if fn, ok := args.Get(0).(func(context.Context, *models.NotificationPreferences) *models.NotificationPreferences); ok {
		return fn(ctx, prefs), args.Error(1)
	}
	p, _ := args.Get(0).(*models.NotificationPreferences)
	return p, args.Error(1)
}

type mockNotificationRepo struct{ mock.Mock }

func (m *mockNotificationRepo) EnsureIndexes(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockNotificationRepo) InsertNotification(ctx context.Context, n *models.Notification) error {
	return m.Called(ctx, n).Error(0)
}

func (m *mockNotificationRepo) ListNotifications(ctx context.Context, userID string, unreadOnly bool, offset, limit int) ([]*models.Notification, int64, error) {
	args := m.Called(ctx, userID, unreadOnly, offset, limit)
	rows, _ := args.Get(0).([]*models.Notification)
	total, _ := args.Get(1).(int64)
	return rows, total, args.Error(2)
}

func (m *mockNotificationRepo) MarkNotificationsRead(ctx context.Context, userID string, ids []primitive.ObjectID) (int64, error) {
	args := m.Called(ctx, userID, ids)
	n, _ := args.Get(0).(int64)
	return n, args.Error(1)
}

type mockJobsRepo struct{ mock.Mock }

func (m *mockJobsRepo) ListOpenJobs(ctx context.Context, offset, limit int) ([]*models.JobPosting, int, error) {
	args := m.Called(ctx, offset, limit)
	rows, _ := args.Get(0).([]*models.JobPosting)
	return rows, args.Int(1), args.Error(2)
}

func (m *mockJobsRepo) GetJob(ctx context.Context, id uuid.UUID) (*models.JobPosting, error) {
	args := m.Called(ctx, id)
	j, _ := args.Get(0).(*models.JobPosting)
	return j, args.Error(1)
}

func (m *mockJobsRepo) CreateJob(ctx context.Context, job *models.JobPosting) (*models.JobPosting, error) {
	args := m.Called(ctx, job)
	j, _ := args.Get(0).(*models.JobPosting)
	return j, args.Error(1)
}

func (m *mockJobsRepo) CreateApplication(ctx context.Context, app *models.JobApplication) (*models.JobApplication, error) {
	args := m.Called(ctx, app)
	a, _ := args.Get(0).(*models.JobApplication)
	return a, args.Error(1)
}

func (m *mockJobsRepo) GetApplication(ctx context.Context, id uuid.UUID) (*models.JobApplication, error) {
	args := m.Called(ctx, id)
	a, _ := args.Get(0).(*models.JobApplication)
	return a, args.Error(1)
}

func (m *mockJobsRepo) ListApplications(ctx context.Context, jobID uuid.UUID, offset, limit int) ([]*models.JobApplication, int, error) {
	args := m.Called(ctx, jobID, offset, limit)
	rows, _ := args.Get(0).([]*models.JobApplication)
	return rows, args.Int(1), args.Error(2)
}

func (m *mockJobsRepo) UpdateApplicationStatus(ctx context.Context, id uuid.UUID, from, to models.ApplicationStatus) (*models.JobApplication, error) {
	args := m.Called(ctx, id, from, to)
	a, _ := args.Get(0).(*models.JobApplication)
	return a, args.Error(1)
}

type mockEventsRepo struct{ mock.Mock }

func (m *mockEventsRepo) GetMusicianEvent(ctx context.Context, id uuid.UUID) (*models.MusicianEvent, error) {
	args := m.Called(ctx, id)
	e, _ := args.Get(0).(*models.MusicianEvent)
	return e, args.Error(1)
}

func (m *mockEventsRepo) UpdateMusicianEvent(ctx context.Context, id uuid.UUID, fields map[string]interface{}) (*models.MusicianEvent, error) {
	args := m.Called(ctx, id, fields)
	e, _ := args.Get(0).(*models.MusicianEvent)
	return e, args.Error(1)
}

func (m *mockEventsRepo) CreateTicketTier(ctx context.Context, tier *models.TicketTier) (*models.TicketTier, error) {
	args := m.Called(ctx, tier)
	t, _ := args.Get(0).(*models.TicketTier)
	return t, args.Error(1)
}

func (m *mockEventsRepo) ListTicketTiers(ctx context.Context, eventID uuid.UUID) ([]*models.TicketTier, error) {
	args := m.Called(ctx, eventID)
	rows, _ := args.Get(0).([]*models.TicketTier)
	return rows, args.Error(1)
}
