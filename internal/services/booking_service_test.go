package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/joshua-takyi/gigbay/internal/cache"
	"github.com/joshua-takyi/gigbay/internal/events"
	"github.com/joshua-takyi/gigbay/internal/models"
)

type bookingFixture struct {
	svc      *BookingService
	bookings *mockBookingRepo
	ledger   *mockLedger
	wallets  *mockWalletRepo
	pub      *recordingPublisher
}

func newBookingFixture(t *testing.T, locks *cache.Store) *bookingFixture {
	t.Helper()
	f := &bookingFixture{
		bookings: new(mockBookingRepo),
		ledger:   new(mockLedger),
		wallets:  new(mockWalletRepo),
		pub:      new(recordingPublisher),
	}
	f.svc = NewBookingService(f.bookings, f.ledger, f.wallets, locks, f.pub, quietLogger())
	f.svc.now = func() time.Time { return fixedNow }
	return f
}

func sampleBooking(status models.BookingStatus, payment models.PaymentStatus, eventDate time.Time) *models.Booking {
	return &models.Booking{
		ID:            uuid.New(),
		ClientID:      uuid.New(),
		MusicianID:    uuid.New(),
		Status:        status,
		PaymentStatus: payment,
		Amount:        decimal.NewFromInt(100000),
		Currency:      "NGN",
		EventDate:     models.NewEventDate(eventDate),
	}
}

func TestAcceptBooking(t *testing.T) {
	f := newBookingFixture(t, nil)
	b := sampleBooking(models.BookingPending, models.PaymentUnpaid, fixedNow.Add(72*time.Hour))
	musician := Actor{ID: b.MusicianID, Role: models.RoleMusician}

	confirmed := *b
	confirmed.Status = models.BookingConfirmed
	f.bookings.On("GetBooking", mock.Anything, b.ID).Return(b, nil)
	f.bookings.On("UpdateBookingStatus", mock.Anything, b.ID, models.BookingPending, models.BookingConfirmed, fixedNow).
		Return(&confirmed, nil)

	got, err := f.svc.AcceptBooking(context.Background(), musician, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingConfirmed, got.Status)

	require.Len(t, f.pub.sent, 1)
	assert.Equal(t, events.BookingConfirmed, f.pub.sent[0].Key)
	assert.Equal(t, b.ClientID, f.pub.sent[0].RecipientID)
	f.bookings.AssertExpectations(t)
}

func TestDeclineBooking(t *testing.T) {
	f := newBookingFixture(t, nil)
	b := sampleBooking(models.BookingPending, models.PaymentUnpaid, fixedNow.Add(72*time.Hour))

	declined := *b
	declined.Status = models.BookingDeclined
	f.bookings.On("GetBooking", mock.Anything, b.ID).Return(b, nil)
	f.bookings.On("UpdateBookingStatus", mock.Anything, b.ID, models.BookingPending, models.BookingDeclined, fixedNow).
		Return(&declined, nil)

	got, err := f.svc.DeclineBooking(context.Background(), Actor{ID: b.MusicianID, Role: models.RoleMusician}, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingDeclined, got.Status)
	assert.Equal(t, []string{events.BookingDeclined}, f.pub.keys())
}

func TestAcceptBookingRejectsClient(t *testing.T) {
	f := newBookingFixture(t, nil)
	b := sampleBooking(models.BookingPending, models.PaymentUnpaid, fixedNow.Add(72*time.Hour))
	f.bookings.On("GetBooking", mock.Anything, b.ID).Return(b, nil)

	_, err := f.svc.AcceptBooking(context.Background(), Actor{ID: b.ClientID, Role: models.RoleClient}, b.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
	f.bookings.AssertNotCalled(t, "UpdateBookingStatus", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAcceptBookingNotPending(t *testing.T) {
	f := newBookingFixture(t, nil)
	b := sampleBooking(models.BookingConfirmed, models.PaymentPaid, fixedNow.Add(72*time.Hour))
	f.bookings.On("GetBooking", mock.Anything, b.ID).Return(b, nil)

	_, err := f.svc.AcceptBooking(context.Background(), Actor{ID: b.MusicianID, Role: models.RoleMusician}, b.ID)
	assert.ErrorIs(t, err, models.ErrConflict)
	assert.Empty(t, f.pub.sent)
}

func TestMarkComplete(t *testing.T) {
	f := newBookingFixture(t, nil)
	b := sampleBooking(models.BookingConfirmed, models.PaymentPaid, fixedNow.Add(-2*time.Hour))
	client := Actor{ID: b.ClientID, Role: models.RoleClient}

	completed := *b
	completed.Status = models.BookingCompleted
	markedAt := fixedNow
	completed.MarkedCompleteAt = &markedAt

	f.bookings.On("GetBooking", mock.Anything, b.ID).Return(b, nil)
	f.ledger.On("CompleteBooking", mock.Anything, b.ID, fixedNow).Return(&completed, nil)

	got, err := f.svc.MarkComplete(context.Background(), client, b.ID)
	require.NoError(t, err)
	assert.Equal(t, models.BookingCompleted, got.Status)
	assert.Equal(t, fixedNow.Add(24*time.Hour), *got.FundReleaseAt())

	require.Len(t, f.pub.sent, 1)
	assert.Equal(t, events.BookingCompleted, f.pub.sent[0].Key)
	assert.Equal(t, b.MusicianID, f.pub.sent[0].RecipientID)
}

func TestMarkCompleteRunsCompletionHooks(t *testing.T) {
	f := newBookingFixture(t, nil)
	b := sampleBooking(models.BookingConfirmed, models.PaymentPaid, fixedNow.Add(-2*time.Hour))
	completed := *b
	completed.Status = models.BookingCompleted

	var forgotten []uuid.UUID
	f.svc.OnComplete(func(id uuid.UUID) { forgotten = append(forgotten, id) })
	f.bookings.On("GetBooking", mock.Anything, b.ID).Return(b, nil)
	f.ledger.On("CompleteBooking", mock.Anything, b.ID, fixedNow).Return(&completed, nil).Once()
	f.ledger.On("CompleteBooking", mock.Anything, b.ID, fixedNow).Return(nil, models.ErrConflict)

	_, err := f.svc.MarkComplete(context.Background(), Actor{ID: b.ClientID}, b.ID)
	require.NoError(t, err)
	_, err = f.svc.MarkComplete(context.Background(), Actor{ID: b.ClientID}, b.ID)
	assert.ErrorIs(t, err, models.ErrConflict)

	assert.Equal(t, []uuid.UUID{b.ID}, forgotten)
}

func TestMarkCompleteIneligible(t *testing.T) {
	cases := []struct {
		name    string
		booking *models.Booking
	}{
		{"unpaid", sampleBooking(models.BookingConfirmed, models.PaymentUnpaid, fixedNow.Add(-time.Hour))},
		{"future event", sampleBooking(models.BookingConfirmed, models.PaymentPaid, fixedNow.Add(time.Hour))},
		{"already completed", sampleBooking(models.BookingCompleted, models.PaymentPaid, fixedNow.Add(-time.Hour))},
		{"declined", sampleBooking(models.BookingDeclined, models.PaymentPaid, fixedNow.Add(-time.Hour))},
		{"pending but paid", sampleBooking(models.BookingPending, models.PaymentPaid, fixedNow.Add(-time.Hour))},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newBookingFixture(t, nil)
			f.bookings.On("GetBooking", mock.Anything, tc.booking.ID).Return(tc.booking, nil)

			_, err := f.svc.MarkComplete(context.Background(), Actor{ID: tc.booking.ClientID}, tc.booking.ID)
			assert.ErrorIs(t, err, models.ErrConflict)
			f.ledger.AssertNotCalled(t, "CompleteBooking", mock.Anything, mock.Anything, mock.Anything)
		})
	}
}

func TestMarkCompleteSecondInvocationConflicts(t *testing.T) {
	rdb, rmock := redismock.NewClientMock()
	f := newBookingFixture(t, cache.New(rdb))
	b := sampleBooking(models.BookingConfirmed, models.PaymentPaid, fixedNow.Add(-2*time.Hour))
	f.bookings.On("GetBooking", mock.Anything, b.ID).Return(b, nil)

	// the lock value is a per-call token, not the user id
	rmock.Regexp().ExpectSetNX(cache.LockKey("mark-complete", b.ID), `^[0-9a-f-]{36}$`, cache.DefaultLockTTL).SetVal(false)

	_, err := f.svc.MarkComplete(context.Background(), Actor{ID: b.ClientID}, b.ID)
	assert.ErrorIs(t, err, models.ErrConflict)
	f.ledger.AssertNotCalled(t, "CompleteBooking", mock.Anything, mock.Anything, mock.Anything)
	assert.NoError(t, rmock.ExpectationsWereMet())
}

func TestGetBookingDetail(t *testing.T) {
	f := newBookingFixture(t, nil)
	b := sampleBooking(models.BookingCompleted, models.PaymentPaid, fixedNow.Add(-48*time.Hour))
	marked := fixedNow.Add(-6 * time.Hour)
	b.MarkedCompleteAt = &marked

	escrow := &models.EscrowTransaction{BookingID: b.ID, Status: models.EscrowHeld}
	f.bookings.On("GetBooking", mock.Anything, b.ID).Return(b, nil)
	f.wallets.On("GetEscrowForBooking", mock.Anything, b.ID).Return(escrow, nil)

	got, err := f.svc.GetBooking(context.Background(), Actor{ID: b.ClientID, Role: models.RoleClient}, b.ID)
	require.NoError(t, err)
	assert.False(t, got.CanAccept)
	assert.False(t, got.CanMarkComplete)
	assert.True(t, got.CanReleaseFunds)
	assert.Equal(t, int64((18 * time.Hour).Seconds()), got.ReleaseCountdown)
	assert.True(t, decimal.NewFromInt(10000).Equal(got.Fees.PlatformFee))
}

func TestGetBookingForbiddenToStrangers(t *testing.T) {
	f := newBookingFixture(t, nil)
	b := sampleBooking(models.BookingPending, models.PaymentUnpaid, fixedNow)
	f.bookings.On("GetBooking", mock.Anything, b.ID).Return(b, nil)

	_, err := f.svc.GetBooking(context.Background(), Actor{ID: uuid.New()}, b.ID)
	assert.ErrorIs(t, err, models.ErrForbidden)
}

func TestReleaseDueEscrowsSkipsAlreadyReleased(t *testing.T) {
	f := newBookingFixture(t, nil)
	due := sampleBooking(models.BookingCompleted, models.PaymentPaid, fixedNow.Add(-72*time.Hour))
	raced := uuid.New()

	f.ledger.On("DueEscrowReleases", mock.Anything, fixedNow, escrowReleaseBatch).Return([]uuid.UUID{due.ID, raced}, nil)
	f.ledger.On("ReleaseEscrow", mock.Anything, due.ID, fixedNow, true).
		Return(&models.EscrowTransaction{BookingID: due.ID, Currency: "NGN", NetAmount: decimal.NewFromInt(82500)}, nil)
	f.ledger.On("ReleaseEscrow", mock.Anything, raced, fixedNow, true).Return(nil, models.ErrConflict)
	f.bookings.On("GetBooking", mock.Anything, due.ID).Return(due, nil)

	assert.Equal(t, 1, f.svc.ReleaseDueEscrows(context.Background()))
	require.Len(t, f.pub.sent, 1)
	assert.Equal(t, events.PaymentReleased, f.pub.sent[0].Key)
	assert.Equal(t, due.MusicianID, f.pub.sent[0].RecipientID)
}

func TestReleaseFundsRequiresCompletion(t *testing.T) {
	f := newBookingFixture(t, nil)
	b := sampleBooking(models.BookingConfirmed, models.PaymentPaid, fixedNow.Add(-time.Hour))
	f.bookings.On("GetBooking", mock.Anything, b.ID).Return(b, nil)

	_, err := f.svc.ReleaseFunds(context.Background(), Actor{ID: b.ClientID}, b.ID)
	assert.True(t, errors.Is(err, models.ErrConflict))
}
