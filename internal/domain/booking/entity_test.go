//go:build unit

package booking_test

import (
	"testing"
	"time"

	"vmbook/internal/domain/booking"
	"vmbook/tests/common/builder"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testCase struct {
	name   string
	mutate func(*builder.BookingBuilder)
	errIs  error
}

func TestBooking(t *testing.T) {
	t.Run("basic success case", func(t *testing.T) {
		actual, err := builder.NewBookingBuilder().BuildDomain()
		require.NoError(t, err)
		require.NotNil(t, actual)

		assert.NotEqual(t, uuid.Nil, actual.ID())
		assert.Equal(t, booking.StatusPending, actual.Status())
		assert.False(t, actual.CreatedAt().IsZero())
		assert.Equal(t, actual.CreatedAt(), actual.UpdatedAt())
		assert.Nil(t, actual.VMName())
		assert.Nil(t, actual.LastRunAt())
	})

	t.Run("window validation", func(t *testing.T) {
		runCases(t, []testCase{
			{
				name: "start equals end",
				mutate: func(b *builder.BookingBuilder) {
					b.EndAt = b.StartAt
				},
				errIs: booking.ErrStartNotBeforeEnd,
			},
			{
				name: "start after end",
				mutate: func(b *builder.BookingBuilder) {
					b.EndAt = b.StartAt.Add(-time.Hour)
				},
				errIs: booking.ErrStartNotBeforeEnd,
			},
		})
	})

	t.Run("duration policy", func(t *testing.T) {
		runCases(t, []testCase{
			{
				name:   "below minimum duration",
				mutate: func(b *builder.BookingBuilder) { b.WithDuration(29 * time.Minute) },
				errIs:  booking.ErrDurationTooShort,
			},
			{
				name:   "exactly minimum duration",
				mutate: func(b *builder.BookingBuilder) { b.WithDuration(30 * time.Minute) },
			},
			{
				name:   "exactly maximum duration",
				mutate: func(b *builder.BookingBuilder) { b.WithDuration(6 * time.Hour) },
			},
			{
				name:   "above maximum duration",
				mutate: func(b *builder.BookingBuilder) { b.WithDuration(6*time.Hour + time.Minute) },
				errIs:  booking.ErrDurationTooLong,
			},
			{
				name: "unbounded policy accepts any duration",
				mutate: func(b *builder.BookingBuilder) {
					b.MinDuration = 0
					b.MaxDuration = 0
					b.WithDuration(48 * time.Hour)
				},
			},
		})
	})

	t.Run("status transitions", func(t *testing.T) {
		newBooking := func(t *testing.T) *booking.Booking {
			t.Helper()
			b, err := builder.NewBookingBuilder().BuildDomain()
			require.NoError(t, err)
			return b
		}

		t.Run("approve pending booking", func(t *testing.T) {
			b := newBooking(t)
			require.NoError(t, b.Approve())
			assert.Equal(t, booking.StatusApproved, b.Status())
			assert.True(t, b.IsEligibleForRun())
		})

		t.Run("approve is idempotent", func(t *testing.T) {
			b := newBooking(t)
			require.NoError(t, b.Approve())
			require.NoError(t, b.Approve())
			assert.Equal(t, booking.StatusApproved, b.Status())
		})

		t.Run("reject pending booking", func(t *testing.T) {
			b := newBooking(t)
			require.NoError(t, b.Reject())
			assert.Equal(t, booking.StatusRejected, b.Status())
			assert.False(t, b.IsEligibleForRun())
		})

		t.Run("reject approved booking", func(t *testing.T) {
			b := newBooking(t)
			require.NoError(t, b.Approve())
			require.NoError(t, b.Reject())
			assert.Equal(t, booking.StatusRejected, b.Status())
		})

		t.Run("reject rejected booking fails", func(t *testing.T) {
			b := newBooking(t)
			require.NoError(t, b.Reject())
			require.ErrorIs(t, b.Reject(), booking.ErrAlreadyClosed)
		})

		t.Run("approve rejected booking fails", func(t *testing.T) {
			b := newBooking(t)
			require.NoError(t, b.Reject())
			require.ErrorIs(t, b.Approve(), booking.ErrNotPending)
		})

		t.Run("complete requires running", func(t *testing.T) {
			b := newBooking(t)
			require.ErrorIs(t, b.Complete(), booking.ErrNotRunning)

			running := booking.ReconstructBooking(
				b.ID(), b.UserID(), b.Window(), booking.StatusRunning,
				nil, nil, nil, nil, nil, b.CreatedAt(), b.UpdatedAt(),
			)
			require.NoError(t, running.Complete())
			assert.Equal(t, booking.StatusCompleted, running.Status())
		})
	})

	t.Run("UUID uniqueness", func(t *testing.T) {
		b1, err1 := builder.NewBookingBuilder().BuildDomain()
		b2, err2 := builder.NewBookingBuilder().BuildDomain()
		require.NoError(t, err1)
		require.NoError(t, err2)

		assert.NotEqual(t, b1.ID(), b2.ID())
	})
}

func runCases(t *testing.T, cases []testCase) {
	t.Helper()
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			actual, err := builder.NewBookingBuilder().With(c.mutate).BuildDomain()

			if c.errIs == nil {
				require.NotNil(t, actual)
				require.NoError(t, err)
			} else {
				require.Nil(t, actual)
				require.Error(t, err)
				require.ErrorIs(t, err, c.errIs)
			}
		})
	}
}
