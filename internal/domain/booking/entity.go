package booking

import (
	"errors"
	"time"

	"vmbook/internal/pkg/clock"

	"github.com/google/uuid"
)

var (
	ErrNotPending    = errors.New("booking is not pending")
	ErrNotApproved   = errors.New("booking is not approved")
	ErrNotRunning    = errors.New("booking is not running")
	ErrAlreadyClosed = errors.New("booking is in a terminal state")
)

type Services struct {
	Clock  clock.Clock
	Policy Policy
}

// Booking reserves the shared VM for a time window. The disk-swap workflow
// fills vmName/diskName once execution starts; lastRunAt/lastStatus/lastError
// track the most recent execution attempt independently of status.
type Booking struct {
	id         uuid.UUID
	userID     uuid.UUID
	window     TimeWindow
	status     Status
	vmName     *string
	diskName   *string
	lastRunAt  *time.Time
	lastStatus *string
	lastError  *string
	createdAt  time.Time
	updatedAt  time.Time
}

func NewBooking(services *Services, userID uuid.UUID, window TimeWindow) (*Booking, error) {
	if err := services.Policy.Validate(window); err != nil {
		return nil, err
	}

	now := services.Clock.Now()
	return &Booking{
		id:        uuid.New(),
		userID:    userID,
		window:    window,
		status:    StatusPending,
		createdAt: now,
		updatedAt: now,
	}, nil
}

func ReconstructBooking(
	id, userID uuid.UUID,
	window TimeWindow,
	status Status,
	vmName, diskName *string,
	lastRunAt *time.Time,
	lastStatus, lastError *string,
	createdAt, updatedAt time.Time,
) *Booking {
	return &Booking{
		id:         id,
		userID:     userID,
		window:     window,
		status:     status,
		vmName:     vmName,
		diskName:   diskName,
		lastRunAt:  lastRunAt,
		lastStatus: lastStatus,
		lastError:  lastError,
		createdAt:  createdAt,
		updatedAt:  updatedAt,
	}
}

// Approve moves a pending booking into the blocking set. Scheduling the
// trigger is the caller's concern.
func (b *Booking) Approve() error {
	if b.status != StatusPending && b.status != StatusApproved {
		return ErrNotPending
	}
	b.status = StatusApproved
	return nil
}

// Reject is terminal and allowed from any non-terminal state.
func (b *Booking) Reject() error {
	if b.status.IsTerminal() {
		return ErrAlreadyClosed
	}
	b.status = StatusRejected
	return nil
}

// Complete closes out a booking whose workflow ran; the VM stays provisioned
// until an operator confirms the window is over.
func (b *Booking) Complete() error {
	if b.status != StatusRunning {
		return ErrNotRunning
	}
	b.status = StatusCompleted
	return nil
}

func (b *Booking) IsEligibleForRun() bool {
	return b.status == StatusApproved
}

func (b *Booking) ID() uuid.UUID         { return b.id }
func (b *Booking) UserID() uuid.UUID     { return b.userID }
func (b *Booking) Window() TimeWindow    { return b.window }
func (b *Booking) Status() Status        { return b.status }
func (b *Booking) VMName() *string       { return b.vmName }
func (b *Booking) DiskName() *string     { return b.diskName }
func (b *Booking) LastRunAt() *time.Time { return b.lastRunAt }
func (b *Booking) LastStatus() *string   { return b.lastStatus }
func (b *Booking) LastError() *string    { return b.lastError }
func (b *Booking) CreatedAt() time.Time  { return b.createdAt }
func (b *Booking) UpdatedAt() time.Time  { return b.updatedAt }
