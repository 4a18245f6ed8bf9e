package checkout

import (
	"context"
	"fmt"
	"sync/atomic"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/SalBom/app-sb-sub000/internal/domain"
)

// OrderCreator commits an order to the backend.
type OrderCreator interface {
	CreateOrder(ctx context.Context, req domain.OrderRequest) (domain.DraftOrder, error)
}

// Submission is the outcome of a successful terminal commit.
type Submission struct {
	Order         domain.DraftOrder
	TransactionID string
}

// Submitter performs the terminal commit at most once at a time. The guard is
// a compare-and-set on the submission status, taken before any network work:
// Idle|Failed -> Submitting -> Succeeded|Failed.
type Submitter struct {
	creator  OrderCreator
	status   atomic.Int32
	attempts atomic.Int64
	newTxID  func() string
	logger   *zap.Logger
}

func NewSubmitter(creator OrderCreator, logger *zap.Logger) *Submitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Submitter{
		creator: creator,
		newTxID: func() string { return uuid.NewString() },
		logger:  logger,
	}
}

// Submit sends req with a fresh transaction id. A concurrent call fails fast
// with ErrSubmissionInProgress; after success every call fails with
// ErrAlreadySubmitted. Failures release the guard for a manual retry.
func (s *Submitter) Submit(ctx context.Context, req domain.OrderRequest) (Submission, error) {
	if err := s.acquire(); err != nil {
		return Submission{}, err
	}
	s.attempts.Add(1)

	req.TransactionID = s.newTxID()
	order, err := s.creator.CreateOrder(ctx, req)
	if err != nil {
		s.status.Store(int32(domain.SubmissionFailed))
		s.logger.Warn("order submission failed",
			zap.String("transaction_id", req.TransactionID),
			zap.Error(err))
		return Submission{}, fmt.Errorf("order submission failed: %w", err)
	}

	s.status.Store(int32(domain.SubmissionSucceeded))
	s.logger.Info("order submitted",
		zap.Int64("order_id", order.OrderID),
		zap.String("order_number", order.OrderNumber),
		zap.String("transaction_id", req.TransactionID))
	return Submission{Order: order, TransactionID: req.TransactionID}, nil
}

func (s *Submitter) acquire() error {
	for {
		current := domain.SubmissionStatus(s.status.Load())
		if !domain.CanSubmissionTransition(current, domain.SubmissionSubmitting) {
			switch current {
			case domain.SubmissionSubmitting:
				return ErrSubmissionInProgress
			case domain.SubmissionSucceeded:
				return ErrAlreadySubmitted
			default:
				return illegal(current, domain.SubmissionSubmitting)
			}
		}
		if s.status.CompareAndSwap(int32(current), int32(domain.SubmissionSubmitting)) {
			return nil
		}
	}
}

func (s *Submitter) Status() domain.SubmissionStatus {
	return domain.SubmissionStatus(s.status.Load())
}

// Attempts counts submissions that got past the guard.
func (s *Submitter) Attempts() int64 {
	return s.attempts.Load()
}

// Reset returns the submitter to Idle for a new checkout session. It refuses
// while a submission is in flight.
func (s *Submitter) Reset() bool {
	for {
		current := s.status.Load()
		if domain.SubmissionStatus(current) == domain.SubmissionSubmitting {
			return false
		}
		if s.status.CompareAndSwap(current, int32(domain.SubmissionIdle)) {
			return true
		}
	}
}
