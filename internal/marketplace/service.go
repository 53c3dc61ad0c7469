package marketplace

import (
	"errors"
	"sync"
	"time"

	"github.com/gadgetswap/backend/internal/store"
	"github.com/puzpuzpuz/xsync/v3"
	"go.uber.org/zap"
)

var errMissingStore = errors.New("marketplace: document store is required")

// SagaMetrics records saga outcomes. The metrics package implements it; tests
// can pass nil to disable collection.
type SagaMetrics interface {
	RecordSagaStarted(saga string)
	RecordSagaCommitted(saga string)
	RecordSagaCompensated(saga string)
	RecordCompensationFailure(saga, step string)
}

type nopMetrics struct{}

func (nopMetrics) RecordSagaStarted(string)                 {}
func (nopMetrics) RecordSagaCommitted(string)               {}
func (nopMetrics) RecordSagaCompensated(string)             {}
func (nopMetrics) RecordCompensationFailure(string, string) {}

// ServiceConfig describes the dependencies of the marketplace service.
type ServiceConfig struct {
	Store   store.Store
	Clock   func() time.Time
	Logger  *zap.Logger
	Metrics SagaMetrics
}

// Service implements the marketplace operations: the onboarding and rental
// booking sagas, messaging append, the login-attempt guard, wishlist and
// catalog access. It holds no persistent state of its own; every document is
// owned by the Store.
type Service struct {
	store   store.Store
	clock   func() time.Time
	logger  *zap.Logger
	metrics SagaMetrics

	// gadgetLocks serializes calendar blocking per gadget so two concurrent
	// bookings cannot both pass the existence check and interleave their
	// date appends. chainLocks does the same for per-chain counter updates.
	gadgetLocks *xsync.MapOf[string, *sync.Mutex]
	chainLocks  *xsync.MapOf[string, *sync.Mutex]
}

// NewService constructs the marketplace service.
func NewService(cfg ServiceConfig) (*Service, error) {
	if cfg.Store == nil {
		return nil, errMissingStore
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	collector := cfg.Metrics
	if collector == nil {
		collector = nopMetrics{}
	}
	return &Service{
		store:       cfg.Store,
		clock:       clock,
		logger:      logger,
		metrics:     collector,
		gadgetLocks: xsync.NewMapOf[string, *sync.Mutex](),
		chainLocks:  xsync.NewMapOf[string, *sync.Mutex](),
	}, nil
}

func (s *Service) lockGadget(gadgetID string) func() {
	mutex, _ := s.gadgetLocks.LoadOrStore(gadgetID, &sync.Mutex{})
	mutex.Lock()
	return mutex.Unlock
}

func (s *Service) lockChain(userEmail string) func() {
	mutex, _ := s.chainLocks.LoadOrStore(userEmail, &sync.Mutex{})
	mutex.Lock()
	return mutex.Unlock
}
