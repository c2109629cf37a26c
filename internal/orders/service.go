package orders

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/joao-fontenele/giftorder/internal/auth"
	"github.com/joao-fontenele/giftorder/internal/domain"
)

var tracer = otel.Tracer("orders/service")

// Tx is the set of operations available inside one placement transaction.
// Lock* methods return nil, nil for absent rows and hold the row lock until
// the transaction ends. Debit* methods return ErrInsufficientStock or
// ErrInsufficientPoint when their guard fails.
type Tx interface {
	LockOption(ctx context.Context, optionID int64) (*domain.Option, error)
	LockMember(ctx context.Context, memberID int64) (*domain.Member, error)
	DebitStock(ctx context.Context, optionID int64, quantity int) error
	DebitPoint(ctx context.Context, memberID int64, amount int64) error
	CreateOrder(ctx context.Context, order *domain.Order) error
}

// Store runs fn atomically: every write fn made is committed if fn returns
// nil and rolled back otherwise.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// EventPublisher publishes domain events after the placement committed.
type EventPublisher interface {
	Publish(ctx context.Context, key string, event any) error
}

// PlaceOrderCommand is the validated-on-use input of PlaceOrder. OptionID is
// a pointer so a missing id can be told apart from id 0.
type PlaceOrderCommand struct {
	OptionID *int64
	Quantity int
	Message  string
}

// Validate checks the fields without touching any shared state.
func (c PlaceOrderCommand) Validate() error {
	if c.OptionID == nil {
		return invalid("optionId is required")
	}
	if *c.OptionID <= 0 {
		return invalid("optionId must be positive")
	}
	if c.Quantity <= 0 {
		return invalid("quantity must be positive")
	}
	return nil
}

type Service struct {
	store     Store
	publisher EventPublisher
	metrics   *Metrics
	logger    *slog.Logger
	txTimeout time.Duration
	now       func() time.Time
}

type ServiceOption func(*Service)

// WithPublisher enables order.placed events. Without it no events are sent.
func WithPublisher(p EventPublisher) ServiceOption {
	return func(s *Service) {
		s.publisher = p
	}
}

func WithMetrics(m *Metrics) ServiceOption {
	return func(s *Service) {
		s.metrics = m
	}
}

// WithTxTimeout bounds each placement transaction.
func WithTxTimeout(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.txTimeout = d
	}
}

func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

func NewService(store Store, logger *slog.Logger, opts ...ServiceOption) *Service {
	s := &Service{
		store:  store,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// PlaceOrder debits the option stock and the member's points and records the
// order, all in one transaction. Business rejections are returned as
// *Failure values; any other error is an infrastructure fault after which no
// partial state remains.
func (s *Service) PlaceOrder(ctx context.Context, principal auth.Principal, cmd PlaceOrderCommand) (*domain.Order, error) {
	ctx, span := tracer.Start(ctx, "PlaceOrder", trace.WithAttributes(
		attribute.Int("order.quantity", cmd.Quantity),
	))
	defer span.End()

	start := s.now()
	order, total, err := s.placeOrder(ctx, principal, cmd)
	s.metrics.record(ctx, start, s.now(), err)

	if err != nil {
		if kind, ok := KindOf(err); ok {
			span.SetAttributes(attribute.String("order.rejection", string(kind)))
			s.logger.InfoContext(ctx, "order rejected", "reason", kind, "detail", err.Error())
			return nil, err
		}
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		s.logger.ErrorContext(ctx, "failed to place order", "error", err)
		return nil, err
	}

	span.SetAttributes(attribute.Int64("order.id", order.ID))
	s.logger.InfoContext(ctx, "order placed",
		"order_id", order.ID,
		"option_id", order.OptionID,
		"member_id", order.MemberID,
		"quantity", order.Quantity,
		"total_price", total,
	)

	s.publishPlaced(ctx, principal.Member(), order, total)

	return order, nil
}

func (s *Service) placeOrder(ctx context.Context, principal auth.Principal, cmd PlaceOrderCommand) (*domain.Order, int64, error) {
	if !principal.IsAuthenticated() {
		return nil, 0, ErrUnauthorized
	}
	if err := cmd.Validate(); err != nil {
		return nil, 0, err
	}

	if s.txTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.txTimeout)
		defer cancel()
	}

	memberID := principal.Member().ID
	optionID := *cmd.OptionID
	var (
		order *domain.Order
		total int64
	)

	err := s.store.InTx(ctx, func(tx Tx) error {
		// Option before member, always, so concurrent placements acquire
		// row locks in the same order.
		opt, err := tx.LockOption(ctx, optionID)
		if err != nil {
			return fmt.Errorf("load option %d: %w", optionID, err)
		}
		if opt == nil {
			return fmt.Errorf("%w: id %d", ErrOptionNotFound, optionID)
		}

		cost, ok := totalPrice(cmd.Quantity, opt.Price)

		if opt.Quantity < cmd.Quantity {
			return fmt.Errorf("%w: option %d has %d, requested %d", ErrInsufficientStock, optionID, opt.Quantity, cmd.Quantity)
		}

		member, err := tx.LockMember(ctx, memberID)
		if err != nil {
			return fmt.Errorf("load member %d: %w", memberID, err)
		}
		if member == nil {
			return ErrUnauthorized
		}
		if !ok || member.Point < cost {
			return fmt.Errorf("%w: member %d has %d, requires %d", ErrInsufficientPoint, memberID, member.Point, cost)
		}

		if err := tx.DebitStock(ctx, optionID, cmd.Quantity); err != nil {
			return fmt.Errorf("debit stock: %w", err)
		}
		if err := tx.DebitPoint(ctx, memberID, cost); err != nil {
			return fmt.Errorf("debit point: %w", err)
		}

		created := &domain.Order{
			MemberID:      memberID,
			OptionID:      optionID,
			Quantity:      cmd.Quantity,
			Message:       cmd.Message,
			OrderDateTime: s.now().UTC(),
		}
		if err := tx.CreateOrder(ctx, created); err != nil {
			return fmt.Errorf("create order: %w", err)
		}

		order = created
		total = cost
		return nil
	})
	if err != nil {
		return nil, 0, err
	}

	return order, total, nil
}

func (s *Service) publishPlaced(ctx context.Context, member *domain.Member, order *domain.Order, total int64) {
	if s.publisher == nil {
		return
	}

	event := domain.OrderPlacedEvent{
		EventID:       uuid.NewString(),
		OrderID:       order.ID,
		MemberEmail:   member.Email,
		OptionID:      order.OptionID,
		Quantity:      order.Quantity,
		TotalPrice:    total,
		Message:       order.Message,
		OrderDateTime: order.OrderDateTime,
	}
	if err := s.publisher.Publish(ctx, strconv.FormatInt(order.ID, 10), event); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish order placed event", "error", err, "order_id", order.ID)
	}
}

// totalPrice returns quantity*price and false when the product overflows.
func totalPrice(quantity int, price int64) (int64, bool) {
	q := int64(quantity)
	if price > 0 && q > math.MaxInt64/price {
		return 0, false
	}
	return q * price, true
}
