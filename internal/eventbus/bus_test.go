package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/suite"
)

type BusSuite struct {
	suite.Suite
	bus *Bus
}

func TestBusSuite(t *testing.T) {
	suite.Run(t, new(BusSuite))
}

func (s *BusSuite) SetupTest() {
	s.bus = NewBus(slog.Default(), WithMaxAttempts(3))
}

// recorder collects delivered events, safe for concurrent subscribers.
type recorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *recorder) handle(_ context.Context, evt Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, evt)
	return nil
}

func (r *recorder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.events)
}

func (s *BusSuite) TestRunDispatchesAfterSuccess() {
	rec := &recorder{}
	s.bus.Subscribe(TypeHitQualified, "rec", rec.handle)

	err := s.bus.Run(context.Background(), func(ctx context.Context) error {
		s.Require().NoError(s.bus.Publish(ctx, New(TypeHitQualified, HitQualified{HitType: "SANCTIONS"})))
		// Nothing is delivered while the unit of work is still running.
		s.Equal(0, rec.count())
		return nil
	})
	s.Require().NoError(err)
	s.Equal(1, rec.count())
}

func (s *BusSuite) TestRunSuppressesEventsOnFailure() {
	rec := &recorder{}
	s.bus.Subscribe(TypeHitQualified, "rec", rec.handle)

	boom := errors.New("boom")
	err := s.bus.Run(context.Background(), func(ctx context.Context) error {
		s.Require().NoError(s.bus.Publish(ctx, New(TypeHitQualified, HitQualified{})))
		return boom
	})
	s.Require().ErrorIs(err, boom)
	s.Equal(0, rec.count())
}

func (s *BusSuite) TestPublishOutsideRunDispatchesInline() {
	rec := &recorder{}
	s.bus.Subscribe(TypeBlockReviewRequested, "rec", rec.handle)

	err := s.bus.Publish(context.Background(), New(TypeBlockReviewRequested, BlockReviewRequested{Kind: "NAME_SCREENING"}))
	s.Require().NoError(err)
	s.Equal(1, rec.count())
}

func (s *BusSuite) TestDeliveryRetriesUntilSuccess() {
	attempts := 0
	s.bus.Subscribe(TypeHitQualified, "flaky", func(_ context.Context, _ Event) error {
		attempts++
		if attempts < 3 {
			return errors.New("transient")
		}
		return nil
	})

	s.Require().NoError(s.bus.Publish(context.Background(), New(TypeHitQualified, HitQualified{})))
	s.Equal(3, attempts)
}

func (s *BusSuite) TestDeliveryGivesUpAfterMaxAttempts() {
	attempts := 0
	s.bus.Subscribe(TypeHitQualified, "broken", func(_ context.Context, _ Event) error {
		attempts++
		return errors.New("permanent")
	})

	// Delivery failure never propagates to the publisher.
	s.Require().NoError(s.bus.Publish(context.Background(), New(TypeHitQualified, HitQualified{})))
	s.Equal(3, attempts)
}

func (s *BusSuite) TestSubscriberFailureDoesNotBlockOthers() {
	rec := &recorder{}
	s.bus.Subscribe(TypeHitQualified, "broken", func(_ context.Context, _ Event) error {
		return errors.New("permanent")
	})
	s.bus.Subscribe(TypeHitQualified, "rec", rec.handle)

	s.Require().NoError(s.bus.Publish(context.Background(), New(TypeHitQualified, HitQualified{})))
	s.Equal(1, rec.count())
}

func (s *BusSuite) TestSubscribeAllSeesEveryType() {
	rec := &recorder{}
	s.bus.SubscribeAll("audit", rec.handle)

	ctx := context.Background()
	s.Require().NoError(s.bus.Publish(ctx, New(TypeHitQualified, HitQualified{})))
	s.Require().NoError(s.bus.Publish(ctx, New(TypeBlockReviewRequested, BlockReviewRequested{})))
	s.Require().NoError(s.bus.Publish(ctx, New(TypeBlockVersionFinal, BlockVersionFinalized{})))
	s.Equal(3, rec.count())
}

func (s *BusSuite) TestListenerPublishDispatchesInline() {
	var nested int
	s.bus.Subscribe(TypeBlockVersionFinal, "nested", func(_ context.Context, _ Event) error {
		nested++
		return nil
	})
	s.bus.Subscribe(TypeHitQualified, "chain", func(ctx context.Context, _ Event) error {
		// Listener contexts carry no stage, so a publish from a listener
		// that does not open its own unit of work dispatches immediately.
		return s.bus.Publish(ctx, New(TypeBlockVersionFinal, BlockVersionFinalized{}))
	})

	err := s.bus.Run(context.Background(), func(ctx context.Context) error {
		return s.bus.Publish(ctx, New(TypeHitQualified, HitQualified{}))
	})
	s.Require().NoError(err)
	s.Equal(1, nested)
}

func (s *BusSuite) TestRunWithoutEventsSucceeds() {
	s.Require().NoError(s.bus.Run(context.Background(), func(ctx context.Context) error {
		return nil
	}))
}
