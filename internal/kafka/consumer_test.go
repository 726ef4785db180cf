package kafka

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"coupon-service/internal/config"
	"coupon-service/internal/logger"
	"coupon-service/internal/models"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
)

func testLogger() *logger.Logger {
	return logger.New(&config.LoggerConfig{Level: "error", Format: "json"})
}

func encodeEvent(t *testing.T, ev models.Event) *sarama.ConsumerMessage {
	t.Helper()
	data, err := json.Marshal(ev)
	if err != nil {
		t.Fatalf("marshal event: %v", err)
	}
	return &sarama.ConsumerMessage{Topic: "coupons", Key: []byte(ev.CouponID.String()), Value: data}
}

func TestConsumer_ProcessMessage(t *testing.T) {
	handlerErr := errors.New("cache unavailable")

	tests := []struct {
		name     string
		handlers map[models.EventType]EventHandler
		msg      func(t *testing.T) *sarama.ConsumerMessage
		wantErr  error
		anyErr   bool
	}{
		{
			name: "dispatches to registered handler",
			handlers: map[models.EventType]EventHandler{
				models.EventTypeCouponDeleted: func(context.Context, *models.Event) error { return nil },
			},
			msg: func(t *testing.T) *sarama.ConsumerMessage {
				return encodeEvent(t, models.Event{ID: uuid.New(), Type: models.EventTypeCouponDeleted, CouponID: uuid.New()})
			},
		},
		{
			name:     "unknown event type is skipped",
			handlers: map[models.EventType]EventHandler{},
			msg: func(t *testing.T) *sarama.ConsumerMessage {
				return encodeEvent(t, models.Event{ID: uuid.New(), Type: "coupon.archived"})
			},
		},
		{
			name: "handler failure is wrapped",
			handlers: map[models.EventType]EventHandler{
				models.EventTypeCouponUpdated: func(context.Context, *models.Event) error { return handlerErr },
			},
			msg: func(t *testing.T) *sarama.ConsumerMessage {
				return encodeEvent(t, models.Event{ID: uuid.New(), Type: models.EventTypeCouponUpdated})
			},
			wantErr: handlerErr,
		},
		{
			name:     "malformed payload",
			handlers: map[models.EventType]EventHandler{},
			msg: func(*testing.T) *sarama.ConsumerMessage {
				return &sarama.ConsumerMessage{Topic: "coupons", Value: []byte("{coupon")}
			},
			anyErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := NewTestConsumer(nil, testLogger())
			for eventType, h := range tt.handlers {
				c.RegisterHandler(eventType, h)
			}

			err := c.processMessage(tt.msg(t))
			switch {
			case tt.wantErr != nil:
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("expected %v, got %v", tt.wantErr, err)
				}
			case tt.anyErr:
				if err == nil {
					t.Fatalf("expected error")
				}
			default:
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
			}
		})
	}
}

func TestConsumer_ProcessMessage_CarriesSnapshot(t *testing.T) {
	c := &Consumer{log: testLogger(), handlers: map[models.EventType]EventHandler{}}

	var got *models.Event
	c.RegisterHandler(models.EventTypeCouponCreated, func(ctx context.Context, event *models.Event) error {
		if ctx == nil {
			t.Errorf("handler received nil context")
		}
		got = event
		return nil
	})

	couponID := uuid.New()
	msg := encodeEvent(t, models.Event{
		ID:       uuid.New(),
		Type:     models.EventTypeCouponCreated,
		CouponID: couponID,
		Coupon:   &models.CouponSnapshot{ID: couponID, Code: "SUMMER10"},
	})

	if err := c.processMessage(msg); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.CouponID != couponID {
		t.Fatalf("handler did not receive coupon %s: %+v", couponID, got)
	}
	if got.Coupon == nil || got.Coupon.Code != "SUMMER10" {
		t.Fatalf("snapshot lost in transit: %+v", got.Coupon)
	}
}

func TestConsumer_HandlerRegistry(t *testing.T) {
	c := NewTestConsumer(nil, testLogger())
	if c.Handler(models.EventTypeCouponCreated) != nil {
		t.Fatalf("expected no handler before registration")
	}

	noop := func(context.Context, *models.Event) error { return nil }
	c.RegisterHandler(models.EventTypeCouponCreated, noop)
	c.RegisterHandler(models.EventTypeCouponDeleted, noop)
	c.RegisterHandler(models.EventTypeCouponDeleted, noop)

	if c.Handler(models.EventTypeCouponDeleted) == nil {
		t.Fatalf("expected handler for %s", models.EventTypeCouponDeleted)
	}
	if c.HandlerCount() != 2 {
		t.Fatalf("expected 2 handlers, got %d", c.HandlerCount())
	}
}

type fakeGroup struct {
	mu     sync.Mutex
	topics []string
	calls  int32
	closed bool
}

func (g *fakeGroup) Consume(ctx context.Context, topics []string, handler sarama.ConsumerGroupHandler) error {
	atomic.AddInt32(&g.calls, 1)
	g.mu.Lock()
	g.topics = topics
	g.mu.Unlock()
	<-ctx.Done()
	return ctx.Err()
}

func (g *fakeGroup) Errors() <-chan error { return nil }
func (g *fakeGroup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.closed = true
	return nil
}
func (g *fakeGroup) Pause(map[string][]int32)  {}
func (g *fakeGroup) Resume(map[string][]int32) {}
func (g *fakeGroup) PauseAll()                 {}
func (g *fakeGroup) ResumeAll()                {}

func TestConsumer_StartStop(t *testing.T) {
	group := &fakeGroup{}
	c := NewTestConsumer(group, testLogger())

	if err := c.Start(); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for atomic.LoadInt32(&group.calls) == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}

	if err := c.Stop(); err != nil {
		t.Fatalf("stop failed: %v", err)
	}

	group.mu.Lock()
	defer group.mu.Unlock()
	if atomic.LoadInt32(&group.calls) == 0 {
		t.Fatalf("expected Consume to be called")
	}
	if len(group.topics) != 1 || group.topics[0] != "coupons" {
		t.Fatalf("unexpected topics %v", group.topics)
	}
	if !group.closed {
		t.Fatalf("expected group to be closed")
	}
}

type recordingSession struct {
	ctx    context.Context
	marked []int64
}

func (s *recordingSession) Claims() map[string][]int32               { return nil }
func (s *recordingSession) MemberID() string                         { return "member" }
func (s *recordingSession) GenerationID() int32                      { return 1 }
func (s *recordingSession) MarkOffset(string, int32, int64, string)  {}
func (s *recordingSession) ResetOffset(string, int32, int64, string) {}
func (s *recordingSession) Commit()                                  {}
func (s *recordingSession) Context() context.Context                 { return s.ctx }

func (s *recordingSession) MarkMessage(msg *sarama.ConsumerMessage, _ string) {
	s.marked = append(s.marked, msg.Offset)
}

type channelClaim struct {
	msgs chan *sarama.ConsumerMessage
}

func (c *channelClaim) Topic() string                            { return "coupons" }
func (c *channelClaim) Partition() int32                         { return 0 }
func (c *channelClaim) InitialOffset() int64                     { return 0 }
func (c *channelClaim) HighWaterMarkOffset() int64               { return int64(cap(c.msgs)) }
func (c *channelClaim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

func TestConsumer_ConsumeClaim_MarksEveryMessage(t *testing.T) {
	c := NewTestConsumer(nil, testLogger())

	var handled int
	c.RegisterHandler(models.EventTypeCouponCreated, func(context.Context, *models.Event) error {
		handled++
		return nil
	})

	msgs := make(chan *sarama.ConsumerMessage, 3)
	ok := encodeEvent(t, models.Event{ID: uuid.New(), Type: models.EventTypeCouponCreated})
	ok.Offset = 0
	broken := &sarama.ConsumerMessage{Topic: "coupons", Value: []byte("nope"), Offset: 1}
	again := encodeEvent(t, models.Event{ID: uuid.New(), Type: models.EventTypeCouponCreated})
	again.Offset = 2
	msgs <- ok
	msgs <- broken
	msgs <- again
	close(msgs)

	session := &recordingSession{ctx: context.Background()}
	if err := c.ConsumeClaim(session, &channelClaim{msgs: msgs}); err != nil {
		t.Fatalf("consume claim failed: %v", err)
	}

	if handled != 2 {
		t.Fatalf("expected 2 handled events, got %d", handled)
	}
	if len(session.marked) != 3 {
		t.Fatalf("expected all offsets marked, got %v", session.marked)
	}
}

func TestConsumer_ConsumeClaim_StopsOnSessionEnd(t *testing.T) {
	c := NewTestConsumer(nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	session := &recordingSession{ctx: ctx}
	claim := &channelClaim{msgs: make(chan *sarama.ConsumerMessage)}
	if err := c.ConsumeClaim(session, claim); err != nil {
		t.Fatalf("expected clean exit, got %v", err)
	}
	if len(session.marked) != 0 {
		t.Fatalf("expected nothing marked")
	}
}

func TestConsumer_SetupCleanup(t *testing.T) {
	c := &Consumer{}
	if err := c.Setup(nil); err != nil {
		t.Fatalf("setup: %v", err)
	}
	if err := c.Cleanup(nil); err != nil {
		t.Fatalf("cleanup: %v", err)
	}
}

func TestNewConsumer_UnreachableBroker(t *testing.T) {
	cfg := &config.KafkaConfig{Brokers: []string{"localhost:0"}, GroupID: "coupon-service", Topics: config.Topics{Coupons: "coupons"}}
	if _, err := NewConsumer(cfg, testLogger()); err == nil {
		t.Fatalf("expected error creating consumer")
	}
}
