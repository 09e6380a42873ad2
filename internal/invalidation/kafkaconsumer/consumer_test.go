package kafkaconsumer

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/IBM/sarama"

	"github.com/mohammed-shakir/stac-mosaic/internal/invalidation"
)

type fakeInvalidator struct {
	failFirst atomic.Bool
	mu        sync.Mutex
	seen      []string
}

func (f *fakeInvalidator) Invalidate(_ context.Context, catalog, collection string) error {
	f.mu.Lock()
	f.seen = append(f.seen, catalog+"|"+collection)
	f.mu.Unlock()
	if f.failFirst.Load() {
		f.failFirst.Store(false)
		return errors.New("boom")
	}
	return nil
}

func (f *fakeInvalidator) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.seen)
}

type sess struct {
	ctx    context.Context
	mu     sync.Mutex
	marked []int64
}

func (s *sess) Claims() map[string][]int32 { return nil }
func (s *sess) MemberID() string           { return "" }
func (s *sess) GenerationID() int32        { return 0 }
func (s *sess) MarkMessage(m *sarama.ConsumerMessage, _ string) {
	s.mu.Lock()
	s.marked = append(s.marked, m.Offset)
	s.mu.Unlock()
}
func (s *sess) ResetOffset(_ string, _ int32, _ int64, _ string) {}
func (s *sess) MarkOffset(_ string, _ int32, _ int64, _ string)  {}
func (s *sess) Context() context.Context                         { return s.ctx }
func (s *sess) Errors() <-chan error                             { return nil }
func (s *sess) Commit()                                          {}

type claim struct {
	part int32
	msgs chan *sarama.ConsumerMessage
}

func (c *claim) Topic() string                            { return "stac-catalog-events" }
func (c *claim) Partition() int32                         { return c.part }
func (c *claim) InitialOffset() int64                     { return 0 }
func (c *claim) HighWaterMarkOffset() int64               { return 0 }
func (c *claim) Messages() <-chan *sarama.ConsumerMessage { return c.msgs }

var baseTS = time.Date(2025, 11, 3, 9, 0, 0, 0, time.UTC)

func eventBytes(collection string, seq int) []byte {
	ev := invalidation.Event{
		Version: 1, Op: invalidation.OpItemUpsert,
		Catalog: "https://cat.example/api", Collection: collection,
		TS: baseTS.Add(time.Duration(seq) * time.Second),
	}
	b, _ := json.Marshal(ev)
	return b
}

func newConsumerForTest(inv invalidation.Invalidator) *Consumer {
	cfg := Config{Brokers: []string{"x"}, Topic: "stac-catalog-events", GroupID: "g"}
	return New(cfg, nil, invalidation.NewApplier(nil, inv, 64, "kafka"))
}

func TestSinglePartition_OrderAndCommitAfterWork(t *testing.T) {
	inv := &fakeInvalidator{}
	c := newConsumerForTest(inv)

	g := newGroupHandler(nil, c.ProcessOne)
	s := &sess{ctx: t.Context()}
	ch := make(chan *sarama.ConsumerMessage, 2)
	ch <- &sarama.ConsumerMessage{Topic: "stac-catalog-events", Partition: 0, Offset: 10, Value: eventBytes("landsat8", 1)}
	ch <- &sarama.ConsumerMessage{Topic: "stac-catalog-events", Partition: 0, Offset: 11, Value: eventBytes("landsat8", 2)}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 10 || s.marked[1] != 11 {
		t.Fatalf("marked offsets=%v want [10 11]", s.marked)
	}
	if inv.count() != 2 {
		t.Fatalf("invalidations=%d want 2", inv.count())
	}
}

func TestRetry_CommitOnceAfterSuccess(t *testing.T) {
	inv := &fakeInvalidator{}
	inv.failFirst.Store(true)
	c := newConsumerForTest(inv)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Topic: "stac-catalog-events", Partition: 0, Offset: 5, Value: eventBytes("landsat8", 1)}

	s := &sess{ctx: ctx}
	g := newGroupHandler(nil, c.ProcessOne)
	ch := make(chan *sarama.ConsumerMessage, 1)
	ch <- msg
	close(ch)
	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err == nil {
		t.Fatalf("expected error on first attempt")
	}
	if len(s.marked) != 0 {
		t.Fatalf("failed message must not be marked; marked=%v", s.marked)
	}

	ch = make(chan *sarama.ConsumerMessage, 1)
	ch <- msg
	close(ch)
	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim second attempt: %v", err)
	}
	if len(s.marked) != 1 || s.marked[0] != 5 {
		t.Fatalf("offset was not marked after success; marked=%v", s.marked)
	}
	if inv.count() != 2 {
		t.Fatalf("invalidator calls=%d want 2", inv.count())
	}
}

func TestProcessOne_DuplicateEventSkipped(t *testing.T) {
	inv := &fakeInvalidator{}
	c := newConsumerForTest(inv)
	ctx := context.Background()

	msg := &sarama.ConsumerMessage{Topic: "t", Value: eventBytes("landsat8", 3)}
	for i := 0; i < 3; i++ {
		if err := c.ProcessOne(ctx, msg); err != nil {
			t.Fatalf("ProcessOne #%d: %v", i, err)
		}
	}
	if inv.count() != 1 {
		t.Fatalf("duplicates must be skipped, invalidations=%d", inv.count())
	}
}

func TestProcessOne_DecodeErrorIsReturned(t *testing.T) {
	c := newConsumerForTest(&fakeInvalidator{})
	if err := c.ProcessOne(context.Background(), &sarama.ConsumerMessage{Value: []byte("{not json")}); err == nil {
		t.Fatalf("expected decode error")
	}
}

func TestProcessOne_InvalidEventIsDropped(t *testing.T) {
	inv := &fakeInvalidator{}
	c := newConsumerForTest(inv)
	body, _ := json.Marshal(invalidation.Event{Version: 1, Op: "reindex", Catalog: "c", Collection: "x", TS: baseTS})
	if err := c.ProcessOne(context.Background(), &sarama.ConsumerMessage{Value: body}); err != nil {
		t.Fatalf("invalid events are dropped without error, got %v", err)
	}
	if inv.count() != 0 {
		t.Fatalf("invalid event reached the cache")
	}
}

func TestMultiPartition_Parallel_NoCrossOrdering(t *testing.T) {
	inv := &fakeInvalidator{}
	c := newConsumerForTest(inv)
	g := newGroupHandler(nil, c.ProcessOne)
	s := &sess{ctx: t.Context()}

	p0 := make(chan *sarama.ConsumerMessage, 2)
	p1 := make(chan *sarama.ConsumerMessage, 2)
	p0 <- &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 1, Value: eventBytes("landsat8", 1)}
	p0 <- &sarama.ConsumerMessage{Topic: "t", Partition: 0, Offset: 2, Value: eventBytes("landsat8", 2)}
	p1 <- &sarama.ConsumerMessage{Topic: "t", Partition: 1, Offset: 1, Value: eventBytes("sentinel-2", 1)}
	p1 <- &sarama.ConsumerMessage{Topic: "t", Partition: 1, Offset: 2, Value: eventBytes("sentinel-2", 2)}
	close(p0)
	close(p1)

	var wg sync.WaitGroup
	wg.Add(2)
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 0, msgs: p0}) }()
	go func() { defer wg.Done(); _ = g.ConsumeClaim(s, &claim{part: 1, msgs: p1}) }()
	wg.Wait()

	if len(s.marked) != 4 {
		t.Fatalf("expected 4 marks total; got %v", s.marked)
	}
}

func TestConsumeClaim_TombstonesMarkedWithoutApplying(t *testing.T) {
	inv := &fakeInvalidator{}
	c := newConsumerForTest(inv)
	g := newGroupHandler(nil, c.ProcessOne)
	s := &sess{ctx: t.Context()}

	ch := make(chan *sarama.ConsumerMessage, 3)
	ch <- &sarama.ConsumerMessage{Topic: "stac-catalog-events", Offset: 20}
	ch <- nil
	ch <- &sarama.ConsumerMessage{Topic: "stac-catalog-events", Offset: 21, Value: eventBytes("landsat8", 1)}
	close(ch)

	if err := g.ConsumeClaim(s, &claim{part: 0, msgs: ch}); err != nil {
		t.Fatalf("ConsumeClaim: %v", err)
	}
	if len(s.marked) != 2 || s.marked[0] != 20 || s.marked[1] != 21 {
		t.Fatalf("marked offsets=%v want [20 21]", s.marked)
	}
	if inv.count() != 1 {
		t.Fatalf("invalidations=%d want 1", inv.count())
	}
}

func TestConsumeClaim_StopsWithSession(t *testing.T) {
	c := newConsumerForTest(&fakeInvalidator{})
	g := newGroupHandler(nil, c.ProcessOne)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := g.ConsumeClaim(&sess{ctx: ctx}, &claim{part: 3, msgs: make(chan *sarama.ConsumerMessage)})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestConfigFromEnv_Defaults(t *testing.T) {
	t.Setenv("KAFKA_BROKERS", " a:9092, ,b:9092 ")
	t.Setenv("KAFKA_TOPIC", "")
	t.Setenv("KAFKA_GROUP_ID", "")
	cfg := FromEnv()
	if len(cfg.Brokers) != 2 || cfg.Brokers[1] != "b:9092" {
		t.Fatalf("brokers=%v", cfg.Brokers)
	}
	if cfg.Topic != "stac-catalog-events" || cfg.GroupID != "stac-sample-invalidator" {
		t.Fatalf("topic=%q group=%q", cfg.Topic, cfg.GroupID)
	}
}
