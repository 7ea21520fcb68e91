package main

import (
	"context"
	"errors"
	"io"
	"testing"

	gcppubsub "cloud.google.com/go/pubsub/v2"
	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/mateovidal/surtido-backend/pkg/config"
	"github.com/mateovidal/surtido-backend/pkg/db/models"
	"github.com/mateovidal/surtido-backend/pkg/enums"
	"github.com/mateovidal/surtido-backend/pkg/logger"
)

type fakeDB struct{}

func (fakeDB) Ping(context.Context) error { return nil }

func (fakeDB) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	return fn(&gorm.DB{})
}

type fakeRepo struct {
	events    []models.OutboxEvent
	published []uuid.UUID
	failed    []uuid.UUID
	deleted   []uuid.UUID
}

func (f *fakeRepo) FetchUnpublished(limit int) ([]models.OutboxEvent, error) {
	if len(f.events) > limit {
		return f.events[:limit], nil
	}
	events := f.events
	f.events = nil
	return events, nil
}

func (f *fakeRepo) MarkPublished(id uuid.UUID) error {
	f.published = append(f.published, id)
	return nil
}

func (f *fakeRepo) MarkFailed(id uuid.UUID, err error) error {
	f.failed = append(f.failed, id)
	return nil
}

func (f *fakeRepo) DeleteTx(tx *gorm.DB, id uuid.UUID) error {
	f.deleted = append(f.deleted, id)
	return nil
}

type fakeDLQ struct {
	entries []models.OutboxDLQ
}

func (f *fakeDLQ) InsertTx(tx *gorm.DB, entry models.OutboxDLQ) error {
	f.entries = append(f.entries, entry)
	return nil
}

type fakePublisher struct {
	err      error
	messages []*gcppubsub.Message
}

func (f *fakePublisher) Publish(ctx context.Context, msg *gcppubsub.Message) publishResult {
	f.messages = append(f.messages, msg)
	return fakeResult{err: f.err}
}

type fakeResult struct {
	err error
}

func (r fakeResult) Get(context.Context) (string, error) {
	if r.err != nil {
		return "", r.err
	}
	return "server-id", nil
}

func testService(t *testing.T, repo *fakeRepo, dlq *fakeDLQ, pub *fakePublisher) *Service {
	t.Helper()
	cfg := &config.Config{}
	cfg.Outbox.BatchSize = 10
	cfg.Outbox.MaxAttempts = 3
	logg := logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
	service, err := NewService(ServiceParams{
		Config:        cfg,
		Logger:        logg,
		DB:            fakeDB{},
		PubSub:        fakeDB{},
		Repository:    repo,
		DLQRepository: dlq,
		Publisher:     pub,
	})
	if err != nil {
		t.Fatalf("construct service: %v", err)
	}
	return service
}

func outboxEvent(attempts int) models.OutboxEvent {
	return models.OutboxEvent{
		ID:            uuid.New(),
		EventType:     enums.EventOrderCreated,
		AggregateType: enums.AggregateOrder,
		AggregateID:   uuid.New(),
		Payload:       []byte(`{"version":"v1","event_id":"` + uuid.NewString() + `"}`),
		AttemptCount:  attempts,
	}
}

func TestProcessBatchPublishesAndMarks(t *testing.T) {
	event := outboxEvent(0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQ{}
	pub := &fakePublisher{}
	service := testService(t, repo, dlq, pub)

	processed, err := service.processBatch(context.Background())
	if err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if !processed {
		t.Fatal("expected batch to be processed")
	}
	if len(repo.published) != 1 || repo.published[0] != event.ID {
		t.Fatalf("event not marked published: %v", repo.published)
	}
	if len(pub.messages) != 1 {
		t.Fatalf("expected one publish, got %d", len(pub.messages))
	}
	if pub.messages[0].Attributes["event_type"] != string(enums.EventOrderCreated) {
		t.Fatalf("event_type attribute missing: %v", pub.messages[0].Attributes)
	}
}

func TestProcessBatchMarksFailureForRetry(t *testing.T) {
	event := outboxEvent(0)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQ{}
	pub := &fakePublisher{err: errors.New("broker down")}
	service := testService(t, repo, dlq, pub)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(repo.failed) != 1 || repo.failed[0] != event.ID {
		t.Fatalf("event not marked failed: %v", repo.failed)
	}
	if len(repo.published) != 0 {
		t.Fatal("failed event must not be marked published")
	}
	if len(dlq.entries) != 0 {
		t.Fatal("first failure must not dead-letter")
	}
}

func TestProcessBatchDeadLettersAfterMaxAttempts(t *testing.T) {
	event := outboxEvent(2)
	repo := &fakeRepo{events: []models.OutboxEvent{event}}
	dlq := &fakeDLQ{}
	pub := &fakePublisher{err: errors.New("broker down")}
	service := testService(t, repo, dlq, pub)

	if _, err := service.processBatch(context.Background()); err != nil {
		t.Fatalf("process batch: %v", err)
	}
	if len(dlq.entries) != 1 || dlq.entries[0].EventID != event.ID {
		t.Fatalf("event not dead-lettered: %v", dlq.entries)
	}
	if len(repo.deleted) != 1 || repo.deleted[0] != event.ID {
		t.Fatalf("dead-lettered event not removed from queue: %v", repo.deleted)
	}
	if len(repo.failed) != 0 {
		t.Fatal("terminal event must not be marked for retry")
	}
}
