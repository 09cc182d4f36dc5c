package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"filevault/server/fileman/domain"
)

type failingPublisher struct{}

func (failingPublisher) Publish(context.Context, domain.FileEvent) error {
	return errors.New("broker unavailable")
}

func TestPublishersFanOutPastFailures(t *testing.T) {
	rec := &recordingPublisher{}
	ps := Publishers{failingPublisher{}, nil, rec}

	err := ps.Publish(context.Background(), domain.FileEvent{Kind: domain.EventRenamed, FileID: "f1"})

	assert.ErrorContains(t, err, "broker unavailable")
	assert.Equal(t, []domain.EventKind{domain.EventRenamed}, rec.kinds())
}

func TestRoutingKey(t *testing.T) {
	assert.Equal(t, "file.uploaded", routingKey(domain.EventUploaded))
	assert.Equal(t, "file.deleted", routingKey(domain.EventDeleted))
}

func TestFailedPublishDoesNotFailUpload(t *testing.T) {
	f := newFixture(t, Options{})
	f.svc.events = Publishers{failingPublisher{}, f.events}

	upload(t, f, ann, "notes.txt", 3)
	assert.Equal(t, []domain.EventKind{domain.EventUploaded}, f.events.kinds())
}
