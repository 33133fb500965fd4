// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package core

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/samber/oops"
)

// AnonymousAuthor is the attribution used when the writer presented no
// identity. Identity is supplied by the auth collaborator when present; the
// publish path itself only requires a topic and a payload.
const (
	AnonymousAuthorID = "anonymous"
	AnonymousAuthor   = "Anonymous"
)

// Draft is the client-supplied shape of a publish: the payload before the
// store assigns identity and ordering.
type Draft struct {
	Message  string     `json:"message"`
	Type     RecordType `json:"type"`
	MediaURL string     `json:"media_url,omitempty"`
	AuthorID string     `json:"author_id,omitempty"`
	Author   string     `json:"author,omitempty"`
}

// Publisher is the write side of the gateway: validate, persist, fan out.
type Publisher struct {
	store    RecordStore
	registry *Registry

	mu     sync.Mutex
	topics map[string]*topicMutex
}

// topicMutex serializes publishes for one topic. refs counts holders and
// waiters so the map entry can be dropped when the last publisher leaves,
// mirroring the registry's GC of empty topics.
type topicMutex struct {
	sync.Mutex
	refs int
}

// NewPublisher creates a publisher bound to a store and registry.
func NewPublisher(store RecordStore, registry *Registry) *Publisher {
	return &Publisher{
		store:    store,
		registry: registry,
		topics:   make(map[string]*topicMutex),
	}
}

// lockTopic acquires the serialization lock for a topic, creating it lazily.
func (p *Publisher) lockTopic(topic string) *topicMutex {
	p.mu.Lock()
	lock, ok := p.topics[topic]
	if !ok {
		lock = &topicMutex{}
		p.topics[topic] = lock
	}
	lock.refs++
	p.mu.Unlock()

	lock.Lock()
	return lock
}

// unlockTopic releases the lock and drops the map entry once nobody holds
// or waits on it.
func (p *Publisher) unlockTopic(topic string, lock *topicMutex) {
	lock.Unlock()

	p.mu.Lock()
	lock.refs--
	if lock.refs == 0 {
		delete(p.topics, topic)
	}
	p.mu.Unlock()
}

// Publish validates the draft, persists it, and broadcasts the stored record
// to every current subscriber of the topic. Insert and broadcast are held
// under a per-topic lock so subscribers observe records in persistence commit
// order; cross-topic publishes do not serialize against each other.
//
// A record is never broadcast unless its write succeeded. A subscriber that
// disconnects between the write and the broadcast recovers the record through
// backlog replay on its next connect.
func (p *Publisher) Publish(ctx context.Context, topic string, draft Draft) (Record, error) {
	record, err := draftRecord(topic, draft)
	if err != nil {
		RecordPublish(StatusMalformed)
		return Record{}, err
	}

	lock := p.lockTopic(topic)
	defer p.unlockTopic(topic, lock)

	stored, err := p.store.Insert(ctx, record)
	if err != nil {
		RecordPublish(StatusWriteFailed)
		return Record{}, oops.Code("WRITE_FAILED").
			With("topic", topic).
			Wrap(err)
	}

	notified := p.registry.Broadcast(topic, RecordEvent(stored))
	RecordPublish(StatusSuccess)
	RecordFanout(notified)
	return stored, nil
}

// draftRecord applies the required-fields policy and fills defaults.
func draftRecord(topic string, draft Draft) (Record, error) {
	if strings.TrimSpace(topic) == "" {
		return Record{}, oops.Code("MALFORMED_PAYLOAD").Errorf("topic is required")
	}
	if strings.TrimSpace(draft.Message) == "" && strings.TrimSpace(draft.MediaURL) == "" {
		return Record{}, oops.Code("MALFORMED_PAYLOAD").
			With("topic", topic).
			Errorf("message or media_url is required")
	}

	recordType := draft.Type
	if recordType == "" {
		recordType = RecordTypeText
	}
	if !recordType.Valid() {
		return Record{}, oops.Code("MALFORMED_PAYLOAD").
			With("topic", topic).
			Errorf("unknown record type %q", draft.Type)
	}

	authorID, author := draft.AuthorID, draft.Author
	if authorID == "" {
		authorID = AnonymousAuthorID
	}
	if author == "" {
		author = AnonymousAuthor
	}

	return Record{
		Topic:     topic,
		AuthorID:  authorID,
		Author:    author,
		Message:   draft.Message,
		Type:      recordType,
		MediaURL:  draft.MediaURL,
		CreatedAt: time.Now(),
	}, nil
}

// IsMalformed reports whether the error came from payload validation, so
// transports can map it to a client error instead of a server failure.
func IsMalformed(err error) bool {
	oopsErr, ok := oops.AsOops(err)
	return ok && oopsErr.Code() == "MALFORMED_PAYLOAD"
}
