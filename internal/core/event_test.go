// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Livegate Contributors

package core

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRecordType_Valid(t *testing.T) {
	for _, rt := range []RecordType{RecordTypeText, RecordTypeImage, RecordTypeVideo} {
		assert.True(t, rt.Valid(), "%s should be valid", rt)
	}
	assert.False(t, RecordType("").Valid())
	assert.False(t, RecordType("hologram").Valid())
}

func TestEvent_Frame(t *testing.T) {
	frame, err := ConnectedEvent().Frame()
	require.NoError(t, err)
	assert.Equal(t, "connected", string(frame))

	frame, err = HeartbeatEvent().Frame()
	require.NoError(t, err)
	assert.Equal(t, "heartbeat", string(frame))
}

func TestEvent_FrameRecord(t *testing.T) {
	record := Record{
		ID:        7,
		Topic:     "stream-42",
		AuthorID:  "u-1",
		Author:    "Ada",
		Message:   "hello",
		Type:      RecordTypeText,
		CreatedAt: time.Date(2026, 8, 1, 12, 0, 0, 0, time.UTC),
	}

	frame, err := RecordEvent(record).Frame()
	require.NoError(t, err)

	var decoded Record
	require.NoError(t, json.Unmarshal(frame, &decoded))
	assert.Equal(t, record, decoded)

	// media_url is omitted when empty.
	assert.NotContains(t, string(frame), "media_url")
}

func TestEvent_FrameUnknownType(t *testing.T) {
	_, err := Event{Type: "mystery"}.Frame()
	require.Error(t, err)
}
