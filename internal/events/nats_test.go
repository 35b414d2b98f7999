package events

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodePostEvent(t *testing.T) {
	groupID := uint(3)
	created := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	ev := PostEvent{ID: 7, AuthorID: 2, GroupID: &groupID, Text: "hello", CreatedAt: created}

	msg, err := encode(SubjectPostCreated, ev, "req-1")
	require.NoError(t, err)

	assert.Equal(t, SubjectPostCreated, msg.Subject)
	assert.Equal(t, "req-1", msg.Header.Get(HeaderRequestID))

	var decoded PostEvent
	require.NoError(t, json.Unmarshal(msg.Data, &decoded))
	assert.Equal(t, uint(7), decoded.ID)
	assert.Equal(t, uint(3), *decoded.GroupID)
	assert.True(t, created.Equal(decoded.CreatedAt))
}

func TestEncodeWithoutRequestID(t *testing.T) {
	msg, err := encode(SubjectFollowCreated, FollowEvent{UserID: 1, AuthorID: 2}, "")
	require.NoError(t, err)
	assert.Empty(t, msg.Header.Get(HeaderRequestID))
	assert.JSONEq(t, `{"user_id":1,"author_id":2}`, string(msg.Data))
}

func TestRequestIDRoundTrip(t *testing.T) {
	ctx := WithRequestID(context.Background(), "abc")
	assert.Equal(t, "abc", requestID(ctx))
	assert.Empty(t, requestID(context.Background()))
}

func TestEncodeRejectsUnmarshalableEvents(t *testing.T) {
	_, err := encode(SubjectPostCreated, make(chan int), "")
	assert.Error(t, err)
}
