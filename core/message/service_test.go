package message_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core"
	"github.com/trezcool/academia/core/message"
	"github.com/trezcool/academia/tests"
)

const audioDataURL = "data:audio/webm;base64,GkXfo0AgQoaBAUL3gQFC8oEEQvOBCEKCQAR3ZWJtQoeBAkKFgQI="

// tick makes core.NowFunc advance by one second per call.
func tick(t *testing.T) {
	now := time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
	orig := core.NowFunc
	core.NowFunc = func() time.Time {
		now = now.Add(time.Second)
		return now
	}
	t.Cleanup(func() { core.NowFunc = orig })
}

func TestService_direct(t *testing.T) {
	ctx := context.Background()
	tick(t)
	app := testutil.NewApp(t)

	send := func(from, fromType, to, toType, content string) message.Message {
		m, err := app.Messages.Send(ctx, message.NewMessage{
			SenderID: from, SenderType: fromType, RecipientID: to, RecipientType: toType, Content: content,
		})
		require.NoError(t, err)
		return m
	}
	m1 := send("stu-1", "student", "admin", "admin", "Hello")
	m2 := send("admin", "admin", "stu-1", "student", "Hi, how can I help?")
	m3 := send("stu-2", "student", "admin", "admin", "  When is the next session?  ")
	assert.Equal(t, "When is the next session?", m3.Content)

	inbox, err := app.Messages.Inbox(ctx, "admin")
	require.NoError(t, err)
	require.Len(t, inbox, 2)
	assert.Equal(t, m3.ID, inbox[0].ID, "newest first")
	assert.Equal(t, m1.ID, inbox[1].ID)

	conv, err := app.Messages.Conversation(ctx, "admin", "stu-1")
	require.NoError(t, err)
	require.Len(t, conv, 2)
	assert.Equal(t, m1.ID, conv[0].ID, "oldest first")
	assert.Equal(t, m2.ID, conv[1].ID)

	n, err := app.Messages.UnreadCount(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	for i := 0; i < 2; i++ { // idempotent
		read, err := app.Messages.MarkRead(ctx, m1.ID)
		require.NoError(t, err)
		assert.True(t, read.Read)
	}
	n, err = app.Messages.UnreadCount(ctx, "admin")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	deleted, err := app.Messages.Delete(ctx, m3.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, deleted)
	_, err = app.Messages.GetByID(ctx, m3.ID)
	assert.Equal(t, message.ErrNotFound, err)
	_, err = app.Messages.MarkRead(ctx, m3.ID)
	assert.Equal(t, message.ErrNotFound, err)
}

func TestService_Send_invalid(t *testing.T) {
	app := testutil.NewApp(t)

	tests := []struct {
		name string
		nm   message.NewMessage
	}{
		{"empty content", message.NewMessage{SenderID: "a", SenderType: "admin", RecipientID: "b", RecipientType: "student", Content: "  "}},
		{"unknown sender type", message.NewMessage{SenderID: "a", SenderType: "parent", RecipientID: "b", RecipientType: "student", Content: "Hi"}},
		{"missing recipient", message.NewMessage{SenderID: "a", SenderType: "admin", RecipientType: "student", Content: "Hi"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Messages.Send(context.Background(), tt.nm)
			assert.True(t, core.IsValidationError(err))
		})
	}
}

func TestService_group(t *testing.T) {
	ctx := context.Background()
	tick(t)
	app := testutil.NewApp(t)

	post := func(sessionID, content string) message.GroupMessage {
		m, err := app.Messages.PostGroup(ctx, message.NewGroupMessage{
			SessionID: sessionID, SenderID: "stu-1", SenderName: "Jane Doe", SenderType: "student", Content: content,
		})
		require.NoError(t, err)
		return m
	}
	g1 := post("", "Hello everyone")
	s1 := post("sess-1", "Hello session")
	g2 := post("", "Welcome!")
	assert.Equal(t, message.TypeText, g1.Type)

	general, err := app.Messages.GroupMessages(ctx, "")
	require.NoError(t, err)
	require.Len(t, general, 2)
	assert.Equal(t, g1.ID, general[0].ID)
	assert.Equal(t, g2.ID, general[1].ID)

	inSession, err := app.Messages.GroupMessages(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, inSession, 1)
	assert.Equal(t, s1.ID, inSession[0].ID)

	edited, err := app.Messages.EditGroup(ctx, g1.ID, "Hello all")
	require.NoError(t, err)
	assert.Equal(t, "Hello all", edited.Content)
	assert.True(t, edited.Edited)

	_, err = app.Messages.EditGroup(ctx, g1.ID, " ")
	assert.True(t, core.IsValidationError(err))
	_, err = app.Messages.EditGroup(ctx, "404", "Hi")
	assert.Equal(t, message.ErrNotFound, err)
}

func TestService_DeleteGroup(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp(t)

	m, err := app.Messages.PostGroup(ctx, message.NewGroupMessage{
		SenderID: "stu-1", SenderName: "Jane Doe", SenderType: "student",
		Type: message.TypeVoice, FileName: "note.webm", FileData: audioDataURL, Duration: 4 * time.Second,
	})
	require.NoError(t, err)

	first, err := app.Messages.DeleteGroup(ctx, m.ID)
	require.NoError(t, err)
	assert.True(t, first.Deleted)
	assert.Equal(t, message.DeletedPlaceholder, first.Content)
	assert.Empty(t, first.FileData)
	assert.Empty(t, first.FileName)

	second, err := app.Messages.DeleteGroup(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, first, second)

	stored, err := app.Messages.GetGroupByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, message.DeletedPlaceholder, stored.Content)
	assert.True(t, stored.Deleted)

	_, err = app.Messages.EditGroup(ctx, m.ID, "Oops")
	assert.Equal(t, message.ErrDeleted, err)

	_, err = app.Messages.DeleteGroup(ctx, "404")
	assert.Equal(t, message.ErrNotFound, err)
}

func TestService_PostGroup_invalid(t *testing.T) {
	app := testutil.NewApp(t)

	tests := []struct {
		name  string
		nm    message.NewGroupMessage
		field string
	}{
		{
			name: "voice note too long",
			nm: message.NewGroupMessage{
				SenderID: "a", SenderName: "A", SenderType: "leader",
				Type: message.TypeVoice, FileData: audioDataURL, Duration: 11 * time.Second,
			},
			field: "duration",
		},
		{
			name:  "file missing",
			nm:    message.NewGroupMessage{SenderID: "a", SenderName: "A", SenderType: "leader", Type: message.TypeImage, Content: "look"},
			field: "fileData",
		},
		{
			name: "empty",
			nm:   message.NewGroupMessage{SenderID: "a", SenderName: "A", SenderType: "leader"},
		},
		{
			name: "not a data url",
			nm:   message.NewGroupMessage{SenderID: "a", SenderName: "A", SenderType: "leader", Type: message.TypeDocument, FileData: "http://x.cd/a.pdf"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := app.Messages.PostGroup(context.Background(), tt.nm)
			require.Error(t, err)
			assert.True(t, core.IsValidationError(err))
			if tt.field != "" {
				vErr, ok := err.(*core.ValidationError)
				require.True(t, ok)
				assert.Equal(t, tt.field, vErr.Fields[0].Field)
			}
		})
	}

	m, err := app.Messages.PostGroup(context.Background(), message.NewGroupMessage{
		SenderID: "a", SenderName: "A", SenderType: "leader",
		Type: message.TypeVoice, FileData: audioDataURL, Duration: message.MaxVoiceDuration,
	})
	require.NoError(t, err)
	assert.Equal(t, message.MaxVoiceDuration, m.Duration)
}
