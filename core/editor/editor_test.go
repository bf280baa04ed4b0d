package editor_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/editor"
	"github.com/trezcool/academia/core/session"
	"github.com/trezcool/academia/core/settings"
	localstore "github.com/trezcool/academia/storage/local"
	"github.com/trezcool/academia/tests"
)

func newEditor(t *testing.T) (*editor.Editor, *testutil.App) {
	app := testutil.NewApp(t)
	return editor.New(app.Settings, app.Sessions, app.Students, app.Log), app
}

func TestEditor_siteName(t *testing.T) {
	ctx := context.Background()
	ed, app := newEditor(t)

	res := ed.Process(ctx, "Change the site name to Bright Future")
	assert.Equal(t, editor.OutcomeApplied, res.Outcome)
	assert.Equal(t, "site_name", res.Rule)
	assert.Contains(t, res.Reply, "Bright Future")
	require.Len(t, res.Changes, 1)
	assert.Equal(t, editor.KindSettings, res.Changes[0].Kind)
	assert.True(t, res.Changes[0].Applied)

	s, err := app.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Bright Future", s.SiteName)
	assert.Equal(t, settings.Default().Tagline, s.Tagline, "other settings are kept")
}

func TestEditor_firstMatchWins(t *testing.T) {
	ctx := context.Background()
	ed, app := newEditor(t)
	sess := testutil.CreateSession(t, app.Sessions, "Leadership Bootcamp")

	tests := []struct {
		name string
		text string
	}{
		{"no price", "Change the session price"},
		{"no price for a session", "Update the price of the Leadership Bootcamp session"},
		{"no price token", "Set the session price to something reasonable"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := ed.Process(ctx, tt.text)
			assert.Equal(t, "session_price", res.Rule)
			assert.Equal(t, editor.OutcomeNeedsClarification, res.Outcome)
			assert.Contains(t, res.Reply, "price")
			assert.Empty(t, res.Changes)

			got, err := app.Sessions.GetByID(ctx, sess.ID)
			require.NoError(t, err)
			assert.Equal(t, sess.Price, got.Price)
			assert.Equal(t, sess.Name, got.Name)
		})
	}
}

func TestEditor_noMatch(t *testing.T) {
	ed, _ := newEditor(t)

	for _, text := range []string{"", "   ", "What's the weather like?"} {
		res := ed.Process(context.Background(), text)
		assert.Equal(t, editor.OutcomeNoMatch, res.Outcome, text)
		assert.Empty(t, res.Rule)
		assert.NotNil(t, res.Changes)
		assert.Contains(t, res.Reply, "I don't understand that yet")
	}
}

func TestEditor_settings(t *testing.T) {
	ctx := context.Background()
	ed, app := newEditor(t)

	tests := []struct {
		text    string
		rule    string
		outcome editor.Outcome
		check   func(t *testing.T, s settings.SiteSettings)
	}{
		{
			text: "Change the tagline to Grow together", rule: "tagline", outcome: editor.OutcomeApplied,
			check: func(t *testing.T, s settings.SiteSettings) { assert.Equal(t, "Grow together", s.Tagline) },
		},
		{
			text: "Set the primary colour to #ff0000", rule: "primary_color", outcome: editor.OutcomeApplied,
			check: func(t *testing.T, s settings.SiteSettings) { assert.Equal(t, "#ff0000", s.PrimaryColor) },
		},
		{
			text: "Make the secondary color green", rule: "secondary_color", outcome: editor.OutcomeNeedsClarification,
			check: func(t *testing.T, s settings.SiteSettings) { assert.Equal(t, "#f59e0b", s.SecondaryColor) },
		},
		{
			text: "Set the secondary color to green", rule: "secondary_color", outcome: editor.OutcomeApplied,
			check: func(t *testing.T, s settings.SiteSettings) { assert.Equal(t, "green", s.SecondaryColor) },
		},
		{
			text: "Update the contact email to Info@Academia.cd", rule: "contact_email", outcome: editor.OutcomeApplied,
			check: func(t *testing.T, s settings.SiteSettings) { assert.Equal(t, "info@academia.cd", s.ContactEmail) },
		},
		{
			text: "Change the phone number to +237 699 12 34 56", rule: "contact_phone", outcome: editor.OutcomeApplied,
			check: func(t *testing.T, s settings.SiteSettings) { assert.Equal(t, "+237 699 12 34 56", s.ContactPhone) },
		},
		{
			text: "Change the phone number", rule: "contact_phone", outcome: editor.OutcomeNeedsClarification,
			check: func(t *testing.T, s settings.SiteSettings) { assert.Equal(t, "+237 699 12 34 56", s.ContactPhone) },
		},
		{
			text: "Set the address to 12 Avenue Kennedy, Yaounde", rule: "address", outcome: editor.OutcomeApplied,
			check: func(t *testing.T, s settings.SiteSettings) { assert.Equal(t, "12 Avenue Kennedy, Yaounde", s.Address) },
		},
		{
			text: "Set the announcement to Registrations close on Friday", rule: "set_announcement", outcome: editor.OutcomeApplied,
			check: func(t *testing.T, s settings.SiteSettings) { assert.Equal(t, "Registrations close on Friday", s.Announcement) },
		},
		{
			text: "Clear the announcement", rule: "clear_announcement", outcome: editor.OutcomeApplied,
			check: func(t *testing.T, s settings.SiteSettings) { assert.Empty(t, s.Announcement) },
		},
		{
			text: "Add Mentoring to the features", rule: "add_feature", outcome: editor.OutcomeApplied,
			check: func(t *testing.T, s settings.SiteSettings) { assert.Contains(t, s.Features, "Mentoring") },
		},
		{
			text: "Remove the feature Certificates", rule: "remove_feature", outcome: editor.OutcomeApplied,
			check: func(t *testing.T, s settings.SiteSettings) { assert.NotContains(t, s.Features, "Certificates") },
		},
		{
			text: "Remove the feature Swimming", rule: "remove_feature", outcome: editor.OutcomeNeedsClarification,
			check: func(t *testing.T, s settings.SiteSettings) { assert.Contains(t, s.Features, "Mentoring") },
		},
		{
			text: "Set the Facebook link to https://facebook.com/academia", rule: "social_link", outcome: editor.OutcomeApplied,
			check: func(t *testing.T, s settings.SiteSettings) {
				assert.Equal(t, "https://facebook.com/academia", s.SocialLinks["facebook"])
			},
		},
		{
			text: "Update our Instagram", rule: "social_link", outcome: editor.OutcomeNeedsClarification,
			check: func(t *testing.T, s settings.SiteSettings) { assert.NotContains(t, s.SocialLinks, "instagram") },
		},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := ed.Process(ctx, tt.text)
			assert.Equal(t, tt.rule, res.Rule)
			assert.Equal(t, tt.outcome, res.Outcome, res.Reply)
			if tt.outcome == editor.OutcomeApplied {
				require.Len(t, res.Changes, 1)
				assert.Equal(t, editor.KindSettings, res.Changes[0].Kind)
			} else {
				assert.Empty(t, res.Changes)
			}

			s, err := app.Settings.Get(ctx)
			require.NoError(t, err)
			tt.check(t, s)
		})
	}
}

func TestEditor_sessions(t *testing.T) {
	ctx := context.Background()
	ed, app := newEditor(t)

	res := ed.Process(ctx, "Create a session called Leadership Bootcamp")
	require.Equal(t, editor.OutcomeApplied, res.Outcome, res.Reply)
	assert.Equal(t, "create_session", res.Rule)
	sessions, err := app.Sessions.Query(ctx, nil)
	require.NoError(t, err)
	require.Len(t, sessions, 1)
	sess := sessions[0]
	assert.Equal(t, "Leadership Bootcamp", sess.Name)
	assert.Equal(t, session.StatusUpcoming, sess.Status)
	assert.Equal(t, session.RegistrationOpen, sess.RegistrationStatus)

	tests := []struct {
		text  string
		rule  string
		check func(t *testing.T, s session.Session)
	}{
		{
			text:  "Set the price of leadership bootcamp to 75,000 FCFA",
			rule:  "session_price",
			check: func(t *testing.T, s session.Session) { assert.Equal(t, "75,000 FCFA", s.Price) },
		},
		{
			text: "Set the dates of Leadership Bootcamp to 2024-04-01 - 2024-04-20",
			rule: "session_dates",
			check: func(t *testing.T, s session.Session) {
				assert.Equal(t, "2024-04-01", s.StartDate)
				assert.Equal(t, "2024-04-20", s.EndDate)
			},
		},
		{
			text:  "Close registrations for Leadership Bootcamp",
			rule:  "registration",
			check: func(t *testing.T, s session.Session) { assert.Equal(t, session.RegistrationClosed, s.RegistrationStatus) },
		},
		{
			text:  "Mark Leadership Bootcamp as ongoing",
			rule:  "session_status",
			check: func(t *testing.T, s session.Session) { assert.Equal(t, session.StatusOngoing, s.Status) },
		},
		{
			text:  "Rename Leadership Bootcamp to Leadership Academy",
			rule:  "rename_session",
			check: func(t *testing.T, s session.Session) { assert.Equal(t, "Leadership Academy", s.Name) },
		},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := ed.Process(ctx, tt.text)
			assert.Equal(t, tt.rule, res.Rule)
			require.Equal(t, editor.OutcomeApplied, res.Outcome, res.Reply)
			require.Len(t, res.Changes, 1)
			assert.Equal(t, editor.KindSession, res.Changes[0].Kind)
			assert.True(t, res.Changes[0].Applied)

			s, err := app.Sessions.GetByID(ctx, sess.ID)
			require.NoError(t, err)
			tt.check(t, s)
		})
	}

	res = ed.Process(ctx, "Delete the Yoga session")
	assert.Equal(t, "delete_session", res.Rule)
	assert.Equal(t, editor.OutcomeNeedsClarification, res.Outcome)
	assert.Contains(t, res.Reply, `"Yoga"`)

	res = ed.Process(ctx, "Delete the Leadership Academy session")
	assert.Equal(t, editor.OutcomeApplied, res.Outcome, res.Reply)
	_, err = app.Sessions.GetByID(ctx, sess.ID)
	assert.Equal(t, session.ErrNotFound, err)
}

func TestEditor_deleteSessionNeedsName(t *testing.T) {
	ctx := context.Background()
	ed, app := newEditor(t)
	testutil.CreateSession(t, app.Sessions, "Leadership Bootcamp")
	testutil.CreateSession(t, app.Sessions, "Excel Training Session")

	tests := []struct {
		text      string
		wantReply string
	}{
		{text: "Remove the session", wantReply: "Which session do you mean?"},
		{text: "Delete session", wantReply: "Which session do you mean?"},
		{text: "Delete session B", wantReply: `"B"`},
		{text: "Cancel session x", wantReply: `"x"`},
		{text: "Delete the ai session", wantReply: `"ai"`},
	}
	for _, tt := range tests {
		t.Run(tt.text, func(t *testing.T) {
			res := ed.Process(ctx, tt.text)
			assert.Equal(t, "delete_session", res.Rule)
			assert.Equal(t, editor.OutcomeNeedsClarification, res.Outcome)
			assert.Contains(t, res.Reply, tt.wantReply)
			assert.Empty(t, res.Changes)

			sessions, err := app.Sessions.Query(ctx, nil)
			require.NoError(t, err)
			assert.Len(t, sessions, 2, "nothing is deleted")
		})
	}

	res := ed.Process(ctx, "Delete the excel training session")
	assert.Equal(t, editor.OutcomeApplied, res.Outcome, res.Reply)
	assert.Contains(t, res.Reply, "Excel Training Session")
}

func TestEditor_answers(t *testing.T) {
	ctx := context.Background()
	ed, app := newEditor(t)
	sess := testutil.CreateSession(t, app.Sessions, "Leadership Bootcamp")
	testutil.RegisterStudent(t, app.Students, "Jane Doe", "jane@test.cd", sess.ID)

	res := ed.Process(ctx, "help")
	assert.Equal(t, editor.OutcomeAnswered, res.Outcome)
	assert.Contains(t, res.Reply, "Here is what I can do")

	res = ed.Process(ctx, "How many students are there?")
	assert.Equal(t, "stats", res.Rule)
	assert.Equal(t, editor.OutcomeAnswered, res.Outcome)
	assert.Contains(t, res.Reply, "1 students and 1 sessions")

	res = ed.Process(ctx, "List sessions")
	assert.Equal(t, "list_sessions", res.Rule)
	assert.Contains(t, res.Reply, "Leadership Bootcamp")

	res = ed.Process(ctx, "Make Jane Doe the leader of Leadership Bootcamp")
	assert.Equal(t, "leader", res.Rule)
	assert.Equal(t, editor.OutcomeAnswered, res.Outcome)
	assert.Contains(t, res.Reply, "Jane Doe")
	require.Len(t, res.Changes, 1)
	assert.Equal(t, editor.KindStudent, res.Changes[0].Kind)
	assert.False(t, res.Changes[0].Applied)

	s, err := app.Students.GetByEmail(ctx, "jane@test.cd")
	require.NoError(t, err)
	assert.False(t, s.IsLeader, "leaders are not assigned by the editor")
}

// brokenStorage fails every write.
type brokenStorage struct {
	*localstore.MemoryStorage
	mu     sync.Mutex
	broken bool
}

func (s *brokenStorage) Set(key string, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.broken {
		return errors.New("disk full")
	}
	return s.MemoryStorage.Set(key, data)
}

func TestEditor_failure(t *testing.T) {
	local := &brokenStorage{MemoryStorage: localstore.NewMemoryStorage()}
	logger := new(testutil.Logger)
	app := testutil.NewAppWithDB(t, testutil.OpenDB(t, local, nil, logger), logger)
	ed := editor.New(app.Settings, app.Sessions, app.Students, app.Log)

	local.mu.Lock()
	local.broken = true
	local.mu.Unlock()

	res := ed.Process(context.Background(), "Change the site name to Bright Future")
	assert.Equal(t, editor.OutcomeFailed, res.Outcome)
	require.Len(t, res.Changes, 1)
	assert.False(t, res.Changes[0].Applied)
	assert.NotEmpty(t, logger.Entries("ERROR"))

	s, err := app.Settings.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, settings.Default().SiteName, s.SiteName)
}

func TestCapabilities(t *testing.T) {
	caps := editor.Capabilities()
	require.NotEmpty(t, caps)
	caps[0] = "changed"
	assert.NotEqual(t, "changed", editor.Capabilities()[0])
}
