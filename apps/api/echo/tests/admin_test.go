package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	. "github.com/trezcool/academia/apps/api/echo"
	"github.com/trezcool/academia/core/editor"
	"github.com/trezcool/academia/tests"
)

func TestAdmin_editor(t *testing.T) {
	app, server := setup(t)
	admin := adminToken(t, app)

	tests := []struct {
		httpTest
		wantOutcome editor.Outcome
	}{
		{
			httpTest: httpTest{
				name:     "missing text",
				body:     []byte(`{}`),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"text": "this field is required"}),
			},
		},
		{
			httpTest: httpTest{
				name:     "no match",
				body:     marchallObj(t, EditorRequest{Text: "What's the weather like?"}),
				wantCode: http.StatusOK,
			},
			wantOutcome: editor.OutcomeNoMatch,
		},
		{
			httpTest: httpTest{
				name:     "site name",
				body:     marchallObj(t, EditorRequest{Text: "Change the site name to Bright Future"}),
				wantCode: http.StatusOK,
			},
			wantOutcome: editor.OutcomeApplied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/v1/editor"
			tt.token = admin
			rec := tt.do(server)
			checkCodeAndData(t, tt.httpTest, rec)
			if tt.wantOutcome != "" {
				var res editor.Result
				unmarshal(t, rec, &res)
				assert.Equal(t, tt.wantOutcome, res.Outcome)
			}
		})
	}

	s, err := app.Settings.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "Bright Future", s.SiteName)
}

func TestAdmin_capabilities(t *testing.T) {
	app, server := setup(t)

	tt := httpTest{
		path:     "/v1/editor/capabilities",
		token:    adminToken(t, app),
		wantCode: http.StatusOK,
		wantData: marchallObj(t, editor.Capabilities()),
	}
	checkCodeAndData(t, tt, tt.do(server))
}

func TestAdmin_clearData(t *testing.T) {
	app, server := setup(t)
	ctx := context.Background()
	sess := testutil.CreateSession(t, app.Sessions, "Leadership Bootcamp")
	testutil.RegisterStudent(t, app.Students, "Jane Doe", "jane@example.com", sess.ID)
	_, err := app.Settings.SetAnnouncement(ctx, "Hello")
	require.NoError(t, err)

	tests := []httpTest{
		{
			name:     "wrong confirmation",
			body:     marchallObj(t, ClearDataRequest{Confirmation: "delete all data"}),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"confirmation": "type DELETE ALL DATA to confirm"}),
		},
		{
			name:     "ok",
			body:     marchallObj(t, ClearDataRequest{Confirmation: ClearDataConfirmation}),
			wantCode: http.StatusOK,
			wantData: marchallObj(t, SuccessResponse{Success: "All data was deleted."}),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/v1/admin/clear-data"
			tt.token = adminToken(t, app)
			checkCodeAndData(t, tt, tt.do(server))
		})
	}

	sessions, err := app.Sessions.Query(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, sessions)
	students, err := app.Students.Query(ctx, nil)
	require.NoError(t, err)
	assert.Empty(t, students)
	s, err := app.Settings.Get(ctx)
	require.NoError(t, err)
	assert.Empty(t, s.Announcement)
	assert.NotEmpty(t, app.Log.Entries("WARN"))
}
