package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/session"
	"github.com/trezcool/academia/tests"
)

func TestSessions_public(t *testing.T) {
	app, server := setup(t)
	open := testutil.CreateSession(t, app.Sessions, "Leadership Bootcamp")
	closed := testutil.CreateSession(t, app.Sessions, "Public Speaking", session.RegistrationClosed)

	tests := []httpTest{
		{
			name:     "list",
			path:     "/v1/sessions",
			wantCode: http.StatusOK,
			wantData: marchallList(t, open, closed),
		},
		{
			name:     "search",
			path:     "/v1/sessions?search=SPEAK",
			wantCode: http.StatusOK,
			wantData: marchallList(t, closed),
		},
		{
			name:     "registration status",
			path:     "/v1/sessions?registration_status=open",
			wantCode: http.StatusOK,
			wantData: marchallList(t, open),
		},
		{
			name:     "no match",
			path:     "/v1/sessions?status=completed",
			wantCode: http.StatusOK,
			wantData: marchallList(t),
		},
		{
			name:     "retrieve",
			path:     "/v1/sessions/" + open.ID,
			wantCode: http.StatusOK,
			wantData: marchallObj(t, open),
		},
		{
			name:     "retrieve unknown",
			path:     "/v1/sessions/nope",
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, tt.do(server))
		})
	}
}

func TestSessions_create(t *testing.T) {
	freezeTime(t)
	app, server := setup(t)

	tests := []httpTest{
		{
			name:     "anonymous",
			body:     []byte(`{"name":"Bootcamp"}`),
			wantCode: http.StatusUnauthorized,
			wantData: marchallObj(t, errMissingToken),
		},
		{
			name:     "sco",
			body:     []byte(`{"name":"Bootcamp"}`),
			token:    getToken(t, app.Conf, auth.UserSCO),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "missing name",
			body:     []byte(`{"price":"Free"}`),
			token:    getToken(t, app.Conf, auth.UserSecretary),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
		},
		{
			name:     "dates out of order",
			body:     []byte(`{"name":"Bootcamp","startDate":"2024-03-15","endDate":"2024-03-01"}`),
			token:    getToken(t, app.Conf, auth.UserSecretary),
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"endDate": "end date cannot be before start date"}),
		},
		{
			name:     "ok",
			body:     []byte(`{"name":" Bootcamp ","startDate":"2024-03-01","endDate":"2024-03-15","price":"Free"}`),
			token:    getToken(t, app.Conf, auth.UserSecretary),
			wantCode: http.StatusCreated,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.method = http.MethodPost
			tt.path = "/v1/sessions"
			rec := tt.do(server)
			checkCodeAndData(t, tt, rec)

			if tt.wantCode == http.StatusCreated {
				var sess session.Session
				unmarshal(t, rec, &sess)
				assert.NotEmpty(t, sess.ID)
				assert.Equal(t, "Bootcamp", sess.Name)
				assert.Equal(t, session.StatusUpcoming, sess.Status)
				assert.Equal(t, session.RegistrationOpen, sess.RegistrationStatus)
				assert.Equal(t, frozenNow, sess.CreatedAt)

				got, err := app.Sessions.GetByID(context.Background(), sess.ID)
				require.NoError(t, err)
				assert.Equal(t, sess, got)
			}
		})
	}
}

func TestSessions_update(t *testing.T) {
	app, server := setup(t)
	sess := testutil.CreateSession(t, app.Sessions, "Leadership Bootcamp")
	secretary := getToken(t, app.Conf, auth.UserSecretary)

	tests := []struct {
		httpTest
		check func(t *testing.T, s session.Session)
	}{
		{
			httpTest: httpTest{
				name:     "invalid status",
				method:   http.MethodPatch,
				path:     "/v1/sessions/" + sess.ID,
				body:     []byte(`{"status":"later"}`),
				wantCode: http.StatusBadRequest,
			},
		},
		{
			httpTest: httpTest{
				name:     "close registrations",
				method:   http.MethodPatch,
				path:     "/v1/sessions/" + sess.ID,
				body:     []byte(`{"registrationStatus":"closed","status":"ongoing"}`),
				wantCode: http.StatusOK,
			},
			check: func(t *testing.T, s session.Session) {
				assert.Equal(t, session.RegistrationClosed, s.RegistrationStatus)
				assert.Equal(t, session.StatusOngoing, s.Status)
				assert.Equal(t, sess.Name, s.Name)
			},
		},
		{
			httpTest: httpTest{
				name:     "add facilitator",
				method:   http.MethodPost,
				path:     "/v1/sessions/" + sess.ID + "/facilitators",
				body:     []byte(`{"name":"Dr. Ada","title":"Coach"}`),
				wantCode: http.StatusOK,
			},
			check: func(t *testing.T, s session.Session) {
				assert.Equal(t, []session.Facilitator{{Name: "Dr. Ada", Title: "Coach"}}, s.Facilitators)
			},
		},
		{
			httpTest: httpTest{
				name:     "add nameless facilitator",
				method:   http.MethodPost,
				path:     "/v1/sessions/" + sess.ID + "/facilitators",
				body:     []byte(`{"title":"Coach"}`),
				wantCode: http.StatusBadRequest,
				wantData: marchallObj(t, map[string]string{"name": "this field is required"}),
			},
		},
		{
			httpTest: httpTest{
				name:     "remove facilitator",
				method:   http.MethodDelete,
				path:     "/v1/sessions/" + sess.ID + "/facilitators/dr.%20ada",
				wantCode: http.StatusOK,
			},
			check: func(t *testing.T, s session.Session) {
				assert.Empty(t, s.Facilitators)
			},
		},
		{
			httpTest: httpTest{
				name:     "unknown session",
				method:   http.MethodPatch,
				path:     "/v1/sessions/nope",
				body:     []byte(`{"name":"x"}`),
				wantCode: http.StatusNotFound,
				wantData: marchallObj(t, errNotFound),
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tt.token = secretary
			rec := tt.do(server)
			checkCodeAndData(t, tt.httpTest, rec)
			if tt.check != nil {
				var s session.Session
				unmarshal(t, rec, &s)
				tt.check(t, s)
			}
		})
	}
}

func TestSessions_studentsAndDelete(t *testing.T) {
	app, server := setup(t)
	sess := testutil.CreateSession(t, app.Sessions, "Leadership Bootcamp")
	other := testutil.CreateSession(t, app.Sessions, "Public Speaking")
	jane := testutil.RegisterStudent(t, app.Students, "Jane Doe", "jane@example.com", sess.ID)
	testutil.RegisterStudent(t, app.Students, "John Doe", "john@example.com", other.ID)

	jane, err := app.Students.GetByID(context.Background(), jane.ID)
	require.NoError(t, err)

	tests := []httpTest{
		{
			name:     "students",
			path:     "/v1/sessions/" + sess.ID + "/students",
			token:    getToken(t, app.Conf, auth.UserSecretary),
			wantCode: http.StatusOK,
			wantData: marchallList(t, jane),
		},
		{
			name:     "delete as secretary",
			method:   http.MethodDelete,
			path:     "/v1/sessions/" + sess.ID,
			token:    getToken(t, app.Conf, auth.UserSecretary),
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
		{
			name:     "delete",
			method:   http.MethodDelete,
			path:     "/v1/sessions/" + sess.ID,
			token:    adminToken(t, app),
			wantCode: http.StatusNoContent,
		},
		{
			name:     "deleted",
			path:     "/v1/sessions/" + sess.ID,
			wantCode: http.StatusNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, tt.do(server))
		})
	}
}
