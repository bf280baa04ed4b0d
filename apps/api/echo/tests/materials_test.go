package tests

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/auth"
	"github.com/trezcool/academia/core/material"
	"github.com/trezcool/academia/tests"
)

func addMaterial(t *testing.T, app *testutil.App, title, program, sessionID string) material.Material {
	t.Helper()
	m, err := app.Materials.Add(context.Background(), material.NewMaterial{
		Title:      title,
		FileName:   title + ".png",
		FileData:   pngDataURL,
		Program:    program,
		SessionID:  sessionID,
		UploadedBy: auth.UserSecretary,
	})
	require.NoError(t, err)
	return m
}

func TestMaterials_query(t *testing.T) {
	app, server := setup(t)
	sess := testutil.CreateSession(t, app.Sessions, "Leadership Bootcamp")
	other := testutil.CreateSession(t, app.Sessions, "Public Speaking")
	jane := testutil.RegisterStudent(t, app.Students, "Jane Doe", "jane@example.com", sess.ID)

	m1 := addMaterial(t, app, "Handbook", "leadership bootcamp", "")
	m2 := addMaterial(t, app, "Speech", "Public Speaking", other.ID)
	m3 := addMaterial(t, app, "Slides", "", sess.ID)

	janeToken := getToken(t, app.Conf, auth.UserStudent, jane.ID)
	sco := getToken(t, app.Conf, auth.UserSCO)

	tests := []httpTest{
		{
			name:     "anonymous",
			path:     "/v1/materials",
			wantCode: http.StatusUnauthorized,
		},
		{
			name:     "staff",
			path:     "/v1/materials",
			token:    sco,
			wantCode: http.StatusOK,
			wantData: marchallList(t, m1, m2, m3),
		},
		{
			name:     "staff by session",
			path:     "/v1/materials?session=" + other.ID,
			token:    sco,
			wantCode: http.StatusOK,
			wantData: marchallList(t, m1, m2),
		},
		{
			name:     "student program",
			path:     "/v1/materials",
			token:    janeToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, m1, m3),
		},
		{
			name:     "student session",
			path:     "/v1/materials?session=" + sess.ID,
			token:    janeToken,
			wantCode: http.StatusOK,
			wantData: marchallList(t, m1, m3),
		},
		{
			name:     "student other session",
			path:     "/v1/materials?session=" + other.ID,
			token:    janeToken,
			wantCode: http.StatusForbidden,
			wantData: marchallObj(t, errForbidden),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, tt.do(server))
		})
	}
}

func TestMaterials_createAndDelete(t *testing.T) {
	app, server := setup(t)
	sess := testutil.CreateSession(t, app.Sessions, "Leadership Bootcamp")
	jane := testutil.RegisterStudent(t, app.Students, "Jane Doe", "jane@example.com", sess.ID)
	secretary := getToken(t, app.Conf, auth.UserSecretary)

	tests := []httpTest{
		{
			name:     "as student",
			method:   http.MethodPost,
			path:     "/v1/materials",
			body:     []byte(`{"title":"Notes","fileName":"notes.png","fileData":"` + pngDataURL + `"}`),
			token:    getToken(t, app.Conf, auth.UserStudent, jane.ID),
			wantCode: http.StatusForbidden,
		},
		{
			name:     "invalid file",
			method:   http.MethodPost,
			path:     "/v1/materials",
			body:     []byte(`{"title":"Notes","fileName":"notes.png","fileData":"notes.png"}`),
			token:    secretary,
			wantCode: http.StatusBadRequest,
			wantData: marchallObj(t, map[string]string{"fileData": "fileData must be a base64 data URL"}),
		},
		{
			name:     "ok",
			method:   http.MethodPost,
			path:     "/v1/materials",
			body:     []byte(`{"title":" Notes ","fileName":"notes.png","fileData":"` + pngDataURL + `","sessionId":"` + sess.ID + `"}`),
			token:    secretary,
			wantCode: http.StatusCreated,
		},
		{
			name:     "delete unknown",
			method:   http.MethodDelete,
			path:     "/v1/materials/nope",
			token:    secretary,
			wantCode: http.StatusNotFound,
			wantData: marchallObj(t, errNotFound),
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			checkCodeAndData(t, tt, tt.do(server))
		})
	}

	mats, err := app.Materials.All(context.Background())
	require.NoError(t, err)
	require.Len(t, mats, 1)
	assert.Equal(t, "Notes", mats[0].Title)
	assert.Equal(t, auth.UserSecretary, mats[0].UploadedBy)

	del := httpTest{
		method:   http.MethodDelete,
		path:     "/v1/materials/" + mats[0].ID,
		token:    secretary,
		wantCode: http.StatusNoContent,
	}
	checkCodeAndData(t, del, del.do(server))

	mats, err = app.Materials.All(context.Background())
	require.NoError(t, err)
	assert.Empty(t, mats)
}
