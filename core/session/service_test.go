package session_test

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/academia/core/session"
	"github.com/trezcool/academia/tests"
)

func TestService_FindByName(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp(t)
	lead := testutil.CreateSession(t, app.Sessions, "Leadership Bootcamp")
	excel := testutil.CreateSession(t, app.Sessions, "Excel Training Session")

	tests := []struct {
		name   string
		search string
		wantID string
	}{
		{name: "exact", search: "Leadership Bootcamp", wantID: lead.ID},
		{name: "case and quotes", search: ` "excel training session" `, wantID: excel.ID},
		{name: "whole word", search: "bootcamp", wantID: lead.ID},
		{name: "leading words", search: "excel training", wantID: excel.ID},
		{name: "longer text", search: "leadership bootcamp 2024", wantID: lead.ID},
		{name: "typo", search: "Leadrship Bootcamp", wantID: lead.ID},
		{name: "single letter", search: "b"},
		{name: "short word", search: "ex"},
		{name: "part of a word", search: "boot"},
		{name: "unrelated", search: "Yoga"},
		{name: "empty", search: "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := app.Sessions.FindByName(ctx, tt.search)
			if tt.wantID == "" {
				assert.Equal(t, session.ErrNotFound, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantID, got.ID)
		})
	}
}

func TestService_AddFacilitator_concurrent(t *testing.T) {
	ctx := context.Background()
	app := testutil.NewApp(t)
	sess := testutil.CreateSession(t, app.Sessions, "Leadership Bootcamp")

	const n = 20
	ready := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-ready
			_, err := app.Sessions.AddFacilitator(ctx, sess.ID, session.Facilitator{Name: fmt.Sprintf("Coach %d", i)})
			assert.NoError(t, err)
		}(i)
	}
	close(ready)
	wg.Wait()

	got, err := app.Sessions.GetByID(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, got.Facilitators, n)
	names := make(map[string]bool, n)
	for _, f := range got.Facilitators {
		names[f.Name] = true
	}
	for i := 0; i < n; i++ {
		assert.True(t, names[fmt.Sprintf("Coach %d", i)], "Coach %d", i)
	}
}
