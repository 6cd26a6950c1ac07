package core

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"pictocore/pkg/domain"
)

func TestConcurrentMutationsAndReads(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	mustBinder(t, svc, "b1", "u1", nil)

	g, gctx := errgroup.WithContext(ctx)
	for i := 0; i < 20; i++ {
		id := fmt.Sprintf("p%02d", i)
		g.Go(func() error {
			_, err := svc.CreatePictogram(gctx, domain.Pictogram{
				Base: domain.Base{ID: id}, BinderID: "b1", Order: i, Properties: title("en", id),
			})
			return err
		})
		g.Go(func() error {
			_, err := svc.TranslatedPictogramsOfBinder(gctx, "b1", "en")
			return err
		})
	}
	require.NoError(t, g.Wait())

	pictograms, err := svc.TranslatedPictogramsOfBinder(ctx, "b1", "en")
	require.NoError(t, err)
	require.Len(t, pictograms, 20)
	for i, p := range pictograms {
		assert.Equal(t, fmt.Sprintf("p%02d", i), p.ID)
		assert.Equal(t, p.ID, p.Properties.Text("en", domain.PropTitle))
	}
}

func TestConcurrentDuplicateCreateHasOneWinner(t *testing.T) {
	ctx := context.Background()
	svc, _ := newTestService(t)
	var g errgroup.Group
	results := make([]error, 10)
	for i := range results {
		g.Go(func() error {
			_, results[i] = svc.CreateUser(ctx, domain.User{
				Base: domain.Base{ID: fmt.Sprintf("u%d", i)}, Name: "n", Email: "same@example.com", Role: domain.RoleUser,
			})
			return nil
		})
	}
	require.NoError(t, g.Wait())
	wins := 0
	for _, err := range results {
		if err == nil {
			wins++
			continue
		}
		assert.True(t, domain.IsDuplicateKey(err))
	}
	assert.Equal(t, 1, wins)
}
