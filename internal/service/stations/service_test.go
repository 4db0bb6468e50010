package stations_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/subway/internal/domain"
	"github.com/vladislavdragonenkov/subway/internal/service/lines"
	"github.com/vladislavdragonenkov/subway/internal/service/stations"
	"github.com/vladislavdragonenkov/subway/internal/storage/memory"
)

func TestService_CreateListGet(t *testing.T) {
	ctx := context.Background()
	svc := stations.NewService(memory.NewStore(), nil)

	first, err := svc.CreateStation(ctx, "  Сокольники ")
	require.NoError(t, err)
	assert.Equal(t, "Сокольники", first.Name)
	assert.NotZero(t, first.ID)

	second, err := svc.CreateStation(ctx, "Красносельская")
	require.NoError(t, err)

	all, err := svc.ListStations(ctx)
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, first.ID, all[0].ID)
	assert.Equal(t, second.ID, all[1].ID)

	got, err := svc.GetStation(ctx, second.ID)
	require.NoError(t, err)
	assert.Equal(t, "Красносельская", got.Name)
}

func TestService_CreateValidation(t *testing.T) {
	ctx := context.Background()
	svc := stations.NewService(memory.NewStore(), nil)

	_, err := svc.CreateStation(ctx, "   ")
	assert.ErrorIs(t, err, domain.ErrStationNameRequired)

	_, err = svc.CreateStation(ctx, "Сокольники")
	require.NoError(t, err)
	_, err = svc.CreateStation(ctx, "СОКОЛЬНИКИ")
	assert.ErrorIs(t, err, domain.ErrStationNameDuplicated)
}

func TestService_DeleteStation(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	svc := stations.NewService(store, nil)

	up, err := svc.CreateStation(ctx, "Сокольники")
	require.NoError(t, err)
	down, err := svc.CreateStation(ctx, "Красносельская")
	require.NoError(t, err)
	spare, err := svc.CreateStation(ctx, "Комсомольская")
	require.NoError(t, err)

	_, err = lines.NewService(store).CreateLine(ctx, lines.CreateLineCommand{
		Name: "Сокольническая", Color: "red", UpStationID: up.ID, DownStationID: down.ID, Distance: 10,
	})
	require.NoError(t, err)

	assert.ErrorIs(t, svc.DeleteStation(ctx, up.ID), domain.ErrStationInUse)
	require.NoError(t, svc.DeleteStation(ctx, spare.ID))
	assert.ErrorIs(t, svc.DeleteStation(ctx, spare.ID), domain.ErrStationNotFound)

	_, err = svc.GetStation(ctx, spare.ID)
	assert.ErrorIs(t, err, domain.ErrStationNotFound)
}
