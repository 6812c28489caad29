//go:build integration

package datastore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/errors"
)

func createMySQLDatabase(t *testing.T) Interface {
	t.Helper()
	ctx := context.Background()

	ctr, err := tcmysql.Run(ctx, "mysql:8.0.36",
		tcmysql.WithDatabase("wildlens"),
		tcmysql.WithUsername("wildlens"),
		tcmysql.WithPassword("wildlens"),
	)
	testcontainers.CleanupContainer(t, ctr)
	require.NoError(t, err)

	host, err := ctr.Host(ctx)
	require.NoError(t, err)
	port, err := ctr.MappedPort(ctx, "3306/tcp")
	require.NoError(t, err)

	settings := &conf.Settings{}
	settings.Database.Type = conf.DatabaseMySQL
	settings.Database.MySQL = conf.MySQLSettings{
		Host:     host,
		Port:     port.Int(),
		Username: "wildlens",
		Password: "wildlens",
		Database: "wildlens",
	}

	ds, err := New(settings)
	require.NoError(t, err)
	require.NoError(t, ds.Open())
	t.Cleanup(func() {
		assert.NoError(t, ds.Close())
	})
	return ds
}

func TestMySQLRankingRoundTrip(t *testing.T) {
	ds := createMySQLDatabase(t)
	seedImages(t, ds)
	ctx := context.Background()

	require.NoError(t, ds.ReplaceRankings(ctx, testAlgorithm, []uint{2, 3, 1}))
	require.NoError(t, ds.SaveAnnotatedBoxes(ctx, 3, 7, []AnnotatedBox{{ClassID: 4}}))

	got, err := ds.RankedImages(ctx, testAlgorithm, 7, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint(2), got[0].ID)
	assert.Equal(t, uint(1), got[1].ID)

	err = ds.ReplaceRankings(ctx, testAlgorithm, []uint{1, 1})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation))

	got, err = ds.RankedImages(ctx, testAlgorithm, 8, 5)
	require.NoError(t, err)
	assert.Len(t, got, 3, "failed replacement keeps the previous rankings")

	counts, err := ds.LabeledClassCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{4: 1}, counts)
}
