package datastore

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/observability/metrics"
)

const testAlgorithm = "enms_diversity"

func createDatabase(t *testing.T, opts ...Option) Interface {
	t.Helper()
	settings := &conf.Settings{}
	settings.Database.Type = conf.DatabaseSQLite
	settings.Database.SQLite.Path = filepath.Join(t.TempDir(), "nested", "test.db")

	dataStore, err := New(settings, opts...)
	require.NoError(t, err)
	require.NoError(t, dataStore.Open(), "Failed to open database")

	t.Cleanup(func() {
		assert.NoError(t, dataStore.Close(), "Failed to close datastore")
	})
	return dataStore
}

// seedImages stores five images: 1-4 form the pool, 4 lacks consent and 5
// is a classification upload.
func seedImages(t *testing.T, ds Interface) {
	t.Helper()
	ctx := context.Background()
	images := []Image{
		{ID: 1, Filename: "a.jpg", Filepath: "/img/a.jpg", Width: 640, Height: 480, UserID: 1, ModelType: ModelTypeObjectDetection, Consent: true},
		{ID: 2, Filename: "b.jpg", Filepath: "/img/b.jpg", Width: 640, Height: 480, UserID: 1, ModelType: ModelTypeObjectDetection, Consent: true},
		{ID: 3, Filename: "c.jpg", Filepath: "/img/c.jpg", Width: 1024, Height: 768, UserID: 2, ModelType: ModelTypeObjectDetection, Consent: true},
		{ID: 4, Filename: "d.jpg", Filepath: "/img/d.jpg", UserID: 2, ModelType: ModelTypeObjectDetection, Consent: false},
		{ID: 5, Filename: "e.jpg", Filepath: "/img/e.jpg", UserID: 2, ModelType: 0, Consent: true},
	}
	for i := range images {
		require.NoError(t, ds.SaveImage(ctx, &images[i]))
	}
}

func TestNewUnsupportedType(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Database.Type = "postgres"
	_, err := New(settings)
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryConfiguration))
}

func TestOperationsBeforeOpen(t *testing.T) {
	t.Parallel()

	settings := &conf.Settings{}
	settings.Database.Type = conf.DatabaseSQLite
	ds, err := New(settings)
	require.NoError(t, err)

	_, err = ds.CountPoolImages(context.Background())
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryState))
	require.Error(t, ds.Open(), "empty sqlite path must be rejected")
}

func TestPoolImages(t *testing.T) {
	t.Parallel()
	ds := createDatabase(t)
	seedImages(t, ds)
	ctx := context.Background()

	count, err := ds.CountPoolImages(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), count, "only consented images count towards a pass trigger")

	pool, err := ds.PoolImages(ctx)
	require.NoError(t, err)
	require.Len(t, pool, 4, "images without consent are ranked too")
	assert.Equal(t, PoolImage{ID: 3, Filename: "c.jpg", Filepath: "/img/c.jpg", Width: 1024, Height: 768}, pool[2])
	for i, img := range pool {
		assert.Equal(t, uint(i+1), img.ID)
	}
}

func TestPredictedBoxes(t *testing.T) {
	t.Parallel()
	ds := createDatabase(t)
	seedImages(t, ds)
	ctx := context.Background()

	boxes := []PredictedBox{
		{ClassID: 2, X: 1, Y: 2, Width: 10, Height: 20, Confidence: 0.9, Embedding: []byte{0, 0, 128, 63}},
		{ClassID: 0, X: 5, Y: 5, Width: 4, Height: 4, Confidence: 0.4},
	}
	require.NoError(t, ds.SavePredictedBoxes(ctx, 1, boxes))
	require.NoError(t, ds.SavePredictedBoxes(ctx, 2, nil))

	got, err := ds.PredictedBoxes(ctx, 1)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint(1), got[0].ImageID)
	assert.Equal(t, 2, got[0].ClassID)
	assert.Equal(t, []byte{0, 0, 128, 63}, got[0].Embedding)
	assert.InDelta(t, 0.4, got[1].Confidence, 1e-12)

	none, err := ds.PredictedBoxes(ctx, 2)
	require.NoError(t, err)
	assert.Empty(t, none)
}

func TestClassesAndLabeledCounts(t *testing.T) {
	t.Parallel()
	ds := createDatabase(t)
	seedImages(t, ds)
	ctx := context.Background()

	require.NoError(t, ds.SaveClasses(ctx, []Class{{ClassID: 0, Name: "fox"}, {ClassID: 1, Name: "deer"}}))
	require.NoError(t, ds.SaveClasses(ctx, []Class{{ClassID: 1, Name: "roe deer"}, {ClassID: 2, Name: "boar"}}))

	n, err := ds.ClassCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, ds.SaveAnnotatedBoxes(ctx, 1, 7, []AnnotatedBox{{ClassID: 0}, {ClassID: 0}, {ClassID: 2}}))
	require.NoError(t, ds.SaveAnnotatedBoxes(ctx, 2, 8, []AnnotatedBox{{ClassID: 2}}))

	counts, err := ds.LabeledClassCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{0: 2, 2: 2}, counts)

	// saving again for the same user and image replaces the previous boxes
	require.NoError(t, ds.SaveAnnotatedBoxes(ctx, 1, 7, []AnnotatedBox{{ClassID: 1}}))
	counts, err = ds.LabeledClassCounts(ctx)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: 1, 2: 1}, counts)
}

func TestRankedImages(t *testing.T) {
	t.Parallel()
	ds := createDatabase(t)
	seedImages(t, ds)
	ctx := context.Background()

	require.NoError(t, ds.ReplaceRankings(ctx, testAlgorithm, []uint{3, 4, 1, 5, 2}))
	require.NoError(t, ds.ReplaceRankings(ctx, "random", []uint{2}))
	require.NoError(t, ds.SaveAnnotatedBoxes(ctx, 3, 7, []AnnotatedBox{{ClassID: 0}}))

	ids := func(images []PoolImage) []uint {
		out := make([]uint, len(images))
		for i, img := range images {
			out[i] = img.ID
		}
		return out
	}

	got, err := ds.RankedImages(ctx, testAlgorithm, 8, 5)
	require.NoError(t, err)
	assert.Equal(t, []uint{3, 1, 2}, ids(got), "unconsented and non detection images are filtered")

	got, err = ds.RankedImages(ctx, testAlgorithm, 7, 10)
	require.NoError(t, err)
	assert.Equal(t, []uint{1, 2}, ids(got), "images the user annotated are skipped")

	got, err = ds.RankedImages(ctx, "unknown", 7, 20)
	require.NoError(t, err)
	assert.Empty(t, got)

	for _, limit := range []int{0, 1, 15, 100} {
		_, err = ds.RankedImages(ctx, testAlgorithm, 7, limit)
		require.Error(t, err)
		assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "limit %d", limit)
	}
}

func TestReplaceRankingsIsAtomic(t *testing.T) {
	t.Parallel()
	ds := createDatabase(t)
	seedImages(t, ds)
	ctx := context.Background()

	require.NoError(t, ds.ReplaceRankings(ctx, testAlgorithm, []uint{2, 1}))

	err := ds.ReplaceRankings(ctx, testAlgorithm, []uint{1, 2, 1})
	require.Error(t, err)
	assert.True(t, errors.IsCategory(err, errors.CategoryValidation), "duplicate image is a constraint violation")
	var ee *errors.EnhancedError
	require.True(t, errors.As(err, &ee))
	assert.Equal(t, "replace_rankings", ee.GetContext()["operation"])
	assert.Contains(t, ee.GetContext(), "duration_ms")

	got, err := ds.RankedImages(ctx, testAlgorithm, 1, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, uint(2), got[0].ID)
	assert.Equal(t, uint(1), got[1].ID)

	require.NoError(t, ds.ReplaceRankings(ctx, testAlgorithm, nil))
	got, err = ds.RankedImages(ctx, testAlgorithm, 1, 5)
	require.NoError(t, err)
	assert.Empty(t, got)

	require.Error(t, ds.ReplaceRankings(ctx, "", []uint{1}))
}

func TestReplaceRankingsRecordsMetrics(t *testing.T) {
	t.Parallel()

	registry := prometheus.NewRegistry()
	m, err := metrics.NewDatastoreMetrics(registry)
	require.NoError(t, err)

	ds := createDatabase(t, WithMetrics(m))
	seedImages(t, ds)
	require.NoError(t, ds.ReplaceRankings(context.Background(), testAlgorithm, []uint{1, 2, 3}))

	expected := `
# HELP wildlens_datastore_ranking_rows Rows written by the last ranking replacement
# TYPE wildlens_datastore_ranking_rows gauge
wildlens_datastore_ranking_rows 3
`
	require.NoError(t, testutil.GatherAndCompare(registry, strings.NewReader(expected), "wildlens_datastore_ranking_rows"))

	count, err := testutil.GatherAndCount(registry, "wildlens_datastore_operations_total")
	require.NoError(t, err)
	assert.Positive(t, count)
}

func TestMySQLDSN(t *testing.T) {
	t.Parallel()

	dsn := mysqlDSN(conf.MySQLSettings{Host: "db", Port: 3306, Username: "wl", Password: "secret", Database: "wildlens"})
	assert.True(t, strings.HasPrefix(dsn, "wl:secret@tcp(db:3306)/wildlens?"), dsn)
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")
}
