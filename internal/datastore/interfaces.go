// interfaces.go: this code defines the interface for the database operations
package datastore

import (
	"context"
	"fmt"
	"slices"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/wildlens/wildlens-go/internal/conf"
	"github.com/wildlens/wildlens-go/internal/errors"
	"github.com/wildlens/wildlens-go/internal/logger"
	"github.com/wildlens/wildlens-go/internal/observability/metrics"
)

// RankedImagesLimits are the page sizes the annotation UI may request.
var RankedImagesLimits = []int{5, 10, 20}

// rankingBatchSize bounds the rows per INSERT when replacing rankings.
const rankingBatchSize = 500

// Interface abstracts the underlying database implementation.
type Interface interface {
	Open() error
	Close() error

	// CountPoolImages counts consented object-detection images.
	CountPoolImages(ctx context.Context) (int64, error)
	// PoolImages lists every object-detection image ordered by id.
	PoolImages(ctx context.Context) ([]PoolImage, error)
	PredictedBoxes(ctx context.Context, imageID uint) ([]PredictedBox, error)
	ClassCount(ctx context.Context) (int, error)
	// LabeledClassCounts sums annotated boxes per class id.
	LabeledClassCounts(ctx context.Context) (map[int]int, error)

	// ReplaceRankings swaps every ranking row of algorithm for imageIDs in
	// rank order, atomically.
	ReplaceRankings(ctx context.Context, algorithm string, imageIDs []uint) error
	// RankedImages returns the next ranked images userID has not annotated yet.
	RankedImages(ctx context.Context, algorithm string, userID uint, limit int) ([]PoolImage, error)

	SaveImage(ctx context.Context, image *Image) error
	SavePredictedBoxes(ctx context.Context, imageID uint, boxes []PredictedBox) error
	SaveAnnotatedBoxes(ctx context.Context, imageID, userID uint, boxes []AnnotatedBox) error
	SaveClasses(ctx context.Context, classes []Class) error
}

// DataStore implements Interface on top of a GORM connection shared by the
// dialect specific stores.
type DataStore struct {
	DB      *gorm.DB
	metrics *metrics.DatastoreMetrics

	// isConstraintViolation is set by the dialect store
	isConstraintViolation func(error) bool
}

// Option configures a store created by New.
type Option func(*DataStore)

// WithMetrics records every SQL statement in m.
func WithMetrics(m *metrics.DatastoreMetrics) Option {
	return func(ds *DataStore) { ds.metrics = m }
}

// New creates a new instance of DataStore based on the provided configuration.
func New(settings *conf.Settings, opts ...Option) (Interface, error) {
	ds := DataStore{}
	for _, opt := range opts {
		opt(&ds)
	}

	switch settings.Database.Type {
	case conf.DatabaseSQLite:
		return &SQLiteStore{DataStore: ds, Settings: settings}, nil
	case conf.DatabaseMySQL:
		return &MySQLStore{DataStore: ds, Settings: settings}, nil
	default:
		return nil, errors.Newf("unsupported database type %q", settings.Database.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

// gormConfig returns the GORM configuration with logging and metrics wired in.
func (ds *DataStore) gormConfig(slowThreshold time.Duration) *gorm.Config {
	var observer logger.QueryObserver
	if ds.metrics != nil {
		observer = ds.metrics.ObserveQuery
	}
	return &gorm.Config{
		Logger: logger.NewGormLoggerAdapter(GetLogger(), slowThreshold, observer),
	}
}

// performAutoMigration creates or updates the tables this service uses.
func performAutoMigration(db *gorm.DB, dbType string) error {
	start := time.Now()
	if err := db.AutoMigrate(&Image{}, &PredictedBox{}, &Class{}, &AnnotatedBox{}, &ActiveLearningRanking{}); err != nil {
		return errors.New(fmt.Errorf("failed to auto-migrate %s database: %w", dbType, err)).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("db_type", dbType).
			Build()
	}
	GetLogger().Debug("database migration completed",
		logger.String("db_type", dbType),
		logger.Duration("duration", time.Since(start)))
	return nil
}

func (ds *DataStore) ready() error {
	if ds.DB == nil {
		return errors.New(errors.NewStd("database connection is not initialized")).
			Component("datastore").
			Category(errors.CategoryState).
			Build()
	}
	return nil
}

// CountPoolImages counts consented object-detection images.
func (ds *DataStore) CountPoolImages(ctx context.Context) (int64, error) {
	if err := ds.ready(); err != nil {
		return 0, err
	}
	var count int64
	err := ds.DB.WithContext(ctx).Model(&Image{}).
		Where("model_type = ? AND consent = ?", ModelTypeObjectDetection, true).
		Count(&count).Error
	if err != nil {
		return 0, dbError(err, "count_pool_images", "images")
	}
	return count, nil
}

// PoolImages lists every object-detection image ordered by id. Consent is
// applied when rankings are served, see RankedImages.
func (ds *DataStore) PoolImages(ctx context.Context) ([]PoolImage, error) {
	if err := ds.ready(); err != nil {
		return nil, err
	}
	var images []PoolImage
	err := ds.DB.WithContext(ctx).Model(&Image{}).
		Select("id, filename, filepath, width, height").
		Where("model_type = ?", ModelTypeObjectDetection).
		Order("id").
		Scan(&images).Error
	if err != nil {
		return nil, dbError(err, "pool_images", "images")
	}
	return images, nil
}

// PredictedBoxes returns the detector boxes of an image ordered by id.
func (ds *DataStore) PredictedBoxes(ctx context.Context, imageID uint) ([]PredictedBox, error) {
	if err := ds.ready(); err != nil {
		return nil, err
	}
	var boxes []PredictedBox
	if err := ds.DB.WithContext(ctx).Where("image_id = ?", imageID).Order("id").Find(&boxes).Error; err != nil {
		return nil, dbError(err, "predicted_boxes", "model_predicted_boxes")
	}
	return boxes, nil
}

// ClassCount returns the number of known classes.
func (ds *DataStore) ClassCount(ctx context.Context) (int, error) {
	if err := ds.ready(); err != nil {
		return 0, err
	}
	var count int64
	if err := ds.DB.WithContext(ctx).Model(&Class{}).Count(&count).Error; err != nil {
		return 0, dbError(err, "class_count", "classes")
	}
	return int(count), nil
}

// LabeledClassCounts sums annotated boxes per class id.
func (ds *DataStore) LabeledClassCounts(ctx context.Context) (map[int]int, error) {
	if err := ds.ready(); err != nil {
		return nil, err
	}
	var rows []struct {
		ClassID int
		Total   int
	}
	err := ds.DB.WithContext(ctx).Model(&AnnotatedBox{}).
		Select("class_id, COUNT(*) AS total").
		Group("class_id").
		Scan(&rows).Error
	if err != nil {
		return nil, dbError(err, "labeled_class_counts", "active_learning_boxes")
	}
	counts := make(map[int]int, len(rows))
	for _, r := range rows {
		counts[r.ClassID] = r.Total
	}
	return counts, nil
}

// ReplaceRankings deletes every ranking of algorithm and inserts imageIDs
// with their position as score, in one transaction. On error the previous
// rankings stay in place.
func (ds *DataStore) ReplaceRankings(ctx context.Context, algorithm string, imageIDs []uint) error {
	if err := ds.ready(); err != nil {
		return err
	}
	if algorithm == "" {
		return errors.ValidationError("ranking algorithm must not be empty")
	}

	rows := make([]ActiveLearningRanking, len(imageIDs))
	for rank, id := range imageIDs {
		rows[rank] = ActiveLearningRanking{ImageID: id, AlgorithmType: algorithm, RankingScore: rank}
	}

	start := time.Now()
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("algorithm_type = ?", algorithm).Delete(&ActiveLearningRanking{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.CreateInBatches(rows, rankingBatchSize).Error
	})
	if err != nil {
		category := errors.CategoryDatabase
		if ds.isConstraintViolation != nil && ds.isConstraintViolation(err) {
			category = errors.CategoryValidation
		}
		return errors.New(fmt.Errorf("replace rankings: %w", err)).
			Component("datastore").
			Category(category).
			Timing("replace_rankings", time.Since(start)).
			Context("algorithm", algorithm).
			Context("rows", len(rows)).
			Build()
	}

	if ds.metrics != nil {
		ds.metrics.SetRankingRows(len(rows))
	}
	return nil
}

// RankedImages returns up to limit consented object-detection images ranked
// for algorithm that userID has not annotated, best first.
func (ds *DataStore) RankedImages(ctx context.Context, algorithm string, userID uint, limit int) ([]PoolImage, error) {
	if err := ds.ready(); err != nil {
		return nil, err
	}
	if !slices.Contains(RankedImagesLimits, limit) {
		return nil, errors.Newf("limit must be one of %v, got %d", RankedImagesLimits, limit).
			Component("datastore").
			Category(errors.CategoryValidation).
			Context("limit", limit).
			Build()
	}

	var images []PoolImage
	err := ds.DB.WithContext(ctx).
		Table("images AS i").
		Select("i.id, i.filename, i.filepath, i.width, i.height").
		Joins("JOIN active_learning_rankings r ON r.image_id = i.id").
		Joins("LEFT JOIN active_learning_boxes a ON a.image_id = i.id AND a.user_id = ?", userID).
		Where("i.consent = ? AND i.model_type = ? AND a.image_id IS NULL AND r.algorithm_type = ?",
			true, ModelTypeObjectDetection, algorithm).
		Order("r.ranking_score").
		Limit(limit).
		Scan(&images).Error
	if err != nil {
		return nil, dbError(err, "ranked_images", "active_learning_rankings")
	}
	return images, nil
}

// SaveImage inserts an image.
func (ds *DataStore) SaveImage(ctx context.Context, image *Image) error {
	if err := ds.ready(); err != nil {
		return err
	}
	if err := ds.DB.WithContext(ctx).Create(image).Error; err != nil {
		return dbError(err, "save_image", "images")
	}
	return nil
}

// SavePredictedBoxes inserts detector boxes for imageID.
func (ds *DataStore) SavePredictedBoxes(ctx context.Context, imageID uint, boxes []PredictedBox) error {
	if err := ds.ready(); err != nil {
		return err
	}
	if len(boxes) == 0 {
		return nil
	}
	for i := range boxes {
		boxes[i].ImageID = imageID
	}
	if err := ds.DB.WithContext(ctx).Create(&boxes).Error; err != nil {
		return dbError(err, "save_predicted_boxes", "model_predicted_boxes")
	}
	return nil
}

// SaveAnnotatedBoxes replaces the boxes userID annotated on imageID.
func (ds *DataStore) SaveAnnotatedBoxes(ctx context.Context, imageID, userID uint, boxes []AnnotatedBox) error {
	if err := ds.ready(); err != nil {
		return err
	}
	for i := range boxes {
		boxes[i].ImageID = imageID
		boxes[i].UserID = userID
	}
	err := ds.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("image_id = ? AND user_id = ?", imageID, userID).Delete(&AnnotatedBox{}).Error; err != nil {
			return err
		}
		if len(boxes) == 0 {
			return nil
		}
		return tx.Create(&boxes).Error
	})
	if err != nil {
		return dbError(err, "save_annotated_boxes", "active_learning_boxes")
	}
	return nil
}

// SaveClasses inserts classes, updating the name of existing class ids.
func (ds *DataStore) SaveClasses(ctx context.Context, classes []Class) error {
	if err := ds.ready(); err != nil {
		return err
	}
	if len(classes) == 0 {
		return nil
	}
	err := ds.DB.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "class_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"name"}),
	}).Create(&classes).Error
	if err != nil {
		return dbError(err, "save_classes", "classes")
	}
	return nil
}

// closeDB closes the underlying connection pool.
func (ds *DataStore) closeDB(dbType string) error {
	if err := ds.ready(); err != nil {
		return err
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return dbError(err, "close", dbType)
	}
	if err := sqlDB.Close(); err != nil {
		return dbError(err, "close", dbType)
	}
	GetLogger().Debug("database connection closed", logger.String("db_type", dbType))
	return nil
}
