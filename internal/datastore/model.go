// model.go defines the tables the ranking service reads and owns
package datastore

import "time"

// ModelTypeObjectDetection marks images uploaded for object detection.
const ModelTypeObjectDetection = 1

// Image is an uploaded image. Only consented object-detection images form
// the active-learning pool.
type Image struct {
	ID        uint   `gorm:"primaryKey"`
	Filename  string `gorm:"type:varchar(255)"`
	Filepath  string `gorm:"type:varchar(1024)"`
	Width     int
	Height    int
	UserID    uint `gorm:"index"`
	ModelType int  `gorm:"index:idx_images_pool,priority:1"`
	Consent   bool `gorm:"index:idx_images_pool,priority:2"`
	CreatedAt time.Time
}

func (Image) TableName() string { return "images" }

// PoolImage is the projection of Image handed to rankers and consumers.
type PoolImage struct {
	ID       uint
	Filename string
	Filepath string
	Width    int
	Height   int
}

// PredictedBox is one detector output. Embedding holds the detection's
// feature vector as little-endian float32 values written by the detection
// worker.
type PredictedBox struct {
	ID         uint `gorm:"primaryKey"`
	ImageID    uint `gorm:"index;not null"`
	ClassID    int  `gorm:"not null"`
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Confidence float64
	Embedding  []byte
	CreatedAt  time.Time
}

func (PredictedBox) TableName() string { return "model_predicted_boxes" }

// Class is a detectable class. ClassID is the zero-based id used by the
// detector and the ranking.
type Class struct {
	ID      uint   `gorm:"primaryKey"`
	ClassID int    `gorm:"uniqueIndex;not null"`
	Name    string `gorm:"type:varchar(255)"`
}

func (Class) TableName() string { return "classes" }

// AnnotatedBox is a box confirmed by a user through the active-learning UI.
// These rows are the labeled set.
type AnnotatedBox struct {
	ID         uint `gorm:"primaryKey"`
	ImageID    uint `gorm:"index:idx_al_boxes_image_user,priority:1;not null"`
	UserID     uint `gorm:"index:idx_al_boxes_image_user,priority:2;not null"`
	ClassID    int  `gorm:"index;not null"`
	X          float64
	Y          float64
	Width      float64
	Height     float64
	Confidence float64
	CreatedAt  time.Time
}

func (AnnotatedBox) TableName() string { return "active_learning_boxes" }

// ActiveLearningRanking is one ranked image for one algorithm. RankingScore
// is the zero-based rank, lower is better.
type ActiveLearningRanking struct {
	ID            uint   `gorm:"primaryKey"`
	ImageID       uint   `gorm:"uniqueIndex:idx_rankings_image_algorithm,priority:1;not null"`
	AlgorithmType string `gorm:"type:varchar(64);uniqueIndex:idx_rankings_image_algorithm,priority:2;index;not null"`
	RankingScore  int    `gorm:"not null"`
	CreatedAt     time.Time
}

func (ActiveLearningRanking) TableName() string { return "active_learning_rankings" }
