package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.uber.org/zap"

	"github.com/satriahrh/arunika/voiceclient/domain/entities"
	"github.com/satriahrh/arunika/voiceclient/domain/repositories"
)

const logExportsCollection = "log_exports"

// exportDocument is the stored form of an entities.LogExport.
type exportDocument struct {
	ID                 primitive.ObjectID `bson:"_id,omitempty"`
	entities.LogExport `bson:",inline"`
}

// LogArchive stores exported message logs in a collection.
type LogArchive struct {
	collection *mongo.Collection
	deviceID   string
	logger     *zap.Logger
	now        func() time.Time
}

var (
	_ repositories.LogExporter = (*LogArchive)(nil)
	_ repositories.LogHistory  = (*LogArchive)(nil)
)

// NewLogArchive creates an archive over db. deviceID tags every record and may be empty.
func NewLogArchive(db *mongo.Database, deviceID string, logger *zap.Logger) *LogArchive {
	return &LogArchive{
		collection: db.Collection(logExportsCollection),
		deviceID:   deviceID,
		logger:     logger,
		now:        time.Now,
	}
}

// Export implements repositories.LogExporter.
func (a *LogArchive) Export(ctx context.Context, filename, content string) error {
	if filename == "" {
		return errors.New("filename cannot be empty")
	}

	record := entities.LogExport{
		Filename:   filename,
		DeviceID:   a.deviceID,
		Content:    content,
		LineCount:  countLines(content),
		ExportedAt: a.now().UTC(),
	}

	result, err := a.collection.InsertOne(ctx, exportDocument{LogExport: record})
	if err != nil {
		return fmt.Errorf("failed to archive log export: %w", err)
	}

	a.logger.Info("Message log archived",
		zap.String("filename", filename),
		zap.Any("id", result.InsertedID),
		zap.Int("lines", record.LineCount))
	return nil
}

// Recent implements repositories.LogHistory.
func (a *LogArchive) Recent(ctx context.Context, limit int64) ([]entities.LogExport, error) {
	filter := bson.M{}
	if a.deviceID != "" {
		filter["device_id"] = a.deviceID
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "exported_at", Value: -1}}).
		SetLimit(limit)

	cursor, err := a.collection.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to list log exports: %w", err)
	}
	defer cursor.Close(ctx)

	var docs []exportDocument
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to decode log exports: %w", err)
	}

	records := make([]entities.LogExport, 0, len(docs))
	for _, doc := range docs {
		record := doc.LogExport
		record.ID = doc.ID.Hex()
		records = append(records, record)
	}
	return records, nil
}

func countLines(content string) int {
	if content == "" {
		return 0
	}
	return strings.Count(strings.TrimSuffix(content, "\n"), "\n") + 1
}
