package importitems

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finance_tracker/internal/apperrors"
	mg "finance_tracker/internal/config/connections/mongo"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ImportRecordsCollection = "import_records"

type Record struct {
	ID        any        `bson:"_id" json:"id"`
	UserID    *string    `bson:"user_id,omitempty" json:"user_id,omitempty"`
	Count     int        `bson:"count" json:"count"`
	Status    string     `bson:"status" json:"status"`
	Errors    *string    `bson:"errors,omitempty" json:"errors,omitempty"`
	Type      string     `bson:"type" json:"type"`
	Path      *string    `bson:"path,omitempty" json:"path,omitempty"`
	Bucket    *string    `bson:"bucket,omitempty" json:"bucket,omitempty"`
	Key       *string    `bson:"key,omitempty" json:"key,omitempty"`
	SizeBytes *int64     `bson:"size_bytes,omitempty" json:"size_bytes,omitempty"`
	CreatedAt time.Time  `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time  `bson:"updated_at" json:"updated_at"`
	DeletedAt *time.Time `bson:"deleted_at,omitempty" json:"deleted_at,omitempty"`
}

func InsertImportRecord(ctx context.Context, m *mg.Mongo, rec Record) (string, error) {
	coll := m.Collection(ImportRecordsCollection)
	if coll == nil {
		return "", mongo.ErrClientDisconnected
	}

	now := time.Now().UTC()
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now
	if rec.Status == "" {
		rec.Status = StatusParsed
	}

	oid := primitive.NewObjectID()
	doc := bson.D{
		{Key: "_id", Value: oid},
		{Key: "user_id", Value: rec.UserID},
		{Key: "count", Value: rec.Count},
		{Key: "status", Value: rec.Status},
		{Key: "errors", Value: rec.Errors},
		{Key: "type", Value: rec.Type},
		{Key: "path", Value: rec.Path},
		{Key: "bucket", Value: rec.Bucket},
		{Key: "key", Value: rec.Key},
		{Key: "size_bytes", Value: rec.SizeBytes},
		{Key: "created_at", Value: rec.CreatedAt},
		{Key: "updated_at", Value: rec.UpdatedAt},
	}

	if _, err := coll.InsertOne(ctx, doc, options.InsertOne()); err != nil {
		return "", err
	}
	return oid.Hex(), nil
}

func FindImportRecordByID(ctx context.Context, m *mg.Mongo, id string) (Record, error) {
	var out Record
	coll := m.Collection(ImportRecordsCollection)
	if coll == nil {
		return out, mongo.ErrClientDisconnected
	}

	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		if err := coll.FindOne(ctx, bson.M{"_id": oid}).Decode(&out); err == nil {
			out.ID = oid.Hex()
			return out, nil
		}
	}

	if err := coll.FindOne(ctx, bson.M{"_id": id}).Decode(&out); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return out, &apperrors.NotFoundError{ID: id, Kind: "import record"}
		}
		return out, fmt.Errorf("find import record %s: %w", id, err)
	}
	out.ID = id
	return out, nil
}

// FinishImportRecord stores the final status, processed row count and error
// text of an import run.
func FinishImportRecord(ctx context.Context, m *mg.Mongo, importRecordID, status string, count int, errText string) error {
	set := bson.M{"status": status, "count": count}
	if errText != "" {
		set["errors"] = errText
	}
	return updateImportRecord(ctx, m, importRecordID, set)
}

func UpdateImportRecordStatus(ctx context.Context, m *mg.Mongo, importRecordID, status string) error {
	if status == "" {
		return fmt.Errorf("empty status")
	}
	return updateImportRecord(ctx, m, importRecordID, bson.M{"status": status})
}

func updateImportRecord(ctx context.Context, m *mg.Mongo, importRecordID string, set bson.M) error {
	coll := m.Collection(ImportRecordsCollection)
	if coll == nil {
		return mongo.ErrClientDisconnected
	}
	if importRecordID == "" {
		return fmt.Errorf("empty importRecordID")
	}

	set["updated_at"] = time.Now().UTC()
	update := bson.M{"$set": set}

	if oid, err := primitive.ObjectIDFromHex(importRecordID); err == nil {
		res, err := coll.UpdateOne(ctx, bson.M{"_id": oid}, update)
		if err != nil {
			return err
		}
		if res.MatchedCount > 0 {
			return nil
		}
	}

	res, err := coll.UpdateOne(ctx, bson.M{"_id": importRecordID}, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("no import_record found with id %s (tried ObjectId and string)", importRecordID)
	}
	return nil
}
