package importitems

import (
	"context"
	"encoding/json"
	"time"

	mg "finance_tracker/internal/config/connections/mongo"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const ImportRecordItemsCollection = "import_record_items"

type Item struct {
	ImportRecordID string    `bson:"import_record_id" json:"import_record_id"`
	ModelType      string    `bson:"model_type" json:"model_type"`
	ModelID        string    `bson:"model_id" json:"model_id"`
	Payload        string    `bson:"payload" json:"payload"`
	Status         string    `bson:"status" json:"status"`
	Errors         string    `bson:"errors" json:"errors"`
	CreatedAt      time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt      time.Time `bson:"updated_at" json:"updated_at"`
}

type LogParams struct {
	ImportRecordID string
	ModelType      string
	ModelID        string
	Payload        map[string]string
	Status         string
	Errors         string
}

func InsertItem(ctx context.Context, m *mg.Mongo, item Item) (*mongo.InsertOneResult, error) {
	coll := m.Collection(ImportRecordItemsCollection)
	if coll == nil {
		return nil, mongo.ErrClientDisconnected
	}

	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	doc := bson.D{
		{Key: "import_record_id", Value: item.ImportRecordID},
		{Key: "model_type", Value: item.ModelType},
		{Key: "model_id", Value: item.ModelID},
		{Key: "payload", Value: item.Payload},
		{Key: "status", Value: item.Status},
		{Key: "errors", Value: item.Errors},
		{Key: "created_at", Value: item.CreatedAt},
		{Key: "updated_at", Value: item.UpdatedAt},
	}

	return coll.InsertOne(ctx, doc, options.InsertOne())
}

// ItemLogger records per-row import outcomes. A nil Mongo makes it a no-op.
type ItemLogger struct {
	Mongo  *mg.Mongo
	Logger *logrus.Logger
}

func (l ItemLogger) Fail(ctx context.Context, p LogParams) {
	p.Status = StatusFailed
	l.Log(ctx, p)
}

func (l ItemLogger) Done(ctx context.Context, p LogParams) {
	p.Status = StatusDone
	l.Log(ctx, p)
}

func (l ItemLogger) Log(ctx context.Context, p LogParams) {
	if l.Mongo == nil || l.Mongo.Database == nil || p.ImportRecordID == "" {
		return
	}

	b, _ := json.Marshal(p.Payload)

	if _, err := InsertItem(ctx, l.Mongo, Item{
		ImportRecordID: p.ImportRecordID,
		ModelType:      p.ModelType,
		ModelID:        p.ModelID,
		Payload:        string(b),
		Status:         p.Status,
		Errors:         p.Errors,
	}); err != nil && l.Logger != nil {
		l.Logger.Printf("[PROC][%s][MONGO][ERR] id=%s status=%s err=%v",
			p.ModelType, p.ModelID, p.Status, err)
	}
}
