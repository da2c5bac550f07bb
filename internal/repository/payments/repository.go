package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"finance_tracker/internal/apperrors"
	mg "finance_tracker/internal/config/connections/mongo"
	"finance_tracker/internal/models"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "payments"

type Repository struct {
	mg *mg.Mongo
}

func NewRepository(m *mg.Mongo) *Repository {
	return &Repository{mg: m}
}

func (r *Repository) coll() (*mongo.Collection, error) {
	c := r.mg.Collection(Collection)
	if c == nil {
		return nil, mongo.ErrClientDisconnected
	}
	return c, nil
}

// idFilters lists the filters to try for id: ObjectID first, then the raw
// string for records written by other clients.
func idFilters(userID, id string) []bson.M {
	out := make([]bson.M, 0, 2)
	if oid, err := primitive.ObjectIDFromHex(id); err == nil {
		out = append(out, bson.M{"_id": oid, "user_id": userID})
	}
	return append(out, bson.M{"_id": id, "user_id": userID})
}

func (r *Repository) Create(ctx context.Context, userID string, rec models.Payment) (string, error) {
	c, err := r.coll()
	if err != nil {
		return "", err
	}

	now := time.Now().UTC()
	rec.UserID = userID
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = now
	}
	rec.UpdatedAt = now

	oid := primitive.NewObjectID()
	doc := append(bson.D{
		{Key: "_id", Value: oid},
		{Key: "user_id", Value: userID},
		{Key: "created_at", Value: rec.CreatedAt},
		{Key: "updated_at", Value: rec.UpdatedAt},
	}, fieldsDoc(rec)...)

	if _, err := c.InsertOne(ctx, doc, options.InsertOne()); err != nil {
		return "", fmt.Errorf("insert payment: %w", err)
	}
	return oid.Hex(), nil
}

func (r *Repository) Get(ctx context.Context, userID, id string) (models.Payment, error) {
	c, err := r.coll()
	if err != nil {
		return models.Payment{}, err
	}

	for _, f := range idFilters(userID, id) {
		var raw bson.M
		err := c.FindOne(ctx, f).Decode(&raw)
		if errors.Is(err, mongo.ErrNoDocuments) {
			continue
		}
		if err != nil {
			return models.Payment{}, fmt.Errorf("find payment %s: %w", id, err)
		}
		return fromDoc(raw), nil
	}
	return models.Payment{}, &apperrors.NotFoundError{ID: id}
}

func (r *Repository) List(ctx context.Context, userID string) ([]models.Payment, error) {
	c, err := r.coll()
	if err != nil {
		return nil, err
	}

	opts := options.Find().SetSort(bson.D{{Key: "due_date", Value: 1}})
	cur, err := c.Find(ctx, bson.M{"user_id": userID}, opts)
	if err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	defer cur.Close(ctx)

	out := make([]models.Payment, 0)
	for cur.Next(ctx) {
		var raw bson.M
		if err := cur.Decode(&raw); err != nil {
			return nil, fmt.Errorf("decode payment: %w", err)
		}
		out = append(out, fromDoc(raw))
	}
	if err := cur.Err(); err != nil {
		return nil, fmt.Errorf("list payments: %w", err)
	}
	return out, nil
}

func (r *Repository) Update(ctx context.Context, userID, id string, rec models.Payment) error {
	c, err := r.coll()
	if err != nil {
		return err
	}

	set := fieldsDoc(rec)
	set = append(set, bson.E{Key: "updated_at", Value: time.Now().UTC()})
	update := bson.D{{Key: "$set", Value: set}}

	for _, f := range idFilters(userID, id) {
		res, err := c.UpdateOne(ctx, f, update)
		if err != nil {
			return fmt.Errorf("update payment %s: %w", id, err)
		}
		if res.MatchedCount > 0 {
			return nil
		}
	}
	return &apperrors.NotFoundError{ID: id}
}

func (r *Repository) Delete(ctx context.Context, userID, id string) error {
	c, err := r.coll()
	if err != nil {
		return err
	}

	for _, f := range idFilters(userID, id) {
		res, err := c.DeleteOne(ctx, f)
		if err != nil {
			return fmt.Errorf("delete payment %s: %w", id, err)
		}
		if res.DeletedCount > 0 {
			return nil
		}
	}
	return &apperrors.NotFoundError{ID: id}
}

// EnsureIndexes creates the per-user due date index List relies on.
func (r *Repository) EnsureIndexes(ctx context.Context) error {
	c, err := r.coll()
	if err != nil {
		return err
	}
	_, err = c.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "user_id", Value: 1}, {Key: "due_date", Value: 1}},
	})
	return err
}
