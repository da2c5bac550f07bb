package ports

import (
	"context"

	"finance_tracker/internal/models"
)

// PaymentStore persists payment records per user. Get returns a NotFoundError
// when the id is absent; List is ordered by due date ascending.
type PaymentStore interface {
	Create(ctx context.Context, userID string, rec models.Payment) (string, error)
	Get(ctx context.Context, userID, id string) (models.Payment, error)
	List(ctx context.Context, userID string) ([]models.Payment, error)
	Update(ctx context.Context, userID, id string, rec models.Payment) error
	Delete(ctx context.Context, userID, id string) error
}
