package email

import (
	"context"
	"time"

	common_models "go-erp/internal/common/models"
	"go-erp/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

type EmailRepository interface {
	Create(ctx context.Context, email *Email) error
	UpdateStatus(ctx context.Context, id primitive.ObjectID, status EmailStatus, errorMsg string) error
}

type EmailRepositoryImpl struct {
	col *mongo.Collection
}

func NewEmailRepository(db *database.MongodbDB) EmailRepository {
	return &EmailRepositoryImpl{
		col: db.DB.Collection("emails"),
	}
}

func (r *EmailRepositoryImpl) Create(ctx context.Context, email *Email) error {
	email.CreatedAt = time.Now()
	if tenantID, ok := ctx.Value(common_models.TenantIDKey).(string); ok && email.TenantID == "" {
		email.TenantID = tenantID
	}
	_, err := r.col.InsertOne(ctx, email)
	return err
}

func (r *EmailRepositoryImpl) UpdateStatus(
	ctx context.Context,
	id primitive.ObjectID,
	status EmailStatus,
	errorMsg string,
) error {
	set := bson.M{
		"status":        status,
		"error_message": errorMsg,
	}
	if status == EmailSent {
		set["sent_at"] = time.Now()
	}
	_, err := r.col.UpdateByID(ctx, id, bson.M{"$set": set})
	return err
}
