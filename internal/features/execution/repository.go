package execution

import (
	"context"
	"errors"
	"time"

	"go-erp/internal/common/errs"
	common_models "go-erp/internal/common/models"
	"go-erp/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Outcome is what a run writes when it leaves a status.
type Outcome struct {
	Status          Status
	FinishedAt      time.Time
	ExecutionTimeMs int64
	Result          *Result
	ResultCount     int64
	ErrorMessage    string
	ErrorDetails    string
}

// ExecutionRepository persists executions. Every status change is a
// compare-and-set on the current status, so a terminal record never moves.
type ExecutionRepository interface {
	Create(ctx context.Context, exec *Execution) error
	Get(ctx context.Context, id string) (*Execution, error)
	ListByReport(ctx context.Context, reportID string, page, limit int64) ([]Execution, int64, error)
	MarkRunning(ctx context.Context, id string, at time.Time) (bool, error)
	Finish(ctx context.Context, id string, from Status, outcome Outcome) (bool, error)
	RequestCancel(ctx context.Context, id string) (bool, error)
	SetDispatch(ctx context.Context, id string, status, errMsg string) error
	Delete(ctx context.Context, id string) error
	EnsureIndexes(ctx context.Context) error
}

type ExecutionRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewExecutionRepository(db *database.MongodbDB) ExecutionRepository {
	return &ExecutionRepositoryImpl{
		Collection: db.DB.Collection("report_executions"),
	}
}

func (r *ExecutionRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "report_id", Value: 1}, {Key: "created_at", Value: -1}}},
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "execution_no", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("tenant_execution_no"),
		},
		{Keys: bson.D{{Key: "status", Value: 1}}},
	})
	return err
}

func (r *ExecutionRepositoryImpl) Create(ctx context.Context, exec *Execution) error {
	_, err := r.Collection.InsertOne(ctx, exec)
	if mongo.IsDuplicateKeyError(err) {
		return errs.Conflict("execution number %s already exists", exec.ExecutionNo)
	}
	return err
}

func (r *ExecutionRepositoryImpl) Get(ctx context.Context, id string) (*Execution, error) {
	filter, err := r.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	var exec Execution
	err = r.Collection.FindOne(ctx, filter).Decode(&exec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.NotFound("execution", id)
	}
	if err != nil {
		return nil, err
	}
	return &exec, nil
}

// ListByReport returns history newest first, without result payloads.
func (r *ExecutionRepositoryImpl) ListByReport(ctx context.Context, reportID string, page, limit int64) ([]Execution, int64, error) {
	query := bson.M{"report_id": reportID}
	if tenantID, ok := ctx.Value(common_models.TenantIDKey).(string); ok && tenantID != "" {
		query["tenant_id"] = tenantID
	}
	total, err := r.Collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit).
		SetProjection(bson.M{"result": 0})

	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	execs := []Execution{}
	if err := cursor.All(ctx, &execs); err != nil {
		return nil, 0, err
	}
	return execs, total, nil
}

func (r *ExecutionRepositoryImpl) MarkRunning(ctx context.Context, id string, at time.Time) (bool, error) {
	return r.compareAndSet(ctx, id, bson.M{"status": StatusPending}, bson.M{
		"status":     StatusRunning,
		"started_at": at,
	})
}

func (r *ExecutionRepositoryImpl) Finish(ctx context.Context, id string, from Status, outcome Outcome) (bool, error) {
	set := bson.M{
		"status":            outcome.Status,
		"finished_at":       outcome.FinishedAt,
		"execution_time_ms": outcome.ExecutionTimeMs,
		"result_count":      outcome.ResultCount,
	}
	if outcome.Result != nil {
		set["result"] = outcome.Result
	}
	if outcome.ErrorMessage != "" {
		set["error_message"] = outcome.ErrorMessage
		set["error_details"] = outcome.ErrorDetails
	}
	return r.compareAndSet(ctx, id, bson.M{"status": from}, set)
}

func (r *ExecutionRepositoryImpl) RequestCancel(ctx context.Context, id string) (bool, error) {
	return r.compareAndSet(ctx, id,
		bson.M{"status": bson.M{"$in": bson.A{StatusPending, StatusRunning}}},
		bson.M{"cancel_requested": true})
}

func (r *ExecutionRepositoryImpl) SetDispatch(ctx context.Context, id string, status, errMsg string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errs.NotFound("execution", id)
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{
		"dispatch_status": status,
		"dispatch_error":  errMsg,
	}})
	return err
}

// Delete removes a terminal execution. Live runs cannot be deleted.
func (r *ExecutionRepositoryImpl) Delete(ctx context.Context, id string) error {
	filter, err := r.byID(ctx, id)
	if err != nil {
		return err
	}
	filter["status"] = bson.M{"$in": bson.A{StatusCompleted, StatusFailed, StatusCancelled}}
	res, err := r.Collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return errs.InvalidState("", "execution %s is not terminal or does not exist", id)
	}
	return nil
}

func (r *ExecutionRepositoryImpl) compareAndSet(ctx context.Context, id string, cond bson.M, set bson.M) (bool, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return false, errs.NotFound("execution", id)
	}
	cond["_id"] = oid
	res, err := r.Collection.UpdateOne(ctx, cond, bson.M{"$set": set})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *ExecutionRepositoryImpl) byID(ctx context.Context, id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errs.NotFound("execution", id)
	}
	filter := bson.M{"_id": oid}
	if tenantID, ok := ctx.Value(common_models.TenantIDKey).(string); ok && tenantID != "" {
		filter["tenant_id"] = tenantID
	}
	return filter, nil
}
