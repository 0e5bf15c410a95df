package report

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go-erp/internal/common/errs"
	common_models "go-erp/internal/common/models"
	"go-erp/internal/database"
	"go-erp/internal/features/access"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type ReportRepository interface {
	Create(ctx context.Context, report *Report) error
	Get(ctx context.Context, id string) (*Report, error)
	List(ctx context.Context, filter ListFilter, vis Visibility) ([]Report, int64, error)
	// Update replaces the editable fields if the stored version still equals
	// expectedVersion, bumping the version. A stale version is a ConflictError.
	Update(ctx context.Context, report *Report, expectedVersion int64) error
	Delete(ctx context.Context, id string) error
	// UpdateStatus moves the report from one status to another atomically and
	// reports whether the stored status still matched from.
	UpdateStatus(ctx context.Context, id string, from, to Status, actor string) (bool, error)
	UpdateSchedule(ctx context.Context, id string, schedule *ScheduleConfig, actor string) error
	UpdatePermissions(ctx context.Context, id string, perms access.PermissionSet, actor string) error
	RecordExecution(ctx context.Context, id string, durationMs float64, at time.Time) error
	ListScheduled(ctx context.Context) ([]Report, error)
	MarkScheduleRun(ctx context.Context, id string, at time.Time) error
	EnsureIndexes(ctx context.Context) error
}

type ReportRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewReportRepository(db *database.MongodbDB) ReportRepository {
	return &ReportRepositoryImpl{
		Collection: db.DB.Collection("reports"),
	}
}

func (r *ReportRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys:    bson.D{{Key: "tenant_id", Value: 1}, {Key: "report_no", Value: 1}},
			Options: options.Index().SetUnique(true).SetName("tenant_report_no"),
		},
		{Keys: bson.D{{Key: "schedule_config.enabled", Value: 1}, {Key: "status", Value: 1}}},
		{Keys: bson.D{{Key: "created_by", Value: 1}}},
	})
	return err
}

func (r *ReportRepositoryImpl) Create(ctx context.Context, report *Report) error {
	if tenantID, ok := ctx.Value(common_models.TenantIDKey).(string); ok && report.TenantID == "" {
		report.TenantID = tenantID
	}
	_, err := r.Collection.InsertOne(ctx, report)
	if mongo.IsDuplicateKeyError(err) {
		return errs.Validation("report_no", "report number %q already exists", report.ReportNo)
	}
	return err
}

func (r *ReportRepositoryImpl) Get(ctx context.Context, id string) (*Report, error) {
	filter, err := r.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	var report Report
	err = r.Collection.FindOne(ctx, filter).Decode(&report)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.NotFound("report", id)
	}
	if err != nil {
		return nil, err
	}
	return &report, nil
}

func (r *ReportRepositoryImpl) List(ctx context.Context, filter ListFilter, vis Visibility) ([]Report, int64, error) {
	query := bson.M{}
	if tenantID, ok := ctx.Value(common_models.TenantIDKey).(string); ok && tenantID != "" {
		query["tenant_id"] = tenantID
	}
	if filter.Category != "" {
		query["category"] = filter.Category
	}
	if filter.Type != "" {
		query["type"] = filter.Type
	}
	if filter.Status != "" {
		query["status"] = filter.Status
	}

	var and bson.A
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"name": pattern},
			bson.M{"report_no": pattern},
			bson.M{"description": pattern},
		}})
	}
	if !vis.All {
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"created_by": vis.UserID},
			bson.M{"permissions.is_public": true},
			bson.M{"permissions.view_users": vis.UserID},
			bson.M{"permissions.edit_users": vis.UserID},
		}})
	}
	if len(and) > 0 {
		query["$and"] = and
	}

	total, err := r.Collection.CountDocuments(ctx, query)
	if err != nil {
		return nil, 0, err
	}

	page, limit := filter.Page, filter.Limit
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}
	opts := options.Find().
		SetSort(bson.D{{Key: "updated_at", Value: -1}, {Key: "_id", Value: -1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	reports := []Report{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, 0, err
	}
	return reports, total, nil
}

func (r *ReportRepositoryImpl) Update(ctx context.Context, report *Report, expectedVersion int64) error {
	filter, err := r.byID(ctx, report.ID.Hex())
	if err != nil {
		return err
	}
	filter["version"] = expectedVersion
	filter["status"] = bson.M{"$ne": StatusArchived}

	update := bson.M{
		"$set": bson.M{
			"name":        report.Name,
			"description": report.Description,
			"category":    report.Category,
			"type":        report.Type,
			"components":  report.Components,
			"updated_at":  report.UpdatedAt,
			"updated_by":  report.UpdatedBy,
		},
		"$inc": bson.M{"version": 1},
	}
	res, err := r.Collection.UpdateOne(ctx, filter, update)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.Conflict("report %s was modified concurrently", report.ID.Hex())
	}
	return nil
}

func (r *ReportRepositoryImpl) Delete(ctx context.Context, id string) error {
	filter, err := r.byID(ctx, id)
	if err != nil {
		return err
	}
	res, err := r.Collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return errs.NotFound("report", id)
	}
	return nil
}

func (r *ReportRepositoryImpl) UpdateStatus(ctx context.Context, id string, from, to Status, actor string) (bool, error) {
	filter, err := r.byID(ctx, id)
	if err != nil {
		return false, err
	}
	filter["status"] = from
	res, err := r.Collection.UpdateOne(ctx, filter, bson.M{
		"$set": bson.M{"status": to, "updated_at": time.Now().UTC(), "updated_by": actor},
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *ReportRepositoryImpl) UpdateSchedule(ctx context.Context, id string, schedule *ScheduleConfig, actor string) error {
	return r.setFields(ctx, id, bson.M{"schedule_config": schedule, "updated_at": time.Now().UTC(), "updated_by": actor})
}

func (r *ReportRepositoryImpl) UpdatePermissions(ctx context.Context, id string, perms access.PermissionSet, actor string) error {
	return r.setFields(ctx, id, bson.M{"permissions": perms, "updated_at": time.Now().UTC(), "updated_by": actor})
}

// RecordExecution folds one run into execute_count and avg_exec_time in a
// single pipeline update so concurrent runs never lose a sample.
func (r *ReportRepositoryImpl) RecordExecution(ctx context.Context, id string, durationMs float64, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errs.NotFound("report", id)
	}
	count := bson.D{{Key: "$ifNull", Value: bson.A{"$execute_count", 0}}}
	avg := bson.D{{Key: "$ifNull", Value: bson.A{"$avg_exec_time", 0}}}
	pipeline := mongo.Pipeline{
		{{Key: "$set", Value: bson.D{
			{Key: "avg_exec_time", Value: bson.D{{Key: "$divide", Value: bson.A{
				bson.D{{Key: "$add", Value: bson.A{bson.D{{Key: "$multiply", Value: bson.A{avg, count}}}, durationMs}}},
				bson.D{{Key: "$add", Value: bson.A{count, 1}}},
			}}}},
			{Key: "execute_count", Value: bson.D{{Key: "$add", Value: bson.A{count, 1}}}},
			{Key: "last_executed_at", Value: at},
		}}},
	}
	res, err := r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, pipeline)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("report", id)
	}
	return nil
}

// ListScheduled returns every active report with an enabled schedule across
// all tenants.
func (r *ReportRepositoryImpl) ListScheduled(ctx context.Context) ([]Report, error) {
	cursor, err := r.Collection.Find(ctx, bson.M{
		"schedule_config.enabled": true,
		"status":                  StatusActive,
	})
	if err != nil {
		return nil, err
	}
	defer cursor.Close(ctx)

	reports := []Report{}
	if err := cursor.All(ctx, &reports); err != nil {
		return nil, err
	}
	return reports, nil
}

func (r *ReportRepositoryImpl) MarkScheduleRun(ctx context.Context, id string, at time.Time) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errs.NotFound("report", id)
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$set": bson.M{"schedule_config.last_run_at": at}})
	return err
}

func (r *ReportRepositoryImpl) setFields(ctx context.Context, id string, fields bson.M) error {
	filter, err := r.byID(ctx, id)
	if err != nil {
		return err
	}
	res, err := r.Collection.UpdateOne(ctx, filter, bson.M{"$set": fields, "$inc": bson.M{"version": 1}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("report", id)
	}
	return nil
}

// byID scopes a lookup to the caller's tenant when one is on the context.
func (r *ReportRepositoryImpl) byID(ctx context.Context, id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errs.NotFound("report", id)
	}
	filter := bson.M{"_id": oid}
	if tenantID, ok := ctx.Value(common_models.TenantIDKey).(string); ok && tenantID != "" {
		filter["tenant_id"] = tenantID
	}
	return filter, nil
}
