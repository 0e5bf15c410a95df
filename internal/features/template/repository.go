package template

import (
	"context"
	"errors"
	"regexp"
	"time"

	"go-erp/internal/common/errs"
	common_models "go-erp/internal/common/models"
	"go-erp/internal/database"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type TemplateRepository interface {
	Create(ctx context.Context, tpl *Template) error
	Get(ctx context.Context, id string) (*Template, error)
	List(ctx context.Context, filter ListFilter, vis Visibility) ([]Template, int64, error)
	Update(ctx context.Context, tpl *Template) error
	Delete(ctx context.Context, id string) error
	IncrementUsage(ctx context.Context, id string) error
	// UpsertSystem inserts or refreshes a system template keyed by name. The
	// usage counter of an existing template is preserved.
	UpsertSystem(ctx context.Context, tpl *Template) (bool, error)
	EnsureIndexes(ctx context.Context) error
}

type TemplateRepositoryImpl struct {
	Collection *mongo.Collection
}

func NewTemplateRepository(db *database.MongodbDB) TemplateRepository {
	return &TemplateRepositoryImpl{
		Collection: db.DB.Collection("report_templates"),
	}
}

func (r *TemplateRepositoryImpl) EnsureIndexes(ctx context.Context) error {
	_, err := r.Collection.Indexes().CreateMany(ctx, []mongo.IndexModel{
		{Keys: bson.D{{Key: "is_system", Value: 1}, {Key: "name", Value: 1}}},
		{Keys: bson.D{{Key: "tenant_id", Value: 1}, {Key: "category", Value: 1}}},
		{Keys: bson.D{{Key: "tags", Value: 1}}},
	})
	return err
}

func (r *TemplateRepositoryImpl) Create(ctx context.Context, tpl *Template) error {
	if tenantID, ok := ctx.Value(common_models.TenantIDKey).(string); ok && tpl.TenantID == "" && !tpl.IsSystem {
		tpl.TenantID = tenantID
	}
	_, err := r.Collection.InsertOne(ctx, tpl)
	return err
}

func (r *TemplateRepositoryImpl) Get(ctx context.Context, id string) (*Template, error) {
	filter, err := r.byID(ctx, id)
	if err != nil {
		return nil, err
	}
	var tpl Template
	err = r.Collection.FindOne(ctx, filter).Decode(&tpl)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, errs.NotFound("template", id)
	}
	if err != nil {
		return nil, err
	}
	return &tpl, nil
}

func (r *TemplateRepositoryImpl) List(ctx context.Context, filter ListFilter, vis Visibility) ([]Template, int64, error) {
	and := bson.A{}
	if scope := tenantScope(ctx); scope != nil {
		and = append(and, scope)
	}
	if filter.Category != "" {
		and = append(and, bson.M{"category": filter.Category})
	}
	if filter.Type != "" {
		and = append(and, bson.M{"type": filter.Type})
	}
	if filter.Tag != "" {
		and = append(and, bson.M{"tags": filter.Tag})
	}
	if filter.Search != "" {
		pattern := primitive.Regex{Pattern: regexp.QuoteMeta(filter.Search), Options: "i"}
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"name": pattern},
			bson.M{"name_en": pattern},
			bson.M{"description": pattern},
		}})
	}
	if !vis.All {
		and = append(and, bson.M{"$or": bson.A{
			bson.M{"is_public": true},
			bson.M{"is_system": true},
			bson.M{"created_by": vis.UserID},
		}})
	}
	query := bson.M{}
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
		SetSort(bson.D{{Key: "is_system", Value: -1}, {Key: "usage_count", Value: -1}, {Key: "name", Value: 1}}).
		SetSkip((page - 1) * limit).
		SetLimit(limit)

	cursor, err := r.Collection.Find(ctx, query, opts)
	if err != nil {
		return nil, 0, err
	}
	defer cursor.Close(ctx)

	templates := []Template{}
	if err := cursor.All(ctx, &templates); err != nil {
		return nil, 0, err
	}
	return templates, total, nil
}

func (r *TemplateRepositoryImpl) Update(ctx context.Context, tpl *Template) error {
	filter, err := r.byID(ctx, tpl.ID.Hex())
	if err != nil {
		return err
	}
	res, err := r.Collection.UpdateOne(ctx, filter, bson.M{"$set": bson.M{
		"name":        tpl.Name,
		"name_en":     tpl.NameEn,
		"description": tpl.Description,
		"category":    tpl.Category,
		"type":        tpl.Type,
		"tags":        tpl.Tags,
		"is_public":   tpl.IsPublic,
		"components":  tpl.Components,
		"updated_at":  tpl.UpdatedAt,
	}})
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return errs.NotFound("template", tpl.ID.Hex())
	}
	return nil
}

func (r *TemplateRepositoryImpl) Delete(ctx context.Context, id string) error {
	filter, err := r.byID(ctx, id)
	if err != nil {
		return err
	}
	res, err := r.Collection.DeleteOne(ctx, filter)
	if err != nil {
		return err
	}
	if res.DeletedCount == 0 {
		return errs.NotFound("template", id)
	}
	return nil
}

func (r *TemplateRepositoryImpl) IncrementUsage(ctx context.Context, id string) error {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return errs.NotFound("template", id)
	}
	_, err = r.Collection.UpdateOne(ctx, bson.M{"_id": oid}, bson.M{"$inc": bson.M{"usage_count": 1}})
	return err
}

func (r *TemplateRepositoryImpl) UpsertSystem(ctx context.Context, tpl *Template) (bool, error) {
	now := time.Now().UTC()
	res, err := r.Collection.UpdateOne(ctx,
		bson.M{"is_system": true, "name": tpl.Name},
		bson.M{
			"$set": bson.M{
				"name_en":     tpl.NameEn,
				"description": tpl.Description,
				"category":    tpl.Category,
				"type":        tpl.Type,
				"tags":        tpl.Tags,
				"is_public":   true,
				"components":  tpl.Components,
				"updated_at":  now,
			},
			"$setOnInsert": bson.M{
				"usage_count": int64(0),
				"created_by":  tpl.CreatedBy,
				"created_at":  now,
			},
		},
		options.Update().SetUpsert(true))
	if err != nil {
		return false, err
	}
	return res.UpsertedCount > 0, nil
}

// tenantScope restricts queries to the caller's tenant plus shared
// templates stored without one.
func tenantScope(ctx context.Context) bson.M {
	tenantID, ok := ctx.Value(common_models.TenantIDKey).(string)
	if !ok || tenantID == "" {
		return nil
	}
	return bson.M{"tenant_id": bson.M{"$in": bson.A{tenantID, "", nil}}}
}

func (r *TemplateRepositoryImpl) byID(ctx context.Context, id string) (bson.M, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, errs.NotFound("template", id)
	}
	filter := bson.M{"_id": oid}
	if scope := tenantScope(ctx); scope != nil {
		filter["tenant_id"] = scope["tenant_id"]
	}
	return filter, nil
}
