package connectors

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MongoConnector reads business data from Mongo collections. Module names
// map to collection names.
type MongoConnector struct {
	db     *mongo.Database
	client *mongo.Client // owned only when created through Connect
}

// NewMongoConnector wraps an already connected database.
func NewMongoConnector(db *mongo.Database) *MongoConnector {
	return &MongoConnector{db: db}
}

// Connect dials a separate Mongo deployment described by config
// ("uri", "database").
func (c *MongoConnector) Connect(ctx context.Context, config map[string]interface{}) error {
	if c.db != nil {
		return nil
	}
	uri, _ := config["uri"].(string)
	database, _ := config["database"].(string)
	if uri == "" || database == "" {
		return fmt.Errorf("missing required connection parameters")
	}
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := client.Ping(ctx, nil); err != nil {
		_ = client.Disconnect(ctx)
		return fmt.Errorf("failed to ping mongodb: %w", err)
	}
	c.client = client
	c.db = client.Database(database)
	return nil
}

// Disconnect closes a client opened by Connect. Shared databases are left alone.
func (c *MongoConnector) Disconnect(ctx context.Context) error {
	if c.client != nil {
		return c.client.Disconnect(ctx)
	}
	return nil
}

func (c *MongoConnector) Query(ctx context.Context, req QueryRequest) (*QueryResponse, error) {
	if c.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	if !ValidIdentifier(req.Module) {
		return nil, fmt.Errorf("invalid module name %q", req.Module)
	}
	filter, err := ToBSON(req.Filters)
	if err != nil {
		return nil, err
	}
	coll := c.db.Collection(req.Module)

	opts := options.Find()
	if len(req.Sort) > 0 {
		sortDoc := bson.D{}
		for _, s := range req.Sort {
			if !ValidIdentifier(s.Field) {
				return nil, fmt.Errorf("invalid sort field %q", s.Field)
			}
			dir := 1
			if s.Desc {
				dir = -1
			}
			sortDoc = append(sortDoc, bson.E{Key: s.Field, Value: dir})
		}
		opts.SetSort(sortDoc)
	} else {
		opts.SetSort(bson.D{{Key: "_id", Value: 1}})
	}

	// Aggregations need every matching row; limit applies to the groups.
	if req.Aggregation == nil {
		if len(req.Fields) > 0 {
			projection := bson.M{}
			for _, f := range req.Fields {
				projection[f] = 1
			}
			opts.SetProjection(projection)
		}
		if req.Limit > 0 {
			opts.SetLimit(req.Limit)
		}
		if req.Offset > 0 {
			opts.SetSkip(req.Offset)
		}
	}

	cursor, err := coll.Find(ctx, filter, opts)
	if err != nil {
		return nil, fmt.Errorf("failed to query %s: %w", req.Module, err)
	}
	defer cursor.Close(ctx)

	var docs []bson.M
	if err := cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", req.Module, err)
	}
	records := make([]map[string]interface{}, len(docs))
	for i, doc := range docs {
		records[i] = normalizeDocument(doc)
	}

	var total int64
	if req.Aggregation != nil {
		records = Aggregate(records, req.Aggregation)
		total = int64(len(records))
		records = page(records, req.Offset, req.Limit)
	} else {
		total, err = coll.CountDocuments(ctx, filter)
		if err != nil {
			return nil, fmt.Errorf("failed to count %s: %w", req.Module, err)
		}
		if len(req.Fields) > 0 {
			records = selectFields(records, req.Fields)
		}
	}

	return &QueryResponse{
		Data:       records,
		TotalCount: total,
		Timestamp:  time.Now().UTC(),
	}, nil
}

// GetSchema samples one document and reports its top-level fields.
func (c *MongoConnector) GetSchema(ctx context.Context, module string) (*SchemaInfo, error) {
	if c.db == nil {
		return nil, fmt.Errorf("database connection not established")
	}
	var doc bson.M
	err := c.db.Collection(module).FindOne(ctx, bson.M{}).Decode(&doc)
	if err != nil && err != mongo.ErrNoDocuments {
		return nil, fmt.Errorf("failed to get schema: %w", err)
	}
	schema := &SchemaInfo{Module: module, Fields: []FieldInfo{}}
	for name, val := range normalizeDocument(doc) {
		schema.Fields = append(schema.Fields, FieldInfo{
			Name:         name,
			Type:         fmt.Sprintf("%T", val),
			Label:        name,
			IsPrimaryKey: name == "_id",
		})
	}
	return schema, nil
}

func (c *MongoConnector) TestConnection(ctx context.Context) error {
	if c.db == nil {
		return fmt.Errorf("database connection not established")
	}
	return c.db.Client().Ping(ctx, nil)
}

func (c *MongoConnector) GetType() string {
	return TypeMongoDB
}

func page(records []map[string]interface{}, offset, limit int64) []map[string]interface{} {
	if offset >= int64(len(records)) {
		return []map[string]interface{}{}
	}
	records = records[offset:]
	if limit > 0 && limit < int64(len(records)) {
		records = records[:limit]
	}
	return records
}

// normalizeDocument converts driver types into plain Go values.
func normalizeDocument(doc bson.M) map[string]interface{} {
	out := make(map[string]interface{}, len(doc))
	for k, v := range doc {
		out[k] = NormalizeValue(v)
	}
	return out
}

// NormalizeValue converts driver types into plain Go values: documents
// become map[string]interface{} and arrays []interface{}, recursively.
func NormalizeValue(v interface{}) interface{} {
	switch val := v.(type) {
	case bson.M:
		return normalizeDocument(val)
	case map[string]interface{}:
		return normalizeDocument(val)
	case bson.D:
		out := make(map[string]interface{}, len(val))
		for _, e := range val {
			out[e.Key] = NormalizeValue(e.Value)
		}
		return out
	case bson.A:
		return normalizeList(val)
	case []interface{}:
		return normalizeList(val)
	case primitive.DateTime:
		return val.Time().UTC()
	case primitive.Decimal128:
		return val.String()
	case int32:
		return int64(val)
	default:
		return v
	}
}

func normalizeList(items []interface{}) []interface{} {
	out := make([]interface{}, len(items))
	for i, item := range items {
		out[i] = NormalizeValue(item)
	}
	return out
}
