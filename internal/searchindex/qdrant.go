package searchindex

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/qdrant/go-client/qdrant"
)

// QdrantConfig holds connection settings for a Qdrant server.
type QdrantConfig struct {
	Host   string
	Port   int
	APIKey string
	UseTLS bool
}

// Qdrant stores each index as a collection with a named content vector.
type Qdrant struct {
	client *qdrant.Client
	schema Schema
	logger *slog.Logger
}

// NewQdrant connects to Qdrant and fails fast if the server is unreachable.
func NewQdrant(ctx context.Context, cfg QdrantConfig, schema Schema, logger *slog.Logger) (*Qdrant, error) {
	if logger == nil {
		logger = slog.Default()
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:   cfg.Host,
		Port:   cfg.Port,
		APIKey: cfg.APIKey,
		UseTLS: cfg.UseTLS,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create qdrant client: %w", err)
	}

	q := &Qdrant{
		client: client,
		schema: schema,
		logger: logger.With("component", "qdrant"),
	}

	if err := q.healthCheckWithRetry(ctx); err != nil {
		client.Close()
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}

	return q, nil
}

func newBackOff() *backoff.ExponentialBackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = 500 * time.Millisecond
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 30 * time.Second
	return b
}

// healthCheckWithRetry performs health check with exponential backoff.
func (q *Qdrant) healthCheckWithRetry(ctx context.Context) error {
	return backoff.Retry(func() error {
		return q.Health(ctx)
	}, backoff.WithContext(newBackOff(), ctx))
}

// Health performs a single health check against Qdrant.
func (q *Qdrant) Health(ctx context.Context) error {
	result, err := q.client.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	if result == nil || result.Title == "" {
		return fmt.Errorf("health check returned invalid response")
	}
	return nil
}

// CreateIndex drops the collection if present and recreates it per schema.
func (q *Qdrant) CreateIndex(ctx context.Context, name string) error {
	if err := ValidateIndexName(name); err != nil {
		return err
	}

	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if exists {
		if err := q.client.DeleteCollection(ctx, name); err != nil {
			return fmt.Errorf("failed to delete collection %s: %w", name, err)
		}
		q.logger.Info("deleted existing index", "index", name)
	}

	algorithm := q.schema.Algorithm()
	err = q.client.CreateCollection(ctx, &qdrant.CreateCollection{
		CollectionName: name,
		VectorsConfig: qdrant.NewVectorsConfigMap(map[string]*qdrant.VectorParams{
			FieldContentVector: {
				Size:     uint64(q.schema.Dimensions()),
				Distance: qdrant.Distance_Cosine,
				HnswConfig: &qdrant.HnswConfigDiff{
					M:           qdrant.PtrOf(uint64(algorithm.M)),
					EfConstruct: qdrant.PtrOf(uint64(algorithm.EfConstruction)),
				},
			},
		}),
	})
	if err != nil {
		return fmt.Errorf("failed to create collection %s: %w", name, err)
	}

	if err := q.createPayloadIndexes(ctx, name); err != nil {
		return fmt.Errorf("failed to create payload indexes: %w", err)
	}

	q.logger.Info("created index", "index", name, "dimensions", q.schema.Dimensions())
	return nil
}

// createPayloadIndexes maps filterable fields to keyword indexes and
// searchable text fields to full-text indexes.
func (q *Qdrant) createPayloadIndexes(ctx context.Context, collection string) error {
	for _, field := range q.schema.Fields {
		if field.Type != FieldTypeString {
			continue
		}

		var fieldType *qdrant.FieldType
		switch {
		case field.Searchable:
			fieldType = qdrant.FieldType_FieldTypeText.Enum()
		case field.Filterable:
			fieldType = qdrant.FieldType_FieldTypeKeyword.Enum()
		default:
			continue
		}

		_, err := q.client.CreateFieldIndex(ctx, &qdrant.CreateFieldIndexCollection{
			CollectionName: collection,
			FieldName:      field.Name,
			FieldType:      fieldType,
		})
		if err != nil {
			return fmt.Errorf("failed to create index for field %s: %w", field.Name, err)
		}
	}
	return nil
}

// upsertWithRetry performs upsert operation with exponential backoff retry.
func (q *Qdrant) upsertWithRetry(ctx context.Context, collection string, points []*qdrant.PointStruct) error {
	operation := func() error {
		_, err := q.client.Upsert(ctx, &qdrant.UpsertPoints{
			CollectionName: collection,
			Wait:           qdrant.PtrOf(true),
			Points:         points,
		})
		return err
	}
	return backoff.Retry(operation, backoff.WithContext(newBackOff(), ctx))
}

// Ingest validates every record and upserts the valid ones in one request.
func (q *Qdrant) Ingest(ctx context.Context, name string, records []Record) ([]Result, error) {
	results := make([]Result, len(records))
	points := make([]*qdrant.PointStruct, 0, len(records))

	for i, r := range records {
		results[i] = Result{ID: r.ID}
		if err := validateRecord(q.schema, r); err != nil {
			results[i].Reason = err.Error()
			continue
		}
		results[i].Succeeded = true

		points = append(points, &qdrant.PointStruct{
			Id: qdrant.NewIDUUID(r.ID),
			Vectors: qdrant.NewVectorsMap(map[string]*qdrant.Vector{
				FieldContentVector: qdrant.NewVector(r.ContentVector...),
			}),
			Payload: qdrant.NewValueMap(map[string]any{
				FieldID:       r.ID,
				FieldContent:  r.Content,
				FieldMetaJSON: r.MetaJSON,
				FieldFilepath: r.Filepath,
				FieldTitle:    r.Title,
			}),
		})
	}

	if len(points) == 0 {
		return results, nil
	}

	if err := q.upsertWithRetry(ctx, name, points); err != nil {
		return nil, fmt.Errorf("failed to upsert %d records: %w", len(points), err)
	}
	return results, nil
}

// Search runs a vector query over the content vector, optionally restricted
// to records whose content matches query.Text.
func (q *Qdrant) Search(ctx context.Context, name string, query Query) ([]Hit, error) {
	if want := q.schema.Dimensions(); len(query.Vector) != want {
		return nil, fmt.Errorf("%w: query has %d dimensions, expected %d",
			ErrDimensionMismatch, len(query.Vector), want)
	}

	top := query.Top
	if top <= 0 {
		top = DefaultTop
	}

	var filter *qdrant.Filter
	if query.Text != "" {
		filter = &qdrant.Filter{
			Must: []*qdrant.Condition{qdrant.NewMatchText(FieldContent, query.Text)},
		}
	}

	vectorName := FieldContentVector
	results, err := q.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: name,
		Query:          qdrant.NewQuery(query.Vector...),
		Using:          &vectorName,
		Filter:         filter,
		Limit:          qdrant.PtrOf(uint64(top)),
		Params:         &qdrant.SearchParams{HnswEf: qdrant.PtrOf(uint64(q.schema.Algorithm().EfSearch))},
		WithPayload:    qdrant.NewWithPayload(true),
		WithVectors:    qdrant.NewWithVectors(false),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search index %s: %w", name, err)
	}

	hits := make([]Hit, 0, len(results))
	for _, result := range results {
		payload := result.Payload
		hits = append(hits, Hit{
			ID:       result.Id.GetUuid(),
			Score:    float64(result.Score),
			Title:    payload[FieldTitle].GetStringValue(),
			Content:  payload[FieldContent].GetStringValue(),
			Filepath: payload[FieldFilepath].GetStringValue(),
			MetaJSON: payload[FieldMetaJSON].GetStringValue(),
		})
	}
	return hits, nil
}

// Stats returns the number of records in the index.
func (q *Qdrant) Stats(ctx context.Context, name string) (*Stats, error) {
	exists, err := q.client.CollectionExists(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to check collection %s: %w", name, err)
	}
	if !exists {
		return nil, fmt.Errorf("%w: %s", ErrIndexNotFound, name)
	}

	collection, err := q.client.GetCollectionInfo(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get collection: %w", err)
	}
	return &Stats{Name: name, RecordCount: collection.GetPointsCount()}, nil
}

// Close closes the Qdrant client connection.
func (q *Qdrant) Close() error {
	if q.client != nil {
		return q.client.Close()
	}
	return nil
}
