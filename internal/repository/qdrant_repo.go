package repository

import (
	"context"
	"crypto/tls"
	"fmt"
	"strconv"
	"strings"

	"github.com/google/uuid"
	pb "github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	defaultVectorDimension = 1024
	payloadProjectID       = "project_id"
)

// QdrantConnectionConfig holds configuration for Qdrant connection
type QdrantConnectionConfig struct {
	Host            string
	Port            int
	Collection      string
	APIKey          string // enables TLS
	UseTLS          bool
	VectorDimension int
}

func apiKeyInterceptor(apiKey string) grpc.UnaryClientInterceptor {
	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		ctx = metadata.AppendToOutgoingContext(ctx, "api-key", apiKey)
		return invoker(ctx, method, req, reply, cc, opts...)
	}
}

// QdrantRepository stores one embedding per project in a Qdrant collection.
type QdrantRepository struct {
	addr            string
	conn            *grpc.ClientConn
	pointsClient    pb.PointsClient
	collectClient   pb.CollectionsClient
	collectionName  string
	vectorDimension int
}

// NewQdrantRepository creates a new QdrantRepository.
// Local Qdrant is dialed insecurely; an API key or UseTLS switches to TLS.
func NewQdrantRepository(cfg *QdrantConnectionConfig) (*QdrantRepository, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	vectorDimension := cfg.VectorDimension
	if vectorDimension <= 0 {
		vectorDimension = defaultVectorDimension
	}

	var opts []grpc.DialOption
	if cfg.UseTLS || cfg.APIKey != "" {
		creds := credentials.NewTLS(&tls.Config{MinVersion: tls.VersionTLS13})
		opts = append(opts, grpc.WithTransportCredentials(creds))
		if cfg.APIKey != "" {
			opts = append(opts, grpc.WithUnaryInterceptor(apiKeyInterceptor(cfg.APIKey)))
		}
	} else {
		opts = append(opts, grpc.WithTransportCredentials(insecure.NewCredentials()))
	}

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	return &QdrantRepository{
		addr:            addr,
		conn:            conn,
		pointsClient:    pb.NewPointsClient(conn),
		collectClient:   pb.NewCollectionsClient(conn),
		collectionName:  cfg.Collection,
		vectorDimension: vectorDimension,
	}, nil
}

// Close closes the gRPC connection
func (r *QdrantRepository) Close() error {
	return r.conn.Close()
}

// CollectionName returns the configured collection.
func (r *QdrantRepository) CollectionName() string {
	return r.collectionName
}

// Location returns the server address and collection, for stats output.
func (r *QdrantRepository) Location() string {
	return "qdrant://" + r.addr + "/" + r.collectionName
}

// EnsureCollection creates the collection if it doesn't exist, checks the
// vector size of an existing one and makes sure project_id is indexed.
func (r *QdrantRepository) EnsureCollection(ctx context.Context) error {
	info, err := r.collectClient.Get(ctx, &pb.GetCollectionInfoRequest{
		CollectionName: r.collectionName,
	})
	switch {
	case err == nil:
		result := info.GetResult()
		if size, ok := collectionVectorSize(result); ok && size != uint64(r.vectorDimension) {
			return fmt.Errorf("collection %s has vector size %d, expected %d", r.collectionName, size, r.vectorDimension)
		}
		if _, ok := result.GetPayloadSchema()[payloadProjectID]; ok {
			return nil
		}
	case status.Code(err) == codes.NotFound:
		if err := r.createCollection(ctx); err != nil {
			return err
		}
	default:
		return fmt.Errorf("failed to get collection %s: %w", r.collectionName, err)
	}

	// project_id is the skip-if-exists key.
	fieldType := pb.FieldType_FieldTypeInteger
	_, err = r.pointsClient.CreateFieldIndex(ctx, &pb.CreateFieldIndexCollection{
		CollectionName: r.collectionName,
		FieldName:      payloadProjectID,
		FieldType:      &fieldType,
	})
	if err != nil {
		return fmt.Errorf("failed to index project_id: %w", err)
	}
	return nil
}

func (r *QdrantRepository) createCollection(ctx context.Context) error {
	_, err := r.collectClient.Create(ctx, &pb.CreateCollection{
		CollectionName: r.collectionName,
		VectorsConfig: &pb.VectorsConfig{
			Config: &pb.VectorsConfig_Params{
				Params: &pb.VectorParams{
					Size:     uint64(r.vectorDimension),
					Distance: pb.Distance_Cosine,
				},
			},
		},
		HnswConfig: &pb.HnswConfigDiff{
			M:                 optionalUint64(16),
			EfConstruct:       optionalUint64(128),
			FullScanThreshold: optionalUint64(10000),
		},
	})
	if err != nil {
		return fmt.Errorf("failed to create collection: %w", err)
	}
	return nil
}

func optionalUint64(v uint64) *uint64 {
	return &v
}

func collectionVectorSize(info *pb.CollectionInfo) (uint64, bool) {
	vectors := info.GetConfig().GetParams().GetVectorsConfig()
	if vectors == nil {
		return 0, false
	}
	if single := vectors.GetParams(); single != nil && single.GetSize() > 0 {
		return single.GetSize(), true
	}
	for _, params := range vectors.GetParamsMap().GetMap() {
		if size := params.GetSize(); size > 0 {
			return size, true
		}
	}
	return 0, false
}

// VectorID is the logical identifier of a project's embedding.
func VectorID(projectID int64) string {
	return "project_" + strconv.FormatInt(projectID, 10)
}

// PointID maps a project to its Qdrant point UUID. The mapping is deterministic,
// so re-upserting a project overwrites its point.
func PointID(projectID int64) string {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte(VectorID(projectID))).String()
}

// ProjectPayload is the metadata stored with each project vector.
type ProjectPayload struct {
	ProjectID int64
	Name      string
	FullName  string
	Language  string
	Stars     int
	Forks     int
	Topics    []string
	CreatedAt string
	UpdatedAt string
	Document  string
}

// ProjectPoint is one embedding ready to be written.
type ProjectPoint struct {
	Vector  []float32
	Payload ProjectPayload
}

// Upsert writes points, replacing any existing point for the same project.
func (r *QdrantRepository) Upsert(ctx context.Context, points []ProjectPoint) error {
	if len(points) == 0 {
		return nil
	}

	pbPoints := make([]*pb.PointStruct, 0, len(points))
	for _, pt := range points {
		pbPoints = append(pbPoints, &pb.PointStruct{
			Id: &pb.PointId{
				PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(pt.Payload.ProjectID)},
			},
			Vectors: &pb.Vectors{
				VectorsOptions: &pb.Vectors_Vector{
					Vector: &pb.Vector{Data: pt.Vector},
				},
			},
			Payload: payloadToValues(pt.Payload),
		})
	}

	wait := true
	_, err := r.pointsClient.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: r.collectionName,
		Wait:           &wait,
		Points:         pbPoints,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert points: %w", err)
	}
	return nil
}

func payloadToValues(p ProjectPayload) map[string]*pb.Value {
	str := func(s string) *pb.Value { return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}} }
	num := func(n int64) *pb.Value { return &pb.Value{Kind: &pb.Value_IntegerValue{IntegerValue: n}} }
	return map[string]*pb.Value{
		payloadProjectID: num(p.ProjectID),
		"vector_id":      str(VectorID(p.ProjectID)),
		"name":           str(p.Name),
		"full_name":      str(p.FullName),
		"language":       str(p.Language),
		"stars":          num(int64(p.Stars)),
		"forks":          num(int64(p.Forks)),
		"topics":         str(strings.Join(p.Topics, ",")),
		"created_at":     str(p.CreatedAt),
		"updated_at":     str(p.UpdatedAt),
		"document":       str(p.Document),
	}
}

func parsePayload(payload map[string]*pb.Value) ProjectPayload {
	p := ProjectPayload{
		ProjectID: payload[payloadProjectID].GetIntegerValue(),
		Name:      payload["name"].GetStringValue(),
		FullName:  payload["full_name"].GetStringValue(),
		Language:  payload["language"].GetStringValue(),
		Stars:     int(payload["stars"].GetIntegerValue()),
		Forks:     int(payload["forks"].GetIntegerValue()),
		CreatedAt: payload["created_at"].GetStringValue(),
		UpdatedAt: payload["updated_at"].GetStringValue(),
		Document:  payload["document"].GetStringValue(),
	}
	p.Topics = SplitTopics(payload["topics"].GetStringValue())
	return p
}

// SplitTopics reverses the comma-joined topics stored in vector metadata.
func SplitTopics(joined string) []string {
	if joined == "" {
		return []string{}
	}
	parts := strings.Split(joined, ",")
	out := make([]string, 0, len(parts))
	for _, t := range parts {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	return out
}

func projectIDFilter(projectID int64) *pb.Filter {
	return &pb.Filter{
		Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   payloadProjectID,
					Match: &pb.Match{MatchValue: &pb.Match_Integer{Integer: projectID}},
				},
			},
		}},
	}
}

func languageFilter(language string) *pb.Filter {
	if language == "" {
		return nil
	}
	return &pb.Filter{
		Must: []*pb.Condition{{
			ConditionOneOf: &pb.Condition_Field{
				Field: &pb.FieldCondition{
					Key:   "language",
					Match: &pb.Match{MatchValue: &pb.Match_Keyword{Keyword: language}},
				},
			},
		}},
	}
}

// CountByProjectID counts points whose metadata carries the given project id.
func (r *QdrantRepository) CountByProjectID(ctx context.Context, projectID int64) (uint64, error) {
	return r.count(ctx, projectIDFilter(projectID))
}

// Count returns the number of points in the collection.
func (r *QdrantRepository) Count(ctx context.Context) (uint64, error) {
	return r.count(ctx, nil)
}

func (r *QdrantRepository) count(ctx context.Context, filter *pb.Filter) (uint64, error) {
	exact := true
	resp, err := r.pointsClient.Count(ctx, &pb.CountPoints{
		CollectionName: r.collectionName,
		Filter:         filter,
		Exact:          &exact,
	})
	if err != nil {
		return 0, fmt.Errorf("failed to count points: %w", err)
	}
	return resp.GetResult().GetCount(), nil
}

// SearchResult is one scored hit. Score is the cosine similarity Qdrant reports.
type SearchResult struct {
	ID      string
	Score   float32
	Payload ProjectPayload
}

// Search returns the topK nearest points, optionally restricted to one language.
func (r *QdrantRepository) Search(ctx context.Context, vector []float32, topK int, language string) ([]SearchResult, error) {
	resp, err := r.pointsClient.Search(ctx, &pb.SearchPoints{
		CollectionName: r.collectionName,
		Vector:         vector,
		Limit:          uint64(topK),
		Filter:         languageFilter(language),
		WithPayload: &pb.WithPayloadSelector{
			SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true},
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}

	results := make([]SearchResult, len(resp.Result))
	for i, scored := range resp.Result {
		results[i] = SearchResult{
			ID:      scored.Id.GetUuid(),
			Score:   scored.Score,
			Payload: parsePayload(scored.Payload),
		}
	}
	return results, nil
}

// Delete removes the point of one project.
func (r *QdrantRepository) Delete(ctx context.Context, projectID int64) error {
	_, err := r.pointsClient.Delete(ctx, &pb.DeletePoints{
		CollectionName: r.collectionName,
		Points: &pb.PointsSelector{
			PointsSelectorOneOf: &pb.PointsSelector_Points{
				Points: &pb.PointsIdsList{
					Ids: []*pb.PointId{
						{PointIdOptions: &pb.PointId_Uuid{Uuid: PointID(projectID)}},
					},
				},
			},
		},
	})
	if err != nil {
		return fmt.Errorf("failed to delete point: %w", err)
	}
	return nil
}
