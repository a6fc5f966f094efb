package qdrantdb

import (
	"context"
	"fmt"

	"pdf-rag/internal/config"
	"pdf-rag/internal/models"

	pb "github.com/qdrant/go-client/qdrant"
	"github.com/rs/zerolog/log"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

const (
	payloadChunkID = "chunk_id"
	payloadTitle   = "title"
	payloadContent = "content"
)

// Store keeps chunk records as points of one Qdrant collection
type Store struct {
	conn        *grpc.ClientConn
	points      pb.PointsClient
	collections pb.CollectionsClient
	collection  string
	dimension   int
}

// NewStore creates a Qdrant-backed store. The connection is lazy.
func NewStore(cfg config.QdrantConfig, rag config.RAGConfig) (*Store, error) {
	addr := fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)
	conn, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant connect: %w", models.ErrStorage, err)
	}
	return &Store{
		conn:        conn,
		points:      pb.NewPointsClient(conn),
		collections: pb.NewCollectionsClient(conn),
		collection:  rag.Table,
		dimension:   rag.Dimension,
	}, nil
}

// CreateTable deletes the collection if it exists and creates an empty one
func (s *Store) CreateTable(ctx context.Context) error {
	exists, err := s.collections.CollectionExists(ctx, &pb.CollectionExistsRequest{CollectionName: s.collection})
	if err != nil {
		return fmt.Errorf("%w: qdrant collection exists: %w", models.ErrStorage, err)
	}
	if exists.GetResult().GetExists() {
		if _, err := s.collections.Delete(ctx, &pb.DeleteCollection{CollectionName: s.collection}); err != nil {
			return fmt.Errorf("%w: qdrant delete collection: %w", models.ErrStorage, err)
		}
	}
	if _, err := s.collections.Create(ctx, s.createRequest()); err != nil {
		return fmt.Errorf("%w: qdrant create collection: %w", models.ErrStorage, err)
	}
	log.Info().Str("table", s.collection).Msg("Collection created")
	return nil
}

func (s *Store) createRequest() *pb.CreateCollection {
	return &pb.CreateCollection{
		CollectionName: s.collection,
		VectorsConfig: &pb.VectorsConfig{Config: &pb.VectorsConfig_Params{Params: &pb.VectorParams{
			Size:     uint64(s.dimension),
			Distance: pb.Distance_Euclid,
		}}},
	}
}

// InsertChunks upserts every chunk and waits for the write to be applied
func (s *Store) InsertChunks(ctx context.Context, chunks []models.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}
	wait := true
	_, err := s.points.Upsert(ctx, &pb.UpsertPoints{
		CollectionName: s.collection,
		Wait:           &wait,
		Points:         toPoints(chunks),
	})
	if err != nil {
		return fmt.Errorf("%w: qdrant upsert: %w", models.ErrStorage, err)
	}
	return nil
}

// SimilaritySearch scores points with 1 - euclidean distance. Qdrant breaks
// ties arbitrarily, so the limit is widened until the k-th score is not tied
// with the last fetched point, then the rows are ranked and cut to k.
func (s *Store) SimilaritySearch(ctx context.Context, vector []float32, k int) ([]models.SearchRow, error) {
	if k <= 0 {
		return []models.SearchRow{}, nil
	}
	limit := uint64(k) * 2
	for {
		resp, err := s.points.Search(ctx, &pb.SearchPoints{
			CollectionName: s.collection,
			Vector:         vector,
			Limit:          limit,
			WithPayload:    &pb.WithPayloadSelector{SelectorOptions: &pb.WithPayloadSelector_Enable{Enable: true}},
		})
		if err != nil {
			return nil, fmt.Errorf("%w: qdrant search: %w", models.ErrStorage, err)
		}
		rows := fromScoredPoints(resp.GetResult())
		models.RankRows(rows)
		if !tiedAtCutoff(rows, k, limit) {
			return rows[:min(k, len(rows))], nil
		}
		limit *= 2
	}
}

// tiedAtCutoff reports whether points past limit could still tie with the
// k-th row. rows must be ranked.
func tiedAtCutoff(rows []models.SearchRow, k int, limit uint64) bool {
	if uint64(len(rows)) < limit || len(rows) <= k {
		return false
	}
	return rows[len(rows)-1].Score == rows[k-1].Score
}

func (s *Store) Close() error {
	return s.conn.Close()
}

func toPoints(chunks []models.Chunk) []*pb.PointStruct {
	points := make([]*pb.PointStruct, len(chunks))
	for i, c := range chunks {
		points[i] = &pb.PointStruct{
			Id:      &pb.PointId{PointIdOptions: &pb.PointId_Uuid{Uuid: c.ChunkID}},
			Vectors: &pb.Vectors{VectorsOptions: &pb.Vectors_Vector{Vector: &pb.Vector{Data: c.Embedding}}},
			Payload: map[string]*pb.Value{
				payloadChunkID: stringValue(c.ChunkID),
				payloadTitle:   stringValue(c.Title),
				payloadContent: stringValue(c.Content),
			},
		}
	}
	return points
}

// Euclid scores come back as distances
func fromScoredPoints(points []*pb.ScoredPoint) []models.SearchRow {
	rows := make([]models.SearchRow, len(points))
	for i, pt := range points {
		payload := pt.GetPayload()
		rows[i] = models.SearchRow{
			ChunkID: payload[payloadChunkID].GetStringValue(),
			Title:   payload[payloadTitle].GetStringValue(),
			Content: payload[payloadContent].GetStringValue(),
			Score:   1 - float64(pt.GetScore()),
		}
	}
	return rows
}

func stringValue(s string) *pb.Value {
	return &pb.Value{Kind: &pb.Value_StringValue{StringValue: s}}
}
