package vectorstore

import (
	"context"
	"fmt"
	"regexp"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"github.com/pgvector/pgvector-go"

	"github.com/xxxsen/vrag/internal/model"
)

var tableNamePattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

type pgvectorConfig struct {
	DSN   string `json:"dsn"`
	Table string `json:"table"`
}

type pgvectorStore struct {
	db        *sqlx.DB
	table     string
	dimension int
}

type pgvectorRow struct {
	Embedding        pgvector.Vector `db:"embedding"`
	Description      string          `db:"description"`
	EncodedLocation  string          `db:"encoded_location"`
	OriginalLocation string          `db:"original_location"`
	Distance         float64         `db:"distance"`
}

func init() {
	Register("pgvector", createPgvectorStore)
}

func createPgvectorStore(args FactoryArgs) (Store, error) {
	cfg := &pgvectorConfig{}
	if err := decodeConfig(args.Data, cfg); err != nil {
		return nil, err
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("pgvector dsn is required")
	}
	if cfg.Table == "" {
		cfg.Table = "indexed_assets"
	}
	if !tableNamePattern.MatchString(cfg.Table) {
		return nil, fmt.Errorf("invalid pgvector table name: %q", cfg.Table)
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	return &pgvectorStore{db: db, table: cfg.Table, dimension: args.Dimension}, nil
}

func (s *pgvectorStore) Type() string {
	return "pgvector"
}

func (s *pgvectorStore) CreateIndex(ctx context.Context) error {
	stmts := []string{
		`CREATE EXTENSION IF NOT EXISTS vector`,
		fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
			id BIGSERIAL PRIMARY KEY,
			embedding vector(%d) NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			encoded_location TEXT NOT NULL,
			original_location TEXT NOT NULL
		)`, s.table, s.dimension),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s USING hnsw (embedding vector_cosine_ops)`, s.table, s.table),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("create pgvector schema: %w", err)
		}
	}
	return nil
}

func (s *pgvectorStore) IndexDocument(ctx context.Context, asset *model.IndexedAsset) error {
	if err := validateDocument(asset, s.dimension); err != nil {
		return err
	}
	query := fmt.Sprintf(`
		INSERT INTO %s (embedding, description, encoded_location, original_location)
		VALUES ($1, $2, $3, $4)
	`, s.table)
	_, err := s.db.ExecContext(ctx, query,
		pgvector.NewVector(asset.Embedding),
		asset.Description,
		asset.EncodedLocation,
		asset.OriginalLocation,
	)
	return err
}

func (s *pgvectorStore) Search(ctx context.Context, vector []float32, k int) (model.SearchResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive")
	}
	query := fmt.Sprintf(`
		SELECT embedding, description, encoded_location, original_location, embedding <=> $1 AS distance
		FROM %s
		ORDER BY embedding <=> $1
		LIMIT $2
	`, s.table)
	var rows []pgvectorRow
	if err := s.db.SelectContext(ctx, &rows, query, pgvector.NewVector(vector), k); err != nil {
		return nil, err
	}
	result := make(model.SearchResult, 0, len(rows))
	for _, row := range rows {
		result = append(result, model.SearchHit{
			Asset: &model.IndexedAsset{
				Embedding:        row.Embedding.Slice(),
				Description:      row.Description,
				EncodedLocation:  row.EncodedLocation,
				OriginalLocation: row.OriginalLocation,
			},
			Score: float32(1 - row.Distance),
		})
	}
	return result, nil
}
