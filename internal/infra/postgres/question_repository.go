package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v4/pgxpool"

	"sciquiz-service/internal/domain"
)

// QuestionRepository stores question bank records as JSONB, keyed by the
// quiz context columns so a whole context can be fetched in one query.
type QuestionRepository struct {
	pool *pgxpool.Pool
}

func NewQuestionRepository(pool *pgxpool.Pool) *QuestionRepository {
	return &QuestionRepository{pool: pool}
}

// Questions returns the raw records for a context, in insertion order.
func (r *QuestionRepository) Questions(ctx context.Context, qctx domain.QuizContext) ([]map[string]any, error) {
	rows, err := r.pool.Query(ctx,
		`SELECT data FROM questions WHERE class_id=$1 AND level=$2 AND topic_id=$3 ORDER BY id`,
		qctx.ClassID, qctx.Level, qctx.TopicID)
	if err != nil {
		return nil, fmt.Errorf("query questions: %w", err)
	}
	defer rows.Close()

	var records []map[string]any
	for rows.Next() {
		var raw []byte
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("scan question: %w", err)
		}
		var record map[string]any
		if err := json.Unmarshal(raw, &record); err != nil {
			return nil, fmt.Errorf("unmarshal question: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

// Add inserts one raw record under the context and returns its id.
func (r *QuestionRepository) Add(ctx context.Context, qctx domain.QuizContext, record map[string]any) (int64, error) {
	data, err := json.Marshal(record)
	if err != nil {
		return 0, fmt.Errorf("marshal question: %w", err)
	}
	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO questions (class_id, level, topic_id, data) VALUES ($1, $2, $3, $4) RETURNING id`,
		qctx.ClassID, qctx.Level, qctx.TopicID, data).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert question: %w", err)
	}
	return id, nil
}
