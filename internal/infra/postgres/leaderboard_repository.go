package postgres

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v4/pgxpool"

	"sciquiz-service/internal/domain"
	"sciquiz-service/internal/leaderboard"
)

// List sizes stay bounded no matter what the client asks for.
const (
	defaultListLimit = 50
	maxListLimit     = 200
)

// LeaderboardRepository persists finished attempts.
type LeaderboardRepository struct {
	pool *pgxpool.Pool
}

func NewLeaderboardRepository(pool *pgxpool.Pool) *LeaderboardRepository {
	return &LeaderboardRepository{pool: pool}
}

// Add inserts an entry and returns it with the server-assigned id and
// timestamp, which clients use to keep their local copies in sync.
func (r *LeaderboardRepository) Add(ctx context.Context, entry domain.LeaderboardEntry) (domain.LeaderboardEntry, error) {
	meta, err := json.Marshal(entry.Meta)
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("marshal meta: %w", err)
	}
	var id int64
	err = r.pool.QueryRow(ctx,
		`INSERT INTO leaderboard (name, score, total, class_id, level, topic, meta)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)
		 RETURNING id, created_at`,
		entry.Name, entry.Score, entry.Total, entry.ClassID, entry.Level, entry.Topic, meta,
	).Scan(&id, &entry.Date)
	if err != nil {
		return domain.LeaderboardEntry{}, fmt.Errorf("insert leaderboard entry: %w", err)
	}
	entry.ID = strconv.FormatInt(id, 10)
	entry.Origin = domain.OriginServer
	return entry, nil
}

// List returns entries matching the filters, best score first.
func (r *LeaderboardRepository) List(ctx context.Context, f leaderboard.Filters) ([]domain.LeaderboardEntry, error) {
	var (
		where []string
		args  []any
	)
	add := func(col, val string) {
		if val == "" {
			return
		}
		args = append(args, val)
		where = append(where, fmt.Sprintf("%s=$%d", col, len(args)))
	}
	add("class_id", f.ClassID)
	add("level", f.Level)
	add("topic", f.Topic)

	query := `SELECT id, name, score, total, class_id, level, topic, meta, created_at FROM leaderboard`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	orderCol := "score"
	if f.SortBy == "date" {
		orderCol = "created_at"
	}
	dir := "DESC"
	if strings.EqualFold(f.Order, "asc") {
		dir = "ASC"
	}
	if orderCol == "score" {
		query += fmt.Sprintf(" ORDER BY score %s, created_at DESC", dir)
	} else {
		query += fmt.Sprintf(" ORDER BY created_at %s", dir)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}
	args = append(args, limit)
	query += fmt.Sprintf(" LIMIT $%d", len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query leaderboard: %w", err)
	}
	defer rows.Close()

	var entries []domain.LeaderboardEntry
	for rows.Next() {
		var (
			id   int64
			meta []byte
			e    domain.LeaderboardEntry
		)
		if err := rows.Scan(&id, &e.Name, &e.Score, &e.Total, &e.ClassID, &e.Level, &e.Topic, &meta, &e.Date); err != nil {
			return nil, fmt.Errorf("scan leaderboard entry: %w", err)
		}
		e.ID = strconv.FormatInt(id, 10)
		e.Origin = domain.OriginServer
		if len(meta) > 0 {
			_ = json.Unmarshal(meta, &e.Meta)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Clear deletes every entry and reports how many were removed.
func (r *LeaderboardRepository) Clear(ctx context.Context) (int, error) {
	tag, err := r.pool.Exec(ctx, `DELETE FROM leaderboard`)
	if err != nil {
		return 0, fmt.Errorf("clear leaderboard: %w", err)
	}
	return int(tag.RowsAffected()), nil
}
