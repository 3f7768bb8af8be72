package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

type Store struct {
	DB *sql.DB
}

// PostSource is one cited source of a generated post.
type PostSource struct {
	Title string `json:"title"`
	URL   string `json:"url"`
}

// PostRecord is a persisted generated post.
type PostRecord struct {
	ID              string       `json:"id"`
	Title           string       `json:"title"`
	Slug            string       `json:"slug"`
	Topic           string       `json:"topic"`
	Content         string       `json:"content"`
	TargetQuestions []string     `json:"target_questions"`
	Sources         []PostSource `json:"sources"`
	Audience        string       `json:"audience,omitempty"`
	Tone            string       `json:"tone,omitempty"`
	Model           string       `json:"model,omitempty"`
	WordCount       int          `json:"word_count"`
	ReadingTime     int          `json:"reading_time"`
	GenerationMS    int64        `json:"generation_ms"`
	ViewCount       int64        `json:"view_count"`
	CreatedAt       time.Time    `json:"created_at"`
}

// PostViewRecord is one tracked page view.
type PostViewRecord struct {
	ID        string    `json:"id"`
	PostID    string    `json:"post_id"`
	Referrer  string    `json:"referrer,omitempty"`
	UserAgent string    `json:"user_agent,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// MetricRecord is one finalized performance sample.
type MetricRecord struct {
	ID         string
	Operation  string
	DurationMS int64
	Status     string
	Metadata   map[string]interface{}
	CreatedAt  time.Time
}

// PerformanceStats aggregates metric samples for the analytics API.
type PerformanceStats struct {
	AvgDurationMS   float64          `json:"avg_duration_ms"`
	SuccessRate     float64          `json:"success_rate"`
	TotalOperations int              `json:"total_operations"`
	OverTime        []DailyOperation `json:"operations_over_time"`
}

// DailyOperation is one day's worth of metric samples.
type DailyOperation struct {
	Date          string  `json:"date"`
	Count         int     `json:"count"`
	AvgDurationMS float64 `json:"avg_duration_ms"`
}

var ErrPostNotFound = errors.New("post not found")

func New(db *sql.DB) *Store {
	return &Store{DB: db}
}

// NewWithDSN opens a Postgres connection and pings it.
func NewWithDSN(ctx context.Context, dsn string) (*Store, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{DB: db}, nil
}

// CreatePost inserts a generated post and returns the stored record.
func (s *Store) CreatePost(ctx context.Context, rec PostRecord) (PostRecord, error) {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	sources, err := json.Marshal(rec.Sources)
	if err != nil {
		return PostRecord{}, err
	}
	row := s.DB.QueryRowContext(ctx, `
INSERT INTO posts (id, title, slug, topic, content, target_questions, sources, audience, tone, model, word_count, reading_time, generation_ms)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13)
RETURNING created_at
`, rec.ID, rec.Title, rec.Slug, rec.Topic, rec.Content, pq.Array(rec.TargetQuestions), sources,
		nullString(rec.Audience), nullString(rec.Tone), nullString(rec.Model),
		rec.WordCount, rec.ReadingTime, rec.GenerationMS)
	if err := row.Scan(&rec.CreatedAt); err != nil {
		return PostRecord{}, err
	}
	return rec, nil
}

// GetPostBySlug fetches one post by its slug.
func (s *Store) GetPostBySlug(ctx context.Context, slug string) (PostRecord, error) {
	row := s.DB.QueryRowContext(ctx, `
SELECT id, title, slug, topic, content, target_questions, sources, audience, tone, model, word_count, reading_time, generation_ms, view_count, created_at
FROM posts WHERE slug=$1
`, slug)
	return scanPost(row)
}

// ListPosts returns posts newest first.
func (s *Store) ListPosts(ctx context.Context, limit, offset int) ([]PostRecord, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, title, slug, topic, content, target_questions, sources, audience, tone, model, word_count, reading_time, generation_ms, view_count, created_at
FROM posts ORDER BY created_at DESC LIMIT $1 OFFSET $2
`, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []PostRecord
	for rows.Next() {
		rec, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

// SlugExists reports whether a slug is already taken.
func (s *Store) SlugExists(ctx context.Context, slug string) (bool, error) {
	var one int
	err := s.DB.QueryRowContext(ctx, `SELECT 1 FROM posts WHERE slug=$1`, slug).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// TrackView records a view row and bumps the post's counter in one
// transaction.
func (s *Store) TrackView(ctx context.Context, postID, referrer, userAgent string) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()
	if _, err = tx.ExecContext(ctx, `
INSERT INTO post_views (id, post_id, referrer, user_agent) VALUES ($1,$2,$3,$4)
`, uuid.NewString(), postID, nullString(referrer), nullString(userAgent)); err != nil {
		return err
	}
	if _, err = tx.ExecContext(ctx, `UPDATE posts SET view_count = view_count + 1 WHERE id=$1`, postID); err != nil {
		return err
	}
	return tx.Commit()
}

// PostAnalytics returns the view counter and the most recent views.
func (s *Store) PostAnalytics(ctx context.Context, postID string, recent int) (int64, []PostViewRecord, error) {
	if recent <= 0 || recent > 100 {
		recent = 20
	}
	var total int64
	if err := s.DB.QueryRowContext(ctx, `SELECT view_count FROM posts WHERE id=$1`, postID).Scan(&total); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, nil, ErrPostNotFound
		}
		return 0, nil, err
	}
	rows, err := s.DB.QueryContext(ctx, `
SELECT id, post_id, referrer, user_agent, created_at
FROM post_views WHERE post_id=$1 ORDER BY created_at DESC LIMIT $2
`, postID, recent)
	if err != nil {
		return 0, nil, err
	}
	defer rows.Close()

	var views []PostViewRecord
	for rows.Next() {
		var v PostViewRecord
		var referrer, agent sql.NullString
		if err := rows.Scan(&v.ID, &v.PostID, &referrer, &agent, &v.CreatedAt); err != nil {
			return 0, nil, err
		}
		v.Referrer = referrer.String
		v.UserAgent = agent.String
		views = append(views, v)
	}
	return total, views, rows.Err()
}

// InsertMetric stores one performance sample.
func (s *Store) InsertMetric(ctx context.Context, rec MetricRecord) error {
	if rec.ID == "" {
		rec.ID = uuid.NewString()
	}
	meta, err := json.Marshal(rec.Metadata)
	if err != nil {
		return err
	}
	_, err = s.DB.ExecContext(ctx, `
INSERT INTO performance_metrics (id, operation, duration_ms, status, metadata) VALUES ($1,$2,$3,$4,$5)
`, rec.ID, rec.Operation, rec.DurationMS, rec.Status, meta)
	return err
}

// MetricStats aggregates samples since the given time, optionally filtered
// by operation name.
func (s *Store) MetricStats(ctx context.Context, operation string, since time.Time) (PerformanceStats, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if operation == "" {
		rows, err = s.DB.QueryContext(ctx, `
SELECT operation, duration_ms, status, created_at FROM performance_metrics WHERE created_at >= $1
`, since)
	} else {
		rows, err = s.DB.QueryContext(ctx, `
SELECT operation, duration_ms, status, created_at FROM performance_metrics WHERE created_at >= $1 AND operation = $2
`, since, operation)
	}
	if err != nil {
		return PerformanceStats{}, err
	}
	defer rows.Close()

	var (
		stats     PerformanceStats
		succeeded int
		totalMS   int64
		byDay     = map[string]*DailyOperation{}
		dayOrder  []string
	)
	for rows.Next() {
		var (
			op        string
			duration  int64
			status    string
			createdAt time.Time
		)
		if err := rows.Scan(&op, &duration, &status, &createdAt); err != nil {
			return PerformanceStats{}, err
		}
		stats.TotalOperations++
		totalMS += duration
		if status == "success" {
			succeeded++
		}
		day := createdAt.UTC().Format("2006-01-02")
		d, ok := byDay[day]
		if !ok {
			d = &DailyOperation{Date: day}
			byDay[day] = d
			dayOrder = append(dayOrder, day)
		}
		d.Count++
		d.AvgDurationMS += float64(duration)
	}
	if err := rows.Err(); err != nil {
		return PerformanceStats{}, err
	}
	if stats.TotalOperations > 0 {
		stats.AvgDurationMS = float64(totalMS) / float64(stats.TotalOperations)
		stats.SuccessRate = float64(succeeded) / float64(stats.TotalOperations)
	}
	for _, day := range dayOrder {
		d := byDay[day]
		d.AvgDurationMS /= float64(d.Count)
		stats.OverTime = append(stats.OverTime, *d)
	}
	return stats, nil
}

// GetCacheEntry reads one durable cache row, tags included so the caller can
// re-tag a faster copy.
func (s *Store) GetCacheEntry(ctx context.Context, key string) ([]byte, []string, *time.Time, bool, error) {
	var (
		value     []byte
		tags      pq.StringArray
		expiresAt sql.NullTime
	)
	err := s.DB.QueryRowContext(ctx, `SELECT value, tags, expires_at FROM cache_entries WHERE key=$1`, key).Scan(&value, &tags, &expiresAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil, nil, false, nil
	}
	if err != nil {
		return nil, nil, nil, false, err
	}
	if expiresAt.Valid {
		t := expiresAt.Time
		return value, tags, &t, true, nil
	}
	return value, tags, nil, true, nil
}

// UpsertCacheEntry writes one durable cache row, replacing any previous
// value, tags and expiry for the key.
func (s *Store) UpsertCacheEntry(ctx context.Context, key string, value []byte, tags []string, expiresAt *time.Time) error {
	var exp sql.NullTime
	if expiresAt != nil {
		exp = sql.NullTime{Time: *expiresAt, Valid: true}
	}
	_, err := s.DB.ExecContext(ctx, `
INSERT INTO cache_entries (key, value, tags, expires_at) VALUES ($1,$2,$3,$4)
ON CONFLICT (key) DO UPDATE SET value=EXCLUDED.value, tags=EXCLUDED.tags, expires_at=EXCLUDED.expires_at, updated_at=now()
`, key, value, pq.Array(tags), exp)
	return err
}

// DeleteCacheEntry removes one durable cache row.
func (s *Store) DeleteCacheEntry(ctx context.Context, key string) error {
	_, err := s.DB.ExecContext(ctx, `DELETE FROM cache_entries WHERE key=$1`, key)
	return err
}

// DeleteCacheEntriesByTags removes rows tagged with any of the given tags.
func (s *Store) DeleteCacheEntriesByTags(ctx context.Context, tags []string) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM cache_entries WHERE tags && $1`, pq.Array(tags))
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteExpiredCacheEntries sweeps rows whose expiry has passed.
func (s *Store) DeleteExpiredCacheEntries(ctx context.Context) (int64, error) {
	res, err := s.DB.ExecContext(ctx, `DELETE FROM cache_entries WHERE expires_at IS NOT NULL AND expires_at <= now()`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPost(row rowScanner) (PostRecord, error) {
	var (
		rec            PostRecord
		questions      pq.StringArray
		sources        []byte
		audience, tone sql.NullString
		model          sql.NullString
	)
	err := row.Scan(&rec.ID, &rec.Title, &rec.Slug, &rec.Topic, &rec.Content, &questions, &sources,
		&audience, &tone, &model, &rec.WordCount, &rec.ReadingTime, &rec.GenerationMS, &rec.ViewCount, &rec.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return PostRecord{}, ErrPostNotFound
	}
	if err != nil {
		return PostRecord{}, err
	}
	rec.TargetQuestions = questions
	rec.Audience = audience.String
	rec.Tone = tone.String
	rec.Model = model.String
	if len(sources) > 0 {
		if err := json.Unmarshal(sources, &rec.Sources); err != nil {
			return PostRecord{}, err
		}
	}
	return rec, nil
}

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}
