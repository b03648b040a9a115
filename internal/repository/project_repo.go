package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/timmy/helloreadme/internal/config"
	"github.com/timmy/helloreadme/internal/domain"
	"github.com/timmy/helloreadme/internal/logger"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const projectTable = "github_projects"

// ProjectRepository is the gorm-backed ProjectStore.
type ProjectRepository struct {
	mu  sync.RWMutex
	db  *gorm.DB
	cfg config.DatabaseConfig
	now func() time.Time
}

// NewProjectRepository creates a ProjectRepository over an open database.
// cfg is kept so Restore can reopen the sqlite file.
func NewProjectRepository(db *gorm.DB, cfg config.DatabaseConfig) *ProjectRepository {
	return &ProjectRepository{db: db, cfg: cfg, now: time.Now}
}

func (r *ProjectRepository) conn(ctx context.Context) *gorm.DB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db.WithContext(ctx)
}

// DB returns the underlying handle.
func (r *ProjectRepository) DB() *gorm.DB {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.db
}

// Ping checks the database connection.
func (r *ProjectRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.conn(ctx).DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Close closes the database connection.
func (r *ProjectRepository) Close() error {
	sqlDB, err := r.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Upsert inserts p or fully replaces the row with the same id. The change
// detector runs against the previous row and its verdict is logged and returned.
func (r *ProjectRepository) Upsert(ctx context.Context, p *domain.Project) (UpsertResult, error) {
	if p == nil {
		return UpsertResult{}, errors.New("nil project")
	}

	prev, err := r.GetByID(ctx, p.ID)
	if err != nil && !errors.Is(err, ErrProjectNotFound) {
		return UpsertResult{}, fmt.Errorf("load previous project %d: %w", p.ID, err)
	}

	res := prepareUpsert(prev, p, r.now().UTC())

	err = r.conn(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(p).Error
	if err != nil {
		logger.FromContext(ctx).WithError(err).WithField(logger.FieldProjectID, p.ID).Error("Failed to upsert project")
		return UpsertResult{}, fmt.Errorf("upsert project %d: %w", p.ID, err)
	}

	logUpsert(ctx, p, res)
	return res, nil
}

// BatchUpsert partitions projects into new and updated by one id lookup, then
// upserts each one independently.
func (r *ProjectRepository) BatchUpsert(ctx context.Context, projects []*domain.Project) domain.BatchResult {
	existing := make(map[int64]bool)
	ids := projectIDs(projects)
	if len(ids) > 0 {
		var found []int64
		if err := r.conn(ctx).Model(&domain.Project{}).Where("id IN ?", ids).Pluck("id", &found).Error; err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to partition batch, counting every write as new")
		}
		for _, id := range found {
			existing[id] = true
		}
	}
	return batchUpsert(ctx, projects, existing, r.Upsert)
}

// GetByID returns the project with the given id or ErrProjectNotFound.
func (r *ProjectRepository) GetByID(ctx context.Context, id int64) (*domain.Project, error) {
	return r.first(ctx, "id = ?", id)
}

// GetByFullName returns the project with the given "owner/name" or ErrProjectNotFound.
func (r *ProjectRepository) GetByFullName(ctx context.Context, fullName string) (*domain.Project, error) {
	return r.first(ctx, "full_name = ?", fullName)
}

func (r *ProjectRepository) first(ctx context.Context, where string, arg interface{}) (*domain.Project, error) {
	projects, err := r.query(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where(where, arg).Limit(1)
	})
	if err != nil {
		return nil, err
	}
	if len(projects) == 0 {
		return nil, ErrProjectNotFound
	}
	return &projects[0], nil
}

// List returns projects ordered by stars descending, id descending as tie-break.
func (r *ProjectRepository) List(ctx context.Context, filter domain.ListFilter) ([]domain.Project, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}

	projects, err := r.query(ctx, func(db *gorm.DB) *gorm.DB {
		if filter.Language != "" {
			db = db.Where("language = ?", filter.Language)
		}
		stars := countExpr(db, "stars")
		if filter.MinStars > 0 {
			db = db.Where(stars+" >= ?", filter.MinStars)
		}
		return db.Order(stars + " DESC").Order("id DESC").Limit(limit).Offset(filter.Offset)
	})
	if err != nil {
		return nil, err
	}

	sortProjects(projects, domain.SortStars, domain.OrderDesc)
	return projects, nil
}

var searchColumns = map[string]string{
	domain.SortStars:   "stars",
	domain.SortForks:   "forks",
	domain.SortUpdated: "updated_at",
}

// Search matches the query text against name, description and topics.
func (r *ProjectRepository) Search(ctx context.Context, q domain.SearchQuery) ([]domain.Project, error) {
	q = q.Normalize()

	projects, err := r.query(ctx, func(db *gorm.DB) *gorm.DB {
		if text := strings.TrimSpace(q.Query); text != "" {
			like := "%" + strings.ToLower(text) + "%"
			db = db.Where("LOWER(name) LIKE ? OR LOWER(description) LIKE ? OR LOWER(topics) LIKE ?", like, like, like)
		}
		if q.Language != "" {
			db = db.Where("language = ?", q.Language)
		}
		column := searchColumns[q.Sort]
		if q.Sort != domain.SortUpdated {
			column = countExpr(db, column)
		}
		direction := " ASC"
		if q.Order == domain.OrderDesc {
			direction = " DESC"
		}
		return db.Order(column + direction).Order("id DESC").Limit(q.PerPage).Offset((q.Page - 1) * q.PerPage)
	})
	if err != nil {
		return nil, err
	}

	sortProjects(projects, q.Sort, q.Order)
	return projects, nil
}

// ListByTopic returns projects tagged with topic, most starred first.
func (r *ProjectRepository) ListByTopic(ctx context.Context, topic string, limit int) ([]domain.Project, error) {
	if limit <= 0 {
		limit = 100
	}
	candidates, err := r.query(ctx, func(db *gorm.DB) *gorm.DB {
		return db.Where("topics LIKE ?", `%"`+topic+`"%`).Order("stars DESC").Order("id DESC")
	})
	if err != nil {
		return nil, err
	}

	var out []domain.Project
	for _, p := range candidates {
		for _, t := range p.Topics {
			if t == topic {
				out = append(out, p)
				break
			}
		}
		if len(out) == limit {
			break
		}
	}
	sortProjects(out, domain.SortStars, domain.OrderDesc)
	return out, nil
}

// Delete removes the project with the given id.
func (r *ProjectRepository) Delete(ctx context.Context, id int64) error {
	res := r.conn(ctx).Where("id = ?", id).Delete(&domain.Project{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// Count returns the number of stored projects.
func (r *ProjectRepository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.conn(ctx).Model(&domain.Project{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

// Stats returns the total count, latest collection time, per-language counts
// and the approximate database size.
func (r *ProjectRepository) Stats(ctx context.Context) (*domain.StoreStats, error) {
	total, err := r.Count(ctx)
	if err != nil {
		return nil, fmt.Errorf("count projects: %w", err)
	}

	stats := &domain.StoreStats{TotalProjects: total, Languages: map[string]int64{}}

	var latest []interface{}
	rows, err := r.conn(ctx).Table(projectTable).Select("collected_at").Order("collected_at DESC").Limit(1).Rows()
	if err != nil {
		return nil, fmt.Errorf("latest collection: %w", err)
	}
	for rows.Next() {
		var v interface{}
		if err := rows.Scan(&v); err == nil {
			latest = append(latest, v)
		}
	}
	rows.Close()
	if len(latest) == 1 {
		if t, ok := coerceTime(latest[0]); ok && !t.IsZero() {
			stats.LatestCollection = &t
		}
	}

	var langRows []struct {
		Language sql.NullString
		Count    int64
	}
	if err := r.conn(ctx).Table(projectTable).Select("language, COUNT(*) AS count").Group("language").Scan(&langRows).Error; err != nil {
		return nil, fmt.Errorf("language stats: %w", err)
	}
	for _, row := range langRows {
		name := row.Language.String
		if !row.Language.Valid || name == "" {
			name = "Unknown"
		}
		stats.Languages[name] += row.Count
	}

	stats.DatabaseSize = r.databaseSize(ctx)
	return stats, nil
}

func (r *ProjectRepository) databaseSize(ctx context.Context) int64 {
	db := r.conn(ctx)
	var size int64
	if db.Dialector.Name() == "postgres" {
		if err := db.Raw("SELECT pg_database_size(current_database())").Scan(&size).Error; err != nil {
			logger.FromContext(ctx).WithError(err).Warn("Failed to read database size")
		}
		return size
	}

	var pageCount, pageSize int64
	db.Raw("PRAGMA page_count").Scan(&pageCount)
	db.Raw("PRAGMA page_size").Scan(&pageSize)
	return pageCount * pageSize
}

// TopicStats counts projects per topic.
func (r *ProjectRepository) TopicStats(ctx context.Context) (map[string]int64, error) {
	var raw []domain.StringArray
	if err := r.conn(ctx).Table(projectTable).Pluck("topics", &raw).Error; err != nil {
		return nil, err
	}
	counts := make(map[string]int64)
	for _, topics := range raw {
		for _, t := range topics {
			counts[t]++
		}
	}
	return counts, nil
}

// ListNeedingVectorization returns projects that were never indexed, or with
// changed set, indexed projects whose content changed since. The two sets are
// listed separately so stale rows cannot crowd new ones out of a page.
func (r *ProjectRepository) ListNeedingVectorization(ctx context.Context, limit int, changed bool) ([]domain.Project, error) {
	if limit <= 0 {
		limit = 100
	}
	projects, err := r.query(ctx, func(db *gorm.DB) *gorm.DB {
		if changed {
			db = db.Where("vectorized_at IS NOT NULL AND content_changed_at > vectorized_at")
		} else {
			db = db.Where("vectorized_at IS NULL")
		}
		return db.Order(countExpr(db, "stars") + " DESC").Order("id DESC").Limit(limit)
	})
	if err != nil {
		return nil, err
	}
	sortProjects(projects, domain.SortStars, domain.OrderDesc)
	return projects, nil
}

// MarkVectorized records that the project's current content is indexed.
func (r *ProjectRepository) MarkVectorized(ctx context.Context, id int64, at time.Time) error {
	res := r.conn(ctx).Model(&domain.Project{}).Where("id = ?", id).Update("vectorized_at", at.UTC())
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrProjectNotFound
	}
	return nil
}

// countExpr renders a counter column as the value the row decoder will see.
// sqlite keeps malformed text in an integer column and orders it above every
// number, so anything that is not numeric sorts and filters as 0.
func countExpr(db *gorm.DB, column string) string {
	if db.Dialector.Name() == "postgres" {
		return "GREATEST(" + column + ", 0)"
	}
	return fmt.Sprintf("(CASE WHEN typeof(%[1]s) IN ('integer', 'real') THEN MAX(CAST(%[1]s AS INTEGER), 0) ELSE 0 END)", column)
}

// query runs a SELECT over the project table and decodes rows one by one: a
// row that cannot be decoded is logged and skipped instead of failing the query.
func (r *ProjectRepository) query(ctx context.Context, scope func(*gorm.DB) *gorm.DB) ([]domain.Project, error) {
	rows, err := scope(r.conn(ctx).Table(projectTable).Select("*")).Rows()
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var projects []domain.Project
	for rows.Next() {
		values := make([]interface{}, len(columns))
		ptrs := make([]interface{}, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			logger.FromContext(ctx).WithError(err).Error("Failed to scan project row")
			continue
		}

		row := make(map[string]interface{}, len(columns))
		for i, col := range columns {
			row[col] = values[i]
		}
		p, err := projectFromRow(row)
		if err != nil {
			logger.FromContext(ctx).WithError(err).WithField("row_id", row["id"]).Error("Skipping malformed project row")
			continue
		}
		projects = append(projects, p)
	}
	return projects, rows.Err()
}

// Backup copies the sqlite file to dst.
func (r *ProjectRepository) Backup(ctx context.Context, dst string) error {
	if r.cfg.Driver == "postgres" {
		return ErrBackupUnsupported
	}
	if err := r.conn(ctx).Exec("PRAGMA wal_checkpoint(TRUNCATE)").Error; err != nil {
		logger.FromContext(ctx).WithError(err).Warn("WAL checkpoint before backup failed")
	}
	if err := copyFile(r.cfg.Path, dst); err != nil {
		return fmt.Errorf("backup database: %w", err)
	}
	return nil
}

// Restore replaces the sqlite file with src and reopens the connection.
func (r *ProjectRepository) Restore(ctx context.Context, src string) error {
	if r.cfg.Driver == "postgres" {
		return ErrBackupUnsupported
	}
	if _, err := os.Stat(src); err != nil {
		return fmt.Errorf("restore database: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if sqlDB, err := r.db.DB(); err == nil {
		_ = sqlDB.Close()
	}
	for _, suffix := range []string{"-wal", "-shm"} {
		_ = os.Remove(r.cfg.Path + suffix)
	}
	if err := copyFile(src, r.cfg.Path); err != nil {
		return fmt.Errorf("restore database: %w", err)
	}

	db, err := InitDB(&r.cfg)
	if err != nil {
		return fmt.Errorf("reopen database: %w", err)
	}
	r.db = db
	logger.FromContext(ctx).WithField("source_path", src).Info("Database restored")
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	if err := os.MkdirAll(filepath.Dir(dst), 0o755); err != nil {
		return err
	}
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
