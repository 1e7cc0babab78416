package postgres

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/ButyrinIA/postadmin/internal/models"
	"github.com/ButyrinIA/postadmin/internal/storage"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const schema = `
	CREATE TABLE IF NOT EXISTS posts (
		id BIGSERIAL PRIMARY KEY,
		title TEXT NOT NULL,
		content TEXT NOT NULL,
		status SMALLINT NOT NULL DEFAULT 0,
		sort_order INTEGER NOT NULL DEFAULT 1,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	);
	CREATE INDEX IF NOT EXISTS idx_posts_status ON posts(status);
	CREATE INDEX IF NOT EXISTS idx_posts_sort_order ON posts(sort_order);
`

const postColumns = `id, title, content, status, sort_order, created_at, updated_at`

type PostgresStorage struct {
	pool *pgxpool.Pool
}

func New(ctx context.Context, dsn string) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to postgres: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// Seed inserts posts keeping their ids, then moves the id sequence past them.
// It is a no-op when the table already has rows.
func (s *PostgresStorage) Seed(ctx context.Context, posts []models.Post) error {
	var count int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`).Scan(&count); err != nil {
		return err
	}
	if count > 0 || len(posts) == 0 {
		return nil
	}

	batch := &pgx.Batch{}
	for _, p := range posts {
		batch.Queue(`
			INSERT INTO posts (`+postColumns+`)
			VALUES ($1, $2, $3, $4, $5, $6, $7)`,
			p.ID, p.Title, p.Content, int16(p.Status), p.Order, p.CreatedAt, p.UpdatedAt)
	}
	batch.Queue(`SELECT setval(pg_get_serial_sequence('posts', 'id'), (SELECT MAX(id) FROM posts))`)

	br := s.pool.SendBatch(ctx, batch)
	defer br.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("seed item %d: %w", i, err)
		}
	}
	return nil
}

// filter builds the WHERE clause shared by the count and the page query.
func filter(query models.Query) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if query.Title != nil && *query.Title != "" {
		args = append(args, *query.Title)
		conds = append(conds, "strpos(title, $"+strconv.Itoa(len(args))+") > 0")
	}
	if query.Status != nil {
		args = append(args, int16(*query.Status))
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

func orderBy(query models.Query) string {
	if query.Order == nil {
		return " ORDER BY id DESC"
	}
	if *query.Order == models.SortDescending {
		return " ORDER BY sort_order DESC, id DESC"
	}
	return " ORDER BY sort_order ASC, id DESC"
}

func (s *PostgresStorage) ListPosts(ctx context.Context, query models.Query) (*models.ListResponse[models.Post], error) {
	page := query.ResolvedPage()
	pageSize := query.ResolvedPageSize()

	// status is SMALLINT; nothing outside its range can match
	if query.Status != nil && (*query.Status < math.MinInt16 || *query.Status > math.MaxInt16) {
		return &models.ListResponse[models.Post]{
			List:       []models.Post{},
			Pagination: models.Pagination{Page: page, PageSize: pageSize},
		}, nil
	}

	where, args := filter(query)

	// Подсчет общего количества
	var total int
	if err := s.pool.QueryRow(ctx, `SELECT COUNT(*) FROM posts`+where, args...).Scan(&total); err != nil {
		return nil, err
	}

	start, end := models.PageBounds(page, pageSize, total)
	args = append(args, end-start, start)
	sql := `SELECT ` + postColumns + ` FROM posts` + where + orderBy(query) +
		` LIMIT $` + strconv.Itoa(len(args)-1) + ` OFFSET $` + strconv.Itoa(len(args))

	rows, err := s.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	list := make([]models.Post, 0, end-start)
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		list = append(list, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &models.ListResponse[models.Post]{
		List: list,
		Pagination: models.Pagination{
			Page:     page,
			PageSize: pageSize,
			Total:    total,
		},
	}, nil
}

func (s *PostgresStorage) GetPosts(ctx context.Context, ids []int64) (map[int64]models.Post, error) {
	rows, err := s.pool.Query(ctx, `SELECT `+postColumns+` FROM posts WHERE id = ANY($1)`, ids)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	found := make(map[int64]models.Post, len(ids))
	for rows.Next() {
		p, err := scanPost(rows)
		if err != nil {
			return nil, err
		}
		found[p.ID] = p
	}
	return found, rows.Err()
}

func (s *PostgresStorage) CreatePost(ctx context.Context, post *models.Post) error {
	return s.pool.QueryRow(ctx, `
		INSERT INTO posts (title, content, status, sort_order)
		VALUES ($1, $2, $3, $4)
		RETURNING id, created_at, updated_at`,
		post.Title, post.Content, int16(post.Status), post.Order,
	).Scan(&post.ID, &post.CreatedAt, &post.UpdatedAt)
}

func (s *PostgresStorage) UpdatePost(ctx context.Context, update models.UpdatePostDto) error {
	var status *int16
	if update.Status != nil {
		v := int16(*update.Status)
		status = &v
	}

	tag, err := s.pool.Exec(ctx, `
		UPDATE posts SET
			title = COALESCE($2, title),
			content = COALESCE($3, content),
			status = COALESCE($4, status),
			sort_order = COALESCE($5, sort_order),
			updated_at = now()
		WHERE id = $1`,
		update.ID, update.Title, update.Content, status, update.Order)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) DeletePost(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return storage.ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) UpdatePostsStatus(ctx context.Context, ids []int64, status models.PostStatus) error {
	_, err := s.pool.Exec(ctx, `
		UPDATE posts SET status = $2, updated_at = now()
		WHERE id = ANY($1)`, ids, int16(status))
	return err
}

func (s *PostgresStorage) Close() error {
	s.pool.Close()
	return nil
}

func scanPost(row pgx.Row) (models.Post, error) {
	var (
		p      models.Post
		status int16
	)
	err := row.Scan(&p.ID, &p.Title, &p.Content, &status, &p.Order, &p.CreatedAt, &p.UpdatedAt)
	p.Status = models.PostStatus(status)
	return p, err
}
