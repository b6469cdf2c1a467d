package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"github.com/couchcryptid/satellite-change-service/internal/domain"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // register postgres driver
)

const schema = `
	CREATE TABLE IF NOT EXISTS images (
		filename      TEXT PRIMARY KEY,
		source        TEXT NOT NULL,
		satellite     TEXT NOT NULL,
		year          INTEGER NOT NULL,
		acquired_date TEXT NOT NULL,
		cloud_cover   DOUBLE PRECISION NOT NULL,
		scene_id      TEXT NOT NULL DEFAULT '',
		latitude      DOUBLE PRECISION NOT NULL,
		longitude     DOUBLE PRECISION NOT NULL,
		size_bytes    INTEGER NOT NULL,
		png           BYTEA NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	);
	CREATE INDEX IF NOT EXISTS images_source_created_idx ON images (source, created_at DESC);`

const recordColumns = `filename, source, satellite, year, acquired_date, cloud_cover,
	scene_id, latitude, longitude, size_bytes, created_at`

// PostgresStore keeps images and their metadata in a single table.
type PostgresStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewPostgresStore connects to dsn and ensures the schema exists.
func NewPostgresStore(ctx context.Context, dsn string, logger *slog.Logger) (*PostgresStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate catalog schema: %w", err)
	}
	return &PostgresStore{db: db, logger: logger}, nil
}

func (s *PostgresStore) Save(ctx context.Context, loc domain.Location, img domain.TemporalImage) (domain.ImageRecord, error) {
	rec := domain.NewImageRecord(loc, img)
	row := struct {
		domain.ImageRecord
		PNG []byte `db:"png"`
	}{rec, img.PNG}

	const query = `
		INSERT INTO images (` + recordColumns + `, png)
		VALUES (:filename, :source, :satellite, :year, :acquired_date, :cloud_cover,
			:scene_id, :latitude, :longitude, :size_bytes, :created_at, :png)
		ON CONFLICT (filename) DO UPDATE SET
			cloud_cover = EXCLUDED.cloud_cover,
			scene_id    = EXCLUDED.scene_id,
			size_bytes  = EXCLUDED.size_bytes,
			png         = EXCLUDED.png,
			created_at  = EXCLUDED.created_at`

	if _, err := s.db.NamedExecContext(ctx, query, row); err != nil {
		return domain.ImageRecord{}, fmt.Errorf("insert image: %w", err)
	}
	return rec, nil
}

func (s *PostgresStore) List(ctx context.Context, source domain.DataSource) ([]domain.ImageRecord, error) {
	query := `SELECT ` + recordColumns + ` FROM images`
	var args []any
	if source != "" {
		query += ` WHERE source = $1`
		args = append(args, source)
	}
	query += ` ORDER BY created_at DESC, filename`

	records := []domain.ImageRecord{}
	if err := s.db.SelectContext(ctx, &records, query, args...); err != nil {
		return nil, fmt.Errorf("list images: %w", err)
	}
	return records, nil
}

func (s *PostgresStore) Open(ctx context.Context, filename string) ([]byte, domain.ImageRecord, error) {
	if !domain.ValidImageFilename(filename) {
		return nil, domain.ImageRecord{}, fmt.Errorf("%w: invalid filename %q", domain.ErrInvalidRequest, filename)
	}

	var row struct {
		domain.ImageRecord
		PNG []byte `db:"png"`
	}
	err := s.db.GetContext(ctx, &row, `SELECT `+recordColumns+`, png FROM images WHERE filename = $1`, filename)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ImageRecord{}, fmt.Errorf("%w: %s", domain.ErrImageNotFound, filename)
	}
	if err != nil {
		return nil, domain.ImageRecord{}, fmt.Errorf("get image: %w", err)
	}
	return row.PNG, row.ImageRecord, nil
}

// Ping checks database connectivity.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *PostgresStore) Close() error {
	return s.db.Close()
}
