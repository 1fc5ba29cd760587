package form

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"
)

var ErrNotFound = errors.New("form not found")

type Summary struct {
	ID          string `json:"id"`
	MissionID   string `json:"mission_id"`
	Name        string `json:"name"`
	Published   bool   `json:"published"`
	VersionCode string `json:"version_code,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

func (s *SQLStore) PutForm(ctx context.Context, f *Form) error {
	dj, err := json.Marshal(f)
	if err != nil {
		return err
	}
	ver := ""
	if v := f.CurrentVersion(); v != nil {
		ver = v.Code
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO forms (id,mission_id,name,published,version_code,definition_json,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		ON CONFLICT (id) DO UPDATE SET mission_id=EXCLUDED.mission_id, name=EXCLUDED.name,
			published=EXCLUDED.published, version_code=EXCLUDED.version_code, definition_json=EXCLUDED.definition_json`,
		f.ID, f.MissionID, f.Name, f.Published, ver, string(dj), time.Now().Unix())
	return err
}

// GetForm loads and indexes the full definition aggregate.
func (s *SQLStore) GetForm(ctx context.Context, id string) (*Form, error) {
	row := s.db.QueryRowContext(ctx, `SELECT definition_json FROM forms WHERE id=$1`, id)
	var dj string
	if err := row.Scan(&dj); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var f Form
	if err := json.Unmarshal([]byte(dj), &f); err != nil {
		return nil, err
	}
	f.Index()
	return &f, nil
}

func (s *SQLStore) ListForms(ctx context.Context, missionID string) ([]Summary, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT id,mission_id,name,published,version_code,created_at
		FROM forms WHERE ($1='' OR mission_id=$1) ORDER BY created_at DESC`, missionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var sm Summary
		if err := rows.Scan(&sm.ID, &sm.MissionID, &sm.Name, &sm.Published, &sm.VersionCode, &sm.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sm)
	}
	return out, rows.Err()
}

// Publish loads, publishes and saves the form, returning the updated aggregate.
func (s *SQLStore) Publish(ctx context.Context, id string) (*Form, error) {
	f, err := s.GetForm(ctx, id)
	if err != nil {
		return nil, err
	}
	f.Publish()
	if err := s.PutForm(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SQLStore) Unpublish(ctx context.Context, id string) (*Form, error) {
	f, err := s.GetForm(ctx, id)
	if err != nil {
		return nil, err
	}
	f.Unpublish()
	if err := s.PutForm(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}

func (s *SQLStore) FlagForUpgrade(ctx context.Context, id string) (*Form, error) {
	f, err := s.GetForm(ctx, id)
	if err != nil {
		return nil, err
	}
	f.FlagForUpgrade()
	if err := s.PutForm(ctx, f); err != nil {
		return nil, err
	}
	return f, nil
}
