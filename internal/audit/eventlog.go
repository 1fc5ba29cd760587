package audit

import (
	"context"
	"database/sql"
	"time"
)

// Event types recorded by the submission pipeline.
const (
	EventSubmissionAccepted = "SubmissionAccepted"
	EventMediaAttached      = "MediaAttached"
	EventFormPublished      = "FormPublished"
)

type Event struct {
	Offset    int64
	SiteID    string
	Type      string
	Key       string // natural key: response or form id
	DataJSON  string
	CreatedAt int64
}

type EventRepo struct {
	db     *sql.DB
	siteID string
}

func NewEventRepo(db *sql.DB, siteID string) *EventRepo {
	if siteID == "" {
		siteID = "local"
	}
	return &EventRepo{db: db, siteID: siteID}
}

func (r *EventRepo) Append(ctx context.Context, e Event) error {
	if e.SiteID == "" {
		e.SiteID = r.siteID
	}
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO event_log (site_id, typ, key, data, created_at)
		 VALUES ($1,$2,$3,$4,$5)`,
		e.SiteID, e.Type, e.Key, e.DataJSON, time.Now().Unix())
	return err
}
