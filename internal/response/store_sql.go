package response

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"sort"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("response not found")

	// ErrDuplicateSubmission means another request already created a response
	// with the same identity hash. Callers should re-read and reconcile
	// instead of retrying the insert.
	ErrDuplicateSubmission = errors.New("response with this hash already exists")
)

type SQLStore struct {
	db     *sql.DB
	driver string // "sqlite" or "postgres"
}

func NewSQLStore(db *sql.DB, driver string) *SQLStore {
	return &SQLStore{db: db, driver: driver}
}

// CreateWithTree persists the response row and every node of its tree in one
// transaction. Nothing remains on failure.
func (s *SQLStore) CreateWithTree(ctx context.Context, r *Response) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `INSERT INTO responses (id,form_id,mission_id,user_id,source,odk_hash,incomplete,awaiting_media,created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)`,
		r.ID, r.FormID, r.MissionID, r.UserID, r.Source, nullStr(r.OdkHash),
		r.Incomplete, r.AwaitingMedia, r.CreatedAt.Unix())
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateSubmission
		}
		return err
	}

	var insErr error
	var insert func(n Node, parentID string)
	insert = func(n Node, parentID string) {
		if insErr != nil {
			return
		}
		insErr = insertNode(ctx, tx, n, parentID)
		for _, c := range n.Data().Children {
			insert(c, n.Data().ID)
		}
	}
	if r.Root != nil {
		insert(r.Root, "")
	}
	if insErr != nil {
		return insErr
	}
	return tx.Commit()
}

func insertNode(ctx context.Context, tx *sql.Tx, n Node, parentID string) error {
	d := n.Data()
	var (
		value, optionID, pending sql.NullString
		choicesJSON, mediaJSON   sql.NullString
		dateV, timeV, datetimeV  sql.NullString
		lat, lng, alt, acc       sql.NullFloat64
	)
	if a, ok := n.(*Answer); ok {
		value = nullStr(a.Value)
		optionID = nullStr(a.OptionID)
		pending = nullStr(a.PendingFileName)
		if len(a.Choices) > 0 {
			b, err := json.Marshal(a.Choices)
			if err != nil {
				return err
			}
			choicesJSON = nullStr(string(b))
		}
		if a.Media != nil {
			b, err := json.Marshal(a.Media)
			if err != nil {
				return err
			}
			mediaJSON = nullStr(string(b))
		}
		dateV = nullTime(a.DateValue)
		timeV = nullTime(a.TimeValue)
		datetimeV = nullTime(a.DatetimeValue)
		lat = nullFloat(a.Latitude)
		lng = nullFloat(a.Longitude)
		alt = nullFloat(a.Altitude)
		acc = nullFloat(a.Accuracy)
	}
	_, err := tx.ExecContext(ctx, `INSERT INTO answer_nodes
		(id,response_id,parent_id,questioning_id,node_type,new_rank,rank,inst_num,
		 value,option_id,choices_json,date_value,time_value,datetime_value,
		 latitude,longitude,altitude,accuracy,pending_file_name,media_json)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20)`,
		d.ID, d.ResponseID, nullStr(parentID), d.QuestioningID, string(n.Type()),
		d.NewRank, d.Rank, d.InstNum,
		value, optionID, choicesJSON, dateV, timeV, datetimeV,
		lat, lng, alt, acc, pending, mediaJSON)
	return err
}

// Get loads a response and reconstructs its full tree.
func (s *SQLStore) Get(ctx context.Context, id string) (*Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,form_id,mission_id,user_id,source,odk_hash,incomplete,awaiting_media,created_at
		FROM responses WHERE id=$1`, id)
	r, err := scanResponse(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadTree(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// FindAwaitingByHash locates an in-progress response by identity hash. Only
// responses still awaiting media are matched; finalized responses are not.
func (s *SQLStore) FindAwaitingByHash(ctx context.Context, hash, formID string) (*Response, error) {
	row := s.db.QueryRowContext(ctx, `SELECT id,form_id,mission_id,user_id,source,odk_hash,incomplete,awaiting_media,created_at
		FROM responses WHERE odk_hash=$1 AND form_id=$2 AND awaiting_media=$3`, hash, formID, true)
	r, err := scanResponse(row)
	if err != nil {
		return nil, err
	}
	if err := s.loadTree(ctx, r); err != nil {
		return nil, err
	}
	return r, nil
}

// UpdateAnswerMedia patches a single answer's media payload and pending
// marker in place. Rank and variant are never touched.
func (s *SQLStore) UpdateAnswerMedia(ctx context.Context, a *Answer) error {
	var mediaJSON sql.NullString
	if a.Media != nil {
		b, err := json.Marshal(a.Media)
		if err != nil {
			return err
		}
		mediaJSON = nullStr(string(b))
	}
	_, err := s.db.ExecContext(ctx,
		`UPDATE answer_nodes SET pending_file_name=$1, media_json=$2 WHERE id=$3`,
		nullStr(a.PendingFileName), mediaJSON, a.ID)
	return err
}

// FinalizeMedia clears the awaiting flag and hash once every media part has
// arrived, so identical resends no longer match this response.
func (s *SQLStore) FinalizeMedia(ctx context.Context, responseID string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE responses SET awaiting_media=$1, odk_hash=NULL WHERE id=$2`, false, responseID)
	return err
}

type ListOpts struct {
	FormID    string
	MissionID string
	Limit     int
	Offset    int
}

type Summary struct {
	ID         string `json:"id"`
	FormID     string `json:"form_id"`
	MissionID  string `json:"mission_id"`
	UserID     string `json:"user_id,omitempty"`
	Incomplete bool   `json:"incomplete"`
	CreatedAt  int64  `json:"created_at"`
}

func (s *SQLStore) List(ctx context.Context, opts ListOpts) ([]Summary, error) {
	if opts.Limit <= 0 {
		opts.Limit = 50
	}
	rows, err := s.db.QueryContext(ctx, `SELECT id,form_id,mission_id,user_id,incomplete,created_at
		FROM responses
		WHERE ($1='' OR form_id=$1) AND ($2='' OR mission_id=$2)
		ORDER BY created_at DESC LIMIT $3 OFFSET $4`,
		opts.FormID, opts.MissionID, opts.Limit, opts.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := []Summary{}
	for rows.Next() {
		var sm Summary
		var user sql.NullString
		if err := rows.Scan(&sm.ID, &sm.FormID, &sm.MissionID, &user, &sm.Incomplete, &sm.CreatedAt); err != nil {
			return nil, err
		}
		sm.UserID = user.String
		out = append(out, sm)
	}
	return out, rows.Err()
}

func scanResponse(row *sql.Row) (*Response, error) {
	var r Response
	var user, hash sql.NullString
	var created int64
	err := row.Scan(&r.ID, &r.FormID, &r.MissionID, &user, &r.Source, &hash,
		&r.Incomplete, &r.AwaitingMedia, &created)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	r.UserID = user.String
	r.OdkHash = hash.String
	r.CreatedAt = time.Unix(created, 0).UTC()
	return &r, nil
}

func (s *SQLStore) loadTree(ctx context.Context, r *Response) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id,parent_id,questioning_id,node_type,new_rank,rank,inst_num,
		value,option_id,choices_json,date_value,time_value,datetime_value,
		latitude,longitude,altitude,accuracy,pending_file_name,media_json
		FROM answer_nodes WHERE response_id=$1`, r.ID)
	if err != nil {
		return err
	}
	defer rows.Close()

	type rec struct {
		node     Node
		parentID string
	}
	var recs []rec
	nodes := map[string]Node{}
	for rows.Next() {
		var (
			id, qingID, nodeType               string
			parentID, value, optionID, pending sql.NullString
			choicesJSON, mediaJSON             sql.NullString
			dateV, timeV, datetimeV            sql.NullString
			lat, lng, alt, acc                 sql.NullFloat64
			newRank, rank, instNum             int
		)
		if err := rows.Scan(&id, &parentID, &qingID, &nodeType, &newRank, &rank, &instNum,
			&value, &optionID, &choicesJSON, &dateV, &timeV, &datetimeV,
			&lat, &lng, &alt, &acc, &pending, &mediaJSON); err != nil {
			return err
		}
		d := NodeData{ID: id, ResponseID: r.ID, QuestioningID: qingID,
			NewRank: newRank, Rank: rank, InstNum: instNum}
		var n Node
		switch NodeType(nodeType) {
		case TypeAnswerGroup:
			n = &AnswerGroup{NodeData: d}
		case TypeAnswerGroupSet:
			n = &AnswerGroupSet{NodeData: d}
		case TypeAnswerSet:
			n = &AnswerSet{NodeData: d}
		case TypeAnswer:
			a := &Answer{NodeData: d}
			a.Value = value.String
			a.OptionID = optionID.String
			a.PendingFileName = pending.String
			if choicesJSON.Valid {
				if err := json.Unmarshal([]byte(choicesJSON.String), &a.Choices); err != nil {
					return err
				}
			}
			if mediaJSON.Valid {
				a.Media = &Media{}
				if err := json.Unmarshal([]byte(mediaJSON.String), a.Media); err != nil {
					return err
				}
			}
			a.DateValue = parseTimeCol(dateV)
			a.TimeValue = parseTimeCol(timeV)
			a.DatetimeValue = parseTimeCol(datetimeV)
			a.Latitude = floatPtr(lat)
			a.Longitude = floatPtr(lng)
			a.Altitude = floatPtr(alt)
			a.Accuracy = floatPtr(acc)
			n = a
		}
		nodes[id] = n
		recs = append(recs, rec{node: n, parentID: parentID.String})
	}
	if err := rows.Err(); err != nil {
		return err
	}

	for _, rc := range recs {
		if rc.parentID == "" {
			r.Root = rc.node.(*AnswerGroup)
			continue
		}
		p := nodes[rc.parentID]
		if p == nil {
			return errors.New("orphan answer node " + rc.node.Data().ID)
		}
		pd := p.Data()
		pd.Children = append(pd.Children, rc.node)
	}
	// restore sibling order; ranks were assigned at creation
	for _, n := range nodes {
		d := n.Data()
		sort.Slice(d.Children, func(i, j int) bool {
			return d.Children[i].Data().NewRank < d.Children[j].Data().NewRank
		})
	}
	if r.Root == nil {
		return errors.New("response has no root node")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || // sqlite
		strings.Contains(msg, "duplicate key") // postgres
}

func nullStr(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func nullTime(t *time.Time) sql.NullString {
	if t == nil {
		return sql.NullString{}
	}
	return sql.NullString{String: t.Format(time.RFC3339Nano), Valid: true}
}

func nullFloat(f *float64) sql.NullFloat64 {
	if f == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *f, Valid: true}
}

func parseTimeCol(v sql.NullString) *time.Time {
	if !v.Valid {
		return nil
	}
	t, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	return &t
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
