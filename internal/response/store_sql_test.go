package response

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/fieldview/collect-server/internal/db"
	"github.com/fieldview/collect-server/internal/form"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	h, err := sql.Open("sqlite", "file:"+t.Name()+"?mode=memory&cache=shared")
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	// single conn keeps the shared-memory DB and pragmas alive for the test
	h.SetMaxOpenConns(1)
	if err := db.EnsureSchema(context.Background(), h, db.DriverSQLite); err != nil {
		t.Fatalf("schema: %v", err)
	}
	t.Cleanup(func() { h.Close() })
	return h
}

func seedForm(t *testing.T, h *sql.DB, id string) {
	t.Helper()
	fs := form.NewSQLStore(h, "sqlite")
	f := &form.Form{ID: id, Name: "store test", Root: &form.Item{ID: "root", Group: true}}
	if err := fs.PutForm(context.Background(), f); err != nil {
		t.Fatalf("seed form: %v", err)
	}
}

// sampleTree builds a response exercising every node variant and answer field.
func sampleTree(formID string) *Response {
	r := New(formID, "m1", "u1")
	root := &AnswerGroup{NodeData: NewNodeData("root")}
	root.NewRank = 1
	root.Rank = 1
	r.Root = root

	text := &Answer{NodeData: NewNodeData("a1"), Value: "hello"}
	Attach(root, text)

	multi := &Answer{NodeData: NewNodeData("a2"),
		Choices: []Choice{{OptionID: "o1"}, {OptionID: "o2"}}}
	Attach(root, multi)

	dt := time.Date(2017, 7, 12, 13, 40, 0, 0, time.UTC)
	when := &Answer{NodeData: NewNodeData("a3"), DatetimeValue: &dt}
	Attach(root, when)

	lat, lng := 12.3456, -76.99388
	loc := &Answer{NodeData: NewNodeData("a4"), Value: "12.3456 -76.99388",
		Latitude: &lat, Longitude: &lng}
	Attach(root, loc)

	set := &AnswerGroupSet{NodeData: NewNodeData("g1")}
	Attach(root, set)
	for i := 0; i < 2; i++ {
		grp := &AnswerGroup{NodeData: NewNodeData("g1")}
		Attach(set, grp)
		Attach(grp, &Answer{NodeData: NewNodeData("a5"), Value: "inst"})
	}

	pend := &Answer{NodeData: NewNodeData("a6")}
	pend.SetPending("photo.jpg")
	Attach(root, pend)

	r.AssociateTree()
	return r
}

func TestCreateAndGetTree(t *testing.T) {
	h := openTestDB(t)
	seedForm(t, h, "f1")
	store := NewSQLStore(h, "sqlite")
	ctx := context.Background()

	r := sampleTree("f1")
	if err := store.CreateWithTree(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	got, err := store.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.FormID != "f1" || got.MissionID != "m1" || got.UserID != "u1" || got.Source != "odk" {
		t.Errorf("envelope mismatch: %+v", got)
	}
	kids := got.Root.Children
	if len(kids) != 6 {
		t.Fatalf("expected 6 root children, got %d", len(kids))
	}
	for i, c := range kids {
		if c.Data().NewRank != i+1 {
			t.Errorf("child %d out of order: new_rank %d", i, c.Data().NewRank)
		}
	}
	if a := kids[0].(*Answer); a.Value != "hello" {
		t.Errorf("text answer: %q", a.Value)
	}
	if a := kids[1].(*Answer); len(a.Choices) != 2 || a.Choices[1].OptionID != "o2" {
		t.Errorf("choices: %+v", a.Choices)
	}
	if a := kids[2].(*Answer); a.DatetimeValue == nil ||
		!a.DatetimeValue.Equal(time.Date(2017, 7, 12, 13, 40, 0, 0, time.UTC)) {
		t.Errorf("datetime round trip: %v", kids[2].(*Answer).DatetimeValue)
	}
	if a := kids[3].(*Answer); a.Latitude == nil || *a.Latitude != 12.3456 || *a.Longitude != -76.99388 {
		t.Errorf("location round trip: %+v", a)
	}
	set, ok := kids[4].(*AnswerGroupSet)
	if !ok {
		t.Fatalf("expected group set, got %s", kids[4].Type())
	}
	if len(set.Children) != 2 {
		t.Fatalf("expected 2 instances, got %d", len(set.Children))
	}
	for i, g := range set.Children {
		if g.Type() != TypeAnswerGroup || g.Data().InstNum != i+1 {
			t.Errorf("instance %d: type %s inst %d", i, g.Type(), g.Data().InstNum)
		}
		if len(g.Data().Children) != 1 {
			t.Errorf("instance %d: expected 1 answer", i)
		}
	}
	if a := kids[5].(*Answer); !a.Pending() || a.PendingFileName != "photo.jpg" {
		t.Errorf("pending answer: %+v", a)
	}
}

func TestCreateDuplicateHash(t *testing.T) {
	h := openTestDB(t)
	seedForm(t, h, "f1")
	store := NewSQLStore(h, "sqlite")
	ctx := context.Background()

	first := sampleTree("f1")
	first.OdkHash = "hash1"
	first.AwaitingMedia = true
	if err := store.CreateWithTree(ctx, first); err != nil {
		t.Fatalf("create: %v", err)
	}

	second := sampleTree("f1")
	second.OdkHash = "hash1"
	second.AwaitingMedia = true
	if err := store.CreateWithTree(ctx, second); !errors.Is(err, ErrDuplicateSubmission) {
		t.Fatalf("expected ErrDuplicateSubmission, got %v", err)
	}

	// hashless responses never collide
	third := sampleTree("f1")
	if err := store.CreateWithTree(ctx, third); err != nil {
		t.Fatalf("hashless create: %v", err)
	}
	fourth := sampleTree("f1")
	if err := store.CreateWithTree(ctx, fourth); err != nil {
		t.Fatalf("second hashless create: %v", err)
	}
}

func TestFindAwaitingAndFinalize(t *testing.T) {
	h := openTestDB(t)
	seedForm(t, h, "f1")
	store := NewSQLStore(h, "sqlite")
	ctx := context.Background()

	r := sampleTree("f1")
	r.OdkHash = "hash1"
	r.AwaitingMedia = true
	if err := store.CreateWithTree(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}

	found, err := store.FindAwaitingByHash(ctx, "hash1", "f1")
	if err != nil {
		t.Fatalf("find: %v", err)
	}
	if found.ID != r.ID || found.Root == nil {
		t.Fatal("found response should load with its tree")
	}
	if _, err := store.FindAwaitingByHash(ctx, "hash1", "other"); !errors.Is(err, ErrNotFound) {
		t.Errorf("hash lookup must be scoped to the form, got %v", err)
	}

	if err := store.FinalizeMedia(ctx, r.ID); err != nil {
		t.Fatalf("finalize: %v", err)
	}
	if _, err := store.FindAwaitingByHash(ctx, "hash1", "f1"); !errors.Is(err, ErrNotFound) {
		t.Errorf("finalized response must not match by hash, got %v", err)
	}

	// the slot frees up: a new in-progress response may reuse the hash
	again := sampleTree("f1")
	again.OdkHash = "hash1"
	again.AwaitingMedia = true
	if err := store.CreateWithTree(ctx, again); err != nil {
		t.Fatalf("create after finalize: %v", err)
	}
}

func TestUpdateAnswerMedia(t *testing.T) {
	h := openTestDB(t)
	seedForm(t, h, "f1")
	store := NewSQLStore(h, "sqlite")
	ctx := context.Background()

	r := sampleTree("f1")
	if err := store.CreateWithTree(ctx, r); err != nil {
		t.Fatalf("create: %v", err)
	}
	pend := r.PendingAnswers()[0]
	pend.SetMedia(&Media{Kind: "image", Key: "responses/x/y/photo.jpg",
		FileName: "photo.jpg", ContentType: "image/jpeg", Size: 3})
	if err := store.UpdateAnswerMedia(ctx, pend); err != nil {
		t.Fatalf("update: %v", err)
	}

	got, err := store.Get(ctx, r.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if len(got.PendingAnswers()) != 0 {
		t.Error("no answers should remain pending")
	}
	var patched *Answer
	for _, a := range got.Answers() {
		if a.ID == pend.ID {
			patched = a
		}
	}
	if patched == nil || patched.Media == nil || patched.Media.Key != "responses/x/y/photo.jpg" {
		t.Fatalf("patched answer: %+v", patched)
	}
}

func TestListFilters(t *testing.T) {
	h := openTestDB(t)
	seedForm(t, h, "f1")
	seedForm(t, h, "f2")
	store := NewSQLStore(h, "sqlite")
	ctx := context.Background()

	a := sampleTree("f1")
	b := sampleTree("f2")
	b.MissionID = "m2"
	for _, r := range []*Response{a, b} {
		if err := store.CreateWithTree(ctx, r); err != nil {
			t.Fatalf("create: %v", err)
		}
	}

	all, err := store.List(ctx, ListOpts{})
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 2 {
		t.Fatalf("expected 2, got %d", len(all))
	}
	onlyF1, err := store.List(ctx, ListOpts{FormID: "f1"})
	if err != nil {
		t.Fatalf("list f1: %v", err)
	}
	if len(onlyF1) != 1 || onlyF1[0].ID != a.ID {
		t.Errorf("form filter: %+v", onlyF1)
	}
	onlyM2, err := store.List(ctx, ListOpts{MissionID: "m2"})
	if err != nil {
		t.Fatalf("list m2: %v", err)
	}
	if len(onlyM2) != 1 || onlyM2[0].ID != b.ID {
		t.Errorf("mission filter: %+v", onlyM2)
	}
}
