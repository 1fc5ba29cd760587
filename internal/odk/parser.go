package odk

import (
	"context"
	"errors"
	"strings"

	"github.com/fieldview/collect-server/internal/form"
	"github.com/fieldview/collect-server/internal/response"
	"github.com/fieldview/collect-server/internal/storage"
)

// irMarker is the reserved element carrying the incomplete-response flag; it
// is metadata, not an answer.
const irMarker = "ir01"

// FormGetter loads a fully indexed form definition.
type FormGetter interface {
	GetForm(ctx context.Context, id string) (*form.Form, error)
}

// ResponseStore is the persistence surface the parser needs: atomic tree
// creation, hash lookup for in-progress responses, and in-place answer
// patching for media follow-ups.
type ResponseStore interface {
	CreateWithTree(ctx context.Context, r *response.Response) error
	FindAwaitingByHash(ctx context.Context, hash, formID string) (*response.Response, error)
	UpdateAnswerMedia(ctx context.Context, a *response.Answer) error
	FinalizeMedia(ctx context.Context, responseID string) error
}

// Submission is the inbound envelope: the raw document plus any binary parts
// delivered in the same request. AwaitingMedia is set by the transport when
// the client announced more parts will follow.
type Submission struct {
	MissionID     string
	UserID        string
	XML           []byte
	Files         map[string]*File
	AwaitingMedia bool
}

// ResponseParser converts submissions into persisted answer trees. Parsing a
// single submission is synchronous and shares no mutable state, so one parser
// serves concurrent requests.
type ResponseParser struct {
	forms FormGetter
	store ResponseStore
	blobs storage.BlobStore
}

func NewResponseParser(forms FormGetter, store ResponseStore, blobs storage.BlobStore) *ResponseParser {
	return &ResponseParser{forms: forms, store: store, blobs: blobs}
}

// Parse ingests one submission. A document whose identity hash matches an
// in-progress response patches that response's pending media instead of
// building a second tree. Tree building is all-or-nothing: any unresolvable
// element aborts with nothing persisted.
func (p *ResponseParser) Parse(ctx context.Context, sub *Submission) (*response.Response, error) {
	doc, err := parseDocument(sub.XML)
	if err != nil {
		return nil, err
	}
	f, err := p.lookupAndCheckForm(ctx, doc)
	if err != nil {
		return nil, err
	}

	hash := IdentityHash(sub.XML)
	existing, err := p.store.FindAwaitingByHash(ctx, hash, f.ID)
	switch {
	case err == nil:
		return p.reconcileMedia(ctx, existing, f, sub.Files)
	case !errors.Is(err, response.ErrNotFound):
		return nil, err
	}

	resp := response.New(f.ID, sub.MissionID, sub.UserID)
	if sub.AwaitingMedia {
		resp.OdkHash = hash
		resp.AwaitingMedia = true
	}
	if err := p.buildAnswerTree(ctx, doc, f, resp, sub.Files); err != nil {
		return nil, err
	}
	resp.AssociateTree()

	if err := p.store.CreateWithTree(ctx, resp); err != nil {
		if errors.Is(err, response.ErrDuplicateSubmission) {
			// lost the create race against a concurrent chunk of the same
			// logical response; fall back to patching the winner
			existing, ferr := p.store.FindAwaitingByHash(ctx, hash, f.ID)
			if ferr != nil {
				return nil, err
			}
			return p.reconcileMedia(ctx, existing, f, sub.Files)
		}
		return nil, err
	}
	return resp, nil
}

// lookupAndCheckForm validates the envelope attributes on the document root:
// the form must exist, be published, and carry the submitted version code.
func (p *ResponseParser) lookupAndCheckForm(ctx context.Context, doc *element) (*form.Form, error) {
	formID := doc.attr("id")
	version := doc.attr("version")
	if formID == "" {
		return nil, submissionErrorf("no form id was given")
	}
	if version == "" {
		return nil, &FormVersionError{Reason: "form version must be specified"}
	}
	f, err := p.forms.GetForm(ctx, formID)
	if err != nil {
		return nil, err
	}
	cur := f.CurrentVersion()
	if cur == nil {
		return nil, &FormVersionError{Reason: "form has no published version"}
	}
	if cur.Code != version {
		return nil, &FormVersionError{Reason: "Form version is outdated"}
	}
	return f, nil
}

func (p *ResponseParser) buildAnswerTree(ctx context.Context, doc *element, f *form.Form, resp *response.Response, files map[string]*File) error {
	if f.Root == nil {
		return submissionErrorf("form %s has no root group", f.ID)
	}
	root := &response.AnswerGroup{NodeData: response.NewNodeData(f.Root.ID)}
	root.ResponseID = resp.ID
	root.NewRank = 1
	root.Rank = 1
	resp.Root = root

	w := &treeWalker{parser: p, form: f, resp: resp, files: files,
		sets: map[setKey]response.Node{}}
	return w.addLevel(ctx, doc, root)
}

// setKey identifies the single AnswerSet/AnswerGroupSet allowed per form item
// under one parent. Scoped to a single parse call.
type setKey struct {
	parent *response.NodeData
	itemID string
}

type treeWalker struct {
	parser *ResponseParser
	form   *form.Form
	resp   *response.Response
	files  map[string]*File
	sets   map[setKey]response.Node
}

// addLevel walks one XML level in lock-step with the form item tree, creating
// the matching response nodes under parent.
func (w *treeWalker) addLevel(ctx context.Context, el *element, parent response.Node) error {
	for _, child := range el.children {
		if isHeaderTag(child.name) {
			continue
		}
		if child.name == irMarker {
			w.resp.Incomplete = child.content() == "yes"
			continue
		}
		item, err := ResolveItem(child.name, w.form)
		if err != nil {
			return err
		}
		switch {
		case item.IsGroup() && item.Repeatable:
			if err := w.addRepeatInstance(ctx, child, item, parent); err != nil {
				return err
			}
		case item.IsGroup():
			if err := w.addGroup(ctx, child, item, parent); err != nil {
				return err
			}
		case item.Multilevel():
			if err := w.addAnswerSetMember(ctx, child, item, parent); err != nil {
				return err
			}
		case item.QType != "":
			if err := w.addAnswer(ctx, child.content(), item, parent); err != nil {
				return err
			}
		default:
			return &SubmissionError{
				Reason: "Submission contains item with no recognizable type.",
				Tag:    child.name,
				FormID: w.form.ID,
			}
		}
	}
	return nil
}

func (w *treeWalker) addRepeatInstance(ctx context.Context, el *element, item *form.Item, parent response.Node) error {
	groupSet := w.findOrCreateSet(item, parent, response.TypeAnswerGroupSet)
	group := &response.AnswerGroup{NodeData: w.newNodeData(item)}
	response.Attach(groupSet, group)
	return w.addLevel(ctx, el, group)
}

func (w *treeWalker) addGroup(ctx context.Context, el *element, item *form.Item, parent response.Node) error {
	group := &response.AnswerGroup{NodeData: w.newNodeData(item)}
	response.Attach(parent, group)
	return w.addLevel(ctx, el, group)
}

func (w *treeWalker) addAnswerSetMember(ctx context.Context, el *element, item *form.Item, parent response.Node) error {
	answerSet := w.findOrCreateSet(item, parent, response.TypeAnswerSet)
	return w.addAnswer(ctx, el.content(), item, answerSet)
}

func (w *treeWalker) addAnswer(ctx context.Context, content string, item *form.Item, parent response.Node) error {
	a := &response.Answer{NodeData: w.newNodeData(item)}
	response.Attach(parent, a)
	if form.IsMultimedia(item.QType) {
		return w.parser.attachOrDefer(ctx, a, content, item, w.files)
	}
	w.parser.castValue(a, content, item, w.form)
	return nil
}

// findOrCreateSet returns the container node for a multilevel question or
// repeating group under this parent, creating it on first sight. At most one
// exists per form item per parent.
func (w *treeWalker) findOrCreateSet(item *form.Item, parent response.Node, t response.NodeType) response.Node {
	key := setKey{parent: parent.Data(), itemID: item.ID}
	if set, ok := w.sets[key]; ok {
		return set
	}
	var set response.Node
	if t == response.TypeAnswerGroupSet {
		set = &response.AnswerGroupSet{NodeData: w.newNodeData(item)}
	} else {
		set = &response.AnswerSet{NodeData: w.newNodeData(item)}
	}
	response.Attach(parent, set)
	w.sets[key] = set
	return set
}

func (w *treeWalker) newNodeData(item *form.Item) response.NodeData {
	d := response.NewNodeData(item.ID)
	d.ResponseID = w.resp.ID
	return d
}

// reconcileMedia re-walks only the answers still marked pending on an
// existing response and patches those whose parts arrived with this request.
// The full builder is never re-run against a persisted response.
func (p *ResponseParser) reconcileMedia(ctx context.Context, resp *response.Response, f *form.Form, files map[string]*File) (*response.Response, error) {
	remaining := 0
	for _, a := range resp.PendingAnswers() {
		item := f.ItemByID(a.QuestioningID)
		if item == nil {
			remaining++
			continue
		}
		if err := p.attachOrDefer(ctx, a, a.PendingFileName, item, files); err != nil {
			return nil, err
		}
		if a.Pending() {
			remaining++
			continue
		}
		if err := p.store.UpdateAnswerMedia(ctx, a); err != nil {
			return nil, err
		}
	}
	if remaining == 0 && resp.AwaitingMedia {
		if err := p.store.FinalizeMedia(ctx, resp.ID); err != nil {
			return nil, err
		}
		resp.AwaitingMedia = false
		resp.OdkHash = ""
	}
	return resp, nil
}

// Structural headers demarcate one-screen groupings in the client; they carry
// no answers.
func isHeaderTag(name string) bool { return strings.Contains(name, "header") }
