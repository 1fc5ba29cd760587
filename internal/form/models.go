package form

// A Form is the full definition aggregate: the item tree, option sets, and
// version history. It is stored as one JSON document and indexed in memory
// before parsing submissions against it.
type Form struct {
	ID            string       `json:"id"`
	LegacyID      string       `json:"legacy_id,omitempty"`
	MissionID     string       `json:"mission_id"`
	Name          string       `json:"name"`
	Published     bool         `json:"published"`
	UpgradeNeeded bool         `json:"upgrade_needed,omitempty"`
	Versions      []Version    `json:"versions,omitempty"`
	Root          *Item        `json:"root"`
	OptionSets    []*OptionSet `json:"option_sets,omitempty"`

	itemsByID        map[string]*Item
	itemsByQID       map[string]*Item
	itemsByLegacyQID map[string]*Item
	optionNodesByID  map[string]*OptionNode
	legacyNodesByID  map[string]*OptionNode
	optionSetsByID   map[string]*OptionSet
	optionIDs        map[string]bool
}

// A Version is one published snapshot marker. Codes are short random strings
// sent to clients; a stale code means the client must re-fetch the form.
type Version struct {
	Code     string `json:"code"`
	Sequence int    `json:"sequence"`
	Current  bool   `json:"current"`
}

// An Item is a node in the form's definition tree: a question, a group, or a
// repeating group. QuestionID points at the underlying reusable question;
// LegacyQuestionID carries the pre-migration key some old clients still send.
type Item struct {
	ID               string  `json:"id"`
	FormID           string  `json:"form_id,omitempty"`
	QuestionID       string  `json:"question_id,omitempty"`
	LegacyQuestionID string  `json:"legacy_question_id,omitempty"`
	Name             string  `json:"name,omitempty"`
	QType            string  `json:"qtype,omitempty"` // empty for groups
	Group            bool    `json:"group,omitempty"`
	Repeatable       bool    `json:"repeatable,omitempty"`
	OptionSetID      string  `json:"option_set_id,omitempty"`
	Children         []*Item `json:"children,omitempty"`

	optionSet *OptionSet
}

type OptionSet struct {
	ID       string        `json:"id"`
	Name     string        `json:"name,omitempty"`
	Levels   []string      `json:"levels,omitempty"` // >1 means multilevel (cascading)
	Children []*OptionNode `json:"children,omitempty"`
}

type OptionNode struct {
	ID       string        `json:"id"`
	LegacyID string        `json:"legacy_id,omitempty"`
	OptionID string        `json:"option_id"`
	Name     string        `json:"name,omitempty"`
	Children []*OptionNode `json:"children,omitempty"`
}

func (it *Item) IsGroup() bool { return it.Group }

// Multilevel reports whether the item is a cascading select answered one
// level at a time. Only meaningful after Form.Index.
func (it *Item) Multilevel() bool {
	return it.optionSet != nil && len(it.optionSet.Levels) > 1
}

// LevelCount returns the number of cascade levels, or 1 for plain selects.
func (it *Item) LevelCount() int {
	if it.optionSet == nil || len(it.optionSet.Levels) == 0 {
		return 1
	}
	return len(it.optionSet.Levels)
}

func (it *Item) OptionSet() *OptionSet { return it.optionSet }

// CurrentVersion returns the version marked current, or nil if the form has
// never been published.
func (f *Form) CurrentVersion() *Version {
	for i := range f.Versions {
		if f.Versions[i].Current {
			return &f.Versions[i]
		}
	}
	return nil
}

// Index builds the lookup maps used during submission parsing. It must be
// called after loading or mutating the aggregate and before any lookups.
func (f *Form) Index() {
	f.itemsByID = map[string]*Item{}
	f.itemsByQID = map[string]*Item{}
	f.itemsByLegacyQID = map[string]*Item{}
	f.optionNodesByID = map[string]*OptionNode{}
	f.legacyNodesByID = map[string]*OptionNode{}
	f.optionSetsByID = map[string]*OptionSet{}
	f.optionIDs = map[string]bool{}

	for _, os := range f.OptionSets {
		f.optionSetsByID[os.ID] = os
		var walk func(ns []*OptionNode)
		walk = func(ns []*OptionNode) {
			for _, n := range ns {
				f.optionNodesByID[n.ID] = n
				if n.LegacyID != "" {
					f.legacyNodesByID[n.LegacyID] = n
				}
				f.optionIDs[n.OptionID] = true
				walk(n.Children)
			}
		}
		walk(os.Children)
	}

	var walk func(it *Item)
	walk = func(it *Item) {
		f.itemsByID[it.ID] = it
		if it.QuestionID != "" {
			f.itemsByQID[it.QuestionID] = it
		}
		if it.LegacyQuestionID != "" {
			f.itemsByLegacyQID[it.LegacyQuestionID] = it
		}
		if it.OptionSetID != "" {
			it.optionSet = f.optionSetsByID[it.OptionSetID]
		}
		for _, c := range it.Children {
			walk(c)
		}
	}
	if f.Root != nil {
		walk(f.Root)
	}
}

// ItemByID looks up a form item by its own identifier.
func (f *Form) ItemByID(id string) *Item { return f.itemsByID[id] }

// ItemByQuestionID looks up a form item by the identifier of the question it
// wraps. Used by the legacy q-prefix code fallback.
func (f *Form) ItemByQuestionID(qid string) *Item { return f.itemsByQID[qid] }

// ItemByLegacyQuestionID looks up by the pre-migration question key. The key
// is opaque here; it only matters that old clients and the definition agree.
func (f *Form) ItemByLegacyQuestionID(qid string) *Item { return f.itemsByLegacyQID[qid] }

// OptionIDForNodeID resolves an option node id (current or legacy) to the
// option it carries. Returns "" when unknown.
func (f *Form) OptionIDForNodeID(nodeID string) string {
	if n, ok := f.optionNodesByID[nodeID]; ok {
		return n.OptionID
	}
	if n, ok := f.legacyNodesByID[nodeID]; ok {
		return n.OptionID
	}
	return ""
}

// HasOption reports whether any option node in the form carries this option.
func (f *Form) HasOption(optionID string) bool { return f.optionIDs[optionID] }

// OptionNodeByID returns the node for an id (current or legacy), or nil.
func (f *Form) OptionNodeByID(nodeID string) *OptionNode {
	if n, ok := f.optionNodesByID[nodeID]; ok {
		return n
	}
	return f.legacyNodesByID[nodeID]
}
