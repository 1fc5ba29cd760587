package response

import (
	"time"

	"github.com/google/uuid"
)

// NodeType tags the closed set of response node variants. The variant for a
// given form item is fixed: plain question -> Answer, multilevel question ->
// AnswerSet, group -> AnswerGroup, repeating group -> AnswerGroupSet.
type NodeType string

const (
	TypeAnswer         NodeType = "Answer"
	TypeAnswerSet      NodeType = "AnswerSet"
	TypeAnswerGroup    NodeType = "AnswerGroup"
	TypeAnswerGroupSet NodeType = "AnswerGroupSet"
)

// Node is one node in a response's answer tree.
type Node interface {
	Type() NodeType
	Data() *NodeData
}

// NodeData is the part shared by all variants. NewRank is the 1-based sibling
// order assigned at creation time. Rank duplicates NewRank and is kept only
// for multilevel backward compatibility. InstNum is the repeat-instance
// number the node belongs to (1 outside repeat groups).
type NodeData struct {
	ID            string `json:"id"`
	ResponseID    string `json:"response_id,omitempty"`
	QuestioningID string `json:"questioning_id"`
	NewRank       int    `json:"new_rank"`
	Rank          int    `json:"rank"`
	InstNum       int    `json:"inst_num"`
	Children      []Node `json:"-"`
}

func (d *NodeData) Data() *NodeData { return d }

// AnswerGroup is one instance of a (possibly repeating) group of items.
type AnswerGroup struct{ NodeData }

// AnswerGroupSet is the collection of instances of one repeating group. Its
// children are AnswerGroups, ranked by instance number.
type AnswerGroupSet struct{ NodeData }

// AnswerSet holds the per-level sub-answers of one multilevel (cascading
// select) question, one Answer per level in level order.
type AnswerSet struct{ NodeData }

// Answer is a leaf value for one question or one cascade level of one.
// Media and PendingFileName are mutually exclusive: a pending answer records
// the filename it is waiting for and carries no payload.
type Answer struct {
	NodeData
	Value           string     `json:"value,omitempty"`
	OptionID        string     `json:"option_id,omitempty"`
	Choices         []Choice   `json:"choices,omitempty"`
	DateValue       *time.Time `json:"date_value,omitempty"`
	TimeValue       *time.Time `json:"time_value,omitempty"`
	DatetimeValue   *time.Time `json:"datetime_value,omitempty"`
	Latitude        *float64   `json:"latitude,omitempty"`
	Longitude       *float64   `json:"longitude,omitempty"`
	Altitude        *float64   `json:"altitude,omitempty"`
	Accuracy        *float64   `json:"accuracy,omitempty"`
	PendingFileName string     `json:"pending_file_name,omitempty"`
	Media           *Media     `json:"media,omitempty"`
}

// Choice is one selected option of a select_multiple answer.
type Choice struct {
	OptionID string `json:"option_id"`
}

// Media is an attached binary payload, stored in the blob store under Key.
type Media struct {
	Kind        string `json:"kind"` // image|audio|video
	Key         string `json:"key"`
	FileName    string `json:"file_name"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

func (*AnswerGroup) Type() NodeType    { return TypeAnswerGroup }
func (*AnswerGroupSet) Type() NodeType { return TypeAnswerGroupSet }
func (*AnswerSet) Type() NodeType      { return TypeAnswerSet }
func (*Answer) Type() NodeType         { return TypeAnswer }

// NewNodeData allocates shared fields for a fresh node.
func NewNodeData(questioningID string) NodeData {
	return NodeData{ID: uuid.NewString(), QuestioningID: questioningID, InstNum: 1}
}

// Attach appends child under parent, assigning the next sibling rank. A group
// instance joining a group set takes its own rank as instance number; every
// other node inherits the instance number of its parent.
func Attach(parent, child Node) {
	pd, cd := parent.Data(), child.Data()
	cd.NewRank = len(pd.Children) + 1
	cd.Rank = cd.NewRank
	if parent.Type() == TypeAnswerGroupSet {
		cd.InstNum = cd.NewRank
	} else {
		cd.InstNum = pd.InstNum
	}
	pd.Children = append(pd.Children, child)
}

// Walk visits n and all descendants depth-first in rank order.
func Walk(n Node, fn func(Node)) {
	fn(n)
	for _, c := range n.Data().Children {
		Walk(c, fn)
	}
}

// SetMedia attaches a payload and clears the pending marker.
func (a *Answer) SetMedia(m *Media) {
	a.Media = m
	a.PendingFileName = ""
}

// SetPending records the awaited filename and drops any payload and value.
func (a *Answer) SetPending(fileName string) {
	a.Media = nil
	a.Value = ""
	a.PendingFileName = fileName
}

func (a *Answer) Pending() bool { return a.PendingFileName != "" }
