package response

import (
	"time"

	"github.com/google/uuid"
)

// Response is one logical submission: a single root AnswerGroup plus envelope
// fields. OdkHash is set only while the response still awaits media parts; it
// is the idempotency key correlating follow-up requests.
type Response struct {
	ID            string    `json:"id"`
	FormID        string    `json:"form_id"`
	MissionID     string    `json:"mission_id"`
	UserID        string    `json:"user_id,omitempty"`
	Source        string    `json:"source"`
	OdkHash       string    `json:"odk_hash,omitempty"`
	Incomplete    bool      `json:"incomplete"`
	AwaitingMedia bool      `json:"awaiting_media"`
	CreatedAt     time.Time `json:"created_at"`
	Root          *AnswerGroup
}

func New(formID, missionID, userID string) *Response {
	return &Response{
		ID:        uuid.NewString(),
		FormID:    formID,
		MissionID: missionID,
		UserID:    userID,
		Source:    "odk",
		CreatedAt: time.Now().UTC(),
	}
}

// AssociateTree stamps the response id onto every node of the tree. Nodes are
// never shared between responses.
func (r *Response) AssociateTree() {
	if r.Root == nil {
		return
	}
	Walk(r.Root, func(n Node) { n.Data().ResponseID = r.ID })
}

// Answers returns all leaf answers in tree order.
func (r *Response) Answers() []*Answer {
	var out []*Answer
	if r.Root == nil {
		return out
	}
	Walk(r.Root, func(n Node) {
		if a, ok := n.(*Answer); ok {
			out = append(out, a)
		}
	})
	return out
}

// PendingAnswers returns answers still awaiting a media part.
func (r *Response) PendingAnswers() []*Answer {
	var out []*Answer
	for _, a := range r.Answers() {
		if a.Pending() {
			out = append(out, a)
		}
	}
	return out
}
