package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/fieldview/collect-server/internal/response"
)

func ListResponsesHandler(store *response.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts := response.ListOpts{
			FormID:    strings.TrimSpace(r.URL.Query().Get("form_id")),
			MissionID: strings.TrimSpace(r.URL.Query().Get("mission")),
			Limit:     parseIntDefault(r.URL.Query().Get("limit"), 50),
			Offset:    parseIntDefault(r.URL.Query().Get("offset"), 0),
		}
		list, err := store.List(r.Context(), opts)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}
}

func GetResponseHandler(store *response.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		resp, err := store.Get(r.Context(), chi.URLParam(r, "responseID"))
		if err != nil {
			if errors.Is(err, response.ErrNotFound) {
				http.Error(w, "response not found", 404)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(responseView(resp))
	}
}

// nodeView flattens the node union into one JSON shape with a type tag.
type nodeView struct {
	Type          string            `json:"type"`
	ID            string            `json:"id"`
	QuestioningID string            `json:"questioning_id"`
	NewRank       int               `json:"new_rank"`
	Rank          int               `json:"rank"`
	InstNum       int               `json:"inst_num"`
	Value         string            `json:"value,omitempty"`
	OptionID      string            `json:"option_id,omitempty"`
	Choices       []response.Choice `json:"choices,omitempty"`
	Pending       string            `json:"pending_file_name,omitempty"`
	Media         *response.Media   `json:"media,omitempty"`
	Children      []nodeView        `json:"children,omitempty"`
}

func responseView(resp *response.Response) map[string]any {
	out := map[string]any{
		"id":             resp.ID,
		"form_id":        resp.FormID,
		"mission_id":     resp.MissionID,
		"user_id":        resp.UserID,
		"source":         resp.Source,
		"incomplete":     resp.Incomplete,
		"awaiting_media": resp.AwaitingMedia,
		"created_at":     resp.CreatedAt,
	}
	if resp.Root != nil {
		out["root"] = viewNode(resp.Root)
	}
	return out
}

func viewNode(n response.Node) nodeView {
	d := n.Data()
	v := nodeView{
		Type:          string(n.Type()),
		ID:            d.ID,
		QuestioningID: d.QuestioningID,
		NewRank:       d.NewRank,
		Rank:          d.Rank,
		InstNum:       d.InstNum,
	}
	if a, ok := n.(*response.Answer); ok {
		v.Value = a.Value
		v.OptionID = a.OptionID
		v.Choices = a.Choices
		v.Pending = a.PendingFileName
		v.Media = a.Media
	}
	for _, c := range d.Children {
		v.Children = append(v.Children, viewNode(c))
	}
	return v
}

func parseIntDefault(s string, def int) int {
	if s == "" {
		return def
	}
	if v, err := strconv.Atoi(s); err == nil && v >= 0 {
		return v
	}
	return def
}
