package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/fieldview/collect-server/internal/audit"
	"github.com/fieldview/collect-server/internal/form"
)

// UploadFormHandler stores a form definition aggregate posted as JSON.
func UploadFormHandler(store *form.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var f form.Form
		if err := json.NewDecoder(r.Body).Decode(&f); err != nil {
			http.Error(w, "bad json", 400)
			return
		}
		if f.Root == nil {
			http.Error(w, "root item required", 400)
			return
		}
		if f.ID == "" {
			f.ID = uuid.NewString()
		}
		if f.Root.ID == "" {
			f.Root.ID = uuid.NewString()
		}
		if err := store.PutForm(r.Context(), &f); err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"form_id": f.ID})
	}
}

func GetFormHandler(store *form.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		f, err := store.GetForm(r.Context(), chi.URLParam(r, "formID"))
		if err != nil {
			if errors.Is(err, form.ErrNotFound) {
				http.Error(w, "form not found", 404)
				return
			}
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(f)
	}
}

func ListFormsHandler(store *form.SQLStore) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		mission := strings.TrimSpace(r.URL.Query().Get("mission"))
		list, err := store.ListForms(r.Context(), mission)
		if err != nil {
			http.Error(w, err.Error(), 500)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(list)
	}
}

// PublishFormHandler publishes the form, creating a version code clients
// must echo back in submissions. ?upgrade=1 forces a new code.
func PublishFormHandler(store *form.SQLStore, events *audit.EventRepo) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "formID")
		if r.URL.Query().Get("upgrade") != "" {
			if _, err := store.FlagForUpgrade(r.Context(), id); err != nil {
				writeFormError(w, err)
				return
			}
		}
		f, err := store.Publish(r.Context(), id)
		if err != nil {
			writeFormError(w, err)
			return
		}
		ver := f.CurrentVersion()
		data, _ := json.Marshal(map[string]any{"version_code": ver.Code, "sequence": ver.Sequence})
		_ = events.Append(r.Context(), audit.Event{
			Type: audit.EventFormPublished, Key: f.ID, DataJSON: string(data),
		})
		_ = json.NewEncoder(w).Encode(map[string]any{
			"form_id": f.ID, "version_code": ver.Code, "sequence": ver.Sequence,
		})
	}
}

func writeFormError(w http.ResponseWriter, err error) {
	if errors.Is(err, form.ErrNotFound) {
		http.Error(w, "form not found", 404)
		return
	}
	http.Error(w, err.Error(), 500)
}
