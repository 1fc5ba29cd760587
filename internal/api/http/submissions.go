package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"

	"github.com/fieldview/collect-server/internal/audit"
	authmw "github.com/fieldview/collect-server/internal/auth/middleware"
	"github.com/fieldview/collect-server/internal/form"
	"github.com/fieldview/collect-server/internal/odk"
)

const (
	openRosaVersion  = "1.0"
	xmlPartName      = "xml_submission_file"
	incompleteField  = "*isIncomplete*"
	openRosaAccepted = `<?xml version="1.0" encoding="UTF-8"?><OpenRosaResponse xmlns="http://openrosa.org/http/response"><message>Submission accepted</message></OpenRosaResponse>`
)

// HeadSubmissionHandler answers the OpenRosa preflight clients send before
// posting.
func HeadSubmissionHandler() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-OpenRosa-Version", openRosaVersion)
		w.Header().Set("X-OpenRosa-Accept-Content-Length", "104857600")
		w.WriteHeader(http.StatusNoContent)
	}
}

// SubmissionHandler ingests one OpenRosa multipart submission: the XML part
// plus zero or more named binary parts. Clients chunking large media post the
// identical XML repeatedly with the incomplete field set on all but the last
// request.
func SubmissionHandler(parser *odk.ResponseParser, events *audit.EventRepo, maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-OpenRosa-Version", openRosaVersion)

		r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		if err := r.ParseMultipartForm(32 << 20); err != nil {
			http.Error(w, "multipart body required", http.StatusBadRequest)
			return
		}

		sub := &odk.Submission{
			MissionID:     r.URL.Query().Get("mission"),
			UserID:        authmw.SubjectFromContext(r.Context()),
			Files:         map[string]*odk.File{},
			AwaitingMedia: r.FormValue(incompleteField) != "",
		}
		for name, headers := range r.MultipartForm.File {
			for _, hdr := range headers {
				f, err := hdr.Open()
				if err != nil {
					http.Error(w, "read part: "+err.Error(), http.StatusBadRequest)
					return
				}
				content, err := io.ReadAll(f)
				f.Close()
				if err != nil {
					http.Error(w, "read part: "+err.Error(), http.StatusBadRequest)
					return
				}
				if name == xmlPartName {
					sub.XML = content
					continue
				}
				fileName := hdr.Filename
				if fileName == "" {
					fileName = name
				}
				sub.Files[fileName] = &odk.File{
					Name:        fileName,
					ContentType: hdr.Header.Get("Content-Type"),
					Content:     content,
				}
			}
		}
		if len(sub.XML) == 0 {
			http.Error(w, xmlPartName+" part required", http.StatusBadRequest)
			return
		}

		resp, err := parser.Parse(r.Context(), sub)
		if err != nil {
			writeSubmissionError(w, err)
			return
		}

		data, _ := json.Marshal(map[string]any{
			"form_id": resp.FormID, "awaiting_media": resp.AwaitingMedia, "incomplete": resp.Incomplete,
		})
		if err := events.Append(r.Context(), audit.Event{
			Type: audit.EventSubmissionAccepted, Key: resp.ID, DataJSON: string(data),
		}); err != nil {
			log.Printf("audit append failed for response %s: %v", resp.ID, err)
		}

		w.Header().Set("Content-Type", "text/xml; charset=utf-8")
		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, openRosaAccepted)
	}
}

func writeSubmissionError(w http.ResponseWriter, err error) {
	var verr *odk.FormVersionError
	var serr *odk.SubmissionError
	switch {
	case errors.As(err, &verr):
		// stale client: re-fetch the form and retry
		http.Error(w, verr.Error(), http.StatusUpgradeRequired)
	case errors.As(err, &serr):
		http.Error(w, serr.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, form.ErrNotFound):
		http.Error(w, "form not found", http.StatusNotFound)
	default:
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
