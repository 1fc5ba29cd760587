package odk

import (
	"github.com/fieldview/collect-server/internal/form"
)

// ResolveItem maps a submission tag name to the form item it addresses within
// the given form. Identifier collisions across recreated or cloned forms are
// rejected: an item that decodes but belongs to another form is an error, not
// a silent mismatch.
func ResolveItem(tag string, f *form.Form) (*form.Item, error) {
	id, err := ItemIDForCode(tag, f)
	if err != nil {
		return nil, err
	}
	item := f.ItemByID(id)
	if item == nil {
		return nil, &SubmissionError{
			Reason: "Submission contains unidentifiable group or question.",
			Tag:    tag,
			FormID: f.ID,
		}
	}
	if item.FormID != "" && item.FormID != f.ID {
		return nil, &SubmissionError{
			Reason: "Submission contains group or question not found in form.",
			Tag:    tag,
			FormID: f.ID,
		}
	}
	return item, nil
}
