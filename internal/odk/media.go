package odk

import (
	"bytes"
	"context"
	"net/http"
	"path"

	"github.com/fieldview/collect-server/internal/form"
	"github.com/fieldview/collect-server/internal/response"
)

// File is one named binary part delivered alongside the submission document.
type File struct {
	Name        string
	ContentType string
	Content     []byte
}

// attachOrDefer resolves one multimedia answer against the parts delivered
// with the current request. A present part with an acceptable content type is
// stored and attached; anything else leaves the answer pending for a later
// request. Unsupported content types are discarded, never fatal.
func (p *ResponseParser) attachOrDefer(ctx context.Context, a *response.Answer, fileName string, item *form.Item, files map[string]*File) error {
	f, ok := files[fileName]
	if !ok {
		a.SetPending(fileName)
		return nil
	}
	kind := form.MediaKind(item.QType)
	ct := f.ContentType
	if ct == "" {
		ct = http.DetectContentType(f.Content)
	}
	if !contentTypeMatches(kind, ct) {
		a.SetPending(fileName)
		return nil
	}
	key := path.Join("responses", a.ResponseID, a.ID, fileName)
	if _, err := p.blobs.Put(key, bytes.NewReader(f.Content)); err != nil {
		return err
	}
	a.SetMedia(&response.Media{
		Kind:        kind,
		Key:         key,
		FileName:    fileName,
		ContentType: ct,
		Size:        int64(len(f.Content)),
	})
	return nil
}

func contentTypeMatches(kind, contentType string) bool {
	switch kind {
	case "image":
		return hasPrefixFold(contentType, "image/")
	case "audio":
		return hasPrefixFold(contentType, "audio/")
	case "video":
		return hasPrefixFold(contentType, "video/")
	default:
		return false
	}
}

func hasPrefixFold(s, prefix string) bool {
	return len(s) >= len(prefix) && bytes.EqualFold([]byte(s[:len(prefix)]), []byte(prefix))
}
