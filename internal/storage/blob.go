package storage

import "io"

// BlobStore holds submitted media bytes. Keys are slash-separated paths of
// the form responses/<responseID>/<answerID>/<filename>.
type BlobStore interface {
	Put(key string, r io.Reader) (string, error) // returns canonical key
	Get(key string) (io.ReadCloser, error)
	SignedURL(key string) (string, error) // fs returns "file://..." for dev
}
