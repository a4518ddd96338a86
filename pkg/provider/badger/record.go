package badger

import (
	"encoding/json"
	"fmt"
	"time"
)

// Record classes understood by the registered capability factories.
const (
	ClassFolder = "folder"
	ClassBlob   = "blob"
)

// Record is one stored object.
//
// Class selects how the record is specialized when browsed: folders list
// their children, blobs whose name has a kind provider are opened through
// the registry, everything else is a leaf.
//
// Body is stored under its own key, apart from the metadata, so listings
// never read it.
type Record struct {
	Class    string    `json:"class"`
	Size     int64     `json:"size"`
	Modified time.Time `json:"modified"`
	Body     []byte    `json:"-"`
}

// SizeHint implements browsable.SizeHinter. Folders have no size.
func (r Record) SizeHint() (int64, bool) {
	if r.Class == ClassFolder {
		return 0, false
	}
	return r.Size, true
}

// ModTime returns the modification time of the record.
func (r Record) ModTime() time.Time {
	return r.Modified
}

func encodeRecord(r Record) ([]byte, error) {
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("failed to encode record: %w", err)
	}
	return data, nil
}

func decodeRecord(data []byte) (Record, error) {
	var r Record
	if err := json.Unmarshal(data, &r); err != nil {
		return Record{}, fmt.Errorf("failed to decode record: %w", err)
	}
	return r, nil
}
