package domain

// FileRecord is the fingerprint of a file as last observed.
// A record with Missing set describes a path that did not exist.
type FileRecord struct {
	Size    int64  `json:"size,omitzero"`
	ModTime int64  `json:"mtime,omitzero"`
	Hash    uint64 `json:"hash,omitzero"`
	Missing bool   `json:"missing,omitzero"`
}

// SameStamp reports whether size and modification time match.
func (r FileRecord) SameStamp(other FileRecord) bool {
	return r.Size == other.Size && r.ModTime == other.ModTime && r.Missing == other.Missing
}
