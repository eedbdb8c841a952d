// Package correction defines the per-(law, version) correction record
// model: table records keyed by content hash, the review status state
// machine, and the file-level completion rule the renderer relies on.
package correction

import (
	"encoding/json"
	"sort"
)

// Status is the review disposition of one extracted table.
type Status string

const (
	// StatusUndefined is the initial state of every freshly extracted table.
	StatusUndefined Status = "undefined"
	// StatusConfirmed accepts the extracted structure as-is.
	StatusConfirmed Status = "confirmed_without_changes"
	// StatusEdited accepts the table with a corrected structure.
	StatusEdited Status = "confirmed_with_changes"
	// StatusRejected marks the candidate as not a real table; the renderer
	// flattens its cells back into paragraphs.
	StatusRejected Status = "rejected"
	// StatusMerged folds the table into another record in the same file.
	StatusMerged Status = "merged"
)

// Valid reports whether s is a known status value.
func (s Status) Valid() bool {
	switch s {
	case StatusUndefined, StatusConfirmed, StatusEdited, StatusRejected, StatusMerged:
		return true
	}
	return false
}

// Resolved reports whether s is a reviewed (non-undefined) status.
func (s Status) Resolved() bool {
	return s.Valid() && s != StatusUndefined
}

// FileStatus is the completion state of a whole correction file.
type FileStatus string

const (
	FileInProgress FileStatus = "in_progress"
	FileCompleted  FileStatus = "completed"
)

// Record is the correction record of one table, keyed by its content hash.
// OriginalStructure is immutable once written; review only ever changes
// the disposition fields.
type Record struct {
	Hash            string
	Status          Status
	FoundInVersions []string
	Pages           map[string][]int
	PDFPaths        map[string]string
	SourceLinks     map[string]string

	OriginalStructure  [][]string
	CorrectedStructure [][]string
	HasHeader          bool

	MergedInto string
	Reason     string

	// Extra holds unknown fields from newer writers; retained across
	// load/save so the format stays forward-compatible.
	Extra map[string]json.RawMessage
}

// AddVersion records that the table was found in the given version,
// keeping the version set sorted and duplicate-free.
func (r *Record) AddVersion(version string) {
	for _, v := range r.FoundInVersions {
		if v == version {
			return
		}
	}
	r.FoundInVersions = append(r.FoundInVersions, version)
	sort.Strings(r.FoundInVersions)
}

// File is the persisted correction record for one (law, version).
type File struct {
	LawID      string
	Version    string
	Status     FileStatus
	ReviewedAt string
	Reviewer   string
	Tables     map[string]*Record

	// Extra holds unknown top-level fields, see Record.Extra.
	Extra map[string]json.RawMessage
}

// NewFile builds an empty in-progress correction file.
func NewFile(lawID, version string) *File {
	return &File{
		LawID:   lawID,
		Version: version,
		Status:  FileInProgress,
		Tables:  make(map[string]*Record),
	}
}

// Hashes returns the record hashes in sorted order.
func (f *File) Hashes() []string {
	hs := make([]string, 0, len(f.Tables))
	for h := range f.Tables {
		hs = append(hs, h)
	}
	sort.Strings(hs)
	return hs
}

// Counts tallies records per status.
func (f *File) Counts() map[Status]int {
	counts := make(map[Status]int)
	for _, r := range f.Tables {
		counts[r.Status]++
	}
	return counts
}

// StructuresEqual compares two cell matrices for exact equality.
func StructuresEqual(a, b [][]string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j] != b[i][j] {
				return false
			}
		}
	}
	return true
}
