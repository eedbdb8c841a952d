package correction

import (
	"encoding/json"
	"fmt"
)

// The wire format keeps unknown fields: loading a file written by a newer
// version and saving it back must not strip anything. Known fields are
// decoded into the struct; leftovers are carried in Extra verbatim.
// Marshalling goes through a string-keyed map, so key order (and therefore
// the on-disk byte sequence) is deterministic.

type recordWire struct {
	Hash               string            `json:"hash"`
	Status             Status            `json:"status"`
	FoundInVersions    []string          `json:"found_in_versions,omitempty"`
	Pages              map[string][]int  `json:"pages,omitempty"`
	PDFPaths           map[string]string `json:"pdf_paths,omitempty"`
	SourceLinks        map[string]string `json:"source_links,omitempty"`
	OriginalStructure  [][]string        `json:"original_structure"`
	CorrectedStructure [][]string        `json:"corrected_structure,omitempty"`
	HasHeader          bool              `json:"has_header"`
	MergedInto         string            `json:"merged_into,omitempty"`
	Reason             string            `json:"reason,omitempty"`
}

var recordKnownKeys = []string{
	"hash", "status", "found_in_versions", "pages", "pdf_paths",
	"source_links", "original_structure", "corrected_structure",
	"has_header", "merged_into", "reason",
}

// UnmarshalJSON decodes known record fields and keeps the rest in Extra.
func (r *Record) UnmarshalJSON(data []byte) error {
	var w recordWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("correction: record: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("correction: record: %w", err)
	}
	for _, k := range recordKnownKeys {
		delete(raw, k)
	}
	*r = Record{
		Hash:               w.Hash,
		Status:             w.Status,
		FoundInVersions:    w.FoundInVersions,
		Pages:              w.Pages,
		PDFPaths:           w.PDFPaths,
		SourceLinks:        w.SourceLinks,
		OriginalStructure:  w.OriginalStructure,
		CorrectedStructure: w.CorrectedStructure,
		HasHeader:          w.HasHeader,
		MergedInto:         w.MergedInto,
		Reason:             w.Reason,
	}
	if len(raw) > 0 {
		r.Extra = raw
	}
	return nil
}

// MarshalJSON emits known fields merged with any retained unknown fields.
func (r Record) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(recordWire{
		Hash:               r.Hash,
		Status:             r.Status,
		FoundInVersions:    r.FoundInVersions,
		Pages:              r.Pages,
		PDFPaths:           r.PDFPaths,
		SourceLinks:        r.SourceLinks,
		OriginalStructure:  r.OriginalStructure,
		CorrectedStructure: r.CorrectedStructure,
		HasHeader:          r.HasHeader,
		MergedInto:         r.MergedInto,
		Reason:             r.Reason,
	})
	if err != nil {
		return nil, err
	}
	return mergeExtra(known, r.Extra)
}

type fileWire struct {
	LawID      string             `json:"law_id"`
	Version    string             `json:"version"`
	Status     FileStatus         `json:"status"`
	ReviewedAt string             `json:"reviewed_at,omitempty"`
	Reviewer   string             `json:"reviewer,omitempty"`
	Tables     map[string]*Record `json:"tables"`
}

var fileKnownKeys = []string{
	"law_id", "version", "status", "reviewed_at", "reviewer", "tables",
}

// UnmarshalJSON decodes known file fields and keeps the rest in Extra.
func (f *File) UnmarshalJSON(data []byte) error {
	var w fileWire
	if err := json.Unmarshal(data, &w); err != nil {
		return fmt.Errorf("correction: file: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("correction: file: %w", err)
	}
	for _, k := range fileKnownKeys {
		delete(raw, k)
	}
	*f = File{
		LawID:      w.LawID,
		Version:    w.Version,
		Status:     w.Status,
		ReviewedAt: w.ReviewedAt,
		Reviewer:   w.Reviewer,
		Tables:     w.Tables,
	}
	if f.Tables == nil {
		f.Tables = make(map[string]*Record)
	}
	if len(raw) > 0 {
		f.Extra = raw
	}
	return nil
}

// MarshalJSON emits known fields merged with any retained unknown fields.
func (f File) MarshalJSON() ([]byte, error) {
	known, err := json.Marshal(fileWire{
		LawID:      f.LawID,
		Version:    f.Version,
		Status:     f.Status,
		ReviewedAt: f.ReviewedAt,
		Reviewer:   f.Reviewer,
		Tables:     f.Tables,
	})
	if err != nil {
		return nil, err
	}
	return mergeExtra(known, f.Extra)
}

// mergeExtra folds unknown fields into a marshalled object. Known fields
// win on key collision so a stale duplicate can never shadow live data.
func mergeExtra(known []byte, extra map[string]json.RawMessage) ([]byte, error) {
	if len(extra) == 0 {
		return known, nil
	}
	var merged map[string]json.RawMessage
	if err := json.Unmarshal(known, &merged); err != nil {
		return nil, err
	}
	for k, v := range extra {
		if _, ok := merged[k]; !ok {
			merged[k] = v
		}
	}
	return json.Marshal(merged)
}
