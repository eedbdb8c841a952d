package correction

import "fmt"

// ValidateRecord checks one record against the state machine invariants,
// in the context of its containing file (merge targets live there).
func ValidateRecord(f *File, r *Record) error {
	if r.Hash == "" {
		return fmt.Errorf("%w: record has empty hash", ErrValidation)
	}
	if !r.Status.Valid() {
		return fmt.Errorf("%w: table %s: unknown status %q", ErrValidation, r.Hash, r.Status)
	}

	switch r.Status {
	case StatusEdited:
		if len(r.CorrectedStructure) == 0 {
			return fmt.Errorf("%w: table %s: %s requires a corrected structure",
				ErrValidation, r.Hash, StatusEdited)
		}
		if StructuresEqual(r.CorrectedStructure, r.OriginalStructure) {
			return fmt.Errorf("%w: table %s: corrected structure equals original",
				ErrValidation, r.Hash)
		}
	default:
		if len(r.CorrectedStructure) != 0 {
			return fmt.Errorf("%w: table %s: corrected structure present but status is %q",
				ErrValidation, r.Hash, r.Status)
		}
	}

	switch r.Status {
	case StatusMerged:
		if r.MergedInto == "" {
			return fmt.Errorf("%w: table %s: merged without merge target", ErrValidation, r.Hash)
		}
		if r.MergedInto == r.Hash {
			return fmt.Errorf("%w: table %s: merged into itself", ErrValidation, r.Hash)
		}
		target, ok := f.Tables[r.MergedInto]
		if !ok {
			return fmt.Errorf("%w: table %s: merge target %s not in file",
				ErrValidation, r.Hash, r.MergedInto)
		}
		if target.Status == StatusMerged {
			return fmt.Errorf("%w: table %s: merge target %s is itself merged (no chains)",
				ErrValidation, r.Hash, r.MergedInto)
		}
	default:
		if r.MergedInto != "" {
			return fmt.Errorf("%w: table %s: merge target set but status is %q",
				ErrValidation, r.Hash, r.Status)
		}
	}

	return nil
}

// Validate checks every record of a file. The file's own status field is
// derived (see Complete), not validated here.
func Validate(f *File) error {
	for hash, r := range f.Tables {
		if r == nil {
			return fmt.Errorf("%w: table %s: nil record", ErrValidation, hash)
		}
		if r.Hash != hash {
			return fmt.Errorf("%w: table keyed %s carries hash %s", ErrValidation, hash, r.Hash)
		}
		if err := ValidateRecord(f, r); err != nil {
			return err
		}
	}
	return nil
}

// Complete reports whether every record in the file has been reviewed.
func Complete(f *File) bool {
	for _, r := range f.Tables {
		if r.Status == StatusUndefined {
			return false
		}
	}
	return true
}

// Unmerge returns a merged record to undefined without touching its former
// target. It is a dedicated transition, not a fresh status assignment.
func Unmerge(f *File, hash string) error {
	r, ok := f.Tables[hash]
	if !ok {
		return fmt.Errorf("%w: table %s not in file", ErrValidation, hash)
	}
	if r.Status != StatusMerged {
		return fmt.Errorf("%w: table %s is %q, not merged", ErrValidation, hash, r.Status)
	}
	r.Status = StatusUndefined
	r.MergedInto = ""
	r.Reason = ""
	return nil
}
