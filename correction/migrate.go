package correction

// Older correction files used a three-value taxonomy before the merge
// status existed. Migration is a pure function applied immediately after
// load and before validation; the save path never migrates implicitly.
var legacyStatuses = map[Status]Status{
	"confirmed": StatusConfirmed,
	"edited":    StatusEdited,
	"deleted":   StatusRejected,
}

// Migrate rewrites legacy status values in place and reports whether
// anything changed. Unknown values are left alone for Validate to reject.
func Migrate(f *File) bool {
	changed := false
	for _, r := range f.Tables {
		if mapped, ok := legacyStatuses[r.Status]; ok {
			r.Status = mapped
			changed = true
		}
	}
	return changed
}
