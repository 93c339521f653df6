package store

// DraftRow is a persisted draft keyed by conversation key.
// Keys use the "conv:<id>" form for server-backed conversations and
// "phone:<E.164>" for virtual ones that have no server id yet.
type DraftRow struct {
	Key     string
	Body    string
	SavedAt int64 // unix millis
}
