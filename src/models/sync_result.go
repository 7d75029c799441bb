package models

// SyncPage is a single response of the paginated delta-sync endpoint.
type SyncPage struct {
	TransactionDelta
	NextCursor string
	HasMore    bool
}

// SyncResult accumulates every page drained by one sync run.
type SyncResult struct {
	UserID      string           `json:"user_id"`
	StartCursor string           `json:"-"`
	Cursor      string           `json:"-"`
	Pages       int              `json:"pages"`
	HasMore     bool             `json:"has_more"`
	Delta       TransactionDelta `json:"-"`
}

func (r *SyncResult) AddedCount() int    { return len(r.Delta.Added) }
func (r *SyncResult) ModifiedCount() int { return len(r.Delta.Modified) }
func (r *SyncResult) RemovedCount() int  { return len(r.Delta.Removed) }

func (r *SyncResult) CursorAdvanced() bool {
	return r.Cursor != r.StartCursor
}

// Accumulate records a merged page.
func (r *SyncResult) Accumulate(page SyncPage) {
	r.Pages++
	r.Delta.Added = append(r.Delta.Added, page.Added...)
	r.Delta.Modified = append(r.Delta.Modified, page.Modified...)
	r.Delta.Removed = append(r.Delta.Removed, page.Removed...)
	r.Cursor = page.NextCursor
	r.HasMore = page.HasMore
}

// SyncSummary is the caller facing view of a SyncResult.
type SyncSummary struct {
	Added          int  `json:"added"`
	Modified       int  `json:"modified"`
	Removed        int  `json:"removed"`
	Pages          int  `json:"pages"`
	HasMore        bool `json:"has_more"`
	CursorAdvanced bool `json:"cursor_advanced"`
}

func (r *SyncResult) Summary() SyncSummary {
	return SyncSummary{
		Added:          r.AddedCount(),
		Modified:       r.ModifiedCount(),
		Removed:        r.RemovedCount(),
		Pages:          r.Pages,
		HasMore:        r.HasMore,
		CursorAdvanced: r.CursorAdvanced(),
	}
}
