package database

// SearchRun is one recorded search and its outcome.
type SearchRun struct {
	ID            int64
	Region        string
	Keywords      string
	ResultCount   int
	RejectedCount int
	Fallback      bool
	SourceCounts  map[string]int
	DurationMS    int64
	RanAt         *string
}

// CacheStats summarizes the source cache.
type CacheStats struct {
	Entries int
	Expired int
}
