package syncer

// Result enumerates what a sync run accomplished. Partial progress is always
// reported: rows already committed stay committed even when later rows fail.
type Result struct {
	PushedDecks   int      `json:"pushed_decks"`
	PushedCards   int      `json:"pushed_cards"`
	PushedStats   int      `json:"pushed_stats"`
	PushedDeletes int      `json:"pushed_deletes"`
	Applied       int      `json:"applied"`
	Ignored       int      `json:"ignored"`
	Deferred      int      `json:"deferred"`
	FailedIDs     []string `json:"failed_ids,omitempty"`
	Err           error    `json:"-"`
}

// fail records a failed row, keeping the first error encountered.
func (r *Result) fail(id string, err error) {
	r.FailedIDs = append(r.FailedIDs, id)
	if r.Err == nil {
		r.Err = err
	}
}

// merge folds another result into this one.
func (r *Result) merge(other *Result) {
	r.PushedDecks += other.PushedDecks
	r.PushedCards += other.PushedCards
	r.PushedStats += other.PushedStats
	r.PushedDeletes += other.PushedDeletes
	r.Applied += other.Applied
	r.Ignored += other.Ignored
	r.Deferred += other.Deferred
	r.FailedIDs = append(r.FailedIDs, other.FailedIDs...)
	if r.Err == nil {
		r.Err = other.Err
	}
}
