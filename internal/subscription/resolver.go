package subscription

import "github.com/gyaneshwarpardhi/notifyhub/internal/hierarchy"

// Resolve reduces a candidate set to one winning subscription per user.
//
// Candidates whose type list does not allow eventType are dropped. Within a
// user's remaining candidates, a subscription directly on the event path beats
// any ancestor match. The store invariant of one row per (user, path) means
// ties should not occur, but duplicates are still resolved deterministically:
// most recent CreatedAt wins, then the smaller ID.
//
// Resolve is a pure function over its inputs; it touches no store.
func Resolve(candidates []Subscription, eventPath, eventType string) map[string]Subscription {
	norm := hierarchy.Normalize(eventPath)
	winners := make(map[string]Subscription)

	for _, cand := range candidates {
		if !cand.AllowsType(eventType) {
			continue
		}
		cur, ok := winners[cand.UserID]
		if !ok || beats(cand, cur, norm) {
			winners[cand.UserID] = cand
		}
	}
	return winners
}

// beats reports whether a should replace b as a user's winning subscription
// for an event on path.
func beats(a, b Subscription, path string) bool {
	aDirect := a.Path == path
	bDirect := b.Path == path
	if aDirect != bDirect {
		return aDirect
	}
	if !a.CreatedAt.Equal(b.CreatedAt) {
		return a.CreatedAt.After(b.CreatedAt)
	}
	return a.ID < b.ID
}
