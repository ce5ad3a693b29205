package subscription

import (
	"testing"
	"time"
)

func sub(id, user, path string, children bool, types ...string) Subscription {
	return Subscription{
		ID:                id,
		UserID:            user,
		Path:              path,
		IncludeChildren:   children,
		NotificationTypes: types,
		CreatedAt:         time.Date(2025, 7, 1, 0, 0, 0, 0, time.UTC),
	}
}

func TestResolveDirectBeatsInherited(t *testing.T) {
	candidates := []Subscription{
		sub("s1", "alice", "/a", true),
		sub("s2", "alice", "/a/b", false),
	}
	winners := Resolve(candidates, "/a/b", "created")

	w, ok := winners["alice"]
	if !ok {
		t.Fatal("alice should match")
	}
	if w.ID != "s2" {
		t.Errorf("winner = %s, want direct subscription s2", w.ID)
	}

	// Order of candidates must not matter.
	winners = Resolve([]Subscription{candidates[1], candidates[0]}, "/a/b", "created")
	if winners["alice"].ID != "s2" {
		t.Errorf("winner = %s after reorder, want s2", winners["alice"].ID)
	}
}

func TestResolveTypeFilter(t *testing.T) {
	candidates := []Subscription{
		sub("s1", "alice", "/a", true, "created"),
		sub("s2", "bob", "/a", true),
	}

	winners := Resolve(candidates, "/a/b", "updated")
	if _, ok := winners["alice"]; ok {
		t.Error("alice restricts types to created and must not match updated")
	}
	if _, ok := winners["bob"]; !ok {
		t.Error("bob has no type restriction and must match any type")
	}

	winners = Resolve(candidates, "/a/b", "created")
	if len(winners) != 2 {
		t.Errorf("both users should match created, got %d", len(winners))
	}
}

func TestResolveOneWinnerPerUser(t *testing.T) {
	candidates := []Subscription{
		sub("s1", "alice", "/a", true),
		sub("s2", "alice", "/a/b", true),
		sub("s3", "bob", "/a", true),
	}
	winners := Resolve(candidates, "/a/b/c", "created")
	if len(winners) != 2 {
		t.Fatalf("want 2 winners, got %d", len(winners))
	}
	// Both of alice's matches are inherited; the result just has to be
	// deterministic. Same CreatedAt, so the smaller ID wins.
	if winners["alice"].ID != "s1" {
		t.Errorf("alice's winner = %s, want s1", winners["alice"].ID)
	}
}

func TestResolveDuplicateRowsNewestWins(t *testing.T) {
	older := sub("s1", "alice", "/a/b", false)
	newer := sub("s2", "alice", "/a/b", false)
	newer.CreatedAt = older.CreatedAt.Add(time.Hour)

	winners := Resolve([]Subscription{older, newer}, "/a/b", "created")
	if winners["alice"].ID != "s2" {
		t.Errorf("winner = %s, want most recently created s2", winners["alice"].ID)
	}
	winners = Resolve([]Subscription{newer, older}, "/a/b", "created")
	if winners["alice"].ID != "s2" {
		t.Errorf("winner = %s after reorder, want s2", winners["alice"].ID)
	}
}

func TestResolveEmptyCandidates(t *testing.T) {
	winners := Resolve(nil, "/a", "created")
	if len(winners) != 0 {
		t.Errorf("no candidates should yield no winners, got %v", winners)
	}
}

func TestResolveNormalizesEventPath(t *testing.T) {
	candidates := []Subscription{
		sub("s1", "alice", "/a", true),
		sub("s2", "alice", "/a/b", false),
	}
	winners := Resolve(candidates, "a/b/", "created")
	if winners["alice"].ID != "s2" {
		t.Errorf("unnormalized event path should still produce direct winner, got %s", winners["alice"].ID)
	}
}
