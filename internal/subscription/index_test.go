package subscription

import (
	"context"
	"slices"
	"testing"
)

// fakeStore is an in-memory Store carrying only what the Index reads.
type fakeStore struct {
	Store
	subs []Subscription
}

func (f *fakeStore) FindByPath(_ context.Context, path string) ([]Subscription, error) {
	var out []Subscription
	for _, s := range f.subs {
		if s.Path == path {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) FindByPathsWithChildren(_ context.Context, paths []string) ([]Subscription, error) {
	var out []Subscription
	for _, s := range f.subs {
		if s.IncludeChildren && slices.Contains(paths, s.Path) {
			out = append(out, s)
		}
	}
	return out, nil
}

func (f *fakeStore) FindByUserAndPath(_ context.Context, userID, path string) (*Subscription, error) {
	for _, s := range f.subs {
		if s.UserID == userID && s.Path == path {
			s := s
			return &s, nil
		}
	}
	return nil, ErrNotFound
}

func TestCandidatesFor(t *testing.T) {
	store := &fakeStore{subs: []Subscription{
		sub("s1", "alice", "/projects/x", false),     // direct
		sub("s2", "bob", "/projects", true),          // inherited
		sub("s3", "carol", "/projects", false),       // ancestor without children
		sub("s4", "dave", "/projects/y", true),       // unrelated branch
		sub("s5", "erin", "/projects/x/tasks", true), // descendant, not ancestor
	}}
	ix := NewIndex(store)

	got, err := ix.CandidatesFor(context.Background(), "projects/x/")
	if err != nil {
		t.Fatal(err)
	}

	ids := make([]string, 0, len(got))
	for _, s := range got {
		ids = append(ids, s.ID)
	}
	slices.Sort(ids)
	want := []string{"s1", "s2"}
	if !slices.Equal(ids, want) {
		t.Errorf("CandidatesFor = %v, want %v", ids, want)
	}
}

func TestCandidatesForNoSubscribers(t *testing.T) {
	ix := NewIndex(&fakeStore{})
	got, err := ix.CandidatesFor(context.Background(), "/lonely/path")
	if err != nil {
		t.Fatal(err)
	}
	if len(got) != 0 {
		t.Errorf("want empty candidate set, got %v", got)
	}
}

func TestCheck(t *testing.T) {
	store := &fakeStore{subs: []Subscription{
		sub("s1", "alice", "/projects/x", false),
		sub("s2", "alice", "/projects", true),
		sub("s3", "bob", "/projects", false),
	}}
	ix := NewIndex(store)

	m, err := ix.Check(context.Background(), "alice", "/projects/x")
	if err != nil {
		t.Fatal(err)
	}
	if !m.Subscribed() {
		t.Fatal("alice should be subscribed")
	}
	if m.Direct == nil || m.Direct.ID != "s1" {
		t.Errorf("direct match = %+v, want s1", m.Direct)
	}
	if m.Inherited == nil || m.Inherited.ID != "s2" {
		t.Errorf("inherited match = %+v, want s2", m.Inherited)
	}

	// bob's parent subscription does not include children.
	m, err = ix.Check(context.Background(), "bob", "/projects/x")
	if err != nil {
		t.Fatal(err)
	}
	if m.Subscribed() {
		t.Error("bob should not be subscribed to /projects/x")
	}
}
