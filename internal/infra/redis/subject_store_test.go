package redis

import (
	"context"
	"errors"
	"testing"

	miniredis "github.com/alicebob/miniredis/v2"

	"quiz-attempt-engine/internal/domain"
)

func TestSubjectStoreRoundTrip(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSubjectStore(newClient(mr))

	if _, err := store.LoadSubject(ctx, "s1"); !errors.Is(err, domain.ErrSubjectNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
	if err := store.CreateSubject(ctx, &domain.Subject{ID: "s1", Kind: domain.SubjectStudent}); err != nil {
		t.Fatalf("create: %v", err)
	}
	if !mr.Exists("quiz:subject:s1") {
		t.Fatalf("expected redis key to be set")
	}
	if err := store.CreateSubject(ctx, &domain.Subject{ID: "s1"}); !errors.Is(err, domain.ErrSubjectExists) {
		t.Fatalf("expected duplicate create to fail, got %v", err)
	}

	subject, err := store.LoadSubject(ctx, "s1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	g := subject.GroupOrCreate("quiz-1")
	g.Attempts = append(g.Attempts, domain.Attempt{AttemptNumber: 1, Status: domain.StatusInProgress, QuestionOrder: []int{2, 0, 1}})
	if err := store.SaveSubject(ctx, &subject); err != nil {
		t.Fatalf("save: %v", err)
	}

	reloaded, err := store.LoadSubject(ctx, "s1")
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if reloaded.Version != 2 || reloaded.Version != subject.Version {
		t.Fatalf("expected version 2, got stored=%d local=%d", reloaded.Version, subject.Version)
	}
	order := reloaded.Group("quiz-1").Attempts[0].QuestionOrder
	if len(order) != 3 || order[0] != 2 {
		t.Fatalf("expected question order persisted, got %v", order)
	}

	if err := store.DeleteSubject(ctx, "s1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if mr.Exists("quiz:subject:s1") {
		t.Fatalf("expected redis key to be removed")
	}
}

func TestSubjectStoreRejectsStaleVersion(t *testing.T) {
	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("run miniredis: %v", err)
	}
	defer mr.Close()

	ctx := context.Background()
	store := NewSubjectStore(newClient(mr))
	_ = store.CreateSubject(ctx, &domain.Subject{ID: "s1"})

	first, _ := store.LoadSubject(ctx, "s1")
	second, _ := store.LoadSubject(ctx, "s1")
	first.GroupOrCreate("quiz-1")
	if err := store.SaveSubject(ctx, &first); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := store.SaveSubject(ctx, &second); !errors.Is(err, domain.ErrConcurrentModification) {
		t.Fatalf("expected concurrent modification, got %v", err)
	}
}
