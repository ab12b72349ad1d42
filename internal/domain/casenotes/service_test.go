package casenotes

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/ayursutra/portal/internal/platform/blobstore"
	"github.com/ayursutra/portal/internal/platform/localstore"
)

type fixture struct {
	svc    *Service
	blobs  *blobstore.InMemoryBlobStore
	doctor uuid.UUID
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	store, err := localstore.Open(filepath.Join(t.TempDir(), "portal.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	f := &fixture{blobs: blobstore.NewInMemoryBlobStore(), doctor: uuid.New()}
	f.svc = NewService(NewRepoLocal(store), f.blobs, zerolog.Nop())
	return f
}

func (f *fixture) create(t *testing.T, email string, at time.Time) *CaseNote {
	t.Helper()
	f.svc.now = func() time.Time { return at }
	n, err := f.svc.Create(context.Background(), f.doctor, CreateRequest{
		PatientEmail: email,
		Subjective:   "Patient complains of knee pain when climbing stairs.",
		Plan:         "Trial Abhyanga; follow-up in 2 weeks.",
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return n
}

func TestService_CreateValidation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	if _, err := f.svc.Create(ctx, f.doctor, CreateRequest{Subjective: "x"}); !errors.Is(err, ErrEmailRequired) {
		t.Errorf("expected ErrEmailRequired, got %v", err)
	}
	if _, err := f.svc.Create(ctx, f.doctor, CreateRequest{PatientEmail: "a@b.in", Plan: "   "}); !errors.Is(err, ErrEmptyNote) {
		t.Errorf("expected ErrEmptyNote, got %v", err)
	}
}

func TestService_ListNewestFirst(t *testing.T) {
	f := newFixture(t)
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	first := f.create(t, "Ramesh@Example.com", base)
	second := f.create(t, "ramesh@example.com", base.Add(time.Hour))
	f.create(t, "priya@example.com", base.Add(2*time.Hour))

	notes, err := f.svc.List(context.Background(), "RAMESH@example.com")
	if err != nil {
		t.Fatal(err)
	}
	if len(notes) != 2 || notes[0].ID != second.ID || notes[1].ID != first.ID {
		t.Errorf("expected newest first for ramesh, got %+v", notes)
	}
	all, err := f.svc.List(context.Background(), "")
	if err != nil || len(all) != 3 {
		t.Errorf("expected 3 notes, got %d %v", len(all), err)
	}
}

func TestService_UpdateKeepsUnsetSections(t *testing.T) {
	f := newFixture(t)
	n := f.create(t, "a@b.in", time.Now())
	assessment := " Early degenerative changes "
	out, err := f.svc.Update(context.Background(), n.ID, UpdateRequest{Assessment: &assessment})
	if err != nil {
		t.Fatal(err)
	}
	if out.Assessment != "Early degenerative changes" || out.Subjective != n.Subjective {
		t.Errorf("unexpected note %+v", out)
	}

	blank := ""
	_, err = f.svc.Update(context.Background(), n.ID, UpdateRequest{Subjective: &blank, Plan: &blank, Assessment: &blank})
	if !errors.Is(err, ErrEmptyNote) {
		t.Errorf("expected ErrEmptyNote, got %v", err)
	}
}

func TestService_Attachments(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.create(t, "a@b.in", time.Now())

	if _, err := f.svc.AddAttachment(ctx, f.doctor, n.ID, "run.exe", "application/x-msdownload", strings.NewReader("MZ")); !errors.Is(err, blobstore.ErrInvalidContentType) {
		t.Errorf("expected ErrInvalidContentType, got %v", err)
	}

	out, err := f.svc.AddAttachment(ctx, f.doctor, n.ID, "xray.png", "image/png", strings.NewReader("png-bytes"))
	if err != nil {
		t.Fatalf("AddAttachment: %v", err)
	}
	if len(out.Attachments) != 1 || out.Attachments[0].Size != int64(len("png-bytes")) {
		t.Fatalf("unexpected attachments %+v", out.Attachments)
	}
	blobID := out.Attachments[0].BlobID
	meta, err := f.blobs.GetMetadata(ctx, blobID)
	if err != nil {
		t.Fatal(err)
	}
	if meta.Category != blobstore.CategoryCaseAttachment || meta.OwnerID != n.ID.String() {
		t.Errorf("unexpected blob metadata %+v", meta)
	}

	if _, err := f.svc.RemoveAttachment(ctx, n.ID, "missing"); !errors.Is(err, ErrAttachmentNotFound) {
		t.Errorf("expected ErrAttachmentNotFound, got %v", err)
	}
	out, err = f.svc.RemoveAttachment(ctx, n.ID, blobID)
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Attachments) != 0 {
		t.Errorf("expected no attachments, got %+v", out.Attachments)
	}
	if _, err := f.blobs.GetMetadata(ctx, blobID); !errors.Is(err, blobstore.ErrBlobNotFound) {
		t.Errorf("expected blob to be deleted, got %v", err)
	}
}

func TestService_ConcurrentAttachmentsAreAllKept(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.create(t, "a@b.in", time.Now())

	const uploads = 8
	var wg sync.WaitGroup
	errs := make(chan error, uploads)
	for i := 0; i < uploads; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			name := fmt.Sprintf("scan-%d.png", i)
			if _, err := f.svc.AddAttachment(ctx, f.doctor, n.ID, name, "image/png", strings.NewReader(name)); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("AddAttachment: %v", err)
	}

	got, err := f.svc.Get(ctx, n.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(got.Attachments) != uploads {
		t.Fatalf("expected %d attachments, got %d", uploads, len(got.Attachments))
	}
	for _, a := range got.Attachments {
		if _, err := f.blobs.GetMetadata(ctx, a.BlobID); err != nil {
			t.Errorf("attachment %s has no blob: %v", a.FileName, err)
		}
	}
}

func TestService_DeleteRemovesBlobs(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	n := f.create(t, "a@b.in", time.Now())
	out, err := f.svc.AddAttachment(ctx, f.doctor, n.ID, "notes.txt", "text/plain", strings.NewReader("hello"))
	if err != nil {
		t.Fatal(err)
	}

	if err := f.svc.Delete(ctx, n.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.svc.Get(ctx, n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if _, err := f.blobs.GetMetadata(ctx, out.Attachments[0].BlobID); !errors.Is(err, blobstore.ErrBlobNotFound) {
		t.Errorf("expected attachment blob to be removed, got %v", err)
	}
	if err := f.svc.Delete(ctx, n.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}
