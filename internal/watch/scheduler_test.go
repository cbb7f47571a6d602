package watch

import (
	"context"
	"errors"
	"testing"
	"time"

	"cdmkn-go/internal/cdmkn"
	"cdmkn-go/internal/database"
	"cdmkn-go/internal/testutil"
)

type fixture struct {
	sched *Scheduler
	db    *database.SQLiteDatabase
	fsmgr *testutil.MockFilesystemManager
	clock *testutil.StubClock
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	clock := testutil.SteppingClock(time.Second)
	db := testutil.NewTestDatabase(t, clock)
	fsmgr := testutil.NewMockFilesystemManager()
	return &fixture{
		sched: NewScheduler(db, fsmgr, nil, clock),
		db:    db,
		fsmgr: fsmgr,
		clock: clock,
	}
}

func (f *fixture) addRepo(t *testing.T, root string) int64 {
	t.Helper()
	f.fsmgr.AddDirectory(root)
	repo, err := f.db.CreateRepository(root)
	if err != nil {
		t.Fatal(err)
	}
	return repo.ID
}

func (f *fixture) run(t *testing.T, pass Pass) *PassReport {
	t.Helper()
	report, err := f.sched.RunPass(context.Background(), pass)
	if err != nil {
		t.Fatalf("RunPass() error = %v", err)
	}
	return report
}

func (f *fixture) changes(t *testing.T, repoID int64, path string) []string {
	t.Helper()
	doc, err := f.db.FindDocumentByPath(repoID, path)
	if err != nil {
		t.Fatal(err)
	}
	if doc == nil {
		return nil
	}
	rows, err := f.db.LatestChanges(doc.ID, 100)
	if err != nil {
		t.Fatal(err)
	}
	var currents []string
	for _, row := range rows {
		elements, err := cdmkn.DecodeChange(row)
		if err != nil {
			t.Fatal(err)
		}
		currents = append(currents, cdmkn.ReconstructCurrent(elements))
	}
	return currents
}

func TestFirstSightingIsBaseline(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repoID := f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "hello\n")

	report := f.run(t, FullPass)
	if report.Baselined != 1 || report.Changes != 0 {
		t.Errorf("report = %+v, want 1 baselined and no changes", report)
	}
	if got := f.changes(t, repoID, "/repo/a.txt"); len(got) != 0 {
		t.Fatalf("changes after first sighting = %q, want none", got)
	}
	baseline, err := f.db.GetDocumentBaseline(repoID, "/repo/a.txt")
	if err != nil || baseline == nil || baseline.Content != "hello\n" {
		t.Fatalf("GetDocumentBaseline() = %+v, %v", baseline, err)
	}

	f.fsmgr.SetContent("/repo/a.txt", "hello\nworld\n")
	report = f.run(t, FullPass)
	if report.Changes != 1 {
		t.Errorf("Changes = %d, want 1", report.Changes)
	}
	got := f.changes(t, repoID, "/repo/a.txt")
	if len(got) != 1 || got[0] != "hello\nworld\n" {
		t.Errorf("changes = %q", got)
	}
}

func TestEditRecordsChange(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repoID := f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "a\nb\nc\n")
	f.run(t, FullPass)

	f.fsmgr.SetContent("/repo/a.txt", "a\nx\nc\n")
	f.run(t, FullPass)

	doc, _ := f.db.FindDocumentByPath(repoID, "/repo/a.txt")
	rows, err := f.db.LatestChanges(doc.ID, 10)
	if err != nil || len(rows) != 1 {
		t.Fatalf("LatestChanges() = %d rows, %v", len(rows), err)
	}
	elements, err := cdmkn.DecodeChange(rows[0])
	if err != nil {
		t.Fatal(err)
	}
	if got := cdmkn.ReconstructPrevious(elements); got != "a\nb\nc\n" {
		t.Errorf("previous = %q", got)
	}
	if got := len(cdmkn.ExtractSnippets(elements)); got != 2 {
		t.Errorf("snippets = %d, want 2", got)
	}
}

func TestTouchWithoutEdit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repoID := f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "same\n")
	f.run(t, FullPass)

	f.fsmgr.Touch("/repo/a.txt")
	report := f.run(t, FullPass)
	if report.Changes != 0 {
		t.Errorf("Changes = %d, want 0", report.Changes)
	}
	if got := f.changes(t, repoID, "/repo/a.txt"); len(got) != 0 {
		t.Errorf("changes = %q, want none", got)
	}

	// The cached mtime advanced, so a content swap that keeps it is invisible.
	f.fsmgr.SetContentKeepModTime("/repo/a.txt", "different\n")
	f.run(t, FullPass)
	if got := f.changes(t, repoID, "/repo/a.txt"); len(got) != 0 {
		t.Errorf("changes = %q, want none", got)
	}
}

func TestOneEventPerPass(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repoID := f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "a\n")
	f.fsmgr.SetContent("/repo/b.txt", "b\n")
	f.run(t, FullPass)

	f.fsmgr.SetContent("/repo/a.txt", "a2\n")
	f.fsmgr.SetContent("/repo/b.txt", "b2\n")
	report := f.run(t, FullPass)
	if report.Changes != 2 || len(report.Events) != 1 {
		t.Fatalf("report = %+v, want 2 changes in 1 event", report)
	}

	for _, path := range []string{"/repo/a.txt", "/repo/b.txt"} {
		doc, _ := f.db.FindDocumentByPath(repoID, path)
		rows, _ := f.db.LatestChanges(doc.ID, 1)
		if len(rows) != 1 || rows[0].EventID != report.Events[0] {
			t.Errorf("%s: change event mismatch", path)
		}
	}

	f.fsmgr.SetContent("/repo/a.txt", "a3\n")
	next := f.run(t, FullPass)
	if len(next.Events) != 1 {
		t.Fatalf("Events = %v", next.Events)
	}
	event, err := f.db.GetEvent(next.Events[0])
	if err != nil {
		t.Fatal(err)
	}
	if !event.ParentEventID.Valid || event.ParentEventID.Int64 != report.Events[0] {
		t.Errorf("parent = %v, want %d", event.ParentEventID, report.Events[0])
	}
}

func TestNoEventWithoutChanges(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "a\n")
	f.run(t, FullPass)

	report := f.run(t, FullPass)
	if len(report.Events) != 0 {
		t.Errorf("Events = %v, want none", report.Events)
	}
}

func TestColdStartUsesStoredBaseline(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repoID := f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "one\n")
	f.run(t, FullPass)
	f.fsmgr.SetContent("/repo/a.txt", "two\n")
	f.run(t, FullPass)

	// A restarted daemon has an empty cache.
	f.sched = NewScheduler(f.db, f.fsmgr, nil, f.clock)
	report := f.run(t, FullPass)
	if report.Changes != 0 || report.Baselined != 0 {
		t.Errorf("report = %+v, want nothing written", report)
	}

	f.fsmgr.SetContent("/repo/a.txt", "three\n")
	f.run(t, FullPass)
	got := f.changes(t, repoID, "/repo/a.txt")
	if len(got) != 2 || got[0] != "three\n" || got[1] != "two\n" {
		t.Errorf("changes = %q", got)
	}
}

func TestColdStartDetectsOfflineEdit(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repoID := f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "one\n")
	f.run(t, FullPass)

	f.sched = NewScheduler(f.db, f.fsmgr, nil, f.clock)
	f.fsmgr.SetContentKeepModTime("/repo/a.txt", "edited offline\n")
	report := f.run(t, FullPass)
	if report.Changes != 1 {
		t.Errorf("Changes = %d, want 1", report.Changes)
	}
	if got := f.changes(t, repoID, "/repo/a.txt"); len(got) != 1 || got[0] != "edited offline\n" {
		t.Errorf("changes = %q", got)
	}
}

func TestDeletedFilesDropOut(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "a\n")
	f.fsmgr.SetContent("/repo/b.txt", "b\n")
	f.run(t, FullPass)
	if f.sched.Cached() != 2 {
		t.Fatalf("Cached() = %d, want 2", f.sched.Cached())
	}

	f.fsmgr.Remove("/repo/b.txt")
	report := f.run(t, FullPass)
	if report.Changes != 0 {
		t.Errorf("Changes = %d, want 0", report.Changes)
	}
	if f.sched.Cached() != 1 {
		t.Errorf("Cached() = %d, want 1", f.sched.Cached())
	}
}

func TestSkipsInvalidAndIgnoredFiles(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/big.txt", string(make([]byte, cdmkn.MaxFileSize)))
	f.fsmgr.SetContent("/repo/.hidden", "x\n")
	f.fsmgr.SetContent("/repo/build/out.txt", "x\n")
	f.fsmgr.Ignore("/repo/build")
	f.fsmgr.SetContent("/repo/ok.txt", "ok\n")

	report := f.run(t, FullPass)
	if report.Files != 1 || report.Baselined != 1 {
		t.Errorf("report = %+v, want only ok.txt", report)
	}
}

func TestReadFailureSkipsFile(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repoID := f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "a\n")
	f.fsmgr.SetContent("/repo/b.txt", "b\n")
	f.run(t, FullPass)

	f.fsmgr.SetContent("/repo/a.txt", "a2\n")
	f.fsmgr.SetContent("/repo/b.txt", "b2\n")
	f.fsmgr.FailReads("/repo/a.txt", errors.New("device busy"))
	report := f.run(t, FullPass)
	if report.Skipped != 1 || report.Changes != 1 {
		t.Fatalf("report = %+v, want 1 skipped and 1 change", report)
	}

	f.fsmgr.FailReads("/repo/a.txt", nil)
	f.run(t, FullPass)
	if got := f.changes(t, repoID, "/repo/a.txt"); len(got) != 1 || got[0] != "a2\n" {
		t.Errorf("changes = %q", got)
	}
}

func TestInvalidUTF8IsSkipped(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repoID := f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/bin.dat", "\xff\xfe\x00")

	report := f.run(t, FullPass)
	if report.Skipped != 1 || report.Baselined != 0 {
		t.Errorf("report = %+v", report)
	}
	doc, _ := f.db.FindDocumentByPath(repoID, "/repo/bin.dat")
	if doc != nil {
		t.Errorf("document registered for binary file")
	}
}

type failingChangeLog struct {
	cdmkn.ChangeLog
	appendErr error
}

func (l *failingChangeLog) AppendChange(documentID, eventID int64, elements []cdmkn.ChangeElement, createdAt time.Time) (int64, error) {
	if l.appendErr != nil {
		return 0, l.appendErr
	}
	return l.ChangeLog.AppendChange(documentID, eventID, elements, createdAt)
}

func TestStorageFailureKeepsBaseline(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repoID := f.addRepo(t, "/repo")
	log := &failingChangeLog{ChangeLog: f.db}
	f.sched = NewScheduler(log, f.fsmgr, nil, f.clock)

	f.fsmgr.SetContent("/repo/a.txt", "one\n")
	f.run(t, FullPass)

	f.fsmgr.SetContent("/repo/a.txt", "two\n")
	log.appendErr = errors.New("disk I/O error")
	_, err := f.sched.RunPass(context.Background(), FullPass)
	var se *cdmkn.StorageError
	if !errors.As(err, &se) {
		t.Fatalf("RunPass() error = %v, want StorageError", err)
	}

	log.appendErr = nil
	report := f.run(t, FullPass)
	if report.Changes != 1 {
		t.Fatalf("Changes = %d, want 1", report.Changes)
	}
	got := f.changes(t, repoID, "/repo/a.txt")
	if len(got) != 1 || got[0] != "two\n" {
		t.Errorf("changes = %q", got)
	}
}

func TestOverlappingRootsVisitOnce(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	outer := f.addRepo(t, "/work")
	inner := f.addRepo(t, "/work/inner")
	f.fsmgr.SetContent("/work/inner/a.txt", "a\n")
	f.run(t, FullPass)

	f.fsmgr.SetContent("/work/inner/a.txt", "b\n")
	report := f.run(t, FullPass)
	if report.Changes != 1 {
		t.Errorf("Changes = %d, want 1", report.Changes)
	}
	if got := f.changes(t, outer, "/work/inner/a.txt"); len(got) != 1 {
		t.Errorf("outer changes = %q", got)
	}
	if doc, _ := f.db.FindDocumentByPath(inner, "/work/inner/a.txt"); doc != nil {
		t.Errorf("inner repository also tracks the file")
	}
}

func TestNestedRootUnderInactiveRootIsBrowsable(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	outer := f.addRepo(t, "/work")
	inner := f.addRepo(t, "/work/inner")
	if err := f.db.SetRepositoryStatus(outer, cdmkn.RepoInactive); err != nil {
		t.Fatal(err)
	}
	f.fsmgr.SetContent("/work/inner/a.txt", "a\n")
	f.run(t, FullPass)
	f.fsmgr.SetContent("/work/inner/a.txt", "b\n")
	f.run(t, FullPass)

	if got := f.changes(t, inner, "/work/inner/a.txt"); len(got) != 1 {
		t.Fatalf("inner changes = %q, want one", got)
	}

	svc := cdmkn.NewService(f.db, f.fsmgr, cdmkn.NewNopLogger())
	entries, err := svc.FileHistory("/work/inner/a.txt", 10)
	if err != nil {
		t.Fatalf("FileHistory() error = %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("FileHistory() = %d entries, want 1", len(entries))
	}
	v, err := svc.Version("/work/inner/a.txt", entries[0].ChangeID)
	if err != nil {
		t.Fatalf("Version() error = %v", err)
	}
	if got := v.Current(); got != "b\n" {
		t.Errorf("Current() = %q, want %q", got, "b\n")
	}
}

func TestClockSteppingBackKeepsHistoryOrder(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repoID := f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "one\n")
	f.run(t, FullPass)
	f.fsmgr.SetContent("/repo/a.txt", "two\n")
	f.run(t, FullPass)

	f.clock.Advance(-time.Hour)
	f.fsmgr.SetContent("/repo/a.txt", "three\n")
	f.run(t, FullPass)

	got := f.changes(t, repoID, "/repo/a.txt")
	want := []string{"three\n", "two\n"}
	if len(got) != len(want) || got[0] != want[0] || got[1] != want[1] {
		t.Errorf("changes = %q, want %q", got, want)
	}
}

func TestRepositoryLifecycle(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repoID := f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "a\n")

	// Partial passes do not activate.
	f.run(t, Pass{Dirty: []string{"/repo/a.txt"}})
	repo, _ := f.db.FindRepositoryByPath("/repo")
	if cdmkn.RepoStatus(repo.Status) != cdmkn.RepoStarting {
		t.Fatalf("status = %v, want starting", cdmkn.RepoStatus(repo.Status))
	}

	f.run(t, FullPass)
	repo, _ = f.db.FindRepositoryByPath("/repo")
	if cdmkn.RepoStatus(repo.Status) != cdmkn.RepoActive {
		t.Fatalf("status = %v, want active", cdmkn.RepoStatus(repo.Status))
	}

	if err := f.db.SetRepositoryStatus(repoID, cdmkn.RepoInactive); err != nil {
		t.Fatal(err)
	}
	f.fsmgr.SetContent("/repo/a.txt", "changed\n")
	report := f.run(t, FullPass)
	if report.Files != 0 || len(report.Roots) != 0 {
		t.Errorf("inactive repository visited: %+v", report)
	}
}

func TestPartialPass(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	repoID := f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "a\n")
	f.fsmgr.SetContent("/repo/b.txt", "b\n")
	f.run(t, FullPass)

	f.fsmgr.SetContent("/repo/a.txt", "a2\n")
	f.fsmgr.SetContent("/repo/b.txt", "b2\n")
	report := f.run(t, Pass{Dirty: []string{"/repo/a.txt", "/elsewhere/x.txt"}})
	if report.Files != 1 || report.Changes != 1 {
		t.Fatalf("report = %+v, want only a.txt", report)
	}
	if got := f.changes(t, repoID, "/repo/b.txt"); len(got) != 0 {
		t.Errorf("b.txt changed in partial pass: %q", got)
	}

	// Untouched entries survive a partial pass; deleted ones are dropped.
	f.fsmgr.Remove("/repo/a.txt")
	report = f.run(t, Pass{Dirty: []string{"/repo/a.txt"}})
	if report.Dropped != 1 || f.sched.Cached() != 1 {
		t.Errorf("Dropped = %d, Cached() = %d", report.Dropped, f.sched.Cached())
	}

	report = f.run(t, FullPass)
	if report.Changes != 1 {
		t.Errorf("full pass Changes = %d, want 1 for b.txt", report.Changes)
	}
}

func TestCancelledPass(t *testing.T) {
	t.Parallel()
	f := newFixture(t)
	f.addRepo(t, "/repo")
	f.fsmgr.SetContent("/repo/a.txt", "a\n")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := f.sched.RunPass(ctx, FullPass)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("RunPass() error = %v, want context.Canceled", err)
	}
}
