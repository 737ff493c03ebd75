package syncer

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yuya-takeyama/drive-merge/pkg/contenttype"
	"github.com/yuya-takeyama/drive-merge/pkg/lister"
	"github.com/yuya-takeyama/drive-merge/pkg/localfs"
	"github.com/yuya-takeyama/drive-merge/pkg/logger"
	"github.com/yuya-takeyama/drive-merge/pkg/pacer"
	"github.com/yuya-takeyama/drive-merge/pkg/remote"
	"github.com/yuya-takeyama/drive-merge/pkg/remotetest"
	"github.com/yuya-takeyama/drive-merge/pkg/resolver"
	"github.com/yuya-takeyama/drive-merge/pkg/uploader"
)

func newSyncer(api remote.API) *Syncer {
	log := logrus.New()
	log.SetOutput(io.Discard)
	p := pacer.New(
		pacer.WithLogger(log),
		pacer.WithSleep(func(ctx context.Context, d time.Duration) error { return nil }),
	)
	r := resolver.NewResolver(lister.NewLister(api, p))
	fsys := localfs.OS{}
	u := uploader.NewUploader(api, p, r, fsys, contenttype.Extension{}, &logger.NullLogger{})
	return NewSyncer(u, r, fsys, &logger.NullLogger{}, log)
}

func newStore() *remotetest.Store {
	store := remotetest.NewStore()
	store.NewID = remotetest.SequentialIDs("N")
	return store
}

// writeTree creates files, and directories for paths ending in "/".
func writeTree(t *testing.T, paths ...string) string {
	t.Helper()
	root := t.TempDir()
	for _, p := range paths {
		full := filepath.Join(root, filepath.FromSlash(p))
		if p[len(p)-1] == '/' {
			require.NoError(t, os.MkdirAll(full, 0755))
			continue
		}
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(p), 0644))
	}
	return root
}

func TestSyncExampleScenario(t *testing.T) {
	root := writeTree(t, "docs/a.txt", "docs/sub/b.txt")
	store := newStore()
	store.Seed("R1", "a.txt", remotetest.RootID, false)

	report, err := newSyncer(store).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{
		Recursive: true,
		Merge:     true,
	})
	require.NoError(t, err)

	assert.Equal(t, 4, store.Creations())
	assert.Equal(t, Stats{FoldersCreated: 2, FilesUploaded: 2}, report.Stats)

	docs, ok := store.Find(remotetest.RootID, "docs")
	require.True(t, ok)
	a, ok := store.Find(docs.ID, "a.txt")
	require.True(t, ok)
	assert.NotEqual(t, "R1", a.ID)
	sub, ok := store.Find(docs.ID, "sub")
	require.True(t, ok)
	_, ok = store.Find(sub.ID, "b.txt")
	assert.True(t, ok)

	var order []string
	for _, d := range report.Decisions {
		rel, err := filepath.Rel(root, d.Source)
		require.NoError(t, err)
		order = append(order, filepath.ToSlash(rel))
	}
	assert.Equal(t, []string{"docs", "docs/a.txt", "docs/sub", "docs/sub/b.txt"}, order)
}

func TestSyncMergeIsIdempotent(t *testing.T) {
	root := writeTree(t, "docs/a.txt", "docs/b.txt", "docs/sub/c.txt", "docs/sub/deeper/d.txt", "docs/empty/")
	store := newStore()
	s := newSyncer(store)
	opts := Options{Recursive: true, Merge: true}

	first, err := s.Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, opts)
	require.NoError(t, err)
	created := store.Creations()
	assert.Equal(t, 8, created)
	assert.Equal(t, 0, first.Stats.Skipped)

	second, err := s.Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, opts)
	require.NoError(t, err)
	assert.Equal(t, created, store.Creations(), "second merge run must not create anything")
	assert.Equal(t, Stats{Skipped: 8}, second.Stats)

	// A new local file shows up as the only creation.
	require.NoError(t, os.WriteFile(filepath.Join(root, "docs", "sub", "new.txt"), []byte("new"), 0644))
	third, err := s.Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, opts)
	require.NoError(t, err)
	assert.Equal(t, created+1, store.Creations())
	assert.Equal(t, 1, third.Stats.FilesUploaded)
}

func TestSyncCompleteness(t *testing.T) {
	// 4 files and 3 directories below the root.
	root := writeTree(t, "docs/a.txt", "docs/b.txt", "docs/sub/c.txt", "docs/sub/deeper/d.txt", "docs/empty/")
	store := newStore()

	report, err := newSyncer(store).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{Recursive: true})
	require.NoError(t, err)

	assert.Equal(t, 4+3+1, store.Creations())
	assert.Equal(t, 4, store.Calls(remotetest.OpCreateFile))
	assert.Equal(t, 0, store.Calls(remotetest.OpList))
	assert.Equal(t, Stats{FoldersCreated: 4, FilesUploaded: 4}, report.Stats)
}

func TestSyncBatchLookup(t *testing.T) {
	root := writeTree(t, "docs/1.txt", "docs/2.txt", "docs/3.txt", "docs/4.txt", "docs/5.txt", "docs/6.txt")

	t.Run("new folder", func(t *testing.T) {
		store := newStore()
		_, err := newSyncer(store).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{Recursive: true, Merge: true})
		require.NoError(t, err)
		// one lookup for docs under root, one sweep for its six entries
		assert.Equal(t, 2, store.Calls(remotetest.OpList))
		assert.Equal(t, 7, store.Creations())
	})

	t.Run("paged existing folder", func(t *testing.T) {
		store := newStore()
		store.PageSize = 2
		store.Seed("D0", "docs", remotetest.RootID, true)
		for _, name := range []string{"1.txt", "3.txt", "5.txt"} {
			store.Seed("F"+name, name, "D0", false)
		}

		report, err := newSyncer(store).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{Recursive: true, Merge: true})
		require.NoError(t, err)
		// root lookup (1 page) + docs sweep over 3 existing children (2 pages)
		assert.Equal(t, 3, store.Calls(remotetest.OpList))
		assert.Equal(t, 3, store.Creations())
		assert.Equal(t, Stats{FilesUploaded: 3, Skipped: 4}, report.Stats)
	})
}

func TestSyncDryRunIsPure(t *testing.T) {
	root := writeTree(t, "docs/a.txt", "docs/sub/b.txt", "top.txt")

	for _, merge := range []bool{false, true} {
		for _, recursive := range []bool{false, true} {
			store := newStore()
			store.Seed("D0", "docs", remotetest.RootID, true)
			store.Seed("F0", "a.txt", "D0", false)

			_, err := newSyncer(store).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{
				Recursive: recursive,
				Merge:     merge,
				DryRun:    true,
			})
			require.NoError(t, err)
			assert.Equal(t, 0, store.Creations(), "merge=%v recursive=%v", merge, recursive)
		}
	}
}

func TestSyncDryRunDescendsIntoExistingFolders(t *testing.T) {
	root := writeTree(t, "docs/a.txt", "docs/sub/b.txt")
	store := newStore()
	store.Seed("D0", "docs", remotetest.RootID, true)

	report, err := newSyncer(store).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{Recursive: true, DryRun: true})
	require.NoError(t, err)

	// docs exists and is walked; sub does not exist so its contents cannot be simulated
	require.Len(t, report.Decisions, 3)
	assert.Equal(t, "D0", report.Decisions[0].ID)
	assert.Equal(t, "D0", report.Decisions[1].ParentID)
	assert.Equal(t, "D0", report.Decisions[2].ParentID)
	assert.Equal(t, "", report.Decisions[2].ID)
	for _, d := range report.Decisions {
		assert.True(t, d.DryRun)
	}
}

func TestSyncNonRecursive(t *testing.T) {
	root := writeTree(t, "docs/a.txt")
	store := newStore()

	report, err := newSyncer(store).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{})
	require.NoError(t, err)
	assert.Equal(t, 1, store.Creations())
	assert.Equal(t, Stats{FoldersCreated: 1}, report.Stats)
}

func TestSyncFatalErrorStopsRun(t *testing.T) {
	root := writeTree(t, "docs/a.txt", "docs/b.txt", "docs/c.txt", "docs/sub/d.txt")
	store := newStore()
	quota := remote.Fatal(remotetest.OpCreateFile, errors.New("storage quota exceeded"))
	store.Fault = func(op string, call int) error {
		if op == remotetest.OpCreateFile && call == 2 {
			return quota
		}
		return nil
	}

	report, err := newSyncer(store).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{Recursive: true})
	require.ErrorIs(t, err, quota)
	assert.Nil(t, report)
	assert.Equal(t, 2, store.Calls(remotetest.OpCreateFile), "no sibling is attempted after the failure")
	assert.Equal(t, 1, store.Calls(remotetest.OpCreateFolder))
}

func TestSyncFatalListErrorStopsRun(t *testing.T) {
	root := writeTree(t, "docs/a.txt", "docs/b.txt")
	store := newStore()
	denied := remote.Fatal(remotetest.OpList, errors.New("401 invalid credentials"))
	store.Fault = func(op string, call int) error {
		if op == remotetest.OpList && call == 2 {
			return denied
		}
		return nil
	}

	_, err := newSyncer(store).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{Recursive: true, Merge: true})
	require.ErrorIs(t, err, denied)
	assert.Equal(t, 1, store.Creations())
}

func TestSyncRateLimitIsInvisible(t *testing.T) {
	root := writeTree(t, "docs/a.txt", "docs/sub/b.txt")
	store := newStore()
	store.Fault = func(op string, call int) error {
		if call%2 == 1 {
			return remote.RateLimited(op, errors.New("rate limit exceeded"))
		}
		return nil
	}

	report, err := newSyncer(store).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{Recursive: true, Merge: true})
	require.NoError(t, err)
	assert.Equal(t, Stats{FoldersCreated: 2, FilesUploaded: 2}, report.Stats)
	assert.Len(t, store.Children(remotetest.RootID), 1)
}

// blankIDs drops the IDs of created folders.
type blankIDs struct {
	*remotetest.Store
}

func (b blankIDs) CreateFolder(ctx context.Context, name, parentID string) (*remote.Node, error) {
	n, err := b.Store.CreateFolder(ctx, name, parentID)
	if err != nil {
		return nil, err
	}
	n.ID = ""
	return n, nil
}

func TestSyncMissingRemoteID(t *testing.T) {
	root := writeTree(t, "docs/a.txt")
	store := newStore()

	_, err := newSyncer(blankIDs{store}).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{Recursive: true})
	require.ErrorIs(t, err, ErrMissingRemoteID)
	assert.Equal(t, 0, store.Calls(remotetest.OpCreateFile))
}

func TestSyncExcludes(t *testing.T) {
	root := writeTree(t, "docs/a.txt", "docs/.DS_Store", "docs/node_modules/x.js", "docs/sub/.hidden", "docs/sub/b.txt")
	store := newStore()
	excluder, err := localfs.NewExcluder([]string{"**/.*", "node_modules/"})
	require.NoError(t, err)

	report, err := newSyncer(store).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{
		Recursive: true,
		Excluder:  excluder,
	})
	require.NoError(t, err)
	assert.Equal(t, Stats{FoldersCreated: 2, FilesUploaded: 2}, report.Stats)
}

func TestSyncDirectoryMatchingRemoteFile(t *testing.T) {
	root := writeTree(t, "docs/sub/a.txt")
	store := newStore()
	store.Seed("D0", "docs", remotetest.RootID, true)
	store.Seed("F0", "sub", "D0", false)

	report, err := newSyncer(store).Sync(context.Background(), filepath.Join(root, "docs"), remotetest.RootID, Options{Recursive: true, Merge: true})
	require.NoError(t, err)
	assert.Equal(t, 0, store.Creations())
	assert.Equal(t, Stats{Skipped: 2}, report.Stats)
}
