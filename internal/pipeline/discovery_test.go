package pipeline

import (
	"context"
	"meetscribe/internal/artifact"
	"meetscribe/pkg/model"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func touch(t *testing.T, path string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))
}

func TestDiscover(t *testing.T) {
	root := t.TempDir()
	inbox, work := filepath.Join(root, "inbox"), filepath.Join(root, "work")

	touch(t, filepath.Join(inbox, "zeta.webm"))
	touch(t, filepath.Join(inbox, "Alpha.WEBM"))
	touch(t, filepath.Join(inbox, "notes.txt"))
	touch(t, filepath.Join(inbox, ".hidden.webm"))
	touch(t, filepath.Join(inbox, "dup.webm"))
	require.NoError(t, os.MkdirAll(filepath.Join(inbox, "dir.webm"), 0o755))
	touch(t, filepath.Join(work, "dup.webm"))
	touch(t, filepath.Join(work, "leftover.webm"))
	touch(t, filepath.Join(work, "leftover_transcript.pdf"))

	recs, err := Discover(inbox, work, []string{"webm"})
	require.NoError(t, err)

	var names []string
	for _, r := range recs {
		names = append(names, filepath.Base(r.Path))
	}
	assert.Equal(t, []string{"Alpha.WEBM", "dup.webm", "leftover.webm", "zeta.webm"}, names)
	assert.Equal(t, "Alpha", recs[0].BaseName)
	assert.Equal(t, filepath.Join(inbox, "dup.webm"), recs[1].Path)
	assert.Equal(t, filepath.Join(work, "leftover.webm"), recs[2].Path)
}

func TestDiscover_UsesModTime(t *testing.T) {
	root := t.TempDir()
	path := filepath.Join(root, "standup.webm")
	touch(t, path)
	mtime := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	require.NoError(t, os.Chtimes(path, mtime, mtime))

	recs, err := Discover(root, filepath.Join(root, "work"), []string{"webm"})
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].DiscoveredAt.Equal(mtime))
}

func TestArtifactOwners(t *testing.T) {
	root := t.TempDir()
	inbox, work := filepath.Join(root, "inbox"), filepath.Join(root, "work")

	touch(t, filepath.Join(inbox, "standup.mp4"))
	touch(t, filepath.Join(inbox, "standup.webm"))
	touch(t, filepath.Join(inbox, "retro.mp4"))
	touch(t, filepath.Join(inbox, "retro.webm"))
	touch(t, filepath.Join(work, "retro.webm"))

	recs, err := Discover(inbox, work, []string{"webm", "mp4"})
	require.NoError(t, err)

	owners := ArtifactOwners(recs, work)
	assert.Len(t, owners, 2)
	assert.Equal(t, filepath.Join(inbox, "standup.mp4"), owners["standup"])
	// retro.webm is listed from the inbox but an earlier copy is in work
	assert.Equal(t, filepath.Join(inbox, "retro.webm"), owners["retro"])

	require.NoError(t, os.Remove(filepath.Join(inbox, "retro.webm")))
	recs, err = Discover(inbox, work, []string{"webm", "mp4"})
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(work, "retro.webm"), ArtifactOwners(recs, work)["retro"])
}

func TestDiscover_Errors(t *testing.T) {
	root := t.TempDir()

	_, err := Discover(filepath.Join(root, "missing"), root, []string{"webm"})
	require.Error(t, err)
	assert.True(t, model.IsKind(err, model.KindDiscovery))

	recs, err := Discover(root, filepath.Join(root, "not-yet"), []string{"webm"})
	require.NoError(t, err)
	assert.Empty(t, recs)
}

func TestRelocate(t *testing.T) {
	root := t.TempDir()
	inbox, work := filepath.Join(root, "inbox"), filepath.Join(root, "work")
	src := filepath.Join(inbox, "a.webm")
	touch(t, src)

	dest, moved, err := Relocate(src, work)
	require.NoError(t, err)
	assert.True(t, moved)
	assert.Equal(t, filepath.Join(work, "a.webm"), dest)
	assert.NoFileExists(t, src)
	assert.FileExists(t, dest)

	dest, moved, err = Relocate(dest, work)
	require.NoError(t, err)
	assert.False(t, moved)
	assert.FileExists(t, dest)
}

func TestStatus(t *testing.T) {
	root := t.TempDir()
	inbox := filepath.Join(root, "inbox")
	touch(t, filepath.Join(inbox, "new.webm"))

	store, err := artifact.NewStore(filepath.Join(root, "work"))
	require.NoError(t, err)
	touch(t, store.Path("done.webm"))
	require.NoError(t, store.Write("done_transcript.pdf", []byte("x")))
	require.NoError(t, store.Write("done_summary.pdf", []byte("x")))

	statuses, err := Status(inbox, store, []string{"webm"})
	require.NoError(t, err)
	require.Len(t, statuses, 2)

	assert.Equal(t, "done.webm", statuses[0].Name)
	assert.False(t, statuses[0].Pending())
	assert.Equal(t, "new.webm", statuses[1].Name)
	assert.True(t, statuses[1].Pending())
	assert.Equal(t, inbox, statuses[1].Location)
}

type failingSink struct{ err error }

func (s failingSink) Name() string { return "failing" }
func (s failingSink) Publish(context.Context, *model.BatchReport) error {
	return s.err
}

func TestMultiSink(t *testing.T) {
	ok := new(MockSink)
	ok.On("Publish", mock.Anything, mock.Anything).Return(nil).Once()

	m := NewMultiSink(nil, failingSink{err: assert.AnError})
	m.Add(ok)
	m.Add(nil)
	assert.Equal(t, 2, m.Len())

	err := m.Publish(context.Background(), &model.BatchReport{RunID: "r"})
	assert.ErrorIs(t, err, assert.AnError)
	ok.AssertExpectations(t)
}
