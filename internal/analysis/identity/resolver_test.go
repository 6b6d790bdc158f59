package identity

import (
	"crypto/sha256"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
)

func writeFile(t *testing.T, dir, name string, content []byte) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), content, 0o644))
}

func requestFor(owner, filename string, content []byte) Request {
	sum := sha256.Sum256(content)
	return Request{Owner: owner, Filename: filename, Size: int64(len(content)), Hash: sum[:]}
}

func TestBaseID(t *testing.T) {
	tests := []struct {
		name     string
		owner    string
		filename string
		want     string
	}{
		{name: "simple", owner: "alice", filename: "lecture.mp4", want: "alice_lecture"},
		{name: "directory parts stripped", owner: "alice", filename: "../../etc/lecture.mp4", want: "alice_lecture"},
		{name: "windows path", owner: "alice", filename: `C:\videos\week 1.mp4`, want: "alice_week_1"},
		{name: "dots in name", owner: "bob", filename: "lecture.v2.mov", want: "bob_lecture_v2"},
		{name: "unsafe owner", owner: "a/b c", filename: "x.mp4", want: "a_b_c_x"},
		{name: "no stem", owner: "alice", filename: ".mp4", want: "alice_untitled"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, BaseID(tt.owner, tt.filename))
		})
	}
}

func TestExtension(t *testing.T) {
	assert.Equal(t, ".mp4", Extension("lecture.mp4"))
	assert.Equal(t, ".mov", Extension("LECTURE.MOV"))
	assert.Equal(t, DefaultExtension, Extension("lecture"))
	assert.Equal(t, DefaultExtension, Extension("lecture.m p4"))
}

func TestResolver_FreshID(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(dir, nil)

	res, err := r.Resolve(requestFor("alice", "lecture.mp4", []byte("video")))
	require.NoError(t, err)
	assert.Equal(t, Resolution{ID: "alice_lecture", Extension: ".mp4"}, res)
	assert.Equal(t, "alice_lecture.mp4", res.MediaFileName())
}

func TestResolver_OwnerRequired(t *testing.T) {
	r := NewResolver(t.TempDir(), nil)

	_, err := r.Resolve(requestFor(" ", "lecture.mp4", []byte("video")))
	assert.ErrorIs(t, err, domain.ErrOwnerRequired)
}

func TestResolver_DuplicateContent(t *testing.T) {
	dir := t.TempDir()
	content := []byte("the same lecture bytes")
	writeFile(t, dir, "alice_lecture.mp4", content)

	r := NewResolver(dir, nil)
	res, err := r.Resolve(requestFor("alice", "lecture.mp4", content))
	require.NoError(t, err)
	assert.Equal(t, "alice_lecture", res.ID)
	assert.True(t, res.Duplicate)
}

func TestResolver_DuplicateOfDisambiguatedFile(t *testing.T) {
	dir := t.TempDir()
	content := []byte("second lecture")
	writeFile(t, dir, "alice_lecture.mp4", []byte("first lecture"))
	writeFile(t, dir, "alice_lecture(1).mp4", content)

	r := NewResolver(dir, nil)
	res, err := r.Resolve(requestFor("alice", "lecture.mp4", content))
	require.NoError(t, err)
	assert.Equal(t, "alice_lecture(1)", res.ID)
	assert.True(t, res.Duplicate)
}

func TestResolver_CollidingNamesAreDisambiguated(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "alice_lecture.mp4", []byte("first lecture"))
	writeFile(t, dir, "alice_lecture(1).mp4", []byte("second lecture"))

	r := NewResolver(dir, nil)
	res, err := r.Resolve(requestFor("alice", "lecture.mp4", []byte("third lecture")))
	require.NoError(t, err)
	assert.Equal(t, "alice_lecture(2)", res.ID)
	assert.False(t, res.Duplicate)
}

func TestResolver_SameSizeDifferentContent(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "alice_lecture.mp4", []byte("aaaa"))

	r := NewResolver(dir, nil)
	res, err := r.Resolve(requestFor("alice", "lecture.mp4", []byte("bbbb")))
	require.NoError(t, err)
	assert.Equal(t, "alice_lecture(1)", res.ID)
	assert.False(t, res.Duplicate)
}

func TestResolver_IgnoresUnrelatedFiles(t *testing.T) {
	dir := t.TempDir()
	content := []byte("lecture")
	writeFile(t, dir, "alice_lecture2.mp4", content)
	writeFile(t, dir, "alice_lecture2_graph.json", content)
	writeFile(t, dir, "bob_lecture.mp4", content)
	writeFile(t, dir, "alice_lecture_notes.pdf", content)

	r := NewResolver(dir, nil)
	res, err := r.Resolve(requestFor("alice", "lecture.mp4", content))
	require.NoError(t, err)
	assert.Equal(t, "alice_lecture", res.ID)
	assert.False(t, res.Duplicate)
}

func TestResolver_IDOwnedByAnyFileIsTaken(t *testing.T) {
	tests := []struct {
		name     string
		existing string
	}{
		{name: "media with another extension", existing: "alice_lecture.mov"},
		{name: "extracted audio", existing: "alice_lecture_audio.mp3"},
		{name: "transcript artifact", existing: "alice_lecture_transcript.json"},
		{name: "graph artifact", existing: "alice_lecture_graph.json"},
		{name: "cognitive load artifact", existing: "alice_lecture_cognitive_load.json"},
		{name: "structured data artifact", existing: "alice_lecture_str_data.json"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			writeFile(t, dir, tt.existing, []byte("earlier job"))

			r := NewResolver(dir, nil)
			res, err := r.Resolve(requestFor("alice", "lecture.mp4", []byte("new lecture")))
			require.NoError(t, err)
			assert.Equal(t, "alice_lecture(1)", res.ID)
			assert.False(t, res.Duplicate)
		})
	}
}

func TestIDsOf(t *testing.T) {
	assert.ElementsMatch(t, []string{"alice_lecture"}, idsOf("alice_lecture.mp4"))
	assert.ElementsMatch(t, []string{"alice_lecture_graph", "alice_lecture"}, idsOf("alice_lecture_graph.json"))
	assert.ElementsMatch(t, []string{"alice_lecture(2)_audio", "alice_lecture(2)"}, idsOf("alice_lecture(2)_audio.mp3"))
	assert.ElementsMatch(t, []string{"_graph"}, idsOf("_graph.json"))
}

func TestResolver_BlankFilenameSkipsDuplicateDetection(t *testing.T) {
	dir := t.TempDir()
	content := []byte("lecture")
	writeFile(t, dir, "alice_untitled.mp4", content)

	r := NewResolver(dir, nil)
	r.hashFile = func(string) ([]byte, error) {
		t.Fatal("hash must not be computed for blank filenames")
		return nil, nil
	}

	res, err := r.Resolve(requestFor("alice", "", content))
	require.NoError(t, err)
	assert.Equal(t, "alice_untitled(1)", res.ID)
	assert.False(t, res.Duplicate)
}

func TestResolver_ComparisonErrorIsSkipped(t *testing.T) {
	dir := t.TempDir()
	content := []byte("lecture")
	writeFile(t, dir, "alice_lecture.mp4", content)

	r := NewResolver(dir, nil)
	r.hashFile = func(string) ([]byte, error) {
		return nil, errors.New("read error")
	}

	res, err := r.Resolve(requestFor("alice", "lecture.mp4", content))
	require.NoError(t, err)
	assert.Equal(t, "alice_lecture(1)", res.ID)
	assert.False(t, res.Duplicate)
}

func TestResolver_ReservationsUntilRelease(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(dir, nil)

	first, err := r.Resolve(requestFor("alice", "lecture.mp4", []byte("one")))
	require.NoError(t, err)
	second, err := r.Resolve(requestFor("alice", "lecture.mp4", []byte("two")))
	require.NoError(t, err)

	assert.Equal(t, "alice_lecture", first.ID)
	assert.Equal(t, "alice_lecture(1)", second.ID)

	r.Release(first.ID)
	r.Release(second.ID)

	third, err := r.Resolve(requestFor("alice", "lecture.mp4", []byte("three")))
	require.NoError(t, err)
	assert.Equal(t, "alice_lecture", third.ID)
}

func TestResolver_ConcurrentResolveMintsDistinctIDs(t *testing.T) {
	r := NewResolver(t.TempDir(), nil)

	const n = 20
	ids := make(chan string, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := r.Resolve(requestFor("alice", "lecture.mp4", []byte{byte(i)}))
			assert.NoError(t, err)
			ids <- res.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		assert.False(t, seen[id], "id %s minted twice", id)
		seen[id] = true
	}
	assert.Len(t, seen, n)
}

func TestHashFile(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "f", []byte("abc"))

	sum, err := HashFile(filepath.Join(dir, "f"))
	require.NoError(t, err)
	want := sha256.Sum256([]byte("abc"))
	assert.Equal(t, want[:], sum)

	_, err = HashFile(filepath.Join(dir, "missing"))
	assert.Error(t, err)
}
