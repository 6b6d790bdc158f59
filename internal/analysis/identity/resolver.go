package identity

import (
	"bytes"
	"crypto/sha256"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"unicode"

	"github.com/cuongbtq/lecture-analysis/internal/analysis/domain"
)

const (
	// DefaultExtension is used when the upload name carries no usable extension
	DefaultExtension = ".mp4"

	untitledName = "untitled"
)

// Request describes a staged upload awaiting an id
type Request struct {
	Owner    string
	Filename string
	Size     int64
	Hash     []byte // SHA-256 of the upload
}

// Resolution is the id assigned to an upload
type Resolution struct {
	ID        string
	Extension string
	Duplicate bool
}

// MediaFileName is the on-disk name of the uploaded media for this resolution
func (r Resolution) MediaFileName() string {
	return r.ID + r.Extension
}

// Resolver derives job ids from owner and filename and detects re-uploads of
// identical content already stored in the upload directory.
type Resolver struct {
	dir    string
	logger *slog.Logger

	mu       sync.Mutex
	reserved map[string]struct{}

	hashFile func(path string) ([]byte, error)
}

// NewResolver creates a resolver over the upload directory dir
func NewResolver(dir string, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{
		dir:      dir,
		logger:   logger,
		reserved: make(map[string]struct{}),
		hashFile: HashFile,
	}
}

// BaseID returns {owner}_{filenameWithoutExtension} with both parts normalised.
func BaseID(owner, filename string) string {
	return sanitize(owner) + "_" + stem(filename)
}

// Extension returns the normalised lowercase extension of filename, including the dot.
func Extension(filename string) string {
	ext := strings.ToLower(filepath.Ext(baseName(filename)))
	if len(ext) < 2 {
		return DefaultExtension
	}
	for _, r := range ext[1:] {
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return DefaultExtension
		}
	}
	return ext
}

// Resolve returns an existing id when identical content is already stored,
// otherwise reserves and returns a fresh id. Fresh ids must be released with
// Release once the media file has been moved into place.
func (r *Resolver) Resolve(req Request) (Resolution, error) {
	if strings.TrimSpace(req.Owner) == "" {
		return Resolution{}, domain.ErrOwnerRequired
	}

	ext := Extension(req.Filename)
	if strings.TrimSpace(req.Filename) == "" {
		id, err := r.mint(sanitize(req.Owner) + "_" + untitledName)
		if err != nil {
			return Resolution{}, err
		}
		return Resolution{ID: id, Extension: DefaultExtension}, nil
	}

	base := BaseID(req.Owner, req.Filename)

	if id, ok := r.findDuplicate(base, ext, req); ok {
		r.logger.Info("Duplicate upload detected",
			slog.String("job_id", id),
			slog.String("owner", req.Owner),
		)
		return Resolution{ID: id, Extension: ext, Duplicate: true}, nil
	}

	id, err := r.mint(base)
	if err != nil {
		return Resolution{}, err
	}
	return Resolution{ID: id, Extension: ext}, nil
}

// Release drops the reservation held for id
func (r *Resolver) Release(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.reserved, id)
}

func (r *Resolver) findDuplicate(base, ext string, req Request) (string, bool) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.logger.Warn("Failed to list upload directory for duplicate detection",
			slog.String("dir", r.dir),
			slog.Any("error", err),
		)
		return "", false
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.HasSuffix(name, ext) {
			continue
		}
		candidate := strings.TrimSuffix(name, ext)
		if !isCandidateOf(candidate, base) {
			continue
		}

		info, err := entry.Info()
		if err != nil {
			r.logger.Warn("Skipping duplicate candidate",
				slog.String("file", name),
				slog.Any("error", err),
			)
			continue
		}
		if info.Size() != req.Size {
			continue
		}

		sum, err := r.hashFile(filepath.Join(r.dir, name))
		if err != nil {
			r.logger.Warn("Skipping duplicate candidate",
				slog.String("file", name),
				slog.Any("error", err),
			)
			continue
		}
		if bytes.Equal(sum, req.Hash) {
			return candidate, true
		}
	}

	return "", false
}

// mint reserves the first of base, base(1), base(2), ... that is neither
// reserved nor owns any file in the upload directory. Ids are shared by the
// media file and every derived file, so a candidate is taken whatever the
// extension of its media.
func (r *Resolver) mint(base string) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	used, err := r.usedIDs()
	if err != nil {
		return "", err
	}

	for n := 0; ; n++ {
		candidate := base
		if n > 0 {
			candidate = fmt.Sprintf("%s(%d)", base, n)
		}
		if _, taken := r.reserved[candidate]; taken {
			continue
		}
		if _, taken := used[candidate]; taken {
			continue
		}

		r.reserved[candidate] = struct{}{}
		return candidate, nil
	}
}

func (r *Resolver) usedIDs() (map[string]struct{}, error) {
	entries, err := os.ReadDir(r.dir)
	if os.IsNotExist(err) {
		return map[string]struct{}{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list upload directory: %w", err)
	}

	used := make(map[string]struct{}, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		for _, id := range idsOf(entry.Name()) {
			used[id] = struct{}{}
		}
	}
	return used, nil
}

// idsOf returns the ids a file in the upload directory may belong to: the
// name without its extension (media) and, for audio and artifact files, the
// id they were derived from.
func idsOf(name string) []string {
	ids := []string{strings.TrimSuffix(name, filepath.Ext(name))}
	if id, ok := strings.CutSuffix(name, domain.AudioFileName("")); ok && id != "" {
		ids = append(ids, id)
	}
	for _, kind := range domain.ArtifactKinds {
		if id, ok := strings.CutSuffix(name, kind.FileName("")); ok && id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// HashFile returns the SHA-256 digest of the file at path
func HashFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return nil, fmt.Errorf("failed to hash file: %w", err)
	}
	return h.Sum(nil), nil
}

// isCandidateOf matches base itself and base(n)
func isCandidateOf(candidate, base string) bool {
	if candidate == base {
		return true
	}
	rest, ok := strings.CutPrefix(candidate, base)
	if !ok || len(rest) < 3 || rest[0] != '(' || rest[len(rest)-1] != ')' {
		return false
	}
	_, err := strconv.Atoi(rest[1 : len(rest)-1])
	return err == nil
}

func baseName(filename string) string {
	return filepath.Base(strings.ReplaceAll(filename, "\\", "/"))
}

func stem(filename string) string {
	name := baseName(filename)
	name = strings.TrimSuffix(name, filepath.Ext(name))
	s := sanitize(name)
	if strings.Trim(s, "_") == "" {
		return untitledName
	}
	return s
}

// sanitize keeps letters, digits, '-' and '_'; everything else becomes '_'.
func sanitize(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' {
			return r
		}
		return '_'
	}, s)
}
