// Package docstore persists the indexed document set: chunked passages with
// their embedding vectors in sqlite, plus loading, splitting and directory
// watching. It backs the retrieval provider's similarity search.
package docstore

import (
	"context"
	"crypto/md5"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/harborseal/harborseal/internal/schema"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS documents (
	name     TEXT PRIMARY KEY,
	path     TEXT NOT NULL,
	hash     TEXT NOT NULL,
	chunks   INTEGER NOT NULL,
	added_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS chunks (
	id        TEXT PRIMARY KEY,
	doc_name  TEXT NOT NULL,
	seq       INTEGER NOT NULL,
	content   TEXT NOT NULL,
	embedding BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_chunks_doc ON chunks(doc_name);
`

// Store manages the document index persisted to sqlite.
type Store struct {
	db       *sql.DB
	embedder schema.Embedder
	splitter *Splitter
}

// AddReport summarises one indexing pass: human-readable lines per file.
type AddReport struct {
	Added   []string
	Skipped []string
	Removed []string
	Errors  []string
}

// DocumentInfo is one indexed document's bookkeeping row.
type DocumentInfo struct {
	Name    string
	Path    string
	Hash    string
	Chunks  int
	AddedAt time.Time
}

// Stats aggregates the index state.
type Stats struct {
	TotalDocuments int
	TotalChunks    int
	HasDocuments   bool
}

// Passage is one similarity-search hit.
type Passage struct {
	Content    string
	SourceFile string
	Score      float64
}

// Open opens (creating if needed) the index database at path.
func Open(path string, embedder schema.Embedder, chunkSize, chunkOverlap int) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create index directory: %w", err)
	}

	db, err := sql.Open("sqlite", "file:"+path+"?_journal_mode=WAL&_busy_timeout=10000")
	if err != nil {
		return nil, fmt.Errorf("open index database: %w", err)
	}
	// Single connection serialises writes.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schemaSQL); err != nil {
		db.Close() //nolint:errcheck
		return nil, fmt.Errorf("create index schema: %w", err)
	}

	return &Store{
		db:       db,
		embedder: embedder,
		splitter: NewSplitter(chunkSize, chunkOverlap),
	}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// HasDocuments reports whether any chunk is indexed.
func (s *Store) HasDocuments(ctx context.Context) (bool, error) {
	var exists bool
	err := s.db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM chunks)`).Scan(&exists)
	return exists, err
}

// Add indexes each given file: loads, splits, embeds and stores its chunks.
// A file whose content hash is unchanged is skipped; a changed file is
// re-indexed from scratch. Per-file failures land in the report, never
// abort the pass.
func (s *Store) Add(ctx context.Context, paths []string) AddReport {
	var report AddReport
	for _, path := range paths {
		s.addOne(ctx, path, &report)
	}
	return report
}

func (s *Store) addOne(ctx context.Context, path string, report *AddReport) {
	if _, err := os.Stat(path); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("file not found: %s", path))
		return
	}
	name := filepath.Base(path)

	data, err := os.ReadFile(path)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("read %s: %v", path, err))
		return
	}
	sum := fmt.Sprintf("%x", md5.Sum(data))

	var prevHash string
	err = s.db.QueryRowContext(ctx, `SELECT hash FROM documents WHERE name = ?`, name).Scan(&prevHash)
	switch {
	case err == nil && prevHash == sum:
		report.Skipped = append(report.Skipped, fmt.Sprintf("unchanged: %s", name))
		return
	case err == nil:
		if _, err := s.Remove(ctx, name); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("reindex %s: %v", name, err))
			return
		}
	case !errors.Is(err, sql.ErrNoRows):
		report.Errors = append(report.Errors, fmt.Sprintf("lookup %s: %v", name, err))
		return
	}

	text, err := LoadFile(path)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("load %s: %v", path, err))
		return
	}
	pieces := s.splitter.Split(text)
	if len(pieces) == 0 {
		return
	}

	vectors, err := s.embedder.Embed(ctx, pieces)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("embed %s: %v", name, err))
		return
	}
	if len(vectors) != len(pieces) {
		report.Errors = append(report.Errors, fmt.Sprintf("embed %s: got %d vectors for %d chunks", name, len(vectors), len(pieces)))
		return
	}

	err = s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO documents(name, path, hash, chunks, added_at) VALUES(?, ?, ?, ?, ?)`,
			name, path, sum, len(pieces), time.Now().Format(time.RFC3339)); err != nil {
			return err
		}
		for i, piece := range pieces {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO chunks(id, doc_name, seq, content, embedding) VALUES(?, ?, ?, ?, ?)`,
				uuid.NewString(), name, i, piece, encodeVector(vectors[i])); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("store %s: %v", name, err))
		return
	}

	slog.Info("Document indexed", "file", name, "chunks", len(pieces))
	report.Added = append(report.Added, fmt.Sprintf("added: %s (%d chunks)", name, len(pieces)))
}

// Remove drops one document and all its chunks. The bool reports whether
// the document existed.
func (s *Store) Remove(ctx context.Context, fileName string) (bool, error) {
	var exists bool
	if err := s.db.QueryRowContext(ctx,
		`SELECT EXISTS(SELECT 1 FROM documents WHERE name = ?)`, fileName).Scan(&exists); err != nil {
		return false, err
	}
	if !exists {
		return false, nil
	}

	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE doc_name = ?`, fileName); err != nil {
			return err
		}
		_, err := tx.ExecContext(ctx, `DELETE FROM documents WHERE name = ?`, fileName)
		return err
	})
	if err != nil {
		return false, err
	}

	slog.Info("Document removed", "file", fileName)
	return true, nil
}

// List returns every indexed document, sorted by name.
func (s *Store) List(ctx context.Context) ([]DocumentInfo, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, path, hash, chunks, added_at FROM documents ORDER BY name`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var docs []DocumentInfo
	for rows.Next() {
		var d DocumentInfo
		var addedAt string
		if err := rows.Scan(&d.Name, &d.Path, &d.Hash, &d.Chunks, &addedAt); err != nil {
			return nil, err
		}
		d.AddedAt, _ = time.Parse(time.RFC3339, addedAt)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// Stats aggregates document and chunk counts.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	var st Stats
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*), COALESCE(SUM(chunks), 0) FROM documents`).Scan(&st.TotalDocuments, &st.TotalChunks)
	if err != nil {
		return Stats{}, err
	}
	st.HasDocuments = st.TotalChunks > 0
	return st, nil
}

// SimilaritySearch embeds the query and returns the k most similar passages
// by cosine similarity, best first.
func (s *Store) SimilaritySearch(ctx context.Context, query string, k int) ([]Passage, error) {
	if k <= 0 {
		k = 5
	}
	vectors, err := s.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vectors) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors", len(vectors))
	}
	queryVec := vectors[0]

	rows, err := s.db.QueryContext(ctx, `SELECT content, doc_name, embedding FROM chunks`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var hits []Passage
	for rows.Next() {
		var p Passage
		var blob []byte
		if err := rows.Scan(&p.Content, &p.SourceFile, &blob); err != nil {
			return nil, err
		}
		p.Score = cosine(queryVec, decodeVector(blob))
		hits = append(hits, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// SyncDir makes the index match dir: every regular file found is indexed
// (unchanged files are skipped by the hash check in Add), and documents
// whose source file under dir has disappeared are dropped. Dotfiles are
// ignored. Documents added from paths outside dir are never pruned.
func (s *Store) SyncDir(ctx context.Context, dir string) (AddReport, error) {
	var paths []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if strings.HasPrefix(d.Name(), ".") {
			if d.IsDir() && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		if d.IsDir() {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return AddReport{}, err
	}
	sort.Strings(paths)

	report := s.Add(ctx, paths)
	s.pruneMissing(ctx, dir, paths, &report)
	return report, nil
}

// pruneMissing removes documents whose stored path lies under dir but is no
// longer present on disk.
func (s *Store) pruneMissing(ctx context.Context, dir string, onDisk []string, report *AddReport) {
	present := make(map[string]bool, len(onDisk))
	for _, p := range onDisk {
		present[filepath.Clean(p)] = true
	}
	prefix := filepath.Clean(dir) + string(os.PathSeparator)

	docs, err := s.List(ctx)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("prune %s: %v", dir, err))
		return
	}
	for _, doc := range docs {
		path := filepath.Clean(doc.Path)
		if !strings.HasPrefix(path, prefix) || present[path] {
			continue
		}
		if _, err := s.Remove(ctx, doc.Name); err != nil {
			report.Errors = append(report.Errors, fmt.Sprintf("remove %s: %v", doc.Name, err))
			continue
		}
		report.Removed = append(report.Removed, fmt.Sprintf("removed: %s", doc.Name))
	}
}

func (s *Store) withTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback() //nolint:errcheck
		return err
	}
	return tx.Commit()
}

// ---------------------------------------------------------------------------
// Vector helpers
// ---------------------------------------------------------------------------

func encodeVector(v []float32) []byte {
	buf := make([]byte, 4*len(v))
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(b []byte) []float32 {
	v := make([]float32, len(b)/4)
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*4:]))
	}
	return v
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
