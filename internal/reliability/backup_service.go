// Package reliability snapshots and maintains the SQLite databases.
package reliability

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/aristath/folio/internal/database"
	"github.com/aristath/folio/internal/reports"
	"github.com/rs/zerolog"
)

const metadataFile = "backup-metadata.json"

// BackupMetadata is written next to the database files inside each archive
type BackupMetadata struct {
	Timestamp time.Time          `json:"timestamp"`
	Version   string             `json:"version"`
	Databases []DatabaseMetadata `json:"databases"`
}

// DatabaseMetadata describes one database file in a backup
type DatabaseMetadata struct {
	Name      string `json:"name"`
	Filename  string `json:"filename"`
	SizeBytes int64  `json:"size_bytes"`
	Checksum  string `json:"checksum"`
}

// BackupService uploads consistent snapshots of the databases to the report sink
type BackupService struct {
	databases []*database.DB
	sink      reports.ReportSink
	prefix    string
	dataDir   string
	now       func() time.Time
	log       zerolog.Logger
}

// NewBackupService creates a backup service. Staging files live under dataDir.
func NewBackupService(databases []*database.DB, sink reports.ReportSink, prefix, dataDir string, log zerolog.Logger) *BackupService {
	return &BackupService{
		databases: databases,
		sink:      sink,
		prefix:    strings.Trim(prefix, "/"),
		dataDir:   dataDir,
		now:       time.Now,
		log:       log.With().Str("service", "backup").Logger(),
	}
}

// BackupKey returns the object key of an archive taken at t
func BackupKey(prefix string, t time.Time) string {
	name := fmt.Sprintf("folio-backup-%s.tar.gz", t.UTC().Format("2006-01-02-150405"))
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return "backups/" + name
	}
	return prefix + "/backups/" + name
}

// CreateAndUploadBackup snapshots every database with VACUUM INTO, packs the
// snapshots into a tar.gz and uploads it. It returns the object key.
func (s *BackupService) CreateAndUploadBackup(ctx context.Context) (string, error) {
	s.log.Info().Msg("Starting database backup")
	startTime := time.Now()

	stagingDir, err := os.MkdirTemp(s.dataDir, "backup-staging-")
	if err != nil {
		return "", fmt.Errorf("failed to create staging directory: %w", err)
	}
	defer os.RemoveAll(stagingDir)

	at := s.now().UTC()
	metadata := BackupMetadata{
		Timestamp: at,
		Version:   "1",
		Databases: make([]DatabaseMetadata, 0, len(s.databases)),
	}

	for _, db := range s.databases {
		filename := db.Name() + ".db"
		path := filepath.Join(stagingDir, filename)

		s.log.Debug().Str("database", db.Name()).Msg("Snapshotting database")
		if _, err := db.Conn().ExecContext(ctx, "VACUUM INTO ?", path); err != nil {
			return "", fmt.Errorf("failed to snapshot %s: %w", db.Name(), err)
		}

		info, err := os.Stat(path)
		if err != nil {
			return "", fmt.Errorf("failed to stat %s snapshot: %w", db.Name(), err)
		}
		checksum, err := calculateChecksum(path)
		if err != nil {
			return "", fmt.Errorf("failed to calculate checksum for %s: %w", db.Name(), err)
		}

		metadata.Databases = append(metadata.Databases, DatabaseMetadata{
			Name:      db.Name(),
			Filename:  filename,
			SizeBytes: info.Size(),
			Checksum:  checksum,
		})
	}

	archive, err := createArchive(stagingDir, metadata)
	if err != nil {
		return "", fmt.Errorf("failed to create archive: %w", err)
	}

	key := BackupKey(s.prefix, at)
	if err := s.sink.Put(ctx, key, archive); err != nil {
		return "", fmt.Errorf("failed to upload backup: %w", err)
	}

	s.log.Info().
		Dur("duration_ms", time.Since(startTime)).
		Str("key", key).
		Int("size_bytes", len(archive)).
		Int("databases", len(metadata.Databases)).
		Msg("Database backup completed successfully")

	return key, nil
}

// calculateChecksum calculates SHA256 checksum of a file
func calculateChecksum(filePath string) (string, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return "", err
	}
	defer file.Close()

	hash := sha256.New()
	if _, err := io.Copy(hash, file); err != nil {
		return "", err
	}

	return fmt.Sprintf("sha256:%x", hash.Sum(nil)), nil
}

// createArchive packs the metadata and the snapshot files into a gzipped tar
func createArchive(sourceDir string, metadata BackupMetadata) ([]byte, error) {
	var buf bytes.Buffer
	gzipWriter := gzip.NewWriter(&buf)
	tarWriter := tar.NewWriter(gzipWriter)

	meta, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return nil, err
	}
	if err := writeEntry(tarWriter, metadataFile, bytes.NewReader(meta), int64(len(meta)), metadata.Timestamp); err != nil {
		return nil, fmt.Errorf("failed to add %s: %w", metadataFile, err)
	}

	for _, d := range metadata.Databases {
		if err := addFileToArchive(tarWriter, filepath.Join(sourceDir, d.Filename), d.Filename); err != nil {
			return nil, fmt.Errorf("failed to add %s: %w", d.Filename, err)
		}
	}

	if err := tarWriter.Close(); err != nil {
		return nil, err
	}
	if err := gzipWriter.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func addFileToArchive(tarWriter *tar.Writer, filePath, nameInArchive string) error {
	file, err := os.Open(filePath)
	if err != nil {
		return err
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return err
	}
	return writeEntry(tarWriter, nameInArchive, file, info.Size(), info.ModTime())
}

func writeEntry(tarWriter *tar.Writer, name string, r io.Reader, size int64, modTime time.Time) error {
	header := &tar.Header{
		Name:    name,
		Size:    size,
		Mode:    0644,
		ModTime: modTime,
	}
	if err := tarWriter.WriteHeader(header); err != nil {
		return err
	}
	_, err := io.Copy(tarWriter, r)
	return err
}
