// Package audit keeps a hash-chained JSONL log of verification outcomes.
package audit

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gowebpki/jcs"

	"github.com/jvs-project/ctverify/internal/integrity"
	"github.com/jvs-project/ctverify/pkg/model"
)

// ErrChainBroken is returned by VerifyChain when a record does not link to
// its predecessor or its hash does not match its content.
var ErrChainBroken = errors.New("audit chain broken")

// FileAppender appends audit records to a JSONL file with hash chain.
type FileAppender struct {
	path string
	mu   sync.Mutex
	now  func() time.Time
}

// NewFileAppender creates a new FileAppender.
func NewFileAppender(path string) *FileAppender {
	return &FileAppender{path: path, now: time.Now}
}

// Path returns the log file location.
func (a *FileAppender) Path() string {
	return a.path
}

// RecordResult appends the outcome of one verification run.
func (a *FileAppender) RecordResult(baseArchive string, result model.VerificationResult) error {
	eventType := model.EventTypeVerifyFailed
	if result.IsVerified() {
		eventType = model.EventTypeVerifyPassed
	}
	details := map[string]any{
		"signature_verified": result.SignatureVerified,
		"contents_verified":  result.ContentsVerified,
	}
	if result.VerifierCertificateFingerprint != "" {
		details["verifier_certificate_fingerprint"] = result.VerifierCertificateFingerprint
	}
	if len(result.ModifiedFiles) > 0 {
		details["modified_files"] = result.ModifiedFiles
	}
	if result.ErrorMessage != "" {
		details["error_message"] = result.ErrorMessage
	}
	return a.Append(eventType, baseArchive, details)
}

// Append adds a new audit record to the log.
func (a *FileAppender) Append(eventType model.AuditEventType, baseArchive string, details map[string]any) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(a.path), 0o755); err != nil {
		return fmt.Errorf("create audit dir: %w", err)
	}

	file, err := os.OpenFile(a.path, os.O_CREATE|os.O_RDWR, 0o644)
	if err != nil {
		return fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	if err := lockFile(file); err != nil {
		return fmt.Errorf("lock audit log: %w", err)
	}
	defer unlockFile(file)

	prevHash, err := lastRecordHash(file)
	if err != nil {
		return fmt.Errorf("get last record hash: %w", err)
	}

	record := &model.AuditRecord{
		Timestamp:   a.now().UTC(),
		EventType:   eventType,
		BaseArchive: baseArchive,
		Details:     details,
		PrevHash:    prevHash,
	}
	recordHash, err := computeRecordHash(record)
	if err != nil {
		return fmt.Errorf("compute record hash: %w", err)
	}
	record.RecordHash = recordHash

	line, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal audit record: %w", err)
	}
	if _, err := file.Seek(0, io.SeekEnd); err != nil {
		return fmt.Errorf("seek to end: %w", err)
	}
	if _, err := file.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("write audit record: %w", err)
	}
	if err := file.Sync(); err != nil {
		return fmt.Errorf("sync audit log: %w", err)
	}
	return nil
}

// LastRecordHash returns the hash of the last record in the log.
func (a *FileAppender) LastRecordHash() (model.HashValue, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	file, err := os.Open(a.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()
	return lastRecordHash(file)
}

func lastRecordHash(file *os.File) (model.HashValue, error) {
	if _, err := file.Seek(0, io.SeekStart); err != nil {
		return "", fmt.Errorf("seek to start: %w", err)
	}

	var lastHash model.HashValue
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var record model.AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			continue // skip malformed lines
		}
		lastHash = record.RecordHash
	}
	if err := scanner.Err(); err != nil {
		return "", fmt.Errorf("scan audit log: %w", err)
	}
	return lastHash, nil
}

// VerifyChain reads the log at path and checks every record hash and link.
// It returns the number of records checked.
func VerifyChain(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open audit log: %w", err)
	}
	defer file.Close()

	var (
		prev  model.HashValue
		count int
	)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		count++
		var record model.AuditRecord
		if err := json.Unmarshal(scanner.Bytes(), &record); err != nil {
			return count - 1, fmt.Errorf("%w: line %d: %v", ErrChainBroken, count, err)
		}
		if record.PrevHash != prev {
			return count - 1, fmt.Errorf("%w: line %d does not link to its predecessor", ErrChainBroken, count)
		}
		want, err := computeRecordHash(&record)
		if err != nil {
			return count - 1, fmt.Errorf("line %d: %w", count, err)
		}
		if want != record.RecordHash {
			return count - 1, fmt.Errorf("%w: line %d hash mismatch", ErrChainBroken, count)
		}
		prev = record.RecordHash
	}
	if err := scanner.Err(); err != nil {
		return count, fmt.Errorf("scan audit log: %w", err)
	}
	return count, nil
}

// computeRecordHash hashes the RFC 8785 form of record without its own hash.
func computeRecordHash(record *model.AuditRecord) (model.HashValue, error) {
	hashRecord := *record
	hashRecord.RecordHash = ""

	data, err := json.Marshal(&hashRecord)
	if err != nil {
		return "", fmt.Errorf("marshal: %w", err)
	}
	canonical, err := jcs.Transform(data)
	if err != nil {
		return "", fmt.Errorf("canonicalize: %w", err)
	}
	return integrity.DigestBytes(canonical), nil
}
