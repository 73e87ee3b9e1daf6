package audit_test

import (
	"bufio"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jvs-project/ctverify/internal/audit"
	"github.com/jvs-project/ctverify/pkg/model"
)

func readRecords(t *testing.T, path string) []model.AuditRecord {
	t.Helper()
	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()

	var records []model.AuditRecord
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		var r model.AuditRecord
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &r))
		records = append(records, r)
	}
	require.NoError(t, scanner.Err())
	return records
}

func TestFileAppender_AppendCreatesJSONL(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "nested", "audit.jsonl")
	appender := audit.NewFileAppender(logPath)

	require.NoError(t, appender.Append(model.EventTypeTokenSigned, "/data/app/base.apk", map[string]any{"entries": 3}))

	records := readRecords(t, logPath)
	require.Len(t, records, 1)
	assert.Equal(t, model.EventTypeTokenSigned, records[0].EventType)
	assert.Equal(t, "/data/app/base.apk", records[0].BaseArchive)
	assert.Empty(t, records[0].PrevHash)
	assert.Len(t, records[0].RecordHash, 64)
}

func TestFileAppender_HashChain(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	appender := audit.NewFileAppender(logPath)

	require.NoError(t, appender.RecordResult("base.apk", model.VerificationResult{
		SignatureVerified: true, ContentsVerified: true, VerifierCertificateFingerprint: "AA BB",
	}))
	require.NoError(t, appender.RecordResult("base.apk", model.VerificationResult{
		SignatureVerified: true,
		ModifiedFiles:     []string{"classes.dex"},
		ErrorMessage:      "E_CONTENTS_MODIFIED: 1 code file(s) do not match the manifest: classes.dex",
	}))

	records := readRecords(t, logPath)
	require.Len(t, records, 2)
	assert.Equal(t, model.EventTypeVerifyPassed, records[0].EventType)
	assert.Equal(t, model.EventTypeVerifyFailed, records[1].EventType)
	assert.Equal(t, records[0].RecordHash, records[1].PrevHash)
	assert.Equal(t, []any{"classes.dex"}, records[1].Details["modified_files"])

	last, err := appender.LastRecordHash()
	require.NoError(t, err)
	assert.Equal(t, records[1].RecordHash, last)

	n, err := audit.VerifyChain(logPath)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
}

func TestVerifyChain_DetectsTampering(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	appender := audit.NewFileAppender(logPath)
	require.NoError(t, appender.RecordResult("base.apk", model.VerificationResult{ErrorMessage: "E_MISSING_TOKEN: none"}))
	require.NoError(t, appender.RecordResult("base.apk", model.VerificationResult{SignatureVerified: true, ContentsVerified: true}))

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	tampered := strings.Replace(string(data), "E_MISSING_TOKEN: none", "all good", 1)
	require.NoError(t, os.WriteFile(logPath, []byte(tampered), 0o644))

	n, err := audit.VerifyChain(logPath)
	require.ErrorIs(t, err, audit.ErrChainBroken)
	assert.Equal(t, 0, n)
}

func TestVerifyChain_DetectsRemovedRecord(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	appender := audit.NewFileAppender(logPath)
	for i := 0; i < 3; i++ {
		require.NoError(t, appender.Append(model.EventTypeVerifyPassed, "base.apk", nil))
	}

	data, err := os.ReadFile(logPath)
	require.NoError(t, err)
	lines := strings.SplitAfter(string(data), "\n")
	require.NoError(t, os.WriteFile(logPath, []byte(lines[0]+lines[2]), 0o644))

	n, err := audit.VerifyChain(logPath)
	require.ErrorIs(t, err, audit.ErrChainBroken)
	assert.Equal(t, 1, n)
}

func TestFileAppender_ConcurrentAppends(t *testing.T) {
	logPath := filepath.Join(t.TempDir(), "audit.jsonl")
	appender := audit.NewFileAppender(logPath)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, appender.Append(model.EventTypeVerifyPassed, "base.apk", nil))
		}()
	}
	wg.Wait()

	n, err := audit.VerifyChain(logPath)
	require.NoError(t, err)
	assert.Equal(t, 10, n)
}

func TestFileAppender_LastRecordHashMissingFile(t *testing.T) {
	appender := audit.NewFileAppender(filepath.Join(t.TempDir(), "none.jsonl"))
	hash, err := appender.LastRecordHash()
	require.NoError(t, err)
	assert.Empty(t, hash)
}
