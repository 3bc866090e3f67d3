package orchestrator

import (
	"bytes"
	"context"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/allisson/backydb/internal/compressor"
	"github.com/allisson/backydb/internal/envelope"
	apperrors "github.com/allisson/backydb/internal/errors"
	"github.com/allisson/backydb/internal/integrity"
	"github.com/allisson/backydb/internal/keyprovider"
	"github.com/allisson/backydb/internal/schemaengine"
)

// fakeMetrics is an in-memory metrics.BusinessMetrics that records every
// call it receives, so tests can assert the orchestrator reports a stage
// per pipeline step instead of discarding the recorder (see
// internal/app/di.go's Metrics()).
type fakeMetrics struct {
	mu         sync.Mutex
	operations []string
}

func (f *fakeMetrics) RecordOperation(ctx context.Context, domain, operation, status string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.operations = append(f.operations, domain+"."+operation+"."+status)
}

func (f *fakeMetrics) RecordDuration(ctx context.Context, domain, operation string, duration time.Duration, status string) {
}

func (f *fakeMetrics) has(entry string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.operations {
		if o == entry {
			return true
		}
	}
	return false
}

// fakeAdapter is an in-memory schemaengine.Adapter: each enabled category
// extracts a fixed body and apply just records what was executed, in
// call order, for ordering assertions.
type fakeAdapter struct {
	mu      sync.Mutex
	bodies  map[schemaengine.ObjectCategory]string
	applied []schemaengine.ObjectCategory
	version string
}

func newFakeAdapter() *fakeAdapter {
	return &fakeAdapter{
		bodies: map[schemaengine.ObjectCategory]string{
			schemaengine.Tables: "CREATE TABLE departments (id INT PRIMARY KEY);\n",
			schemaengine.Data:   "INSERT INTO departments (id) VALUES (1);\n",
			schemaengine.Views:  "CREATE VIEW v AS SELECT * FROM departments;\n",
		},
		version: "8.0.35",
	}
}

func (a *fakeAdapter) EngineType() string { return "mysql" }

func (a *fakeAdapter) EngineVersion(ctx context.Context) (string, error) {
	return a.version, nil
}

func (a *fakeAdapter) Extract(ctx context.Context, category schemaengine.ObjectCategory) (io.Reader, error) {
	body, ok := a.bodies[category]
	if !ok {
		return strReader(""), nil
	}
	return strReader(body), nil
}

func (a *fakeAdapter) Apply(ctx context.Context, category schemaengine.ObjectCategory, body io.Reader) error {
	if _, err := io.ReadAll(body); err != nil {
		return err
	}
	a.mu.Lock()
	a.applied = append(a.applied, category)
	a.mu.Unlock()
	return nil
}

func strReader(s string) io.Reader { return bytes.NewReader([]byte(s)) }

func testFeatures() schemaengine.Features {
	return schemaengine.Features{Tables: true, Data: true, Views: true}
}

// fakeStore is an in-memory storage.Store.
type fakeStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newFakeStore() *fakeStore {
	return &fakeStore{objects: make(map[string][]byte)}
}

func (s *fakeStore) Put(ctx context.Context, name string, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	s.mu.Lock()
	s.objects[name] = data
	s.mu.Unlock()
	return name, nil
}

func (s *fakeStore) Get(ctx context.Context, name string) (io.ReadCloser, error) {
	s.mu.Lock()
	data, ok := s.objects[name]
	s.mu.Unlock()
	if !ok {
		return nil, apperrors.Wrap(apperrors.ErrStorageNotFound, "fake: not found: "+name)
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *fakeStore) List(ctx context.Context, prefix string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var names []string
	for name := range s.objects {
		names = append(names, name)
	}
	return names, nil
}

func (s *fakeStore) Delete(ctx context.Context, name string) error {
	s.mu.Lock()
	delete(s.objects, name)
	s.mu.Unlock()
	return nil
}

func (s *fakeStore) Close() error { return nil }

// fakeWrapper is a trivial KeyWrapper/Provider that XORs with a fixed
// byte so wrap/unwrap is reversible without real asymmetric crypto.
type fakeWrapper struct{}

func (fakeWrapper) Wrap(dataKey []byte) ([]byte, error) {
	out := make([]byte, len(dataKey))
	for i, b := range dataKey {
		out[i] = b ^ 0x42
	}
	return out, nil
}

func (fakeWrapper) Unwrap(wrapped []byte) ([]byte, error) {
	out := make([]byte, len(wrapped))
	for i, b := range wrapped {
		out[i] = b ^ 0x42
	}
	return out, nil
}

func (fakeWrapper) PublicParams() keyprovider.PublicParams {
	return keyprovider.PublicParams{Algorithm: keyprovider.Opaque, KeySize: 0}
}

func baseDeps(store *fakeStore, adapter *fakeAdapter) BackupDeps {
	return BackupDeps{
		Adapter:         adapter,
		KeyWrapper:      fakeWrapper{},
		KeyProviderName: "local",
		EnvelopeAlg:     envelope.AESGCM,
		Store:           store,
		IntegritySecret: []byte("shared-secret"),
		ToolVersion:     "1.0.0-test",
	}
}

func TestBackupRestore_RawMode(t *testing.T) {
	store := newFakeStore()
	adapter := newFakeAdapter()
	deps := baseDeps(store, adapter)

	job := BackupJob{Features: testFeatures(), StoragePrefix: "job1"}
	m, state, err := Backup(context.Background(), job, deps)
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.Len(t, m.Artifacts, 1)
	assert.Equal(t, "dump.sql", m.Artifacts[0].Name)
	assert.Empty(t, m.Transforms)

	restoreAdapter := newFakeAdapter()
	restoreAdapter.bodies = nil // extraction isn't used during restore
	rdeps := RestoreDeps{Adapter: restoreAdapter, KeyWrapper: fakeWrapper{}, Store: store}
	state, err = Restore(context.Background(), RestoreJob{BackupPath: "job1"}, rdeps)
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.Equal(t, []schemaengine.ObjectCategory{
		schemaengine.Tables, schemaengine.Views, schemaengine.Data,
	}, restoreAdapter.applied)
}

func TestBackupRestore_FullMode_CompressEncryptHMAC(t *testing.T) {
	store := newFakeStore()
	adapter := newFakeAdapter()
	deps := baseDeps(store, adapter)
	deps.IntegritySecret = []byte("top-secret")

	job := BackupJob{
		Features:       testFeatures(),
		StoragePrefix:  "job2",
		Compress:       true,
		CompressType:   compressor.Tar,
		Encrypt:        true,
		KeySize:        4096,
		IntegrityCheck: true,
		IntegrityType:  integrity.HMAC,
	}
	m, state, err := Backup(context.Background(), job, deps)
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	require.Len(t, m.Artifacts, 1)
	assert.Equal(t, "dump.backy", m.Artifacts[0].Name)
	require.Len(t, m.Transforms, 2)
	assert.Equal(t, "compress", m.Transforms[0].Op)
	assert.Equal(t, "encrypt", m.Transforms[1].Op)
	assert.Equal(t, string(integrity.HMAC), m.Integrity.Type)
	assert.NotEmpty(t, m.Integrity.Value)

	restoreAdapter := newFakeAdapter()
	rdeps := RestoreDeps{Adapter: restoreAdapter, KeyWrapper: fakeWrapper{}, Store: store, IntegritySecret: []byte("top-secret")}
	state, err = Restore(context.Background(), RestoreJob{BackupPath: "job2", IntegritySecret: []byte("top-secret")}, rdeps)
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.Equal(t, []schemaengine.ObjectCategory{
		schemaengine.Tables, schemaengine.Views, schemaengine.Data,
	}, restoreAdapter.applied)
}

func TestBackupRestore_FullMode_RecordsMetricsPerStage(t *testing.T) {
	store := newFakeStore()
	adapter := newFakeAdapter()
	deps := baseDeps(store, adapter)
	fm := &fakeMetrics{}
	deps.Metrics = fm

	job := BackupJob{
		Features:      testFeatures(),
		StoragePrefix: "job-metrics",
		Compress:      true,
		CompressType:  compressor.Tar,
		Encrypt:       true,
		KeySize:       4096,
	}
	_, state, err := Backup(context.Background(), job, deps)
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.True(t, fm.has("backup.extract.success"))
	assert.True(t, fm.has("backup.compress.success"))
	assert.True(t, fm.has("backup.encrypt.success"))
	assert.True(t, fm.has("backup.store.success"))
	assert.True(t, fm.has("backup.manifest.success"))

	restoreAdapter := newFakeAdapter()
	rfm := &fakeMetrics{}
	rdeps := RestoreDeps{Adapter: restoreAdapter, KeyWrapper: fakeWrapper{}, Store: store, Metrics: rfm}
	state, err = Restore(context.Background(), RestoreJob{BackupPath: "job-metrics"}, rdeps)
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.True(t, rfm.has("restore.fetch.success"))
	assert.True(t, rfm.has("restore.decrypt.success"))
	assert.True(t, rfm.has("restore.decompress.success"))
	assert.True(t, rfm.has("restore.apply.success"))
}

func TestBackupRestore_MultipleFiles_NoCompression(t *testing.T) {
	store := newFakeStore()
	adapter := newFakeAdapter()
	deps := baseDeps(store, adapter)

	job := BackupJob{Features: testFeatures(), MultipleFiles: true, StoragePrefix: "job3", Encrypt: true, KeySize: 4096}
	m, state, err := Backup(context.Background(), job, deps)
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.Len(t, m.Artifacts, 3)
	for _, a := range m.Artifacts {
		assert.Contains(t, a.Name, ".backy")
	}

	restoreAdapter := newFakeAdapter()
	rdeps := RestoreDeps{Adapter: restoreAdapter, KeyWrapper: fakeWrapper{}, Store: store}
	state, err = Restore(context.Background(), RestoreJob{BackupPath: "job3"}, rdeps)
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.ElementsMatch(t, []schemaengine.ObjectCategory{
		schemaengine.Tables, schemaengine.Views, schemaengine.Data,
	}, restoreAdapter.applied)
}

func TestBackupRestore_MultipleFiles_Compressed(t *testing.T) {
	store := newFakeStore()
	adapter := newFakeAdapter()
	deps := baseDeps(store, adapter)

	job := BackupJob{
		Features:      testFeatures(),
		MultipleFiles: true,
		Compress:      true,
		CompressType:  compressor.Zip,
		StoragePrefix: "job4",
	}
	m, state, err := Backup(context.Background(), job, deps)
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	require.Len(t, m.Artifacts, 1)
	assert.Equal(t, "dump.backy", m.Artifacts[0].Name)

	restoreAdapter := newFakeAdapter()
	rdeps := RestoreDeps{Adapter: restoreAdapter, KeyWrapper: fakeWrapper{}, Store: store}
	state, err = Restore(context.Background(), RestoreJob{BackupPath: "job4"}, rdeps)
	require.NoError(t, err)
	assert.Equal(t, StateDone, state)
	assert.Equal(t, []schemaengine.ObjectCategory{
		schemaengine.Tables, schemaengine.Views, schemaengine.Data,
	}, restoreAdapter.applied)
}

func TestRestore_TamperedIntegrityFails(t *testing.T) {
	store := newFakeStore()
	adapter := newFakeAdapter()
	deps := baseDeps(store, adapter)
	deps.IntegritySecret = []byte("s3cr3t")

	job := BackupJob{
		Features:       testFeatures(),
		StoragePrefix:  "job5",
		Encrypt:        true,
		KeySize:        4096,
		IntegrityCheck: true,
		IntegrityType:  integrity.HMAC,
	}
	_, state, err := Backup(context.Background(), job, deps)
	require.NoError(t, err)
	require.Equal(t, StateDone, state)

	// Flip a byte in the stored artifact.
	store.mu.Lock()
	data := store.objects["job5/dump.backy"]
	data[len(data)/2] ^= 0xFF
	store.objects["job5/dump.backy"] = data
	store.mu.Unlock()

	restoreAdapter := newFakeAdapter()
	rdeps := RestoreDeps{Adapter: restoreAdapter, KeyWrapper: fakeWrapper{}, Store: store, IntegritySecret: []byte("s3cr3t")}
	state, err = Restore(context.Background(), RestoreJob{BackupPath: "job5", IntegritySecret: []byte("s3cr3t")}, rdeps)
	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
	assert.True(t, apperrors.Is(err, apperrors.ErrIntegrityFailure))
	assert.Empty(t, restoreAdapter.applied)
}

func TestRestore_EngineVersionMismatchFails(t *testing.T) {
	store := newFakeStore()
	adapter := newFakeAdapter()
	deps := baseDeps(store, adapter)

	job := BackupJob{Features: testFeatures(), StoragePrefix: "job6"}
	_, state, err := Backup(context.Background(), job, deps)
	require.NoError(t, err)
	require.Equal(t, StateDone, state)

	restoreAdapter := newFakeAdapter()
	restoreAdapter.version = "9.1.0"
	rdeps := RestoreDeps{Adapter: restoreAdapter, KeyWrapper: fakeWrapper{}, Store: store}
	state, err = Restore(context.Background(), RestoreJob{BackupPath: "job6"}, rdeps)
	require.Error(t, err)
	assert.Equal(t, StateFailed, state)
	assert.True(t, apperrors.Is(err, ErrEngineVersionIncompatible))
	assert.Empty(t, restoreAdapter.applied)
}

func TestRestore_KeyMismatchFailsIntegrity(t *testing.T) {
	store := newFakeStore()
	adapter := newFakeAdapter()
	deps := baseDeps(store, adapter)

	job := BackupJob{Features: testFeatures(), StoragePrefix: "job7", Encrypt: true, KeySize: 4096}
	_, state, err := Backup(context.Background(), job, deps)
	require.NoError(t, err)
	require.Equal(t, StateDone, state)

	restoreAdapter := newFakeAdapter()
	wrongWrapper := wrongKeyWrapper{}
	rdeps := RestoreDeps{Adapter: restoreAdapter, KeyWrapper: wrongWrapper, Store: store}
	_, err = Restore(context.Background(), RestoreJob{BackupPath: "job7"}, rdeps)
	require.Error(t, err)
	assert.Empty(t, restoreAdapter.applied)
}

type wrongKeyWrapper struct{}

func (wrongKeyWrapper) Wrap(dataKey []byte) ([]byte, error) { return dataKey, nil }
func (wrongKeyWrapper) Unwrap(wrapped []byte) ([]byte, error) {
	out := make([]byte, len(wrapped))
	for i, b := range wrapped {
		out[i] = b ^ 0x99
	}
	return out, nil
}

func TestBuildOutputs_CompressionAlonePicksBackyExtension(t *testing.T) {
	segs := []categorySegment{{Category: schemaengine.Tables, Data: []byte("CREATE TABLE t (id INT);\n")}}
	deps := BackupDeps{EnvelopeAlg: envelope.AESGCM}
	job := BackupJob{Compress: true, CompressType: compressor.Tar}

	outputs, transforms, err := buildOutputs(context.Background(), job, deps, segs)
	require.NoError(t, err)
	require.Len(t, outputs, 1)
	assert.Equal(t, "dump.backy", outputs[0].name)
	require.Len(t, transforms, 1)
	assert.Equal(t, "compress", transforms[0].Op)
}

func TestConcatSplitSegments_RoundTrip(t *testing.T) {
	segs := []categorySegment{
		{Category: schemaengine.Tables, Data: []byte("CREATE TABLE t (id INT);\n")},
		{Category: schemaengine.Views, Data: []byte("CREATE VIEW v AS SELECT 1;\n")},
		{Category: schemaengine.Data, Data: []byte("INSERT INTO t VALUES (1);\n")},
	}
	dump := concatSegments(segs)
	got, err := splitSegments(dump)
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i, s := range segs {
		assert.Equal(t, s.Category, got[i].Category)
		assert.Equal(t, s.Data, got[i].Data)
	}
}
