// Package manifest implements the canonical manifest written last during
// backup and read first during restore (§4.7): UTF-8 JSON, sorted keys,
// no insignificant whitespace, with the integrity tag computed over the
// manifest's own canonical form excluding the tag field (§9).
package manifest

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/allisson/backydb/internal/errors"
)

// Engine identifies the source database engine and version.
type Engine struct {
	Type    string `json:"type"`
	Version string `json:"version"`
}

// Features records which object categories this backup includes.
type Features struct {
	Tables     bool `json:"tables"`
	Data       bool `json:"data"`
	Views      bool `json:"views"`
	Functions  bool `json:"functions"`
	Procedures bool `json:"procedures"`
	Triggers   bool `json:"triggers"`
	Events     bool `json:"events"`
}

// Transform records one reversible transform applied during backup, in
// application order; restore reverses the chain (§9's "transform_chain is
// authoritative").
type Transform struct {
	Op          string `json:"op"`
	Type        string `json:"type,omitempty"`
	AlgID       uint8  `json:"alg_id,omitempty"`
	KeyProvider string `json:"key_provider,omitempty"`
}

// Artifact describes one stored output file.
type Artifact struct {
	Name   string `json:"name"`
	SHA256 string `json:"sha256"`
	Size   int64  `json:"size"`
}

// Integrity carries the tamper-evidence tag (§4.5). PerKey is only set
// when Type is checksum.
type Integrity struct {
	Type   string            `json:"type"`
	Value  string            `json:"value,omitempty"`
	PerKey map[string]string `json:"per_key,omitempty"`
}

// Manifest is the canonical record of one backup (§6).
type Manifest struct {
	BackupID      string      `json:"backup_id"`
	CreatedAt     time.Time   `json:"created_at"`
	ToolVersion   string      `json:"tool_version"`
	Engine        Engine      `json:"engine"`
	Features      Features    `json:"features"`
	MultipleFiles bool        `json:"multiple_files"`
	Transforms    []Transform `json:"transforms"`
	Artifacts     []Artifact  `json:"artifacts"`
	Integrity     Integrity   `json:"integrity"`
}

// ErrManifestInvalid wraps errors.ErrConfigInvalid for malformed manifest
// JSON encountered on restore.
var ErrManifestInvalid = errors.Wrap(errors.ErrConfigInvalid, "manifest: invalid manifest")

// New builds a Manifest with a fresh uuidv4 backup id and the current
// time truncated to RFC3339-representable precision.
func New(toolVersion string, engine Engine, features Features, multipleFiles bool, now time.Time) *Manifest {
	return &Manifest{
		BackupID:      uuid.NewString(),
		CreatedAt:     now.UTC().Truncate(time.Second),
		ToolVersion:   toolVersion,
		Engine:        engine,
		Features:      features,
		MultipleFiles: multipleFiles,
	}
}

// Canonical renders m as UTF-8 JSON with sorted keys and no insignificant
// whitespace (§4.7). Struct field order alone doesn't guarantee
// alphabetical keys, so the struct is marshaled once, then round-tripped
// through a generic map so encoding/json's own key-sorted map marshaling
// produces the canonical form.
func (m *Manifest) Canonical() ([]byte, error) {
	raw, err := json.Marshal(m)
	if err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "manifest: encode: "+err.Error())
	}

	var generic interface{}
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "manifest: canonicalize: "+err.Error())
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(generic); err != nil {
		return nil, errors.Wrap(errors.ErrInternal, "manifest: canonicalize: "+err.Error())
	}
	// json.Encoder.Encode appends a trailing newline; trim it to match
	// "no insignificant whitespace".
	return bytes.TrimRight(buf.Bytes(), "\n"), nil
}

// CanonicalWithoutIntegrity returns the canonical form of m with its
// Integrity field zeroed, used to compute the integrity tag without the
// tag itself folded into its own input (§9).
func (m *Manifest) CanonicalWithoutIntegrity() ([]byte, error) {
	stripped := *m
	stripped.Integrity = Integrity{}
	return stripped.Canonical()
}

// Parse decodes a canonical manifest from data.
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, errors.Wrap(ErrManifestInvalid, err.Error())
	}
	return &m, nil
}
