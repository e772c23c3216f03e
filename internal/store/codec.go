package store

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/google/uuid"
)

const fileVersion = 1

// corpusFile is the on-disk shape of the identity store. Identities are
// held as raw messages so one corrupt entry cannot poison the rest of
// the file.
type corpusFile struct {
	Version    int               `json:"version"`
	Identities []json.RawMessage `json:"identities"`
}

// decodeCorpus decodes the store file entry-wise. Structurally invalid
// entries (undecodable, missing name, no embeddings, internally
// inconsistent embedding lengths) are dropped and counted instead of
// failing the load. dim is the expected embedding length; 0 adopts the
// length of the first valid entry. repaired reports whether the decoded
// corpus differs from the file (dropped entries or regenerated ids) and
// therefore should be persisted back.
func decodeCorpus(data []byte, dim int) (ids []Identity, dropped int, repaired bool, err error) {
	var file corpusFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, 0, false, fmt.Errorf("unreadable store file: %w", err)
	}

	seen := make(map[string]bool)
	for _, raw := range file.Identities {
		var id Identity
		if err := json.Unmarshal(raw, &id); err != nil {
			dropped++
			continue
		}
		if !validIdentity(&id, dim) || seen[id.ID] {
			dropped++
			continue
		}
		if dim == 0 {
			dim = id.Dim()
		}
		if id.ID == "" {
			id.ID = uuid.NewString()
			repaired = true
		}
		seen[id.ID] = true
		ids = append(ids, id)
	}

	if dropped > 0 {
		repaired = true
	}
	return ids, dropped, repaired, nil
}

// validIdentity reports whether a decoded entry satisfies the corpus
// invariants: a display name, at least one embedding, and every
// embedding of the same expected length.
func validIdentity(id *Identity, dim int) bool {
	if id.DisplayName == "" || len(id.Embeddings) == 0 {
		return false
	}
	if dim == 0 {
		dim = len(id.Embeddings[0])
		if dim == 0 {
			return false
		}
	}
	for _, e := range id.Embeddings {
		if len(e) != dim {
			return false
		}
	}
	return true
}

// encodeCorpus writes the corpus in the store file format. Output is
// indented so operators can inspect and hand-edit the file.
func encodeCorpus(w io.Writer, ids []Identity) error {
	raws := make([]json.RawMessage, len(ids))
	for i := range ids {
		raw, err := json.Marshal(&ids[i])
		if err != nil {
			return fmt.Errorf("failed to encode identity %s: %w", ids[i].ID, err)
		}
		raws[i] = raw
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(corpusFile{Version: fileVersion, Identities: raws})
}
