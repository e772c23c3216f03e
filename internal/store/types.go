package store

// Identity is one enrolled person: profile data plus one or more face
// embeddings. An identity accumulates embeddings over repeated
// enrollments, which improves match recall.
type Identity struct {
	ID          string            `json:"id"`
	DisplayName string            `json:"display_name"`
	Attributes  map[string]string `json:"attributes,omitempty"`
	Embeddings  [][]float32       `json:"embeddings"`
}

// Dim returns the embedding length of the identity, or 0 when it has no
// embeddings (which a valid record never does).
func (id *Identity) Dim() int {
	if len(id.Embeddings) == 0 {
		return 0
	}
	return len(id.Embeddings[0])
}

// Clone deep-copies the identity so snapshots cannot alias store state.
func (id *Identity) Clone() Identity {
	out := Identity{
		ID:          id.ID,
		DisplayName: id.DisplayName,
		Embeddings:  make([][]float32, len(id.Embeddings)),
	}
	if id.Attributes != nil {
		out.Attributes = make(map[string]string, len(id.Attributes))
		for k, v := range id.Attributes {
			out.Attributes[k] = v
		}
	}
	for i, e := range id.Embeddings {
		emb := make([]float32, len(e))
		copy(emb, e)
		out.Embeddings[i] = emb
	}
	return out
}
