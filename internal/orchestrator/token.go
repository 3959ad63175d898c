package orchestrator

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"github.com/apertium/apertium-stats-service/internal/entry"
)

// tokenPayload is the wire shape of a poll token. The token is stateless:
// it pins the revision resolved at submission time so polling never
// re-resolves "latest", and carries nothing a client could not already
// reconstruct from its own request.
type tokenPayload struct {
	Name     string `json:"n"`
	Revision int    `json:"r"`
	FileKind string `json:"f"`
	StatKind string `json:"s"`
}

// newToken encodes a pending request into a poll token with the pinned
// revision.
func newToken(req Request, revision int) string {
	payload, _ := json.Marshal(tokenPayload{
		Name:     req.Name,
		Revision: revision,
		FileKind: string(req.FileKind),
		StatKind: string(req.StatKind),
	})

	return base64.RawURLEncoding.EncodeToString(payload)
}

// parseToken decodes a poll token back into a concrete-revision request.
func parseToken(token string) (Request, error) {
	raw, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Request{}, fmt.Errorf("%w: bad poll token: %w", ErrInvalidRequest, err)
	}

	var payload tokenPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return Request{}, fmt.Errorf("%w: bad poll token: %w", ErrInvalidRequest, err)
	}

	fileKind, err := entry.ParseFileKind(payload.FileKind)
	if err != nil {
		return Request{}, fmt.Errorf("%w: bad poll token: %w", ErrInvalidRequest, err)
	}

	statKind, err := entry.ParseStatKind(payload.StatKind)
	if err != nil {
		return Request{}, fmt.Errorf("%w: bad poll token: %w", ErrInvalidRequest, err)
	}

	if payload.Revision <= 0 {
		return Request{}, fmt.Errorf("%w: bad poll token: revision not pinned", ErrInvalidRequest)
	}

	return Request{
		Name:     payload.Name,
		Revision: payload.Revision,
		FileKind: fileKind,
		StatKind: statKind,
	}, nil
}
