package ports

import "context"

// ImageStore resolves an inbound social-media image payload to a
// retrievable URL. The payload is either an already-resolved URL, which
// passes through untouched, or an embedded base64 data URI, which is
// persisted under a name derived from (orderID, index). Anything else
// resolves to an empty URL without error.
type ImageStore interface {
	Save(ctx context.Context, orderID string, index int, payload string) (string, error)
}
