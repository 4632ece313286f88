package ledger

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// referenceScheme prefixes every correlation token handed to the quantity
// store as the change's reference document.
const referenceScheme = "workmate"

// ReferenceDocumentURI derives the correlation token for one mutation. The
// token is unique per mutation and reconstructable from the audit header, so
// an external quantity change can always be tied back to the document that
// requested it.
func ReferenceDocumentURI(initiator Initiator, mutationID int64) string {
	return fmt.Sprintf("%s://%s/%s?mutationId=%d",
		referenceScheme,
		url.PathEscape(string(initiator.Type)),
		url.PathEscape(initiator.Name),
		mutationID,
	)
}

// ParseReferenceDocumentURI recovers the initiator and mutation id from a
// correlation token produced by ReferenceDocumentURI.
func ParseReferenceDocumentURI(token string) (Initiator, int64, error) {
	parsed, err := url.Parse(token)
	if err != nil {
		return Initiator{}, 0, fmt.Errorf("ledger: parse reference document uri: %w", err)
	}
	if parsed.Scheme != referenceScheme {
		return Initiator{}, 0, fmt.Errorf("ledger: unexpected reference scheme %q", parsed.Scheme)
	}
	initiatorType, err := url.PathUnescape(parsed.Host)
	if err != nil {
		return Initiator{}, 0, fmt.Errorf("ledger: unescape initiator type: %w", err)
	}
	name, err := url.PathUnescape(strings.TrimPrefix(parsed.Path, "/"))
	if err != nil {
		return Initiator{}, 0, fmt.Errorf("ledger: unescape initiator name: %w", err)
	}
	rawID := parsed.Query().Get("mutationId")
	id, err := strconv.ParseInt(rawID, 10, 64)
	if err != nil {
		return Initiator{}, 0, fmt.Errorf("ledger: parse mutation id %q: %w", rawID, err)
	}
	return Initiator{Type: InitiatorType(initiatorType), Name: name}, id, nil
}
