package resolve

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"github.com/MellowMango/apartment-search-sub005/internal/extract"
	"github.com/MellowMango/apartment-search-sub005/internal/model"
)

// nameKey reduces a normalized name to its canonicalization form:
// case-folded, punctuation-light, with middle initials dropped so that
// "Jane A. Smith" and "Jane Smith" share a key.
func nameKey(name string) string {
	folded := extract.FoldName(name)
	tokens := strings.Fields(folded)
	if len(tokens) > 2 {
		kept := tokens[:0]
		for _, tok := range tokens {
			if isInitial(tok) {
				continue
			}
			kept = append(kept, tok)
		}
		if len(kept) >= 2 {
			tokens = kept
		}
	}
	for i, tok := range tokens {
		tokens[i] = strings.Trim(tok, ".,")
	}
	return strings.Join(tokens, " ")
}

func isInitial(tok string) bool {
	tok = strings.TrimSuffix(tok, ".")
	return len(tok) == 1
}

// emailDomain returns the normalized domain of an email address, or "".
func emailDomain(email string) string {
	at := strings.LastIndex(email, "@")
	if at < 0 || at == len(email)-1 {
		return ""
	}
	return strings.ToLower(email[at+1:])
}

// hostDomain reduces a host to its registrable tail (last two labels), the
// identity used for university entities.
func hostDomain(host string) string {
	host = strings.ToLower(strings.TrimPrefix(host, "www."))
	labels := strings.Split(host, ".")
	if len(labels) > 2 {
		labels = labels[len(labels)-2:]
	}
	return strings.Join(labels, ".")
}

// entityID derives a stable identifier from the canonicalization key. It is
// a pure function of (type, key), so re-running resolution over the same
// candidate set yields identical ids.
func entityID(entityType model.EntityType, key string) string {
	sum := sha256.Sum256([]byte(string(entityType) + "|" + key))
	return hex.EncodeToString(sum[:16])
}
