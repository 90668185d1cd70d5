package session

const (
	// PrincipalNameIndexName is the only index name supported by
	// FindByIndexNameAndIndexValue. Sessions carrying this attribute
	// (or a security context) are findable by principal.
	PrincipalNameIndexName = "PRINCIPAL_NAME_INDEX_NAME"

	// SecurityContextAttribute holds the authenticated security
	// context when no explicit principal attribute is set.
	SecurityContextAttribute = "SECURITY_CONTEXT"
)

// PrincipalExtractor derives the principal name for a session from its
// attribute mapping. Returning false means the session has no
// principal and is excluded from the principal index.
type PrincipalExtractor func(attrs map[string]any) (string, bool)

// DefaultPrincipalExtractor prefers the explicit principal attribute,
// then falls back to an "authentication name" nested inside the
// security context attribute.
func DefaultPrincipalExtractor(attrs map[string]any) (string, bool) {
	if v, ok := attrs[PrincipalNameIndexName]; ok {
		if name, ok := v.(string); ok && name != "" {
			return name, true
		}
	}
	scv, ok := attrs[SecurityContextAttribute]
	if !ok {
		return "", false
	}
	sc, ok := scv.(map[string]any)
	if !ok {
		return "", false
	}
	auth, ok := sc["authentication"].(map[string]any)
	if !ok {
		return "", false
	}
	name, ok := auth["name"].(string)
	if !ok || name == "" {
		return "", false
	}
	return name, true
}

// Principal resolves a session's principal name through the default
// extractor.
func Principal(s *Session) (string, bool) {
	return s.principalName(DefaultPrincipalExtractor)
}

// principalName resolves the session's principal through the given
// extractor, tolerating a nil extractor.
func (s *Session) principalName(extract PrincipalExtractor) (string, bool) {
	if extract == nil {
		return "", false
	}
	return extract(s.attributes)
}
