package service

// DecoyHash exposes the hash unknown-email logins are compared against.
func (s *SessionIssuer) DecoyHash() string { return s.decoy }
