package testutil

// DefaultSession is the token FixedSessionGenerator hands out when none is
// configured.
const DefaultSession = "test-session-default"

// FixedSessionGenerator generates the same session token every time, so
// journal record ids and golden traces are byte-identical across runs.
//
// Unlike engine.FixedGenerator, which returns tokens in sequence, this one
// never changes. It is stateless and safe for concurrent use.
type FixedSessionGenerator struct {
	token string
}

// NewFixedSessionGenerator returns a generator for token, or for
// DefaultSession when token is empty.
func NewFixedSessionGenerator(token string) *FixedSessionGenerator {
	if token == "" {
		token = DefaultSession
	}
	return &FixedSessionGenerator{token: token}
}

// Generate returns the fixed token. Implements engine.SessionGenerator.
func (g *FixedSessionGenerator) Generate() string {
	return g.token
}
