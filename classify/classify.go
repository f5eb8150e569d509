// Package classify decides whether a failed call means "the session credential
// expired" or anything else.
//
// # Matching rule
//
// A failure is [KindCredentialExpired] only when it is a *transport.Failure
// whose status code AND exact message match one configured [Signature]. A bare
// 4xx is never enough: an invalid or revoked credential must not trigger a
// refresh that can never succeed.
//
// # What this package must NOT do
//
//   - Store classifications; they are derived per failure.
//   - Modify or wrap the failure it inspects.
package classify

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/MrEthical07/goAuthClient/transport"
)

// Kind tags a Classification.
type Kind uint8

const (
	// KindOther is every failure that is not a credential expiry.
	KindOther Kind = iota
	// KindCredentialExpired is recoverable through a refresh.
	KindCredentialExpired
)

func (k Kind) String() string {
	switch k {
	case KindCredentialExpired:
		return "credential_expired"
	default:
		return "other"
	}
}

// Classification is the tagged result of Classify. Err is the inspected error,
// unchanged.
type Classification struct {
	Kind Kind
	Err  error
}

// Expired reports whether c is KindCredentialExpired.
func (c Classification) Expired() bool { return c.Kind == KindCredentialExpired }

// Signature is one pre-agreed expiry signal: a status code plus the exact
// message token carried in the error envelope.
type Signature struct {
	Status  int    `json:"status" mapstructure:"status"`
	Message string `json:"message" mapstructure:"message"`
}

func (s Signature) String() string {
	return fmt.Sprintf("%d %q", s.Status, s.Message)
}

// DefaultSignatures match the backend's jsonwebtoken expiry error.
func DefaultSignatures() []Signature {
	return []Signature{
		{Status: http.StatusBadRequest, Message: "jwt expired"},
		{Status: http.StatusUnauthorized, Message: "jwt expired"},
	}
}

// ErrInvalidSignature is returned by New for unusable signatures.
var ErrInvalidSignature = errors.New("invalid expiry signature")

// Classifier maps failures to Classifications.
type Classifier interface {
	Classify(err error) Classification
}

// ClassifierFunc adapts a function to Classifier.
type ClassifierFunc func(err error) Classification

// Classify calls f.
func (f ClassifierFunc) Classify(err error) Classification { return f(err) }

// Matcher is the signature-based Classifier.
type Matcher struct {
	signatures []Signature
}

// New builds a Matcher. Signatures must carry a 4xx status and a non-blank
// message.
func New(signatures ...Signature) (*Matcher, error) {
	if len(signatures) == 0 {
		return nil, fmt.Errorf("%w: at least one signature required", ErrInvalidSignature)
	}
	out := make([]Signature, 0, len(signatures))
	for _, sig := range signatures {
		if sig.Status < 400 || sig.Status > 499 {
			return nil, fmt.Errorf("%w: %s: status must be a client error", ErrInvalidSignature, sig)
		}
		if strings.TrimSpace(sig.Message) == "" {
			return nil, fmt.Errorf("%w: %s: message required", ErrInvalidSignature, sig)
		}
		out = append(out, sig)
	}
	return &Matcher{signatures: out}, nil
}

// MustNew is New for static signature sets.
func MustNew(signatures ...Signature) *Matcher {
	m, err := New(signatures...)
	if err != nil {
		panic(err)
	}
	return m
}

// Classify implements Classifier. The message comparison is exact.
func (m *Matcher) Classify(err error) Classification {
	if err == nil || m == nil {
		return Classification{Kind: KindOther, Err: err}
	}
	f, ok := transport.AsFailure(err)
	if !ok || f.Network() {
		return Classification{Kind: KindOther, Err: err}
	}
	for _, sig := range m.signatures {
		if f.StatusCode == sig.Status && f.Message == sig.Message {
			return Classification{Kind: KindCredentialExpired, Err: err}
		}
	}
	return Classification{Kind: KindOther, Err: err}
}

// Signatures returns a copy of the configured signatures.
func (m *Matcher) Signatures() []Signature {
	out := make([]Signature, len(m.signatures))
	copy(out, m.signatures)
	return out
}
