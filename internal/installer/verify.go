package installer

import (
	"errors"
	"fmt"

	"github.com/opencontainers/go-digest"
)

// ErrNoDigest is returned by Verify when no expected digest is configured.
var ErrNoDigest = errors.New("no installer digest configured")

// IntegrityError reports a digest mismatch.
type IntegrityError struct {
	Expected digest.Digest
	Actual   digest.Digest
}

func (e *IntegrityError) Error() string {
	return fmt.Sprintf("installer digest mismatch: expected %s, got %s", e.Expected, e.Actual)
}

// IsIntegrity reports whether err is a digest mismatch or an unusable digest.
func IsIntegrity(err error) bool {
	var ie *IntegrityError
	return errors.As(err, &ie) || errors.Is(err, errBadDigest)
}

var errBadDigest = errors.New("invalid installer digest")

// Verify checks body against expected ("sha256:<hex>"). It returns the
// computed digest in the same algorithm.
func Verify(body []byte, expected string) (digest.Digest, error) {
	if expected == "" {
		return digest.FromBytes(body), ErrNoDigest
	}
	want, err := digest.Parse(expected)
	if err != nil {
		return "", fmt.Errorf("%w %q: %v", errBadDigest, expected, err)
	}
	got := want.Algorithm().FromBytes(body)
	if got != want {
		return got, &IntegrityError{Expected: want, Actual: got}
	}
	return got, nil
}
