// Package uid generates DICOM unique identifiers.
package uid

import (
	"math/big"

	"github.com/google/uuid"
)

// uuidRoot is the UID root for identifiers derived from a UUID (ISO/IEC 9834-8).
const uuidRoot = "2.25."

// New returns a fresh UID of the form 2.25.<uuid as decimal integer>.
// The result never exceeds the 64 character limit of the UI value representation.
func New() string {
	u := uuid.New()
	n := new(big.Int).SetBytes(u[:])
	return uuidRoot + n.String()
}
