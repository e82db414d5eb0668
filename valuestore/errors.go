package valuestore

import (
	"fmt"

	"github.com/antgroup/valuestore/plumbing"
)

// HeadParentMismatchError is returned by AddChange when a branch's current
// head is not among the parents of the change being added: the caller built
// the change against a head that has since moved.
type HeadParentMismatchError struct {
	Parent plumbing.Hash
}

func (e *HeadParentMismatchError) Error() string {
	return fmt.Sprintf("head not one of the parents of the change, head hash: %s", e.Parent)
}

// IsHeadParentMismatch reports whether err is a *HeadParentMismatchError.
func IsHeadParentMismatch(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*HeadParentMismatchError)
	return ok
}
