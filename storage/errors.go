package storage

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/antgroup/valuestore/plumbing"
	"github.com/go-sql-driver/mysql"
)

// erDupEntry is the MySQL error number for a unique-key violation, raised
// when two concurrent callers race to insert the same change hash.
const erDupEntry = 1062

// ErrChangeNotFound is returned when a lookup addresses a hash or id the
// backend has never stored.
type ErrChangeNotFound struct {
	Hash plumbing.Hash
}

func (e *ErrChangeNotFound) Error() string {
	return fmt.Sprintf("change %s not found", e.Hash)
}

// IsErrChangeNotFound reports whether err is an *ErrChangeNotFound.
func IsErrChangeNotFound(err error) bool {
	if err == nil {
		return false
	}
	_, ok := err.(*ErrChangeNotFound)
	return ok
}

func isErrorCode(err error, code uint16) bool {
	var merr *mysql.MySQLError
	if errors.As(err, &merr) {
		return merr.Number == code
	}
	return false
}

// isDupEntry reports whether err is a MySQL duplicate-key error, the race
// AddChange resolves by re-reading the row another caller just inserted.
func isDupEntry(err error) bool {
	return isErrorCode(err, erDupEntry)
}

// isNoRows reports whether err is sql.ErrNoRows. GetChangeID surfaces it as
// a (0, false, nil) result and GetChangeContent as *ErrChangeNotFound, so
// "not found" is never reported as a backend failure.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
