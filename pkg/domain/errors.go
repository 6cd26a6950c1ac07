package domain

import (
	"errors"
	"fmt"
)

// ErrOutOfScope is returned when a transaction touches a collection it did not declare.
var ErrOutOfScope = errors.New("collection not declared in transaction scope")

// ErrReadOnly is returned when a read-only transaction attempts a write.
var ErrReadOnly = errors.New("write attempted in read-only transaction")

// DuplicateKeyError reports an insert or update colliding with an existing
// primary key or unique index value.
type DuplicateKeyError struct {
	Collection Collection
	Index      string
	Key        string
}

func (e DuplicateKeyError) Error() string {
	if e.Index != "" {
		return fmt.Sprintf("%s: duplicate %s %q", e.Collection, e.Index, e.Key)
	}
	return fmt.Sprintf("%s: duplicate key %q", e.Collection, e.Key)
}

// TransactionError reports a failure of the transaction machinery itself.
// Nothing of the failed transaction is applied.
type TransactionError struct {
	Op  string
	Err error
}

func (e TransactionError) Error() string {
	return fmt.Sprintf("transaction %s: %v", e.Op, e.Err)
}

func (e TransactionError) Unwrap() error { return e.Err }

// IsDuplicateKey reports whether err carries a DuplicateKeyError.
func IsDuplicateKey(err error) bool {
	var dup DuplicateKeyError
	return errors.As(err, &dup)
}
