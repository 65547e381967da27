package builder

import "fmt"

// ErrInvalidConfig represents a fatal configuration error found before processing starts.
type ErrInvalidConfig struct {
	Field  string
	Reason string
}

func (e *ErrInvalidConfig) Error() string {
	return fmt.Sprintf("invalid configuration %q: %s", e.Field, e.Reason)
}

// ErrInvalidSettings represents a malformed wiring/settings table.
type ErrInvalidSettings struct {
	Table  string
	Reason string
}

func (e *ErrInvalidSettings) Error() string {
	return fmt.Sprintf("invalid settings table %q: %s", e.Table, e.Reason)
}

// ErrOpenStore represents an error when opening a hit store or event store.
type ErrOpenStore struct {
	Filename string
	Err      error
}

func (e *ErrOpenStore) Error() string {
	return fmt.Sprintf("error opening store %q: %v", e.Filename, e.Err)
}

func (e *ErrOpenStore) Unwrap() error { return e.Err }

// ErrCreateTable represents an error when creating a table in the event store.
type ErrCreateTable struct {
	TableName string
	Err       error
}

func (e *ErrCreateTable) Error() string {
	return fmt.Sprintf("error creating table %q: %v", e.TableName, e.Err)
}

func (e *ErrCreateTable) Unwrap() error { return e.Err }

// ErrReadStream represents an upstream I/O error on the sorted-hit store.
type ErrReadStream struct {
	Entry int64
	Err   error
}

func (e *ErrReadStream) Error() string {
	return fmt.Sprintf("error reading hit stream at entry %d: %v", e.Entry, e.Err)
}

func (e *ErrReadStream) Unwrap() error { return e.Err }
