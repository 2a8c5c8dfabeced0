package app

import (
	"encoding/json"
	"fmt"
)

// Operation statuses recorded in the history.
const (
	OperationSuccess = "success"
	OperationError   = "error"
)

// Operation tracks a CLI command that may mutate the identity store.
// Operations are created in memory with ID=0. Only DB-mutating commands
// persist them (giving them an auto-increment ID from the database).
type Operation struct {
	ID         int64
	Operation  string
	Parameters string // JSON array of the command's arguments
	Status     string
}

// NewOperation creates a new in-memory operation.
func NewOperation(operation, parameters string) *Operation {
	return &Operation{
		Operation:  operation,
		Parameters: parameters,
		Status:     OperationSuccess,
	}
}

// SetParameters records the command's arguments.
func (op *Operation) SetParameters(params ...string) error {
	if len(params) == 0 {
		return nil
	}
	data, err := json.Marshal(params)
	if err != nil {
		return fmt.Errorf("encoding operation parameters: %w", err)
	}
	op.Parameters = string(data)
	return nil
}

// Record marks the operation failed when err is non-nil and returns err.
// A failed operation stays failed.
func (op *Operation) Record(err error) error {
	if err != nil {
		op.Status = OperationError
	}
	return err
}

// Persisted returns true if this operation has been saved to the database.
func (op *Operation) Persisted() bool {
	return op.ID != 0
}
