// Package repository реализует хранилища поверх PostgreSQL.
package repository

import (
	"errors"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func uuidArray(ids []uuid.UUID) pq.StringArray {
	out := make(pq.StringArray, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.String())
	}
	return out
}
