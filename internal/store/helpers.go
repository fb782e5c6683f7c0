package store

import (
	"database/sql"
	"encoding/json"

	"github.com/syncrelay/syncrelay/internal/models"
)

// nilIfIntNil converts an optional int to a driver value for nullable columns.
func nilIfIntNil(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// nilIfStringNil converts an optional string to a driver value for nullable columns.
func nilIfStringNil(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

// rowScanner covers both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanJobRow scans one job record in the shared column order:
// seq, id, token, endpoint, body, created_at, attempt_count,
// schema_version, origin_step_id.
func scanJobRow(row rowScanner) (models.Job, error) {
	var j models.Job
	var body string
	var schemaVersion sql.NullInt64
	var originStepID sql.NullString
	err := row.Scan(
		&j.Seq, &j.ID, &j.Token, &j.Endpoint, &body, &j.CreatedAt,
		&j.AttemptCount, &schemaVersion, &originStepID,
	)
	if err != nil {
		return j, err
	}
	j.Body = json.RawMessage(body)
	if schemaVersion.Valid {
		v := int(schemaVersion.Int64)
		j.SchemaVersion = &v
	}
	if originStepID.Valid {
		v := originStepID.String
		j.OriginStepID = &v
	}
	return j, nil
}
