package types

import (
	"database/sql/driver"
	"encoding/json"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/schema"
)

// VersionList is the snapshot history stored as a JSON column, needs to implement
// the driver.Valuer and sql.Scanner interfaces
type VersionList []Version

// Value return json value, implement driver.Valuer interface
func (l VersionList) Value() (driver.Value, error) {
	if l == nil {
		return nil, nil
	}
	ba, err := l.MarshalJSON()
	return string(ba), err
}

// Scan scan value into the list, implements sql.Scanner interface
func (l *VersionList) Scan(val interface{}) error {
	var ba []byte
	switch v := val.(type) {
	case []byte:
		ba = v
	case string:
		ba = []byte(v)
	case nil:
		*l = make(VersionList, 0)
		return nil
	default:
		return errors.New(fmt.Sprint("Failed to unmarshal JSON value:", val))
	}
	t := make([]Version, 0)
	err := json.Unmarshal(ba, &t)
	*l = VersionList(t)
	return err
}

// MarshalJSON to output non base64 encoded []byte
func (l VersionList) MarshalJSON() ([]byte, error) {
	if l == nil {
		return []byte("null"), nil
	}
	t := ([]Version)(l)
	return json.Marshal(t)
}

// UnmarshalJSON to deserialize []byte
func (l *VersionList) UnmarshalJSON(b []byte) error {
	t := make([]Version, 0)
	err := json.Unmarshal(b, &t)
	*l = VersionList(t)
	return err
}

// GormDataType gorm common data type
func (l VersionList) GormDataType() string {
	return "versionlist"
}

// GormDBDataType gorm db data type
func (VersionList) GormDBDataType(db *gorm.DB, field *schema.Field) string {
	switch db.Dialector.Name() {
	case "sqlite":
		return "JSON"
	case "mysql":
		return "JSON"
	case "postgres":
		return "JSONB"
	}
	return ""
}
