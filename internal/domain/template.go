package domain

import (
	"encoding/json"
	"time"
)

// Template is a provider-approved message template. The *_vars_count
// and *_var_names columns are the persisted blueprint, derived from the
// header/body text at sync time.
type Template struct {
	ID              int64           `db:"id" json:"id"`
	TenantID        int64           `db:"tenant_id" json:"tenantId"`
	Name            string          `db:"name" json:"name"`
	Language        string          `db:"language" json:"language"`
	HeaderText      string          `db:"header_text" json:"headerText"`
	BodyText        string          `db:"body_text" json:"bodyText"`
	HeaderVarsCount int             `db:"header_vars_count" json:"headerVarsCount"`
	BodyVarsCount   int             `db:"body_vars_count" json:"bodyVarsCount"`
	HeaderVarNames  json.RawMessage `db:"header_var_names" json:"-"`
	BodyVarNames    json.RawMessage `db:"body_var_names" json:"-"`
	CreatedAt       time.Time       `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time       `db:"updated_at" json:"updatedAt"`
}

func decodeNames(raw json.RawMessage) []string {
	if len(raw) == 0 {
		return nil
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err != nil {
		return nil
	}
	return names
}

func (t *Template) HeaderNames() []string { return decodeNames(t.HeaderVarNames) }
func (t *Template) BodyNames() []string   { return decodeNames(t.BodyVarNames) }
