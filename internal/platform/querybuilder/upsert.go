package querybuilder

import "strings"

// Upsert renders a Postgres ON CONFLICT clause. With no UpdateColumns the
// conflicting row is left untouched.
type Upsert struct {
	ConflictColumns []string
	UpdateColumns   []string
}

func (u Upsert) SQL() string {
	var buf strings.Builder
	buf.WriteString("ON CONFLICT")
	if len(u.ConflictColumns) > 0 {
		buf.WriteString(" (")
		buf.WriteString(strings.Join(u.ConflictColumns, ", "))
		buf.WriteString(")")
	}
	if len(u.UpdateColumns) == 0 {
		buf.WriteString(" DO NOTHING")
		return buf.String()
	}

	buf.WriteString(" DO UPDATE SET ")
	for i, col := range u.UpdateColumns {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(col)
		buf.WriteString(" = EXCLUDED.")
		buf.WriteString(col)
	}
	return buf.String()
}
