package database

import (
	"strings"
	"testing"
)

func TestSettingsDSN(t *testing.T) {
	dsn := Settings{User: "cane", Pass: "pw", Host: "db", Port: "3306", Name: "trucks"}.DSN()
	for _, frag := range []string{"cane:pw@tcp(db:3306)/trucks", "parseTime=true", "clientFoundRows=true", "charset=utf8mb4"} {
		if !strings.Contains(dsn, frag) {
			t.Fatalf("dsn %q missing %q", dsn, frag)
		}
	}
}
