package mysql_test

import (
	"strings"
	"testing"

	mysqlrepo "bike_hotels/internal/storage/mysql"
)

func TestNormalizeDSN(t *testing.T) {
	cases := []struct {
		name, in string
		keep     []string
	}{
		{"bare", "root:root@tcp(127.0.0.1:3306)/bike_hotels", nil},
		{"other params kept", "u:p@tcp(db:3306)/bike_hotels?multiStatements=true", []string{"multiStatements=true"}},
		{"explicit false overridden", "u:p@tcp(db:3306)/bike_hotels?parseTime=false", nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := mysqlrepo.NormalizeDSN(tc.in)
			if err != nil {
				t.Fatalf("unexpected err: %v", err)
			}
			if !strings.Contains(got, "parseTime=true") {
				t.Fatalf("parseTime not forced: %s", got)
			}
			if strings.Contains(got, "parseTime=false") {
				t.Fatalf("parseTime=false survived: %s", got)
			}
			for _, k := range tc.keep {
				if !strings.Contains(got, k) {
					t.Fatalf("lost %q: %s", k, got)
				}
			}
		})
	}
}

func TestNormalizeDSN_Invalid(t *testing.T) {
	if _, err := mysqlrepo.NormalizeDSN("not a dsn"); err == nil {
		t.Fatal("expected error for a DSN without a database part")
	}
}
