package permission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAllows_matchingRules(t *testing.T) {
	table, err := Parse([]byte(`
exact: [donors.read]
resource: ["donors.*"]
global: ["*"]
other: [students.read, "students.*"]
`))
	require.NoError(t, err)

	tests := []struct {
		role string
		perm string
		want bool
	}{
		{"exact", "donors.read", true},
		{"exact", "donors.update", false},
		{"resource", "donors.read", true},
		{"resource", "donors.delete", true},
		{"resource", "donorsx.read", false},
		{"global", "donors.read", true},
		{"global", "anything.at_all", true},
		{"other", "donors.read", false},
		{"unknown", "donors.read", false},
		{"EXACT", "donors.read", true},
		{"resource", "donors", false},
	}
	for _, tt := range tests {
		t.Run(tt.role+"/"+tt.perm, func(t *testing.T) {
			assert.Equal(t, tt.want, table.Allows(tt.role, tt.perm))
			// evaluation is pure: asking again yields the same answer
			assert.Equal(t, tt.want, table.Allows(tt.role, tt.perm))
		})
	}
}

func TestDefault(t *testing.T) {
	table, err := Default()
	require.NoError(t, err)

	assert.True(t, table.Allows("SuperAdmin", "users.approve"))
	assert.True(t, table.Allows("Admin", "donors.delete"))
	assert.False(t, table.Allows("Admin", "settings.update"))
	assert.True(t, table.Allows("Staff", "students.update"))
	assert.False(t, table.Allows("Staff", "students.delete"))
	assert.True(t, table.Allows("Member", "donors.read"))
	assert.False(t, table.Allows("Member", "donors.create"))
	assert.True(t, table.Allows("Finance", "finance_reports.update"))
	assert.False(t, table.Allows("Finance", "students.read"))
	assert.ElementsMatch(t, []string{"superadmin", "admin", "staff", "finance", "volunteer", "donor", "member"}, table.Roles())
}

func TestParse_rejectsMalformedGrants(t *testing.T) {
	for _, bad := range []string{"admin: [donors]", "admin: [.read]", "admin: [donors.]", "admin: [a.b.c]", "admin: not-a-list"} {
		_, err := Parse([]byte(bad))
		assert.Error(t, err, bad)
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "perms.yaml")
	require.NoError(t, os.WriteFile(path, []byte("volunteer: [projects.read]\n"), 0o600))

	table, err := Load(path)
	require.NoError(t, err)
	assert.True(t, table.Allows("Volunteer", "projects.read"))
	assert.False(t, table.Allows("Admin", "projects.read"))

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)

	table, err = Load("")
	require.NoError(t, err)
	assert.True(t, table.Allows("Admin", "projects.read"))
}

func TestNilTableDenies(t *testing.T) {
	var table *Table
	assert.False(t, table.Allows("superadmin", "donors.read"))
}
