package users_test

import (
	"encoding/json"
	"testing"

	"github.com/jrsteele09/posport-gateway/internal/utils"
	"github.com/jrsteele09/posport-gateway/users"
	"github.com/stretchr/testify/require"
)

func TestProfile_Apply(t *testing.T) {
	base := users.Profile{
		ID:        "u-1",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Email:     "ada@example.com",
		Role:      users.RoleCompanyOwner,
	}

	t.Run("empty update keeps everything", func(t *testing.T) {
		require.Equal(t, base, base.Apply(users.ProfileUpdate{}))
	})

	t.Run("shallow merge", func(t *testing.T) {
		merged := base.Apply(users.ProfileUpdate{
			FirstName: utils.Ptr("Augusta"),
			CompanyID: utils.Ptr("c-9"),
		})
		require.Equal(t, "Augusta", merged.FirstName)
		require.Equal(t, "Lovelace", merged.LastName)
		require.Equal(t, "ada@example.com", merged.Email)
		require.Equal(t, users.RoleCompanyOwner, merged.Role)
		require.Equal(t, "c-9", utils.Value(merged.CompanyID))
	})

	t.Run("receiver is not modified", func(t *testing.T) {
		_ = base.Apply(users.ProfileUpdate{Email: utils.Ptr("other@example.com")})
		require.Equal(t, "ada@example.com", base.Email)
	})
}

func TestProfile_NeedsCompanySelection(t *testing.T) {
	tests := []struct {
		name    string
		profile users.Profile
		want    bool
	}{
		{"owner without company", users.Profile{Role: users.RoleCompanyOwner}, true},
		{"owner with empty company", users.Profile{Role: users.RoleCompanyOwner, CompanyID: utils.Ptr("")}, true},
		{"owner with company", users.Profile{Role: users.RoleCompanyOwner, CompanyID: utils.Ptr("c-1")}, false},
		{"admin without company", users.Profile{Role: users.RolePosportAdmin}, false},
		{"manager without company", users.Profile{Role: users.RoleLocationManager}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			require.Equal(t, tt.want, tt.profile.NeedsCompanySelection())
		})
	}
}

func TestProfile_DisplayName(t *testing.T) {
	require.Equal(t, "Ada Lovelace", (&users.Profile{FirstName: "Ada", LastName: "Lovelace"}).DisplayName())
	require.Equal(t, "Ada", (&users.Profile{FirstName: "Ada"}).DisplayName())
	require.Equal(t, "ada@example.com", (&users.Profile{Email: "ada@example.com"}).DisplayName())
}

func TestRoleType_UnmarshalJSON(t *testing.T) {
	var p users.Profile
	require.NoError(t, json.Unmarshal([]byte(`{"id":"u-1","role":"POSPORT_ADMIN"}`), &p))
	require.Equal(t, users.RolePosportAdmin, p.Role)
	require.True(t, p.IsPosportAdmin())

	require.Error(t, json.Unmarshal([]byte(`{"id":"u-1","role":"SUPERUSER"}`), &p))
	require.Error(t, json.Unmarshal([]byte(`{"id":"u-1","role":""}`), &p))
	require.Error(t, json.Unmarshal([]byte(`{"id":"u-1","role":7}`), &p))
}
