package policy

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"idverify/internal/document"
)

func TestDefaultCheck(t *testing.T) {
	p := Default()

	tests := []struct {
		role    Role
		docType document.DocumentType
		allowed bool
	}{
		{Tenant, document.PAN, true},
		{Tenant, document.DrivingLicense, true},
		{Owner, document.Aadhaar, true},
		{Owner, document.Passport, true},
		{Owner, document.DrivingLicense, false},
		{Admin, document.DrivingLicense, true},
		{Admin, document.Unknown, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.role)+"/"+string(tt.docType), func(t *testing.T) {
			d := p.Check(tt.role, tt.docType)
			assert.Equal(t, tt.allowed, d.Allowed)
			if tt.allowed {
				assert.Empty(t, d.Message)
			} else {
				assert.NotEmpty(t, d.Message)
			}
		})
	}
}

func TestOwnerRejectionMessage(t *testing.T) {
	d := Default().Check(Owner, document.DrivingLicense)
	require.False(t, d.Allowed)
	assert.Equal(t, "Driving Licence is not accepted for owner verification. Property owners must verify with a PAN card, Aadhaar card or passport.", d.Message)
	assert.InDelta(t, 0.7, d.MinConfidence, 1e-9)
}

func TestParseRole(t *testing.T) {
	p := Default()

	role, err := p.ParseRole(" Owner ")
	require.NoError(t, err)
	assert.Equal(t, Owner, role)

	_, err = p.ParseRole("broker")
	assert.ErrorIs(t, err, ErrUnknownRole)
	assert.Contains(t, err.Error(), "admin, owner, tenant")
}

func TestParseOverrides(t *testing.T) {
	data := []byte(`
version: "2024-06"
roles:
  owner:
    allowed_types: [pan, Aadhar]
    min_confidence: 0.8
  broker:
    allowed_types: [pan]
    guidance: Brokers verify with their PAN card.
`)

	p, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, "2024-06", p.Version)

	owner, ok := p.Rules(Owner)
	require.True(t, ok)
	assert.Equal(t, []document.DocumentType{document.PAN, document.Aadhaar}, owner.AllowedTypes)
	assert.InDelta(t, 0.8, owner.MinConfidence, 1e-9)
	assert.Contains(t, owner.Guidance, "Property owners", "guidance kept when not overridden")
	assert.False(t, p.Check(Owner, document.Passport).Allowed)

	tenant, ok := p.Rules(Tenant)
	require.True(t, ok)
	assert.Len(t, tenant.AllowedTypes, 4, "roles absent from the file keep defaults")

	d := p.Check(Role("broker"), document.Passport)
	assert.False(t, d.Allowed)
	assert.Equal(t, "Passport is not accepted for broker verification. Brokers verify with their PAN card.", d.Message)
	assert.Equal(t, []Role{Admin, "broker", Owner, Tenant}, p.Roles())
}

func TestParseInvalid(t *testing.T) {
	for name, data := range map[string]string{
		"unknown type":     "roles:\n  owner:\n    allowed_types: [voter_id]\n",
		"confidence range": "roles:\n  owner:\n    min_confidence: 1.5\n",
		"bad yaml":         "roles: [",
	} {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(data))
			assert.ErrorIs(t, err, ErrInvalidPolicy)
		})
	}
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte("roles:\n  tenant:\n    allowed_types: [aadhaar]\n"), 0o600))

	p, err := LoadFile(path)
	require.NoError(t, err)
	assert.False(t, p.Check(Tenant, document.PAN).Allowed)
	assert.True(t, p.Check(Tenant, document.Aadhaar).Allowed)

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
