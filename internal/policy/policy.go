// Package policy decides which document types each marketplace role may
// verify with. Lookups are pure; a YAML file can override the built-in table.
package policy

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"idverify/internal/document"
)

// Role is the marketplace role of the person being verified.
type Role string

const (
	Tenant Role = "tenant"
	Owner  Role = "owner"
	Admin  Role = "admin"
)

var (
	// ErrUnknownRole is returned for a role missing from the policy.
	ErrUnknownRole = errors.New("unknown role")

	// ErrInvalidPolicy is returned when a policy file fails validation.
	ErrInvalidPolicy = errors.New("invalid role policy")
)

// RolePolicy is the rule set for one role.
type RolePolicy struct {
	AllowedTypes []document.DocumentType

	// MinConfidence is advisory. It is reported alongside the decision but
	// approval is gated by the parameter score.
	MinConfidence float64

	// Guidance is appended to rejection messages.
	Guidance string
}

// Decision is the outcome of a policy check.
type Decision struct {
	Allowed       bool
	Role          Role
	Type          document.DocumentType
	MinConfidence float64
	Message       string
}

// Policy maps roles to their rules.
type Policy struct {
	Version string
	roles   map[Role]RolePolicy
}

// Default returns the built-in policy: tenants and admins may use any
// supported type, owners may not use a driving licence.
func Default() *Policy {
	all := []document.DocumentType{document.PAN, document.Aadhaar, document.Passport, document.DrivingLicense}
	return &Policy{
		Version: "builtin",
		roles: map[Role]RolePolicy{
			Tenant: {
				AllowedTypes:  all,
				MinConfidence: 0.6,
				Guidance:      "Tenants can verify with a PAN card, Aadhaar card, passport or driving licence.",
			},
			Owner: {
				AllowedTypes:  []document.DocumentType{document.PAN, document.Aadhaar, document.Passport},
				MinConfidence: 0.7,
				Guidance:      "Property owners must verify with a PAN card, Aadhaar card or passport.",
			},
			Admin: {
				AllowedTypes:  all,
				MinConfidence: 0.5,
				Guidance:      "Administrators can verify with any supported government ID.",
			},
		},
	}
}

// fileFormat is the YAML layout of a policy file.
//
//	version: "2024-06"
//	roles:
//	  owner:
//	    allowed_types: [pan, aadhaar]
//	    min_confidence: 0.75
//	    guidance: Owners must verify with PAN or Aadhaar.
type fileFormat struct {
	Version string              `yaml:"version"`
	Roles   map[string]roleFile `yaml:"roles"`
}

type roleFile struct {
	AllowedTypes  []string `yaml:"allowed_types"`
	MinConfidence *float64 `yaml:"min_confidence"`
	Guidance      string   `yaml:"guidance"`
}

// LoadFile reads a YAML policy and applies it over Default. Roles absent from
// the file keep their built-in rules; new roles may be added.
func LoadFile(path string) (*Policy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role policy: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML policy data and applies it over Default.
func Parse(data []byte) (*Policy, error) {
	var file fileFormat
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPolicy, err)
	}

	p := Default()
	if file.Version != "" {
		p.Version = file.Version
	}

	for name, rf := range file.Roles {
		role := Role(strings.ToLower(strings.TrimSpace(name)))
		if role == "" {
			return nil, fmt.Errorf("%w: empty role name", ErrInvalidPolicy)
		}
		rp := p.roles[role]

		if rf.AllowedTypes != nil {
			rp.AllowedTypes = nil
			for _, s := range rf.AllowedTypes {
				t, err := document.ParseType(s)
				if err != nil {
					return nil, fmt.Errorf("%w: role %s: %v", ErrInvalidPolicy, role, err)
				}
				if !slices.Contains(rp.AllowedTypes, t) {
					rp.AllowedTypes = append(rp.AllowedTypes, t)
				}
			}
		}
		if rf.MinConfidence != nil {
			if *rf.MinConfidence < 0 || *rf.MinConfidence > 1 {
				return nil, fmt.Errorf("%w: role %s: min_confidence %.2f outside [0,1]", ErrInvalidPolicy, role, *rf.MinConfidence)
			}
			rp.MinConfidence = *rf.MinConfidence
		}
		if rf.Guidance != "" {
			rp.Guidance = rf.Guidance
		}
		p.roles[role] = rp
	}

	return p, nil
}

// ParseRole resolves s to a role known to p.
func (p *Policy) ParseRole(s string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(s)))
	if _, ok := p.roles[role]; !ok {
		return "", fmt.Errorf("%w: %q (known: %s)", ErrUnknownRole, s, strings.Join(p.roleNames(), ", "))
	}
	return role, nil
}

// Roles returns the known roles in alphabetical order.
func (p *Policy) Roles() []Role {
	names := p.roleNames()
	out := make([]Role, len(names))
	for i, n := range names {
		out[i] = Role(n)
	}
	return out
}

func (p *Policy) roleNames() []string {
	names := make([]string, 0, len(p.roles))
	for r := range p.roles {
		names = append(names, string(r))
	}
	sort.Strings(names)
	return names
}

// Rules returns the rule set for role.
func (p *Policy) Rules(role Role) (RolePolicy, bool) {
	rp, ok := p.roles[role]
	return rp, ok
}

// Check decides whether role may verify with a document of type t.
func (p *Policy) Check(role Role, t document.DocumentType) Decision {
	rp, ok := p.roles[role]
	if !ok {
		return Decision{
			Role:    role,
			Type:    t,
			Message: fmt.Sprintf("Role %q is not allowed to submit identity documents.", role),
		}
	}

	d := Decision{
		Allowed:       slices.Contains(rp.AllowedTypes, t),
		Role:          role,
		Type:          t,
		MinConfidence: rp.MinConfidence,
	}
	if !d.Allowed {
		d.Message = strings.TrimSpace(fmt.Sprintf("%s is not accepted for %s verification. %s",
			t.DisplayName(), role, rp.Guidance))
	}
	return d
}
