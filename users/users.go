package users

import (
	"encoding/json"
	"fmt"

	"github.com/jrsteele09/posport-gateway/internal/utils"
)

// RoleType is the role the POSPort backend assigns to a user.
type RoleType string

const (
	RoleUnassignedUser  RoleType = "UNASSIGNED_USER"  // Signed up, not yet attached to a company
	RoleUser            RoleType = "USER"             // Generic authenticated user
	RoleCompanyOwner    RoleType = "COMPANY_OWNER"    // Owns a company, must have companyId set
	RoleLocationManager RoleType = "LOCATION_MANAGER" // Manages one or more locations of a company
	RolePosportAdmin    RoleType = "POSPORT_ADMIN"    // Platform administrator, not bound to a company
)

// Valid reports whether r is one of the roles the backend assigns.
func (r RoleType) Valid() bool {
	switch r {
	case RoleUnassignedUser, RoleUser, RoleCompanyOwner, RoleLocationManager, RolePosportAdmin:
		return true
	default:
		return false
	}
}

// UnmarshalJSON rejects roles outside the known set.
func (r *RoleType) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	if role := RoleType(s); role.Valid() {
		*r = role
		return nil
	}
	return fmt.Errorf("unknown role %q", s)
}

// Profile is the user profile kept in the session alongside the tokens.
type Profile struct {
	ID        string   `json:"id"`
	FirstName string   `json:"firstName,omitempty"`
	LastName  string   `json:"lastName,omitempty"`
	Email     string   `json:"email,omitempty"`
	Role      RoleType `json:"role"`
	CompanyID *string  `json:"companyId,omitempty"`
}

// ProfileUpdate is a partial profile. Nil fields are left untouched by Apply.
type ProfileUpdate struct {
	FirstName *string   `json:"firstName,omitempty"`
	LastName  *string   `json:"lastName,omitempty"`
	Email     *string   `json:"email,omitempty"`
	Role      *RoleType `json:"role,omitempty"`
	CompanyID *string   `json:"companyId,omitempty"`
}

// Apply returns a copy of p with the non-nil fields of u merged in.
func (p Profile) Apply(u ProfileUpdate) Profile {
	if u.FirstName != nil {
		p.FirstName = *u.FirstName
	}
	if u.LastName != nil {
		p.LastName = *u.LastName
	}
	if u.Email != nil {
		p.Email = *u.Email
	}
	if u.Role != nil {
		p.Role = *u.Role
	}
	if u.CompanyID != nil {
		p.CompanyID = utils.Ptr(*u.CompanyID)
	}
	return p
}

// HasCompany reports whether the user is attached to a company.
func (p *Profile) HasCompany() bool {
	return utils.Value(p.CompanyID) != ""
}

// IsPosportAdmin returns true for platform administrators
func (p *Profile) IsPosportAdmin() bool {
	return p.Role == RolePosportAdmin
}

// NeedsCompanySelection is true for company owners that have not picked a company yet.
// Platform administrators are never bound to a company.
func (p *Profile) NeedsCompanySelection() bool {
	return p.Role == RoleCompanyOwner && !p.HasCompany()
}

// DisplayName returns the full name, falling back to the email address
func (p *Profile) DisplayName() string {
	switch {
	case p.FirstName != "" && p.LastName != "":
		return p.FirstName + " " + p.LastName
	case p.FirstName != "":
		return p.FirstName
	default:
		return p.Email
	}
}
