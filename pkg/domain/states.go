package domain

// UserState is the user lifecycle:
// UNSPECIFIED → ACTIVE ↔ INACTIVE; ACTIVE/INACTIVE → LOCKED → ACTIVE;
// any → DELETED (terminal).
type UserState int

const (
	UserStateUnspecified UserState = iota
	UserStateActive
	UserStateInactive
	UserStateLocked
	UserStateDeleted
)

// Exists reports whether the user is present in any live state.
func (s UserState) Exists() bool {
	return s != UserStateUnspecified && s != UserStateDeleted
}

// UserType distinguishes human users from machine (service) users.
type UserType int

const (
	UserTypeUnspecified UserType = iota
	UserTypeHuman
	UserTypeMachine
)

// OrgState: UNSPECIFIED → ACTIVE ↔ INACTIVE → REMOVED (terminal).
type OrgState int

const (
	OrgStateUnspecified OrgState = iota
	OrgStateActive
	OrgStateInactive
	OrgStateRemoved
)

func (s OrgState) Exists() bool {
	return s == OrgStateActive || s == OrgStateInactive
}

// PolicyState: UNSPECIFIED → ACTIVE → REMOVED, with idempotent changed
// transitions inside ACTIVE.
type PolicyState int

const (
	PolicyStateUnspecified PolicyState = iota
	PolicyStateActive
	PolicyStateRemoved
)

func (s PolicyState) Exists() bool {
	return s == PolicyStateActive
}

// IDPState: UNSPECIFIED → ACTIVE → REMOVED.
type IDPState int

const (
	IDPStateUnspecified IDPState = iota
	IDPStateActive
	IDPStateRemoved
)

func (s IDPState) Exists() bool {
	return s == IDPStateActive
}

// IDPType encodes the identity-provider kind carried in the config payload.
type IDPType int

const (
	IDPTypeUnspecified IDPType = iota
	IDPTypeOIDC
	IDPTypeOAuth
	IDPTypeLDAP
	IDPTypeSAML
	IDPTypeJWT
	IDPTypeAzureAD
	IDPTypeGoogle
	IDPTypeApple
)

// MemberState: UNSPECIFIED → ACTIVE → REMOVED.
type MemberState int

const (
	MemberStateUnspecified MemberState = iota
	MemberStateActive
	MemberStateRemoved
)

func (s MemberState) Exists() bool {
	return s == MemberStateActive
}

// GrantState: UNSPECIFIED → ACTIVE → REMOVED.
type GrantState int

const (
	GrantStateUnspecified GrantState = iota
	GrantStateActive
	GrantStateRemoved
)

func (s GrantState) Exists() bool {
	return s == GrantStateActive
}

// AuthRequestState:
// UNSPECIFIED → ADDED → USER_SELECTED → AUTHENTICATED → SUCCEEDED|FAILED.
type AuthRequestState int

const (
	AuthRequestStateUnspecified AuthRequestState = iota
	AuthRequestStateAdded
	AuthRequestStateUserSelected
	AuthRequestStateAuthenticated
	AuthRequestStateSucceeded
	AuthRequestStateFailed
)

// Terminal reports whether the auth request accepts no further commands.
func (s AuthRequestState) Terminal() bool {
	return s == AuthRequestStateSucceeded || s == AuthRequestStateFailed
}

// AuthFactor identifies one orthogonal authentication factor.
type AuthFactor int

const (
	AuthFactorUnspecified AuthFactor = iota
	AuthFactorPassword
	AuthFactorTOTP
	AuthFactorWebAuthN
)

func (f AuthFactor) String() string {
	switch f {
	case AuthFactorPassword:
		return "password"
	case AuthFactorTOTP:
		return "totp"
	case AuthFactorWebAuthN:
		return "webauthn"
	default:
		return "unspecified"
	}
}

// DeviceAuthState: requested → approved|denied|cancelled|expired.
type DeviceAuthState int

const (
	DeviceAuthStateUnspecified DeviceAuthState = iota
	DeviceAuthStateRequested
	DeviceAuthStateApproved
	DeviceAuthStateDenied
	DeviceAuthStateCancelled
	DeviceAuthStateExpired
)

// Terminal reports whether the device authorization is settled.
func (s DeviceAuthState) Terminal() bool {
	switch s {
	case DeviceAuthStateApproved, DeviceAuthStateDenied, DeviceAuthStateCancelled, DeviceAuthStateExpired:
		return true
	default:
		return false
	}
}
