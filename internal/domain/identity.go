package domain

// IdentityKind distinguishes verified accounts from self-asserted devices.
type IdentityKind string

const (
	IdentityUser   IdentityKind = "user"
	IdentityDevice IdentityKind = "device"
)

// Identity is the caller principal used for quota accounting. A user
// identity comes from a verified credential; a device identity is a
// client-generated opaque id that carries no trust guarantee and is only
// ever good for guest-tier quota.
type Identity struct {
	ID   string
	Kind IdentityKind
}

// UserIdentity builds an identity for a verified user id.
func UserIdentity(id string) Identity {
	return Identity{ID: id, Kind: IdentityUser}
}

// DeviceIdentity builds an identity for a self-asserted device id.
func DeviceIdentity(id string) Identity {
	return Identity{ID: id, Kind: IdentityDevice}
}

// IsUser reports whether the identity derives from a verified credential.
func (i Identity) IsUser() bool {
	return i.Kind == IdentityUser
}
