// internal/common/auth/membership.go
package auth

import (
	"context"
	"database/sql"
	stderrors "errors"

	"loyalty-notify/internal/common/errors"
)

const (
	RoleOwner = "owner"
	RoleAdmin = "admin"
)

const queryMemberRole = `
	SELECT role FROM organization_members
	WHERE organization_id = $1 AND user_id = $2`

// MembershipStore reads organization roles.
type MembershipStore struct {
	db *sql.DB
}

func NewMembershipStore(db *sql.DB) *MembershipStore {
	return &MembershipStore{db: db}
}

// Role returns the user's role in the organization, or "" when not a member.
func (s *MembershipStore) Role(ctx context.Context, organizationID, userID string) (string, error) {
	var role string
	err := s.db.QueryRowContext(ctx, queryMemberRole, organizationID, userID).Scan(&role)
	if stderrors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", errors.NewDatabaseQueryFailedError("load member role", err)
	}
	return role, nil
}

// CanManageNotifications reports whether the user is an owner or admin.
func (s *MembershipStore) CanManageNotifications(ctx context.Context, organizationID, userID string) (bool, error) {
	role, err := s.Role(ctx, organizationID, userID)
	if err != nil {
		return false, err
	}
	return role == RoleOwner || role == RoleAdmin, nil
}
