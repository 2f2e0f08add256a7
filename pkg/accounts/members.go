package accounts

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/platinummonkey/hookrelay/pkg/apierrors"
	"github.com/platinummonkey/hookrelay/pkg/rbac"
	"github.com/platinummonkey/hookrelay/pkg/storage"
)

const memberColumns = `id, account_id, user_id, role_id, created_by, updated_by, created_at, updated_at`

// CreateMember adds a membership. A second membership for the same
// account and user is rejected.
func (s *Store) CreateMember(ctx context.Context, member *Member) error {
	now := time.Now().UTC()
	err := s.db.QueryRowContext(ctx, `
		INSERT INTO account_members (account_id, user_id, role_id, created_by, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		RETURNING id, created_at, updated_at
	`, member.AccountID, member.UserID, int64(member.RoleID), member.CreatedBy, now).
		Scan(&member.ID, &member.CreatedAt, &member.UpdatedAt)
	if err != nil {
		return translateMemberError("failed to create member", err)
	}
	return nil
}

// GetMember retrieves a membership by id
func (s *Store) GetMember(ctx context.Context, id int64) (*Member, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+memberColumns+` FROM account_members WHERE id = $1`, id)
	member, err := scanMember(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, apierrors.NotFound("Not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get member: %w", err)
	}
	return member, nil
}

// ListMembers returns the memberships matching filter. The scope restricts
// by the membership's account.
func (s *Store) ListMembers(ctx context.Context, filter storage.ListFilter) ([]*Member, error) {
	var args storage.Args
	query := `SELECT ` + memberColumns + ` FROM account_members` +
		filter.Where(&args, "account_id", MemberListOptions) +
		filter.OrderClause(MemberListOptions)

	rows, err := s.db.QueryContext(ctx, query, args.Values()...)
	if err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	members := []*Member{}
	for rows.Next() {
		member, err := scanMember(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, member)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list members: %w", err)
	}
	return members, nil
}

// UpdateMember writes account, user and role and refreshes UpdatedAt
func (s *Store) UpdateMember(ctx context.Context, member *Member) error {
	member.UpdatedAt = time.Now().UTC()
	result, err := s.db.ExecContext(ctx, `
		UPDATE account_members SET account_id = $1, user_id = $2, role_id = $3, updated_by = $4, updated_at = $5
		WHERE id = $6
	`, member.AccountID, member.UserID, int64(member.RoleID), member.UpdatedBy, member.UpdatedAt, member.ID)
	if err != nil {
		return translateMemberError("failed to update member", err)
	}
	return expectOneRow(result, "failed to update member")
}

// DeleteMember removes a membership
func (s *Store) DeleteMember(ctx context.Context, id int64) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM account_members WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete member: %w", err)
	}
	return expectOneRow(result, "failed to delete member")
}

// MembershipsForUser returns every (account, role) pair of userID
func (s *Store) MembershipsForUser(ctx context.Context, userID int64) ([]rbac.Membership, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT account_id, role_id FROM account_members WHERE user_id = $1 ORDER BY account_id ASC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	defer rows.Close()

	var memberships []rbac.Membership
	for rows.Next() {
		var m rbac.Membership
		if err := rows.Scan(&m.AccountID, &m.RoleID); err != nil {
			return nil, fmt.Errorf("failed to scan membership: %w", err)
		}
		memberships = append(memberships, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load memberships: %w", err)
	}
	return memberships, nil
}

func scanMember(row rowScanner) (*Member, error) {
	member := &Member{}
	var updatedBy sql.NullInt64
	if err := row.Scan(
		&member.ID, &member.AccountID, &member.UserID, &member.RoleID,
		&member.CreatedBy, &updatedBy, &member.CreatedAt, &member.UpdatedAt,
	); err != nil {
		return nil, err
	}
	member.UpdatedBy = storage.Int64Ptr(updatedBy)
	member.CreatedAt = member.CreatedAt.UTC()
	member.UpdatedAt = member.UpdatedAt.UTC()
	return member, nil
}

func translateMemberError(msg string, err error) error {
	if storage.IsUniqueViolation(err) {
		return apierrors.Validation("member already exists")
	}
	if storage.IsForeignKeyViolation(err) {
		return apierrors.Validation("account, user or role does not exist")
	}
	return fmt.Errorf("%s: %w", msg, err)
}
