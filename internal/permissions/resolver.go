package permissions

import (
	"context"
	"strings"

	"github.com/cmstools-dev/cmstools/internal/models"
	"gorm.io/gorm"
)

// Effective is the aggregated capability set of one operator on one table.
// The zero value denies everything, which is the fail-closed default.
type Effective struct {
	CanView   bool // Browse rows.
	CanCreate bool // Insert rows.
	CanUpdate bool // Edit rows.
	CanDelete bool // Remove rows.

	CanPublish  bool // Publish workflow step.
	CanSchedule bool // Schedule workflow step.
	CanArchive  bool // Archive workflow step.

	// RowFilter is the AND-conjunction of every distinct role row filter,
	// each fragment parenthesized. Empty when no role narrows rows.
	RowFilter string
}

// AllGranted returns an effective permission with every capability set.
func AllGranted() Effective {
	return Effective{
		CanView:     true,
		CanCreate:   true,
		CanUpdate:   true,
		CanDelete:   true,
		CanPublish:  true,
		CanSchedule: true,
		CanArchive:  true,
	}
}

// Resolver aggregates role grants from the metadata database.
type Resolver struct {
	db *gorm.DB // Metadata database handle.
}

// NewResolver constructs a permission resolver.
func NewResolver(db *gorm.DB) *Resolver {
	return &Resolver{db: db}
}

// Effective computes the operator's aggregated permission for a table.
// Boolean capabilities OR across every active role the operator holds;
// role row filters are conjoined. A super admin short-circuits to all-true.
// An operator with no matching grants receives the all-false zero value.
func (r *Resolver) Effective(ctx context.Context, userID, tableID uint64, isSuperAdmin bool) (Effective, error) {
	if isSuperAdmin {
		return AllGranted(), nil
	}

	var grants []models.TablePermission
	errFind := r.db.WithContext(ctx).
		Table("table_permissions").
		Joins("JOIN user_roles ON user_roles.role_id = table_permissions.role_id").
		Joins("JOIN roles ON roles.id = table_permissions.role_id").
		Where("user_roles.user_id = ? AND table_permissions.table_id = ? AND roles.is_active = ?", userID, tableID, true).
		Order("table_permissions.role_id ASC").
		Find(&grants).Error
	if errFind != nil {
		return Effective{}, errFind
	}

	var effective Effective
	var filters []string
	seen := map[string]struct{}{}
	for _, grant := range grants {
		effective.CanView = effective.CanView || grant.CanView
		effective.CanCreate = effective.CanCreate || grant.CanCreate
		effective.CanUpdate = effective.CanUpdate || grant.CanUpdate
		effective.CanDelete = effective.CanDelete || grant.CanDelete
		effective.CanPublish = effective.CanPublish || grant.CanPublish
		effective.CanSchedule = effective.CanSchedule || grant.CanSchedule
		effective.CanArchive = effective.CanArchive || grant.CanArchive

		filter := strings.TrimSpace(grant.RowFilter)
		if filter == "" {
			continue
		}
		if _, ok := seen[filter]; ok {
			continue
		}
		seen[filter] = struct{}{}
		filters = append(filters, "("+filter+")")
	}
	effective.RowFilter = strings.Join(filters, " AND ")

	return effective, nil
}
