package rbac

// Capability is an atomic named permission a role may hold.
type Capability string

const (
	CapCreateListing        Capability = "create_listing"
	CapEditOwnListing       Capability = "edit_own_listing"
	CapDeleteOwnListing     Capability = "delete_own_listing"
	CapLeaveReview          Capability = "leave_review"
	CapReportContent        Capability = "report_content"
	CapManageFavorites      Capability = "manage_favorites"
	CapViewProfile          Capability = "view_profile"
	CapViewOwnNotifications Capability = "view_own_notifications"

	CapModerateListings     Capability = "moderate_listings"
	CapViewReports          Capability = "view_reports"
	CapBanUsers             Capability = "ban_users"
	CapViewModerationLog    Capability = "view_moderation_log"
	CapViewAllNotifications Capability = "view_all_notifications"

	CapManageUsers       Capability = "manage_users"
	CapManageCategories  Capability = "manage_categories"
	CapManageRoles       Capability = "manage_roles"
	CapViewStatistics    Capability = "view_statistics"
	CapSystemSettings    Capability = "system_settings"
	CapBackupManagement  Capability = "backup_management"
	CapViewAuditLog      Capability = "view_audit_log"
	CapManagePermissions Capability = "manage_permissions"
)

// OwnershipScoped reports whether the capability is exercisable only
// against resources the actor owns.
func (c Capability) OwnershipScoped() bool {
	return c == CapEditOwnListing || c == CapDeleteOwnListing
}

var userCapabilities = []Capability{
	CapCreateListing,
	CapEditOwnListing,
	CapDeleteOwnListing,
	CapLeaveReview,
	CapReportContent,
	CapManageFavorites,
	CapViewProfile,
	CapViewOwnNotifications,
}

var moderatorCapabilities = []Capability{
	CapModerateListings,
	CapViewReports,
	CapBanUsers,
	CapViewModerationLog,
	CapViewAllNotifications,
}

var adminCapabilities = []Capability{
	CapManageUsers,
	CapManageCategories,
	CapManageRoles,
	CapViewStatistics,
	CapSystemSettings,
	CapBackupManagement,
	CapViewAuditLog,
	CapManagePermissions,
}

// Catalog is the fixed role-to-capability table. Built once at startup and
// never mutated afterwards; concurrent reads need no synchronization.
// Each role's set is a strict superset of the role below it.
type Catalog struct {
	byRole map[Role]map[Capability]struct{}
}

// NewCatalog builds the builtin catalog. Capabilities are additive: the
// moderator set extends the user set, the admin set extends the moderator
// set.
func NewCatalog() *Catalog {
	user := capSet(userCapabilities)
	moderator := capSet(moderatorCapabilities, user)
	admin := capSet(adminCapabilities, moderator)
	return &Catalog{byRole: map[Role]map[Capability]struct{}{
		RoleUser:      user,
		RoleModerator: moderator,
		RoleAdmin:     admin,
	}}
}

// CapabilitiesFor returns a copy of the role's capability set. An unknown
// or anonymous role yields the empty set; there is no error path.
func (c *Catalog) CapabilitiesFor(role Role) map[Capability]struct{} {
	out := make(map[Capability]struct{}, len(c.byRole[role]))
	for capability := range c.byRole[role] {
		out[capability] = struct{}{}
	}
	return out
}

// Has reports whether the role's set contains the capability.
func (c *Catalog) Has(role Role, capability Capability) bool {
	_, ok := c.byRole[role][capability]
	return ok
}

func capSet(caps []Capability, bases ...map[Capability]struct{}) map[Capability]struct{} {
	set := make(map[Capability]struct{}, len(caps))
	for _, base := range bases {
		for capability := range base {
			set[capability] = struct{}{}
		}
	}
	for _, capability := range caps {
		set[capability] = struct{}{}
	}
	return set
}
