package constants

// NoticeKind identifies a transient message for the presentation layer.
type NoticeKind string

const (
	// NoticePermissionRequired is emitted when updates are requested without location permission.
	NoticePermissionRequired NoticeKind = "permission_required"
	// NoticeLastLocationUnavailable is emitted when no last known fix exists on start.
	NoticeLastLocationUnavailable NoticeKind = "last_location_unavailable"
)
