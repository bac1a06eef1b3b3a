package response

// ErrCode is a typed error code enum for consistent API error identification.
type ErrCode string

const (
	// ─── Authentication ────────────────────────────────────────────────
	ErrInvalidCredentials ErrCode = "INVALID_CREDENTIALS"
	ErrTokenRequired      ErrCode = "TOKEN_REQUIRED"
	ErrTokenInvalid       ErrCode = "TOKEN_INVALID"
	ErrAccountDisabled    ErrCode = "ACCOUNT_DISABLED"
	ErrSessionInvalidated ErrCode = "SESSION_INVALIDATED"

	// ─── Authorization ─────────────────────────────────────────────────
	ErrForbidden          ErrCode = "FORBIDDEN"
	ErrStudentAccessOnly  ErrCode = "STUDENT_ACCESS_ONLY"
	ErrLecturerAccessOnly ErrCode = "LECTURER_ACCESS_ONLY"
	ErrAdminAccessOnly    ErrCode = "ADMIN_ACCESS_ONLY"
	ErrNotOwner           ErrCode = "NOT_OWNER"

	// ─── Validation ────────────────────────────────────────────────────
	ErrValidation     ErrCode = "VALIDATION_ERROR"
	ErrInvalidID      ErrCode = "INVALID_ID"
	ErrInvalidPayload ErrCode = "INVALID_PAYLOAD"

	// ─── Resources ─────────────────────────────────────────────────────
	ErrNotFound         ErrCode = "NOT_FOUND"
	ErrConflict         ErrCode = "CONFLICT"
	ErrDependencyExists ErrCode = "DEPENDENCY_EXISTS"

	// ─── Attendance-specific ───────────────────────────────────────────
	ErrLocationNotConfigured ErrCode = "LOCATION_NOT_CONFIGURED"
	ErrNotEnrolled           ErrCode = "NOT_ENROLLED"
	ErrSessionExpired        ErrCode = "SESSION_EXPIRED"
	ErrAlreadyCheckedIn      ErrCode = "ALREADY_CHECKED_IN"
	ErrInvalidSessionToken   ErrCode = "INVALID_TOKEN"
	ErrSlotInvalid           ErrCode = "SLOT_INVALID"
	ErrReconcileRunning      ErrCode = "RECONCILE_RUNNING"

	// ─── Rate Limiting ─────────────────────────────────────────────────
	ErrRateLimitExceeded ErrCode = "RATE_LIMIT_EXCEEDED"

	// ─── Server ────────────────────────────────────────────────────────
	ErrInternal ErrCode = "INTERNAL_ERROR"
)

// GetMessage returns a human-readable message for a given error code.
func GetMessage(code ErrCode) string {
	switch code {
	// ─── Authentication ────────────────────────────────────────────────
	case ErrInvalidCredentials:
		return "Incorrect username or password."
	case ErrTokenRequired:
		return "Authentication token is required."
	case ErrTokenInvalid:
		return "Authentication token is invalid or has expired."
	case ErrAccountDisabled:
		return "This account has been disabled."
	case ErrSessionInvalidated:
		return "You have signed in on another device. Please sign in again."

	// ─── Authorization ─────────────────────────────────────────────────
	case ErrForbidden:
		return "You do not have permission to access this resource."
	case ErrStudentAccessOnly:
		return "This resource is restricted to students."
	case ErrLecturerAccessOnly:
		return "This resource is restricted to lecturers."
	case ErrAdminAccessOnly:
		return "This resource is restricted to administrators."
	case ErrNotOwner:
		return "Only the lecturer who opened this session may do that."

	// ─── Validation ────────────────────────────────────────────────────
	case ErrValidation:
		return "Validation failed. Please check your input."
	case ErrInvalidID:
		return "Invalid ID format."
	case ErrInvalidPayload:
		return "Invalid request payload."

	// ─── Resources ─────────────────────────────────────────────────────
	case ErrNotFound:
		return "Resource not found."
	case ErrConflict:
		return "Resource already exists."
	case ErrDependencyExists:
		return "This record is still referenced by other data and cannot be removed."

	// ─── Attendance-specific ───────────────────────────────────────────
	case ErrLocationNotConfigured:
		return "The classroom location has not been configured yet."
	case ErrNotEnrolled:
		return "You are not enrolled in this class."
	case ErrSessionExpired:
		return "This attendance session has ended."
	case ErrAlreadyCheckedIn:
		return "You are already marked present for this session."
	case ErrInvalidSessionToken:
		return "The attendance code is invalid or has expired. Please scan again."
	case ErrSlotInvalid:
		return "Unknown teaching week or lesson slot."
	case ErrReconcileRunning:
		return "A reconciliation run is already in progress."

	// ─── Rate Limiting ─────────────────────────────────────────────────
	case ErrRateLimitExceeded:
		return "Too many requests. Please try again later."

	// ─── Server ────────────────────────────────────────────────────────
	case ErrInternal:
		return "An internal server error occurred."
	default:
		return "An unexpected error occurred."
	}
}
