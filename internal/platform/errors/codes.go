// Package errors provides structured error handling with i18n support.
package errors

import "net/http"

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unknown error.
	CodeUnknown Code = "UNKNOWN"

	// CodeNotFound represents a missing record.
	CodeNotFound Code = "NOT_FOUND"

	// Session errors
	CodeSessionEmptyHost         Code = "SESSION_EMPTY_HOST"
	CodeSessionStartRequired     Code = "SESSION_START_REQUIRED"
	CodeSessionNotJoinable       Code = "SESSION_NOT_JOINABLE"
	CodeSessionFull              Code = "SESSION_FULL"
	CodeSessionAlreadyJoined     Code = "SESSION_ALREADY_JOINED"
	CodeSessionNotParticipant    Code = "SESSION_NOT_PARTICIPANT"
	CodeSessionHostOnly          Code = "SESSION_HOST_ONLY"
	CodeSessionNotCompletable    Code = "SESSION_NOT_COMPLETABLE"
	CodeSessionAlreadyFinalized  Code = "SESSION_ALREADY_FINALIZED"
	CodeSessionInvalidTransition Code = "SESSION_INVALID_STATUS_TRANSITION"

	// Rating errors
	CodeRatingInvalidScore   Code = "RATING_INVALID_SCORE"
	CodeRatingSelf           Code = "RATING_SELF"
	CodeRatingDuplicate      Code = "RATING_DUPLICATE"
	CodeRatingCommentTooLong Code = "RATING_COMMENT_TOO_LONG"

	// Invite errors
	CodeInviteInvalid  Code = "INVITE_INVALID"
	CodeInviteExpired  Code = "INVITE_EXPIRED"
	CodeInviteUsed     Code = "INVITE_USED"
	CodeInviteMismatch Code = "INVITE_MISMATCH"

	// Profile and partner errors
	CodeProfileInvalidUsername Code = "PROFILE_INVALID_USERNAME"
	CodeProfileUsernameTaken   Code = "PROFILE_USERNAME_TAKEN"
	CodePartnerSelf            Code = "PARTNER_SELF"

	// Credits errors
	CodeCreditsInsufficient Code = "CREDITS_INSUFFICIENT"

	// Room errors
	CodeRoomItemUnknown     Code = "ROOM_ITEM_UNKNOWN"
	CodeRoomItemNotOwned    Code = "ROOM_ITEM_NOT_OWNED"
	CodeRoomItemOwned       Code = "ROOM_ITEM_ALREADY_OWNED"
	CodeRoomCellOutOfBounds Code = "ROOM_CELL_OUT_OF_BOUNDS"
)

// HTTPStatus maps the error code to an HTTP response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSessionFull, CodeSessionAlreadyJoined, CodeSessionNotJoinable,
		CodeSessionNotCompletable, CodeSessionAlreadyFinalized,
		CodeSessionInvalidTransition, CodeRatingDuplicate, CodeInviteUsed,
		CodeProfileUsernameTaken, CodeCreditsInsufficient, CodeRoomItemOwned:
		return http.StatusConflict
	case CodeSessionHostOnly, CodeSessionNotParticipant, CodeInviteMismatch:
		return http.StatusForbidden
	case CodeInviteInvalid, CodeInviteExpired:
		return http.StatusUnauthorized
	case CodeUnknown:
		return http.StatusInternalServerError
	default:
		return http.StatusBadRequest
	}
}
