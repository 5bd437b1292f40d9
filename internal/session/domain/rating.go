package domain

import (
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	apperrors "github.com/ytchou/focus-squad/internal/platform/errors"
)

// Rating limits.
const (
	MinRatingScore      = 1
	MaxRatingScore      = 5
	MaxRatingCommentLen = 500
)

// Rating is one participant's review of a partner after a session.
type Rating struct {
	SessionID   string
	RaterUserID string
	RatedUserID string
	Score       int
	Comment     string
	CreatedAt   time.Time
}

// NewRating validates and builds a rating record.
func NewRating(sessionID, raterUserID, ratedUserID string, score int, comment string, now time.Time) (Rating, error) {
	sessionID = strings.TrimSpace(sessionID)
	raterUserID = strings.TrimSpace(raterUserID)
	ratedUserID = strings.TrimSpace(ratedUserID)

	if raterUserID == ratedUserID {
		return Rating{}, apperrors.New(apperrors.CodeRatingSelf, "users cannot rate themselves")
	}
	if score < MinRatingScore || score > MaxRatingScore {
		return Rating{}, apperrors.WithMetadata(apperrors.CodeRatingInvalidScore, "score must be between 1 and 5",
			map[string]string{"score": strconv.Itoa(score)})
	}
	comment = strings.TrimSpace(comment)
	if utf8.RuneCountInString(comment) > MaxRatingCommentLen {
		return Rating{}, apperrors.WithMetadata(apperrors.CodeRatingCommentTooLong, "comment exceeds limit",
			map[string]string{"limit": strconv.Itoa(MaxRatingCommentLen)})
	}

	return Rating{
		SessionID:   sessionID,
		RaterUserID: raterUserID,
		RatedUserID: ratedUserID,
		Score:       score,
		Comment:     comment,
		CreatedAt:   now.UTC(),
	}, nil
}
