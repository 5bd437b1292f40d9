package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"testing"
)

func TestIsMatchesByCode(t *testing.T) {
	err := New(CodeSessionFull, "session has no open seats")
	if !stderrors.Is(err, New(CodeSessionFull, "other message")) {
		t.Fatal("expected errors with equal codes to match")
	}
	if stderrors.Is(err, New(CodeNotFound, "missing")) {
		t.Fatal("expected errors with different codes not to match")
	}
}

func TestWrapPreservesCause(t *testing.T) {
	cause := stderrors.New("disk failed")
	err := Wrap(CodeUnknown, "persist session", cause)
	if !stderrors.Is(err, cause) {
		t.Fatal("expected wrapped cause to be found in chain")
	}
}

func TestCodeOfUnwrapsChains(t *testing.T) {
	inner := New(CodeCreditsInsufficient, "balance too low")
	outer := fmt.Errorf("purchase item: %w", inner)
	if code := CodeOf(outer); code != CodeCreditsInsufficient {
		t.Fatalf("code = %q, want %q", code, CodeCreditsInsufficient)
	}
}

func TestCodeOfPlainError(t *testing.T) {
	if code := CodeOf(stderrors.New("boom")); code != CodeUnknown {
		t.Fatalf("code = %q, want %q", code, CodeUnknown)
	}
}

func TestMetadataOf(t *testing.T) {
	err := WithMetadata(CodeRoomItemUnknown, "no such item", map[string]string{"item_id": "lamp"})
	meta := MetadataOf(fmt.Errorf("place: %w", err))
	if meta["item_id"] != "lamp" {
		t.Fatalf("metadata item_id = %q, want %q", meta["item_id"], "lamp")
	}
}

func TestHTTPStatusMapping(t *testing.T) {
	cases := []struct {
		code Code
		want int
	}{
		{CodeNotFound, http.StatusNotFound},
		{CodeSessionFull, http.StatusConflict},
		{CodeSessionHostOnly, http.StatusForbidden},
		{CodeInviteExpired, http.StatusUnauthorized},
		{CodeRatingInvalidScore, http.StatusBadRequest},
		{CodeUnknown, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		if got := tc.code.HTTPStatus(); got != tc.want {
			t.Fatalf("%s status = %d, want %d", tc.code, got, tc.want)
		}
	}
}
