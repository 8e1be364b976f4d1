package cmd

import (
	"log"

	sdkerrors "github.com/lnbounty/bounty-api/pkg/bsdk/berr"
)

// exitIfSdkError inspects errors returned from the SDK and emits user-friendly
// guidance before exiting. Non-SDK errors fall back to log.Fatalf.
func exitIfSdkError(err error) {
	if err == nil {
		return
	}
	switch {
	case sdkerrors.IsCode(err, sdkerrors.CodeUnauthorized):
		log.Fatalf("authentication required: run 'bountyctl auth login' (%v)", err)
	case sdkerrors.IsCode(err, sdkerrors.CodeRefreshFailed):
		log.Fatalf("failed to refresh credentials: run 'bountyctl auth login' (%v)", err)
	default:
		log.Fatalf("%v", err)
	}
}
