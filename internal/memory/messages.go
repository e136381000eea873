package memory

import (
	"fmt"

	"github.com/vmunix/swiper/internal/content"
	"github.com/vmunix/swiper/internal/reconcile"
)

func successMessage(target Target, method reconcile.Method, item content.Content) string {
	if method == reconcile.MethodRemove {
		return fmt.Sprintf("Removed %s from %s.", item.Desc(), target)
	}
	return fmt.Sprintf("Added %s to %s.", item.Desc(), target)
}

func rejectionMessage(target Target, rej *reconcile.Rejection) string {
	switch rej.Err {
	case reconcile.ErrNoEpisodes:
		return "There are currently no such episodes."
	case reconcile.ErrAlreadyPresent:
		return fmt.Sprintf("%s is already %s.", rej.Item.Desc(), target)
	case reconcile.ErrTitleConflict:
		return fmt.Sprintf("%s conflicts with %s, which is already %s.", rej.Item.Desc(), rej.Existing.Desc(), target)
	default:
		return fmt.Sprintf("%s is not %s.", rej.Item.Desc(), target)
	}
}

func failureMessage(target Target, method reconcile.Method, item content.Content) string {
	if method == reconcile.MethodRemove {
		return fmt.Sprintf("There was a problem removing %s from %s.", item.Desc(), target)
	}
	return fmt.Sprintf("There was a problem adding %s to %s.", item.Desc(), target)
}
