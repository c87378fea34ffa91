package drive

import (
	"context"

	"github.com/photoatlas/backend/internal/models"
)

// Lister enumerates the image files visible to an access token,
// following pagination until the remote reports no further pages.
type Lister interface {
	// ListAll returns every non-trashed image file the token can see.
	// A failure on any page is returned as an error; callers can rely
	// on a nil error meaning the listing is complete.
	ListAll(ctx context.Context, accessToken string) ([]models.DriveFile, error)
}

// Downloader fetches the binary content of a single Drive file.
type Downloader interface {
	Download(ctx context.Context, fileID, accessToken string) ([]byte, error)
}
