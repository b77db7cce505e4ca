package services

import (
	"errors"

	goerrors "github.com/goliatone/go-errors"
)

const (
	codeConfigMissing   = "CONTENT_CONFIG_MISSING"
	codeNotFound        = "DOCUMENT_NOT_FOUND"
	codeContentAPI      = "CONTENT_API_FAILED"
	codePaginationFetch = "PAGINATION_FETCH_FAILED"
)

var (
	// ErrNoMorePages is returned when a feed is asked for a page after the
	// content API signalled the end of the listing.
	ErrNoMorePages = errors.New("feed: no more pages")
	// ErrPageInFlight is returned when a page fetch is already outstanding.
	ErrPageInFlight = errors.New("feed: page fetch already in flight")

	errEndpointMissing = errors.New("content: api endpoint is not configured")
	errNotFound        = errors.New("content: document not found")
	errNoMasterRef     = errors.New("content: repository has no master ref")
)

func configMissingError() error {
	return goerrors.Wrap(errEndpointMissing, goerrors.CategoryValidation, "content client is not configured").
		WithTextCode(codeConfigMissing)
}

func notFoundError(docType, uid string) error {
	return goerrors.Wrap(errNotFound, goerrors.CategoryNotFound, "document "+docType+"/"+uid+" not found").
		WithTextCode(codeNotFound)
}

func contentAPIError(err error, msg string) error {
	if err == nil || goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, msg).WithTextCode(codeContentAPI)
}

func paginationError(err error) error {
	if err == nil {
		return nil
	}
	if goerrors.IsWrapped(err) {
		return err
	}
	return goerrors.Wrap(err, goerrors.CategoryExternal, "next page fetch failed").
		WithTextCode(codePaginationFetch)
}

// IsNotFound reports whether err means the requested document does not exist.
func IsNotFound(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryNotFound)
}

// IsConfigMissing reports whether err comes from an unconfigured client.
func IsConfigMissing(err error) bool {
	return goerrors.IsCategory(err, goerrors.CategoryValidation)
}
