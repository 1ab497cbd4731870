package scraper

import "errors"

var (
	ErrUnsupportedSite = errors.New("no schema.org recipe found on page")
	ErrInvalidURL      = errors.New("invalid URL")
	ErrPageNotFound    = errors.New("recipe page not found")
	ErrRateLimited     = errors.New("rate limited")
	ErrBlockedHost     = errors.New("recipe host is not on the public internet")
)
