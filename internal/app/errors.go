package app

import "errors"

var (
	// ErrMessageEmpty marks a chat request without a usable message; no
	// provider call is made for these.
	ErrMessageEmpty = errors.New("message content is empty")
	// ErrNoFiles marks an upload request without any files attached.
	ErrNoFiles = errors.New("no files in upload")
)
