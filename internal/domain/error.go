package domain

import "errors"

var (
	ErrNotFound        = errors.New("entity not found")
	ErrInvalidArgument = errors.New("invalid argument")
	ErrInvalidURL      = errors.New("unsupported or malformed youtube url")

	// Scheduling
	ErrAlreadyQueued = errors.New("task already queued or running")
	ErrQueueFull     = errors.New("task queue full")
	ErrLockHeld      = errors.New("lock held by another instance")

	// Content source
	ErrAgeRestricted = errors.New("content is age restricted")
	ErrUnavailable   = errors.New("content is unavailable")
	ErrNoSubtitles   = errors.New("no subtitle track available")

	// Processing
	ErrFileTooSmall     = errors.New("downloaded file is missing or too small")
	ErrEmptyTranscript  = errors.New("transcript is empty")
	ErrDurationUnknown  = errors.New("media duration could not be probed")
	ErrDeliveryFailed   = errors.New("delivery retry budget exhausted")
	ErrCookiesNotLoaded = errors.New("cookies file not found")
)
