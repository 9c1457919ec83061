package util

import "errors"

var (
	ErrPermissionDenied     = errors.New("permission denied")
	ErrConceptNotFound      = errors.New("concept not found")
	ErrRelationshipInvalid  = errors.New("invalid relationship")
	ErrCircularDependency   = errors.New("relationship would create a circular prerequisite dependency")
	ErrCourseNotFound       = errors.New("course not found")
	ErrInvalidEvidence      = errors.New("invalid evidence point")
	ErrInvalidMasteryLevel  = errors.New("invalid mastery level")
	ErrInvalidMasteryConfig = errors.New("invalid mastery configuration")
	ErrBatchNotFound        = errors.New("suggestion batch not found")
	ErrSuggestionItem       = errors.New("suggestion item not found")
	ErrUnresolvedReference  = errors.New("suggestion references unknown concept")
	ErrGenerationFailed     = errors.New("failed to generate suggestions")
	ErrInvalidSuggestion    = errors.New("invalid response from suggestion service")
)
