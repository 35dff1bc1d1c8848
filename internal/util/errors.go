package util

import "errors"

var (
	ErrUnknownKnowledgeBase   = errors.New("知识库不存在")
	ErrGraphNotBuilt          = errors.New("knowledge base has no teaching graph")
	ErrInvalidModuleReference = errors.New("module not found in teaching graph")
	ErrUnknownSession         = errors.New("session not found")
	ErrSessionAbandoned       = errors.New("session has been abandoned")
	ErrSequenceConflict       = errors.New("interaction sequence conflict")
	ErrElaborationUnavailable = errors.New("elaboration unavailable")
	ErrEvaluatorTimeout       = errors.New("semantic judge timed out")
	ErrInvalidArtifact        = errors.New("invalid teaching graph artifact")
	ErrMissingUserID          = errors.New("missing user id")
)
