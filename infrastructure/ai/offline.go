package ai

import (
	"context"
	"errors"

	"mindmap-backend/domain/core/entities"
	"mindmap-backend/domain/generation"
	"mindmap-backend/domain/interview"
	pkgerrors "mindmap-backend/pkg/errors"
)

var errNotConfigured = errors.New("no API key configured")

// OfflineGenerator fails every call so the service degrades to its defaults.
// It stands in when no API key is configured.
type OfflineGenerator struct{}

func (OfflineGenerator) ClarifyIntent(context.Context, string) ([]interview.Question, error) {
	return nil, offline()
}

func (OfflineGenerator) ReformulateQuestions(context.Context, string, []interview.Question, interview.Answers) ([]interview.Question, error) {
	return nil, offline()
}

func (OfflineGenerator) GenerateMap(context.Context, string, string) (generation.GeneratedMap, error) {
	return generation.GeneratedMap{}, offline()
}

func (OfflineGenerator) ExpandNode(context.Context, entities.Node) ([]entities.NodeFields, error) {
	return nil, offline()
}

func offline() error {
	return pkgerrors.NewExternalError(serviceName, errNotConfigured)
}
