/**
 * Contract analyzer.
 *
 * Runs one agent role against an indexed document: select the document's
 * collection, pull the top matching chunks as context, render the role's
 * prompt, and execute it through the runner. Results are versioned in
 * PostgreSQL when a version store is attached.
 */

package agents

import (
	"context"
	"fmt"

	"github.com/phuslu/log"

	"github.com/MuthuAjay/contracts-v3/internal/logging"
)

// contextChunks is how many retrieved chunks feed each prompt.
const contextChunks = 5

// Retriever supplies document context from the vector store.
type Retriever interface {
	SetActiveCollection(ctx context.Context, name string) (bool, error)
	GetContext(ctx context.Context, query string, k int) (string, error)
}

// VersionStore persists analysis results with version history.
type VersionStore interface {
	SaveAnalysisVersion(ctx context.Context, collectionName, role, content string) (int, error)
}

// Analysis is the outcome of one role run.
type Analysis struct {
	Role       Role   `json:"role"`
	Collection string `json:"collection"`
	Content    string `json:"content"`
	Version    int    `json:"version,omitempty"`
}

// Analyzer orchestrates retrieval and agent execution.
type Analyzer struct {
	runner    Runner
	retriever Retriever
	versions  VersionStore
	logger    log.Logger
}

// NewAnalyzer wires the analyzer. versions may be nil to skip persistence.
func NewAnalyzer(runner Runner, retriever Retriever, versions VersionStore) *Analyzer {
	return &Analyzer{
		runner:    runner,
		retriever: retriever,
		versions:  versions,
		logger:    logging.New("analyzer"),
	}
}

// Analyze runs one role against the named collection. customQuery is only
// used for RoleCustom.
func (a *Analyzer) Analyze(ctx context.Context, collectionName string, role Role, customQuery string) (*Analysis, error) {
	if !ValidRole(role) {
		return nil, fmt.Errorf("unknown agent role: %s", role)
	}

	ok, err := a.retriever.SetActiveCollection(ctx, collectionName)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("collection not found: %s", collectionName)
	}

	docContext, err := a.retriever.GetContext(ctx, RetrievalQuery(role, customQuery), contextChunks)
	if err != nil {
		return nil, fmt.Errorf("context retrieval failed: %w", err)
	}

	prompt, err := BuildPrompt(role, docContext, customQuery)
	if err != nil {
		return nil, err
	}

	content, err := a.runner.Run(ctx, SystemPrompt(role), prompt)
	if err != nil {
		return nil, fmt.Errorf("agent run failed: %w", err)
	}

	analysis := &Analysis{
		Role:       role,
		Collection: collectionName,
		Content:    content,
	}

	if a.versions != nil {
		version, err := a.versions.SaveAnalysisVersion(ctx, collectionName, string(role), content)
		if err != nil {
			a.logger.Warn().Err(err).Str("collection", collectionName).Str("role", string(role)).Msg("failed to save analysis version")
		} else {
			analysis.Version = version
		}
	}

	a.logger.Info().Str("collection", collectionName).Str("role", string(role)).Int("context_chars", len(docContext)).Msg("analysis complete")
	return analysis, nil
}

// AnalyzeAll runs every built-in role sequentially and returns the results
// keyed by role. A failing role is recorded as an error entry rather than
// aborting the remaining roles.
func (a *Analyzer) AnalyzeAll(ctx context.Context, collectionName string) map[Role]*Analysis {
	results := make(map[Role]*Analysis, len(Roles()))
	for _, role := range Roles() {
		analysis, err := a.Analyze(ctx, collectionName, role, "")
		if err != nil {
			a.logger.Warn().Err(err).Str("role", string(role)).Msg("role failed")
			results[role] = &Analysis{Role: role, Collection: collectionName, Content: fmt.Sprintf("analysis failed: %v", err)}
			continue
		}
		results[role] = analysis
	}
	return results
}
