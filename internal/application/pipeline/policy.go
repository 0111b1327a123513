package pipeline

import (
	"context"

	"github.com/polichat/polichat/pkg/domain/graph"
	"github.com/polichat/polichat/pkg/domain/state"
)

// BuildPolicyGraph compiles the company-policy pipeline:
//
//	input → history →┬→ doc_download → doc_process →┐
//	                 └──────────────────────────────┴→ policy_retriever →┬→ doc_retriever →┐
//	                                                                     └─────────────────┴→ context_combine → llm → session_update → output
//
// The router after history decides between downloading a new document,
// reusing an already processed one, or skipping documents entirely.
// The router after policy retrieval re-checks the temp store rather
// than reusing the first decision, because document processing may
// have created it in between.
func BuildPolicyGraph(deps Deps) (*graph.Definition, error) {
	return graph.NewBuilder("company_policy").
		AddNode(NodeInput, deps.inputNode).
		AddNode(NodeHistory, deps.historyNode).
		AddNode(NodeDocDownload, deps.docDownloadNode).
		AddNode(NodeDocProcess, deps.docProcessNode).
		AddNode(NodePolicyRetriever, deps.policyRetrieverNode).
		AddNode(NodeDocRetriever, deps.docRetrieverNode).
		AddNode(NodeContextCombine, deps.contextCombineNode).
		AddNode(NodeLLM, deps.llmNode(MainPrompt, 0, true, PolicyFallbackReply)).
		AddNode(NodeSessionUpdate, deps.sessionUpdateNode).
		AddNode(NodeOutput, deps.outputNode).
		SetEntryPoint(NodeInput).
		AddEdge(NodeInput, NodeHistory).
		AddConditionalEdges(NodeHistory, deps.routeAfterHistory, map[string]string{
			routeWithDoc: NodeDocDownload,
			routeHasDoc:  NodePolicyRetriever,
			routeNoDoc:   NodePolicyRetriever,
		}).
		AddEdge(NodeDocDownload, NodeDocProcess).
		AddEdge(NodeDocProcess, NodePolicyRetriever).
		AddConditionalEdges(NodePolicyRetriever, deps.routeAfterPolicy, map[string]string{
			routeNeedDoc:     NodeDocRetriever,
			routeNoDocNeeded: NodeContextCombine,
		}).
		AddEdge(NodeDocRetriever, NodeContextCombine).
		AddEdge(NodeContextCombine, NodeLLM).
		AddEdge(NodeLLM, NodeSessionUpdate).
		AddEdge(NodeSessionUpdate, NodeOutput).
		SetFinishPoint(NodeOutput).
		Compile()
}

// routeAfterHistory picks the document path: an existing temp store
// wins over a newly supplied URL; with neither, documents are skipped.
func (d Deps) routeAfterHistory(ctx context.Context, st state.State) string {
	if d.tempStoreExists(ctx, st) {
		return routeHasDoc
	}
	if st.String(state.KeyDocumentURL) != "" {
		return routeWithDoc
	}
	return routeNoDoc
}

// routeAfterPolicy decides whether document-context retrieval runs.
func (d Deps) routeAfterPolicy(ctx context.Context, st state.State) string {
	if d.tempStoreExists(ctx, st) {
		return routeNeedDoc
	}
	return routeNoDocNeeded
}
