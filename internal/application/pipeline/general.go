package pipeline

import (
	"github.com/polichat/polichat/pkg/domain/graph"
)

// BuildGeneralGraph compiles the general pipeline used for casual
// conversation and system-capability questions: a linear path with no
// retrieval.
func BuildGeneralGraph(deps Deps) (*graph.Definition, error) {
	return graph.NewBuilder("general").
		AddNode(NodeInput, deps.inputNode).
		AddNode(NodeHistory, deps.historyNode).
		AddNode(NodeLLM, deps.llmNode(GeneralPrompt, 0.7, false, GeneralFallbackReply)).
		AddNode(NodeSessionUpdate, deps.sessionUpdateNode).
		AddNode(NodeOutput, deps.outputNode).
		SetEntryPoint(NodeInput).
		AddEdge(NodeInput, NodeHistory).
		AddEdge(NodeHistory, NodeLLM).
		AddEdge(NodeLLM, NodeSessionUpdate).
		AddEdge(NodeSessionUpdate, NodeOutput).
		SetFinishPoint(NodeOutput).
		Compile()
}
