// Package pipeline implements the chat processing graphs: the node
// step functions and the compiled definitions for the company-policy
// pipeline (retrieval-augmented) and the general pipeline (casual and
// system queries). Nodes reach external collaborators only through the
// ports interfaces carried by Deps.
package pipeline
