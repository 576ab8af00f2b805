// Package embeddings provides embedding generation via multiple providers.
//
// Three providers are supported, selected at runtime through NewProvider:
//
//   - fastembed: local ONNX inference, no external service. Downloads the
//     ONNX runtime and model files on first use. Requires CGO.
//   - tei: a Text Embeddings Inference server reached over HTTP.
//   - openai: the OpenAI embeddings API, or any OpenAI-compatible endpoint.
//
// All providers implement the Provider interface and report their embedding
// dimension, which callers use to size vector store collections.
package embeddings
